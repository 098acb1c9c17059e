package manager

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"

	"streaming-engine/pkg/config"
	"streaming-engine/pkg/logger"
)

// Resource is a process wide dependency (storage client, redis, kafka).
type Resource interface {
	MustOpen()
	Close()
}

// ResourcePlugin creates a resource during startup.
type ResourcePlugin interface {
	Name() string
	MustCreateResource() Resource
}

// Component is a long running unit started after resources are open.
type Component interface {
	Start() error
	Stop() error
	GetName() string
}

// ComponentPlugin creates a component from the shared dependencies.
type ComponentPlugin interface {
	Name() string
	MustCreateComponent(deps *Dependencies) Component
}

// Controller registers HTTP routes.
type Controller interface {
	RegisterRoutes(router gin.IRouter)
}

// ControllerPlugin creates a controller lazily.
type ControllerPlugin interface {
	Name() string
	MustCreateController() Controller
}

// Dependencies is passed to component plugins.
type Dependencies struct {
	Config *config.Config
	JobApp interface{}
}

type registry struct {
	mu                sync.Mutex
	resourcePlugins   []ResourcePlugin
	componentPlugins  []ComponentPlugin
	controllerPlugins []ControllerPlugin
	resources         []namedResource
	components        []Component
}

type namedResource struct {
	name     string
	resource Resource
}

var defaultRegistry = &registry{}

func RegisterResourcePlugin(p ResourcePlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.resourcePlugins = append(defaultRegistry.resourcePlugins, p)
}

func RegisterComponentPlugin(p ComponentPlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.componentPlugins = append(defaultRegistry.componentPlugins, p)
}

func RegisterControllerPlugin(p ControllerPlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.controllerPlugins = append(defaultRegistry.controllerPlugins, p)
}

// MustInitResources opens every registered resource in registration order.
func MustInitResources() {
	defaultRegistry.mu.Lock()
	plugins := append([]ResourcePlugin(nil), defaultRegistry.resourcePlugins...)
	defaultRegistry.mu.Unlock()

	for _, p := range plugins {
		r := p.MustCreateResource()
		if r == nil {
			panic(fmt.Sprintf("resource plugin %s returned nil", p.Name()))
		}
		r.MustOpen()
		logger.Infof("Resource opened name=%s", p.Name())
		defaultRegistry.mu.Lock()
		defaultRegistry.resources = append(defaultRegistry.resources, namedResource{name: p.Name(), resource: r})
		defaultRegistry.mu.Unlock()
	}
}

// CloseResources closes resources in reverse order.
func CloseResources() {
	defaultRegistry.mu.Lock()
	resources := defaultRegistry.resources
	defaultRegistry.resources = nil
	defaultRegistry.mu.Unlock()

	for i := len(resources) - 1; i >= 0; i-- {
		resources[i].resource.Close()
		logger.Infof("Resource closed name=%s", resources[i].name)
	}
}

// MustInitComponents creates and starts every registered component.
func MustInitComponents(deps *Dependencies) {
	defaultRegistry.mu.Lock()
	plugins := append([]ComponentPlugin(nil), defaultRegistry.componentPlugins...)
	defaultRegistry.mu.Unlock()

	for _, p := range plugins {
		c := p.MustCreateComponent(deps)
		if c == nil {
			continue
		}
		if err := c.Start(); err != nil {
			panic(fmt.Sprintf("start component %s failed: %v", p.Name(), err))
		}
		logger.Infof("Component started name=%s", c.GetName())
		defaultRegistry.mu.Lock()
		defaultRegistry.components = append(defaultRegistry.components, c)
		defaultRegistry.mu.Unlock()
	}
}

// RegisterAllRoutes lets every controller plugin register its routes.
func RegisterAllRoutes(router gin.IRouter) {
	defaultRegistry.mu.Lock()
	plugins := append([]ControllerPlugin(nil), defaultRegistry.controllerPlugins...)
	defaultRegistry.mu.Unlock()

	for _, p := range plugins {
		p.MustCreateController().RegisterRoutes(router)
		logger.Debugf("Routes registered controller=%s", p.Name())
	}
}

// Shutdown stops components in reverse start order.
func Shutdown() {
	defaultRegistry.mu.Lock()
	components := defaultRegistry.components
	defaultRegistry.components = nil
	defaultRegistry.mu.Unlock()

	for i := len(components) - 1; i >= 0; i-- {
		if err := components[i].Stop(); err != nil {
			logger.Warnf("Component stop failed name=%s error=%v", components[i].GetName(), err)
		}
	}
}
