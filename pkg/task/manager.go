package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"streaming-engine/pkg/logger"
)

// BackgroundTask is a long-running process such as a consumer or a worker pool.
type BackgroundTask interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// Manager starts registered tasks together and stops them in reverse order.
type Manager struct {
	mu      sync.Mutex
	tasks   []BackgroundTask
	started []BackgroundTask
	cancel  context.CancelFunc
}

func NewManager() *Manager {
	return &Manager{}
}

var defaultManager = NewManager()

// Register adds a background task to the default manager.
func Register(t BackgroundTask) { defaultManager.Register(t) }

// StartAll starts every task registered on the default manager.
func StartAll(ctx context.Context) error { return defaultManager.StartAll(ctx) }

// StopAll stops the default manager's tasks.
func StopAll() error { return defaultManager.StopAll() }

// Register adds t; it must be called before StartAll.
func (m *Manager) Register(t BackgroundTask) {
	if t == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, t)
}

// StartAll starts tasks in registration order. If one fails the tasks already started
// are stopped again and the error is returned.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	for _, t := range m.tasks {
		if err := t.Start(runCtx); err != nil {
			m.stopLocked()
			return fmt.Errorf("start task %s: %w", t.Name(), err)
		}
		m.started = append(m.started, t)
		logger.Infof("Background task started name=%s", t.Name())
	}
	return nil
}

// StopAll cancels the shared context and stops started tasks in reverse order.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

func (m *Manager) stopLocked() error {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		t := m.started[i]
		if err := t.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop task %s: %w", t.Name(), err))
			continue
		}
		logger.Infof("Background task stopped name=%s", t.Name())
	}
	m.started = nil
	return errors.Join(errs...)
}
