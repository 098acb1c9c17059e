package http

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"streaming-engine/ddd/application/app"
	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/pkg/assert"
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/manager"
	"streaming-engine/pkg/middleware"
	"streaming-engine/pkg/restapi"
)

var (
	streamControllerOnce      sync.Once
	singletonStreamController *StreamController
)

type StreamControllerPlugin struct{}

func (p *StreamControllerPlugin) Name() string {
	return "streamControllerPlugin"
}

func (p *StreamControllerPlugin) MustCreateController() manager.Controller {
	assert.NotCircular()
	streamControllerOnce.Do(func() {
		singletonStreamController = NewStreamController(app.DefaultJobApp(), config.GetGlobalConfig().JWT)
	})
	assert.NotNil(singletonStreamController)
	return singletonStreamController
}

// StreamController 播放列表、分片与密钥分发
type StreamController struct {
	jobApp app.JobApp
	jwt    config.JWTConfig
}

func NewStreamController(jobApp app.JobApp, jwt config.JWTConfig) *StreamController {
	return &StreamController{jobApp: jobApp, jwt: jwt}
}

func (c *StreamController) RegisterRoutes(router gin.IRouter) {
	router.GET("/api/v1/streams/:id", c.Stream)
	router.GET("/api/v1/streams/:id/*path", c.Stream)
	router.GET("/keys/:id", middleware.KeyAccessMiddleware(c.jwt), c.Key)
}

// Stream 返回播放列表或分片，目录路径返回主播放列表
func (c *StreamController) Stream(ctx *gin.Context) {
	obj, err := c.jobApp.OpenStream(ctx.Request.Context(), ctx.Param("id"), ctx.Param("path"))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	serveObject(ctx, obj)
}

// Key 返回加密密钥
func (c *StreamController) Key(ctx *gin.Context) {
	obj, err := c.jobApp.OpenKey(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	serveObject(ctx, obj)
}

func serveObject(ctx *gin.Context, obj *gateway.Object) {
	defer obj.Close()
	ctx.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj, map[string]string{
		"Cache-Control": "no-cache, no-store, must-revalidate",
		"Pragma":        "no-cache",
		"Expires":       "0",
	})
}
