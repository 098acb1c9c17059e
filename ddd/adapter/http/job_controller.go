package http

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"streaming-engine/ddd/application/app"
	"streaming-engine/ddd/application/cqe"
	"streaming-engine/pkg/assert"
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/errno"
	"streaming-engine/pkg/logger"
	"streaming-engine/pkg/manager"
	"streaming-engine/pkg/restapi"
)

var (
	jobControllerOnce      sync.Once
	singletonJobController *JobController
)

type JobControllerPlugin struct{}

func (p *JobControllerPlugin) Name() string {
	return "jobControllerPlugin"
}

func (p *JobControllerPlugin) MustCreateController() manager.Controller {
	assert.NotCircular()
	jobControllerOnce.Do(func() {
		singletonJobController = NewJobController(app.DefaultJobApp(), config.GetGlobalConfig())
	})
	assert.NotNil(singletonJobController)
	return singletonJobController
}

// JobController 任务提交与对象管理
type JobController struct {
	jobApp    app.JobApp
	maxUpload int64
}

func NewJobController(jobApp app.JobApp, cfg *config.Config) *JobController {
	maxUpload := int64(cfg.Server.MaxUploadMB) << 20
	if maxUpload <= 0 {
		maxUpload = 2 << 30
	}
	return &JobController{jobApp: jobApp, maxUpload: maxUpload}
}

func (c *JobController) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/jobs", c.SubmitJob)          // 提交打包任务
		v1.GET("/jobs/queue", c.QueueStatus)   // 队列长度
		v1.POST("/sources", c.UploadSource)    // 上传原始视频
		v1.GET("/objects", c.ListObjects)      // 按前缀列出
		v1.DELETE("/objects", c.DeleteObjects) // 按前缀删除
		v1.POST("/callbacks/sample", c.SampleCallback)
	}
}

// SubmitJob 提交打包任务
func (c *JobController) SubmitJob(ctx *gin.Context) {
	var cmd cqe.SubmitJobCmd
	if err := ctx.ShouldBindJSON(&cmd); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	job, err := c.jobApp.SubmitJob(ctx.Request.Context(), &cmd)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Accepted(ctx, job)
}

func (c *JobController) QueueStatus(ctx *gin.Context) {
	restapi.Success(ctx, gin.H{"pending": c.jobApp.QueueSize(ctx.Request.Context())})
}

// UploadSource 上传原始视频，字段名 file
func (c *JobController) UploadSource(ctx *gin.Context) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.maxUpload)
	fh, err := ctx.FormFile("file")
	if err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrMissingParam, err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrUploadError, err))
		return
	}
	defer f.Close()

	up, err := c.jobApp.UploadSource(ctx.Request.Context(), fh.Filename, f, fh.Size, fh.Header.Get("Content-Type"))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, up)
}

func (c *JobController) ListObjects(ctx *gin.Context) {
	var q cqe.ObjectQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	list, err := c.jobApp.ListObjects(ctx.Request.Context(), &q)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, list)
}

func (c *JobController) DeleteObjects(ctx *gin.Context) {
	var q cqe.ObjectQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	if err := c.jobApp.DeleteObjects(ctx.Request.Context(), &q); err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, gin.H{"bucket": q.Bucket, "prefix": q.Prefix})
}

// SampleCallback 本地调试用的通知接收端，只记录表单内容
func (c *JobController) SampleCallback(ctx *gin.Context) {
	if err := ctx.Request.ParseForm(); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	form := ctx.Request.PostForm
	logger.Info("Sample callback received", map[string]interface{}{
		"id":      form.Get("id"),
		"success": form.Get("success"),
		"errors":  form["errors"],
	})
	restapi.Success(ctx, gin.H{"id": form.Get("id"), "success": form.Get("success"), "errors": form["errors"]})
}
