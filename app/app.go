package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	jobapp "streaming-engine/ddd/application/app"
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/logger"
	"streaming-engine/pkg/manager"
	"streaming-engine/pkg/middleware"
	"streaming-engine/pkg/registry"
	"streaming-engine/pkg/task"

	_ "streaming-engine/ddd/adapter/component"
	_ "streaming-engine/ddd/adapter/http"
	_ "streaming-engine/ddd/infrastructure/worker"

	// 导入资源包以触发init函数
	_ "streaming-engine/internal/resource"
)

const serviceName = "streaming-engine"

func Run() {
	// 先使用标准输出确保能看到日志
	fmt.Println("[STARTUP] Starting streaming engine...")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("[WARN] Failed to load .env: %v\n", err)
	}

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}
	// 设置全局配置（必须在资源管理器初始化之前）
	config.SetGlobalConfig(cfg)
	fmt.Printf("[STARTUP] Config file loaded: %s\n", cfgPath)

	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	logger.Debug("Logger initialized", map[string]interface{}{
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
		"output": cfg.Log.Output,
	})
	logger.Infof("Streaming engine starting storage=%s queue=%s worker=%t", cfg.Storage.Backend, cfg.Worker.QueueBackend, cfg.Worker.Enabled)

	// 只有本进程执行打包时才需要 FFmpeg
	if cfg.Worker.Enabled {
		mustFindBinaries(cfg.Transcode.FFmpeg)
	}

	manager.MustInitResources()
	defer manager.CloseResources()
	logger.Infof("Resource manager initialized")

	deps := &manager.Dependencies{
		Config: cfg,
		JobApp: jobapp.DefaultJobApp(),
	}
	manager.MustInitComponents(deps)
	logger.Infof("All components initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := task.StartAll(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("Failed to start background tasks error=%v", err))
	}

	// gRPC 只暴露标准健康检查
	grpcServer, healthServer := startGRPC(cfg.GRPCServer)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), gin.Logger(), middleware.RequestContextMiddleware())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   serviceName,
			"timestamp": time.Now().Unix(),
		})
	})
	manager.RegisterAllRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(fmt.Sprintf("Failed to start HTTP server error=%v", err))
		}
	}()
	logger.Infof("HTTP server started address=%s health_url=%s", addr, fmt.Sprintf("http://%s/health", addr))

	var reg *registry.ServiceRegistry
	if cfg.ServiceRegistry.Enabled {
		reg = mustRegister(cfg)
	}

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Received shutdown signal, shutting down...")

	if reg != nil {
		if err := reg.Deregister(); err != nil {
			logger.Warnf("Service deregistration failed error=%v", err)
		}
	}
	if healthServer != nil {
		healthServer.Shutdown()
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to close error=%v", err)
	}

	// 等待进行中的任务结束
	stopped := make(chan error, 1)
	go func() { stopped <- task.StopAll() }()
	select {
	case err := <-stopped:
		if err != nil {
			logger.Warnf("Background tasks stopped with errors error=%v", err)
		}
	case <-time.After(cfg.Worker.ShutdownGracePeriod):
		logger.Warnf("Background tasks did not stop within %s", cfg.Worker.ShutdownGracePeriod)
	}
	manager.Shutdown()

	logger.Infof("Server exited safely")
	logService.Close()
	fmt.Println("[SHUTDOWN] Streaming engine exited safely")
}

func mustFindBinaries(ff config.FFmpegConfig) {
	for _, bin := range []string{ff.BinaryPath, ff.ProbePath} {
		if _, err := exec.LookPath(bin); err != nil {
			logger.Fatal(fmt.Sprintf("Binary not found, install it or set transcode.ffmpeg paths binary=%s error=%s", bin, err.Error()))
		}
	}
	if strings.Contains(strings.ToLower(ff.VideoCodec), "nvenc") {
		out, err := exec.Command(ff.BinaryPath, "-hide_banner", "-encoders").Output()
		if err == nil && !strings.Contains(strings.ToLower(string(out)), "nvenc") {
			logger.Warnf("NVENC encoder not detected in FFmpeg, codec=%s", ff.VideoCodec)
		}
	}
}

func startGRPC(cfg config.GRPCServerConfig) (*grpc.Server, *health.Server) {
	if !cfg.Enabled {
		return nil, nil
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to listen on gRPC port address=%s error=%v", addr, err))
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	go func() {
		logger.Infof("gRPC server started address=%s", addr)
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Errorf("gRPC server encountered an error error=%v", err)
		}
	}()
	return srv, hs
}

func mustRegister(cfg *config.Config) *registry.ServiceRegistry {
	host := cfg.ServiceRegistry.RegisterHost
	if host == "" {
		host = cfg.Server.Host
	}
	addr := net.JoinHostPort(host, fmt.Sprint(cfg.Server.Port))
	reg, err := registry.NewServiceRegistry(cfg.ServiceRegistry, addr)
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to create service registry error=%v", err))
	}
	if err := reg.Register(); err != nil {
		logger.Fatal(fmt.Sprintf("Failed to register service error=%v", err))
	}
	logger.Infof("Service registered key=%s address=%s", reg.Key(), addr)
	return reg
}

// resolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func resolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	switch env {
	case "prod", "production":
		return "configs/config_prod.yaml"
	case "dev", "development":
		return "configs/config.dev.yaml"
	default:
		return fmt.Sprintf("configs/config.%s.yaml", env)
	}
}
