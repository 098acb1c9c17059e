// Command packager runs a single packaging job in the foreground and prints its outcome.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"streaming-engine/ddd/domain/entity"
	"streaming-engine/ddd/domain/vo"
	"streaming-engine/ddd/infrastructure/worker"
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/logger"
	"streaming-engine/pkg/manager"

	_ "streaming-engine/internal/resource"
)

func main() {
	var (
		cfgPath  = flag.String("config", "configs/config.dev.yaml", "config file")
		source   = flag.String("source", "", "local file, or object key when -bucket is set")
		bucket   = flag.String("bucket", "", "source bucket")
		dest     = flag.String("dest", "", "destination prefix, defaults to <upload_prefix>/<id>")
		keyURL   = flag.String("key-url", "", "enable AES-128 with this key URL")
		callback = flag.String("callback", "", "notification URL")
	)
	flag.Parse()
	_ = godotenv.Load()

	if *source == "" {
		fmt.Fprintln(os.Stderr, "-source is required")
		os.Exit(2)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	config.SetGlobalConfig(cfg)
	logger.SetGlobalLogger(logger.NewLogger(cfg))

	manager.MustInitResources()
	defer manager.CloseResources()

	id := uuid.NewString()
	destination := strings.TrimSpace(*dest)
	if destination == "" {
		destination = path.Join(cfg.Storage.UploadPrefix, id)
	}
	job, err := entity.NewTranscodeJob(entity.TranscodeJobParams{
		ID:            id,
		SourceLocator: *source,
		SourceBucket:  *bucket,
		Renditions:    vo.SpecsFromPresets(cfg.Transcode.Renditions),
		Destination:   destination,
		KeyURL:        *keyURL,
		CallbackURL:   *callback,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid job: %v\n", err)
		os.Exit(2)
	}

	orchestrator, err := worker.NewOrchestrator(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init pipeline: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	outcome := orchestrator.Run(ctx, job)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(outcome)
	if !outcome.Success {
		os.Exit(1)
	}
}
