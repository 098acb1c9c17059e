package storage

import (
	"fmt"
	"strings"

	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/internal/resource"
	"streaming-engine/pkg/config"
)

// NewObjectStorage selects the backend named by storage.backend.
func NewObjectStorage(cfg *config.Config) (gateway.ObjectStorage, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case "local":
		return NewLocalStorage(cfg.Storage.LocalRoot)
	case "minio", "":
		client := resource.DefaultMinioResource().GetClient()
		if client == nil {
			return nil, fmt.Errorf("minio resource is not open")
		}
		return NewMinioStorage(client, cfg.Publish), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
