package storage

import (
	"context"
	"fmt"

	"stash-go/internal/config"
	"stash-go/internal/stash"
)

// NewStoreFromConfig creates an ObjectStore implementation based on the storage config type.
func NewStoreFromConfig(ctx context.Context, cfg config.StorageConfig) (stash.ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "s3":
		return NewS3StoreFromConfig(ctx, cfg)
	case "filesystem":
		if cfg.UploadRoot == "" {
			return nil, fmt.Errorf("filesystem storage requires upload_root to be set")
		}
		return NewFileSystemStore(cfg.UploadRoot)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
