package storage

import (
	"context"
	"strings"

	"github.com/timmy/tenderkg/internal/config"
)

// NewStorage opens the archive bucket described by cfg. An empty type is
// inferred from the endpoint host.
func NewStorage(ctx context.Context, cfg *config.StorageConfig) (ObjectStorage, error) {
	storeType := StorageType(cfg.Type)
	if storeType == "" {
		storeType = detectStorageType(cfg.Endpoint)
	}

	return NewS3Bucket(ctx, &S3Config{
		Type:      storeType,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		PublicURL: cfg.PublicURL,
	})
}

func detectStorageType(endpoint string) StorageType {
	host := strings.ToLower(normalizeEndpoint(endpoint))
	switch {
	case strings.HasSuffix(host, ".r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.HasSuffix(host, ".amazonaws.com") || host == "amazonaws.com":
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
