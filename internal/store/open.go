package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoSim-25-26J-441/contagion-core/pkg/config"
)

// Open connects the backend selected in cfg.
func Open(ctx context.Context, cfg config.Store) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case "file", "":
		return NewFileBackend(cfg.Path), nil
	case "memory":
		return NewMemoryBackend(), nil
	case "redis":
		return DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key)
	case "postgres":
		return DialPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.Table)
	case "s3":
		return DialS3(ctx, S3Config{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Key:            cfg.S3.Key,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
