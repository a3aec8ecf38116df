package store

import (
	"context"
	"fmt"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string // "memory", "redis" or "postgres"
	Prefix      string
	RedisAddr   string
	RedisDB     int
	PostgresDSN string
}

// Open returns the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(ctx, RedisOptions{
			Addr:   opts.RedisAddr,
			DB:     opts.RedisDB,
			Prefix: opts.Prefix,
		})
	case "postgres":
		return OpenPostgres(ctx, opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
