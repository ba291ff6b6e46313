package storage

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend       string
	Path          string
	Namespace     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open builds the configured backend and scopes it to the namespace. The
// returned close function releases backend resources and is never nil.
func Open(ctx context.Context, opts Options) (Store, func() error, error) {
	noop := func() error { return nil }
	switch opts.Backend {
	case BackendMemory:
		return Scoped(NewMemoryStore(), opts.Namespace), noop, nil
	case BackendFile, "":
		fs, err := NewFileStore(opts.Path)
		if err != nil {
			return nil, noop, err
		}
		return Scoped(fs, opts.Namespace), noop, nil
	case BackendRedis:
		rs, err := NewRedisStore(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		return Scoped(rs, opts.Namespace), rs.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
