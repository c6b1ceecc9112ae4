package kvstore

import (
	"context"
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Options picks and configures a backend for Open.
type Options struct {
	Backend string
	Path    string
	Redis   RedisOptions
}

// Open builds the Store named by opts.Backend. An empty backend means memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		return NewMemory(nil), nil
	case BackendFile:
		return NewFile(opts.Path, nil)
	case BackendRedis:
		return NewRedis(ctx, opts.Redis)
	default:
		return nil, fmt.Errorf("kvstore: unknown backend %q", opts.Backend)
	}
}
