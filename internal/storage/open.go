package storage

import (
	"context"
	"errors"
	"strings"

	logx "spacebot/pkg/logx"
)

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// Prefixed scopes every key of s under prefix + ".".
func Prefixed(s Store, prefix string) Store {
	if s == nil {
		return nil
	}
	return prefixed{s: s, prefix: prefix + "."}
}

type prefixed struct {
	s      Store
	prefix string
}

func (p prefixed) Get(ctx context.Context, key string) (string, error) {
	return p.s.Get(ctx, p.prefix+key)
}
func (p prefixed) Put(ctx context.Context, key, value string) error {
	return p.s.Put(ctx, p.prefix+key, value)
}
func (p prefixed) Delete(ctx context.Context, key string) error {
	return p.s.Delete(ctx, p.prefix+key)
}

// Close is a no-op; the owner of the underlying store closes it.
func (p prefixed) Close() error { return nil }
