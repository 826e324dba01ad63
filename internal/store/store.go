// Package store persists the snapshot artifacts under one namespace: a
// directory on disk or a key prefix in Redis.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when the artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Store reads and writes named artifacts. Put replaces any previous content.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}

// FileStore keeps artifacts as files in Dir, created on first write.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore { return &FileStore{Dir: dir} }

// Put writes data through a temp file and rename so readers never observe a
// partially written artifact.
func (s *FileStore) Put(_ context.Context, name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filepath.Join(s.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

// Options selects and configures a backend.
type Options struct {
	Backend string // file or redis
	Dir     string
	Redis   RedisConfig
}

// Open returns the Store selected by o and a func releasing it.
func Open(ctx context.Context, o Options) (Store, func() error, error) {
	switch o.Backend {
	case "", "file":
		return NewFileStore(o.Dir), func() error { return nil }, nil
	case "redis":
		client, err := DialRedis(ctx, o.Redis)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(client, o.Redis.Prefix), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", o.Backend)
	}
}
