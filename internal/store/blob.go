package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

// Blob is the single-key persistence surface for the reservation set. The
// whole serialized collection is read and written as one unit; readers never
// observe a partial write.
type Blob interface {
	// Load returns the stored payload, or (nil, nil) when nothing has been
	// stored yet.
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// FileBlob persists the collection to a single JSON file, written atomically
// via a temp file in the same directory plus rename.
type FileBlob struct {
	Path string
}

func (b *FileBlob) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (b *FileBlob) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".staycal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, b.Path)
}

// RedisBlob persists the collection under one fixed Redis key.
type RedisBlob struct {
	Client *redis.Client
	Key    string
}

func (b *RedisBlob) Load(ctx context.Context) ([]byte, error) {
	data, err := b.Client.Get(ctx, b.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *RedisBlob) Save(ctx context.Context, data []byte) error {
	return b.Client.Set(ctx, b.Key, data, 0).Err()
}
