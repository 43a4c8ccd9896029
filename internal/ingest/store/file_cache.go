package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/kart-io/logger"

	"github.com/kart-io/paperline/internal/pkg/docutil"
	errs "github.com/kart-io/paperline/pkg/utils/errors"
	"github.com/kart-io/paperline/pkg/utils/json"
)

const lockRetryDelay = 50 * time.Millisecond

// FileCache 以 JSON 数组文件保存记录。
// 进程内用互斥锁、进程间用 "<path>.lock" 文件锁串行化写入，写入通过临时文件 + 重命名完成。
type FileCache struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

var _ EmbeddingCache = (*FileCache)(nil)

// NewFileCache 创建文件缓存，文件在首次写入时创建。
func NewFileCache(path string) *FileCache {
	return &FileCache{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path 返回缓存文件路径。
func (c *FileCache) Path() string {
	return c.path
}

// Load implements EmbeddingCache.
func (c *FileCache) Load(ctx context.Context) ([]*CacheRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.acquire(ctx, false); err != nil {
		return nil, err
	}
	defer c.release()

	return c.read(), nil
}

// Upsert implements EmbeddingCache.
func (c *FileCache) Upsert(ctx context.Context, rec *CacheRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.acquire(ctx, true); err != nil {
		return err
	}
	defer c.release()

	records := c.read()
	replaced := false
	key := rec.Key()
	for i, r := range records {
		if r.Key() == key {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errs.ErrCacheWrite.WithCause(err)
	}
	if err := docutil.WriteFileAtomic(c.path, data, 0o644); err != nil {
		return errs.ErrCacheWrite.WithCause(err)
	}
	return nil
}

// read 读取文件，不存在或损坏时返回空列表。调用方需持有锁。
func (c *FileCache) read() []*CacheRecord {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warnw("failed to read embedding cache, starting empty", "path", c.path, "error", err.Error())
		}
		return []*CacheRecord{}
	}
	if len(data) == 0 {
		return []*CacheRecord{}
	}

	var records []*CacheRecord
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Warnw("embedding cache is corrupt, starting empty",
			"path", c.path,
			"error", errs.ErrCacheCorruption.WithCause(err).Error(),
		)
		return []*CacheRecord{}
	}

	out := records[:0]
	for _, r := range records {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (c *FileCache) acquire(ctx context.Context, exclusive bool) error {
	if err := docutil.EnsureDir(filepath.Dir(c.path)); err != nil {
		return errs.ErrCacheWrite.WithCause(err)
	}

	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = c.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = c.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return errs.ErrCacheLocked.WithCause(err)
	}
	if !ok {
		return errs.ErrCacheLocked
	}
	return nil
}

func (c *FileCache) release() {
	if err := c.lock.Unlock(); err != nil {
		logger.Warnw("failed to release cache lock", "path", c.path, "error", err.Error())
	}
}
