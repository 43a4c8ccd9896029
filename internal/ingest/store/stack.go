package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/kart-io/logger"

	"github.com/kart-io/paperline/internal/pkg/docutil"
	errs "github.com/kart-io/paperline/pkg/utils/errors"
	"github.com/kart-io/paperline/pkg/utils/json"
)

// Stack 记录正在处理的文档路径。处理前 Push、结束后 Remove，
// 进程崩溃后残留的条目即为未完成的文档。
type Stack struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

// NewStack 创建栈文件。
func NewStack(path string) *Stack {
	return &Stack{path: path, lock: flock.New(path + ".lock")}
}

// Push 追加路径（已存在时不重复）。
func (s *Stack) Push(ctx context.Context, path string) error {
	return s.update(ctx, func(items []string) []string {
		for _, p := range items {
			if p == path {
				return items
			}
		}
		return append(items, path)
	})
}

// Remove 删除路径。
func (s *Stack) Remove(ctx context.Context, path string) error {
	return s.update(ctx, func(items []string) []string {
		out := items[:0]
		for _, p := range items {
			if p != path {
				out = append(out, p)
			}
		}
		return out
	})
}

// Items 返回当前栈中的路径。
func (s *Stack) Items(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return s.read(), nil
}

func (s *Stack) update(ctx context.Context, fn func([]string) []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	data, err := json.MarshalIndent(fn(s.read()), "", "  ")
	if err != nil {
		return errs.ErrArtifactWrite.WithCause(err)
	}
	if err := docutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return errs.ErrArtifactWrite.WithCause(err)
	}
	return nil
}

func (s *Stack) read() []string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warnw("failed to read stack file", "path", s.path, "error", err.Error())
		}
		return []string{}
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		logger.Warnw("stack file is corrupt, starting empty", "path", s.path, "error", err.Error())
		return []string{}
	}
	return items
}

func (s *Stack) acquire(ctx context.Context) error {
	if err := docutil.EnsureDir(filepath.Dir(s.path)); err != nil {
		return errs.ErrArtifactWrite.WithCause(err)
	}
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return errs.ErrCacheLocked.WithCause(err)
	}
	if !ok {
		return errs.ErrCacheLocked
	}
	return nil
}

func (s *Stack) release() {
	if err := s.lock.Unlock(); err != nil {
		logger.Warnw("failed to release stack lock", "path", s.path, "error", err.Error())
	}
}
