package store

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/kart-io/paperline/internal/pkg/docutil"
	errs "github.com/kart-io/paperline/pkg/utils/errors"
	"github.com/kart-io/paperline/pkg/utils/json"
)

// JSONLRecord JSONL 文件中的一行。
type JSONLRecord struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata"`
}

// JSONLSink 以追加方式把向量写入 JSON Lines 文件。
type JSONLSink struct {
	path string

	mu   sync.Mutex
	file *os.File
}

var _ VectorSink = (*JSONLSink)(nil)

// NewJSONLSink 打开（必要时创建）JSONL 文件。
func NewJSONLSink(path string) (*JSONLSink, error) {
	if err := docutil.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, errs.ErrPersistenceFailure.WithCause(err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errs.ErrPersistenceFailure.WithCause(err)
	}
	return &JSONLSink{path: path, file: f}, nil
}

// Add implements VectorSink. 每批写入后同步到磁盘。
func (s *JSONLSink) Add(_ context.Context, ids []string, vectors [][]float32, metadatas []map[string]any) error {
	if err := checkBatch(ids, vectors, metadatas); err != nil {
		return errs.ErrPersistenceFailure.WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return errs.ErrPersistenceFailure.WithMessage("sink is closed")
	}

	w := bufio.NewWriter(s.file)
	enc := json.NewEncoder(w)
	for i, id := range ids {
		rec := JSONLRecord{ID: id, Vector: vectors[i], Metadata: metaAt(metadatas, i)}
		if err := enc.Encode(rec); err != nil {
			return errs.ErrPersistenceFailure.WithCause(err)
		}
	}
	if err := w.Flush(); err != nil {
		return errs.ErrPersistenceFailure.WithCause(err)
	}
	if err := s.file.Sync(); err != nil {
		return errs.ErrPersistenceFailure.WithCause(err)
	}
	return nil
}

// Close implements VectorSink.
func (s *JSONLSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
