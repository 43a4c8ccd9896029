package store

import (
	"path/filepath"

	"github.com/kart-io/paperline/internal/pkg/docutil"
	errs "github.com/kart-io/paperline/pkg/utils/errors"
	"github.com/kart-io/paperline/pkg/utils/json"
)

// ArtifactDirs 各类中间产物的输出目录，空字符串表示不输出该类产物。
type ArtifactDirs struct {
	CleanText  string
	References string
	Tables     string
	Sections   string
}

// Artifacts 按文档 ID 写出中间产物。
type Artifacts struct {
	dirs ArtifactDirs
}

// NewArtifacts 创建产物写入器。
func NewArtifacts(dirs ArtifactDirs) *Artifacts {
	return &Artifacts{dirs: dirs}
}

// WriteCleanText 写出 {dir}/{id}.txt。
func (a *Artifacts) WriteCleanText(documentID, text string) (string, error) {
	return a.write(a.dirs.CleanText, documentID+".txt", []byte(text))
}

// WriteReferences 写出 {dir}/{id}.json。
func (a *Artifacts) WriteReferences(documentID string, refs []string) (string, error) {
	if refs == nil {
		refs = []string{}
	}
	return a.writeJSON(a.dirs.References, documentID, refs)
}

// WriteTables 写出 {dir}/{id}.json。
func (a *Artifacts) WriteTables(documentID string, tables any) (string, error) {
	return a.writeJSON(a.dirs.Tables, documentID, tables)
}

// WriteSections 写出 {dir}/{id}.json。
func (a *Artifacts) WriteSections(documentID string, sections any) (string, error) {
	return a.writeJSON(a.dirs.Sections, documentID, sections)
}

func (a *Artifacts) writeJSON(dir, documentID string, v any) (string, error) {
	if dir == "" {
		return "", nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errs.ErrArtifactWrite.WithCause(err)
	}
	return a.write(dir, documentID+".json", data)
}

func (a *Artifacts) write(dir, name string, data []byte) (string, error) {
	if dir == "" {
		return "", nil
	}
	path := filepath.Join(dir, name)
	if err := docutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", errs.ErrArtifactWrite.WithCause(err)
	}
	return path, nil
}
