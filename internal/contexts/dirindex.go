package contexts

import (
	"context"
	stderrors "errors"
	"io/fs"
	"path/filepath"
	"strings"
)

// DirIndex is a DocumentIndex that counts the files stored under a
// context's documents/ directory. Hidden files and directories are
// skipped.
type DirIndex struct {
	dir  string
	name string
}

// DirIndex returns the directory-backed index of a context.
func (r *Registry) DirIndex(name string) *DirIndex {
	normalized := NormalizeName(name)
	return &DirIndex{dir: r.DocumentsPath(normalized), name: normalized}
}

// Stats counts the regular files under the documents directory. A missing
// directory counts as empty.
func (d *DirIndex) Stats(ctx context.Context) (IndexStats, error) {
	stats := IndexStats{Context: d.name}
	err := filepath.WalkDir(d.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != d.dir && strings.HasPrefix(entry.Name(), ".") {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Type().IsRegular() {
			stats.DocumentCount++
		}
		return nil
	})
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return IndexStats{}, err
	}
	return stats, nil
}
