// Package contexts manages named knowledge contexts: a document collection
// (indexed elsewhere) plus a portable base belief set.
package contexts

import (
	"cmp"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/bdistudio/internal/errors"
	"github.com/hpungsan/bdistudio/internal/filestore"
)

// File and directory names inside contexts/<normalized_name>/.
const (
	MetadataFile   = "context_metadata.json"
	BeliefBaseFile = "belief_base.json"
	DocumentsDir   = "documents"
)

// Metadata is the persisted description of a context.
// DocumentCount and BeliefCount are denormalized for listing.
type Metadata struct {
	Name           string         `json:"name"`
	NormalizedName string         `json:"normalized_name"`
	Description    string         `json:"description"`
	CreatedAt      filestore.Time `json:"created_at"`
	UpdatedAt      filestore.Time `json:"updated_at"`
	DocumentCount  int            `json:"document_count"`
	BeliefCount    int            `json:"belief_count"`
	Status         string         `json:"status,omitempty"`

	// Extra keeps keys written by other tools.
	Extra filestore.Extra `json:"-"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	type plain Metadata
	return filestore.MarshalExtra(plain(m), m.Extra)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	type plain Metadata
	var p plain
	extra, err := filestore.UnmarshalExtra(data, &p)
	if err != nil {
		return err
	}
	*m = Metadata(p)
	m.Extra = extra
	return nil
}

// beliefBaseDoc is the context belief base file. Older files used "beliefs".
type beliefBaseDoc struct {
	BeliefsBase []any `json:"beliefs_base"`
	Beliefs     []any `json:"beliefs,omitempty"`
}

// IndexStats is what the document index reports about a context.
type IndexStats struct {
	DocumentCount int    `json:"document_count"`
	Context       string `json:"context"`
}

// DocumentIndex is the document index of a single context. The registry
// only reads its counters.
type DocumentIndex interface {
	Stats(ctx context.Context) (IndexStats, error)
}

// Registry is CRUD over the contexts/ directory tree.
type Registry struct {
	root   string
	logger *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for soft failures.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry returns a registry rooted at dataDir/contexts.
func NewRegistry(dataDir string, opts ...Option) *Registry {
	r := &Registry{
		root:   filepath.Join(dataDir, "contexts"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the directory holding all contexts.
func (r *Registry) Root() string { return r.root }

// Dir returns the directory of a context. name is normalized first.
func (r *Registry) Dir(name string) string {
	return filepath.Join(r.root, NormalizeName(name))
}

// BeliefBasePath returns the path of a context's belief base file.
// It does not check that the context exists.
func (r *Registry) BeliefBasePath(name string) string {
	return filepath.Join(r.Dir(name), BeliefBaseFile)
}

// DocumentsPath returns the document-index subdirectory of a context.
func (r *Registry) DocumentsPath(name string) string {
	return filepath.Join(r.Dir(name), DocumentsDir)
}

func (r *Registry) metadataPath(name string) string {
	return filepath.Join(r.Dir(name), MetadataFile)
}

// Create creates a context from a display name.
// Fails with ALREADY_EXISTS when a context with the normalized name has
// metadata. A leftover directory without metadata is adopted: its
// documents and belief base are kept.
func (r *Registry) Create(displayName, description string) (_ *Metadata, err error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, errors.NewInvalidRequest("context name is required")
	}

	normalized := NormalizeName(displayName)
	if filestore.Exists(r.metadataPath(normalized)) {
		return nil, errors.NewAlreadyExists("context", normalized)
	}

	dir := r.Dir(normalized)
	if !filestore.Exists(dir) {
		defer func() {
			if err != nil {
				if rmErr := os.RemoveAll(dir); rmErr != nil {
					r.logger.Warn("failed to remove partial context",
						zap.String("context", normalized), zap.Error(rmErr))
				}
			}
		}()
	}

	if err := os.MkdirAll(r.DocumentsPath(normalized), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("create context directory: %w", err))
	}
	if !filestore.Exists(r.BeliefBasePath(normalized)) {
		if err := filestore.Save(r.BeliefBasePath(normalized), beliefBaseDoc{BeliefsBase: []any{}}); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	beliefs, err := r.readBeliefBase(normalized)
	if err != nil {
		return nil, err
	}

	now := filestore.Now()
	meta := &Metadata{
		Name:           displayName,
		NormalizedName: normalized,
		Description:    description,
		CreatedAt:      now,
		UpdatedAt:      now,
		BeliefCount:    len(beliefs),
	}
	if err := filestore.Save(r.metadataPath(normalized), meta); err != nil {
		return nil, errors.NewInternal(err)
	}

	r.logger.Info("context created", zap.String("context", normalized))
	return meta, nil
}

// Get returns a context's metadata, or NOT_FOUND.
// Malformed metadata is logged and reported as NOT_FOUND.
func (r *Registry) Get(name string) (*Metadata, error) {
	normalized := NormalizeName(name)
	meta := &Metadata{}
	if err := filestore.Load(r.metadataPath(normalized), meta); err != nil {
		return nil, r.loadError("context", normalized, err)
	}
	if meta.NormalizedName == "" {
		meta.NormalizedName = normalized
	}
	return meta, nil
}

// ListInput contains parameters for List.
type ListInput struct {
	// Status keeps only contexts whose metadata status equals it.
	// Empty returns every context.
	Status string
}

// List returns all contexts, most recently created first.
// Directories without readable metadata are skipped.
func (r *Registry) List(ctx context.Context, input ListInput) ([]Metadata, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return []Metadata{}, nil
		}
		return nil, errors.NewInternal(err)
	}

	items := make([]Metadata, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		meta := Metadata{}
		if err := filestore.Load(filepath.Join(r.root, entry.Name(), MetadataFile), &meta); err != nil {
			if filestore.IsParseError(err) {
				r.logger.Warn("skipping context with malformed metadata",
					zap.String("context", entry.Name()), zap.Error(err))
			}
			continue
		}
		if meta.NormalizedName == "" {
			meta.NormalizedName = entry.Name()
		}
		if input.Status != "" && meta.Status != input.Status {
			continue
		}
		items = append(items, meta)
	}

	slices.SortStableFunc(items, func(a, b Metadata) int {
		if c := b.CreatedAt.Compare(a.CreatedAt.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.NormalizedName, b.NormalizedName)
	})
	return items, nil
}

// MetadataPatch carries a partial metadata update (nil = don't change).
// The normalized name is the context's identity and cannot be patched.
type MetadataPatch struct {
	Name          *string
	Description   *string
	Status        *string
	DocumentCount *int
	BeliefCount   *int
}

// UpdateMetadata merges patch into a context's metadata and refreshes
// updated_at. Returns NOT_FOUND when the context does not exist.
func (r *Registry) UpdateMetadata(name string, patch MetadataPatch) (*Metadata, error) {
	meta, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, errors.NewInvalidRequest("context name must not be empty")
		}
		meta.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		meta.Description = *patch.Description
	}
	if patch.Status != nil {
		meta.Status = strings.TrimSpace(*patch.Status)
	}
	if patch.DocumentCount != nil {
		if *patch.DocumentCount < 0 {
			return nil, errors.NewInvalidRequest("document_count must be non-negative")
		}
		meta.DocumentCount = *patch.DocumentCount
	}
	if patch.BeliefCount != nil {
		if *patch.BeliefCount < 0 {
			return nil, errors.NewInvalidRequest("belief_count must be non-negative")
		}
		meta.BeliefCount = *patch.BeliefCount
	}
	meta.UpdatedAt = filestore.After(meta.UpdatedAt)

	if err := filestore.Save(r.metadataPath(meta.NormalizedName), meta); err != nil {
		return nil, errors.NewInternal(err)
	}
	return meta, nil
}

// DeleteOutput contains the result of Delete.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	Name    string `json:"normalized_name"`
}

// Delete removes a context's whole subtree (documents, belief base,
// metadata). Deleting a context that does not exist reports Deleted=false
// without error.
func (r *Registry) Delete(name string) (*DeleteOutput, error) {
	normalized := NormalizeName(name)
	dir := r.Dir(normalized)

	if _, err := os.Stat(dir); err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return &DeleteOutput{Deleted: false, Name: normalized}, nil
		}
		return nil, errors.NewInternal(err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("remove context %s: %w", normalized, err))
	}

	r.logger.Info("context deleted", zap.String("context", normalized))
	return &DeleteOutput{Deleted: true, Name: normalized}, nil
}

// BeliefBase returns a context's base beliefs. A missing belief base file
// reads as empty; a malformed one is logged and reads as empty.
func (r *Registry) BeliefBase(name string) ([]any, error) {
	meta, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return r.readBeliefBase(meta.NormalizedName)
}

// ReadBeliefBaseFile reads a context belief base file directly, accepting
// the "beliefs_base" key or the legacy "beliefs" key.
func ReadBeliefBaseFile(path string) ([]any, error) {
	var doc beliefBaseDoc
	if err := filestore.Load(path, &doc); err != nil {
		return nil, err
	}
	switch {
	case doc.BeliefsBase != nil:
		return doc.BeliefsBase, nil
	case doc.Beliefs != nil:
		return doc.Beliefs, nil
	}
	return []any{}, nil
}

func (r *Registry) readBeliefBase(normalized string) ([]any, error) {
	beliefs, err := ReadBeliefBaseFile(r.BeliefBasePath(normalized))
	switch {
	case err == nil:
		return beliefs, nil
	case stderrors.Is(err, filestore.ErrMissing):
		return []any{}, nil
	case filestore.IsParseError(err):
		r.logger.Warn("malformed context belief base",
			zap.String("context", normalized), zap.Error(err))
		return []any{}, nil
	}
	return nil, errors.NewInternal(err)
}

// SaveBeliefBase replaces a context's base beliefs and updates belief_count.
func (r *Registry) SaveBeliefBase(name string, beliefs []any) (*Metadata, error) {
	meta, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if beliefs == nil {
		beliefs = []any{}
	}

	if err := filestore.Save(r.BeliefBasePath(meta.NormalizedName), beliefBaseDoc{BeliefsBase: beliefs}); err != nil {
		return nil, errors.NewInternal(err)
	}

	count := len(beliefs)
	return r.UpdateMetadata(meta.NormalizedName, MetadataPatch{BeliefCount: &count})
}

// RefreshCounts recomputes document_count from the document index and
// belief_count from the belief base file.
func (r *Registry) RefreshCounts(ctx context.Context, name string, index DocumentIndex) (*Metadata, error) {
	meta, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	patch := MetadataPatch{}
	if index != nil {
		stats, err := index.Stats(ctx)
		if err != nil {
			return nil, errors.NewInternal(fmt.Errorf("document index stats: %w", err))
		}
		patch.DocumentCount = &stats.DocumentCount
	}

	beliefs, err := r.readBeliefBase(meta.NormalizedName)
	if err != nil {
		return nil, err
	}
	count := len(beliefs)
	patch.BeliefCount = &count

	return r.UpdateMetadata(meta.NormalizedName, patch)
}

// loadError maps a filestore load failure to the store's error taxonomy.
func (r *Registry) loadError(kind, id string, err error) error {
	switch {
	case stderrors.Is(err, filestore.ErrMissing):
		return errors.NewNotFound(kind, id)
	case filestore.IsParseError(err):
		r.logger.Warn("malformed document treated as missing",
			zap.String(kind, id), zap.Error(err))
		return errors.NewNotFound(kind, id)
	}
	return errors.NewInternal(err)
}
