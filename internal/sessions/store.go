// Package sessions persists authoring sessions: one directory per session
// holding metadata, LLM configuration, a belief base and the BDI document.
package sessions

import (
	"cmp"
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/bdistudio/internal/bdi"
	"github.com/hpungsan/bdistudio/internal/errors"
	"github.com/hpungsan/bdistudio/internal/filestore"
)

// File names inside sessions/<session_id>/.
const (
	MetadataFile    = "metadata.json"
	ConfigFile      = "config.json"
	BeliefBaseFile  = "belief_base.json"
	BDIFile         = "current_bdi.json"
	ChatHistoryFile = "chat_history_believer.json"
	ReportFile      = "bdi_report.md"
)

// Session is the composite view returned by Get and List.
type Session struct {
	SessionID string   `json:"session_id"`
	Metadata  Metadata `json:"metadata"`
	Config    Config   `json:"config"`
}

// Store is CRUD over the sessions/ directory tree.
type Store struct {
	root   string
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for soft failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore returns a store rooted at dataDir/sessions.
func NewStore(dataDir string, opts ...Option) *Store {
	s := &Store{
		root:   filepath.Join(dataDir, "sessions"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the directory holding all sessions.
func (s *Store) Root() string { return s.root }

// validID reports whether id can name a single directory under root.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func (s *Store) dir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *Store) path(id, name string) string {
	return filepath.Join(s.root, id, name)
}

// CreateInput contains parameters for Create.
type CreateInput struct {
	Name        string
	Description string
	Tags        []string
	Context     string
	LLMProvider string
	LLMModel    string
	// LLMSettings defaults to DefaultLLMSettings when nil.
	LLMSettings map[string]any
}

// Create writes a new session: active metadata, config, an empty belief
// base and the empty BDI skeleton. The referenced context is not checked.
func (s *Store) Create(input CreateInput) (*Session, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewInvalidRequest("session name is required")
	}

	settings := input.LLMSettings
	if settings == nil {
		settings = DefaultLLMSettings()
	}
	if err := ValidateLLMSettings(settings); err != nil {
		return nil, err
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	now := filestore.Now()
	meta := Metadata{
		SessionID:    id,
		Name:         name,
		Description:  input.Description,
		Tags:         normalizeTags(input.Tags),
		CreatedAt:    now,
		LastAccessed: now,
		Status:       StatusActive,
	}
	cfg := Config{
		Context:     contextRef(input.Context),
		LLMProvider: input.LLMProvider,
		LLMModel:    input.LLMModel,
		LLMSettings: settings,
	}

	writes := []struct {
		file string
		doc  any
	}{
		{MetadataFile, meta},
		{ConfigFile, cfg},
		{BeliefBaseFile, beliefBaseDoc{Beliefs: []any{}}},
		{BDIFile, bdi.Empty()},
	}
	for _, w := range writes {
		if err := filestore.Save(s.path(id, w.file), w.doc); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	s.logger.Info("session created", zap.String("session_id", id), zap.String("context", cfg.ContextName()))
	return &Session{SessionID: id, Metadata: meta, Config: cfg}, nil
}

// Get returns a session's metadata and config, or NOT_FOUND when either is
// missing. Every successful read refreshes and persists last_accessed.
func (s *Store) Get(id string) (*Session, error) {
	sess, err := s.load(id)
	if err != nil {
		return nil, err
	}

	sess.Metadata.LastAccessed = filestore.After(sess.Metadata.LastAccessed)
	if err := filestore.Save(s.path(id, MetadataFile), sess.Metadata); err != nil {
		return nil, errors.NewInternal(err)
	}
	return sess, nil
}

// ListInput contains parameters for List.
type ListInput struct {
	// Status keeps only sessions in this status. Empty returns all.
	Status Status
}

// List returns every complete session, most recently accessed first.
// Sessions missing metadata or config are skipped. List does not touch
// last_accessed.
func (s *Store) List(ctx context.Context, input ListInput) ([]Session, error) {
	if input.Status != "" && !input.Status.Valid() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid status filter %q", input.Status))
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return []Session{}, nil
		}
		return nil, errors.NewInternal(err)
	}

	items := make([]Session, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		sess, err := s.load(entry.Name())
		if err != nil {
			if !errors.Is(err, errors.ErrNotFound) {
				return nil, err
			}
			continue
		}
		if input.Status != "" && sess.Metadata.Status != input.Status {
			continue
		}
		items = append(items, *sess)
	}

	slices.SortStableFunc(items, func(a, b Session) int {
		if c := b.Metadata.LastAccessed.Compare(a.Metadata.LastAccessed.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.SessionID, b.SessionID)
	})
	return items, nil
}

// Delete archives a session. Sessions are never removed from disk.
func (s *Store) Delete(id string) (*Metadata, error) {
	archived := string(StatusArchived)
	return s.UpdateMetadata(id, MetadataInput{Status: &archived})
}

// SessionFilePath returns the path of an auxiliary file inside the session
// directory. Returns NOT_FOUND when the directory does not exist and
// INVALID_REQUEST when fileName is not a plain file name.
func (s *Store) SessionFilePath(id, fileName string) (string, error) {
	if fileName == "" || fileName == "." || fileName == ".." ||
		strings.Contains(fileName, "..") || strings.ContainsAny(fileName, `/\`) {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid file name %q", fileName))
	}
	if !validID(id) || !filestore.DirExists(s.dir(id)) {
		return "", errors.NewNotFound("session", id)
	}
	return s.path(id, fileName), nil
}

// load reads metadata and config without touching last_accessed.
func (s *Store) load(id string) (*Session, error) {
	if !validID(id) {
		return nil, errors.NewNotFound("session", id)
	}

	var meta Metadata
	if err := filestore.Load(s.path(id, MetadataFile), &meta); err != nil {
		return nil, s.loadError(id, err)
	}
	var cfg Config
	if err := filestore.Load(s.path(id, ConfigFile), &cfg); err != nil {
		return nil, s.loadError(id, err)
	}

	if meta.SessionID == "" {
		meta.SessionID = id
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	if cfg.LLMSettings == nil {
		cfg.LLMSettings = map[string]any{}
	}
	return &Session{SessionID: id, Metadata: meta, Config: cfg}, nil
}

// requireSession returns NOT_FOUND unless the session has metadata.
func (s *Store) requireSession(id string) error {
	if !validID(id) || !filestore.Exists(s.path(id, MetadataFile)) {
		return errors.NewNotFound("session", id)
	}
	return nil
}

// loadError maps a filestore load failure: missing and malformed documents
// both read as NOT_FOUND, the latter with a warning.
func (s *Store) loadError(id string, err error) error {
	switch {
	case stderrors.Is(err, filestore.ErrMissing):
		return errors.NewNotFound("session", id)
	case filestore.IsParseError(err):
		s.logger.Warn("malformed session document treated as missing",
			zap.String("session_id", id), zap.Error(err))
		return errors.NewNotFound("session", id)
	}
	return errors.NewInternal(err)
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
