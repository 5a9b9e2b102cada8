package sessions

import (
	stderrors "errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/bdistudio/internal/errors"
	"github.com/hpungsan/bdistudio/internal/filestore"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusDraft    Status = "draft"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusArchived, StatusDraft:
		return true
	}
	return false
}

// Metadata is the persisted metadata.json of a session.
type Metadata struct {
	SessionID    string         `json:"session_id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Tags         []string       `json:"tags"`
	CreatedAt    filestore.Time `json:"created_at"`
	LastAccessed filestore.Time `json:"last_accessed"`
	Status       Status         `json:"status"`

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

// chatHistoryDoc is the auxiliary chat transcript file.
type chatHistoryDoc struct {
	Messages []any `json:"messages"`
}

// MetadataInput contains parameters for UpdateMetadata (nil = don't change).
type MetadataInput struct {
	Name        *string
	Description *string
	Tags        *[]string
	Status      *string
	// ChatHistory is written to its own file, not to metadata.json.
	ChatHistory *[]any
}

// UpdateMetadata merges the supplied fields into a session's metadata and
// refreshes last_accessed. Returns NOT_FOUND when the session is absent.
func (s *Store) UpdateMetadata(id string, input MetadataInput) (*Metadata, error) {
	if err := s.requireSession(id); err != nil {
		return nil, err
	}

	var meta Metadata
	if err := filestore.Load(s.path(id, MetadataFile), &meta); err != nil {
		return nil, s.loadError(id, err)
	}
	if meta.SessionID == "" {
		meta.SessionID = id
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errors.NewInvalidRequest("session name must not be empty")
		}
		meta.Name = name
	}
	if input.Description != nil {
		meta.Description = *input.Description
	}
	if input.Tags != nil {
		meta.Tags = normalizeTags(*input.Tags)
	}
	if input.Status != nil {
		status := Status(strings.TrimSpace(*input.Status))
		if !status.Valid() {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid status %q: must be active, archived or draft", *input.Status))
		}
		meta.Status = status
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	meta.LastAccessed = filestore.After(meta.LastAccessed)

	if input.ChatHistory != nil {
		messages := *input.ChatHistory
		if messages == nil {
			messages = []any{}
		}
		if err := filestore.Save(s.path(id, ChatHistoryFile), chatHistoryDoc{Messages: messages}); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	if err := filestore.Save(s.path(id, MetadataFile), meta); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &meta, nil
}

// ChatHistory returns the stored chat transcript of a session, or an empty
// slice when none was saved.
func (s *Store) ChatHistory(id string) ([]any, error) {
	if err := s.requireSession(id); err != nil {
		return nil, err
	}

	var doc chatHistoryDoc
	err := filestore.Load(s.path(id, ChatHistoryFile), &doc)
	switch {
	case err == nil:
	case stderrors.Is(err, filestore.ErrMissing):
		return []any{}, nil
	case filestore.IsParseError(err):
		s.logger.Warn("malformed chat history", zap.String("session_id", id), zap.Error(err))
		return []any{}, nil
	default:
		return nil, errors.NewInternal(err)
	}

	if doc.Messages == nil {
		return []any{}, nil
	}
	return doc.Messages, nil
}

// normalizeTags trims tags and drops blanks and duplicates, keeping the
// first occurrence.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
