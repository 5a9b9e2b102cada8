package sessions

import (
	"encoding/json"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/hpungsan/bdistudio/internal/contexts"
	"github.com/hpungsan/bdistudio/internal/errors"
	"github.com/hpungsan/bdistudio/internal/filestore"
)

// beliefBaseDoc is a session's belief_base.json. Context belief bases use
// "beliefs_base" instead; see contexts.ReadBeliefBaseFile.
type beliefBaseDoc struct {
	Beliefs []any `json:"beliefs"`
}

// BeliefBaseLocator resolves a context name to its belief base file.
// *contexts.Registry implements it.
type BeliefBaseLocator interface {
	BeliefBasePath(name string) string
}

// BeliefBase returns a session's base beliefs. A missing file reads as
// empty; a malformed one is logged and reads as empty.
func (s *Store) BeliefBase(id string) ([]any, error) {
	if err := s.requireSession(id); err != nil {
		return nil, err
	}

	var doc beliefBaseDoc
	err := filestore.Load(s.path(id, BeliefBaseFile), &doc)
	switch {
	case err == nil:
	case stderrors.Is(err, filestore.ErrMissing):
		return []any{}, nil
	case filestore.IsParseError(err):
		s.logger.Warn("malformed session belief base", zap.String("session_id", id), zap.Error(err))
		return []any{}, nil
	default:
		return nil, errors.NewInternal(err)
	}

	if doc.Beliefs == nil {
		return []any{}, nil
	}
	return doc.Beliefs, nil
}

// UpdateBeliefBase replaces a session's base beliefs.
func (s *Store) UpdateBeliefBase(id string, beliefs []any) error {
	if err := s.requireSession(id); err != nil {
		return err
	}
	if beliefs == nil {
		beliefs = []any{}
	}
	if err := filestore.Save(s.path(id, BeliefBaseFile), beliefBaseDoc{Beliefs: beliefs}); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ImportOutput contains the result of ImportContextBeliefs.
type ImportOutput struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// ImportContextBeliefs copies a context's base beliefs into a session's
// belief base. Entries already present (equal as JSON) are skipped.
// Returns NOT_FOUND when the session or the context belief base is absent.
func (s *Store) ImportContextBeliefs(id, contextName string, locator BeliefBaseLocator) (*ImportOutput, error) {
	existing, err := s.BeliefBase(id)
	if err != nil {
		return nil, err
	}

	incoming, err := contexts.ReadBeliefBaseFile(locator.BeliefBasePath(contextName))
	if err != nil {
		switch {
		case stderrors.Is(err, filestore.ErrMissing):
			return nil, errors.NewNotFound("context", contextName)
		case filestore.IsParseError(err):
			s.logger.Warn("malformed context belief base", zap.String("context", contextName), zap.Error(err))
			return nil, errors.NewNotFound("context", contextName)
		}
		return nil, errors.NewInternal(err)
	}

	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, entry := range existing {
		if key, ok := entryKey(entry); ok {
			seen[key] = struct{}{}
		}
	}

	merged := existing
	out := &ImportOutput{}
	for _, entry := range incoming {
		key, ok := entryKey(entry)
		if ok {
			if _, dup := seen[key]; dup {
				out.Skipped++
				continue
			}
			seen[key] = struct{}{}
		}
		merged = append(merged, entry)
		out.Imported++
	}
	out.Total = len(merged)

	if out.Imported > 0 {
		if err := s.UpdateBeliefBase(id, merged); err != nil {
			return nil, err
		}
	}

	s.logger.Info("context beliefs imported",
		zap.String("session_id", id),
		zap.String("context", contextName),
		zap.Int("imported", out.Imported),
		zap.Int("skipped", out.Skipped))
	return out, nil
}

// entryKey is the canonical JSON encoding of a decoded entry. Map keys are
// sorted by encoding/json, so equal entries encode identically.
func entryKey(entry any) (string, bool) {
	data, err := json.Marshal(entry)
	if err != nil {
		return "", false
	}
	return string(data), true
}
