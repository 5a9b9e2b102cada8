package sessions

import (
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/hpungsan/bdistudio/internal/bdi"
	"github.com/hpungsan/bdistudio/internal/errors"
	"github.com/hpungsan/bdistudio/internal/filestore"
)

// BDI returns a session's canonical BDI document. Legacy shapes on disk
// are normalized on read; a session without a BDI file reads as the empty
// skeleton.
func (s *Store) BDI(id string) (*bdi.Document, error) {
	if err := s.requireSession(id); err != nil {
		return nil, err
	}

	raw, err := filestore.LoadMap(s.path(id, BDIFile))
	if err != nil {
		if stderrors.Is(err, filestore.ErrMissing) {
			doc := bdi.Empty()
			return &doc, nil
		}
		return nil, s.loadError(id, err)
	}

	doc := bdi.FromRaw(raw)
	return &doc, nil
}

// UpdateBDI merges u into the stored document and overwrites the BDI file
// with the five-key result. An unreadable stored document is replaced as if
// it were the empty skeleton.
func (s *Store) UpdateBDI(id string, u bdi.Update) (*bdi.Document, error) {
	return s.mergeBDI(id, u, false)
}

// AppendBDI is UpdateBDI with the supplied desires, beliefs and intentions
// added after the stored ones instead of replacing them. Domain summary
// and beneficiary still replace.
func (s *Store) AppendBDI(id string, u bdi.Update) (*bdi.Document, error) {
	return s.mergeBDI(id, u, true)
}

func (s *Store) mergeBDI(id string, u bdi.Update, appendSeqs bool) (*bdi.Document, error) {
	if err := s.requireSession(id); err != nil {
		return nil, err
	}

	raw, err := filestore.LoadMap(s.path(id, BDIFile))
	switch {
	case err == nil:
	case stderrors.Is(err, filestore.ErrMissing):
	case filestore.IsParseError(err):
		s.logger.Warn("malformed BDI document replaced", zap.String("session_id", id), zap.Error(err))
		raw = nil
	default:
		return nil, errors.NewInternal(err)
	}

	if appendSeqs {
		current := bdi.FromRaw(raw)
		u.Desires = concat(current.Desires, u.Desires)
		u.Beliefs = concat(current.Beliefs, u.Beliefs)
		u.Intentions = concat(current.Intentions, u.Intentions)
	}

	doc := bdi.Merge(raw, u)
	if err := filestore.Save(s.path(id, BDIFile), doc); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &doc, nil
}

// concat returns base followed by extra. A nil extra stays nil ("no update").
func concat(base []any, extra *[]any) *[]any {
	if extra == nil {
		return nil
	}
	out := make([]any, 0, len(base)+len(*extra))
	out = append(out, base...)
	out = append(out, *extra...)
	return &out
}

// ReportOutput contains the result of WriteReport.
type ReportOutput struct {
	Path     string `json:"path,omitempty"`
	Markdown string `json:"markdown"`
}

// Report renders the session's BDI document as Markdown without writing
// anything.
func (s *Store) Report(id string) (string, error) {
	sess, err := s.load(id)
	if err != nil {
		return "", err
	}
	doc, err := s.BDI(id)
	if err != nil {
		return "", err
	}
	return bdi.Markdown(sess.Metadata.Name, *doc), nil
}

// WriteReport renders the session's BDI document as Markdown and stores it
// in the session directory.
func (s *Store) WriteReport(id string) (*ReportOutput, error) {
	md, err := s.Report(id)
	if err != nil {
		return nil, err
	}

	path, err := s.SessionFilePath(id, ReportFile)
	if err != nil {
		return nil, err
	}
	if err := filestore.WriteFile(path, []byte(md)); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ReportOutput{Path: path, Markdown: md}, nil
}
