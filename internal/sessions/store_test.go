package sessions

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hpungsan/bdistudio/internal/errors"
	"github.com/hpungsan/bdistudio/internal/filestore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func createSession(t *testing.T, s *Store, name string) *Session {
	t.Helper()
	sess, err := s.Create(CreateInput{
		Name:        name,
		Context:     "demo",
		LLMProvider: "Gemini",
		LLMModel:    "gemini-2.5-pro",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return sess
}

func TestCreate(t *testing.T) {
	s := newTestStore(t)

	sess, err := s.Create(CreateInput{
		Name:        "Alpha",
		Description: "first",
		Tags:        []string{"x", " y ", "x", ""},
		Context:     "demo",
		LLMProvider: "Gemini",
		LLMModel:    "gemini-2.5-pro",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if len(sess.SessionID) != 26 {
		t.Errorf("SessionID = %q, want 26-char ULID", sess.SessionID)
	}
	if sess.Metadata.Status != StatusActive {
		t.Errorf("Status = %q, want %q", sess.Metadata.Status, StatusActive)
	}
	if !sess.Metadata.CreatedAt.Equal(sess.Metadata.LastAccessed.Time) {
		t.Errorf("CreatedAt %v != LastAccessed %v", sess.Metadata.CreatedAt, sess.Metadata.LastAccessed)
	}
	if got := sess.Metadata.Tags; len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("Tags = %v, want [x y]", got)
	}
	if sess.Config.ContextName() != "demo" || sess.Config.LLMProvider != "Gemini" || sess.Config.LLMModel != "gemini-2.5-pro" {
		t.Errorf("unexpected config: %+v", sess.Config)
	}

	for _, name := range []string{MetadataFile, ConfigFile, BeliefBaseFile, BDIFile} {
		if !filestore.Exists(filepath.Join(s.Root(), sess.SessionID, name)) {
			t.Errorf("%s was not written", name)
		}
	}

	beliefs, err := s.BeliefBase(sess.SessionID)
	if err != nil {
		t.Fatalf("BeliefBase failed: %v", err)
	}
	if len(beliefs) != 0 {
		t.Errorf("belief base = %v, want empty", beliefs)
	}
}

func TestCreate_DefaultSettings(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s, "defaults")

	raw, err := filestore.LoadMap(filepath.Join(s.Root(), sess.SessionID, ConfigFile))
	if err != nil {
		t.Fatalf("LoadMap failed: %v", err)
	}
	cfg, _ := raw["llm_settings"].(map[string]any)

	want := map[string]float64{"temperature": 0.7, "max_tokens": 2000, "top_p": 0.9}
	if len(cfg) != len(want) {
		t.Fatalf("llm_settings = %v, want %v", cfg, want)
	}
	for k, v := range want {
		if cfg[k] != v {
			t.Errorf("llm_settings[%s] = %v, want %v", k, cfg[k], v)
		}
	}
}

func TestCreate_Validation(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name  string
		input CreateInput
	}{
		{"blank name", CreateInput{Name: "  "}},
		{"temperature out of range", CreateInput{Name: "a", LLMSettings: map[string]any{"temperature": 3.0}}},
		{"bad reasoning effort", CreateInput{Name: "a", LLMSettings: map[string]any{"reasoning_effort": "extreme"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(tt.input)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected INVALID_REQUEST, got %v", err)
			}
		})
	}

	if entries, _ := os.ReadDir(s.Root()); len(entries) != 0 {
		t.Errorf("rejected creates left %d session directories", len(entries))
	}
}

func TestGet_TouchesLastAccessed(t *testing.T) {
	s := newTestStore(t)
	created := createSession(t, s, "touch")

	first, err := s.Get(created.SessionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := s.Get(created.SessionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !first.Metadata.LastAccessed.After(created.Metadata.LastAccessed.Time) {
		t.Errorf("first read %v not after create %v", first.Metadata.LastAccessed, created.Metadata.LastAccessed)
	}
	if !second.Metadata.LastAccessed.After(first.Metadata.LastAccessed.Time) {
		t.Errorf("second read %v not after first %v", second.Metadata.LastAccessed, first.Metadata.LastAccessed)
	}

	var stored Metadata
	if err := filestore.Load(filepath.Join(s.Root(), created.SessionID, MetadataFile), &stored); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !stored.LastAccessed.Equal(second.Metadata.LastAccessed.Time) {
		t.Errorf("persisted last_accessed %v, want %v", stored.LastAccessed, second.Metadata.LastAccessed)
	}
	if !stored.CreatedAt.Equal(created.Metadata.CreatedAt.Time) {
		t.Errorf("created_at changed: %v -> %v", created.Metadata.CreatedAt, stored.CreatedAt)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s, "partial")

	if err := os.Remove(filepath.Join(s.Root(), sess.SessionID, ConfigFile)); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	for _, id := range []string{"missing", "", "..", "../" + sess.SessionID, sess.SessionID} {
		t.Run(id, func(t *testing.T) {
			_, err := s.Get(id)
			if !errors.Is(err, errors.ErrNotFound) {
				t.Errorf("Get(%q): expected NOT_FOUND, got %v", id, err)
			}
		})
	}
}

func TestGet_MalformedMetadataIsNotFound(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s, "broken")

	path := filepath.Join(s.Root(), sess.SessionID, MetadataFile)
	if err := os.WriteFile(path, []byte(`{"name": `), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := s.Get(sess.SessionID)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestGet_NaiveTimestamps(t *testing.T) {
	s := newTestStore(t)
	dir := filepath.Join(s.Root(), "legacy")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	meta := `{"session_id": "legacy", "name": "Old", "description": "", "tags": [],
		"created_at": "2024-03-01T10:00:00.123456", "last_accessed": "2024-03-02T09:30:00", "status": "active"}`
	cfg := `{"context": null, "llm_provider": "OpenAI", "llm_model": "gpt-4o", "llm_settings": {}}`
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), []byte(meta), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(cfg), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	sess, err := s.Get("legacy")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC)
	if !sess.Metadata.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", sess.Metadata.CreatedAt, want)
	}
	if sess.Config.Context != nil {
		t.Errorf("Context = %q, want null", *sess.Config.Context)
	}
}

func TestList_SkipsIncompleteAndSorts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := createSession(t, s, "a")
	time.Sleep(2 * time.Millisecond)
	b := createSession(t, s, "b")
	time.Sleep(2 * time.Millisecond)
	c := createSession(t, s, "c")
	time.Sleep(2 * time.Millisecond)
	if _, err := s.Get(a.SessionID); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// Incomplete and malformed sessions are skipped.
	incomplete := createSession(t, s, "incomplete")
	if err := os.Remove(filepath.Join(s.Root(), incomplete.SessionID, MetadataFile)); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	malformed := createSession(t, s, "malformed")
	if err := os.WriteFile(filepath.Join(s.Root(), malformed.SessionID, ConfigFile), []byte("nope"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	before, err := os.ReadFile(filepath.Join(s.Root(), b.SessionID, MetadataFile))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	items, err := s.List(ctx, ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []string{a.SessionID, c.SessionID, b.SessionID}
	if len(items) != len(want) {
		t.Fatalf("len(items) = %d, want %d", len(items), len(want))
	}
	for i, id := range want {
		if items[i].SessionID != id {
			t.Errorf("items[%d] = %s (%s), want %s", i, items[i].SessionID, items[i].Metadata.Name, id)
		}
	}

	after, err := os.ReadFile(filepath.Join(s.Root(), b.SessionID, MetadataFile))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(before) != string(after) {
		t.Error("List modified metadata.json")
	}
}

func TestList_InvalidStatus(t *testing.T) {
	s := newTestStore(t)

	_, err := s.List(context.Background(), ListInput{Status: "deleted"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestDelete_ArchivesInsteadOfRemoving(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := createSession(t, s, "keep me")
	other := createSession(t, s, "other")

	meta, err := s.Delete(sess.SessionID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if meta.Status != StatusArchived {
		t.Errorf("Status = %q, want archived", meta.Status)
	}

	got, err := s.Get(sess.SessionID)
	if err != nil {
		t.Fatalf("Get after Delete failed: %v", err)
	}
	if got.Metadata.Status != StatusArchived {
		t.Errorf("Status = %q, want archived", got.Metadata.Status)
	}

	active, err := s.List(ctx, ListInput{Status: StatusActive})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(active) != 1 || active[0].SessionID != other.SessionID {
		t.Errorf("active sessions = %v, want only %s", active, other.SessionID)
	}

	archived, err := s.List(ctx, ListInput{Status: StatusArchived})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(archived) != 1 || archived[0].SessionID != sess.SessionID {
		t.Errorf("archived sessions = %v, want only %s", archived, sess.SessionID)
	}

	if _, err := s.Delete("missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestSessionFilePath(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s, "files")

	path, err := s.SessionFilePath(sess.SessionID, "plan.md")
	if err != nil {
		t.Fatalf("SessionFilePath failed: %v", err)
	}
	if want := filepath.Join(s.Root(), sess.SessionID, "plan.md"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	for _, name := range []string{"", "..", "../metadata.json", "a/b", `a\b`, "x..y"} {
		t.Run("reject "+name, func(t *testing.T) {
			_, err := s.SessionFilePath(sess.SessionID, name)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("SessionFilePath(%q): expected INVALID_REQUEST, got %v", name, err)
			}
		})
	}

	if _, err := s.SessionFilePath("missing", "plan.md"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestForeignKeysSurviveUpdates(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s, "shared")
	metaPath := filepath.Join(s.Root(), sess.SessionID, MetadataFile)
	cfgPath := filepath.Join(s.Root(), sess.SessionID, ConfigFile)

	addKey := func(path, key string, value any) {
		t.Helper()
		raw, err := filestore.LoadMap(path)
		if err != nil {
			t.Fatalf("LoadMap failed: %v", err)
		}
		raw[key] = value
		if err := filestore.Save(path, raw); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	addKey(metaPath, "owner", "tool-x")
	addKey(cfgPath, "embedding_model", "text-embedding-004")

	got, err := s.Get(sess.SessionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Metadata.Extra["owner"]) != `"tool-x"` {
		t.Errorf("Extra = %v, want owner", got.Metadata.Extra)
	}

	desc := "updated"
	if _, err := s.UpdateMetadata(sess.SessionID, MetadataInput{Description: &desc}); err != nil {
		t.Fatalf("UpdateMetadata failed: %v", err)
	}
	model := "gemini-2.5-flash"
	if _, err := s.UpdateConfig(sess.SessionID, ConfigInput{LLMModel: &model}); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}

	meta, err := filestore.LoadMap(metaPath)
	if err != nil {
		t.Fatalf("LoadMap failed: %v", err)
	}
	if meta["owner"] != "tool-x" || meta["description"] != "updated" {
		t.Errorf("metadata.json = %v", meta)
	}
	cfg, err := filestore.LoadMap(cfgPath)
	if err != nil {
		t.Fatalf("LoadMap failed: %v", err)
	}
	if cfg["embedding_model"] != "text-embedding-004" || cfg["llm_model"] != "gemini-2.5-flash" {
		t.Errorf("config.json = %v", cfg)
	}
}

func TestConfigContext_NullRoundTrip(t *testing.T) {
	s := newTestStore(t)
	sess, err := s.Create(CreateInput{Name: "no context", LLMProvider: "Gemini"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	cfgPath := filepath.Join(s.Root(), sess.SessionID, ConfigFile)

	raw, err := filestore.LoadMap(cfgPath)
	if err != nil {
		t.Fatalf("LoadMap failed: %v", err)
	}
	if v, ok := raw["context"]; !ok || v != nil {
		t.Errorf("context = %v (present %v), want null", v, ok)
	}

	demo := "demo"
	cfg, err := s.UpdateConfig(sess.SessionID, ConfigInput{Context: &demo})
	if err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	if cfg.ContextName() != "demo" {
		t.Errorf("ContextName() = %q, want demo", cfg.ContextName())
	}

	none := ""
	cfg, err = s.UpdateConfig(sess.SessionID, ConfigInput{Context: &none})
	if err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	if cfg.Context != nil {
		t.Errorf("Context = %q, want nil after clearing", *cfg.Context)
	}
	raw, err = filestore.LoadMap(cfgPath)
	if err != nil {
		t.Fatalf("LoadMap failed: %v", err)
	}
	if v, ok := raw["context"]; !ok || v != nil {
		t.Errorf("context = %v (present %v), want null", v, ok)
	}
}
