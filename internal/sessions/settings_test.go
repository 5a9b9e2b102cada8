package sessions

import (
	"encoding/json"
	"testing"

	"github.com/hpungsan/bdistudio/internal/errors"
)

func TestValidateLLMSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
	}{
		{"nil", nil, false},
		{"defaults", DefaultLLMSettings(), false},
		{"all recognized", map[string]any{
			"use_defaults": false, "temperature": 2.0, "top_p": 0.0,
			"max_output_tokens": 8192, "max_tokens": float64(1024), "reasoning_effort": "minimal",
		}, false},
		{"json number", map[string]any{"temperature": json.Number("1.5")}, false},
		{"unknown passes through", map[string]any{"frequency_penalty": "anything"}, false},
		{"temperature too high", map[string]any{"temperature": 2.01}, true},
		{"temperature negative", map[string]any{"temperature": -0.1}, true},
		{"temperature string", map[string]any{"temperature": "hot"}, true},
		{"top_p too high", map[string]any{"top_p": 1.5}, true},
		{"max_tokens zero", map[string]any{"max_tokens": 0}, true},
		{"max_tokens fractional", map[string]any{"max_tokens": 10.5}, true},
		{"max_output_tokens negative", map[string]any{"max_output_tokens": -5}, true},
		{"use_defaults not bool", map[string]any{"use_defaults": "yes"}, true},
		{"reasoning_effort unknown", map[string]any{"reasoning_effort": "max"}, true},
		{"reasoning_effort not string", map[string]any{"reasoning_effort": 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLLMSettings(tt.settings)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrInvalidRequest) {
					t.Errorf("expected INVALID_REQUEST, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestUpdateConfig(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s, "cfg")

	cfg, err := s.UpdateConfig(sess.SessionID, ConfigInput{LLMModel: ptr("gemini-2.5-flash")})
	if err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	if cfg.LLMModel != "gemini-2.5-flash" {
		t.Errorf("LLMModel = %q", cfg.LLMModel)
	}
	if cfg.ContextName() != "demo" || cfg.LLMProvider != "Gemini" {
		t.Errorf("unsupplied fields changed: %+v", cfg)
	}
	if cfg.LLMSettings[SettingTemperature] != 0.7 {
		t.Errorf("settings changed: %v", cfg.LLMSettings)
	}

	settings := map[string]any{"reasoning_effort": "high", "custom": true}
	cfg, err = s.UpdateConfig(sess.SessionID, ConfigInput{LLMSettings: &settings})
	if err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	if len(cfg.LLMSettings) != 2 || cfg.LLMSettings["custom"] != true {
		t.Errorf("settings not replaced wholesale: %v", cfg.LLMSettings)
	}

	got, err := s.Get(sess.SessionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Config.LLMSettings["reasoning_effort"] != "high" {
		t.Errorf("persisted settings = %v", got.Config.LLMSettings)
	}
}

func TestUpdateConfig_Errors(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s, "cfg")

	bad := map[string]any{"top_p": 2}
	if _, err := s.UpdateConfig(sess.SessionID, ConfigInput{LLMSettings: &bad}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
	if _, err := s.UpdateConfig("missing", ConfigInput{}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}
