package sessions

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strings"

	"github.com/hpungsan/bdistudio/internal/errors"
	"github.com/hpungsan/bdistudio/internal/filestore"
)

// Recognized llm_settings options.
const (
	SettingUseDefaults     = "use_defaults"
	SettingTemperature     = "temperature"
	SettingTopP            = "top_p"
	SettingMaxOutputTokens = "max_output_tokens"
	SettingMaxTokens       = "max_tokens"
	SettingReasoningEffort = "reasoning_effort"
)

// Config is the persisted config.json of a session.
type Config struct {
	// Context is the selected knowledge context; null when none is set.
	Context     *string        `json:"context"`
	LLMProvider string         `json:"llm_provider"`
	LLMModel    string         `json:"llm_model"`
	LLMSettings map[string]any `json:"llm_settings"`

	// Extra keeps keys written by other tools.
	Extra filestore.Extra `json:"-"`
}

func (c Config) MarshalJSON() ([]byte, error) {
	type plain Config
	return filestore.MarshalExtra(plain(c), c.Extra)
}

func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	var p plain
	extra, err := filestore.UnmarshalExtra(data, &p)
	if err != nil {
		return err
	}
	*c = Config(p)
	c.Extra = extra
	return nil
}

// ContextName returns the selected context, or "" when none is set.
func (c Config) ContextName() string {
	if c.Context == nil {
		return ""
	}
	return *c.Context
}

// contextRef maps a blank context name to null.
func contextRef(name string) *string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return &name
}

// DefaultLLMSettings returns the settings a session gets when none are given.
func DefaultLLMSettings() map[string]any {
	return map[string]any{
		SettingTemperature: 0.7,
		SettingMaxTokens:   2000,
		SettingTopP:        0.9,
	}
}

// ValidateLLMSettings checks the recognized options of settings. Unknown
// options are accepted as-is.
func ValidateLLMSettings(settings map[string]any) error {
	for key, v := range settings {
		var err error
		switch key {
		case SettingUseDefaults:
			if _, ok := v.(bool); !ok {
				err = fmt.Errorf("must be a boolean")
			}
		case SettingTemperature:
			err = checkRange(v, 0, 2)
		case SettingTopP:
			err = checkRange(v, 0, 1)
		case SettingMaxOutputTokens, SettingMaxTokens:
			err = checkPositiveInt(v)
		case SettingReasoningEffort:
			switch v {
			case "minimal", "low", "medium", "high":
			default:
				err = fmt.Errorf("must be one of minimal, low, medium, high")
			}
		}
		if err != nil {
			return errors.NewInvalidRequest(fmt.Sprintf("llm_settings.%s: %v", key, err))
		}
	}
	return nil
}

func checkRange(v any, lo, hi float64) error {
	f, ok := number(v)
	if !ok || math.IsNaN(f) || f < lo || f > hi {
		return fmt.Errorf("must be a number between %g and %g", lo, hi)
	}
	return nil
}

func checkPositiveInt(v any) error {
	f, ok := number(v)
	if !ok || f < 1 || f != math.Trunc(f) {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

// number converts the numeric types that reach settings from JSON decoding
// or Go callers.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// ConfigInput contains parameters for UpdateConfig (nil = don't change).
type ConfigInput struct {
	// Context selects a context; an empty string clears it.
	Context     *string
	LLMProvider *string
	LLMModel    *string
	// LLMSettings replaces the stored settings wholesale.
	LLMSettings *map[string]any
}

// UpdateConfig merges the supplied fields into a session's config.
// Returns NOT_FOUND when the session is absent.
func (s *Store) UpdateConfig(id string, input ConfigInput) (*Config, error) {
	if err := s.requireSession(id); err != nil {
		return nil, err
	}

	var cfg Config
	if err := filestore.Load(s.path(id, ConfigFile), &cfg); err != nil {
		return nil, s.loadError(id, err)
	}

	if input.Context != nil {
		cfg.Context = contextRef(*input.Context)
	}
	if input.LLMProvider != nil {
		cfg.LLMProvider = *input.LLMProvider
	}
	if input.LLMModel != nil {
		cfg.LLMModel = *input.LLMModel
	}
	if input.LLMSettings != nil {
		if err := ValidateLLMSettings(*input.LLMSettings); err != nil {
			return nil, err
		}
		cfg.LLMSettings = maps.Clone(*input.LLMSettings)
	}
	if cfg.LLMSettings == nil {
		cfg.LLMSettings = map[string]any{}
	}

	if err := filestore.Save(s.path(id, ConfigFile), cfg); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &cfg, nil
}
