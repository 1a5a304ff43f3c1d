// Package config loads valet's configuration from YAML with environment
// fallbacks. The resulting Settings struct is immutable after Load and is
// validated once at agent construction, never per turn.
package config

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ModelConfig selects the language-model capability for the session.
type ModelConfig struct {
	Provider string `yaml:"provider,omitempty"` // "openai" or "gemini"
	Name     string `yaml:"name,omitempty"`     // provider-specific model name, optional
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`
	BaseURL      string `yaml:"base_url,omitempty"`
	Model        string `yaml:"model,omitempty"`
	Organization string `yaml:"organization,omitempty"`
}

// GeminiConfig configures the Gemini provider (OpenAI-compatible endpoint).
type GeminiConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// OllamaConfig configures the local Ollama instance used for embeddings.
type OllamaConfig struct {
	Host  string `yaml:"host,omitempty"`
	Model string `yaml:"model,omitempty"`
}

// EmbeddingConfig selects the embedding capability backing long-term memory.
type EmbeddingConfig struct {
	Provider string `yaml:"provider,omitempty"` // "openai" or "ollama"
	Model    string `yaml:"model,omitempty"`
}

// MemoryConfig tunes the two memory tiers.
type MemoryConfig struct {
	STMCapacity        int     `yaml:"stm_capacity,omitempty"`        // max messages held in short-term memory
	STMWindow          int     `yaml:"stm_window,omitempty"`          // recent messages included in turn context
	TopK               int     `yaml:"top_k,omitempty"`               // long-term memories retrieved per turn
	RelevanceFloor     float64 `yaml:"relevance_floor,omitempty"`     // minimum similarity for a search hit
	DuplicateThreshold float64 `yaml:"duplicate_threshold,omitempty"` // similarity above which a candidate is a duplicate
}

// ConsolidationSignals are the keyword groups the importance heuristic scores.
type ConsolidationSignals struct {
	PreferenceKeywords []string `yaml:"preference_keywords,omitempty"`
	IdentityKeywords   []string `yaml:"identity_keywords,omitempty"`
	RememberKeywords   []string `yaml:"remember_keywords,omitempty"`
	LengthBonusChars   int      `yaml:"length_bonus_chars,omitempty"`
}

// ConsolidationConfig controls promotion of turn content into long-term memory.
type ConsolidationConfig struct {
	Async         bool                 `yaml:"async,omitempty"`          // defer LTM writes to a background worker
	MinImportance float64              `yaml:"min_importance,omitempty"` // heuristic promotion threshold
	Signals       ConsolidationSignals `yaml:"signals,omitempty"`
}

// ToolsConfig configures the tool registry and built-in tools.
type ToolsConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"` // per tool call
	FilesRoot      string `yaml:"files_root,omitempty"`      // sandbox root for the files tool
}

// ReflectionConfig controls the background reflection schedule.
type ReflectionConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	Schedule string `yaml:"schedule,omitempty"` // cron spec, e.g. "@hourly"
}

// Settings is the complete valet configuration.
type Settings struct {
	Model         ModelConfig         `yaml:"model,omitempty"`
	Persona       string              `yaml:"persona,omitempty"`
	DBPath        string              `yaml:"db_path,omitempty"`
	OpenAI        OpenAIConfig        `yaml:"openai,omitempty"`
	Gemini        GeminiConfig        `yaml:"gemini,omitempty"`
	Ollama        OllamaConfig        `yaml:"ollama,omitempty"`
	Embedding     EmbeddingConfig     `yaml:"embedding,omitempty"`
	Memory        MemoryConfig        `yaml:"memory,omitempty"`
	Consolidation ConsolidationConfig `yaml:"consolidation,omitempty"`
	Tools         ToolsConfig         `yaml:"tools,omitempty"`
	Reflection    ReflectionConfig    `yaml:"reflection,omitempty"`
}

// Defaults returns the built-in configuration. Loaded files are merged on top.
func Defaults() *Settings {
	return &Settings{
		Model:   ModelConfig{Provider: "openai"},
		Persona: "personal",
		DBPath:  "valet.db",
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Gemini: GeminiConfig{
			BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:   "gemini-1.5-flash",
		},
		Ollama: OllamaConfig{
			Host:  "http://localhost:11434",
			Model: "mxbai-embed-large",
		},
		Embedding: EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small"},
		Memory: MemoryConfig{
			STMCapacity:        20,
			STMWindow:          10,
			TopK:               3,
			RelevanceFloor:     0.35,
			DuplicateThreshold: 0.98,
		},
		Consolidation: ConsolidationConfig{
			MinImportance: 0.6,
			Signals: ConsolidationSignals{
				PreferenceKeywords: []string{"i like", "i prefer", "i love", "i hate", "favorite", "don't like"},
				IdentityKeywords:   []string{"my name", "i am", "i'm a", "i work", "i live"},
				RememberKeywords:   []string{"remember", "don't forget", "important", "note that"},
				LengthBonusChars:   100,
			},
		},
		Tools: ToolsConfig{
			TimeoutSeconds: 30,
			FilesRoot:      "data",
		},
		Reflection: ReflectionConfig{
			Schedule: "@hourly",
		},
	}
}

// Load reads the config file at path (if it exists), merges it over the
// defaults, and applies environment fallbacks. A missing file is not an
// error; a malformed one is.
func Load(path string) (*Settings, error) {
	// Best-effort .env loading so API keys can stay out of the YAML file.
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // G304: user-specified config path
		switch {
		case os.IsNotExist(err):
			// fall through to env application
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			var fileCfg Settings
			if err := yaml.Unmarshal(data, &fileCfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			if err := mergo.Merge(cfg, &fileCfg, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("merge config: %w", err)
			}
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv fills credentials and hosts from the environment when the file
// left them empty, then applies the VALET_* overrides, which always win.
func applyEnv(cfg *Settings) {
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" && cfg.Ollama.Host == Defaults().Ollama.Host {
		cfg.Ollama.Host = v
	}
	if v := os.Getenv("VALET_MODEL"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("VALET_PERSONA"); v != "" {
		cfg.Persona = v
	}
	if v := os.Getenv("VALET_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
}
