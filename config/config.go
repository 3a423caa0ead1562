// Package config provides typed configuration for the eidos engine.
//
// Configuration is loaded from a YAML file with environment-variable
// overrides (EIDOS_* by default) and validated at load time. Missing or
// malformed keys fail the load, not the first use.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("eidos.yaml").
//	    WithEnvPrefix("EIDOS").
//	    Load()
//
// Precedence: defaults → YAML file → environment variables.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eidoslabs/eidos/types"
)

// Duration wraps time.Duration so YAML accepts the same "60s" syntax
// the environment path does. A bare integer still decodes as
// nanoseconds.
type Duration time.Duration

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML decodes either a time.ParseDuration string or an
// integer nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in time.ParseDuration form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the full engine configuration.
type Config struct {
	// LLM generation collaborator settings.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Dialogue pipeline and session lifecycle settings.
	Dialogue DialogueConfig `yaml:"dialogue" env:"DIALOGUE"`

	// Retrieval collaborator settings.
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Search is the web-search collaborator used for suggested readings.
	Search SearchConfig `yaml:"search" env:"SEARCH"`

	// History persistence settings.
	History HistoryConfig `yaml:"history" env:"HISTORY"`

	// Log settings.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// LLMConfig configures the generation collaborator.
type LLMConfig struct {
	// Main is the model used for quality assessment, synthesis and wrap-up.
	Main string `yaml:"main" env:"MAIN"`
	// Helper is the smaller model used for routing and query expansion.
	Helper string `yaml:"helper" env:"HELPER"`
	// Temperature for all generation calls.
	Temperature float32 `yaml:"temperature" env:"TEMPERATURE"`
	// BaseURL of the OpenAI-compatible endpoint.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// APIKey authenticates against the endpoint.
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// Timeout per completion request.
	Timeout Duration `yaml:"timeout" env:"TIMEOUT"`
}

// DialogueConfig configures the pipeline and session lifecycle.
type DialogueConfig struct {
	// MaxTurns is the number of completed exchanges before wrap-up.
	MaxTurns int `yaml:"max_turns" env:"MAX_TURNS"`
	// Greeting is the opening agent message of every session.
	Greeting string `yaml:"greeting" env:"GREETING"`
	// TopicInstruction steers the dialogue topic.
	TopicInstruction string `yaml:"topic_instruction" env:"TOPIC_INSTRUCTION"`
	// StyleInstruction steers the language style.
	StyleInstruction string `yaml:"style_instruction" env:"STYLE_INSTRUCTION"`
	// MaxReadings caps the suggested-readings list.
	MaxReadings int `yaml:"max_readings" env:"MAX_READINGS"`
	// PromptTokenBudget is a soft cap; exceeding it logs a warning, the
	// history is never truncated.
	PromptTokenBudget int `yaml:"prompt_token_budget" env:"PROMPT_TOKEN_BUDGET"`
}

// RetrievalConfig configures the document retrieval collaborator.
type RetrievalConfig struct {
	// Enabled toggles the retrieval path entirely. When false every turn
	// is answered from history alone.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// DocsToUse is the number of passages returned per query.
	DocsToUse int `yaml:"docs_to_use" env:"DOCS_TO_USE"`
	// DocsToProcess is the candidate pool fetched before selection.
	DocsToProcess int `yaml:"docs_to_process" env:"DOCS_TO_PROCESS"`
	// EmbeddingModel and EmbeddingDimensions configure the query embedder.
	EmbeddingModel      string `yaml:"embedding_model" env:"EMBEDDING_MODEL"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions" env:"EMBEDDING_DIMENSIONS"`
	// Pinecone data-plane settings.
	PineconeAPIKey    string `yaml:"pinecone_api_key" env:"PINECONE_API_KEY"`
	PineconeIndex     string `yaml:"pinecone_index" env:"PINECONE_INDEX"`
	PineconeNamespace string `yaml:"pinecone_namespace" env:"PINECONE_NAMESPACE"`
	// CacheAddr is an optional redis address for the query cache. Empty
	// disables caching.
	CacheAddr string        `yaml:"cache_addr" env:"CACHE_ADDR"`
	CacheTTL  Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// SearchConfig configures the web-search collaborator.
type SearchConfig struct {
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Timeout Duration `yaml:"timeout" env:"TIMEOUT"`
	// RatePerSecond bounds outgoing search calls.
	RatePerSecond float64 `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
}

// HistoryConfig configures history persistence.
type HistoryConfig struct {
	// Path of the sqlite database. Empty keeps history in memory only.
	Path string `yaml:"path" env:"PATH"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// Default returns the engine defaults.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Main:        "gpt-4o",
			Helper:      "gpt-4o-mini",
			Temperature: 0.7,
			BaseURL:     "https://api.openai.com",
			Timeout:     Duration(60 * time.Second),
		},
		Dialogue: DialogueConfig{
			MaxTurns:          10,
			Greeting:          "Hello! I am Eidos. Tell me about a belief you hold, and let us examine it together.",
			MaxReadings:       5,
			PromptTokenBudget: 24000,
		},
		Retrieval: RetrievalConfig{
			Enabled:             true,
			DocsToUse:           4,
			DocsToProcess:       20,
			EmbeddingModel:      "text-embedding-3-small",
			EmbeddingDimensions: 1536,
			CacheTTL:            Duration(30 * time.Minute),
		},
		Search: SearchConfig{
			BaseURL:       "https://api.tavily.com",
			Timeout:       Duration(15 * time.Second),
			RatePerSecond: 2,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate checks the configuration for missing or malformed values.
func (c *Config) Validate() error {
	if c.LLM.Main == "" {
		return types.NewError(types.ErrInvalidConfig, "llm.main model is required")
	}
	if c.LLM.Helper == "" {
		return types.NewError(types.ErrInvalidConfig, "llm.helper model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return types.NewError(types.ErrInvalidConfig,
			fmt.Sprintf("llm.temperature %v out of range [0,2]", c.LLM.Temperature))
	}
	if c.Dialogue.MaxTurns <= 0 {
		return types.NewError(types.ErrInvalidConfig, "dialogue.max_turns must be positive")
	}
	if c.Dialogue.Greeting == "" {
		return types.NewError(types.ErrInvalidConfig, "dialogue.greeting is required")
	}
	if c.Dialogue.MaxReadings <= 0 {
		return types.NewError(types.ErrInvalidConfig, "dialogue.max_readings must be positive")
	}
	if c.Retrieval.Enabled {
		if c.Retrieval.DocsToUse <= 0 {
			return types.NewError(types.ErrInvalidConfig, "retrieval.docs_to_use must be positive")
		}
		if c.Retrieval.DocsToProcess < c.Retrieval.DocsToUse {
			return types.NewError(types.ErrInvalidConfig,
				"retrieval.docs_to_process must be >= retrieval.docs_to_use")
		}
	}
	return nil
}

// Loader loads configuration with the defaults → file → env precedence.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a Loader with the default EIDOS env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "EIDOS"}
}

// WithConfigPath sets the YAML file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load builds the configuration and fails fast on validation errors.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if err := l.loadFromFile(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from file: %w", err)
	}
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	if l.configPath == "" {
		return nil
	}
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) || field.Type() == reflect.TypeOf(Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}

// MustLoad loads configuration from path and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
