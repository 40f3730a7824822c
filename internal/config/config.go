// Package config handles application configuration loading from a YAML file
// with environment variable overrides.
package config

import (
	"errors"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "derjachat/internal/utils"

	"gopkg.in/yaml.v3"
)

// ProviderConfig defines the structure for a single generation provider
type ProviderConfig struct {
	Name string `json:"name" yaml:"name"`
	Code string `json:"code" yaml:"code"`
	// Kind selects the wire protocol: "openai" (OpenAI-compatible chat
	// completions) or "gemini".
	Kind   string    `json:"kind" yaml:"kind"`
	URL    string    `json:"url,omitempty" yaml:"url,omitempty"`
	Models []AIModel `json:"models" yaml:"models"`
}

// AIModel represents a generation model configuration
type AIModel struct {
	Name      string `json:"name" yaml:"name"`
	Code      string `json:"code" yaml:"code"`
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig        `json:"server" yaml:"server"`
	Providers     []ProviderConfig    `json:"providers" yaml:"providers"`
	Generation    GenerationConfig    `json:"generation" yaml:"generation"`
	Search        SearchConfig        `json:"search" yaml:"search"`
	Fetch         FetchConfig         `json:"fetch" yaml:"fetch"`
	Context       ContextConfig       `json:"context" yaml:"context"`
	Dialect       DialectConfig       `json:"dialect" yaml:"dialect"`
	Locale        LocaleConfig        `json:"locale" yaml:"locale"`
	Quiz          QuizConfig          `json:"quiz" yaml:"quiz"`
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port        string   `json:"port" yaml:"port"`
	Debug       bool     `json:"debug" yaml:"debug"`
	LogLevel    string   `json:"log_level" yaml:"log_level"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`
	// MaxAIConcurrent bounds generation calls in flight across all requests
	MaxAIConcurrent int `json:"max_ai_concurrent" yaml:"max_ai_concurrent"`
	// MaxRequestBytes bounds inbound request bodies (documents and images included)
	MaxRequestBytes int64 `json:"max_request_bytes" yaml:"max_request_bytes"`
}

// GenerationConfig selects the provider/model and the per-task knobs
type GenerationConfig struct {
	Provider           string  `json:"provider" yaml:"provider"`
	Model              string  `json:"model" yaml:"model"`
	APIKey             string  `json:"api_key" yaml:"api_key"`
	TimeoutSeconds     int     `json:"timeout_seconds" yaml:"timeout_seconds"`
	ChatTemperature    float64 `json:"chat_temperature" yaml:"chat_temperature"`
	QuizTemperature    float64 `json:"quiz_temperature" yaml:"quiz_temperature"`
	RewriteTemperature float64 `json:"rewrite_temperature" yaml:"rewrite_temperature"`
	ChatMaxTokens      int     `json:"chat_max_tokens" yaml:"chat_max_tokens"`
	QuizMaxTokens      int     `json:"quiz_max_tokens" yaml:"quiz_max_tokens"`
	RewriteMaxTokens   int     `json:"rewrite_max_tokens" yaml:"rewrite_max_tokens"`
}

// SearchConfig configures the web search boundary
type SearchConfig struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	APIURL          string `json:"api_url" yaml:"api_url"`
	HTMLURL         string `json:"html_url" yaml:"html_url"`
	TimeoutSeconds  int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	MinMessageRunes int    `json:"min_message_runes" yaml:"min_message_runes"`
	MaxResults      int    `json:"max_results" yaml:"max_results"`
	UserAgent       string `json:"user_agent" yaml:"user_agent"`
}

// FetchConfig configures the page-fetch boundary
type FetchConfig struct {
	TimeoutSeconds   int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRawBytes      int64  `json:"max_raw_bytes" yaml:"max_raw_bytes"`
	MaxIncludedChars int    `json:"max_included_chars" yaml:"max_included_chars"`
	HistoryScanTurns int    `json:"history_scan_turns" yaml:"history_scan_turns"`
	UserAgent        string `json:"user_agent" yaml:"user_agent"`
}

// ContextConfig holds the caps applied while building a context bundle
type ContextConfig struct {
	MaxHistoryTurns   int `json:"max_history_turns" yaml:"max_history_turns"`
	WebSnippetChars   int `json:"web_snippet_chars" yaml:"web_snippet_chars"`
	DocumentChatChars int `json:"document_chat_chars" yaml:"document_chat_chars"`
	DocumentQuizChars int `json:"document_quiz_chars" yaml:"document_quiz_chars"`
	// TotalContextChars bounds the whole injected block so it cannot starve
	// the directive and the live turn.
	TotalContextChars int `json:"total_context_chars" yaml:"total_context_chars"`
}

// DialectConfig holds the drift thresholds. They were tuned empirically.
type DialectConfig struct {
	// LatinRatio flags drift when latin letters exceed this fraction of Arabic letters
	LatinRatio float64 `json:"latin_ratio" yaml:"latin_ratio"`
	// MinScriptChars and MinLatinChars flag drift for replies that are almost
	// entirely Latin: fewer than MinScriptChars Arabic letters with at least
	// MinLatinChars Latin letters.
	MinScriptChars int  `json:"min_script_chars" yaml:"min_script_chars"`
	MinLatinChars  int  `json:"min_latin_chars" yaml:"min_latin_chars"`
	DisableRewrite bool `json:"disable_rewrite" yaml:"disable_rewrite"`
}

// LocaleConfig is the default locale injected for location-dependent questions
type LocaleConfig struct {
	Place      string `json:"place" yaml:"place"`
	PlaceLatin string `json:"place_latin" yaml:"place_latin"`
	Timezone   string `json:"timezone" yaml:"timezone"`
	Units      string `json:"units" yaml:"units"`
}

// QuizConfig holds quiz synthesis knobs
type QuizConfig struct {
	MinAcceptedItems int `json:"min_accepted_items" yaml:"min_accepted_items"`
	// MCMASubsetProbability is the chance an all-correct multi-answer item is
	// re-derived into a strict subset. Zero means the default.
	MCMASubsetProbability float64 `json:"mcma_subset_probability" yaml:"mcma_subset_probability"`
	QuestionMaxChars      int     `json:"question_max_chars" yaml:"question_max_chars"`
	OptionMaxChars        int     `json:"option_max_chars" yaml:"option_max_chars"`
	ExplanationMaxChars   int     `json:"explanation_max_chars" yaml:"explanation_max_chars"`
	HintMaxChars          int     `json:"hint_max_chars" yaml:"hint_max_chars"`
	AnswerMaxChars        int     `json:"answer_max_chars" yaml:"answer_max_chars"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "derja-backend"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	UseAutoSDK     bool              `json:"use_auto_sdk" yaml:"use_auto_sdk"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"` // Default: 1.0 (100%)
}

// GetProvider returns the provider with the given code
func (c *Config) GetProvider(code string) (*ProviderConfig, bool) {
	for i := range c.Providers {
		if c.Providers[i].Code == code {
			return &c.Providers[i], true
		}
	}
	return nil, false
}

// GetMaxTokensForModel returns the model's max token setting, or fallback
// when the model is unknown or has none.
func (c *Config) GetMaxTokensForModel(providerCode, modelCode string, fallback int) int {
	provider, ok := c.GetProvider(providerCode)
	if !ok {
		return fallback
	}
	for _, m := range provider.Models {
		if m.Code == modelCode && m.MaxTokens > 0 {
			if fallback > 0 && fallback < m.MaxTokens {
				return fallback
			}
			return m.MaxTokens
		}
	}
	return fallback
}

// GenerationTimeout returns the per-call timeout for the generation boundary
func (c *Config) GenerationTimeout() time.Duration {
	return secondsOr(c.Generation.TimeoutSeconds, AIRequestTimeout)
}

// SearchTimeout returns the per-call timeout for the search boundary
func (c *Config) SearchTimeout() time.Duration {
	return secondsOr(c.Search.TimeoutSeconds, DefaultSearchTimeout)
}

// FetchTimeout returns the per-call timeout for the page-fetch boundary
func (c *Config) FetchTimeout() time.Duration {
	return secondsOr(c.Fetch.TimeoutSeconds, DefaultFetchTimeout)
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.overrideFromEnv()
	config.ApplyDefaults()

	return config, nil
}

// Default returns a configuration populated only with built-in defaults
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills every zero-valued knob with its built-in default
func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.MaxAIConcurrent <= 0 {
		c.Server.MaxAIConcurrent = DefaultMaxAIConcurrent
	}
	if c.Server.MaxRequestBytes <= 0 {
		c.Server.MaxRequestBytes = DefaultMaxRequestBytes
	}

	g := &c.Generation
	if g.ChatTemperature == 0 {
		g.ChatTemperature = 0.7
	}
	if g.QuizTemperature == 0 {
		g.QuizTemperature = 0.3
	}
	if g.RewriteTemperature == 0 {
		g.RewriteTemperature = 0.2
	}
	if g.ChatMaxTokens <= 0 {
		g.ChatMaxTokens = 2048
	}
	if g.QuizMaxTokens <= 0 {
		g.QuizMaxTokens = 4096
	}
	if g.RewriteMaxTokens <= 0 {
		g.RewriteMaxTokens = 2048
	}

	s := &c.Search
	if s.APIURL == "" {
		s.APIURL = "https://api.duckduckgo.com/"
	}
	if s.HTMLURL == "" {
		s.HTMLURL = "https://html.duckduckgo.com/html/"
	}
	if s.MinMessageRunes <= 0 {
		s.MinMessageRunes = 8
	}
	if s.MaxResults <= 0 {
		s.MaxResults = 2
	}
	if s.UserAgent == "" {
		s.UserAgent = DefaultUserAgent
	}

	f := &c.Fetch
	if f.MaxRawBytes <= 0 {
		f.MaxRawBytes = 50000
	}
	if f.MaxIncludedChars <= 0 {
		f.MaxIncludedChars = 6000
	}
	if f.HistoryScanTurns <= 0 {
		f.HistoryScanTurns = 6
	}
	if f.UserAgent == "" {
		f.UserAgent = DefaultUserAgent
	}

	cc := &c.Context
	if cc.MaxHistoryTurns <= 0 {
		cc.MaxHistoryTurns = 30
	}
	if cc.WebSnippetChars <= 0 {
		cc.WebSnippetChars = 1200
	}
	if cc.DocumentChatChars <= 0 {
		cc.DocumentChatChars = 20000
	}
	if cc.DocumentQuizChars <= 0 {
		cc.DocumentQuizChars = 8000
	}
	if cc.TotalContextChars <= 0 {
		cc.TotalContextChars = 24000
	}

	d := &c.Dialect
	if d.LatinRatio <= 0 {
		d.LatinRatio = 0.3
	}
	if d.MinScriptChars <= 0 {
		d.MinScriptChars = 20
	}
	if d.MinLatinChars <= 0 {
		d.MinLatinChars = 12
	}

	l := &c.Locale
	if l.Place == "" {
		l.Place = "تونس"
	}
	if l.PlaceLatin == "" {
		l.PlaceLatin = "Tunis"
	}
	if l.Timezone == "" {
		l.Timezone = "Africa/Tunis"
	}
	if l.Units == "" {
		l.Units = "metric"
	}

	q := &c.Quiz
	if q.MinAcceptedItems <= 0 {
		q.MinAcceptedItems = 3
	}
	if q.MCMASubsetProbability <= 0 || q.MCMASubsetProbability > 1 {
		q.MCMASubsetProbability = 0.85
	}
	if q.QuestionMaxChars <= 0 {
		q.QuestionMaxChars = 500
	}
	if q.OptionMaxChars <= 0 {
		q.OptionMaxChars = 200
	}
	if q.ExplanationMaxChars <= 0 {
		q.ExplanationMaxChars = 800
	}
	if q.HintMaxChars <= 0 {
		q.HintMaxChars = 300
	}
	if q.AnswerMaxChars <= 0 {
		q.AnswerMaxChars = 200
	}

	o := &c.OpenTelemetry
	if o.ServiceName == "" {
		o.ServiceName = "derja-backend"
	}
	if o.Protocol == "" {
		o.Protocol = "grpc"
	}
	if o.SamplingRate <= 0 {
		o.SamplingRate = 1.0
	}
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnvWithPrefix(c, "")
}

// overrideStructFromEnvWithPrefix walks the struct and reads an env var per
// yaml-tagged field, e.g. generation.api_key -> GENERATION_API_KEY.
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type().Elem().Kind() == reflect.String {
					field.Set(reflect.ValueOf(strings.Split(envVal, ",")))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides reads DERJA_CONFIG_FILE when set (it must exist),
// otherwise config.yaml when present, otherwise starts from an empty config.
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv("DERJA_CONFIG_FILE"); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	config, err := loadConfigFromFile("config.yaml")
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	return config, err
}

func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
