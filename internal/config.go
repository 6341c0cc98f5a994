package internal

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// AppName names the XDG directories and the environment prefix
const AppName = "ytscout"

// Discovery sources
const (
	SourceAPI    = "api"
	SourceScrape = "scrape"
	SourceModel  = "model"
)

// ErrInvalidOption marks a request naming an unknown source, strategy or template
var ErrInvalidOption = errors.New("invalid option")

// Config holds application settings
type Config struct {
	// User configurable settings
	Model                 string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	YouTubeAPIKey         string
	YouTubeAPIKeyFallback string
	DiscoverySource       string
	EnrichStrategy        string
	Workers               int
	MaxResults            int
	Region                string
	Language              string
	ReportLanguage        string
	TranscriptLanguages   []string
	TranscriptMaxChars    int
	SuggestLocale         string
	SuggestTimeout        time.Duration
	HTTPTimeout           time.Duration
	SummaryTimeout        time.Duration
	ScrapeRPS             float64
	FallbackSignatures    []string
	CacheBackend          string
	CacheTTL              time.Duration
	RedisURL              string
	Templates             []string
	TemplatesFile         string
	Prompt                string
	ServerPort            int
	Verbose               bool
	Quiet                 bool
	MCPLogEnabled         bool

	// Fixed XDG paths (not configurable)
	ConfigDir string
	DataDir   string
	CacheDir  string
}

//go:embed config.toml templates.yaml
var defaultFS embed.FS

func mustEmbedded(name string) []byte {
	data, err := defaultFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("missing embedded %s: %v", name, err))
	}
	return data
}

// ensureDefaultFile checks if a file exists in the specified directory
// and creates it from the embedded default if it doesn't exist
func ensureDefaultFile(configDir, embedFilename, description string) error {
	filePath := filepath.Join(configDir, embedFilename)

	if FileExists(filePath) {
		return nil
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaultContent, err := defaultFS.ReadFile(embedFilename)
	if err != nil {
		return fmt.Errorf("reading embedded default %s: %w", description, err)
	}

	if err := os.WriteFile(filePath, defaultContent, 0644); err != nil {
		return fmt.Errorf("writing default %s: %w", description, err)
	}

	fmt.Fprintf(os.Stderr, "Created default %s at %s\n", description, filePath)
	return nil
}

// EnsureDefaultConfig checks if a config file exists in the XDG config directory
// and creates it from the embedded default if it doesn't exist
func EnsureDefaultConfig(configDir string) error {
	return ensureDefaultFile(configDir, "config.toml", "configuration")
}

// EnsureDefaultTemplates writes the default templates.yaml on first run so
// users can edit the synthesis prompts
func EnsureDefaultTemplates(configDir string) error {
	return ensureDefaultFile(configDir, "templates.yaml", "prompt templates")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("openai_base_url", defaultOpenAIBaseURL)
	v.SetDefault("discovery_source", SourceScrape)
	v.SetDefault("enrich_strategy", StrategyTranscript)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("max_results", 10)
	v.SetDefault("region", "TW")
	v.SetDefault("language", "zh-TW")
	v.SetDefault("report_language", "Traditional Chinese")
	v.SetDefault("transcript_languages", DefaultTranscriptLanguages)
	v.SetDefault("transcript_max_chars", DefaultTranscriptMaxChars)
	v.SetDefault("suggest_locale", "zh-TW")
	v.SetDefault("suggest_timeout", defaultSuggestTimeout)
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("summary_timeout", 2*time.Minute)
	v.SetDefault("scrape_rps", 2.0)
	v.SetDefault("fallback_signatures", DefaultFallbackSignatures)
	v.SetDefault("cache_backend", "bolt")
	v.SetDefault("cache_ttl", 7*24*time.Hour)
	v.SetDefault("redis_url", "")
	v.SetDefault("templates", []string{})
	v.SetDefault("templates_file", "")
	v.SetDefault("prompt", "")
	v.SetDefault("server_port", 8080)
	v.SetDefault("verbose", false)
	v.SetDefault("mcp_log_enabled", true)
}

// InitConfig initializes Viper and loads configuration
func InitConfig() *Config {
	configDir := filepath.Join(xdg.ConfigHome, AppName)
	dataDir := filepath.Join(xdg.DataHome, AppName)
	cacheDir := filepath.Join(xdg.CacheHome, AppName)

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.AutomaticEnv()

	// provider keys are usually exported without the prefix
	_ = v.BindEnv("openai_api_key", "YTSCOUT_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("youtube_api_key", "YTSCOUT_YOUTUBE_API_KEY", "YOUTUBE_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: Error reading config file: %v\n", err)
		}
	}

	config := configFromViper(v)
	config.ConfigDir = configDir
	config.DataDir = dataDir
	config.CacheDir = cacheDir

	if config.Verbose && v.ConfigFileUsed() != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", v.ConfigFileUsed())
	}

	return config
}

func configFromViper(v *viper.Viper) *Config {
	return &Config{
		Model:                 v.GetString("model"),
		OpenAIAPIKey:          v.GetString("openai_api_key"),
		OpenAIBaseURL:         v.GetString("openai_base_url"),
		YouTubeAPIKey:         v.GetString("youtube_api_key"),
		YouTubeAPIKeyFallback: v.GetString("youtube_api_key_fallback"),
		DiscoverySource:       strings.ToLower(v.GetString("discovery_source")),
		EnrichStrategy:        strings.ToLower(v.GetString("enrich_strategy")),
		Workers:               v.GetInt("workers"),
		MaxResults:            v.GetInt("max_results"),
		Region:                v.GetString("region"),
		Language:              v.GetString("language"),
		ReportLanguage:        v.GetString("report_language"),
		TranscriptLanguages:   v.GetStringSlice("transcript_languages"),
		TranscriptMaxChars:    v.GetInt("transcript_max_chars"),
		SuggestLocale:         v.GetString("suggest_locale"),
		SuggestTimeout:        v.GetDuration("suggest_timeout"),
		HTTPTimeout:           v.GetDuration("http_timeout"),
		SummaryTimeout:        v.GetDuration("summary_timeout"),
		ScrapeRPS:             v.GetFloat64("scrape_rps"),
		FallbackSignatures:    v.GetStringSlice("fallback_signatures"),
		CacheBackend:          strings.ToLower(v.GetString("cache_backend")),
		CacheTTL:              v.GetDuration("cache_ttl"),
		RedisURL:              v.GetString("redis_url"),
		Templates:             v.GetStringSlice("templates"),
		TemplatesFile:         v.GetString("templates_file"),
		Prompt:                v.GetString("prompt"),
		ServerPort:            v.GetInt("server_port"),
		Verbose:               v.GetBool("verbose"),
		MCPLogEnabled:         v.GetBool("mcp_log_enabled"),
	}
}

// Validate checks enumerated settings before any network call
func (c *Config) Validate() error {
	switch c.DiscoverySource {
	case SourceAPI, SourceScrape, SourceModel:
	default:
		return fmt.Errorf("%w: unknown discovery_source %q (want api, scrape or model)", ErrInvalidOption, c.DiscoverySource)
	}
	switch c.EnrichStrategy {
	case StrategyTranscript, StrategyModel:
	default:
		return fmt.Errorf("%w: unknown enrich_strategy %q (want transcript or model)", ErrInvalidOption, c.EnrichStrategy)
	}
	switch c.CacheBackend {
	case "", "none", "off", "bolt", "redis":
	default:
		return fmt.Errorf("%w: unknown cache_backend %q (want bolt, redis or none)", ErrInvalidOption, c.CacheBackend)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidOption)
	}
	return nil
}
