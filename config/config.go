package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const envPrefix = "CORTEX"

const (
	ExhaustedSkip        = "skip"
	ExhaustedExecuteLast = "execute_last"
)

type Config struct {
	ProjectDir   string `json:"project_dir" envconfig:"PROJECT_DIR"`
	ResultsDir   string `json:"results_dir" envconfig:"RESULTS_DIR"`
	DataDir      string `json:"data_dir" envconfig:"DATA_DIR"`
	DataCacheDir string `json:"data_cache_dir" envconfig:"DATA_CACHE_DIR"`
	ReportsDir   string `json:"reports_dir" envconfig:"REPORTS_DIR"`

	LLMProvider    string `json:"llm_provider" envconfig:"LLM_PROVIDER"`
	DeepThinkLLM   string `json:"deep_think_llm" envconfig:"DEEP_THINK_LLM"`
	QuickThinkLLM  string `json:"quick_think_llm" envconfig:"QUICK_THINK_LLM"`
	BackendURL     string `json:"backend_url" envconfig:"BACKEND_URL"`
	LLMMaxTokens   int    `json:"llm_max_tokens" envconfig:"LLM_MAX_TOKENS"`
	DeepSeekAPIKey string `json:"deepseek_api_key" envconfig:"DEEPSEEK_API_KEY"`
	OpenAIAPIKey   string `json:"openai_api_key" envconfig:"OPENAI_API_KEY"`

	NewsAPIKey   string `json:"news_api_key" envconfig:"NEWS_API_KEY"`
	NewsPageSize int    `json:"news_page_size" envconfig:"NEWS_PAGE_SIZE"`
	// NewsReddit adds finance subreddits as the last news fallback.
	NewsReddit bool `json:"news_reddit" envconfig:"NEWS_REDDIT"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key" envconfig:"LONGPORT_APP_KEY"`
	LongportAppSecret   string `json:"longport_app_secret" envconfig:"LONGPORT_APP_SECRET"`
	LongportAccessToken string `json:"longport_access_token" envconfig:"LONGPORT_ACCESS_TOKEN"`

	AlpacaAPIKey    string `json:"alpaca_api_key" envconfig:"APCA_API_KEY_ID"`
	AlpacaAPISecret string `json:"alpaca_api_secret" envconfig:"APCA_API_SECRET_KEY"`

	// MarketProviders is the quote fallback order: yahoo, longport, alpaca.
	MarketProviders     []string `json:"market_providers" envconfig:"MARKET_PROVIDERS"`
	HistoryLookbackDays int      `json:"history_lookback_days" envconfig:"HISTORY_LOOKBACK_DAYS"`

	InitialCash          decimal.Decimal `json:"initial_cash" envconfig:"INITIAL_CASH"`
	MaxNegotiationRounds int             `json:"max_negotiation_rounds" envconfig:"MAX_NEGOTIATION_ROUNDS"`
	ExhaustedPolicy      string          `json:"exhausted_policy" envconfig:"EXHAUSTED_POLICY"`
	ApprovalThreshold    int             `json:"approval_threshold" envconfig:"APPROVAL_THRESHOLD"`
	LedgerReplay         string          `json:"ledger_replay" envconfig:"LEDGER_REPLAY"`

	ScheduleInterval    string  `json:"schedule_interval" envconfig:"SCHEDULE_INTERVAL"`
	ResearchConcurrency int     `json:"research_concurrency" envconfig:"RESEARCH_CONCURRENCY"`
	LLMRatePerMinute    int     `json:"llm_rate_per_minute" envconfig:"LLM_RATE_PER_MINUTE"`
	MarketRatePerSecond float64 `json:"market_rate_per_second" envconfig:"MARKET_RATE_PER_SECOND"`
	CacheEnabled        bool    `json:"cache_enabled" envconfig:"CACHE_ENABLED"`
	MetricsAddr         string  `json:"metrics_addr" envconfig:"METRICS_ADDR"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled" envconfig:"EINO_DEBUG_ENABLED"`
	EinoDebugPort    int  `json:"eino_debug_port" envconfig:"EINO_DEBUG_PORT"`

	LogLevel string `json:"log_level" envconfig:"LOG_LEVEL"`
	LogEnv   string `json:"log_env" envconfig:"LOG_ENV"`
	Debug    bool   `json:"debug" envconfig:"DEBUG"`
}

// DefaultConfig returns defaults rooted at the working directory, overlaid with .env and CORTEX_* variables.
func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	_ = godotenv.Load()
	_ = cfg.LoadEnv()

	return cfg
}

// DefaultConfigWithRoot returns the built-in defaults with every directory under root.
func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir:   root,
		ResultsDir:   filepath.Join(root, "results"),
		DataDir:      filepath.Join(root, "data"),
		DataCacheDir: filepath.Join(root, "data", "cache"),
		ReportsDir:   filepath.Join(root, "results", "reports"),

		LLMProvider:   "deepseek",
		DeepThinkLLM:  "deepseek-chat",
		QuickThinkLLM: "deepseek-chat",
		LLMMaxTokens:  4000,

		NewsPageSize: 5,

		MarketProviders:     []string{"yahoo"},
		HistoryLookbackDays: 120,

		InitialCash:          decimal.NewFromInt(100000),
		MaxNegotiationRounds: 5,
		ExhaustedPolicy:      ExhaustedSkip,
		ApprovalThreshold:    88,
		LedgerReplay:         "source",

		ScheduleInterval:    "24h",
		ResearchConcurrency: 4,
		LLMRatePerMinute:    60,
		MarketRatePerSecond: 5,
		CacheEnabled:        true,

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,

		LogLevel: "info",
		LogEnv:   "development",
	}
}

// LoadEnv overlays CORTEX_* variables. Unprefixed names such as DEEPSEEK_API_KEY are honoured too.
func (c *Config) LoadEnv() error {
	if err := envconfig.Process(envPrefix, c); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.DataDir) == "":
		return fmt.Errorf("data_dir is required")
	case c.LLMProvider != "deepseek" && c.LLMProvider != "openai":
		return fmt.Errorf("llm_provider must be deepseek or openai, got %q", c.LLMProvider)
	case c.MaxNegotiationRounds < 1:
		return fmt.Errorf("max_negotiation_rounds must be at least 1")
	case c.ApprovalThreshold < 1 || c.ApprovalThreshold > 100:
		return fmt.Errorf("approval_threshold must be within 1..100")
	case c.ExhaustedPolicy != ExhaustedSkip && c.ExhaustedPolicy != ExhaustedExecuteLast:
		return fmt.Errorf("exhausted_policy must be %s or %s", ExhaustedSkip, ExhaustedExecuteLast)
	case c.LedgerReplay != "source" && c.LedgerReplay != "corrected":
		return fmt.Errorf("ledger_replay must be source or corrected")
	case c.InitialCash.IsNegative():
		return fmt.Errorf("initial_cash must not be negative")
	case c.HistoryLookbackDays < 1:
		return fmt.Errorf("history_lookback_days must be positive")
	}
	if _, err := c.Interval(); err != nil {
		return err
	}
	for _, p := range c.MarketProviders {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "yahoo", "longport", "alpaca":
		default:
			return fmt.Errorf("unknown market provider %q", p)
		}
	}
	return nil
}

// Interval parses schedule_interval.
func (c *Config) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.ScheduleInterval)
	if err != nil {
		return 0, fmt.Errorf("schedule_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("schedule_interval must be positive")
	}
	return d, nil
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir, c.DataCacheDir, c.ReportsDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

func loadConfigFromFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
