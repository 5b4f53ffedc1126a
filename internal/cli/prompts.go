package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexOffice/config"
)

// wizardAnswers mirrors the questions asked by config init.
type wizardAnswers struct {
	LLMProvider       string   `survey:"llm_provider"`
	Model             string   `survey:"model"`
	APIKey            string   `survey:"api_key"`
	NewsAPIKey        string   `survey:"news_api_key"`
	MarketProviders   []string `survey:"market_providers"`
	InitialCash       string   `survey:"initial_cash"`
	ApprovalThreshold string   `survey:"approval_threshold"`
	MaxRounds         string   `survey:"max_rounds"`
	ExhaustedPolicy   string   `survey:"exhausted_policy"`
	ScheduleInterval  string   `survey:"schedule_interval"`
}

func intInRange(lo, hi int) survey.Validator {
	return func(val interface{}) error {
		n, err := strconv.Atoi(strings.TrimSpace(val.(string)))
		if err != nil {
			return fmt.Errorf("enter a whole number")
		}
		if n < lo || n > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

func validateCash(val interface{}) error {
	d, err := decimal.NewFromString(strings.TrimSpace(val.(string)))
	if err != nil {
		return fmt.Errorf("enter an amount such as 100000")
	}
	if d.IsNegative() {
		return fmt.Errorf("cash cannot be negative")
	}
	return nil
}

func validateInterval(val interface{}) error {
	d, err := time.ParseDuration(strings.TrimSpace(val.(string)))
	if err != nil {
		return fmt.Errorf("use a duration such as 24h or 90m")
	}
	if d <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return nil
}

func wizardQuestions(cfg config.Config) []*survey.Question {
	return []*survey.Question{
		{
			Name: "llm_provider",
			Prompt: &survey.Select{
				Message: "LLM provider:",
				Options: []string{"deepseek", "openai"},
				Default: cfg.LLMProvider,
			},
		},
		{
			Name: "model",
			Prompt: &survey.Input{
				Message: "Model name:",
				Default: cfg.DeepThinkLLM,
			},
			Validate: survey.Required,
		},
		{
			Name: "api_key",
			Prompt: &survey.Password{
				Message: "API key for the provider (leave empty to keep the current one):",
			},
		},
		{
			Name: "news_api_key",
			Prompt: &survey.Password{
				Message: "NewsAPI key (optional, Google News is used otherwise):",
			},
		},
		{
			Name: "market_providers",
			Prompt: &survey.MultiSelect{
				Message: "Market data providers, in fallback order:",
				Options: []string{"yahoo", "longport", "alpaca"},
				Default: cfg.MarketProviders,
			},
			Validate: survey.MinItems(1),
		},
		{
			Name: "initial_cash",
			Prompt: &survey.Input{
				Message: "Initial cash:",
				Default: cfg.InitialCash.String(),
			},
			Validate: validateCash,
		},
		{
			Name: "approval_threshold",
			Prompt: &survey.Input{
				Message: "Reviewer approval threshold (score must exceed it):",
				Default: strconv.Itoa(cfg.ApprovalThreshold),
			},
			Validate: intInRange(1, 100),
		},
		{
			Name: "max_rounds",
			Prompt: &survey.Input{
				Message: "Maximum negotiation rounds per day:",
				Default: strconv.Itoa(cfg.MaxNegotiationRounds),
			},
			Validate: intInRange(1, 50),
		},
		{
			Name: "exhausted_policy",
			Prompt: &survey.Select{
				Message: "When no recommendation is approved:",
				Options: []string{config.ExhaustedSkip, config.ExhaustedExecuteLast},
				Default: cfg.ExhaustedPolicy,
			},
		},
		{
			Name: "schedule_interval",
			Prompt: &survey.Input{
				Message: "Time between trading days:",
				Default: cfg.ScheduleInterval,
			},
			Validate: validateInterval,
		},
	}
}

// runConfigWizard asks for the settings most users change and returns the updated config.
func runConfigWizard(cfg config.Config) (config.Config, error) {
	var answers wizardAnswers
	if err := survey.Ask(wizardQuestions(cfg), &answers); err != nil {
		return cfg, err
	}
	return applyAnswers(cfg, answers)
}

func applyAnswers(cfg config.Config, a wizardAnswers) (config.Config, error) {
	cfg.LLMProvider = a.LLMProvider
	cfg.DeepThinkLLM = strings.TrimSpace(a.Model)
	cfg.QuickThinkLLM = cfg.DeepThinkLLM
	if key := strings.TrimSpace(a.APIKey); key != "" {
		switch a.LLMProvider {
		case "openai":
			cfg.OpenAIAPIKey = key
		default:
			cfg.DeepSeekAPIKey = key
		}
	}
	if key := strings.TrimSpace(a.NewsAPIKey); key != "" {
		cfg.NewsAPIKey = key
	}
	if len(a.MarketProviders) > 0 {
		cfg.MarketProviders = a.MarketProviders
	}

	cash, err := decimal.NewFromString(strings.TrimSpace(a.InitialCash))
	if err != nil {
		return cfg, fmt.Errorf("initial cash: %w", err)
	}
	cfg.InitialCash = cash
	if cfg.ApprovalThreshold, err = strconv.Atoi(strings.TrimSpace(a.ApprovalThreshold)); err != nil {
		return cfg, fmt.Errorf("approval threshold: %w", err)
	}
	if cfg.MaxNegotiationRounds, err = strconv.Atoi(strings.TrimSpace(a.MaxRounds)); err != nil {
		return cfg, fmt.Errorf("max rounds: %w", err)
	}
	cfg.ExhaustedPolicy = a.ExhaustedPolicy
	cfg.ScheduleInterval = strings.TrimSpace(a.ScheduleInterval)
	return cfg, cfg.Validate()
}
