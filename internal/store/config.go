package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ai-market-dashboard/internal/types"
)

type Config struct {
	Gemini struct {
		Endpoint    string  `yaml:"endpoint"`
		APIKeyEnv   string  `yaml:"api_key_env"`
		Model       string  `yaml:"model"`
		ProModel    string  `yaml:"pro_model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float32 `yaml:"temperature"`
	} `yaml:"gemini"`
	Chart struct {
		PollSeconds  int    `yaml:"poll_seconds"`
		DefaultRange string `yaml:"default_range"`
	} `yaml:"chart"`
	Quote struct {
		PollSeconds int `yaml:"poll_seconds"`
	} `yaml:"quote"`
	Alerts struct {
		MACrossProximityPct float64     `yaml:"ma_cross_proximity_pct"`
		Rules               []AlertRule `yaml:"rules"`
	} `yaml:"alerts"`
	Watchlist struct {
		FilePath string `yaml:"file_path"`
	} `yaml:"watchlist"`
	News struct {
		ScrapeFallback bool `yaml:"scrape_fallback"`
		MaxItems       int  `yaml:"max_items"`
	} `yaml:"news"`
	Notify struct {
		Telegram struct {
			Enabled     bool   `yaml:"enabled"`
			BotTokenEnv string `yaml:"bot_token_env"`
			ChatID      string `yaml:"chat_id"`
		} `yaml:"telegram"`
	} `yaml:"notify"`
}

// AlertRule arms one price alert at startup.
type AlertRule struct {
	Symbol string  `yaml:"symbol"`
	Type   string  `yaml:"type"` // above | below | change_pct | ma_cross
	Value  float64 `yaml:"value"`
}

func (c *Config) Validate() error {
	if c.Gemini.Model == "" {
		return fmt.Errorf("gemini.model cannot be empty")
	}
	if c.Chart.PollSeconds <= 0 {
		return fmt.Errorf("chart.poll_seconds must be positive, got %d", c.Chart.PollSeconds)
	}
	if !types.ChartRange(c.Chart.DefaultRange).Valid() {
		return fmt.Errorf("chart.default_range %q is not supported", c.Chart.DefaultRange)
	}
	if c.Quote.PollSeconds <= 0 {
		return fmt.Errorf("quote.poll_seconds must be positive, got %d", c.Quote.PollSeconds)
	}
	if c.Alerts.MACrossProximityPct <= 0 || c.Alerts.MACrossProximityPct >= 100 {
		return fmt.Errorf("alerts.ma_cross_proximity_pct must be between 0-100, got %.2f", c.Alerts.MACrossProximityPct)
	}
	if c.Watchlist.FilePath == "" {
		return fmt.Errorf("watchlist.file_path cannot be empty")
	}
	for i, r := range c.Alerts.Rules {
		if r.Symbol == "" {
			return fmt.Errorf("alerts.rules[%d].symbol cannot be empty", i)
		}
		switch r.Type {
		case "above", "below", "change_pct", "ma_cross":
		default:
			return fmt.Errorf("alerts.rules[%d].type %q is not supported", i, r.Type)
		}
	}
	if c.Notify.Telegram.Enabled && c.Notify.Telegram.ChatID == "" {
		return fmt.Errorf("notify.telegram.chat_id is required when telegram is enabled")
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	applyDefaults(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Gemini.Endpoint == "" {
		c.Gemini.Endpoint = "https://generativelanguage.googleapis.com/v1beta"
	}
	if c.Gemini.APIKeyEnv == "" {
		c.Gemini.APIKeyEnv = "GEMINI_API_KEY"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Gemini.ProModel == "" {
		c.Gemini.ProModel = c.Gemini.Model
	}
	if c.Gemini.MaxTokens == 0 {
		c.Gemini.MaxTokens = 2048
	}
	if c.Chart.PollSeconds == 0 {
		c.Chart.PollSeconds = 60
	}
	if c.Chart.DefaultRange == "" {
		c.Chart.DefaultRange = "1M"
	}
	if c.Quote.PollSeconds == 0 {
		c.Quote.PollSeconds = 300
	}
	if c.Alerts.MACrossProximityPct == 0 {
		c.Alerts.MACrossProximityPct = 1.0
	}
	if c.Watchlist.FilePath == "" {
		c.Watchlist.FilePath = "data/watchlist.json"
	}
	if c.News.MaxItems == 0 {
		c.News.MaxItems = 5
	}
	if c.Notify.Telegram.BotTokenEnv == "" {
		c.Notify.Telegram.BotTokenEnv = "TELEGRAM_BOT_TOKEN"
	}
}
