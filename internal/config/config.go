// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/goccy/go-json"

	"towerwatch/internal/model"
)

// minCheckInterval is the floor on the poll interval, enforced to
// respect upstream rate expectations.
const minCheckInterval = 30 * time.Second

// Config holds the application configuration.
type Config struct {
	FeedURL       string        `env:"FEED_URL" envDefault:"https://data.vatsim.net/v3/vatsim-data.json"`
	RosterURL     string        `env:"ROSTER_URL" envDefault:"https://oakartcc.org/about/roster"`
	CheckInterval time.Duration `env:"CHECK_INTERVAL" envDefault:"30s"`
	CacheMaxAge   time.Duration `env:"CACHE_MAX_AGE" envDefault:"15s"`
	RosterTTL     time.Duration `env:"ROSTER_TTL" envDefault:"1h"`
	DatabasePath  string        `env:"DATABASE_PATH" envDefault:"./data/watcher.db"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	ListenAddr    string        `env:"LISTEN_ADDR" envDefault:":8080"`
	FacilityName  string        `env:"FACILITY_NAME" envDefault:"Oakland Tower"`

	// Channel credentials. The pushover pair doubles as the legacy
	// operator recipient when both values are set.
	PushoverAPIToken string `env:"PUSHOVER_API_TOKEN"`
	PushoverUserKey  string `env:"PUSHOVER_USER_KEY"`
	SendGridAPIKey   string `env:"SENDGRID_API_KEY"`
	MailFrom         string `env:"MAIL_FROM"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`

	// Pattern overrides, each a JSON array of regular expressions.
	MainPatternsJSON  string `env:"MAIN_PATTERNS"`
	AbovePatternsJSON string `env:"SUPPORTING_ABOVE_PATTERNS"`
	BelowPatternsJSON string `env:"SUPPORTING_BELOW_PATTERNS"`

	Patterns model.PatternSet `env:"-"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.CheckInterval < minCheckInterval {
		cfg.CheckInterval = minCheckInterval
	}

	cfg.Patterns = model.PatternSet{
		Main:            []string{`^OAK_(?:[A-Z\d]+_)?TWR$`},
		SupportingAbove: []string{`^NCT_APP$`, `^OAK_\d+_CTR$`},
		SupportingBelow: []string{`^OAK_(?:[A-Z\d]+_)?GND$`, `^OAK_(?:[A-Z\d]+_)?DEL$`},
	}
	if err := parsePatterns(cfg.MainPatternsJSON, "MAIN_PATTERNS", &cfg.Patterns.Main); err != nil {
		return nil, err
	}
	if err := parsePatterns(cfg.AbovePatternsJSON, "SUPPORTING_ABOVE_PATTERNS", &cfg.Patterns.SupportingAbove); err != nil {
		return nil, err
	}
	if err := parsePatterns(cfg.BelowPatternsJSON, "SUPPORTING_BELOW_PATTERNS", &cfg.Patterns.SupportingBelow); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parsePatterns(raw, name string, dst *[]string) error {
	if raw == "" {
		return nil
	}
	var patterns []string
	if err := json.Unmarshal([]byte(raw), &patterns); err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = patterns
	return nil
}

// Operator returns the legacy single-operator recipient built from
// static process configuration, or nil when not configured. It is
// dispatched through the same fan-out as account recipients.
func (c *Config) Operator() *model.Recipient {
	if c.PushoverAPIToken == "" || c.PushoverUserKey == "" {
		return nil
	}
	return &model.Recipient{
		Kind:            model.RecipientOperator,
		Email:           "operator",
		Channel:         model.ChannelPushover,
		PushoverToken:   c.PushoverAPIToken,
		PushoverUserKey: c.PushoverUserKey,
		Enabled:         true,
	}
}
