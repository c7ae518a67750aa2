package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"MemeFarm/internal/domain"
)

const (
	defaultTimezone = "Asia/Kolkata"

	configPathEnv       = "MEMEFARM_CONFIG"
	databaseDSNEnv      = "DATABASE_DSN"
	databaseDriverEnv   = "DATABASE_DRIVER"
	redditClientIDEnv   = "REDDIT_CLIENT_ID"
	redditSecretEnv     = "REDDIT_CLIENT_SECRET"
	redditUserAgentEnv  = "REDDIT_USER_AGENT"
	twitterTokenEnv     = "TWITTER_BEARER_TOKEN"
	llmAPIKeyEnv        = "LLM_API_KEY"
	llmModelEnv         = "LLM_MODEL"
	instagramTokenEnv   = "INSTAGRAM_ACCESS_TOKEN"
	instagramAccountEnv = "INSTAGRAM_ACCOUNT_ID"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
	redisAddrEnv        = "REDIS_ADDR"
	logLevelEnv         = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Reddit    RedditConfig    `yaml:"reddit"`
	Twitter   TwitterConfig   `yaml:"twitter"`
	LLM       LLMConfig       `yaml:"llm"`
	Instagram InstagramConfig `yaml:"instagram"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Redis     RedisConfig     `yaml:"redis"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig selects the SQL driver (sqlite or postgres) and its DSN.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedditConfig configures the content source.
type RedditConfig struct {
	// Strategy is the registered scanner name: reddit-api or reddit-html.
	Strategy     string `yaml:"strategy"`
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
	UserAgent    string `yaml:"userAgent"`
	BaseURL      string `yaml:"baseUrl"`
	TokenURL     string `yaml:"tokenUrl"`
	Listing      string `yaml:"listing"`
}

// TwitterConfig enables the recent search source when BearerToken is set.
type TwitterConfig struct {
	BearerToken string   `yaml:"bearerToken"`
	BaseURL     string   `yaml:"baseUrl"`
	Queries     []string `yaml:"queries"`
}

// LLMConfig defines how to contact an OpenAI-compatible chat endpoint.
type LLMConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// InstagramConfig wires the Graph API publisher.
type InstagramConfig struct {
	GraphURL    string `yaml:"graphUrl"`
	AccessToken string `yaml:"accessToken"`
	AccountID   string `yaml:"accountId"`
}

// TelegramConfig wires all data required to send run reports.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// RedisConfig enables the cross-process stage lock when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PipelineConfig holds stage limits and the slot policy.
type PipelineConfig struct {
	Timezone            string        `yaml:"timezone"`
	Windows             []string      `yaml:"windows"`
	Spacing             time.Duration `yaml:"spacing"`
	Horizon             time.Duration `yaml:"horizon"`
	RetryCeiling        int           `yaml:"retryCeiling"`
	MediaTypes          []string      `yaml:"mediaTypes"`
	CollaboratorTimeout time.Duration `yaml:"collaboratorTimeout"`
	ClaimLease          time.Duration `yaml:"claimLease"`
	LockTTL             time.Duration `yaml:"lockTtl"`
	Subreddits          []string      `yaml:"subreddits"`
	ScrapeLimit         int           `yaml:"scrapeLimit"`
	GenerateLimit       int           `yaml:"generateLimit"`
	PerPosts            int           `yaml:"perPosts"`
	MaxPosts            int           `yaml:"maxPosts"`

	location *time.Location  `yaml:"-"`
	windows  []domain.Window `yaml:"-"`
}

// Location resolves the pipeline timezone string to a time.Location.
func (p PipelineConfig) Location() *time.Location {
	if p.location != nil {
		return p.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParsedWindows returns the windows parsed by Load, parsing them on demand otherwise.
func (p PipelineConfig) ParsedWindows() ([]domain.Window, error) {
	if p.windows != nil {
		return p.windows, nil
	}
	return domain.ParseWindows(p.Windows)
}

// MediaTypeList converts the configured media types to domain values.
func (p PipelineConfig) MediaTypeList() []domain.MediaType {
	out := make([]domain.MediaType, 0, len(p.MediaTypes))
	for _, mt := range p.MediaTypes {
		if mt = strings.ToLower(strings.TrimSpace(mt)); mt != "" {
			out = append(out, domain.MediaType(mt))
		}
	}
	return out
}

// Load reads YAML configuration from path, or from MEMEFARM_CONFIG when path
// is empty, and applies environment overrides. A missing or malformed file
// falls back to defaults.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	if windows, err := domain.ParseWindows(cfg.Pipeline.Windows); err == nil {
		cfg.Pipeline.windows = windows
	}

	return cfg
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	switch strings.ToLower(c.Database.Driver) {
	case "", "sqlite", "sqlite3", "postgres", "postgresql", "pg":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if len(c.Pipeline.Windows) == 0 {
		errs = append(errs, errors.New("pipeline.windows must not be empty"))
	} else if _, err := domain.ParseWindows(c.Pipeline.Windows); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.windows: %w", err))
	}
	if c.Pipeline.Spacing <= 0 {
		errs = append(errs, errors.New("pipeline.spacing must be positive"))
	}
	if c.Pipeline.RetryCeiling <= 0 {
		errs = append(errs, errors.New("pipeline.retryCeiling must be positive"))
	}
	if c.Pipeline.ClaimLease <= c.Pipeline.CollaboratorTimeout {
		errs = append(errs, errors.New("pipeline.claimLease must exceed pipeline.collaboratorTimeout"))
	}
	if c.Pipeline.Horizon < 0 {
		errs = append(errs, errors.New("pipeline.horizon must not be negative"))
	}
	if tz := c.Pipeline.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("pipeline.timezone: %w", err))
		}
	}
	if len(c.Pipeline.MediaTypeList()) == 0 {
		errs = append(errs, errors.New("pipeline.mediaTypes must not be empty"))
	}

	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{databaseDSNEnv, &c.Database.DSN},
		{databaseDriverEnv, &c.Database.Driver},
		{redditClientIDEnv, &c.Reddit.ClientID},
		{redditSecretEnv, &c.Reddit.ClientSecret},
		{redditUserAgentEnv, &c.Reddit.UserAgent},
		{twitterTokenEnv, &c.Twitter.BearerToken},
		{llmAPIKeyEnv, &c.LLM.APIKey},
		{llmModelEnv, &c.LLM.Model},
		{instagramTokenEnv, &c.Instagram.AccessToken},
		{instagramAccountEnv, &c.Instagram.AccountID},
		{telegramTokenEnv, &c.Telegram.BotToken},
		{telegramChatIDEnv, &c.Telegram.ChatID},
		{redisAddrEnv, &c.Redis.Addr},
		{logLevelEnv, &c.Logging.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Pipeline.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, err = time.LoadLocation(defaultTimezone)
		if err != nil {
			loc = time.UTC
		}
	}
	c.Pipeline.location = loc
}

func mergeConfig(base, override Config) Config {
	mergeString(&base.Logging.Level, override.Logging.Level)

	mergeString(&base.Database.Driver, override.Database.Driver)
	mergeString(&base.Database.DSN, override.Database.DSN)

	mergeString(&base.Reddit.Strategy, override.Reddit.Strategy)
	mergeString(&base.Reddit.ClientID, override.Reddit.ClientID)
	mergeString(&base.Reddit.ClientSecret, override.Reddit.ClientSecret)
	mergeString(&base.Reddit.UserAgent, override.Reddit.UserAgent)
	mergeString(&base.Reddit.BaseURL, override.Reddit.BaseURL)
	mergeString(&base.Reddit.TokenURL, override.Reddit.TokenURL)
	mergeString(&base.Reddit.Listing, override.Reddit.Listing)

	mergeString(&base.Twitter.BearerToken, override.Twitter.BearerToken)
	mergeString(&base.Twitter.BaseURL, override.Twitter.BaseURL)
	if len(override.Twitter.Queries) > 0 {
		base.Twitter.Queries = override.Twitter.Queries
	}

	mergeString(&base.LLM.Endpoint, override.LLM.Endpoint)
	mergeString(&base.LLM.Model, override.LLM.Model)
	mergeString(&base.LLM.APIKey, override.LLM.APIKey)
	mergeString(&base.LLM.SystemPrompt, override.LLM.SystemPrompt)

	mergeString(&base.Instagram.GraphURL, override.Instagram.GraphURL)
	mergeString(&base.Instagram.AccessToken, override.Instagram.AccessToken)
	mergeString(&base.Instagram.AccountID, override.Instagram.AccountID)

	mergeString(&base.Telegram.BotToken, override.Telegram.BotToken)
	mergeString(&base.Telegram.ChatID, override.Telegram.ChatID)

	if override.Redis.Addr != "" {
		base.Redis = override.Redis
	}

	p, o := &base.Pipeline, override.Pipeline
	mergeString(&p.Timezone, o.Timezone)
	if len(o.Windows) > 0 {
		p.Windows = o.Windows
	}
	if o.Spacing != 0 {
		p.Spacing = o.Spacing
	}
	if o.Horizon != 0 {
		p.Horizon = o.Horizon
	}
	if o.RetryCeiling != 0 {
		p.RetryCeiling = o.RetryCeiling
	}
	if len(o.MediaTypes) > 0 {
		p.MediaTypes = o.MediaTypes
	}
	if o.CollaboratorTimeout != 0 {
		p.CollaboratorTimeout = o.CollaboratorTimeout
	}
	if o.ClaimLease != 0 {
		p.ClaimLease = o.ClaimLease
	}
	if o.LockTTL != 0 {
		p.LockTTL = o.LockTTL
	}
	if len(o.Subreddits) > 0 {
		p.Subreddits = o.Subreddits
	}
	if o.ScrapeLimit != 0 {
		p.ScrapeLimit = o.ScrapeLimit
	}
	if o.GenerateLimit != 0 {
		p.GenerateLimit = o.GenerateLimit
	}
	if o.PerPosts != 0 {
		p.PerPosts = o.PerPosts
	}
	if o.MaxPosts != 0 {
		p.MaxPosts = o.MaxPosts
	}

	return base
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/memefarm.db"},
		Reddit: RedditConfig{
			Strategy:  "reddit-api",
			UserAgent: "memefarm/1.0",
			BaseURL:   "https://oauth.reddit.com",
			TokenURL:  "https://www.reddit.com/api/v1/access_token",
			Listing:   "hot",
		},
		Twitter: TwitterConfig{
			BaseURL: "https://api.twitter.com",
			Queries: []string{"(meme OR memes) (india OR indian) lang:en -is:retweet has:images"},
		},
		LLM: LLMConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are an expert Indian meme copywriter for Instagram.",
		},
		Instagram: InstagramConfig{GraphURL: "https://graph.facebook.com/v19.0"},
		Pipeline: PipelineConfig{
			Timezone:            defaultTimezone,
			Windows:             []string{"11:00-14:00", "18:00-21:00"},
			Spacing:             40 * time.Minute,
			Horizon:             14 * 24 * time.Hour,
			RetryCeiling:        3,
			MediaTypes:          []string{string(domain.MediaImage)},
			CollaboratorTimeout: 30 * time.Second,
			ClaimLease:          5 * time.Minute,
			LockTTL:             15 * time.Minute,
			Subreddits:          []string{"IndianDankMemes", "indiameme", "desimemes"},
			ScrapeLimit:         50,
			PerPosts:            5,
		},
	}
}
