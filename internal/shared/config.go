package shared

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv      string `yaml:"app_env"`
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	// MySQLDSN enables the lead log; empty disables it.
	MySQLDSN string `yaml:"mysql_dsn"`
	// RedisAddr enables the content cache; empty disables it.
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	RedisPass string        `yaml:"redis_password"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	RexBase      string `yaml:"rex_base_url"`
	RexToken     string `yaml:"rex_token"`
	RexEmail     string `yaml:"rex_email"`
	RexPassword  string `yaml:"rex_password"`
	RexAccountID string `yaml:"rex_account_id"`
	RexRPS       int    `yaml:"rex_rps"`

	ListingPageSize int  `yaml:"listing_page_size"`
	MaxListingPages int  `yaml:"max_listing_pages"`
	DefaultLimit    int  `yaml:"default_limit"`
	MaxLimit        int  `yaml:"max_limit"`
	EnrichListings  bool `yaml:"enrich_listings"`
	EnrichWorkers   int  `yaml:"enrich_workers"`

	RetryMax  int           `yaml:"retry_max"`
	RetryBase time.Duration `yaml:"retry_base"`

	CraftBase      string `yaml:"craft_base_url"`
	CraftToken     string `yaml:"craft_token"`
	BlogFolderID   string `yaml:"blog_folder_id"`
	GuidesFolderID string `yaml:"guides_folder_id"`
	ContentWorkers int    `yaml:"content_workers"`

	MailBase   string `yaml:"mail_base_url"`
	MailKey    string `yaml:"mail_api_key"`
	MailFrom   string `yaml:"mail_from"`
	LeadsInbox string `yaml:"leads_inbox"`
	AudienceID string `yaml:"audience_id"`

	ChatBase         string `yaml:"chat_base_url"`
	ChatKey          string `yaml:"chat_api_key"`
	ChatModel        string `yaml:"chat_model"`
	ChatSystemPrompt string `yaml:"chat_system_prompt"`
	ChatMaxHistory   int    `yaml:"chat_max_history"`
	ChatMaxTokens    int    `yaml:"chat_max_tokens"`

	FormRatePerMin int `yaml:"form_rate_per_min"`
	ChatRatePerMin int `yaml:"chat_rate_per_min"`
}

const defaultSystemPrompt = "You are the friendly assistant of a boutique real-estate agency. " +
	"Answer questions about buying, selling and renting property, and the agency's services. " +
	"Keep replies short. If asked about a specific property, suggest contacting the agent."

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		AppEnv:      "prod",
		HTTPAddr:    ":8080",
		MetricsAddr: "",
		CacheTTL:    15 * time.Minute,

		RexBase:      "https://api.rexsoftware.com/v1/rex",
		RexAccountID: "default",
		RexRPS:       5,

		ListingPageSize: 100,
		MaxListingPages: 20,
		DefaultLimit:    12,
		MaxLimit:        100,
		EnrichWorkers:   8,

		RetryMax:  3,
		RetryBase: time.Second,

		CraftBase:      "https://connect.craft.do/api/v1",
		ContentWorkers: 4,

		MailBase: "https://api.resend.com",
		MailFrom: "Website <website@example.com>",

		ChatBase:         "https://api.openai.com/v1",
		ChatModel:        "gpt-4o-mini",
		ChatSystemPrompt: defaultSystemPrompt,
		ChatMaxHistory:   12,
		ChatMaxTokens:    500,

		FormRatePerMin: 10,
		ChatRatePerMin: 20,
	}
}

// Load reads .env (if present), the optional CONFIG_FILE overlay and the environment,
// in that order of increasing precedence.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg(".env could not be loaded")
	}
	c, err := LoadFrom(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Error().Err(err).Msg("config file ignored")
		c = Defaults()
		applyEnv(&c)
	}
	if c.RexToken == "" && c.RexEmail == "" {
		log.Warn().Msg("no Rex credentials: set REX_TOKEN or REX_EMAIL/REX_PASSWORD")
	}
	if c.MailKey == "" {
		log.Warn().Msg("MAIL_API_KEY is empty")
	}
	return c
}

// LoadFrom builds a Config from defaults, the YAML file at path (skipped when empty)
// and the environment.
func LoadFrom(path string) (Config, error) {
	c := Defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse config file: %w", err)
		}
	}
	applyEnv(&c)
	return c, nil
}

func applyEnv(c *Config) {
	str(&c.AppEnv, "APP_ENV")
	str(&c.HTTPAddr, "HTTP_ADDR")
	str(&c.MetricsAddr, "METRICS_ADDR")
	str(&c.MySQLDSN, "MYSQL_DSN")
	str(&c.RedisAddr, "REDIS_ADDR")
	str(&c.RedisPass, "REDIS_PASSWORD")
	atoi(&c.RedisDB, "REDIS_DB")
	seconds(&c.CacheTTL, "CACHE_TTL_SECONDS")

	str(&c.RexBase, "REX_BASE_URL")
	str(&c.RexToken, "REX_TOKEN")
	str(&c.RexEmail, "REX_EMAIL")
	str(&c.RexPassword, "REX_PASSWORD")
	str(&c.RexAccountID, "REX_ACCOUNT_ID")
	atoi(&c.RexRPS, "REX_RPS")

	atoi(&c.ListingPageSize, "LISTING_PAGE_SIZE")
	atoi(&c.MaxListingPages, "LISTING_MAX_PAGES")
	atoi(&c.DefaultLimit, "LISTING_DEFAULT_LIMIT")
	atoi(&c.MaxLimit, "LISTING_MAX_LIMIT")
	boolean(&c.EnrichListings, "LISTING_ENRICH")
	atoi(&c.EnrichWorkers, "LISTING_ENRICH_WORKERS")

	atoi(&c.RetryMax, "RETRY_MAX")
	if v := os.Getenv("RETRY_BASE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RetryBase = time.Duration(n) * time.Millisecond
		}
	}

	str(&c.CraftBase, "CRAFT_BASE_URL")
	str(&c.CraftToken, "CRAFT_TOKEN")
	str(&c.BlogFolderID, "CRAFT_BLOG_FOLDER")
	str(&c.GuidesFolderID, "CRAFT_GUIDES_FOLDER")
	atoi(&c.ContentWorkers, "CONTENT_WORKERS")

	str(&c.MailBase, "MAIL_BASE_URL")
	str(&c.MailKey, "MAIL_API_KEY")
	str(&c.MailFrom, "MAIL_FROM")
	str(&c.LeadsInbox, "LEADS_INBOX")
	str(&c.AudienceID, "MAIL_AUDIENCE_ID")

	str(&c.ChatBase, "CHAT_BASE_URL")
	str(&c.ChatKey, "CHAT_API_KEY")
	str(&c.ChatModel, "CHAT_MODEL")
	str(&c.ChatSystemPrompt, "CHAT_SYSTEM_PROMPT")
	atoi(&c.ChatMaxHistory, "CHAT_MAX_HISTORY")
	atoi(&c.ChatMaxTokens, "CHAT_MAX_TOKENS")

	atoi(&c.FormRatePerMin, "FORM_RATE_PER_MIN")
	atoi(&c.ChatRatePerMin, "CHAT_RATE_PER_MIN")
}

func str(dst *string, k string) {
	if v := os.Getenv(k); v != "" {
		*dst = v
	}
}

func atoi(dst *int, k string) {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func seconds(dst *time.Duration, k string) {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}

func boolean(dst *bool, k string) {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
