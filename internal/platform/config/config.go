package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service. Values come from
// environment variables (STABLEPOST_ prefix) with an optional config.yaml
// override for local development.
type Config struct {
	ServerPort int    `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	DBPath     string `mapstructure:"DB_PATH"`

	// Business timezone: day keys for quota counters and payment-date
	// normalization are both derived in this zone.
	Timezone string `mapstructure:"TIMEZONE"`

	DailyEmailLimit  int `mapstructure:"DAILY_EMAIL_LIMIT"`
	SendDelayMS      int `mapstructure:"SEND_DELAY_MS"`
	SweepIntervalMin int `mapstructure:"SWEEP_INTERVAL_MIN"`

	ResendAPIKey string `mapstructure:"RESEND_API_KEY"`
	EmailFrom    string `mapstructure:"EMAIL_FROM"`
	EmailReplyTo string `mapstructure:"EMAIL_REPLY_TO"`

	BusinessName   string `mapstructure:"BUSINESS_NAME"`
	Tagline        string `mapstructure:"TAGLINE"`
	WebsiteURL     string `mapstructure:"WEBSITE_URL"`
	ContactPhone   string `mapstructure:"CONTACT_PHONE"`
	ContactEmail   string `mapstructure:"CONTACT_EMAIL"`
	ConsentBaseURL string `mapstructure:"CONSENT_BASE_URL"`

	UPIID              string `mapstructure:"UPI_ID"`
	DefaultAmountPaise int64  `mapstructure:"DEFAULT_AMOUNT_PAISE"`

	// Comma-separated location=code pairs, e.g. "bangalore=BLR,hyderabad=HYD".
	LocationCodes string `mapstructure:"LOCATION_CODES"`

	WelcomeBodyPath string `mapstructure:"WELCOME_BODY_PATH"`
}

// Load reads configuration from the environment and an optional config file.
// PRE: none
// POST: Returns a Config populated with env values over defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_PATH", "stablepost.db")
	v.SetDefault("TIMEZONE", "Asia/Kolkata")
	v.SetDefault("DAILY_EMAIL_LIMIT", 95)
	v.SetDefault("SEND_DELAY_MS", 1000)
	v.SetDefault("SWEEP_INTERVAL_MIN", 30)
	v.SetDefault("EMAIL_FROM", "Highfield Equestrian <noreply@highfieldequestrian.in>")
	v.SetDefault("EMAIL_REPLY_TO", "info@highfieldequestrian.in")
	v.SetDefault("BUSINESS_NAME", "Highfield Equestrian")
	v.SetDefault("TAGLINE", "Where horses don't just carry you - they change you")
	v.SetDefault("WEBSITE_URL", "https://highfieldequestrian.in")
	v.SetDefault("CONTACT_PHONE", "+91-9900000000")
	v.SetDefault("CONTACT_EMAIL", "info@highfieldequestrian.in")
	v.SetDefault("CONSENT_BASE_URL", "https://highfieldequestrian.in/consent")
	v.SetDefault("UPI_ID", "")
	v.SetDefault("DEFAULT_AMOUNT_PAISE", 950000)
	v.SetDefault("LOCATION_CODES", "bangalore=BLR,hyderabad=HYD,pune=PNE")
	v.SetDefault("WELCOME_BODY_PATH", "")

	v.SetEnvPrefix("STABLEPOST")
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; only env is required.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Location resolves the configured business timezone.
// PRE: c.Timezone is a valid IANA zone name
// POST: Returns the loaded *time.Location or an error
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ParseLocationCodes turns the LOCATION_CODES string into a lookup map with
// lower-cased location keys.
func (c *Config) ParseLocationCodes() map[string]string {
	codes := make(map[string]string)
	for _, pair := range strings.Split(c.LocationCodes, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			codes[strings.ToLower(parts[0])] = strings.ToUpper(parts[1])
		}
	}
	return codes
}
