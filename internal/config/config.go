package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	DBPath   string `envconfig:"DB_PATH" default:"./data/safely.db"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error

	// Phone numbers without an international prefix are assumed local to
	// this country code before dispatch.
	DefaultCountryCode string `envconfig:"DEFAULT_COUNTRY_CODE" default:"+27"`

	SessionTTL          time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	DemoDurationMinutes int           `envconfig:"DEMO_DURATION_MINUTES" default:"2"`

	// Twilio credentials. Leaving them empty disables outbound alerts
	// (messages are dropped with a warning), which keeps local runs and
	// the onboarding demo self-contained.
	TwilioAccountSID   string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken    string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioSMSFrom      string `envconfig:"TWILIO_SMS_FROM"`
	TwilioWhatsAppFrom string `envconfig:"TWILIO_WHATSAPP_FROM"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
