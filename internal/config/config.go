package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"

	SinkLog   = "log"
	SinkKafka = "kafka"
	SinkNATS  = "nats"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	StoreDriver       string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	SQLitePath        string        `mapstructure:"SQLITE_PATH"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	LockTTL           time.Duration `mapstructure:"LOCK_TTL"`
	AuthIssuer        string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL       string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience      string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey    string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	EventSink         string        `mapstructure:"EVENT_SINK"`
	KafkaBrokers      []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic        string        `mapstructure:"KAFKA_TOPIC"`
	NATSURL           string        `mapstructure:"NATS_URL"`
	NATSSubject       string        `mapstructure:"NATS_SUBJECT"`
	MQTTBroker        string        `mapstructure:"MQTT_BROKER"`
	MQTTClientID      string        `mapstructure:"MQTT_CLIENT_ID"`
	MQTTTopic         string        `mapstructure:"MQTT_TOPIC"`
	WatchdogSchedule  string        `mapstructure:"WATCHDOG_SCHEDULE"`
	MissingDataWindow time.Duration `mapstructure:"MISSING_DATA_WINDOW"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"STORE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "SQLITE_PATH",
	"REDIS_URL", "LOCK_TTL",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY", "CORS_ORIGINS",
	"EVENT_SINK", "KAFKA_BROKERS", "KAFKA_TOPIC", "NATS_URL", "NATS_SUBJECT",
	"MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_TOPIC",
	"WATCHDOG_SCHEDULE", "MISSING_DATA_WINDOW",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", StoreMemory)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("SQLITE_PATH", "medicai.db")
	v.SetDefault("LOCK_TTL", "30s")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("EVENT_SINK", SinkLog)
	v.SetDefault("KAFKA_TOPIC", "medicai.alerts")
	v.SetDefault("NATS_SUBJECT", "medicai.alerts")
	v.SetDefault("MQTT_CLIENT_ID", "medicai-server")
	v.SetDefault("MQTT_TOPIC", "medicai/observations/+")
	v.SetDefault("WATCHDOG_SCHEDULE", "0 */15 * * * *")
	v.SetDefault("MISSING_DATA_WINDOW", "12h")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))
	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	cfg.EventSink = strings.ToLower(cfg.EventSink)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsDev() {
		log.Println("WARNING: ENV=development, DevAuthMiddleware is active and every request acts as dev-user.")
	}

	return cfg, nil
}

// splitList re-splits comma separated env values and trims whitespace around each entry.
func splitList(parsed []string, raw string) []string {
	if raw == "" {
		return parsed
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the selected store, event sink and schedules have what they need.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StorePostgres)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is %q", StoreSQLite)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q, %q or %q, got %q", StorePostgres, StoreSQLite, StoreMemory, c.StoreDriver)
	}

	switch c.EventSink {
	case SinkLog:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENT_SINK is %q", SinkKafka)
		}
	case SinkNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when EVENT_SINK is %q", SinkNATS)
		}
	default:
		return fmt.Errorf("EVENT_SINK must be %q, %q or %q, got %q", SinkLog, SinkKafka, SinkNATS, c.EventSink)
	}

	if c.MissingDataWindow <= 0 {
		return fmt.Errorf("MISSING_DATA_WINDOW must be positive, got %s", c.MissingDataWindow)
	}
	if c.RedisURL != "" && c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive when REDIS_URL is set")
	}
	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf("AUTH_JWKS_URL or AUTH_SIGNING_KEY must be set outside development (current ENV=%q)", c.Env)
	}
	return nil
}
