// Package config loads application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envFile = "config/.env"

// NewConfig loads configuration from environment using viper with typed defaults and validation.
func NewConfig() (*Config, error) {
	return Load(envFile)
}

// Load reads envPath (if present) into the process environment without
// overriding variables that are already set, then decodes the config.
func Load(envPath string) (*Config, error) {
	v := viper.New()
	if envMap, err := godotenv.Read(envPath); err == nil {
		for k, val := range envMap {
			if _, exists := os.LookupEnv(k); !exists {
				_ = os.Setenv(k, val)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var defaults = map[string]any{
	"logging.level": "info",

	"server.host":             "0.0.0.0",
	"server.port":             8080,
	"server.shutdown_timeout": 10 * time.Second,

	"http.request_timeout": 3 * time.Second,
	"http.metrics_path":    "/metrics",

	"repository.backend": "postgres",

	"scheduler.tick_interval": time.Minute,

	"dispatcher.workers":      4,
	"dispatcher.queue_size":   256,
	"dispatcher.max_attempts": 3,
	"dispatcher.base_backoff": time.Second,
	"dispatcher.max_backoff":  30 * time.Second,
	"dispatcher.send_timeout": 10 * time.Second,

	"channels.default_primary_email": "facilities@example.com",
	"channels.smtp.host":             "",
	"channels.smtp.port":             587,
	"channels.smtp.username":         "",
	"channels.smtp.password":         "",
	"channels.smtp.from":             "maintenance@example.com",
	"channels.smtp.subject":          "Maintenance request update",
	"channels.whatsapp.url":          "",
	"channels.whatsapp.token":        "",
	"channels.whatsapp.timeout":      5 * time.Second,
	"channels.sms.url":               "",
	"channels.sms.token":             "",
	"channels.sms.timeout":           5 * time.Second,

	"postgres.host":            "localhost",
	"postgres.port":            5432,
	"postgres.user":            "postgres",
	"postgres.password":        "postgres",
	"postgres.db_name":         "facility_maintenance_db",
	"postgres.ssl_mode":        "disable",
	"postgres.migrations_dir":  "db/migrations",
	"postgres.migrate_timeout": 10 * time.Second,
	"postgres.query_timeout":   2 * time.Second,
	"postgres.max_conns":       10,
	"postgres.min_conns":       2,
}

var keys = func() []string {
	out := make([]string, 0, len(defaults))
	for k := range defaults {
		out = append(out, k)
	}
	return out
}()

func setDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}
