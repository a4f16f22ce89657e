// Package config provides configuration loading and validation utilities.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var defaults = map[string]any{
	"app_env":                      "development",
	"telegram.poll_timeout":        "10s",
	"gateway.kind":                 "payment_service",
	"gateway.asaas_base_url":       "https://www.asaas.com/api/v3",
	"gateway.service_url":          "http://localhost:4000",
	"gateway.timeout":              "15s",
	"gateway.customer_document":    "00000000000",
	"gateway.customer_email":       "cliente@example.com",
	"checkout.mode":                "gateway",
	"checkout.charge_limit":        4,
	"checkout.charge_limit_window": "1h",
	"checkout.default_language":    "pt",
	"admin.support_url":            "https://t.me/+seu_contato",
	"companion.start":              "true",
	"companion.dir":                "payment_service",
	"redis.db":                     0,
	"http.addr":                    ":9090",
	"http.shutdown_timeout":        "5s",
	"log.level":                    "info",
	"log.format":                   "text",
}

// Load reads .env files, the environment and the optional YAML file named by
// CONFIG_FILE, validates the result and returns it together with the viper
// instance used for hot reload.
func Load() (*Config, *viper.Viper, error) {
	// Missing env files are fine; the process environment still applies.
	_ = godotenv.Load(".env.local", ".env")

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if err := bindEnv(v, reflect.TypeOf(Config{}), ""); err != nil {
		return nil, nil, err
	}

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, nil, err
	}

	return &cfg, v, nil
}

// bindEnv walks the mapstructure keys of t and binds each to its env tag.
func bindEnv(v *viper.Viper, t reflect.Type, prefix string) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if prefix != "" {
			key = prefix + "." + key
		}

		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() == t.PkgPath() {
			if err := bindEnv(v, field.Type, key); err != nil {
				return err
			}
			continue
		}

		env := field.Tag.Get("env")
		if env == "" {
			continue
		}
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate checks cfg and reports failing fields by their environment variable name.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		if env := field.Tag.Get("env"); env != "" {
			return env
		}
		return field.Name
	})

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("validate config: %s", strings.Join(problems, "; "))
}

// Watch reloads the admin allow-list and support URL into live whenever the
// config file changes. It does nothing when no file was loaded.
func Watch(v *viper.Viper, live *Live, log *slog.Logger) {
	if v == nil || v.ConfigFileUsed() == "" {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		// Leaf lookups keep env-bound values; a parent-key lookup would drop them.
		admin := AdminConfig{
			ChatIDs:    v.GetString("admin.chat_ids"),
			SupportURL: v.GetString("admin.support_url"),
		}

		live.Update(admin.IDs(), admin.SupportURL)
		log.Info("config reloaded",
			slog.String("file", e.Name),
			slog.Int("admins", len(live.AdminIDs())),
		)
	})
	v.WatchConfig()
}
