package config

import (
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration for the sales bot.
type Config struct {
	AppEnv string `mapstructure:"app_env" env:"APP_ENV" validate:"required"`

	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Checkout  CheckoutConfig  `mapstructure:"checkout"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Companion CompanionConfig `mapstructure:"companion"`
	Redis     RedisConfig     `mapstructure:"redis"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

type TelegramConfig struct {
	Token       string        `mapstructure:"token" env:"TELEGRAM_BOT_TOKEN" validate:"required"`
	PollTimeout time.Duration `mapstructure:"poll_timeout" env:"BOT_POLL_TIMEOUT" validate:"gt=0"`
}

// GatewayConfig selects the payment gateway and how to reach it.
type GatewayConfig struct {
	Kind             string        `mapstructure:"kind" env:"PAYMENT_GATEWAY" validate:"oneof=payment_service asaas"`
	APIKey           string        `mapstructure:"api_key" env:"ASAAS_API_KEY" validate:"required"`
	AsaasBaseURL     string        `mapstructure:"asaas_base_url" env:"ASAAS_BASE_URL" validate:"required,url"`
	ServiceURL       string        `mapstructure:"service_url" env:"PAYMENT_SERVICE_URL" validate:"required,url"`
	Timeout          time.Duration `mapstructure:"timeout" env:"GATEWAY_TIMEOUT" validate:"gt=0"`
	CustomerDocument string        `mapstructure:"customer_document" env:"PAYMENT_CUSTOMER_DOCUMENT"`
	CustomerEmail    string        `mapstructure:"customer_email" env:"PAYMENT_CUSTOMER_EMAIL" validate:"omitempty,email"`
}

// BaseURL returns the endpoint root for the selected gateway.
func (g GatewayConfig) BaseURL() string {
	if g.Kind == "asaas" {
		return g.AsaasBaseURL
	}
	return g.ServiceURL
}

type CheckoutConfig struct {
	Mode         string        `mapstructure:"mode" env:"CHECKOUT_MODE" validate:"oneof=gateway manual"`
	InviteLink   string        `mapstructure:"invite_link" env:"INVITE_LINK" validate:"required_if=Mode manual"`
	PixKey       string        `mapstructure:"pix_key" env:"PIX_KEY"`
	ChargeLimit  int           `mapstructure:"charge_limit" env:"CHARGE_LIMIT" validate:"gt=0"`
	ChargeWindow time.Duration `mapstructure:"charge_limit_window" env:"CHARGE_LIMIT_WINDOW" validate:"gt=0"`
	Language     string        `mapstructure:"default_language" env:"DEFAULT_LANGUAGE" validate:"required"`
}

// AdminConfig is reloaded at runtime when the config file changes.
type AdminConfig struct {
	ChatIDs    string `mapstructure:"chat_ids" env:"ADMIN_CHAT_IDS"`
	SupportURL string `mapstructure:"support_url" env:"SUPORTE_URL" validate:"required,url"`
}

// IDs parses ChatIDs, dropping entries that are not numeric.
func (a AdminConfig) IDs() []int64 {
	return ParseAdminIDs(a.ChatIDs)
}

type CompanionConfig struct {
	Start string `mapstructure:"start" env:"START_PAYMENT_SERVICE"`
	Dir   string `mapstructure:"dir" env:"PAYMENT_SERVICE_DIR"`
}

// Enabled reports whether the payment service should be launched.
func (c CompanionConfig) Enabled() bool {
	return Truthy(c.Start)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" env:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password" env:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"db" env:"REDIS_DB" validate:"gte=0"`
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" env:"HTTP_ADDR" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" env:"LOG_FORMAT" validate:"oneof=text json"`
	File   string `mapstructure:"file" env:"LOG_FILE"`
}

type SentryConfig struct {
	DSN string `mapstructure:"dsn" env:"SENTRY_DSN" validate:"omitempty,url"`
}

type CatalogConfig struct {
	File string `mapstructure:"file" env:"CATALOG_FILE"`
}

// ParseAdminIDs splits a comma separated list of chat ids. Blank and
// non-numeric entries are skipped.
func ParseAdminIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Truthy treats everything except empty, 0, false, no and off as true.
func Truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}
