package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Bridge   BridgeConfig
	SMTP     SMTPConfig
	Dispatch DispatchConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// BridgeConfig configures the external video-bridge API used to provision
// interpreter rooms.
type BridgeConfig struct {
	BaseURL string
	APIKey  string

	// WebhookSecret authenticates room lifecycle callbacks from the bridge.
	WebhookSecret string

	RequestTimeout time.Duration
}

// SMTPConfig configures the invite relay mailer.
// TLSMode accepts: none, starttls, tls.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	TLSMode  string
}

// DispatchConfig carries queue tuning knobs.
//
// Poll intervals are advertised to clients in API responses; the server does
// not push state changes, so every transition must be discoverable by the
// next poll.
type DispatchConfig struct {
	RequesterPollInterval  time.Duration
	DispatcherPollInterval time.Duration

	// ActiveCallCap limits concurrent active calls per tenant (0 disables).
	ActiveCallCap int
	// ActiveCallCapTTL bounds how long a crashed process can hold cap slots.
	ActiveCallCapTTL time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optDuration("JWT_REFRESH_TTL")

	c.Bridge.BaseURL = strings.TrimSpace(os.Getenv("BRIDGE_BASE_URL"))
	c.Bridge.APIKey = os.Getenv("BRIDGE_API_KEY")
	c.Bridge.WebhookSecret = os.Getenv("BRIDGE_WEBHOOK_SECRET")
	c.Bridge.RequestTimeout = optDuration("BRIDGE_REQUEST_TIMEOUT")

	c.SMTP.Host = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	c.SMTP.Port = optInt("SMTP_PORT")
	c.SMTP.From = strings.TrimSpace(os.Getenv("SMTP_FROM"))
	c.SMTP.Username = strings.TrimSpace(os.Getenv("SMTP_USERNAME"))
	c.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	c.SMTP.TLSMode = strings.TrimSpace(os.Getenv("SMTP_TLS_MODE"))

	c.Dispatch.RequesterPollInterval = optDuration("DISPATCH_REQUESTER_POLL_INTERVAL")
	c.Dispatch.DispatcherPollInterval = optDuration("DISPATCH_DISPATCHER_POLL_INTERVAL")
	c.Dispatch.ActiveCallCap = optInt("DISPATCH_ACTIVE_CALL_CAP")
	c.Dispatch.ActiveCallCapTTL = optDuration("DISPATCH_ACTIVE_CALL_CAP_TTL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Bridge.BaseURL == "" {
		errs = append(errs, errors.New("BRIDGE_BASE_URL is required"))
	}
	if c.IsProduction() && c.Bridge.APIKey == "" {
		errs = append(errs, errors.New("BRIDGE_API_KEY is required in production"))
	}
	if c.IsProduction() && c.Bridge.WebhookSecret == "" {
		errs = append(errs, errors.New("BRIDGE_WEBHOOK_SECRET is required in production"))
	}
	if c.Bridge.RequestTimeout <= 0 {
		c.Bridge.RequestTimeout = 10 * time.Second
	}

	// SMTP is optional outside production: invites degrade to delivery errors.
	if c.SMTP.Host != "" {
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			errs = append(errs, fmt.Errorf("SMTP_PORT must be a valid port, got %d", c.SMTP.Port))
		}
		if c.SMTP.From == "" {
			errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
		}
	}
	if c.SMTP.TLSMode == "" {
		c.SMTP.TLSMode = "starttls"
	}
	if !isValidTLSMode(c.SMTP.TLSMode) {
		errs = append(errs, fmt.Errorf("SMTP_TLS_MODE must be one of none, starttls, tls, got %q", c.SMTP.TLSMode))
	}

	if c.Dispatch.RequesterPollInterval <= 0 {
		c.Dispatch.RequesterPollInterval = 3 * time.Second
	}
	if c.Dispatch.DispatcherPollInterval <= 0 {
		c.Dispatch.DispatcherPollInterval = 5 * time.Second
	}
	if c.Dispatch.ActiveCallCap < 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_ACTIVE_CALL_CAP must be >= 0, got %d", c.Dispatch.ActiveCallCap))
	}
	if c.Dispatch.ActiveCallCapTTL <= 0 {
		c.Dispatch.ActiveCallCapTTL = 2 * time.Hour
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c Config) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", c.SMTP.Host, c.SMTP.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func isValidTLSMode(v string) bool {
	switch v {
	case "none", "starttls", "tls":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
