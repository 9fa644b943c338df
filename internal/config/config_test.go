package config

import (
	"testing"
	"time"
)

func validBase() Config {
	return Config{
		App:    AppConfig{Env: "local", Port: 8080},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "libras", SSLMode: ""},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Auth:   AuthConfig{JWTSecret: "secret"},
		Bridge: BridgeConfig{BaseURL: "http://bridge.local"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLModeAndBridgeKey(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "issuer"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE / bridge credentials")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Dispatch.RequesterPollInterval != 3*time.Second {
		t.Fatalf("expected 3s requester poll default, got %v", c.Dispatch.RequesterPollInterval)
	}
	if c.Dispatch.DispatcherPollInterval != 5*time.Second {
		t.Fatalf("expected 5s dispatcher poll default, got %v", c.Dispatch.DispatcherPollInterval)
	}
	if c.SMTP.TLSMode != "starttls" {
		t.Fatalf("expected starttls default, got %q", c.SMTP.TLSMode)
	}
	if c.Bridge.RequestTimeout != 10*time.Second {
		t.Fatalf("expected 10s bridge timeout default, got %v", c.Bridge.RequestTimeout)
	}
}

func TestValidate_RejectsNegativeActiveCallCap(t *testing.T) {
	c := validBase()
	c.Dispatch.ActiveCallCap = -1
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for negative cap")
	}
}
