package config

import "testing"

func validConfig() Config {
	cfg := Default()
	cfg.SuperAdminID = 999
	cfg.JWTSecret = "secret-of-sixteen-bytes-or-more"
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRequiresSuperAdmin(t *testing.T) {
	cfg := validConfig()
	cfg.SuperAdminID = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing super admin id")
	}
}

func TestValidateRejectsShortSecret(t *testing.T) {
	cfg := validConfig()
	cfg.JWTSecret = "short"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for short jwt secret")
	}
}

func TestValidateRequiresGlobalRoom(t *testing.T) {
	cfg := validConfig()
	cfg.GlobalRoom = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty global room")
	}
}
