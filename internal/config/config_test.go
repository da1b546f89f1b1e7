package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("ANALYST_PASSWORD", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPPort != 3000 {
		t.Errorf("port = %d, want 3000", cfg.HTTPPort)
	}
	if cfg.AnalystUsername != "analyst" {
		t.Errorf("username = %q", cfg.AnalystUsername)
	}
	if cfg.AuthEnabled {
		t.Error("auth should be disabled without a password")
	}
	if cfg.JWTExpiryHours != 24 {
		t.Errorf("expiry = %d, want 24", cfg.JWTExpiryHours)
	}
	if cfg.JWTSecret == "" {
		t.Error("expected a generated JWT secret")
	}
}

func TestLoad_AuthEnabledByPassword(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("ANALYST_PASSWORD", "hunter2")
	t.Setenv("HTTP_PORT", "8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.AuthEnabled {
		t.Error("auth should be enabled when a password is set")
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("port = %d, want 8080", cfg.HTTPPort)
	}
}

func TestJWTSecret_PersistsAcrossLoads(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("JWT_SECRET", "")

	first := loadOrGenerateJWTSecret(filepath.Join(dataDir, ".jwt_secret"))
	second := loadOrGenerateJWTSecret(filepath.Join(dataDir, ".jwt_secret"))
	if first == "" || first != second {
		t.Errorf("secret not stable across loads: %q vs %q", first, second)
	}

	info, err := os.Stat(filepath.Join(dataDir, ".jwt_secret"))
	if err != nil {
		t.Fatalf("secret file not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("secret file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestJWTSecret_EnvOverride(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")

	secret := loadOrGenerateJWTSecret(filepath.Join(t.TempDir(), ".jwt_secret"))
	if secret != "from-env" {
		t.Errorf("secret = %q, want env value", secret)
	}
}
