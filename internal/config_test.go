package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Analyzer.Enabled() {
		t.Error("analyzer should be disabled by default")
	}
}

func TestVaultConfig_Exclude(t *testing.T) {
	cfg := VaultConfig{Path: "./vault", Exclude: []string{".trash/**", "templates/*.md"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid patterns: %v", err)
	}
	cfg.Exclude = append(cfg.Exclude, "[unclosed")
	if err := cfg.Validate(); err == nil {
		t.Fatal("malformed pattern should fail")
	}
}

func TestCacheConfig_Backends(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CacheConfig
		wantErr bool
	}{
		{"empty backend defaults to file", CacheConfig{File: "c.json"}, false},
		{"file without path", CacheConfig{Backend: CacheBackendFile}, true},
		{"sqlite", CacheConfig{Backend: CacheBackendSQLite}, false},
		{"s3 complete", CacheConfig{Backend: CacheBackendS3, S3: S3Config{Bucket: "b", Key: "k"}}, false},
		{"s3 without bucket", CacheConfig{Backend: CacheBackendS3, S3: S3Config{Key: "k"}}, true},
		{"s3 bad endpoint", CacheConfig{Backend: CacheBackendS3, S3: S3Config{Bucket: "b", Key: "k", Endpoint: "minio:9000"}}, true},
		{"unknown backend", CacheConfig{Backend: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCacheConfig_EmptyBackendNormalised(t *testing.T) {
	cfg := CacheConfig{File: "c.json"}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != CacheBackendFile {
		t.Errorf("backend = %q, want %q", cfg.Backend, CacheBackendFile)
	}
}

func TestAnalyzerConfig(t *testing.T) {
	cfg := AnalyzerConfig{Endpoint: "http://localhost:5678/webhook/vision", Timeout: time.Minute}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid analyzer: %v", err)
	}
	if !cfg.Enabled() {
		t.Error("analyzer with endpoint should be enabled")
	}

	cfg.Endpoint = "localhost:5678"
	if err := cfg.Validate(); err == nil {
		t.Error("endpoint without scheme should fail")
	}

	cfg = AnalyzerConfig{Timeout: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("negative timeout should fail")
	}
}
