package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type testConfig struct {
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`
	Tags    []string      `yaml:"tags"`
}

func (c *testConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("IRIS_TEST_NAME", "vault")
	p := writeConfig(t, "name: ${IRIS_TEST_NAME}\ntags: [a, b]\n")

	cfg := testConfig{Timeout: time.Minute}
	if err := Load(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "vault" {
		t.Errorf("name = %q, want vault", cfg.Name)
	}
	if cfg.Timeout != time.Minute {
		t.Errorf("timeout default overwritten: %s", cfg.Timeout)
	}
	if len(cfg.Tags) != 2 {
		t.Errorf("tags = %v", cfg.Tags)
	}
}

func TestLoad_Duration(t *testing.T) {
	p := writeConfig(t, "name: x\ntimeout: 90s\n")
	var cfg testConfig
	if err := Load(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("timeout = %s, want 90s", cfg.Timeout)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	p := writeConfig(t, "name: x\nnmae: typo\n")
	var cfg testConfig
	if err := Load(p, &cfg); err == nil {
		t.Fatal("unknown key should fail")
	}
}

func TestLoad_Validation(t *testing.T) {
	p := writeConfig(t, "tags: [a]\n")
	var cfg testConfig
	err := Load(p, &cfg)
	if err == nil || !strings.Contains(err.Error(), "name is required") {
		t.Fatalf("err = %v, want validation failure", err)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	p := writeConfig(t, "")
	cfg := testConfig{Name: "default"}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("empty file should keep defaults: %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	cfg := testConfig{Name: "default"}
	if err := LoadOptional(missing, &cfg); err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if cfg.Name != "default" {
		t.Errorf("name = %q", cfg.Name)
	}

	var empty testConfig
	if err := LoadOptional(missing, &empty); err == nil {
		t.Error("invalid defaults should still fail validation")
	}

	if err := Load(missing, &cfg); err == nil {
		t.Error("Load should fail on a missing file")
	}
}
