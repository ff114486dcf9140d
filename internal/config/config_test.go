package config

import (
	"flag"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"FASTSCRIBE_MODEL":              "small",
		"FASTSCRIBE_LANGUAGE":           "hi",
		"FASTSCRIBE_SEGMENTS":           "4",
		"FASTSCRIBE_TRANSCRIBE_TIMEOUT": "90m",
		"FASTSCRIBE_STATUS_ADDR":        ":8080",
	}
	cfg := Default()
	if err := cfg.applyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}
	if cfg.Model != "small" || cfg.Language != "hi" || cfg.Segments != 4 || cfg.StatusAddr != ":8080" {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.TranscribeTimeout != 90*time.Minute {
		t.Fatalf("transcribe timeout = %v", cfg.TranscribeTimeout)
	}
	if cfg.Threads != 2 {
		t.Fatal("unset variables must keep defaults")
	}
}

func TestApplyEnvInvalid(t *testing.T) {
	for key, value := range map[string]string{
		"FASTSCRIBE_SEGMENTS":      "four",
		"FASTSCRIBE_POLL_INTERVAL": "soon",
	} {
		cfg := Default()
		err := cfg.applyEnv(func(k string) string {
			if k == key {
				return value
			}
			return ""
		})
		if err == nil || !strings.Contains(err.Error(), key) {
			t.Errorf("%s=%s: error = %v", key, value, err)
		}
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	cfg := Default()
	cfg.applyEnv(func(k string) string {
		if k == "FASTSCRIBE_SEGMENTS" {
			return "3"
		}
		return ""
	})

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if err := fs.Parse([]string{"-model", "tiny", "-lang", "auto"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Segments != 3 || cfg.Model != "tiny" || cfg.Language != "auto" {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"zero segments", func(c *Config) { c.Segments = 0 }, "segments"},
		{"too many segments", func(c *Config) { c.Segments = 9 }, "segments"},
		{"unknown model", func(c *Config) { c.Model = "huge" }, "unknown model"},
		{"bad language", func(c *Config) { c.Language = "english" }, "invalid language"},
		{"zero threads", func(c *Config) { c.Threads = 0 }, "threads"},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }, "poll interval"},
		{"stagger", func(c *Config) { c.StaggerPercent = 101 }, "stagger"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.want)
			}
		})
	}

	cfg := Default()
	cfg.Language = "ja"
	cfg.Segments = 8
	if err := cfg.Validate(); err != nil {
		t.Fatalf("two-letter language rejected: %v", err)
	}
}

func TestLanguageName(t *testing.T) {
	for code, want := range map[string]string{"en": "English", "hi": "Hindi", "auto": "Auto-detect", "ja": "JA"} {
		if got := LanguageName(code); got != want {
			t.Errorf("LanguageName(%q) = %q, want %q", code, got, want)
		}
	}
}
