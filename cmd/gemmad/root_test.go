package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("GEMMAD_TEST_KEY", "set")
	if got := envOr("GEMMAD_TEST_KEY", "def"); got != "set" {
		t.Fatalf("got %q", got)
	}
	if got := envOr("GEMMAD_TEST_KEY_UNSET", "def"); got != "def" {
		t.Fatalf("got %q", got)
	}
}

func TestSettingsDefaultsAndFileOverlay(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "gemmad.yaml")
	if err := os.WriteFile(cfgPath, []byte("addr: \":9999\"\nmodel_file: custom.gguf\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := buildRootCmd()
	// Explicit --addr beats the file; model_file comes from the file.
	if err := root.ParseFlags([]string{"--config", cfgPath, "--addr", ":7777"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := settings(root)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if cfg.Addr != ":7777" {
		t.Fatalf("addr=%q, explicit flag must win", cfg.Addr)
	}
	if cfg.ModelFile != "custom.gguf" {
		t.Fatalf("model_file=%q, file value must win over default", cfg.ModelFile)
	}
	if cfg.MaxTokens != 256 {
		t.Fatalf("max_tokens=%d, default must survive", cfg.MaxTokens)
	}
}
