package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/ffibridge/binding"
)

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ffibridge.yaml")
	content := "library:\n  path: from-file.wasm\n  namespace: filelib\nlogger:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(options{configPath: path, namespace: "flaglib", trace: true})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Library.Path != "from-file.wasm" {
		t.Errorf("Path = %q", cfg.Library.Path)
	}
	if cfg.Library.Namespace != "flaglib" {
		t.Errorf("Namespace = %q", cfg.Library.Namespace)
	}
	if cfg.Logger.Level != "warn" {
		t.Errorf("Level = %q", cfg.Logger.Level)
	}
	if !cfg.Tracer.Enabled || cfg.Tracer.Exporter != "stdout" {
		t.Errorf("Tracer = %+v", cfg.Tracer)
	}
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	if _, err := loadConfig(options{wasmFile: "x.wasm", namespace: "bad-name"}); err == nil {
		t.Error("expected validation error for namespace")
	}
}

func TestDefaultFunction(t *testing.T) {
	single, _ := binding.ParseManifest("greet: func(name: string) -> string;")
	several, _ := binding.ParseManifest("run: func();\ngreet: func(name: string) -> string;")
	ambiguous, _ := binding.ParseManifest("a: func();\nb: func();")

	tests := []struct {
		m    *binding.Manifest
		name string
		want string
	}{
		{name: "nil", m: nil, want: ""},
		{name: "single", m: single, want: "greet"},
		{name: "entry point", m: several, want: "run"},
		{name: "ambiguous", m: ambiguous, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := defaultFunction(tt.m); got != tt.want {
				t.Errorf("defaultFunction() = %q, want %q", got, tt.want)
			}
		})
	}
}
