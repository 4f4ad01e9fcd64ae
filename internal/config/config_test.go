package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/shaderc/pkg/shader/compiler"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test compiler defaults
	if cfg.Compiler.Tool != "dxc" {
		t.Errorf("expected tool dxc, got %s", cfg.Compiler.Tool)
	}
	if cfg.Compiler.ShaderModel != "6_6" {
		t.Errorf("expected shader model 6_6, got %s", cfg.Compiler.ShaderModel)
	}
	if cfg.Compiler.Timeout != 60*time.Second {
		t.Errorf("expected timeout 60s, got %v", cfg.Compiler.Timeout)
	}
	if len(cfg.Compiler.ExtraArgs) != 2 || cfg.Compiler.ExtraArgs[0] != "-HV" {
		t.Errorf("expected -HV 2021, got %v", cfg.Compiler.ExtraArgs)
	}

	// Test parser defaults
	if cfg.Parser.MaxIncludeDepth != 32 {
		t.Errorf("expected include depth 32, got %d", cfg.Parser.MaxIncludeDepth)
	}
	if cfg.Parser.StrictExports {
		t.Error("expected strict exports to be false by default")
	}

	// Test build defaults
	if cfg.Build.Backend != compiler.DirectX12 {
		t.Errorf("expected DX12 backend, got %s", cfg.Build.Backend)
	}
	if cfg.Build.IgnoreFile != ".shaderignore" {
		t.Errorf("expected .shaderignore, got %s", cfg.Build.IgnoreFile)
	}
	if cfg.Build.Workers < 1 {
		t.Errorf("expected at least one worker, got %d", cfg.Build.Workers)
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "shaderc.yaml")

	yamlContent := `
compiler:
  tool: /opt/dxc/bin/dxc
  shader_model: "6_0"
  timeout: 5s
  include_dirs:
    - shaders/common

parser:
  max_include_depth: 8
  strict_exports: true

build:
  backend: vulkan
  output_dir: out
  workers: 2

logging:
  level: "debug"
  log_file: "shaderc.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Compiler.Tool != "/opt/dxc/bin/dxc" {
		t.Errorf("expected tool /opt/dxc/bin/dxc, got %s", cfg.Compiler.Tool)
	}
	if cfg.Compiler.ShaderModel != "6_0" {
		t.Errorf("expected shader model 6_0, got %s", cfg.Compiler.ShaderModel)
	}
	if cfg.Compiler.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Compiler.Timeout)
	}
	if len(cfg.Compiler.IncludeDirs) != 1 || cfg.Compiler.IncludeDirs[0] != "shaders/common" {
		t.Errorf("unexpected include dirs %v", cfg.Compiler.IncludeDirs)
	}
	// Keys absent from the file keep their defaults.
	if len(cfg.Compiler.ExtraArgs) != 2 {
		t.Errorf("expected default extra args, got %v", cfg.Compiler.ExtraArgs)
	}

	if cfg.Parser.MaxIncludeDepth != 8 {
		t.Errorf("expected include depth 8, got %d", cfg.Parser.MaxIncludeDepth)
	}
	if !cfg.Parser.StrictExports {
		t.Error("expected strict exports to be true")
	}

	if cfg.Build.Backend != compiler.Vulkan {
		t.Errorf("expected VK backend, got %s", cfg.Build.Backend)
	}
	if cfg.Build.OutputDir != "out" {
		t.Errorf("expected output dir out, got %s", cfg.Build.OutputDir)
	}
	if cfg.Build.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Build.Workers)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "shaderc.log" {
		t.Errorf("expected log file 'shaderc.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
build:
  workers: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileBadBackend(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "shaderc.yaml")
	if err := os.WriteFile(configPath, []byte("build:\n  backend: metal\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/shaderc.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	testChdir(t, t.TempDir())

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	if err := os.WriteFile(FileName, []byte("build:\n  workers: 1\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find shaderc.yaml in current directory")
	}
}

func parseFlags(t *testing.T, args ...string) *Flags {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var f Flags
	f.Register(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return &f
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(t *testing.T, cfg *Config)
	}{
		{
			name: "debug flag",
			args: []string{"-debug"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
		},
		{
			name: "compiler flags",
			args: []string{"-dxc", "/usr/bin/dxc", "-shader-model", "6_5", "-timeout", "3s"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Compiler.Tool != "/usr/bin/dxc" {
					t.Errorf("expected /usr/bin/dxc, got %s", cfg.Compiler.Tool)
				}
				if cfg.Compiler.ShaderModel != "6_5" {
					t.Errorf("expected 6_5, got %s", cfg.Compiler.ShaderModel)
				}
				if cfg.Compiler.Timeout != 3*time.Second {
					t.Errorf("expected 3s, got %v", cfg.Compiler.Timeout)
				}
			},
		},
		{
			name: "repeated include flag",
			args: []string{"-include", "a", "-include", "b"},
			verify: func(t *testing.T, cfg *Config) {
				if len(cfg.Compiler.IncludeDirs) != 2 || cfg.Compiler.IncludeDirs[1] != "b" {
					t.Errorf("unexpected include dirs %v", cfg.Compiler.IncludeDirs)
				}
			},
		},
		{
			name: "build flags",
			args: []string{"-backend", "vk", "-out", "bin", "-workers", "4", "-strict"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Build.Backend != compiler.Vulkan {
					t.Errorf("expected VK, got %s", cfg.Build.Backend)
				}
				if cfg.Build.OutputDir != "bin" {
					t.Errorf("expected bin, got %s", cfg.Build.OutputDir)
				}
				if cfg.Build.Workers != 4 {
					t.Errorf("expected 4 workers, got %d", cfg.Build.Workers)
				}
				if !cfg.Parser.StrictExports {
					t.Error("expected strict exports")
				}
			},
		},
		{
			name: "no flags",
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Compiler.Tool != "dxc" || cfg.Build.OutputDir != "." {
					t.Errorf("defaults changed without flags: %+v", cfg)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := parseFlags(t, tt.args...).apply(cfg); err != nil {
				t.Fatalf("apply failed: %v", err)
			}
			tt.verify(t, cfg)
		})
	}
}

func TestApplyFlagsBadBackend(t *testing.T) {
	cfg := Default()
	err := parseFlags(t, "-backend", "metal").apply(cfg)
	if err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestLoadPriority(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(configPath, []byte("compiler:\n  tool: from-file\n  shader_model: \"6_1\"\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(parseFlags(t, "-config", configPath, "-dxc", "from-flag"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Compiler.Tool != "from-flag" {
		t.Errorf("flag should override file, got %s", cfg.Compiler.Tool)
	}
	if cfg.Compiler.ShaderModel != "6_1" {
		t.Errorf("file should override default, got %s", cfg.Compiler.ShaderModel)
	}
}

func TestLoadInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configPath, []byte("parser:\n  max_include_depth: 0\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(&Flags{ConfigPath: configPath}); err == nil {
		t.Error("expected validation error")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shaderc.yaml")

	cfg := Default()
	cfg.Build.Backend = compiler.Vulkan
	cfg.Build.Workers = 3
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if loaded.Build.Backend != compiler.Vulkan {
		t.Errorf("backend not saved, got %s", loaded.Build.Backend)
	}
	if loaded.Build.Workers != 3 {
		t.Errorf("workers not saved, got %d", loaded.Build.Workers)
	}
}

// testChdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) on older toolchains.
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
