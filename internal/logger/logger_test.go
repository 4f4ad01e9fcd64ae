package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogLevels(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		level    string
		expected []string
		excluded []string
	}{
		{
			level:    "error",
			expected: []string{`"level":"error"`},
			excluded: []string{`"level":"warn"`, `"level":"info"`, `"level":"debug"`},
		},
		{
			level:    "warn",
			expected: []string{`"level":"error"`, `"level":"warn"`},
			excluded: []string{`"level":"info"`, `"level":"debug"`},
		},
		{
			level:    "info",
			expected: []string{`"level":"error"`, `"level":"warn"`, `"level":"info"`},
			excluded: []string{`"level":"debug"`},
		},
		{
			level:    "debug",
			expected: []string{`"level":"error"`, `"level":"warn"`, `"level":"info"`, `"level":"debug"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logFile := filepath.Join(tempDir, tt.level+".log")

			cfg := FileConfig{
				Path:       logFile,
				MaxSizeMB:  10,
				MaxBackups: 1,
				MaxAgeDays: 1,
			}
			if err := InitWithFileConfig(tt.level, cfg, false); err != nil {
				t.Fatalf("failed to init logger: %v", err)
			}
			defer InitNop()

			Debug("debug message")
			Info("info message")
			Warn("warn message")
			Error("error message")
			Sync()

			content, err := os.ReadFile(logFile)
			if err != nil {
				t.Fatalf("failed to read log file: %v", err)
			}
			logContent := string(content)

			for _, exp := range tt.expected {
				if !strings.Contains(logContent, exp) {
					t.Errorf("expected %s in log output", exp)
				}
			}
			for _, exc := range tt.excluded {
				if strings.Contains(logContent, exc) {
					t.Errorf("unexpected %s in log output for level %s", exc, tt.level)
				}
			}
		})
	}
}

func TestParseLevel_Unknown(t *testing.T) {
	if lvl := parseLevel("verbose"); lvl != zapcore.InfoLevel {
		t.Errorf("expected info fallback, got %s", lvl)
	}
	if lvl := parseLevel("WARN"); lvl != zapcore.WarnLevel {
		t.Errorf("expected warn, got %s", lvl)
	}
}

func TestNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))
	defer InitNop()

	Named("pipeline").Info("compiled", zap.String("shader", "basic"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "pipeline" {
		t.Errorf("expected logger name pipeline, got %q", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["shader"] != "basic" {
		t.Errorf("missing shader field: %v", entries[0].ContextMap())
	}
}

func TestSet_Nil(t *testing.T) {
	Set(nil)
	defer InitNop()

	// Must not panic.
	Info("dropped")
	Sync()
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("/tmp/shaderc.log")

	if cfg.Path != "/tmp/shaderc.log" {
		t.Errorf("expected path /tmp/shaderc.log, got %s", cfg.Path)
	}
	if cfg.MaxSizeMB != 10 {
		t.Errorf("expected MaxSizeMB 10, got %d", cfg.MaxSizeMB)
	}
	if cfg.MaxBackups != 3 {
		t.Errorf("expected MaxBackups 3, got %d", cfg.MaxBackups)
	}
	if cfg.MaxAgeDays != 14 {
		t.Errorf("expected MaxAgeDays 14, got %d", cfg.MaxAgeDays)
	}
	if !cfg.Compress {
		t.Error("expected Compress to be true")
	}
}
