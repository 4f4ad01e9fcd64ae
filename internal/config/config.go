// Package config handles shaderc configuration loading and management.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/Faultbox/shaderc/pkg/shader/compiler"
	"github.com/Faultbox/shaderc/pkg/shader/parser"
)

// Config holds all shaderc settings.
type Config struct {
	Compiler CompilerConfig `yaml:"compiler"`
	Parser   ParserConfig   `yaml:"parser"`
	Build    BuildConfig    `yaml:"build"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CompilerConfig holds native compiler settings.
type CompilerConfig struct {
	Tool        string        `yaml:"tool"`         // dxc executable
	ShaderModel string        `yaml:"shader_model"` // profile suffix, e.g. 6_6
	Timeout     time.Duration `yaml:"timeout"`      // per stage invocation
	IncludeDirs []string      `yaml:"include_dirs"`
	ExtraArgs   []string      `yaml:"extra_args"`
}

// ParserConfig holds source parsing settings.
type ParserConfig struct {
	MaxIncludeDepth int  `yaml:"max_include_depth"`
	StrictExports   bool `yaml:"strict_exports"`
}

// BuildConfig holds artifact output settings.
type BuildConfig struct {
	Backend    compiler.Backend `yaml:"backend"`
	OutputDir  string           `yaml:"output_dir"`
	Workers    int              `yaml:"workers"`
	IgnoreFile string           `yaml:"ignore_file"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Compiler: CompilerConfig{
			Tool:        compiler.DefaultTool,
			ShaderModel: compiler.DefaultShaderModel,
			Timeout:     compiler.DefaultTimeout,
			ExtraArgs:   []string{"-HV", "2021"},
		},
		Parser: ParserConfig{
			MaxIncludeDepth: parser.DefaultMaxIncludeDepth,
		},
		Build: BuildConfig{
			Backend:    compiler.DirectX12,
			OutputDir:  ".",
			Workers:    runtime.NumCPU(),
			IgnoreFile: ".shaderignore",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.Compiler.Tool == "" {
		return fmt.Errorf("compiler.tool must not be empty")
	}
	if c.Compiler.Timeout < 0 {
		return fmt.Errorf("compiler.timeout must not be negative: %s", c.Compiler.Timeout)
	}
	if c.Parser.MaxIncludeDepth < 1 {
		return fmt.Errorf("parser.max_include_depth must be at least 1, got %d", c.Parser.MaxIncludeDepth)
	}
	if c.Build.Workers < 1 {
		return fmt.Errorf("build.workers must be at least 1, got %d", c.Build.Workers)
	}
	return nil
}
