package config

import (
	"flag"
	"strings"
	"time"

	"github.com/Faultbox/shaderc/pkg/shader/compiler"
)

// Flags holds command-line overrides. Zero values leave config untouched.
type Flags struct {
	ConfigPath  string
	Debug       bool
	LogFile     string
	Tool        string
	ShaderModel string
	Timeout     time.Duration
	IncludeDirs StringList
	Backend     string
	OutputDir   string
	Workers     int
	Strict      bool
}

// Register adds the shared flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log-file", "", "Write logs to this file as well")
	fs.StringVar(&f.Tool, "dxc", "", "Path to the dxc executable")
	fs.StringVar(&f.ShaderModel, "shader-model", "", "Shader model, e.g. 6_6")
	fs.DurationVar(&f.Timeout, "timeout", 0, "Per-stage compiler timeout")
	fs.Var(&f.IncludeDirs, "include", "Extra include directory (repeatable)")
	fs.StringVar(&f.Backend, "backend", "", "Target backend: DX12 or VK")
	fs.StringVar(&f.OutputDir, "out", "", "Output directory")
	fs.IntVar(&f.Workers, "workers", 0, "Concurrent shader compilations")
	fs.BoolVar(&f.Strict, "strict", false, "Fail on exports without a layout struct")
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) error {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.Tool != "" {
		cfg.Compiler.Tool = f.Tool
	}
	if f.ShaderModel != "" {
		cfg.Compiler.ShaderModel = f.ShaderModel
	}
	if f.Timeout > 0 {
		cfg.Compiler.Timeout = f.Timeout
	}
	if len(f.IncludeDirs) > 0 {
		cfg.Compiler.IncludeDirs = append(cfg.Compiler.IncludeDirs, f.IncludeDirs...)
	}
	if f.Backend != "" {
		backend, err := compiler.ParseBackend(f.Backend)
		if err != nil {
			return err
		}
		cfg.Build.Backend = backend
	}
	if f.OutputDir != "" {
		cfg.Build.OutputDir = f.OutputDir
	}
	if f.Workers > 0 {
		cfg.Build.Workers = f.Workers
	}
	if f.Strict {
		cfg.Parser.StrictExports = true
	}
	return nil
}

// StringList is a repeatable string flag.
type StringList []string

func (s *StringList) String() string {
	return strings.Join(*s, ",")
}

// Set appends value.
func (s *StringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}
