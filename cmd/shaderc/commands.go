package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/shaderc/internal/build"
	"github.com/Faultbox/shaderc/internal/config"
	"github.com/Faultbox/shaderc/internal/logger"
	"github.com/Faultbox/shaderc/internal/pipeline"
	"github.com/Faultbox/shaderc/pkg/shader"
	"github.com/Faultbox/shaderc/pkg/shader/compiler"
	"github.com/Faultbox/shaderc/pkg/shader/parser"
	"github.com/Faultbox/shaderc/pkg/shaderfile"
)

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

// setup loads config and initializes logging.
func setup(f *config.Flags) (*config.Config, error) {
	cfg, err := config.Load(f)
	if err != nil {
		return nil, err
	}

	var fileCfg logger.FileConfig
	if cfg.Logging.LogFile != "" {
		fileCfg = logger.DefaultFileConfig(cfg.Logging.LogFile)
		if cfg.Logging.MaxSizeMB > 0 {
			fileCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
		}
		if cfg.Logging.MaxBackups > 0 {
			fileCfg.MaxBackups = cfg.Logging.MaxBackups
		}
		if cfg.Logging.MaxAgeDays > 0 {
			fileCfg.MaxAgeDays = cfg.Logging.MaxAgeDays
		}
	}
	if err := logger.InitWithFileConfig(cfg.Logging.Level, fileCfg, true); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger.Sugar.Debugf("config: backend %s, dxc %s, shader model %s, %d workers",
		cfg.Build.Backend, cfg.Compiler.Tool, cfg.Compiler.ShaderModel, cfg.Build.Workers)
	return cfg, nil
}

func parserOptions(cfg *config.Config) parser.Options {
	return parser.Options{
		IncludeDirs:     cfg.Compiler.IncludeDirs,
		MaxIncludeDepth: cfg.Parser.MaxIncludeDepth,
		StrictExports:   cfg.Parser.StrictExports,
		Logger:          logger.Named("parser"),
	}
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Parser: parserOptions(cfg),
		Compiler: compiler.Options{
			Tool:        cfg.Compiler.Tool,
			ShaderModel: cfg.Compiler.ShaderModel,
			Timeout:     cfg.Compiler.Timeout,
			IncludeDirs: cfg.Compiler.IncludeDirs,
			ExtraArgs:   cfg.Compiler.ExtraArgs,
			Logger:      logger.Named("compiler"),
		},
		Logger: logger.Named("pipeline"),
	}
}

// shaderName returns name, or the file stem of path when name is empty.
func shaderName(name, path string) string {
	if name != "" {
		return name
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func cmdCompile(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	var f config.Flags
	f.Register(fs)
	name := fs.String("n", "", "Shader name (default: file stem)")
	input := fs.String("i", "", "Shader source file")
	fs.Var(&f.IncludeDirs, "l", "Extra include directory (repeatable)")
	fs.StringVar(&f.OutputDir, "o", "", "Output directory")
	fs.StringVar(&f.Backend, "t", "", "Target backend: DX12 or VK")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if *input == "" && fs.NArg() > 0 {
		*input = fs.Arg(0)
	}
	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: shaderc compile -i <shader.hlsl> [-n name] [-o dir] [-t DX12|VK]")
		return errUsage
	}

	cfg, err := setup(&f)
	if err != nil {
		return err
	}

	start := time.Now()
	sname := shaderName(*name, *input)
	logger.Debug("compiling", zap.String("shader", sname), zap.String("source", *input))
	s := pipeline.NewSerializer(pipelineOptions(cfg))
	path, err := s.Compile(ctx, sname, *input, cfg.Build.Backend, cfg.Build.OutputDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Compiled: %s (%s)\n", path, time.Since(start).Round(time.Millisecond))
	return nil
}

func cmdBuild(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	var f config.Flags
	f.Register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: shaderc build [options] <dir>")
		return errUsage
	}

	cfg, err := setup(&f)
	if err != nil {
		return err
	}

	report, err := build.Run(ctx, fs.Arg(0), build.Options{
		Pipeline:   pipelineOptions(cfg),
		Backend:    cfg.Build.Backend,
		OutputDir:  cfg.Build.OutputDir,
		Workers:    cfg.Build.Workers,
		IgnoreFile: cfg.Build.IgnoreFile,
		Logger:     logger.Named("build"),
	})
	if report != nil {
		for _, r := range report.Results {
			if r.Err != nil {
				logger.Warn("shader failed", zap.String("shader", r.Name), zap.String("path", r.Rel), zap.Error(r.Err))
				continue
			}
			fmt.Fprintf(w, "Compiled: %s\n", r.Output)
		}
		fmt.Fprintf(w, "\n%d built, %d failed\n", report.Built, report.Failed)
		logger.Info("build finished",
			zap.Int("built", report.Built),
			zap.Int("failed", report.Failed),
			zap.Int("cache_hits", report.CacheHits),
			zap.Int("cache_misses", report.CacheMisses))
	}
	return err
}

func cmdParse(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	var f config.Flags
	f.Register(fs)
	name := fs.String("n", "", "Shader name (default: file stem)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: shaderc parse [options] <shader.hlsl>")
		return errUsage
	}

	cfg, err := setup(&f)
	if err != nil {
		return err
	}

	path := fs.Arg(0)
	res, err := parser.New(parserOptions(cfg)).Parse(path)
	if err != nil {
		return err
	}

	md := &shader.Metadata{
		ShaderName: shaderName(*name, path),
		Stages:     res.Stages,
		Exports:    res.Exports,
	}
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func cmdInfo(args []string, w io.Writer) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: shaderc info <file.bin>")
		return errUsage
	}

	file, err := shaderfile.Open(args[0])
	if err != nil {
		return err
	}
	md := file.Metadata

	fmt.Fprintf(w, "Artifact: %s\n", args[0])
	fmt.Fprintf(w, "Shader:   %s\n", md.ShaderName)
	fmt.Fprintf(w, "Format:   %s\n", file.Header.Flags)
	fmt.Fprintf(w, "Size:     %d bytes\n", file.Header.Size)
	fmt.Fprintf(w, "Chunks:   %d\n", len(file.Chunks))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Stages:")
	for _, st := range md.Stages.Ordered() {
		size := 0
		if st.Buffer < len(file.Bytecode) {
			size = len(file.Bytecode[st.Buffer])
		}
		fmt.Fprintf(w, "  [%d] %-14s %-10s %d bytes\n", st.Buffer, st.Kind, st.EntryPoint, size)
		for _, in := range st.Inputs {
			fmt.Fprintf(w, "        %-12s %s\n", in.Semantic, in.Type)
		}
	}

	if len(md.Exports) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Exports:")
		for _, name := range md.Exports.Names() {
			exp := md.Exports[name]
			binding := "-"
			if exp.Binding != nil {
				binding = fmt.Sprint(*exp.Binding)
			}
			line := fmt.Sprintf("  %-20s binding %-3s %s", name, binding, exp.Type)
			if exp.SizeInBytes != nil {
				line += fmt.Sprintf(" (%d bytes)", *exp.SizeInBytes)
			}
			fmt.Fprintln(w, line)
			for _, el := range exp.Elements {
				fmt.Fprintf(w, "        +%-4d %-20s %s\n", el.Offset, el.Name, el.Type)
			}
		}
	}
	return nil
}

func cmdExtract(args []string, w io.Writer) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: shaderc extract <file.bin> [output_dir]")
		return errUsage
	}

	outputDir := "."
	if len(args) > 1 {
		outputDir = args[1]
	}

	file, err := shaderfile.Open(args[0])
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	// Names come from the artifact and must not escape outputDir.
	if err := pipeline.CheckName(file.Metadata.ShaderName); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	for _, st := range file.Metadata.Stages {
		if err := pipeline.CheckName(st.EntryPoint); err != nil {
			return fmt.Errorf("%s: entry point: %w", args[0], err)
		}
	}

	stem := strings.ToLower(file.Metadata.ShaderName)
	meta, err := json.MarshalIndent(file.Metadata, "", "  ")
	if err != nil {
		return err
	}
	metaPath := filepath.Join(outputDir, stem+".json")
	if err := os.WriteFile(metaPath, meta, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", metaPath, err)
	}
	fmt.Fprintf(w, "Extracted: %s (%d bytes)\n", metaPath, len(meta))

	ext := ".dxil"
	if file.Header.Flags == shaderfile.FlagsSPIRV {
		ext = ".spv"
	}
	for _, st := range file.Metadata.Stages.Ordered() {
		code, ok := file.StageBytecode(st.Kind)
		if !ok {
			continue
		}
		path := filepath.Join(outputDir, stem+"."+st.EntryPoint+ext)
		if err := os.WriteFile(path, code, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(w, "Extracted: %s (%d bytes)\n", path, len(code))
	}
	return nil
}

func cmdConfig(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	var f config.Flags
	f.Register(fs)
	save := fs.Bool("save", false, "Write the effective config to the user config directory")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := config.Load(&f)
	if err != nil {
		return err
	}

	if *save {
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintf(w, "Saved: %s\n", filepath.Join(config.ConfigDir(), config.FileName))
		return nil
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
