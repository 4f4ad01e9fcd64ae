// shaderc compiles annotated HLSL shaders into SHADER.1 artifacts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderc/internal/logger"
)

// errUsage signals that usage was already printed.
var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "compile", "c":
		err = cmdCompile(ctx, args, os.Stdout)
	case "build", "b":
		err = cmdBuild(ctx, args, os.Stdout)
	case "parse":
		err = cmdParse(args, os.Stdout)
	case "info":
		err = cmdInfo(args, os.Stdout)
	case "extract", "x":
		err = cmdExtract(args, os.Stdout)
	case "config":
		err = cmdConfig(args, os.Stdout)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, flag.ErrHelp) {
			logger.Error("command failed", zap.String("command", command), zap.Error(err))
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `shaderc - annotated HLSL shader compiler

Usage:
  shaderc <command> [options]

Commands:
  compile -i <shader.hlsl> [-n name] [-o dir] [-t DX12|VK] [-l dir]...
                                     Compile one shader into <name>.bin
  build <dir>                        Compile every .hlsl file under dir
  parse <shader.hlsl>                Print shader metadata without compiling
  info <file.bin>                    Show artifact information
  extract <file.bin> [output]        Write metadata and stage bytecode to files
  config [-save]                     Print (or save) the effective config

Common options:
  -config <file>   Config file (default ./shaderc.yaml)
  -debug           Debug logging
  -dxc <path>      dxc executable

Examples:
  shaderc compile -n Basic -i shaders/basic.hlsl -o build/shaders -t DX12
  shaderc build -out build/shaders -workers 8 shaders
  shaderc info build/shaders/basic.bin`)
}
