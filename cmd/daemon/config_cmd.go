// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/vidgrab/internal/config"
	"github.com/ManuGH/vidgrab/internal/version"
)

func runConfigCLI(args []string) int {
	return configCLI(args, os.Stdout, os.Stderr)
}

func configCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	case "init":
		return runConfigInit(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  vidgrab config validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  vidgrab config dump [--file|-f config.yaml] [--format=yaml|json]")
	fmt.Fprintln(w, "  vidgrab config init --file|-f config.yaml [--force]")
}

func loadEffective(file string) (config.AppConfig, error) {
	loader := config.NewLoader(strings.TrimSpace(file), version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return cfg, err
	}
	return cfg, config.Validate(cfg)
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vidgrab config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	source := file
	if source == "" {
		source = "environment"
	}
	if _, err := loadEffective(file); err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", source, err)
		return 1
	}

	fmt.Fprintf(stdout, "✓ %s is valid\n", source)
	return 0
}

// runConfigDump prints the effective configuration (defaults + file + env)
// with secrets redacted.
func runConfigDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vidgrab config dump", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file, format string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadEffective(file)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}

	data, err := config.Marshal(cfg.Redacted())
	if err != nil {
		fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
		return 1
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		_, _ = stdout.Write(data)
		return 0
	case "json":
		// Round-trip through YAML so durations keep their string form.
		var generic map[string]any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(generic); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "Unsupported format: %s (use yaml or json)\n", format)
		return 2
	}
}

// runConfigInit writes the default configuration to a new file.
func runConfigInit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vidgrab config init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	var force bool
	fs.StringVar(&file, "file", "", "path to write")
	fs.StringVar(&file, "f", "", "path to write (shorthand)")
	fs.BoolVar(&force, "force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(file) == "" {
		fmt.Fprintln(stderr, "Error: --file is required")
		return 2
	}

	if err := config.WriteFile(file, config.Defaults(), force); err != nil {
		fmt.Fprintf(stderr, "Failed to write %s: %v\n", file, err)
		return 1
	}
	fmt.Fprintf(stdout, "✓ wrote %s\n", file)
	return 0
}
