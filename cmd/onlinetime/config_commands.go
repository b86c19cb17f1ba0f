package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/0xmhha/onlinetime/pkg/config"
)

// configCommand handles configuration management subcommands.
type configCommand struct {
	env *cmdEnv
}

// Execute runs the config command with given arguments.
func (c *configCommand) Execute(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "show":
		return c.runShow(subargs)
	case "path":
		return c.runPath()
	case "init":
		return c.runInit(subargs)
	case "help":
		return c.showHelp()
	default:
		return fmt.Errorf("unknown config subcommand: %s", subcommand)
	}
}

// runShow displays the current configuration.
func (c *configCommand) runShow(args []string) error {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	format := fs.String("format", "yaml", "output format (yaml, json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.NewLoader(c.env.configPath).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// Never print credentials.
	if cfg.Storage.Postgres.URL != "" {
		cfg.Storage.Postgres.URL = redactURL(cfg.Storage.Postgres.URL)
	}

	switch *format {
	case "json":
		return c.showJSON(cfg)
	default:
		return c.showYAML(cfg)
	}
}

// showYAML displays configuration in YAML format.
func (c *configCommand) showYAML(cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	_, err = fmt.Fprintf(c.env.stdout, "# Current Configuration\n# Source: %s\n\n%s", c.getConfigSource(), data)
	return err
}

// showJSON displays configuration in JSON format.
func (c *configCommand) showJSON(cfg *config.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	_, err = fmt.Fprintln(c.env.stdout, string(data))
	return err
}

// runPath shows the configuration file path.
func (c *configCommand) runPath() error {
	paths := []string{"./config.yaml", config.DefaultPath()}
	if c.env.configPath != "" {
		paths = []string{c.env.configPath}
	} else if env := os.Getenv("ONLINETIME_CONFIG"); env != "" {
		paths = []string{env}
	}

	fmt.Fprintln(c.env.stdout, "Configuration file search paths (in order of precedence):")
	fmt.Fprintln(c.env.stdout)

	for i, p := range paths {
		exists := "not found"
		if _, err := os.Stat(p); err == nil {
			exists = "found"
		}
		fmt.Fprintf(c.env.stdout, "  %d. %s [%s]\n", i+1, p, exists)
	}

	fmt.Fprintln(c.env.stdout)
	_, err := fmt.Fprintln(c.env.stdout, "Active configuration:", c.getConfigSource())
	return err
}

// runInit writes the default configuration.
func (c *configCommand) runInit(args []string) error {
	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite an existing file")
	output := fs.String("output", "", "output path (default: ~/.config/onlinetime/config.yaml)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	outputPath := *output
	if outputPath == "" {
		outputPath = config.DefaultPath()
	}

	if _, err := os.Stat(outputPath); err == nil && !*force {
		return fmt.Errorf("configuration file already exists at %s (use -force to overwrite)", outputPath)
	}

	if err := config.Save(config.Default(), outputPath); err != nil {
		return err
	}

	_, err := fmt.Fprintf(c.env.stdout, "Default configuration written to: %s\n", filepath.Clean(outputPath))
	return err
}

// getConfigSource returns the path of the active configuration file.
func (c *configCommand) getConfigSource() string {
	if p := config.NewLoader(c.env.configPath).Path(); p != "" {
		return p
	}
	return "defaults (no config file found)"
}

// showHelp displays help for config command.
func (c *configCommand) showHelp() error {
	help := `Config - Configuration management

Usage:
  onlinetime config <subcommand> [flags]

Subcommands:
  show      Display current configuration
  path      Show configuration file paths
  init      Write the default configuration

Show Flags:
  -format   Output format (yaml, json) (default: yaml)

Init Flags:
  -force    Overwrite an existing file
  -output   Output path for config file

Environment:
  ONLINETIME_CONFIG, ONLINETIME_STORAGE, ONLINETIME_DATABASE_URL,
  ONLINETIME_DATA_DIR, ONLINETIME_LOG_LEVEL, ONLINETIME_METRICS_ADDR
`
	_, err := fmt.Fprint(c.env.stdout, help)
	return err
}

// redactURL hides the password of a connection URL.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
