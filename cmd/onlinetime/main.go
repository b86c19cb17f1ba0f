// Package main provides the onlinetime CLI application.
//
// onlinetime records how long identities stay connected. It reads connect
// and disconnect events, keeps per-identity totals in a flat-file, embedded
// or relational store and offers administrative commands on those totals.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	// Define global flags.
	fs := flag.NewFlagSet("onlinetime", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to configuration file")
	showVersion := fs.Bool("version", false, "show version information")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Handle version flag.
	if *showVersion {
		_, err := fmt.Fprintf(stdout, "onlinetime %s\n", version)
		return err
	}

	// Get command.
	args = fs.Args()
	if len(args) == 0 {
		return showUsage(stdout)
	}

	env := &cmdEnv{configPath: *configPath, stdin: stdin, stdout: stdout}

	switch command := args[0]; command {
	case "track":
		return runTrackCommand(ctx, env, args[1:])
	case "show":
		return runShowCommand(ctx, env, args[1:])
	case "top":
		return runTopCommand(ctx, env, args[1:])
	case "admin":
		return runAdminCommand(ctx, env, args[1:])
	case "config":
		return (&configCommand{env: env}).Execute(args[1:])
	case "help":
		return showUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// cmdEnv carries what every command needs from the process.
type cmdEnv struct {
	configPath string
	stdin      io.Reader
	stdout     io.Writer
}

// showUsage displays usage information.
func showUsage(w io.Writer) error {
	usage := `onlinetime - online time tracking

Usage:
  onlinetime [flags] <command> [command flags]

Commands:
  track       Read connect/disconnect events from stdin and record sessions
  show        Show the online time of a player
  top         List players by online time
  admin       Change online times (set, add, reset)
  config      Configuration management (show, path)
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -version    Show version information

Track Command Flags:
  -interval       Save interval (default: tracking.save_interval)
  -metrics-addr   Serve Prometheus metrics on this address

Event Format (one per line):
  connect <uuid> [name]
  disconnect <uuid>
  show <player>
  top [n]
  set|add|reset <player> [duration...]

  show, top and the admin lines run inside track and count open sessions.
  While track holds a yaml or bolt store, other commands cannot open it;
  send them on the event stream instead.

Show/Top Command Flags:
  -format     Output format (table, json, simple)
  -compact    Compact output
  -n          Number of players to list (top only, default: 10)
  -summary    Also print totals over all players (top only)

Examples:
  # Record sessions from a server log
  server-events | onlinetime track

  # Show a player's online time by name or uuid
  onlinetime show alice
  onlinetime show 069a79f444e94726a5befca90e38aaf5

  # List the 20 most active players as JSON
  onlinetime top -n 20 -format json

  # Administrative changes
  onlinetime admin set alice 2d 4h
  onlinetime admin add alice -30min
  onlinetime admin reset alice

Version: %s
`

	_, err := fmt.Fprintf(w, usage, version)
	return err
}
