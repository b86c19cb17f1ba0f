package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/0xmhha/onlinetime/pkg/admin"
	"github.com/0xmhha/onlinetime/pkg/display"
	"github.com/0xmhha/onlinetime/pkg/flusher"
	"github.com/0xmhha/onlinetime/pkg/logger"
	"github.com/0xmhha/onlinetime/pkg/metrics"
	"github.com/0xmhha/onlinetime/pkg/storage"
	"github.com/0xmhha/onlinetime/pkg/timefmt"
	"github.com/0xmhha/onlinetime/pkg/tracker"
)

// errStorage is reported to the user in place of a storage fault; the cause
// goes to the log.
var errStorage = errors.New("storage error")

// trackCommand records sessions from an event stream.
type trackCommand struct {
	env         *cmdEnv
	interval    time.Duration
	metricsAddr string
}

// runTrackCommand runs the track command.
func runTrackCommand(ctx context.Context, env *cmdEnv, args []string) error {
	fs := flag.NewFlagSet("track", flag.ContinueOnError)
	interval := fs.Duration("interval", 0, "save interval (e.g., 30s, 1m)")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &trackCommand{
		env:         env,
		interval:    *interval,
		metricsAddr: *metricsAddr,
	}
	return cmd.Execute(ctx)
}

// Execute runs the track command until the input ends or a signal arrives.
func (c *trackCommand) Execute(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, c.env.configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.names.Close(); err != nil {
			a.log.Error("failed to close name storage", "error", err)
		}
		_ = logger.Close(a.log)
	}()

	interval := c.interval
	if interval == 0 {
		interval = a.cfg.Tracking.SaveInterval
	}
	fl, err := flusher.New(a.acc, flusher.Config{
		Interval: interval,
		Logger:   a.log.With("component", "flusher"),
	})
	if err != nil {
		_ = a.acc.Close(ctx)
		return err
	}
	tr := tracker.New(a.acc, a.names, nil, a.log.With("component", "tracker")).
		WithCommander(&liveCommands{app: a, out: c.env.stdout})

	metricsAddr := c.metricsAddr
	if metricsAddr == "" {
		metricsAddr = a.cfg.Metrics.Addr
	}

	if f, ok := c.env.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintln(os.Stderr, "Reading events: connect <uuid> [name] | disconnect <uuid> | show <player> | top [n] | set|add|reset <player> [duration] (Ctrl-D to finish)")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return fl.Run(gctx)
	})
	if metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, metricsAddr, a.registry, a.log)
		})
	}

	// Reading stdin cannot be interrupted, so the feed runs outside the group.
	feedErr := make(chan error, 1)
	go func() {
		feedErr <- tr.Feed(gctx, c.env.stdin)
	}()

	var result error
	select {
	case err := <-feedErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			result = fmt.Errorf("failed to process events: %w", err)
		}
	case <-gctx.Done():
		a.log.Info("shutting down")
	}

	cancel()
	if err := g.Wait(); err != nil && result == nil {
		result = err
	}

	// The final commit must not be cut short by the signal context.
	if err := fl.Shutdown(context.WithoutCancel(ctx)); err != nil && result == nil {
		result = err
	}
	return result
}

// liveCommands answers the show, top and admin lines read by track. They run
// against the sessions this process holds open, so open sessions are
// counted. Failures are written to out as they would be by the matching
// command.
type liveCommands struct {
	app *app
	out io.Writer
}

// Command implements tracker.Commander.
func (c *liveCommands) Command(ctx context.Context, name string, args []string) error {
	if err := c.run(ctx, name, args); err != nil {
		_, werr := fmt.Fprintf(c.out, "Error: %v\n", err)
		if werr != nil {
			return werr
		}
		return err
	}
	return nil
}

func (c *liveCommands) run(ctx context.Context, name string, args []string) error {
	switch name {
	case "show", "top":
		f, err := c.app.formatter("", true)
		if err != nil {
			return err
		}
		if name == "show" {
			return showEntry(ctx, c.app, f, c.out, args[0])
		}
		limit := 10
		if len(args) == 1 {
			if limit, err = strconv.Atoi(args[0]); err != nil {
				return fmt.Errorf("invalid limit %q", args[0])
			}
		}
		return showTop(ctx, c.app, f, c.out, limit, false)
	default:
		if err := checkAdminArgs(name, name, args); err != nil {
			return err
		}
		return applyAdmin(ctx, c.app, c.out, name, args)
	}
}

// serveMetrics serves /metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer, log logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop metrics server: %w", err)
	}
	return nil
}

// showCommand displays a single player's online time.
type showCommand struct {
	env     *cmdEnv
	player  string
	format  string
	compact bool
}

// runShowCommand runs the show command.
func runShowCommand(ctx context.Context, env *cmdEnv, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	format := fs.String("format", "", "output format (table, json, simple)")
	compact := fs.Bool("compact", false, "compact output")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: onlinetime show [flags] <player>")
	}

	cmd := &showCommand{
		env:     env,
		player:  fs.Arg(0),
		format:  *format,
		compact: *compact,
	}
	return cmd.Execute(ctx)
}

// Execute runs the show command.
func (c *showCommand) Execute(ctx context.Context) (err error) {
	a, err := openApp(ctx, c.env.configPath)
	if err != nil {
		return err
	}
	defer closeApp(ctx, a, &err)

	f, err := a.formatter(c.format, c.compact)
	if err != nil {
		return err
	}

	return showEntry(ctx, a, f, c.env.stdout, c.player)
}

// showEntry writes the live total of player.
func showEntry(ctx context.Context, a *app, f display.Formatter, w io.Writer, player string) error {
	ident, total, err := a.admin().Show(ctx, player)
	if err != nil {
		return explain(a, err)
	}

	return f.FormatEntry(w, display.Entry{
		ID:      ident.ID,
		Name:    ident.Name,
		Seconds: total,
		Online:  a.acc.IsOnline(ident.ID),
	})
}

// topCommand lists players by online time.
type topCommand struct {
	env     *cmdEnv
	limit   int
	format  string
	compact bool
	summary bool
}

// runTopCommand runs the top command.
func runTopCommand(ctx context.Context, env *cmdEnv, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	limit := fs.Int("n", 10, "number of players to list (0 for all)")
	format := fs.String("format", "", "output format (table, json, simple)")
	compact := fs.Bool("compact", false, "compact output")
	summary := fs.Bool("summary", false, "also print totals over all players")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &topCommand{
		env:     env,
		limit:   *limit,
		format:  *format,
		compact: *compact,
		summary: *summary,
	}
	return cmd.Execute(ctx)
}

// Execute runs the top command.
func (c *topCommand) Execute(ctx context.Context) (err error) {
	a, err := openApp(ctx, c.env.configPath)
	if err != nil {
		return err
	}
	defer closeApp(ctx, a, &err)

	f, err := a.formatter(c.format, c.compact)
	if err != nil {
		return err
	}

	return showTop(ctx, a, f, c.env.stdout, c.limit, c.summary)
}

// showTop writes the limit identities with the most time.
func showTop(ctx context.Context, a *app, f display.Formatter, w io.Writer, limit int, summary bool) error {
	entries, err := a.entries(ctx)
	if err != nil {
		return explain(a, err)
	}

	if err := f.FormatTop(w, display.Rank(entries, limit)); err != nil {
		return err
	}
	if summary {
		return f.FormatSummary(w, display.Summarize(entries))
	}
	return nil
}

// adminCommand changes online times.
type adminCommand struct {
	env *cmdEnv
}

// runAdminCommand runs the admin command.
func runAdminCommand(ctx context.Context, env *cmdEnv, args []string) error {
	return (&adminCommand{env: env}).Execute(ctx, args)
}

// Execute dispatches the admin subcommand.
func (c *adminCommand) Execute(ctx context.Context, args []string) (err error) {
	if len(args) == 0 {
		return c.showHelp()
	}

	sub := strings.ToLower(args[0])
	args = args[1:]
	if sub == "help" {
		return c.showHelp()
	}
	if err := checkAdminArgs("onlinetime admin "+sub, sub, args); err != nil {
		return err
	}

	a, err := openApp(ctx, c.env.configPath)
	if err != nil {
		return err
	}
	defer closeApp(ctx, a, &err)

	return applyAdmin(ctx, a, c.env.stdout, sub, args)
}

// checkAdminArgs validates the arguments of an admin subcommand. usage
// prefixes the usage message.
func checkAdminArgs(usage, sub string, args []string) error {
	switch sub {
	case "set", "modify", "mod", "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s <player> <duration...>", usage)
		}
	case "reset", "delete", "del":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <player>", usage)
		}
	default:
		return fmt.Errorf("unknown admin subcommand: %s", sub)
	}
	return nil
}

// applyAdmin runs a validated admin subcommand through a's accumulator and
// reports the result on w.
func applyAdmin(ctx context.Context, a *app, w io.Writer, sub string, args []string) error {
	svc := a.admin()
	player := args[0]
	duration := strings.Join(args[1:], " ")

	switch sub {
	case "set":
		ident, target, err := svc.Set(ctx, player, duration)
		if err != nil {
			return explain(a, err)
		}
		_, err = fmt.Fprintf(w, "Set online time of %s to %s.\n", ident, a.vocab.Format(target))
		return err
	case "reset", "delete", "del":
		ident, _, err := svc.Reset(ctx, player)
		if err != nil {
			return explain(a, err)
		}
		_, err = fmt.Fprintf(w, "Reset online time of %s.\n", ident)
		return err
	default:
		ident, delta, err := svc.Modify(ctx, player, duration)
		if err != nil {
			return explain(a, err)
		}
		_, err = fmt.Fprintf(w, "Added %s to the online time of %s.\n", a.vocab.Format(delta), ident)
		return err
	}
}

// explain turns err into the message shown to the user. Unparsable durations
// list the known units; storage faults are logged and reported as
// errStorage.
func explain(a *app, err error) error {
	var serr *storage.Error
	switch {
	case errors.Is(err, admin.ErrInvalidDuration):
		units := make([]string, 0, len(timefmt.Units()))
		for _, u := range timefmt.Units() {
			units = append(units, a.vocab.Unit(u, true))
		}
		return fmt.Errorf("%w (units: %s)", err, strings.Join(units, ", "))
	case errors.As(err, &serr):
		a.log.Error("storage error", "op", serr.Op, "key", serr.Key, "error", err)
		return errStorage
	default:
		return err
	}
}

// showHelp displays help for the admin command.
func (c *adminCommand) showHelp() error {
	help := `Admin - change online times

Usage:
  onlinetime admin <subcommand> <player> [duration...]

Subcommands:
  set       Set the online time to a duration
  add       Add a duration, which may be negative (aliases: modify, mod)
  reset     Reset the online time to zero (aliases: delete, del)

Players are given by name or uuid. Durations combine numbers and units,
e.g. "1d 12h", "-30min" or "90".
`
	_, err := fmt.Fprint(c.env.stdout, help)
	return err
}

// closeApp closes a and reports a close failure through err when the command
// itself succeeded.
func closeApp(ctx context.Context, a *app, err *error) {
	if cerr := a.close(context.WithoutCancel(ctx)); cerr != nil && *err == nil {
		*err = cerr
	}
}
