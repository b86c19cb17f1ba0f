package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/0xmhha/onlinetime/pkg/accumulator"
	"github.com/0xmhha/onlinetime/pkg/admin"
	"github.com/0xmhha/onlinetime/pkg/config"
	"github.com/0xmhha/onlinetime/pkg/display"
	"github.com/0xmhha/onlinetime/pkg/lang"
	"github.com/0xmhha/onlinetime/pkg/ledger"
	"github.com/0xmhha/onlinetime/pkg/logger"
	"github.com/0xmhha/onlinetime/pkg/metrics"
	"github.com/0xmhha/onlinetime/pkg/names"
	"github.com/0xmhha/onlinetime/pkg/timeparse"
)

// app wires configuration, storage and the accumulator for one command.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	vocab    *lang.Vocabulary
	parser   *timeparse.Parser
	registry *prometheus.Registry
	metrics  *metrics.Collector

	ledger *ledger.Store
	names  *names.Store
	acc    *accumulator.Accumulator
}

// openApp loads the configuration and opens storage. The accumulator owns
// the ledger; close releases everything.
func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})

	vocab, err := lang.Load(cfg.Language.File)
	if err != nil {
		_ = logger.Close(log)
		return nil, fmt.Errorf("failed to load language file: %w", err)
	}
	parser, err := vocab.Parser()
	if err != nil {
		_ = logger.Close(log)
		return nil, fmt.Errorf("invalid unit vocabulary: %w", err)
	}

	b, err := openBackends(ctx, cfg.Storage, log)
	if err != nil {
		_ = logger.Close(log)
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	l := ledger.New(b.ledger)
	return &app{
		cfg:      cfg,
		log:      log,
		vocab:    vocab,
		parser:   parser,
		registry: registry,
		metrics:  collector,
		ledger:   l,
		names:    names.New(b.names),
		acc: accumulator.New(l,
			accumulator.WithLogger(log.With("component", "accumulator")),
			accumulator.WithMetrics(collector)),
	}, nil
}

func (a *app) admin() *admin.Service {
	return admin.NewService(a.acc, a.names, a.parser, a.log.With("component", "admin"))
}

func (a *app) formatter(format string, compact bool) (display.Formatter, error) {
	if format == "" {
		format = a.cfg.Display.DefaultFormat
	}
	f, err := display.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return display.New(display.Config{Format: f, Localization: a.vocab, Compact: compact}), nil
}

// entries lists every identity with recorded time or an open session.
// Open sessions contribute their live total.
func (a *app) entries(ctx context.Context) ([]display.Entry, error) {
	totals, err := a.ledger.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load online times: %w", err)
	}
	byName, err := a.names.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load names: %w", err)
	}
	for _, id := range a.acc.Online() {
		total, _, err := a.acc.Total(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load online time of %s: %w", id, err)
		}
		totals[id] = total
	}

	nameOf := make(map[uuid.UUID]string, len(byName))
	for name, id := range byName {
		nameOf[id] = name
	}

	out := make([]display.Entry, 0, len(totals))
	for id, seconds := range totals {
		out = append(out, display.Entry{
			ID:      id,
			Name:    nameOf[id],
			Seconds: seconds,
			Online:  a.acc.IsOnline(id),
		})
	}
	return out, nil
}

func (a *app) close(ctx context.Context) error {
	var result *multierror.Error
	if err := a.acc.Close(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close online time storage: %w", err))
	}
	if err := a.names.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close name storage: %w", err))
	}
	if err := logger.Close(a.log); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
