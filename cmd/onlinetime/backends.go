package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xmhha/onlinetime/pkg/config"
	"github.com/0xmhha/onlinetime/pkg/logger"
	"github.com/0xmhha/onlinetime/pkg/storage"
	"github.com/0xmhha/onlinetime/pkg/storage/boltdb"
	"github.com/0xmhha/onlinetime/pkg/storage/memory"
	"github.com/0xmhha/onlinetime/pkg/storage/postgres"
	"github.com/0xmhha/onlinetime/pkg/storage/yamlfile"
)

const (
	ledgerBucket = "online_time"
	namesBucket  = "names"
)

// backends holds the raw stores behind the ledger and the name index.
type backends struct {
	ledger storage.Backend[int64]
	names  storage.Backend[string]
}

// openBackends opens the configured storage backend.
func openBackends(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (*backends, error) {
	log = log.With("backend", cfg.Backend)

	switch cfg.Backend {
	case config.BackendMemory:
		return &backends{ledger: memory.New[int64](), names: memory.New[string]()}, nil
	case config.BackendYAML:
		return openYAML(cfg, log)
	case config.BackendBolt:
		return openBolt(cfg, log)
	case config.BackendPostgres:
		return openPostgres(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidBackend, cfg.Backend)
	}
}

func openYAML(cfg config.StorageConfig, log logger.Logger) (*backends, error) {
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	opts := yamlfile.Options{
		FlushInterval: cfg.YAML.FlushInterval,
		WatchExternal: cfg.YAML.WatchExternal,
		Logger:        log,
	}

	times, err := yamlfile.Open[int64](filepath.Join(cfg.DataDir, config.TimesFile), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open time document: %w", err)
	}
	names, err := yamlfile.Open[string](filepath.Join(cfg.DataDir, config.NamesFile), opts)
	if err != nil {
		_ = times.Close()
		return nil, fmt.Errorf("failed to open name document: %w", err)
	}
	return &backends{ledger: times, names: names}, nil
}

func openBolt(cfg config.StorageConfig, log logger.Logger) (*backends, error) {
	db, err := boltdb.Open(cfg.BoltPath(), boltdb.Options{Timeout: cfg.Bolt.Timeout, Logger: log})
	if err != nil {
		return nil, err
	}
	// The stores keep the file open; this releases only the handle's own reference.
	defer func() { _ = db.Close() }()

	counter, err := boltdb.NewCounter(db, ledgerBucket)
	if err != nil {
		return nil, err
	}
	names, err := boltdb.NewStore[string](db, namesBucket)
	if err != nil {
		_ = counter.Close()
		return nil, err
	}
	return &backends{ledger: counter, names: names}, nil
}

func openPostgres(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (*backends, error) {
	pg := cfg.Postgres
	db, err := postgres.Open(ctx, postgres.Options{
		URL:             pg.URL,
		MaxOpenConns:    pg.MaxOpenConns,
		MaxIdleConns:    pg.MaxIdleConns,
		ConnMaxLifetime: pg.ConnMaxLifetime,
		ConnectTimeout:  pg.ConnectTimeout,
		Logger:          log,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	ledger, err := db.Ledger()
	if err != nil {
		return nil, err
	}
	names, err := db.Names()
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}
	return &backends{ledger: ledger, names: names}, nil
}
