// Package boltdb implements storage.Backend on an embedded BoltDB file.
//
// One database file holds a bucket per logical store. Values are JSON
// encoded. Stores created from the same DB share the file, which is closed
// when the DB handle and every store obtained from it have been closed.
//
// Example usage:
//
//	db, err := boltdb.Open("~/.local/share/onlinetime/onlinetime.db", boltdb.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ledger, err := boltdb.NewCounter(db, "ledger")
//	names, err := boltdb.NewStore[string](db, "names")
//	db.Close() // the file stays open until ledger and names are closed
package boltdb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/onlinetime/pkg/logger"
	"github.com/0xmhha/onlinetime/pkg/storage"
)

// Options configures Open.
type Options struct {
	// Timeout is how long to wait for the file lock. Default: 1s.
	Timeout time.Duration

	// Logger receives lifecycle messages. Default: no-op.
	Logger logger.Logger
}

// DB is a reference-counted BoltDB handle.
type DB struct {
	bolt   *bolt.DB
	logger logger.Logger

	mu     sync.Mutex
	refs   int
	closed bool
}

// Open opens or creates the database file at path. A leading ~ is expanded
// to the home directory.
func Open(path string, opts Options) (*DB, error) {
	if opts.Timeout == 0 {
		opts.Timeout = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}

	dbPath := expandHome(path)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, storage.Wrap("open", dbPath, fmt.Errorf("failed to create database directory: %w", err))
	}

	bdb, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, storage.Wrap("open", dbPath, fmt.Errorf("failed to open database: %w", err))
	}

	opts.Logger.Info("bolt database opened", "db_path", dbPath)

	return &DB{bolt: bdb, logger: opts.Logger, refs: 1}, nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.bolt.Path()
}

// Close releases the caller's reference. Stores created from d keep the file
// open until they are closed too. Later calls return nil.
func (d *DB) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	return d.release()
}

func (d *DB) acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.refs == 0 {
		return storage.Closed("open")
	}
	d.refs++
	return nil
}

func (d *DB) release() error {
	d.mu.Lock()
	d.refs--
	last := d.refs == 0
	d.mu.Unlock()

	if !last {
		return nil
	}
	if err := d.bolt.Close(); err != nil {
		return storage.Wrap("close", "", fmt.Errorf("failed to close database: %w", err))
	}
	d.logger.Info("bolt database closed")
	return nil
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
