// Package cache persists downloaded open-data documents in an embedded
// Badger store keyed by their path relative to the data root.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// #region config

// Config controls where and how the cache is opened.
type Config struct {
	Dir        string // ignored when InMemory
	InMemory   bool
	SyncWrites bool
	Logger     *slog.Logger // nil silences badger
}

// DefaultConfig caches under open_data_cache.
func DefaultConfig() Config {
	return Config{Dir: "open_data_cache", SyncWrites: true}
}

// InMemoryConfig is for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// #endregion config

// #region store

// Cache is a byte-blob store. It is safe for concurrent use.
type Cache struct {
	db *badger.DB
}

// Open creates the directory if needed and opens the store.
func Open(cfg Config) (*Cache, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("cache dir is required")
		}
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create cache dir %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached value for key. ok is false on a miss.
func (c *Cache) Get(key string) (val []byte, ok bool, err error) {
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, true, nil
}

// Put stores val under key, replacing any previous value.
func (c *Cache) Put(key string, val []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
	if err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	return nil
}

// Keys lists every cached key with the given prefix.
func (c *Cache) Keys(prefix string) ([]string, error) {
	var keys []string
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache keys %s: %w", prefix, err)
	}
	return keys, nil
}

// #endregion store

// badgerLogger routes badger's printf logging into slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
