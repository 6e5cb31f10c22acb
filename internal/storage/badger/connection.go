package badger

import (
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/drift/internal/common"
)

// BadgerDB manages the Badger database connection
type BadgerDB struct {
	store    *badgerhold.Store
	logger   arbor.ILogger
	config   *common.CacheConfig
	inMemory bool
}

// NewBadgerDB opens the cache database. An empty path keeps it in memory.
func NewBadgerDB(logger arbor.ILogger, config *common.CacheConfig) (*BadgerDB, error) {
	options := badgerhold.DefaultOptions
	options.Logger = nil // Disable default badger logger to use arbor

	inMemory := config.Path == ""
	if inMemory {
		options.InMemory = true
		options.Dir = ""
		options.ValueDir = ""
	} else {
		if err := os.MkdirAll(config.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		options.Dir = config.Path
		options.ValueDir = config.Path
	}

	logger.Debug().Str("path", config.Path).Bool("in_memory", inMemory).Msg("Opening Badger cache")

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger cache initialized")

	return &BadgerDB{
		store:    store,
		logger:   logger,
		config:   config,
		inMemory: inMemory,
	}, nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// InMemory reports whether the database has no backing directory
func (b *BadgerDB) InMemory() bool {
	return b.inMemory
}

// Close closes the database connection
func (b *BadgerDB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
