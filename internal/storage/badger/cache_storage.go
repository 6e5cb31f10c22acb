package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/drift/internal/common"
	"github.com/ternarybob/drift/internal/interfaces"
	"github.com/ternarybob/drift/internal/models"
)

const photoKeyPrefix = "photo:"

// storedPhoto is the value written under a photo key
type storedPhoto struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// AnalysisRecord is a cached photo analysis
type AnalysisRecord struct {
	Key       string `badgerhold:"key"`
	Analysis  models.PhotoAnalysis
	CreatedAt time.Time
	ExpiresAt time.Time `badgerholdIndex:"ExpiresAt"`
}

// CacheStorage implements interfaces.CacheStore. Photos are raw Badger entries
// expired by TTL; analyses are badgerhold records purged by ExpiresAt.
type CacheStorage struct {
	db          *BadgerDB
	logger      arbor.ILogger
	photoTTL    time.Duration
	analysisTTL time.Duration
	now         func() time.Time
}

// NewCacheStorage creates a CacheStorage
func NewCacheStorage(db *BadgerDB, config *common.CacheConfig, logger arbor.ILogger) interfaces.CacheStore {
	return &CacheStorage{
		db:          db,
		logger:      logger,
		photoTTL:    common.ParseDurationOr(config.PhotoTTL, 24*time.Hour),
		analysisTTL: common.ParseDurationOr(config.AnalysisTTL, 6*time.Hour),
		now:         time.Now,
	}
}

// GetPhoto returns a cached photo, false when absent or expired
func (s *CacheStorage) GetPhoto(ctx context.Context, key string) (*models.PhotoData, bool, error) {
	var raw []byte
	err := s.db.Store().Badger().View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(photoKeyPrefix + key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached photo: %w", err)
	}

	var stored storedPhoto
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached photo: %w", err)
	}
	return &models.PhotoData{Data: stored.Data, MimeType: stored.MimeType}, true, nil
}

// PutPhoto stores a photo with the configured TTL
func (s *CacheStorage) PutPhoto(ctx context.Context, key string, photo *models.PhotoData) error {
	if photo == nil {
		return fmt.Errorf("photo cannot be nil")
	}
	raw, err := json.Marshal(storedPhoto{MimeType: photo.MimeType, Data: photo.Data})
	if err != nil {
		return fmt.Errorf("failed to encode photo: %w", err)
	}

	return s.db.Store().Badger().Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(photoKeyPrefix+key), raw).WithTTL(s.photoTTL)
		return txn.SetEntry(entry)
	})
}

// GetAnalysis returns a cached analysis, false when absent or expired
func (s *CacheStorage) GetAnalysis(ctx context.Context, key string) (*models.PhotoAnalysis, bool, error) {
	var record AnalysisRecord
	err := s.db.Store().Get(key, &record)
	if err == badgerhold.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached analysis: %w", err)
	}
	if !s.now().Before(record.ExpiresAt) {
		return nil, false, nil
	}
	return &record.Analysis, true, nil
}

// PutAnalysis stores an analysis that expires after the configured TTL
func (s *CacheStorage) PutAnalysis(ctx context.Context, key string, analysis models.PhotoAnalysis) error {
	now := s.now()
	record := AnalysisRecord{
		Key:       key,
		Analysis:  analysis,
		CreatedAt: now,
		ExpiresAt: now.Add(s.analysisTTL),
	}
	if err := s.db.Store().Upsert(key, &record); err != nil {
		return fmt.Errorf("failed to cache analysis: %w", err)
	}
	return nil
}

// Purge deletes expired analyses and runs value log GC on disk-backed stores
func (s *CacheStorage) Purge(ctx context.Context) (int, error) {
	cutoff := s.now()

	count, err := s.db.Store().Count(&AnalysisRecord{}, badgerhold.Where("ExpiresAt").Lt(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to count expired analyses: %w", err)
	}
	if count > 0 {
		if err := s.db.Store().DeleteMatching(&AnalysisRecord{}, badgerhold.Where("ExpiresAt").Lt(cutoff)); err != nil {
			return 0, fmt.Errorf("failed to delete expired analyses: %w", err)
		}
	}

	if !s.db.InMemory() {
		if err := s.db.Store().Badger().RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			s.logger.Warn().Err(err).Msg("Value log GC failed")
		}
	}

	return int(count), nil
}

// Close closes the underlying database
func (s *CacheStorage) Close() error {
	return s.db.Close()
}
