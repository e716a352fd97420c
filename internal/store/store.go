// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

// Package store archives detection results and device policies in BadgerDB.
//
// Key layout:
//
//	result:<deviceID>:<timestamp ms, 20 digits>:<sequence, 20 digits>  -> result wire JSON
//	device:<deviceID>                                                   -> policy options JSON
//
// Zero padding makes lexical key order equal chronological order, so the
// newest results for a device are found by iterating its prefix in reverse.
package store

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/geointegrity/internal/detection"
	"github.com/tomtom215/geointegrity/internal/logging"
	"github.com/tomtom215/geointegrity/internal/metrics"
)

const (
	resultKeyPrefix = "result:"
	deviceKeyPrefix = "device:"
)

// ErrNotFound is returned when a device has no saved policy.
var ErrNotFound = errors.New("not found")

// Config configures the archive.
type Config struct {
	// Path is the badger directory. Empty keeps everything in memory.
	Path string

	// Retention is the number of results kept per device. 0 keeps all.
	Retention int

	// DefaultPlatform is applied to archived results without a platform tag.
	DefaultPlatform string
}

// Store is a badger-backed result archive.
type Store struct {
	db        *badger.DB
	retention int
	platform  string
	seq       atomic.Uint64
}

// Open opens or creates the archive.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(newBadgerLogger())
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return New(db, cfg), nil
}

// New wraps an already open database.
func New(db *badger.DB, cfg Config) *Store {
	if cfg.DefaultPlatform == "" {
		cfg.DefaultPlatform = detection.DefaultPlatform
	}
	s := &Store{db: db, retention: cfg.Retention, platform: cfg.DefaultPlatform}
	// Seeding from the clock keeps sequences increasing across restarts.
	s.seq.Store(uint64(time.Now().UnixNano()))
	return s
}

func resultPrefix(deviceID string) []byte {
	return []byte(resultKeyPrefix + deviceID + ":")
}

func (s *Store) resultKey(deviceID string, r *detection.DetectionResult) []byte {
	ms := r.Timestamp.UnixMilli()
	if ms < 0 {
		ms = 0
	}
	return []byte(fmt.Sprintf("%s%s:%020d:%020d", resultKeyPrefix, deviceID, ms, s.seq.Add(1)))
}

// Save archives a result.
func (s *Store) Save(deviceID string, r *detection.DetectionResult) (err error) {
	defer func() { metrics.RecordStoreOperation("save", err) }()

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	key := s.resultKey(deviceID, r)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// Recent returns up to limit results for the device, newest first.
// A non-positive limit returns all of them.
func (s *Store) Recent(deviceID string, limit int) (results []*detection.DetectionResult, err error) {
	defer func() { metrics.RecordStoreOperation("recent", err) }()

	prefix := resultPrefix(deviceID)
	results = []*detection.DetectionResult{}
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seekLast(prefix)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(results) >= limit {
				return nil
			}
			var r *detection.DetectionResult
			verr := it.Item().Value(func(val []byte) error {
				parsed, perr := detection.ParseResult(val, s.platform)
				r = parsed
				return perr
			})
			if verr != nil {
				logging.Warn().Err(verr).Str("key", string(it.Item().Key())).Msg("skipping unreadable archived result")
				continue
			}
			results = append(results, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}
	return results, nil
}

// seekLast returns a key that sorts after every key with prefix.
func seekLast(prefix []byte) []byte {
	key := make([]byte, len(prefix)+1)
	copy(key, prefix)
	key[len(prefix)] = 0xFF
	return key
}

// Prune deletes all but the newest keep results for the device and returns
// the number deleted.
func (s *Store) Prune(deviceID string, keep int) (deleted int, err error) {
	defer func() { metrics.RecordStoreOperation("prune", err) }()

	if keep < 0 {
		keep = 0
	}
	prefix := resultPrefix(deviceID)
	var stale [][]byte
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seen := 0
		for it.Seek(seekLast(prefix)); it.ValidForPrefix(prefix); it.Next() {
			seen++
			if seen > keep {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan results: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("delete result: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush deletes: %w", err)
	}
	return len(stale), nil
}

// SavePolicy stores the device's last policy options.
func (s *Store) SavePolicy(deviceID string, options map[string]any) (err error) {
	defer func() { metrics.RecordStoreOperation("save_policy", err) }()

	data, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(deviceKeyPrefix+deviceID), data)
	})
}

// LoadPolicy returns the device's last policy options, or ErrNotFound.
func (s *Store) LoadPolicy(deviceID string) (map[string]any, error) {
	var options map[string]any
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(deviceKeyPrefix + deviceID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get policy: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &options)
		})
	})
	if err != nil {
		return nil, err
	}
	return options, nil
}

// HandleResult archives r and applies retention. Failures are logged.
func (s *Store) HandleResult(deviceID string, r *detection.DetectionResult) {
	if r == nil {
		return
	}
	if err := s.Save(deviceID, r); err != nil {
		logging.Error().Err(err).Str("device_id", deviceID).Msg("failed to archive result")
		return
	}
	if s.retention > 0 {
		if _, err := s.Prune(deviceID, s.retention); err != nil {
			logging.Warn().Err(err).Str("device_id", deviceID).Msg("failed to prune archived results")
		}
	}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
