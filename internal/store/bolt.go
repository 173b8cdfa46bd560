package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"printer-service/internal/model"
)

var (
	printersBucket = []byte("printers")
	metaBucket     = []byte("meta")

	defaultIDKey   = []byte("default_config_id")
	lastUpdatedKey = []byte("last_updated")
)

const defaultOpenTimeout = 2 * time.Second

// BoltStore keeps configurations in a bbolt file. Records are keyed by a
// bucket sequence so iteration returns them in insertion order.
type BoltStore struct {
	path        string
	openTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time

	mu sync.RWMutex
	db *bbolt.DB
}

// NewBoltStore creates a store for path. It is not opened.
func NewBoltStore(path string, openTimeout time.Duration, logger *zap.Logger) *BoltStore {
	if openTimeout <= 0 {
		openTimeout = defaultOpenTimeout
	}
	return &BoltStore{
		path:        path,
		openTimeout: openTimeout,
		logger:      logger.With(zap.String("component", "store")),
		now:         time.Now,
	}
}

// Open opens the database file, creating it and its buckets when missing
func (s *BoltStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: s.openTimeout})
	if err != nil {
		return fmt.Errorf("failed to open store %s: %w", s.path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(printersBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize store buckets: %w", err)
	}

	s.db = db
	s.logger.Info("Config store opened", zap.String("path", s.path))
	return nil
}

// Close closes the database file. It is a no-op when not open.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.logger.Info("Config store closed", zap.String("path", s.path))
	return err
}

func (s *BoltStore) view(fn func(tx *bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	return s.db.View(fn)
}

// update runs fn and stamps last_updated in the same transaction
func (s *BoltStore) update(fn func(tx *bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		stamp := s.now().UTC().Format(time.RFC3339Nano)
		return tx.Bucket(metaBucket).Put(lastUpdatedKey, []byte(stamp))
	})
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// findKey returns the key holding id, nil when absent
func findKey(bucket *bbolt.Bucket, id string) ([]byte, error) {
	var found []byte
	err := bucket.ForEach(func(k, v []byte) error {
		if found != nil {
			return nil
		}
		var cfg model.PrinterConfig
		if err := json.Unmarshal(v, &cfg); err != nil {
			return fmt.Errorf("corrupt record %x: %w", k, err)
		}
		if cfg.ID == id {
			found = append([]byte(nil), k...)
		}
		return nil
	})
	return found, err
}

// LoadAll returns every record in insertion order
func (s *BoltStore) LoadAll(ctx context.Context) ([]model.PrinterConfig, error) {
	configs := []model.PrinterConfig{}
	err := s.view(func(tx *bbolt.Tx) error {
		return tx.Bucket(printersBucket).ForEach(func(k, v []byte) error {
			var cfg model.PrinterConfig
			if err := json.Unmarshal(v, &cfg); err != nil {
				return fmt.Errorf("corrupt record %x: %w", k, err)
			}
			configs = append(configs, cfg)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return configs, nil
}

// Save inserts cfg or replaces the record with the same id in place
func (s *BoltStore) Save(ctx context.Context, cfg model.PrinterConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(printersBucket)
		key, err := findKey(bucket, cfg.ID)
		if err != nil {
			return err
		}
		if key == nil {
			seq, err := bucket.NextSequence()
			if err != nil {
				return err
			}
			key = sequenceKey(seq)
		}
		return bucket.Put(key, data)
	})
}

// Delete removes the record with id. The stored default is cleared when it named id.
func (s *BoltStore) Delete(ctx context.Context, id string) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(printersBucket)
		key, err := findKey(bucket, id)
		if err != nil {
			return err
		}
		if key == nil {
			return model.NewError(model.ErrCodePrinterNotFound, id, "", nil)
		}
		if err := bucket.Delete(key); err != nil {
			return err
		}

		meta := tx.Bucket(metaBucket)
		if string(meta.Get(defaultIDKey)) == id {
			return meta.Delete(defaultIDKey)
		}
		return nil
	})
}

// DefaultID returns the stored default id, empty when unset
func (s *BoltStore) DefaultID(ctx context.Context) (string, error) {
	var id string
	err := s.view(func(tx *bbolt.Tx) error {
		id = string(tx.Bucket(metaBucket).Get(defaultIDKey))
		return nil
	})
	return id, err
}

// SetDefaultID stores the default id. An empty id clears it.
func (s *BoltStore) SetDefaultID(ctx context.Context, id string) error {
	return s.update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if id == "" {
			return meta.Delete(defaultIDKey)
		}
		return meta.Put(defaultIDKey, []byte(id))
	})
}

// LastUpdated returns the time of the last mutation, zero when never written
func (s *BoltStore) LastUpdated(ctx context.Context) (time.Time, error) {
	var stamp []byte
	err := s.view(func(tx *bbolt.Tx) error {
		stamp = append([]byte(nil), tx.Bucket(metaBucket).Get(lastUpdatedKey)...)
		return nil
	})
	if err != nil || len(stamp) == 0 {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, string(stamp))
}

// Replace drops every record and writes configs in order, all in one transaction
func (s *BoltStore) Replace(ctx context.Context, configs []model.PrinterConfig, defaultID string) error {
	encoded := make([][]byte, len(configs))
	for i, cfg := range configs {
		data, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode configuration %s: %w", cfg.ID, err)
		}
		encoded[i] = data
	}

	return s.update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(printersBucket); err != nil {
			return err
		}
		bucket, err := tx.CreateBucket(printersBucket)
		if err != nil {
			return err
		}
		for _, data := range encoded {
			seq, err := bucket.NextSequence()
			if err != nil {
				return err
			}
			if err := bucket.Put(sequenceKey(seq), data); err != nil {
				return err
			}
		}

		meta := tx.Bucket(metaBucket)
		if defaultID == "" {
			return meta.Delete(defaultIDKey)
		}
		return meta.Put(defaultIDKey, []byte(defaultID))
	})
}

var _ ConfigStore = (*BoltStore)(nil)
