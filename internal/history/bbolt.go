// Package history keeps the listening history in a bbolt file.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/genricoloni/ytmpresence/internal/domain"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const defaultMaxEntries = 500

var playsBucket = []byte("plays")

// BboltStore appends plays under monotonically increasing keys so a cursor
// walk from Last is newest-first
type BboltStore struct {
	logger     *zap.Logger
	db         *bbolt.DB
	maxEntries uint64
}

// NewBboltStore opens (or creates) the history file. maxEntries <= 0 uses the default.
func NewBboltStore(logger *zap.Logger, dbPath string, maxEntries int) (*BboltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create history directory: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(playsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create plays bucket: %w", err)
	}

	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	logger.Info("History store opened", zap.String("path", dbPath), zap.Int("maxEntries", maxEntries))
	return &BboltStore{logger: logger, db: db, maxEntries: uint64(maxEntries)}, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Record appends a play and prunes the oldest entries past the retention limit
func (s *BboltStore) Record(rec domain.PlayRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(playsBucket)

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		value, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("error serializing play: %w", err)
		}
		if err := b.Put(itob(seq), value); err != nil {
			return err
		}

		// Keys are contiguous from the oldest kept one up to seq
		var expired [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && seq-binary.BigEndian.Uint64(k) >= s.maxEntries; k, _ = c.Next() {
			expired = append(expired, append([]byte(nil), k...))
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent returns up to limit plays, newest first
func (s *BboltStore) Recent(limit int) ([]domain.PlayRecord, error) {
	entries := []domain.PlayRecord{}
	if limit <= 0 {
		return entries, nil
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(playsBucket).Cursor()

		for k, v := c.Last(); k != nil && len(entries) < limit; k, v = c.Prev() {
			var rec domain.PlayRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("error deserializing play: %w", err)
			}
			entries = append(entries, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Close releases the database file
func (s *BboltStore) Close() error {
	return s.db.Close()
}
