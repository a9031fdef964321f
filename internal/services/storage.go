package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"tract-sync/internal/common"
	"tract-sync/internal/interfaces"
	"tract-sync/internal/models"
)

const (
	queueBucket  = "offline_queue"
	ledgerBucket = "sync_ledger"
)

// ledger entries older than this are pruned opportunistically; a
// comment event arriving months after the write is not a loop.
const ledgerRetention = 90 * 24 * time.Hour

type storage struct {
	db *bolt.DB
}

// NewStorage opens the bbolt database holding the offline queue and
// the sync ledger.
func NewStorage(config *common.StorageConfig) (interfaces.Store, error) {
	dbDir := filepath.Dir(config.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(config.DatabasePath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(queueBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(ledgerBucket)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &storage{db: db}, nil
}

func (s *storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put persists a queue item keyed by its temp id.
func (s *storage) Put(item *models.QueueItem) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal queue item %s: %w", item.TempID, err)
		}
		return tx.Bucket([]byte(queueBucket)).Put([]byte(item.TempID), data)
	})
}

// Get loads one queue item, or nil when absent.
func (s *storage) Get(tempID string) (*models.QueueItem, error) {
	var item *models.QueueItem
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(queueBucket)).Get([]byte(tempID))
		if data == nil {
			return nil
		}
		item = &models.QueueItem{}
		return json.Unmarshal(data, item)
	})
	return item, err
}

// Delete removes a queue item after promotion.
func (s *storage) Delete(tempID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(queueBucket)).Delete([]byte(tempID))
	})
}

// List returns all pending queue items.
func (s *storage) List() ([]*models.QueueItem, error) {
	var items []*models.QueueItem
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(queueBucket)).ForEach(func(k, v []byte) error {
			var item models.QueueItem
			if err := json.Unmarshal(v, &item); err != nil {
				return nil // skip undecodable entries
			}
			items = append(items, &item)
			return nil
		})
	})
	return items, err
}

// Len returns the number of pending queue items.
func (s *storage) Len() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket([]byte(queueBucket)).Stats().KeyN
		return nil
	})
	return count, err
}

// MarkOwnComment records the remote id of a comment this engine
// posted, so the loop-guard can drop its echo.
func (s *storage) MarkOwnComment(commentID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(ledgerBucket))

		cutoff := time.Now().Add(-ledgerRetention)
		var stale [][]byte
		_ = bucket.ForEach(func(k, v []byte) error {
			if ts, err := time.Parse(time.RFC3339, string(v)); err == nil && ts.Before(cutoff) {
				key := make([]byte, len(k))
				copy(key, k)
				stale = append(stale, key)
			}
			return nil
		})
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}

		return bucket.Put([]byte(commentID), []byte(time.Now().Format(time.RFC3339)))
	})
}

// IsOwnComment reports whether the engine posted the given comment.
func (s *storage) IsOwnComment(commentID string) bool {
	if commentID == "" {
		return false
	}
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket([]byte(ledgerBucket)).Get([]byte(commentID)) != nil
		return nil
	})
	return found
}
