package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
	"github.com/gabrielcapilla/playerwrap/internal/ports"
)

var (
	historyBucket = []byte("history")
	indexBucket   = []byte("history_index")
)

type BboltStore struct {
	db *bbolt.DB
}

func NewBboltStore(dbPath string) (ports.StorageService, error) {
	options := &bbolt.Options{Timeout: 1 * time.Second}
	db, err := bbolt.Open(dbPath, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("could not open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{historyBucket, indexBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create history buckets: %w", err)
	}

	return &BboltStore{db: db}, nil
}

// Keys sort by time; the index maps a location to its current key.
func createHistoryKey(t time.Time, location string) []byte {
	return []byte(t.UTC().Format("2006-01-02T15:04:05.000000000Z") + "\x00" + location)
}

func removeEntry(tx *bbolt.Tx, location string) (domain.HistoryEntry, bool, error) {
	var entry domain.HistoryEntry
	index := tx.Bucket(indexBucket)
	key := index.Get([]byte(location))
	if key == nil {
		return entry, false, nil
	}

	history := tx.Bucket(historyBucket)
	if v := history.Get(key); v != nil {
		if err := json.Unmarshal(v, &entry); err != nil {
			return entry, false, fmt.Errorf("error deserializing history entry: %w", err)
		}
	}
	if err := history.Delete(key); err != nil {
		return entry, false, err
	}
	return entry, true, index.Delete([]byte(location))
}

func putEntry(tx *bbolt.Tx, entry domain.HistoryEntry) error {
	key := createHistoryKey(entry.PlayedAt, entry.Location)
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("error serializing history entry: %w", err)
	}
	if err := tx.Bucket(historyBucket).Put(key, value); err != nil {
		return err
	}
	return tx.Bucket(indexBucket).Put([]byte(entry.Location), key)
}

// AddToHistory stores entry as the most recent one, replacing any older
// entry for the same location.
func (s *BboltStore) AddToHistory(entry domain.HistoryEntry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, _, err := removeEntry(tx, entry.Location); err != nil {
			return err
		}
		entry.ResumeAt = 0
		entry.PlayedAt = time.Now()
		return putEntry(tx, entry)
	})
}

// UpdateHistoryEntry records the last state and position for location and
// moves it to the top. Unknown locations are ignored.
func (s *BboltStore) UpdateHistoryEntry(location string, state domain.State, resumeAt time.Duration) error {
	if !state.Valid() {
		return fmt.Errorf("cannot record invalid state %d for %s", int(state), location)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		entry, found, err := removeEntry(tx, location)
		if err != nil || !found {
			return err
		}
		entry.LastState = state
		entry.ResumeAt = resumeAt
		entry.PlayedAt = time.Now()
		return putEntry(tx, entry)
	})
}

func (s *BboltStore) DeleteFromHistory(locations ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, location := range locations {
			if _, _, err := removeEntry(tx, location); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BboltStore) GetHistory(limit int) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(historyBucket).Cursor()

		for k, v := c.Last(); k != nil && len(entries) < limit; k, v = c.Prev() {
			var entry domain.HistoryEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("error deserializing history entry: %w", err)
			}
			if !entry.LastState.Valid() {
				entry.LastState = domain.StateUnknown
			}
			entries = append(entries, entry)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return entries, nil
}

func (s *BboltStore) Close() error {
	return s.db.Close()
}
