package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var usageBucket = []byte("usage")

// Usage counts served recommendation requests for one user. It never holds
// conversation content.
type Usage struct {
	UserID        string    `json:"user_id"`
	Requests      int       `json:"requests"`
	GenresServed  int       `json:"genres_served"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastRequestAt time.Time `json:"last_request_at"`
}

type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(usageBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating usage bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// RecordRecommendation adds one served request to userID's counters.
func (s *BoltStore) RecordRecommendation(userID string, genres int, at time.Time) error {
	if userID == "" {
		return fmt.Errorf("recording usage: empty user id")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usageBucket)

		u := Usage{UserID: userID, FirstSeenAt: at}
		if v := b.Get([]byte(userID)); v != nil {
			if err := json.Unmarshal(v, &u); err != nil {
				return fmt.Errorf("decoding usage for %s: %w", userID, err)
			}
		}
		u.Requests++
		u.GenresServed += genres
		u.LastRequestAt = at

		data, err := json.Marshal(u)
		if err != nil {
			return err
		}
		return b.Put([]byte(userID), data)
	})
}

// GetUsage returns nil, nil when the user has no recorded requests.
func (s *BoltStore) GetUsage(userID string) (*Usage, error) {
	var u *Usage
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(usageBucket).Get([]byte(userID))
		if v == nil {
			return nil
		}
		u = &Usage{}
		return json.Unmarshal(v, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
