package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the session store using a BoltDB backend. Saved sessions are snapshots of both
// panels at the moment the user asked for one; they are written once and read back whole, which
// maps cleanly onto a key-value model.
type BoltDB struct {
	db *bolt.DB
}

const sessionsBucket = "sessions"

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database
// with the required bucket and returns an error if the database cannot be opened or initialized.
// The database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionsBucket))
		return err
	})

	return BoltDB{db: db}, err
}

// Close releases the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

// SaveSession stores a panel snapshot and returns its ID. The ID combines a bucket sequence number
// with the session's original ID so keys stay unique and ordered by insertion.
func (b BoltDB) SaveSession(_ context.Context, session models.Session) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(sessionsBucket))
		if bkt == nil {
			return nil
		}

		idPrefix, err := bkt.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%d-%s", idPrefix, session.ID)
		session.ID = newID

		v, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		return bkt.Put([]byte(newID), v)
	})

	return newID, err
}

// Session retrieves a saved snapshot by ID. The second return value reports whether the session
// exists.
func (b BoltDB) Session(_ context.Context, id string) (models.Session, bool, error) {
	var (
		session models.Session
		found   bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(sessionsBucket))
		if bkt == nil {
			return nil
		}

		v := bkt.Get([]byte(id))
		if v == nil {
			return nil
		}

		if err := json.Unmarshal(v, &session); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return models.Session{}, false, err
	}
	return session, found, nil
}
