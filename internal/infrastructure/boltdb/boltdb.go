package boltdb

import (
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Root buckets of the embedded document store.
var (
	BucketUsers         = []byte("users")
	BucketAccounts      = []byte("accounts")
	BucketAccountsEmail = []byte("accounts_by_email")
	BucketSessions      = []byte("sessions")
)

// Open initializes the BoltDB file and ensures the root buckets exist.
func Open(path string) (*bolt.DB, error) {
	if path == "" {
		path = "./data/taskboard.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{BucketUsers, BucketAccounts, BucketAccountsEmail, BucketSessions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Ping reports whether the database file is still open and readable.
func Ping(db *bolt.DB) error {
	if db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(BucketUsers) == nil {
			return bolt.ErrBucketNotFound
		}
		return nil
	})
}
