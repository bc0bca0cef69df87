package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/receipt-pipeline/internal/receipt"
)

const (
	bucketName = "records"
	// collectionKey is the single fixed key holding the whole serialized
	// receipt set. Writes are append semantics over the full collection,
	// never row-level updates.
	collectionKey = "receipts"
)

// LocalStore implements the Backend interface for guest sessions using
// BoltDB. The collection blob is read-modify-written inside one write
// transaction; bbolt admits a single writer at a time, which serializes
// concurrent pipeline runs finishing close together.
type LocalStore struct {
	db *bbolt.DB
}

// NewLocalStore creates a new LocalStore instance
func NewLocalStore(path string) (*LocalStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &LocalStore{db: db}, nil
}

// readCollection unmarshals the full receipt set from the fixed key.
func readCollection(tx *bbolt.Tx) ([]*receipt.Receipt, error) {
	recs := make([]*receipt.Receipt, 0)
	data := tx.Bucket([]byte(bucketName)).Get([]byte(collectionKey))
	if data == nil {
		return recs, nil
	}
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("unmarshaling receipt collection: %w", err)
	}
	return recs, nil
}

// writeCollection marshals the full receipt set back under the fixed key.
func writeCollection(tx *bbolt.Tx, recs []*receipt.Receipt) error {
	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("marshaling receipt collection: %w", err)
	}
	return tx.Bucket([]byte(bucketName)).Put([]byte(collectionKey), data)
}

// SaveReceipt appends one receipt to the collection blob.
func (l *LocalStore) SaveReceipt(ctx context.Context, rec *receipt.Receipt) (*receipt.Receipt, error) {
	err := l.db.Update(func(tx *bbolt.Tx) error {
		recs, err := readCollection(tx)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
		return writeCollection(tx, recs)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetReceipt retrieves a receipt by ID, scoped to its owner
func (l *LocalStore) GetReceipt(ctx context.Context, ownerID, id string) (*receipt.Receipt, error) {
	var found *receipt.Receipt
	err := l.db.View(func(tx *bbolt.Tx) error {
		recs, err := readCollection(tx)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if rec.ID == id && rec.OwnerID == ownerID {
				found = rec
				return nil
			}
		}
		return fmt.Errorf("%w: %s", receipt.ErrNotFound, id)
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ListReceipts returns all receipts for an owner
func (l *LocalStore) ListReceipts(ctx context.Context, ownerID string) ([]*receipt.Receipt, error) {
	var recs []*receipt.Receipt
	err := l.db.View(func(tx *bbolt.Tx) error {
		all, err := readCollection(tx)
		if err != nil {
			return err
		}
		recs = make([]*receipt.Receipt, 0, len(all))
		for _, rec := range all {
			if rec.OwnerID == ownerID {
				recs = append(recs, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteReceipt removes a receipt from the collection blob. Deleting a
// receipt that does not exist is not an error.
func (l *LocalStore) DeleteReceipt(ctx context.Context, ownerID, id string) error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		recs, err := readCollection(tx)
		if err != nil {
			return err
		}
		kept := recs[:0]
		for _, rec := range recs {
			if rec.ID == id && rec.OwnerID == ownerID {
				continue
			}
			kept = append(kept, rec)
		}
		return writeCollection(tx, kept)
	})
}

// Close closes the database connection
func (l *LocalStore) Close() error {
	return l.db.Close()
}
