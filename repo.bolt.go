package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

var _ ReplicaStorage = (*boltBookStorage)(nil)

type boltBookStorage struct {
	logger *zap.Logger
	client *bolt.DB
	ids    UIDGenerator
	bucket []byte
}

// GetBoltDBClient opens the database file and creates the given buckets then
// provides a ready to use client. The parent folder is created if needed.
func GetBoltDBClient(path string, timeout time.Duration, buckets ...string) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create the database folder: %v", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, errB := tx.CreateBucketIfNotExists([]byte(name)); errB != nil {
				return fmt.Errorf("failed to create %s bucket: %v", name, errB)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set up bucket: %v", err)
	}
	return db, nil
}

// NewBoltBookStorage provides an instance of bolt-based book storage. The
// bucket must already exist (see GetBoltDBClient).
func NewBoltBookStorage(logger *zap.Logger, client *bolt.DB, ids UIDGenerator, bucket string) *boltBookStorage {
	return &boltBookStorage{
		logger: logger,
		client: client,
		ids:    ids,
		bucket: []byte(bucket),
	}
}

// Close shuts down the bolt-based book storage.
func (bs *boltBookStorage) Close() error {
	return bs.client.Close()
}

// Add inserts a new book record under a newly generated id.
func (bs *boltBookStorage) Add(ctx context.Context, fields map[string]interface{}) (string, error) {
	id := bs.ids.Generate(BookIDPrefix)
	if err := bs.Put(ctx, NewBook(id, fields)); err != nil {
		return "", err
	}
	return id, nil
}

// Put saves the book under its own id, replacing any previous record.
func (bs *boltBookStorage) Put(_ context.Context, book Book) error {
	bookBytes, err := json.Marshal(book.Fields())
	if err != nil {
		return err
	}
	return bs.client.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bs.bucket).Put([]byte(book.ID()), bookBytes)
	})
}

// GetOne retrieves a book record based on its ID from boltdb store.
func (bs *boltBookStorage) GetOne(_ context.Context, id string) (Book, error) {
	var book Book
	err := bs.client.View(func(tx *bolt.Tx) error {
		result := tx.Bucket(bs.bucket).Get([]byte(id))
		if result == nil {
			return ErrBookNotFound
		}
		return json.Unmarshal(result, &book)
	})
	if err != nil {
		return nil, err
	}
	return NewBook(id, book), nil
}

// Delete removes a book record based on its ID from boltdb store.
func (bs *boltBookStorage) Delete(_ context.Context, id string) error {
	return bs.client.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bs.bucket)
		if b.Get([]byte(id)) == nil {
			return ErrBookNotFound
		}
		return b.Delete([]byte(id))
	})
}

// Update overwrites the provided fields of an existing book record.
func (bs *boltBookStorage) Update(_ context.Context, id string, fields map[string]interface{}) error {
	return bs.merge(id, fields, false)
}

// Merge is Update which creates the book when it does not exist.
func (bs *boltBookStorage) Merge(_ context.Context, id string, fields map[string]interface{}) error {
	return bs.merge(id, fields, true)
}

// merge reads and writes the record in the same transaction.
func (bs *boltBookStorage) merge(id string, fields map[string]interface{}, upsert bool) error {
	return bs.client.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bs.bucket)
		book := make(map[string]interface{}, len(fields))
		current := b.Get([]byte(id))
		if current == nil && !upsert {
			return ErrBookNotFound
		}
		if current != nil {
			if err := json.Unmarshal(current, &book); err != nil {
				return err
			}
		}
		for k, v := range fields {
			book[k] = v
		}
		delete(book, BookIDKey)
		bookBytes, err := json.Marshal(book)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), bookBytes)
	})
}

// GetAll retrieves at most limit books ordered by the given field.
func (bs *boltBookStorage) GetAll(_ context.Context, orderField string, limit int) ([]Book, error) {
	books := []Book{}
	err := bs.client.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bs.bucket).ForEach(func(k, v []byte) error {
			var fields map[string]interface{}
			if err := json.Unmarshal(v, &fields); err != nil {
				return fmt.Errorf("invalid book %s: %w", k, err)
			}
			books = append(books, NewBook(string(k), fields))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return SortAndLimitBooks(books, orderField, limit), nil
}
