package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type firestoreBookStorage struct {
	logger     *zap.Logger
	client     *firestore.Client
	collection string
}

// GetFirestoreClient provides a firestore client authenticated with the service
// account credentials file. Without a project id, it is detected from these
// credentials. The FIRESTORE_EMULATOR_HOST variable is honored by the client.
func GetFirestoreClient(ctx context.Context, config *Config) (*firestore.Client, error) {
	var opts []option.ClientOption
	if config.Firestore.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.Firestore.CredentialsFile))
	}
	projectID := config.Firestore.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %v", err)
	}
	return client, nil
}

// NewFirestoreBookStorage provides an instance of firestore-based book storage.
func NewFirestoreBookStorage(logger *zap.Logger, client *firestore.Client, collection string) BookStorage {
	return &firestoreBookStorage{
		logger:     logger,
		client:     client,
		collection: collection,
	}
}

// Add inserts a new book document and returns the id assigned by firestore.
func (fs *firestoreBookStorage) Add(ctx context.Context, fields map[string]interface{}) (string, error) {
	ref, _, err := fs.client.Collection(fs.collection).Add(ctx, Book(fields).Fields())
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// GetOne retrieves a book document based on its ID.
func (fs *firestoreBookStorage) GetOne(ctx context.Context, id string) (Book, error) {
	snap, err := fs.client.Collection(fs.collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return NewBook(snap.Ref.ID, snap.Data()), nil
}

// Delete removes a book document. Firestore does not report missing documents.
func (fs *firestoreBookStorage) Delete(ctx context.Context, id string) error {
	_, err := fs.client.Collection(fs.collection).Doc(id).Delete(ctx)
	return err
}

// Update overwrites the provided top-level fields of an existing book document.
// Each key is a single field path segment, dots included.
func (fs *firestoreBookStorage) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		if k == BookIDKey {
			continue
		}
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	if len(updates) == 0 {
		return nil
	}
	_, err := fs.client.Collection(fs.collection).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return ErrBookNotFound
	}
	return err
}

// GetAll runs an ordered and limited query over the books collection.
func (fs *firestoreBookStorage) GetAll(ctx context.Context, orderField string, limit int) ([]Book, error) {
	query := fs.client.Collection(fs.collection).OrderBy(orderField, firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	books := make([]Book, 0, len(snaps))
	for _, snap := range snaps {
		books = append(books, NewBook(snap.Ref.ID, snap.Data()))
	}
	return books, nil
}
