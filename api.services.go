package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type BookServiceProvider interface {
	Add(ctx context.Context, fields map[string]interface{}) (Book, error)
	GetOne(ctx context.Context, id string) (Book, error)
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	GetAll(ctx context.Context) ([]Book, error)
}

// BookService forwards each call to the book storage. When a queue is
// set, successful changes are published to it for the replica.
type BookService struct {
	logger     *zap.Logger
	metrics    *Metrics
	storage    BookStorage
	queue      Queuer
	orderField string
	limit      int
}

// NewBookService provides a BookService. The queue may be nil.
func NewBookService(logger *zap.Logger, metrics *Metrics, store StoreConfig, storage BookStorage, queue Queuer) BookServiceProvider {
	return &BookService{
		logger:     logger,
		metrics:    metrics,
		storage:    storage,
		queue:      queue,
		orderField: store.ListOrderField,
		limit:      store.ListLimit,
	}
}

// Add stores the fields as a new book. An id sent by the client is dropped
// since the store assigns it.
func (bs *BookService) Add(ctx context.Context, fields map[string]interface{}) (Book, error) {
	fields = Book(fields).Fields()
	id, err := bs.storage.Add(ctx, fields)
	bs.metrics.ObserveStoreCall("add", err)
	if err != nil {
		return nil, fmt.Errorf("add book: %w", err)
	}
	bs.publish(ctx, CreateQueue, BookEvent{ID: id, Fields: fields})
	return NewBook(id, fields), nil
}

func (bs *BookService) GetOne(ctx context.Context, id string) (Book, error) {
	book, err := bs.storage.GetOne(ctx, id)
	bs.metrics.ObserveStoreCall("get", err)
	if err != nil {
		return book, fmt.Errorf("get book %s: %w", id, err)
	}
	return book, nil
}

func (bs *BookService) Delete(ctx context.Context, id string) error {
	err := bs.storage.Delete(ctx, id)
	bs.metrics.ObserveStoreCall("delete", err)
	if err != nil {
		return fmt.Errorf("delete book %s: %w", id, err)
	}
	bs.publish(ctx, DeleteQueue, BookEvent{ID: id})
	return nil
}

// Update overwrites the given fields of the book, the id excepted.
func (bs *BookService) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	fields = Book(fields).Fields()
	if len(fields) == 0 {
		return nil
	}
	err := bs.storage.Update(ctx, id, fields)
	bs.metrics.ObserveStoreCall("update", err)
	if err != nil {
		return fmt.Errorf("update book %s: %w", id, err)
	}
	bs.publish(ctx, UpdateQueue, BookEvent{ID: id, Fields: fields})
	return nil
}

func (bs *BookService) GetAll(ctx context.Context) ([]Book, error) {
	books, err := bs.storage.GetAll(ctx, bs.orderField, bs.limit)
	bs.metrics.ObserveStoreCall("query", err)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// publish pushes the event to the replica queue. Failures are only logged.
func (bs *BookService) publish(ctx context.Context, qid string, event BookEvent) {
	if bs.queue == nil {
		return
	}
	if err := bs.queue.Push(ctx, qid, event); err != nil {
		bs.logger.Error("service: failed to push to queue", zap.String("qid", qid), zap.String("book.id", event.ID), zap.Error(err))
	}
}
