package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// retryDelay is the pause after a failed pop.
const retryDelay = time.Second

type Consumer interface {
	Consume(ctx context.Context, qids ...string) error
}

// ReplicaStorage is the storage fed by the replica consumer. Unlike
// BookStorage it saves books under ids assigned by the primary store
// and Merge creates the book when the replica missed its creation.
type ReplicaStorage interface {
	Put(ctx context.Context, book Book) error
	Merge(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

type boltDBConsumer struct {
	logger  *zap.Logger
	metrics *Metrics
	queue   Queuer
	repo    ReplicaStorage
}

func NewBoltDBConsumer(logger *zap.Logger, metrics *Metrics, q Queuer, repo ReplicaStorage) Consumer {
	return &boltDBConsumer{logger: logger, metrics: metrics, queue: q, repo: repo}
}

// Consume applies the events popped from the queues to the replica
// storage until the context is done.
func (bc *boltDBConsumer) Consume(ctx context.Context, qids ...string) error {
	for {
		qid, event, err := bc.queue.Pop(ctx, qids...)
		if err != nil && ctx.Err() != nil {
			bc.logger.Info("consumer: queue pop call: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}

		if err != nil {
			bc.logger.Error("consumer: error on queue pop call", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
			}
			continue
		}

		err = bc.apply(ctx, qid, event)
		bc.metrics.ObserveReplicaEvent(qid, err)
		if err != nil {
			bc.logger.Error("consumer: failed to apply event",
				zap.String("qid", qid),
				zap.String("book.id", event.ID),
				zap.Error(err),
			)
		}
	}
}

var (
	errUnknownQueue = errors.New("unknown queue id")
	errMissingID    = errors.New("event without book id")
)

func (bc *boltDBConsumer) apply(ctx context.Context, qid string, event BookEvent) error {
	if event.ID == "" {
		return errMissingID
	}
	switch qid {
	case CreateQueue:
		return bc.repo.Put(ctx, NewBook(event.ID, event.Fields))
	case UpdateQueue:
		if len(event.Fields) == 0 {
			return nil
		}
		return bc.repo.Merge(ctx, event.ID, event.Fields)
	case DeleteQueue:
		err := bc.repo.Delete(ctx, event.ID)
		if errors.Is(err, ErrBookNotFound) {
			return nil
		}
		return err
	default:
		return errUnknownQueue
	}
}
