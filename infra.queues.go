package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Predefinied Queue IDs.
const (
	CreateQueue = "creation"
	UpdateQueue = "updating"
	DeleteQueue = "deletion"
)

// popTimeout bounds each blocking pop so a done context is noticed.
const popTimeout = time.Second

// Ensure *redisQueue implements Queuer.
var _ Queuer = (*redisQueue)(nil)

// BookEvent describes a change applied to the books collection. Fields
// holds the whole document for creations and the written fields for updates.
type BookEvent struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// Queuer describes a queue.
type Queuer interface {
	Push(ctx context.Context, qid string, event BookEvent) error
	Pop(ctx context.Context, qids ...string) (string, BookEvent, error)
}

// redisQueue represents a queue which implements the Queuer interface.
// Each queue id is a redis list named with the configured prefix.
type redisQueue struct {
	client *redis.Client
	prefix string
}

func NewRedisQueue(client *redis.Client, prefix string) Queuer {
	return &redisQueue{client: client, prefix: prefix}
}

func (q *redisQueue) key(qid string) string {
	return q.prefix + ":" + qid
}

// Push enqueues an event onto the queue identified by qid.
func (q *redisQueue) Push(ctx context.Context, qid string, event BookEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.key(qid), eventBytes).Err()
}

// Pop blocks until an event is available on one of the queue ids or the context
// is done and returns the first dequeued event along with its queue id.
func (q *redisQueue) Pop(ctx context.Context, qids ...string) (string, BookEvent, error) {
	var event BookEvent
	keys := make([]string, 0, len(qids))
	for _, qid := range qids {
		keys = append(keys, q.key(qid))
	}
	var infos []string
	var err error
	for {
		infos, err = q.client.BLPop(ctx, popTimeout, keys...).Result()
		if !errors.Is(err, redis.Nil) {
			break
		}
		if ctx.Err() != nil {
			return "", event, ctx.Err()
		}
	}
	if err != nil {
		return "", event, err
	}

	if err = json.Unmarshal([]byte(infos[1]), &event); err != nil {
		return "", event, err
	}
	for _, qid := range qids {
		if infos[0] == q.key(qid) {
			return qid, event, nil
		}
	}
	return infos[0], event, nil
}
