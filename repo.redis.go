package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisBookStorage struct {
	logger *zap.Logger
	client *redis.Client
	ids    UIDGenerator
	hash   string
}

// NewRedisBookStorage provides an instance of redis-based book storage.
// All books are kept as json values of a single hash named after the collection.
func NewRedisBookStorage(logger *zap.Logger, client *redis.Client, ids UIDGenerator, collection string) BookStorage {
	return &redisBookStorage{
		logger: logger,
		client: client,
		ids:    ids,
		hash:   collection,
	}
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  config.Redis.PoolTimeout,
		Password:     config.Redis.Password,
		Username:     config.Redis.Username,
		DB:           config.Redis.DatabaseIndex,
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// Add inserts a new book record under a newly generated id.
func (rs *redisBookStorage) Add(ctx context.Context, fields map[string]interface{}) (string, error) {
	id := rs.ids.Generate(BookIDPrefix)
	bookBytes, err := json.Marshal(Book(fields).Fields())
	if err != nil {
		return "", err
	}
	if err = rs.client.HSet(ctx, rs.hash, id, bookBytes).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// GetOne retrieves a book record based on its ID.
func (rs *redisBookStorage) GetOne(ctx context.Context, id string) (Book, error) {
	bookJSONString, err := rs.client.HGet(ctx, rs.hash, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err = json.Unmarshal([]byte(bookJSONString), &fields); err != nil {
		return nil, err
	}
	return NewBook(id, fields), nil
}

// Delete removes a book record based on its ID.
func (rs *redisBookStorage) Delete(ctx context.Context, id string) error {
	n, err := rs.client.HDel(ctx, rs.hash, id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookNotFound
	}
	return nil
}

// maxUpdateAttempts bounds the retries of an update whose watched hash
// changed before it could be written.
const maxUpdateAttempts = 3

// Update overwrites the provided fields of an existing book record. The
// hash is watched so a concurrent delete is not undone by the write.
func (rs *redisBookStorage) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	update := func(tx *redis.Tx) error {
		bookJSONString, err := tx.HGet(ctx, rs.hash, id).Result()
		if errors.Is(err, redis.Nil) {
			return ErrBookNotFound
		}
		if err != nil {
			return err
		}
		book := make(map[string]interface{}, len(fields))
		if err = json.Unmarshal([]byte(bookJSONString), &book); err != nil {
			return err
		}
		for k, v := range fields {
			book[k] = v
		}
		delete(book, BookIDKey)
		bookBytes, err := json.Marshal(book)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, rs.hash, id, bookBytes)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < maxUpdateAttempts; i++ {
		err = rs.client.Watch(ctx, update, rs.hash)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

// GetAll retrieves at most limit books ordered by the given field.
// Redis hashes are unordered so the sorting happens in memory.
func (rs *redisBookStorage) GetAll(ctx context.Context, orderField string, limit int) ([]Book, error) {
	mapBooks, err := rs.client.HGetAll(ctx, rs.hash).Result()
	if err != nil {
		return nil, err
	}
	books := make([]Book, 0, len(mapBooks))
	for id, bookJSONString := range mapBooks {
		var fields map[string]interface{}
		if err = json.Unmarshal([]byte(bookJSONString), &fields); err != nil {
			return nil, fmt.Errorf("invalid book %s: %w", id, err)
		}
		books = append(books, NewBook(id, fields))
	}
	return SortAndLimitBooks(books, orderField, limit), nil
}
