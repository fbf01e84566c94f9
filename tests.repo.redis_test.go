package main

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startRedisDockerContainer(t *testing.T) (string, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container tests in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("Failed to start Dockertest: %+v", err)
	}

	err = pool.Client.Ping()
	if err != nil {
		t.Skipf("Could not connect to Docker: %+v", err)
	}

	resource, err := pool.Run("redis", "7.0.10-alpine", nil)
	if err != nil {
		t.Fatalf("Failed to start redis: %+v", err)
	}

	// build address the container is listening on
	addr := net.JoinHostPort("localhost", resource.GetPort("6379/tcp"))

	// ensure to wait for the container to be ready
	err = pool.Retry(func() error {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		return client.Ping(context.Background()).Err()
	})

	if err != nil {
		t.Fatalf("Failed to ping Redis: %+v", err)
	}

	destroyFunc := func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Failed to purge resource: %+v", err)
		}
	}

	return addr, destroyFunc
}

// newTestRedisClient builds the client the same way the app does.
func newTestRedisClient(t *testing.T, addr string) *redis.Client {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	config := DefaultConfig()
	config.Redis.Host, config.Redis.Port = host, port
	client, err := GetRedisClient(config)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

//nolint:funlen
func TestRedisStore(t *testing.T) {
	addr, destroyFunc := startRedisDockerContainer(t)
	defer destroyFunc()
	client := newTestRedisClient(t, addr)
	rs := NewRedisBookStorage(zap.NewNop(), client, NewMockUIDHandler("0"), "books")
	testBook := map[string]interface{}{
		"name":        "Redis test book name",
		"description": "Redis test book desc",
		"author":      "Jerome Amon",
		"year":        2023.0,
	}

	t.Run("Add Book", func(t *testing.T) {
		// ensures we can insert new book record.
		id, err := rs.Add(context.Background(), testBook)
		assert.NoError(t, err)
		assert.Equal(t, "b:0", id)
	})

	t.Run("Get Existent Book", func(t *testing.T) {
		// ensures we can fetch specific book.
		book, err := rs.GetOne(context.Background(), "b:0")
		assert.NoError(t, err)
		assert.Equal(t, NewBook("b:0", testBook), book)
	})

	t.Run("Get NonExistent Book", func(t *testing.T) {
		// ensures fetching non-existent book fails.
		book, err := rs.GetOne(context.Background(), "b:1")
		assert.Equal(t, ErrBookNotFound, err)
		assert.Nil(t, book)
	})

	t.Run("Update Existent Book", func(t *testing.T) {
		// ensures only provided fields are overwritten.
		err := rs.Update(context.Background(), "b:0", map[string]interface{}{"author": "Someone Else", "name": nil})
		assert.NoError(t, err)
		book, err := rs.GetOne(context.Background(), "b:0")
		assert.NoError(t, err)
		assert.Equal(t, "Someone Else", book["author"])
		assert.Contains(t, book, "name")
		assert.Nil(t, book["name"])
		assert.Equal(t, testBook["description"], book["description"])
	})

	t.Run("Delete Existent Book", func(t *testing.T) {
		// ensures deleting existent book succeed.
		err := rs.Delete(context.Background(), "b:0")
		assert.NoError(t, err)
		book, err := rs.GetOne(context.Background(), "b:0")
		assert.Equal(t, ErrBookNotFound, err)
		assert.Nil(t, book)
	})

	t.Run("Delete NonExistent Book", func(t *testing.T) {
		// ensures deleting non existent book returns an error.
		err := rs.Delete(context.Background(), "b:1")
		assert.Equal(t, ErrBookNotFound, err)
	})

	t.Run("Update NonExistent Book", func(t *testing.T) {
		// ensures updating non-existing book does not create it.
		err := rs.Update(context.Background(), "b:1", map[string]interface{}{"name": "Created"})
		assert.ErrorIs(t, err, ErrBookNotFound)
		_, err = rs.GetOne(context.Background(), "b:1")
		assert.Equal(t, ErrBookNotFound, err)
	})

	t.Run("Get All Books", func(t *testing.T) {
		// ensures books are sorted and limited.
		rs := NewRedisBookStorage(zap.NewNop(), client, NewIDsHandler(), "books.all")
		for i := 4; i >= 0; i-- {
			_, err := rs.Add(context.Background(), map[string]interface{}{"name": fmt.Sprintf("book-%d", i)})
			require.NoError(t, err)
		}
		books, err := rs.GetAll(context.Background(), "name", 3)
		assert.NoError(t, err)
		require.Len(t, books, 3)
		assert.Equal(t, "book-0", books[0]["name"])
		assert.Equal(t, "book-2", books[2]["name"])
	})
}

func TestRedisQueue(t *testing.T) {
	addr, destroyFunc := startRedisDockerContainer(t)
	defer destroyFunc()
	q := NewRedisQueue(newTestRedisClient(t, addr), "books")
	ctx := context.Background()

	fields := map[string]interface{}{"name": "Queued", "pages": 12.0}
	require.NoError(t, q.Push(ctx, CreateQueue, BookEvent{ID: "b:1", Fields: fields}))
	require.NoError(t, q.Push(ctx, DeleteQueue, BookEvent{ID: "b:2"}))

	qid, event, err := q.Pop(ctx, CreateQueue, UpdateQueue, DeleteQueue)
	require.NoError(t, err)
	assert.Equal(t, CreateQueue, qid)
	assert.Equal(t, BookEvent{ID: "b:1", Fields: fields}, event)

	qid, event, err = q.Pop(ctx, CreateQueue, UpdateQueue, DeleteQueue)
	require.NoError(t, err)
	assert.Equal(t, DeleteQueue, qid)
	assert.Equal(t, BookEvent{ID: "b:2"}, event)

	// an empty queue blocks until the context is done.
	cctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, _, err = q.Pop(cctx, CreateQueue)
	assert.Error(t, err)
}

// TestRedisReplicaFlow ensures changes made through the service reach the bolt replica.
func TestRedisReplicaFlow(t *testing.T) {
	addr, destroyFunc := startRedisDockerContainer(t)
	defer destroyFunc()
	client := newTestRedisClient(t, addr)
	q := NewRedisQueue(client, "books")
	replica := newTestBoltStore(t, NewIDsHandler())
	storage := NewRedisBookStorage(zap.NewNop(), client, NewIDsHandler(), "books")
	bs := NewBookService(zap.NewNop(), nil, DefaultConfig().Store, storage, q)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewBoltDBConsumer(zap.NewNop(), nil, q, replica).Consume(ctx, CreateQueue, UpdateQueue, DeleteQueue)
	}()

	book, err := bs.Add(ctx, map[string]interface{}{"name": "Dune", "author": "Frank Herbert"})
	require.NoError(t, err)
	id := book.ID()
	assert.Eventually(t, func() bool {
		got, err := replica.GetOne(ctx, id)
		return err == nil && got["name"] == "Dune"
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, bs.Update(ctx, id, map[string]interface{}{"name": "Dune Messiah"}))
	assert.Eventually(t, func() bool {
		got, err := replica.GetOne(ctx, id)
		return err == nil && got["name"] == "Dune Messiah" && got["author"] == "Frank Herbert"
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, bs.Delete(ctx, id))
	assert.Eventually(t, func() bool {
		_, err := replica.GetOne(ctx, id)
		return err == ErrBookNotFound
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop after context cancellation")
	}
}
