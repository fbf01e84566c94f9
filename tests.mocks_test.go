package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// This file contains mocks definitions needed to perform unit tests.

type MockBookStorage struct {
	AddFunc    func(ctx context.Context, fields map[string]interface{}) (string, error)
	GetOneFunc func(ctx context.Context, id string) (Book, error)
	DeleteFunc func(ctx context.Context, id string) error
	UpdateFunc func(ctx context.Context, id string, fields map[string]interface{}) error
	GetAllFunc func(ctx context.Context, orderField string, limit int) ([]Book, error)
}

// Add mocks the behavior of book creation by the repository.
func (m *MockBookStorage) Add(ctx context.Context, fields map[string]interface{}) (string, error) {
	return m.AddFunc(ctx, fields)
}

// GetOne mocks the behavior of retrieving a book by the repository.
func (m *MockBookStorage) GetOne(ctx context.Context, id string) (Book, error) {
	return m.GetOneFunc(ctx, id)
}

// Delete mocks the behavior of deleting a book by the repository.
func (m *MockBookStorage) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}

// Update mocks the behavior of updating a book by the repository.
func (m *MockBookStorage) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	return m.UpdateFunc(ctx, id, fields)
}

// GetAll mocks the behavior of retrieving all books by the repository.
func (m *MockBookStorage) GetAll(ctx context.Context, orderField string, limit int) ([]Book, error) {
	return m.GetAllFunc(ctx, orderField, limit)
}

// MockQueuer records pushed events and serves popped events from a channel.
type MockQueuer struct {
	mu      sync.Mutex
	PushErr error
	Pushed  []QueuedEvent
	Events  chan QueuedEvent
}

// QueuedEvent is an event with the queue id it belongs to.
type QueuedEvent struct {
	QID   string
	Event BookEvent
}

func NewMockQueuer() *MockQueuer {
	return &MockQueuer{Events: make(chan QueuedEvent, 16)}
}

func (mq *MockQueuer) Push(_ context.Context, qid string, event BookEvent) error {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	if mq.PushErr != nil {
		return mq.PushErr
	}
	mq.Pushed = append(mq.Pushed, QueuedEvent{QID: qid, Event: event})
	return nil
}

func (mq *MockQueuer) Pop(ctx context.Context, _ ...string) (string, BookEvent, error) {
	select {
	case <-ctx.Done():
		return "", BookEvent{}, ctx.Err()
	case qe := <-mq.Events:
		return qe.QID, qe.Event, nil
	}
}

// PushedEvents returns a copy of the recorded events.
func (mq *MockQueuer) PushedEvents() []QueuedEvent {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	return append([]QueuedEvent(nil), mq.Pushed...)
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock. This
// equals to `Sun, 02 Jul 2023 00:00:00 UTC` in time.RFC1123 format.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDGenerator.
type MockUIDHandler struct {
	MockedUID string
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}

// newTestAPIHandler builds an api handler on top of the given storage
// with the default store settings and no replica queue.
func newTestAPIHandler(storage BookStorage) *APIHandler {
	config := DefaultConfig()
	clock := NewMockClocker()
	bs := NewBookService(zap.NewNop(), nil, config.Store, storage, nil)
	return NewAPIHandler(zap.NewNop(), config, &Statistics{started: clock.Now()}, clock, NewMockUIDHandler("abc"), nil, bs)
}
