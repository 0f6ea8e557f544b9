package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/aradit/smsc-gateway/internal/smsc/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) CreateWithQueueEntry(ctx context.Context, msg *domain.Message, entry *domain.QueueEntry) error {
	args := m.Called(ctx, msg, entry)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.Message, error) {
	args := m.Called(ctx, messageID)
	if msg, ok := args.Get(0).(*domain.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessageRepository) TransitionStatus(ctx context.Context, messageID string, from, to domain.MessageStatus) (bool, error) {
	args := m.Called(ctx, messageID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) MarkFailed(ctx context.Context, messageID string, errorMessage string) error {
	args := m.Called(ctx, messageID, errorMessage)
	return args.Error(0)
}

func (m *MockMessageRepository) CancelIfCancellable(ctx context.Context, messageID string) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) CountByOperatorSince(ctx context.Context, operatorID int64, since time.Time) (int, error) {
	args := m.Called(ctx, operatorID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockMessageRepository) CountByOperatorStatusSince(ctx context.Context, operatorID int64, status domain.MessageStatus, since time.Time) (int, error) {
	args := m.Called(ctx, operatorID, status, since)
	return args.Int(0), args.Error(1)
}

type MockOperatorRepository struct {
	mock.Mock
}

func (m *MockOperatorRepository) GetByID(ctx context.Context, id int64) (*domain.Operator, error) {
	args := m.Called(ctx, id)
	if op, ok := args.Get(0).(*domain.Operator); ok {
		return op, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockRouteRepository struct {
	mock.Mock
}

func (m *MockRouteRepository) GetDistinctPrefixes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if prefixes, ok := args.Get(0).([]string); ok {
		return prefixes, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRouteRepository) GetByPrefix(ctx context.Context, prefix string) ([]*domain.Route, error) {
	args := m.Called(ctx, prefix)
	if routes, ok := args.Get(0).([]*domain.Route); ok {
		return routes, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRouteRepository) Upsert(ctx context.Context, updates []domain.RouteUpdate) error {
	args := m.Called(ctx, updates)
	return args.Error(0)
}

type MockQueueRepository struct {
	mock.Mock
}

func (m *MockQueueRepository) MarkSending(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MockQueueRepository) Delete(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MockQueueRepository) ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	args := m.Called(ctx, cutoff)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockJobPublisher struct {
	mock.Mock
}

func (m *MockJobPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

type MockDeliverer struct {
	mock.Mock
}

func (m *MockDeliverer) Deliver(ctx context.Context, sender, recipient, content string, params domain.ConnectionParams) (string, error) {
	args := m.Called(ctx, sender, recipient, content, params)
	return args.String(0), args.Error(1)
}
