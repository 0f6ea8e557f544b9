package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aradit/smsc-gateway/internal/smsc/domain"
)

type messageServiceFixture struct {
	messageRepo  *MockMessageRepository
	queueRepo    *MockQueueRepository
	routeRepo    *MockRouteRepository
	operatorRepo *MockOperatorRepository
	publisher    *MockJobPublisher
	service      *MessageService
}

func newMessageServiceFixture() *messageServiceFixture {
	f := &messageServiceFixture{
		messageRepo:  new(MockMessageRepository),
		queueRepo:    new(MockQueueRepository),
		routeRepo:    new(MockRouteRepository),
		operatorRepo: new(MockOperatorRepository),
		publisher:    new(MockJobPublisher),
	}
	router, _ := newTestRouter(f.routeRepo, f.operatorRepo, f.messageRepo)
	f.service = NewMessageService(f.messageRepo, f.queueRepo, router, f.publisher, testLogger())
	return f
}

// routeTo sets the routing fixtures up so every recipient resolves to the
// given operator.
func (f *messageServiceFixture) routeTo(operatorID int64) {
	f.routeRepo.On("GetDistinctPrefixes", mock.Anything).Return([]string{"98"}, nil)
	f.routeRepo.On("GetByPrefix", mock.Anything, "98").
		Return([]*domain.Route{{ID: 1, Prefix: "98", OperatorID: operatorID}}, nil)
	f.operatorRepo.On("GetByID", mock.Anything, operatorID).Return(activeOperator(operatorID, 100), nil)
	f.messageRepo.On("CountByOperatorSince", mock.Anything, operatorID, mock.Anything).Return(0, nil)
}

func TestSend_HappyPath(t *testing.T) {
	f := newMessageServiceFixture()
	f.routeTo(7)

	f.messageRepo.On("CreateWithQueueEntry", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.messageRepo.On("TransitionStatus", mock.Anything, mock.Anything,
		domain.MessageStatusPending, domain.MessageStatusQueued).Return(true, nil)
	f.publisher.On("Publish", mock.Anything, DeliveryJobSubject, mock.Anything).Return(nil)

	msg, err := f.service.Send(context.Background(), "5000", "+989121234567", "hello", 0, nil)

	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusQueued, msg.Status)
	assert.Equal(t, int64(7), msg.OperatorID)
	assert.NotEmpty(t, msg.MessageID)

	// The published job must carry the message's public identifier.
	published := f.publisher.Calls[0].Arguments.Get(2).([]byte)
	var job DeliveryJob
	require.NoError(t, json.Unmarshal(published, &job))
	assert.Equal(t, msg.MessageID, job.MessageID)

	// Default priority applies when the caller gave none.
	for _, call := range f.messageRepo.Calls {
		if call.Method == "CreateWithQueueEntry" {
			entry := call.Arguments.Get(2).(*domain.QueueEntry)
			assert.Equal(t, DefaultPriority, entry.Priority)
		}
	}
}

func TestSend_RoutingFailureAbortsBeforePersist(t *testing.T) {
	f := newMessageServiceFixture()
	f.routeRepo.On("GetDistinctPrefixes", mock.Anything).Return([]string{"44"}, nil)

	_, err := f.service.Send(context.Background(), "5000", "+989121234567", "hello", 1, nil)

	assert.ErrorIs(t, err, domain.ErrRouteNotFound)
	f.messageRepo.AssertNotCalled(t, "CreateWithQueueEntry", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestSend_PersistFailureSurfaces(t *testing.T) {
	f := newMessageServiceFixture()
	f.routeTo(7)

	f.messageRepo.On("CreateWithQueueEntry", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("connection reset"))

	_, err := f.service.Send(context.Background(), "5000", "+989121234567", "hello", 1, nil)

	require.Error(t, err)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestSend_DispatchFailureMarksMessageFailed(t *testing.T) {
	f := newMessageServiceFixture()
	f.routeTo(7)

	f.messageRepo.On("CreateWithQueueEntry", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.messageRepo.On("TransitionStatus", mock.Anything, mock.Anything,
		domain.MessageStatusPending, domain.MessageStatusQueued).Return(true, nil)
	f.publisher.On("Publish", mock.Anything, DeliveryJobSubject, mock.Anything).
		Return(errors.New("broker unavailable"))
	f.messageRepo.On("MarkFailed", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.queueRepo.On("Delete", mock.Anything, mock.Anything).Return(nil)

	msg, err := f.service.Send(context.Background(), "5000", "+989121234567", "hello", 1, nil)

	// Send itself succeeds; the failure is recorded on the message.
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusFailed, msg.Status)
	require.NotNil(t, msg.ErrorMessage)
	assert.Contains(t, *msg.ErrorMessage, "broker unavailable")
	f.messageRepo.AssertCalled(t, "MarkFailed", mock.Anything, msg.MessageID, mock.Anything)
	f.queueRepo.AssertCalled(t, "Delete", mock.Anything, msg.MessageID)
}

func TestSendBulk_ItemsAreIsolated(t *testing.T) {
	f := newMessageServiceFixture()

	// Prefix 98 routes, prefix 44 has no configured route.
	f.routeRepo.On("GetDistinctPrefixes", mock.Anything).Return([]string{"98"}, nil)
	f.routeRepo.On("GetByPrefix", mock.Anything, "98").
		Return([]*domain.Route{{ID: 1, Prefix: "98", OperatorID: 7}}, nil)
	f.operatorRepo.On("GetByID", mock.Anything, int64(7)).Return(activeOperator(7, 100), nil)
	f.messageRepo.On("CountByOperatorSince", mock.Anything, int64(7), mock.Anything).Return(0, nil)

	f.messageRepo.On("CreateWithQueueEntry", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.messageRepo.On("TransitionStatus", mock.Anything, mock.Anything,
		domain.MessageStatusPending, domain.MessageStatusQueued).Return(true, nil)
	f.publisher.On("Publish", mock.Anything, DeliveryJobSubject, mock.Anything).Return(nil)

	results := f.service.SendBulk(context.Background(), []BulkItem{
		{Sender: "5000", Recipient: "+989121111111", Content: "a"},
		{Sender: "5000", Recipient: "+449121111111", Content: "b"},
		{Sender: "5000", Recipient: "+989122222222", Content: "c"},
	}, nil)

	require.Len(t, results, 3)
	assert.Equal(t, "queued", results[0].Status)
	assert.Equal(t, "failed", results[1].Status)
	assert.NotEmpty(t, results[1].Error)
	assert.Equal(t, "queued", results[2].Status)

	// Result order follows input order.
	assert.Equal(t, "+989121111111", results[0].Recipient)
	assert.Equal(t, "+449121111111", results[1].Recipient)
	assert.Equal(t, "+989122222222", results[2].Recipient)
}

func TestCancel_WithinWindow(t *testing.T) {
	f := newMessageServiceFixture()
	f.messageRepo.On("CancelIfCancellable", mock.Anything, "MSG_1").Return(true, nil)

	cancelled, err := f.service.Cancel(context.Background(), "MSG_1")

	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestCancel_PastWindowIsNotAnError(t *testing.T) {
	f := newMessageServiceFixture()
	f.messageRepo.On("CancelIfCancellable", mock.Anything, "MSG_1").Return(false, nil)

	cancelled, err := f.service.Cancel(context.Background(), "MSG_1")

	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestStatus_UnknownMessage(t *testing.T) {
	f := newMessageServiceFixture()
	f.messageRepo.On("GetByMessageID", mock.Anything, "MSG_missing").
		Return(nil, domain.ErrMessageNotFound)

	_, err := f.service.Status(context.Background(), "MSG_missing")

	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}
