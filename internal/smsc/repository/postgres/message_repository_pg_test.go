package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradit/smsc-gateway/internal/smsc/domain"
)

func newMessage() (*domain.Message, *domain.QueueEntry) {
	msg := &domain.Message{
		MessageID:  "MSG_test",
		Sender:     "5000",
		Recipient:  "+989121234567",
		Content:    "hello",
		Status:     domain.MessageStatusPending,
		OperatorID: 7,
	}
	entry := &domain.QueueEntry{
		MessageID:  "MSG_test",
		OperatorID: 7,
		Priority:   3,
		Status:     domain.QueueEntryStatusPending,
	}
	return msg, entry
}

func TestCreateWithQueueEntry_CommitsBothRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgMessageRepository(mock)
	msg, entry := newMessage()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO messages").
		WithArgs(msg.MessageID, msg.Sender, msg.Recipient, msg.Content, msg.Status,
			msg.ErrorMessage, msg.OperatorID, msg.CallbackURL, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery("INSERT INTO message_queue").
		WithArgs(entry.MessageID, entry.OperatorID, entry.Priority, pgxmock.AnyArg(),
			entry.Status, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(21)))
	mock.ExpectCommit()

	err = repo.CreateWithQueueEntry(context.Background(), msg, entry)

	require.NoError(t, err)
	assert.Equal(t, int64(11), msg.ID)
	assert.Equal(t, int64(21), entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithQueueEntry_RollsBackWhenQueueInsertFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgMessageRepository(mock)
	msg, entry := newMessage()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO messages").
		WithArgs(msg.MessageID, msg.Sender, msg.Recipient, msg.Content, msg.Status,
			msg.ErrorMessage, msg.OperatorID, msg.CallbackURL, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery("INSERT INTO message_queue").
		WithArgs(entry.MessageID, entry.OperatorID, entry.Priority, pgxmock.AnyArg(),
			entry.Status, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err = repo.CreateWithQueueEntry(context.Background(), msg, entry)

	// The message insert must not survive the failed queue insert.
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByMessageID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgMessageRepository(mock)

	mock.ExpectQuery("SELECT (.+) FROM messages WHERE message_id").
		WithArgs("MSG_missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "message_id", "sender", "recipient", "content", "status",
			"error_message", "operator_id", "callback_url", "created_at", "updated_at",
		}))

	_, err = repo.GetByMessageID(context.Background(), "MSG_missing")

	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestGetByMessageID_ScansRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgMessageRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM messages WHERE message_id").
		WithArgs("MSG_test").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "message_id", "sender", "recipient", "content", "status",
			"error_message", "operator_id", "callback_url", "created_at", "updated_at",
		}).AddRow(int64(11), "MSG_test", "5000", "+989121234567", "hello",
			domain.MessageStatusQueued, (*string)(nil), int64(7), (*string)(nil), now, now))

	msg, err := repo.GetByMessageID(context.Background(), "MSG_test")

	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusQueued, msg.Status)
	assert.Equal(t, int64(7), msg.OperatorID)
}

func TestTransitionStatus_GuardedUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgMessageRepository(mock)

	mock.ExpectExec("UPDATE messages SET status").
		WithArgs("MSG_test", domain.MessageStatusQueued, domain.MessageStatusSending, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.TransitionStatus(context.Background(), "MSG_test",
		domain.MessageStatusQueued, domain.MessageStatusSending)

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTransitionStatus_LosesWhenStatusMoved(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgMessageRepository(mock)

	mock.ExpectExec("UPDATE messages SET status").
		WithArgs("MSG_test", domain.MessageStatusQueued, domain.MessageStatusSending, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.TransitionStatus(context.Background(), "MSG_test",
		domain.MessageStatusQueued, domain.MessageStatusSending)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancelIfCancellable_WithinWindow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgMessageRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE messages SET status").
		WithArgs("MSG_test", domain.MessageStatusCancelled, pgxmock.AnyArg(),
			domain.MessageStatusPending, domain.MessageStatusQueued).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM message_queue").
		WithArgs("MSG_test").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	cancelled, err := repo.CancelIfCancellable(context.Background(), "MSG_test")

	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelIfCancellable_PastWindow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgMessageRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE messages SET status").
		WithArgs("MSG_test", domain.MessageStatusCancelled, pgxmock.AnyArg(),
			domain.MessageStatusPending, domain.MessageStatusQueued).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	cancelled, err := repo.CancelIfCancellable(context.Background(), "MSG_test")

	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByOperatorSince(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgMessageRepository(mock)
	since := time.Now().UTC().Add(-time.Second)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(7), since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountByOperatorSince(context.Background(), 7, since)

	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
