package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sidang-api/internal/models"
)

func TestCreateBatchSingleStatement(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	batch := []models.Notification{
		{RecipientID: "stud-1", ExamID: "exam-1", Message: "scheduled"},
		{RecipientID: "lect-1", ExamID: "exam-1", Message: "assigned"},
		{RecipientID: "lect-2", ExamID: "exam-1", Message: "assigned"},
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO notifications (id, recipient_id, exam_id, message, created_at) VALUES ($1, $2, $3, $4, $5), ($6, $7, $8, $9, $10), ($11, $12, $13, $14, $15)`)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := repo.CreateBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.NotEmpty(t, batch[0].ID)
	assert.False(t, batch[2].CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBatchEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	err := repo.CreateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByRecipient(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "recipient_id", "exam_id", "message", "created_at"}).
		AddRow("n-1", "stud-1", "exam-1", "scheduled", now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, recipient_id, exam_id, message, created_at FROM notifications WHERE recipient_id = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0`)).
		WithArgs("stud-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1`)).
		WithArgs("stud-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	notifications, total, err := repo.ListByRecipient(context.Background(), models.NotificationFilter{RecipientID: "stud-1"})
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
