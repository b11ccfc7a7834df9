package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sidang-api/internal/models"
)

type stubNotificationRepo struct {
	batches [][]models.Notification
	err     error
}

func (s *stubNotificationRepo) CreateBatch(_ context.Context, notifications []models.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, notifications)
	return nil
}

func (s *stubNotificationRepo) ListByRecipient(_ context.Context, _ models.NotificationFilter) ([]models.Notification, int, error) {
	return nil, 0, nil
}

func fanoutExam() *models.Exam {
	return &models.Exam{
		ID:           "exam-1",
		StudentID:    "stud-1",
		SupervisorID: "lect-9",
		Title:        "Analisis Sistem",
	}
}

func fanoutParams() models.AssignmentParams {
	return models.AssignmentParams{
		ExamID:      "exam-1",
		StartTime:   time.Date(2026, 3, 12, 9, 0, 0, 0, TimeZoneWIB),
		EndTime:     time.Date(2026, 3, 12, 11, 0, 0, 0, TimeZoneWIB),
		Examiner1ID: "lect-1",
		Examiner2ID: "lect-2",
	}
}

func TestScheduleFanoutFirstSchedule(t *testing.T) {
	notifications := ScheduleFanout(fanoutExam(), fanoutParams(), true)
	require.Len(t, notifications, 4)

	recipients := make([]string, 0, len(notifications))
	for _, n := range notifications {
		recipients = append(recipients, n.RecipientID)
		assert.Equal(t, "exam-1", n.ExamID)
		assert.Contains(t, n.Message, "12-03-2026 pukul 09:00-11:00")
	}
	assert.ElementsMatch(t, []string{"stud-1", "lect-9", "lect-1", "lect-2"}, recipients)
	assert.Contains(t, notifications[0].Message, "telah dijadwalkan")
}

func TestScheduleFanoutRescheduleSkipsStudent(t *testing.T) {
	notifications := ScheduleFanout(fanoutExam(), fanoutParams(), false)
	require.Len(t, notifications, 3)

	for _, n := range notifications {
		assert.NotEqual(t, "stud-1", n.RecipientID)
		assert.Contains(t, n.Message, "diubah menjadi")
	}
}

func TestDecisionFanoutRejectIncludesComment(t *testing.T) {
	comment := "dokumen tidak lengkap"
	notifications := DecisionFanout(fanoutExam(), false, &comment)
	require.Len(t, notifications, 1)
	assert.Equal(t, "stud-1", notifications[0].RecipientID)
	assert.Contains(t, notifications[0].Message, "ditolak")
	assert.Contains(t, notifications[0].Message, comment)
}

func TestDecisionFanoutAccept(t *testing.T) {
	notifications := DecisionFanout(fanoutExam(), true, nil)
	require.Len(t, notifications, 1)
	assert.Contains(t, notifications[0].Message, "diterima")
}

func TestDeliverPropagatesError(t *testing.T) {
	repo := &stubNotificationRepo{err: errors.New("db down")}
	svc := NewNotificationService(repo, nil)

	err := svc.Deliver(context.Background(), ScheduleFanout(fanoutExam(), fanoutParams(), true))
	assert.Error(t, err)
}

func TestDeliverStoresBatch(t *testing.T) {
	repo := &stubNotificationRepo{}
	svc := NewNotificationService(repo, nil)

	err := svc.Deliver(context.Background(), ScheduleFanout(fanoutExam(), fanoutParams(), true))
	require.NoError(t, err)
	require.Len(t, repo.batches, 1)
	assert.Len(t, repo.batches[0], 4)
}
