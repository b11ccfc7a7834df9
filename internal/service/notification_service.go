package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sidang-api/internal/models"
	appErrors "github.com/noah-isme/sidang-api/pkg/errors"
)

type notificationRepository interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	ListByRecipient(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
}

// NotificationService derives and stores notification fanouts for exam
// events, and serves a user's inbox.
type NotificationService struct {
	repo   notificationRepository
	logger *zap.Logger
}

// NewNotificationService instantiates NotificationService.
func NewNotificationService(repo notificationRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// Inbox lists the authenticated user's notifications.
func (s *NotificationService) Inbox(ctx context.Context, principal models.Principal, page, pageSize int) ([]models.Notification, *models.Pagination, error) {
	filter := models.NotificationFilter{RecipientID: principal.UserID, Page: page, PageSize: pageSize}
	notifications, total, err := s.repo.ListByRecipient(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return notifications, pagination, nil
}

// ScheduleFanout derives the recipient set for a scheduling event. A first
// schedule notifies the student, supervisor and both examiners; a reschedule
// notifies everyone except the student, who only needs the final date.
func ScheduleFanout(exam *models.Exam, params models.AssignmentParams, isNew bool) []models.Notification {
	day := params.StartTime.In(TimeZoneWIB).Format("02-01-2006")
	from := params.StartTime.In(TimeZoneWIB).Format("15:04")
	until := params.EndTime.In(TimeZoneWIB).Format("15:04")
	slot := fmt.Sprintf("%s pukul %s-%s", day, from, until)

	var notifications []models.Notification
	if isNew {
		notifications = append(notifications, models.Notification{
			RecipientID: exam.StudentID,
			ExamID:      exam.ID,
			Message:     fmt.Sprintf("Ujian skripsi \"%s\" telah dijadwalkan pada %s.", exam.Title, slot),
		})
		notifications = append(notifications, models.Notification{
			RecipientID: exam.SupervisorID,
			ExamID:      exam.ID,
			Message:     fmt.Sprintf("Ujian skripsi bimbingan Anda \"%s\" dijadwalkan pada %s.", exam.Title, slot),
		})
		for _, examinerID := range []string{params.Examiner1ID, params.Examiner2ID} {
			notifications = append(notifications, models.Notification{
				RecipientID: examinerID,
				ExamID:      exam.ID,
				Message:     fmt.Sprintf("Anda ditugaskan sebagai penguji ujian skripsi \"%s\" pada %s.", exam.Title, slot),
			})
		}
		return notifications
	}

	for _, recipientID := range []string{exam.SupervisorID, params.Examiner1ID, params.Examiner2ID} {
		notifications = append(notifications, models.Notification{
			RecipientID: recipientID,
			ExamID:      exam.ID,
			Message:     fmt.Sprintf("Jadwal ujian skripsi \"%s\" diubah menjadi %s.", exam.Title, slot),
		})
	}
	return notifications
}

// DecisionFanout builds the single-recipient notification for the
// accept/reject verification edges.
func DecisionFanout(exam *models.Exam, accepted bool, comment *string) []models.Notification {
	var message string
	if accepted {
		message = fmt.Sprintf("Pengajuan ujian skripsi \"%s\" telah diverifikasi dan diterima.", exam.Title)
	} else {
		message = fmt.Sprintf("Pengajuan ujian skripsi \"%s\" ditolak.", exam.Title)
		if comment != nil && *comment != "" {
			message += " Catatan: " + *comment
		}
	}
	return []models.Notification{{RecipientID: exam.StudentID, ExamID: exam.ID, Message: message}}
}

// Deliver stores a fanout batch. Errors are returned to the caller, which
// treats them as best-effort failures; the batch is all-or-nothing.
func (s *NotificationService) Deliver(ctx context.Context, notifications []models.Notification) error {
	if err := s.repo.CreateBatch(ctx, notifications); err != nil {
		s.logger.Warn("notification fanout failed",
			zap.Int("recipients", len(notifications)),
			zap.Error(err),
		)
		return err
	}
	return nil
}
