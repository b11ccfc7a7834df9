package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sidang-api/internal/models"
	"github.com/noah-isme/sidang-api/internal/repository"
	appErrors "github.com/noah-isme/sidang-api/pkg/errors"
)

type schedulingExamStore interface {
	FindDetailByID(ctx context.Context, id string) (*models.ExamDetail, error)
	CommitAssignment(ctx context.Context, supervisorID string, params models.AssignmentParams) error
}

// CalendarSyncer mirrors a committed schedule onto an external calendar.
// A nil syncer disables the integration.
type CalendarSyncer interface {
	SyncExamSchedule(ctx context.Context, ownerID string, detail *models.ExamDetail) models.CalendarSyncResult
}

type fanoutDeliverer interface {
	Deliver(ctx context.Context, notifications []models.Notification) error
}

// AssignExamRequest is the admin payload for scheduling or rescheduling an
// exam.
type AssignExamRequest struct {
	Date        string `json:"date" validate:"required"`
	Start       string `json:"start" validate:"required"`
	End         string `json:"end" validate:"required"`
	RoomID      string `json:"room_id" validate:"required"`
	Examiner1ID string `json:"examiner1_id" validate:"required"`
	Examiner2ID string `json:"examiner2_id" validate:"required"`
}

// AssignExamResult reports a committed assignment together with the outcome
// of its best-effort side effects.
type AssignExamResult struct {
	Success      bool               `json:"success"`
	Message      string             `json:"message"`
	Exam         *models.ExamDetail `json:"exam"`
	CalendarLink string             `json:"calendar_link,omitempty"`
	NeedsReauth  bool               `json:"needs_reauth,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
}

// SchedulingService orchestrates the assignment pipeline: validate the
// window, verify participants, pre-check availability, commit atomically,
// then fan out notifications and sync the calendar. Side effects after the
// commit never fail the operation.
type SchedulingService struct {
	exams        schedulingExamStore
	users        participantReader
	rooms        roomReader
	availability *AvailabilityService
	notifier     fanoutDeliverer
	calendar     CalendarSyncer
	audit        auditWriter
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewSchedulingService instantiates SchedulingService.
func NewSchedulingService(
	exams schedulingExamStore,
	users participantReader,
	rooms roomReader,
	availability *AvailabilityService,
	notifier fanoutDeliverer,
	calendar CalendarSyncer,
	audit auditWriter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *SchedulingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulingService{
		exams:        exams,
		users:        users,
		rooms:        rooms,
		availability: availability,
		notifier:     notifier,
		calendar:     calendar,
		audit:        audit,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
	}
}

// AssignExam schedules an accepted exam or reschedules an already scheduled
// one. Only admins may call it.
func (s *SchedulingService) AssignExam(ctx context.Context, principal models.Principal, examID string, req AssignExamRequest) (*AssignExamResult, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordSchedulingOutcome("validation")
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	window, fieldErrs := ResolveTimeWindow(req.Date, req.Start, req.End, time.Now())
	if fieldErrs == nil {
		fieldErrs = map[string][]string{}
	}
	if req.Examiner1ID == req.Examiner2ID {
		fieldErrs["examiner2_id"] = append(fieldErrs["examiner2_id"], "examiners must be two distinct lecturers")
	}
	if len(fieldErrs) > 0 {
		s.metrics.RecordSchedulingOutcome("validation")
		return nil, appErrors.NewFieldErrors(fieldErrs)
	}

	detail, err := s.exams.FindDetailByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		s.metrics.RecordSchedulingOutcome("error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	// A scheduled exam whose window has passed is effectively SELESAI even if
	// the sweep has not promoted the row yet; it must not be reschedulable.
	effective := detail.EffectiveStatus(time.Now())
	if !effective.CanBeScheduled() {
		s.metrics.RecordSchedulingOutcome("conflict")
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition,
			fmt.Sprintf("exam in status %s cannot be scheduled", effective))
	}
	supervisorFields := map[string][]string{}
	if req.Examiner1ID == detail.SupervisorID {
		supervisorFields["examiner1_id"] = []string{"the supervisor cannot also act as examiner"}
	}
	if req.Examiner2ID == detail.SupervisorID {
		supervisorFields["examiner2_id"] = []string{"the supervisor cannot also act as examiner"}
	}
	if len(supervisorFields) > 0 {
		s.metrics.RecordSchedulingOutcome("validation")
		return nil, appErrors.NewFieldErrors(supervisorFields)
	}

	if err := s.verifyParticipants(ctx, req); err != nil {
		s.metrics.RecordSchedulingOutcome("validation")
		return nil, err
	}

	params := models.AssignmentParams{
		ExamID:      examID,
		ExamDate:    window.Date,
		StartTime:   window.Start,
		EndTime:     window.End,
		RoomID:      req.RoomID,
		Examiner1ID: req.Examiner1ID,
		Examiner2ID: req.Examiner2ID,
	}

	// Advisory pre-check; the transactional commit re-checks under lock.
	lecturers := params.LecturerIDs(detail.SupervisorID)
	freeLecturers, freeRooms, err := s.availability.FilterWindow(ctx, *window, lecturers, []string{req.RoomID}, examID)
	if err != nil {
		s.metrics.RecordSchedulingOutcome("error")
		return nil, err
	}
	if len(freeRooms) == 0 {
		s.metrics.RecordSchedulingOutcome("conflict")
		return nil, appErrors.Clone(appErrors.ErrConflict, "room is already booked for an overlapping exam")
	}
	if len(freeLecturers) < len(lecturers) {
		s.metrics.RecordSchedulingOutcome("conflict")
		return nil, appErrors.Clone(appErrors.ErrConflict, "a lecturer is already booked for an overlapping exam")
	}

	isNew := detail.Status != models.StatusDijadwalkan
	if err := s.exams.CommitAssignment(ctx, detail.SupervisorID, params); err != nil {
		return nil, s.mapCommitError(err)
	}
	s.metrics.RecordSchedulingOutcome(schedulingOutcome(isNew))
	s.recordAudit(ctx, principal, examID, params, isNew)

	updated := s.applyAssignment(detail, params)

	result := &AssignExamResult{Success: true, Exam: updated}
	if isNew {
		result.Message = "exam scheduled"
	} else {
		result.Message = "exam rescheduled"
	}

	s.fanOut(ctx, updated, params, isNew, result)
	s.syncCalendar(ctx, principal.UserID, updated, result)

	return result, nil
}

func schedulingOutcome(isNew bool) string {
	if isNew {
		return "scheduled"
	}
	return "rescheduled"
}

// verifyParticipants confirms the room exists and both examiners are active
// lecturers.
func (s *SchedulingService) verifyParticipants(ctx context.Context, req AssignExamRequest) error {
	if _, err := s.rooms.FindByID(ctx, req.RoomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NewFieldErrors(map[string][]string{"room_id": {"room not found"}})
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	examiners, err := s.users.ListByIDs(ctx, []string{req.Examiner1ID, req.Examiner2ID})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load examiners")
	}
	byID := make(map[string]models.User, len(examiners))
	for _, examiner := range examiners {
		byID[examiner.ID] = examiner
	}
	fields := map[string][]string{}
	for field, id := range map[string]string{"examiner1_id": req.Examiner1ID, "examiner2_id": req.Examiner2ID} {
		examiner, ok := byID[id]
		switch {
		case !ok:
			fields[field] = append(fields[field], "lecturer not found")
		case examiner.Role != models.RoleLecturer:
			fields[field] = append(fields[field], "examiner must be a lecturer")
		case !examiner.Active:
			fields[field] = append(fields[field], "lecturer account is inactive")
		}
	}
	if len(fields) > 0 {
		return appErrors.NewFieldErrors(fields)
	}
	return nil
}

func (s *SchedulingService) mapCommitError(err error) error {
	var conflict *models.BookingConflictError
	switch {
	case errors.As(err, &conflict):
		s.metrics.RecordSchedulingOutcome("conflict")
		message := "room is already booked for an overlapping exam"
		if conflict.Kind == "LECTURER" {
			message = "a lecturer is already booked for an overlapping exam"
		}
		return appErrors.Clone(appErrors.ErrConflict, message)
	case errors.Is(err, repository.ErrNotSchedulable):
		s.metrics.RecordSchedulingOutcome("conflict")
		return appErrors.Clone(appErrors.ErrIllegalTransition, "exam status changed; it can no longer be scheduled")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "exam not found")
	default:
		s.metrics.RecordSchedulingOutcome("error")
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit assignment")
	}
}

// applyAssignment mirrors the committed transaction onto the in-memory
// detail so side effects and the response see the new schedule.
func (s *SchedulingService) applyAssignment(detail *models.ExamDetail, params models.AssignmentParams) *models.ExamDetail {
	updated := *detail
	updated.Status = models.StatusDijadwalkan
	updated.ExamDate = &params.ExamDate
	updated.StartTime = &params.StartTime
	updated.EndTime = &params.EndTime
	updated.RoomID = &params.RoomID
	updated.UpdatedAt = time.Now().UTC()
	updated.ExaminerIDs = []string{params.Examiner1ID, params.Examiner2ID}
	return &updated
}

func (s *SchedulingService) recordAudit(ctx context.Context, principal models.Principal, examID string, params models.AssignmentParams, isNew bool) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"status":     models.StatusDijadwalkan,
		"exam_date":  params.ExamDate.Format(dateLayout),
		"start_time": params.StartTime,
		"end_time":   params.EndTime,
		"room_id":    params.RoomID,
		"examiners":  []string{params.Examiner1ID, params.Examiner2ID},
		"reschedule": !isNew,
	})
	if err != nil {
		payload = nil
	}
	log := &models.AuditLog{
		UserID:     &principal.UserID,
		Action:     models.AuditActionAssignExam,
		Resource:   "exams",
		ResourceID: &examID,
		NewValues:  payload,
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", models.AuditActionAssignExam), zap.Error(err))
	}
}

func (s *SchedulingService) fanOut(ctx context.Context, detail *models.ExamDetail, params models.AssignmentParams, isNew bool, result *AssignExamResult) {
	notifications := ScheduleFanout(&detail.Exam, params, isNew)
	if err := s.notifier.Deliver(ctx, notifications); err != nil {
		s.metrics.RecordFanout(false)
		result.Warnings = append(result.Warnings, "notifications could not be delivered")
		return
	}
	s.metrics.RecordFanout(true)
}

func (s *SchedulingService) syncCalendar(ctx context.Context, ownerID string, detail *models.ExamDetail, result *AssignExamResult) {
	if s.calendar == nil {
		return
	}
	sync := s.calendar.SyncExamSchedule(ctx, ownerID, detail)
	switch {
	case sync.Synced:
		s.metrics.RecordCalendarSync("synced")
		result.CalendarLink = sync.Link
		if sync.EventID != "" && detail.CalendarEventID == nil {
			detail.CalendarEventID = &sync.EventID
		}
	case sync.NeedsReauth:
		s.metrics.RecordCalendarSync("needs_reauth")
		result.NeedsReauth = true
	default:
		s.metrics.RecordCalendarSync("failed")
	}
	if sync.Warning != "" {
		result.Warnings = append(result.Warnings, sync.Warning)
	}
}
