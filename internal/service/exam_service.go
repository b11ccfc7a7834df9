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
	appErrors "github.com/noah-isme/sidang-api/pkg/errors"
)

type examStore interface {
	FindDetailByID(ctx context.Context, id string) (*models.ExamDetail, error)
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error)
	Create(ctx context.Context, exam *models.Exam) error
	UpdateStatus(ctx context.Context, id string, status models.ExamStatus, comment *string) error
}

type userGetter interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// SubmitExamRequest is the student payload for a new thesis-exam submission.
type SubmitExamRequest struct {
	Title       string `json:"title" validate:"required,min=10"`
	DocumentURL string `json:"document_url" validate:"required,url"`
}

// DecideExamRequest carries the admin's verification decision comment.
type DecideExamRequest struct {
	Comment string `json:"comment"`
}

// ExamListRequest captures query params for listing exams.
type ExamListRequest struct {
	Status    string
	DateFrom  string
	DateTo    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ExamService covers the submission and verification lifecycle. Scheduling
// itself lives in SchedulingService.
type ExamService struct {
	exams     examStore
	users     userGetter
	notifier  fanoutDeliverer
	audit     auditWriter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService instantiates ExamService.
func NewExamService(exams examStore, users userGetter, notifier fanoutDeliverer, audit auditWriter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{
		exams:     exams,
		users:     users,
		notifier:  notifier,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Submit files a new exam for the authenticated student. The supervisor is
// taken from the student's record, never from the payload.
func (s *ExamService) Submit(ctx context.Context, principal models.Principal, req SubmitExamRequest) (*models.Exam, error) {
	if principal.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit exams")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	student, err := s.users.FindByID(ctx, principal.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.SupervisorID == nil || *student.SupervisorID == "" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "no supervisor assigned; contact the administration office")
	}

	// One live submission per student: anything not rejected or finished
	// blocks a new one.
	pending, _, err := s.exams.List(ctx, models.ExamFilter{StudentID: principal.UserID, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing submissions")
	}
	now := time.Now()
	for _, existing := range pending {
		switch existing.EffectiveStatus(now) {
		case models.StatusDitolak, models.StatusSelesai:
		default:
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active submission already exists")
		}
	}

	exam := &models.Exam{
		StudentID:    principal.UserID,
		SupervisorID: *student.SupervisorID,
		Title:        req.Title,
		DocumentURL:  req.DocumentURL,
		Status:       models.StatusMenungguVerifikasi,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return exam, nil
}

// List returns exams visible to the caller: admins see everything, students
// their own submissions, lecturers the exams they supervise or examine.
func (s *ExamService) List(ctx context.Context, principal models.Principal, req ExamListRequest) ([]models.Exam, *models.Pagination, error) {
	filter := models.ExamFilter{
		Status:    models.ExamStatus(req.Status),
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	switch principal.Role {
	case models.RoleAdmin:
	case models.RoleStudent:
		filter.StudentID = principal.UserID
	case models.RoleLecturer:
		filter.LecturerID = principal.UserID
	default:
		return nil, nil, appErrors.ErrForbidden
	}

	if req.DateFrom != "" {
		from, err := time.ParseInLocation(dateLayout, req.DateFrom, TimeZoneWIB)
		if err != nil {
			return nil, nil, appErrors.NewFieldErrors(map[string][]string{"date_from": {"date must be in YYYY-MM-DD format"}})
		}
		filter.DateFrom = &from
	}
	if req.DateTo != "" {
		to, err := time.ParseInLocation(dateLayout, req.DateTo, TimeZoneWIB)
		if err != nil {
			return nil, nil, appErrors.NewFieldErrors(map[string][]string{"date_to": {"date must be in YYYY-MM-DD format"}})
		}
		filter.DateTo = &to
	}

	exams, total, err := s.exams.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}

	now := time.Now()
	for i := range exams {
		exams[i].Status = exams[i].EffectiveStatus(now)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return exams, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads a single exam, enforcing the same visibility rules as List.
func (s *ExamService) Get(ctx context.Context, principal models.Principal, id string) (*models.ExamDetail, error) {
	detail, err := s.exams.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if !s.canView(principal, detail) {
		return nil, appErrors.ErrForbidden
	}
	detail.Status = detail.EffectiveStatus(time.Now())
	return detail, nil
}

func (s *ExamService) canView(principal models.Principal, detail *models.ExamDetail) bool {
	switch principal.Role {
	case models.RoleAdmin:
		return true
	case models.RoleStudent:
		return detail.StudentID == principal.UserID
	case models.RoleLecturer:
		if detail.SupervisorID == principal.UserID {
			return true
		}
		for _, examinerID := range detail.ExaminerIDs {
			if examinerID == principal.UserID {
				return true
			}
		}
	}
	return false
}

// Accept verifies a pending submission. Admin only; the exam must still be
// awaiting verification.
func (s *ExamService) Accept(ctx context.Context, principal models.Principal, id string, req DecideExamRequest) (*models.Exam, error) {
	return s.decide(ctx, principal, id, req, true)
}

// Reject turns down a pending submission with a mandatory reason.
func (s *ExamService) Reject(ctx context.Context, principal models.Principal, id string, req DecideExamRequest) (*models.Exam, error) {
	if req.Comment == "" {
		return nil, appErrors.NewFieldErrors(map[string][]string{"comment": {"a rejection reason is required"}})
	}
	return s.decide(ctx, principal, id, req, false)
}

func (s *ExamService) decide(ctx context.Context, principal models.Principal, id string, req DecideExamRequest, accepted bool) (*models.Exam, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}

	detail, err := s.exams.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if detail.Status != models.StatusMenungguVerifikasi {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition,
			fmt.Sprintf("exam in status %s cannot be decided", detail.Status))
	}

	status := models.StatusDiterima
	action := models.AuditActionAcceptExam
	if !accepted {
		status = models.StatusDitolak
		action = models.AuditActionRejectExam
	}
	var comment *string
	if req.Comment != "" {
		comment = &req.Comment
	}

	if err := s.exams.UpdateStatus(ctx, id, status, comment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam")
	}

	updated := detail.Exam
	updated.Status = status
	updated.AdminComment = comment
	updated.UpdatedAt = time.Now().UTC()

	if err := s.notifier.Deliver(ctx, DecisionFanout(&updated, accepted, comment)); err != nil {
		s.metrics.RecordFanout(false)
	} else {
		s.metrics.RecordFanout(true)
	}

	s.recordAudit(ctx, principal, action, id, map[string]interface{}{
		"status":  status,
		"comment": req.Comment,
	})

	return &updated, nil
}

func (s *ExamService) recordAudit(ctx context.Context, principal models.Principal, action, examID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(values)
	if err != nil {
		payload = nil
	}
	log := &models.AuditLog{
		UserID:     &principal.UserID,
		Action:     action,
		Resource:   "exams",
		ResourceID: &examID,
		NewValues:  payload,
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
