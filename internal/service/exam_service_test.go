package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sidang-api/internal/models"
	appErrors "github.com/noah-isme/sidang-api/pkg/errors"
)

type stubExamStore struct {
	detail    *models.ExamDetail
	listExams []models.Exam

	gotFilter  models.ExamFilter
	created    *models.Exam
	newStatus  models.ExamStatus
	newComment *string
}

func (s *stubExamStore) FindDetailByID(_ context.Context, _ string) (*models.ExamDetail, error) {
	copied := *s.detail
	return &copied, nil
}

func (s *stubExamStore) List(_ context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	s.gotFilter = filter
	return s.listExams, len(s.listExams), nil
}

func (s *stubExamStore) Create(_ context.Context, exam *models.Exam) error {
	exam.ID = "exam-new"
	s.created = exam
	return nil
}

func (s *stubExamStore) UpdateStatus(_ context.Context, _ string, status models.ExamStatus, comment *string) error {
	s.newStatus = status
	s.newComment = comment
	return nil
}

type stubUserGetter struct {
	user *models.User
}

func (s *stubUserGetter) FindByID(_ context.Context, _ string) (*models.User, error) {
	return s.user, nil
}

type stubAuditWriter struct {
	logs []*models.AuditLog
}

func (s *stubAuditWriter) Create(_ context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

type examFixture struct {
	store     *stubExamStore
	users     *stubUserGetter
	deliverer *stubDeliverer
	audit     *stubAuditWriter
	svc       *ExamService
}

func newExamFixture() *examFixture {
	supervisorID := "lect-9"
	f := &examFixture{
		store:     &stubExamStore{},
		users:     &stubUserGetter{user: &models.User{ID: "stud-1", Role: models.RoleStudent, Active: true, SupervisorID: &supervisorID}},
		deliverer: &stubDeliverer{},
		audit:     &stubAuditWriter{},
	}
	f.svc = NewExamService(f.store, f.users, f.deliverer, f.audit, NewMetricsService(), nil, nil)
	return f
}

var studentPrincipal = models.Principal{UserID: "stud-1", Role: models.RoleStudent}

func submitRequest() SubmitExamRequest {
	return SubmitExamRequest{
		Title:       "Analisis Sistem Informasi Akademik",
		DocumentURL: "https://drive.kampus.ac.id/skripsi/stud-1.pdf",
	}
}

func TestSubmitCreatesPendingExam(t *testing.T) {
	f := newExamFixture()

	exam, err := f.svc.Submit(context.Background(), studentPrincipal, submitRequest())
	require.NoError(t, err)

	assert.Equal(t, models.StatusMenungguVerifikasi, exam.Status)
	assert.Equal(t, "stud-1", exam.StudentID)
	assert.Equal(t, "lect-9", exam.SupervisorID)
	require.NotNil(t, f.store.created)
}

func TestSubmitRequiresStudentRole(t *testing.T) {
	f := newExamFixture()

	_, err := f.svc.Submit(context.Background(), adminPrincipal, submitRequest())
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusForbidden, appErr.Status)
}

func TestSubmitRejectsShortTitle(t *testing.T) {
	f := newExamFixture()
	req := submitRequest()
	req.Title = "Skripsi"

	_, err := f.svc.Submit(context.Background(), studentPrincipal, req)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSubmitRequiresAssignedSupervisor(t *testing.T) {
	f := newExamFixture()
	f.users.user.SupervisorID = nil

	_, err := f.svc.Submit(context.Background(), studentPrincipal, submitRequest())
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Nil(t, f.store.created)
}

func TestSubmitBlockedByActiveSubmission(t *testing.T) {
	f := newExamFixture()
	f.store.listExams = []models.Exam{{ID: "exam-0", Status: models.StatusMenungguVerifikasi}}

	_, err := f.svc.Submit(context.Background(), studentPrincipal, submitRequest())
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
}

func TestSubmitAllowedAfterRejection(t *testing.T) {
	f := newExamFixture()
	f.store.listExams = []models.Exam{{ID: "exam-0", Status: models.StatusDitolak}}

	_, err := f.svc.Submit(context.Background(), studentPrincipal, submitRequest())
	assert.NoError(t, err)
}

func TestSubmitAllowedAfterExamWindowPassed(t *testing.T) {
	f := newExamFixture()
	past := time.Now().Add(-24 * time.Hour)
	f.store.listExams = []models.Exam{{ID: "exam-0", Status: models.StatusDijadwalkan, EndTime: &past}}

	_, err := f.svc.Submit(context.Background(), studentPrincipal, submitRequest())
	assert.NoError(t, err)
}

func TestListScopesStudentToOwnExams(t *testing.T) {
	f := newExamFixture()

	_, _, err := f.svc.List(context.Background(), studentPrincipal, ExamListRequest{})
	require.NoError(t, err)
	assert.Equal(t, "stud-1", f.store.gotFilter.StudentID)
}

func TestListScopesLecturer(t *testing.T) {
	f := newExamFixture()

	_, _, err := f.svc.List(context.Background(), models.Principal{UserID: "lect-9", Role: models.RoleLecturer}, ExamListRequest{})
	require.NoError(t, err)
	assert.Equal(t, "lect-9", f.store.gotFilter.LecturerID)
}

func TestListDerivesCompletedStatus(t *testing.T) {
	f := newExamFixture()
	past := time.Now().Add(-24 * time.Hour)
	f.store.listExams = []models.Exam{{ID: "exam-0", StudentID: "stud-1", Status: models.StatusDijadwalkan, EndTime: &past}}

	exams, _, err := f.svc.List(context.Background(), studentPrincipal, ExamListRequest{})
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, models.StatusSelesai, exams[0].Status)
}

func TestListRejectsBadDateFilter(t *testing.T) {
	f := newExamFixture()

	_, _, err := f.svc.List(context.Background(), studentPrincipal, ExamListRequest{DateFrom: "12-03-2026"})
	appErr := appErrors.FromError(err)
	assert.Contains(t, appErr.Fields, "date_from")
}

func TestGetHiddenFromUnrelatedLecturer(t *testing.T) {
	f := newExamFixture()
	f.store.detail = acceptedDetail()

	_, err := f.svc.Get(context.Background(), models.Principal{UserID: "lect-99", Role: models.RoleLecturer}, "exam-1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusForbidden, appErr.Status)
}

func TestGetVisibleToExaminer(t *testing.T) {
	f := newExamFixture()
	detail := acceptedDetail()
	detail.ExaminerIDs = []string{"lect-1", "lect-2"}
	f.store.detail = detail

	got, err := f.svc.Get(context.Background(), models.Principal{UserID: "lect-2", Role: models.RoleLecturer}, "exam-1")
	require.NoError(t, err)
	assert.Equal(t, "exam-1", got.ID)
}

func TestAcceptVerifiesPendingExam(t *testing.T) {
	f := newExamFixture()
	detail := acceptedDetail()
	detail.Status = models.StatusMenungguVerifikasi
	f.store.detail = detail

	exam, err := f.svc.Accept(context.Background(), adminPrincipal, "exam-1", DecideExamRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusDiterima, exam.Status)
	assert.Equal(t, models.StatusDiterima, f.store.newStatus)
	require.Len(t, f.deliverer.delivered, 1)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionAcceptExam, f.audit.logs[0].Action)
}

func TestAcceptRequiresAdmin(t *testing.T) {
	f := newExamFixture()
	detail := acceptedDetail()
	detail.Status = models.StatusMenungguVerifikasi
	f.store.detail = detail

	_, err := f.svc.Accept(context.Background(), studentPrincipal, "exam-1", DecideExamRequest{})
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusForbidden, appErr.Status)
}

func TestAcceptRejectsDecidedExam(t *testing.T) {
	f := newExamFixture()
	f.store.detail = acceptedDetail()

	_, err := f.svc.Accept(context.Background(), adminPrincipal, "exam-1", DecideExamRequest{})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErr.Code)
}

func TestRejectRequiresComment(t *testing.T) {
	f := newExamFixture()
	detail := acceptedDetail()
	detail.Status = models.StatusMenungguVerifikasi
	f.store.detail = detail

	_, err := f.svc.Reject(context.Background(), adminPrincipal, "exam-1", DecideExamRequest{})
	appErr := appErrors.FromError(err)
	assert.Contains(t, appErr.Fields, "comment")
}

func TestRejectNotifiesStudentWithReason(t *testing.T) {
	f := newExamFixture()
	detail := acceptedDetail()
	detail.Status = models.StatusMenungguVerifikasi
	f.store.detail = detail

	exam, err := f.svc.Reject(context.Background(), adminPrincipal, "exam-1", DecideExamRequest{Comment: "dokumen tidak lengkap"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusDitolak, exam.Status)
	require.NotNil(t, f.store.newComment)
	require.Len(t, f.deliverer.delivered, 1)
	require.Len(t, f.deliverer.delivered[0], 1)
	assert.Contains(t, f.deliverer.delivered[0][0].Message, "dokumen tidak lengkap")
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionRejectExam, f.audit.logs[0].Action)
}
