package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sidang-api/internal/models"
)

// ErrNotSchedulable is returned by CommitAssignment when the exam's current
// status does not permit scheduling.
var ErrNotSchedulable = errors.New("exam status does not permit scheduling")

const examColumns = `id, student_id, supervisor_id, title, document_url, status, exam_date, start_time, end_time, room_id, calendar_event_id, admin_comment, created_at, updated_at`

// ExamRepository provides persistence for thesis exams and their examiner
// assignments.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository creates a new exam repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindByID loads an exam by id.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	query := fmt.Sprintf(`SELECT %s FROM exams WHERE id = $1`, examColumns)
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// FindDetailByID loads an exam together with its examiner pair.
func (r *ExamRepository) FindDetailByID(ctx context.Context, id string) (*models.ExamDetail, error) {
	exam, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var examinerIDs []string
	const query = `SELECT lecturer_id FROM exam_examiners WHERE exam_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &examinerIDs, query, id); err != nil {
		return nil, fmt.Errorf("load exam examiners: %w", err)
	}

	return &models.ExamDetail{Exam: *exam, ExaminerIDs: examinerIDs}, nil
}

// List returns exams with optional filtering and pagination.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	base := "FROM exams WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.LecturerID != "" {
		conditions = append(conditions, fmt.Sprintf("(supervisor_id = $%d OR id IN (SELECT exam_id FROM exam_examiners WHERE lecturer_id = $%d))", len(args)+1, len(args)+1))
		args = append(args, filter.LecturerID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("exam_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("exam_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"exam_date":  true,
		"status":     true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", examColumns, base, sortBy, order, size, offset)
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}

	return exams, total, nil
}

// Create stores a newly submitted exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	exam.UpdatedAt = now
	if exam.Status == "" {
		exam.Status = models.StatusMenungguVerifikasi
	}

	const query = `INSERT INTO exams (id, student_id, supervisor_id, title, document_url, status, admin_comment, created_at, updated_at) VALUES (:id, :student_id, :supervisor_id, :title, :document_url, :status, :admin_comment, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// UpdateStatus flips the exam status and optionally records an admin comment.
// Used by the accept/reject edges; scheduling goes through CommitAssignment.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id string, status models.ExamStatus, comment *string) error {
	const query = `UPDATE exams SET status = $2, admin_comment = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, comment, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update exam status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListOverlapping returns one row per (scheduled exam, examiner) whose window
// overlaps [start, end) on the given date, excluding the exam being
// rescheduled. Half-open overlap: existing.start < end AND start < existing.end.
func (r *ExamRepository) ListOverlapping(ctx context.Context, date time.Time, start, end time.Time, excludeExamID string) ([]models.ExamBooking, error) {
	return listOverlapping(ctx, r.db, date, start, end, excludeExamID)
}

func listOverlapping(ctx context.Context, q sqlx.QueryerContext, date time.Time, start, end time.Time, excludeExamID string) ([]models.ExamBooking, error) {
	const query = `SELECT e.id AS exam_id, e.supervisor_id, e.room_id, x.lecturer_id FROM exams e LEFT JOIN exam_examiners x ON x.exam_id = e.id WHERE e.status = 'DIJADWALKAN' AND e.id <> $1 AND e.exam_date = $2 AND e.start_time < $4 AND $3 < e.end_time`
	var bookings []models.ExamBooking
	if err := sqlx.SelectContext(ctx, q, &bookings, query, excludeExamID, date, start, end); err != nil {
		return nil, fmt.Errorf("list overlapping bookings: %w", err)
	}
	return bookings, nil
}

// CommitAssignment performs the atomic scheduling transition: it locks the
// exam row, verifies the status precondition, re-checks lecturer and room
// availability inside the same transaction, then updates the schedule and
// replaces the examiner pair. Either everything commits or nothing does.
func (r *ExamRepository) CommitAssignment(ctx context.Context, supervisorID string, params models.AssignmentParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// end_time participates in the precondition: a DIJADWALKAN row whose
	// window has passed is effectively SELESAI even before the sweep runs.
	var locked models.Exam
	if err = tx.GetContext(ctx, &locked, `SELECT status, end_time FROM exams WHERE id = $1 FOR UPDATE`, params.ExamID); err != nil {
		return err
	}
	if !locked.EffectiveStatus(time.Now().UTC()).CanBeScheduled() {
		return ErrNotSchedulable
	}

	bookings, err := listOverlapping(ctx, tx, params.ExamDate, params.StartTime, params.EndTime, params.ExamID)
	if err != nil {
		return err
	}
	lecturers := make(map[string]struct{}, 3)
	for _, id := range params.LecturerIDs(supervisorID) {
		lecturers[id] = struct{}{}
	}
	for _, booking := range bookings {
		if booking.RoomID == params.RoomID {
			return &models.BookingConflictError{Kind: "ROOM", ResourceID: booking.RoomID, ExamID: booking.ExamID}
		}
		if _, ok := lecturers[booking.SupervisorID]; ok {
			return &models.BookingConflictError{Kind: "LECTURER", ResourceID: booking.SupervisorID, ExamID: booking.ExamID}
		}
		if booking.LecturerID != nil {
			if _, ok := lecturers[*booking.LecturerID]; ok {
				return &models.BookingConflictError{Kind: "LECTURER", ResourceID: *booking.LecturerID, ExamID: booking.ExamID}
			}
		}
	}

	now := time.Now().UTC()
	const updateQuery = `UPDATE exams SET status = $2, exam_date = $3, start_time = $4, end_time = $5, room_id = $6, updated_at = $7 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, params.ExamID, models.StatusDijadwalkan, params.ExamDate, params.StartTime, params.EndTime, params.RoomID, now); err != nil {
		return fmt.Errorf("update exam schedule: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM exam_examiners WHERE exam_id = $1`, params.ExamID); err != nil {
		return fmt.Errorf("clear examiner pair: %w", err)
	}

	const insertQuery = `INSERT INTO exam_examiners (id, exam_id, lecturer_id, created_at) VALUES ($1, $2, $3, $4), ($5, $6, $7, $8)`
	if _, err = tx.ExecContext(ctx, insertQuery,
		uuid.NewString(), params.ExamID, params.Examiner1ID, now,
		uuid.NewString(), params.ExamID, params.Examiner2ID, now,
	); err != nil {
		return fmt.Errorf("insert examiner pair: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment: %w", err)
	}
	return nil
}

// SetCalendarEventID persists the external calendar event id for an exam.
// Runs outside the scheduling transaction; the calendar link is best-effort.
func (r *ExamRepository) SetCalendarEventID(ctx context.Context, examID string, eventID *string) error {
	const query = `UPDATE exams SET calendar_event_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, examID, eventID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set calendar event id: %w", err)
	}
	return nil
}

// MarkCompleted promotes scheduled exams whose end time has passed to SELESAI
// and returns how many rows changed.
func (r *ExamRepository) MarkCompleted(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE exams SET status = $1, updated_at = $2 WHERE status = $3 AND end_time < $2`
	res, err := r.db.ExecContext(ctx, query, models.StatusSelesai, now, models.StatusDijadwalkan)
	if err != nil {
		return 0, fmt.Errorf("mark exams completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark exams completed: %w", err)
	}
	return affected, nil
}

// ScheduledExamRow is a denormalised row for the schedule sheet export.
type ScheduledExamRow struct {
	ExamID      string    `db:"exam_id"`
	Title       string    `db:"title"`
	ExamDate    time.Time `db:"exam_date"`
	StartTime   time.Time `db:"start_time"`
	EndTime     time.Time `db:"end_time"`
	RoomName    string    `db:"room_name"`
	StudentName string    `db:"student_name"`
	Supervisor  string    `db:"supervisor_name"`
	Examiners   string    `db:"examiner_names"`
}

// ListScheduledBetween returns scheduled exams within a date range, joined
// with participant and room names, ordered chronologically.
func (r *ExamRepository) ListScheduledBetween(ctx context.Context, from, to time.Time) ([]ScheduledExamRow, error) {
	const query = `SELECT e.id AS exam_id, e.title, e.exam_date, e.start_time, e.end_time, r.name AS room_name, s.full_name AS student_name, p.full_name AS supervisor_name, COALESCE(string_agg(u.full_name, ', ' ORDER BY x.created_at), '') AS examiner_names FROM exams e JOIN rooms r ON r.id = e.room_id JOIN users s ON s.id = e.student_id JOIN users p ON p.id = e.supervisor_id LEFT JOIN exam_examiners x ON x.exam_id = e.id LEFT JOIN users u ON u.id = x.lecturer_id WHERE e.status IN ('DIJADWALKAN', 'SELESAI') AND e.exam_date >= $1 AND e.exam_date <= $2 GROUP BY e.id, e.title, e.exam_date, e.start_time, e.end_time, r.name, s.full_name, p.full_name ORDER BY e.exam_date ASC, e.start_time ASC`
	var rows []ScheduledExamRow
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("list scheduled exams: %w", err)
	}
	return rows, nil
}
