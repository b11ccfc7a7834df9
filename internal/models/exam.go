package models

import "time"

// ExamStatus enumerates the lifecycle states of a thesis exam.
type ExamStatus string

const (
	StatusMenungguVerifikasi ExamStatus = "MENUNGGU_VERIFIKASI"
	StatusDiterima           ExamStatus = "DITERIMA"
	StatusDitolak            ExamStatus = "DITOLAK"
	StatusDijadwalkan        ExamStatus = "DIJADWALKAN"
	StatusSelesai            ExamStatus = "SELESAI"
)

// CanBeScheduled reports whether an exam in this status may be (re)scheduled.
// Initial scheduling happens from DITERIMA; a reschedule re-enters DIJADWALKAN.
func (s ExamStatus) CanBeScheduled() bool {
	return s == StatusDiterima || s == StatusDijadwalkan
}

// Exam represents a thesis-exam submission (ujian skripsi).
// Schedule fields are nil until the exam reaches DIJADWALKAN.
type Exam struct {
	ID              string     `db:"id" json:"id"`
	StudentID       string     `db:"student_id" json:"student_id"`
	SupervisorID    string     `db:"supervisor_id" json:"supervisor_id"`
	Title           string     `db:"title" json:"title"`
	DocumentURL     string     `db:"document_url" json:"document_url"`
	Status          ExamStatus `db:"status" json:"status"`
	ExamDate        *time.Time `db:"exam_date" json:"exam_date,omitempty"`
	StartTime       *time.Time `db:"start_time" json:"start_time,omitempty"`
	EndTime         *time.Time `db:"end_time" json:"end_time,omitempty"`
	RoomID          *string    `db:"room_id" json:"room_id,omitempty"`
	CalendarEventID *string    `db:"calendar_event_id" json:"calendar_event_id,omitempty"`
	AdminComment    *string    `db:"admin_comment" json:"admin_comment,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// EffectiveStatus derives SELESAI for scheduled exams whose end time has
// passed. The stored status is promoted by the completion sweep; reads apply
// the same rule so an exam never appears scheduled after it is over.
func (e *Exam) EffectiveStatus(now time.Time) ExamStatus {
	if e.Status == StatusDijadwalkan && e.EndTime != nil && e.EndTime.Before(now) {
		return StatusSelesai
	}
	return e.Status
}

// ExamExaminer links an exam to one of its two examiners.
type ExamExaminer struct {
	ID         string    `db:"id" json:"id"`
	ExamID     string    `db:"exam_id" json:"exam_id"`
	LecturerID string    `db:"lecturer_id" json:"lecturer_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ExamDetail aggregates an exam with its examiner pair.
type ExamDetail struct {
	Exam
	ExaminerIDs []string `json:"examiner_ids"`
}

// ExamFilter describes query params for listing exams.
type ExamFilter struct {
	Status     ExamStatus
	StudentID  string
	LecturerID string
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// ExamBooking is one flattened row of the overlap query: a scheduled exam
// joined with one of its examiners (LecturerID nil when the exam has none).
type ExamBooking struct {
	ExamID       string  `db:"exam_id"`
	SupervisorID string  `db:"supervisor_id"`
	RoomID       string  `db:"room_id"`
	LecturerID   *string `db:"lecturer_id"`
}

// AssignmentParams carries the full payload of a scheduling commit.
type AssignmentParams struct {
	ExamID      string
	ExamDate    time.Time
	StartTime   time.Time
	EndTime     time.Time
	RoomID      string
	Examiner1ID string
	Examiner2ID string
}

// LecturerIDs returns the distinct lecturers whose calendars the commit
// occupies; the supervisor attends every defense.
func (p AssignmentParams) LecturerIDs(supervisorID string) []string {
	return []string{supervisorID, p.Examiner1ID, p.Examiner2ID}
}

// BookingConflictError is returned when the transactional re-check finds a
// lecturer or room already booked for an overlapping window.
type BookingConflictError struct {
	Kind       string `json:"kind"` // LECTURER or ROOM
	ResourceID string `json:"resource_id"`
	ExamID     string `json:"exam_id"`
}

// Error implements the error interface.
func (e *BookingConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "booking conflict on " + e.Kind + " " + e.ResourceID
}
