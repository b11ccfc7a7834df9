package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sidang-api/internal/models"
	appErrors "github.com/noah-isme/sidang-api/pkg/errors"
)

type bookingReader interface {
	ListOverlapping(ctx context.Context, date time.Time, start, end time.Time, excludeExamID string) ([]models.ExamBooking, error)
}

// CheckAvailabilityRequest describes a proposed window and the candidate
// resources to test against it.
type CheckAvailabilityRequest struct {
	Date          string   `json:"date" validate:"required"`
	Start         string   `json:"start" validate:"required"`
	End           string   `json:"end" validate:"required"`
	LecturerIDs   []string `json:"lecturer_ids"`
	RoomIDs       []string `json:"room_ids"`
	ExcludeExamID string   `json:"exclude_exam_id"`
}

// AvailabilityResult lists the candidates free for the whole window.
type AvailabilityResult struct {
	AvailableLecturers []string `json:"available_lecturers"`
	AvailableRooms     []string `json:"available_rooms"`
}

// AvailabilityService answers which lecturers and rooms are free for a
// proposed window. Results are computed fresh on every call; earlier answers
// become stale the moment the window changes, so callers must not cache them.
type AvailabilityService struct {
	bookings  bookingReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService instantiates AvailabilityService.
func NewAvailabilityService(bookings bookingReader, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{bookings: bookings, validator: validate, logger: logger}
}

// Check validates the window and filters the candidate sets.
func (s *AvailabilityService) Check(ctx context.Context, req CheckAvailabilityRequest) (*AvailabilityResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}

	window, fieldErrs := ResolveTimeWindow(req.Date, req.Start, req.End, time.Now())
	if len(fieldErrs) > 0 {
		return nil, appErrors.NewFieldErrors(fieldErrs)
	}

	lecturers, rooms, err := s.FilterWindow(ctx, *window, req.LecturerIDs, req.RoomIDs, req.ExcludeExamID)
	if err != nil {
		return nil, err
	}
	return &AvailabilityResult{AvailableLecturers: lecturers, AvailableRooms: rooms}, nil
}

// FilterWindow returns the subset of candidate lecturers and rooms with no
// overlapping DIJADWALKAN booking. A lecturer is busy when they appear as
// supervisor or examiner on any overlapping exam; a room when it is the
// assigned room of one.
func (s *AvailabilityService) FilterWindow(ctx context.Context, window TimeWindow, lecturerIDs, roomIDs []string, excludeExamID string) ([]string, []string, error) {
	bookings, err := s.bookings.ListOverlapping(ctx, window.Date, window.Start, window.End, excludeExamID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query bookings")
	}

	busyLecturers := make(map[string]struct{})
	busyRooms := make(map[string]struct{})
	for _, booking := range bookings {
		busyLecturers[booking.SupervisorID] = struct{}{}
		if booking.LecturerID != nil {
			busyLecturers[*booking.LecturerID] = struct{}{}
		}
		busyRooms[booking.RoomID] = struct{}{}
	}

	availableLecturers := make([]string, 0, len(lecturerIDs))
	for _, id := range lecturerIDs {
		if _, busy := busyLecturers[id]; !busy {
			availableLecturers = append(availableLecturers, id)
		}
	}
	availableRooms := make([]string, 0, len(roomIDs))
	for _, id := range roomIDs {
		if _, busy := busyRooms[id]; !busy {
			availableRooms = append(availableRooms, id)
		}
	}

	return availableLecturers, availableRooms, nil
}
