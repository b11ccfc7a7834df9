package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sidang-api/internal/repository"
	appErrors "github.com/noah-isme/sidang-api/pkg/errors"
)

type stubScheduleReader struct {
	rows    []repository.ScheduledExamRow
	gotFrom time.Time
	gotTo   time.Time
}

func (s *stubScheduleReader) ListScheduledBetween(_ context.Context, from, to time.Time) ([]repository.ScheduledExamRow, error) {
	s.gotFrom = from
	s.gotTo = to
	return s.rows, nil
}

func TestScheduleSheetRendersCSV(t *testing.T) {
	reader := &stubScheduleReader{rows: []repository.ScheduledExamRow{{
		ExamID:      "exam-1",
		Title:       "Analisis Sistem",
		ExamDate:    time.Date(2026, 3, 12, 0, 0, 0, 0, TimeZoneWIB),
		StartTime:   time.Date(2026, 3, 12, 9, 0, 0, 0, TimeZoneWIB),
		EndTime:     time.Date(2026, 3, 12, 11, 0, 0, 0, TimeZoneWIB),
		RoomName:    "R. Sidang 1",
		StudentName: "Budi Santoso",
		Supervisor:  "Dr. Siti",
		Examiners:   "Dr. Andi, Dr. Rina",
	}}}
	svc := NewExportService(reader, nil, nil)

	doc, contentType, err := svc.ScheduleSheet(context.Background(), "2026-03-01", "2026-03-31", "csv")
	require.NoError(t, err)

	assert.Equal(t, "text/csv", contentType)
	body := string(doc)
	assert.Contains(t, body, "Tanggal")
	assert.Contains(t, body, "12-03-2026")
	assert.Contains(t, body, "09:00-11:00")
	assert.Contains(t, body, "Budi Santoso")
	assert.Contains(t, body, "\"Dr. Andi, Dr. Rina\"")

	assert.Equal(t, 1, reader.gotFrom.Day())
	assert.Equal(t, 31, reader.gotTo.Day())
}

func TestScheduleSheetRendersPDF(t *testing.T) {
	reader := &stubScheduleReader{}
	svc := NewExportService(reader, nil, nil)

	doc, contentType, err := svc.ScheduleSheet(context.Background(), "2026-03-01", "2026-03-31", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.NotEmpty(t, doc)
}

func TestScheduleSheetRejectsInvertedRange(t *testing.T) {
	svc := NewExportService(&stubScheduleReader{}, nil, nil)

	_, _, err := svc.ScheduleSheet(context.Background(), "2026-03-31", "2026-03-01", "csv")
	appErr := appErrors.FromError(err)
	assert.Contains(t, appErr.Fields, "to")
}

func TestScheduleSheetRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&stubScheduleReader{}, nil, nil)

	_, _, err := svc.ScheduleSheet(context.Background(), "2026-03-01", "2026-03-31", "xlsx")
	appErr := appErrors.FromError(err)
	assert.Contains(t, appErr.Fields, "format")
}
