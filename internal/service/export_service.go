package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sidang-api/internal/repository"
	"github.com/noah-isme/sidang-api/pkg/export"
	appErrors "github.com/noah-isme/sidang-api/pkg/errors"
)

type scheduleReader interface {
	ListScheduledBetween(ctx context.Context, from, to time.Time) ([]repository.ScheduledExamRow, error)
}

// ExportService renders the defense schedule as a downloadable sheet.
type ExportService struct {
	exams  scheduleReader
	sheet  *export.ScheduleSheet
	logger *zap.Logger
}

// NewExportService instantiates ExportService.
func NewExportService(exams scheduleReader, sheet *export.ScheduleSheet, logger *zap.Logger) *ExportService {
	if sheet == nil {
		sheet = export.NewScheduleSheet()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{exams: exams, sheet: sheet, logger: logger}
}

// ScheduleSheet renders the schedule between two dates (inclusive) in the
// requested format ("pdf" or "csv"). Returns the document bytes and its
// content type.
func (s *ExportService) ScheduleSheet(ctx context.Context, fromStr, toStr, format string) ([]byte, string, error) {
	fields := map[string][]string{}
	from, err := time.ParseInLocation(dateLayout, fromStr, TimeZoneWIB)
	if err != nil {
		fields["from"] = append(fields["from"], "date must be in YYYY-MM-DD format")
	}
	to, err := time.ParseInLocation(dateLayout, toStr, TimeZoneWIB)
	if err != nil {
		fields["to"] = append(fields["to"], "date must be in YYYY-MM-DD format")
	}
	if len(fields) == 0 && to.Before(from) {
		fields["to"] = append(fields["to"], "end date must not precede start date")
	}
	if format != "pdf" && format != "csv" {
		fields["format"] = append(fields["format"], "format must be pdf or csv")
	}
	if len(fields) > 0 {
		return nil, "", appErrors.NewFieldErrors(fields)
	}

	scheduled, err := s.exams.ListScheduledBetween(ctx, from, to)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	rows := make([]export.ScheduleRow, 0, len(scheduled))
	for _, exam := range scheduled {
		rows = append(rows, export.ScheduleRow{
			Date: exam.ExamDate.In(TimeZoneWIB).Format("02-01-2006"),
			Time: fmt.Sprintf("%s-%s",
				exam.StartTime.In(TimeZoneWIB).Format("15:04"),
				exam.EndTime.In(TimeZoneWIB).Format("15:04")),
			Room:       exam.RoomName,
			Student:    exam.StudentName,
			Title:      exam.Title,
			Supervisor: exam.Supervisor,
			Examiners:  exam.Examiners,
		})
	}

	title := fmt.Sprintf("Jadwal Ujian Skripsi %s s.d. %s",
		from.Format("02-01-2006"), to.Format("02-01-2006"))

	switch format {
	case "pdf":
		doc, err := s.sheet.RenderPDF(rows, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule")
		}
		return doc, "application/pdf", nil
	default:
		doc, err := s.sheet.RenderCSV(rows)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule")
		}
		return doc, "text/csv", nil
	}
}
