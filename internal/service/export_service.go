package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/studira/campus-api/internal/models"
	appErrors "github.com/studira/campus-api/pkg/errors"
	"github.com/studira/campus-api/pkg/export"
)

// ExportFormat selects the rendered timetable format.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

type timetableSource interface {
	ListByRoom(ctx context.Context, roomID string) ([]models.AssignmentDetail, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.AssignmentDetail, error)
}

// ExportResult is a rendered timetable document.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders weekly timetables for rooms and teachers.
type ExportService struct {
	assignments timetableSource
	rooms       roomLookup
	teachers    teacherLookup
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService instantiates ExportService.
func NewExportService(assignments timetableSource, rooms roomLookup, teachers teacherLookup, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		assignments: assignments,
		rooms:       rooms,
		teachers:    teachers,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// RoomTimetable renders the active weekly schedule of a room.
func (s *ExportService) RoomTimetable(ctx context.Context, roomID string, format ExportFormat) (*ExportResult, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	assignments, err := s.assignments.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room timetable")
	}

	dataset := timetableDataset(assignments, "Teacher", func(a models.AssignmentDetail) string { return a.TeacherName })
	title := fmt.Sprintf("Timetable %s (%s)", room.Name, room.Code)
	return s.render(dataset, title, "room-"+room.Code, format)
}

// TeacherTimetable renders the active weekly schedule of a teacher.
func (s *ExportService) TeacherTimetable(ctx context.Context, teacherID string, format ExportFormat) (*ExportResult, error) {
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	assignments, err := s.assignments.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher timetable")
	}

	dataset := timetableDataset(assignments, "Room", func(a models.AssignmentDetail) string {
		return fmt.Sprintf("%s (%s)", a.RoomName, a.RoomCode)
	})
	title := "Timetable " + teacher.FullName
	return s.render(dataset, title, "teacher-"+teacher.ID, format)
}

func timetableDataset(assignments []models.AssignmentDetail, partyHeader string, party func(models.AssignmentDetail) string) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"Course", partyHeader, "Weekdays", "Start", "End"},
	}
	for _, assignment := range assignments {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Course":    fmt.Sprintf("%s (%s)", assignment.CourseName, assignment.CourseCode),
			partyHeader: party(assignment),
			"Weekdays":  strings.Join(assignment.Weekdays.Labels(), " "),
			"Start":     assignment.StartTime.String(),
			"End":       assignment.EndTime.String(),
		})
	}
	return dataset
}

func (s *ExportService) render(dataset export.Dataset, title, slug string, format ExportFormat) (*ExportResult, error) {
	switch format {
	case FormatPDF:
		content, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf timetable")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: slug + ".pdf"}, nil
	case FormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv timetable")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: slug + ".csv"}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}
