package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studira/campus-api/internal/models"
	appErrors "github.com/studira/campus-api/pkg/errors"
)

type timetableSourceStub struct {
	byRoom    []models.AssignmentDetail
	byTeacher []models.AssignmentDetail
	err       error
}

func (s *timetableSourceStub) ListByRoom(ctx context.Context, roomID string) ([]models.AssignmentDetail, error) {
	return s.byRoom, s.err
}

func (s *timetableSourceStub) ListByTeacher(ctx context.Context, teacherID string) ([]models.AssignmentDetail, error) {
	return s.byTeacher, s.err
}

func timetableEntry() models.AssignmentDetail {
	detail := seededAssignment("a1")
	detail.RoomCode = "R101"
	detail.CourseCode = "PHY-1"
	return detail
}

func TestExportServiceRoomTimetableCSV(t *testing.T) {
	source := &timetableSourceStub{byRoom: []models.AssignmentDetail{timetableEntry()}}
	rooms := roomLookupStub{rooms: map[string]*models.Room{"room-1": activeRoom("room-1")}}
	teachers := teacherLookupStub{}
	svc := NewExportService(source, rooms, teachers, zap.NewNop())

	result, err := svc.RoomTimetable(context.Background(), "room-1", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "room-R-room-1.csv", result.Filename)

	body := string(result.Content)
	assert.True(t, strings.HasPrefix(body, "Course,Teacher,Weekdays,Start,End"))
	assert.Contains(t, body, "Course course-1")
	assert.Contains(t, body, "MONDAY WEDNESDAY")
	assert.Contains(t, body, "08:00:00")
}

func TestExportServiceTeacherTimetablePDF(t *testing.T) {
	source := &timetableSourceStub{byTeacher: []models.AssignmentDetail{timetableEntry()}}
	rooms := roomLookupStub{}
	teachers := teacherLookupStub{teachers: map[string]*models.Teacher{"teacher-1": rosterTeacher("teacher-1")}}
	svc := NewExportService(source, rooms, teachers, zap.NewNop())

	result, err := svc.TeacherTimetable(context.Background(), "teacher-1", FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, "teacher-teacher-1.pdf", result.Filename)
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestExportServiceUnknownRoom(t *testing.T) {
	svc := NewExportService(&timetableSourceStub{}, roomLookupStub{}, teacherLookupStub{}, zap.NewNop())

	_, err := svc.RoomTimetable(context.Background(), "missing", FormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceUnsupportedFormat(t *testing.T) {
	rooms := roomLookupStub{rooms: map[string]*models.Room{"room-1": activeRoom("room-1")}}
	svc := NewExportService(&timetableSourceStub{}, rooms, teacherLookupStub{}, zap.NewNop())

	_, err := svc.RoomTimetable(context.Background(), "room-1", ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
