package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studira/campus-api/internal/models"
	"github.com/studira/campus-api/internal/repository"
	appErrors "github.com/studira/campus-api/pkg/errors"
)

// assignmentRepoStub keeps assignments in memory and answers conflict
// probes with the same overlap semantics as the SQL implementation.
type assignmentRepoStub struct {
	assignments []models.AssignmentDetail
	nextID      int

	createErr error
	updateErr error
	cancelled []string
	stats     *models.AssignmentStats
	statCalls int
}

func (s *assignmentRepoStub) FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	for i := range s.assignments {
		if s.assignments[i].ID == id {
			detail := s.assignments[i]
			return &detail, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *assignmentRepoStub) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	return s.assignments, len(s.assignments), nil
}

func (s *assignmentRepoStub) ListByRoom(ctx context.Context, roomID string) ([]models.AssignmentDetail, error) {
	var result []models.AssignmentDetail
	for _, a := range s.assignments {
		if a.RoomID == roomID && a.Status == models.AssignmentActive {
			result = append(result, a)
		}
	}
	return result, nil
}

func (s *assignmentRepoStub) ListByTeacher(ctx context.Context, teacherID string) ([]models.AssignmentDetail, error) {
	var result []models.AssignmentDetail
	for _, a := range s.assignments {
		if a.TeacherID == teacherID && a.Status == models.AssignmentActive {
			result = append(result, a)
		}
	}
	return result, nil
}

func (s *assignmentRepoStub) FindConflicts(ctx context.Context, probe models.ConflictProbe) ([]models.AssignmentDetail, error) {
	var hits []models.AssignmentDetail
	for _, a := range s.assignments {
		if a.Status != models.AssignmentActive || a.ID == probe.ExcludeID {
			continue
		}
		var key string
		switch probe.Dimension {
		case models.DimensionRoom:
			key = a.RoomID
		case models.DimensionTeacher:
			key = a.TeacherID
		case models.DimensionCourse:
			key = a.CourseID
		}
		if key != probe.Key {
			continue
		}
		if !models.Overlaps(a.StartTime, a.EndTime, probe.StartTime, probe.EndTime) {
			continue
		}
		if !a.Weekdays.Intersects(probe.Weekdays) {
			continue
		}
		hits = append(hits, a)
	}
	return hits, nil
}

func (s *assignmentRepoStub) CreateGuarded(ctx context.Context, assignment *models.Assignment, check func(ctx context.Context, finder repository.ConflictFinder) error) error {
	if s.createErr != nil {
		return s.createErr
	}
	if err := check(ctx, s); err != nil {
		return err
	}
	s.nextID++
	assignment.ID = fmt.Sprintf("assignment-%d", s.nextID)
	assignment.CreatedAt = time.Now().UTC()
	assignment.UpdatedAt = assignment.CreatedAt
	s.assignments = append(s.assignments, models.AssignmentDetail{Assignment: *assignment})
	return nil
}

func (s *assignmentRepoStub) UpdateGuarded(ctx context.Context, assignment *models.Assignment, check func(ctx context.Context, finder repository.ConflictFinder) error) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if err := check(ctx, s); err != nil {
		return err
	}
	for i := range s.assignments {
		if s.assignments[i].ID == assignment.ID {
			s.assignments[i].Assignment = *assignment
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *assignmentRepoStub) Cancel(ctx context.Context, id string) error {
	s.cancelled = append(s.cancelled, id)
	for i := range s.assignments {
		if s.assignments[i].ID == id {
			s.assignments[i].Status = models.AssignmentCancelled
		}
	}
	return nil
}

func (s *assignmentRepoStub) Stats(ctx context.Context) (*models.AssignmentStats, error) {
	s.statCalls++
	if s.stats != nil {
		return s.stats, nil
	}
	return &models.AssignmentStats{}, nil
}

type roomLookupStub struct {
	rooms map[string]*models.Room
}

func (s roomLookupStub) FindByID(ctx context.Context, id string) (*models.Room, error) {
	if room, ok := s.rooms[id]; ok {
		return room, nil
	}
	return nil, sql.ErrNoRows
}

type courseLookupStub struct {
	courses map[string]*models.Course
}

func (s courseLookupStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := s.courses[id]; ok {
		return course, nil
	}
	return nil, sql.ErrNoRows
}

type teacherLookupStub struct {
	teachers map[string]*models.Teacher
}

func (s teacherLookupStub) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := s.teachers[id]; ok {
		return teacher, nil
	}
	return nil, sql.ErrNoRows
}

type auditSinkStub struct {
	logs []*models.AuditLog
	err  error
}

func (s *auditSinkStub) Create(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return s.err
}

type statsCacheStub struct {
	entries     map[string]*models.AssignmentStats
	setCalls    int
	invalidated int
}

func (s *statsCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	if cached, ok := s.entries[key]; ok {
		*dest.(*models.AssignmentStats) = *cached
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (s *statsCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.setCalls++
	return nil
}

func (s *statsCacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.invalidated++
	s.entries = nil
	return nil
}

func activeRoom(id string) *models.Room {
	return &models.Room{ID: id, Code: "R-" + id, Name: "Room " + id, Status: models.RoomActive}
}

func plannedCourse(id string) *models.Course {
	return &models.Course{ID: id, Code: "C-" + id, Name: "Course " + id, Status: models.CoursePlanned}
}

func rosterTeacher(id string) *models.Teacher {
	return &models.Teacher{ID: id, FullName: "Teacher " + id, Active: true}
}

func newAssignmentFixture(repo *assignmentRepoStub) (*AssignmentService, *auditSinkStub, *statsCacheStub) {
	rooms := roomLookupStub{rooms: map[string]*models.Room{
		"room-1": activeRoom("room-1"),
		"room-2": activeRoom("room-2"),
	}}
	courses := courseLookupStub{courses: map[string]*models.Course{
		"course-1": plannedCourse("course-1"),
		"course-2": plannedCourse("course-2"),
	}}
	teachers := teacherLookupStub{teachers: map[string]*models.Teacher{
		"teacher-1": rosterTeacher("teacher-1"),
		"teacher-2": rosterTeacher("teacher-2"),
	}}
	audit := &auditSinkStub{}
	cache := &statsCacheStub{}
	svc := NewAssignmentService(repo, rooms, courses, teachers, audit, cache, nil, time.Minute, nil, zap.NewNop())
	return svc, audit, cache
}

func seededAssignment(id string) models.AssignmentDetail {
	start, _ := models.ParseTimeOfDay("08:00:00")
	end, _ := models.ParseTimeOfDay("09:30:00")
	return models.AssignmentDetail{
		Assignment: models.Assignment{
			ID:        id,
			RoomID:    "room-1",
			CourseID:  "course-1",
			TeacherID: "teacher-1",
			StartTime: start,
			EndTime:   end,
			Weekdays:  models.NewWeekdaySet(models.Monday, models.Wednesday),
			Status:    models.AssignmentActive,
		},
		RoomName:    "Room room-1",
		CourseName:  "Course course-1",
		TeacherName: "Teacher teacher-1",
	}
}

func TestAssignmentServiceCreate(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, audit, cache := newAssignmentFixture(repo)

	created, err := svc.Create(context.Background(), CreateAssignmentRequest{
		RoomID:    "room-1",
		CourseID:  "course-1",
		TeacherID: "teacher-1",
		StartTime: "08:00:00",
		EndTime:   "09:30:00",
		Weekdays:  []string{"MONDAY", "WEDNESDAY"},
	}, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	require.NoError(t, err)
	assert.Equal(t, models.AssignmentActive, created.Status)
	assert.NotEmpty(t, created.ID)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionAssignmentCreate, audit.logs[0].Action)
	assert.Equal(t, 1, cache.invalidated)
}

func TestAssignmentServiceCreateRoomConflict(t *testing.T) {
	repo := &assignmentRepoStub{assignments: []models.AssignmentDetail{seededAssignment("existing-1")}}
	svc, audit, _ := newAssignmentFixture(repo)

	// Same room, overlapping window, shared Monday, different course and
	// teacher: the room dimension must reject it.
	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		RoomID:    "room-1",
		CourseID:  "course-2",
		TeacherID: "teacher-2",
		StartTime: "09:00:00",
		EndTime:   "10:00:00",
		Weekdays:  []string{"MONDAY"},
	}, nil)

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Course course-1")
	assert.Contains(t, appErr.Message, "08:00:00")
	assert.Len(t, repo.assignments, 1)
	assert.Empty(t, audit.logs)
}

func TestAssignmentServiceCreateCourseConflictAcrossRooms(t *testing.T) {
	repo := &assignmentRepoStub{assignments: []models.AssignmentDetail{seededAssignment("existing-1")}}
	svc, _, _ := newAssignmentFixture(repo)

	// Different room and teacher, but the same course cannot meet in two
	// places at once.
	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		RoomID:    "room-2",
		CourseID:  "course-1",
		TeacherID: "teacher-2",
		StartTime: "08:30:00",
		EndTime:   "09:00:00",
		Weekdays:  []string{"WEDNESDAY"},
	}, nil)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceCreateTeacherConflict(t *testing.T) {
	repo := &assignmentRepoStub{assignments: []models.AssignmentDetail{seededAssignment("existing-1")}}
	svc, audit, _ := newAssignmentFixture(repo)

	// Different room and course, but the same teacher cannot be in two
	// rooms at once.
	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		RoomID:    "room-2",
		CourseID:  "course-2",
		TeacherID: "teacher-1",
		StartTime: "09:00:00",
		EndTime:   "10:00:00",
		Weekdays:  []string{"MONDAY"},
	}, nil)

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	var conflictErr *models.AssignmentConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, models.DimensionTeacher, conflictErr.Dimension)
	assert.Contains(t, appErr.Message, "teacher is double-booked")
	assert.Contains(t, appErr.Message, "Room room-1")
	assert.Len(t, repo.assignments, 1)
	assert.Empty(t, audit.logs)
}

func TestAssignmentServiceCreateDisjointWeekdays(t *testing.T) {
	repo := &assignmentRepoStub{assignments: []models.AssignmentDetail{seededAssignment("existing-1")}}
	svc, _, _ := newAssignmentFixture(repo)

	// Identical window, same teacher, but Tuesday and Thursday never meet
	// Monday and Wednesday.
	created, err := svc.Create(context.Background(), CreateAssignmentRequest{
		RoomID:    "room-1",
		CourseID:  "course-2",
		TeacherID: "teacher-1",
		StartTime: "08:00:00",
		EndTime:   "09:30:00",
		Weekdays:  []string{"TUESDAY", "THURSDAY"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, models.AssignmentActive, created.Status)
}

func TestAssignmentServiceCreateBackToBack(t *testing.T) {
	repo := &assignmentRepoStub{assignments: []models.AssignmentDetail{seededAssignment("existing-1")}}
	svc, _, _ := newAssignmentFixture(repo)

	// The window starting exactly at the previous end must not conflict.
	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		RoomID:    "room-1",
		CourseID:  "course-2",
		TeacherID: "teacher-2",
		StartTime: "09:30:00",
		EndTime:   "11:00:00",
		Weekdays:  []string{"MONDAY"},
	}, nil)

	require.NoError(t, err)
}

func TestAssignmentServiceCreateRoomUnavailable(t *testing.T) {
	repo := &assignmentRepoStub{}
	rooms := roomLookupStub{rooms: map[string]*models.Room{
		"room-m": {ID: "room-m", Code: "R-M", Name: "Lab", Status: models.RoomMaintenance},
	}}
	courses := courseLookupStub{courses: map[string]*models.Course{"course-1": plannedCourse("course-1")}}
	teachers := teacherLookupStub{teachers: map[string]*models.Teacher{"teacher-1": rosterTeacher("teacher-1")}}
	svc := NewAssignmentService(repo, rooms, courses, teachers, nil, nil, nil, time.Minute, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		RoomID:    "room-m",
		CourseID:  "course-1",
		TeacherID: "teacher-1",
		StartTime: "08:00:00",
		EndTime:   "09:00:00",
		Weekdays:  []string{"MONDAY"},
	}, nil)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRoomUnavailable.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceCreateUnknownCourse(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _, _ := newAssignmentFixture(repo)

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		RoomID:    "room-1",
		CourseID:  "course-missing",
		TeacherID: "teacher-1",
		StartTime: "08:00:00",
		EndTime:   "09:00:00",
		Weekdays:  []string{"MONDAY"},
	}, nil)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceCreateInvalidWindow(t *testing.T) {
	repo := &assignmentRepoStub{}
	svc, _, _ := newAssignmentFixture(repo)

	for _, tc := range []struct{ start, end string }{
		{"10:00:00", "09:00:00"},
		{"10:00:00", "10:00:00"},
	} {
		_, err := svc.Create(context.Background(), CreateAssignmentRequest{
			RoomID:    "room-1",
			CourseID:  "course-1",
			TeacherID: "teacher-1",
			StartTime: tc.start,
			EndTime:   tc.end,
			Weekdays:  []string{"MONDAY"},
		}, nil)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestAssignmentServiceUpdateNotesOnly(t *testing.T) {
	repo := &assignmentRepoStub{assignments: []models.AssignmentDetail{seededAssignment("existing-1")}}
	svc, audit, _ := newAssignmentFixture(repo)

	notes := "projector reserved"
	updated, err := svc.Update(context.Background(), "existing-1", UpdateAssignmentRequest{Notes: &notes}, nil)

	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)
	// Untouched fields keep their persisted values.
	assert.Equal(t, "room-1", updated.RoomID)
	assert.Equal(t, "08:00:00", updated.StartTime.String())
	assert.Equal(t, []string{"MONDAY", "WEDNESDAY"}, updated.Weekdays.Labels())
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionAssignmentUpdate, audit.logs[0].Action)
}

func TestAssignmentServiceUpdateExcludesSelf(t *testing.T) {
	repo := &assignmentRepoStub{assignments: []models.AssignmentDetail{seededAssignment("existing-1")}}
	svc, _, _ := newAssignmentFixture(repo)

	// Extending the assignment's own window must not collide with itself.
	end := "10:00:00"
	updated, err := svc.Update(context.Background(), "existing-1", UpdateAssignmentRequest{EndTime: &end}, nil)
	require.NoError(t, err)
	assert.Equal(t, "10:00:00", updated.EndTime.String())
}

func TestAssignmentServiceUpdateConflict(t *testing.T) {
	other := seededAssignment("other-1")
	other.RoomID = "room-2"
	other.CourseID = "course-2"
	other.TeacherID = "teacher-2"

	repo := &assignmentRepoStub{assignments: []models.AssignmentDetail{seededAssignment("existing-1"), other}}
	svc, _, _ := newAssignmentFixture(repo)

	// Moving into the other assignment's room collides on MONDAY 08:00.
	room := "room-2"
	_, err := svc.Update(context.Background(), "existing-1", UpdateAssignmentRequest{RoomID: &room}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceCancel(t *testing.T) {
	repo := &assignmentRepoStub{assignments: []models.AssignmentDetail{seededAssignment("existing-1")}}
	svc, audit, cache := newAssignmentFixture(repo)

	require.NoError(t, svc.Cancel(context.Background(), "existing-1", &models.JWTClaims{UserID: "admin-1"}))
	assert.Equal(t, []string{"existing-1"}, repo.cancelled)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionAssignmentCancel, audit.logs[0].Action)
	assert.Equal(t, 1, cache.invalidated)

	// A second cancel is a no-op success, not an error and not a second write.
	require.NoError(t, svc.Cancel(context.Background(), "existing-1", nil))
	assert.Len(t, repo.cancelled, 1)
}

func TestAssignmentServiceCancelFreesSlot(t *testing.T) {
	repo := &assignmentRepoStub{assignments: []models.AssignmentDetail{seededAssignment("existing-1")}}
	svc, _, _ := newAssignmentFixture(repo)

	require.NoError(t, svc.Cancel(context.Background(), "existing-1", nil))

	// The identical slot can now be booked.
	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		RoomID:    "room-1",
		CourseID:  "course-1",
		TeacherID: "teacher-1",
		StartTime: "08:00:00",
		EndTime:   "09:30:00",
		Weekdays:  []string{"MONDAY", "WEDNESDAY"},
	}, nil)
	require.NoError(t, err)
}

func TestAssignmentServiceCheckAvailability(t *testing.T) {
	repo := &assignmentRepoStub{assignments: []models.AssignmentDetail{seededAssignment("existing-1")}}
	svc, _, _ := newAssignmentFixture(repo)

	busy, err := svc.CheckAvailability(context.Background(), CheckAvailabilityRequest{
		RoomID:    "room-1",
		StartTime: "09:00:00",
		EndTime:   "10:00:00",
		Weekdays:  []string{"MONDAY"},
	})
	require.NoError(t, err)
	assert.False(t, busy.Available)
	require.Len(t, busy.Conflicts, 1)
	assert.Equal(t, models.DimensionRoom, busy.Conflicts[0].Dimension)

	free, err := svc.CheckAvailability(context.Background(), CheckAvailabilityRequest{
		RoomID:    "room-1",
		StartTime: "09:30:00",
		EndTime:   "10:30:00",
		Weekdays:  []string{"MONDAY"},
	})
	require.NoError(t, err)
	assert.True(t, free.Available)
	assert.Empty(t, free.Conflicts)
}

func TestAssignmentServiceStatisticsCaching(t *testing.T) {
	repo := &assignmentRepoStub{stats: &models.AssignmentStats{Total: 7, Active: 5}}
	svc, _, cache := newAssignmentFixture(repo)

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 1, repo.statCalls)
	assert.Equal(t, 1, cache.setCalls)

	cache.entries = map[string]*models.AssignmentStats{"assignments:stats": {Total: 7, Active: 5}}
	cached, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, cached.Total)
	assert.Equal(t, 1, repo.statCalls)
}

func TestAssignmentServiceObservesQueryTiming(t *testing.T) {
	repo := &assignmentRepoStub{stats: &models.AssignmentStats{Total: 3}}
	rooms := roomLookupStub{rooms: map[string]*models.Room{"room-1": activeRoom("room-1")}}
	courses := courseLookupStub{courses: map[string]*models.Course{"course-1": plannedCourse("course-1")}}
	teachers := teacherLookupStub{teachers: map[string]*models.Teacher{"teacher-1": rosterTeacher("teacher-1")}}
	metrics := NewMetricsService()
	svc := NewAssignmentService(repo, rooms, courses, teachers, nil, nil, metrics, time.Minute, nil, zap.NewNop())

	_, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	_, _, err = svc.List(context.Background(), models.AssignmentFilter{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `db_query_duration_seconds_count{query="assignment_stats"} 1`)
	assert.Contains(t, body, `db_query_duration_seconds_count{query="assignment_list"} 1`)
}
