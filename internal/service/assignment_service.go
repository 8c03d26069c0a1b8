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

	"github.com/studira/campus-api/internal/models"
	"github.com/studira/campus-api/internal/repository"
	appErrors "github.com/studira/campus-api/pkg/errors"
)

const statsCacheKey = "assignments:stats"

type assignmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error)
	ListByRoom(ctx context.Context, roomID string) ([]models.AssignmentDetail, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.AssignmentDetail, error)
	FindConflicts(ctx context.Context, probe models.ConflictProbe) ([]models.AssignmentDetail, error)
	CreateGuarded(ctx context.Context, assignment *models.Assignment, check func(ctx context.Context, finder repository.ConflictFinder) error) error
	UpdateGuarded(ctx context.Context, assignment *models.Assignment, check func(ctx context.Context, finder repository.ConflictFinder) error) error
	Cancel(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.AssignmentStats, error)
}

type roomLookup interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type courseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type teacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type auditSink interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateAssignmentRequest describes payload for booking a slot.
type CreateAssignmentRequest struct {
	RoomID    string   `json:"room_id" validate:"required"`
	CourseID  string   `json:"course_id" validate:"required"`
	TeacherID string   `json:"teacher_id" validate:"required"`
	StartTime string   `json:"start_time" validate:"required"`
	EndTime   string   `json:"end_time" validate:"required"`
	Weekdays  []string `json:"weekdays" validate:"required,min=1"`
	Notes     *string  `json:"notes,omitempty"`
	IP        string   `json:"-"`
	UserAgent string   `json:"-"`
}

// UpdateAssignmentRequest carries a partial update; omitted fields keep
// their persisted values.
type UpdateAssignmentRequest struct {
	RoomID    *string  `json:"room_id,omitempty"`
	CourseID  *string  `json:"course_id,omitempty"`
	TeacherID *string  `json:"teacher_id,omitempty"`
	StartTime *string  `json:"start_time,omitempty"`
	EndTime   *string  `json:"end_time,omitempty"`
	Weekdays  []string `json:"weekdays,omitempty"`
	Status    *string  `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE CANCELLED"`
	Notes     *string  `json:"notes,omitempty"`
	IP        string   `json:"-"`
	UserAgent string   `json:"-"`
}

// CheckAvailabilityRequest probes whether a room slot is free.
type CheckAvailabilityRequest struct {
	RoomID    string   `json:"room_id" validate:"required"`
	StartTime string   `json:"start_time" validate:"required"`
	EndTime   string   `json:"end_time" validate:"required"`
	Weekdays  []string `json:"weekdays" validate:"required,min=1"`
	ExcludeID string   `json:"exclude_id,omitempty"`
}

// AssignmentService coordinates slot assignment logic: entity validation,
// three-dimensional conflict detection, and the guarded writes.
type AssignmentService struct {
	repo      assignmentRepository
	rooms     roomLookup
	courses   courseLookup
	teachers  teacherLookup
	audit     auditSink
	cache     statsCache
	metrics   *MetricsService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService instantiates AssignmentService.
func NewAssignmentService(repo assignmentRepository, rooms roomLookup, courses courseLookup, teachers teacherLookup, audit auditSink, cache statsCache, metrics *MetricsService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AssignmentService{
		repo:      repo,
		rooms:     rooms,
		courses:   courses,
		teachers:  teachers,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
}

// Get returns an enriched assignment by id.
func (s *AssignmentService) Get(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return detail, nil
}

// List returns assignments with pagination metadata.
func (s *AssignmentService) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, *models.Pagination, error) {
	start := time.Now()
	assignments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	s.metrics.ObserveDBQuery("assignment_list", time.Since(start))
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return assignments, pagination, nil
}

// ListByRoom returns active assignments occupying a room.
func (s *AssignmentService) ListByRoom(ctx context.Context, roomID string) ([]models.AssignmentDetail, error) {
	assignments, err := s.repo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list room assignments")
	}
	return assignments, nil
}

// ListByTeacher returns active assignments taught by a teacher.
func (s *AssignmentService) ListByTeacher(ctx context.Context, teacherID string) ([]models.AssignmentDetail, error) {
	assignments, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher assignments")
	}
	return assignments, nil
}

// Create books a slot after validating referenced entities and probing all
// three conflict dimensions inside the guarded transaction.
func (s *AssignmentService) Create(ctx context.Context, req CreateAssignmentRequest, actor *models.JWTClaims) (*models.AssignmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	window, weekdays, err := s.parseSlot(req.StartTime, req.EndTime, req.Weekdays)
	if err != nil {
		return nil, err
	}

	if err := s.checkReferences(ctx, req.RoomID, req.CourseID, req.TeacherID); err != nil {
		return nil, err
	}

	assignment := models.Assignment{
		RoomID:    req.RoomID,
		CourseID:  req.CourseID,
		TeacherID: req.TeacherID,
		StartTime: window.start,
		EndTime:   window.end,
		Weekdays:  weekdays,
		Status:    models.AssignmentActive,
		Notes:     req.Notes,
	}

	if err := s.repo.CreateGuarded(ctx, &assignment, s.conflictCheck(assignment, "")); err != nil {
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrConflict.Code {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	detail, err := s.repo.FindByID(ctx, assignment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load created assignment")
	}

	s.recordAudit(ctx, actor, models.AuditActionAssignmentCreate, assignment.ID, nil, detail, req.IP, req.UserAgent)
	s.invalidateStats(ctx)

	return detail, nil
}

// Update applies a partial update. Conflict probes run against the merged
// candidate and exclude the assignment itself.
func (s *AssignmentService) Update(ctx context.Context, id string, req UpdateAssignmentRequest, actor *models.JWTClaims) (*models.AssignmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	merged, err := s.merge(existing.Assignment, req)
	if err != nil {
		return nil, err
	}

	if err := s.checkReferences(ctx, merged.RoomID, merged.CourseID, merged.TeacherID); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateGuarded(ctx, &merged, s.conflictCheck(merged, merged.ID)); err != nil {
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrConflict.Code {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}

	detail, err := s.repo.FindByID(ctx, merged.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load updated assignment")
	}

	s.recordAudit(ctx, actor, models.AuditActionAssignmentUpdate, merged.ID, existing, detail, req.IP, req.UserAgent)
	s.invalidateStats(ctx)

	return detail, nil
}

// Cancel soft-deletes an assignment, freeing its room, teacher, and course
// for the covered weekdays and time window. Cancelling an already
// cancelled assignment is a no-op success.
func (s *AssignmentService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	if existing.Status == models.AssignmentCancelled {
		return nil
	}

	if err := s.repo.Cancel(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel assignment")
	}

	s.recordAudit(ctx, actor, models.AuditActionAssignmentCancel, id, existing, nil, "", "")
	s.invalidateStats(ctx)

	return nil
}

// CheckAvailability reports whether the room is free for the given slot.
func (s *AssignmentService) CheckAvailability(ctx context.Context, req CheckAvailabilityRequest) (*models.AvailabilityResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}

	window, weekdays, err := s.parseSlot(req.StartTime, req.EndTime, req.Weekdays)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	hits, err := s.repo.FindConflicts(ctx, models.ConflictProbe{
		Dimension: models.DimensionRoom,
		Key:       req.RoomID,
		StartTime: window.start,
		EndTime:   window.end,
		Weekdays:  weekdays,
		ExcludeID: req.ExcludeID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check availability")
	}
	s.metrics.ObserveDBQuery("assignment_conflicts", time.Since(start))

	result := &models.AvailabilityResult{
		Available: len(hits) == 0,
		Conflicts: describeConflicts(models.DimensionRoom, hits),
	}
	return result, nil
}

// Statistics returns the aggregate snapshot, served from cache when fresh.
func (s *AssignmentService) Statistics(ctx context.Context) (*models.AssignmentStats, error) {
	if s.cache != nil {
		var cached models.AssignmentStats
		if err := s.cache.Get(ctx, statsCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	start := time.Now()
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment statistics")
	}
	s.metrics.ObserveDBQuery("assignment_stats", time.Since(start))

	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache assignment statistics", zap.Error(err))
		}
	}
	return stats, nil
}

type timeWindow struct {
	start models.TimeOfDay
	end   models.TimeOfDay
}

func (s *AssignmentService) parseSlot(startRaw, endRaw string, labels []string) (timeWindow, models.WeekdaySet, error) {
	start, err := models.ParseTimeOfDay(startRaw)
	if err != nil {
		return timeWindow{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	end, err := models.ParseTimeOfDay(endRaw)
	if err != nil {
		return timeWindow{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if !start.Before(end) {
		return timeWindow{}, nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	weekdays, err := models.ParseWeekdaySet(labels)
	if err != nil {
		return timeWindow{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if weekdays.Len() == 0 {
		return timeWindow{}, nil, appErrors.Clone(appErrors.ErrValidation, "weekdays must not be empty")
	}
	return timeWindow{start: start, end: end}, weekdays, nil
}

// checkReferences confirms the room, course, and teacher exist and that
// the room accepts new assignments.
func (s *AssignmentService) checkReferences(ctx context.Context, roomID, courseID, teacherID string) error {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if room.Status != models.RoomActive {
		return appErrors.Clone(appErrors.ErrRoomUnavailable, fmt.Sprintf("room %s is %s and cannot receive assignments", room.Code, room.Status))
	}

	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return nil
}

// conflictCheck probes the room, teacher, and course dimensions in order
// against the candidate slot. The first dimension with a hit aborts the
// mutation.
func (s *AssignmentService) conflictCheck(candidate models.Assignment, excludeID string) func(ctx context.Context, finder repository.ConflictFinder) error {
	probes := []models.ConflictProbe{
		{Dimension: models.DimensionRoom, Key: candidate.RoomID},
		{Dimension: models.DimensionTeacher, Key: candidate.TeacherID},
		{Dimension: models.DimensionCourse, Key: candidate.CourseID},
	}

	return func(ctx context.Context, finder repository.ConflictFinder) error {
		for _, probe := range probes {
			probe.StartTime = candidate.StartTime
			probe.EndTime = candidate.EndTime
			probe.Weekdays = candidate.Weekdays
			probe.ExcludeID = excludeID

			hits, err := finder.FindConflicts(ctx, probe)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment conflicts")
			}
			if len(hits) > 0 {
				return wrapConflict(probe.Dimension, hits)
			}
		}
		return nil
	}
}

func describeConflicts(dimension models.ConflictDimension, hits []models.AssignmentDetail) []models.AssignmentConflict {
	conflicts := make([]models.AssignmentConflict, 0, len(hits))
	for _, hit := range hits {
		conflicts = append(conflicts, models.AssignmentConflict{
			AssignmentID: hit.ID,
			Dimension:    dimension,
			RoomName:     hit.RoomName,
			CourseName:   hit.CourseName,
			TeacherName:  hit.TeacherName,
			StartTime:    hit.StartTime,
			EndTime:      hit.EndTime,
			Weekdays:     hit.Weekdays,
		})
	}
	return conflicts
}

// wrapConflict builds the caller-facing error. The message names the
// competing course, party, and time window so the rejection can be
// explained without a second lookup.
func wrapConflict(dimension models.ConflictDimension, hits []models.AssignmentDetail) error {
	conflicts := describeConflicts(dimension, hits)
	first := conflicts[0]

	var message string
	switch dimension {
	case models.DimensionRoom:
		message = fmt.Sprintf("room is double-booked: course %s with teacher %s occupies %s-%s on %s",
			first.CourseName, first.TeacherName, first.StartTime, first.EndTime, first.Weekdays)
	case models.DimensionTeacher:
		message = fmt.Sprintf("teacher is double-booked: course %s in room %s occupies %s-%s on %s",
			first.CourseName, first.RoomName, first.StartTime, first.EndTime, first.Weekdays)
	default:
		message = fmt.Sprintf("course is double-scheduled: room %s with teacher %s occupies %s-%s on %s",
			first.RoomName, first.TeacherName, first.StartTime, first.EndTime, first.Weekdays)
	}

	domainErr := &models.AssignmentConflictError{Dimension: dimension, Message: message, Conflicts: conflicts}
	return appErrors.Wrap(domainErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, message)
}

// merge folds the supplied patch fields over the persisted record.
func (s *AssignmentService) merge(existing models.Assignment, req UpdateAssignmentRequest) (models.Assignment, error) {
	merged := existing

	if req.RoomID != nil {
		merged.RoomID = *req.RoomID
	}
	if req.CourseID != nil {
		merged.CourseID = *req.CourseID
	}
	if req.TeacherID != nil {
		merged.TeacherID = *req.TeacherID
	}
	if req.StartTime != nil {
		start, err := models.ParseTimeOfDay(*req.StartTime)
		if err != nil {
			return models.Assignment{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		merged.StartTime = start
	}
	if req.EndTime != nil {
		end, err := models.ParseTimeOfDay(*req.EndTime)
		if err != nil {
			return models.Assignment{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		merged.EndTime = end
	}
	if req.Weekdays != nil {
		weekdays, err := models.ParseWeekdaySet(req.Weekdays)
		if err != nil {
			return models.Assignment{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		if weekdays.Len() == 0 {
			return models.Assignment{}, appErrors.Clone(appErrors.ErrValidation, "weekdays must not be empty")
		}
		merged.Weekdays = weekdays
	}
	if req.Status != nil {
		merged.Status = models.AssignmentStatus(*req.Status)
	}
	if req.Notes != nil {
		merged.Notes = req.Notes
	}

	if !merged.StartTime.Before(merged.EndTime) {
		return models.Assignment{}, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	return merged, nil
}

func (s *AssignmentService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, before, after interface{}, ip, userAgent string) {
	if s.audit == nil {
		return
	}

	var userID *string
	if actor != nil {
		userID = &actor.UserID
	}

	var oldValues, newValues []byte
	if before != nil {
		oldValues, _ = json.Marshal(before)
	}
	if after != nil {
		newValues, _ = json.Marshal(after)
	}

	entry := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "assignments",
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}

	// The audit sink is fire-and-forget: a failed write must never fail
	// the mutation it describes.
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record assignment audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *AssignmentService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "assignments:*"); err != nil {
		s.logger.Warn("failed to invalidate statistics cache", zap.Error(err))
	}
}
