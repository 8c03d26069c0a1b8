package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studira/campus-api/internal/models"
)

// ConflictFinder probes for colliding assignments. The guarded mutations
// hand the service a transaction-bound finder so conflict checks and the
// final write share one transaction.
type ConflictFinder interface {
	FindConflicts(ctx context.Context, probe models.ConflictProbe) ([]models.AssignmentDetail, error)
}

// detailColumns is the joined projection shared by every read that returns
// display-enriched assignments.
const detailColumns = `a.id, a.room_id, a.course_id, a.teacher_id, a.start_time, a.end_time, a.weekdays, a.status, a.notes, a.created_at, a.updated_at, r.code AS room_code, r.name AS room_name, c.code AS course_code, c.name AS course_name, t.full_name AS teacher_name`

const detailJoins = `FROM assignments a
JOIN rooms r ON r.id = a.room_id
JOIN courses c ON c.id = a.course_id
JOIN teachers t ON t.id = a.teacher_id`

// dimensionColumns maps a conflict dimension to its filter column. Using an
// allow-list keeps the single parameterized query safe.
var dimensionColumns = map[models.ConflictDimension]string{
	models.DimensionRoom:    "a.room_id",
	models.DimensionTeacher: "a.teacher_id",
	models.DimensionCourse:  "a.course_id",
}

// AssignmentRepository provides persistence for slot assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindByID loads an assignment with its display fields.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE a.id = $1", detailColumns, detailJoins)
	var detail models.AssignmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns assignments with optional filtering and pagination.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	base := detailJoins + " WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, strings.ToUpper(filter.Status))
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("a.room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("a.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("a.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"start_time": "a.start_time",
		"status":     "a.status",
		"room":       "r.name",
		"course":     "c.name",
		"created_at": "a.created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "a.created_at"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", detailColumns, base, column, order, size, offset)
	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}

	return assignments, total, nil
}

// ListByRoom returns active assignments in a room whose course is still
// schedulable, ordered by course start date then slot start time.
func (r *AssignmentRepository) ListByRoom(ctx context.Context, roomID string) ([]models.AssignmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE a.room_id = $1 AND a.status = 'ACTIVE' AND c.status IN ('PLANNED', 'ACTIVE') ORDER BY c.start_date ASC, a.start_time ASC`, detailColumns, detailJoins)
	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, roomID); err != nil {
		return nil, fmt.Errorf("list assignments by room: %w", err)
	}
	return assignments, nil
}

// ListByTeacher returns active assignments taught by a teacher whose course
// is still schedulable.
func (r *AssignmentRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.AssignmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE a.teacher_id = $1 AND a.status = 'ACTIVE' AND c.status IN ('PLANNED', 'ACTIVE') ORDER BY c.start_date ASC, a.start_time ASC`, detailColumns, detailJoins)
	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, teacherID); err != nil {
		return nil, fmt.Errorf("list assignments by teacher: %w", err)
	}
	return assignments, nil
}

// FindConflicts probes for active assignments colliding with the candidate
// slot on one dimension.
func (r *AssignmentRepository) FindConflicts(ctx context.Context, probe models.ConflictProbe) ([]models.AssignmentDetail, error) {
	return findConflicts(ctx, r.db, probe)
}

func findConflicts(ctx context.Context, q sqlx.QueryerContext, probe models.ConflictProbe) ([]models.AssignmentDetail, error) {
	column, ok := dimensionColumns[probe.Dimension]
	if !ok {
		return nil, fmt.Errorf("unknown conflict dimension %q", probe.Dimension)
	}

	// Time windows are half-open: rows touching the candidate boundary do
	// not overlap. Times are stored zero-padded so string comparison is
	// chronological.
	query := fmt.Sprintf(`SELECT %s %s
WHERE %s = $1
  AND a.status = 'ACTIVE'
  AND c.status IN ('PLANNED', 'ACTIVE')
  AND a.start_time < $2
  AND $3 < a.end_time
  AND ($4 = '' OR a.id <> $4)
ORDER BY a.start_time ASC`, detailColumns, detailJoins, column)

	var candidates []models.AssignmentDetail
	if err := sqlx.SelectContext(ctx, q, &candidates, query, probe.Key, probe.EndTime.String(), probe.StartTime.String(), probe.ExcludeID); err != nil {
		return nil, fmt.Errorf("find assignment conflicts: %w", err)
	}

	// The weekday dimension cannot be expressed against the delimited
	// column, so the set intersection runs here.
	conflicts := candidates[:0]
	for _, candidate := range candidates {
		if candidate.Weekdays.Intersects(probe.Weekdays) {
			conflicts = append(conflicts, candidate)
		}
	}
	return conflicts, nil
}

// txConflictFinder scopes conflict probes to a transaction.
type txConflictFinder struct {
	tx *sqlx.Tx
}

func (f *txConflictFinder) FindConflicts(ctx context.Context, probe models.ConflictProbe) ([]models.AssignmentDetail, error) {
	return findConflicts(ctx, f.tx, probe)
}

// lockSlotKeys serializes concurrent mutations touching the same room,
// teacher, or course. Keys are sorted so two writers always lock in the
// same order. The advisory locks release on commit or rollback.
func lockSlotKeys(ctx context.Context, tx *sqlx.Tx, a *models.Assignment) error {
	keys := []string{
		"assignments:room:" + a.RoomID,
		"assignments:teacher:" + a.TeacherID,
		"assignments:course:" + a.CourseID,
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("acquire slot lock %s: %w", key, err)
		}
	}
	return nil
}

// CreateGuarded inserts a new assignment after the supplied check passes.
// Locks, checks, and the insert share one transaction so a concurrent
// writer cannot slip between the conflict check and the write.
func (r *AssignmentRepository) CreateGuarded(ctx context.Context, assignment *models.Assignment, check func(ctx context.Context, finder ConflictFinder) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create assignment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockSlotKeys(ctx, tx, assignment); err != nil {
		return err
	}

	if err = check(ctx, &txConflictFinder{tx: tx}); err != nil {
		return err
	}

	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO assignments (id, room_id, course_id, teacher_id, start_time, end_time, weekdays, status, notes, created_at, updated_at) VALUES (:id, :room_id, :course_id, :teacher_id, :start_time, :end_time, :weekdays, :status, :notes, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create assignment: %w", err)
	}
	return nil
}

// UpdateGuarded writes the merged assignment after the supplied check
// passes, under the same locking discipline as CreateGuarded.
func (r *AssignmentRepository) UpdateGuarded(ctx context.Context, assignment *models.Assignment, check func(ctx context.Context, finder ConflictFinder) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update assignment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockSlotKeys(ctx, tx, assignment); err != nil {
		return err
	}

	if err = check(ctx, &txConflictFinder{tx: tx}); err != nil {
		return err
	}

	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET room_id = :room_id, course_id = :course_id, teacher_id = :teacher_id, start_time = :start_time, end_time = :end_time, weekdays = :weekdays, status = :status, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update assignment: %w", err)
	}
	return nil
}

// Cancel soft-deletes an assignment. The row is kept for history.
func (r *AssignmentRepository) Cancel(ctx context.Context, id string) error {
	const query = `UPDATE assignments SET status = 'CANCELLED', updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("cancel assignment: %w", err)
	}
	return nil
}

// Stats aggregates scheduling usage scoped to schedulable courses.
func (r *AssignmentRepository) Stats(ctx context.Context) (*models.AssignmentStats, error) {
	const query = `SELECT
	COUNT(*) AS total,
	COUNT(*) FILTER (WHERE a.status = 'ACTIVE') AS active,
	COUNT(*) FILTER (WHERE a.status = 'INACTIVE') AS inactive,
	COUNT(*) FILTER (WHERE a.status = 'CANCELLED') AS cancelled,
	COUNT(DISTINCT a.room_id) FILTER (WHERE a.status = 'ACTIVE') AS rooms_in_use,
	COUNT(DISTINCT a.teacher_id) FILTER (WHERE a.status = 'ACTIVE') AS teachers_assigned
FROM assignments a
JOIN courses c ON c.id = a.course_id
WHERE c.status IN ('PLANNED', 'ACTIVE')`
	var stats models.AssignmentStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("assignment stats: %w", err)
	}
	return &stats, nil
}
