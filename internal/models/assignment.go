package models

import "time"

// AssignmentStatus enumerates the lifecycle states of a slot assignment.
type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "ACTIVE"
	AssignmentInactive  AssignmentStatus = "INACTIVE"
	AssignmentCancelled AssignmentStatus = "CANCELLED"
)

// ConflictDimension identifies the axis on which a double-booking occurred.
type ConflictDimension string

const (
	DimensionRoom    ConflictDimension = "ROOM"
	DimensionTeacher ConflictDimension = "TEACHER"
	DimensionCourse  ConflictDimension = "COURSE"
)

// Assignment books one room, one teacher, and one course into a recurring
// weekly time window.
type Assignment struct {
	ID        string           `db:"id" json:"id"`
	RoomID    string           `db:"room_id" json:"room_id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	TeacherID string           `db:"teacher_id" json:"teacher_id"`
	StartTime TimeOfDay        `db:"start_time" json:"start_time"`
	EndTime   TimeOfDay        `db:"end_time" json:"end_time"`
	Weekdays  WeekdaySet       `db:"weekdays" json:"weekdays"`
	Status    AssignmentStatus `db:"status" json:"status"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AssignmentDetail enriches an assignment with display fields from the
// joined room, course, and teacher rows.
type AssignmentDetail struct {
	Assignment
	RoomCode    string `db:"room_code" json:"room_code"`
	RoomName    string `db:"room_name" json:"room_name"`
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseName  string `db:"course_name" json:"course_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// AssignmentFilter describes query params for listing assignments.
type AssignmentFilter struct {
	Status    string
	RoomID    string
	CourseID  string
	TeacherID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ConflictProbe describes the candidate slot checked against existing
// assignments on a single dimension.
type ConflictProbe struct {
	Dimension ConflictDimension
	Key       string
	StartTime TimeOfDay
	EndTime   TimeOfDay
	Weekdays  WeekdaySet
	ExcludeID string
}

// AssignmentConflict describes an existing assignment colliding with a
// candidate, with enough context to explain the rejection.
type AssignmentConflict struct {
	AssignmentID string            `json:"assignment_id"`
	Dimension    ConflictDimension `json:"dimension"`
	RoomName     string            `json:"room_name"`
	CourseName   string            `json:"course_name"`
	TeacherName  string            `json:"teacher_name"`
	StartTime    TimeOfDay         `json:"start_time"`
	EndTime      TimeOfDay         `json:"end_time"`
	Weekdays     WeekdaySet        `json:"weekdays"`
}

// AssignmentConflictError is returned when a candidate collides with an
// existing assignment.
type AssignmentConflictError struct {
	Dimension ConflictDimension    `json:"dimension"`
	Message   string               `json:"message"`
	Conflicts []AssignmentConflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *AssignmentConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// First returns the first colliding descriptor.
func (e *AssignmentConflictError) First() *AssignmentConflict {
	if e == nil || len(e.Conflicts) == 0 {
		return nil
	}
	return &e.Conflicts[0]
}

// AssignmentStats aggregates scheduling usage scoped to planned or active
// courses.
type AssignmentStats struct {
	Total            int `db:"total" json:"total"`
	Active           int `db:"active" json:"active"`
	Inactive         int `db:"inactive" json:"inactive"`
	Cancelled        int `db:"cancelled" json:"cancelled"`
	RoomsInUse       int `db:"rooms_in_use" json:"rooms_in_use"`
	TeachersAssigned int `db:"teachers_assigned" json:"teachers_assigned"`
}

// AvailabilityResult answers a checkAvailability probe.
type AvailabilityResult struct {
	Available bool                 `json:"available"`
	Conflicts []AssignmentConflict `json:"conflicts"`
}
