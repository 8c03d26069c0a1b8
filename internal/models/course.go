package models

import "time"

// CourseStatus enumerates the lifecycle states of a course.
type CourseStatus string

const (
	CoursePlanned   CourseStatus = "PLANNED"
	CourseActive    CourseStatus = "ACTIVE"
	CourseCancelled CourseStatus = "CANCELLED"
	CourseFinished  CourseStatus = "FINISHED"
)

// Course represents a course offering within a date range.
type Course struct {
	ID        string       `db:"id" json:"id"`
	Code      string       `db:"code" json:"code"`
	Name      string       `db:"name" json:"name"`
	StartDate time.Time    `db:"start_date" json:"start_date"`
	EndDate   time.Time    `db:"end_date" json:"end_date"`
	Capacity  int          `db:"capacity" json:"capacity"`
	Status    CourseStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	Status    string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
