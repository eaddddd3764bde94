package models

import "time"

// Enrollment is a confirmed student-course relationship.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail joins student and course context onto the enrollment.
type EnrollmentDetail struct {
	Enrollment
	Username    string `db:"username" json:"username"`
	StudentName string `db:"student_name" json:"student_name"`
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseName  string `db:"course_name" json:"course_name"`
	Credits     int    `db:"credits" json:"credits"`
}

// EnrollmentFilter captures listing criteria for the roster.
type EnrollmentFilter struct {
	UserID    string
	CourseID  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
