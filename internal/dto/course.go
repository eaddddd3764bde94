package dto

// CreateCourseRequest is the course creation payload.
type CreateCourseRequest struct {
	CourseCode  string  `json:"course_code" validate:"required,max=20"`
	CourseName  string  `json:"course_name" validate:"required,max=150"`
	Credits     int     `json:"credits" validate:"required,gt=0,lte=30"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// UpdateCourseRequest is the course update payload.
type UpdateCourseRequest struct {
	CourseCode  string  `json:"course_code" validate:"required,max=20"`
	CourseName  string  `json:"course_name" validate:"required,max=150"`
	Credits     int     `json:"credits" validate:"required,gt=0,lte=30"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}
