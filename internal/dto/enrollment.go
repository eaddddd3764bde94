package dto

// SelectCoursesRequest is the student self-service course selection payload.
type SelectCoursesRequest struct {
	CourseIDs []string `json:"course_ids" validate:"required,min=1,dive,required"`
}

// SelectCoursesResponse reports how many selections were enrolled or skipped.
type SelectCoursesResponse struct {
	Enrolled int `json:"enrolled"`
	Skipped  int `json:"skipped"`
}
