package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	"github.com/Crisjan0/enrollment-portal-api/internal/service"
)

type fakeCourseRepo struct {
	courses map[string]*models.Course
	taken   bool
	items   []models.Course
	total   int
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{courses: map[string]*models.Course{}}
}

func (f *fakeCourseRepo) FindByID(_ context.Context, id string) (*models.Course, error) {
	course, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *course
	return &copied, nil
}

func (f *fakeCourseRepo) ExistsByCode(_ context.Context, _, _ string) (bool, error) {
	return f.taken, nil
}

func (f *fakeCourseRepo) Create(_ context.Context, course *models.Course) error {
	f.courses[course.ID] = course
	return nil
}

func (f *fakeCourseRepo) Update(_ context.Context, course *models.Course) error {
	f.courses[course.ID] = course
	return nil
}

func (f *fakeCourseRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.courses, id)
	return nil
}

func (f *fakeCourseRepo) List(_ context.Context, _ models.CourseFilter) ([]models.Course, int, error) {
	return f.items, f.total, nil
}

type fakeCourseEnrollments struct {
	byCourse map[string]int
}

func (f *fakeCourseEnrollments) CountByCourse(_ context.Context, courseID string) (int, error) {
	return f.byCourse[courseID], nil
}

func newCourseHandlerForTest(repo *fakeCourseRepo, enrollments *fakeCourseEnrollments) *CourseHandler {
	if enrollments == nil {
		enrollments = &fakeCourseEnrollments{}
	}
	return NewCourseHandler(service.NewCourseService(repo, enrollments, nil, nil))
}

func TestCourseHandlerCreate(t *testing.T) {
	repo := newFakeCourseRepo()
	handler := newCourseHandlerForTest(repo, nil)

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := `{"course_code":"math101","course_name":"Algebra","credits":3}`
	c.Request = httptest.NewRequest(http.MethodPost, "/courses", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var envelope struct {
		Data models.Course `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "MATH101", envelope.Data.CourseCode)
	assert.Len(t, repo.courses, 1)
}

func TestCourseHandlerCreateDuplicateCode(t *testing.T) {
	repo := newFakeCourseRepo()
	repo.taken = true
	handler := newCourseHandlerForTest(repo, nil)

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := `{"course_code":"MATH101","course_name":"Algebra","credits":3}`
	c.Request = httptest.NewRequest(http.MethodPost, "/courses", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCourseHandlerGetMissing(t *testing.T) {
	handler := newCourseHandlerForTest(newFakeCourseRepo(), nil)

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/courses/ghost", nil)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCourseHandlerDeleteBlockedByEnrollments(t *testing.T) {
	repo := newFakeCourseRepo()
	repo.courses["course-1"] = &models.Course{ID: "course-1", CourseCode: "MATH101"}
	enrollments := &fakeCourseEnrollments{byCourse: map[string]int{"course-1": 4}}
	handler := newCourseHandlerForTest(repo, enrollments)

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/courses/course-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}

	handler.Delete(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, repo.courses, "course-1")
}

func TestCourseHandlerDelete(t *testing.T) {
	repo := newFakeCourseRepo()
	repo.courses["course-1"] = &models.Course{ID: "course-1", CourseCode: "MATH101"}
	handler := newCourseHandlerForTest(repo, nil)

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/courses/course-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}

	handler.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, repo.courses)
}

func TestCourseHandlerList(t *testing.T) {
	repo := newFakeCourseRepo()
	repo.items = []models.Course{{ID: "course-1", CourseCode: "MATH101"}}
	repo.total = 1
	handler := newCourseHandlerForTest(repo, nil)

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/courses?search=math", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data       []models.Course    `json:"data"`
		Pagination *models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 1, envelope.Pagination.TotalCount)
}
