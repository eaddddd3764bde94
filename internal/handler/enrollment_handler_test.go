package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Crisjan0/enrollment-portal-api/internal/middleware"
	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	"github.com/Crisjan0/enrollment-portal-api/internal/service"
	"github.com/Crisjan0/enrollment-portal-api/pkg/export"
)

type fakeEnrollmentRepo struct {
	enrolled   int
	skipped    int
	lastUserID string
	lastFilter models.EnrollmentFilter
	items      []models.EnrollmentDetail
	total      int
}

func (f *fakeEnrollmentRepo) SelectCourses(_ context.Context, userID string, courseIDs []string) (int, int, error) {
	f.lastUserID = userID
	return f.enrolled, f.skipped, nil
}

func (f *fakeEnrollmentRepo) List(_ context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	f.lastFilter = filter
	return f.items, f.total, nil
}

func newEnrollmentHandlerForTest(repo *fakeEnrollmentRepo) *EnrollmentHandler {
	svc := service.NewEnrollmentService(repo, export.NewCSVExporter(), export.NewPDFExporter(), nil, nil, nil)
	return NewEnrollmentHandler(svc)
}

func studentContext(rec *httptest.ResponseRecorder, userID string) (*gin.Context, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	c, engine := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: models.RoleStudent})
	return c, engine
}

func TestEnrollmentHandlerSelfSelect(t *testing.T) {
	repo := &fakeEnrollmentRepo{enrolled: 2, skipped: 1}
	handler := newEnrollmentHandlerForTest(repo)

	rec := httptest.NewRecorder()
	c, _ := studentContext(rec, "user-1")
	body := `{"course_ids":["course-1","course-2","course-3"]}`
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments/select", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.SelfSelect(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", repo.lastUserID)

	var envelope struct {
		Data struct {
			Enrolled int `json:"enrolled"`
			Skipped  int `json:"skipped"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 2, envelope.Data.Enrolled)
	assert.Equal(t, 1, envelope.Data.Skipped)
}

func TestEnrollmentHandlerSelfSelectBadPayload(t *testing.T) {
	handler := newEnrollmentHandlerForTest(&fakeEnrollmentRepo{})

	rec := httptest.NewRecorder()
	c, _ := studentContext(rec, "user-1")
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments/select", strings.NewReader("{"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.SelfSelect(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnrollmentHandlerSelfSelectRequiresClaims(t *testing.T) {
	handler := newEnrollmentHandlerForTest(&fakeEnrollmentRepo{})

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments/select", strings.NewReader(`{"course_ids":["course-1"]}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.SelfSelect(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEnrollmentHandlerListScopesStudentToSelf(t *testing.T) {
	repo := &fakeEnrollmentRepo{}
	handler := newEnrollmentHandlerForTest(repo)

	rec := httptest.NewRecorder()
	c, _ := studentContext(rec, "user-1")
	c.Request = httptest.NewRequest(http.MethodGet, "/enrollments?user_id=user-2&page=2", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", repo.lastFilter.UserID)
	assert.Equal(t, 2, repo.lastFilter.Page)
}

func TestEnrollmentHandlerListAdminFiltersByUser(t *testing.T) {
	repo := &fakeEnrollmentRepo{}
	handler := newEnrollmentHandlerForTest(repo)

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Request = httptest.NewRequest(http.MethodGet, "/enrollments?user_id=user-2", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-2", repo.lastFilter.UserID)
}

func TestEnrollmentHandlerExportCSV(t *testing.T) {
	repo := &fakeEnrollmentRepo{
		items: []models.EnrollmentDetail{{
			Enrollment:  models.Enrollment{EnrolledAt: time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)},
			Username:    "jane",
			StudentName: "Jane Doe",
			CourseCode:  "MATH101",
			CourseName:  "Algebra",
			Credits:     3,
		}},
		total: 1,
	}
	handler := newEnrollmentHandlerForTest(repo)

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/enrollments/export?format=csv", nil)

	handler.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "MATH101")
}

func TestEnrollmentHandlerExportUnknownFormat(t *testing.T) {
	handler := newEnrollmentHandlerForTest(&fakeEnrollmentRepo{})

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/enrollments/export?format=xlsx", nil)

	handler.Export(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
