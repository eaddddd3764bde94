package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Crisjan0/enrollment-portal-api/internal/dto"
	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
)

type mockCourseRepo struct {
	courses   map[string]*models.Course
	codes     map[string]string
	listItems []models.Course
	listTotal int
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{courses: make(map[string]*models.Course), codes: make(map[string]string)}
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		copy := *c
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	id, ok := m.codes[code]
	if !ok {
		return false, nil
	}
	if excludeID != "" && id == excludeID {
		return false, nil
	}
	return true, nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	copy := *course
	m.courses[course.ID] = &copy
	m.codes[course.CourseCode] = course.ID
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	if _, ok := m.courses[course.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *course
	m.courses[course.ID] = &copy
	m.codes[course.CourseCode] = course.ID
	return nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.courses, id)
	return nil
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	return m.listItems, m.listTotal, nil
}

type mockEnrollmentCounter struct {
	byCourse map[string]int
	byUser   map[string]int
}

func (m *mockEnrollmentCounter) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return m.byCourse[courseID], nil
}

func (m *mockEnrollmentCounter) CountByUser(ctx context.Context, userID string) (int, error) {
	return m.byUser[userID], nil
}

func TestCourseServiceCreateUppercasesCode(t *testing.T) {
	repo := newMockCourseRepo()
	svc := NewCourseService(repo, &mockEnrollmentCounter{}, validator.New(), zap.NewNop())

	course, err := svc.Create(context.Background(), dto.CreateCourseRequest{
		CourseCode: "math101",
		CourseName: "Algebra",
		Credits:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, "MATH101", course.CourseCode)
	assert.NotEmpty(t, course.ID)
}

func TestCourseServiceCreateConflict(t *testing.T) {
	repo := newMockCourseRepo()
	repo.codes["MATH101"] = "course-1"
	svc := NewCourseService(repo, &mockEnrollmentCounter{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), dto.CreateCourseRequest{
		CourseCode: "MATH101",
		CourseName: "Algebra",
		Credits:    3,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceUpdateKeepsOwnCode(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["course-1"] = &models.Course{ID: "course-1", CourseCode: "MATH101", CourseName: "Algebra", Credits: 3}
	repo.codes["MATH101"] = "course-1"
	svc := NewCourseService(repo, &mockEnrollmentCounter{}, validator.New(), zap.NewNop())

	course, err := svc.Update(context.Background(), "course-1", dto.UpdateCourseRequest{
		CourseCode: "MATH101",
		CourseName: "Advanced Algebra",
		Credits:    4,
	})
	require.NoError(t, err)
	assert.Equal(t, "Advanced Algebra", course.CourseName)
	assert.Equal(t, 4, course.Credits)
}

func TestCourseServiceDeleteBlockedByEnrollments(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["course-1"] = &models.Course{ID: "course-1", CourseCode: "MATH101"}
	counter := &mockEnrollmentCounter{byCourse: map[string]int{"course-1": 2}}
	svc := NewCourseService(repo, counter, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "course-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDependencyConflict.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceDelete(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["course-1"] = &models.Course{ID: "course-1", CourseCode: "MATH101"}
	svc := NewCourseService(repo, &mockEnrollmentCounter{}, validator.New(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "course-1"))
	_, err := svc.Get(context.Background(), "course-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
