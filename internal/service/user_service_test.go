package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Crisjan0/enrollment-portal-api/internal/dto"
	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
)

type mockUserRepo struct {
	users      map[string]*models.User
	taken      bool
	revoked    []string
	listUsers  []models.User
	listTotal  int
	createErr  error
	promoteErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*models.User{}}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (m *mockUserRepo) ExistsByUsernameOrEmail(_ context.Context, _, _ string) (bool, error) {
	return m.taken, nil
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id, firstName string, middleName *string, lastName, email string, updatedAt time.Time) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.FirstName = firstName
	user.MiddleName = middleName
	user.LastName = lastName
	user.Email = email
	user.UpdatedAt = updatedAt
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, updatedAt time.Time) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = updatedAt
	return nil
}

func (m *mockUserRepo) Promote(_ context.Context, id string, updatedAt time.Time) error {
	if m.promoteErr != nil {
		return m.promoteErr
	}
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Role = models.RoleAdmin
	user.UpdatedAt = updatedAt
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) List(_ context.Context, _ models.UserFilter) ([]models.User, int, error) {
	return m.listUsers, m.listTotal, nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func newUserServiceForTest(repo *mockUserRepo, enrollments *mockEnrollmentCounter, audit auditRecorder) *UserService {
	return NewUserService(repo, enrollments, audit, validator.New(), zap.NewNop())
}

func validCreateStudentRequest() dto.CreateStudentRequest {
	return dto.CreateStudentRequest{
		Username:  "Jane.Doe",
		Password:  "supersecret",
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "Jane.Doe@Example.Com",
	}
}

func TestUserServiceCreate(t *testing.T) {
	repo := newMockUserRepo()
	audit := &mockAuditRecorder{}
	svc := newUserServiceForTest(repo, &mockEnrollmentCounter{}, audit)

	user, err := svc.Create(context.Background(), validCreateStudentRequest(), "admin-1")
	require.NoError(t, err)

	assert.Equal(t, "jane.doe", user.Username)
	assert.Equal(t, "jane.doe@example.com", user.Email)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.NotEmpty(t, user.ID)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("supersecret")))

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionUserCreate, audit.logs[0].Action)
}

func TestUserServiceCreateConflict(t *testing.T) {
	repo := newMockUserRepo()
	repo.taken = true
	svc := newUserServiceForTest(repo, &mockEnrollmentCounter{}, nil)

	_, err := svc.Create(context.Background(), validCreateStudentRequest(), "admin-1")
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestUserServiceCreateShortPassword(t *testing.T) {
	svc := newUserServiceForTest(newMockUserRepo(), &mockEnrollmentCounter{}, nil)

	req := validCreateStudentRequest()
	req.Password = "short"
	_, err := svc.Create(context.Background(), req, "admin-1")
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUserServiceUpdate(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &models.User{ID: "user-1", Username: "jane", FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Role: models.RoleStudent}
	svc := newUserServiceForTest(repo, &mockEnrollmentCounter{}, nil)

	user, err := svc.Update(context.Background(), "user-1", dto.UpdateStudentRequest{
		FirstName:  "Janet",
		MiddleName: "Q",
		LastName:   "Doe",
		Email:      "Janet@Example.com",
	}, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, "Janet", user.FirstName)
	require.NotNil(t, user.MiddleName)
	assert.Equal(t, "Q", *user.MiddleName)
	assert.Equal(t, "janet@example.com", user.Email)
	assert.Equal(t, "janet@example.com", repo.users["user-1"].Email)
}

func TestUserServiceUpdateMissing(t *testing.T) {
	svc := newUserServiceForTest(newMockUserRepo(), &mockEnrollmentCounter{}, nil)

	_, err := svc.Update(context.Background(), "ghost", dto.UpdateStudentRequest{
		FirstName: "Janet",
		LastName:  "Doe",
		Email:     "janet@example.com",
	}, "admin-1")
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestUserServicePromote(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &models.User{ID: "user-1", Role: models.RoleStudent}
	audit := &mockAuditRecorder{}
	svc := newUserServiceForTest(repo, &mockEnrollmentCounter{}, audit)

	user, err := svc.Promote(context.Background(), "user-1", "admin-1")
	require.NoError(t, err)

	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Equal(t, models.RoleAdmin, repo.users["user-1"].Role)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionUserPromote, audit.logs[0].Action)
}

func TestUserServicePromoteAlreadyAdmin(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &models.User{ID: "user-1", Role: models.RoleAdmin}
	svc := newUserServiceForTest(repo, &mockEnrollmentCounter{}, nil)

	_, err := svc.Promote(context.Background(), "user-1", "admin-1")
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestUserServiceResetPasswordRevokesSessions(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &models.User{ID: "user-1", Role: models.RoleStudent}
	svc := newUserServiceForTest(repo, &mockEnrollmentCounter{}, nil)

	err := svc.ResetPassword(context.Background(), "user-1", dto.ResetPasswordRequest{NewPassword: "replacement"}, "admin-1")
	require.NoError(t, err)

	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["user-1"].PasswordHash), []byte("replacement")))
	assert.Contains(t, repo.revoked, "user-1")
}

func TestUserServiceDeleteOwnAccount(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["admin-1"] = &models.User{ID: "admin-1", Role: models.RoleAdmin}
	svc := newUserServiceForTest(repo, &mockEnrollmentCounter{}, nil)

	err := svc.Delete(context.Background(), "admin-1", "admin-1")
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "own account")
}

func TestUserServiceDeleteBlockedByEnrollments(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &models.User{ID: "user-1", Role: models.RoleStudent}
	counter := &mockEnrollmentCounter{byUser: map[string]int{"user-1": 2}}
	svc := newUserServiceForTest(repo, counter, nil)

	err := svc.Delete(context.Background(), "user-1", "admin-1")
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDependencyConflict.Code, appErr.Code)
}

func TestUserServiceDelete(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &models.User{ID: "user-1", Role: models.RoleStudent}
	audit := &mockAuditRecorder{}
	svc := newUserServiceForTest(repo, &mockEnrollmentCounter{}, audit)

	require.NoError(t, svc.Delete(context.Background(), "user-1", "admin-1"))

	_, err := svc.Get(context.Background(), "user-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionUserDelete, audit.logs[0].Action)
}

func TestUserServiceList(t *testing.T) {
	repo := newMockUserRepo()
	repo.listUsers = []models.User{{ID: "user-1"}, {ID: "user-2"}}
	repo.listTotal = 12
	svc := newUserServiceForTest(repo, &mockEnrollmentCounter{}, nil)

	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)

	assert.Len(t, users, 2)
	require.NotNil(t, pagination)
	assert.Equal(t, 12, pagination.TotalCount)
	assert.Equal(t, 2, pagination.Page)
}
