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

	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
)

type mockAuthRepo struct {
	users         map[string]*models.User
	tokens        map[string]*models.RefreshToken
	revokedAll    []string
	revokedTokens []string
	created       []*models.User
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	m.created = append(m.created, &copy)
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = append(m.revokedAll, userID)
	for _, tok := range m.tokens {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	copy := *token
	m.tokens[token.Token] = &copy
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if tok, ok := m.tokens[token]; ok {
		copy := *tok
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revokedTokens = append(m.revokedTokens, id)
	for _, tok := range m.tokens {
		if tok.ID == id {
			tok.Revoked = true
			tok.RevokedAt = &revokedAt
		}
	}
	return nil
}

func newAuthServiceForTest(repo *mockAuthRepo, audit *mockAuditRecorder) *AuthService {
	return NewAuthService(repo, audit, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "enrollment-portal-api",
		SingleSession:      true,
	})
}

func seedUser(repo *mockAuthRepo, username, password string, role models.UserRole) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &models.User{
		ID:           "user-" + username,
		Username:     username,
		PasswordHash: string(hash),
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        username + "@example.com",
		Role:         role,
	}
	repo.users[user.ID] = user
	return user
}

func TestAuthServiceRegister(t *testing.T) {
	repo := newMockAuthRepo()
	audit := &mockAuditRecorder{}
	svc := newAuthServiceForTest(repo, audit)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Username:        "JDoe",
		Password:        "supersecret",
		ConfirmPassword: "supersecret",
		FirstName:       "Jane",
		LastName:        "Doe",
		Email:           "JDoe@Example.com",
	}, "127.0.0.1", "test")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", info.Username)
	assert.Equal(t, "jdoe@example.com", info.Email)
	assert.Equal(t, models.RoleStudent, info.Role)
	assert.NotEmpty(t, audit.logs)
}

func TestAuthServiceRegisterConflict(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "jdoe", "supersecret", models.RoleStudent)
	svc := newAuthServiceForTest(repo, &mockAuditRecorder{})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username:        "jdoe",
		Password:        "supersecret",
		ConfirmPassword: "supersecret",
		FirstName:       "Jane",
		LastName:        "Doe",
		Email:           "other@example.com",
	}, "127.0.0.1", "test")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, "jdoe", "supersecret", models.RoleStudent)
	svc := newAuthServiceForTest(repo, &mockAuditRecorder{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "jdoe", Password: "supersecret"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, user.ID, resp.User.ID)
	// single session revokes prior tokens on login
	assert.Contains(t, repo.revokedAll, user.ID)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "jdoe", "supersecret", models.RoleStudent)
	svc := newAuthServiceForTest(repo, &mockAuditRecorder{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "jdoe", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshTokenRotation(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "jdoe", "supersecret", models.RoleStudent)
	svc := newAuthServiceForTest(repo, &mockAuditRecorder{})

	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "jdoe", Password: "supersecret"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, repo.tokens[login.RefreshToken].Revoked)

	// the used token cannot be replayed
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutForeignToken(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "jdoe", "supersecret", models.RoleStudent)
	svc := newAuthServiceForTest(repo, &mockAuditRecorder{})

	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "jdoe", Password: "supersecret"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.RefreshToken, "someone-else", "127.0.0.1", "test")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, "jdoe", "supersecret", models.RoleStudent)
	svc := newAuthServiceForTest(repo, &mockAuditRecorder{})

	err := svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "supersecret",
		NewPassword: "evenmoresecret",
	})
	require.NoError(t, err)
	assert.Contains(t, repo.revokedAll, user.ID)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "jdoe", Password: "evenmoresecret"})
	require.NoError(t, err)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthServiceForTest(newMockAuthRepo(), &mockAuditRecorder{})

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
