package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/proedge/enrollment-api/internal/models"
	appErrors "github.com/proedge/enrollment-api/pkg/errors"
)

type authRepoMock struct {
	users map[string]models.User
}

func (m *authRepoMock) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func newAuthFixture(t *testing.T) (*AuthService, *authRepoMock) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &authRepoMock{users: map[string]models.User{
		"admin@proedge.in": {
			ID:           "a1",
			Email:        "admin@proedge.in",
			PasswordHash: string(hash),
			FullName:     "Console Admin",
			Role:         models.RoleAdmin,
			Status:       models.UserStatusActive,
		},
		"student@example.com": {
			ID:           "u1",
			Email:        "student@example.com",
			PasswordHash: string(hash),
			Role:         models.RoleStudent,
			Status:       models.UserStatusActive,
		},
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{Secret: "jwt-secret", Expiration: time.Hour, Issuer: "enrollment-api"})
	return svc, repo
}

func TestLoginIssuesToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@proedge.in", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@proedge.in", Password: "wrong"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "secret123"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginRejectsStudentAccounts(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "secret123"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestLoginRejectsInactiveAccounts(t *testing.T) {
	svc, repo := newAuthFixture(t)
	user := repo.users["admin@proedge.in"]
	user.Status = models.UserStatusInactive
	repo.users["admin@proedge.in"] = user

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@proedge.in", Password: "secret123"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@proedge.in", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken + "x")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
