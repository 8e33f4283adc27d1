package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/points-rewards-api/internal/models"
	appErrors "github.com/noah-isme/points-rewards-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail    *models.User
	findByEmailErr error
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func newAuthService(t *testing.T, repo *mockAuthRepo) *AuthService {
	t.Helper()
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "points-rewards-api",
	})
}

func hashedUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:              "user-1",
		Name:            "Priya",
		Email:           "priya@example.com",
		PasswordHash:    string(hash),
		DashboardAccess: []string{"employee", "pmo_validator"},
	}
}

func TestAuthServiceLoginIssuesTokenWithAccessTags(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: hashedUser(t, "password123")}
	svc := newAuthService(t, repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "priya@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, []string{"employee", "pmo_validator"}, resp.User.DashboardAccess)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.True(t, claims.HasAccess("PMO_VALIDATOR"))
	assert.False(t, claims.HasAccess("pmo_updater"))
	assert.Equal(t, "user-1", claims.Actor().UserID)
}

func TestAuthServiceLoginInvalidCredentials(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: hashedUser(t, "password123")}
	svc := newAuthService(t, repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "priya@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "x"})
	require.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
	repo.userByEmail = nil

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
	require.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: hashedUser(t, "password123")}
	svc := newAuthService(t, repo)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "priya@example.com", Password: "password123"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "different"})
	_, err = other.ValidateToken(resp.AccessToken)
	require.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
