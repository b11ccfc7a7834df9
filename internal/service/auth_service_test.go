package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sidang-api/internal/models"
	appErrors "github.com/noah-isme/sidang-api/pkg/errors"
)

type stubAuthRepo struct {
	user         *models.User
	refreshToken *models.RefreshToken

	createdTokens []*models.RefreshToken
	revokedIDs    []string
}

func (s *stubAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *stubAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *stubAuthRepo) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (s *stubAuthRepo) RevokeUserRefreshTokens(_ context.Context, _ string) error {
	return nil
}

func (s *stubAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	s.createdTokens = append(s.createdTokens, token)
	return nil
}

func (s *stubAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if s.refreshToken == nil || s.refreshToken.Token != token {
		return nil, sql.ErrNoRows
	}
	return s.refreshToken, nil
}

func (s *stubAuthRepo) RevokeRefreshToken(_ context.Context, id string, _ time.Time) error {
	s.revokedIDs = append(s.revokedIDs, id)
	return nil
}

func authConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             "sidang-api",
		Audience:           []string{"sidang-web"},
	}
}

func newAuthFixture(t *testing.T) (*AuthService, *stubAuthRepo, *stubAuditWriter) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("rahasia123"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &stubAuthRepo{user: &models.User{
		ID:           "admin-1",
		Email:        "admin@kampus.ac.id",
		FullName:     "Administrator",
		Role:         models.RoleAdmin,
		PasswordHash: string(hash),
		Active:       true,
	}}
	audit := &stubAuditWriter{}
	return NewAuthService(repo, audit, nil, nil, authConfig()), repo, audit
}

func TestLoginIssuesTokens(t *testing.T) {
	svc, repo, audit := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@kampus.ac.id", Password: "rahasia123"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "admin-1", resp.User.ID)
	require.Len(t, repo.createdTokens, 1)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionLogin, audit.logs[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@kampus.ac.id", Password: "salah"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@kampus.ac.id", Password: "rahasia123"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	svc, repo, _ := newAuthFixture(t)
	repo.user.Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@kampus.ac.id", Password: "rahasia123"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestRefreshTokenRotates(t *testing.T) {
	svc, repo, _ := newAuthFixture(t)
	repo.refreshToken = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "admin-1",
		Token:     "old-refresh",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-refresh"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, "old-refresh", resp.RefreshToken)
	assert.Contains(t, repo.revokedIDs, "rt-1")
	require.Len(t, repo.createdTokens, 1)
}

func TestRefreshTokenRejectsExpired(t *testing.T) {
	svc, repo, _ := newAuthFixture(t)
	repo.refreshToken = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "admin-1",
		Token:     "old-refresh",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-refresh"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestRefreshTokenRejectsRevoked(t *testing.T) {
	svc, repo, _ := newAuthFixture(t)
	repo.refreshToken = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "admin-1",
		Token:     "old-refresh",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
		Revoked:   true,
	}

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-refresh"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestLogoutRejectsForeignToken(t *testing.T) {
	svc, repo, _ := newAuthFixture(t)
	repo.refreshToken = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "admin-1",
		Token:     "old-refresh",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	err := svc.Logout(context.Background(), "old-refresh", "stud-1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, repo.revokedIDs)
}

func TestValidateTokenRejectsForgedSignature(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	other := NewAuthService(&stubAuthRepo{}, nil, nil, nil, AuthConfig{
		AccessTokenSecret: "another-secret",
		AccessTokenExpiry: 15 * time.Minute,
	})
	forged, _, err := other.generateAccessToken(&models.User{ID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.ValidateToken(forged)
	assert.Error(t, err)
}
