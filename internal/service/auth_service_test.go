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

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

type mockAuthRepo struct {
	users         map[string]models.User
	refreshTokens map[string]models.RefreshToken
	revokedIDs    []string
	revokedUsers  []string
	auditActions  []string
	lastLoginSet  bool
	passwordSet   map[string]string
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		users:         make(map[string]models.User),
		refreshTokens: make(map[string]models.RefreshToken),
		passwordSet:   make(map[string]string),
	}
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginSet = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordSet[id] = passwordHash
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = *token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revokedIDs = append(m.revokedIDs, id)
	for k, t := range m.refreshTokens {
		if t.ID == id {
			t.Revoked = true
			m.refreshTokens[k] = t
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditActions = append(m.auditActions, log.Action)
	return nil
}

type mockCaptcha struct {
	accept bool
}

func (m *mockCaptcha) Verify(ctx context.Context, key, code string) error {
	if m.accept {
		return nil
	}
	return appErrors.Clone(appErrors.ErrInvalidCaptcha, "")
}

func authConfigForTest() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             "kindergarten-admin-api",
	}
}

func seedUser(repo *mockAuthRepo, password string, active bool) models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := models.User{
		ID:           "user-1",
		Username:     "principal01",
		PasswordHash: string(hash),
		Role:         authz.RolePrincipal,
		Active:       active,
	}
	repo.users[user.ID] = user
	return user
}

func loginRequest() models.LoginRequest {
	return models.LoginRequest{
		Username:   "principal01",
		Password:   "secret123",
		Captcha:    "1234",
		CaptchaKey: "captcha-key",
	}
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "secret123", true)
	svc := NewAuthService(repo, &mockCaptcha{accept: true}, validator.New(), zap.NewNop(), authConfigForTest())

	resp, err := svc.Login(context.Background(), loginRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, authz.RolePrincipal, resp.User.Role)
	assert.True(t, repo.lastLoginSet)
	assert.Contains(t, repo.auditActions, models.AuditActionLogin)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, authz.RolePrincipal, claims.Role)
}

func TestAuthServiceLoginBadCaptcha(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "secret123", true)
	svc := NewAuthService(repo, &mockCaptcha{accept: false}, validator.New(), zap.NewNop(), authConfigForTest())

	_, err := svc.Login(context.Background(), loginRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCaptcha.Code, appErrors.FromError(err).Code)
	// Credentials were never checked, so no token was issued.
	assert.Empty(t, repo.refreshTokens)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "other-password", true)
	svc := NewAuthService(repo, &mockCaptcha{accept: true}, validator.New(), zap.NewNop(), authConfigForTest())

	_, err := svc.Login(context.Background(), loginRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "secret123", false)
	svc := NewAuthService(repo, &mockCaptcha{accept: true}, validator.New(), zap.NewNop(), authConfigForTest())

	_, err := svc.Login(context.Background(), loginRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "secret123", true)
	svc := NewAuthService(repo, &mockCaptcha{accept: true}, validator.New(), zap.NewNop(), authConfigForTest())

	login, err := svc.Login(context.Background(), loginRequest())
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The consumed token is revoked and cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshExpiredToken(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, "secret123", true)
	repo.refreshTokens["stale"] = models.RefreshToken{
		ID:        "rt-1",
		UserID:    user.ID,
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	svc := NewAuthService(repo, &mockCaptcha{accept: true}, validator.New(), zap.NewNop(), authConfigForTest())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePasswordRevokesSessions(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, "secret123", true)
	svc := NewAuthService(repo, &mockCaptcha{accept: true}, validator.New(), zap.NewNop(), authConfigForTest())

	err := svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "brandnew1",
	})
	require.NoError(t, err)
	assert.Contains(t, repo.revokedUsers, user.ID)
	assert.NotEmpty(t, repo.passwordSet[user.ID])
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, "secret123", true)
	svc := NewAuthService(repo, &mockCaptcha{accept: true}, validator.New(), zap.NewNop(), authConfigForTest())

	err := svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "nope",
		NewPassword: "brandnew1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.passwordSet)
}

func TestAuthServiceResetPasswordUnknownUsernameSilent(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, &mockCaptcha{accept: true}, validator.New(), zap.NewNop(), authConfigForTest())

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{
		Username:    "nobody",
		NewPassword: "brandnew1",
		Captcha:     "1234",
		CaptchaKey:  "captcha-key",
	})
	require.NoError(t, err)
	assert.Empty(t, repo.passwordSet)
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "secret123", true)
	svc := NewAuthService(repo, &mockCaptcha{accept: true}, validator.New(), zap.NewNop(), authConfigForTest())

	login, err := svc.Login(context.Background(), loginRequest())
	require.NoError(t, err)

	other := NewAuthService(repo, &mockCaptcha{accept: true}, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Minute,
	})
	_, err = other.ValidateToken(login.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
