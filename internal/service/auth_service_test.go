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

	"github.com/campuslib/library-api/internal/models"
	appErrors "github.com/campuslib/library-api/pkg/errors"
)

type mockAuthRepo struct {
	usersByEmail  map[string]*models.User
	usersByID     map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	createdUser   *models.User
	createdProf   *models.Profile
	revoked       []string
	revokedUsers  []string
	lastLogin     *time.Time
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := m.usersByEmail[email]
	return ok, nil
}

func (m *mockAuthRepo) CreateWithProfile(ctx context.Context, user *models.User, profile *models.Profile) error {
	if user.ID == "" {
		user.ID = "new-user"
	}
	if m.usersByEmail == nil {
		m.usersByEmail = make(map[string]*models.User)
	}
	if m.usersByID == nil {
		m.usersByID = make(map[string]*models.User)
	}
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
	m.createdUser = user
	m.createdProf = profile
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLogin = &ts
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revoked = append(m.revoked, id)
	for _, t := range m.refreshTokens {
		if t.ID == id {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	for _, t := range m.refreshTokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

type mockMatriculeRepo struct {
	taken map[string]bool
}

func (m *mockMatriculeRepo) ExistsByMatricule(ctx context.Context, matricule, excludeUserID string) (bool, error) {
	return m.taken[matricule], nil
}

func authConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "library-api-test",
	}
}

func newAuthService(repo *mockAuthRepo, profiles *mockMatriculeRepo) *AuthService {
	if profiles == nil {
		profiles = &mockMatriculeRepo{}
	}
	return NewAuthService(repo, profiles, validator.New(), zap.NewNop(), authConfig())
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceRegister(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo, nil)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:     "alice@example.edu",
		Password:  "secret123",
		FullName:  "Alice Doe",
		Role:      models.RoleStudent,
		Matricule: "STU-001",
	})
	require.NoError(t, err)
	require.NotNil(t, repo.createdUser)

	assert.True(t, repo.createdUser.Active)
	assert.NotEqual(t, "secret123", repo.createdUser.PasswordHash)
	require.NotNil(t, repo.createdProf.Matricule)
	assert.Equal(t, "STU-001", *repo.createdProf.Matricule)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := &mockAuthRepo{usersByEmail: map[string]*models.User{
		"alice@example.edu": {ID: "u1", Email: "alice@example.edu"},
	}}
	svc := newAuthService(repo, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "alice@example.edu",
		Password: "secret123",
		FullName: "Alice Doe",
		Role:     models.RoleStudent,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAuthServiceRegisterDuplicateMatricule(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo, &mockMatriculeRepo{taken: map[string]bool{"STU-001": true}})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:     "bob@example.edu",
		Password:  "secret123",
		FullName:  "Bob Doe",
		Role:      models.RoleStudent,
		Matricule: "STU-001",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAuthServiceRegisterUnknownRole(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{}, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "bob@example.edu",
		Password: "secret123",
		FullName: "Bob Doe",
		Role:     "WIZARD",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAuthServiceLogin(t *testing.T) {
	repo := &mockAuthRepo{usersByEmail: map[string]*models.User{
		"alice@example.edu": {
			ID:           "u1",
			Email:        "alice@example.edu",
			PasswordHash: hashPassword(t, "secret123"),
			FullName:     "Alice Doe",
			Role:         models.RoleStudent,
			Active:       true,
		},
	}}
	svc := newAuthService(repo, nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "alice@example.edu", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotNil(t, repo.lastLogin)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{usersByEmail: map[string]*models.User{
		"alice@example.edu": {
			ID:           "u1",
			Email:        "alice@example.edu",
			PasswordHash: hashPassword(t, "secret123"),
			Active:       true,
		},
	}}
	svc := newAuthService(repo, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "alice@example.edu", Password: "wrong"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := &mockAuthRepo{usersByEmail: map[string]*models.User{
		"alice@example.edu": {
			ID:           "u1",
			Email:        "alice@example.edu",
			PasswordHash: hashPassword(t, "secret123"),
			Active:       false,
		},
	}}
	svc := newAuthService(repo, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "alice@example.edu", Password: "secret123"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	user := &models.User{ID: "u1", Email: "alice@example.edu", Role: models.RoleStudent, Active: true}
	repo := &mockAuthRepo{
		usersByID: map[string]*models.User{"u1": user},
		refreshTokens: map[string]*models.RefreshToken{
			"old-token": {ID: "rt1", UserID: "u1", Token: "old-token", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		},
	}
	svc := newAuthService(repo, nil)

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Contains(t, repo.revoked, "rt1")

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceRefreshReuseRevokesTokenFamily(t *testing.T) {
	user := &models.User{ID: "u1", Email: "alice@example.edu", Role: models.RoleStudent, Active: true}
	repo := &mockAuthRepo{
		usersByID: map[string]*models.User{"u1": user},
		refreshTokens: map[string]*models.RefreshToken{
			"old-token": {ID: "rt1", UserID: "u1", Token: "old-token", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		},
	}
	svc := newAuthService(repo, nil)

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)

	// Replaying the rotated token revokes every token the user holds,
	// including the replacement just issued.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.Error(t, err)
	assert.Contains(t, repo.revokedUsers, "u1")

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: resp.RefreshToken})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	repo := &mockAuthRepo{
		usersByID: map[string]*models.User{"u1": {ID: "u1", Active: true}},
		refreshTokens: map[string]*models.RefreshToken{
			"stale": {ID: "rt1", UserID: "u1", Token: "stale", ExpiresAt: time.Now().UTC().Add(-time.Hour)},
		},
	}
	svc := newAuthService(repo, nil)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{}, nil)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
}
