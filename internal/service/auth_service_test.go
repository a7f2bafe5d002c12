package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/safedocs-api/internal/models"
	"github.com/noah-isme/safedocs-api/internal/repository"
	appErrors "github.com/noah-isme/safedocs-api/pkg/errors"
)

type mockAuthRepo struct {
	users             map[string]*models.User
	createErr         error
	presenceErr       error
	updatePasswordErr error
	presence          map[string]bool
	passwordUpdates   int
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	m := &mockAuthRepo{users: map[string]*models.User{}, presence: map[string]bool{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (m *mockAuthRepo) Create(_ context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *mockAuthRepo) UpdateProfile(_ context.Context, user *models.User) error {
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *mockAuthRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	m.passwordUpdates++
	m.users[id].PasswordHash = passwordHash
	return nil
}

func (m *mockAuthRepo) SetPresence(_ context.Context, id string, online bool, _ time.Time) error {
	if m.presenceErr != nil {
		return m.presenceErr
	}
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	m.presence[id] = online
	return nil
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		Issuer:             "safedocs-test",
		AllowedEmailDomain: "@uni.edu",
		BcryptCost:         bcrypt.MinCost,
	})
}

func TestAuthServiceRegister(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "  Ana@Uni.edu ",
		Password: "secret1",
		FullName: "Ana Torres",
		Career:   "Law",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "ana@uni.edu", resp.User.Email)
	assert.Equal(t, models.RoleUser, resp.User.Role)
	assert.Contains(t, []string(resp.User.Permissions), models.PermDocumentsUpload)
	assert.NotContains(t, []string(resp.User.Permissions), models.PermDocumentsPublish)
	assert.NotEqual(t, "secret1", resp.User.PasswordHash)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.Equal(t, "safedocs-test", claims.Issuer)
}

func TestAuthServiceRegisterRejections(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: userA, Email: "ana@uni.edu"})
	svc := newTestAuthService(repo)
	ctx := context.Background()

	_, err := svc.Register(ctx, models.RegisterRequest{Email: "bruno@gmail.com", Password: "secret1", FullName: "Bruno"})
	appErr := requireStatus(t, err, http.StatusBadRequest)
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, "email", appErr.Details[0].Field)

	_, err = svc.Register(ctx, models.RegisterRequest{Email: "bruno@uni.edu", Password: "123", FullName: "Bruno"})
	appErr = requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "password", appErr.Details[0].Field)

	_, err = svc.Register(ctx, models.RegisterRequest{Email: "ANA@uni.edu", Password: "secret1", FullName: "Ana"})
	requireStatus(t, err, http.StatusConflict)

	repo.createErr = errors.New("db down")
	_, err = svc.Register(ctx, models.RegisterRequest{Email: "carla@uni.edu", Password: "secret1", FullName: "Carla"})
	requireStatus(t, err, http.StatusInternalServerError)
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newMockAuthRepo(
		&models.User{ID: userA, Email: "ana@uni.edu", PasswordHash: hashPassword(t, "secret1"), Role: models.RoleFaculty, Active: true},
		&models.User{ID: userB, Email: "bruno@uni.edu", PasswordHash: hashPassword(t, "secret1"), Role: models.RoleUser, Active: false},
	)
	svc := newTestAuthService(repo)
	ctx := context.Background()

	resp, err := svc.Login(ctx, models.LoginRequest{Email: "ana@uni.edu", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, resp.User.IsOnline)
	assert.True(t, repo.presence[userA])
	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleFaculty, claims.Role)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "ana@uni.edu", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@uni.edu", Password: "secret1"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "bruno@uni.edu", Password: "secret1"})
	requireStatus(t, err, http.StatusForbidden)
	// A wrong password on an inactive account does not reveal the account state.
	_, err = svc.Login(ctx, models.LoginRequest{Email: "bruno@uni.edu", Password: "wrong"})
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestAuthServiceLoginSurvivesPresenceFailure(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: userA, Email: "ana@uni.edu", PasswordHash: hashPassword(t, "secret1"), Active: true})
	repo.presenceErr = errors.New("db down")
	svc := newTestAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@uni.edu", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: userA, Email: "ana@uni.edu", Active: true})
	svc := newTestAuthService(repo)

	require.NoError(t, svc.Logout(context.Background(), userA))
	assert.False(t, repo.presence[userA])

	err := svc.Logout(context.Background(), userB)
	requireStatus(t, err, http.StatusNotFound)
}

func TestAuthServiceValidateToken(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)
	user := &models.User{ID: userA, Email: "ana@uni.edu", Role: models.RoleAdmin}

	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	svc.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	_, err = svc.ValidateToken(token)
	requireStatus(t, err, http.StatusUnauthorized)

	other := newTestAuthService(repo)
	other.config.AccessTokenSecret = "different"
	other.now = func() time.Time { return issuedAt }
	_, err = other.ValidateToken(token)
	requireStatus(t, err, http.StatusUnauthorized)

	_, err = svc.ValidateToken("garbage")
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: userA, Email: "ana@uni.edu", PasswordHash: hashPassword(t, "secret1"), Active: true})
	svc := newTestAuthService(repo)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, userA, models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "secret2"})
	requireStatus(t, err, http.StatusForbidden)

	err = svc.ChangePassword(ctx, userA, models.ChangePasswordRequest{OldPassword: "secret1", NewPassword: "secret1"})
	requireStatus(t, err, http.StatusBadRequest)

	require.NoError(t, svc.ChangePassword(ctx, userA, models.ChangePasswordRequest{OldPassword: "secret1", NewPassword: "secret2"}))
	assert.Equal(t, 1, repo.passwordUpdates)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "ana@uni.edu", Password: "secret2"})
	require.NoError(t, err)
}

func TestAuthServiceUpdateProfile(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: userA, Email: "ana@uni.edu", FullName: "Ana", Active: true})
	svc := newTestAuthService(repo)

	name := "  Ana Torres "
	career := "Medicine"
	user, err := svc.UpdateProfile(context.Background(), userA, models.UpdateProfileRequest{FullName: &name, Career: &career})
	require.NoError(t, err)
	assert.Equal(t, "Ana Torres", user.FullName)
	assert.Equal(t, "Medicine", repo.users[userA].Career)

	short := "A"
	_, err = svc.UpdateProfile(context.Background(), userA, models.UpdateProfileRequest{FullName: &short})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = svc.Me(context.Background(), userB)
	requireStatus(t, err, http.StatusNotFound)
}
