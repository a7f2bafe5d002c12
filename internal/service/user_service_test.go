package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/safedocs-api/internal/dto"
	"github.com/noah-isme/safedocs-api/internal/models"
	"github.com/noah-isme/safedocs-api/internal/repository"
)

type mockUserRepo struct {
	users      map[string]*models.User
	lastFilter models.UserFilter
	listErr    error
	counts     repository.UserCounts
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	m := &mockUserRepo{users: map[string]*models.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []models.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	if _, err := m.FindByEmail(context.Background(), user.Email); err == nil {
		return repository.ErrDuplicate
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *mockUserRepo) UpdateRole(_ context.Context, id string, role models.UserRole, permissions []string) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Role = role
	u.Permissions = permissions
	return nil
}

func (m *mockUserRepo) SetActive(_ context.Context, id string, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Active = active
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) Counts(context.Context) (repository.UserCounts, error) {
	return m.counts, nil
}

type stubDocumentStats struct {
	counts     repository.DocumentCounts
	byCategory []models.CategoryCount
	err        error
}

func (s stubDocumentStats) Counts(context.Context) (repository.DocumentCounts, error) {
	return s.counts, s.err
}

func (s stubDocumentStats) CountByCategory(context.Context) ([]models.CategoryCount, error) {
	return s.byCategory, s.err
}

type stubFriendshipCounter int

func (s stubFriendshipCounter) CountFriendships(context.Context) (int, error) {
	return int(s), nil
}

func newTestUserService(repo *mockUserRepo) *UserService {
	svc := NewUserService(repo, nil, nil, nil, zap.NewNop())
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func TestUserServiceList(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: userA}, &models.User{ID: userB})
	svc := newTestUserService(repo)

	users, page, err := svc.List(context.Background(), dto.UserQuery{Role: "FACULTY", Page: -2})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 1, page.Page)
	require.NotNil(t, repo.lastFilter.Role)
	assert.Equal(t, models.RoleFaculty, *repo.lastFilter.Role)

	_, _, err = svc.List(context.Background(), dto.UserQuery{Role: "STUDENT"})
	requireStatus(t, err, http.StatusBadRequest)

	repo.listErr = errors.New("db down")
	_, _, err = svc.List(context.Background(), dto.UserQuery{})
	requireStatus(t, err, http.StatusInternalServerError)
}

func TestUserServiceGet(t *testing.T) {
	svc := newTestUserService(newMockUserRepo(&models.User{ID: userA}))

	user, err := svc.Get(context.Background(), userA)
	require.NoError(t, err)
	assert.Equal(t, userA, user.ID)

	_, err = svc.Get(context.Background(), userB)
	requireStatus(t, err, http.StatusNotFound)
	_, err = svc.Get(context.Background(), "42")
	requireStatus(t, err, http.StatusNotFound)
}

func TestUserServiceUpdateRole(t *testing.T) {
	repo := newMockUserRepo(
		&models.User{ID: userA, Role: models.RoleSuperAdmin},
		&models.User{ID: userB, Role: models.RoleUser, Permissions: models.PermissionsForRole(models.RoleUser)},
	)
	svc := newTestUserService(repo)
	ctx := context.Background()

	user, err := svc.UpdateRole(ctx, userA, userB, dto.UpdateRoleRequest{Role: models.RoleFaculty})
	require.NoError(t, err)
	assert.Equal(t, models.RoleFaculty, user.Role)
	assert.Contains(t, []string(user.Permissions), models.PermDocumentsPublish)
	assert.Contains(t, repo.users[userB].Permissions, models.PermAuditReadOwn)

	_, err = svc.UpdateRole(ctx, userA, userA, dto.UpdateRoleRequest{Role: models.RoleUser})
	requireStatus(t, err, http.StatusForbidden)

	_, err = svc.UpdateRole(ctx, userA, userB, dto.UpdateRoleRequest{Role: "ROOT"})
	appErr := requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "role", appErr.Details[0].Field)

	_, err = svc.UpdateRole(ctx, userA, userC, dto.UpdateRoleRequest{Role: models.RoleUser})
	requireStatus(t, err, http.StatusNotFound)
}

func TestUserServiceSetStatus(t *testing.T) {
	repo := newMockUserRepo(
		&models.User{ID: userA, Role: models.RoleAdmin, Active: true},
		&models.User{ID: userB, Active: true, IsOnline: true},
	)
	svc := newTestUserService(repo)
	ctx := context.Background()
	inactive, active := false, true

	user, err := svc.SetStatus(ctx, userA, userB, dto.UpdateStatusRequest{Active: &inactive})
	require.NoError(t, err)
	assert.False(t, user.Active)
	assert.False(t, user.IsOnline)
	assert.False(t, repo.users[userB].Active)

	_, err = svc.SetStatus(ctx, userA, userA, dto.UpdateStatusRequest{Active: &inactive})
	requireStatus(t, err, http.StatusForbidden)

	user, err = svc.SetStatus(ctx, userA, userA, dto.UpdateStatusRequest{Active: &active})
	require.NoError(t, err)
	assert.True(t, user.Active)

	_, err = svc.SetStatus(ctx, userA, userB, dto.UpdateStatusRequest{})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestUserServiceDelete(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: userA}, &models.User{ID: userB})
	svc := newTestUserService(repo)
	ctx := context.Background()

	err := svc.Delete(ctx, userA, userA)
	requireStatus(t, err, http.StatusForbidden)

	require.NoError(t, svc.Delete(ctx, userA, userB))
	assert.NotContains(t, repo.users, userB)

	err = svc.Delete(ctx, userA, userB)
	requireStatus(t, err, http.StatusNotFound)
}

func TestUserServiceStats(t *testing.T) {
	repo := newMockUserRepo()
	repo.counts = repository.UserCounts{Total: 10, Active: 8, Online: 3}
	docs := stubDocumentStats{
		counts:     repository.DocumentCounts{Total: 5, Official: 1, Downloads: 42},
		byCategory: []models.CategoryCount{{Category: models.CategoryAcademic, Count: 5}},
	}
	svc := NewUserService(repo, docs, stubFriendshipCounter(4), nil, nil)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalUsers)
	assert.Equal(t, 3, stats.OnlineUsers)
	assert.Equal(t, 5, stats.TotalDocuments)
	assert.Equal(t, int64(42), stats.TotalDownloads)
	assert.Equal(t, 4, stats.TotalFriendships)
	assert.Len(t, stats.DocumentsByCategory, 1)

	svc = NewUserService(repo, stubDocumentStats{err: errors.New("db down")}, nil, nil, nil)
	_, err = svc.Stats(context.Background())
	requireStatus(t, err, http.StatusInternalServerError)
}

func TestUserServiceEnsureSuperAdmin(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo)
	ctx := context.Background()
	seed := SeedAdmin{Email: " Root@Uni.edu ", Password: "changeme"}

	created, err := svc.EnsureSuperAdmin(ctx, seed)
	require.NoError(t, err)
	assert.True(t, created)

	admin, err := repo.FindByEmail(ctx, "root@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, admin.Role)
	assert.Equal(t, "Administrator", admin.FullName)
	assert.True(t, admin.HasPermission(models.PermRolesAssign))
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("changeme")))

	created, err = svc.EnsureSuperAdmin(ctx, seed)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, repo.users, 1)

	_, err = svc.EnsureSuperAdmin(ctx, SeedAdmin{Email: "root@uni.edu"})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestUserServiceEnsureSuperAdminPromotesExisting(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: userA, Email: "dean@uni.edu", Role: models.RoleFaculty, Active: false})
	svc := newTestUserService(repo)

	created, err := svc.EnsureSuperAdmin(context.Background(), SeedAdmin{Email: "dean@uni.edu", Password: "changeme"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.RoleSuperAdmin, repo.users[userA].Role)
	assert.True(t, repo.users[userA].Active)
}
