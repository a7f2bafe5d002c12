package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/safedocs-api/internal/dto"
	"github.com/noah-isme/safedocs-api/internal/models"
	"github.com/noah-isme/safedocs-api/internal/repository"
	appErrors "github.com/noah-isme/safedocs-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id string, role models.UserRole, permissions []string) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context) (repository.UserCounts, error)
}

type platformDocumentStats interface {
	Counts(ctx context.Context) (repository.DocumentCounts, error)
	CountByCategory(ctx context.Context) ([]models.CategoryCount, error)
}

type friendshipCounter interface {
	CountFriendships(ctx context.Context) (int, error)
}

// SeedAdmin describes the super-administrator ensured at startup or by the seed command.
type SeedAdmin struct {
	Email    string
	Password string
	FullName string
}

// UserService handles user administration.
type UserService struct {
	repo       userRepository
	documents  platformDocumentStats
	friends    friendshipCounter
	validator  *validator.Validate
	logger     *zap.Logger
	bcryptCost int
}

// NewUserService creates an instance of UserService. documents and friends
// are only needed for Stats.
func NewUserService(repo userRepository, documents platformDocumentStats, friends friendshipCounter, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &UserService{repo: repo, documents: documents, friends: friends, validator: validate, logger: logger, bcryptCost: bcrypt.DefaultCost}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, query dto.UserQuery) ([]models.User, *models.Pagination, error) {
	filter := query.Filter()
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "invalid user filter"),
			[]appErrors.FieldError{{Field: "role", Message: "unknown role"}},
		)
	}
	filter.Page = normalizePage(filter.Page)
	filter.PageSize = normalizePageSize(filter.PageSize)

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// UpdateRole assigns a role and recomputes the user's permissions. The new
// role applies to tokens issued after the change.
func (s *UserService) UpdateRole(ctx context.Context, actorID, id string, req dto.UpdateRoleRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid role payload")
	}
	if actorID == id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot change your own role")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	permissions := models.PermissionsForRole(req.Role)
	if err := s.repo.UpdateRole(ctx, user.ID, req.Role, permissions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
	}
	s.logger.Info("user role changed",
		zap.String("actor_id", actorID),
		zap.String("user_id", user.ID),
		zap.String("from", string(user.Role)),
		zap.String("to", string(req.Role)),
	)
	user.Role = req.Role
	user.Permissions = permissions
	return user, nil
}

// SetStatus activates or deactivates a user.
func (s *UserService) SetStatus(ctx context.Context, actorID, id string, req dto.UpdateStatusRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid status payload")
	}
	if actorID == id && !*req.Active {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot deactivate your own account")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, user.ID, *req.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}
	user.Active = *req.Active
	if !user.Active {
		user.IsOnline = false
	}
	return user, nil
}

// Delete permanently removes a user. Their documents, requests and friendships cascade.
func (s *UserService) Delete(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete your own account")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	s.logger.Info("user deleted", zap.String("actor_id", actorID), zap.String("user_id", user.ID))
	return nil
}

// Stats summarises platform usage.
func (s *UserService) Stats(ctx context.Context) (*models.PlatformStats, error) {
	users, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	stats := &models.PlatformStats{
		TotalUsers:          users.Total,
		ActiveUsers:         users.Active,
		OnlineUsers:         users.Online,
		DocumentsByCategory: []models.CategoryCount{},
	}

	if s.documents != nil {
		docs, err := s.documents.Counts(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count documents")
		}
		stats.TotalDocuments = docs.Total
		stats.OfficialDocuments = docs.Official
		stats.TotalDownloads = docs.Downloads

		byCategory, err := s.documents.CountByCategory(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count documents by category")
		}
		if byCategory != nil {
			stats.DocumentsByCategory = byCategory
		}
	}

	if s.friends != nil {
		total, err := s.friends.CountFriendships(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count friendships")
		}
		stats.TotalFriendships = total
	}
	return stats, nil
}

// EnsureSuperAdmin creates the configured super-administrator or promotes and
// reactivates an existing account with that email. It reports whether a new
// account was created.
func (s *UserService) EnsureSuperAdmin(ctx context.Context, seed SeedAdmin) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	if email == "" || seed.Password == "" {
		return false, appErrors.Clone(appErrors.ErrValidation, "seed admin email and password required")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != models.RoleSuperAdmin {
			if err := s.repo.UpdateRole(ctx, existing.ID, models.RoleSuperAdmin, models.PermissionsForRole(models.RoleSuperAdmin)); err != nil {
				return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote admin")
			}
		}
		if !existing.Active {
			if err := s.repo.SetActive(ctx, existing.ID, true); err != nil {
				return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate admin")
			}
		}
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up admin")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), s.bcryptCost)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	name := strings.TrimSpace(seed.FullName)
	if name == "" {
		name = "Administrator"
	}
	now := time.Now().UTC()
	admin := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     name,
		Role:         models.RoleSuperAdmin,
		Permissions:  models.PermissionsForRole(models.RoleSuperAdmin),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admin")
	}
	s.logger.Info("super administrator created", zap.String("email", email))
	return true, nil
}
