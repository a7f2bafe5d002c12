package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/safedocs-api/internal/models"
)

const userColumns = `id, email, password_hash, full_name, career, role, permissions, is_online, last_seen, active, profile_picture, created_at, updated_at`

const profileColumns = `id, email, full_name, career, profile_picture, is_online, last_seen`

// UserRepository provides database access for user management.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Create inserts a new user. A taken email yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(user.Email)

	const query = `INSERT INTO users (id, email, password_hash, full_name, career, role, permissions, is_online, last_seen, active, profile_picture, created_at, updated_at)
VALUES (:id, :email, :password_hash, :full_name, :career, :role, :permissions, :is_online, :last_seen, :active, :profile_picture, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return mapUniqueViolation(err, "create user")
	}
	return nil
}

// UpdateProfile writes the self-editable profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET full_name = :full_name, career = :career, profile_picture = :profile_picture, updated_at = :updated_at WHERE id = :id`
	return r.execAffecting(ctx, "update user profile", query, user)
}

// UpdateRole stores a new role together with its derived permissions.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.UserRole, permissions []string) error {
	const query = `UPDATE users SET role = $2, permissions = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, role, pq.StringArray(permissions), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	return requireAffected(res, "update user role")
}

// SetActive activates or deactivates an account. Deactivated users go offline.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE users SET active = $2, is_online = is_online AND $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return requireAffected(res, "set user active")
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetPresence records the online flag and last seen time.
func (r *UserRepository) SetPresence(ctx context.Context, id string, online bool, seenAt time.Time) error {
	const query = `UPDATE users SET is_online = $2, last_seen = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, online, seenAt); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

// Delete removes a user row. Dependent rows cascade.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireAffected(res, "delete user")
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(full_name) LIKE $%d OR LOWER(career) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, likePattern(filter.Search))
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{
		"email":      true,
		"created_at": true,
		"updated_at": true,
		"full_name":  true,
		"last_seen":  true,
	}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	limit, offset := pageWindow(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", userColumns, baseQuery, sortBy, sortOrder(filter.SortOrder), limit, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// Search finds active users other than callerID whose name, email or career
// contains q.
func (r *UserRepository) Search(ctx context.Context, callerID, q string, limit int) ([]models.PublicProfile, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	query := `SELECT ` + profileColumns + ` FROM users
WHERE active = TRUE AND id <> $1
  AND (LOWER(full_name) LIKE $2 OR LOWER(email) LIKE $2 OR LOWER(career) LIKE $2)
ORDER BY full_name ASC LIMIT $3`
	var profiles []models.PublicProfile
	if err := r.db.SelectContext(ctx, &profiles, query, callerID, likePattern(q), limit); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return profiles, nil
}

// ListActiveIDs returns the ids of every active user.
func (r *UserRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM users WHERE active = TRUE`); err != nil {
		return nil, fmt.Errorf("list active user ids: %w", err)
	}
	return ids, nil
}

// UserCounts summarises the user table.
type UserCounts struct {
	Total  int `db:"total"`
	Active int `db:"active"`
	Online int `db:"online"`
}

// Counts returns total, active and online user counts.
func (r *UserRepository) Counts(ctx context.Context) (UserCounts, error) {
	const query = `SELECT COUNT(*) AS total,
       COUNT(*) FILTER (WHERE active) AS active,
       COUNT(*) FILTER (WHERE active AND is_online) AS online
FROM users`
	var counts UserCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return UserCounts{}, fmt.Errorf("count users: %w", err)
	}
	return counts, nil
}

func (r *UserRepository) execAffecting(ctx context.Context, op, query string, arg interface{}) error {
	res, err := r.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return requireAffected(res, op)
}

// requireAffected returns sql.ErrNoRows when the statement touched nothing.
func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
