package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleFaculty    UserRole = "FACULTY"
	RoleUser       UserRole = "USER"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleFaculty, RoleUser:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID             string         `db:"id" json:"id"`
	Email          string         `db:"email" json:"email"`
	PasswordHash   string         `db:"password_hash" json:"-"`
	FullName       string         `db:"full_name" json:"full_name"`
	Career         string         `db:"career" json:"career"`
	Role           UserRole       `db:"role" json:"role"`
	Permissions    pq.StringArray `db:"permissions" json:"permissions"`
	IsOnline       bool           `db:"is_online" json:"is_online"`
	LastSeen       *time.Time     `db:"last_seen" json:"last_seen,omitempty"`
	Active         bool           `db:"active" json:"active"`
	ProfilePicture string         `db:"profile_picture" json:"profile_picture"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// HasPermission reports whether the user carries perm.
func (u *User) HasPermission(perm string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// PublicProfile is the subset of a user other members may see.
type PublicProfile struct {
	ID             string     `db:"id" json:"id"`
	Email          string     `db:"email" json:"email"`
	FullName       string     `db:"full_name" json:"full_name"`
	Career         string     `db:"career" json:"career"`
	ProfilePicture string     `db:"profile_picture" json:"profile_picture"`
	IsOnline       bool       `db:"is_online" json:"is_online"`
	LastSeen       *time.Time `db:"last_seen" json:"last_seen,omitempty"`
}

// Profile projects the public fields of u.
func (u *User) Profile() PublicProfile {
	return PublicProfile{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		Career:         u.Career,
		ProfilePicture: u.ProfilePicture,
		IsOnline:       u.IsOnline,
		LastSeen:       u.LastSeen,
	}
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes total pages for the given window.
func NewPagination(page, pageSize, total int) *Pagination {
	p := &Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	if pageSize > 0 {
		p.TotalPages = (total + pageSize - 1) / pageSize
	}
	return p
}
