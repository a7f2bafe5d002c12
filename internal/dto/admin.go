package dto

import "github.com/noah-isme/safedocs-api/internal/models"

// UpdateRoleRequest assigns a new role to a user.
type UpdateRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN FACULTY USER"`
}

// UpdateStatusRequest activates or deactivates a user.
type UpdateStatusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// UserQuery binds admin user list parameters.
type UserQuery struct {
	Role      string `form:"role"`
	Active    *bool  `form:"active"`
	Search    string `form:"search"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}

// Filter converts the query into a user filter.
func (q UserQuery) Filter() models.UserFilter {
	filter := models.UserFilter{
		Active:    q.Active,
		Search:    q.Search,
		Page:      q.Page,
		PageSize:  q.PageSize,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
	if q.Role != "" {
		role := models.UserRole(q.Role)
		filter.Role = &role
	}
	return filter
}
