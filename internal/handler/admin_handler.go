package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/safedocs-api/internal/dto"
	"github.com/noah-isme/safedocs-api/internal/models"
	"github.com/noah-isme/safedocs-api/internal/service"
	appErrors "github.com/noah-isme/safedocs-api/pkg/errors"
	"github.com/noah-isme/safedocs-api/pkg/response"
)

type adminUserService interface {
	List(ctx context.Context, query dto.UserQuery) ([]models.User, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateRole(ctx context.Context, actorID, id string, req dto.UpdateRoleRequest) (*models.User, error)
	SetStatus(ctx context.Context, actorID, id string, req dto.UpdateStatusRequest) (*models.User, error)
	Delete(ctx context.Context, actorID, id string) error
	Stats(ctx context.Context) (*models.PlatformStats, error)
}

type adminDocumentService interface {
	ListAll(ctx context.Context, query dto.DocumentQuery) ([]models.Document, *models.Pagination, error)
	Delete(ctx context.Context, claims *models.JWTClaims, id string, meta service.RequestMeta) error
	SetOfficial(ctx context.Context, id string, official bool) (*models.Document, error)
}

// AdminHandler exposes user and document moderation.
type AdminHandler struct {
	users     adminUserService
	documents adminDocumentService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(users adminUserService, documents adminDocumentService) *AdminHandler {
	return &AdminHandler{users: users, documents: documents}
}

// ListUsers godoc
// @Summary List users
// @Tags Admin
// @Produce json
// @Param role query string false "Role"
// @Param active query bool false "Active flag"
// @Param search query string false "Name or email"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var query dto.UserQuery
	if !bindQuery(c, &query) {
		return
	}
	users, pagination, err := h.users.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// GetUser godoc
// @Summary Get user
// @Tags Admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/users/{id} [get]
func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// UpdateRole godoc
// @Summary Change user role
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.UpdateRoleRequest true "Role"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/users/{id}/role [patch]
func (h *AdminHandler) UpdateRole(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.UpdateRoleRequest
	if !bindJSON(c, &req, "invalid role payload") {
		return
	}
	user, err := h.users.UpdateRole(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// UpdateStatus godoc
// @Summary Activate or deactivate user
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.UpdateStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/users/{id}/status [patch]
func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.UpdateStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	user, err := h.users.SetStatus(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// DeleteUser godoc
// @Summary Delete user
// @Tags Admin
// @Param id path string true "User ID"
// @Success 204
// @Security BearerAuth
// @Router /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.users.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListDocuments godoc
// @Summary List all documents
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/documents [get]
func (h *AdminHandler) ListDocuments(c *gin.Context) {
	var query dto.DocumentQuery
	if !bindQuery(c, &query) {
		return
	}
	docs, pagination, err := h.documents.ListAll(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// DeleteDocument godoc
// @Summary Delete any document
// @Tags Admin
// @Param id path string true "Document ID"
// @Success 204
// @Security BearerAuth
// @Router /admin/documents/{id} [delete]
func (h *AdminHandler) DeleteDocument(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.documents.Delete(c.Request.Context(), claims, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetOfficial godoc
// @Summary Mark document as official
// @Description Official documents are visible to everyone and announced to all active users.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.SetOfficialRequest true "Official flag"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/documents/{id}/official [patch]
func (h *AdminHandler) SetOfficial(c *gin.Context) {
	var req dto.SetOfficialRequest
	if !bindJSON(c, &req, "invalid official payload") {
		return
	}
	if req.Official == nil {
		response.Error(c, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "official is required"),
			[]appErrors.FieldError{{Field: "official", Message: "is required"}},
		))
		return
	}
	doc, err := h.documents.SetOfficial(c.Request.Context(), c.Param("id"), *req.Official)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Stats godoc
// @Summary Platform statistics
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.users.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
