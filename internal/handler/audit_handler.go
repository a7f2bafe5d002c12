package handler

import (
	"context"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/safedocs-api/internal/dto"
	"github.com/noah-isme/safedocs-api/internal/middleware"
	"github.com/noah-isme/safedocs-api/internal/models"
	"github.com/noah-isme/safedocs-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, claims *models.JWTClaims, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error)
	Stats(ctx context.Context, claims *models.JWTClaims, filter models.AuditFilter) (*dto.AuditStatsResult, error)
	Export(ctx context.Context, claims *models.JWTClaims, filter models.AuditFilter, rawFormat string) (*dto.ExportFile, error)
}

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(svc auditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary List audit entries
// @Description Admins see every entry, other users only entries about themselves.
// @Tags Audit
// @Produce json
// @Param user_id query string false "Subject user"
// @Param actor_id query string false "Actor"
// @Param document_id query string false "Document"
// @Param action query string false "Action"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.AuditQuery
	if !bindQuery(c, &query) {
		return
	}
	entries, pagination, err := h.service.List(c.Request.Context(), claims, query.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Stats godoc
// @Summary Audit statistics
// @Tags Audit
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /audit/stats [get]
func (h *AuditHandler) Stats(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.AuditQuery
	if !bindQuery(c, &query) {
		return
	}
	result, err := h.service.Stats(c.Request.Context(), claims, query.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, result.CacheHit)
	respondWithMeta(c, http.StatusOK, result.Stats, nil)
}

// Export godoc
// @Summary Export audit entries
// @Tags Audit
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /audit/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.AuditQuery
	if !bindQuery(c, &query) {
		return
	}
	file, err := h.service.Export(c.Request.Context(), claims, query.Filter(), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.FileName}))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
