package handler

import (
	"context"
	"errors"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/safedocs-api/internal/dto"
	"github.com/noah-isme/safedocs-api/internal/models"
	"github.com/noah-isme/safedocs-api/internal/service"
	appErrors "github.com/noah-isme/safedocs-api/pkg/errors"
	"github.com/noah-isme/safedocs-api/pkg/response"
)

// multipart overhead allowed on top of the file size limit.
const uploadSlack = 1 << 20

type documentService interface {
	Upload(ctx context.Context, claims *models.JWTClaims, req dto.UploadDocumentRequest, file *service.UploadFile, meta service.RequestMeta) (*models.Document, error)
	List(ctx context.Context, claims *models.JWTClaims, query dto.DocumentQuery) ([]models.Document, *models.Pagination, error)
	ListMine(ctx context.Context, claims *models.JWTClaims, query dto.DocumentQuery) ([]models.Document, *models.Pagination, error)
	ListSharedWithMe(ctx context.Context, claims *models.JWTClaims, page, pageSize int) ([]models.SharedDocument, *models.Pagination, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string, meta service.RequestMeta) (*models.Document, error)
	Update(ctx context.Context, claims *models.JWTClaims, id string, req dto.UpdateDocumentRequest) (*models.Document, error)
	Delete(ctx context.Context, claims *models.JWTClaims, id string, meta service.RequestMeta) error
	Download(ctx context.Context, claims *models.JWTClaims, id string, meta service.RequestMeta) (*service.Download, error)
	DownloadURL(ctx context.Context, claims *models.JWTClaims, id string) (*dto.DownloadURLResponse, error)
	DownloadSigned(ctx context.Context, id, token string, meta service.RequestMeta) (*service.Download, error)
	GenerateShareLink(ctx context.Context, claims *models.JWTClaims, id string, meta service.RequestMeta) (*dto.ShareLinkResponse, error)
	GetByShareToken(ctx context.Context, token string, meta service.RequestMeta) (*models.Document, error)
	DownloadByShareToken(ctx context.Context, token string, meta service.RequestMeta) (*service.Download, error)
	ShareWithFriends(ctx context.Context, claims *models.JWTClaims, id string, req dto.ShareDocumentRequest, meta service.RequestMeta) (*dto.ShareResult, error)
}

// DocumentHandler exposes document upload, listing, download and sharing.
type DocumentHandler struct {
	service     documentService
	maxFileSize int64
}

// NewDocumentHandler constructs the handler. maxFileSize bounds the request body.
func NewDocumentHandler(svc documentService, maxFileSize int64) *DocumentHandler {
	if maxFileSize <= 0 {
		maxFileSize = 50 << 20
	}
	return &DocumentHandler{service: svc, maxFileSize: maxFileSize}
}

// List godoc
// @Summary List documents
// @Description Public and official documents plus the caller's own. Admins see everything.
// @Tags Documents
// @Produce json
// @Param category query string false "Category"
// @Param course query string false "Course"
// @Param search query string false "Search in title and description"
// @Param owner_id query string false "Owner"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.DocumentQuery
	if !bindQuery(c, &query) {
		return
	}
	docs, pagination, err := h.service.List(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// Mine godoc
// @Summary List my documents
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/mine [get]
func (h *DocumentHandler) Mine(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.DocumentQuery
	if !bindQuery(c, &query) {
		return
	}
	docs, pagination, err := h.service.ListMine(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// SharedWithMe godoc
// @Summary List documents friends shared with me
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/shared-with-me [get]
func (h *DocumentHandler) SharedWithMe(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	docs, pagination, err := h.service.ListSharedWithMe(c.Request.Context(), claims, queryInt(c, "page"), queryInt(c, "page_size"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// Upload godoc
// @Summary Upload document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document file"
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param category formData string false "Category label"
// @Param course formData string false "Course"
// @Param is_public formData bool false "Publish to everyone"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Security BearerAuth
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize+uploadSlack)

	var req dto.UploadDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, uploadError(err))
		return
	}

	var file *service.UploadFile
	header, err := c.FormFile("file")
	switch {
	case err == nil:
		f, err := header.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
			return
		}
		defer f.Close()
		file = &service.UploadFile{
			Name:        header.Filename,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
			Body:        f,
		}
	case errors.Is(err, http.ErrMissingFile):
	default:
		response.Error(c, uploadError(err))
		return
	}

	doc, err := h.service.Upload(c.Request.Context(), claims, req, file, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Get godoc
// @Summary Get document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	doc, err := h.service.Get(c.Request.Context(), claims, c.Param("id"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Update godoc
// @Summary Update document metadata
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.UpdateDocumentRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.UpdateDocumentRequest
	if !bindJSON(c, &req, "invalid document payload") {
		return
	}
	doc, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete godoc
// @Summary Delete document
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Security BearerAuth
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Download godoc
// @Summary Download document file
// @Tags Documents
// @Produce application/octet-stream
// @Param id path string true "Document ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	download, err := h.service.Download(c.Request.Context(), claims, c.Param("id"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveDownload(c, download)
}

// DownloadURL godoc
// @Summary Signed download URL
// @Description Returns a time limited link usable without a bearer token
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{id}/download-url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	link, err := h.service.DownloadURL(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// File godoc
// @Summary Download through a signed URL
// @Tags Documents
// @Produce application/octet-stream
// @Param id path string true "Document ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /documents/{id}/file [get]
func (h *DocumentHandler) File(c *gin.Context) {
	download, err := h.service.DownloadSigned(c.Request.Context(), c.Param("id"), c.Query("token"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveDownload(c, download)
}

// ShareLink godoc
// @Summary Create public share link
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{id}/share-link [post]
func (h *DocumentHandler) ShareLink(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	link, err := h.service.GenerateShareLink(c.Request.Context(), claims, c.Param("id"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Share godoc
// @Summary Share document with friends
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.ShareDocumentRequest true "Friend IDs"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{id}/share [post]
func (h *DocumentHandler) Share(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ShareDocumentRequest
	if !bindJSON(c, &req, "invalid share payload") {
		return
	}
	result, err := h.service.ShareWithFriends(c.Request.Context(), claims, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Shared godoc
// @Summary Resolve share link
// @Tags Documents
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/shared/{token} [get]
func (h *DocumentHandler) Shared(c *gin.Context) {
	doc, err := h.service.GetByShareToken(c.Request.Context(), c.Param("token"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// SharedDownload godoc
// @Summary Download through share link
// @Tags Documents
// @Produce application/octet-stream
// @Param token path string true "Share token"
// @Success 200 {file} binary
// @Router /documents/shared/{token}/download [get]
func (h *DocumentHandler) SharedDownload(c *gin.Context) {
	download, err := h.service.DownloadByShareToken(c.Request.Context(), c.Param("token"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveDownload(c, download)
}

func serveDownload(c *gin.Context, download *service.Download) {
	obj := download.Object
	defer obj.Body.Close()

	name := download.Document.OriginalName
	if name == "" {
		name = download.Document.FileName
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = download.Document.MimeType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	size := obj.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, contentType, obj.Body, map[string]string{
		"Content-Disposition":    mime.FormatMediaType("attachment", map[string]string{"filename": name}),
		"Cache-Control":          "private, no-store",
		"X-Content-Type-Options": "nosniff",
	})
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, "upload exceeds the size limit")
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload form")
}
