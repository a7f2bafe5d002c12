package dto

import (
	"time"

	"github.com/noah-isme/safedocs-api/internal/models"
)

// UploadDocumentRequest carries the multipart form fields of an upload.
type UploadDocumentRequest struct {
	Title       string `form:"title" validate:"required,min=1,max=200"`
	Description string `form:"description" validate:"max=2000"`
	Category    string `form:"category" validate:"max=60"`
	Course      string `form:"course" validate:"max=120"`
	IsPublic    bool   `form:"is_public"`
}

// UpdateDocumentRequest patches document metadata.
type UpdateDocumentRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Category    *string `json:"category" validate:"omitempty,max=60"`
	Course      *string `json:"course" validate:"omitempty,max=120"`
	IsPublic    *bool   `json:"is_public"`
}

// Patch converts the request to a repository patch with a normalised category.
func (r UpdateDocumentRequest) Patch() models.DocumentPatch {
	patch := models.DocumentPatch{
		Title:       r.Title,
		Description: r.Description,
		Course:      r.Course,
		IsPublic:    r.IsPublic,
	}
	if r.Category != nil {
		category := models.NormalizeCategory(*r.Category)
		patch.Category = &category
	}
	return patch
}

// DocumentQuery binds list query parameters.
type DocumentQuery struct {
	Category  string `form:"category"`
	Course    string `form:"course"`
	Search    string `form:"search"`
	OwnerID   string `form:"owner_id" binding:"omitempty,uuid"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}

// Filter converts the query into a document filter.
func (q DocumentQuery) Filter() models.DocumentFilter {
	filter := models.DocumentFilter{
		Course:    q.Course,
		Search:    q.Search,
		OwnerID:   q.OwnerID,
		Page:      q.Page,
		PageSize:  q.PageSize,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
	if q.Category != "" {
		filter.Category = models.NormalizeCategory(q.Category)
	}
	return filter
}

// ShareDocumentRequest lists the friends a document is shared with.
type ShareDocumentRequest struct {
	FriendIDs []string `json:"friendIds" validate:"required,min=1,max=100,dive,uuid"`
}

// ShareResult reports how many friends received a document.
type ShareResult struct {
	DocumentID string   `json:"document_id"`
	SharedWith []string `json:"shared_with"`
}

// ShareLinkResponse exposes the public share token of a document.
type ShareLinkResponse struct {
	DocumentID string `json:"document_id"`
	Token      string `json:"token"`
	URL        string `json:"url"`
}

// DownloadURLResponse is a signed, time limited file URL.
type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SetOfficialRequest toggles the official flag.
type SetOfficialRequest struct {
	Official *bool `json:"official" validate:"required"`
}
