package models

import (
	"strings"
	"time"
)

// DocumentCategory classifies uploaded documents.
type DocumentCategory string

const (
	CategoryAcademic DocumentCategory = "academic"
	CategoryResearch DocumentCategory = "research"
	CategoryProject  DocumentCategory = "project"
	CategoryOther    DocumentCategory = "other"
)

var categoryLabels = map[string]DocumentCategory{
	"academic":      CategoryAcademic,
	"academico":     CategoryAcademic,
	"académico":     CategoryAcademic,
	"research":      CategoryResearch,
	"investigacion": CategoryResearch,
	"investigación": CategoryResearch,
	"project":       CategoryProject,
	"proyecto":      CategoryProject,
	"other":         CategoryOther,
	"otro":          CategoryOther,
}

// NormalizeCategory maps a display label onto the stored category.
// Unknown labels fall back to other.
func NormalizeCategory(label string) DocumentCategory {
	if c, ok := categoryLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return c
	}
	return CategoryOther
}

// Document is the metadata row for an uploaded file.
type Document struct {
	ID           string           `db:"id" json:"id"`
	OwnerID      string           `db:"owner_id" json:"owner_id"`
	Title        string           `db:"title" json:"title"`
	Description  string           `db:"description" json:"description"`
	Category     DocumentCategory `db:"category" json:"category"`
	Course       string           `db:"course" json:"course"`
	FileName     string           `db:"file_name" json:"file_name"`
	OriginalName string           `db:"original_name" json:"original_name"`
	FilePath     string           `db:"file_path" json:"-"`
	MimeType     string           `db:"mime_type" json:"mime_type"`
	SizeBytes    int64            `db:"size_bytes" json:"size_bytes"`
	Downloads    int64            `db:"downloads" json:"downloads"`
	IsPublic     bool             `db:"is_public" json:"is_public"`
	IsOfficial   bool             `db:"is_official" json:"is_official"`
	ShareToken   *string          `db:"share_token" json:"-"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`

	OwnerName  string `db:"owner_name" json:"owner_name,omitempty"`
	OwnerEmail string `db:"owner_email" json:"owner_email,omitempty"`
}

// DocumentShare records that a document was shared with a user.
type DocumentShare struct {
	DocumentID string    `db:"document_id" json:"document_id"`
	SharedWith string    `db:"shared_with" json:"shared_with"`
	SharedBy   string    `db:"shared_by" json:"shared_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// SharedDocument is a document together with who shared it and when.
type SharedDocument struct {
	Document
	SharedBy     string    `db:"shared_by" json:"shared_by"`
	SharedByName string    `db:"shared_by_name" json:"shared_by_name"`
	SharedAt     time.Time `db:"shared_at" json:"shared_at"`
}

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	Category  DocumentCategory
	Course    string
	Search    string
	OwnerID   string
	ViewerID  string
	All       bool
	Official  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// DocumentPatch carries optional metadata updates.
type DocumentPatch struct {
	Title       *string
	Description *string
	Category    *DocumentCategory
	Course      *string
	IsPublic    *bool
}

// Empty reports whether the patch changes nothing.
func (p DocumentPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil && p.Course == nil && p.IsPublic == nil
}
