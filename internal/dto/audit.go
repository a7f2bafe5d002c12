package dto

import (
	"time"

	"github.com/noah-isme/safedocs-api/internal/models"
)

// AuditQuery binds audit list, stats and export parameters.
type AuditQuery struct {
	UserID     string     `form:"user_id" binding:"omitempty,uuid"`
	ActorID    string     `form:"actor_id" binding:"omitempty,uuid"`
	DocumentID string     `form:"document_id" binding:"omitempty,uuid"`
	Action     string     `form:"action"`
	From       *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page       int        `form:"page"`
	PageSize   int        `form:"page_size"`
	Format     string     `form:"format"`
}

// Filter converts the query into an audit filter.
func (q AuditQuery) Filter() models.AuditFilter {
	return models.AuditFilter{
		SubjectID:  q.UserID,
		ActorID:    q.ActorID,
		DocumentID: q.DocumentID,
		Action:     models.AuditAction(q.Action),
		From:       q.From,
		To:         q.To,
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
}

// AuditStatsResult wraps stats with cache information.
type AuditStatsResult struct {
	Stats    *models.AuditStats
	CacheHit bool
}

// ExportFile is a rendered export ready to be served.
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}
