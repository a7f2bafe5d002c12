package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/safedocs-api/internal/dto"
	"github.com/noah-isme/safedocs-api/internal/models"
	appErrors "github.com/noah-isme/safedocs-api/pkg/errors"
	"github.com/noah-isme/safedocs-api/pkg/export"
)

const maxAuditExportRows = 5000

// AuditStore is implemented by the PostgreSQL and MongoDB audit repositories.
type AuditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
	ListForExport(ctx context.Context, filter models.AuditFilter, max int) ([]models.AuditLog, error)
	Stats(ctx context.Context, filter models.AuditFilter) (*models.AuditStats, error)
}

type auditStatsCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

type auditMetrics interface {
	RecordAuditEvent(action string, stored bool)
}

// AuditRecorder appends best-effort audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry models.AuditLog)
}

// AuditService records document activity and serves reports over it.
type AuditService struct {
	store    AuditStore
	cache    auditStatsCache
	statsTTL time.Duration
	logger   *zap.Logger
	metrics  auditMetrics
	now      func() time.Time
}

// NewAuditService constructs an AuditService.
func NewAuditService(store AuditStore, cache auditStatsCache, statsTTL time.Duration, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if statsTTL <= 0 {
		statsTTL = 5 * time.Minute
	}
	return &AuditService{store: store, cache: cache, statsTTL: statsTTL, logger: logger, now: time.Now}
}

// UseMetrics counts every Record call on m.
func (s *AuditService) UseMetrics(m auditMetrics) {
	s.metrics = m
}

// Record appends entry. Failures are logged and never returned.
func (s *AuditService) Record(ctx context.Context, entry models.AuditLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	err := s.store.Create(ctx, &entry)
	if s.metrics != nil {
		s.metrics.RecordAuditEvent(string(entry.Action), err == nil)
	}
	if err != nil {
		s.logger.Warn("failed to record audit log",
			zap.String("action", string(entry.Action)),
			zap.String("user_id", entry.UserID),
			zap.Error(err),
		)
	}
}

// List returns a page of audit entries visible to the caller.
func (s *AuditService) List(ctx context.Context, claims *models.JWTClaims, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	scoped, err := s.scope(claims, filter)
	if err != nil {
		return nil, nil, err
	}
	scoped.Page = normalizePage(scoped.Page)
	scoped.PageSize = normalizePageSize(scoped.PageSize)

	entries, total, err := s.store.List(ctx, scoped)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return entries, models.NewPagination(scoped.Page, scoped.PageSize, total), nil
}

// Stats groups visible entries by action and actor, served from cache when fresh.
func (s *AuditService) Stats(ctx context.Context, claims *models.JWTClaims, filter models.AuditFilter) (*dto.AuditStatsResult, error) {
	scoped, err := s.scope(claims, filter)
	if err != nil {
		return nil, err
	}

	key := statsCacheKey(scoped)
	if s.cache != nil {
		var cached models.AuditStats
		if s.cache.Get(ctx, key, &cached) {
			return &dto.AuditStatsResult{Stats: &cached, CacheHit: true}, nil
		}
	}

	stats, err := s.store.Stats(ctx, scoped)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute audit stats")
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, stats, s.statsTTL)
	}
	return &dto.AuditStatsResult{Stats: stats}, nil
}

// Export renders visible entries as CSV or PDF.
func (s *AuditService) Export(ctx context.Context, claims *models.JWTClaims, filter models.AuditFilter, rawFormat string) (*dto.ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	scoped, err := s.scope(claims, filter)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.ListForExport(ctx, scoped, maxAuditExportRows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit logs")
	}

	content, err := export.RendererFor(format).Render(auditDataset(entries))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render audit export")
	}
	return &dto.ExportFile{
		FileName:    fmt.Sprintf("audit-%s.%s", s.now().UTC().Format("20060102-150405"), format),
		ContentType: format.ContentType(),
		Content:     content,
	}, nil
}

// scope restricts callers without audit:read to entries about their own documents.
func (s *AuditService) scope(claims *models.JWTClaims, filter models.AuditFilter) (models.AuditFilter, error) {
	if claims == nil {
		return filter, appErrors.ErrUnauthorized
	}
	if filter.Action != "" && !filter.Action.Valid() {
		return filter, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "invalid audit filter"),
			[]appErrors.FieldError{{Field: "action", Message: "unknown action"}},
		)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "invalid audit filter"),
			[]appErrors.FieldError{{Field: "to", Message: "must not be before from"}},
		)
	}
	if models.RoleHasPermission(claims.Role, models.PermAuditRead) {
		return filter, nil
	}
	if filter.SubjectID != "" && filter.SubjectID != claims.UserID {
		return filter, appErrors.Clone(appErrors.ErrForbidden, "cannot read audit logs of other users")
	}
	filter.SubjectID = claims.UserID
	return filter, nil
}

func statsCacheKey(filter models.AuditFilter) string {
	parts := []string{
		"subject=" + filter.SubjectID,
		"actor=" + filter.ActorID,
		"document=" + filter.DocumentID,
		"action=" + string(filter.Action),
	}
	if filter.From != nil {
		parts = append(parts, "from="+filter.From.UTC().Format(time.RFC3339))
	}
	if filter.To != nil {
		parts = append(parts, "to="+filter.To.UTC().Format(time.RFC3339))
	}
	return "audit:stats:" + strings.Join(parts, "|")
}

var auditExportHeaders = []string{"Date", "Action", "Subject", "Actor", "Document", "Description", "IP Address"}

func auditDataset(entries []models.AuditLog) export.Dataset {
	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]string{
			"Date":        e.CreatedAt.UTC().Format(time.RFC3339),
			"Action":      string(e.Action),
			"Subject":     e.UserID,
			"Actor":       derefOr(e.ActorID, "anonymous"),
			"Document":    derefOr(e.DocumentID, ""),
			"Description": e.Description,
			"IP Address":  e.IPAddress,
		})
	}
	return export.Dataset{Title: "Audit Log", Headers: auditExportHeaders, Rows: rows}
}

func derefOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}
