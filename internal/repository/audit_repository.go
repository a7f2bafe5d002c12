package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/safedocs-api/internal/models"
)

const auditColumns = `id, user_id, actor_id, document_id, action, description, ip_address, user_agent, created_at`

// AuditRepository stores audit entries in PostgreSQL.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the PostgreSQL audit store.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO audit_logs (` + auditColumns + `)
VALUES (:id, :user_id, :actor_id, :document_id, :action, :description, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// List returns a page of entries matching filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	where, args := auditWhere(filter)
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	var entries []models.AuditLog
	listQuery := fmt.Sprintf(`SELECT %s FROM audit_logs%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, auditColumns, where, limit, offset)
	if err := r.db.SelectContext(ctx, &entries, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audit_logs`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	return entries, total, nil
}

// ListForExport returns up to max entries matching filter, newest first.
func (r *AuditRepository) ListForExport(ctx context.Context, filter models.AuditFilter, max int) ([]models.AuditLog, error) {
	where, args := auditWhere(filter)
	query := fmt.Sprintf(`SELECT %s FROM audit_logs%s ORDER BY created_at DESC LIMIT %d`, auditColumns, where, max)
	var entries []models.AuditLog
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("export audit logs: %w", err)
	}
	return entries, nil
}

// Stats groups matching entries by action and by actor. Anonymous share link
// access is grouped under an empty actor id.
func (r *AuditRepository) Stats(ctx context.Context, filter models.AuditFilter) (*models.AuditStats, error) {
	where, args := auditWhere(filter)
	stats := &models.AuditStats{}

	byAction := fmt.Sprintf(`SELECT action, COUNT(*) AS count, MAX(created_at) AS last_at FROM audit_logs%s GROUP BY action ORDER BY count DESC, action ASC`, where)
	if err := r.db.SelectContext(ctx, &stats.ByAction, byAction, args...); err != nil {
		return nil, fmt.Errorf("audit stats by action: %w", err)
	}

	byActor := fmt.Sprintf(`SELECT COALESCE(actor_id::text, '') AS actor_id, COUNT(*) AS count, MAX(created_at) AS last_at FROM audit_logs%s GROUP BY 1 ORDER BY count DESC LIMIT 50`, where)
	if err := r.db.SelectContext(ctx, &stats.ByActor, byActor, args...); err != nil {
		return nil, fmt.Errorf("audit stats by actor: %w", err)
	}

	for _, s := range stats.ByAction {
		stats.Total += s.Count
	}
	return stats, nil
}

func auditWhere(filter models.AuditFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 6)
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		conditions = append(conditions, fmt.Sprintf("document_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
