package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/safedocs-api/internal/models"
)

const documentColumns = `d.id, d.owner_id, d.title, d.description, d.category, d.course, d.file_name, d.original_name,
       d.file_path, d.mime_type, d.size_bytes, d.downloads, d.is_public, d.is_official, d.share_token,
       d.created_at, d.updated_at, COALESCE(u.full_name, '') AS owner_name, COALESCE(u.email, '') AS owner_email`

const documentFrom = ` FROM documents d LEFT JOIN users u ON u.id = d.owner_id`

// DocumentRepository handles document metadata and share records.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create stores metadata for an uploaded file.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	const query = `INSERT INTO documents
	(id, owner_id, title, description, category, course, file_name, original_name, file_path, mime_type, size_bytes, downloads, is_public, is_official, share_token, created_at, updated_at)
	VALUES (:id, :owner_id, :title, :description, :category, :course, :file_name, :original_name, :file_path, :mime_type, :size_bytes, :downloads, :is_public, :is_official, :share_token, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return mapUniqueViolation(err, "create document")
	}
	return nil
}

// GetByID retrieves one document with its owner's name.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	return r.getOne(ctx, "get document", `d.id = $1`, id)
}

// GetByShareToken resolves a share link token.
func (r *DocumentRepository) GetByShareToken(ctx context.Context, token string) (*models.Document, error) {
	return r.getOne(ctx, "get document by share token", `d.share_token = $1`, token)
}

func (r *DocumentRepository) getOne(ctx context.Context, op, cond string, arg interface{}) (*models.Document, error) {
	query := `SELECT ` + documentColumns + documentFrom + ` WHERE ` + cond
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &doc, nil
}

// List returns documents matching filter with the total count. Unless
// filter.All is set only public or official documents and those owned by
// filter.ViewerID are returned.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 6)

	if !filter.All {
		args = append(args, filter.ViewerID)
		conditions = append(conditions, fmt.Sprintf("(d.is_public OR d.is_official OR d.owner_id = $%d)", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("d.category = $%d", len(args)))
	}
	if filter.Course != "" {
		args = append(args, likePattern(filter.Course))
		conditions = append(conditions, fmt.Sprintf("LOWER(d.course) LIKE $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		conditions = append(conditions, fmt.Sprintf("(LOWER(d.title) LIKE $%d OR LOWER(d.description) LIKE $%d OR LOWER(d.course) LIKE $%d)", len(args), len(args), len(args)))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("d.owner_id = $%d", len(args)))
	}
	if filter.Official != nil {
		args = append(args, *filter.Official)
		conditions = append(conditions, fmt.Sprintf("d.is_official = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "d.created_at",
		"title":      "d.title",
		"downloads":  "d.downloads",
		"size_bytes": "d.size_bytes",
	}
	sortBy, ok := allowedSorts[filter.SortBy]
	if !ok {
		sortBy = "d.created_at"
	}

	limit, offset := pageWindow(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s%s%s ORDER BY %s %s LIMIT %d OFFSET %d", documentColumns, documentFrom, where, sortBy, sortOrder(filter.SortOrder), limit, offset)

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents d"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}
	return docs, total, nil
}

// ListSharedWith returns documents shared with userID, newest share first.
func (r *DocumentRepository) ListSharedWith(ctx context.Context, userID string, page, pageSize int) ([]models.SharedDocument, int, error) {
	limit, offset := pageWindow(page, pageSize)
	query := fmt.Sprintf(`SELECT %s, s.shared_by, COALESCE(sb.full_name, '') AS shared_by_name, s.created_at AS shared_at
%s
JOIN document_shares s ON s.document_id = d.id
LEFT JOIN users sb ON sb.id = s.shared_by
WHERE s.shared_with = $1
ORDER BY s.created_at DESC LIMIT %d OFFSET %d`, documentColumns, documentFrom, limit, offset)

	var docs []models.SharedDocument
	if err := r.db.SelectContext(ctx, &docs, query, userID); err != nil {
		return nil, 0, fmt.Errorf("list shared documents: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM document_shares WHERE shared_with = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("count shared documents: %w", err)
	}
	return docs, total, nil
}

// Update writes editable metadata.
func (r *DocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE documents SET title = :title, description = :description, category = :category, course = :course,
	is_public = :is_public, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, doc)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return requireAffected(res, "update document")
}

// Delete removes the metadata row; share records cascade.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireAffected(res, "delete document")
}

// IncrementDownloads bumps the download counter.
func (r *DocumentRepository) IncrementDownloads(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE documents SET downloads = downloads + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("increment downloads: %w", err)
	}
	return nil
}

// AssignShareToken sets token only when the document has none yet and returns
// whichever token is stored afterwards.
func (r *DocumentRepository) AssignShareToken(ctx context.Context, id, token string) (string, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE documents SET share_token = $2, updated_at = $3 WHERE id = $1 AND share_token IS NULL`, id, token, time.Now().UTC())
	if err != nil {
		return "", mapUniqueViolation(err, "assign share token")
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 1 {
		return token, nil
	}

	var stored sql.NullString
	if err := r.db.GetContext(ctx, &stored, `SELECT share_token FROM documents WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("read share token: %w", err)
	}
	if !stored.Valid {
		return "", ErrStaleState
	}
	return stored.String, nil
}

// UpsertShare records that a document was shared with a user, refreshing the
// sharer and timestamp when it already was.
func (r *DocumentRepository) UpsertShare(ctx context.Context, share *models.DocumentShare) error {
	if share.CreatedAt.IsZero() {
		share.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_shares (document_id, shared_with, shared_by, created_at)
VALUES (:document_id, :shared_with, :shared_by, :created_at)
ON CONFLICT (document_id, shared_with)
DO UPDATE SET shared_by = EXCLUDED.shared_by, created_at = EXCLUDED.created_at`
	if _, err := r.db.NamedExecContext(ctx, query, share); err != nil {
		return fmt.Errorf("upsert document share: %w", err)
	}
	return nil
}

// IsSharedWith reports whether documentID was shared with userID.
func (r *DocumentRepository) IsSharedWith(ctx context.Context, documentID, userID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM document_shares WHERE document_id = $1 AND shared_with = $2)`, documentID, userID); err != nil {
		return false, fmt.Errorf("check document share: %w", err)
	}
	return exists, nil
}

// SetOfficial flags or unflags a document as official.
func (r *DocumentRepository) SetOfficial(ctx context.Context, id string, official bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE documents SET is_official = $2, updated_at = $3 WHERE id = $1`, id, official, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set document official: %w", err)
	}
	return requireAffected(res, "set document official")
}

// DocumentCounts summarises the documents table.
type DocumentCounts struct {
	Total     int   `db:"total"`
	Official  int   `db:"official"`
	Downloads int64 `db:"downloads"`
}

// Counts returns document totals.
func (r *DocumentRepository) Counts(ctx context.Context) (DocumentCounts, error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_official) AS official, COALESCE(SUM(downloads), 0) AS downloads FROM documents`
	var counts DocumentCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return DocumentCounts{}, fmt.Errorf("count documents: %w", err)
	}
	return counts, nil
}

// CountByCategory groups documents by category.
func (r *DocumentRepository) CountByCategory(ctx context.Context) ([]models.CategoryCount, error) {
	var counts []models.CategoryCount
	if err := r.db.SelectContext(ctx, &counts, `SELECT category, COUNT(*) AS count FROM documents GROUP BY category ORDER BY count DESC, category ASC`); err != nil {
		return nil, fmt.Errorf("count documents by category: %w", err)
	}
	return counts, nil
}
