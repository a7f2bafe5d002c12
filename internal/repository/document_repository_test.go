package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/safedocs-api/internal/models"
)

var documentRowColumns = []string{"id", "owner_id", "title", "description", "category", "course", "file_name", "original_name",
	"file_path", "mime_type", "size_bytes", "downloads", "is_public", "is_official", "share_token",
	"created_at", "updated_at", "owner_name", "owner_email"}

func documentRow(rows *sqlmock.Rows, id, owner string, public bool) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, owner, "Notes", "", "academic", "CS101", "f.pdf", "notes.pdf",
		"documents/"+owner+"/f.pdf", "application/pdf", 1024, 0, public, false, nil, now, now, "Owner", "owner@university.edu")
}

func TestDocumentRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := &models.Document{OwnerID: "u1", Title: "Notes", Category: models.CategoryAcademic, FilePath: "documents/u1/f.pdf"}
	require.NoError(t, repo.Create(context.Background(), doc))
	require.NotEmpty(t, doc.ID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents d LEFT JOIN users u ON u.id = d.owner_id WHERE d.id = $1")).
		WithArgs(doc.ID).
		WillReturnRows(documentRow(sqlmock.NewRows(documentRowColumns), doc.ID, "u1", false))

	found, err := repo.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Owner", found.OwnerName)
	assert.Nil(t, found.ShareToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListVisibility(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE (d.is_public OR d.is_official OR d.owner_id = $1) AND d.category = $2 ORDER BY d.created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("viewer", models.CategoryResearch).
		WillReturnRows(documentRow(sqlmock.NewRows(documentRowColumns), "d1", "other", true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents d WHERE (d.is_public OR d.is_official OR d.owner_id = $1) AND d.category = $2")).
		WithArgs("viewer", models.CategoryResearch).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	docs, total, err := repo.List(context.Background(), models.DocumentFilter{ViewerID: "viewer", Category: models.CategoryResearch})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListAllSkipsVisibility(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents d LEFT JOIN users u ON u.id = d.owner_id ORDER BY d.downloads ASC LIMIT 10 OFFSET 10")).
		WillReturnRows(sqlmock.NewRows(documentRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents d")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	_, total, err := repo.List(context.Background(), models.DocumentFilter{All: true, Page: 2, PageSize: 10, SortBy: "downloads", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignShareTokenFirstWriterWins(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET share_token = $2, updated_at = $3 WHERE id = $1 AND share_token IS NULL")).
		WithArgs("d1", "tok-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	token, err := repo.AssignShareToken(context.Background(), "d1", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET share_token = $2")).
		WithArgs("d1", "tok-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT share_token FROM documents WHERE id = $1")).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"share_token"}).AddRow("tok-1"))

	token, err = repo.AssignShareToken(context.Background(), "d1", "tok-2")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignShareTokenUnknownDocument(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET share_token = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT share_token FROM documents WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"share_token"}))

	_, err := repo.AssignShareToken(context.Background(), "ghost", "tok")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpsertShare(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (document_id, shared_with)")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertShare(context.Background(), &models.DocumentShare{DocumentID: "d1", SharedWith: "u2", SharedBy: "u1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDocumentMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "ghost"), sql.ErrNoRows)
}

func TestListSharedWith(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	now := time.Now()
	cols := append(append([]string{}, documentRowColumns...), "shared_by", "shared_by_name", "shared_at")
	mock.ExpectQuery(regexp.QuoteMeta("JOIN document_shares s ON s.document_id = d.id")).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("d1", "u1", "Notes", "", "academic", "CS101", "f.pdf", "notes.pdf",
			"documents/u1/f.pdf", "application/pdf", 1024, 0, false, false, nil, now, now, "Owner", "owner@university.edu",
			"u1", "Owner", now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM document_shares WHERE shared_with = $1")).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	docs, total, err := repo.ListSharedWith(context.Background(), "u2", 1, 20)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "u1", docs[0].SharedBy)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
