package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/safedocs-api/internal/models"
)

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{UserID: "owner", Action: models.AuditActionDownload}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	from := time.Now().Add(-time.Hour)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs WHERE user_id = $1 AND action = $2 AND created_at >= $3 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("owner", models.AuditActionView, from).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "actor_id", "document_id", "action", "description", "ip_address", "user_agent", "created_at"}).
			AddRow("a1", "owner", nil, "d1", "view", "shared link view", "10.0.0.1", "curl", now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs WHERE user_id = $1 AND action = $2 AND created_at >= $3")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	entries, total, err := repo.List(context.Background(), models.AuditFilter{SubjectID: "owner", Action: models.AuditActionView, From: &from})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ActorID)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT action, COUNT(*) AS count, MAX(created_at) AS last_at FROM audit_logs WHERE user_id = $1 GROUP BY action")).
		WithArgs("owner").
		WillReturnRows(sqlmock.NewRows([]string{"action", "count", "last_at"}).
			AddRow("download", 5, now).
			AddRow("view", 2, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(actor_id::text, '') AS actor_id")).
		WithArgs("owner").
		WillReturnRows(sqlmock.NewRows([]string{"actor_id", "count", "last_at"}).
			AddRow("u2", 6, now).
			AddRow("", 1, now))

	stats, err := repo.Stats(context.Background(), models.AuditFilter{SubjectID: "owner"})
	require.NoError(t, err)
	assert.EqualValues(t, 7, stats.Total)
	require.Len(t, stats.ByActor, 2)
	assert.Equal(t, "", stats.ByActor[1].ActorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
