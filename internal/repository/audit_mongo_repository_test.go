package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/noah-isme/safedocs-api/internal/models"
)

func TestMongoAuditRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create", func(mt *mtest.T) {
		repo := NewMongoAuditRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		entry := &models.AuditLog{UserID: "owner", Action: models.AuditActionUpload}
		require.NoError(t, repo.Create(context.Background(), entry))
		assert.NotEmpty(t, entry.ID)
		assert.False(t, entry.CreatedAt.IsZero())
	})

	mt.Run("list", func(mt *mtest.T) {
		repo := NewMongoAuditRepository(mt.Coll)
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		now := time.Now().UTC().Truncate(time.Millisecond)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "a1"}, {Key: "user_id", Value: "owner"}, {Key: "actor_id", Value: "u2"}, {Key: "action", Value: "download"}, {Key: "created_at", Value: now}},
				bson.D{{Key: "_id", Value: "a2"}, {Key: "user_id", Value: "owner"}, {Key: "action", Value: "view"}, {Key: "created_at", Value: now}},
			),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(2)}}),
		)

		entries, total, err := repo.List(context.Background(), models.AuditFilter{SubjectID: "owner"})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, 2, total)
		require.NotNil(t, entries[0].ActorID)
		assert.Equal(t, "u2", *entries[0].ActorID)
		assert.Nil(t, entries[1].ActorID)
		assert.Equal(t, models.AuditActionView, entries[1].Action)
	})

	mt.Run("stats", func(mt *mtest.T) {
		repo := NewMongoAuditRepository(mt.Coll)
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		now := time.Now().UTC().Truncate(time.Millisecond)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "download"}, {Key: "count", Value: int32(4)}, {Key: "last_at", Value: now}},
				bson.D{{Key: "_id", Value: "view"}, {Key: "count", Value: int32(1)}, {Key: "last_at", Value: now}},
			),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "u2"}, {Key: "count", Value: int32(5)}, {Key: "last_at", Value: now}},
			),
		)

		stats, err := repo.Stats(context.Background(), models.AuditFilter{SubjectID: "owner"})
		require.NoError(t, err)
		assert.EqualValues(t, 5, stats.Total)
		require.Len(t, stats.ByAction, 2)
		assert.Equal(t, models.AuditActionDownload, stats.ByAction[0].Action)
		assert.True(t, stats.ByAction[0].LastAt.Equal(now))
		require.Len(t, stats.ByActor, 1)
		assert.Equal(t, "u2", stats.ByActor[0].ActorID)
	})

	mt.Run("create error", func(mt *mtest.T) {
		repo := NewMongoAuditRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}))

		err := repo.Create(context.Background(), &models.AuditLog{ID: "a1", UserID: "owner", Action: models.AuditActionView})
		assert.Error(t, err)
	})
}

func TestAuditMatch(t *testing.T) {
	from := time.Now().Add(-time.Hour)
	q := auditMatch(models.AuditFilter{SubjectID: "owner", Action: models.AuditActionShare, From: &from})
	assert.Equal(t, "owner", q["user_id"])
	assert.Equal(t, models.AuditActionShare, q["action"])
	assert.Equal(t, bson.M{"$gte": from}, q["created_at"])
	_, hasActor := q["actor_id"]
	assert.False(t, hasActor)
}
