package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/safedocs-api/internal/models"
)

// MongoAuditRepository stores audit entries in a MongoDB collection.
type MongoAuditRepository struct {
	collection *mongo.Collection
}

// NewMongoAuditRepository wraps an existing collection.
func NewMongoAuditRepository(collection *mongo.Collection) *MongoAuditRepository {
	return &MongoAuditRepository{collection: collection}
}

// EnsureIndexes creates the indexes list and stats queries rely on.
func (r *MongoAuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "document_id", Value: 1}}},
		{Keys: bson.D{{Key: "action", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create audit indexes: %w", err)
	}
	return nil
}

// Create appends an audit entry.
func (r *MongoAuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// List returns a page of entries matching filter, newest first.
func (r *MongoAuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	query := auditMatch(filter)
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	entries, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	return entries, int(total), nil
}

// ListForExport returns up to max entries matching filter, newest first.
func (r *MongoAuditRepository) ListForExport(ctx context.Context, filter models.AuditFilter, max int) ([]models.AuditLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(max))
	return r.find(ctx, auditMatch(filter), opts)
}

func (r *MongoAuditRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]models.AuditLog, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("find audit logs: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]models.AuditLog, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode audit logs: %w", err)
	}
	return entries, nil
}

// Stats groups matching entries by action and by actor with $group stages.
func (r *MongoAuditRepository) Stats(ctx context.Context, filter models.AuditFilter) (*models.AuditStats, error) {
	match := bson.D{{Key: "$match", Value: auditMatch(filter)}}
	stats := &models.AuditStats{}

	byAction := mongo.Pipeline{
		match,
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$action"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "last_at", Value: bson.D{{Key: "$max", Value: "$created_at"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if err := r.aggregate(ctx, byAction, &stats.ByAction); err != nil {
		return nil, fmt.Errorf("audit stats by action: %w", err)
	}

	byActor := mongo.Pipeline{
		match,
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$actor_id", ""}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "last_at", Value: bson.D{{Key: "$max", Value: "$created_at"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
		{{Key: "$limit", Value: 50}},
	}
	if err := r.aggregate(ctx, byActor, &stats.ByActor); err != nil {
		return nil, fmt.Errorf("audit stats by actor: %w", err)
	}

	for _, s := range stats.ByAction {
		stats.Total += s.Count
	}
	return stats, nil
}

func (r *MongoAuditRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline, out interface{}) error {
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

func auditMatch(filter models.AuditFilter) bson.M {
	query := bson.M{}
	if filter.SubjectID != "" {
		query["user_id"] = filter.SubjectID
	}
	if filter.ActorID != "" {
		query["actor_id"] = filter.ActorID
	}
	if filter.DocumentID != "" {
		query["document_id"] = filter.DocumentID
	}
	if filter.Action != "" {
		query["action"] = filter.Action
	}
	if filter.From != nil || filter.To != nil {
		window := bson.M{}
		if filter.From != nil {
			window["$gte"] = *filter.From
		}
		if filter.To != nil {
			window["$lte"] = *filter.To
		}
		query["created_at"] = window
	}
	return query
}
