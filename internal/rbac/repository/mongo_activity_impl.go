package repository

import (
	"context"
	"rbacgate/internal/rbac/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureActivityIndexes creates indexes for efficient querying
func (r *MongoRepository) EnsureActivityIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// Actor timeline
		{
			Keys: bson.D{
				{Key: "actor_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_actor_query"),
		},
		// Resource timeline
		{
			Keys: bson.D{
				{Key: "resource", Value: 1},
				{Key: "resource_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_resource_query"),
		},
		// Created at for time-based queries
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_created_at"),
		},
	}

	_, err := r.Activities.Indexes().CreateMany(ctx, indexes)
	return err
}

// CreateActivity creates a new activity record (append-only)
func (r *MongoRepository) CreateActivity(ctx context.Context, record *model.ActivityRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := r.Activities.InsertOne(ctx, record)
	return err
}

// FindActivities finds activity records with pagination and filtering
func (r *MongoRepository) FindActivities(ctx context.Context, f model.ActivityFilter) ([]*model.ActivityRecord, int64, error) {
	filter := bson.M{}
	if f.ActorID != "" {
		filter["actor_id"] = f.ActorID
	}
	if f.Action != "" {
		filter["action"] = f.Action
	}
	if f.Resource != "" {
		filter["resource"] = f.Resource
	}
	if f.ResourceID != "" {
		filter["resource_id"] = f.ResourceID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Text != "" {
		pattern := primitiveRegex(f.Text)
		filter["$or"] = bson.A{
			bson.M{"label": pattern},
			bson.M{"resource_id": pattern},
		}
	}

	// Add time range filter
	if f.StartTime != nil || f.EndTime != nil {
		timeFilter := bson.M{}
		if f.StartTime != nil {
			timeFilter["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			timeFilter["$lte"] = *f.EndTime
		}
		filter["created_at"] = timeFilter
	}

	// Count total records
	total, err := r.Activities.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := int64((f.Page - 1) * f.Size)

	// Find with pagination and sort by created_at desc
	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(f.Size))

	cursor, err := r.Activities.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	results := []*model.ActivityRecord{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, 0, err
	}

	return results, total, nil
}
