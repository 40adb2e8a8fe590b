package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	CollPermissions      = "permissions"
	CollGroups           = "groups"
	CollGroupPermissions = "group_permissions"
	CollUsers            = "users"
	CollUserGroups       = "user_groups"
	CollActivities       = "activity_records"
	CollLocks            = "rbac_locks"
)

type MongoRepository struct {
	Permissions      *mongo.Collection
	Groups           *mongo.Collection
	GroupPermissions *mongo.Collection
	Users            *mongo.Collection
	UserGroups       *mongo.Collection
	Activities       *mongo.Collection
	Locks            *mongo.Collection
	Client           *mongo.Client // transactions and snapshot sessions
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		Permissions:      db.Collection(CollPermissions),
		Groups:           db.Collection(CollGroups),
		GroupPermissions: db.Collection(CollGroupPermissions),
		Users:            db.Collection(CollUsers),
		UserGroups:       db.Collection(CollUserGroups),
		Activities:       db.Collection(CollActivities),
		Locks:            db.Collection(CollLocks),
		Client:           db.Client(),
	}
}

func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	// Permissions are keyed by _id = code; children lookups go through parent_code.
	_, err := r.Permissions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "parent_code", Value: 1}},
		Options: options.Index().SetName("idx_parent_code"),
	})
	if err != nil {
		return err
	}

	_, err = r.Groups.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_group_code"),
	})
	if err != nil {
		return err
	}

	// (group_id, code) composite unique; code alone for usage lookups
	_, err = r.GroupPermissions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "group_id", Value: 1},
				{Key: "code", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_group_code_grant"),
		},
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetName("idx_grant_code"),
		},
	})
	if err != nil {
		return err
	}

	// (user_id, group_id) composite unique; group_id alone for reverse lookups
	_, err = r.UserGroups.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "group_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_user_group"),
		},
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}},
			Options: options.Index().SetName("idx_membership_group"),
		},
	})
	return err
}

func (r *MongoRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.Client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	callback := func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	}

	_, err = session.WithTransaction(ctx, callback)
	return err
}

func (r *MongoRepository) Snapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	opts := options.Session().SetSnapshot(true)
	return r.Client.UseSessionWithOptions(ctx, opts, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
}

// Lock bumps a revision counter on a per-key document. Two transactions that
// lock the same key write-conflict, so one of them aborts and is re-run after
// the other commits.
func (r *MongoRepository) Lock(ctx context.Context, key string) error {
	_, err := r.Locks.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{
			"$inc": bson.M{"rev": 1},
			"$set": bson.M{"updated_at": time.Now()},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func distinctStrings(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
