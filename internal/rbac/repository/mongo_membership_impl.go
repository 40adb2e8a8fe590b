package repository

import (
	"context"
	"rbacgate/internal/rbac/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *MongoRepository) CreateUser(ctx context.Context, u *model.User) error {
	u.CreatedAt = time.Now()
	_, err := r.Users.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *MongoRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.Users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *MongoRepository) GetUsers(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	cursor, err := r.Users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []*model.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *MongoRepository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.Users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// --- user -> group relation ---

func (r *MongoRepository) GetUserGroupIDs(ctx context.Context, userID string) ([]string, error) {
	values, err := r.UserGroups.Distinct(ctx, "group_id", bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	return distinctStrings(values), nil
}

func (r *MongoRepository) GetGroupUserIDs(ctx context.Context, groupID string) ([]string, error) {
	values, err := r.UserGroups.Distinct(ctx, "user_id", bson.M{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	return distinctStrings(values), nil
}

func (r *MongoRepository) AddMemberships(ctx context.Context, rows []model.UserGroup) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now()

	writeModels := make([]mongo.WriteModel, 0, len(rows))
	for _, row := range rows {
		writeModels = append(writeModels, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"user_id": row.UserID, "group_id": row.GroupID}).
			SetUpdate(bson.M{
				"$setOnInsert": bson.M{
					"user_id":    row.UserID,
					"group_id":   row.GroupID,
					"created_at": now,
					"created_by": row.CreatedBy,
				},
			}).
			SetUpsert(true))
	}

	_, err := r.UserGroups.BulkWrite(ctx, writeModels, options.BulkWrite().SetOrdered(true))
	return err
}

func (r *MongoRepository) RemoveMemberships(ctx context.Context, rows []model.UserGroup) error {
	if len(rows) == 0 {
		return nil
	}
	pairs := make(bson.A, 0, len(rows))
	for _, row := range rows {
		pairs = append(pairs, bson.M{"user_id": row.UserID, "group_id": row.GroupID})
	}
	_, err := r.UserGroups.DeleteMany(ctx, bson.M{"$or": pairs})
	return err
}

func (r *MongoRepository) DeleteMembershipsByUser(ctx context.Context, userID string) ([]string, error) {
	groupIDs, err := r.GetUserGroupIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := r.UserGroups.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return nil, err
	}
	return groupIDs, nil
}

func (r *MongoRepository) DeleteMembershipsByGroup(ctx context.Context, groupID string) ([]string, error) {
	userIDs, err := r.GetGroupUserIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := r.UserGroups.DeleteMany(ctx, bson.M{"group_id": groupID}); err != nil {
		return nil, err
	}
	return userIDs, nil
}
