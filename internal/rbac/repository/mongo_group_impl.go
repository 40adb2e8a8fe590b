package repository

import (
	"context"
	"rbacgate/internal/rbac/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *MongoRepository) CreateGroup(ctx context.Context, g *model.Group) error {
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now

	_, err := r.Groups.InsertOne(ctx, g)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *MongoRepository) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	var g model.Group
	err := r.Groups.FindOne(ctx, bson.M{"_id": id}).Decode(&g)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *MongoRepository) GetGroups(ctx context.Context, ids []string) ([]*model.Group, error) {
	if len(ids) == 0 {
		return []*model.Group{}, nil
	}
	cursor, err := r.Groups.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	groups := []*model.Group{}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *MongoRepository) UpdateGroup(ctx context.Context, g *model.Group) error {
	g.UpdatedAt = time.Now()
	// code is immutable and not part of the update
	res, err := r.Groups.UpdateOne(ctx, bson.M{"_id": g.ID}, bson.M{
		"$set": bson.M{
			"name":        g.Name,
			"description": g.Description,
			"is_active":   g.IsActive,
			"updated_at":  g.UpdatedAt,
			"updated_by":  g.UpdatedBy,
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) DeleteGroup(ctx context.Context, id string) error {
	res, err := r.Groups.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ListGroups(ctx context.Context, filter model.GroupFilter) ([]*model.Group, int64, error) {
	query := bson.M{}
	if filter.Search != "" {
		pattern := primitiveRegex(filter.Search)
		query["$or"] = bson.A{
			bson.M{"code": pattern},
			bson.M{"name": pattern},
		}
	}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	}

	total, err := r.Groups.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "code", Value: 1}})
	if filter.Limit > 0 {
		findOptions.SetSkip(int64((filter.Page - 1) * filter.Limit)).SetLimit(int64(filter.Limit))
	}

	cursor, err := r.Groups.Find(ctx, query, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	groups := []*model.Group{}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, 0, err
	}
	return groups, total, nil
}

// --- group -> permission relation ---

func (r *MongoRepository) GetGroupCodes(ctx context.Context, groupID string) ([]string, error) {
	values, err := r.GroupPermissions.Distinct(ctx, "code", bson.M{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	return distinctStrings(values), nil
}

func (r *MongoRepository) GetCodesForGroups(ctx context.Context, groupIDs []string) ([]string, error) {
	if len(groupIDs) == 0 {
		return []string{}, nil
	}
	values, err := r.GroupPermissions.Distinct(ctx, "code", bson.M{"group_id": bson.M{"$in": groupIDs}})
	if err != nil {
		return nil, err
	}
	return distinctStrings(values), nil
}

func (r *MongoRepository) AddGroupCodes(ctx context.Context, groupID string, codes []string, createdBy string) error {
	if len(codes) == 0 {
		return nil
	}
	now := time.Now()

	writeModels := make([]mongo.WriteModel, 0, len(codes))
	for _, code := range codes {
		filter := bson.M{"group_id": groupID, "code": code}
		update := bson.M{
			"$setOnInsert": bson.M{
				"group_id":   groupID,
				"code":       code,
				"created_at": now,
				"created_by": createdBy,
			},
		}
		writeModels = append(writeModels, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(update).
			SetUpsert(true))
	}

	_, err := r.GroupPermissions.BulkWrite(ctx, writeModels, options.BulkWrite().SetOrdered(true))
	return err
}

func (r *MongoRepository) RemoveGroupCodes(ctx context.Context, groupID string, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	_, err := r.GroupPermissions.DeleteMany(ctx, bson.M{
		"group_id": groupID,
		"code":     bson.M{"$in": codes},
	})
	return err
}

func (r *MongoRepository) DeleteGroupCodesByGroup(ctx context.Context, groupID string) ([]string, error) {
	codes, err := r.GetGroupCodes(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := r.GroupPermissions.DeleteMany(ctx, bson.M{"group_id": groupID}); err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *MongoRepository) FindGroupsGrantingCode(ctx context.Context, code string) ([]string, error) {
	values, err := r.GroupPermissions.Distinct(ctx, "group_id", bson.M{"code": code})
	if err != nil {
		return nil, err
	}
	return distinctStrings(values), nil
}

func (r *MongoRepository) RemoveCodeFromAllGroups(ctx context.Context, code string) error {
	_, err := r.GroupPermissions.DeleteMany(ctx, bson.M{"code": code})
	return err
}
