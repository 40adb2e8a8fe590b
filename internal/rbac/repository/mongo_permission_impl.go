package repository

import (
	"context"
	"rbacgate/internal/rbac/model"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *MongoRepository) CreatePermission(ctx context.Context, p *model.Permission) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.Permissions.InsertOne(ctx, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *MongoRepository) GetPermission(ctx context.Context, code string) (*model.Permission, error) {
	var p model.Permission
	err := r.Permissions.FindOne(ctx, bson.M{"_id": code}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *MongoRepository) GetPermissions(ctx context.Context, codes []string) ([]*model.Permission, error) {
	if len(codes) == 0 {
		return []*model.Permission{}, nil
	}
	cursor, err := r.Permissions.Find(ctx, bson.M{"_id": bson.M{"$in": codes}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	perms := []*model.Permission{}
	if err := cursor.All(ctx, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *MongoRepository) UpdatePermission(ctx context.Context, p *model.Permission) error {
	p.UpdatedAt = time.Now()
	res, err := r.Permissions.ReplaceOne(ctx, bson.M{"_id": p.Code}, p)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) DeletePermission(ctx context.Context, code string) error {
	res, err := r.Permissions.DeleteOne(ctx, bson.M{"_id": code})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ListPermissions(ctx context.Context, filter model.PermissionFilter) ([]*model.Permission, int64, error) {
	query := bson.M{}
	if filter.Search != "" {
		pattern := primitiveRegex(filter.Search)
		query["$or"] = bson.A{
			bson.M{"_id": pattern},
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}
	if filter.ParentCode != "" {
		query["parent_code"] = filter.ParentCode
	}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	}

	total, err := r.Permissions.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		findOptions.SetSkip(int64((filter.Page - 1) * filter.Limit)).SetLimit(int64(filter.Limit))
	}

	cursor, err := r.Permissions.Find(ctx, query, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	perms := []*model.Permission{}
	if err := cursor.All(ctx, &perms); err != nil {
		return nil, 0, err
	}
	return perms, total, nil
}

func (r *MongoRepository) AllPermissions(ctx context.Context) ([]*model.Permission, error) {
	perms, _, err := r.ListPermissions(ctx, model.PermissionFilter{})
	return perms, err
}

func (r *MongoRepository) FindChildCodes(ctx context.Context, parentCode string) ([]string, error) {
	values, err := r.Permissions.Distinct(ctx, "_id", bson.M{"parent_code": parentCode})
	if err != nil {
		return nil, err
	}
	return distinctStrings(values), nil
}

func (r *MongoRepository) ClearParent(ctx context.Context, parentCode, updatedBy string) error {
	_, err := r.Permissions.UpdateMany(ctx,
		bson.M{"parent_code": parentCode},
		bson.M{
			"$unset": bson.M{"parent_code": ""},
			"$set": bson.M{
				"updated_at": time.Now(),
				"updated_by": updatedBy,
			},
		},
	)
	return err
}

// primitiveRegex builds a case-insensitive substring match for user input.
func primitiveRegex(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}
