package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/repository"
)

type notificationRepo struct {
	coll *mongo.Collection
}

func notificationFilter(f repository.NotificationFilter) bson.M {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userID"] = f.UserID
	}
	if f.RequestID != "" {
		filter["relatedRequestID"] = f.RequestID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func (r *notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	_, err := r.coll.InsertOne(ctx, n)
	return translate(err, "notification", n.NotificationID)
}

func (r *notificationRepo) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := r.coll.FindOne(ctx, bson.M{"notificationID": id}).Decode(&n); err != nil {
		return nil, translate(err, "notification", id)
	}
	return &n, nil
}

func (r *notificationRepo) List(ctx context.Context, f repository.NotificationFilter) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdOn", Value: 1}})
	cursor, err := r.coll.Find(ctx, notificationFilter(f), opts)
	if err != nil {
		return nil, translate(err, "notifications", "")
	}
	defer cursor.Close(ctx)

	var out []models.Notification
	if err := cursor.All(ctx, &out); err != nil {
		return nil, translate(err, "notifications", "")
	}
	if out == nil {
		out = []models.Notification{}
	}
	return out, nil
}

// MarkRead sets READ unconditionally, so repeating it is a no-op.
func (r *notificationRepo) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	update := bson.M{"$set": bson.M{"status": models.NotificationRead}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"notificationID": id}, update, opts).Decode(&n); err != nil {
		return nil, translate(err, "notification", id)
	}
	return &n, nil
}

func (r *notificationRepo) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"notificationID": id})
	if err != nil {
		return translate(err, "notification", id)
	}
	if res.DeletedCount == 0 {
		return errs.NotFound("notification", id)
	}
	return nil
}
