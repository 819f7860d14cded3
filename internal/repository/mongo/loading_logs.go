package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"load-request-api-server/internal/models"
)

type loadingLogRepo struct {
	coll *mongo.Collection
}

func (r *loadingLogRepo) Append(ctx context.Context, logs []models.LoadingLog) error {
	if len(logs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(logs))
	for i := range logs {
		docs[i] = logs[i]
	}
	_, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	return translate(err, "loading logs for", logs[0].AssignmentID)
}

func (r *loadingLogRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]models.LoadingLog, error) {
	return r.find(ctx, bson.M{"assignmentID": assignmentID})
}

func (r *loadingLogRepo) ListByRequest(ctx context.Context, requestID string) ([]models.LoadingLog, error) {
	return r.find(ctx, bson.M{"requestID": requestID})
}

func (r *loadingLogRepo) find(ctx context.Context, filter bson.M) ([]models.LoadingLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "lineNo", Value: 1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, translate(err, "loading logs", "")
	}
	defer cursor.Close(ctx)

	var out []models.LoadingLog
	if err := cursor.All(ctx, &out); err != nil {
		return nil, translate(err, "loading logs", "")
	}
	if out == nil {
		out = []models.LoadingLog{}
	}
	return out, nil
}
