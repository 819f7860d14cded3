package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"load-request-api-server/internal/models"
	"load-request-api-server/internal/repository"
)

type requestRepo struct {
	coll *mongo.Collection
}

func requestFilter(f repository.RequestFilter) bson.M {
	filter := bson.M{}
	if f.LsrID != "" {
		filter["lsrID"] = f.LsrID
	}
	if f.DepotID != "" {
		filter["depotID"] = f.DepotID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func (r *requestRepo) Create(ctx context.Context, req *models.LoadRequest) error {
	_, err := r.coll.InsertOne(ctx, req)
	return translate(err, "load request", req.RequestID)
}

func (r *requestRepo) FindByID(ctx context.Context, requestID string) (*models.LoadRequest, error) {
	var req models.LoadRequest
	if err := r.coll.FindOne(ctx, bson.M{"requestID": requestID}).Decode(&req); err != nil {
		return nil, translate(err, "load request", requestID)
	}
	return &req, nil
}

func (r *requestRepo) List(ctx context.Context, f repository.RequestFilter) ([]models.LoadRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.coll.Find(ctx, requestFilter(f), opts)
	if err != nil {
		return nil, translate(err, "load requests", "")
	}
	defer cursor.Close(ctx)

	var requests []models.LoadRequest
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, translate(err, "load requests", "")
	}
	if requests == nil {
		requests = []models.LoadRequest{}
	}
	return requests, nil
}

func (r *requestRepo) Update(ctx context.Context, req *models.LoadRequest, expected models.RequestStatus) error {
	filter := bson.M{"requestID": req.RequestID, "status": expected}
	res, err := r.coll.ReplaceOne(ctx, filter, req)
	if err != nil {
		return translate(err, "load request", req.RequestID)
	}
	if res.MatchedCount == 0 {
		return guardFailed(ctx, r.coll, bson.M{"requestID": req.RequestID}, "load request", req.RequestID)
	}
	return nil
}
