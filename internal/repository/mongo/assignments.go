package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"load-request-api-server/internal/models"
	"load-request-api-server/internal/repository"
)

type assignmentRepo struct {
	coll *mongo.Collection
}

func assignmentFilter(f repository.AssignmentFilter) bson.M {
	filter := bson.M{}
	if f.RequestID != "" {
		filter["requestID"] = f.RequestID
	}
	if f.TruckID != "" {
		filter["truckID"] = f.TruckID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

// Create relies on the unique index on requestID for one assignment per request.
func (r *assignmentRepo) Create(ctx context.Context, a *models.TruckAssignment) error {
	_, err := r.coll.InsertOne(ctx, a)
	return translate(err, "truck assignment", a.AssignmentID)
}

func (r *assignmentRepo) FindByID(ctx context.Context, assignmentID string) (*models.TruckAssignment, error) {
	var a models.TruckAssignment
	if err := r.coll.FindOne(ctx, bson.M{"assignmentID": assignmentID}).Decode(&a); err != nil {
		return nil, translate(err, "truck assignment", assignmentID)
	}
	return &a, nil
}

func (r *assignmentRepo) FindByRequest(ctx context.Context, requestID string) (*models.TruckAssignment, error) {
	var a models.TruckAssignment
	if err := r.coll.FindOne(ctx, bson.M{"requestID": requestID}).Decode(&a); err != nil {
		return nil, translate(err, "truck assignment for request", requestID)
	}
	return &a, nil
}

func (r *assignmentRepo) List(ctx context.Context, f repository.AssignmentFilter) ([]models.TruckAssignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "assignedAt", Value: 1}})
	cursor, err := r.coll.Find(ctx, assignmentFilter(f), opts)
	if err != nil {
		return nil, translate(err, "truck assignments", "")
	}
	defer cursor.Close(ctx)

	var out []models.TruckAssignment
	if err := cursor.All(ctx, &out); err != nil {
		return nil, translate(err, "truck assignments", "")
	}
	if out == nil {
		out = []models.TruckAssignment{}
	}
	return out, nil
}

func (r *assignmentRepo) Update(ctx context.Context, a *models.TruckAssignment, expected ...models.AssignmentStatus) error {
	filter := bson.M{"assignmentID": a.AssignmentID, "status": bson.M{"$in": expected}}
	res, err := r.coll.ReplaceOne(ctx, filter, a)
	if err != nil {
		return translate(err, "truck assignment", a.AssignmentID)
	}
	if res.MatchedCount == 0 {
		return guardFailed(ctx, r.coll, bson.M{"assignmentID": a.AssignmentID}, "truck assignment", a.AssignmentID)
	}
	return nil
}
