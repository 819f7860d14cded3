package mongo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/repository"
)

func TestRequestFilter(t *testing.T) {
	assert.Equal(t, bson.M{}, requestFilter(repository.RequestFilter{}))
	assert.Equal(t,
		bson.M{"lsrID": "lsr-1", "depotID": "D1", "status": models.StatusSubmitted},
		requestFilter(repository.RequestFilter{LsrID: "lsr-1", DepotID: "D1", Status: models.StatusSubmitted}))
}

func TestAssignmentFilter(t *testing.T) {
	assert.Equal(t, bson.M{"truckID": "TRK-9"}, assignmentFilter(repository.AssignmentFilter{TruckID: "TRK-9"}))
}

func TestNotificationFilter(t *testing.T) {
	assert.Equal(t,
		bson.M{"userID": "u1", "status": models.NotificationUnread},
		notificationFilter(repository.NotificationFilter{UserID: "u1", Status: models.NotificationUnread}))
}

func TestDecrementFilterGuardsAvailable(t *testing.T) {
	f := decrementFilter("COLA-330", "WH-1", 60)
	assert.Equal(t, "COLA-330", f["skuID"])
	assert.Equal(t, "WH-1", f["warehouseID"])
	assert.Equal(t, bson.M{"$gte": 60}, f["availableQty"])
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil, "load request", "LR-1"))
	assert.True(t, errors.Is(translate(mongo.ErrNoDocuments, "load request", "LR-1"), errs.ErrNotFound))

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.True(t, errors.Is(translate(dup, "truck assignment", "TA-1"), errs.ErrConflict))

	other := translate(errors.New("connection reset"), "load request", "LR-1")
	assert.Equal(t, errs.CodeInternal, errs.CodeOf(other))
}
