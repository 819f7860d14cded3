package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/models"
)

type stockRepo struct {
	coll *mongo.Collection
}

func stockKey(skuID, warehouseID string) bson.M {
	return bson.M{"skuID": skuID, "warehouseID": warehouseID}
}

// decrementFilter only matches while enough stock is available, so the
// $inc can never take availableQty below zero.
func decrementFilter(skuID, warehouseID string, qty int) bson.M {
	f := stockKey(skuID, warehouseID)
	f["availableQty"] = bson.M{"$gte": qty}
	return f
}

func (r *stockRepo) Get(ctx context.Context, skuID, warehouseID string) (*models.WarehouseStock, error) {
	var st models.WarehouseStock
	if err := r.coll.FindOne(ctx, stockKey(skuID, warehouseID)).Decode(&st); err != nil {
		return nil, translate(err, "warehouse stock", skuID+"@"+warehouseID)
	}
	return &st, nil
}

func (r *stockRepo) Put(ctx context.Context, st *models.WarehouseStock) error {
	if st.AvailableQty < 0 || st.ReservedQty < 0 {
		return errs.Validation("stock quantities must be non-negative")
	}
	_, err := r.coll.ReplaceOne(ctx, stockKey(st.SkuID, st.WarehouseID), st, options.Replace().SetUpsert(true))
	return translate(err, "warehouse stock", st.SkuID+"@"+st.WarehouseID)
}

func (r *stockRepo) Decrement(ctx context.Context, skuID, warehouseID string, qty int) (*models.WarehouseStock, error) {
	update := bson.M{
		"$inc": bson.M{"availableQty": -qty},
		"$set": bson.M{"updatedOn": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var st models.WarehouseStock
	err := r.coll.FindOneAndUpdate(ctx, decrementFilter(skuID, warehouseID, qty), update, opts).Decode(&st)
	if err == nil {
		return &st, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, translate(err, "warehouse stock", skuID+"@"+warehouseID)
	}

	available := 0
	if cur, getErr := r.Get(ctx, skuID, warehouseID); getErr == nil {
		available = cur.AvailableQty
	}
	return nil, errs.InsufficientStock(skuID, warehouseID, qty, available)
}
