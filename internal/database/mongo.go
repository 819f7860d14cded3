// internal/database/mongo.go
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"load-request-api-server/internal/catalog"
	mongostore "load-request-api-server/internal/repository/mongo"
)

// ConnectMongo dials and pings the server within timeout.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

// mongoIndexes carries the uniqueness constraints the repositories rely on.
func mongoIndexes() map[string][]mongo.IndexModel {
	unique := options.Index().SetUnique(true)
	return map[string][]mongo.IndexModel{
		mongostore.RequestsCollection: {
			{Keys: bson.D{{Key: "requestID", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "lsrID", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "depotID", Value: 1}, {Key: "status", Value: 1}}},
		},
		mongostore.AssignmentsCollection: {
			{Keys: bson.D{{Key: "assignmentID", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "requestID", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		mongostore.LoadingLogsCollection: {
			{Keys: bson.D{{Key: "logID", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "assignmentID", Value: 1}, {Key: "skuID", Value: 1}}},
		},
		mongostore.StockCollection: {
			{Keys: bson.D{{Key: "skuID", Value: 1}, {Key: "warehouseID", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		mongostore.NotificationsCollection: {
			{Keys: bson.D{{Key: "notificationID", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userID", Value: 1}, {Key: "status", Value: 1}}},
		},
		catalog.Collection: {
			{Keys: bson.D{{Key: "skuID", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
}

// EnsureMongoIndexes creates the indexes if they are missing. Safe to call on
// every start.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	for coll, models := range mongoIndexes() {
		names, err := db.Collection(coll).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
		logger.Info("Mongo indexes ensured", zap.String("collection", coll), zap.Strings("indexes", names))
	}
	return nil
}
