// Package mongo implements the repository contracts on MongoDB. Status and
// stock guards are expressed in the update filter so each write is a single
// atomic compare-and-set on the server.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/repository"
)

const (
	RequestsCollection      = "load_requests"
	AssignmentsCollection   = "truck_assignments"
	LoadingLogsCollection   = "loading_logs"
	StockCollection         = "warehouse_stock"
	NotificationsCollection = "notifications"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ repository.Store = (*Store)(nil)

func NewStore(client *mongo.Client, dbName string) *Store {
	return &Store{client: client, db: client.Database(dbName)}
}

func (s *Store) Requests() repository.RequestRepository {
	return &requestRepo{coll: s.db.Collection(RequestsCollection)}
}

func (s *Store) Assignments() repository.AssignmentRepository {
	return &assignmentRepo{coll: s.db.Collection(AssignmentsCollection)}
}

func (s *Store) LoadingLogs() repository.LoadingLogRepository {
	return &loadingLogRepo{coll: s.db.Collection(LoadingLogsCollection)}
}

func (s *Store) Stock() repository.StockRepository {
	return &stockRepo{coll: s.db.Collection(StockCollection)}
}

func (s *Store) Notifications() repository.NotificationRepository {
	return &notificationRepo{coll: s.db.Collection(NotificationsCollection)}
}

// RunInTx runs fn inside a multi-document transaction. Requires a replica set.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start mongo session: %w", err)
	}
	defer session.EndSession(context.Background())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// translate maps driver errors onto the error taxonomy.
func translate(err error, kind, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return errs.NotFound(kind, id)
	case mongo.IsDuplicateKeyError(err):
		return &errs.Error{Code: errs.CodeConflict, Message: fmt.Sprintf("%s %s already exists", kind, id), Err: err}
	}
	return fmt.Errorf("mongo %s %s: %w", kind, id, err)
}

// guardFailed decides between not-found and conflict after a guarded write
// matched nothing.
func guardFailed(ctx context.Context, coll *mongo.Collection, key bson.M, kind, id string) error {
	n, err := coll.CountDocuments(ctx, key)
	if err != nil {
		return translate(err, kind, id)
	}
	if n == 0 {
		return errs.NotFound(kind, id)
	}
	return &errs.Error{Code: errs.CodeConflict, Message: fmt.Sprintf("%s %s was modified concurrently", kind, id)}
}
