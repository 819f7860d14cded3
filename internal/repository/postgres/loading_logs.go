package postgres

import (
	"context"
	"encoding/json"

	"load-request-api-server/internal/models"
)

type loadingLogRepo struct{ s *Store }

func (r *loadingLogRepo) Append(ctx context.Context, logs []models.LoadingLog) error {
	q := r.s.q(ctx)
	for _, l := range logs {
		doc, err := json.Marshal(l)
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx,
			`INSERT INTO loading_logs (log_id, assignment_id, request_id, line_no, sku_id, created_at, doc)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			l.LogID, l.AssignmentID, l.RequestID, l.LineNo, l.SkuID, l.CreatedAt, doc)
		if err != nil {
			return translate(err, "loading log", l.LogID)
		}
	}
	return nil
}

func (r *loadingLogRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]models.LoadingLog, error) {
	return r.list(ctx, "assignment_id", assignmentID)
}

func (r *loadingLogRepo) ListByRequest(ctx context.Context, requestID string) ([]models.LoadingLog, error) {
	return r.list(ctx, "request_id", requestID)
}

func (r *loadingLogRepo) list(ctx context.Context, column, value string) ([]models.LoadingLog, error) {
	rows, err := r.s.q(ctx).QueryContext(ctx,
		`SELECT doc FROM loading_logs WHERE `+column+` = $1 ORDER BY created_at, line_no`, value)
	if err != nil {
		return nil, translate(err, "loading logs", value)
	}
	return scanDocs[models.LoadingLog](rows)
}
