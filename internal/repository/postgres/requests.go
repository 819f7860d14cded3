package postgres

import (
	"context"
	"encoding/json"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/repository"
)

type requestRepo struct{ s *Store }

func (r *requestRepo) Create(ctx context.Context, req *models.LoadRequest) error {
	doc, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = r.s.q(ctx).ExecContext(ctx,
		`INSERT INTO load_requests (request_id, lsr_id, depot_id, status, created_at, doc)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		req.RequestID, req.LsrID, req.DepotID, string(req.Status), req.CreatedAt, doc)
	return translate(err, "load request", req.RequestID)
}

func (r *requestRepo) FindByID(ctx context.Context, requestID string) (*models.LoadRequest, error) {
	var raw []byte
	err := r.s.q(ctx).QueryRowContext(ctx, `SELECT doc FROM load_requests WHERE request_id = $1`, requestID).Scan(&raw)
	if err != nil {
		return nil, translate(err, "load request", requestID)
	}
	var req models.LoadRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepo) List(ctx context.Context, f repository.RequestFilter) ([]models.LoadRequest, error) {
	w := &where{}
	w.eq("lsr_id", f.LsrID)
	w.eq("depot_id", f.DepotID)
	w.eq("status", string(f.Status))
	rows, err := r.s.q(ctx).QueryContext(ctx, `SELECT doc FROM load_requests`+w.String()+` ORDER BY created_at, request_id`, w.args...)
	if err != nil {
		return nil, translate(err, "load requests", "")
	}
	return scanDocs[models.LoadRequest](rows)
}

func (r *requestRepo) Update(ctx context.Context, req *models.LoadRequest, expected models.RequestStatus) error {
	doc, err := json.Marshal(req)
	if err != nil {
		return err
	}
	res, err := r.s.q(ctx).ExecContext(ctx,
		`UPDATE load_requests SET status = $1, doc = $2 WHERE request_id = $3 AND status = $4`,
		string(req.Status), doc, req.RequestID, string(expected))
	if err != nil {
		return translate(err, "load request", req.RequestID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.FindByID(ctx, req.RequestID); err != nil {
			return err
		}
		return &errs.Error{Code: errs.CodeConflict, Message: "load request " + req.RequestID + " was modified concurrently"}
	}
	return nil
}
