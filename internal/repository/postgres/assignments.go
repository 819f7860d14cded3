package postgres

import (
	"context"
	"encoding/json"

	"github.com/lib/pq"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/repository"
)

type assignmentRepo struct{ s *Store }

func (r *assignmentRepo) Create(ctx context.Context, a *models.TruckAssignment) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = r.s.q(ctx).ExecContext(ctx,
		`INSERT INTO truck_assignments (assignment_id, request_id, truck_id, status, assigned_at, doc)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.AssignmentID, a.RequestID, a.TruckID, string(a.Status), a.AssignedAt, doc)
	return translate(err, "truck assignment", a.AssignmentID)
}

func (r *assignmentRepo) findOne(ctx context.Context, column, value, kind string) (*models.TruckAssignment, error) {
	var raw []byte
	err := r.s.q(ctx).QueryRowContext(ctx, `SELECT doc FROM truck_assignments WHERE `+column+` = $1`, value).Scan(&raw)
	if err != nil {
		return nil, translate(err, kind, value)
	}
	var a models.TruckAssignment
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepo) FindByID(ctx context.Context, assignmentID string) (*models.TruckAssignment, error) {
	return r.findOne(ctx, "assignment_id", assignmentID, "truck assignment")
}

func (r *assignmentRepo) FindByRequest(ctx context.Context, requestID string) (*models.TruckAssignment, error) {
	return r.findOne(ctx, "request_id", requestID, "truck assignment for request")
}

func (r *assignmentRepo) List(ctx context.Context, f repository.AssignmentFilter) ([]models.TruckAssignment, error) {
	w := &where{}
	w.eq("request_id", f.RequestID)
	w.eq("truck_id", f.TruckID)
	w.eq("status", string(f.Status))
	rows, err := r.s.q(ctx).QueryContext(ctx, `SELECT doc FROM truck_assignments`+w.String()+` ORDER BY assigned_at, assignment_id`, w.args...)
	if err != nil {
		return nil, translate(err, "truck assignments", "")
	}
	return scanDocs[models.TruckAssignment](rows)
}

func (r *assignmentRepo) Update(ctx context.Context, a *models.TruckAssignment, expected ...models.AssignmentStatus) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return err
	}
	statuses := make([]string, len(expected))
	for i, s := range expected {
		statuses[i] = string(s)
	}
	res, err := r.s.q(ctx).ExecContext(ctx,
		`UPDATE truck_assignments SET status = $1, doc = $2 WHERE assignment_id = $3 AND status = ANY($4)`,
		string(a.Status), doc, a.AssignmentID, pq.Array(statuses))
	if err != nil {
		return translate(err, "truck assignment", a.AssignmentID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.FindByID(ctx, a.AssignmentID); err != nil {
			return err
		}
		return &errs.Error{Code: errs.CodeConflict, Message: "truck assignment " + a.AssignmentID + " was modified concurrently"}
	}
	return nil
}
