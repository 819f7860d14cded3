package postgres

import (
	"context"
	"encoding/json"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/repository"
)

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	doc, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = r.s.q(ctx).ExecContext(ctx,
		`INSERT INTO notifications (notification_id, user_id, related_request_id, status, created_on, doc)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		n.NotificationID, n.UserID, n.RelatedRequestID, string(n.Status), n.CreatedOn, doc)
	return translate(err, "notification", n.NotificationID)
}

func (r *notificationRepo) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	var raw []byte
	if err := r.s.q(ctx).QueryRowContext(ctx, `SELECT doc FROM notifications WHERE notification_id = $1`, id).Scan(&raw); err != nil {
		return nil, translate(err, "notification", id)
	}
	var n models.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepo) List(ctx context.Context, f repository.NotificationFilter) ([]models.Notification, error) {
	w := &where{}
	w.eq("user_id", f.UserID)
	w.eq("related_request_id", f.RequestID)
	w.eq("status", string(f.Status))
	rows, err := r.s.q(ctx).QueryContext(ctx, `SELECT doc FROM notifications`+w.String()+` ORDER BY created_on, notification_id`, w.args...)
	if err != nil {
		return nil, translate(err, "notifications", "")
	}
	return scanDocs[models.Notification](rows)
}

func (r *notificationRepo) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	var raw []byte
	err := r.s.q(ctx).QueryRowContext(ctx,
		`UPDATE notifications SET status = $1, doc = jsonb_set(doc, '{status}', to_jsonb($1::text))
		 WHERE notification_id = $2 RETURNING doc`,
		string(models.NotificationRead), id).Scan(&raw)
	if err != nil {
		return nil, translate(err, "notification", id)
	}
	var n models.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepo) Delete(ctx context.Context, id string) error {
	res, err := r.s.q(ctx).ExecContext(ctx, `DELETE FROM notifications WHERE notification_id = $1`, id)
	if err != nil {
		return translate(err, "notification", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("notification", id)
	}
	return nil
}
