// Package reconcile builds read-only reconciliation reports that compare what
// was requested, approved and shipped for a load request.
package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/ledger"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/repository"
)

// Line is one reconciled line item. DiscrepancyReason is nil when nothing was
// logged for the line or the log carried no reason.
type Line struct {
	LineNo            int     `json:"lineNo"`
	SkuID             string  `json:"skuID"`
	SkuName           string  `json:"skuName,omitempty"`
	RequestedQty      int     `json:"requestedQty"`
	ApprovedQty       int     `json:"approvedQty"`
	ShippedQty        int     `json:"shippedQty"`
	Discrepancy       int     `json:"discrepancy"`
	DiscrepancyReason *string `json:"discrepancyReason"`
	LoadingLogID      string  `json:"loadingLogID,omitempty"`
	StockDeducted     *bool   `json:"stockDeducted"`
}

type Report struct {
	RequestID    string               `json:"requestID"`
	Status       models.RequestStatus `json:"status"`
	DepotID      string               `json:"depotID"`
	WarehouseID  string               `json:"warehouseID"`
	AssignmentID string               `json:"assignmentID,omitempty"`
	Lines        []Line               `json:"lines"`
	Totals       ledger.Totals        `json:"totals"`
	GeneratedAt  time.Time            `json:"generatedAt"`
}

// Archiver stores an exported report and returns where it can be fetched.
type Archiver interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

const defaultTimeout = 5 * time.Second

type Reporter struct {
	requests repository.RequestRepository
	logs     repository.LoadingLogRepository
	archiver Archiver
	now      func() time.Time
	timeout  time.Duration
	logger   *zap.Logger
}

type Option func(*Reporter)

// WithTimeout bounds each Build and Export call, upload included.
func WithTimeout(d time.Duration) Option { return func(r *Reporter) { r.timeout = d } }

func NewReporter(store repository.Store, archiver Archiver, logger *zap.Logger, opts ...Option) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reporter{
		requests: store.Requests(),
		logs:     store.LoadingLogs(),
		archiver: archiver,
		now:      func() time.Time { return time.Now().UTC() },
		timeout:  defaultTimeout,
		logger:   logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Reporter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Build joins the request's line items with the loading logs of its
// assignment. Logs are matched by line number, falling back to SKU for logs
// that carry none.
func (r *Reporter) Build(ctx context.Context, requestID string) (*Report, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.build(ctx, requestID)
}

func (r *Reporter) build(ctx context.Context, requestID string) (*Report, error) {
	req, err := r.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, errs.Normalize(err)
	}

	var logs []models.LoadingLog
	if req.AssignmentID != "" {
		logs, err = r.logs.ListByAssignment(ctx, req.AssignmentID)
		if err != nil {
			return nil, errs.Normalize(err)
		}
	}
	byLine := make(map[int]models.LoadingLog, len(logs))
	bySku := make(map[string]models.LoadingLog, len(logs))
	for _, l := range logs {
		if l.LineNo > 0 {
			byLine[l.LineNo] = l
		} else if _, seen := bySku[l.SkuID]; !seen {
			bySku[l.SkuID] = l
		}
	}

	report := &Report{
		RequestID:    req.RequestID,
		Status:       req.Status,
		DepotID:      req.DepotID,
		WarehouseID:  req.WarehouseID,
		AssignmentID: req.AssignmentID,
		Lines:        make([]Line, 0, len(req.LineItems)),
		GeneratedAt:  r.now(),
	}
	reconciled := make([]models.LineItem, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		item := li
		item.ShippedQty = nil

		line := Line{
			LineNo:       li.LineNo,
			SkuID:        li.SkuID,
			SkuName:      li.SkuName,
			RequestedQty: li.RequestedQty,
			ApprovedQty:  li.Approved(),
		}
		log, ok := byLine[li.LineNo]
		if !ok {
			log, ok = bySku[li.SkuID]
		}
		if ok {
			qty := log.LoadedQty
			item.ShippedQty = &qty
			line.LoadingLogID = log.LogID
			deducted := log.StockDeducted
			line.StockDeducted = &deducted
			if log.DiscrepancyReason != "" {
				reason := log.DiscrepancyReason
				line.DiscrepancyReason = &reason
			}
		}
		line.ShippedQty = item.Shipped()
		line.Discrepancy = ledger.Discrepancy(item)

		report.Lines = append(report.Lines, line)
		reconciled = append(reconciled, item)
	}
	report.Totals = ledger.SumTotals(reconciled)
	return report, nil
}

// ObjectKey is where Export stores a request's report.
func ObjectKey(requestID string) string {
	return fmt.Sprintf("reconciliation/%s.json", requestID)
}

// Export builds the report and archives it as JSON, returning its URL.
func (r *Reporter) Export(ctx context.Context, requestID string) (string, *Report, error) {
	if r.archiver == nil {
		return "", nil, errs.New(errs.CodeInternal, "report archive is not configured")
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	report, err := r.build(ctx, requestID)
	if err != nil {
		return "", nil, err
	}
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", nil, errs.Normalize(fmt.Errorf("failed to encode report: %w", err))
	}
	url, err := r.archiver.Upload(ctx, ObjectKey(requestID), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", nil, errs.Normalize(err)
	}
	r.logger.Info("Reconciliation report exported", zap.String("request_id", requestID), zap.String("url", url))
	return url, report, nil
}
