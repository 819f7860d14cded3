// Package lifecycle is the load request state machine. Every transition
// computes its new state first, commits the whole mutation set in one unit of
// work, and only then dispatches the notifications it decided on.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/ledger"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/notify"
	"load-request-api-server/internal/repository"
	"load-request-api-server/internal/stock"
)

const (
	requestPrefix    = "LR"
	assignmentPrefix = "TA"
	loadingLogPrefix = "LL"

	defaultTimeout = 5 * time.Second
)

type Service struct {
	store     repository.Store
	emitter   *notify.Emitter
	stock     *stock.Ledger
	directory Directory
	catalog   Catalog
	ids       IDGenerator
	now       func() time.Time
	timeout   time.Duration
	allowOver bool
	logger    *zap.Logger
}

type Option func(*Service)

func WithDirectory(d Directory) Option { return func(s *Service) { s.directory = d } }
func WithCatalog(c Catalog) Option     { return func(s *Service) { s.catalog = c } }
func WithIDs(g IDGenerator) Option     { return func(s *Service) { s.ids = g } }
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTimeout bounds every operation, including its storage round trips.
func WithTimeout(d time.Duration) Option { return func(s *Service) { s.timeout = d } }

// WithOverShipment lets shipped quantities exceed approved ones when a
// discrepancy reason is given.
func WithOverShipment(allow bool) Option { return func(s *Service) { s.allowOver = allow } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

func NewService(store repository.Store, emitter *notify.Emitter, opts ...Option) *Service {
	s := &Service{
		store:     store,
		emitter:   emitter,
		directory: StaticDirectory{},
		ids:       UUIDGenerator{},
		now:       func() time.Time { return time.Now().UTC() },
		timeout:   defaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.stock = stock.NewLedger(store.Stock(), s.logger)
	return s
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// dispatch runs after commit. It must not inherit the caller's cancellation:
// the transition already happened.
func (s *Service) dispatch(ctx context.Context, events []models.NotificationEvent) []models.Notification {
	if len(events) == 0 || s.emitter == nil {
		return []models.Notification{}
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	return s.emitter.Dispatch(dctx, events)
}

func (s *Service) enrich(ctx context.Context, items []models.LineItem) {
	if s.catalog == nil {
		return
	}
	for i := range items {
		li := &items[i]
		if li.SkuName != "" && li.Brand != "" {
			continue
		}
		sku, err := s.catalog.Lookup(ctx, li.SkuID)
		if err != nil {
			s.logger.Warn("Catalog lookup failed", zap.String("sku_id", li.SkuID), zap.Error(err))
			continue
		}
		if li.SkuName == "" {
			li.SkuName = sku.Name
		}
		if li.Brand == "" {
			li.Brand = sku.Brand
		}
	}
}

// Create opens a new DRAFT request owned by in.LsrID.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.LoadRequest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if in.LsrID == "" {
		return nil, errs.Validation("requester id is required")
	}
	if in.DepotID == "" {
		return nil, errs.Validation("depot id is required")
	}
	if err := validateBuffer(in.BufferAdjustment); err != nil {
		return nil, err
	}
	items, err := buildLineItems(in.LineItems, in.BufferAdjustment)
	if err != nil {
		return nil, err
	}
	s.enrich(ctx, items)

	now := s.now()
	req := &models.LoadRequest{
		RequestID:        s.ids.NewID(requestPrefix),
		LsrID:            in.LsrID,
		DepotID:          in.DepotID,
		WarehouseID:      s.directory.WarehouseFor(in.DepotID),
		JourneyDate:      in.JourneyDate,
		Status:           models.StatusDraft,
		BufferAdjustment: in.BufferAdjustment,
		LineItems:        items,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Requests().Create(ctx, req); err != nil {
		return nil, errs.Normalize(err)
	}
	s.logger.Info("Load request created",
		zap.String("request_id", req.RequestID),
		zap.String("lsr_id", req.LsrID),
		zap.Int("lines", len(req.LineItems)))
	return req, nil
}

// UpdateDraft lets the owner rework a request before it is submitted.
func (s *Service) UpdateDraft(ctx context.Context, requestID string, actor models.Actor, in UpdateDraftInput) (*models.LoadRequest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.store.Requests().FindByID(ctx, requestID)
	if err != nil {
		return nil, errs.Normalize(err)
	}
	if actor.UserID != cur.LsrID {
		return nil, errs.Permission("only the owner can edit load request %s", requestID)
	}
	if cur.Status != models.StatusDraft {
		return nil, errs.InvalidState("load request %s is %s; only drafts can be edited", requestID, cur.Status)
	}

	next := cur.Clone()
	if in.JourneyDate != nil {
		next.JourneyDate = *in.JourneyDate
	}
	if in.BufferAdjustment != nil {
		if err := validateBuffer(*in.BufferAdjustment); err != nil {
			return nil, err
		}
		next.BufferAdjustment = *in.BufferAdjustment
	}
	if in.LineItems != nil {
		items, err := buildLineItems(in.LineItems, next.BufferAdjustment)
		if err != nil {
			return nil, err
		}
		s.enrich(ctx, items)
		next.LineItems = items
	} else if in.BufferAdjustment != nil {
		for i := range next.LineItems {
			li := &next.LineItems[i]
			li.RecommendedQty = ledger.Recommend(li.RequestedQty, next.BufferAdjustment)
		}
	}
	next.UpdatedAt = s.now()

	if err := s.store.Requests().Update(ctx, next, models.StatusDraft); err != nil {
		return nil, errs.Normalize(err)
	}
	return next, nil
}

func (s *Service) Submit(ctx context.Context, requestID string, actor models.Actor) (*TransitionResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		next   *models.LoadRequest
		events []models.NotificationEvent
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.Requests().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		next, events, err = decideSubmit(cur, actor, s.directory, s.now())
		if err != nil {
			return err
		}
		return s.store.Requests().Update(ctx, next, cur.Status)
	})
	if err != nil {
		return nil, errs.Normalize(err)
	}
	if len(events) == 0 {
		s.logger.Warn("No approvers configured for depot",
			zap.String("request_id", requestID),
			zap.String("depot_id", next.DepotID))
	}
	return &TransitionResult{Request: next, Notifications: s.dispatch(ctx, events)}, nil
}

// Approve fixes the approved quantities, assigns a truck and moves the request
// to APPROVED. The request update and the assignment commit together.
func (s *Service) Approve(ctx context.Context, requestID string, actor models.Actor, in ApproveInput) (*ApprovalResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var plan *approvalPlan
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.Requests().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		// A zero truck is rejected by decideApprove after the state checks.
		truck, _ := s.directory.DefaultTruck(cur.DepotID)
		if in.Truck != nil {
			truck = *in.Truck
		}
		plan, err = decideApprove(cur, actor, in, truck, s.ids.NewID(assignmentPrefix), s.now())
		if err != nil {
			return err
		}
		if err := s.store.Requests().Update(ctx, plan.request, cur.Status); err != nil {
			return err
		}
		return s.store.Assignments().Create(ctx, plan.assignment)
	})
	if err != nil {
		return nil, errs.Normalize(err)
	}
	s.logger.Info("Load request approved",
		zap.String("request_id", requestID),
		zap.String("approver_id", actor.UserID),
		zap.String("assignment_id", plan.assignment.AssignmentID),
		zap.Float64("utilization_pct", plan.assignment.UtilizationPct))
	return &ApprovalResult{
		Request:       plan.request,
		Assignment:    plan.assignment,
		Notifications: s.dispatch(ctx, plan.events),
	}, nil
}

func (s *Service) Reject(ctx context.Context, requestID string, actor models.Actor, reason string) (*TransitionResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		next   *models.LoadRequest
		events []models.NotificationEvent
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.Requests().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		next, events, err = decideReject(cur, actor, reason, s.now())
		if err != nil {
			return err
		}
		return s.store.Requests().Update(ctx, next, cur.Status)
	})
	if err != nil {
		return nil, errs.Normalize(err)
	}
	return &TransitionResult{Request: next, Notifications: s.dispatch(ctx, events)}, nil
}

func (s *Service) Cancel(ctx context.Context, requestID string, actor models.Actor) (*models.LoadRequest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var next *models.LoadRequest
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.Requests().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		next, err = decideCancel(cur, actor, s.now())
		if err != nil {
			return err
		}
		return s.store.Requests().Update(ctx, next, cur.Status)
	})
	if err != nil {
		return nil, errs.Normalize(err)
	}
	return next, nil
}

// StartLoading marks the truck as being loaded. It does not touch the request.
func (s *Service) StartLoading(ctx context.Context, assignmentID string) (*models.TruckAssignment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	a, err := s.store.Assignments().FindByID(ctx, assignmentID)
	if err != nil {
		return nil, errs.Normalize(err)
	}
	if a.Status != models.AssignmentAssigned {
		return nil, errs.InvalidState("assignment %s is %s and cannot start loading", assignmentID, a.Status)
	}
	now := s.now()
	next := *a
	next.Status = models.AssignmentLoading
	next.LoadingStartedAt = &now
	if err := s.store.Assignments().Update(ctx, &next, models.AssignmentAssigned); err != nil {
		return nil, errs.Normalize(err)
	}
	return &next, nil
}

// RecordShipment writes what physically left the warehouse. Quantity rule
// violations reject the whole shipment before anything is written. A line
// whose stock cannot be deducted is still logged and shipped; the failure is
// returned in StockErrors and raised as a discrepancy.
func (s *Service) RecordShipment(ctx context.Context, requestID, assignmentID string, data ShipmentData) (*ShipmentResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		result *ShipmentResult
		events []models.NotificationEvent
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		result, events = nil, nil
		cur, err := s.store.Requests().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if err := checkEdge(cur, models.StatusShipped); err != nil {
			return err
		}
		a, err := s.store.Assignments().FindByID(ctx, assignmentID)
		if err != nil {
			return err
		}
		if a.RequestID != cur.RequestID {
			return errs.Validation("assignment %s does not belong to load request %s", assignmentID, requestID)
		}
		if a.Status != models.AssignmentAssigned && a.Status != models.AssignmentLoading {
			return errs.InvalidState("assignment %s is %s and cannot ship", assignmentID, a.Status)
		}

		now := s.now()
		plan, err := planShipment(cur, data, s.allowOver, now)
		if err != nil {
			return err
		}

		next := cur.Clone()
		logs := make([]models.LoadingLog, 0, len(plan))
		var stockErrs []error
		for _, l := range plan {
			qty := l.input.ShippedQty
			next.LineItems[l.item.LineNo-1].ShippedQty = &qty

			deducted := true
			if err := s.stock.Decrement(ctx, l.item.SkuID, cur.WarehouseID, qty); err != nil {
				if !errors.Is(err, errs.ErrInsufficientStock) {
					return err
				}
				deducted = false
				stockErrs = append(stockErrs, err)
			}

			if l.input.ShippedQty < l.item.Approved() {
				events = append(events, shortfallEvent(next, l))
			}
			if !deducted {
				events = append(events, stockAnomalyEvent(next, l, stockErrs[len(stockErrs)-1]))
				s.logger.Warn("Stock not deducted for shipped line",
					zap.String("request_id", requestID),
					zap.Int("line_no", l.item.LineNo),
					zap.String("sku_id", l.item.SkuID),
					zap.Int("qty", qty))
			}

			logs = append(logs, models.LoadingLog{
				LogID:              s.ids.NewID(loadingLogPrefix),
				AssignmentID:       assignmentID,
				RequestID:          requestID,
				LineNo:             l.item.LineNo,
				SkuID:              l.item.SkuID,
				LoadedQty:          qty,
				LoadingStart:       l.input.LoadingStart,
				LoadingEnd:         l.input.LoadingEnd,
				DiscrepancyReason:  l.input.DiscrepancyReason,
				DiscrepancyDetails: l.input.DiscrepancyDetails,
				StockDeducted:      deducted,
				RecordedBy:         data.RecordedBy,
				CreatedAt:          now,
			})
		}
		if err := s.store.LoadingLogs().Append(ctx, logs); err != nil {
			return err
		}

		next.Status = models.StatusShipped
		next.ShippedAt = &now
		next.UpdatedAt = now
		if err := s.store.Requests().Update(ctx, next, cur.Status); err != nil {
			return err
		}

		shipped := *a
		shipped.Status = models.AssignmentShipped
		shipped.DepartedAt = &now
		if shipped.LoadingStartedAt == nil {
			start := earliestStart(plan)
			shipped.LoadingStartedAt = &start
		}
		if err := s.store.Assignments().Update(ctx, &shipped, models.AssignmentAssigned, models.AssignmentLoading); err != nil {
			return err
		}
		result = &ShipmentResult{Request: next, Assignment: &shipped, LoadingLogs: logs, StockErrors: stockErrs}
		return nil
	})
	if err != nil {
		return nil, errs.Normalize(err)
	}
	s.logger.Info("Shipment recorded",
		zap.String("request_id", requestID),
		zap.String("assignment_id", assignmentID),
		zap.Int("stock_anomalies", len(result.StockErrors)))
	result.Notifications = s.dispatch(ctx, events)
	return result, nil
}

func earliestStart(plan []shipmentLine) time.Time {
	start := plan[0].input.LoadingStart
	for _, l := range plan[1:] {
		if l.input.LoadingStart.Before(start) {
			start = l.input.LoadingStart
		}
	}
	return start
}

// Complete closes out a shipped request. Ledger quantities are left alone.
func (s *Service) Complete(ctx context.Context, requestID string) (*models.LoadRequest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var next *models.LoadRequest
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.Requests().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		now := s.now()
		next, err = decideComplete(cur, now)
		if err != nil {
			return err
		}
		if err := s.store.Requests().Update(ctx, next, cur.Status); err != nil {
			return err
		}
		if cur.AssignmentID == "" {
			return nil
		}
		a, err := s.store.Assignments().FindByID(ctx, cur.AssignmentID)
		if err != nil {
			return err
		}
		done := *a
		done.Status = models.AssignmentCompleted
		done.CompletedAt = &now
		return s.store.Assignments().Update(ctx, &done, models.AssignmentShipped)
	})
	if err != nil {
		return nil, errs.Normalize(err)
	}
	return next, nil
}

func (s *Service) GetRequest(ctx context.Context, requestID string) (*models.LoadRequest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	req, err := s.store.Requests().FindByID(ctx, requestID)
	return req, errs.Normalize(err)
}

func (s *Service) ListRequests(ctx context.Context, f repository.RequestFilter) ([]models.LoadRequest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	out, err := s.store.Requests().List(ctx, f)
	return out, errs.Normalize(err)
}

func (s *Service) GetAssignment(ctx context.Context, assignmentID string) (*models.TruckAssignment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	a, err := s.store.Assignments().FindByID(ctx, assignmentID)
	return a, errs.Normalize(err)
}

func (s *Service) ListAssignments(ctx context.Context, f repository.AssignmentFilter) ([]models.TruckAssignment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	out, err := s.store.Assignments().List(ctx, f)
	return out, errs.Normalize(err)
}

func (s *Service) ListLoadingLogs(ctx context.Context, requestID string) ([]models.LoadingLog, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	out, err := s.store.LoadingLogs().ListByRequest(ctx, requestID)
	return out, errs.Normalize(err)
}

// StockLevel reads the current level for one (sku, warehouse) pair.
func (s *Service) StockLevel(ctx context.Context, skuID, warehouseID string) (*models.WarehouseStock, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	st, err := s.stock.Level(ctx, skuID, warehouseID)
	return st, errs.Normalize(err)
}
