package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/notify"
	"load-request-api-server/internal/repository"
	"load-request-api-server/internal/repository/memory"
)

var (
	lsr      = models.Actor{UserID: "lsr-1", Role: models.RoleRequester}
	approver = models.Actor{UserID: "apr-1", Role: models.RoleApprover}
	fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
)

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) NewID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, g.n.Add(1))
}

type fixture struct {
	store *memory.Store
	svc   *Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := memory.NewStore()
	ids := &seqIDs{}
	emitter := notify.NewEmitter(store.Notifications(), func() string { return ids.NewID("NTF") }, nil,
		notify.WithClock(func() time.Time { return fixedNow }))
	dir := StaticDirectory{Depots: map[string]Depot{
		"DEPOT-1": {
			WarehouseID: "WH-1",
			Approvers:   []string{"apr-1", "apr-2"},
			Truck:       &models.Truck{TruckID: "TRK-1", DriverID: "drv-1", Capacity: 200},
		},
	}}
	base := []Option{WithIDs(ids), WithDirectory(dir), WithClock(func() time.Time { return fixedNow })}
	return &fixture{store: store, svc: NewService(store, emitter, append(base, opts...)...)}
}

func (f *fixture) create(t *testing.T, lines ...LineItemInput) *models.LoadRequest {
	t.Helper()
	req, err := f.svc.Create(context.Background(), CreateInput{LsrID: lsr.UserID, DepotID: "DEPOT-1", LineItems: lines})
	require.NoError(t, err)
	return req
}

func (f *fixture) submitted(t *testing.T, lines ...LineItemInput) *models.LoadRequest {
	t.Helper()
	req := f.create(t, lines...)
	res, err := f.svc.Submit(context.Background(), req.RequestID, lsr)
	require.NoError(t, err)
	return res.Request
}

func (f *fixture) approved(t *testing.T, qty int) *ApprovalResult {
	t.Helper()
	req := f.submitted(t, LineItemInput{SkuID: "COLA-330", RequestedQty: 100})
	res, err := f.svc.Approve(context.Background(), req.RequestID, approver, ApproveInput{
		Quantities: []LineQuantity{{LineNo: 1, Qty: qty}},
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) putStock(t *testing.T, sku string, qty int) {
	t.Helper()
	require.NoError(t, f.store.Stock().Put(context.Background(), &models.WarehouseStock{
		SkuID: sku, WarehouseID: "WH-1", AvailableQty: qty,
	}))
}

func (f *fixture) notificationsFor(t *testing.T, userID string) []models.Notification {
	t.Helper()
	out, err := f.store.Notifications().List(context.Background(), repository.NotificationFilter{UserID: userID})
	require.NoError(t, err)
	return out
}

func TestCanTransitionFollowsStateGraph(t *testing.T) {
	all := []models.RequestStatus{
		models.StatusDraft, models.StatusSubmitted, models.StatusApproved, models.StatusRejected,
		models.StatusCancelled, models.StatusShipped, models.StatusCompleted,
	}
	legal := map[[2]models.RequestStatus]bool{
		{models.StatusDraft, models.StatusSubmitted}:     true,
		{models.StatusDraft, models.StatusCancelled}:     true,
		{models.StatusSubmitted, models.StatusApproved}:  true,
		{models.StatusSubmitted, models.StatusRejected}:  true,
		{models.StatusSubmitted, models.StatusCancelled}: true,
		{models.StatusApproved, models.StatusShipped}:    true,
		{models.StatusShipped, models.StatusCompleted}:   true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]models.RequestStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
		if from.IsTerminal() {
			assert.Empty(t, edges[from], "%s is terminal", from)
		}
	}
}

func TestCreateAssignsLinesAndWarehouse(t *testing.T) {
	f := newFixture(t)
	req, err := f.svc.Create(context.Background(), CreateInput{
		LsrID:            lsr.UserID,
		DepotID:          "DEPOT-1",
		BufferAdjustment: models.BufferAdjustment{Kind: models.BufferPercent, Value: 10},
		LineItems: []LineItemInput{
			{SkuID: "COLA-330", RequestedQty: 100},
			{SkuID: " POSM-STAND ", RequestedQty: 3},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "LR-1", req.RequestID)
	assert.Equal(t, models.StatusDraft, req.Status)
	assert.Equal(t, "WH-1", req.WarehouseID)
	require.Len(t, req.LineItems, 2)
	assert.Equal(t, 1, req.LineItems[0].LineNo)
	assert.Equal(t, 110, req.LineItems[0].RecommendedQty)
	assert.Equal(t, 2, req.LineItems[1].LineNo)
	assert.Equal(t, "POSM-STAND", req.LineItems[1].SkuID)
	assert.Nil(t, req.LineItems[0].ApprovedQty)

	stored, err := f.svc.GetRequest(context.Background(), req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, req, stored)
}

func TestCreateRejectsMalformedLines(t *testing.T) {
	f := newFixture(t)
	cases := map[string][]LineItemInput{
		"negative quantity": {{SkuID: "COLA-330", RequestedQty: -1}},
		"missing sku":       {{SkuID: "COLA-330", RequestedQty: 1}, {SkuID: "  ", RequestedQty: 1}},
	}
	for name, lines := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), CreateInput{LsrID: lsr.UserID, DepotID: "DEPOT-1", LineItems: lines})
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
	all, err := f.svc.ListRequests(context.Background(), repository.RequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

type stubCatalog map[string]models.SKU

func (c stubCatalog) Lookup(_ context.Context, skuID string) (*models.SKU, error) {
	sku, ok := c[skuID]
	if !ok {
		return nil, errs.NotFound("sku", skuID)
	}
	return &sku, nil
}

func TestCreateEnrichesFromCatalog(t *testing.T) {
	f := newFixture(t, WithCatalog(stubCatalog{"COLA-330": {SkuID: "COLA-330", Name: "Cola 330ml", Brand: "Cola"}}))
	req := f.create(t,
		LineItemInput{SkuID: "COLA-330", SkuName: "Cola can", RequestedQty: 1},
		LineItemInput{SkuID: "UNKNOWN", RequestedQty: 1},
	)
	assert.Equal(t, "Cola can", req.LineItems[0].SkuName)
	assert.Equal(t, "Cola", req.LineItems[0].Brand)
	assert.Empty(t, req.LineItems[1].SkuName)
}

func TestUpdateDraft(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, LineItemInput{SkuID: "COLA-330", RequestedQty: 10})

	_, err := f.svc.UpdateDraft(context.Background(), req.RequestID, approver, UpdateDraftInput{})
	assert.ErrorIs(t, err, errs.ErrPermission)

	buf := models.BufferAdjustment{Kind: models.BufferAbsolute, Value: 5}
	next, err := f.svc.UpdateDraft(context.Background(), req.RequestID, lsr, UpdateDraftInput{BufferAdjustment: &buf})
	require.NoError(t, err)
	assert.Equal(t, 15, next.LineItems[0].RecommendedQty)

	next, err = f.svc.UpdateDraft(context.Background(), req.RequestID, lsr, UpdateDraftInput{
		LineItems: []LineItemInput{{SkuID: "WATER-500", RequestedQty: 20}},
	})
	require.NoError(t, err)
	require.Len(t, next.LineItems, 1)
	assert.Equal(t, "WATER-500", next.LineItems[0].SkuID)
	assert.Equal(t, 25, next.LineItems[0].RecommendedQty)

	_, err = f.svc.Submit(context.Background(), req.RequestID, lsr)
	require.NoError(t, err)
	_, err = f.svc.UpdateDraft(context.Background(), req.RequestID, lsr, UpdateDraftInput{})
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, LineItemInput{SkuID: "COLA-330", RequestedQty: 100})

	_, err := f.svc.Submit(context.Background(), req.RequestID, approver)
	assert.ErrorIs(t, err, errs.ErrPermission)

	res, err := f.svc.Submit(context.Background(), req.RequestID, lsr)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, res.Request.Status)
	require.NotNil(t, res.Request.SubmittedAt)
	assert.Equal(t, fixedNow, *res.Request.SubmittedAt)

	require.Len(t, res.Notifications, 2)
	assert.Equal(t, "apr-1", res.Notifications[0].UserID)
	assert.Equal(t, "apr-2", res.Notifications[1].UserID)
	assert.Equal(t, models.NotificationApproval, res.Notifications[0].Type)
	assert.Equal(t, req.RequestID, res.Notifications[0].RelatedRequestID)

	_, err = f.svc.Submit(context.Background(), req.RequestID, lsr)
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestSubmitEmptyRequest(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)
	_, err := f.svc.Submit(context.Background(), req.RequestID, lsr)
	assert.ErrorIs(t, err, errs.ErrEmptyRequest)

	stored, err := f.svc.GetRequest(context.Background(), req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, stored.Status)
}

func TestApproveWithShortfall(t *testing.T) {
	f := newFixture(t)
	res := f.approved(t, 80)

	assert.Equal(t, models.StatusApproved, res.Request.Status)
	assert.Equal(t, approver.UserID, res.Request.ApprovedBy)
	require.NotNil(t, res.Request.ApprovedAt)
	assert.Equal(t, 80, res.Request.LineItems[0].Approved())

	require.NotNil(t, res.Assignment)
	assert.Equal(t, res.Assignment.AssignmentID, res.Request.AssignmentID)
	assert.Equal(t, "TRK-1", res.Assignment.TruckID)
	assert.Equal(t, models.AssignmentAssigned, res.Assignment.Status)
	assert.InDelta(t, 100*80.0/200, res.Assignment.UtilizationPct, 0.001)

	require.Len(t, res.Notifications, 1)
	n := res.Notifications[0]
	assert.Equal(t, lsr.UserID, n.UserID)
	assert.Equal(t, models.NotificationApproval, n.Type)
	assert.Contains(t, n.Message, "short 20")

	a, err := f.store.Assignments().FindByRequest(context.Background(), res.Request.RequestID)
	require.NoError(t, err)
	assert.Equal(t, res.Assignment.AssignmentID, a.AssignmentID)
}

func TestApproveDefaultsToRequestedAndOrdersShortfalls(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t,
		LineItemInput{SkuID: "A", RequestedQty: 10},
		LineItemInput{SkuID: "B", RequestedQty: 10},
		LineItemInput{SkuID: "C", RequestedQty: 10},
	)
	res, err := f.svc.Approve(context.Background(), req.RequestID, approver, ApproveInput{
		Quantities: []LineQuantity{{LineNo: 3, Qty: 1}, {LineNo: 1, Qty: 5}},
		Truck:      &models.Truck{TruckID: "TRK-9", Capacity: 40},
	})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Request.LineItems[0].Approved())
	assert.Equal(t, 10, res.Request.LineItems[1].Approved())
	assert.Equal(t, 1, res.Request.LineItems[2].Approved())
	assert.Equal(t, "TRK-9", res.Assignment.TruckID)
	assert.InDelta(t, 40.0, res.Assignment.UtilizationPct, 0.001)

	require.Len(t, res.Notifications, 2)
	assert.Contains(t, res.Notifications[0].Message, "line 1 (A)")
	assert.Contains(t, res.Notifications[1].Message, "line 3 (C)")
}

func TestApproveIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t,
		LineItemInput{SkuID: "A", RequestedQty: 10},
		LineItemInput{SkuID: "B", RequestedQty: 10},
	)
	_, err := f.svc.Approve(context.Background(), req.RequestID, approver, ApproveInput{
		Quantities: []LineQuantity{{LineNo: 1, Qty: 5}, {LineNo: 2, Qty: 11}},
	})
	assert.ErrorIs(t, err, errs.ErrQuantityExceedsRequest)

	stored, err := f.svc.GetRequest(context.Background(), req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, stored.Status)
	for _, li := range stored.LineItems {
		assert.Nil(t, li.ApprovedQty)
	}
	_, err = f.store.Assignments().FindByRequest(context.Background(), req.RequestID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Empty(t, f.notificationsFor(t, lsr.UserID))
}

func TestApproveChecks(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, LineItemInput{SkuID: "A", RequestedQty: 10})

	_, err := f.svc.Approve(context.Background(), req.RequestID, lsr, ApproveInput{})
	assert.ErrorIs(t, err, errs.ErrPermission)

	_, err = f.svc.Approve(context.Background(), req.RequestID, approver, ApproveInput{
		Quantities: []LineQuantity{{LineNo: 2, Qty: 1}},
	})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.svc.Approve(context.Background(), req.RequestID, approver, ApproveInput{
		Truck: &models.Truck{TruckID: "TRK-0"},
	})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.svc.Approve(context.Background(), "LR-missing", approver, ApproveInput{})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	admin := models.Actor{UserID: "adm-1", Role: models.RoleAdmin}
	_, err = f.svc.Approve(context.Background(), req.RequestID, admin, ApproveInput{})
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), req.RequestID, approver, ApproveInput{})
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestApproveWithoutTruck(t *testing.T) {
	f := newFixture(t)
	req, err := f.svc.Create(context.Background(), CreateInput{
		LsrID: lsr.UserID, DepotID: "DEPOT-2", LineItems: []LineItemInput{{SkuID: "A", RequestedQty: 1}},
	})
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), req.RequestID, lsr)
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), req.RequestID, approver, ApproveInput{})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestConcurrentApproveOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, LineItemInput{SkuID: "COLA-330", RequestedQty: 100})

	const callers = 8
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		results = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Approve(context.Background(), req.RequestID, approver, ApproveInput{})
			results[i] = err
			if err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	for _, err := range results {
		if err != nil {
			assert.ErrorIs(t, err, errs.ErrInvalidState)
		}
	}
	all, err := f.svc.ListAssignments(context.Background(), repository.AssignmentFilter{RequestID: req.RequestID})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRejectAfterApproveIsInvalid(t *testing.T) {
	f := newFixture(t)
	res := f.approved(t, 100)
	_, err := f.svc.Reject(context.Background(), res.Request.RequestID, approver, "too late")
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, LineItemInput{SkuID: "A", RequestedQty: 10})

	_, err := f.svc.Reject(context.Background(), req.RequestID, approver, "   ")
	assert.ErrorIs(t, err, errs.ErrValidation)

	res, err := f.svc.Reject(context.Background(), req.RequestID, approver, "route closed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, res.Request.Status)
	assert.Equal(t, "route closed", res.Request.RejectionReason)
	require.NotNil(t, res.Request.DecidedAt)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, lsr.UserID, res.Notifications[0].UserID)

	_, err = f.svc.Cancel(context.Background(), req.RequestID, lsr)
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	draft := f.create(t, LineItemInput{SkuID: "A", RequestedQty: 1})
	submitted := f.submitted(t, LineItemInput{SkuID: "A", RequestedQty: 1})

	_, err := f.svc.Cancel(context.Background(), draft.RequestID, approver)
	assert.ErrorIs(t, err, errs.ErrPermission)

	for _, id := range []string{draft.RequestID, submitted.RequestID} {
		req, err := f.svc.Cancel(context.Background(), id, lsr)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, req.Status)
		assert.NotNil(t, req.CancelledAt)
	}

	res := f.approved(t, 100)
	_, err = f.svc.Cancel(context.Background(), res.Request.RequestID, lsr)
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestRecordShipmentRejectsOverShipment(t *testing.T) {
	f := newFixture(t)
	f.putStock(t, "COLA-330", 500)
	res := f.approved(t, 80)

	_, err := f.svc.RecordShipment(context.Background(), res.Request.RequestID, res.Assignment.AssignmentID, ShipmentData{
		Lines: []ShippedLine{{LineNo: 1, ShippedQty: 90, DiscrepancyReason: "extra pallet"}},
	})
	assert.ErrorIs(t, err, errs.ErrOverShipment)

	stored, err := f.svc.GetRequest(context.Background(), res.Request.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
	assert.Nil(t, stored.LineItems[0].ShippedQty)

	logs, err := f.svc.ListLoadingLogs(context.Background(), res.Request.RequestID)
	require.NoError(t, err)
	assert.Empty(t, logs)

	level, err := f.svc.StockLevel(context.Background(), "COLA-330", "WH-1")
	require.NoError(t, err)
	assert.Equal(t, 500, level.AvailableQty)
}

func TestRecordShipmentAllowsOverShipmentWhenConfigured(t *testing.T) {
	f := newFixture(t, WithOverShipment(true))
	f.putStock(t, "COLA-330", 500)
	res := f.approved(t, 80)

	_, err := f.svc.RecordShipment(context.Background(), res.Request.RequestID, res.Assignment.AssignmentID, ShipmentData{
		Lines: []ShippedLine{{LineNo: 1, ShippedQty: 90}},
	})
	assert.ErrorIs(t, err, errs.ErrDiscrepancyReasonNeeded)

	out, err := f.svc.RecordShipment(context.Background(), res.Request.RequestID, res.Assignment.AssignmentID, ShipmentData{
		Lines: []ShippedLine{{LineNo: 1, ShippedQty: 90, DiscrepancyReason: "extra pallet"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 90, out.Request.LineItems[0].Shipped())
}

func TestRecordShipmentUnderShipment(t *testing.T) {
	f := newFixture(t)
	f.putStock(t, "COLA-330", 500)
	res := f.approved(t, 80)
	reqID, assignID := res.Request.RequestID, res.Assignment.AssignmentID

	_, err := f.svc.RecordShipment(context.Background(), reqID, assignID, ShipmentData{
		Lines: []ShippedLine{{LineNo: 1, ShippedQty: 60}},
	})
	assert.ErrorIs(t, err, errs.ErrDiscrepancyReasonNeeded)
	logs, err := f.svc.ListLoadingLogs(context.Background(), reqID)
	require.NoError(t, err)
	assert.Empty(t, logs)

	start := fixedNow.Add(-time.Hour)
	out, err := f.svc.RecordShipment(context.Background(), reqID, assignID, ShipmentData{
		RecordedBy: "wh-1",
		Lines: []ShippedLine{{
			LineNo: 1, ShippedQty: 60, LoadingStart: start, LoadingEnd: fixedNow,
			DiscrepancyReason: "damaged", DiscrepancyDetails: "crushed pallet",
		}},
	})
	require.NoError(t, err)
	assert.Empty(t, out.StockErrors)
	assert.Equal(t, models.StatusShipped, out.Request.Status)
	assert.Equal(t, 60, out.Request.LineItems[0].Shipped())
	assert.Equal(t, models.AssignmentShipped, out.Assignment.Status)
	require.NotNil(t, out.Assignment.DepartedAt)
	require.NotNil(t, out.Assignment.LoadingStartedAt)
	assert.Equal(t, start, *out.Assignment.LoadingStartedAt)

	require.Len(t, out.LoadingLogs, 1)
	log := out.LoadingLogs[0]
	assert.Equal(t, 60, log.LoadedQty)
	assert.Equal(t, "damaged", log.DiscrepancyReason)
	assert.True(t, log.StockDeducted)
	assert.Equal(t, "wh-1", log.RecordedBy)

	level, err := f.svc.StockLevel(context.Background(), "COLA-330", "WH-1")
	require.NoError(t, err)
	assert.Equal(t, 440, level.AvailableQty)

	require.Len(t, out.Notifications, 1)
	assert.Equal(t, models.NotificationDiscrepancy, out.Notifications[0].Type)
	assert.Equal(t, lsr.UserID, out.Notifications[0].UserID)

	stored, err := f.svc.GetAssignment(context.Background(), assignID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentShipped, stored.Status)
}

func TestRecordShipmentInsufficientStockStillShips(t *testing.T) {
	f := newFixture(t)
	f.putStock(t, "COLA-330", 10)
	res := f.approved(t, 80)

	out, err := f.svc.RecordShipment(context.Background(), res.Request.RequestID, res.Assignment.AssignmentID, ShipmentData{
		Lines: []ShippedLine{{LineNo: 1, ShippedQty: 80}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, out.Request.Status)
	require.Len(t, out.StockErrors, 1)
	assert.ErrorIs(t, out.StockErrors[0], errs.ErrInsufficientStock)

	require.Len(t, out.LoadingLogs, 1)
	assert.False(t, out.LoadingLogs[0].StockDeducted)
	assert.Equal(t, 80, out.LoadingLogs[0].LoadedQty)

	level, err := f.svc.StockLevel(context.Background(), "COLA-330", "WH-1")
	require.NoError(t, err)
	assert.Equal(t, 10, level.AvailableQty)

	require.Len(t, out.Notifications, 1)
	assert.Equal(t, approver.UserID, out.Notifications[0].UserID)
	assert.Equal(t, models.NotificationDiscrepancy, out.Notifications[0].Type)
}

func TestRecordShipmentNotificationsFollowLineOrder(t *testing.T) {
	f := newFixture(t)
	f.putStock(t, "A", 100)
	f.putStock(t, "B", 5)
	f.putStock(t, "C", 3)
	ctx := context.Background()
	req := f.submitted(t,
		LineItemInput{SkuID: "A", RequestedQty: 10},
		LineItemInput{SkuID: "B", RequestedQty: 10},
		LineItemInput{SkuID: "C", RequestedQty: 10},
	)
	res, err := f.svc.Approve(ctx, req.RequestID, approver, ApproveInput{})
	require.NoError(t, err)

	out, err := f.svc.RecordShipment(ctx, req.RequestID, res.Assignment.AssignmentID, ShipmentData{
		Lines: []ShippedLine{
			{LineNo: 3, ShippedQty: 6, DiscrepancyReason: "leaking"},
			{LineNo: 1, ShippedQty: 8, DiscrepancyReason: "damaged"},
			{LineNo: 2, ShippedQty: 10},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.StockErrors, 2)

	want := []struct {
		to, msg string
	}{
		{lsr.UserID, "line 1 (A): shipped 8 of 10 approved"},
		{approver.UserID, "line 2 (B): shipped 10 but warehouse WH-1 stock could not be deducted"},
		{lsr.UserID, "line 3 (C): shipped 6 of 10 approved"},
		{approver.UserID, "line 3 (C): shipped 6 but warehouse WH-1 stock could not be deducted"},
	}
	require.Len(t, out.Notifications, len(want))
	for i, w := range want {
		n := out.Notifications[i]
		assert.Equal(t, w.to, n.UserID, "notification %d", i)
		assert.Equal(t, models.NotificationDiscrepancy, n.Type, "notification %d", i)
		assert.Contains(t, n.Message, w.msg, "notification %d", i)
	}

	deducted := make([]bool, 0, len(out.LoadingLogs))
	for _, l := range out.LoadingLogs {
		deducted = append(deducted, l.StockDeducted)
	}
	assert.Equal(t, []bool{true, false, false}, deducted)
}

func TestRecordShipmentChecks(t *testing.T) {
	f := newFixture(t)
	f.putStock(t, "A", 100)
	f.putStock(t, "B", 100)
	req := f.submitted(t, LineItemInput{SkuID: "A", RequestedQty: 10}, LineItemInput{SkuID: "B", RequestedQty: 10})
	ctx := context.Background()

	_, err := f.svc.RecordShipment(ctx, req.RequestID, "TA-x", ShipmentData{})
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	res, err := f.svc.Approve(ctx, req.RequestID, approver, ApproveInput{})
	require.NoError(t, err)
	assignID := res.Assignment.AssignmentID

	_, err = f.svc.RecordShipment(ctx, req.RequestID, assignID, ShipmentData{
		Lines: []ShippedLine{{LineNo: 1, ShippedQty: 10}},
	})
	assert.ErrorIs(t, err, errs.ErrValidation, "every line needs shipment data")

	other := f.approved(t, 100)
	_, err = f.svc.RecordShipment(ctx, req.RequestID, other.Assignment.AssignmentID, ShipmentData{
		Lines: []ShippedLine{{LineNo: 1, ShippedQty: 10}, {LineNo: 2, ShippedQty: 10}},
	})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.svc.RecordShipment(ctx, req.RequestID, assignID, ShipmentData{
		Lines: []ShippedLine{{LineNo: 1, ShippedQty: 10}, {LineNo: 2, ShippedQty: 20, DiscrepancyReason: "x"}},
	})
	assert.ErrorIs(t, err, errs.ErrOverShipment)

	level, err := f.svc.StockLevel(ctx, "A", "WH-1")
	require.NoError(t, err)
	assert.Equal(t, 100, level.AvailableQty, "a rejected shipment leaves stock alone")

	_, err = f.svc.StartLoading(ctx, assignID)
	require.NoError(t, err)
	_, err = f.svc.StartLoading(ctx, assignID)
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	out, err := f.svc.RecordShipment(ctx, req.RequestID, assignID, ShipmentData{
		Lines: []ShippedLine{{LineNo: 2, ShippedQty: 10}, {LineNo: 1, ShippedQty: 10}},
	})
	require.NoError(t, err)
	require.Len(t, out.LoadingLogs, 2)
	assert.Equal(t, "A", out.LoadingLogs[0].SkuID)
	assert.Equal(t, "B", out.LoadingLogs[1].SkuID)
	assert.Equal(t, fixedNow, *out.Assignment.LoadingStartedAt)
	assert.Empty(t, out.Notifications)

	_, err = f.svc.RecordShipment(ctx, req.RequestID, assignID, ShipmentData{
		Lines: []ShippedLine{{LineNo: 1, ShippedQty: 10}, {LineNo: 2, ShippedQty: 10}},
	})
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	f.putStock(t, "COLA-330", 100)
	res := f.approved(t, 80)

	_, err := f.svc.Complete(context.Background(), res.Request.RequestID)
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	_, err = f.svc.RecordShipment(context.Background(), res.Request.RequestID, res.Assignment.AssignmentID, ShipmentData{
		Lines: []ShippedLine{{LineNo: 1, ShippedQty: 80}},
	})
	require.NoError(t, err)

	req, err := f.svc.Complete(context.Background(), res.Request.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, req.Status)
	assert.Equal(t, 80, req.LineItems[0].Shipped())

	a, err := f.svc.GetAssignment(context.Background(), res.Assignment.AssignmentID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentCompleted, a.Status)
	assert.NotNil(t, a.CompletedAt)

	_, err = f.svc.Complete(context.Background(), res.Request.RequestID)
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}

type failingNotifications struct {
	repository.NotificationRepository
}

func (failingNotifications) Create(context.Context, *models.Notification) error {
	return errors.New("notification store down")
}

func TestNotificationFailureDoesNotBlockTransition(t *testing.T) {
	store := memory.NewStore()
	emitter := notify.NewEmitter(failingNotifications{store.Notifications()}, func() string { return "NTF" }, nil)
	svc := NewService(store, emitter, WithDirectory(StaticDirectory{DefaultApprovers: []string{"apr-1"}}))

	req, err := svc.Create(context.Background(), CreateInput{
		LsrID: lsr.UserID, DepotID: "DEPOT-1", LineItems: []LineItemInput{{SkuID: "A", RequestedQty: 5}},
	})
	require.NoError(t, err)
	res, err := svc.Submit(context.Background(), req.RequestID, lsr)
	require.NoError(t, err)
	assert.Empty(t, res.Notifications)

	stored, err := svc.GetRequest(context.Background(), req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, stored.Status)
}

func TestExpiredContextSurfacesTimeout(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, LineItemInput{SkuID: "A", RequestedQty: 5})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := f.svc.Submit(ctx, req.RequestID, lsr)
	assert.ErrorIs(t, err, errs.ErrTimeout)

	stored, err := f.svc.GetRequest(context.Background(), req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, stored.Status)
}
