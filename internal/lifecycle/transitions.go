package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/ledger"
	"load-request-api-server/internal/models"
)

// edges is the whole state graph. Anything not listed is illegal.
var edges = map[models.RequestStatus][]models.RequestStatus{
	models.StatusDraft:     {models.StatusSubmitted, models.StatusCancelled},
	models.StatusSubmitted: {models.StatusApproved, models.StatusRejected, models.StatusCancelled},
	models.StatusApproved:  {models.StatusShipped},
	models.StatusShipped:   {models.StatusCompleted},
}

// CanTransition reports whether from -> to is an edge of the state graph.
func CanTransition(from, to models.RequestStatus) bool {
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

func checkEdge(req *models.LoadRequest, to models.RequestStatus) error {
	if !CanTransition(req.Status, to) {
		return errs.InvalidState("load request %s is %s and cannot move to %s", req.RequestID, req.Status, to)
	}
	return nil
}

func buildLineItems(in []LineItemInput, buf models.BufferAdjustment) ([]models.LineItem, error) {
	items := make([]models.LineItem, 0, len(in))
	for i, li := range in {
		sku := strings.TrimSpace(li.SkuID)
		if sku == "" {
			return nil, errs.Validation("line %d: sku id is required", i+1)
		}
		if li.RequestedQty < 0 {
			return nil, errs.Validation("line %d (%s): requested quantity %d is negative", i+1, sku, li.RequestedQty)
		}
		items = append(items, models.LineItem{
			LineNo:         i + 1,
			SkuID:          sku,
			SkuName:        li.SkuName,
			Brand:          li.Brand,
			OutletID:       li.OutletID,
			OrderType:      li.OrderType,
			RequestedQty:   li.RequestedQty,
			RecommendedQty: ledger.Recommend(li.RequestedQty, buf),
		})
	}
	return items, nil
}

func validateBuffer(buf models.BufferAdjustment) error {
	if buf.Value < 0 {
		return errs.Validation("buffer adjustment must not be negative")
	}
	switch buf.Kind {
	case "", models.BufferPercent, models.BufferAbsolute:
		return nil
	}
	return errs.Validation("unknown buffer adjustment kind %q", buf.Kind)
}

func decideSubmit(cur *models.LoadRequest, actor models.Actor, dir Directory, now time.Time) (*models.LoadRequest, []models.NotificationEvent, error) {
	if actor.UserID != cur.LsrID {
		return nil, nil, errs.Permission("only the owner can submit load request %s", cur.RequestID)
	}
	if err := checkEdge(cur, models.StatusSubmitted); err != nil {
		return nil, nil, err
	}
	if len(cur.LineItems) == 0 {
		return nil, nil, &errs.Error{Code: errs.CodeEmptyRequest, Message: fmt.Sprintf("load request %s has no line items", cur.RequestID)}
	}
	next := cur.Clone()
	next.Status = models.StatusSubmitted
	next.SubmittedAt = &now
	next.UpdatedAt = now

	totals := ledger.SumTotals(next.LineItems)
	var events []models.NotificationEvent
	for _, approver := range dir.Approvers(next.DepotID) {
		events = append(events, models.NotificationEvent{
			UserID: approver,
			Message: fmt.Sprintf("Load request %s from %s for depot %s awaits approval (%d lines, %d units)",
				next.RequestID, next.LsrID, next.DepotID, len(next.LineItems), totals.Requested),
			Type:             models.NotificationApproval,
			RelatedRequestID: next.RequestID,
		})
	}
	return next, events, nil
}

type approvalPlan struct {
	request    *models.LoadRequest
	assignment *models.TruckAssignment
	events     []models.NotificationEvent
}

// decideApprove computes the approved request and its truck assignment. It
// validates every line before touching any, so a bad quantity leaves the
// request as it was. Utilization is taken over approved quantities because
// that is what gets loaded onto the truck.
func decideApprove(cur *models.LoadRequest, actor models.Actor, in ApproveInput, truck models.Truck, assignmentID string, now time.Time) (*approvalPlan, error) {
	if !actor.CanApprove() {
		return nil, errs.Permission("user %s cannot approve load requests", actor.UserID)
	}
	if err := checkEdge(cur, models.StatusApproved); err != nil {
		return nil, err
	}
	if truck.TruckID == "" {
		return nil, errs.Validation("load request %s has no truck to assign", cur.RequestID)
	}
	if truck.Capacity <= 0 {
		return nil, errs.Validation("truck %s capacity must be positive", truck.TruckID)
	}

	approved := make(map[int]int, len(in.Quantities))
	for _, q := range in.Quantities {
		if q.LineNo < 1 || q.LineNo > len(cur.LineItems) {
			return nil, errs.Validation("load request %s has no line %d", cur.RequestID, q.LineNo)
		}
		if _, dup := approved[q.LineNo]; dup {
			return nil, errs.Validation("line %d approved twice", q.LineNo)
		}
		if q.Qty < 0 {
			return nil, errs.Validation("line %d: approved quantity %d is negative", q.LineNo, q.Qty)
		}
		approved[q.LineNo] = q.Qty
	}

	next := cur.Clone()
	var events []models.NotificationEvent
	for i := range next.LineItems {
		li := &next.LineItems[i]
		qty, ok := approved[li.LineNo]
		if !ok {
			qty = li.RequestedQty
		}
		if qty > li.RequestedQty {
			return nil, &errs.Error{
				Code:    errs.CodeQuantityExceedsRequest,
				Message: fmt.Sprintf("line %d (%s): approved %d exceeds requested %d", li.LineNo, li.SkuID, qty, li.RequestedQty),
			}
		}
		li.ApprovedQty = &qty
		if qty < li.RequestedQty {
			events = append(events, models.NotificationEvent{
				UserID: next.LsrID,
				Message: fmt.Sprintf("Load request %s line %d (%s): approved %d of %d requested, short %d",
					next.RequestID, li.LineNo, li.SkuID, qty, li.RequestedQty, li.RequestedQty-qty),
				Type:             models.NotificationApproval,
				RelatedRequestID: next.RequestID,
			})
		}
	}

	next.Status = models.StatusApproved
	next.ApprovedAt = &now
	next.ApprovedBy = actor.UserID
	next.DecidedAt = &now
	next.DecidedBy = actor.UserID
	next.AssignmentID = assignmentID
	next.UpdatedAt = now

	totals := ledger.SumTotals(next.LineItems)
	assignment := &models.TruckAssignment{
		AssignmentID:   assignmentID,
		RequestID:      next.RequestID,
		Truck:          truck,
		UtilizationPct: ledger.Utilization(totals.Approved, truck.Capacity),
		Status:         models.AssignmentAssigned,
		AssignedAt:     now,
	}
	return &approvalPlan{request: next, assignment: assignment, events: events}, nil
}

func decideReject(cur *models.LoadRequest, actor models.Actor, reason string, now time.Time) (*models.LoadRequest, []models.NotificationEvent, error) {
	if !actor.CanApprove() {
		return nil, nil, errs.Permission("user %s cannot reject load requests", actor.UserID)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, nil, errs.Validation("a rejection reason is required")
	}
	if err := checkEdge(cur, models.StatusRejected); err != nil {
		return nil, nil, err
	}
	next := cur.Clone()
	next.Status = models.StatusRejected
	next.RejectionReason = reason
	next.DecidedAt = &now
	next.DecidedBy = actor.UserID
	next.UpdatedAt = now
	events := []models.NotificationEvent{{
		UserID:           next.LsrID,
		Message:          fmt.Sprintf("Load request %s was rejected: %s", next.RequestID, reason),
		Type:             models.NotificationApproval,
		RelatedRequestID: next.RequestID,
	}}
	return next, events, nil
}

func decideCancel(cur *models.LoadRequest, actor models.Actor, now time.Time) (*models.LoadRequest, error) {
	if actor.UserID != cur.LsrID {
		return nil, errs.Permission("only the owner can cancel load request %s", cur.RequestID)
	}
	if err := checkEdge(cur, models.StatusCancelled); err != nil {
		return nil, err
	}
	next := cur.Clone()
	next.Status = models.StatusCancelled
	next.CancelledAt = &now
	next.UpdatedAt = now
	return next, nil
}

func decideComplete(cur *models.LoadRequest, now time.Time) (*models.LoadRequest, error) {
	if err := checkEdge(cur, models.StatusCompleted); err != nil {
		return nil, err
	}
	next := cur.Clone()
	next.Status = models.StatusCompleted
	next.CompletedAt = &now
	next.UpdatedAt = now
	return next, nil
}

// shipmentLine is one validated line of a shipment, in stored sequence order.
type shipmentLine struct {
	item  models.LineItem
	input ShippedLine
}

// planShipment validates shipment data against the approved ledger. Nothing
// is written if any line fails.
func planShipment(cur *models.LoadRequest, data ShipmentData, allowOver bool, now time.Time) ([]shipmentLine, error) {
	byLine := make(map[int]ShippedLine, len(data.Lines))
	for _, l := range data.Lines {
		if _, dup := byLine[l.LineNo]; dup {
			return nil, errs.Validation("line %d shipped twice", l.LineNo)
		}
		if l.LineNo < 1 || l.LineNo > len(cur.LineItems) {
			return nil, errs.Validation("load request %s has no line %d", cur.RequestID, l.LineNo)
		}
		byLine[l.LineNo] = l
	}

	plan := make([]shipmentLine, 0, len(cur.LineItems))
	for _, li := range cur.LineItems {
		in, ok := byLine[li.LineNo]
		if !ok {
			return nil, errs.Validation("missing shipment data for line %d (%s)", li.LineNo, li.SkuID)
		}
		if in.ShippedQty < 0 {
			return nil, errs.Validation("line %d: shipped quantity %d is negative", li.LineNo, in.ShippedQty)
		}
		in.DiscrepancyReason = strings.TrimSpace(in.DiscrepancyReason)
		approved := li.Approved()
		switch {
		case in.ShippedQty > approved && !allowOver:
			return nil, &errs.Error{
				Code:    errs.CodeOverShipment,
				Message: fmt.Sprintf("line %d (%s): shipped %d exceeds approved %d", li.LineNo, li.SkuID, in.ShippedQty, approved),
			}
		case in.ShippedQty != approved && in.DiscrepancyReason == "":
			return nil, &errs.Error{
				Code:    errs.CodeDiscrepancyReasonNeeded,
				Message: fmt.Sprintf("line %d (%s): shipped %d of %d approved requires a discrepancy reason", li.LineNo, li.SkuID, in.ShippedQty, approved),
			}
		}
		if in.LoadingStart.IsZero() {
			in.LoadingStart = now
		}
		if in.LoadingEnd.IsZero() {
			in.LoadingEnd = now
		}
		if in.LoadingEnd.Before(in.LoadingStart) {
			return nil, errs.Validation("line %d: loading window ends before it starts", li.LineNo)
		}
		plan = append(plan, shipmentLine{item: li, input: in})
	}
	return plan, nil
}

func shortfallEvent(req *models.LoadRequest, l shipmentLine) models.NotificationEvent {
	approved := l.item.Approved()
	return models.NotificationEvent{
		UserID: req.LsrID,
		Message: fmt.Sprintf("Load request %s line %d (%s): shipped %d of %d approved, short %d. Reason: %s",
			req.RequestID, l.item.LineNo, l.item.SkuID, l.input.ShippedQty, approved, approved-l.input.ShippedQty, l.input.DiscrepancyReason),
		Type:             models.NotificationDiscrepancy,
		RelatedRequestID: req.RequestID,
	}
}

func stockAnomalyEvent(req *models.LoadRequest, l shipmentLine, cause error) models.NotificationEvent {
	to := req.ApprovedBy
	if to == "" {
		to = req.LsrID
	}
	return models.NotificationEvent{
		UserID: to,
		Message: fmt.Sprintf("Load request %s line %d (%s): shipped %d but warehouse %s stock could not be deducted: %v",
			req.RequestID, l.item.LineNo, l.item.SkuID, l.input.ShippedQty, req.WarehouseID, cause),
		Type:             models.NotificationDiscrepancy,
		RelatedRequestID: req.RequestID,
	}
}
