package models

import "time"

type RequestStatus string

const (
	StatusDraft     RequestStatus = "DRAFT"
	StatusSubmitted RequestStatus = "SUBMITTED"
	StatusApproved  RequestStatus = "APPROVED"
	StatusRejected  RequestStatus = "REJECTED"
	StatusCancelled RequestStatus = "CANCELLED"
	StatusShipped   RequestStatus = "SHIPPED"
	StatusCompleted RequestStatus = "COMPLETED"
)

// IsTerminal reports whether no transition leaves s.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// LineItem is one SKU's requested/approved/shipped triple. ApprovedQty and
// ShippedQty stay nil until their stage has been written.
type LineItem struct {
	LineNo         int    `bson:"lineNo" json:"lineNo"`
	SkuID          string `bson:"skuID" json:"skuID"`
	SkuName        string `bson:"skuName,omitempty" json:"skuName"`
	Brand          string `bson:"brand,omitempty" json:"brand"`
	OutletID       string `bson:"outletID,omitempty" json:"outletID"`
	OrderType      string `bson:"orderType,omitempty" json:"orderType"`
	RequestedQty   int    `bson:"requestedQty" json:"requestedQty"`
	RecommendedQty int    `bson:"recommendedQty" json:"recommendedQty"`
	ApprovedQty    *int   `bson:"approvedQty,omitempty" json:"approvedQty"`
	ShippedQty     *int   `bson:"shippedQty,omitempty" json:"shippedQty"`
}

// Approved returns the approved quantity, or 0 before approval.
func (li LineItem) Approved() int {
	if li.ApprovedQty == nil {
		return 0
	}
	return *li.ApprovedQty
}

// Shipped returns the shipped quantity, or 0 before shipment.
func (li LineItem) Shipped() int {
	if li.ShippedQty == nil {
		return 0
	}
	return *li.ShippedQty
}

type LoadRequest struct {
	RequestID        string           `bson:"requestID" json:"requestID"`
	LsrID            string           `bson:"lsrID" json:"lsrID"`
	DepotID          string           `bson:"depotID" json:"depotID"`
	WarehouseID      string           `bson:"warehouseID" json:"warehouseID"`
	JourneyDate      time.Time        `bson:"journeyDate" json:"journeyDate"`
	AssignmentID     string           `bson:"assignmentID,omitempty" json:"assignmentID,omitempty"`
	Status           RequestStatus    `bson:"status" json:"status"`
	BufferAdjustment BufferAdjustment `bson:"bufferAdjustment" json:"bufferAdjustment"`
	LineItems        []LineItem       `bson:"lineItems" json:"lineItems"`
	ApprovedBy       string           `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	DecidedBy        string           `bson:"decidedBy,omitempty" json:"decidedBy,omitempty"`
	RejectionReason  string           `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	CreatedAt        time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time        `bson:"updatedAt" json:"updatedAt"`
	SubmittedAt      *time.Time       `bson:"submittedAt,omitempty" json:"submittedAt"`
	ApprovedAt       *time.Time       `bson:"approvedAt,omitempty" json:"approvedAt"`
	DecidedAt        *time.Time       `bson:"decidedAt,omitempty" json:"decidedAt"`
	ShippedAt        *time.Time       `bson:"shippedAt,omitempty" json:"shippedAt"`
	CompletedAt      *time.Time       `bson:"completedAt,omitempty" json:"completedAt"`
	CancelledAt      *time.Time       `bson:"cancelledAt,omitempty" json:"cancelledAt"`
}

// Clone returns a deep copy so callers can derive a new state without
// touching the stored one.
func (r *LoadRequest) Clone() *LoadRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.LineItems = make([]LineItem, len(r.LineItems))
	for i, li := range r.LineItems {
		c.LineItems[i] = li
		if li.ApprovedQty != nil {
			v := *li.ApprovedQty
			c.LineItems[i].ApprovedQty = &v
		}
		if li.ShippedQty != nil {
			v := *li.ShippedQty
			c.LineItems[i].ShippedQty = &v
		}
	}
	c.SubmittedAt = cloneTime(r.SubmittedAt)
	c.ApprovedAt = cloneTime(r.ApprovedAt)
	c.DecidedAt = cloneTime(r.DecidedAt)
	c.ShippedAt = cloneTime(r.ShippedAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	c.CancelledAt = cloneTime(r.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
