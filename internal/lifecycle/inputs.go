package lifecycle

import (
	"time"

	"load-request-api-server/internal/models"
)

type LineItemInput struct {
	SkuID        string `json:"skuID" binding:"required"`
	SkuName      string `json:"skuName"`
	Brand        string `json:"brand"`
	OutletID     string `json:"outletID"`
	OrderType    string `json:"orderType"`
	RequestedQty int    `json:"requestedQty"`
}

type CreateInput struct {
	LsrID            string                  `json:"-"`
	DepotID          string                  `json:"depotID" binding:"required"`
	JourneyDate      time.Time               `json:"journeyDate"`
	BufferAdjustment models.BufferAdjustment `json:"bufferAdjustment"`
	LineItems        []LineItemInput         `json:"lineItems"`
}

type UpdateDraftInput struct {
	JourneyDate      *time.Time               `json:"journeyDate"`
	BufferAdjustment *models.BufferAdjustment `json:"bufferAdjustment"`
	LineItems        []LineItemInput          `json:"lineItems"`
}

// LineQuantity addresses a line item by its 1-based line number.
type LineQuantity struct {
	LineNo int `json:"lineNo" binding:"required"`
	Qty    int `json:"qty"`
}

// ApproveInput carries the approved quantities; lines left out are approved
// in full. Truck falls back to the depot's default truck.
type ApproveInput struct {
	Quantities []LineQuantity `json:"approvedQuantities"`
	Truck      *models.Truck  `json:"truck"`
}

type ShippedLine struct {
	LineNo             int       `json:"lineNo" binding:"required"`
	ShippedQty         int       `json:"shippedQty"`
	LoadingStart       time.Time `json:"loadingStart"`
	LoadingEnd         time.Time `json:"loadingEnd"`
	DiscrepancyReason  string    `json:"discrepancyReason"`
	DiscrepancyDetails string    `json:"discrepancyDetails"`
}

type ShipmentData struct {
	RecordedBy string        `json:"-"`
	Lines      []ShippedLine `json:"lines" binding:"required"`
}

type ApprovalResult struct {
	Request       *models.LoadRequest     `json:"request"`
	Assignment    *models.TruckAssignment `json:"assignment"`
	Notifications []models.Notification   `json:"notifications"`
}

// ShipmentResult reports a recorded shipment. StockErrors lists the lines
// whose stock decrement was skipped; the shipment itself still stands.
type ShipmentResult struct {
	Request       *models.LoadRequest     `json:"request"`
	Assignment    *models.TruckAssignment `json:"assignment"`
	LoadingLogs   []models.LoadingLog     `json:"loadingLogs"`
	StockErrors   []error                 `json:"-"`
	Notifications []models.Notification   `json:"notifications"`
}

type TransitionResult struct {
	Request       *models.LoadRequest   `json:"request"`
	Notifications []models.Notification `json:"notifications"`
}
