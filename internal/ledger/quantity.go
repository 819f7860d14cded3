// Package ledger holds the quantity arithmetic over line items. It does no I/O.
package ledger

import (
	"math"

	"load-request-api-server/internal/models"
)

// Totals sums the three ledger stages over a set of line items. Unset stages
// count as zero.
type Totals struct {
	Requested   int `json:"requested"`
	Approved    int `json:"approved"`
	Shipped     int `json:"shipped"`
	Discrepancy int `json:"discrepancy"`
}

// Discrepancy is approvedQty - shippedQty.
func Discrepancy(item models.LineItem) int {
	return item.Approved() - item.Shipped()
}

// IsShortfall reports whether less was shipped than approved.
func IsShortfall(item models.LineItem) bool {
	return item.Shipped() < item.Approved()
}

func SumTotals(items []models.LineItem) Totals {
	var t Totals
	for _, li := range items {
		t.Requested += li.RequestedQty
		t.Approved += li.Approved()
		t.Shipped += li.Shipped()
	}
	t.Discrepancy = t.Approved - t.Shipped
	return t
}

// Utilization returns qty as a percentage of capacity, rounded to two decimals.
func Utilization(qty, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	pct := float64(qty) * 100 / float64(capacity)
	return math.Round(pct*100) / 100
}

// Recommend pads a requested quantity with the requester's buffer. A percent
// buffer rounds up to the next whole unit. The result is advisory.
func Recommend(requested int, buf models.BufferAdjustment) int {
	if buf.Value <= 0 {
		return requested
	}
	switch buf.Kind {
	case models.BufferPercent:
		return requested + int(math.Ceil(float64(requested)*buf.Value/100))
	case models.BufferAbsolute:
		return requested + int(math.Ceil(buf.Value))
	}
	return requested
}
