// Package stock is the authoritative available quantity per (SKU, warehouse).
// Stock is only ever decremented, at shipment time; nothing is reserved ahead.
package stock

import (
	"context"

	"go.uber.org/zap"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/repository"
)

type Ledger struct {
	repo   repository.StockRepository
	logger *zap.Logger
}

func NewLedger(repo repository.StockRepository, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{repo: repo, logger: logger}
}

// Decrement removes qty from availableQty in one atomic step. It returns an
// INSUFFICIENT_STOCK error and leaves the level untouched when qty exceeds
// what is available. A zero quantity is a no-op.
func (l *Ledger) Decrement(ctx context.Context, skuID, warehouseID string, qty int) error {
	if skuID == "" || warehouseID == "" {
		return errs.Validation("sku and warehouse are required")
	}
	if qty < 0 {
		return errs.Validation("cannot decrement %s by negative quantity %d", skuID, qty)
	}
	if qty == 0 {
		return nil
	}
	st, err := l.repo.Decrement(ctx, skuID, warehouseID, qty)
	if err != nil {
		return err
	}
	l.logger.Debug("Stock decremented",
		zap.String("sku_id", skuID),
		zap.String("warehouse_id", warehouseID),
		zap.Int("qty", qty),
		zap.Int("available_qty", st.AvailableQty))
	return nil
}

func (l *Ledger) Level(ctx context.Context, skuID, warehouseID string) (*models.WarehouseStock, error) {
	return l.repo.Get(ctx, skuID, warehouseID)
}
