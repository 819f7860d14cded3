package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/models"
)

type stockRepo struct{ s *Store }

const stockColumns = `sku_id, warehouse_id, available_qty, reserved_qty, updated_on`

func scanStock(row *sql.Row) (*models.WarehouseStock, error) {
	var st models.WarehouseStock
	if err := row.Scan(&st.SkuID, &st.WarehouseID, &st.AvailableQty, &st.ReservedQty, &st.UpdatedOn); err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *stockRepo) Get(ctx context.Context, skuID, warehouseID string) (*models.WarehouseStock, error) {
	row := r.s.q(ctx).QueryRowContext(ctx,
		`SELECT `+stockColumns+` FROM warehouse_stock WHERE sku_id = $1 AND warehouse_id = $2`, skuID, warehouseID)
	st, err := scanStock(row)
	if err != nil {
		return nil, translate(err, "warehouse stock", skuID+"@"+warehouseID)
	}
	return st, nil
}

func (r *stockRepo) Put(ctx context.Context, st *models.WarehouseStock) error {
	if st.AvailableQty < 0 || st.ReservedQty < 0 {
		return errs.Validation("stock quantities must be non-negative")
	}
	_, err := r.s.q(ctx).ExecContext(ctx,
		`INSERT INTO warehouse_stock (`+stockColumns+`) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (sku_id, warehouse_id)
		 DO UPDATE SET available_qty = EXCLUDED.available_qty, reserved_qty = EXCLUDED.reserved_qty, updated_on = EXCLUDED.updated_on`,
		st.SkuID, st.WarehouseID, st.AvailableQty, st.ReservedQty, st.UpdatedOn)
	return translate(err, "warehouse stock", st.SkuID+"@"+st.WarehouseID)
}

// Decrement is a single conditional UPDATE; the row lock it takes
// linearizes concurrent decrements of the same key.
func (r *stockRepo) Decrement(ctx context.Context, skuID, warehouseID string, qty int) (*models.WarehouseStock, error) {
	row := r.s.q(ctx).QueryRowContext(ctx,
		`UPDATE warehouse_stock SET available_qty = available_qty - $1, updated_on = $2
		 WHERE sku_id = $3 AND warehouse_id = $4 AND available_qty >= $1
		 RETURNING `+stockColumns,
		qty, time.Now().UTC(), skuID, warehouseID)
	st, err := scanStock(row)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, translate(err, "warehouse stock", skuID+"@"+warehouseID)
	}
	available := 0
	if cur, getErr := r.Get(ctx, skuID, warehouseID); getErr == nil {
		available = cur.AvailableQty
	}
	return nil, errs.InsufficientStock(skuID, warehouseID, qty, available)
}
