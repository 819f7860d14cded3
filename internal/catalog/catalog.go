// Package catalog looks up SKU display metadata. It is only used to enrich
// line items; ledger arithmetic never depends on it.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/models"
)

const Collection = "skus"

type Mongo struct {
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{coll: db.Collection(Collection)}
}

func (c *Mongo) Lookup(ctx context.Context, skuID string) (*models.SKU, error) {
	var sku models.SKU
	err := c.coll.FindOne(ctx, bson.M{"skuID": skuID}).Decode(&sku)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.NotFound("sku", skuID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up sku %s: %w", skuID, err)
	}
	return &sku, nil
}

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (c *Postgres) Lookup(ctx context.Context, skuID string) (*models.SKU, error) {
	sku := models.SKU{SkuID: skuID}
	err := c.db.QueryRowContext(ctx,
		`SELECT name, brand, unit FROM skus WHERE sku_id = $1`, skuID).
		Scan(&sku.Name, &sku.Brand, &sku.Unit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("sku", skuID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up sku %s: %w", skuID, err)
	}
	return &sku, nil
}

// Static serves a fixed set of SKUs, keyed by id.
type Static map[string]models.SKU

// NewStatic indexes skus by id. Entries without an id are skipped.
func NewStatic(skus []models.SKU) Static {
	c := make(Static, len(skus))
	for _, sku := range skus {
		if sku.SkuID == "" {
			continue
		}
		c[sku.SkuID] = sku
	}
	return c
}

func (c Static) Lookup(_ context.Context, skuID string) (*models.SKU, error) {
	sku, ok := c[skuID]
	if !ok {
		return nil, errs.NotFound("sku", skuID)
	}
	if sku.SkuID == "" {
		sku.SkuID = skuID
	}
	return &sku, nil
}
