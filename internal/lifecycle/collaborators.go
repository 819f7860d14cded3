package lifecycle

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"load-request-api-server/internal/models"
)

// IDGenerator issues identifiers that are never reused.
type IDGenerator interface {
	NewID(prefix string) string
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.New().String())
}

// Catalog supplies SKU display metadata.
type Catalog interface {
	Lookup(ctx context.Context, skuID string) (*models.SKU, error)
}

// Directory answers routing questions about depots.
type Directory interface {
	Approvers(depotID string) []string
	WarehouseFor(depotID string) string
	DefaultTruck(depotID string) (models.Truck, bool)
}

type Depot struct {
	WarehouseID string
	Approvers   []string
	Truck       *models.Truck
}

// StaticDirectory serves depot routing from configuration. Depots missing
// from the map fall back to DefaultApprovers and use their own id as the
// warehouse.
type StaticDirectory struct {
	Depots           map[string]Depot
	DefaultApprovers []string
}

func (d StaticDirectory) Approvers(depotID string) []string {
	if dep, ok := d.Depots[depotID]; ok && len(dep.Approvers) > 0 {
		return dep.Approvers
	}
	return d.DefaultApprovers
}

func (d StaticDirectory) WarehouseFor(depotID string) string {
	if dep, ok := d.Depots[depotID]; ok && dep.WarehouseID != "" {
		return dep.WarehouseID
	}
	return depotID
}

func (d StaticDirectory) DefaultTruck(depotID string) (models.Truck, bool) {
	if dep, ok := d.Depots[depotID]; ok && dep.Truck != nil {
		return *dep.Truck, true
	}
	return models.Truck{}, false
}
