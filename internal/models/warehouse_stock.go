package models

import "time"

// WarehouseStock is unique per (SkuID, WarehouseID).
type WarehouseStock struct {
	SkuID        string    `bson:"skuID" json:"skuID"`
	WarehouseID  string    `bson:"warehouseID" json:"warehouseID"`
	AvailableQty int       `bson:"availableQty" json:"availableQty"`
	ReservedQty  int       `bson:"reservedQty" json:"reservedQty"`
	UpdatedOn    time.Time `bson:"updatedOn" json:"updatedOn"`
}
