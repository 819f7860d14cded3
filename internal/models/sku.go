package models

// SKU is catalog metadata used to enrich line items for display.
type SKU struct {
	SkuID string `bson:"skuID" json:"skuID"`
	Name  string `bson:"name" json:"name"`
	Brand string `bson:"brand" json:"brand"`
	Unit  string `bson:"unit" json:"unit"`
}
