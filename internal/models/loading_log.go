package models

import "time"

// LoadingLog records one physical load event. It is never updated once written.
type LoadingLog struct {
	LogID              string    `bson:"logID" json:"logID"`
	AssignmentID       string    `bson:"assignmentID" json:"assignmentID"`
	RequestID          string    `bson:"requestID" json:"requestID"`
	LineNo             int       `bson:"lineNo" json:"lineNo"`
	SkuID              string    `bson:"skuID" json:"skuID"`
	LoadedQty          int       `bson:"loadedQty" json:"loadedQty"`
	LoadingStart       time.Time `bson:"loadingStart" json:"loadingStart"`
	LoadingEnd         time.Time `bson:"loadingEnd" json:"loadingEnd"`
	DiscrepancyReason  string    `bson:"discrepancyReason,omitempty" json:"discrepancyReason,omitempty"`
	DiscrepancyDetails string    `bson:"discrepancyDetails,omitempty" json:"discrepancyDetails,omitempty"`
	StockDeducted      bool      `bson:"stockDeducted" json:"stockDeducted"`
	RecordedBy         string    `bson:"recordedBy,omitempty" json:"recordedBy,omitempty"`
	CreatedAt          time.Time `bson:"createdAt" json:"createdAt"`
}
