package models

import "time"

type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "ASSIGNED"
	AssignmentLoading   AssignmentStatus = "LOADING"
	AssignmentShipped   AssignmentStatus = "SHIPPED"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
)

// Truck describes the vehicle and crew put on a request at approval.
type Truck struct {
	TruckID  string `bson:"truckID" json:"truckID" mapstructure:"truckId"`
	DriverID string `bson:"driverID" json:"driverID" mapstructure:"driverId"`
	HelperID string `bson:"helperID,omitempty" json:"helperID" mapstructure:"helperId"`
	Capacity int    `bson:"capacity" json:"capacity" mapstructure:"capacity"`
}

type TruckAssignment struct {
	AssignmentID     string           `bson:"assignmentID" json:"assignmentID"`
	RequestID        string           `bson:"requestID" json:"requestID"`
	Truck            `bson:",inline"`
	UtilizationPct   float64          `bson:"utilizationPct" json:"utilizationPct"`
	Status           AssignmentStatus `bson:"status" json:"status"`
	AssignedAt       time.Time        `bson:"assignedAt" json:"assignedAt"`
	LoadingStartedAt *time.Time       `bson:"loadingStartedAt,omitempty" json:"loadingStartedAt"`
	DepartedAt       *time.Time       `bson:"departedAt,omitempty" json:"departedAt"`
	CompletedAt      *time.Time       `bson:"completedAt,omitempty" json:"completedAt"`
}
