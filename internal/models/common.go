// internal/models/common.go
package models

// Actor is the caller identity resolved by the auth layer.
type Actor struct {
	UserID string `json:"userID"`
	Role   string `json:"role"`
	Email  string `json:"email"`
}

const (
	RoleRequester = "requester"
	RoleApprover  = "approver"
	RoleAdmin     = "admin"
)

// CanApprove reports whether the actor holds approver capability.
func (a Actor) CanApprove() bool {
	return a.Role == RoleApprover || a.Role == RoleAdmin
}

// BufferAdjustment pads requested quantities when recommending a load. Advisory only.
type BufferAdjustment struct {
	Kind  string  `bson:"kind,omitempty" json:"kind"` // PERCENT or ABSOLUTE
	Value float64 `bson:"value,omitempty" json:"value"`
}

const (
	BufferPercent  = "PERCENT"
	BufferAbsolute = "ABSOLUTE"
)
