package models

import "time"

type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "UNREAD"
	NotificationRead   NotificationStatus = "READ"
)

type NotificationType string

const (
	NotificationApproval    NotificationType = "APPROVAL"
	NotificationDiscrepancy NotificationType = "DISCREPANCY"
	NotificationSystem      NotificationType = "SYSTEM"
)

type Notification struct {
	NotificationID   string             `bson:"notificationID" json:"notificationID"`
	UserID           string             `bson:"userID" json:"userID"`
	Message          string             `bson:"message" json:"message"`
	Status           NotificationStatus `bson:"status" json:"status"`
	Type             NotificationType   `bson:"type" json:"type"`
	RelatedRequestID string             `bson:"relatedRequestID,omitempty" json:"relatedRequestID"`
	CreatedOn        time.Time          `bson:"createdOn" json:"createdOn"`
}

// NotificationEvent is an alert a transition decided to raise. The lifecycle
// returns these alongside its mutation; the emitter turns them into
// Notification records after the mutation commits.
type NotificationEvent struct {
	UserID           string
	Message          string
	Type             NotificationType
	RelatedRequestID string
}
