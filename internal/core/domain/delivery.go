package domain

import "github.com/google/uuid"

// DeliveryResult describes the outcome of a direct send attempt.
type DeliveryResult string

const (
	// Delivered means the event was queued on at least one live connection.
	Delivered DeliveryResult = "DELIVERED"
	// NoConnection means the user had no live connection at send time.
	NoConnection DeliveryResult = "NO_CONNECTION"
)

// RouteOutcome summarizes what routing an event accomplished: how many live
// connections received it and which durable notification rows were created.
type RouteOutcome struct {
	Event           Event          `json:"event"`
	Delivery        DeliveryResult `json:"delivery"`
	DeliveredCount  int            `json:"deliveredCount"`
	NotificationIDs []uuid.UUID    `json:"notificationIds"`

	// PersistenceDegraded is set when live delivery succeeded but one or more
	// durable write-throughs failed. The caller should retry the write, not
	// re-deliver the event.
	PersistenceDegraded bool `json:"persistenceDegraded"`
}
