// Package notify translates alarm configuration into concrete
// notification instants and manages their lifecycle against a
// notification backend: schedule, cancel, dismiss, and repair.
package notify

import (
	"fmt"
	"time"

	"timewarden/internal/window"
)

// Payload data constants recognised by response routing.
const (
	TypeTimeWindowAlarm = "time_window_alarm"
	ActionOpenActiveTab = "open_active_tab"
	ActionComplete      = "COMPLETE_ACTION"
)

// Data is the payload data bag carried by every notification so a user
// response can be routed back to the owning alarm.
type Data struct {
	AlarmID        string `json:"alarmId"`
	NotificationID string `json:"notificationId"`
	Type           string `json:"type"`
	Action         string `json:"action,omitempty"`
	WindowID       string `json:"windowId,omitempty"`
}

// Payload is the content of one notification, including the
// persistence hints platforms interpret as best they can.
type Payload struct {
	Title             string `json:"title"`
	Body              string `json:"body"`
	Data              Data   `json:"data"`
	Sound             bool   `json:"sound"`
	Priority          string `json:"priority,omitempty"` // "max" for reminder sessions
	Sticky            bool   `json:"sticky,omitempty"`   // non-swipe-dismissible where supported
	LockscreenVisible bool   `json:"lockscreen_visible,omitempty"`
}

// ScheduledRequest is a notification waiting to fire.
type ScheduledRequest struct {
	ID      string
	FireAt  time.Time
	Payload Payload
}

// Presented is a notification currently visible to the user.
type Presented struct {
	ID          string
	Payload     Payload
	PresentedAt time.Time
}

// Response surfaces a user interaction with a presented notification.
type Response struct {
	ActionIdentifier string
	Data             Data
}

// ResponseHandler receives user interactions. A single handler is
// attached at startup.
type ResponseHandler func(Response)

// Backend is the notification collaborator: the thin per-platform
// schedule/cancel/dismiss/query API. All calls return in bounded time;
// failures are per-call and never fatal to a sweep over multiple
// alarms.
type Backend interface {
	// RequestPermission asks to present notifications. A denial is an
	// advisory degradation, not an error.
	RequestPermission() (bool, error)
	// ScheduleImmediate presents a notification right away under the
	// given identifier, replacing any prior one with the same id.
	ScheduleImmediate(id string, p Payload) error
	// ScheduleAt registers a notification to fire at the given instant.
	ScheduleAt(id string, at time.Time, p Payload) error
	// CancelScheduled removes a pending scheduled notification.
	// Cancelling an unknown id is a no-op.
	CancelScheduled(id string) error
	// DismissPresented removes a currently visible notification.
	// Dismissing an unknown id is a no-op.
	DismissPresented(id string) error
	// ListScheduled returns all pending scheduled notifications.
	ListScheduled() ([]ScheduledRequest, error)
	// ListPresented returns all currently visible notifications.
	ListPresented() ([]Presented, error)
	// SetResponseHandler attaches the single handler for user
	// interactions.
	SetResponseHandler(h ResponseHandler)
}

// CanonicalID is the per-alarm identifier used for the immediate
// notification path. Re-submitting under it replaces any prior one.
func CanonicalID(alarmID string) string {
	return "alarm_" + alarmID
}

// HorizonID identifies one pre-scheduled notification instant. Both id
// schemes keep the bare alarm id as a substring so defensive
// cancellation can locate every variant.
func HorizonID(alarmID string, day time.Time, windowID string, seq int) string {
	return fmt.Sprintf("alarm_%s_%s_%s_%d", alarmID, day.Format(window.DateFormat), windowID, seq)
}
