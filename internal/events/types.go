package events

import "time"

// EventType identifies the kind of event being published.
type EventType string

const (
	// Alarm record events
	AlarmCreated EventType = "alarm_created"
	AlarmUpdated EventType = "alarm_updated"
	AlarmDeleted EventType = "alarm_deleted"

	// Reminder session events
	WindowOpened      EventType = "window_opened"
	ReminderCompleted EventType = "reminder_completed"
	ReminderExpired   EventType = "reminder_expired"
	ReminderRepaired  EventType = "reminder_repaired"

	// Engine events
	StateRefresh   EventType = "state_refresh"
	HorizonRefresh EventType = "horizon_refresh"
	DailyCleanup   EventType = "daily_cleanup"
)

// Severity indicates the urgency of an event.
type Severity int

const (
	SeverityInfo     Severity = 0
	SeverityWarning  Severity = 1
	SeverityCritical Severity = 2
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Event is the payload published through the bus.
type Event struct {
	Type           EventType         `json:"type"`
	Severity       Severity          `json:"severity"`
	AlarmID        string            `json:"alarm_id,omitempty"`
	AlarmName      string            `json:"alarm_name,omitempty"`
	NotificationID string            `json:"notification_id,omitempty"`
	Message        string            `json:"message"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}
