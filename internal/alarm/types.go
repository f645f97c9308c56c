// Package alarm defines the time-window alarm data model and the
// durable store that persists it.
package alarm

import (
	"encoding/json"
	"time"

	"timewarden/internal/window"
)

// RepeatType controls which days an alarm is eligible to fire.
type RepeatType string

const (
	// RepeatDaily fires every day until deleted.
	RepeatDaily RepeatType = "daily"
	// RepeatDailyToday fires only on its creation date and is deleted
	// at the next local midnight boundary.
	RepeatDailyToday RepeatType = "daily_today"
	// RepeatWeekly fires only on the weekdays in SelectedDays.
	RepeatWeekly RepeatType = "weekly"
)

// AllowedIntervals are the valid reminder intervals in minutes.
var AllowedIntervals = []int{5, 10, 15, 30, 60}

// ValidInterval reports whether n is an accepted reminder interval.
func ValidInterval(n int) bool {
	for _, v := range AllowedIntervals {
		if n == v {
			return true
		}
	}
	return false
}

// TimeWindow is one daily active window. EndTime numerically at or
// below StartTime means the window crosses midnight. Windows are owned
// by their parent alarm and never shared.
type TimeWindow struct {
	ID        string `json:"id"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Alarm is a recurring time-window alarm. StartTime/EndTime are the
// legacy single-window fields; they are authoritative only when
// TimeWindows is empty, and reads through the store transparently
// upgrade such records to a single-element TimeWindows slice.
type Alarm struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	StartTime            string       `json:"startTime,omitempty"`
	EndTime              string       `json:"endTime,omitempty"`
	TimeWindows          []TimeWindow `json:"timeWindows,omitempty"`
	IsActive             bool         `json:"isActive"`
	RepeatType           RepeatType   `json:"repeatType"`
	SelectedDays         []int        `json:"selectedDays,omitempty"` // 0=Sunday … 6=Saturday
	NotificationInterval int          `json:"notificationInterval"`   // minutes
	CreatedAt            int64        `json:"createdAt"`              // epoch ms
	CompletedToday       bool         `json:"completedToday,omitempty"`
	LastCompletedDate    string       `json:"lastCompletedDate,omitempty"` // YYYY-MM-DD
	SoundEnabled         bool         `json:"soundEnabled,omitempty"`
}

// EffectiveWindows resolves the window list: TimeWindows when
// non-empty, else a single window synthesized from the legacy fields,
// else nil.
func (a *Alarm) EffectiveWindows() []TimeWindow {
	if len(a.TimeWindows) > 0 {
		return a.TimeWindows
	}
	if a.StartTime != "" && a.EndTime != "" {
		return []TimeWindow{{ID: "default", StartTime: a.StartTime, EndTime: a.EndTime}}
	}
	return nil
}

// ScheduledOn reports whether the alarm may fire on the given weekday
// (0=Sunday). Only weekly alarms are day-gated.
func (a *Alarm) ScheduledOn(weekday int) bool {
	if a.RepeatType != RepeatWeekly {
		return true
	}
	for _, d := range a.SelectedDays {
		if d == weekday {
			return true
		}
	}
	return false
}

// InAnyWindow reports whether now falls inside any of the alarm's
// windows. Weekly alarms whose SelectedDays excludes today's weekday
// are never in window. An alarm with no resolvable window is never in
// window.
func (a *Alarm) InAnyWindow(now time.Time) bool {
	if a == nil {
		return false
	}
	if !a.ScheduledOn(int(now.Weekday())) {
		return false
	}

	windows := a.EffectiveWindows()
	if len(windows) == 0 {
		return false
	}

	current := window.FormatHHMM(now)
	for _, w := range windows {
		if window.InWindow(current, w.StartTime, w.EndTime) {
			return true
		}
	}
	return false
}

// CompletedOn reports whether the alarm was marked done on the given
// local date. A stale CompletedToday flag from an earlier date does
// not count.
func (a *Alarm) CompletedOn(date string) bool {
	return a.CompletedToday && a.LastCompletedDate == date
}

// NotificationStatus is the lifecycle state of a reminder session.
// Exactly one state holds at a time; the completed/expired timestamps
// only carry meaning for their own state.
type NotificationStatus string

const (
	StatusOpen      NotificationStatus = "open"
	StatusCompleted NotificationStatus = "completed"
	StatusExpired   NotificationStatus = "expired"
)

// Notification is the in-app record of one active reminder session for
// an alarm. At most one open record exists per alarm at any time.
// Terminated records are retained for history.
type Notification struct {
	ID                 string             `json:"id"`
	AlarmID            string             `json:"alarmId"`
	AlarmName          string             `json:"alarmName"`
	StartTime          string             `json:"startTime"`
	EndTime            string             `json:"endTime"`
	Status             NotificationStatus `json:"status"`
	CreatedAt          int64              `json:"createdAt"`             // epoch ms
	CompletedAt        int64              `json:"completedAt,omitempty"` // epoch ms
	ExpiredAt          int64              `json:"expiredAt,omitempty"`   // epoch ms
	CompletedForToday  bool               `json:"completedForToday,omitempty"`
	LastNotificationID string             `json:"lastNotificationId,omitempty"`
}

// Open reports whether the reminder session is still awaiting
// acknowledgement.
func (n *Notification) Open() bool {
	return n.Status == StatusOpen
}

// notificationJSON carries the legacy isActive flag so records written
// by earlier versions (flag triple instead of a status discriminant)
// still decode.
type notificationJSON struct {
	ID                 string             `json:"id"`
	AlarmID            string             `json:"alarmId"`
	AlarmName          string             `json:"alarmName"`
	StartTime          string             `json:"startTime"`
	EndTime            string             `json:"endTime"`
	Status             NotificationStatus `json:"status,omitempty"`
	IsActive           bool               `json:"isActive"`
	CreatedAt          int64              `json:"createdAt"`
	CompletedAt        int64              `json:"completedAt,omitempty"`
	ExpiredAt          int64              `json:"expiredAt,omitempty"`
	CompletedForToday  bool               `json:"completedForToday,omitempty"`
	LastNotificationID string             `json:"lastNotificationId,omitempty"`
}

// MarshalJSON emits the status discriminant alongside a derived
// isActive flag for readers of the old record shape.
func (n Notification) MarshalJSON() ([]byte, error) {
	return json.Marshal(notificationJSON{
		ID:                 n.ID,
		AlarmID:            n.AlarmID,
		AlarmName:          n.AlarmName,
		StartTime:          n.StartTime,
		EndTime:            n.EndTime,
		Status:             n.Status,
		IsActive:           n.Status == StatusOpen,
		CreatedAt:          n.CreatedAt,
		CompletedAt:        n.CompletedAt,
		ExpiredAt:          n.ExpiredAt,
		CompletedForToday:  n.CompletedForToday,
		LastNotificationID: n.LastNotificationID,
	})
}

// UnmarshalJSON accepts both the status discriminant and the legacy
// flag triple, deriving the status when absent. Records carrying both
// a completion and an expiry timestamp resolve to completed.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var raw notificationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	status := raw.Status
	if status == "" {
		switch {
		case raw.CompletedAt > 0:
			status = StatusCompleted
		case raw.ExpiredAt > 0:
			status = StatusExpired
		default:
			status = StatusOpen
		}
	}

	*n = Notification{
		ID:                 raw.ID,
		AlarmID:            raw.AlarmID,
		AlarmName:          raw.AlarmName,
		StartTime:          raw.StartTime,
		EndTime:            raw.EndTime,
		Status:             status,
		CreatedAt:          raw.CreatedAt,
		CompletedAt:        raw.CompletedAt,
		ExpiredAt:          raw.ExpiredAt,
		CompletedForToday:  raw.CompletedForToday,
		LastNotificationID: raw.LastNotificationID,
	}
	return nil
}
