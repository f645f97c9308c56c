// Package reconcile holds the periodic decision function of the
// engine: per alarm, compare "is now inside a window" against "does an
// open reminder session exist" and create, repair, or expire
// accordingly.
package reconcile

import (
	"log"
	"sync"
	"time"

	"timewarden/internal/alarm"
	"timewarden/internal/events"
	"timewarden/internal/notify"
)

// Reconciler derives each alarm's state fresh on every pass from the
// store, never carrying forward in-memory assumptions. Both timer
// entry points (foreground poll and background task) funnel through
// Run; a mutex serializes overlapping invocations.
type Reconciler struct {
	store     *alarm.Store
	scheduler *notify.Scheduler
	bus       *events.Bus

	mu sync.Mutex
}

// New creates a reconciler. bus may be nil when no refresh signalling
// is wanted.
func New(store *alarm.Store, scheduler *notify.Scheduler, bus *events.Bus) *Reconciler {
	return &Reconciler{store: store, scheduler: scheduler, bus: bus}
}

// Run executes one reconciliation pass at the given instant and
// reports whether anything changed. The flag is purely a
// notify-to-refresh signal for callers; correctness never depends on
// it. Errors on one alarm never stop the sweep over the rest.
func (r *Reconciler) Run(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.ResetDailyCompletions(); err != nil {
		log.Printf("reconcile: reset daily completions: %v", err)
	}

	alarms := r.store.GetAlarms()
	open := make(map[string]alarm.Notification)
	for _, n := range r.store.GetActiveNotifications() {
		open[n.AlarmID] = n
	}

	changed := false
	for i := range alarms {
		a := &alarms[i]
		if !a.IsActive {
			continue
		}
		if r.store.IsAlarmCompletedToday(a) {
			continue
		}

		inWindow := a.InAnyWindow(now)
		existing, hasOpen := open[a.ID]

		switch {
		case inWindow && !hasOpen:
			n, err := r.store.CreateNotification(a)
			if err != nil {
				log.Printf("reconcile: open reminder for %s (%s): %v", a.ID, a.Name, err)
				continue
			}
			log.Printf("reconcile: window opened for %s (%s)", a.ID, a.Name)
			changed = true
			r.publish(events.Event{
				Type:           events.WindowOpened,
				AlarmID:        a.ID,
				AlarmName:      a.Name,
				NotificationID: n.ID,
				Message:        "reminder window opened",
			})

		case !inWindow && hasOpen:
			if err := r.store.ExpireNotification(existing.ID); err != nil {
				log.Printf("reconcile: expire reminder for %s (%s): %v", a.ID, a.Name, err)
				continue
			}
			log.Printf("reconcile: window closed for %s (%s)", a.ID, a.Name)
			changed = true
			r.publish(events.Event{
				Type:           events.ReminderExpired,
				AlarmID:        a.ID,
				AlarmName:      a.Name,
				NotificationID: existing.ID,
				Message:        "reminder window closed unacknowledged",
			})

		case inWindow && hasOpen:
			// Still open: verify the tray notification survived and
			// re-arm it if the user swiped it away.
			if err := r.scheduler.RecreateIfDismissed(a, existing.ID, now); err != nil {
				log.Printf("reconcile: dismissal repair for %s: %v", a.ID, err)
			}
		}
	}

	if changed {
		r.publish(events.Event{Type: events.StateRefresh, Message: "alarm state changed"})
	}
	return changed
}

// CheckDismissals is the fast repair path run between full passes: it
// only re-arms presented notifications the user swiped away.
func (r *Reconciler) CheckDismissals(now time.Time) {
	alarms := r.store.GetAlarms()
	byID := make(map[string]*alarm.Alarm, len(alarms))
	for i := range alarms {
		byID[alarms[i].ID] = &alarms[i]
	}

	for _, n := range r.store.GetActiveNotifications() {
		a, ok := byID[n.AlarmID]
		if !ok || !a.IsActive || r.store.IsAlarmCompletedToday(a) {
			continue
		}
		if err := r.scheduler.RecreateIfDismissed(a, n.ID, now); err != nil {
			log.Printf("reconcile: dismissal check for %s: %v", a.ID, err)
		}
	}
}

// Complete acknowledges a reminder session on behalf of the user and
// signals a refresh.
func (r *Reconciler) Complete(notificationID string) error {
	var meta alarm.Notification
	for _, n := range r.store.GetAllNotifications() {
		if n.ID == notificationID {
			meta = n
			break
		}
	}

	if err := r.store.CompleteNotification(notificationID); err != nil {
		return err
	}

	r.publish(events.Event{
		Type:           events.ReminderCompleted,
		AlarmID:        meta.AlarmID,
		AlarmName:      meta.AlarmName,
		NotificationID: notificationID,
		Message:        "reminder marked done",
	})
	r.publish(events.Event{Type: events.StateRefresh, Message: "reminder completed"})
	return nil
}

// HandleResponse routes a user interaction from the notification
// backend: the mark-done action completes the session directly; a
// plain tap only surfaces a refresh for the host to react to.
func (r *Reconciler) HandleResponse(resp notify.Response) {
	if resp.Data.Type != notify.TypeTimeWindowAlarm || resp.Data.NotificationID == "" {
		return
	}

	if resp.ActionIdentifier == notify.ActionComplete {
		if err := r.Complete(resp.Data.NotificationID); err != nil {
			log.Printf("reconcile: complete from notification action: %v", err)
		}
		return
	}

	r.publish(events.Event{
		Type:           events.StateRefresh,
		AlarmID:        resp.Data.AlarmID,
		NotificationID: resp.Data.NotificationID,
		Message:        "notification tapped",
	})
}

func (r *Reconciler) publish(e events.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}
