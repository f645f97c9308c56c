package notify

import (
	"log"
	"strings"
	"time"

	"timewarden/internal/alarm"
	"timewarden/internal/window"
)

// HorizonDays is how many calendar days of notification instants are
// materialized at a time (today and tomorrow). OS-level schedulers are
// unreliable far in the future, so the horizon is kept small and
// rolled forward once per day by the drivers.
const HorizonDays = 2

// Scheduler turns an alarm's window/interval/repeat configuration into
// concrete notification instants on the backend, and owns the
// defensive cancel-everything-for-an-alarm scan so the identifier
// matching detail stays out of callers.
type Scheduler struct {
	backend Backend
}

// NewScheduler creates a scheduler over the given backend.
func NewScheduler(backend Backend) *Scheduler {
	return &Scheduler{backend: backend}
}

// Backend returns the underlying notification backend.
func (s *Scheduler) Backend() Backend {
	return s.backend
}

// ScheduleAlarm materializes the rolling horizon for one alarm:
// today's and tomorrow's notification instants, one every
// NotificationInterval minutes inside each window. Returns how many
// instants were submitted. A failure to submit one instant does not
// abort the rest.
func (s *Scheduler) ScheduleAlarm(a *alarm.Alarm, now time.Time) (int, error) {
	windows := a.EffectiveWindows()
	if len(windows) == 0 {
		log.Printf("notify: no time windows for alarm %s (%s), nothing to schedule", a.ID, a.Name)
		return 0, nil
	}

	total := 0
	for dayOffset := 0; dayOffset < HorizonDays; dayOffset++ {
		day := midnight(now).AddDate(0, 0, dayOffset)

		if !a.ScheduledOn(int(day.Weekday())) {
			continue
		}
		// One-shot alarms only materialize their creation day.
		if a.RepeatType == alarm.RepeatDailyToday && dayOffset > 0 {
			continue
		}

		for _, w := range windows {
			total += s.scheduleWindow(a, day, w, dayOffset, now)
		}
	}
	return total, nil
}

// scheduleWindow submits the instants for one window on one day.
func (s *Scheduler) scheduleWindow(a *alarm.Alarm, day time.Time, w alarm.TimeWindow, dayOffset int, now time.Time) int {
	startMin, err := window.ParseHHMM(w.StartTime)
	if err != nil {
		log.Printf("notify: alarm %s window %s: %v", a.ID, w.ID, err)
		return 0
	}
	endMin, err := window.ParseHHMM(w.EndTime)
	if err != nil {
		log.Printf("notify: alarm %s window %s: %v", a.ID, w.ID, err)
		return 0
	}

	start := day.Add(time.Duration(startMin) * time.Minute)
	end := day.Add(time.Duration(endMin) * time.Minute)
	if !end.After(start) {
		// Window crosses midnight; the end lands on the next day.
		end = end.AddDate(0, 0, 1)
	}

	interval := time.Duration(a.NotificationInterval) * time.Minute
	if interval <= 0 {
		log.Printf("notify: alarm %s has no notification interval, skipping window %s", a.ID, w.ID)
		return 0
	}

	// For today, a window that already started resumes at the next
	// interval boundary at or after now; nothing fires in the past.
	effective := start
	if dayOffset == 0 && start.Before(now) {
		elapsed := now.Sub(start)
		steps := (elapsed + interval - 1) / interval
		effective = start.Add(steps * interval)
	}
	if !effective.Before(end) {
		// Window already closed for this day.
		return 0
	}

	count := 0
	seq := 0
	for at := effective; !at.After(end); at = at.Add(interval) {
		if at.Before(now) {
			seq++
			continue
		}
		id := HorizonID(a.ID, day, w.ID, seq)
		p := s.payload(a, w.EndTime, id)
		p.Data.WindowID = w.ID
		if err := s.backend.ScheduleAt(id, at, p); err != nil {
			log.Printf("notify: schedule %s at %s: %v", id, at.Format(time.RFC3339), err)
		} else {
			count++
		}
		seq++
	}
	return count
}

// ScheduleImmediate presents the reminder for an open window right
// away under the alarm's canonical identifier. Re-submitting under the
// same identifier replaces any prior one, which is also how a
// notification the user swiped away gets re-armed.
func (s *Scheduler) ScheduleImmediate(a *alarm.Alarm, notificationID string, now time.Time) (string, error) {
	p := s.payload(a, s.openWindowEnd(a, now), notificationID)
	p.Priority = "max"
	p.Sticky = true
	p.LockscreenVisible = true

	id := CanonicalID(a.ID)
	if err := s.backend.ScheduleImmediate(id, p); err != nil {
		return "", err
	}
	return id, nil
}

// openWindowEnd returns the end time of the window containing now,
// falling back to the first resolvable window.
func (s *Scheduler) openWindowEnd(a *alarm.Alarm, now time.Time) string {
	windows := a.EffectiveWindows()
	if len(windows) == 0 {
		return a.EndTime
	}
	current := window.FormatHHMM(now)
	for _, w := range windows {
		if window.InWindow(current, w.StartTime, w.EndTime) {
			return w.EndTime
		}
	}
	return windows[0].EndTime
}

func (s *Scheduler) payload(a *alarm.Alarm, endTime, notificationID string) Payload {
	return Payload{
		Title: "🔔 " + a.Name,
		Body:  "Active until " + endTime + ". Mark as done in the app to dismiss.",
		Data: Data{
			AlarmID:        a.ID,
			NotificationID: notificationID,
			Type:           TypeTimeWindowAlarm,
			Action:         ActionOpenActiveTab,
		},
		Sound: a.SoundEnabled,
	}
}

// CancelForAlarm removes every notification tied to the alarm: the
// canonical id by exact match, then a scan of all scheduled and
// presented notifications for ids containing the alarm id. The scan
// covers horizon-scheduled variants whose ids the caller does not
// track. Every step is best-effort.
func (s *Scheduler) CancelForAlarm(alarmID string) {
	canonical := CanonicalID(alarmID)
	if err := s.backend.CancelScheduled(canonical); err != nil {
		log.Printf("notify: cancel %s: %v", canonical, err)
	}
	if err := s.backend.DismissPresented(canonical); err != nil {
		log.Printf("notify: dismiss %s: %v", canonical, err)
	}

	scheduled, err := s.backend.ListScheduled()
	if err != nil {
		log.Printf("notify: list scheduled: %v", err)
	} else {
		for _, req := range scheduled {
			if strings.Contains(req.ID, alarmID) {
				if err := s.backend.CancelScheduled(req.ID); err != nil {
					log.Printf("notify: cancel %s: %v", req.ID, err)
				}
			}
		}
	}

	presented, err := s.backend.ListPresented()
	if err != nil {
		log.Printf("notify: list presented: %v", err)
		return
	}
	for _, p := range presented {
		if strings.Contains(p.ID, alarmID) {
			if err := s.backend.DismissPresented(p.ID); err != nil {
				log.Printf("notify: dismiss %s: %v", p.ID, err)
			}
		}
	}
}

// RecreateIfDismissed re-presents the immediate notification when the
// user swiped it away from the tray while its window is still open.
// Inactive alarms are left alone.
func (s *Scheduler) RecreateIfDismissed(a *alarm.Alarm, notificationID string, now time.Time) error {
	if !a.IsActive {
		return nil
	}

	presented, err := s.backend.ListPresented()
	if err != nil {
		return err
	}

	expected := CanonicalID(a.ID)
	for _, p := range presented {
		if p.ID == expected || strings.Contains(p.ID, a.ID) {
			return nil
		}
	}

	log.Printf("notify: reminder for alarm %s (%s) was dismissed, recreating", a.ID, a.Name)
	_, err = s.ScheduleImmediate(a, notificationID, now)
	return err
}

// RefreshForNextDay rolls the horizon forward: purges past-dated
// scheduled entries and re-materializes the 2-day horizon for every
// active alarm. Invoked once per calendar day by the drivers.
func (s *Scheduler) RefreshForNextDay(alarms []alarm.Alarm, now time.Time) {
	s.purgePast(now)

	for i := range alarms {
		a := &alarms[i]
		if !a.IsActive {
			continue
		}
		if n, err := s.ScheduleAlarm(a, now); err != nil {
			log.Printf("notify: refresh alarm %s: %v", a.ID, err)
		} else if n > 0 {
			log.Printf("notify: refreshed %d instants for alarm %s (%s)", n, a.ID, a.Name)
		}
	}
}

// purgePast cancels scheduled notifications whose fire instant has
// already passed.
func (s *Scheduler) purgePast(now time.Time) {
	scheduled, err := s.backend.ListScheduled()
	if err != nil {
		log.Printf("notify: list scheduled: %v", err)
		return
	}
	for _, req := range scheduled {
		if req.FireAt.Before(now) {
			if err := s.backend.CancelScheduled(req.ID); err != nil {
				log.Printf("notify: purge %s: %v", req.ID, err)
			}
		}
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
