package alarm

import (
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"timewarden/internal/kv"
	"timewarden/internal/window"
)

// Fixed keys for the two persisted records.
const (
	alarmsKey        = "time_window_alarms"
	notificationsKey = "alarm_notifications"
)

// DefaultCacheTTL is how long a read of the alarm array may be served
// from memory before going back to the durable store.
const DefaultCacheTTL = 5 * time.Second

// Notifier is the slice of the notification scheduler the store needs:
// rescheduling on mutation and cancellation on removal. Implemented by
// notify.Scheduler.
type Notifier interface {
	ScheduleAlarm(a *Alarm, now time.Time) (int, error)
	ScheduleImmediate(a *Alarm, notificationID string, now time.Time) (string, error)
	CancelForAlarm(alarmID string)
}

// readCache holds the short-TTL cached alarm array. Owned by the
// store; every write repopulates it synchronously.
type readCache struct {
	alarms    []Alarm
	fetchedAt time.Time
	ttl       time.Duration
}

func (c *readCache) get(now time.Time) ([]Alarm, bool) {
	if c.alarms == nil || now.Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.alarms, true
}

func (c *readCache) put(alarms []Alarm, now time.Time) {
	c.alarms = alarms
	c.fetchedAt = now
}

// Store is durable CRUD over Alarm and Notification records. All
// operations are read-modify-write sequences against the key-value
// collaborator with no transactional isolation; correctness under
// interleaving comes from idempotent creation and from every pass
// re-deriving state fresh.
type Store struct {
	kv       kv.Store
	notifier Notifier
	nowFunc  func() time.Time

	mu    sync.Mutex
	cache readCache
}

// NewStore creates a store over the given key-value backend. notifier
// may be nil, in which case mutations skip notification rescheduling.
func NewStore(store kv.Store, notifier Notifier) *Store {
	return &Store{
		kv:       store,
		notifier: notifier,
		nowFunc:  time.Now,
		cache:    readCache{ttl: DefaultCacheTTL},
	}
}

// SetClock overrides the store's time source. Used by tests and by the
// drivers when simulating day boundaries.
func (s *Store) SetClock(now func() time.Time) {
	s.nowFunc = now
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.nowFunc()
}

// ── Alarm CRUD ──────────────────────────────────────────────────────────

// GetAlarms returns all persisted alarms. Records still carrying only
// the legacy single-window fields are upgraded in memory to an
// equivalent one-element TimeWindows slice; when any upgrade occurred
// the corrected set is persisted in the background without blocking
// the read. Storage failures degrade to an empty result.
func (s *Store) GetAlarms() []Alarm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAlarmsLocked()
}

func (s *Store) getAlarmsLocked() []Alarm {
	now := s.nowFunc()
	if cached, ok := s.cache.get(now); ok {
		return cloneAlarms(cached)
	}

	raw, found, err := s.kv.Get(alarmsKey)
	if err != nil {
		log.Printf("alarm: read alarms: %v", err)
		return nil
	}

	var alarms []Alarm
	if found && raw != "" {
		if err := json.Unmarshal([]byte(raw), &alarms); err != nil {
			log.Printf("alarm: decode alarms: %v", err)
			return nil
		}
	}

	upgraded := false
	for i := range alarms {
		if len(alarms[i].TimeWindows) == 0 && alarms[i].StartTime != "" && alarms[i].EndTime != "" {
			alarms[i].TimeWindows = []TimeWindow{{
				ID:        "default",
				StartTime: alarms[i].StartTime,
				EndTime:   alarms[i].EndTime,
			}}
			upgraded = true
		}
	}

	s.cache.put(alarms, now)

	if upgraded {
		// Persist the corrected set without blocking the read.
		snapshot := cloneAlarms(alarms)
		go func() {
			if err := s.persistAlarms(snapshot); err != nil {
				log.Printf("alarm: persist upgraded alarms: %v", err)
			}
		}()
	}

	return cloneAlarms(alarms)
}

// saveAlarmsLocked writes the alarm array and repopulates the cache.
func (s *Store) saveAlarmsLocked(alarms []Alarm) error {
	if err := s.persistAlarms(alarms); err != nil {
		return err
	}
	s.cache.put(cloneAlarms(alarms), s.nowFunc())
	return nil
}

func (s *Store) persistAlarms(alarms []Alarm) error {
	if alarms == nil {
		alarms = []Alarm{}
	}
	data, err := json.Marshal(alarms)
	if err != nil {
		return err
	}
	return s.kv.Set(alarmsKey, string(data))
}

// GetAlarm returns a single alarm by id, or nil.
func (s *Store) GetAlarm(id string) *Alarm {
	for _, a := range s.GetAlarms() {
		if a.ID == id {
			found := a
			return &found
		}
	}
	return nil
}

// AddAlarm assigns an id and creation timestamp, persists the alarm,
// and schedules its notification horizon when active.
func (s *Store) AddAlarm(a Alarm) (*Alarm, error) {
	now := s.nowFunc()
	a.ID = strconv.FormatInt(now.UnixMilli(), 10)
	a.CreatedAt = now.UnixMilli()
	for i := range a.TimeWindows {
		if a.TimeWindows[i].ID == "" {
			a.TimeWindows[i].ID = uuid.NewString()
		}
	}

	s.mu.Lock()
	alarms := s.getAlarmsLocked()
	alarms = append(alarms, a)
	err := s.saveAlarmsLocked(alarms)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if a.IsActive && s.notifier != nil {
		if _, err := s.notifier.ScheduleAlarm(&a, now); err != nil {
			log.Printf("alarm: schedule new alarm %s: %v", a.ID, err)
		}
	}
	return &a, nil
}

// Patch is a partial alarm update. Nil fields are left unchanged.
type Patch struct {
	Name                 *string       `json:"name,omitempty"`
	StartTime            *string       `json:"startTime,omitempty"`
	EndTime              *string       `json:"endTime,omitempty"`
	TimeWindows          *[]TimeWindow `json:"timeWindows,omitempty"`
	IsActive             *bool         `json:"isActive,omitempty"`
	RepeatType           *RepeatType   `json:"repeatType,omitempty"`
	SelectedDays         *[]int        `json:"selectedDays,omitempty"`
	NotificationInterval *int          `json:"notificationInterval,omitempty"`
	SoundEnabled         *bool         `json:"soundEnabled,omitempty"`
}

// UpdateAlarm merges the patch into the stored record. A patch that
// touches the active flag or the legacy window times cancels every
// outstanding notification instance and, if the record is still
// active, reschedules from scratch.
func (s *Store) UpdateAlarm(id string, p Patch) error {
	s.mu.Lock()
	alarms := s.getAlarmsLocked()
	idx := -1
	for i := range alarms {
		if alarms[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		log.Printf("alarm: update: no alarm %s", id)
		return nil
	}

	a := &alarms[idx]
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.StartTime != nil {
		a.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		a.EndTime = *p.EndTime
	}
	if p.TimeWindows != nil {
		a.TimeWindows = *p.TimeWindows
		for i := range a.TimeWindows {
			if a.TimeWindows[i].ID == "" {
				a.TimeWindows[i].ID = uuid.NewString()
			}
		}
	}
	if p.IsActive != nil {
		a.IsActive = *p.IsActive
	}
	if p.RepeatType != nil {
		a.RepeatType = *p.RepeatType
	}
	if p.SelectedDays != nil {
		a.SelectedDays = *p.SelectedDays
	}
	if p.NotificationInterval != nil {
		a.NotificationInterval = *p.NotificationInterval
	}
	if p.SoundEnabled != nil {
		a.SoundEnabled = *p.SoundEnabled
	}

	updated := *a
	err := s.saveAlarmsLocked(alarms)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if (p.IsActive != nil || p.StartTime != nil || p.EndTime != nil) && s.notifier != nil {
		s.notifier.CancelForAlarm(id)
		if updated.IsActive {
			if _, err := s.notifier.ScheduleAlarm(&updated, s.nowFunc()); err != nil {
				log.Printf("alarm: reschedule alarm %s: %v", id, err)
			}
		}
	}
	return nil
}

// DeleteAlarm cancels every notification tied to the alarm, scheduled
// and presented, removes the record, and drops any reminder sessions
// referencing it.
func (s *Store) DeleteAlarm(id string) error {
	if s.notifier != nil {
		s.notifier.CancelForAlarm(id)
	}

	s.mu.Lock()
	alarms := s.getAlarmsLocked()
	filtered := alarms[:0:0]
	for _, a := range alarms {
		if a.ID != id {
			filtered = append(filtered, a)
		}
	}
	err := s.saveAlarmsLocked(filtered)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	notifications := s.GetAllNotifications()
	kept := notifications[:0:0]
	for _, n := range notifications {
		if n.AlarmID != id {
			kept = append(kept, n)
		}
	}
	return s.saveNotifications(kept)
}

// ── Reminder session records ────────────────────────────────────────────

// GetAllNotifications returns every reminder session record, including
// terminated ones kept for history.
func (s *Store) GetAllNotifications() []Notification {
	raw, found, err := s.kv.Get(notificationsKey)
	if err != nil {
		log.Printf("alarm: read notifications: %v", err)
		return nil
	}
	if !found || raw == "" {
		return nil
	}
	var notifications []Notification
	if err := json.Unmarshal([]byte(raw), &notifications); err != nil {
		log.Printf("alarm: decode notifications: %v", err)
		return nil
	}
	return notifications
}

// GetActiveNotifications returns only the open reminder sessions.
func (s *Store) GetActiveNotifications() []Notification {
	all := s.GetAllNotifications()
	active := all[:0:0]
	for _, n := range all {
		if n.Open() {
			active = append(active, n)
		}
	}
	return active
}

func (s *Store) saveNotifications(notifications []Notification) error {
	if notifications == nil {
		notifications = []Notification{}
	}
	data, err := json.Marshal(notifications)
	if err != nil {
		return err
	}
	return s.kv.Set(notificationsKey, string(data))
}

// CreateNotification opens a reminder session for an alarm whose
// window just opened and submits the immediate notification.
// Idempotent: when an open session already exists for the alarm it is
// returned unchanged instead of duplicated.
func (s *Store) CreateNotification(a *Alarm) (*Notification, error) {
	for _, n := range s.GetActiveNotifications() {
		if n.AlarmID == a.ID {
			existing := n
			return &existing, nil
		}
	}

	now := s.nowFunc()
	n := Notification{
		ID:        a.ID + "_" + uuid.NewString(),
		AlarmID:   a.ID,
		AlarmName: a.Name,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Status:    StatusOpen,
		CreatedAt: now.UnixMilli(),
	}

	notifications := s.GetAllNotifications()
	notifications = append(notifications, n)
	if err := s.saveNotifications(notifications); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		systemID, err := s.notifier.ScheduleImmediate(a, n.ID, now)
		if err != nil {
			log.Printf("alarm: immediate notification for %s: %v", a.ID, err)
		} else if systemID != "" {
			n.LastNotificationID = systemID
			for i := range notifications {
				if notifications[i].ID == n.ID {
					notifications[i] = n
				}
			}
			if err := s.saveNotifications(notifications); err != nil {
				log.Printf("alarm: record system notification id: %v", err)
			}
		}
	}

	return &n, nil
}

// CompleteNotification acknowledges a reminder session: backend
// notifications are cancelled, the record is marked completed, and the
// owning alarm is either deleted outright (one-shot daily_today) or
// marked done for the rest of the day.
func (s *Store) CompleteNotification(notificationID string) error {
	notifications := s.GetAllNotifications()
	idx := -1
	for i := range notifications {
		if notifications[i].ID == notificationID {
			idx = i
			break
		}
	}
	if idx == -1 {
		log.Printf("alarm: complete: no notification %s", notificationID)
		return nil
	}

	n := &notifications[idx]
	if s.notifier != nil {
		s.notifier.CancelForAlarm(n.AlarmID)
	}

	n.Status = StatusCompleted
	n.CompletedAt = s.nowFunc().UnixMilli()
	n.CompletedForToday = true
	alarmID := n.AlarmID
	if err := s.saveNotifications(notifications); err != nil {
		return err
	}

	owner := s.GetAlarm(alarmID)
	if owner == nil {
		return nil
	}
	if owner.RepeatType == RepeatDailyToday {
		return s.DeleteAlarm(alarmID)
	}
	return s.MarkAlarmCompletedForToday(alarmID)
}

// ExpireNotification terminates a reminder session whose window closed
// before the user acknowledged it.
func (s *Store) ExpireNotification(notificationID string) error {
	notifications := s.GetAllNotifications()
	idx := -1
	for i := range notifications {
		if notifications[i].ID == notificationID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}

	n := &notifications[idx]
	if s.notifier != nil {
		s.notifier.CancelForAlarm(n.AlarmID)
	}

	n.Status = StatusExpired
	n.ExpiredAt = s.nowFunc().UnixMilli()
	return s.saveNotifications(notifications)
}

// ── Daily completion tracking ───────────────────────────────────────────

// MarkAlarmCompletedForToday records that the alarm was satisfied on
// the current local date.
func (s *Store) MarkAlarmCompletedForToday(alarmID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alarms := s.getAlarmsLocked()
	for i := range alarms {
		if alarms[i].ID == alarmID {
			alarms[i].CompletedToday = true
			alarms[i].LastCompletedDate = window.LocalDate(s.nowFunc())
			return s.saveAlarmsLocked(alarms)
		}
	}
	return nil
}

// IsAlarmCompletedToday reports whether the alarm was already
// satisfied on the current local date. A CompletedToday flag left over
// from an earlier date is stale and does not count.
func (s *Store) IsAlarmCompletedToday(a *Alarm) bool {
	return a.CompletedOn(window.LocalDate(s.nowFunc()))
}

// ResetDailyCompletions lazily clears the done-for-today flag on every
// alarm whose last completion is not from today. Invoked at the start
// of each reconciliation pass; running it twice on the same date is a
// no-op.
func (s *Store) ResetDailyCompletions() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := window.LocalDate(s.nowFunc())
	alarms := s.getAlarmsLocked()
	changed := false
	for i := range alarms {
		if alarms[i].CompletedToday && alarms[i].LastCompletedDate != today {
			alarms[i].CompletedToday = false
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.saveAlarmsLocked(alarms)
}

// ── Cleanup sweeps ──────────────────────────────────────────────────────

// CleanupOutOfWindowNotifications expires any open reminder session
// whose alarm is no longer inside a window. Run at startup to repair
// state left over from a terminated process.
func (s *Store) CleanupOutOfWindowNotifications() {
	now := s.nowFunc()
	alarms := s.GetAlarms()
	byID := make(map[string]*Alarm, len(alarms))
	for i := range alarms {
		byID[alarms[i].ID] = &alarms[i]
	}

	for _, n := range s.GetActiveNotifications() {
		a, ok := byID[n.AlarmID]
		if !ok {
			continue
		}
		if !a.InAnyWindow(now) {
			log.Printf("alarm: expiring out-of-window reminder for %s (%s)", a.ID, a.Name)
			if err := s.ExpireNotification(n.ID); err != nil {
				log.Printf("alarm: expire %s: %v", n.ID, err)
			}
		}
	}
}

// CleanupDailyTodayAlarms deletes one-shot alarms whose creation date
// has passed, regardless of completion. Run at startup and at each
// local midnight boundary.
func (s *Store) CleanupDailyTodayAlarms() {
	today := window.LocalDate(s.nowFunc())
	for _, a := range s.GetAlarms() {
		if a.RepeatType != RepeatDailyToday {
			continue
		}
		created := window.LocalDate(time.UnixMilli(a.CreatedAt))
		if created != today {
			log.Printf("alarm: deleting stale one-shot alarm %s (%s)", a.ID, a.Name)
			if err := s.DeleteAlarm(a.ID); err != nil {
				log.Printf("alarm: delete %s: %v", a.ID, err)
			}
		}
	}
}

func cloneAlarms(alarms []Alarm) []Alarm {
	out := make([]Alarm, len(alarms))
	copy(out, alarms)
	return out
}
