package notify

import (
	"strings"
	"testing"
	"time"

	"timewarden/internal/alarm"
)

// Wednesday morning, mid-window for the fixtures below.
var schedNow = time.Date(2025, 3, 12, 9, 20, 0, 0, time.UTC)

func testAlarm() *alarm.Alarm {
	return &alarm.Alarm{
		ID:   "1741770000000",
		Name: "hydrate",
		TimeWindows: []alarm.TimeWindow{
			{ID: "w1", StartTime: "09:00", EndTime: "10:00"},
		},
		IsActive:             true,
		RepeatType:           alarm.RepeatDaily,
		NotificationInterval: 15,
	}
}

func TestScheduleAlarmHorizon(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewScheduler(backend)

	a := testAlarm()
	count, err := s.ScheduleAlarm(a, schedNow)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	// Today resumes at the 09:30 interval boundary (09:30, 09:45,
	// 10:00); tomorrow runs the full window (09:00 through 10:00).
	if count != 8 {
		t.Errorf("scheduled %d instants, want 8", count)
	}

	scheduled, _ := backend.ListScheduled()
	horizonEnd := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC).Add(10 * time.Hour)
	for _, req := range scheduled {
		if req.FireAt.Before(schedNow) {
			t.Errorf("instant %s fires in the past: %s", req.ID, req.FireAt)
		}
		if req.FireAt.After(horizonEnd) {
			t.Errorf("instant %s fires beyond the horizon: %s", req.ID, req.FireAt)
		}
		if !strings.Contains(req.ID, a.ID) {
			t.Errorf("id %s does not embed the alarm id", req.ID)
		}
		if req.Payload.Data.AlarmID != a.ID || req.Payload.Data.WindowID != "w1" {
			t.Errorf("payload data not populated: %+v", req.Payload.Data)
		}
	}
}

func TestScheduleAlarmIntervalBoundary(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewScheduler(backend)

	// At 09:20 with a 15-minute interval the next boundary is 09:30.
	if _, err := s.ScheduleAlarm(testAlarm(), schedNow); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	scheduled, _ := backend.ListScheduled()
	var earliest time.Time
	for _, req := range scheduled {
		if strings.Contains(req.ID, "2025-03-12") {
			if earliest.IsZero() || req.FireAt.Before(earliest) {
				earliest = req.FireAt
			}
		}
	}
	want := time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)
	if !earliest.Equal(want) {
		t.Errorf("earliest instant today = %s, want %s", earliest, want)
	}

	last := HorizonID("1741770000000", schedNow, "w1", 2)
	if req, ok := findScheduled(backend, last); !ok {
		t.Errorf("missing instant %s", last)
	} else if wantLast := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC); !req.FireAt.Equal(wantLast) {
		t.Errorf("instant %s fires at %s, want window end %s", last, req.FireAt, wantLast)
	}
}

func TestScheduleAlarmMidnightCrossing(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewScheduler(backend)

	a := testAlarm()
	a.TimeWindows = []alarm.TimeWindow{{ID: "night", StartTime: "22:00", EndTime: "06:00"}}
	a.NotificationInterval = 60

	if _, err := s.ScheduleAlarm(a, schedNow); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	// Instants past midnight belong to the window that opened the day
	// before and must still be materialized.
	scheduled, _ := backend.ListScheduled()
	pastMidnight := false
	for _, req := range scheduled {
		if strings.Contains(req.ID, "2025-03-12") && req.FireAt.Day() == 13 {
			pastMidnight = true
		}
	}
	if !pastMidnight {
		t.Error("midnight-crossing window produced no instants after midnight")
	}
}

func TestScheduleAlarmWeeklyGating(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewScheduler(backend)

	a := testAlarm()
	a.RepeatType = alarm.RepeatWeekly
	a.SelectedDays = []int{4} // Thursday only; now is Wednesday

	count, err := s.ScheduleAlarm(a, schedNow)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if count != 5 {
		t.Errorf("scheduled %d instants, want 5 (tomorrow's full window only)", count)
	}
	scheduled, _ := backend.ListScheduled()
	for _, req := range scheduled {
		if strings.Contains(req.ID, "2025-03-12") {
			t.Errorf("instant %s materialized on an unselected day", req.ID)
		}
	}
}

func TestScheduleAlarmOneShotSkipsTomorrow(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewScheduler(backend)

	a := testAlarm()
	a.RepeatType = alarm.RepeatDailyToday

	if _, err := s.ScheduleAlarm(a, schedNow); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	scheduled, _ := backend.ListScheduled()
	for _, req := range scheduled {
		if strings.Contains(req.ID, "2025-03-13") {
			t.Errorf("one-shot alarm materialized tomorrow: %s", req.ID)
		}
	}
}

func TestScheduleAlarmClosedWindowToday(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewScheduler(backend)

	a := testAlarm()
	a.TimeWindows = []alarm.TimeWindow{{ID: "early", StartTime: "06:00", EndTime: "07:00"}}

	count, err := s.ScheduleAlarm(a, schedNow)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	// Only tomorrow's instants: 06:00 through 07:00 every 15 minutes.
	if count != 5 {
		t.Errorf("scheduled %d instants, want 5", count)
	}
}

func TestScheduleImmediate(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewScheduler(backend)

	a := testAlarm()
	id, err := s.ScheduleImmediate(a, "1741770000000_sess", schedNow)
	if err != nil {
		t.Fatalf("immediate: %v", err)
	}
	if id != "alarm_1741770000000" {
		t.Errorf("id = %s, want canonical alarm_1741770000000", id)
	}

	presented, _ := backend.ListPresented()
	if len(presented) != 1 {
		t.Fatalf("expected 1 presented, got %d", len(presented))
	}
	p := presented[0].Payload
	if p.Priority != "max" || !p.Sticky || !p.LockscreenVisible {
		t.Errorf("reminder persistence hints not set: %+v", p)
	}
	if !strings.Contains(p.Body, "10:00") {
		t.Errorf("body should name the open window's end, got %q", p.Body)
	}
	if p.Data.NotificationID != "1741770000000_sess" {
		t.Errorf("data should carry the session id, got %+v", p.Data)
	}
}

func TestScheduleImmediateReplacesPrior(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewScheduler(backend)

	a := testAlarm()
	if _, err := s.ScheduleImmediate(a, "sess1", schedNow); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := s.ScheduleImmediate(a, "sess2", schedNow); err != nil {
		t.Fatalf("second: %v", err)
	}
	presented, _ := backend.ListPresented()
	if len(presented) != 1 {
		t.Errorf("re-submitting under the canonical id must replace, got %d presented", len(presented))
	}
}

func TestCancelForAlarm(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewScheduler(backend)

	a := testAlarm()
	if _, err := s.ScheduleAlarm(a, schedNow); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := s.ScheduleImmediate(a, "sess", schedNow); err != nil {
		t.Fatalf("immediate: %v", err)
	}

	other := testAlarm()
	other.ID = "999"
	other.TimeWindows[0].ID = "w9"
	if _, err := s.ScheduleAlarm(other, schedNow); err != nil {
		t.Fatalf("schedule other: %v", err)
	}

	s.CancelForAlarm(a.ID)

	scheduled, _ := backend.ListScheduled()
	for _, req := range scheduled {
		if strings.Contains(req.ID, a.ID) {
			t.Errorf("scheduled instant survived cancellation: %s", req.ID)
		}
	}
	presented, _ := backend.ListPresented()
	if len(presented) != 0 {
		t.Errorf("presented notification survived cancellation: %+v", presented)
	}

	// The unrelated alarm's instants are untouched.
	found := false
	for _, req := range scheduled {
		if strings.Contains(req.ID, "999") {
			found = true
		}
	}
	if !found {
		t.Error("cancellation must not touch other alarms")
	}
}

func TestRecreateIfDismissed(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewScheduler(backend)
	a := testAlarm()

	// Still presented: nothing to repair.
	if _, err := s.ScheduleImmediate(a, "sess", schedNow); err != nil {
		t.Fatalf("immediate: %v", err)
	}
	if err := s.RecreateIfDismissed(a, "sess", schedNow.Add(time.Minute)); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	presented, _ := backend.ListPresented()
	if len(presented) != 1 {
		t.Fatalf("expected 1 presented, got %d", len(presented))
	}

	// Swiped away: the reminder comes back.
	if err := backend.DismissPresented(CanonicalID(a.ID)); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if err := s.RecreateIfDismissed(a, "sess", schedNow.Add(2*time.Minute)); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	presented, _ = backend.ListPresented()
	if len(presented) != 1 {
		t.Fatalf("dismissed reminder was not recreated")
	}
	if presented[0].Payload.Data.NotificationID != "sess" {
		t.Errorf("recreated reminder lost its session id: %+v", presented[0].Payload.Data)
	}
}

func TestRecreateIfDismissedInactiveAlarm(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewScheduler(backend)

	a := testAlarm()
	a.IsActive = false
	if err := s.RecreateIfDismissed(a, "sess", schedNow); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	presented, _ := backend.ListPresented()
	if len(presented) != 0 {
		t.Error("inactive alarm must not be re-presented")
	}
}

func TestRefreshForNextDayPurgesPast(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewScheduler(backend)

	a := testAlarm()
	if _, err := s.ScheduleAlarm(a, schedNow); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	// A day later every instant from the first pass is in the past.
	later := schedNow.AddDate(0, 0, 1)
	s.RefreshForNextDay([]alarm.Alarm{*a}, later)

	scheduled, _ := backend.ListScheduled()
	for _, req := range scheduled {
		if req.FireAt.Before(later) {
			t.Errorf("stale instant survived the refresh: %s at %s", req.ID, req.FireAt)
		}
	}
	if len(scheduled) == 0 {
		t.Error("refresh should have re-materialized the horizon")
	}
}

func TestScheduleAlarmLegacyFields(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewScheduler(backend)

	a := &alarm.Alarm{
		ID:                   "old",
		Name:                 "legacy",
		StartTime:            "09:00",
		EndTime:              "10:00",
		IsActive:             true,
		RepeatType:           alarm.RepeatDaily,
		NotificationInterval: 30,
	}
	count, err := s.ScheduleAlarm(a, schedNow)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if count == 0 {
		t.Error("legacy single-window fields must still schedule")
	}
}

func findScheduled(b *MemoryBackend, id string) (ScheduledRequest, bool) {
	scheduled, _ := b.ListScheduled()
	for _, req := range scheduled {
		if req.ID == id {
			return req, true
		}
	}
	return ScheduledRequest{}, false
}
