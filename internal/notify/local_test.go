package notify

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []string
	fail     bool
}

func (f *fakeSender) Send(url, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send failed")
	}
	f.messages = append(f.messages, url+"|"+message)
	return nil
}

func TestLocalBackendImmediateDelivery(t *testing.T) {
	sender := &fakeSender{}
	b := NewLocalBackend([]string{"gotify://a/t", "gotify://b/t"}, sender)

	p := Payload{Title: "🔔 hydrate", Body: "Active until 10:00."}
	if err := b.ScheduleImmediate("alarm_1", p); err != nil {
		t.Fatalf("immediate: %v", err)
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.messages) != 2 {
		t.Fatalf("expected delivery to both destinations, got %d", len(sender.messages))
	}
	if !strings.Contains(sender.messages[0], "hydrate") {
		t.Errorf("message missing title: %s", sender.messages[0])
	}
}

func TestLocalBackendFireDue(t *testing.T) {
	sender := &fakeSender{}
	b := NewLocalBackend([]string{"gotify://a/t"}, sender)

	now := time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)
	if err := b.ScheduleAt("due", now.Add(-time.Minute), Payload{Title: "due"}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := b.ScheduleAt("future", now.Add(time.Hour), Payload{Title: "future"}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	b.fireDue(now)

	scheduled, _ := b.ListScheduled()
	if len(scheduled) != 1 || scheduled[0].ID != "future" {
		t.Errorf("only the future instant should remain scheduled, got %+v", scheduled)
	}
	presented, _ := b.ListPresented()
	if len(presented) != 1 || presented[0].ID != "due" {
		t.Errorf("the due instant should now be presented, got %+v", presented)
	}
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.messages) != 1 {
		t.Errorf("the due instant should be delivered once, got %d", len(sender.messages))
	}
}

func TestLocalBackendFailingDestination(t *testing.T) {
	sender := &fakeSender{fail: true}
	b := NewLocalBackend([]string{"gotify://a/t"}, sender)

	// Delivery failures are logged, never surfaced as errors.
	if err := b.ScheduleImmediate("alarm_1", Payload{Title: "x"}); err != nil {
		t.Errorf("failing destination must not error the schedule call: %v", err)
	}
	presented, _ := b.ListPresented()
	if len(presented) != 1 {
		t.Error("notification should still be presented locally")
	}
}

func TestLocalBackendStartStop(t *testing.T) {
	b := NewLocalBackend(nil, &fakeSender{})
	b.Start()
	b.Start() // idempotent
	b.Stop()
	b.Stop()
}
