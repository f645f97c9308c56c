package notify

import (
	"sync"
	"time"
)

// MemoryBackend is an in-process Backend that only tracks state. It is
// the test double for the scheduler and reconciler, and doubles as the
// no-delivery fallback when no Shoutrrr destination is configured.
type MemoryBackend struct {
	mu        sync.Mutex
	scheduled map[string]ScheduledRequest
	presented map[string]Presented
	handler   ResponseHandler

	// PermissionGranted controls what RequestPermission reports.
	PermissionGranted bool
}

// NewMemoryBackend creates an empty backend that grants permission.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		scheduled:         make(map[string]ScheduledRequest),
		presented:         make(map[string]Presented),
		PermissionGranted: true,
	}
}

// RequestPermission reports the configured permission state.
func (b *MemoryBackend) RequestPermission() (bool, error) {
	return b.PermissionGranted, nil
}

// ScheduleImmediate presents a notification right away, replacing any
// prior one under the same id.
func (b *MemoryBackend) ScheduleImmediate(id string, p Payload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presented[id] = Presented{ID: id, Payload: p, PresentedAt: time.Now()}
	return nil
}

// ScheduleAt registers a pending notification.
func (b *MemoryBackend) ScheduleAt(id string, at time.Time, p Payload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scheduled[id] = ScheduledRequest{ID: id, FireAt: at, Payload: p}
	return nil
}

// CancelScheduled removes a pending notification.
func (b *MemoryBackend) CancelScheduled(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.scheduled, id)
	return nil
}

// DismissPresented removes a visible notification.
func (b *MemoryBackend) DismissPresented(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.presented, id)
	return nil
}

// ListScheduled returns all pending notifications.
func (b *MemoryBackend) ListScheduled() ([]ScheduledRequest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ScheduledRequest, 0, len(b.scheduled))
	for _, req := range b.scheduled {
		out = append(out, req)
	}
	return out, nil
}

// ListPresented returns all visible notifications.
func (b *MemoryBackend) ListPresented() ([]Presented, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Presented, 0, len(b.presented))
	for _, p := range b.presented {
		out = append(out, p)
	}
	return out, nil
}

// SetResponseHandler attaches the interaction handler.
func (b *MemoryBackend) SetResponseHandler(h ResponseHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// Respond simulates a user interaction with a presented notification.
func (b *MemoryBackend) Respond(actionIdentifier string, data Data) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h != nil {
		h(Response{ActionIdentifier: actionIdentifier, Data: data})
	}
}
