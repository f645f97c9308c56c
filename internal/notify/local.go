package notify

import (
	"log"
	"sync"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
)

// Sender abstracts message dispatch so the backend can be tested
// without hitting real services.
type Sender interface {
	Send(shoutrrrURL, message string) error
}

// ShoutrrrSender dispatches via the Shoutrrr library.
type ShoutrrrSender struct{}

func (ShoutrrrSender) Send(url, message string) error {
	return shoutrrr.Send(url, message)
}

// LocalBackend is the notification backend for headless deployments:
// it keeps the scheduled and presented registries in-process, fires
// due notifications on a short tick, and pushes each fired one through
// the configured Shoutrrr destinations. Sticky notifications stay in
// the presented registry until dismissed or cancelled, so dismissal
// repair and defensive scans behave the same as against a mobile tray.
type LocalBackend struct {
	urls   []string
	sender Sender

	mu        sync.Mutex
	scheduled map[string]ScheduledRequest
	presented map[string]Presented
	handler   ResponseHandler
	running   bool
	stop      chan struct{}
}

// NewLocalBackend creates a backend delivering to the given Shoutrrr
// URLs. A nil sender uses the real Shoutrrr library.
func NewLocalBackend(urls []string, sender Sender) *LocalBackend {
	if sender == nil {
		sender = ShoutrrrSender{}
	}
	return &LocalBackend{
		urls:      urls,
		sender:    sender,
		scheduled: make(map[string]ScheduledRequest),
		presented: make(map[string]Presented),
		stop:      make(chan struct{}),
	}
}

// Start begins the firing loop.
func (b *LocalBackend) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.loop()
	log.Printf("notify: local backend started (%d destinations)", len(b.urls))
}

// Stop halts the firing loop.
func (b *LocalBackend) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	close(b.stop)
	log.Println("notify: local backend stopped")
}

func (b *LocalBackend) loop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.fireDue(time.Now())
		}
	}
}

// fireDue promotes scheduled notifications whose instant has arrived
// into the presented registry and delivers them.
func (b *LocalBackend) fireDue(now time.Time) {
	b.mu.Lock()
	var due []ScheduledRequest
	for id, req := range b.scheduled {
		if !req.FireAt.After(now) {
			due = append(due, req)
			delete(b.scheduled, id)
			b.presented[id] = Presented{ID: id, Payload: req.Payload, PresentedAt: now}
		}
	}
	b.mu.Unlock()

	for _, req := range due {
		b.deliver(req.Payload)
	}
}

// deliver pushes one notification to every destination. A failing
// destination is logged and skipped.
func (b *LocalBackend) deliver(p Payload) {
	msg := p.Title + "\n" + p.Body
	for _, url := range b.urls {
		if err := b.sender.Send(url, msg); err != nil {
			log.Printf("notify: send failed: %v", err)
		}
	}
}

// RequestPermission always grants; a headless backend has nothing to
// ask the user for beyond having destinations configured.
func (b *LocalBackend) RequestPermission() (bool, error) {
	return true, nil
}

// ScheduleImmediate presents and delivers a notification right away,
// replacing any prior one under the same id.
func (b *LocalBackend) ScheduleImmediate(id string, p Payload) error {
	b.mu.Lock()
	b.presented[id] = Presented{ID: id, Payload: p, PresentedAt: time.Now()}
	b.mu.Unlock()

	b.deliver(p)
	return nil
}

// ScheduleAt registers a notification to fire at the given instant.
func (b *LocalBackend) ScheduleAt(id string, at time.Time, p Payload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scheduled[id] = ScheduledRequest{ID: id, FireAt: at, Payload: p}
	return nil
}

// CancelScheduled removes a pending notification.
func (b *LocalBackend) CancelScheduled(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.scheduled, id)
	return nil
}

// DismissPresented removes a visible notification.
func (b *LocalBackend) DismissPresented(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.presented, id)
	return nil
}

// ListScheduled returns all pending notifications.
func (b *LocalBackend) ListScheduled() ([]ScheduledRequest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ScheduledRequest, 0, len(b.scheduled))
	for _, req := range b.scheduled {
		out = append(out, req)
	}
	return out, nil
}

// ListPresented returns all visible notifications.
func (b *LocalBackend) ListPresented() ([]Presented, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Presented, 0, len(b.presented))
	for _, p := range b.presented {
		out = append(out, p)
	}
	return out, nil
}

// SetResponseHandler attaches the interaction handler.
func (b *LocalBackend) SetResponseHandler(h ResponseHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// Respond routes a user interaction (from the HTTP surface) to the
// attached handler.
func (b *LocalBackend) Respond(actionIdentifier string, data Data) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h != nil {
		h(Response{ActionIdentifier: actionIdentifier, Data: data})
	}
}
