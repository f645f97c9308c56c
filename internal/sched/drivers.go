package sched

import (
	"log"
	"sync"
	"time"

	"timewarden/internal/alarm"
	"timewarden/internal/events"
	"timewarden/internal/notify"
	"timewarden/internal/reconcile"
	"timewarden/internal/window"
)

// BackgroundTaskName identifies the engine's background check with the
// task runner.
const BackgroundTaskName = "background-alarm-check"

// Default driver cadences.
const (
	DefaultPollInterval       = time.Minute
	DefaultDismissalInterval  = 10 * time.Second
	DefaultBackgroundInterval = time.Minute
)

// Drivers owns every timer that invokes the reconciler: the foreground
// poll, the faster dismissal re-check, the background task with its
// once-per-day horizon refresh, and the midnight cleanup sweep.
type Drivers struct {
	store     *alarm.Store
	scheduler *notify.Scheduler
	rec       *reconcile.Reconciler
	runner    TaskRunner
	bus       *events.Bus

	PollInterval       time.Duration
	DismissalInterval  time.Duration
	BackgroundInterval time.Duration

	nowFunc func() time.Time

	mu          sync.Mutex
	running     bool
	stop        chan struct{}
	lastRefresh string // local date of the last horizon refresh
}

// New creates the driver set with default cadences.
func New(store *alarm.Store, scheduler *notify.Scheduler, rec *reconcile.Reconciler, runner TaskRunner, bus *events.Bus) *Drivers {
	return &Drivers{
		store:              store,
		scheduler:          scheduler,
		rec:                rec,
		runner:             runner,
		bus:                bus,
		PollInterval:       DefaultPollInterval,
		DismissalInterval:  DefaultDismissalInterval,
		BackgroundInterval: DefaultBackgroundInterval,
		nowFunc:            time.Now,
	}
}

// SetClock overrides the drivers' time source for tests.
func (d *Drivers) SetClock(now func() time.Time) {
	d.nowFunc = now
}

// Start runs the startup sequence and arms every timer: request
// notification permission (a denial is advisory, the engine keeps
// running degraded), attach the response listener, repair state left
// by a terminated process, materialize the horizon, register the
// background task, and start the pollers.
func (d *Drivers) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.stop = make(chan struct{})
	d.mu.Unlock()

	now := d.nowFunc()

	granted, err := d.scheduler.Backend().RequestPermission()
	if err != nil {
		log.Printf("sched: request notification permission: %v", err)
	} else if !granted {
		log.Println("sched: notification permission not granted, running degraded (in-app state only)")
	}

	d.scheduler.Backend().SetResponseHandler(d.rec.HandleResponse)

	d.store.CleanupOutOfWindowNotifications()
	d.store.CleanupDailyTodayAlarms()

	d.scheduler.RefreshForNextDay(d.store.GetAlarms(), now)
	d.mu.Lock()
	d.lastRefresh = window.LocalDate(now)
	d.mu.Unlock()

	if err := d.runner.Register(BackgroundTaskName, TaskOptions{
		MinimumInterval: d.BackgroundInterval,
		StopOnTerminate: false,
		StartOnBoot:     true,
	}, d.backgroundCheck); err != nil {
		log.Printf("sched: register background task: %v", err)
	}

	go d.pollLoop()
	go d.dismissalLoop()
	go d.midnightLoop()

	log.Printf("sched: drivers started (poll=%s, dismissal=%s)", d.PollInterval, d.DismissalInterval)
}

// Stop halts every driver.
func (d *Drivers) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	stop := d.stop
	d.mu.Unlock()

	close(stop)
	if err := d.runner.Unregister(BackgroundTaskName); err != nil {
		log.Printf("sched: unregister background task: %v", err)
	}
	log.Println("sched: drivers stopped")
}

// pollLoop is the foreground reconciliation timer.
func (d *Drivers) pollLoop() {
	// Immediate first pass so a fresh start converges without waiting
	// a full period.
	d.rec.Run(d.nowFunc())

	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.rec.Run(d.nowFunc())
		}
	}
}

// dismissalLoop re-checks presented notifications against open
// reminder sessions more often than the main poll, so a swiped-away
// notification reappears quickly.
func (d *Drivers) dismissalLoop() {
	ticker := time.NewTicker(d.DismissalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.rec.CheckDismissals(d.nowFunc())
		}
	}
}

// backgroundCheck is the background task body: one reconciliation pass
// plus, on the first run of each calendar day, a horizon refresh.
func (d *Drivers) backgroundCheck() TaskResult {
	now := d.nowFunc()
	today := window.LocalDate(now)

	d.mu.Lock()
	needsRefresh := d.lastRefresh != today
	if needsRefresh {
		d.lastRefresh = today
	}
	d.mu.Unlock()

	if needsRefresh {
		log.Println("sched: new day detected, rolling notification horizon")
		d.scheduler.RefreshForNextDay(d.store.GetAlarms(), now)
		if d.bus != nil {
			d.bus.Publish(events.Event{Type: events.HorizonRefresh, Message: "horizon rolled to " + today})
		}
	}

	if d.rec.Run(now) {
		return TaskNewData
	}
	return TaskNoData
}

// midnightLoop arms a timer for the next local midnight plus one
// minute, then repeats every 24 hours, deleting stale one-shot alarms.
func (d *Drivers) midnightLoop() {
	for {
		now := d.nowFunc()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 1, 0, 0, now.Location()).AddDate(0, 0, 1)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-d.stop:
			timer.Stop()
			return
		case <-timer.C:
			d.runDailyCleanup()
		}
	}
}

func (d *Drivers) runDailyCleanup() {
	log.Println("sched: running daily cleanup sweep")
	d.store.CleanupDailyTodayAlarms()
	if d.bus != nil {
		d.bus.Publish(events.Event{Type: events.DailyCleanup, Message: "daily cleanup sweep finished"})
	}
}
