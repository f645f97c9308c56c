package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timewarden/internal/alarm"
	"timewarden/internal/config"
	"timewarden/internal/events"
	"timewarden/internal/handlers"
	"timewarden/internal/kv"
	"timewarden/internal/notify"
	"timewarden/internal/reconcile"
	"timewarden/internal/sched"
	"timewarden/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}

	store, err := kv.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("❌ Database error: %v", err)
	}
	defer store.Close()
	log.Printf("✅ Database connected (%s)", cfg.DBPath)

	bus := events.NewBus()

	backend := notify.NewLocalBackend(cfg.ShoutrrrURLs, nil)
	backend.Start()
	defer backend.Stop()

	scheduler := notify.NewScheduler(backend)
	alarms := alarm.NewStore(store, scheduler)
	rec := reconcile.New(alarms, scheduler, bus)

	drivers := sched.New(alarms, scheduler, rec, sched.NewTickerRunner(), bus)
	drivers.PollInterval = cfg.PollInterval
	drivers.DismissalInterval = cfg.DismissalInterval
	drivers.BackgroundInterval = cfg.BackgroundInterval
	drivers.Start()
	defer drivers.Stop()

	api := &handlers.API{Store: alarms, Reconciler: rec, Bus: bus}
	hub := handlers.NewRefreshHub(bus)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		handlers.JSONResponse(w, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/version", func(w http.ResponseWriter, r *http.Request) {
		handlers.JSONResponse(w, version.Current())
	})

	mux.HandleFunc("GET /api/alarms", api.ListAlarms)
	mux.HandleFunc("POST /api/alarms", api.CreateAlarm)
	mux.HandleFunc("GET /api/alarms/{id}", api.GetAlarm)
	mux.HandleFunc("PATCH /api/alarms/{id}", api.UpdateAlarm)
	mux.HandleFunc("DELETE /api/alarms/{id}", api.DeleteAlarm)

	mux.HandleFunc("GET /api/notifications", api.ListAllNotifications)
	mux.HandleFunc("GET /api/notifications/active", api.ListActiveNotifications)
	mux.HandleFunc("POST /api/notifications/{id}/complete", api.CompleteNotification)

	mux.HandleFunc("GET /ws", hub.Serve)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		log.Printf("Timewarden listening on port %s...", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Forced shutdown: %v", err)
	}
}
