package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"timewarden/internal/alarm"
	"timewarden/internal/events"
	"timewarden/internal/reconcile"
)

// API bundles the collaborators the HTTP surface needs.
type API struct {
	Store      *alarm.Store
	Reconciler *reconcile.Reconciler
	Bus        *events.Bus
}

// ListAlarms returns all alarms.
// GET /api/alarms
func (api *API) ListAlarms(w http.ResponseWriter, r *http.Request) {
	alarms := api.Store.GetAlarms()
	if alarms == nil {
		alarms = []alarm.Alarm{}
	}
	JSONResponse(w, alarms)
}

// GetAlarm returns a single alarm.
// GET /api/alarms/{id}
func (api *API) GetAlarm(w http.ResponseWriter, r *http.Request) {
	a := api.Store.GetAlarm(r.PathValue("id"))
	if a == nil {
		JSONError(w, "Alarm not found", http.StatusNotFound)
		return
	}
	JSONResponse(w, a)
}

// CreateAlarm adds a new alarm. The id and creation timestamp are
// assigned by the store.
// POST /api/alarms
func (api *API) CreateAlarm(w http.ResponseWriter, r *http.Request) {
	var req alarm.Alarm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		JSONError(w, "Name is required", http.StatusBadRequest)
		return
	}
	if len(req.EffectiveWindows()) == 0 {
		JSONError(w, "At least one time window is required", http.StatusBadRequest)
		return
	}
	if !alarm.ValidInterval(req.NotificationInterval) {
		JSONError(w, "Notification interval must be one of 5, 10, 15, 30, 60", http.StatusBadRequest)
		return
	}
	if req.RepeatType == "" {
		req.RepeatType = alarm.RepeatDaily
	}
	if req.RepeatType == alarm.RepeatWeekly && len(req.SelectedDays) == 0 {
		JSONError(w, "Weekly alarms need at least one selected day", http.StatusBadRequest)
		return
	}

	created, err := api.Store.AddAlarm(req)
	if err != nil {
		log.Printf("handlers: create alarm: %v", err)
		JSONError(w, "Failed to create alarm", http.StatusInternalServerError)
		return
	}

	api.publish(events.Event{Type: events.AlarmCreated, AlarmID: created.ID, AlarmName: created.Name, Message: "alarm created"})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		log.Printf("handlers: failed to encode JSON response: %v", err)
	}
}

// UpdateAlarm applies a partial patch.
// PATCH /api/alarms/{id}
func (api *API) UpdateAlarm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if api.Store.GetAlarm(id) == nil {
		JSONError(w, "Alarm not found", http.StatusNotFound)
		return
	}

	var patch alarm.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		JSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if patch.NotificationInterval != nil && !alarm.ValidInterval(*patch.NotificationInterval) {
		JSONError(w, "Notification interval must be one of 5, 10, 15, 30, 60", http.StatusBadRequest)
		return
	}

	if err := api.Store.UpdateAlarm(id, patch); err != nil {
		log.Printf("handlers: update alarm %s: %v", id, err)
		JSONError(w, "Failed to update alarm", http.StatusInternalServerError)
		return
	}

	api.publish(events.Event{Type: events.AlarmUpdated, AlarmID: id, Message: "alarm updated"})
	JSONResponse(w, api.Store.GetAlarm(id))
}

// DeleteAlarm removes an alarm and everything tied to it.
// DELETE /api/alarms/{id}
func (api *API) DeleteAlarm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if api.Store.GetAlarm(id) == nil {
		JSONError(w, "Alarm not found", http.StatusNotFound)
		return
	}

	if err := api.Store.DeleteAlarm(id); err != nil {
		log.Printf("handlers: delete alarm %s: %v", id, err)
		JSONError(w, "Failed to delete alarm", http.StatusInternalServerError)
		return
	}

	api.publish(events.Event{Type: events.AlarmDeleted, AlarmID: id, Message: "alarm deleted"})
	JSONResponse(w, map[string]string{"status": "deleted"})
}

func (api *API) publish(e events.Event) {
	if api.Bus != nil {
		api.Bus.Publish(e)
	}
}
