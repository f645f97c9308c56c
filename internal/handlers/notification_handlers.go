package handlers

import (
	"log"
	"net/http"

	"timewarden/internal/alarm"
)

// ListActiveNotifications returns the open reminder sessions.
// GET /api/notifications/active
func (api *API) ListActiveNotifications(w http.ResponseWriter, r *http.Request) {
	active := api.Store.GetActiveNotifications()
	if active == nil {
		active = []alarm.Notification{}
	}
	JSONResponse(w, active)
}

// ListAllNotifications returns every reminder session, including the
// terminated history.
// GET /api/notifications
func (api *API) ListAllNotifications(w http.ResponseWriter, r *http.Request) {
	all := api.Store.GetAllNotifications()
	if all == nil {
		all = []alarm.Notification{}
	}
	JSONResponse(w, all)
}

// CompleteNotification marks a reminder session done on behalf of the
// user — the HTTP equivalent of the notification's mark-done action.
// POST /api/notifications/{id}/complete
func (api *API) CompleteNotification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	found := false
	for _, n := range api.Store.GetAllNotifications() {
		if n.ID == id {
			found = true
			break
		}
	}
	if !found {
		JSONError(w, "Notification not found", http.StatusNotFound)
		return
	}

	if err := api.Reconciler.Complete(id); err != nil {
		log.Printf("handlers: complete notification %s: %v", id, err)
		JSONError(w, "Failed to complete notification", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]string{"status": "completed"})
}
