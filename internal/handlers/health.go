package handlers

import (
	"net/http"
)

// Health answers as long as the process is up.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Alive reports whether the entry store answers its liveness check.
func (h *Handler) Alive(w http.ResponseWriter, r *http.Request) {
	alive, err := h.repo.IsAlive(r.Context())
	if err != nil {
		h.log.Warnw("store liveness check failed", "error", err)
	}
	if err != nil || !alive {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"success": false, "alive": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "alive": true})
}
