package handlers

import (
	"net/http"

	"chat-relay-backend/internal/models"
)

// Health is the liveness probe. It touches no dependencies.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok"})
}
