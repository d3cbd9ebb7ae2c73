package controller

import (
	"net/http"

	"github.com/go-chi/render"
)

type messageResponse struct {
	Message string `json:"message"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

func respondMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respond(w, r, status, messageResponse{Message: msg})
}

// Health answers the root liveness probe.
func Health(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]string{
		"message": "Payments Backend API",
		"status":  "healthy",
	})
}

// NotFound is used for unmatched routes and methods.
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondMessage(w, r, http.StatusNotFound, "Route not found")
}
