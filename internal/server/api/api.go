// Package api provides HTTP API handlers for the headsup gesture service.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/ayusman/headsup/internal/app"
)

type errorResponse struct {
	Error string `json:"error"`
}

// Register mounts every API route on r. Routes that need persistence are
// only mounted when the app has a store.
func Register(r *httprouter.Router, a *app.App) {
	sessions := NewSessionHandler(a)
	r.GET("/api/sessions", sessions.list)
	r.GET("/api/sessions/:id", sessions.get)
	r.DELETE("/api/sessions/:id", sessions.close)
	r.POST("/api/sessions/:id/start", sessions.start)
	r.POST("/api/sessions/:id/stop", sessions.stop)
	r.POST("/api/sessions/:id/permission", sessions.permission)
	r.POST("/api/sessions/:id/feedback/:cue", sessions.feedback)

	recognition := NewRecognitionHandler(a)
	r.GET("/api/recognition", recognition.get)
	r.PUT("/api/recognition", recognition.update)
	r.GET("/api/presets", recognition.presets)

	if a.Store() == nil {
		return
	}

	profiles := NewProfileHandler(a)
	r.GET("/api/profiles", profiles.list)
	r.POST("/api/profiles", profiles.create)
	r.GET("/api/profiles/:id", profiles.get)
	r.PUT("/api/profiles/:id", profiles.update)
	r.DELETE("/api/profiles/:id", profiles.delete)
	r.POST("/api/profiles/:id/activate", profiles.activate)

	events := NewEventHandler(a.Store())
	r.GET("/api/events", events.list)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
