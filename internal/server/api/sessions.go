package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/ayusman/headsup/internal/app"
	"github.com/ayusman/headsup/internal/feedback"
	"github.com/ayusman/headsup/internal/orientation"
)

// PermissionTimeout bounds how long a permission request waits for the user.
const PermissionTimeout = 30 * time.Second

// SessionHandler handles HTTP requests for sensor sessions.
type SessionHandler struct {
	app *app.App
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(a *app.App) *SessionHandler {
	return &SessionHandler{app: a}
}

type listSessionsResponse struct {
	Sessions []app.SessionStatus `json:"sessions"`
}

type permissionResponse struct {
	Permission    orientation.Permission `json:"permission"`
	HasPermission *bool                  `json:"has_permission"`
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sessions := h.app.Sessions()
	response := listSessionsResponse{
		Sessions: make([]app.SessionStatus, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, s.Status())
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/:id.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s, ok := h.lookup(w, ps)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Status())
}

// close handles DELETE /api/sessions/:id.
func (h *SessionHandler) close(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.app.CloseSession(ps.ByName("id")); err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// start handles POST /api/sessions/:id/start.
func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s, ok := h.lookup(w, ps)
	if !ok {
		return
	}
	if err := s.Start(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}
	writeJSON(w, http.StatusOK, s.Status())
}

// stop handles POST /api/sessions/:id/stop.
func (h *SessionHandler) stop(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s, ok := h.lookup(w, ps)
	if !ok {
		return
	}
	s.Stop()
	writeJSON(w, http.StatusOK, s.Status())
}

// permission handles POST /api/sessions/:id/permission. It blocks until the
// user answers on the device or PermissionTimeout passes.
func (h *SessionHandler) permission(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s, ok := h.lookup(w, ps)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), PermissionTimeout)
	defer cancel()

	p, err := s.RequestPermission(ctx)
	switch {
	case errors.Is(err, orientation.ErrPermissionPending):
		writeError(w, http.StatusConflict, "Permission request already pending")
		return
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "Permission request timed out")
		return
	}
	// Other errors are reported as a denial, the same way the device would.
	writeJSON(w, http.StatusOK, permissionResponse{Permission: p, HasPermission: p.Bool()})
}

// feedback handles POST /api/sessions/:id/feedback/:cue.
func (h *SessionHandler) feedback(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s, ok := h.lookup(w, ps)
	if !ok {
		return
	}

	cue, err := feedback.ParseCue(ps.ByName("cue"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Play(cue); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) lookup(w http.ResponseWriter, ps httprouter.Params) (*app.Session, bool) {
	s, err := h.app.Session(ps.ByName("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return s, true
}
