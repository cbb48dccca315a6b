package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/ayusman/headsup/internal/app"
	"github.com/ayusman/headsup/internal/gesture"
	"github.com/ayusman/headsup/internal/store"
)

// ProfileHandler handles HTTP requests for threshold profiles.
type ProfileHandler struct {
	app   *app.App
	store *store.Store
}

// NewProfileHandler creates a new ProfileHandler. The app must have a store.
func NewProfileHandler(a *app.App) *ProfileHandler {
	return &ProfileHandler{app: a, store: a.Store()}
}

// Request and response types

type createProfileRequest struct {
	Name   string          `json:"name"`
	Preset string          `json:"preset"`
	Config *gesture.Config `json:"config"`
}

type updateProfileRequest struct {
	Name   string          `json:"name"`
	Config *gesture.Config `json:"config"`
}

type profileResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Preset    string         `json:"preset,omitempty"`
	Active    bool           `json:"active"`
	Ambiguous bool           `json:"ambiguous"`
	Config    gesture.Config `json:"config"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

type listProfilesResponse struct {
	Profiles []profileResponse `json:"profiles"`
}

func (h *ProfileHandler) toResponse(p *store.Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		Name:      p.Name,
		Preset:    p.Preset,
		Active:    p.ID == h.app.ActiveProfile(),
		Ambiguous: p.Config.Ambiguous(),
		Config:    p.Config,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// list handles GET /api/profiles.
func (h *ProfileHandler) list(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	profiles, err := h.store.Profiles().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list profiles")
		return
	}

	response := listProfilesResponse{
		Profiles: make([]profileResponse, 0, len(profiles)),
	}
	for _, p := range profiles {
		response.Profiles = append(response.Profiles, h.toResponse(p))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/profiles/:id.
func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, ok := h.lookup(w, ps.ByName("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(p))
}

// create handles POST /api/profiles. The thresholds start from the named
// preset (landscape by default) unless an explicit config is given.
func (h *ProfileHandler) create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	if req.Preset == "" {
		req.Preset = gesture.DefaultPreset
	}
	cfg, err := gesture.Preset(req.Preset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Config != nil {
		cfg = *req.Config
	}
	cfg.Name = req.Name

	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := &store.Profile{
		ID:     uuid.New().String(),
		Name:   req.Name,
		Preset: req.Preset,
		Config: cfg,
	}
	if err := h.store.Profiles().Create(p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "Profile name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create profile")
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(p))
}

// update handles PUT /api/profiles/:id. Updating the active profile applies
// the new thresholds to every session.
func (h *ProfileHandler) update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, ok := h.lookup(w, ps.ByName("id"))
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		p.Name = name
	}
	if req.Config != nil {
		p.Config = *req.Config
	}
	p.Config.Name = p.Name

	if err := p.Config.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Profiles().Update(p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "Profile name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	if p.ID == h.app.ActiveProfile() {
		if err := h.app.ActivateProfile(p.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to apply profile")
			return
		}
	}

	writeJSON(w, http.StatusOK, h.toResponse(p))
}

// delete handles DELETE /api/profiles/:id. Deleting the active profile
// leaves its thresholds in effect until another one is activated.
func (h *ProfileHandler) delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.store.Profiles().Delete(ps.ByName("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete profile")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// activate handles POST /api/profiles/:id/activate.
func (h *ProfileHandler) activate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if err := h.app.ActivateProfile(id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Profile not found")
		case errors.Is(err, gesture.ErrInvalidConfig):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Failed to activate profile")
		}
		return
	}

	p, ok := h.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(p))
}

func (h *ProfileHandler) lookup(w http.ResponseWriter, id string) (*store.Profile, bool) {
	p, err := h.store.Profiles().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return nil, false
	}
	return p, true
}
