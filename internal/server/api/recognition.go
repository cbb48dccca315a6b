package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/ayusman/headsup/internal/app"
	"github.com/ayusman/headsup/internal/gesture"
)

// RecognitionHandler exposes the global recognition settings.
type RecognitionHandler struct {
	app *app.App
}

// NewRecognitionHandler creates a new RecognitionHandler.
func NewRecognitionHandler(a *app.App) *RecognitionHandler {
	return &RecognitionHandler{app: a}
}

type recognitionResponse struct {
	Enabled       bool           `json:"enabled"`
	ActiveProfile string         `json:"active_profile,omitempty"`
	Ambiguous     bool           `json:"ambiguous"`
	Config        gesture.Config `json:"config"`
}

type updateRecognitionRequest struct {
	Enabled *bool           `json:"enabled"`
	Preset  string          `json:"preset"`
	Config  *gesture.Config `json:"config"`
}

type presetsResponse struct {
	Default string           `json:"default"`
	Presets []gesture.Config `json:"presets"`
}

func (h *RecognitionHandler) snapshot() recognitionResponse {
	cfg := h.app.GestureConfig()
	return recognitionResponse{
		Enabled:       h.app.IsEnabled(),
		ActiveProfile: h.app.ActiveProfile(),
		Ambiguous:     cfg.Ambiguous(),
		Config:        cfg,
	}
}

// get handles GET /api/recognition.
func (h *RecognitionHandler) get(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, h.snapshot())
}

// update handles PUT /api/recognition. Thresholds come from either a preset
// name or an explicit config; the enabled flag is applied last.
func (h *RecognitionHandler) update(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req updateRecognitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Preset != "" && req.Config != nil {
		writeError(w, http.StatusBadRequest, "Give either preset or config, not both")
		return
	}

	var cfg *gesture.Config
	switch {
	case req.Preset != "":
		p, err := gesture.Preset(req.Preset)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cfg = &p
	case req.Config != nil:
		cfg = req.Config
	}

	if cfg != nil {
		if err := h.app.SetGestureConfig(*cfg); err != nil {
			if errors.Is(err, gesture.ErrInvalidConfig) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to apply config")
			return
		}
	}

	if req.Enabled != nil {
		h.app.SetEnabled(*req.Enabled)
	}

	writeJSON(w, http.StatusOK, h.snapshot())
}

// presets handles GET /api/presets.
func (h *RecognitionHandler) presets(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	response := presetsResponse{Default: gesture.DefaultPreset}
	for _, name := range gesture.PresetNames() {
		cfg, _ := gesture.Preset(name)
		response.Presets = append(response.Presets, cfg)
	}
	writeJSON(w, http.StatusOK, response)
}
