package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/zenith/internal/model"
	"github.com/dukerupert/zenith/internal/planner"
)

type ProfileHandler struct {
	base
}

func NewProfileHandler(workspaces *planner.Registry, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{base{workspaces: workspaces, logger: logger}}
}

// Get handles GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	profile, _ := ws.Profile.Get()
	if profile == nil {
		writeJSON(w, http.StatusOK, model.Profile{UserID: ws.UserID()})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Update handles PATCH /api/profile. BMI is recomputed whenever height and
// weight are both known.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.ProfileUpdate
	if !decode(w, r, &req) {
		return
	}

	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	profile, err := ws.Profile.Merge(r.Context(), req)
	if err != nil {
		h.fail(w, r, err, "profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
