package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/zenith/internal/ai"
	"github.com/dukerupert/zenith/internal/planner"
)

// AIHandler serves the AI actions that are not tied to a stored entity.
// Input validation happens in the flows, so bad input comes back as a
// failed Result rather than a 400.
type AIHandler struct {
	base
	actions *ai.Actions
}

func NewAIHandler(workspaces *planner.Registry, actions *ai.Actions, logger *slog.Logger) *AIHandler {
	return &AIHandler{base: base{workspaces: workspaces, logger: logger}, actions: actions}
}

type hydrationRequest struct {
	GlassCount int `json:"glassCount"`
}

type studyScheduleRequest struct {
	Tasks string `json:"tasks"`
}

// Hydration handles POST /api/ai/hydration
func (h *AIHandler) Hydration(w http.ResponseWriter, r *http.Request) {
	var req hydrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.actions.AnalyzeHydration(r.Context(), req.GlassCount))
}

// StudySchedule handles POST /api/ai/study-schedule
func (h *AIHandler) StudySchedule(w http.ResponseWriter, r *http.Request) {
	var req studyScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.actions.GenerateStudySchedule(r.Context(), req.Tasks))
}

// Fitness handles POST /api/ai/fitness. When the request carries no BMI the
// one stored on the profile is used.
func (h *AIHandler) Fitness(w http.ResponseWriter, r *http.Request) {
	var req ai.FitnessInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.BMI == nil {
		ws, release, ok := h.workspace(w, r)
		if !ok {
			return
		}
		if profile, _ := ws.Profile.Get(); profile != nil {
			req.BMI = profile.BMI
		}
		release()
	}
	writeJSON(w, http.StatusOK, h.actions.GetFitnessAdvice(r.Context(), req))
}

// StudyTimes handles POST /api/ai/study-times
func (h *AIHandler) StudyTimes(w http.ResponseWriter, r *http.Request) {
	var req ai.StudyTimesInput
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.actions.SuggestOptimalStudyTimes(r.Context(), req))
}
