package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/zenith/internal/ai"
	"github.com/dukerupert/zenith/internal/model"
	"github.com/dukerupert/zenith/internal/planner"
)

type MissionHandler struct {
	base
	actions *ai.Actions
}

func NewMissionHandler(workspaces *planner.Registry, actions *ai.Actions, logger *slog.Logger) *MissionHandler {
	return &MissionHandler{base: base{workspaces: workspaces, logger: logger}, actions: actions}
}

type missionRequest struct {
	Title string `json:"title" validate:"required,notblank"`
}

type goalRequest struct {
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description"`
}

// List handles GET /api/missions
func (h *MissionHandler) List(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	missions, _ := ws.Missions.List()
	if missions == nil {
		missions = []model.Mission{}
	}
	writeJSON(w, http.StatusOK, missions)
}

// Get handles GET /api/missions/{id}
func (h *MissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	mission, found := ws.Missions.Get(r.PathValue("id"))
	if !found {
		writeError(w, http.StatusNotFound, "mission not found")
		return
	}
	writeJSON(w, http.StatusOK, mission)
}

// Create handles POST /api/missions
func (h *MissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req missionRequest
	if !decode(w, r, &req) {
		return
	}

	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	mission, err := ws.Missions.Add(r.Context(), strings.TrimSpace(req.Title))
	if err != nil {
		h.fail(w, r, err, "mission")
		return
	}
	writeJSON(w, http.StatusCreated, mission)
}

// Update handles PATCH /api/missions/{id}
func (h *MissionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req missionRequest
	if !decode(w, r, &req) {
		return
	}

	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	title := strings.TrimSpace(req.Title)
	if err := ws.Missions.Update(r.Context(), r.PathValue("id"), model.MissionUpdate{Title: &title}); err != nil {
		h.fail(w, r, err, "mission")
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

// Delete handles DELETE /api/missions/{id}. The mission and all of its
// goals are removed together.
func (h *MissionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	if err := ws.Missions.DeleteCascade(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err, "mission")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Roadmap handles POST /api/missions/{id}/roadmap
func (h *MissionHandler) Roadmap(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	mission, found := ws.Missions.Get(r.PathValue("id"))
	if !found {
		writeError(w, http.StatusNotFound, "mission not found")
		return
	}
	if mission.Roadmap != nil && r.URL.Query().Get("refresh") != "true" {
		writeJSON(w, http.StatusOK, ai.Result[model.Roadmap]{Success: true, Data: mission.Roadmap})
		return
	}

	res := h.actions.GenerateTaskRoadmap(r.Context(), mission.Title)
	if !res.Success {
		writeJSON(w, http.StatusOK, ai.Result[model.Roadmap]{Error: res.Error})
		return
	}

	roadmap := res.Data.Roadmap()
	if err := ws.Missions.SetRoadmap(r.Context(), mission.ID, roadmap); err != nil {
		h.fail(w, r, err, "mission")
		return
	}
	writeJSON(w, http.StatusOK, ai.Result[model.Roadmap]{Success: true, Data: roadmap})
}

// SuggestGoals handles POST /api/missions/{id}/suggest-goals
func (h *MissionHandler) SuggestGoals(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	mission, found := ws.Missions.Get(r.PathValue("id"))
	if !found {
		writeError(w, http.StatusNotFound, "mission not found")
		return
	}
	writeJSON(w, http.StatusOK, h.actions.SuggestGoalsForMission(r.Context(), mission.Title))
}

// goals opens the goal list of the mission named in the path. On false the
// response has been written.
func (h *MissionHandler) goals(w http.ResponseWriter, r *http.Request, ws *planner.Workspace) (*planner.Goals, bool) {
	missionID := r.PathValue("id")
	if _, found := ws.Missions.Get(missionID); !found {
		writeError(w, http.StatusNotFound, "mission not found")
		return nil, false
	}
	return ws.Missions.Goals(missionID), true
}

// ListGoals handles GET /api/missions/{id}/goals
func (h *MissionHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	goals, ok := h.goals(w, r, ws)
	if !ok {
		return
	}
	defer goals.Close()

	if err := goals.Ready(r.Context()); err != nil {
		h.fail(w, r, err, "goals")
		return
	}
	list, _ := goals.List()
	if list == nil {
		list = []model.Goal{}
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateGoal handles POST /api/missions/{id}/goals
func (h *MissionHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if !decode(w, r, &req) {
		return
	}

	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	goals, ok := h.goals(w, r, ws)
	if !ok {
		return
	}
	defer goals.Close()

	goal, err := goals.Add(r.Context(), model.NewGoal{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, r, err, "mission")
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

// ToggleGoal handles POST /api/missions/{id}/goals/{goalID}/toggle
func (h *MissionHandler) ToggleGoal(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	goals, ok := h.goals(w, r, ws)
	if !ok {
		return
	}
	defer goals.Close()

	goal, err := goals.Toggle(r.Context(), r.PathValue("goalID"))
	if err != nil {
		h.fail(w, r, err, "goal")
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// DeleteGoal handles DELETE /api/missions/{id}/goals/{goalID}
func (h *MissionHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	goals, ok := h.goals(w, r, ws)
	if !ok {
		return
	}
	defer goals.Close()

	if err := goals.Delete(r.Context(), r.PathValue("goalID")); err != nil {
		h.fail(w, r, err, "goal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
