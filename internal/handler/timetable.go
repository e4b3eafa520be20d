package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/zenith/internal/ai"
	"github.com/dukerupert/zenith/internal/model"
	"github.com/dukerupert/zenith/internal/planner"
)

type TimetableHandler struct {
	base
	actions *ai.Actions
}

func NewTimetableHandler(workspaces *planner.Registry, actions *ai.Actions, logger *slog.Logger) *TimetableHandler {
	return &TimetableHandler{base: base{workspaces: workspaces, logger: logger}, actions: actions}
}

type eventsRequest struct {
	Events []model.EventInput `json:"events" validate:"dive"`
}

type generateRequest struct {
	Preferences ai.StudyPreferences `json:"preferences"`
}

type generateResponse struct {
	ai.Result[ai.TimetableOutput]
	Events []model.TimetableEvent `json:"events,omitempty"`
}

// List handles GET /api/timetable
func (h *TimetableHandler) List(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	events, _ := ws.Timetable.List()
	if events == nil {
		events = []model.TimetableEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// SetTaskEvents handles PUT /api/timetable/task-events. Every existing task
// event is replaced; custom events are kept.
func (h *TimetableHandler) SetTaskEvents(w http.ResponseWriter, r *http.Request) {
	var req eventsRequest
	if !decode(w, r, &req) {
		return
	}

	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	events, err := ws.Timetable.SetEvents(r.Context(), req.Events)
	if err != nil {
		h.fail(w, r, err, "timetable")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// AddCustom handles POST /api/timetable/custom
func (h *TimetableHandler) AddCustom(w http.ResponseWriter, r *http.Request) {
	var req eventsRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, "events: is required")
		return
	}

	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	events, err := ws.Timetable.AddCustomEvents(r.Context(), req.Events)
	if err != nil {
		h.fail(w, r, err, "timetable")
		return
	}
	writeJSON(w, http.StatusCreated, events)
}

// DeleteCustom handles DELETE /api/timetable/custom/{id}
func (h *TimetableHandler) DeleteCustom(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	if err := ws.Timetable.DeleteCustomEvent(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err, "event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/timetable?type=task|custom|all
func (h *TimetableHandler) Clear(w http.ResponseWriter, r *http.Request) {
	which := r.URL.Query().Get("type")
	if which == "" {
		which = "all"
	}

	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	if err := ws.Timetable.ClearEvents(r.Context(), which); err != nil {
		h.fail(w, r, err, "timetable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Generate handles POST /api/timetable/generate. The user's tasks and
// custom events are sent to the model and the generated blocks replace the
// current task events.
func (h *TimetableHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decode(w, r, &req) {
		return
	}

	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	tasks, _ := ws.Tasks.List()
	events, _ := ws.Timetable.List()

	in := ai.TimetableInput{
		Tasks:        make([]ai.TimetableTask, 0, len(tasks)),
		CustomEvents: []ai.TimeBlock{},
		Preferences:  req.Preferences,
	}
	for _, t := range tasks {
		in.Tasks = append(in.Tasks, ai.TimetableTask{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Deadline:    formatDeadline(t.Deadline),
			Completed:   t.Completed,
		})
	}
	for _, ev := range events {
		if ev.Type != model.EventTypeCustom {
			continue
		}
		in.CustomEvents = append(in.CustomEvents, ai.TimeBlock{
			Title:     ev.Title,
			Day:       ev.Day,
			StartTime: ev.StartTime,
			EndTime:   ev.EndTime,
		})
	}

	res := h.actions.GenerateTimetable(r.Context(), in)
	if !res.Success {
		writeJSON(w, http.StatusOK, generateResponse{Result: res})
		return
	}

	saved, err := ws.Timetable.SetEvents(r.Context(), res.Data.Events())
	if err != nil {
		h.fail(w, r, err, "timetable")
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Result: res, Events: saved})
}
