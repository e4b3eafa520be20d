package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/zenith/internal/ai"
	"github.com/dukerupert/zenith/internal/model"
	"github.com/dukerupert/zenith/internal/planner"
)

type TaskHandler struct {
	base
	actions *ai.Actions
}

func NewTaskHandler(workspaces *planner.Registry, actions *ai.Actions, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{base: base{workspaces: workspaces, logger: logger}, actions: actions}
}

type createTaskRequest struct {
	Title       string   `json:"title" validate:"required,notblank"`
	Description string   `json:"description"`
	Deadline    string   `json:"deadline" validate:"required"`
	Subtasks    []string `json:"subtasks" validate:"dive,required"`
}

type updateTaskRequest struct {
	Title       *string   `json:"title" validate:"omitnil,notblank"`
	Description *string   `json:"description"`
	Deadline    *string   `json:"deadline"`
	Completed   *bool     `json:"completed"`
	Subtasks    *[]string `json:"subtasks"`
}

type chatRequest struct {
	History []ai.ChatTurn `json:"history"`
}

// List handles GET /api/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	tasks, _ := ws.Tasks.List()
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Get handles GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	task, found := ws.Tasks.Get(r.PathValue("id"))
	if !found {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Create handles POST /api/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decode(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	deadline, err := parseDate(req.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, "deadline must be a date (YYYY-MM-DD)")
		return
	}

	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	task, err := ws.Tasks.Add(r.Context(), model.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    deadline,
		Subtasks:    req.Subtasks,
	})
	if err != nil {
		h.fail(w, r, err, "task")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// Update handles PATCH /api/tasks/{id}. The write is applied in the
// background.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		req.Title = &title
	}

	u := model.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		Subtasks:    req.Subtasks,
	}
	if req.Deadline != nil {
		deadline, err := parseDate(*req.Deadline)
		if err != nil {
			writeError(w, http.StatusBadRequest, "deadline must be a date (YYYY-MM-DD)")
			return
		}
		u.Deadline = &deadline
	}

	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	if err := ws.Tasks.Update(r.Context(), r.PathValue("id"), u); err != nil {
		h.fail(w, r, err, "task")
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

// Toggle handles POST /api/tasks/{id}/toggle
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	if err := ws.Tasks.Toggle(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err, "task")
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

// Delete handles DELETE /api/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	if err := ws.Tasks.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err, "task")
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

// BreakDown handles POST /api/tasks/{id}/breakdown
func (h *TaskHandler) BreakDown(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	task, found := ws.Tasks.Get(r.PathValue("id"))
	if !found {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, h.actions.BreakDownTask(r.Context(), task.Title))
}

// Roadmap handles POST /api/tasks/{id}/roadmap. A cached roadmap is
// returned unless ?refresh=true.
func (h *TaskHandler) Roadmap(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	task, found := ws.Tasks.Get(r.PathValue("id"))
	if !found {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if task.Roadmap != nil && r.URL.Query().Get("refresh") != "true" {
		writeJSON(w, http.StatusOK, ai.Result[model.Roadmap]{Success: true, Data: task.Roadmap})
		return
	}

	res := h.actions.GenerateTaskRoadmap(r.Context(), task.Title)
	if !res.Success {
		writeJSON(w, http.StatusOK, ai.Result[model.Roadmap]{Error: res.Error})
		return
	}

	roadmap := res.Data.Roadmap()
	if err := ws.Tasks.SetRoadmap(r.Context(), task.ID, roadmap); err != nil {
		h.fail(w, r, err, "task")
		return
	}
	writeJSON(w, http.StatusOK, ai.Result[model.Roadmap]{Success: true, Data: roadmap})
}

// Chat handles POST /api/tasks/{id}/chat
func (h *TaskHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}

	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	task, found := ws.Tasks.Get(r.PathValue("id"))
	if !found {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, h.actions.ContinueConversation(r.Context(), ai.ConversationInput{
		TaskTitle: task.Title,
		History:   req.History,
	}))
}

func formatDeadline(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
