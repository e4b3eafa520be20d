package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/zenith/internal/auth"
	"github.com/dukerupert/zenith/internal/planner"
	"github.com/dukerupert/zenith/internal/store"
	"github.com/dukerupert/zenith/internal/validate"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

var accepted = map[string]string{"status": "accepted"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// decode reads a JSON body into v and validates it.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if !decodeJSON(w, r, v) {
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validate.Message(err))
		return false
	}
	return true
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// base gives handlers access to the caller's workspace.
type base struct {
	workspaces *planner.Registry
	logger     *slog.Logger
}

// workspace returns the caller's workspace once its first snapshots have
// arrived. On false the response has been written.
func (b *base) workspace(w http.ResponseWriter, r *http.Request) (*planner.Workspace, func(), bool) {
	uid := auth.UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, nil, false
	}

	ws, release := b.workspaces.Acquire(uid)
	if err := ws.WaitReady(r.Context()); err != nil {
		release()
		b.logger.ErrorContext(r.Context(), "load workspace", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load workspace")
		return nil, nil, false
	}
	return ws, release, true
}

// fail maps planner and store errors to responses.
func (b *base) fail(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, planner.ErrNoUser):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, planner.ErrInvalidScope):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		b.logger.ErrorContext(r.Context(), "request failed", "what", what, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update "+what)
	}
}

type WorkspaceHandler struct {
	base
}

func NewWorkspaceHandler(workspaces *planner.Registry, logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{base{workspaces: workspaces, logger: logger}}
}

// Get handles GET /api/workspace
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, release, ok := h.workspace(w, r)
	if !ok {
		return
	}
	defer release()

	writeJSON(w, http.StatusOK, ws.Snapshot())
}
