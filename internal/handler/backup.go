package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/zenith/internal/auth"
	"github.com/dukerupert/zenith/internal/backup"
	"github.com/dukerupert/zenith/internal/store"
)

type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, logger: logger}
}

// Create handles POST /api/backups
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	record, err := h.manager.Export(r.Context(), userID)
	if errors.Is(err, backup.ErrDisabled) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("export backup", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create backup")
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// List handles GET /api/backups
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.manager.List(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": h.manager.Enabled(),
		"status":  h.manager.Status(),
		"backups": backups,
	})
}

// Download handles GET /api/backups/{id}/download. The archive is returned
// decrypted.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	archive, err := h.manager.Download(r.Context(), id, userID)
	switch {
	case errors.Is(err, backup.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "backup not found")
		return
	case err != nil:
		h.logger.Error("download backup", "user_id", userID, "backup_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to download backup")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="zenith-backup-%d.json"`, id))
	writeJSON(w, http.StatusOK, archive)
}
