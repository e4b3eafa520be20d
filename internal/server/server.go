package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/zenith/internal/ai"
	"github.com/dukerupert/zenith/internal/auth"
	"github.com/dukerupert/zenith/internal/backup"
	"github.com/dukerupert/zenith/internal/handler"
	"github.com/dukerupert/zenith/internal/live"
	"github.com/dukerupert/zenith/internal/middleware"
	"github.com/dukerupert/zenith/internal/planner"
	"github.com/dukerupert/zenith/internal/push"
	"github.com/dukerupert/zenith/internal/store"
	ws "github.com/dukerupert/zenith/internal/websocket"
	"github.com/dukerupert/zenith/internal/writer"
)

// Options are the collaborators built from configuration.
type Options struct {
	Bus      live.Bus
	Verifier middleware.TokenVerifier
	Model    ai.Model // nil leaves AI unconfigured
	Limiter  middleware.Limiter
	AILimit  int
	AIWindow time.Duration

	// Linger keeps a user's workspace open after its last request.
	Linger          time.Duration
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string
	Backup          backup.Config
	Location        *time.Location
}

type Server struct {
	hub           *ws.Hub
	writer        *writer.Writer
	workspaces    *planner.Registry
	workspaceH    *handler.WorkspaceHandler
	taskH         *handler.TaskHandler
	missionH      *handler.MissionHandler
	timetableH    *handler.TimetableHandler
	profileH      *handler.ProfileHandler
	aiH           *handler.AIHandler
	pushH         *handler.PushHandler
	backupH       *handler.BackupHandler
	pushStore     *store.PushStore
	pushScheduler *push.Scheduler
	verifier      middleware.TokenVerifier
	limiter       middleware.Limiter
	aiLimit       int
	aiWindow      time.Duration
	logger        *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	taskStore := store.NewTaskStore(db)
	missionStore := store.NewMissionStore(db)
	goalStore := store.NewGoalStore(db)
	timetableStore := store.NewTimetableStore(db)
	profileStore := store.NewProfileStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	writeLogger := logger.With("component", "writer")
	wr := writer.New(opts.Bus, func(ctx context.Context, err *writer.Error) {
		hub.Send(err.UserID, ws.Message{
			Type:   ws.TypeWriteFailed,
			Entity: "error",
			Action: "failed",
			Extra: map[string]any{
				"path":      err.Path,
				"operation": string(err.Operation),
				"error":     err.Err.Error(),
			},
		})
	}, writeLogger)

	registry := planner.NewRegistry(&planner.Deps{
		Tasks:     taskStore,
		Missions:  missionStore,
		Goals:     goalStore,
		Timetable: timetableStore,
		Profiles:  profileStore,
		Writer:    wr,
		Bus:       opts.Bus,
		Logger:    logger.With("component", "planner"),
	}, opts.Linger)

	actions := ai.NewActions(opts.Model, logger)

	pushLogger := logger.With("component", "push")
	var sender push.Sender
	if opts.VAPIDPublicKey != "" && opts.VAPIDPrivateKey != "" {
		sender = push.NewService(opts.VAPIDPublicKey, opts.VAPIDPrivateKey, opts.VAPIDSubscriber)
	} else {
		pushLogger.Info("web push disabled, reminders go to live clients only")
	}
	scheduler := push.NewScheduler(sender, pushStore, taskStore, timetableStore, opts.Location, pushLogger)
	scheduler.Online = hub.UserIDs
	scheduler.Notify = func(userID string, r push.Reminder) {
		msg := ws.NewMessage("reminder", "due", r.RefID, map[string]any{
			"kind":  r.Kind,
			"title": r.Title,
			"body":  r.Body,
			"url":   r.URL,
		})
		hub.Send(userID, msg)
	}

	backupMgr := backup.NewManager(opts.Backup, backup.Sources{
		Profiles:  profileStore,
		Tasks:     taskStore,
		Missions:  missionStore,
		Goals:     goalStore,
		Timetable: timetableStore,
	}, backupStore, logger.With("component", "backup"))

	return &Server{
		hub:           hub,
		writer:        wr,
		workspaces:    registry,
		workspaceH:    handler.NewWorkspaceHandler(registry, logger.With("component", "workspace")),
		taskH:         handler.NewTaskHandler(registry, actions, logger.With("component", "task")),
		missionH:      handler.NewMissionHandler(registry, actions, logger.With("component", "mission")),
		timetableH:    handler.NewTimetableHandler(registry, actions, logger.With("component", "timetable")),
		profileH:      handler.NewProfileHandler(registry, logger.With("component", "profile")),
		aiH:           handler.NewAIHandler(registry, actions, logger.With("component", "ai_handler")),
		pushH:         handler.NewPushHandler(pushStore, opts.VAPIDPublicKey, logger.With("component", "push_handler")),
		backupH:       handler.NewBackupHandler(backupMgr, logger.With("component", "backup_handler")),
		pushStore:     pushStore,
		pushScheduler: scheduler,
		verifier:      opts.Verifier,
		limiter:       opts.Limiter,
		aiLimit:       opts.AILimit,
		aiWindow:      opts.AIWindow,
		logger:        logger,
	}
}

// PushScheduler returns the reminder scheduler.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// PushStore returns the push store for cleanup tasks.
func (s *Server) PushStore() *store.PushStore {
	return s.pushStore
}

// Shutdown waits for queued writes and closes every open workspace.
func (s *Server) Shutdown() {
	s.writer.Wait()
	s.workspaces.Close()
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /healthz", s.healthHandler)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.verifier)
	outerMux.Handle("/", authMiddleware(protectedMux))

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// aiLimited applies the per-user AI rate limit.
func (s *Server) aiLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return "ai:" + auth.UserID(r.Context())
	}
	rl := middleware.RateLimit(s.limiter, keyFunc, s.aiLimit, s.aiWindow)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/workspace", s.workspaceH.Get)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.workspaces, s.logger.With("component", "websocket")))

	// Tasks
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/toggle", s.taskH.Toggle)
	mux.HandleFunc("POST /api/tasks/{id}/breakdown", s.aiLimited(s.taskH.BreakDown))
	mux.HandleFunc("POST /api/tasks/{id}/roadmap", s.aiLimited(s.taskH.Roadmap))
	mux.HandleFunc("POST /api/tasks/{id}/chat", s.aiLimited(s.taskH.Chat))

	// Missions and goals
	mux.HandleFunc("GET /api/missions", s.missionH.List)
	mux.HandleFunc("POST /api/missions", s.missionH.Create)
	mux.HandleFunc("GET /api/missions/{id}", s.missionH.Get)
	mux.HandleFunc("PATCH /api/missions/{id}", s.missionH.Update)
	mux.HandleFunc("DELETE /api/missions/{id}", s.missionH.Delete)
	mux.HandleFunc("POST /api/missions/{id}/roadmap", s.aiLimited(s.missionH.Roadmap))
	mux.HandleFunc("POST /api/missions/{id}/suggest-goals", s.aiLimited(s.missionH.SuggestGoals))
	mux.HandleFunc("GET /api/missions/{id}/goals", s.missionH.ListGoals)
	mux.HandleFunc("POST /api/missions/{id}/goals", s.missionH.CreateGoal)
	mux.HandleFunc("POST /api/missions/{id}/goals/{goalID}/toggle", s.missionH.ToggleGoal)
	mux.HandleFunc("DELETE /api/missions/{id}/goals/{goalID}", s.missionH.DeleteGoal)

	// Timetable
	mux.HandleFunc("GET /api/timetable", s.timetableH.List)
	mux.HandleFunc("DELETE /api/timetable", s.timetableH.Clear)
	mux.HandleFunc("PUT /api/timetable/task-events", s.timetableH.SetTaskEvents)
	mux.HandleFunc("POST /api/timetable/custom", s.timetableH.AddCustom)
	mux.HandleFunc("DELETE /api/timetable/custom/{id}", s.timetableH.DeleteCustom)
	mux.HandleFunc("POST /api/timetable/generate", s.aiLimited(s.timetableH.Generate))

	// Profile
	mux.HandleFunc("GET /api/profile", s.profileH.Get)
	mux.HandleFunc("PATCH /api/profile", s.profileH.Update)

	// Standalone AI actions
	mux.HandleFunc("POST /api/ai/hydration", s.aiLimited(s.aiH.Hydration))
	mux.HandleFunc("POST /api/ai/study-schedule", s.aiLimited(s.aiH.StudySchedule))
	mux.HandleFunc("POST /api/ai/fitness", s.aiLimited(s.aiH.Fitness))
	mux.HandleFunc("POST /api/ai/study-times", s.aiLimited(s.aiH.StudyTimes))

	// Push notification API routes
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscribe", s.pushH.Unsubscribe)

	// Backups
	mux.HandleFunc("POST /api/backups", s.backupH.Create)
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("GET /api/backups/{id}/download", s.backupH.Download)
}
