// Package planner binds the per-user entity collections to the store and
// routes every mutation through the writer. A Workspace aggregates the
// hooks of one signed-in user; the Registry shares workspaces between
// connections.
package planner

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/dukerupert/zenith/internal/live"
	"github.com/dukerupert/zenith/internal/store"
	"github.com/dukerupert/zenith/internal/writer"
)

// ErrNoUser is returned by writes issued while no user is signed in.
var ErrNoUser = errors.New("no signed-in user")

// ErrInvalidScope is returned by ClearEvents for an unknown event scope.
var ErrInvalidScope = errors.New("invalid event scope")

// ErrClosed is returned when waiting on a goal list that was closed.
var ErrClosed = errors.New("goal list closed")

// Deps are the collaborators shared by every hook.
type Deps struct {
	Tasks     *store.TaskStore
	Missions  *store.MissionStore
	Goals     *store.GoalStore
	Timetable *store.TimetableStore
	Profiles  *store.ProfileStore
	Writer    *writer.Writer
	Bus       live.Bus
	Logger    *slog.Logger
}

// scope tracks the user a hook is bound to.
type scope struct {
	mu  sync.RWMutex
	uid string
}

func (s *scope) setUser(uid string) {
	s.mu.Lock()
	s.uid = uid
	s.mu.Unlock()
}

func (s *scope) user() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.uid == "" {
		return "", ErrNoUser
	}
	return s.uid, nil
}
