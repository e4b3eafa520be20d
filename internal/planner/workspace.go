package planner

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/zenith/internal/model"
)

// Snapshot is the combined view of one user's data.
type Snapshot struct {
	Loading   bool                   `json:"loading"`
	UserID    string                 `json:"user_id"`
	Tasks     []model.Task           `json:"tasks"`
	Missions  []model.Mission        `json:"missions"`
	Timetable []model.TimetableEvent `json:"timetable"`
	Profile   *model.Profile         `json:"profile"`
}

// Workspace aggregates the hooks of one user. It starts out resolving
// auth: loading until the first SetUser call.
type Workspace struct {
	Tasks     *Tasks
	Missions  *Missions
	Timetable *Timetable
	Profile   *Profile

	mu            sync.RWMutex
	uid           string
	authResolving bool

	watchMu  sync.Mutex
	watchers map[uint64]func()
	nextID   uint64
	unwatch  []func()
}

func NewWorkspace(d *Deps) *Workspace {
	ws := &Workspace{
		Tasks:         newTasks(d),
		Missions:      newMissions(d),
		Timetable:     newTimetable(d),
		Profile:       newProfile(d),
		authResolving: true,
		watchers:      make(map[uint64]func()),
	}
	ws.unwatch = []func(){
		ws.Tasks.col.OnChange(ws.notify),
		ws.Missions.col.OnChange(ws.notify),
		ws.Timetable.col.OnChange(ws.notify),
		ws.Profile.doc.OnChange(ws.notify),
	}
	return ws
}

// SetUser binds every hook to uid. An empty uid means signed out.
func (ws *Workspace) SetUser(uid string) {
	ws.mu.Lock()
	ws.uid = uid
	ws.authResolving = false
	ws.mu.Unlock()

	ws.Tasks.bind(uid)
	ws.Missions.bind(uid)
	ws.Timetable.bind(uid)
	ws.Profile.bind(uid)
	ws.notify()
}

func (ws *Workspace) UserID() string {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.uid
}

// IsLoading reports whether auth is still resolving or, for a signed-in
// user, any of tasks, missions or timetable has no snapshot yet. The
// profile does not gate loading.
func (ws *Workspace) IsLoading() bool {
	ws.mu.RLock()
	uid, resolving := ws.uid, ws.authResolving
	ws.mu.RUnlock()

	if resolving {
		return true
	}
	if uid == "" {
		return false
	}
	return ws.Tasks.col.Loading() || ws.Missions.col.Loading() || ws.Timetable.col.Loading()
}

// WaitReady blocks until every hook has its first snapshot.
func (ws *Workspace) WaitReady(ctx context.Context) error {
	if ws.UserID() == "" {
		return ErrNoUser
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ws.Tasks.col.Ready(ctx) })
	g.Go(func() error { return ws.Missions.col.Ready(ctx) })
	g.Go(func() error { return ws.Timetable.col.Ready(ctx) })
	g.Go(func() error { return ws.Profile.doc.Ready(ctx) })
	return g.Wait()
}

func (ws *Workspace) Snapshot() Snapshot {
	tasks, _ := ws.Tasks.List()
	missions, _ := ws.Missions.List()
	events, _ := ws.Timetable.List()
	profile, _ := ws.Profile.Get()

	if tasks == nil {
		tasks = []model.Task{}
	}
	if missions == nil {
		missions = []model.Mission{}
	}
	if events == nil {
		events = []model.TimetableEvent{}
	}

	return Snapshot{
		Loading:   ws.IsLoading(),
		UserID:    ws.UserID(),
		Tasks:     tasks,
		Missions:  missions,
		Timetable: events,
		Profile:   profile,
	}
}

// Watch registers fn to run after any hook changes. fn must not block.
func (ws *Workspace) Watch(fn func()) (cancel func()) {
	ws.watchMu.Lock()
	ws.nextID++
	id := ws.nextID
	ws.watchers[id] = fn
	ws.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ws.watchMu.Lock()
			delete(ws.watchers, id)
			ws.watchMu.Unlock()
		})
	}
}

func (ws *Workspace) notify() {
	ws.watchMu.Lock()
	fns := make([]func(), 0, len(ws.watchers))
	for _, fn := range ws.watchers {
		fns = append(fns, fn)
	}
	ws.watchMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Close tears down every subscription.
func (ws *Workspace) Close() {
	for _, cancel := range ws.unwatch {
		cancel()
	}
	ws.Tasks.col.Close()
	ws.Missions.col.Close()
	ws.Timetable.col.Close()
	ws.Profile.doc.Close()
}
