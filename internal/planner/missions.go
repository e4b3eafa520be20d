package planner

import (
	"context"
	"sync"

	"github.com/dukerupert/zenith/internal/live"
	"github.com/dukerupert/zenith/internal/model"
	"github.com/dukerupert/zenith/internal/store"
	"github.com/dukerupert/zenith/internal/writer"
)

type Missions struct {
	scope
	d   *Deps
	col *live.Collection[model.Mission]
}

func newMissions(d *Deps) *Missions {
	return &Missions{d: d, col: live.NewCollection[model.Mission](d.Bus, d.Logger)}
}

func (m *Missions) bind(uid string) {
	m.setUser(uid)
	if uid == "" {
		m.col.Bind(nil, nil)
		return
	}
	m.col.Bind(&live.Ref{Path: store.MissionsPath(uid)}, func(ctx context.Context) ([]model.Mission, error) {
		return m.d.Missions.ListByUser(ctx, uid)
	})
}

func (m *Missions) List() ([]model.Mission, bool) {
	return m.col.Snapshot()
}

// Get looks id up in the current snapshot. Progress is derived from the
// counters at read time.
func (m *Missions) Get(id string) (model.Mission, bool) {
	missions, _ := m.col.Snapshot()
	for _, mission := range missions {
		if mission.ID == id {
			return mission, true
		}
	}
	return model.Mission{}, false
}

// Add creates a mission with zero goal counters.
func (m *Missions) Add(ctx context.Context, title string) (*model.Mission, error) {
	uid, err := m.user()
	if err != nil {
		return nil, err
	}

	var created *model.Mission
	err = m.d.Writer.Do(ctx, writer.Write{
		UserID: uid,
		Path:   store.MissionsPath(uid),
		Op:     writer.OpCreate,
		Data:   map[string]string{"title": title},
		Topics: []string{store.MissionsPath(uid)},
		Apply: func(ctx context.Context) error {
			mission, err := m.d.Missions.Create(ctx, uid, title)
			created = mission
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (m *Missions) Update(ctx context.Context, id string, u model.MissionUpdate) error {
	uid, err := m.user()
	if err != nil {
		return err
	}
	if u.Title == nil {
		return nil
	}

	m.d.Writer.Go(ctx, writer.Write{
		UserID: uid,
		Path:   store.MissionPath(uid, id),
		Op:     writer.OpUpdate,
		Data:   u,
		Topics: []string{store.MissionsPath(uid)},
		Apply: func(ctx context.Context) error {
			return m.d.Missions.Update(ctx, uid, id, u)
		},
	})
	return nil
}

func (m *Missions) SetRoadmap(ctx context.Context, id string, r *model.Roadmap) error {
	uid, err := m.user()
	if err != nil {
		return err
	}

	return m.d.Writer.Do(ctx, writer.Write{
		UserID: uid,
		Path:   store.MissionPath(uid, id),
		Op:     writer.OpUpdate,
		Data:   r,
		Topics: []string{store.MissionsPath(uid)},
		Apply: func(ctx context.Context) error {
			return m.d.Missions.SetRoadmap(ctx, uid, id, r)
		},
	})
}

// DeleteCascade removes the mission and every goal under it in a single
// transaction. Either everything is deleted or nothing is.
func (m *Missions) DeleteCascade(ctx context.Context, id string) error {
	uid, err := m.user()
	if err != nil {
		return err
	}

	return m.d.Writer.Do(ctx, writer.Write{
		UserID: uid,
		Path:   store.MissionPath(uid, id),
		Op:     writer.OpDelete,
		Topics: []string{store.MissionsPath(uid), store.GoalsPath(uid, id)},
		Apply: func(ctx context.Context) error {
			return m.d.Missions.DeleteCascade(ctx, uid, id)
		},
	})
}

// Goals returns the goals of one mission. The live view is bound on the
// first List or Ready, so a handle used only for mutations never
// subscribes. The caller must Close it.
func (m *Missions) Goals(missionID string) *Goals {
	uid, _ := m.user()
	return &Goals{d: m.d, uid: uid, missionID: missionID}
}

// Goals is the goal list of one mission. Every mutation also adjusts the
// parent mission's counters in the same transaction.
type Goals struct {
	d         *Deps
	uid       string
	missionID string

	mu     sync.Mutex
	col    *live.Collection[model.Goal]
	closed bool
}

// view returns the bound collection, creating it on first use. It returns
// nil once the handle is closed.
func (g *Goals) view() *live.Collection[model.Goal] {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	if g.col == nil {
		g.col = live.NewCollection[model.Goal](g.d.Bus, g.d.Logger)
		if g.uid != "" {
			uid, missionID := g.uid, g.missionID
			g.col.Bind(&live.Ref{Path: store.GoalsPath(uid, missionID)}, func(ctx context.Context) ([]model.Goal, error) {
				return g.d.Goals.ListByMission(ctx, uid, missionID)
			})
		}
	}
	return g.col
}

func (g *Goals) List() ([]model.Goal, bool) {
	col := g.view()
	if col == nil {
		return nil, true
	}
	return col.Snapshot()
}

func (g *Goals) Ready(ctx context.Context) error {
	col := g.view()
	if col == nil {
		return ErrClosed
	}
	return col.Ready(ctx)
}

func (g *Goals) Close() {
	g.mu.Lock()
	col := g.col
	g.col, g.closed = nil, true
	g.mu.Unlock()
	if col != nil {
		col.Close()
	}
}

func (g *Goals) topics() []string {
	return []string{store.GoalsPath(g.uid, g.missionID), store.MissionsPath(g.uid)}
}

func (g *Goals) Add(ctx context.Context, in model.NewGoal) (*model.Goal, error) {
	if g.uid == "" {
		return nil, ErrNoUser
	}

	var created *model.Goal
	err := g.d.Writer.Do(ctx, writer.Write{
		UserID: g.uid,
		Path:   store.GoalsPath(g.uid, g.missionID),
		Op:     writer.OpCreate,
		Data:   in,
		Topics: g.topics(),
		Apply: func(ctx context.Context) error {
			goal, err := g.d.Goals.Create(ctx, g.uid, g.missionID, in)
			created = goal
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Toggle flips the goal and moves the mission's completed counter by one.
func (g *Goals) Toggle(ctx context.Context, id string) (*model.Goal, error) {
	if g.uid == "" {
		return nil, ErrNoUser
	}

	var toggled *model.Goal
	err := g.d.Writer.Do(ctx, writer.Write{
		UserID: g.uid,
		Path:   store.GoalPath(g.uid, g.missionID, id),
		Op:     writer.OpUpdate,
		Topics: g.topics(),
		Apply: func(ctx context.Context) error {
			goal, err := g.d.Goals.Toggle(ctx, g.uid, g.missionID, id)
			toggled = goal
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return toggled, nil
}

func (g *Goals) Delete(ctx context.Context, id string) error {
	if g.uid == "" {
		return ErrNoUser
	}

	return g.d.Writer.Do(ctx, writer.Write{
		UserID: g.uid,
		Path:   store.GoalPath(g.uid, g.missionID, id),
		Op:     writer.OpDelete,
		Topics: g.topics(),
		Apply: func(ctx context.Context) error {
			return g.d.Goals.Delete(ctx, g.uid, g.missionID, id)
		},
	})
}
