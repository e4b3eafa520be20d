package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/zenith/internal/ai"
	"github.com/dukerupert/zenith/internal/auth"
	"github.com/dukerupert/zenith/internal/database"
	"github.com/dukerupert/zenith/internal/live"
	"github.com/dukerupert/zenith/internal/model"
	"github.com/dukerupert/zenith/internal/planner"
	"github.com/dukerupert/zenith/internal/store"
	"github.com/dukerupert/zenith/internal/writer"
)

type testEnv struct {
	mux  *http.ServeMux
	deps *planner.Deps
}

func setupEnv(t *testing.T, m ai.Model) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	logger := slog.Default()
	bus := live.NewLocalBus()
	d := &planner.Deps{
		Tasks:     store.NewTaskStore(db),
		Missions:  store.NewMissionStore(db),
		Goals:     store.NewGoalStore(db),
		Timetable: store.NewTimetableStore(db),
		Profiles:  store.NewProfileStore(db),
		Writer:    writer.New(bus, func(context.Context, *writer.Error) {}, logger),
		Bus:       bus,
		Logger:    logger,
	}
	reg := planner.NewRegistry(d, time.Minute)
	t.Cleanup(func() {
		d.Writer.Wait()
		reg.Close()
		db.Close()
	})

	actions := ai.NewActions(m, logger)
	tasks := NewTaskHandler(reg, actions, logger)
	missions := NewMissionHandler(reg, actions, logger)
	timetable := NewTimetableHandler(reg, actions, logger)
	aiH := NewAIHandler(reg, actions, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/workspace", NewWorkspaceHandler(reg, logger).Get)
	mux.HandleFunc("GET /api/tasks", tasks.List)
	mux.HandleFunc("POST /api/tasks", tasks.Create)
	mux.HandleFunc("GET /api/tasks/{id}", tasks.Get)
	mux.HandleFunc("PATCH /api/tasks/{id}", tasks.Update)
	mux.HandleFunc("POST /api/tasks/{id}/toggle", tasks.Toggle)
	mux.HandleFunc("POST /api/tasks/{id}/breakdown", tasks.BreakDown)
	mux.HandleFunc("POST /api/missions", missions.Create)
	mux.HandleFunc("GET /api/missions/{id}", missions.Get)
	mux.HandleFunc("DELETE /api/missions/{id}", missions.Delete)
	mux.HandleFunc("POST /api/missions/{id}/goals", missions.CreateGoal)
	mux.HandleFunc("GET /api/missions/{id}/goals", missions.ListGoals)
	mux.HandleFunc("POST /api/missions/{id}/goals/{goalID}/toggle", missions.ToggleGoal)
	mux.HandleFunc("GET /api/timetable", timetable.List)
	mux.HandleFunc("PUT /api/timetable/task-events", timetable.SetTaskEvents)
	mux.HandleFunc("POST /api/timetable/custom", timetable.AddCustom)
	mux.HandleFunc("DELETE /api/timetable", timetable.Clear)
	mux.HandleFunc("POST /api/timetable/generate", timetable.Generate)
	mux.HandleFunc("POST /api/ai/hydration", aiH.Hydration)
	mux.HandleFunc("POST /api/ai/study-times", aiH.StudyTimes)

	return &testEnv{mux: mux, deps: d}
}

func (e *testEnv) do(t *testing.T, uid, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if uid != "" {
		req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: uid}))
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestUnauthorized(t *testing.T) {
	env := setupEnv(t, nil)
	rec := env.do(t, "", "GET", "/api/tasks", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestTaskLifecycle(t *testing.T) {
	env := setupEnv(t, nil)

	rec := env.do(t, "u1", "POST", "/api/tasks", `{"title":"Finish Math Homework","deadline":"2025-01-10"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	task := decodeBody[model.Task](t, rec)
	want := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	if !task.Deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", task.Deadline, want)
	}

	eventually(t, "task listed", func() bool {
		rec := env.do(t, "u1", "GET", "/api/tasks", "")
		return len(decodeBody[[]model.Task](t, rec)) == 1
	})

	rec = env.do(t, "u1", "POST", "/api/tasks/"+task.ID+"/toggle", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("toggle status = %d: %s", rec.Code, rec.Body)
	}
	env.deps.Writer.Wait()
	got, err := env.deps.Tasks.GetByID(context.Background(), "u1", task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Completed {
		t.Error("expected task completed after toggle")
	}

	rec = env.do(t, "u1", "PATCH", "/api/tasks/"+task.ID, `{"title":"Finish Physics Homework"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body)
	}
	env.deps.Writer.Wait()
	got, _ = env.deps.Tasks.GetByID(context.Background(), "u1", task.ID)
	if got.Title != "Finish Physics Homework" {
		t.Errorf("title = %q", got.Title)
	}

	// Other users cannot see it.
	rec = env.do(t, "u2", "GET", "/api/tasks/"+task.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("other user get status = %d, want 404", rec.Code)
	}
}

func TestTaskValidation(t *testing.T) {
	env := setupEnv(t, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{`, "invalid JSON"},
		{"missing title", `{"deadline":"2025-01-10"}`, "title"},
		{"bad deadline", `{"title":"x","deadline":"next week"}`, "deadline"},
		{"blank title", `{"title":"   ","deadline":"2025-01-10"}`, "title must not be blank"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "u1", "POST", "/api/tasks", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body %q does not mention %q", rec.Body, tt.want)
			}
		})
	}
}

func TestBlankTitlesRejected(t *testing.T) {
	env := setupEnv(t, nil)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{"PATCH", "/api/tasks/t1", `{"title":" \t "}`},
		{"POST", "/api/missions", `{"title":"  "}`},
		{"PATCH", "/api/missions/m1", `{"title":""}`},
		{"POST", "/api/missions/m1/goals", `{"title":"   "}`},
	}
	for _, tt := range tests {
		rec := env.do(t, "u1", tt.method, tt.path, tt.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s: status = %d, want 400", tt.method, tt.path, rec.Code)
		}
	}

	tasks := env.do(t, "u1", "GET", "/api/tasks", "")
	if got := decodeBody[[]model.Task](t, tasks); len(got) != 0 {
		t.Errorf("tasks = %+v, want none", got)
	}
}

func TestToggleUnknownTask(t *testing.T) {
	env := setupEnv(t, nil)
	rec := env.do(t, "u1", "POST", "/api/tasks/missing/toggle", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMissionGoals(t *testing.T) {
	env := setupEnv(t, nil)

	rec := env.do(t, "u1", "POST", "/api/missions", `{"title":"Learn Guitar"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create mission status = %d: %s", rec.Code, rec.Body)
	}
	mission := decodeBody[model.Mission](t, rec)

	// Wait for the mission to reach the live snapshot.
	eventually(t, "mission visible", func() bool {
		return env.do(t, "u1", "GET", "/api/missions/"+mission.ID, "").Code == http.StatusOK
	})

	rec = env.do(t, "u1", "POST", "/api/missions/"+mission.ID+"/goals", `{"title":"Learn 3 chords"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create goal status = %d: %s", rec.Code, rec.Body)
	}
	goal := decodeBody[model.Goal](t, rec)

	rec = env.do(t, "u1", "POST", "/api/missions/"+mission.ID+"/goals/"+goal.ID+"/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle goal status = %d: %s", rec.Code, rec.Body)
	}
	if !decodeBody[model.Goal](t, rec).Completed {
		t.Error("expected goal completed")
	}

	eventually(t, "progress 100", func() bool {
		rec := env.do(t, "u1", "GET", "/api/missions/"+mission.ID, "")
		m := decodeBody[model.Mission](t, rec)
		return m.TotalGoals == 1 && m.CompletedGoals == 1 && m.Progress == 100
	})

	rec = env.do(t, "u1", "GET", "/api/missions/"+mission.ID+"/goals", "")
	if goals := decodeBody[[]model.Goal](t, rec); len(goals) != 1 {
		t.Errorf("goals = %+v", goals)
	}

	rec = env.do(t, "u1", "DELETE", "/api/missions/"+mission.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body)
	}
	left, err := env.deps.Goals.ListByMission(context.Background(), "u1", mission.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("expected goals removed with mission, got %d", len(left))
	}

	rec = env.do(t, "u1", "POST", "/api/missions/nope/goals", `{"title":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("goal on unknown mission status = %d, want 404", rec.Code)
	}
}

func TestTimetableEndpoints(t *testing.T) {
	env := setupEnv(t, nil)

	rec := env.do(t, "u1", "PUT", "/api/timetable/task-events",
		`{"events":[{"title":"Study","day":"Monday","start_time":"10:00 AM","end_time":"9:00 AM"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("reversed slots status = %d, want 400", rec.Code)
	}

	rec = env.do(t, "u1", "PUT", "/api/timetable/task-events",
		`{"events":[{"title":"Study","day":"Funday","start_time":"9:00 AM","end_time":"10:00 AM"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad day status = %d, want 400", rec.Code)
	}

	rec = env.do(t, "u1", "POST", "/api/timetable/custom",
		`{"events":[{"title":"Gym","day":"Monday","start_time":"8:00 AM","end_time":"9:00 AM"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add custom status = %d: %s", rec.Code, rec.Body)
	}

	rec = env.do(t, "u1", "PUT", "/api/timetable/task-events",
		`{"events":[{"title":"Study","day":"Monday","start_time":"9:00 AM","end_time":"10:00 AM"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set events status = %d: %s", rec.Code, rec.Body)
	}

	events, err := env.deps.Timetable.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected custom and task event, got %+v", events)
	}

	rec = env.do(t, "u1", "DELETE", "/api/timetable?type=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad scope status = %d, want 400", rec.Code)
	}

	rec = env.do(t, "u1", "DELETE", "/api/timetable?type=task", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d: %s", rec.Code, rec.Body)
	}
	events, _ = env.deps.Timetable.ListByUser(context.Background(), "u1")
	if len(events) != 1 || events[0].Type != model.EventTypeCustom {
		t.Errorf("after clearing task events: %+v", events)
	}
}

func TestBreakDownEndpoint(t *testing.T) {
	env := setupEnv(t, ai.ModelFunc(func(ctx context.Context, req ai.Request) ([]byte, error) {
		return []byte(`{"steps":["Outline","Draft","Revise"]}`), nil
	}))

	rec := env.do(t, "u1", "POST", "/api/tasks", `{"title":"Write thesis","deadline":"2025-03-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	task := decodeBody[model.Task](t, rec)

	eventually(t, "task visible", func() bool {
		return env.do(t, "u1", "GET", "/api/tasks/"+task.ID, "").Code == http.StatusOK
	})

	rec = env.do(t, "u1", "POST", "/api/tasks/"+task.ID+"/breakdown", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"success":true,"data":{"steps":["Outline","Draft","Revise"]}}` {
		t.Errorf("body = %s", got)
	}
}

func TestGenerateTimetableEndpoint(t *testing.T) {
	var prompt string
	env := setupEnv(t, ai.ModelFunc(func(ctx context.Context, req ai.Request) ([]byte, error) {
		prompt = req.Prompt
		return []byte(`{"timetable":[{"title":"Finish Math Homework","day":"Tuesday","startTime":"9:00 AM","endTime":"10:00 AM"}]}`), nil
	}))

	if rec := env.do(t, "u1", "POST", "/api/tasks", `{"title":"Finish Math Homework","deadline":"2025-01-10"}`); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	eventually(t, "task listed", func() bool {
		return len(decodeBody[[]model.Task](t, env.do(t, "u1", "GET", "/api/tasks", ""))) == 1
	})

	rec := env.do(t, "u1", "POST", "/api/timetable/generate", `{"preferences":{"studyTime":"morning","energyLevel":"high","sessionLength":"1 hour"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(prompt, "Finish Math Homework") || !strings.Contains(prompt, "morning") {
		t.Errorf("prompt missing tasks or preferences: %s", prompt)
	}

	events, err := env.deps.Timetable.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != model.EventTypeTask || events[0].Day != "Tuesday" {
		t.Errorf("events = %+v", events)
	}
}

func TestAIEndpointsNotConfigured(t *testing.T) {
	env := setupEnv(t, nil)

	rec := env.do(t, "u1", "POST", "/api/ai/hydration", `{"glassCount":4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	res := decodeBody[ai.Result[ai.HydrationOutput]](t, rec)
	if res.Success || res.Error != "AI system not configured" {
		t.Errorf("result = %+v", res)
	}
}

func TestAIEndpointInvalidInput(t *testing.T) {
	env := setupEnv(t, ai.ModelFunc(func(ctx context.Context, req ai.Request) ([]byte, error) {
		t.Error("model should not be called")
		return nil, nil
	}))

	rec := env.do(t, "u1", "POST", "/api/ai/study-times", `{"studyLoad":"heavy"}`)
	res := decodeBody[ai.Result[ai.StudyTimesOutput]](t, rec)
	if res.Success || !strings.HasPrefix(res.Error, "Invalid input: ") {
		t.Errorf("result = %+v", res)
	}
}

func TestWorkspaceSnapshot(t *testing.T) {
	env := setupEnv(t, nil)
	rec := env.do(t, "u1", "GET", "/api/workspace", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	snap := decodeBody[planner.Snapshot](t, rec)
	if snap.Loading || snap.UserID != "u1" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Tasks == nil || snap.Missions == nil || snap.Timetable == nil {
		t.Error("expected empty lists, not null")
	}
}
