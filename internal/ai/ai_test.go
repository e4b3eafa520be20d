package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fixed returns a model that always answers with body and records the
// last request.
func fixed(body string, last *Request) Model {
	return ModelFunc(func(ctx context.Context, req Request) ([]byte, error) {
		if last != nil {
			*last = req
		}
		return []byte(body), nil
	})
}

func TestBreakDownTask(t *testing.T) {
	var req Request
	a := NewActions(fixed(`{"steps":["Outline","Draft","Revise"]}`, &req), slog.Default())

	res := a.BreakDownTask(context.Background(), "Write thesis")
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if got := strings.Join(res.Data.Steps, ","); got != "Outline,Draft,Revise" {
		t.Errorf("steps = %q", got)
	}
	if !strings.Contains(req.Prompt, "Write thesis") {
		t.Errorf("prompt missing task: %q", req.Prompt)
	}
	if req.Schema == nil || req.Flow != "breakDownTask" {
		t.Errorf("request = %+v", req)
	}

	b, _ := json.Marshal(res)
	if string(b) != `{"success":true,"data":{"steps":["Outline","Draft","Revise"]}}` {
		t.Errorf("json = %s", b)
	}
}

func TestActionsNotConfigured(t *testing.T) {
	a := NewActions(nil, slog.Default())

	res := a.AnalyzeHydration(context.Background(), 3)
	if res.Success || res.Error != "AI system not configured" {
		t.Errorf("result = %+v", res)
	}
}

func TestActionsModelFailure(t *testing.T) {
	a := NewActions(ModelFunc(func(ctx context.Context, req Request) ([]byte, error) {
		return nil, errors.New("connection refused")
	}), slog.Default())

	res := a.GenerateStudySchedule(context.Background(), "Math, Friday")
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "Failed to generate schedule. The AI system may be offline." {
		t.Errorf("error = %q", res.Error)
	}
}

func TestActionsInvalidInput(t *testing.T) {
	called := false
	a := NewActions(ModelFunc(func(ctx context.Context, req Request) ([]byte, error) {
		called = true
		return nil, nil
	}), slog.Default())

	res := a.SuggestOptimalStudyTimes(context.Background(), StudyTimesInput{
		StudyLoad:           "heavy",
		TimeOfDayPreference: "morning",
		FocusLevel:          "high",
		AvailableHours:      0,
	})
	if res.Success || !strings.HasPrefix(res.Error, "Invalid input") {
		t.Errorf("result = %+v", res)
	}
	if called {
		t.Error("model called with invalid input")
	}
}

func TestTimetableOutputValidation(t *testing.T) {
	in := TimetableInput{
		Tasks: []TimetableTask{
			{ID: "1", Title: "Essay", Deadline: "2025-01-10", Completed: false},
			{ID: "2", Title: "Done already", Deadline: "2025-01-09", Completed: true},
		},
		CustomEvents: []TimeBlock{{Title: "Class", Day: "Monday", StartTime: "9:00 AM", EndTime: "10:00 AM"}},
		Preferences:  StudyPreferences{StudyTime: "morning"},
	}

	var req Request
	out, err := GenerateTimetable.Run(context.Background(),
		fixed(`{"timetable":[{"title":"Essay","day":"Monday","startTime":"10:00 AM","endTime":"11:00 AM"}]}`, &req), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	events := out.Events()
	if len(events) != 1 || events[0].StartTime != "10:00 AM" || events[0].Day != "Monday" {
		t.Errorf("events = %+v", events)
	}
	if strings.Contains(req.Prompt, "Done already") {
		t.Error("completed tasks must not be sent to the model")
	}

	bad := []string{
		`{"timetable":[{"title":"Essay","day":"Someday","startTime":"10:00 AM","endTime":"11:00 AM"}]}`,
		`{"timetable":[{"title":"Essay","day":"Monday","startTime":"10:30 AM","endTime":"11:00 AM"}]}`,
		`{"timetable":[{"title":"Essay","day":"Monday","startTime":"11:00 AM","endTime":"10:00 AM"}]}`,
	}
	for _, body := range bad {
		_, err := GenerateTimetable.Run(context.Background(), fixed(body, nil), in)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Stage != "output" {
			t.Errorf("body %s: err = %v, want output validation error", body, err)
		}
	}
}

func TestRoadmapOutput(t *testing.T) {
	body := `{
		"introduction": "Let's go.",
		"milestones": [
			{"title": "Plan", "emoji": "🗺️", "steps": ["a", "b", "c"]},
			{"title": "Build", "emoji": "🔨", "steps": ["a", "b", "c"]},
			{"title": "Ship", "emoji": "🚀", "steps": ["a", "b", "c", "d"]}
		],
		"conclusion": "You got this."
	}`
	out, err := GenerateTaskRoadmap.Run(context.Background(), fixed(body, nil), RoadmapInput{TaskTitle: "Launch app"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	r := out.Roadmap()
	if len(r.Milestones) != 3 || r.Milestones[2].Emoji != "🚀" || len(r.Milestones[2].Steps) != 4 {
		t.Errorf("roadmap = %+v", r)
	}

	_, err = GenerateTaskRoadmap.Run(context.Background(),
		fixed(`{"introduction":"x","milestones":[],"conclusion":"y"}`, nil), RoadmapInput{TaskTitle: "Launch app"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("err = %v, want ValidationError for too few milestones", err)
	}
}

func TestConversationPrompt(t *testing.T) {
	var req Request
	in := ConversationInput{
		TaskTitle: "Write thesis",
		History: []ChatTurn{
			{User: "Where do I start?", Model: "With an outline."},
			{User: "How long should it be?"},
		},
	}
	if _, err := ContinueConversation.Run(context.Background(), fixed(`{"response":"About 40 pages."}`, &req), in); err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, want := range []string{"Write thesis", "User: Where do I start?", "You: With an outline.", "User: How long should it be?\nYou:"} {
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, req.Prompt)
		}
	}
}

func TestFitnessPromptIncludesBMI(t *testing.T) {
	var req Request
	bmi := 27.5
	in := FitnessInput{Prompt: "How do I start running?", BMI: &bmi}
	if _, err := GetFitnessAdvice.Run(context.Background(), fixed(`{"advice":"Walk first."}`, &req), in); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(req.Prompt, "The user's BMI is 27.5") {
		t.Errorf("prompt missing BMI:\n%s", req.Prompt)
	}

	if _, err := GetFitnessAdvice.Run(context.Background(), fixed(`{"advice":"Walk first."}`, &req), FitnessInput{Prompt: "Tips?"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(req.Prompt, "BMI is") {
		t.Errorf("prompt mentions BMI without one:\n%s", req.Prompt)
	}
}

func TestOpenAICompatModel(t *testing.T) {
	var got oaiChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"goals\":[\"a\",\"b\",\"c\"]}"}}]}`))
	}))
	defer srv.Close()

	m := NewOpenAICompatModel(srv.URL+"/v1/", "sk-test", "local-model")
	a := NewActions(m, slog.Default())

	res := a.SuggestGoalsForMission(context.Background(), "Learn Guitar")
	if !res.Success || len(res.Data.Goals) != 3 {
		t.Fatalf("result = %+v", res)
	}
	if got.Model != "local-model" || got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 2 || !strings.Contains(got.Messages[0].Content, `"goals"`) {
		t.Errorf("system message missing schema: %+v", got.Messages)
	}
}

func TestOpenAICompatModelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer srv.Close()

	m := NewOpenAICompatModel(srv.URL, "", "m")
	_, err := m.GenerateJSON(context.Background(), Request{Prompt: "hi"})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("err = %v", err)
	}
}

func TestStripFence(t *testing.T) {
	if got := stripFence("```json\n{\"a\":1}\n```"); got != `{"a":1}` {
		t.Errorf("stripFence = %q", got)
	}
	if got := stripFence(`{"a":1}`); got != `{"a":1}` {
		t.Errorf("stripFence = %q", got)
	}
}
