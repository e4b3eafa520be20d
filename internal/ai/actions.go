package ai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/zenith/internal/validate"
)

const notConfiguredMessage = "AI system not configured"

// Result is the outcome of an action. Actions never return errors; a
// failure is reported through Success and Error.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Actions runs flows against the configured model and converts failures
// to user-facing messages.
type Actions struct {
	model  Model
	logger *slog.Logger
}

// NewActions returns Actions backed by m. A nil m leaves AI unconfigured.
func NewActions(m Model, logger *slog.Logger) *Actions {
	return &Actions{model: m, logger: logger.With("component", "ai")}
}

func (a *Actions) Configured() bool {
	return a.model != nil
}

func run[In, Out any](ctx context.Context, a *Actions, f *Flow[In, Out], action string, in In) Result[Out] {
	if !a.Configured() {
		return Result[Out]{Error: notConfiguredMessage}
	}

	out, err := f.Run(ctx, a.model, in)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) && verr.Stage == "input" {
			return Result[Out]{Error: "Invalid input: " + validate.Message(verr.Err)}
		}
		a.logger.ErrorContext(ctx, "ai flow failed", "flow", f.Name, "error", err)
		return Result[Out]{Error: "Failed to " + action + ". The AI system may be offline."}
	}
	return Result[Out]{Success: true, Data: out}
}

func (a *Actions) AnalyzeHydration(ctx context.Context, glassCount int) Result[HydrationOutput] {
	return run(ctx, a, AnalyzeHydration, "analyze hydration", HydrationInput{GlassCount: glassCount})
}

func (a *Actions) BreakDownTask(ctx context.Context, task string) Result[BreakDownOutput] {
	return run(ctx, a, BreakDownTask, "break down task", BreakDownInput{Task: task})
}

func (a *Actions) ContinueConversation(ctx context.Context, in ConversationInput) Result[ConversationOutput] {
	return run(ctx, a, ContinueConversation, "continue conversation", in)
}

func (a *Actions) GenerateStudySchedule(ctx context.Context, tasks string) Result[StudyScheduleOutput] {
	return run(ctx, a, GenerateStudySchedule, "generate schedule", StudyScheduleInput{Tasks: tasks})
}

func (a *Actions) GenerateTaskRoadmap(ctx context.Context, taskTitle string) Result[RoadmapOutput] {
	return run(ctx, a, GenerateTaskRoadmap, "generate roadmap", RoadmapInput{TaskTitle: taskTitle})
}

func (a *Actions) GenerateTimetable(ctx context.Context, in TimetableInput) Result[TimetableOutput] {
	return run(ctx, a, GenerateTimetable, "generate timetable", in)
}

func (a *Actions) GetFitnessAdvice(ctx context.Context, in FitnessInput) Result[FitnessOutput] {
	return run(ctx, a, GetFitnessAdvice, "get fitness advice", in)
}

func (a *Actions) SuggestGoalsForMission(ctx context.Context, missionTitle string) Result[SuggestGoalsOutput] {
	return run(ctx, a, SuggestGoalsForMission, "suggest goals", SuggestGoalsInput{MissionTitle: missionTitle})
}

func (a *Actions) SuggestOptimalStudyTimes(ctx context.Context, in StudyTimesInput) Result[StudyTimesOutput] {
	return run(ctx, a, SuggestOptimalStudyTimes, "suggest times", in)
}
