package ai

import (
	"github.com/google/generative-ai-go/genai"

	"github.com/dukerupert/zenith/internal/model"
)

const tone = "Speak in short, clear sentences. Be helpful but not too chatty. Use a friendly, digital, calm tone like a quiet cyberpunk AI. " +
	"Do NOT talk about games, levels, experience points, or fantasy. Keep everything about real life and real progress."

func str(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc}
}

func strList(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Description: desc, Items: &genai.Schema{Type: genai.TypeString}}
}

func object(props map[string]*genai.Schema, required ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

// Hydration

type HydrationInput struct {
	GlassCount int `json:"glassCount" validate:"gte=0"`
}

type HydrationOutput struct {
	Analysis string `json:"analysis" validate:"required"`
}

var AnalyzeHydration = &Flow[HydrationInput, HydrationOutput]{
	Name:   "analyzeHydration",
	System: "You are a health assistant. Analyze the user's water intake and provide a short, friendly recommendation. General advice is 8 glasses a day.",
	Prompt: prompt("analyzeHydration", `Water glasses consumed: {{.GlassCount}}

Provide a very brief (1-2 sentences) analysis. For example: "That's a great start! Aim for a few more glasses to stay fully hydrated." or "Excellent job staying hydrated today!". Be encouraging.`),
	Schema: object(map[string]*genai.Schema{
		"analysis": str("A short, friendly analysis of the water intake and a recommendation."),
	}, "analysis"),
}

// Task breakdown

type BreakDownInput struct {
	Task string `json:"task" validate:"required"`
}

type BreakDownOutput struct {
	Steps []string `json:"steps" validate:"required,min=1,dive,required"`
}

var BreakDownTask = &Flow[BreakDownInput, BreakDownOutput]{
	Name:   "breakDownTask",
	System: "You are a task management assistant. Your role is to break down large tasks into smaller, more manageable steps.",
	Prompt: prompt("breakDownTask", `Here is the task to break down:
{{.Task}}

Provide the steps in order, one short actionable step per entry.`),
	Schema: object(map[string]*genai.Schema{
		"steps": strList("The smaller steps to complete the task."),
	}, "steps"),
}

// Conversation

type ChatTurn struct {
	User  string `json:"user" validate:"required"`
	Model string `json:"model"`
}

type ConversationInput struct {
	TaskTitle string     `json:"taskTitle" validate:"required"`
	History   []ChatTurn `json:"history" validate:"required,min=1,dive"`
}

// Earlier returns every turn before the one being answered.
func (in ConversationInput) Earlier() []ChatTurn {
	return in.History[:len(in.History)-1]
}

// Question is the user's latest message.
func (in ConversationInput) Question() string {
	return in.History[len(in.History)-1].User
}

type ConversationOutput struct {
	Response string `json:"response" validate:"required"`
}

var ContinueConversation = &Flow[ConversationInput, ConversationOutput]{
	Name: "continueConversation",
	System: "You are an expert project manager and motivational coach AI. The user has questions or wants clarification about the roadmap for their task. " +
		"Be helpful and encouraging, and give clear answers based on the conversation history. Keep your answers concise and focused on the user's question.",
	Prompt: prompt("continueConversation", `Task: "{{.TaskTitle}}"
{{range .Earlier}}
User: {{.User}}
You: {{.Model}}
{{end}}
User: {{.Question}}
You:`),
	Schema: object(map[string]*genai.Schema{
		"response": str("The reply to the user's last message."),
	}, "response"),
}

// Study schedule

type StudyScheduleInput struct {
	Tasks string `json:"tasks" validate:"required"`
}

type StudyScheduleOutput struct {
	Schedule string `json:"schedule" validate:"required"`
}

var GenerateStudySchedule = &Flow[StudyScheduleInput, StudyScheduleOutput]{
	Name:   "generateStudySchedule",
	System: "You are a study schedule generator AI, tasked with generating a study schedule based on the user's tasks and deadlines. " + tone,
	Prompt: prompt("generateStudySchedule", `Tasks and Deadlines: {{.Tasks}}

Generate a clear and practical study schedule. Use relevant emojis (e.g., 📚, 🎯, ✨) to make the schedule more engaging.`),
	Schema: object(map[string]*genai.Schema{
		"schedule": str("The generated study schedule."),
	}, "schedule"),
}

// Roadmap

type RoadmapInput struct {
	TaskTitle string `json:"taskTitle" validate:"required"`
}

type MilestoneOutput struct {
	Title string   `json:"title" validate:"required"`
	Emoji string   `json:"emoji" validate:"required"`
	Steps []string `json:"steps" validate:"min=3,max=5,dive,required"`
}

type RoadmapOutput struct {
	Introduction string            `json:"introduction" validate:"required"`
	Milestones   []MilestoneOutput `json:"milestones" validate:"min=3,max=5,dive"`
	Conclusion   string            `json:"conclusion" validate:"required"`
}

// Roadmap converts the flow output to the stored form.
func (r RoadmapOutput) Roadmap() *model.Roadmap {
	out := &model.Roadmap{
		Introduction: r.Introduction,
		Milestones:   make([]model.Milestone, len(r.Milestones)),
		Conclusion:   r.Conclusion,
	}
	for i, m := range r.Milestones {
		out.Milestones[i] = model.Milestone{Title: m.Title, Emoji: m.Emoji, Steps: m.Steps}
	}
	return out
}

var GenerateTaskRoadmap = &Flow[RoadmapInput, RoadmapOutput]{
	Name:   "generateTaskRoadmap",
	System: "You are an expert project manager and motivational coach AI. Your goal is to create a clear, inspiring, and actionable roadmap for the user's task.",
	Prompt: prompt("generateTaskRoadmap", `Task: {{.TaskTitle}}

Generate a roadmap with the following structure:
1. Introduction: a short, encouraging sentence to get the user started.
2. Milestones: break the task into 3-5 logical milestones. Each milestone has a clear title, a single relevant emoji, and a list of 3-5 concrete steps.
3. Conclusion: a final motivational sentence to inspire the user to begin.

Make the language positive and action-oriented.`),
	Schema: object(map[string]*genai.Schema{
		"introduction": str("A brief, encouraging introduction to the roadmap."),
		"milestones": {
			Type:        genai.TypeArray,
			Description: "3-5 milestones to complete the task.",
			Items: object(map[string]*genai.Schema{
				"title": str("The title of the milestone."),
				"emoji": str("A single emoji that represents the milestone."),
				"steps": strList("3-5 actionable steps to complete the milestone."),
			}, "title", "emoji", "steps"),
		},
		"conclusion": str("A final motivating sentence to encourage the user."),
	}, "introduction", "milestones", "conclusion"),
}

// Timetable

type TimetableTask struct {
	ID          string `json:"id"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	Deadline    string `json:"deadline"`
	Completed   bool   `json:"completed"`
}

// TimeBlock is one scheduled hour range on a weekday.
type TimeBlock struct {
	Title     string `json:"title" validate:"required"`
	Day       string `json:"day" validate:"required,weekday"`
	StartTime string `json:"startTime" validate:"required,timeslot"`
	EndTime   string `json:"endTime" validate:"required,timeslot"`
}

func (b TimeBlock) SlotRange() (string, string) { return b.StartTime, b.EndTime }

type StudyPreferences struct {
	StudyTime     string `json:"studyTime"`
	EnergyLevel   string `json:"energyLevel"`
	SessionLength string `json:"sessionLength"`
}

type TimetableInput struct {
	Tasks        []TimetableTask  `json:"tasks" validate:"dive"`
	CustomEvents []TimeBlock      `json:"customEvents" validate:"dive"`
	Preferences  StudyPreferences `json:"preferences"`
}

// ActiveTasks returns the tasks that are not completed yet.
func (in TimetableInput) ActiveTasks() []TimetableTask {
	active := make([]TimetableTask, 0, len(in.Tasks))
	for _, t := range in.Tasks {
		if !t.Completed {
			active = append(active, t)
		}
	}
	return active
}

type TimetableOutput struct {
	Timetable []TimeBlock `json:"timetable" validate:"dive"`
}

// Events converts the generated blocks to timetable event inputs.
func (o TimetableOutput) Events() []model.EventInput {
	events := make([]model.EventInput, len(o.Timetable))
	for i, b := range o.Timetable {
		events[i] = model.EventInput{Title: b.Title, Day: b.Day, StartTime: b.StartTime, EndTime: b.EndTime}
	}
	return events
}

var GenerateTimetable = &Flow[TimetableInput, TimetableOutput]{
	Name: "generateTimetable",
	System: "You are an expert scheduler AI. Your goal is to create an optimal study timetable personalized to the user's preferences. " +
		"Schedule the active tasks into the available time slots, avoiding the times already taken by custom events.",
	Prompt: prompt("generateTimetable", `The available days are: Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday.
The available time slots are in 1-hour increments from 8:00 AM to 8:00 PM.
Only schedule tasks. Do not include the custom events in the output.

- Tasks: {{json .ActiveTasks}}
- Custom Events: {{json .CustomEvents}}
- Preferred Study Time: {{.Preferences.StudyTime}}
- Energy Levels: {{.Preferences.EnergyLevel}}
- Preferred Session Length: {{.Preferences.SessionLength}}

Fill the "timetable" array. Start and end times must be exactly one hour apart and match the slots (e.g. "9:00 AM" to "10:00 AM"). Do not overlap custom events. Prioritize by deadline and preferences: if the user has high energy in the morning, schedule more demanding tasks then.`),
	Schema: object(map[string]*genai.Schema{
		"timetable": {
			Type:        genai.TypeArray,
			Description: "The generated study blocks for the tasks.",
			Items: object(map[string]*genai.Schema{
				"title":     str("The title of the task to be scheduled."),
				"day":       {Type: genai.TypeString, Enum: model.Days},
				"startTime": {Type: genai.TypeString, Enum: model.TimeSlots},
				"endTime":   {Type: genai.TypeString, Enum: model.TimeSlots},
			}, "title", "day", "startTime", "endTime"),
		},
	}, "timetable"),
}

// Fitness

type FitnessInput struct {
	Prompt string   `json:"prompt" validate:"required"`
	BMI    *float64 `json:"bmi,omitempty" validate:"omitempty,gt=0"`
}

type FitnessOutput struct {
	Advice string `json:"advice" validate:"required"`
}

const fitnessDisclaimer = "Remember to consult with a healthcare professional before starting any new fitness program."

var GetFitnessAdvice = &Flow[FitnessInput, FitnessOutput]{
	Name:   "getFitnessAdvice",
	System: "You are an expert AI fitness mentor. Provide helpful, safe, and encouraging fitness advice that is structured, easy to read, and actionable.",
	Prompt: prompt("getFitnessAdvice", `{{with .BMI}}The user's BMI is {{.}}.
- If the BMI is less than 18.5, it's considered underweight. Gently suggest focusing on nutrient-dense foods and strength training to build healthy mass.
- If the BMI is between 18.5 and 24.9, it's in the healthy range. Congratulate them and say you will not give BMI-specific advice, but still answer their question.
- If the BMI is 25 or higher, it's considered overweight. Gently suggest a combination of balanced nutrition and regular physical activity.

After addressing the BMI, answer the user's main question.
{{end}}User's question: {{.Prompt}}

Response guidelines:
1. Main advice: a few clear, concise bullet points with emojis.
2. Suggested exercises: 3-5 exercises formatted as a to-do list.
3. Exercise details: sets/reps or a duration for each exercise.
4. Always end with: "` + fitnessDisclaimer + `"`),
	Schema: object(map[string]*genai.Schema{
		"advice": str("The fitness advice."),
	}, "advice"),
}

// Mission goals

type SuggestGoalsInput struct {
	MissionTitle string `json:"missionTitle" validate:"required"`
}

type SuggestGoalsOutput struct {
	Goals []string `json:"goals" validate:"min=3,max=5,dive,required"`
}

var SuggestGoalsForMission = &Flow[SuggestGoalsInput, SuggestGoalsOutput]{
	Name:   "suggestGoalsForMission",
	System: "You are a productivity expert. Your task is to break down a high-level mission into smaller, actionable goals.",
	Prompt: prompt("suggestGoalsForMission", `Mission: {{.MissionTitle}}

Generate a list of 3-5 clear, concise, and actionable goals. Each goal should be a concrete step towards completing the overall mission.`),
	Schema: object(map[string]*genai.Schema{
		"goals": strList("3-5 suggested, actionable goals to accomplish the mission."),
	}, "goals"),
}

// Study times

type StudyTimesInput struct {
	StudyLoad           string  `json:"studyLoad" validate:"required"`
	TimeOfDayPreference string  `json:"timeOfDayPreference" validate:"required"`
	FocusLevel          string  `json:"focusLevel" validate:"required"`
	AvailableHours      float64 `json:"availableHours" validate:"gt=0"`
}

type StudyTimesOutput struct {
	SuggestedTimes string `json:"suggestedTimes" validate:"required"`
	Reasoning      string `json:"reasoning" validate:"required"`
}

var SuggestOptimalStudyTimes = &Flow[StudyTimesInput, StudyTimesOutput]{
	Name:   "suggestOptimalStudyTimes",
	System: "Based on the user's study preferences and availability, suggest the best times for them to focus and study. " + tone,
	Prompt: prompt("suggestOptimalStudyTimes", `Study Load: {{.StudyLoad}}
Time of Day Preference: {{.TimeOfDayPreference}}
Focus Level: {{.FocusLevel}}
Available Hours: {{.AvailableHours}}

Consider these factors when suggesting times. Provide a brief explanation of why these times are optimal. Use relevant emojis (e.g., 🧠, 💡, ⏰).`),
	Schema: object(map[string]*genai.Schema{
		"suggestedTimes": str("Suggested optimal study times."),
		"reasoning":      str("The reasoning behind the suggested study times."),
	}, "suggestedTimes", "reasoning"),
}
