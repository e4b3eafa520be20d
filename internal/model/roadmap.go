package model

// Roadmap is a generated plan cached on a task or mission.
type Roadmap struct {
	Introduction string      `json:"introduction"`
	Milestones   []Milestone `json:"milestones"`
	Conclusion   string      `json:"conclusion"`
}

type Milestone struct {
	Title string   `json:"title"`
	Emoji string   `json:"emoji"`
	Steps []string `json:"steps"`
}
