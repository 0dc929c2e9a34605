package roadmap

import "encoding/json"

type TaskType string

const (
	TaskTypeStudy    TaskType = "学习"
	TaskTypePractice TaskType = "实操"
	TaskTypeReview   TaskType = "复盘"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeStudy, TaskTypePractice, TaskTypeReview:
		return true
	}
	return false
}

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "简单"
	DifficultyMedium Difficulty = "中等"
	DifficultyHard   Difficulty = "进阶"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type MaterialType string

const (
	MaterialArticle MaterialType = "article"
	MaterialVideo   MaterialType = "video"
)

type Material struct {
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Type        MaterialType `json:"type"`
	IsGenerated bool         `json:"isGenerated,omitempty"`
	Content     string       `json:"content,omitempty"`
}

type KnowledgePoint struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Materials   []Material `json:"materials"`
}

type Task struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Week            int              `json:"week"`
	Day             *int             `json:"day,omitempty"`
	Type            TaskType         `json:"type"`
	Status          TaskStatus       `json:"status"`
	Difficulty      Difficulty       `json:"difficulty,omitempty"`
	Estimate        string           `json:"estimate,omitempty"`
	Objective       string           `json:"objective,omitempty"`
	DoneCriteria    string           `json:"doneCriteria,omitempty"`
	Materials       []Material       `json:"materials"`
	KnowledgePoints []KnowledgePoint `json:"knowledgePoints"`
}

// Clone returns a deep copy so phase-tree and currentTasks entries never share slices.
func (t Task) Clone() Task {
	out := t
	if t.Day != nil {
		d := *t.Day
		out.Day = &d
	}
	out.Materials = append([]Material{}, t.Materials...)
	out.KnowledgePoints = make([]KnowledgePoint, len(t.KnowledgePoints))
	for i, kp := range t.KnowledgePoints {
		kp.Materials = append([]Material{}, kp.Materials...)
		out.KnowledgePoints[i] = kp
	}
	return out
}

// DayOrZero returns the day slot, or 0 when the task has no day.
func (t Task) DayOrZero() int {
	if t.Day == nil {
		return 0
	}
	return *t.Day
}

type Phase struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Weeks        string   `json:"weeks"`
	Goal         string   `json:"goal"`
	Focus        []string `json:"focus"`
	Deliverables []string `json:"deliverables"`
	Tasks        []Task   `json:"tasks"`
}

// Roadmap is the document stored in routes.roadmap_data. Overview is free-form and kept verbatim.
type Roadmap struct {
	Overview     map[string]any `json:"overview,omitempty"`
	Phases       []Phase        `json:"phases"`
	CurrentTasks []Task         `json:"currentTasks"`
}

// Marshal encodes the roadmap for storage.
func (r Roadmap) Marshal() ([]byte, error) {
	if r.Phases == nil {
		r.Phases = []Phase{}
	}
	if r.CurrentTasks == nil {
		r.CurrentTasks = []Task{}
	}
	return json.Marshal(r)
}

// Empty is the canonical empty document.
func Empty() Roadmap {
	return Roadmap{Phases: []Phase{}, CurrentTasks: []Task{}}
}
