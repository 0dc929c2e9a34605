package roadmap

import (
	"errors"
	"strings"
)

var (
	ErrKnowledgePointNotFound = errors.New("knowledge point not found")
	ErrMaterialSelectorEmpty  = errors.New("material url or title is required")
)

const CustomPhaseID = "phase-custom"

// Location addresses a task inside the phase tree.
type Location struct {
	Phase int
	Task  int
}

// FindTask locates a task in the phase tree by id.
func (r *Roadmap) FindTask(id string) (Location, bool) {
	for pi := range r.Phases {
		for ti := range r.Phases[pi].Tasks {
			if r.Phases[pi].Tasks[ti].ID == id {
				return Location{Phase: pi, Task: ti}, true
			}
		}
	}
	return Location{}, false
}

// TaskAt returns a pointer into the phase tree.
func (r *Roadmap) TaskAt(loc Location) *Task {
	return &r.Phases[loc.Phase].Tasks[loc.Task]
}

// HasTaskID reports whether id is used anywhere in the phase tree or currentTasks.
func (r *Roadmap) HasTaskID(id string) bool {
	if _, ok := r.FindTask(id); ok {
		return true
	}
	return r.CurrentTaskIndex(id) >= 0
}

// Tasks returns every task of the phase tree in document order.
func (r *Roadmap) Tasks() []Task {
	var out []Task
	for _, p := range r.Phases {
		out = append(out, p.Tasks...)
	}
	return out
}

// NextDayInWeek returns the slot after the highest day used in week, capped at 7.
func (r *Roadmap) NextDayInWeek(week int) int {
	max := 0
	for _, p := range r.Phases {
		for _, t := range p.Tasks {
			if t.Week == week && t.Day != nil && *t.Day > max {
				max = *t.Day
			}
		}
	}
	if max == 0 {
		return 1
	}
	if max >= 7 {
		return 7
	}
	return max + 1
}

// PhaseIndexFor picks the phase a task should live in: the phase with phaseID,
// else the first phase already holding a task of that week, else the last phase.
// An empty tree gets a synthesized custom phase. Callers moving an existing task
// search before removing it, so a task alone in its week finds its own phase.
func (r *Roadmap) PhaseIndexFor(week int, phaseID string) int {
	if phaseID = strings.TrimSpace(phaseID); phaseID != "" {
		for i, p := range r.Phases {
			if p.ID == phaseID {
				return i
			}
		}
	}
	for i, p := range r.Phases {
		for _, t := range p.Tasks {
			if t.Week == week {
				return i
			}
		}
	}
	if len(r.Phases) > 0 {
		return len(r.Phases) - 1
	}
	r.Phases = append(r.Phases, Phase{
		ID:           CustomPhaseID,
		Title:        "自定义阶段",
		Weeks:        "自定义",
		Goal:         "由 OpenClaw 按反馈动态调整",
		Focus:        []string{"按用户反馈迭代任务"},
		Deliverables: []string{"可执行学习清单"},
		Tasks:        []Task{},
	})
	return len(r.Phases) - 1
}

// AppendTask places t at the end of phase pi.
func (r *Roadmap) AppendTask(pi int, t Task) {
	r.Phases[pi].Tasks = append(r.Phases[pi].Tasks, t)
}

// RemoveTask deletes the task at loc from the phase tree and returns it.
func (r *Roadmap) RemoveTask(loc Location) Task {
	tasks := r.Phases[loc.Phase].Tasks
	removed := tasks[loc.Task]
	r.Phases[loc.Phase].Tasks = append(tasks[:loc.Task:loc.Task], tasks[loc.Task+1:]...)
	return removed
}

func (r *Roadmap) CurrentTaskIndex(id string) int {
	for i, t := range r.CurrentTasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// UpsertCurrentTask replaces the currentTasks copy of t, or appends one when
// add is true and no copy exists.
func (r *Roadmap) UpsertCurrentTask(t Task, add bool) {
	if i := r.CurrentTaskIndex(t.ID); i >= 0 {
		r.CurrentTasks[i] = t.Clone()
		return
	}
	if add {
		r.CurrentTasks = append(r.CurrentTasks, t.Clone())
	}
}

// RemoveCurrentTask drops the currentTasks copy of id, if any.
func (r *Roadmap) RemoveCurrentTask(id string) bool {
	i := r.CurrentTaskIndex(id)
	if i < 0 {
		return false
	}
	r.CurrentTasks = append(r.CurrentTasks[:i:i], r.CurrentTasks[i+1:]...)
	return true
}

func (t *Task) knowledgePoint(id string) *KnowledgePoint {
	for i := range t.KnowledgePoints {
		if t.KnowledgePoints[i].ID == id {
			return &t.KnowledgePoints[i]
		}
	}
	return nil
}

// AddMaterial appends m to the task, or to one of its knowledge points when
// kpID is set. An existing material with the same url is replaced and moved last.
func (t *Task) AddMaterial(m Material, kpID string) error {
	if kpID = strings.TrimSpace(kpID); kpID != "" {
		kp := t.knowledgePoint(kpID)
		if kp == nil {
			return ErrKnowledgePointNotFound
		}
		kp.Materials = append(withoutURL(kp.Materials, m.URL), m)
		return nil
	}
	t.Materials = append(withoutURL(t.Materials, m.URL), m)
	return nil
}

// MaterialSelector picks materials by url, or by title when url is empty.
type MaterialSelector struct {
	URL              string `json:"url"`
	Title            string `json:"title"`
	KnowledgePointID string `json:"knowledgePointId"`
}

func (s MaterialSelector) normalized() MaterialSelector {
	return MaterialSelector{
		URL:              strings.TrimSpace(s.URL),
		Title:            strings.TrimSpace(s.Title),
		KnowledgePointID: strings.TrimSpace(s.KnowledgePointID),
	}
}

func (s MaterialSelector) Validate() error {
	n := s.normalized()
	if n.URL == "" && n.Title == "" {
		return ErrMaterialSelectorEmpty
	}
	return nil
}

// RemoveMaterial deletes the selected materials and reports whether anything was removed.
func (t *Task) RemoveMaterial(sel MaterialSelector) (bool, error) {
	sel = sel.normalized()
	if sel.URL == "" && sel.Title == "" {
		return false, ErrMaterialSelectorEmpty
	}
	list := &t.Materials
	if sel.KnowledgePointID != "" {
		kp := t.knowledgePoint(sel.KnowledgePointID)
		if kp == nil {
			return false, ErrKnowledgePointNotFound
		}
		list = &kp.Materials
	}
	before := len(*list)
	kept := make([]Material, 0, before)
	for _, m := range *list {
		if sel.matches(m) {
			continue
		}
		kept = append(kept, m)
	}
	*list = kept
	return len(kept) != before, nil
}

func (s MaterialSelector) matches(m Material) bool {
	if s.URL != "" {
		return m.URL == s.URL
	}
	return m.Title == s.Title
}

func withoutURL(list []Material, url string) []Material {
	out := make([]Material, 0, len(list)+1)
	for _, m := range list {
		if m.URL != url {
			out = append(out, m)
		}
	}
	return out
}
