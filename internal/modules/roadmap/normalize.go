package roadmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Parse decodes stored or client-supplied roadmap JSON and normalizes it.
// Undecodable input yields the empty document.
func Parse(data []byte) Roadmap {
	if len(bytes.TrimSpace(data)) == 0 {
		return Empty()
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Empty()
	}
	return Normalize(raw)
}

// Normalize coerces an arbitrary decoded JSON value into a well-formed Roadmap.
// It never fails and Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw any) Roadmap {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Empty()
	}
	out := Empty()
	if ov, ok := obj["overview"].(map[string]any); ok {
		out.Overview = ov
	}

	taskIDs := map[string]struct{}{}
	phaseIDs := map[string]struct{}{}
	if list, ok := obj["phases"].([]any); ok {
		n := 0
		for _, item := range list {
			po, ok := item.(map[string]any)
			if !ok {
				continue
			}
			n++
			p := normalizePhase(po, n, taskIDs)
			p.ID = claimID(p.ID, phaseIDs)
			out.Phases = append(out.Phases, p)
		}
	}
	if list, ok := obj["currentTasks"].([]any); ok {
		out.CurrentTasks = normalizeTasks(list, map[string]struct{}{})
	}
	return out
}

func normalizePhase(o map[string]any, n int, taskIDs map[string]struct{}) Phase {
	p := Phase{
		ID:           trimmedString(o["id"]),
		Title:        trimmedString(o["title"]),
		Weeks:        trimmedString(o["weeks"]),
		Goal:         trimmedString(o["goal"]),
		Focus:        stringList(o["focus"]),
		Deliverables: stringList(o["deliverables"]),
		Tasks:        []Task{},
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("phase-%d", n)
	}
	if p.Title == "" {
		p.Title = fmt.Sprintf("阶段 %d", n)
	}
	if p.Weeks == "" {
		p.Weeks = "自定义阶段"
	}
	if list, ok := o["tasks"].([]any); ok {
		p.Tasks = normalizeTasks(list, taskIDs)
	}
	return p
}

func normalizeTasks(list []any, seen map[string]struct{}) []Task {
	out := make([]Task, 0, len(list))
	for _, item := range list {
		o, ok := item.(map[string]any)
		if !ok {
			continue
		}
		t, ok := normalizeTask(o)
		if !ok {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

func normalizeTask(o map[string]any) (Task, bool) {
	id := trimmedString(o["id"])
	title := trimmedString(o["title"])
	if id == "" || title == "" {
		return Task{}, false
	}
	t := Task{
		ID:           id,
		Title:        title,
		Week:         1,
		Type:         TaskType(trimmedString(o["type"])),
		Status:       TaskStatus(trimmedString(o["status"])),
		Difficulty:   Difficulty(trimmedString(o["difficulty"])),
		Estimate:     trimmedString(o["estimate"]),
		Objective:    trimmedString(o["objective"]),
		DoneCriteria: trimmedString(o["doneCriteria"]),
	}
	if w, ok := asInt(o["week"]); ok && w > 0 {
		t.Week = w
	}
	if d, ok := asInt(o["day"]); ok && d >= 1 && d <= 7 {
		t.Day = &d
	}
	if !t.Type.Valid() {
		t.Type = TaskTypeStudy
	}
	if !t.Status.Valid() {
		t.Status = StatusPending
	}
	if !t.Difficulty.Valid() {
		t.Difficulty = ""
	}
	t.Materials = SanitizeMaterials(materialList(o["materials"]))
	t.KnowledgePoints = SanitizeKnowledgePoints(knowledgePointList(o["knowledgePoints"]))
	return t, true
}

func materialList(v any) []Material {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Material, 0, len(list))
	for _, item := range list {
		o, ok := item.(map[string]any)
		if !ok {
			continue
		}
		generated, _ := o["isGenerated"].(bool)
		out = append(out, Material{
			Title:       trimmedString(o["title"]),
			URL:         trimmedString(o["url"]),
			Type:        MaterialType(trimmedString(o["type"])),
			IsGenerated: generated,
			Content:     trimmedString(o["content"]),
		})
	}
	return out
}

func knowledgePointList(v any) []KnowledgePoint {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]KnowledgePoint, 0, len(list))
	for _, item := range list {
		o, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, KnowledgePoint{
			ID:          trimmedString(o["id"]),
			Title:       trimmedString(o["title"]),
			Description: trimmedString(o["description"]),
			Materials:   materialList(o["materials"]),
		})
	}
	return out
}

// claimID returns id, or id with a numeric suffix when id is already taken.
func claimID(id string, taken map[string]struct{}) string {
	candidate := id
	for i := 2; ; i++ {
		if _, ok := taken[candidate]; !ok {
			taken[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", id, i)
	}
}

func trimmedString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func stringList(v any) []string {
	out := []string{}
	list, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range list {
		if s := trimmedString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asInt(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
