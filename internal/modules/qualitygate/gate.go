package qualitygate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/stackmemory-backend/internal/modules/roadmap"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

const (
	// PassThresholdPercent is the minimum accessible rate for a task to pass.
	PassThresholdPercent = 95

	MaterialMinCount = 2
	MaterialMaxCount = 6
)

type MaterialResult struct {
	URL             string  `json:"url" yaml:"url"`
	Title           string  `json:"title" yaml:"title"`
	RelevanceScore  float64 `json:"relevanceScore" yaml:"relevanceScore"`
	RelevanceReason string  `json:"relevanceReason" yaml:"relevanceReason"`
	IsForeign       bool    `json:"isForeign" yaml:"isForeign"`
	Source          string  `json:"source" yaml:"source"`
	ProbeResult     `yaml:",inline"`
}

type TaskResult struct {
	TaskID          string           `json:"taskId" yaml:"taskId"`
	TaskTitle       string           `json:"taskTitle" yaml:"taskTitle"`
	TotalMaterials  int              `json:"totalMaterials" yaml:"totalMaterials"`
	AccessibleCount int              `json:"accessibleCount" yaml:"accessibleCount"`
	AccessibleRate  float64          `json:"accessibleRate" yaml:"accessibleRate"`
	ForeignCount    int              `json:"foreignCount" yaml:"foreignCount"`
	Results         []MaterialResult `json:"results" yaml:"results"`
	Passed          bool             `json:"passed" yaml:"passed"`
	Summary         string           `json:"summary" yaml:"summary"`
}

type BatchResult struct {
	Results         []TaskResult `json:"results" yaml:"results"`
	OverallPassRate float64      `json:"overallPassRate" yaml:"overallPassRate"`
	PassedCount     int          `json:"passedCount" yaml:"passedCount"`
	TotalTasks      int          `json:"totalTasks" yaml:"totalTasks"`
}

// EmptyBatch is reported when the gate could not run at all.
func EmptyBatch() BatchResult {
	return BatchResult{Results: []TaskResult{}}
}

type Gate struct {
	prober Prober
	log    *logger.Logger
}

func New(prober Prober, baseLog *logger.Logger) *Gate {
	if prober == nil {
		prober = NewHTTPProber(DefaultProbeTimeout)
	}
	return &Gate{prober: prober, log: baseLog.With("module", "QualityGate")}
}

func (g *Gate) ValidateMaterial(ctx context.Context, m roadmap.Material, taskTitle, taskObjective string) MaterialResult {
	isForeign, source := ClassifySource(m.URL)
	if roadmap.IsGeneratedURL(m.URL) {
		isForeign, source = false, "generated"
	}
	score, reason := ScoreRelevance(m.Title, taskTitle, taskObjective)
	return MaterialResult{
		URL:             m.URL,
		Title:           m.Title,
		RelevanceScore:  score,
		RelevanceReason: reason,
		IsForeign:       isForeign,
		Source:          source,
		ProbeResult:     g.prober.Probe(ctx, m.URL),
	}
}

// ValidateTask probes the task's own materials and those of its knowledge
// points concurrently, then aggregates a verdict.
func (g *Gate) ValidateTask(ctx context.Context, task roadmap.Task) TaskResult {
	all := append([]roadmap.Material{}, task.Materials...)
	for _, kp := range task.KnowledgePoints {
		all = append(all, kp.Materials...)
	}

	results := make([]MaterialResult, len(all))
	eg, egctx := errgroup.WithContext(ctx)
	for i := range all {
		i := i
		eg.Go(func() error {
			results[i] = g.ValidateMaterial(egctx, all[i], task.Title, task.Objective)
			return nil
		})
	}
	_ = eg.Wait()

	out := TaskResult{
		TaskID:         task.ID,
		TaskTitle:      task.Title,
		TotalMaterials: len(all),
		Results:        results,
	}
	for _, r := range results {
		if r.Accessible {
			out.AccessibleCount++
		}
		if r.IsForeign {
			out.ForeignCount++
		}
	}
	if out.TotalMaterials > 0 {
		out.AccessibleRate = float64(out.AccessibleCount) / float64(out.TotalMaterials) * 100
		out.Passed = out.AccessibleCount*100 >= PassThresholdPercent*out.TotalMaterials
	}
	out.Summary = summarize(out)
	return out
}

// ValidateAll runs ValidateTask for every task concurrently.
func (g *Gate) ValidateAll(ctx context.Context, tasks []roadmap.Task) BatchResult {
	results := make([]TaskResult, len(tasks))
	eg, egctx := errgroup.WithContext(ctx)
	for i := range tasks {
		i := i
		eg.Go(func() error {
			results[i] = g.ValidateTask(egctx, tasks[i])
			return nil
		})
	}
	_ = eg.Wait()

	out := BatchResult{Results: results, TotalTasks: len(tasks)}
	for _, r := range results {
		if r.Passed {
			out.PassedCount++
		}
	}
	if len(results) > 0 {
		out.OverallPassRate = float64(out.PassedCount) / float64(len(results)) * 100
	}
	g.log.Debug("quality gate finished", "tasks", out.TotalTasks, "passed", out.PassedCount)
	return out
}

func summarize(r TaskResult) string {
	var s string
	if r.Passed {
		s = fmt.Sprintf("✅ 通过 - 可访问率 %.0f%% (%d/%d)", r.AccessibleRate, r.AccessibleCount, r.TotalMaterials)
	} else {
		s = fmt.Sprintf("❌ 未通过 - 可访问率 %.0f%% (%d/%d)，需要补充有效链接", r.AccessibleRate, r.AccessibleCount, r.TotalMaterials)
	}
	if r.ForeignCount > 0 {
		s += fmt.Sprintf(", 国外来源 %d 个", r.ForeignCount)
	}
	return s
}

// MaterialCount is the verdict on how many materials a task carries.
type MaterialCount struct {
	Total   int    `json:"total"`
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

func ValidateMaterialCount(task roadmap.Task) MaterialCount {
	total := len(task.Materials)
	for _, kp := range task.KnowledgePoints {
		total += len(kp.Materials)
	}
	switch {
	case total < MaterialMinCount:
		return MaterialCount{Total: total, Message: fmt.Sprintf("资料数量不足 (%d/%d)", total, MaterialMinCount)}
	case total > MaterialMaxCount:
		return MaterialCount{Total: total, Message: fmt.Sprintf("资料数量过多 (%d/%d)", total, MaterialMaxCount)}
	default:
		return MaterialCount{Total: total, Valid: true, Message: fmt.Sprintf("资料数量适中 (%d)", total)}
	}
}
