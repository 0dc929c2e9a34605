package qualitygate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/stackmemory-backend/internal/modules/roadmap"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	require.NoError(t, err)
	return l
}

// stubProber fails every url listed in failing.
type stubProber struct {
	mu      sync.Mutex
	failing map[string]bool
	calls   int
}

func (s *stubProber) Probe(_ context.Context, url string) ProbeResult {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.failing[url] {
		return ProbeResult{StatusCode: 404, Error: "HTTP 404"}
	}
	return ProbeResult{Accessible: true, StatusCode: 200}
}

func materials(n int) []roadmap.Material {
	out := make([]roadmap.Material, n)
	for i := range out {
		out[i] = roadmap.Material{Title: fmt.Sprintf("m%d", i), URL: fmt.Sprintf("https://juejin.cn/post/%d", i)}
	}
	return out
}

func TestValidateTaskPassThreshold(t *testing.T) {
	t.Parallel()
	gate := New(&stubProber{failing: map[string]bool{"https://juejin.cn/post/0": true}}, testLogger(t))

	four := gate.ValidateTask(context.Background(), roadmap.Task{ID: "t4", Title: "four", Materials: materials(4)})
	assert.Equal(t, 4, four.TotalMaterials)
	assert.Equal(t, 3, four.AccessibleCount)
	assert.InDelta(t, 75.0, four.AccessibleRate, 0.001)
	assert.False(t, four.Passed)
	assert.Contains(t, four.Summary, "❌ 未通过 - 可访问率 75% (3/4)")

	twenty := gate.ValidateTask(context.Background(), roadmap.Task{ID: "t20", Title: "twenty", Materials: materials(20)})
	assert.Equal(t, 19, twenty.AccessibleCount)
	assert.True(t, twenty.Passed)
	assert.Contains(t, twenty.Summary, "✅ 通过")
}

func TestValidateTaskIncludesKnowledgePointMaterials(t *testing.T) {
	t.Parallel()
	stub := &stubProber{}
	gate := New(stub, testLogger(t))
	task := roadmap.Task{
		ID: "t", Title: "t",
		Materials: []roadmap.Material{{Title: "a", URL: "https://github.com/a"}},
		KnowledgePoints: []roadmap.KnowledgePoint{
			{ID: "kp", Title: "kp", Materials: []roadmap.Material{{Title: "b", URL: "https://zhihu.com/b"}}},
		},
	}
	res := gate.ValidateTask(context.Background(), task)
	assert.Equal(t, 2, res.TotalMaterials)
	assert.Equal(t, 2, stub.calls)
	assert.Equal(t, 1, res.ForeignCount)
	assert.True(t, strings.HasSuffix(res.Summary, ", 国外来源 1 个"))
}

func TestValidateTaskWithoutMaterials(t *testing.T) {
	t.Parallel()
	res := New(&stubProber{}, testLogger(t)).ValidateTask(context.Background(), roadmap.Task{ID: "t", Title: "t"})
	assert.Equal(t, 0, res.TotalMaterials)
	assert.Zero(t, res.AccessibleRate)
	assert.False(t, res.Passed)
}

func TestValidateAll(t *testing.T) {
	t.Parallel()
	gate := New(&stubProber{failing: map[string]bool{"https://juejin.cn/post/0": true}}, testLogger(t))
	batch := gate.ValidateAll(context.Background(), []roadmap.Task{
		{ID: "a", Title: "a", Materials: materials(1)},
		{ID: "b", Title: "b", Materials: materials(4)[1:]},
	})
	assert.Equal(t, 2, batch.TotalTasks)
	assert.Equal(t, 1, batch.PassedCount)
	assert.InDelta(t, 50.0, batch.OverallPassRate, 0.001)
	assert.Equal(t, "a", batch.Results[0].TaskID)

	empty := gate.ValidateAll(context.Background(), nil)
	assert.Zero(t, empty.OverallPassRate)
}

func TestHTTPProber(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://elsewhere.dev/x", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	release := make(chan struct{})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	p := NewHTTPProber(200 * time.Millisecond)
	ctx := context.Background()

	ok := p.Probe(ctx, srv.URL+"/ok")
	assert.True(t, ok.Accessible)
	assert.Equal(t, 200, ok.StatusCode)

	moved := p.Probe(ctx, srv.URL+"/moved")
	assert.True(t, moved.Accessible)
	assert.Equal(t, 301, moved.StatusCode)
	assert.Equal(t, "https://elsewhere.dev/x", moved.RedirectURL)

	gone := p.Probe(ctx, srv.URL+"/gone")
	assert.False(t, gone.Accessible)
	assert.Equal(t, "HTTP 404", gone.Error)

	slow := p.Probe(ctx, srv.URL+"/slow")
	assert.False(t, slow.Accessible)
	assert.Equal(t, "请求超时 (200ms)", slow.Error)

	generated := p.Probe(ctx, "about:generated/notes-1")
	assert.True(t, generated.Accessible)
	assert.Zero(t, generated.StatusCode, "generated notes are never requested")
	assert.Empty(t, generated.Error)
}

func TestGeneratedMaterialsCountAsAccessible(t *testing.T) {
	t.Parallel()
	gate := New(NewHTTPProber(50*time.Millisecond), testLogger(t))

	res := gate.ValidateTask(context.Background(), roadmap.Task{ID: "g1", Title: "Closures", Materials: []roadmap.Material{
		{Title: "Closures notes", URL: "about:generated/closures", IsGenerated: true},
		{Title: "Closures recap", URL: "about:generated/recap", IsGenerated: true},
	}})
	assert.Equal(t, 2, res.AccessibleCount)
	assert.True(t, res.Passed)
	for _, r := range res.Results {
		assert.Equal(t, "generated", r.Source)
		assert.False(t, r.IsForeign)
		assert.Zero(t, r.StatusCode)
	}
}

func TestClassifySource(t *testing.T) {
	t.Parallel()
	cases := []struct {
		url     string
		foreign bool
		source  string
	}{
		{"https://www.bilibili.com/video/1", false, "bilibili.com"},
		{"https://react.dev/learn", false, "react.dev"},
		{"https://github.com/golang/go", true, "github.com"},
		{"https://example.org/x", true, "example.org"},
		{"::not a url", true, "unknown"},
	}
	for _, tc := range cases {
		foreign, source := ClassifySource(tc.url)
		assert.Equal(t, tc.foreign, foreign, tc.url)
		assert.Equal(t, tc.source, source, tc.url)
	}
}

func TestScoreRelevance(t *testing.T) {
	t.Parallel()
	score, reason := ScoreRelevance("Review notes", "weekly 复盘", "总结 and 回顾")
	assert.InDelta(t, 4.0/5.0, score, 0.0001)
	assert.Equal(t, "关键词匹配: review, 复盘, 反思", reason)

	score, reason = ScoreRelevance("囧", "囧", "")
	assert.Equal(t, 0.3, score)
	assert.Equal(t, "通用学习资源", reason)
}

func TestReport(t *testing.T) {
	t.Parallel()
	out := Report([]TaskResult{{
		TaskTitle: "Task A", TotalMaterials: 1, AccessibleCount: 0, Passed: false,
		Results: []MaterialResult{{Title: "doc", URL: "https://x.dev", IsForeign: true, RelevanceReason: "通用学习资源",
			ProbeResult: ProbeResult{StatusCode: 500, Error: "HTTP 500"}}},
	}})
	assert.True(t, strings.HasPrefix(out, "# 学习资料质量门禁报告\n"))
	assert.Contains(t, out, "## Task A")
	assert.Contains(t, out, "  ❌ doc [国外]")
	assert.Contains(t, out, "    状态: 500")
	assert.Contains(t, out, "    错误: HTTP 500")
}

func TestValidateMaterialCount(t *testing.T) {
	t.Parallel()
	assert.False(t, ValidateMaterialCount(roadmap.Task{Materials: materials(1)}).Valid)
	assert.True(t, ValidateMaterialCount(roadmap.Task{Materials: materials(2)}).Valid)
	assert.False(t, ValidateMaterialCount(roadmap.Task{Materials: materials(7)}).Valid)
}
