package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/stackmemory-backend/internal/data/repos/routes"
	"github.com/yungbote/stackmemory-backend/internal/data/repos/testutil"
	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/modules/roadmap"
	"github.com/yungbote/stackmemory-backend/internal/pkg/pointers"
	"github.com/yungbote/stackmemory-backend/internal/platform/apierr"
	"github.com/yungbote/stackmemory-backend/internal/platform/dbctx"
)

const seedRoadmap = `{
  "overview": {"summary": "learn go"},
  "phases": [
    {"id": "p1", "title": "Basics", "weeks": "1-2", "goal": "syntax", "focus": ["types"], "deliverables": [],
     "tasks": [
       {"id": "t1", "title": "Tour of Go", "week": 1, "day": 1, "type": "学习", "status": "pending",
        "materials": [{"title": "Tour", "url": "https://go.dev/tour", "type": "article"}],
        "knowledgePoints": [{"id": "kp1", "title": "Slices", "materials": []}]},
       {"id": "t2", "title": "Write a CLI", "week": 1, "day": 2, "type": "实操", "status": "pending"}
     ]},
    {"id": "p2", "title": "Concurrency", "weeks": "3-4", "goal": "goroutines", "focus": [], "deliverables": [],
     "tasks": [
       {"id": "t3", "title": "Channels", "week": 3, "day": 1, "type": "学习", "status": "pending"}
     ]}
  ],
  "currentTasks": [
    {"id": "t1", "title": "Tour of Go", "week": 1, "day": 1, "type": "学习", "status": "pending",
     "materials": [{"title": "Tour", "url": "https://go.dev/tour", "type": "article"}],
     "knowledgePoints": [{"id": "kp1", "title": "Slices", "materials": []}]}
  ]
}`

type editorFixture struct {
	db     *gorm.DB
	editor RouteEditor
	tasks  routes.RouteTaskRepo
	user   *types.User
	route  *types.Route
}

func newEditorFixture(t *testing.T, autofill int) *editorFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, db, uuid.NewString()+"@example.com")
	r := testutil.SeedRoute(t, ctx, db, u.ID, "Go", seedRoadmap, true)
	routeRepo := routes.NewRouteRepo(db, log)
	taskRepo := routes.NewRouteTaskRepo(db, log)
	return &editorFixture{
		db:     db,
		editor: NewRouteEditor(db, log, routeRepo, taskRepo, autofill),
		tasks:  taskRepo,
		user:   u,
		route:  r,
	}
}

func (f *editorFixture) assertMirror(t *testing.T, route *types.Route) roadmap.Roadmap {
	t.Helper()
	rm := roadmap.Parse(route.RoadmapData)
	want := map[string]struct{}{}
	for _, task := range rm.Tasks() {
		want[task.ID] = struct{}{}
	}
	ids, err := f.tasks.TaskIDs(dbctx.Context{Ctx: context.Background()}, route.ID)
	require.NoError(t, err)
	got := map[string]struct{}{}
	for _, id := range ids {
		got[id] = struct{}{}
	}
	assert.Equal(t, want, got, "route_tasks must mirror the phase tree")
	return rm
}

func TestRouteEditorAddTaskAssignsNextDay(t *testing.T) {
	f := newEditorFixture(t, 0)
	ctx := context.Background()

	route, err := f.editor.AddTask(ctx, f.user.ID, f.route.ID, TaskInput{Title: "  Error handling ", Week: 1})
	require.NoError(t, err)
	rm := f.assertMirror(t, route)

	require.Len(t, rm.Phases[0].Tasks, 3)
	added := rm.Phases[0].Tasks[2]
	assert.Equal(t, "Error handling", added.Title)
	require.NotNil(t, added.Day)
	assert.Equal(t, 3, *added.Day)
	assert.Equal(t, roadmap.TaskTypeStudy, added.Type)
	assert.Equal(t, roadmap.StatusPending, added.Status)
	assert.Contains(t, added.ID, "task-")

	// currentTasks had one entry, below the autofill limit.
	assert.GreaterOrEqual(t, rm.CurrentTaskIndex(added.ID), 0)
}

func TestRouteEditorAddTaskPlacement(t *testing.T) {
	f := newEditorFixture(t, 1)
	ctx := context.Background()

	route, err := f.editor.AddTask(ctx, f.user.ID, f.route.ID, TaskInput{ID: "t4", Title: "Select", Week: 3, Day: pointers.Int(5)})
	require.NoError(t, err)
	rm := f.assertMirror(t, route)
	loc, ok := rm.FindTask("t4")
	require.True(t, ok)
	assert.Equal(t, 1, loc.Phase, "week 3 tasks live in p2")
	assert.Equal(t, -1, rm.CurrentTaskIndex("t4"), "autofill limit reached")

	route, err = f.editor.AddTask(ctx, f.user.ID, f.route.ID, TaskInput{ID: "t5", Title: "Generics", Week: 9, PhaseID: "p1", IncludeInCurrentTasks: true})
	require.NoError(t, err)
	rm = f.assertMirror(t, route)
	loc, ok = rm.FindTask("t5")
	require.True(t, ok)
	assert.Equal(t, 0, loc.Phase)
	assert.Equal(t, 1, *rm.TaskAt(loc).Day)
	assert.GreaterOrEqual(t, rm.CurrentTaskIndex("t5"), 0)

	route, err = f.editor.AddTask(ctx, f.user.ID, f.route.ID, TaskInput{ID: "t6", Title: "Profiling", Week: 12})
	require.NoError(t, err)
	rm = f.assertMirror(t, route)
	loc, _ = rm.FindTask("t6")
	assert.Equal(t, len(rm.Phases)-1, loc.Phase, "unknown week falls back to the last phase")
}

func TestRouteEditorAddTaskRejections(t *testing.T) {
	f := newEditorFixture(t, 0)
	ctx := context.Background()

	_, err := f.editor.AddTask(ctx, f.user.ID, f.route.ID, TaskInput{ID: "t1", Title: "dup", Week: 1})
	assert.Equal(t, apierr.Conflict, apierr.KindOf(err))

	_, err = f.editor.AddTask(ctx, f.user.ID, f.route.ID, TaskInput{Title: "   ", Week: 1})
	assert.Equal(t, apierr.Validation, apierr.KindOf(err))

	_, err = f.editor.AddTask(ctx, f.user.ID, f.route.ID, TaskInput{Title: "x", Week: 53})
	assert.Equal(t, apierr.Validation, apierr.KindOf(err))

	_, err = f.editor.AddTask(ctx, f.user.ID, f.route.ID, TaskInput{Title: "x", Week: 1, Day: pointers.Int(8)})
	assert.Equal(t, apierr.Validation, apierr.KindOf(err))

	_, err = f.editor.AddTask(ctx, f.user.ID, f.route.ID, TaskInput{Title: "x", Week: 1, Type: "other"})
	assert.Equal(t, apierr.Validation, apierr.KindOf(err))

	_, err = f.editor.AddTask(ctx, uuid.New(), f.route.ID, TaskInput{Title: "x", Week: 1})
	assert.Equal(t, apierr.NotFound, apierr.KindOf(err))

	// Failed mutations leave the document untouched.
	route, err := f.editor.GetRoute(ctx, f.user.ID, f.route.ID)
	require.NoError(t, err)
	rm := roadmap.Parse(route.RoadmapData)
	assert.Len(t, rm.Tasks(), 3)
}

func TestRouteEditorEmptyPatchIsNoop(t *testing.T) {
	f := newEditorFixture(t, 0)
	ctx := context.Background()

	added, err := f.editor.AddTask(ctx, f.user.ID, f.route.ID, TaskInput{
		ID: "t9", Title: "Testing", Week: 2, Objective: "table tests",
		Materials: []roadmap.Material{{Title: "Docs", URL: "https://go.dev/doc/tutorial/add-a-test"}},
	})
	require.NoError(t, err)
	patched, err := f.editor.PatchTask(ctx, f.user.ID, f.route.ID, "t9", TaskPatch{})
	require.NoError(t, err)
	assert.JSONEq(t, string(added.RoadmapData), string(patched.RoadmapData))
}

func TestRouteEditorPatchTask(t *testing.T) {
	f := newEditorFixture(t, 0)
	ctx := context.Background()

	route, err := f.editor.PatchTask(ctx, f.user.ID, f.route.ID, "t1", TaskPatch{
		Title:  pointers.String(" Tour of Go (done) "),
		Status: pointers.Ptr(roadmap.StatusCompleted),
	})
	require.NoError(t, err)
	rm := f.assertMirror(t, route)
	loc, _ := rm.FindTask("t1")
	assert.Equal(t, "Tour of Go (done)", rm.TaskAt(loc).Title)
	assert.Equal(t, roadmap.StatusCompleted, rm.CurrentTasks[0].Status, "currentTasks copy follows the patch")

	rows, err := f.tasks.ListByRoute(dbctx.Context{Ctx: ctx}, f.route.ID, f.user.ID)
	require.NoError(t, err)
	for _, row := range rows {
		if row.TaskID == "t1" {
			assert.Equal(t, "completed", row.Status)
			assert.NotNil(t, row.CompletedAt)
		} else {
			assert.Nil(t, row.CompletedAt)
		}
	}

	// Moving to week 3 relocates the task into the phase that holds week 3, keeping its id.
	route, err = f.editor.PatchTask(ctx, f.user.ID, f.route.ID, "t2", TaskPatch{Week: pointers.Int(3)})
	require.NoError(t, err)
	rm = f.assertMirror(t, route)
	loc, ok := rm.FindTask("t2")
	require.True(t, ok)
	assert.Equal(t, 1, loc.Phase)
	assert.Equal(t, 3, rm.TaskAt(loc).Week)
	assert.Len(t, rm.Phases[0].Tasks, 1)

	// Re-stating the current week keeps a task in its phase even when it is alone in that week.
	route, err = f.editor.AddTask(ctx, f.user.ID, f.route.ID, TaskInput{ID: "t5", Title: "Maps", Week: 2, PhaseID: "p1"})
	require.NoError(t, err)
	route, err = f.editor.PatchTask(ctx, f.user.ID, f.route.ID, "t5", TaskPatch{Week: pointers.Int(2)})
	require.NoError(t, err)
	rm = f.assertMirror(t, route)
	loc, ok = rm.FindTask("t5")
	require.True(t, ok)
	assert.Equal(t, 0, loc.Phase)

	route, err = f.editor.PatchTask(ctx, f.user.ID, f.route.ID, "t5", TaskPatch{PhaseID: pointers.String("missing")})
	require.NoError(t, err)
	rm = f.assertMirror(t, route)
	loc, ok = rm.FindTask("t5")
	require.True(t, ok)
	assert.Equal(t, 0, loc.Phase, "unknown phase id falls back to the week search")

	_, err = f.editor.PatchTask(ctx, f.user.ID, f.route.ID, "missing", TaskPatch{})
	assert.Equal(t, apierr.NotFound, apierr.KindOf(err))
	_, err = f.editor.PatchTask(ctx, f.user.ID, f.route.ID, "t1", TaskPatch{Title: pointers.String("  ")})
	assert.Equal(t, apierr.Validation, apierr.KindOf(err))
}

func TestRouteEditorDeleteTaskCascades(t *testing.T) {
	f := newEditorFixture(t, 0)
	ctx := context.Background()

	// Seed the mirror so the cascade is observable.
	_, err := f.editor.PatchTask(ctx, f.user.ID, f.route.ID, "t2", TaskPatch{})
	require.NoError(t, err)
	ids, err := f.tasks.TaskIDs(dbctx.Context{Ctx: ctx}, f.route.ID)
	require.NoError(t, err)
	require.Contains(t, ids, "t1")

	route, err := f.editor.DeleteTask(ctx, f.user.ID, f.route.ID, "t1")
	require.NoError(t, err)
	rm := f.assertMirror(t, route)
	_, ok := rm.FindTask("t1")
	assert.False(t, ok)
	assert.Equal(t, -1, rm.CurrentTaskIndex("t1"))

	ids, err = f.tasks.TaskIDs(dbctx.Context{Ctx: ctx}, f.route.ID)
	require.NoError(t, err)
	assert.NotContains(t, ids, "t1")

	_, err = f.editor.DeleteTask(ctx, f.user.ID, f.route.ID, "t1")
	assert.Equal(t, apierr.NotFound, apierr.KindOf(err))
}

func TestRouteEditorMaterials(t *testing.T) {
	f := newEditorFixture(t, 0)
	ctx := context.Background()

	route, err := f.editor.AddMaterial(ctx, f.user.ID, f.route.ID, "t1", MaterialInput{
		Title: "Effective Go", URL: "https://go.dev/doc/effective_go", Type: "article",
	})
	require.NoError(t, err)
	rm := roadmap.Parse(route.RoadmapData)
	loc, _ := rm.FindTask("t1")
	assert.Len(t, rm.TaskAt(loc).Materials, 2)
	assert.Len(t, rm.CurrentTasks[0].Materials, 2)

	route, err = f.editor.AddMaterial(ctx, f.user.ID, f.route.ID, "t1", MaterialInput{
		Title: "Slices intro", URL: "https://go.dev/blog/slices-intro", Type: "video", KnowledgePointID: "kp1",
	})
	require.NoError(t, err)
	rm = roadmap.Parse(route.RoadmapData)
	loc, _ = rm.FindTask("t1")
	require.Len(t, rm.TaskAt(loc).KnowledgePoints[0].Materials, 1)
	assert.Equal(t, roadmap.MaterialVideo, rm.TaskAt(loc).KnowledgePoints[0].Materials[0].Type)

	_, err = f.editor.AddMaterial(ctx, f.user.ID, f.route.ID, "t1", MaterialInput{Title: "x", URL: "https://x.dev", KnowledgePointID: "nope"})
	assert.Equal(t, apierr.NotFound, apierr.KindOf(err))
	_, err = f.editor.AddMaterial(ctx, f.user.ID, f.route.ID, "t1", MaterialInput{Title: "x", URL: "ftp://x.dev"})
	assert.Equal(t, apierr.Validation, apierr.KindOf(err))

	route, err = f.editor.RemoveMaterial(ctx, f.user.ID, f.route.ID, "t1", roadmap.MaterialSelector{Title: "Tour"})
	require.NoError(t, err)
	rm = roadmap.Parse(route.RoadmapData)
	loc, _ = rm.FindTask("t1")
	require.Len(t, rm.TaskAt(loc).Materials, 1)
	assert.Equal(t, "Effective Go", rm.TaskAt(loc).Materials[0].Title)
	assert.Len(t, rm.CurrentTasks[0].Materials, 1)

	route, err = f.editor.RemoveMaterial(ctx, f.user.ID, f.route.ID, "t1", roadmap.MaterialSelector{
		URL: "https://go.dev/blog/slices-intro", KnowledgePointID: "kp1",
	})
	require.NoError(t, err)
	rm = roadmap.Parse(route.RoadmapData)
	loc, _ = rm.FindTask("t1")
	assert.Empty(t, rm.TaskAt(loc).KnowledgePoints[0].Materials)

	_, err = f.editor.RemoveMaterial(ctx, f.user.ID, f.route.ID, "t1", roadmap.MaterialSelector{URL: "https://nowhere.dev"})
	assert.Equal(t, apierr.NotFound, apierr.KindOf(err))
	_, err = f.editor.RemoveMaterial(ctx, f.user.ID, f.route.ID, "t1", roadmap.MaterialSelector{})
	assert.Equal(t, apierr.Validation, apierr.KindOf(err))
}

func TestRouteEditorPatchRoute(t *testing.T) {
	f := newEditorFixture(t, 0)
	ctx := context.Background()

	other := testutil.SeedRoute(t, ctx, f.db, f.user.ID, "Rust", `{}`, false)

	route, err := f.editor.PatchRoute(ctx, f.user.ID, other.ID, RoutePatch{
		Topic:     pointers.String("  Rust ownership "),
		Weeks:     pointers.Int(6),
		IsCurrent: pointers.Bool(true),
		Overview:  map[string]any{"summary": "borrowck"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Rust ownership", route.Topic)
	assert.Equal(t, 6, route.Weeks)
	assert.True(t, route.IsCurrent)
	assert.Equal(t, "borrowck", roadmap.Parse(route.RoadmapData).Overview["summary"])

	prev, err := f.editor.GetRoute(ctx, f.user.ID, f.route.ID)
	require.NoError(t, err)
	assert.False(t, prev.IsCurrent, "only one route stays current")

	route, err = f.editor.PatchRoute(ctx, f.user.ID, f.route.ID, RoutePatch{
		RoadmapData: []byte(`{"phases":[{"tasks":[{"id":"n1","title":"New","week":2}]}]}`),
	})
	require.NoError(t, err)
	rm := f.assertMirror(t, route)
	require.Len(t, rm.Tasks(), 1)
	assert.Equal(t, "phase-1", rm.Phases[0].ID)

	_, err = f.editor.PatchRoute(ctx, f.user.ID, f.route.ID, RoutePatch{Weeks: pointers.Int(0)})
	assert.Equal(t, apierr.Validation, apierr.KindOf(err))
	_, err = f.editor.PatchRoute(ctx, f.user.ID, f.route.ID, RoutePatch{Topic: pointers.String(" ")})
	assert.Equal(t, apierr.Validation, apierr.KindOf(err))
	_, err = f.editor.PatchRoute(ctx, f.user.ID, f.route.ID, RoutePatch{IsCurrent: pointers.Bool(false)})
	assert.Equal(t, apierr.Validation, apierr.KindOf(err))
}

type failingRouteRepo struct {
	routes.RouteRepo
	err error
}

func (r failingRouteRepo) UpdateFields(dbctx.Context, uuid.UUID, map[string]interface{}) error {
	return r.err
}

func TestRouteEditorRollsBackOnWriteFailure(t *testing.T) {
	f := newEditorFixture(t, 0)
	ctx := context.Background()

	before, err := f.editor.PatchTask(ctx, f.user.ID, f.route.ID, "t2", TaskPatch{})
	require.NoError(t, err)
	mirrorBefore, err := f.tasks.TaskIDs(dbctx.Context{Ctx: ctx}, f.route.ID)
	require.NoError(t, err)
	require.Len(t, mirrorBefore, 3)

	log := testutil.Logger(t)
	broken := NewRouteEditor(f.db, log, failingRouteRepo{RouteRepo: routes.NewRouteRepo(f.db, log), err: errors.New("disk full")}, f.tasks, 0)

	_, err = broken.DeleteTask(ctx, f.user.ID, f.route.ID, "t1")
	require.Error(t, err)
	assert.Equal(t, apierr.Internal, apierr.KindOf(err))
	_, err = broken.AddTask(ctx, f.user.ID, f.route.ID, TaskInput{ID: "t7", Title: "Context", Week: 4})
	require.Error(t, err)

	after, err := f.editor.GetRoute(ctx, f.user.ID, f.route.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(before.RoadmapData), string(after.RoadmapData))
	mirrorAfter, err := f.tasks.TaskIDs(dbctx.Context{Ctx: ctx}, f.route.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, mirrorBefore, mirrorAfter)
}

func TestRouteEditorAddMaterialRequiresKnowledgePointInCurrentCopy(t *testing.T) {
	f := newEditorFixture(t, 0)
	ctx := context.Background()

	stale := testutil.SeedRoute(t, ctx, f.db, f.user.ID, "Go", `{
	  "phases": [{"id": "p1", "title": "Basics", "tasks": [
	    {"id": "t1", "title": "Tour", "week": 1, "day": 1,
	     "knowledgePoints": [{"id": "kp1", "title": "Slices", "materials": []}]}
	  ]}],
	  "currentTasks": [{"id": "t1", "title": "Tour", "week": 1, "day": 1}]
	}`, false)

	_, err := f.editor.AddMaterial(ctx, f.user.ID, stale.ID, "t1", MaterialInput{
		Title: "Slices intro", URL: "https://go.dev/blog/slices-intro", KnowledgePointID: "kp1",
	})
	assert.Equal(t, apierr.NotFound, apierr.KindOf(err))
	assert.Equal(t, "knowledge_point_not_found", apierr.CodeOf(err))

	route, err := f.editor.GetRoute(ctx, f.user.ID, stale.ID)
	require.NoError(t, err)
	rm := roadmap.Parse(route.RoadmapData)
	loc, ok := rm.FindTask("t1")
	require.True(t, ok)
	assert.Empty(t, rm.TaskAt(loc).KnowledgePoints[0].Materials)
}
