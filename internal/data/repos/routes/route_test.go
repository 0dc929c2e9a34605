package routes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/stackmemory-backend/internal/data/repos/testutil"
	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/pkg/pointers"
	"github.com/yungbote/stackmemory-backend/internal/platform/dbctx"
)

func TestRouteRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewRouteRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	u := testutil.SeedUser(t, ctx, db, uuid.NewString()+"@example.com")
	other := testutil.SeedUser(t, ctx, db, uuid.NewString()+"@example.com")

	r1, err := repo.Create(dbc, &types.Route{UserID: u.ID, Topic: "Go", Weeks: 4, IsCurrent: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	r2, err := repo.Create(dbc, &types.Route{UserID: u.ID, Topic: "Rust", Weeks: 8})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got, err := repo.GetByIDAndUser(dbc, r1.ID, u.ID); err != nil || got == nil || got.Topic != "Go" {
		t.Fatalf("GetByIDAndUser: got=%v err=%v", got, err)
	}
	if got, err := repo.GetByIDAndUser(dbc, r1.ID, other.ID); err != nil || got != nil {
		t.Fatalf("GetByIDAndUser(other user): got=%v err=%v", got, err)
	}
	if cur, err := repo.GetCurrent(dbc, u.ID); err != nil || cur == nil || cur.ID != r1.ID {
		t.Fatalf("GetCurrent: got=%v err=%v", cur, err)
	}
	if n, err := repo.CountByUser(dbc, u.ID); err != nil || n != 2 {
		t.Fatalf("CountByUser: n=%d err=%v", n, err)
	}
	rows, err := repo.ListByUser(dbc, u.ID, 1, 0, false)
	if err != nil || len(rows) != 1 || rows[0].ID != r2.ID {
		t.Fatalf("ListByUser: rows=%v err=%v", rows, err)
	}
	if rows[0].RoadmapData != nil {
		t.Fatalf("ListByUser without roadmap should omit roadmap_data")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		locked, err := repo.LockByIDAndUser(txc, r2.ID, u.ID)
		if err != nil || locked == nil {
			t.Fatalf("LockByIDAndUser: got=%v err=%v", locked, err)
		}
		if err := repo.DemoteAll(txc, u.ID); err != nil {
			return err
		}
		return repo.Promote(txc, r2.ID)
	})
	if err != nil {
		t.Fatalf("switch tx: %v", err)
	}
	if cur, _ := repo.GetCurrent(dbc, u.ID); cur == nil || cur.ID != r2.ID {
		t.Fatalf("expected r2 current, got %v", cur)
	}
	if _, err := repo.LockByIDAndUser(dbc, r2.ID, u.ID); err == nil {
		t.Fatalf("LockByIDAndUser without tx should fail")
	}

	if ok, err := repo.Delete(dbc, r1.ID, other.ID); err != nil || ok {
		t.Fatalf("Delete(other user): ok=%v err=%v", ok, err)
	}
	if ok, err := repo.Delete(dbc, r1.ID, u.ID); err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if recent, err := repo.GetMostRecent(dbc, u.ID); err != nil || recent == nil || recent.ID != r2.ID {
		t.Fatalf("GetMostRecent: got=%v err=%v", recent, err)
	}
}

func TestRouteTaskRepoReconcile(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewRouteTaskRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	u := testutil.SeedUser(t, ctx, db, uuid.NewString()+"@example.com")
	route := testutil.SeedRoute(t, ctx, db, u.ID, "Go", `{}`, true)

	now := time.Now().UTC()
	first := []*types.RouteTask{
		{TaskID: "a", Title: "A", TaskType: "学习", Status: "pending", Week: 1, Day: pointers.Int(1)},
		{TaskID: "b", Title: "B", TaskType: "学习", Status: "completed", Week: 1, Day: pointers.Int(2), CompletedAt: &now},
	}
	if err := repo.Reconcile(dbc, route.ID, u.ID, first); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	second := []*types.RouteTask{
		{TaskID: "b", Title: "B2", TaskType: "实操", Status: "pending", Week: 2},
		{TaskID: "c", Title: "C", TaskType: "复盘", Status: "pending", Week: 1, Day: pointers.Int(3)},
	}
	if err := repo.Reconcile(dbc, route.ID, u.ID, second); err != nil {
		t.Fatalf("Reconcile again: %v", err)
	}

	ids, err := repo.TaskIDs(dbc, route.ID)
	if err != nil {
		t.Fatalf("TaskIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "c" {
		t.Fatalf("TaskIDs: %v", ids)
	}

	rows, err := repo.ListByRoute(dbc, route.ID, u.ID)
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListByRoute: rows=%d err=%v", len(rows), err)
	}
	if rows[0].TaskID != "c" || rows[1].TaskID != "b" {
		t.Fatalf("ordering by week/day: %s, %s", rows[0].TaskID, rows[1].TaskID)
	}
	b := rows[1]
	if b.Title != "B2" || b.TaskType != "实操" || b.Status != "pending" || b.Week != 2 || b.Day != nil || b.CompletedAt != nil {
		t.Fatalf("upsert did not overwrite row: %+v", b)
	}

	current, err := repo.ListCurrentByUser(dbc, u.ID)
	if err != nil || len(current) != 2 {
		t.Fatalf("ListCurrentByUser: rows=%d err=%v", len(current), err)
	}

	if err := repo.Reconcile(dbc, route.ID, u.ID, nil); err != nil {
		t.Fatalf("Reconcile empty: %v", err)
	}
	if ids, _ := repo.TaskIDs(dbc, route.ID); len(ids) != 0 {
		t.Fatalf("expected no rows, got %v", ids)
	}
}
