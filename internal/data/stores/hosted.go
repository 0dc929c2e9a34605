package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/datatypes"

	"github.com/yungbote/stackmemory-backend/internal/data/repos/cards"
	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

// HostedCardStore talks to a hosted Postgres through a pgx pool.
type HostedCardStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewHostedCardStore(pool *pgxpool.Pool, baseLog *logger.Logger) *HostedCardStore {
	return &HostedCardStore{pool: pool, log: baseLog.With("store", "HostedCardStore")}
}

const cardColumns = `f.id, f.user_id, f.route_id, f.question, f.answer, f.code_snippet, f.source_url, f.source_title,
	f.difficulty, f.review_count, f.is_reviewed, f.last_reviewed_at, f.created_at, f.updated_at`

func scanCard(row pgx.Row) (*types.Flashcard, error) {
	var c types.Flashcard
	err := row.Scan(&c.ID, &c.UserID, &c.RouteID, &c.Question, &c.Answer, &c.CodeSnippet, &c.SourceURL, &c.SourceTitle,
		&c.Difficulty, &c.ReviewCount, &c.IsReviewed, &c.LastReviewedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Tags = []*types.Tag{}
	return &c, nil
}

func (s *HostedCardStore) GetCards(ctx context.Context, userID uuid.UUID, f cards.CardFilter) ([]*types.Flashcard, int64, error) {
	where := []string{"f.user_id = $1"}
	args := []any{userID}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+search+"%")
		where = append(where, fmt.Sprintf("(f.question ILIKE $%d OR f.answer ILIKE $%d)", len(args), len(args)))
	}
	if f.TagID != uuid.Nil {
		args = append(args, f.TagID)
		where = append(where, fmt.Sprintf("EXISTS (SELECT 1 FROM card_tags ct WHERE ct.card_id = f.id AND ct.tag_id = $%d)", len(args)))
	}
	if f.RouteID != uuid.Nil {
		args = append(args, f.RouteID)
		where = append(where, fmt.Sprintf("f.route_id = $%d", len(args)))
	}
	clause := "WHERE " + strings.Join(where, " AND ")

	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM flashcards f "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count flashcards: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	q := fmt.Sprintf("SELECT %s FROM flashcards f %s ORDER BY f.created_at DESC LIMIT $%d OFFSET $%d",
		cardColumns, clause, len(args)-1, len(args))
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list flashcards: %w", err)
	}
	defer rows.Close()

	var out []*types.Flashcard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan flashcard: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := s.loadTags(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *HostedCardStore) loadTags(ctx context.Context, list []*types.Flashcard) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(list))
	byID := make(map[uuid.UUID]*types.Flashcard, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
		byID[c.ID] = c
	}
	rows, err := s.pool.Query(ctx,
		`SELECT ct.card_id, t.id, t.user_id, t.name, t.color, t.created_at
		 FROM card_tags ct JOIN tags t ON t.id = ct.tag_id
		 WHERE ct.card_id = ANY($1) ORDER BY t.name`, ids)
	if err != nil {
		return fmt.Errorf("load card tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cardID uuid.UUID
		var t types.Tag
		if err := rows.Scan(&cardID, &t.ID, &t.UserID, &t.Name, &t.Color, &t.CreatedAt); err != nil {
			return fmt.Errorf("scan card tag: %w", err)
		}
		if c := byID[cardID]; c != nil {
			tag := t
			c.Tags = append(c.Tags, &tag)
		}
	}
	return rows.Err()
}

func (s *HostedCardStore) GetCardByID(ctx context.Context, userID, cardID uuid.UUID) (*types.Flashcard, error) {
	c, err := scanCard(s.pool.QueryRow(ctx,
		"SELECT "+cardColumns+" FROM flashcards f WHERE f.id = $1 AND f.user_id = $2", cardID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get flashcard %s: %w", cardID, err)
	}
	if err := s.loadTags(ctx, []*types.Flashcard{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *HostedCardStore) SaveCards(ctx context.Context, userID uuid.UUID, drafts []CardDraft, tagIDs []uuid.UUID) ([]*types.Flashcard, error) {
	out := make([]*types.Flashcard, 0, len(drafts))
	if len(drafts) == 0 {
		return out, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, d := range drafts {
		c := draftToRow(userID, d)
		err := tx.QueryRow(ctx,
			`INSERT INTO flashcards (id, user_id, route_id, question, answer, code_snippet, source_url, source_title, difficulty,
			                         review_count, is_reviewed, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, false, NOW(), NOW())
			 RETURNING created_at, updated_at`,
			c.ID, c.UserID, c.RouteID, c.Question, c.Answer, c.CodeSnippet, c.SourceURL, c.SourceTitle, c.Difficulty,
		).Scan(&c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert flashcard: %w", err)
		}
		c.Tags = []*types.Tag{}
		out = append(out, c)
	}
	for _, c := range out {
		for _, tagID := range tagIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO card_tags (card_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, c.ID, tagID); err != nil {
				return nil, fmt.Errorf("link card tag: %w", err)
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (s *HostedCardStore) DeleteCard(ctx context.Context, userID, cardID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM flashcards WHERE id = $1 AND user_id = $2`, cardID, userID)
	if err != nil {
		return fmt.Errorf("delete flashcard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM card_tags WHERE card_id = $1`, cardID); err != nil {
		return fmt.Errorf("delete card tags: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *HostedCardStore) GetTags(ctx context.Context, userID uuid.UUID) ([]*types.Tag, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, color, created_at FROM tags WHERE user_id = $1 OR user_id IS NULL ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()
	var out []*types.Tag
	for rows.Next() {
		var t types.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Color, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *HostedCardStore) GetOrCreateTags(ctx context.Context, userID uuid.UUID, names []string) ([]uuid.UUID, error) {
	clean := cards.NormalizeTagNames(names)
	ids := make([]uuid.UUID, 0, len(clean))
	for _, name := range clean {
		var id uuid.UUID
		err := s.pool.QueryRow(ctx,
			`SELECT id FROM tags WHERE name = $1 AND (user_id = $2 OR user_id IS NULL)
			 ORDER BY (user_id IS NULL) ASC LIMIT 1`, name, userID).Scan(&id)
		if err == nil {
			ids = append(ids, id)
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("find tag %q: %w", name, err)
		}
		id = uuid.New()
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO tags (id, user_id, name, color, created_at) VALUES ($1, $2, $3, $4, NOW())`,
			id, userID, name, cards.DefaultTagColor); err != nil {
			return nil, fmt.Errorf("create tag %q: %w", name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// HostedRouteStore is the pgx counterpart of the gorm route store.
type HostedRouteStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewHostedRouteStore(pool *pgxpool.Pool, baseLog *logger.Logger) *HostedRouteStore {
	return &HostedRouteStore{pool: pool, log: baseLog.With("store", "HostedRouteStore")}
}

const routeColumns = `id, user_id, topic, background, goals, weeks, roadmap_data, is_current, created_at, updated_at`

func scanRoute(row pgx.Row) (*types.Route, error) {
	var r types.Route
	var roadmap []byte
	if err := row.Scan(&r.ID, &r.UserID, &r.Topic, &r.Background, &r.Goals, &r.Weeks, &roadmap, &r.IsCurrent,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if roadmap != nil {
		r.RoadmapData = datatypes.JSON(roadmap)
	}
	return &r, nil
}

func roadmapArg(j datatypes.JSON) any {
	if len(j) == 0 {
		return nil
	}
	return []byte(j)
}

func (s *HostedRouteStore) ListRoutes(ctx context.Context, userID uuid.UUID, limit, offset int, includeRoadmap bool) ([]*types.Route, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM routes WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count routes: %w", err)
	}
	cols := routeColumns
	if !includeRoadmap {
		cols = strings.Replace(routeColumns, "roadmap_data", "NULL::jsonb", 1)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+cols+` FROM routes WHERE user_id = $1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()
	var out []*types.Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan route: %w", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (s *HostedRouteStore) GetRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error) {
	r, err := scanRoute(s.pool.QueryRow(ctx,
		`SELECT `+routeColumns+` FROM routes WHERE id = $1 AND user_id = $2`, routeID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get route %s: %w", routeID, err)
	}
	return r, nil
}

func (s *HostedRouteStore) GetCurrentRoute(ctx context.Context, userID uuid.UUID) (*types.Route, error) {
	r, err := scanRoute(s.pool.QueryRow(ctx,
		`SELECT `+routeColumns+` FROM routes WHERE user_id = $1 AND is_current = true ORDER BY updated_at DESC LIMIT 1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get current route: %w", err)
	}
	return r, nil
}

func (s *HostedRouteStore) CreateRoute(ctx context.Context, row *types.Route, tasks []*types.RouteTask) (*types.Route, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var n int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM routes WHERE user_id = $1`, row.UserID).Scan(&n); err != nil {
		return nil, fmt.Errorf("count routes: %w", err)
	}
	row.IsCurrent = n == 0
	out, err := scanRoute(tx.QueryRow(ctx,
		`INSERT INTO routes (id, user_id, topic, background, goals, weeks, roadmap_data, is_current, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		 RETURNING `+routeColumns,
		row.ID, row.UserID, row.Topic, row.Background, row.Goals, row.Weeks, roadmapArg(row.RoadmapData), row.IsCurrent))
	if err != nil {
		return nil, fmt.Errorf("insert route: %w", err)
	}
	if err := upsertRouteTasks(ctx, tx, out.ID, out.UserID, tasks); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func upsertRouteTasks(ctx context.Context, tx pgx.Tx, routeID, userID uuid.UUID, tasks []*types.RouteTask) error {
	if len(tasks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range tasks {
		id := t.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(
			`INSERT INTO route_tasks (id, route_id, user_id, task_id, title, task_type, status, week, day, completed_at, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
			 ON CONFLICT (route_id, task_id) DO UPDATE SET
			   title = EXCLUDED.title, task_type = EXCLUDED.task_type, status = EXCLUDED.status,
			   week = EXCLUDED.week, day = EXCLUDED.day, completed_at = EXCLUDED.completed_at, updated_at = NOW()`,
			id, routeID, userID, t.TaskID, t.Title, t.TaskType, t.Status, t.Week, t.Day, t.CompletedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert route tasks: %w", err)
	}
	return nil
}

func (s *HostedRouteStore) lockRoute(ctx context.Context, tx pgx.Tx, userID, routeID uuid.UUID) (bool, error) {
	var current bool
	err := tx.QueryRow(ctx,
		`SELECT is_current FROM routes WHERE id = $1 AND user_id = $2 FOR UPDATE`, routeID, userID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("lock route: %w", err)
	}
	return current, nil
}

func (s *HostedRouteStore) SwitchRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := s.lockRoute(ctx, tx, userID, routeID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE routes SET is_current = false WHERE user_id = $1 AND is_current = true`, userID); err != nil {
		return nil, fmt.Errorf("demote routes: %w", err)
	}
	out, err := scanRoute(tx.QueryRow(ctx,
		`UPDATE routes SET is_current = true, updated_at = NOW() WHERE id = $1 RETURNING `+routeColumns, routeID))
	if err != nil {
		return nil, fmt.Errorf("promote route: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (s *HostedRouteStore) DeleteRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	wasCurrent, err := s.lockRoute(ctx, tx, userID, routeID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM route_tasks WHERE route_id = $1`, routeID); err != nil {
		return nil, fmt.Errorf("delete route tasks: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE flashcards SET route_id = NULL, updated_at = NOW() WHERE route_id = $1`, routeID); err != nil {
		return nil, fmt.Errorf("detach flashcards: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM routes WHERE id = $1 AND user_id = $2`, routeID, userID); err != nil {
		return nil, fmt.Errorf("delete route: %w", err)
	}

	var next *types.Route
	if wasCurrent {
		next, err = scanRoute(tx.QueryRow(ctx,
			`UPDATE routes SET is_current = true, updated_at = NOW()
			 WHERE id = (SELECT id FROM routes WHERE user_id = $1 ORDER BY updated_at DESC, created_at DESC LIMIT 1)
			 RETURNING `+routeColumns, userID))
	} else {
		next, err = scanRoute(tx.QueryRow(ctx,
			`SELECT `+routeColumns+` FROM routes WHERE user_id = $1 AND is_current = true LIMIT 1`, userID))
	}
	if errors.Is(err, pgx.ErrNoRows) {
		next, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve next route: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

const routeTaskColumns = `rt.id, rt.route_id, rt.user_id, rt.task_id, rt.title, rt.task_type, rt.status, rt.week, rt.day,
	rt.completed_at, rt.created_at, rt.updated_at`

func (s *HostedRouteStore) queryTasks(ctx context.Context, q string, args ...any) ([]*types.RouteTask, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list route tasks: %w", err)
	}
	defer rows.Close()
	var out []*types.RouteTask
	for rows.Next() {
		var t types.RouteTask
		if err := rows.Scan(&t.ID, &t.RouteID, &t.UserID, &t.TaskID, &t.Title, &t.TaskType, &t.Status, &t.Week, &t.Day,
			&t.CompletedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan route task: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *HostedRouteStore) ListRouteTasks(ctx context.Context, userID, routeID uuid.UUID) ([]*types.RouteTask, error) {
	return s.queryTasks(ctx,
		`SELECT `+routeTaskColumns+` FROM route_tasks rt
		 WHERE rt.route_id = $1 AND rt.user_id = $2 ORDER BY rt.week ASC, rt.day ASC NULLS FIRST, rt.created_at ASC`,
		routeID, userID)
}

func (s *HostedRouteStore) ListCurrentRouteTasks(ctx context.Context, userID uuid.UUID) ([]*types.RouteTask, error) {
	return s.queryTasks(ctx,
		`SELECT `+routeTaskColumns+` FROM route_tasks rt JOIN routes r ON r.id = rt.route_id
		 WHERE rt.user_id = $1 AND r.is_current = true ORDER BY rt.week ASC, rt.day ASC NULLS FIRST`,
		userID)
}
