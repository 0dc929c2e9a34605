package cards

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/platform/dbctx"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

// CardFilter narrows ListByUser. Zero values mean "no filter".
type CardFilter struct {
	TagID   uuid.UUID
	RouteID uuid.UUID
	Search  string
	Limit   int
	Offset  int
}

type CardRepo interface {
	Create(dbc dbctx.Context, rows []*types.Flashcard) ([]*types.Flashcard, error)
	AttachTags(dbc dbctx.Context, cardIDs, tagIDs []uuid.UUID) error

	GetByIDAndUser(dbc dbctx.Context, id, userID uuid.UUID) (*types.Flashcard, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, f CardFilter) ([]*types.Flashcard, int64, error)

	DetachRoute(dbc dbctx.Context, routeID uuid.UUID) error
	Delete(dbc dbctx.Context, id, userID uuid.UUID) (bool, error)
}

type cardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCardRepo(db *gorm.DB, baseLog *logger.Logger) CardRepo {
	return &cardRepo{db: db, log: baseLog.With("repo", "CardRepo")}
}

func (r *cardRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *cardRepo) Create(dbc dbctx.Context, rows []*types.Flashcard) ([]*types.Flashcard, error) {
	if len(rows) == 0 {
		return []*types.Flashcard{}, nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	if err := r.tx(dbc).Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("create flashcards: %w", err)
	}
	return rows, nil
}

func (r *cardRepo) AttachTags(dbc dbctx.Context, cardIDs, tagIDs []uuid.UUID) error {
	if len(cardIDs) == 0 || len(tagIDs) == 0 {
		return nil
	}
	links := make([]*types.CardTag, 0, len(cardIDs)*len(tagIDs))
	for _, c := range cardIDs {
		for _, t := range tagIDs {
			links = append(links, &types.CardTag{CardID: c, TagID: t})
		}
	}
	return r.tx(dbc).Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
}

func (r *cardRepo) GetByIDAndUser(dbc dbctx.Context, id, userID uuid.UUID) (*types.Flashcard, error) {
	var rows []*types.Flashcard
	if err := r.tx(dbc).Where("id = ? AND user_id = ?", id, userID).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get flashcard: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if err := r.loadTags(dbc, rows); err != nil {
		return nil, err
	}
	return rows[0], nil
}

func (r *cardRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, f CardFilter) ([]*types.Flashcard, int64, error) {
	filtered := func() *gorm.DB {
		q := r.tx(dbc).Model(&types.Flashcard{}).Where("flashcards.user_id = ?", userID)
		if f.TagID != uuid.Nil {
			q = q.Where("flashcards.id IN (?)", r.tx(dbc).Model(&types.CardTag{}).Select("card_id").Where("tag_id = ?", f.TagID))
		}
		if f.RouteID != uuid.Nil {
			q = q.Where("flashcards.route_id = ?", f.RouteID)
		}
		if s := strings.TrimSpace(f.Search); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("(LOWER(flashcards.question) LIKE ? OR LOWER(flashcards.answer) LIKE ?)", like, like)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count flashcards: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var out []*types.Flashcard
	if err := filtered().Order("flashcards.created_at DESC").Limit(limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list flashcards: %w", err)
	}
	if err := r.loadTags(dbc, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *cardRepo) loadTags(dbc dbctx.Context, cards []*types.Flashcard) error {
	if len(cards) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(cards))
	for _, c := range cards {
		c.Tags = []*types.Tag{}
		ids = append(ids, c.ID)
	}
	var links []*types.CardTag
	if err := r.tx(dbc).Where("card_id IN ?", ids).Find(&links).Error; err != nil {
		return fmt.Errorf("load card tags: %w", err)
	}
	if len(links) == 0 {
		return nil
	}
	tagIDs := make([]uuid.UUID, 0, len(links))
	for _, l := range links {
		tagIDs = append(tagIDs, l.TagID)
	}
	var tags []*types.Tag
	if err := r.tx(dbc).Where("id IN ?", tagIDs).Order("name ASC").Find(&tags).Error; err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	byID := make(map[uuid.UUID]*types.Tag, len(tags))
	for _, t := range tags {
		byID[t.ID] = t
	}
	byCard := make(map[uuid.UUID]*types.Flashcard, len(cards))
	for _, c := range cards {
		byCard[c.ID] = c
	}
	for _, l := range links {
		if c, t := byCard[l.CardID], byID[l.TagID]; c != nil && t != nil {
			c.Tags = append(c.Tags, t)
		}
	}
	return nil
}

func (r *cardRepo) DetachRoute(dbc dbctx.Context, routeID uuid.UUID) error {
	return r.tx(dbc).Model(&types.Flashcard{}).
		Where("route_id = ?", routeID).
		Updates(map[string]interface{}{"route_id": nil, "updated_at": time.Now().UTC()}).Error
}

func (r *cardRepo) Delete(dbc dbctx.Context, id, userID uuid.UUID) (bool, error) {
	t := r.tx(dbc)
	res := t.Where("id = ? AND user_id = ?", id, userID).Delete(&types.Flashcard{})
	if res.Error != nil {
		return false, fmt.Errorf("delete flashcard: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := t.Where("card_id = ?", id).Delete(&types.CardTag{}).Error; err != nil {
		return false, fmt.Errorf("delete card tags: %w", err)
	}
	return true, nil
}
