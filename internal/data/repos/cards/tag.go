package cards

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/platform/dbctx"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

const DefaultTagColor = "#6366f1"

type TagRepo interface {
	// ListVisible returns the user's own tags plus global ones.
	ListVisible(dbc dbctx.Context, userID uuid.UUID) ([]*types.Tag, error)
	// GetOrCreate resolves names (trimmed, lowercased) to tag ids, creating user tags as needed.
	GetOrCreate(dbc dbctx.Context, userID uuid.UUID, names []string) ([]uuid.UUID, error)
}

type tagRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTagRepo(db *gorm.DB, baseLog *logger.Logger) TagRepo {
	return &tagRepo{db: db, log: baseLog.With("repo", "TagRepo")}
}

func (r *tagRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *tagRepo) ListVisible(dbc dbctx.Context, userID uuid.UUID) ([]*types.Tag, error) {
	var out []*types.Tag
	if err := r.tx(dbc).
		Where("user_id = ? OR user_id IS NULL", userID).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return out, nil
}

// NormalizeTagNames trims, lowercases and dedupes names, keeping first-seen order.
func NormalizeTagNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := map[string]struct{}{}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func (r *tagRepo) GetOrCreate(dbc dbctx.Context, userID uuid.UUID, names []string) ([]uuid.UUID, error) {
	clean := NormalizeTagNames(names)
	if len(clean) == 0 {
		return []uuid.UUID{}, nil
	}
	t := r.tx(dbc)

	var existing []*types.Tag
	if err := t.Where("name IN ? AND (user_id = ? OR user_id IS NULL)", clean, userID).Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("find tags: %w", err)
	}
	byName := make(map[string]uuid.UUID, len(existing))
	for _, tag := range existing {
		// A user tag shadows a global tag of the same name.
		if _, ok := byName[tag.Name]; ok && tag.UserID == nil {
			continue
		}
		byName[tag.Name] = tag.ID
	}

	var missing []*types.Tag
	for _, name := range clean {
		if _, ok := byName[name]; ok {
			continue
		}
		uid := userID
		tag := &types.Tag{ID: uuid.New(), UserID: &uid, Name: name, Color: DefaultTagColor, CreatedAt: time.Now().UTC()}
		missing = append(missing, tag)
		byName[name] = tag.ID
	}
	if len(missing) > 0 {
		if err := t.Create(&missing).Error; err != nil {
			return nil, fmt.Errorf("create tags: %w", err)
		}
	}

	ids := make([]uuid.UUID, 0, len(clean))
	for _, name := range clean {
		ids = append(ids, byName[name])
	}
	return ids, nil
}
