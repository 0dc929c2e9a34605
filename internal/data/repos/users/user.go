package users

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/platform/dbctx"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

type UserRepo interface {
	Create(dbc dbctx.Context, row *types.User) (*types.User, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error)
	GetByEmail(dbc dbctx.Context, email string) (*types.User, error)
	EmailExists(dbc dbctx.Context, email string) (bool, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *userRepo) Create(dbc dbctx.Context, row *types.User) (*types.User, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.Email = strings.ToLower(strings.TrimSpace(row.Email))
	if err := r.tx(dbc).Create(row).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return row, nil
}

func (r *userRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	var rows []*types.User
	if err := r.tx(dbc).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *userRepo) GetByEmail(dbc dbctx.Context, email string) (*types.User, error) {
	var rows []*types.User
	if err := r.tx(dbc).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *userRepo) EmailExists(dbc dbctx.Context, email string) (bool, error) {
	var n int64
	if err := r.tx(dbc).Model(&types.User{}).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Count(&n).Error; err != nil {
		return false, fmt.Errorf("email exists: %w", err)
	}
	return n > 0, nil
}
