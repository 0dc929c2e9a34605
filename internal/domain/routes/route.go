package routes

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Route is one learning roadmap owned by a user. RoadmapData holds the
// authoritative task tree; RouteTask rows mirror it for relational queries.
type Route struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Topic       string         `gorm:"column:topic;type:text;not null" json:"topic"`
	Background  *string        `gorm:"column:background;type:text" json:"background"`
	Goals       *string        `gorm:"column:goals;type:text" json:"goals"`
	Weeks       int            `gorm:"column:weeks;not null" json:"weeks"`
	RoadmapData datatypes.JSON `gorm:"column:roadmap_data;type:jsonb" json:"roadmap_data,omitempty"`
	IsCurrent   bool           `gorm:"column:is_current;not null;index" json:"is_current"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;index" json:"updated_at"`
}

func (Route) TableName() string { return "routes" }
