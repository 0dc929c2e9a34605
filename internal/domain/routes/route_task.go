package routes

import (
	"time"

	"github.com/google/uuid"
)

type RouteTask struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RouteID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_route_tasks_route_task,priority:1" json:"route_id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	TaskID      string     `gorm:"column:task_id;type:text;not null;uniqueIndex:idx_route_tasks_route_task,priority:2" json:"task_id"`
	Title       string     `gorm:"column:title;type:text;not null" json:"title"`
	TaskType    string     `gorm:"column:task_type;type:text;not null" json:"task_type"`
	Status      string     `gorm:"column:status;type:text;not null;index" json:"status"`
	Week        int        `gorm:"column:week;not null" json:"week"`
	Day         *int       `gorm:"column:day" json:"day"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (RouteTask) TableName() string { return "route_tasks" }

func (t *RouteTask) SlotWeek() int { return t.Week }

func (t *RouteTask) SlotDay() int {
	if t.Day == nil {
		return 0
	}
	return *t.Day
}

func (t *RouteTask) SetSlotDay(day int) { t.Day = &day }
