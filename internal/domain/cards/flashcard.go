package cards

import (
	"time"

	"github.com/google/uuid"
)

type Flashcard struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	RouteID        *uuid.UUID `gorm:"type:uuid;index" json:"route_id"`
	Question       string     `gorm:"column:question;type:text;not null" json:"question"`
	Answer         string     `gorm:"column:answer;type:text;not null" json:"answer"`
	CodeSnippet    *string    `gorm:"column:code_snippet;type:text" json:"code_snippet"`
	SourceURL      *string    `gorm:"column:source_url;type:text" json:"source_url"`
	SourceTitle    *string    `gorm:"column:source_title;type:text" json:"source_title"`
	Difficulty     *string    `gorm:"column:difficulty;type:text" json:"difficulty"`
	ReviewCount    int        `gorm:"column:review_count;not null" json:"review_count"`
	IsReviewed     bool       `gorm:"column:is_reviewed;not null" json:"is_reviewed"`
	LastReviewedAt *time.Time `gorm:"column:last_reviewed_at" json:"last_reviewed_at"`
	CreatedAt      time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`

	Tags []*Tag `gorm:"-" json:"tags"`
}

func (Flashcard) TableName() string { return "flashcards" }

// Tag belongs to a user, or is global when UserID is nil.
type Tag struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Name      string     `gorm:"column:name;type:text;not null;index" json:"name"`
	Color     string     `gorm:"column:color;type:text;not null" json:"color"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
}

func (Tag) TableName() string { return "tags" }

type CardTag struct {
	CardID uuid.UUID `gorm:"type:uuid;primaryKey" json:"card_id"`
	TagID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"tag_id"`
}

func (CardTag) TableName() string { return "card_tags" }
