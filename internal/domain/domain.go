package domain

import (
	"github.com/yungbote/stackmemory-backend/internal/domain/cards"
	"github.com/yungbote/stackmemory-backend/internal/domain/routes"
	"github.com/yungbote/stackmemory-backend/internal/domain/user"
)

type (
	Route     = routes.Route
	RouteTask = routes.RouteTask

	Flashcard = cards.Flashcard
	Tag       = cards.Tag
	CardTag   = cards.CardTag

	User = user.User
)

// Models lists every persisted type in migration order.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Route{},
		&RouteTask{},
		&Tag{},
		&Flashcard{},
		&CardTag{},
	}
}
