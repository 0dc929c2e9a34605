package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/stackmemory-backend/internal/data/repos/cards"
	"github.com/yungbote/stackmemory-backend/internal/http/response"
	"github.com/yungbote/stackmemory-backend/internal/services"
)

type CardHandler struct {
	cards  services.CardService
	parser services.ContentParseService
}

func NewCardHandler(cardService services.CardService, parser services.ContentParseService) *CardHandler {
	return &CardHandler{cards: cardService, parser: parser}
}

// GET /cards?tagId&routeId&q&limit&offset
func (h *CardHandler) ListCards(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var f cards.CardFilter
	if raw := c.Query("tagId"); raw != "" {
		if f.TagID, err = parseUUID(raw, "tagId"); err != nil {
			response.Fail(c, err)
			return
		}
	}
	if raw := c.Query("routeId"); raw != "" {
		if f.RouteID, err = parseUUID(raw, "routeId"); err != nil {
			response.Fail(c, err)
			return
		}
	}
	f.Search = strings.TrimSpace(c.Query("q"))
	if f.Limit, err = queryInt(c, "limit", services.DefaultCardListLimit); err != nil {
		response.Fail(c, err)
		return
	}
	if f.Offset, err = queryInt(c, "offset", 0); err != nil {
		response.Fail(c, err)
		return
	}
	out, err := h.cards.ListCards(c.Request.Context(), userID, f)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, out)
}

// GET /cards/:id
func (h *CardHandler) GetCard(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	cardID, err := paramUUID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	card, err := h.cards.GetCard(c.Request.Context(), userID, cardID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, card)
}

// POST /cards
func (h *CardHandler) SaveCards(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req services.SaveCardsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err)
		return
	}
	saved, err := h.cards.SaveCards(c.Request.Context(), userID, req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, saved, gin.H{"count": len(saved)})
}

// DELETE /cards/:id
func (h *CardHandler) DeleteCard(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	cardID, err := paramUUID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.cards.DeleteCard(c.Request.Context(), userID, cardID); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"deleted_card_id": cardID})
}

// GET /tags
func (h *CardHandler) ListTags(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	tags, err := h.cards.ListTags(c.Request.Context(), userID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, tags)
}

// POST /cards/parse
// Returns drafts only; nothing is stored until POST /cards.
func (h *CardHandler) ParseContent(c *gin.Context) {
	if _, err := currentUserID(c); err != nil {
		response.Fail(c, err)
		return
	}
	var req services.ParseContentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err)
		return
	}
	out, err := h.parser.Parse(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, out)
}
