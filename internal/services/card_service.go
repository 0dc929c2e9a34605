package services

import (
	"context"
	"math/bits"
	"strings"
	"unicode"

	"github.com/go-dedup/simhash"
	"github.com/google/uuid"

	"github.com/yungbote/stackmemory-backend/internal/data/repos/cards"
	"github.com/yungbote/stackmemory-backend/internal/data/stores"
	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/platform/apierr"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

const (
	DefaultCardListLimit = 50
	MaxCardListLimit     = 200

	// nearDuplicateDistance is the largest simhash Hamming distance at which
	// two questions in one batch count as the same card.
	nearDuplicateDistance = 3
)

type CardInput struct {
	Question    string  `json:"question"`
	Answer      string  `json:"answer"`
	CodeSnippet *string `json:"codeSnippet,omitempty"`
	SourceURL   *string `json:"sourceUrl,omitempty"`
	SourceTitle *string `json:"sourceTitle,omitempty"`
	Difficulty  *string `json:"difficulty,omitempty" validate:"omitempty,oneof=简单 中等 进阶 easy medium hard"`
}

type SaveCardsInput struct {
	Cards   []CardInput `json:"cards" validate:"required,min=1,dive"`
	Tags    []string    `json:"tags"`
	RouteID *uuid.UUID  `json:"routeId"`
}

type CardList struct {
	Cards  []*types.Flashcard `json:"cards"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type CardService interface {
	ListCards(ctx context.Context, userID uuid.UUID, f cards.CardFilter) (*CardList, error)
	GetCard(ctx context.Context, userID, cardID uuid.UUID) (*types.Flashcard, error)
	// SaveCards drops blank and near-duplicate cards, then stores the rest with tags.
	SaveCards(ctx context.Context, userID uuid.UUID, in SaveCardsInput) ([]*types.Flashcard, error)
	DeleteCard(ctx context.Context, userID, cardID uuid.UUID) error
	ListTags(ctx context.Context, userID uuid.UUID) ([]*types.Tag, error)
}

type cardService struct {
	log    *logger.Logger
	cards  stores.CardStore
	routes stores.RouteStore
}

func NewCardService(baseLog *logger.Logger, cardStore stores.CardStore, routeStore stores.RouteStore) CardService {
	return &cardService{log: baseLog.With("service", "CardService"), cards: cardStore, routes: routeStore}
}

func (s *cardService) ListCards(ctx context.Context, userID uuid.UUID, f cards.CardFilter) (*CardList, error) {
	if f.Limit == 0 {
		f.Limit = DefaultCardListLimit
	}
	if f.Limit < 1 || f.Limit > MaxCardListLimit || f.Offset < 0 {
		return nil, apierr.Validationf("invalid_pagination", "limit must be 1-%d and offset must be >= 0", MaxCardListLimit)
	}
	rows, total, err := s.cards.GetCards(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*types.Flashcard{}
	}
	return &CardList{Cards: rows, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (s *cardService) GetCard(ctx context.Context, userID, cardID uuid.UUID) (*types.Flashcard, error) {
	row, err := s.cards.GetCardByID(ctx, userID, cardID)
	if err != nil {
		return nil, storeErr(err, "card_not_found", "card not found")
	}
	return row, nil
}

func (s *cardService) SaveCards(ctx context.Context, userID uuid.UUID, in SaveCardsInput) ([]*types.Flashcard, error) {
	if err := validateInput("invalid_cards", in); err != nil {
		return nil, err
	}
	if in.RouteID != nil {
		if _, err := s.routes.GetRoute(ctx, userID, *in.RouteID); err != nil {
			return nil, storeErr(err, "route_not_found", "route not found")
		}
	}

	drafts := dedupeCards(in.Cards, in.RouteID)
	if len(drafts) == 0 {
		return nil, apierr.Validationf("no_cards", "every card needs a question and an answer")
	}

	var tagIDs []uuid.UUID
	if names := cards.NormalizeTagNames(in.Tags); len(names) > 0 {
		ids, err := s.cards.GetOrCreateTags(ctx, userID, names)
		if err != nil {
			return nil, err
		}
		tagIDs = ids
	}

	out, err := s.cards.SaveCards(ctx, userID, drafts, tagIDs)
	if err != nil {
		s.log.Error("SaveCards failed", "error", err, "user_id", userID)
		return nil, err
	}
	if skipped := len(in.Cards) - len(drafts); skipped > 0 {
		s.log.Info("cards skipped", "user_id", userID, "skipped", skipped)
	}
	return out, nil
}

func (s *cardService) DeleteCard(ctx context.Context, userID, cardID uuid.UUID) error {
	return storeErr(s.cards.DeleteCard(ctx, userID, cardID), "card_not_found", "card not found")
}

func (s *cardService) ListTags(ctx context.Context, userID uuid.UUID) ([]*types.Tag, error) {
	rows, err := s.cards.GetTags(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*types.Tag{}
	}
	return rows, nil
}

func dedupeCards(in []CardInput, routeID *uuid.UUID) []stores.CardDraft {
	var (
		out    []stores.CardDraft
		hashes []uint64
	)
next:
	for _, c := range in {
		q := strings.TrimSpace(c.Question)
		a := strings.TrimSpace(c.Answer)
		if q == "" || a == "" {
			continue
		}
		h := questionHash(q)
		for _, seen := range hashes {
			if bits.OnesCount64(h^seen) <= nearDuplicateDistance {
				continue next
			}
		}
		hashes = append(hashes, h)
		out = append(out, stores.CardDraft{
			Question:    q,
			Answer:      a,
			CodeSnippet: c.CodeSnippet,
			SourceURL:   trimmedPtr(c.SourceURL),
			SourceTitle: trimmedPtr(c.SourceTitle),
			Difficulty:  c.Difficulty,
			RouteID:     routeID,
		})
	}
	return out
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return trimmedOrNil(*s)
}

// questionFeatures yields rune bigrams of the lowercased question, skipping
// spaces and punctuation so formatting differences hash identically.
type questionFeatures string

func (q questionFeatures) GetFeatures() []simhash.Feature {
	var runes []rune
	for _, r := range strings.ToLower(string(q)) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		runes = append(runes, r)
	}
	features := make([]simhash.Feature, 0, len(runes))
	for i := 0; i+1 < len(runes); i++ {
		features = append(features, simhash.NewFeature([]byte(string(runes[i:i+2]))))
	}
	if len(runes) < 4 {
		for _, r := range runes {
			features = append(features, simhash.NewFeature([]byte(string(r))))
		}
	}
	return features
}

func questionHash(q string) uint64 {
	return simhash.NewSimhash().GetSimhash(questionFeatures(q))
}
