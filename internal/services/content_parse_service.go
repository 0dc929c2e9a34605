package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/yungbote/stackmemory-backend/internal/platform/apierr"
	"github.com/yungbote/stackmemory-backend/internal/platform/llm"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
	"github.com/yungbote/stackmemory-backend/internal/platform/scraper"
)

const cardParseTimeout = 60 * time.Second

type ParseContentInput struct {
	Content string `json:"content"`
	URL     string `json:"url" validate:"omitempty,url"`
}

type ParsedCards struct {
	Cards       []CardInput `json:"cards"`
	SourceURL   *string     `json:"sourceUrl"`
	SourceTitle *string     `json:"sourceTitle"`
}

// ContentParseService turns an article or pasted text into flashcard drafts.
// Nothing is persisted; the client reviews the drafts and saves them.
type ContentParseService interface {
	Parse(ctx context.Context, in ParseContentInput) (*ParsedCards, error)
}

type contentParseService struct {
	log     *logger.Logger
	llm     llm.Client
	scraper scraper.Scraper
}

func NewContentParseService(baseLog *logger.Logger, llmClient llm.Client, sc scraper.Scraper) ContentParseService {
	return &contentParseService{log: baseLog.With("service", "ContentParseService"), llm: llmClient, scraper: sc}
}

type cardCompletion struct {
	Cards []struct {
		Question    string `json:"question"`
		Answer      string `json:"answer"`
		CodeSnippet string `json:"codeSnippet"`
	} `json:"cards"`
}

func (s *contentParseService) Parse(ctx context.Context, in ParseContentInput) (*ParsedCards, error) {
	in.Content = strings.TrimSpace(in.Content)
	in.URL = strings.TrimSpace(in.URL)
	if err := validateInput("invalid_parse_request", in); err != nil {
		return nil, err
	}
	if in.Content == "" && in.URL == "" {
		return nil, apierr.Validationf("missing_content", "provide content or url")
	}

	out := &ParsedCards{Cards: []CardInput{}}
	content := in.Content
	if in.URL != "" {
		out.SourceURL = &in.URL
		if content == "" {
			page, err := s.scraper.Scrape(ctx, in.URL)
			if err != nil {
				return nil, apierr.Wrap(apierr.Upstream, "scrape_failed", err)
			}
			if page.Content == "" {
				return nil, apierr.New(apierr.Upstream, "scrape_empty", "no readable content at url")
			}
			content = page.Content
			out.SourceTitle = trimmedOrNil(page.Title)
		}
	}

	completion, err := s.llm.Chat(ctx, "cards", llm.ChatRequest{
		System:      cardSystemPrompt,
		User:        cardUserPrompt(content),
		Temperature: 0.7,
		MaxTokens:   4000,
		Timeout:     cardParseTimeout,
	})
	if err != nil {
		return nil, upstreamErr(err)
	}
	raw, err := llm.ExtractJSONObject(completion)
	if err != nil {
		return nil, apierr.Wrap(apierr.Upstream, "llm_invalid_json", err)
	}
	var parsed cardCompletion
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apierr.Wrap(apierr.Upstream, "llm_invalid_json", err)
	}

	for _, c := range parsed.Cards {
		q, a := strings.TrimSpace(c.Question), strings.TrimSpace(c.Answer)
		if q == "" || a == "" {
			continue
		}
		out.Cards = append(out.Cards, CardInput{
			Question:    q,
			Answer:      a,
			CodeSnippet: trimmedOrNil(c.CodeSnippet),
			SourceURL:   out.SourceURL,
			SourceTitle: out.SourceTitle,
		})
	}
	s.log.Info("content parsed", "cards", len(out.Cards), "from_url", in.URL != "")
	return out, nil
}
