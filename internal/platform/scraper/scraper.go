package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

const (
	DefaultTimeout = 30 * time.Second
	// MaxContentRunes caps extracted text before it is handed to the LLM.
	MaxContentRunes = 10000
	maxBodyBytes    = 5 << 20
	userAgent       = "StackMemory/1.0 (Educational Tool)"
)

type Page struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Scraper interface {
	Scrape(ctx context.Context, rawURL string) (*Page, error)
}

type scraper struct {
	log        *logger.Logger
	httpClient *http.Client
}

func New(timeout time.Duration, baseLog *logger.Logger) Scraper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &scraper{
		log:        baseLog.With("client", "Scraper"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *scraper) Scrape(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("scraper: invalid url %q", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraper: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scraper: HTTP %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("scraper: parse: %w", err)
	}
	page := Extract(doc, u.Hostname())
	s.log.Debug("page scraped", "host", u.Hostname(), "chars", len(page.Content))
	return page, nil
}

var (
	dropTags = map[atom.Atom]bool{
		atom.Script: true, atom.Style: true, atom.Noscript: true,
		atom.Nav: true, atom.Header: true, atom.Footer: true, atom.Aside: true,
	}
	dropClasses = []string{"sidebar", "advertisement", "ad", "ads", "social-share", "comments"}
	dropRoles   = map[string]bool{"banner": true, "navigation": true, "complementary": true}

	blankLines = regexp.MustCompile(`\n{3,}`)
	spaceRuns  = regexp.MustCompile(`[ \t]{2,}`)
)

// Extract pulls a title and the main article text out of a parsed document.
// fallbackTitle is used when the page has neither an h1 nor a title.
func Extract(doc *html.Node, fallbackTitle string) *Page {
	prune(doc)

	title := strings.TrimSpace(textOf(find(doc, byAtom(atom.H1))))
	if title == "" {
		title = strings.TrimSpace(textOf(find(doc, byAtom(atom.Title))))
	}
	if title == "" {
		title = fallbackTitle
	}

	var content string
	for _, match := range []func(*html.Node) bool{
		byAtom(atom.Article),
		byAttr("role", "main"),
		byClass("post-content"),
		byClass("article-content"),
		byClass("entry-content"),
		byClass("content"),
		byAtom(atom.Main),
	} {
		if n := find(doc, match); n != nil {
			content = strings.TrimSpace(textOf(n))
			break
		}
	}
	if content == "" {
		content = strings.TrimSpace(textOf(find(doc, byAtom(atom.Body))))
	}
	return &Page{Title: title, Content: clean(content)}
}

func clean(s string) string {
	s = blankLines.ReplaceAllString(s, "\n\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > MaxContentRunes {
		s = string(r[:MaxContentRunes]) + "..."
	}
	return s
}

func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && unwanted(c) {
			n.RemoveChild(c)
		} else {
			prune(c)
		}
		c = next
	}
}

func unwanted(n *html.Node) bool {
	if dropTags[n.DataAtom] {
		return true
	}
	if dropRoles[attr(n, "role")] {
		return true
	}
	for _, cls := range dropClasses {
		if hasClass(n, cls) {
			return true
		}
	}
	return false
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, cls string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == cls {
			return true
		}
	}
	return false
}

func byAtom(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.DataAtom == a }
}

func byAttr(key, val string) func(*html.Node) bool {
	return func(n *html.Node) bool { return attr(n, key) == val }
}

func byClass(cls string) func(*html.Node) bool {
	return func(n *html.Node) bool { return hasClass(n, cls) }
}
