package roadmap

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrMaterialTitleRequired = errors.New("material title is required")
	ErrMaterialURLInvalid    = errors.New("material url must be http(s) or about:generated/")

	httpURLPattern      = regexp.MustCompile(`(?i)^https?://`)
	generatedURLPattern = regexp.MustCompile(`(?i)^about:generated/`)
)

// IsAcceptedMaterialURL reports whether url is an http(s) link or a synthetic about:generated/ reference.
func IsAcceptedMaterialURL(url string) bool {
	return httpURLPattern.MatchString(url) || generatedURLPattern.MatchString(url)
}

// IsGeneratedURL reports whether url points at locally generated content.
func IsGeneratedURL(url string) bool {
	return generatedURLPattern.MatchString(url)
}

// SanitizeMaterial trims and validates a single material.
func SanitizeMaterial(in Material) (Material, error) {
	title := strings.TrimSpace(in.Title)
	url := strings.TrimSpace(in.URL)
	if title == "" {
		return Material{}, ErrMaterialTitleRequired
	}
	if !IsAcceptedMaterialURL(url) {
		return Material{}, ErrMaterialURLInvalid
	}
	typ := MaterialArticle
	if in.Type == MaterialVideo {
		typ = MaterialVideo
	}
	return Material{
		Title:       title,
		URL:         url,
		Type:        typ,
		IsGenerated: in.IsGenerated,
		Content:     strings.TrimSpace(in.Content),
	}, nil
}

// SanitizeMaterials drops invalid entries and collapses duplicate urls.
// A duplicate keeps the position of its first occurrence and the value of its last.
func SanitizeMaterials(in []Material) []Material {
	out := make([]Material, 0, len(in))
	index := make(map[string]int, len(in))
	for _, raw := range in {
		m, err := SanitizeMaterial(raw)
		if err != nil {
			continue
		}
		if i, ok := index[m.URL]; ok {
			out[i] = m
			continue
		}
		index[m.URL] = len(out)
		out = append(out, m)
	}
	return out
}

// SanitizeKnowledgePoints keeps points with a non-blank id and title; later duplicate ids are dropped.
func SanitizeKnowledgePoints(in []KnowledgePoint) []KnowledgePoint {
	out := make([]KnowledgePoint, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, kp := range in {
		id := strings.TrimSpace(kp.ID)
		title := strings.TrimSpace(kp.Title)
		if id == "" || title == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, KnowledgePoint{
			ID:          id,
			Title:       title,
			Description: strings.TrimSpace(kp.Description),
			Materials:   SanitizeMaterials(kp.Materials),
		})
	}
	return out
}
