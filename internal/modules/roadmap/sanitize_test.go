package roadmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeMaterial(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		in      Material
		wantErr error
		want    Material
	}{
		{"trims and defaults type", Material{Title: "  Go Tour ", URL: " https://go.dev/tour ", Type: "podcast"}, nil,
			Material{Title: "Go Tour", URL: "https://go.dev/tour", Type: MaterialArticle}},
		{"video kept", Material{Title: "v", URL: "HTTP://x.dev", Type: MaterialVideo}, nil,
			Material{Title: "v", URL: "HTTP://x.dev", Type: MaterialVideo}},
		{"generated url", Material{Title: "notes", URL: "About:Generated/abc", IsGenerated: true, Content: " body "}, nil,
			Material{Title: "notes", URL: "About:Generated/abc", Type: MaterialArticle, IsGenerated: true, Content: "body"}},
		{"blank title", Material{Title: "  ", URL: "https://x"}, ErrMaterialTitleRequired, Material{}},
		{"bad scheme", Material{Title: "t", URL: "ftp://x"}, ErrMaterialURLInvalid, Material{}},
		{"relative url", Material{Title: "t", URL: "/docs"}, ErrMaterialURLInvalid, Material{}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := SanitizeMaterial(tc.in)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSanitizeMaterialsDedupesByURL(t *testing.T) {
	t.Parallel()
	got := SanitizeMaterials([]Material{
		{Title: "first", URL: "https://a"},
		{Title: "b", URL: "https://b"},
		{Title: "", URL: "https://c"},
		{Title: "last", URL: "https://a"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "last", got[0].Title)
	assert.Equal(t, "https://b", got[1].URL)

	urls := map[string]bool{}
	for _, m := range got {
		assert.False(t, urls[m.URL], "duplicate url %s", m.URL)
		urls[m.URL] = true
	}
}

func TestSanitizeKnowledgePoints(t *testing.T) {
	t.Parallel()
	got := SanitizeKnowledgePoints([]KnowledgePoint{
		{ID: " kp1 ", Title: " One ", Description: "  d  ", Materials: []Material{{Title: "x", URL: "bad"}}},
		{ID: "kp2", Title: ""},
		{ID: "kp1", Title: "dup"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, KnowledgePoint{ID: "kp1", Title: "One", Description: "d", Materials: []Material{}}, got[0])
}
