package safepage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFill_Defaults(t *testing.T) {
	d := Fill(nil, "promo.example.com")
	assert.Equal(t, "News", d.Title)
	assert.Equal(t, "News", d.Headline)
	assert.Equal(t, "#333", d.ThemeColor)
	assert.Empty(t, d.Logo)
	assert.Equal(t, "promo.example.com", d.Domain)
}

func TestFill_ContentWins(t *testing.T) {
	d := Fill(map[string]string{
		"title":       "Daily",
		"headline":    "Top Stories",
		"theme_color": "#0a0",
		"logo":        "/l.png",
	}, "promo.example.com")
	assert.Equal(t, "Daily", d.Title)
	assert.Equal(t, "Top Stories", d.Headline)
	assert.Equal(t, "#0a0", d.ThemeColor)
	assert.Equal(t, "/l.png", d.Logo)
}

func TestRender_KnownTemplates(t *testing.T) {
	for _, tpl := range []string{"news", "shop", "landing"} {
		t.Run(tpl, func(t *testing.T) {
			var buf bytes.Buffer
			err := Render(&buf, tpl, Fill(nil, "promo.example.com"))
			require.NoError(t, err)
			assert.Contains(t, buf.String(), "promo.example.com")
			assert.Contains(t, buf.String(), "News")
		})
	}
}

func TestRender_UnknownTemplateFallsBack(t *testing.T) {
	var known, unknown bytes.Buffer
	require.NoError(t, Render(&known, "news", Fill(nil, "h")))
	require.NoError(t, Render(&unknown, "no-such-template", Fill(nil, "h")))
	assert.Equal(t, known.String(), unknown.String())

	var empty bytes.Buffer
	require.NoError(t, Render(&empty, "", Fill(nil, "h")))
	assert.Equal(t, known.String(), empty.String())
}
