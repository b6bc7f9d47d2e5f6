package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phiphung-web/redirect/internal/reqctx"
)

func TestComposeRedirect(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		rawQuery string
		want     string
	}{
		{
			name:     "existing target param untouched, new appended",
			target:   "https://x.com/?a=1",
			rawQuery: "a=2&b=3",
			want:     "https://x.com/?a=1&b=3",
		},
		{
			name:     "no target query",
			target:   "https://x.com/path",
			rawQuery: "a=1&b=2",
			want:     "https://x.com/path?a=1&b=2",
		},
		{
			name:     "no inbound params",
			target:   "https://x.com/?keep=1",
			rawQuery: "",
			want:     "https://x.com/?keep=1",
		},
		{
			name:     "duplicate inbound key appended once",
			target:   "https://x.com/",
			rawQuery: "a=1&a=2",
			want:     "https://x.com/?a=1",
		},
		{
			name:     "inbound order preserved",
			target:   "https://x.com/",
			rawQuery: "z=9&a=1&m=5",
			want:     "https://x.com/?z=9&a=1&m=5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComposeRedirect(tt.target, reqctx.ParseQuery(tt.rawQuery))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComposeRedirect_BadTarget(t *testing.T) {
	_, err := ComposeRedirect("not a url", nil)
	assert.Error(t, err)

	_, err = ComposeRedirect("/relative/only", nil)
	assert.Error(t, err)
}

func TestComposeRedirect_EscapesValues(t *testing.T) {
	got, err := ComposeRedirect("https://x.com/", []reqctx.Param{{Key: "msg", Value: "a b&c"}})
	require.NoError(t, err)
	assert.Equal(t, "https://x.com/?msg=a+b%26c", got)
}
