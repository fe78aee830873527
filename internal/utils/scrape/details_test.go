package scrape

import (
	"strings"
	"testing"
	"time"

	"GameStatsSync/internal/model"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestGameDetails(t *testing.T) {
	release := time.Date(2013, 9, 17, 0, 0, 0, 0, time.UTC)
	testCases := []struct {
		name string
		html string
		want model.GameDetails
	}{
		{
			name: "details",
			html: `<dl class="details"><dt>Developers</dt><dd><a>Rockstar North</a></dd>
				<dt>Genre:</dt><dd><a>Action</a><a> Open World </a></dd>
				<dt>Release Date:</dt><dd> September 17, 2013 </dd></dl>`,
			want: model.GameDetails{
				Developers:  []string{"Rockstar North"},
				Genres:      []string{"Action", "Open World"},
				ReleaseDate: &release,
			},
		},
		{
			name: "game-info",
			html: `<dl class="game-info"><dt>Publisher</dt><dd><a>Rockstar Games</a></dd>
				<dt>Release</dt><dd>17 September 2013</dd><dt>Languages:</dt><dd><a>English</a></dd></dl>`,
			want: model.GameDetails{
				Publishers:         []string{"Rockstar Games"},
				SupportedLanguages: []string{"English"},
				ReleaseDate:        &release,
			},
		},
		{
			name: "to be announced",
			html: `<dl class="details"><dt>Release Date:</dt><dd>To be announced</dd></dl>`,
			want: model.GameDetails{},
		},
		{
			name: "no block",
			html: `<p>nothing</p>`,
			want: model.GameDetails{},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			got := GameDetails(doc(t, test.html))
			require.Empty(t, cmp.Diff(test.want, got))
		})
	}
}

func TestHasGameDetails(t *testing.T) {
	require.True(t, HasGameDetails(doc(t, `<dl class="game-info"></dl>`)))
	require.False(t, HasGameDetails(doc(t, `<dl></dl>`)))
}

func TestParseDate(t *testing.T) {
	require.Equal(t, time.Date(2024, 10, 25, 0, 0, 0, 0, time.UTC), *ParseDate("October 25, 2024"))
	require.Equal(t, time.Date(2024, 10, 25, 0, 0, 0, 0, time.UTC), *ParseDate("25 October 2024"))
	for _, raw := range []string{"To be announced", "Yesterday", "Tomorrow", "", "Q3 2025"} {
		require.Nil(t, ParseDate(raw), raw)
	}
}
