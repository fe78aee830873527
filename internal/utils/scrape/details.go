package scrape

import (
	"strings"
	"time"

	"GameStatsSync/internal/model"

	"github.com/PuerkitoBio/goquery"
)

// GameDetails Exophase 与 TrueAchievements 系站点共用的 dl.details / dl.game-info 元数据块
func GameDetails(doc *goquery.Document) model.GameDetails {
	var d model.GameDetails
	dl := doc.Find("dl.details").First()
	if dl.Length() == 0 {
		dl = doc.Find("dl.game-info").First()
	}
	dl.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextAllFiltered("dd").First()
		switch strings.TrimSpace(dt.Text()) {
		case "Developer:", "Developer", "Developers":
			d.Developers = LinkTexts(dd)
		case "Publisher:", "Publisher", "Publishers":
			d.Publishers = LinkTexts(dd)
		case "Genre:", "Genre", "Genres":
			d.Genres = LinkTexts(dd)
		case "Languages:":
			d.SupportedLanguages = LinkTexts(dd)
		case "Release Date:", "Release":
			d.ReleaseDate = ParseDate(strings.TrimSpace(dd.Text()))
		}
	})
	return d
}

// HasGameDetails 页面上是否有元数据块
func HasGameDetails(doc *goquery.Document) bool {
	return doc.Find("dl.details, dl.game-info").Length() > 0
}

// LinkTexts 所有 a 标签的文本，空的跳过
func LinkTexts(s *goquery.Selection) []string {
	var out []string
	s.Find("a").Each(func(_ int, a *goquery.Selection) {
		if t := strings.TrimSpace(a.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// ParseDate "October 25, 2024" 或 "25 October 2024"；To be announced 等返回 nil
func ParseDate(raw string) *time.Time {
	switch raw {
	case "", "To be announced", "Yesterday", "Tomorrow":
		return nil
	}
	for _, layout := range []string{"January 2, 2006", "2 January 2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
