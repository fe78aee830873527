package steam

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"GameStatsSync/internal/model"
	"GameStatsSync/internal/paginate"
	"GameStatsSync/internal/transport"

	"github.com/PuerkitoBio/goquery"
)

var (
	helpfulRe = regexp.MustCompile(`([\d,]+)\s+(?:people|person)\s+found this review helpful`)
	funnyRe   = regexp.MustCompile(`([\d,]+)\s+(?:people|person)\s+found this review funny`)
)

// ReviewPage 社区评测页 /profiles/{id}/recommended/?p={page}，没有评测时 Items 为空
func (a *Adapter) ReviewPage(ctx context.Context, playerID string, page int) (paginate.Result[model.Review], error) {
	u := fmt.Sprintf("%s/profiles/%s/recommended/?p=%d", a.cfg.CommunityURL, playerID, page)
	payload, err := a.fetcher.Fetch(ctx, u, transport.ExpectHTML)
	if err != nil {
		return paginate.Result[model.Review]{}, err
	}
	doc, err := payload.Document()
	if err != nil {
		return paginate.Result[model.Review]{}, err
	}

	var reviews []model.Review
	now := a.now()
	doc.Find("div#leftContents div.review_box").Each(func(_ int, box *goquery.Selection) {
		href, ok := box.Find("div.leftcol a").First().Attr("href")
		if !ok {
			return
		}
		gameID, err := strconv.ParseInt(path.Base(strings.TrimRight(href, "/")), 10, 64)
		if err != nil {
			a.logger.WithField("href", href).Debug("评测游戏链接无法解析，跳过")
			return
		}
		header := box.Find("div.header").Text()
		reviews = append(reviews, model.Review{
			PlayerID: playerID,
			GameID:   gameID,
			Review:   strings.TrimSpace(box.Find("div.rightcol div.content").Text()),
			Helpful:  matchCount(helpfulRe, header),
			Funny:    matchCount(funnyRe, header),
			Awards:   sumAwards(box),
			Posted:   model.DateOf(parsePosted(box.Find("div.rightcol div.posted").Text(), now)),
		})
	})
	return paginate.Result[model.Review]{Items: reviews}, nil
}

func matchCount(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	return n
}

func sumAwards(box *goquery.Selection) int {
	total := 0
	box.Find("div.review_award_ctn div.review_award span").Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text())); err == nil {
			total += n
		}
	})
	return total
}

// parsePosted "Posted 5 March, 2019. Last edited 6 March." 取最后一个日期；
// 当年发布的评测不带年份，补上当前年份
func parsePosted(raw string, now time.Time) *time.Time {
	parts := strings.Split(strings.ReplaceAll(raw, ",", ""), ".")
	if len(parts) < 2 {
		return nil
	}
	fields := strings.Fields(parts[len(parts)-2])
	if len(fields) >= 3 {
		if t, ok := parseDay(fields[len(fields)-3:]); ok {
			return &t
		}
	}
	if len(fields) >= 2 {
		day := append(fields[len(fields)-2:len(fields):len(fields)], strconv.Itoa(now.Year()))
		if t, ok := parseDay(day); ok {
			return &t
		}
	}
	return nil
}

func parseDay(fields []string) (time.Time, bool) {
	s := strings.Join(fields, " ")
	for _, layout := range []string{"2 January 2006", "January 2 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
