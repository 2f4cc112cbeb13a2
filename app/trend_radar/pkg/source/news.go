package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

const (
	newsMaxResults     = 10
	newsTrendingCount  = 15
	newsAssumedDaysOld = 3
)

var newsScoreKeys = []string{"score", "points"}

var newsLayout = Layout{
	ListKeys:  []string{"posts", "stories", "data", "hits", "results"},
	ParseText: parseNewsText,
}

func parseNewsText(text string) []Record {
	if noResults(text) {
		return nil
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "1.") || strings.Contains(trimmed, "ID:") {
		return ParseNumbered(trimmed)
	}
	return ParseBlocks(trimmed)
}

// NewsAdapter 社区资讯聚合检索
//
// 依次尝试: 英文关键词搜索、宽泛检索词、热门列表、RSS。
type NewsAdapter struct {
	base
}

// Research 实现 Adapter
func (a *NewsAdapter) Research(ctx context.Context, inv Invoker, keyword string) model.ResearchResult {
	res := a.newResult(keyword)
	connected := inv.Available(a.source())
	if !connected && a.deps.News.FeedURL == "" {
		return a.notConnected(keyword)
	}

	query := a.deps.Translator.ToEnglish(ctx, keyword)
	var records []Record
	if connected {
		records = a.searchChain(ctx, inv, query)
	}

	var items []model.Item
	if records != nil {
		items = a.toItems(records)
	} else if a.deps.News.FeedURL != "" {
		feedItems, err := a.fromFeed(ctx, query)
		if err != nil {
			logger.Log.Warnf("RSS 兜底失败: %v", err)
		}
		items = feedItems
	}

	if len(items) == 0 {
		return res.Failed(ErrNoResults.Error())
	}
	res.Results = items
	res.EngagementMetrics = newsMetrics(items)
	return res
}

// searchChain 返回第一组可用记录，全部失败时返回 nil
func (a *NewsAdapter) searchChain(ctx context.Context, inv Invoker, query string) []Record {
	searchTool := a.tool(0, "search")
	try := func(tool string, args map[string]any) []Record {
		records, err := a.call(ctx, inv, tool, args, newsLayout)
		if err != nil {
			logger.Log.Warnf("资讯工具 %s 调用失败: %v", tool, err)
			return nil
		}
		if Unusable(records, newsScoreKeys...) {
			return nil
		}
		return records
	}

	if r := try(searchTool, map[string]any{"query": query, "max_results": newsMaxResults}); r != nil {
		return r
	}
	for _, term := range a.deps.Translator.BroaderTerms(ctx, query) {
		if ctx.Err() != nil {
			return nil
		}
		logger.Log.Infof("资讯检索 [%s] 无有效结果，尝试 [%s]", query, term)
		if r := try(searchTool, map[string]any{"query": term, "max_results": newsMaxResults}); r != nil {
			return r
		}
	}
	return try(a.tool(1, "getStories"), map[string]any{"max_results": newsTrendingCount})
}

func (a *NewsAdapter) toItems(records []Record) []model.Item {
	now := a.deps.Now()
	items := make([]model.Item, 0, len(records))
	for _, r := range records {
		title := r.Str("title")
		if title == "" {
			continue
		}
		item := model.Item{
			Title:       title,
			URL:         r.Str("url", "link"),
			ID:          r.Str("id", "objectID"),
			Author:      r.Str("by", "author"),
			PublishedAt: r.Str("created_at", "created_time"),
		}
		item.Points, _ = r.Int(newsScoreKeys...)
		item.Comments, _ = r.Int("descendants", "comments_count", "num_comments", "comments")
		if item.URL == "" && item.ID != "" {
			item.URL = "https://news.ycombinator.com/item?id=" + item.ID
		}

		item.DaysOld = newsAssumedDaysOld
		created := r["time"]
		if created == nil {
			created = item.PublishedAt
		}
		if ts, ok := parseTime(created); ok {
			item.DaysOld = daysSince(now, ts)
			if item.PublishedAt == "" {
				item.PublishedAt = ts.Format("2006-01-02T15:04:05Z07:00")
			}
		}
		item.IsRecent = item.DaysOld <= 7
		item.TrendScore = newsTrendScore(item.Points, item.DaysOld, item.Comments)
		items = append(items, item)
	}
	return items
}

func (a *NewsAdapter) fromFeed(ctx context.Context, query string) ([]model.Item, error) {
	feedURL := a.deps.News.FeedURL
	if strings.Contains(feedURL, "%s") {
		feedURL = fmt.Sprintf(feedURL, url.QueryEscape(query))
	}
	feed, err := gofeed.NewParser().ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed failed: %w", err)
	}

	now := a.deps.Now()
	items := make([]model.Item, 0, len(feed.Items))
	for _, fi := range feed.Items {
		if fi.Title == "" {
			continue
		}
		item := model.Item{
			Title:       fi.Title,
			URL:         fi.Link,
			Description: truncateRunes(stripHTML(fi.Description), 500),
			Author:      feedAuthor(fi),
			DaysOld:     newsAssumedDaysOld,
		}
		if fi.PublishedParsed != nil {
			item.PublishedAt = fi.PublishedParsed.Format("2006-01-02T15:04:05Z07:00")
			item.DaysOld = daysSince(now, *fi.PublishedParsed)
		}
		item.IsRecent = item.DaysOld <= 7
		item.TrendScore = newsTrendScore(0, item.DaysOld, 0)
		items = append(items, item)
	}
	return items, nil
}

func feedAuthor(fi *gofeed.Item) string {
	if len(fi.Authors) > 0 && fi.Authors[0] != nil {
		return fi.Authors[0].Name
	}
	if fi.Author != nil {
		return fi.Author.Name
	}
	return ""
}

func newsTrendScore(points, days, comments int) float64 {
	score := 0.0
	switch {
	case points > 100:
		score += 30
	case points > 50:
		score += 20
	case points > 20:
		score += 10
	}
	switch {
	case days <= 1:
		score += 25
	case days <= 3:
		score += 15
	case days <= 7:
		score += 5
	}
	switch {
	case comments > 50:
		score += 20
	case comments > 20:
		score += 10
	case comments > 5:
		score += 5
	}
	return score
}

func newsMetrics(items []model.Item) map[string]float64 {
	m := map[string]float64{"post_count": float64(len(items))}
	if len(items) == 0 {
		return m
	}

	var recent, points, comments int
	authors := make([]string, 0, len(items))
	for _, it := range items {
		if it.IsRecent {
			recent++
		}
		points += it.Points
		comments += it.Comments
		authors = append(authors, it.Author)
	}
	n := float64(len(items))
	m["recent_posts"] = float64(recent)
	m["avg_score"] = round2(float64(points) / n)
	m["avg_comments"] = round2(float64(comments) / n)
	m["total_score"] = float64(points)
	m["total_comments"] = float64(comments)
	addTop(m, "top_authors", authors, 3)
	return m
}
