package source

import (
	"context"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/search"
)

const (
	webMaxResults   = 10
	webEnrichTop    = 3
	webContentRunes = 1000
)

var webLayout = Layout{
	ListKeys:  []string{"results", "items", "data"},
	ParseText: ParseBlocks,
}

// WebAdapter 网页搜索
type WebAdapter struct {
	base
}

// Research 实现 Adapter
func (a *WebAdapter) Research(ctx context.Context, inv Invoker, keyword string) model.ResearchResult {
	res := a.newResult(keyword)

	var (
		items []model.Item
		err   error
	)
	if inv.Available(a.source()) {
		items, err = a.viaTool(ctx, inv, keyword)
		if err != nil {
			logger.Log.Warnf("网页工具检索 [%s] 失败: %v", keyword, err)
		}
	}

	if len(items) == 0 && a.deps.Searcher != nil {
		fallback, serr := a.viaSearcher(ctx, keyword)
		if serr != nil {
			logger.Log.Warnf("直连搜索 [%s] 失败: %v", keyword, serr)
			if err == nil {
				err = serr
			}
		} else {
			items, err = fallback, nil
		}
	}

	if len(items) == 0 {
		switch {
		case err != nil:
			return res.Failed(err.Error())
		case !inv.Available(a.source()) && a.deps.Searcher == nil:
			return a.notConnected(keyword)
		}
	}

	if a.deps.Web.EnrichContent {
		a.enrich(items)
	}
	res.Results = items
	res.EngagementMetrics["search_count"] = float64(len(items))
	return res
}

func (a *WebAdapter) viaTool(ctx context.Context, inv Invoker, keyword string) ([]model.Item, error) {
	records, err := a.call(ctx, inv, a.tool(0, "one_search"), map[string]any{
		"query":       keyword + " 日本語",
		"language":    "ja",
		"region":      "jp",
		"max_results": webMaxResults,
	}, webLayout)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	if Unusable(records) {
		return nil, ErrUnusable
	}

	items := make([]model.Item, 0, len(records))
	for _, r := range records {
		item := model.Item{
			Title:   r.Str("title"),
			URL:     r.Str("url", "link"),
			Snippet: stripHTML(r.Str("snippet", "description", "content")),
			Source:  r.Str("source"),
		}
		if item.Title == "" || item.URL == "" {
			continue
		}
		if item.Source == "" {
			item.Source = hostOf(item.URL)
		}
		items = append(items, item)
	}
	return items, nil
}

func (a *WebAdapter) viaSearcher(ctx context.Context, keyword string) ([]model.Item, error) {
	resp, err := a.deps.Searcher.Search(ctx, &search.Request{
		Query:      keyword,
		Topic:      "general",
		Language:   "ja",
		MaxResults: webMaxResults,
	})
	if err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Title == "" || r.URL == "" {
			continue
		}
		items = append(items, model.Item{
			Title:       r.Title,
			URL:         r.URL,
			Snippet:     stripHTML(r.Content),
			Source:      hostOf(r.URL),
			PublishedAt: r.PublishedDate,
		})
	}
	return items, nil
}

// enrich 抓取前几条结果的正文
func (a *WebAdapter) enrich(items []model.Item) {
	timeout := time.Duration(a.deps.Web.EnrichTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	for i := range items {
		if i >= webEnrichTop {
			break
		}
		article, err := readability.FromURL(items[i].URL, timeout)
		if err != nil {
			logger.Log.Debugf("抓取正文失败 %s: %v", items[i].URL, err)
			continue
		}
		items[i].Content = truncateRunes(stripHTML(article.TextContent), webContentRunes)
	}
}
