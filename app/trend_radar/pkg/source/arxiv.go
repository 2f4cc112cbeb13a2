package source

import (
	"context"
	"strings"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

const arxivMaxResults = 10

var aiCategories = map[string]bool{
	"cs.AI": true, "cs.LG": true, "cs.CL": true, "cs.CV": true, "cs.NE": true, "stat.ML": true,
}

var arxivLayout = Layout{
	ListKeys:   []string{"papers", "entries", "data", "results", "items"},
	SingleKeys: []string{"title", "abstract", "authors"},
	ParseText:  parseArxivText,
}

func parseArxivText(text string) []Record {
	if noResults(text) {
		return nil
	}
	if strings.Contains(text, "找到") && strings.Contains(text, "篇相关论文") {
		return ParseArxivChinese(text)
	}
	return ParseBlocks(text)
}

// ArxivAdapter 预印本检索，查询前翻译为英文，无结果时放宽一次
type ArxivAdapter struct {
	base
}

// Research 实现 Adapter
func (a *ArxivAdapter) Research(ctx context.Context, inv Invoker, keyword string) model.ResearchResult {
	if !inv.Available(a.source()) {
		return a.notConnected(keyword)
	}
	res := a.newResult(keyword)
	tool := a.tool(0, "search_arxiv")

	query := a.deps.Translator.ToEnglish(ctx, keyword)
	records, err := a.call(ctx, inv, tool, map[string]any{"query": query, "max_results": arxivMaxResults}, arxivLayout)
	if err != nil {
		return res.Failed(err.Error())
	}
	papers := arxivPapers(records)

	if len(papers) == 0 {
		if broader := a.deps.Translator.Broaden(ctx, query); broader != "" && broader != query {
			logger.Log.Infof("arXiv [%s] 无结果，放宽为 [%s]", query, broader)
			fallback, ferr := a.call(ctx, inv, tool, map[string]any{"query": broader, "max_results": arxivMaxResults}, arxivLayout)
			if ferr != nil {
				logger.Log.Warnf("arXiv 放宽查询失败: %v", ferr)
			} else {
				papers = arxivPapers(fallback)
			}
		}
	}

	now := a.deps.Now()
	items := make([]model.Item, 0, len(papers))
	for _, r := range papers {
		item := model.Item{
			Title:       strings.Join(strings.Fields(r.Str("title")), " "),
			URL:         r.Str("url", "pdf_url", "link"),
			ID:          r.Str("arxiv_id", "id"),
			Description: r.Str("abstract", "summary"),
			Authors:     r.Strings("authors"),
			Categories:  r.Strings("categories"),
			PublishedAt: r.Str("published", "published_date"),
		}
		item.Citations, _ = r.Int("citation_count", "citations")
		if ts, ok := parseTime(item.PublishedAt); ok {
			item.DaysOld = daysSince(now, ts)
			item.IsRecent = item.DaysOld <= 365
			item.TrendScore = arxivTrendScore(item.DaysOld, true, item.Citations, item.Categories)
		} else {
			item.TrendScore = arxivTrendScore(0, false, item.Citations, item.Categories)
		}
		items = append(items, item)
	}

	res.Results = items
	res.EngagementMetrics = arxivMetrics(items)
	return res
}

// arxivPapers 过滤无效记录，空列表或占位值过多时视为无结果
func arxivPapers(records []Record) []Record {
	if Unusable(records) {
		return nil
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Str("title") == "" {
			continue
		}
		if r.Str("arxiv_id", "id", "url", "pdf_url") == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func arxivTrendScore(days int, dated bool, citations int, categories []string) float64 {
	score := 0.0
	if dated {
		switch {
		case days <= 30:
			score += 30
		case days <= 90:
			score += 20
		case days <= 365:
			score += 10
		}
	}
	switch {
	case citations > 100:
		score += 25
	case citations > 50:
		score += 15
	case citations > 10:
		score += 5
	}
	for _, c := range categories {
		if aiCategories[c] {
			score += 15
			break
		}
	}
	return score
}

func arxivMetrics(items []model.Item) map[string]float64 {
	m := map[string]float64{"paper_count": float64(len(items))}
	if len(items) == 0 {
		return m
	}

	var recent, citations int
	var categories, authors []string
	for _, it := range items {
		if it.IsRecent {
			recent++
		}
		citations += it.Citations
		categories = append(categories, it.Categories...)
		authors = append(authors, it.Authors...)
	}
	m["recent_papers"] = float64(recent)
	m["avg_citations"] = round2(float64(citations) / float64(len(items)))
	m["total_citations"] = float64(citations)
	addTop(m, "top_categories", categories, 5)
	addTop(m, "top_authors", authors, 3)
	return m
}
