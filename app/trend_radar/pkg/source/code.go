package source

import (
	"context"
	"math"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

const codePerPage = 10

var codeScoreKeys = []string{"stargazers_count", "stars"}

var codeLayout = Layout{
	ListKeys:  []string{"repositories", "items", "data"},
	ParseText: ParseBlocks,
}

// CodeAdapter 代码托管平台检索
type CodeAdapter struct {
	base
}

// Research 实现 Adapter
func (a *CodeAdapter) Research(ctx context.Context, inv Invoker, keyword string) model.ResearchResult {
	if !inv.Available(a.source()) {
		return a.notConnected(keyword)
	}
	res := a.newResult(keyword)

	records, err := a.call(ctx, inv, a.tool(0, "search_repositories"), map[string]any{
		"query":    keyword + " followers:>1000 stars:>50",
		"sort":     "stars",
		"order":    "desc",
		"per_page": codePerPage,
	}, codeLayout)
	if err != nil {
		return res.Failed(err.Error())
	}
	if len(records) > 0 && Unusable(records, codeScoreKeys...) {
		return res.Failed("unusable response: placeholder values in most repositories")
	}

	now := a.deps.Now()
	items := make([]model.Item, 0, len(records))
	for _, r := range records {
		name := r.Str("name")
		owner := r.Str("owner")
		if o := r.Sub("owner"); o != nil {
			owner = o.Str("login", "name")
		}
		if name == "" {
			continue
		}

		item := model.Item{
			Title:       r.Str("full_name"),
			URL:         r.Str("html_url", "url"),
			Description: r.Str("description"),
			Author:      owner,
			Language:    r.Str("language"),
			Topics:      r.Strings("topics"),
			PublishedAt: r.Str("created_at"),
		}
		if item.Title == "" {
			item.Title = name
			if owner != "" {
				item.Title = owner + "/" + name
			}
		}
		if item.URL == "" && owner != "" {
			item.URL = "https://github.com/" + owner + "/" + name
		}
		item.Stars, _ = r.Int(codeScoreKeys...)
		item.Forks, _ = r.Int("forks_count", "forks")

		if ts, ok := parseTime(item.PublishedAt); ok {
			days := daysSince(now, ts)
			if days < 1 {
				days = 1
			}
			rate := float64(item.Stars) / float64(days)
			item.DaysOld = days
			item.StarRate = round2(rate)
			item.IsTrending = item.Stars >= 100 && days <= 365
			item.IsAccelerating = rate >= 1 && item.Stars >= 50
			item.TrendScore = codeTrendScore(item.Stars, days, rate)
		}
		items = append(items, item)
	}

	res.Results = items
	res.EngagementMetrics = codeMetrics(items)
	return res
}

// codeTrendScore 综合增长速度、总星数、新鲜度与加速度
func codeTrendScore(stars, days int, rate float64) float64 {
	score := math.Min(rate*10, 50) +
		math.Min(float64(stars)/100, 20) +
		math.Max(0, float64(365-days)/365*30)
	switch {
	case rate >= 2:
		score += 20
	case rate >= 1:
		score += 10
	}
	return round2(math.Min(score, 100))
}

func codeMetrics(items []model.Item) map[string]float64 {
	m := map[string]float64{"repo_count": float64(len(items))}
	if len(items) == 0 {
		return m
	}

	var stars, forks, trending int
	langs := make([]string, 0, len(items))
	for _, it := range items {
		stars += it.Stars
		forks += it.Forks
		if it.IsTrending {
			trending++
		}
		langs = append(langs, it.Language)
	}
	n := float64(len(items))
	m["avg_stars"] = round2(float64(stars) / n)
	m["avg_forks"] = round2(float64(forks) / n)
	m["total_stars"] = float64(stars)
	m["total_forks"] = float64(forks)
	m["trending_repos_count"] = float64(trending)
	addTop(m, "top_languages", langs, 3)
	return m
}
