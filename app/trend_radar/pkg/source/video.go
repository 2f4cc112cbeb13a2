package source

import (
	"context"
	"strings"
	"unicode"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

const videoMaxResults = 15

// 内容分类，按顺序匹配
var videoCategories = []struct {
	label string
	words []string
}{
	{"解説動画", []string{"解説", "説明", "入門", "基礎", "学習", "チュートリアル"}},
	{"デモ", []string{"デモ", "デモンストレーション", "実演", "動作確認", "サンプル"}},
	{"カンファレンス", []string{"カンファレンス", "セミナー", "講演", "発表", "conference", "talk"}},
	{"ニュース", []string{"ニュース", "最新", "アップデート", "リリース"}},
	{"レビュー", []string{"レビュー", "比較", "検証", "評価"}},
}

const (
	videoOther    = "その他"
	videoTutorial = "解説動画"
)

var videoLayout = Layout{
	ListKeys:   []string{"videos", "items", "results"},
	SingleKeys: []string{"snippet"},
	ParseText:  ParseBlocks,
}

// VideoAdapter 视频平台检索
type VideoAdapter struct {
	base
}

// Research 实现 Adapter
func (a *VideoAdapter) Research(ctx context.Context, inv Invoker, keyword string) model.ResearchResult {
	if !inv.Available(a.source()) {
		return a.notConnected(keyword)
	}
	res := a.newResult(keyword)

	records, err := a.call(ctx, inv, a.tool(0, "searchVideos"), map[string]any{
		"query":       keyword,
		"order":       "relevance",
		"type":        "video",
		"max_results": videoMaxResults,
	}, videoLayout)
	if err != nil {
		return res.Failed(err.Error())
	}

	now := a.deps.Now()
	items := make([]model.Item, 0, len(records))
	for _, r := range records {
		item, ok := videoItem(r)
		if !ok {
			continue
		}
		if ts, ok := parseTime(item.PublishedAt); ok {
			item.DaysOld = daysSince(now, ts)
			item.IsRecent = item.DaysOld <= 30
			item.TrendScore = videoTrendScore(item.DaysOld)
		}
		items = append(items, item)
	}
	// 标题在 snippet 内，按映射后的条目判断占位值比例
	if len(records) > 0 && float64(len(records)-len(items))/float64(len(records)) > 0.5 {
		return res.Failed(ErrUnusable.Error())
	}

	tutorials := 0
	for _, it := range items {
		if it.ContentType == videoTutorial {
			tutorials++
		}
	}
	res.Results = items
	res.EngagementMetrics["video_count"] = float64(tutorials)
	res.EngagementMetrics["total_videos"] = float64(len(items))
	return res
}

func videoItem(r Record) (model.Item, bool) {
	snippet := r.Sub("snippet")
	if snippet == nil {
		snippet = r
	}

	id := r.Str("videoId", "video_id")
	if sub := r.Sub("id"); sub != nil {
		id = sub.Str("videoId")
	} else if id == "" {
		id = r.Str("id")
	}

	item := model.Item{
		Title:       stripHTML(snippet.Str("title")),
		Description: stripHTML(snippet.Str("description")),
		PublishedAt: snippet.Str("publishedAt", "published_at", "published"),
		Author:      snippet.Str("channelTitle", "channel"),
		ID:          id,
		URL:         r.Str("url"),
	}
	if item.URL == "" && id != "" {
		item.URL = "https://www.youtube.com/watch?v=" + id
	}
	if item.Title == "" {
		return model.Item{}, false
	}
	item.ContentType = classifyVideo(item.Title, item.Description)
	item.Language = detectLanguage(item.Title + " " + item.Description)
	return item, true
}

func classifyVideo(title, description string) string {
	text := strings.ToLower(title + " " + description)
	for _, c := range videoCategories {
		for _, w := range c.words {
			if strings.Contains(text, w) {
				return c.label
			}
		}
	}
	return videoOther
}

// detectLanguage 含假名判为 ja，含 ASCII 字符判为 en
func detectLanguage(text string) string {
	hasASCII := false
	for _, r := range text {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana) {
			return "ja"
		}
		if r < unicode.MaxASCII && !unicode.IsSpace(r) {
			hasASCII = true
		}
	}
	if hasASCII {
		return "en"
	}
	return "unknown"
}

// videoTrendScore 仅按发布时间计分
func videoTrendScore(days int) float64 {
	switch {
	case days <= 7:
		return 40
	case days <= 30:
		return 25
	case days <= 90:
		return 10
	default:
		return 0
	}
}
