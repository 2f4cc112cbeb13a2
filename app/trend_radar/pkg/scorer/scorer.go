package scorer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

const (
	baseScore       = 50
	pointsPerResult = 5
	maxScore        = 100

	// HighEngagement 情感分数超过该值的平台会出现在建议中
	HighEngagement = 0.7
)

// Score 为新关键词打分
//
// 基础分 50，每条序列化后包含该词（忽略大小写）的检索结果加 5 分，上限 100。
func Score(keywords []string, results []model.ResearchResult) map[string]int {
	corpus := serialize(results)
	scores := make(map[string]int, len(keywords))
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		mentions := 0
		for _, doc := range corpus {
			if strings.Contains(doc, needle) {
				mentions++
			}
		}
		scores[kw] = min(maxScore, baseScore+mentions*pointsPerResult)
	}
	return scores
}

// serialize 每条结果序列化为小写 JSON，保留非 ASCII 与 HTML 字符
func serialize(results []model.ResearchResult) []string {
	docs := make([]string, 0, len(results))
	for _, r := range results {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(r); err != nil {
			logger.Log.Warnf("序列化检索结果失败 [%s/%s]: %v", r.Platform, r.Keyword, err)
			continue
		}
		docs = append(docs, strings.ToLower(buf.String()))
	}
	return docs
}

// Recommend 根据检索结果与新关键词生成建议
func Recommend(results []model.ResearchResult, newKeywords []string) []string {
	recs := []string{}
	if len(newKeywords) > 0 {
		recs = append(recs, fmt.Sprintf("Consider adding %d new keywords to monitoring", len(newKeywords)))
	}

	seen := make(map[model.Platform]bool)
	var platforms []string
	for _, r := range results {
		if r.SentimentScore > HighEngagement && !seen[r.Platform] {
			seen[r.Platform] = true
			platforms = append(platforms, string(r.Platform))
		}
	}
	if len(platforms) > 0 {
		sort.Strings(platforms)
		recs = append(recs, "High engagement detected on: "+strings.Join(platforms, ", "))
	}
	return recs
}
