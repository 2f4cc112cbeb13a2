package report

import (
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

// Summarize 统计摘要
//
// 平台数包括只产生了错误结果的平台；关键词按首次出现顺序去重。
func Summarize(results []model.ResearchResult, newKeywords []string) model.Summary {
	platforms := make(map[model.Platform]bool)
	seen := make(map[string]bool)
	keywords := []string{}
	total := 0

	for _, r := range results {
		platforms[r.Platform] = true
		if !seen[r.Keyword] {
			seen[r.Keyword] = true
			keywords = append(keywords, r.Keyword)
		}
		total += len(r.Results)
	}

	return model.Summary{
		PlatformsSearched: len(platforms),
		KeywordsUsed:      keywords,
		NewKeywordsFound:  len(newKeywords),
		TotalResults:      total,
	}
}

// Assemble 组装当日报告
func Assemble(date string, results []model.ResearchResult, newKeywords, recommendations []string) *model.Report {
	if results == nil {
		results = []model.ResearchResult{}
	}
	if newKeywords == nil {
		newKeywords = []string{}
	}
	if recommendations == nil {
		recommendations = []string{}
	}
	return &model.Report{
		Date:            date,
		Summary:         Summarize(results, newKeywords),
		DetailedResults: results,
		NewKeywords:     newKeywords,
		Recommendations: recommendations,
	}
}
