package model

import "time"

// Platform 研究平台
type Platform string

// 支持的平台
const (
	PlatformWeb   Platform = "web"
	PlatformVideo Platform = "video"
	PlatformCode  Platform = "code"
	PlatformArxiv Platform = "arxiv"
	PlatformNews  Platform = "news"
)

// Item 单条检索结果
//
// 各平台字段不同，但至少包含 title 与 url（或 id）。
type Item struct {
	Title       string   `json:"title"`
	URL         string   `json:"url,omitempty"`
	ID          string   `json:"id,omitempty"`
	Description string   `json:"description,omitempty"`
	Snippet     string   `json:"snippet,omitempty"`
	Content     string   `json:"content,omitempty"`
	Source      string   `json:"source,omitempty"`
	Author      string   `json:"author,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
	Language    string   `json:"language,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Topics      []string `json:"topics,omitempty"`

	Stars     int `json:"stars,omitempty"`
	Forks     int `json:"forks,omitempty"`
	Points    int `json:"points,omitempty"`
	Comments  int `json:"comments,omitempty"`
	Citations int `json:"citations,omitempty"`

	StarRate       float64 `json:"star_rate,omitempty"`
	DaysOld        int     `json:"days_old,omitempty"`
	IsRecent       bool    `json:"is_recent,omitempty"`
	IsTrending     bool    `json:"is_trending,omitempty"`
	IsAccelerating bool    `json:"is_accelerating,omitempty"`
	TrendScore     float64 `json:"trend_score,omitempty"`
}

// ResearchResult 单个 (关键词, 平台) 的检索结果
type ResearchResult struct {
	Platform          Platform           `json:"platform"`
	Keyword           string             `json:"keyword"`
	Timestamp         time.Time          `json:"timestamp"`
	Results           []Item             `json:"results"`
	SentimentScore    float64            `json:"sentiment_score"`
	EngagementMetrics map[string]float64 `json:"engagement_metrics"`
	Error             string             `json:"error,omitempty"`
}

// NewResult 创建空结果，切片与映射均已初始化
func NewResult(platform Platform, keyword string, ts time.Time) ResearchResult {
	return ResearchResult{
		Platform:          platform,
		Keyword:           keyword,
		Timestamp:         ts,
		Results:           []Item{},
		EngagementMetrics: map[string]float64{},
	}
}

// Failed 以错误信息结束结果
func (r ResearchResult) Failed(msg string) ResearchResult {
	r.Error = msg
	r.Results = []Item{}
	return r
}

// Summary 报告摘要
type Summary struct {
	PlatformsSearched int      `json:"platforms_searched"`
	KeywordsUsed      []string `json:"keywords_used"`
	NewKeywordsFound  int      `json:"new_keywords_found"`
	TotalResults      int      `json:"total_results"`
}

// Report 每日趋势报告
type Report struct {
	Date            string           `json:"date"`
	Summary         Summary          `json:"summary"`
	DetailedResults []ResearchResult `json:"detailed_results"`
	NewKeywords     []string         `json:"new_keywords"`
	Recommendations []string         `json:"recommendations"`
}
