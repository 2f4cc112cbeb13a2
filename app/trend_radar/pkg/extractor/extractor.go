package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/llm"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

const (
	itemsPerResult   = 3
	descriptionRunes = 200
	maxFallbackTerms = 10
)

var (
	lazyArray   = regexp.MustCompile(`(?s)\[.*?\]`)
	greedyArray = regexp.MustCompile(`(?s)\[.*\]`)
)

// Entry 摘要中的一条内容
type Entry struct {
	Platform    model.Platform `json:"platform"`
	Keyword     string         `json:"keyword"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
}

// Extractor 让模型从检索结果中挖掘新的趋势关键词
type Extractor struct {
	completer llm.Completer
}

// New 创建 Extractor，completer 为 nil 时 Extract 总是返回空列表
func New(completer llm.Completer) *Extractor {
	return &Extractor{completer: completer}
}

// Extract 提取 5-10 个新关键词，任何失败都返回空列表
func (e *Extractor) Extract(ctx context.Context, results []model.ResearchResult) []string {
	digest := Digest(results)
	if len(digest) == 0 {
		logger.Log.Info("检索结果为空，跳过关键词提取")
		return []string{}
	}
	if e.completer == nil {
		logger.Log.Warn("未配置 LLM，跳过关键词提取")
		return []string{}
	}

	prompt, err := buildPrompt(digest)
	if err != nil {
		logger.Log.Errorf("构造提取提示词失败: %v", err)
		return []string{}
	}
	text, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		logger.Log.Errorf("关键词提取失败: %v", err)
		return []string{}
	}

	keywords := Parse(text)
	logger.Log.Infof("提取到 %d 个关键词: %v", len(keywords), keywords)
	return keywords
}

// Digest 每条检索结果最多取前 3 项，描述截断到 200 字
func Digest(results []model.ResearchResult) []Entry {
	var entries []Entry
	for _, r := range results {
		for i, item := range r.Results {
			if i == itemsPerResult {
				break
			}
			desc := item.Description
			if desc == "" {
				desc = item.Snippet
			}
			entries = append(entries, Entry{
				Platform:    r.Platform,
				Keyword:     r.Keyword,
				Title:       item.Title,
				Description: truncate(desc, descriptionRunes),
			})
		}
	}
	return entries
}

func buildPrompt(digest []Entry) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(digest); err != nil {
		return "", fmt.Errorf("encode digest failed: %w", err)
	}

	return fmt.Sprintf(`Analyze this AI trend research data and extract 5-10 new trending keywords related to AI, machine learning, or technology.

Data: %s
Instructions:
1. Focus on AI tools, frameworks, companies, techniques, or emerging technologies
2. Return only a JSON array of keywords, like: ["keyword1", "keyword2", "keyword3"]
3. Prioritize keywords that appear frequently or have high engagement
4. Include both English and Japanese keywords if relevant
5. If no relevant keywords are found, return an empty array: []
`, buf.String()), nil
}

// Parse 从回复中解析关键词列表
//
// 先查找 JSON 数组，失败时按逗号拆分并去掉括号与引号，只保留长度大于 2 的词，最多 10 个。
func Parse(text string) []string {
	text = llm.CleanFence(text)
	for _, re := range []*regexp.Regexp{lazyArray, greedyArray} {
		match := re.FindString(text)
		if match == "" {
			continue
		}
		var raw []any
		if err := json.Unmarshal([]byte(match), &raw); err != nil {
			continue
		}
		var out []string
		for _, v := range raw {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return dedupe(out, 0)
	}

	cleaned := strings.NewReplacer(`"`, "", "[", "", "]", "").Replace(text)
	var words []string
	for _, w := range strings.Split(cleaned, ",") {
		if w = strings.TrimSpace(w); len([]rune(w)) > 2 {
			words = append(words, w)
		}
	}
	return dedupe(words, maxFallbackTerms)
}

// dedupe 去空去重并保持顺序，limit 为 0 表示不限
func dedupe(words []string, limit int) []string {
	out := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
