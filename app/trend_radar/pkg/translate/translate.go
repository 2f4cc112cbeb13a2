package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/llm"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
)

// 常用领域术语，按固定顺序做部分匹配
var dictionary = []struct{ from, to string }{
	{"生成AI", "generative AI"},
	{"人工知能", "artificial intelligence"},
	{"機械学習", "machine learning"},
	{"深層学習", "deep learning"},
	{"自然言語処理", "natural language processing"},
	{"コンピュータビジョン", "computer vision"},
	{"強化学習", "reinforcement learning"},
	{"ニューラルネットワーク", "neural networks"},
	{"大規模言語モデル", "large language models"},
	{"LLM", "large language models"},
	{"GPT", "GPT"},
	{"ChatGPT", "ChatGPT"},
	{"画像生成", "image generation"},
	{"音声認識", "speech recognition"},
	{"音声合成", "speech synthesis"},
	{"推薦システム", "recommendation systems"},
	{"異常検知", "anomaly detection"},
	{"時系列予測", "time series prediction"},
	{"クラスタリング", "clustering"},
	{"分類", "classification"},
}

const maxBroaderTerms = 3

// Translator 关键词翻译与查询放宽，LLM 不可用时使用内置规则
type Translator struct {
	completer llm.Completer
}

// New 创建 Translator，completer 可以为 nil
func New(completer llm.Completer) *Translator {
	return &Translator{completer: completer}
}

// ToEnglish 将关键词翻译为适合英文检索的术语
func (t *Translator) ToEnglish(ctx context.Context, keyword string) string {
	if t.completer != nil {
		prompt := fmt.Sprintf(`You are an expert in AI research terminology.
Translate the following keyword into the single English term that works best as a search query for AI papers and tech news.
Answer with the English term only, no explanation.

Keyword: %s`, keyword)
		text, err := t.completer.Complete(ctx, prompt)
		if err == nil {
			if term := firstLine(text); term != "" {
				return term
			}
		}
		logger.Log.Warnf("关键词翻译失败，使用内置词典: %v", err)
	}
	return Fallback(keyword)
}

// Fallback 词典翻译: 精确匹配，其次部分匹配，否则原样返回
func Fallback(keyword string) string {
	for _, e := range dictionary {
		if e.from == keyword {
			return e.to
		}
	}
	for _, e := range dictionary {
		if strings.Contains(keyword, e.from) || strings.Contains(e.from, keyword) {
			return e.to
		}
	}
	return keyword
}

// Broaden 给出一个更宽泛的查询，无法放宽时返回原查询
func (t *Translator) Broaden(ctx context.Context, query string) string {
	if t.completer != nil {
		prompt := fmt.Sprintf(`A search for "%s" on arXiv returned no papers.
Suggest one broader, more general AI research search term.
Answer with the English term only, no explanation.`, query)
		text, err := t.completer.Complete(ctx, prompt)
		if err == nil {
			if term := firstLine(text); term != "" {
				return term
			}
		}
		logger.Log.Warnf("查询放宽失败: %v", err)
	}

	words := strings.Fields(query)
	if len(words) <= 1 {
		return query
	}
	return strings.Join(words[:len(words)-1], " ")
}

// BroaderTerms 给出最多三个更宽泛的检索词
func (t *Translator) BroaderTerms(ctx context.Context, keyword string) []string {
	if t.completer != nil {
		prompt := fmt.Sprintf(`A news search for "%s" returned nothing useful.
Suggest three broader, more general AI-related search terms.
Answer with the English terms only, comma separated.`, keyword)
		text, err := t.completer.Complete(ctx, prompt)
		if err == nil {
			if terms := splitTerms(firstLine(text), maxBroaderTerms); len(terms) > 0 {
				return terms
			}
		}
		logger.Log.Warnf("获取宽泛检索词失败: %v", err)
	}

	var terms []string
	for _, w := range strings.Fields(keyword) {
		if len([]rune(w)) > 2 && w != keyword {
			terms = append(terms, w)
		}
		if len(terms) == maxBroaderTerms {
			break
		}
	}
	return terms
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.Trim(strings.TrimSpace(text), `"'`)
}

func splitTerms(text string, limit int) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if part == "" {
			continue
		}
		out = append(out, part)
		if len(out) == limit {
			break
		}
	}
	return out
}
