package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlocksWeb(t *testing.T) {
	text := "Title: 生成AIの最新動向\nURL: https://example.jp/a\nDescription: 第一行\n続きの行\n\n" +
		"無題の見出し\nURL: https://example.jp/b\n\nsingle line block"

	recs := ParseBlocks(text)
	require.Len(t, recs, 2)
	assert.Equal(t, "生成AIの最新動向", recs[0].Str("title"))
	assert.Equal(t, "第一行 続きの行", recs[0].Str("description"))
	assert.Equal(t, "無題の見出し", recs[1].Str("title"))
	assert.Equal(t, "https://example.jp/b", recs[1].Str("url"))
}

func TestParseBlocksGitHub(t *testing.T) {
	text := `Name: langchain
Owner: langchain-ai
Description: Build LLM apps
URL: https://github.com/langchain-ai/langchain
Stars: 90000
Forks: 14000
Language: Python
Created: 2022-10-17T02:58:36Z
Topics: llm, agents`

	recs := ParseBlocks(text)
	require.Len(t, recs, 1)
	r := recs[0]
	stars, _ := r.Int("stars")
	assert.Equal(t, 90000, stars)
	assert.Equal(t, "langchain-ai", r.Str("owner"))
	assert.Equal(t, []string{"llm", "agents"}, r.Strings("topics"))
	assert.Equal(t, "2022-10-17T02:58:36Z", r.Str("created_at"))
}

func TestParseNumbered(t *testing.T) {
	text := `1. Show HN: A tiny LLM runtime
   ID: 4001
   URL: https://example.com/llm
   Points: 906 | Author: iyaja | Comments: 123

2. Ask HN: What are you building?
   ID: 4002
   URL: (text post)
   Points: 12 | Author: undefined

3. undefined
   ID: 4003`

	recs := ParseNumbered(text)
	require.Len(t, recs, 2)

	assert.Equal(t, "Show HN: A tiny LLM runtime", recs[0].Str("title"))
	assert.Equal(t, "4001", recs[0].Str("id"))
	points, _ := recs[0].Int("points")
	comments, _ := recs[0].Int("comments_count")
	assert.Equal(t, 906, points)
	assert.Equal(t, 123, comments)
	assert.Equal(t, "iyaja", recs[0].Str("author"))

	assert.Equal(t, "", recs[1].Str("url"))
	assert.Equal(t, "", recs[1].Str("author"))
}

func TestParseArxivChinese(t *testing.T) {
	text := "找到 2 篇相关论文（总计 120 篇）：\n\n" +
		"1. **Scaling Laws for Agents**\n" +
		"ID: 2501.00001\n发布日期: 2025-01-02T10:00:00Z\n作者: Alice, Bob\n摘要: We study agents.\nURL: http://arxiv.org/abs/2501.00001\n\n" +
		"2. **Retrieval at Scale**\n" +
		"ID: 2501.00002\n发布日期: 2025-01-03\n作者: Carol\n摘要: Retrieval.\nURL: http://arxiv.org/abs/2501.00002"

	recs := parseArxivText(text)
	require.Len(t, recs, 2)
	assert.Equal(t, "Scaling Laws for Agents", recs[0].Str("title"))
	assert.Equal(t, "2501.00001", recs[0].Str("arxiv_id"))
	assert.Equal(t, []string{"Alice", "Bob"}, recs[0].Strings("authors"))
	assert.Equal(t, "2025-01-03", recs[1].Str("published"))
}

func TestParseArxivCompact(t *testing.T) {
	text := "找到 1 篇相关论文：**Compact Title**\nID: 2502.1\n发布日期: 2025-02-01\n作者: Dan\n摘要: Short.\nURL: http://arxiv.org/abs/2502.1"

	recs := ParseArxivChinese(text)
	require.Len(t, recs, 1)
	assert.Equal(t, "Compact Title", recs[0].Str("title"))
	assert.Equal(t, "2502.1", recs[0].Str("arxiv_id"))
}

func TestNoResultSentinels(t *testing.T) {
	assert.Empty(t, parseArxivText("找到 0 篇相关论文"))
	assert.Empty(t, parseNewsText("No stories found for query"))
	assert.False(t, noResults("Title: results found"))
}
