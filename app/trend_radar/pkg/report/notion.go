package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/toolsession"
)

const (
	maxBlocks        = 20
	maxBlockRunes    = 2000
	ellipsis         = "..."
	snippetRunes     = 200
	itemsPerPlatform = 5
)

var errInvalidBlocks = errors.New("invalid notion blocks")

// Invoker 文档服务的工具调用入口
type Invoker interface {
	Available(source string) bool
	Invoke(ctx context.Context, source, tool string, args map[string]any) (*toolsession.Payload, error)
}

type richText struct {
	Type string   `json:"type"`
	Text textSpan `json:"text"`
}

type textSpan struct {
	Content string `json:"content"`
}

type textBody struct {
	RichText []richText `json:"rich_text"`
}

// block 文档块，只有与 Type 对应的字段非空
type block struct {
	Object    string    `json:"object"`
	Type      string    `json:"type"`
	Heading1  *textBody `json:"heading_1,omitempty"`
	Heading2  *textBody `json:"heading_2,omitempty"`
	Heading3  *textBody `json:"heading_3,omitempty"`
	Paragraph *textBody `json:"paragraph,omitempty"`
}

func newBlock(kind, content string) block {
	body := &textBody{RichText: []richText{{Type: "text", Text: textSpan{Content: fitBlock(content)}}}}
	b := block{Object: "block", Type: kind}
	switch kind {
	case "heading_1":
		b.Heading1 = body
	case "heading_2":
		b.Heading2 = body
	case "heading_3":
		b.Heading3 = body
	default:
		b.Type = "paragraph"
		b.Paragraph = body
	}
	return b
}

func (b block) bodies() []*textBody {
	var out []*textBody
	for _, body := range []*textBody{b.Heading1, b.Heading2, b.Heading3, b.Paragraph} {
		if body != nil {
			out = append(out, body)
		}
	}
	return out
}

func (b block) body() *textBody {
	switch b.Type {
	case "heading_1":
		return b.Heading1
	case "heading_2":
		return b.Heading2
	case "heading_3":
		return b.Heading3
	case "paragraph":
		return b.Paragraph
	default:
		return nil
	}
}

// validateBlocks 检查块数量与结构
func validateBlocks(blocks []block) error {
	if len(blocks) == 0 || len(blocks) > maxBlocks {
		return fmt.Errorf("%w: %d blocks", errInvalidBlocks, len(blocks))
	}
	for i, b := range blocks {
		body := b.body()
		if b.Object != "block" || body == nil || len(b.bodies()) != 1 {
			return fmt.Errorf("%w: block %d has type %q", errInvalidBlocks, i, b.Type)
		}
		if len(body.RichText) == 0 {
			return fmt.Errorf("%w: block %d has no text", errInvalidBlocks, i)
		}
		for _, rt := range body.RichText {
			n := len([]rune(rt.Text.Content))
			if rt.Type != "text" || n == 0 || n > maxBlockRunes {
				return fmt.Errorf("%w: block %d has bad text of %d chars", errInvalidBlocks, i, n)
			}
		}
	}
	return nil
}

// NotionSink 通过文档服务的 create-page 工具镜像报告
type NotionSink struct {
	inv      Invoker
	server   string
	tool     string
	parentID string
}

// NewNotionSink 创建 NotionSink
func NewNotionSink(inv Invoker, server, tool, parentID string) *NotionSink {
	if tool == "" {
		tool = "create-page"
	}
	return &NotionSink{inv: inv, server: server, tool: tool, parentID: parentID}
}

func (s *NotionSink) Name() string { return "notion" }

// Title 页面标题
func Title(date string) string {
	return "AI Trend Research Report - " + date
}

// Publish 依次尝试简要块、详细块和单条错误说明，提交第一个通过校验的版本
func (s *NotionSink) Publish(ctx context.Context, r *model.Report) error {
	if s.parentID == "" {
		return errors.New("notion parent page id not configured")
	}
	if !s.inv.Available(s.server) {
		return fmt.Errorf("%s not connected", s.server)
	}

	properties, err := json.Marshal(map[string]any{
		"title": map[string]any{
			"title": []any{map[string]any{"text": map[string]any{"content": Title(r.Date)}}},
		},
	})
	if err != nil {
		return fmt.Errorf("encode properties failed: %w", err)
	}

	candidates := []struct {
		name   string
		blocks []block
	}{
		{"simple", limit(simpleBlocks(r))},
		{"detailed", limit(detailedBlocks(r))},
		{"fallback", []block{newBlock("paragraph", "Error occurred while generating report content.")}},
	}

	var lastErr error
	for _, c := range candidates {
		if err := validateBlocks(c.blocks); err != nil {
			logger.Log.Warnf("文档块 [%s] 校验失败: %v", c.name, err)
			lastErr = err
			continue
		}
		children, err := json.Marshal(c.blocks)
		if err != nil {
			lastErr = fmt.Errorf("encode blocks failed: %w", err)
			continue
		}

		_, err = s.inv.Invoke(ctx, s.server, s.tool, map[string]any{
			"parent_type": "page_id",
			"parent_id":   s.parentID,
			"properties":  string(properties),
			"children":    string(children),
		})
		if err != nil {
			logger.Log.Warnf("提交文档块 [%s] 失败: %v", c.name, err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		logger.Log.Infof("文档页面已创建: %s (%d 个块)", Title(r.Date), len(c.blocks))
		return nil
	}
	return fmt.Errorf("create notion page failed: %w", lastErr)
}

func simpleBlocks(r *model.Report) []block {
	blocks := []block{
		newBlock("heading_1", Title(r.Date)),
		newBlock("paragraph", fmt.Sprintf("Platforms: %d | Keywords: %d | New Keywords: %d | Total Results: %d",
			r.Summary.PlatformsSearched, len(r.Summary.KeywordsUsed), r.Summary.NewKeywordsFound, r.Summary.TotalResults)),
	}

	if text := joinNonEmpty(r.NewKeywords, ", "); text != "" {
		blocks = append(blocks, newBlock("heading_2", "New Keywords"), newBlock("paragraph", text))
	}
	if text := joinNonEmpty(r.Recommendations, " | "); text != "" {
		blocks = append(blocks, newBlock("heading_2", "Recommendations"), newBlock("paragraph", text))
	}

	groups := GroupByPlatform(r.DetailedResults)
	if len(groups) > 0 {
		blocks = append(blocks, newBlock("heading_2", "Research Results"))
		for _, g := range groups {
			count := 0
			for _, res := range g.Results {
				count += len(res.Results)
			}
			if count > 0 {
				blocks = append(blocks, newBlock("paragraph", fmt.Sprintf("%s: %d results", strings.ToUpper(string(g.Platform)), count)))
			}
		}
	}
	return blocks
}

func detailedBlocks(r *model.Report) []block {
	blocks := []block{
		newBlock("heading_2", "📊 Summary"),
		newBlock("heading_2", "🔬 Detailed Research Results"),
	}

	groups := GroupByPlatform(r.DetailedResults)
	if len(groups) == 0 {
		return append(blocks, newBlock("paragraph", "No detailed results available"))
	}
	for _, g := range groups {
		blocks = append(blocks, newBlock("heading_3", strings.ToUpper(string(g.Platform))))

		var items []model.Item
		for _, res := range g.Results {
			items = append(items, res.Results...)
		}
		if len(items) == 0 {
			blocks = append(blocks, newBlock("paragraph", "- No results found"))
			continue
		}
		for i, it := range items {
			if i == itemsPerPlatform {
				break
			}
			title := strings.TrimSpace(it.Title)
			if title == "" {
				title = "Untitled"
			}
			blocks = append(blocks, newBlock("heading_3", fmt.Sprintf("%d. %s", i+1, title)))
			if it.URL != "" {
				blocks = append(blocks, newBlock("paragraph", "🔗 "+it.URL))
			}
			snippet := it.Snippet
			if snippet == "" {
				snippet = it.Description
			}
			if snippet = strings.TrimSpace(snippet); snippet != "" {
				blocks = append(blocks, newBlock("paragraph", "📝 "+clip(snippet, snippetRunes)))
			}
		}
	}
	return blocks
}

func limit(blocks []block) []block {
	if len(blocks) > maxBlocks {
		return blocks[:maxBlocks]
	}
	return blocks
}

// fitBlock 截断到单个文本块的上限，省略号计入长度
func fitBlock(s string) string {
	if len([]rune(s)) <= maxBlockRunes {
		return s
	}
	return clip(s, maxBlockRunes-len(ellipsis))
}

// clip 超长文本截断并追加省略号
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + ellipsis
}

func joinNonEmpty(values []string, sep string) string {
	var parts []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}
