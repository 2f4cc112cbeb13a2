package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/toolsession"
)

// Shape 工具响应的形态
type Shape int

const (
	// ShapeEmpty 没有任何内容
	ShapeEmpty Shape = iota
	// ShapeStructured 结构化对象
	ShapeStructured
	// ShapeJSONText 文本内容本身是 JSON
	ShapeJSONText
	// ShapeText 松散格式的文本
	ShapeText
)

func (s Shape) String() string {
	switch s {
	case ShapeStructured:
		return "structured"
	case ShapeJSONText:
		return "json_text"
	case ShapeText:
		return "text"
	default:
		return "empty"
	}
}

// Response 归类后的工具响应
type Response struct {
	Shape      Shape
	Structured any
	Text       string
}

// Classify 判断响应形态
func Classify(p *toolsession.Payload) Response {
	if p.Empty() {
		return Response{Shape: ShapeEmpty}
	}
	text := ""
	if len(p.Texts) > 0 {
		text = p.Texts[0]
	}
	if p.Structured != nil {
		return Response{Shape: ShapeStructured, Structured: p.Structured, Text: text}
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return Response{Shape: ShapeJSONText, Text: text}
	}
	return Response{Shape: ShapeText, Text: text}
}

var errNoMatch = errors.New("shape not recognised")

// Layout 描述某个来源的响应结构
type Layout struct {
	// ListKeys 结构化对象中可能承载记录列表的键
	ListKeys []string
	// SingleKeys 出现任一键时把整个对象视为一条记录
	SingleKeys []string
	// ParseText 松散文本解析器
	ParseText func(text string) []Record
}

// Records 依次尝试 结构化 → 内嵌 JSON → 行文本 三个阶段，全部失败时返回空列表
func (l Layout) Records(resp Response) []Record {
	stages := []struct {
		name string
		run  func(Response) ([]Record, error)
	}{
		{"structured", l.fromStructured},
		{"json_text", l.fromJSONText},
		{"text", l.fromText},
	}

	for _, st := range stages {
		records, err := runStage(st.run, resp)
		if err == nil {
			return records
		}
		if !errors.Is(err, errNoMatch) {
			logger.Log.Debugf("解析阶段 %s 失败: %v", st.name, err)
		}
	}
	return []Record{}
}

func runStage(run func(Response) ([]Record, error), resp Response) (records []Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	return run(resp)
}

func (l Layout) fromStructured(resp Response) ([]Record, error) {
	if resp.Structured == nil {
		return nil, errNoMatch
	}
	return l.extract(resp.Structured)
}

func (l Layout) fromJSONText(resp Response) ([]Record, error) {
	trimmed := strings.TrimSpace(resp.Text)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return nil, errNoMatch
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil, fmt.Errorf("decode json text: %w", err)
	}
	return l.extract(v)
}

func (l Layout) fromText(resp Response) ([]Record, error) {
	if strings.TrimSpace(resp.Text) == "" || l.ParseText == nil {
		return nil, errNoMatch
	}
	records := l.ParseText(resp.Text)
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// extract 从解码后的 JSON 值中取出记录列表
func (l Layout) extract(v any) ([]Record, error) {
	switch t := v.(type) {
	case []any:
		return recordsOf(t), nil
	case map[string]any:
		for _, k := range l.ListKeys {
			if list, ok := t[k].([]any); ok {
				return recordsOf(list), nil
			}
		}
		for _, k := range l.SingleKeys {
			if _, ok := t[k]; ok {
				return []Record{Record(t)}, nil
			}
		}
		return nil, errNoMatch
	default:
		return nil, errNoMatch
	}
}

func recordsOf(list []any) []Record {
	out := make([]Record, 0, len(list))
	for _, e := range list {
		if m, ok := e.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out
}
