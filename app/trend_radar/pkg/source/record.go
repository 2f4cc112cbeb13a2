package source

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// placeholder 工具服务用来填充缺失字段的占位值
const placeholder = "undefined"

// Record 工具响应中的一条原始记录
type Record map[string]any

// Str 返回第一个非空字段的字符串值
func (r Record) Str(keys ...string) string {
	for _, k := range keys {
		if s := toString(r[k]); s != "" && s != placeholder {
			return s
		}
	}
	return ""
}

// Int 返回第一个可解析为整数的字段
func (r Record) Int(keys ...string) (int, bool) {
	for _, k := range keys {
		if n, ok := toInt(r[k]); ok {
			return n, true
		}
	}
	return 0, false
}

// Strings 返回列表字段，字符串按逗号拆分，对象取 name
func (r Record) Strings(keys ...string) []string {
	for _, k := range keys {
		switch v := r[k].(type) {
		case []any:
			out := make([]string, 0, len(v))
			for _, e := range v {
				s := toString(e)
				if m, ok := e.(map[string]any); ok {
					s = Record(m).Str("name", "term", "login")
				}
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		case []string:
			if len(v) > 0 {
				return v
			}
		case string:
			if out := splitList(v); len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// Sub 返回嵌套对象
func (r Record) Sub(key string) Record {
	if m, ok := r[key].(map[string]any); ok {
		return Record(m)
	}
	return nil
}

// invalid 标题缺失，或主要指标为占位值
func (r Record) invalid(scoreKeys []string) bool {
	title := r.Str("title", "name")
	if title == "" {
		return true
	}
	for _, k := range scoreKeys {
		v, ok := r[k]
		if !ok {
			continue
		}
		if v == nil {
			return true
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == placeholder {
			return true
		}
	}
	return false
}

// Unusable 超过半数记录缺少关键字段时视为无效响应
func Unusable(records []Record, scoreKeys ...string) bool {
	if len(records) == 0 {
		return true
	}
	bad := 0
	for _, r := range records {
		if r.invalid(scoreKeys) {
			bad++
		}
	}
	return float64(bad)/float64(len(records)) > 0.5
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		return int(n), err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
			return int(f), true
		}
	}
	return 0, false
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
