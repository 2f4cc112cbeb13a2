package source

import (
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/net/html"
)

// parseTime 宽松解析时间，支持 Unix 秒与常见日期格式
func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(t), 0), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" || s == placeholder {
			return time.Time{}, false
		}
		ts, err := dateparse.ParseAny(s)
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	default:
		return time.Time{}, false
	}
}

// daysSince 距今天数，未来时间按 0 计
func daysSince(now, ts time.Time) int {
	d := int(now.Sub(ts).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// stripHTML 去掉 HTML 标签并压缩空白
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.TextToken:
			sb.Write(z.Text())
			sb.WriteByte(' ')
		}
	}
}

// hostOf 返回 URL 的主机名
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// truncateRunes 按字符截断
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// addTop 统计出现次数最多的 n 个值，以 prefix.value 为键写入 metrics
//
// 同频次按首次出现顺序取舍。
func addTop(metrics map[string]float64, prefix string, values []string, n int) {
	counts := make(map[string]int)
	var order []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	for _, v := range order {
		metrics[prefix+"."+v] = float64(counts[v])
	}
}
