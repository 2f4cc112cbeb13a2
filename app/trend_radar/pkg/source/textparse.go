package source

import (
	"regexp"
	"strings"
)

// 文本块中可识别的字段前缀与记录键
var labels = map[string]string{
	"Title":       "title",
	"Name":        "name",
	"Owner":       "owner",
	"URL":         "url",
	"Link":        "url",
	"Description": "description",
	"Stars":       "stars",
	"Forks":       "forks",
	"Language":    "language",
	"Created":     "created_at",
	"Topics":      "topics",
	"Authors":     "authors",
	"Author":      "author",
	"Abstract":    "abstract",
	"Published":   "published",
	"arXiv ID":    "arxiv_id",
	"ID":          "id",
	"Categories":  "categories",
	"Score":       "score",
	"Points":      "points",
	"Comments":    "comments_count",
	// 中文格式
	"发布日期": "published",
	"作者":   "authors",
	"摘要":   "abstract",
	"标题":   "title",
	"链接":   "url",
	// 日文格式
	"タイトル": "title",
	"説明":   "description",
}

// 可跨行续写的字段
var continued = map[string]bool{"description": true, "abstract": true}

var noResultSentinels = []string{
	"No stories found",
	"找到 0 篇相关论文",
	"0 篇相关论文",
	"no results found",
	"No results found",
	"no papers found",
}

// noResults 文本是否声明没有结果
func noResults(text string) bool {
	for _, s := range noResultSentinels {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func splitLabel(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	width := 1
	if full := strings.Index(line, "："); full >= 0 && (idx < 0 || full < idx) {
		idx, width = full, len("：")
	}
	if idx <= 0 {
		return "", "", false
	}
	key, ok = labels[strings.TrimSpace(line[:idx])]
	if !ok {
		return "", "", false
	}
	return key, strings.TrimSpace(line[idx+width:]), true
}

// ParseBlocks 解析以空行分隔、每行 "Label: value" 的文本块
//
// 块的首行若没有可识别前缀，则作为标题。
func ParseBlocks(text string) []Record {
	var out []Record
	for _, block := range strings.Split(normalizeNewlines(text), "\n\n") {
		lines := nonEmptyLines(block)
		if len(lines) < 2 {
			continue
		}

		rec := Record{}
		last := ""
		for i, line := range lines {
			key, value, ok := splitLabel(line)
			switch {
			case ok:
				rec[key] = value
				last = key
			case i == 0:
				rec["title"] = strings.Trim(line, "*# ")
				last = ""
			case continued[last]:
				rec[last] = rec[last].(string) + " " + line
			}
		}
		if len(rec) > 0 {
			out = append(out, rec)
		}
	}
	return out
}

var (
	numberedSplit  = regexp.MustCompile(`(?:^|\n\n)\s*\d+\.\s+`)
	pointsRe       = regexp.MustCompile(`Points:\s*(\d+)`)
	authorRe       = regexp.MustCompile(`Author:\s*([^|]+)`)
	commentsRe     = regexp.MustCompile(`Comments?:\s*(\d+)`)
	arxivSplit     = regexp.MustCompile(`\n\n\s*\d+\.\s+\*\*`)
	arxivCompactRe = regexp.MustCompile(`\*\*(.*?)\*\*\s*\n\s*ID:\s*([^\n]+)\s*\n\s*发布日期:\s*([^\n]+)\s*\n\s*作者:\s*([^\n]+)\s*\n\s*摘要:\s*([^\n]+)\s*\n\s*URL:\s*([^\n]+)`)
)

// ParseNumbered 解析 "1. 标题" 开头的编号列表，元数据行形如
// "Points: 906 | Author: x | Comments: 12"
func ParseNumbered(text string) []Record {
	sections := numberedSplit.Split(normalizeNewlines(text), -1)
	var out []Record
	for _, section := range sections[1:] {
		lines := nonEmptyLines(section)
		if len(lines) < 2 {
			continue
		}
		title := lines[0]
		if title == "" || title == placeholder {
			continue
		}

		rec := Record{"title": title}
		for _, line := range lines[1:] {
			if strings.Contains(line, "|") && strings.Contains(line, "Points:") {
				if m := pointsRe.FindStringSubmatch(line); m != nil {
					rec["points"] = m[1]
				}
				if m := authorRe.FindStringSubmatch(line); m != nil {
					if a := strings.TrimSpace(m[1]); a != placeholder {
						rec["author"] = a
					}
				}
				if m := commentsRe.FindStringSubmatch(line); m != nil {
					rec["comments_count"] = m[1]
				}
				continue
			}
			key, value, ok := splitLabel(line)
			if !ok || value == placeholder {
				continue
			}
			if key == "url" && value == "(text post)" {
				continue
			}
			rec[key] = value
		}
		out = append(out, rec)
	}
	return out
}

// ParseArxivChinese 解析 "找到 N 篇相关论文" 格式的论文列表
func ParseArxivChinese(text string) []Record {
	text = normalizeNewlines(text)
	sections := arxivSplit.Split(text, -1)
	if len(sections) <= 1 {
		return parseArxivCompact(text)
	}

	var out []Record
	for _, section := range sections[1:] {
		lines := nonEmptyLines(section)
		if len(lines) == 0 {
			continue
		}
		rec := Record{"title": strings.TrimSuffix(lines[0], "**")}
		for _, line := range lines[1:] {
			if key, value, ok := splitLabel(line); ok {
				if key == "id" {
					key = "arxiv_id"
				}
				rec[key] = value
			}
		}
		out = append(out, rec)
	}
	return out
}

func parseArxivCompact(text string) []Record {
	var out []Record
	for _, m := range arxivCompactRe.FindAllStringSubmatch(text, -1) {
		out = append(out, Record{
			"title":     strings.TrimSpace(strings.TrimSuffix(m[1], "**")),
			"arxiv_id":  strings.TrimSpace(m[2]),
			"published": strings.TrimSpace(m[3]),
			"authors":   strings.TrimSpace(m[4]),
			"abstract":  strings.TrimSpace(m[5]),
			"url":       strings.TrimSpace(m[6]),
		})
	}
	return out
}

func normalizeNewlines(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}

func nonEmptyLines(block string) []string {
	var out []string
	for _, l := range strings.Split(block, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
