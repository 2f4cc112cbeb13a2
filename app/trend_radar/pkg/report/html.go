package report

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

// HTMLData 用于模板渲染的数据
type HTMLData struct {
	Report *model.Report
	Groups []PlatformGroup
}

// PlatformGroup 同一平台的检索结果
type PlatformGroup struct {
	Platform model.Platform
	Results  []model.ResearchResult
}

// GroupByPlatform 按平台首次出现顺序分组
func GroupByPlatform(results []model.ResearchResult) []PlatformGroup {
	index := make(map[model.Platform]int)
	var groups []PlatformGroup
	for _, r := range results {
		i, ok := index[r.Platform]
		if !ok {
			i = len(groups)
			index[r.Platform] = i
			groups = append(groups, PlatformGroup{Platform: r.Platform})
		}
		groups[i].Results = append(groups[i].Results, r)
	}
	return groups
}

var htmlTemplate = template.Must(template.New("report").Parse(htmlTpl))

// HTMLSink 在 JSON 文件旁生成一份便于阅读的日报页面
type HTMLSink struct {
	dir string
}

// NewHTMLSink 创建 HTMLSink
func NewHTMLSink(dir string) *HTMLSink {
	return &HTMLSink{dir: dir}
}

func (s *HTMLSink) Name() string { return "html" }

// Path 返回指定日期的页面路径
func (s *HTMLSink) Path(date string) string {
	return filepath.Join(s.dir, fmt.Sprintf("ai_trends_%s.html", date))
}

func (s *HTMLSink) Publish(_ context.Context, r *model.Report) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir failed: %w", err)
	}

	path := s.Path(r.Date)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create html file failed: %w", err)
	}
	defer f.Close()

	if err := htmlTemplate.Execute(f, HTMLData{Report: r, Groups: GroupByPlatform(r.DetailedResults)}); err != nil {
		return fmt.Errorf("render html failed: %w", err)
	}
	logger.Log.Infof("HTML 日报已生成: %s", path)
	return nil
}

const htmlTpl = `<!DOCTYPE html>
<html lang="ja">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>AI 趋势雷达 | {{ .Report.Date }}</title>
    <style>
        :root {
            --primary-color: #2563eb;
            --bg-color: #f8fafc;
            --card-bg: #ffffff;
            --text-main: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            background-color: var(--bg-color);
            color: var(--text-main);
            line-height: 1.6;
            margin: 0;
            padding: 20px;
        }
        .container { max-width: 900px; margin: 0 auto; }
        header { text-align: center; margin-bottom: 40px; padding: 20px 0; }
        h1 { font-size: 2.5rem; margin: 0 0 10px 0; }
        .date-info { color: var(--text-secondary); }

        .panel {
            background: #fff;
            padding: 24px;
            border-radius: 12px;
            margin-bottom: 30px;
            box-shadow: 0 4px 6px -1px rgba(0,0,0,0.1);
            border: 1px solid var(--border-color);
        }
        .panel-header { font-size: 1.5rem; font-weight: bold; margin-bottom: 16px; border-bottom: 2px solid var(--primary-color); padding-bottom: 8px; display: inline-block; }
        .chips { display: flex; flex-wrap: wrap; gap: 8px; }
        .chip { background: #eff6ff; color: #1d4ed8; padding: 4px 12px; border-radius: 20px; font-weight: 600; }

        .platform-card {
            background: var(--card-bg);
            border-radius: 12px;
            padding: 24px;
            margin-bottom: 30px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.05);
            border: 1px solid var(--border-color);
        }
        .platform-title { font-size: 1.8rem; font-weight: 800; color: #0f172a; text-transform: uppercase; }
        .keyword-block { margin-top: 16px; padding-top: 12px; border-top: 1px dashed var(--border-color); }
        .keyword-title { font-weight: bold; color: #475569; }
        .error { color: #991b1b; background: #fee2e2; padding: 4px 12px; border-radius: 8px; display: inline-block; }
        .ref-list { list-style: none; padding: 0; }
        .ref-list li { margin-bottom: 6px; }
        .ref-list a { color: var(--primary-color); text-decoration: none; }
        .ref-list a:hover { text-decoration: underline; }
        .score { color: #166534; font-size: 0.8em; margin-left: 6px; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>📡 AI 趋势雷达</h1>
            <div class="date-info">{{ .Report.Date }} • 覆盖 {{ .Report.Summary.PlatformsSearched }} 个平台 • {{ len .Report.Summary.KeywordsUsed }} 个关键词 • {{ .Report.Summary.TotalResults }} 条结果</div>
        </header>

        {{if .Report.NewKeywords}}
        <div class="panel">
            <div class="panel-header">🆕 新关键词</div>
            <div class="chips">
                {{range .Report.NewKeywords}}<span class="chip">{{.}}</span>{{end}}
            </div>
        </div>
        {{end}}

        {{if .Report.Recommendations}}
        <div class="panel">
            <div class="panel-header">💡 建议</div>
            <ul>
                {{range .Report.Recommendations}}
                <li>{{.}}</li>
                {{end}}
            </ul>
        </div>
        {{end}}

        {{range .Groups}}
        <div class="platform-card">
            <div class="platform-title">{{.Platform}}</div>
            {{range .Results}}
            <div class="keyword-block">
                <div class="keyword-title">🔍 {{.Keyword}} ({{len .Results}})</div>
                {{if .Error}}
                <div class="error">{{.Error}}</div>
                {{else}}
                <ul class="ref-list">
                    {{range .Results}}
                    <li><a href="{{.URL}}" target="_blank">{{.Title}}</a>{{if .Source}} <span style="color:#94a3b8; font-size: 0.8em">({{ .Source }})</span>{{end}}{{if .TrendScore}}<span class="score">▲ {{.TrendScore}}</span>{{end}}</li>
                    {{end}}
                </ul>
                {{end}}
            </div>
            {{end}}
        </div>
        {{end}}
    </div>
</body>
</html>
`
