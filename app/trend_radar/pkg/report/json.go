package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

// JSONSink 每天一个 JSON 文件，同日重跑覆盖
type JSONSink struct {
	dir string
}

// NewJSONSink 创建 JSONSink
func NewJSONSink(dir string) *JSONSink {
	return &JSONSink{dir: dir}
}

func (s *JSONSink) Name() string { return "json" }

// Path 返回指定日期的报告路径
func (s *JSONSink) Path(date string) string {
	return filepath.Join(s.dir, fmt.Sprintf("ai_trends_%s.json", date))
}

func (s *JSONSink) Publish(_ context.Context, r *model.Report) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir failed: %w", err)
	}

	path := s.Path(r.Date)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file failed: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("write report failed: %w", err)
	}
	logger.Log.Infof("报告已保存: %s", path)
	return nil
}

// LoadJSON 读取 JSONSink 写出的报告
func LoadJSON(path string) (*model.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report failed: %w", err)
	}
	var r model.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report failed: %w", err)
	}
	return &r, nil
}
