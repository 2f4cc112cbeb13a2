package report

import (
	"context"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

// ReportSaver 报告表的写入接口，由 internal/storage 实现
type ReportSaver interface {
	SaveReport(ctx context.Context, runID string, r *model.Report) error
}

// TableSink 把报告写入远程表
type TableSink struct {
	saver ReportSaver
	runID string
}

// NewTableSink 创建 TableSink，runID 用于区分同一天的多次运行
func NewTableSink(saver ReportSaver, runID string) *TableSink {
	return &TableSink{saver: saver, runID: runID}
}

func (s *TableSink) Name() string { return "table" }

func (s *TableSink) Publish(ctx context.Context, r *model.Report) error {
	return s.saver.SaveReport(ctx, s.runID, r)
}
