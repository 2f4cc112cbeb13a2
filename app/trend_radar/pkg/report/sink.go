package report

import (
	"context"
	"fmt"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/metrics"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

// Sink 报告输出目标，不得修改传入的报告
type Sink interface {
	Name() string
	Publish(ctx context.Context, r *model.Report) error
}

// Publisher 先写主输出，再逐个写镜像
type Publisher struct {
	primary Sink
	mirrors []Sink
}

// NewPublisher 创建 Publisher，primary 失败时返回错误，mirrors 失败只记录日志
func NewPublisher(primary Sink, mirrors ...Sink) *Publisher {
	return &Publisher{primary: primary, mirrors: mirrors}
}

// Sinks 返回全部输出目标的名称
func (p *Publisher) Sinks() []string {
	names := []string{p.primary.Name()}
	for _, m := range p.mirrors {
		names = append(names, m.Name())
	}
	return names
}

// Publish 发布报告
func (p *Publisher) Publish(ctx context.Context, r *model.Report) error {
	err := p.primary.Publish(ctx, r)
	metrics.SinkPublishes.WithLabelValues(p.primary.Name(), metrics.Status(err)).Inc()
	if err != nil {
		return fmt.Errorf("publish %s failed: %w", p.primary.Name(), err)
	}

	for _, m := range p.mirrors {
		err := publishMirror(ctx, m, r)
		metrics.SinkPublishes.WithLabelValues(m.Name(), metrics.Status(err)).Inc()
		if err != nil {
			logger.Log.Warnf("报告镜像 [%s] 失败: %v", m.Name(), err)
			continue
		}
		logger.Log.Infof("报告已镜像到 [%s]", m.Name())
	}
	return nil
}

func publishMirror(ctx context.Context, s Sink, r *model.Report) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sink panic: %v", rec)
		}
	}()
	return s.Publish(ctx, r)
}
