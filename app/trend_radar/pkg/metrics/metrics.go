package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry 本进程的指标注册表
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	ToolCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "trend_radar_tool_calls_total",
		Help: "Tool invocations by source, tool and status",
	}, []string{"source", "tool", "status"})

	ResearchResults = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "trend_radar_research_results_total",
		Help: "Research results produced per platform and status",
	}, []string{"platform", "status"})

	ResearchItems = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "trend_radar_research_items_total",
		Help: "Result items collected per platform",
	}, []string{"platform"})

	LLMRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "trend_radar_llm_requests_total",
		Help: "Completion requests by provider and status",
	}, []string{"provider", "status"})

	LLMRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trend_radar_llm_request_duration_seconds",
		Help:    "Duration of completion requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	KeywordsDiscovered = factory.NewCounter(prometheus.CounterOpts{
		Name: "trend_radar_keywords_discovered_total",
		Help: "New keywords inserted into the registry",
	})

	SinkPublishes = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "trend_radar_sink_publishes_total",
		Help: "Report publications by sink and status",
	}, []string{"sink", "status"})

	CycleDuration = factory.NewGauge(prometheus.GaugeOpts{
		Name: "trend_radar_cycle_duration_seconds",
		Help: "Duration of the last research cycle",
	})

	LastCycleSuccess = factory.NewGauge(prometheus.GaugeOpts{
		Name: "trend_radar_last_cycle_success",
		Help: "1 if the last research cycle completed, 0 otherwise",
	})
)

// Status 将 error 转为指标状态标签
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// WriteTextfile 以 Prometheus 文本格式写出全部指标，供 node_exporter textfile collector 采集
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir failed: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile failed: %w", err)
	}
	return nil
}
