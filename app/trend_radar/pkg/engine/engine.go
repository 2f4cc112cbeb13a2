package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/trend_radar/app/trend_radar/internal/storage"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/extractor"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/keyword"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/llm"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/metrics"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/report"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/scorer"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/search"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/search/factory"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/source"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/toolsession"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/translate"
)

// DiscoveredFrom 新关键词的来源标记
const DiscoveredFrom = "daily_research"

// Engine 核心处理引擎
type Engine struct {
	cfg       *config.Config
	store     *keyword.Store
	sessions  *toolsession.Manager
	adapters  []source.Adapter
	extractor *extractor.Extractor
	table     *storage.Storage
	lookupEnv func(string) (string, bool)
	now       func() time.Time
}

type options struct {
	connector toolsession.Connector
	completer llm.Completer
	lookupEnv func(string) (string, bool)
	now       func() time.Time
}

// Option 引擎选项
type Option func(*options)

// WithConnector 替换工具会话的连接方式
func WithConnector(c toolsession.Connector) Option {
	return func(o *options) { o.connector = c }
}

// WithCompleter 使用指定的补全客户端，不再按配置创建
func WithCompleter(c llm.Completer) Option {
	return func(o *options) { o.completer = c }
}

// WithLookupEnv 替换凭据检查使用的环境变量查询
func WithLookupEnv(f func(string) (string, bool)) Option {
	return func(o *options) { o.lookupEnv = f }
}

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewEngine 创建引擎实例
func NewEngine(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	o := options{lookupEnv: os.LookupEnv, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.connector == nil {
		o.connector = toolsession.NewMCPConnector(nil)
	}

	completer := o.completer
	if completer == nil {
		c, err := llm.NewCompleter(ctx, cfg.LLM)
		switch {
		case errors.Is(err, llm.ErrNotConfigured):
			logger.Log.Warn("未配置 LLM API Key，关键词提取与翻译将使用内置规则")
		case err != nil:
			return nil, fmt.Errorf("LLM 初始化失败: %w", err)
		default:
			completer = llm.NewLimited(c, cfg.LLM.Provider, cfg.Concurrency)
			logger.Log.Infof("限流器已配置: RPM=%d, Burst=%d", cfg.Concurrency.RPM, cfg.Concurrency.QPS)
		}
	}

	searcher, err := factory.NewSearcher(cfg.Search)
	switch {
	case errors.Is(err, search.ErrNotConfigured):
		logger.Log.Info("未配置直连搜索，网页来源仅使用工具服务")
	case err != nil:
		logger.Log.Warnf("搜索客户端初始化失败: %v", err)
	}

	adapters, err := source.NewAll(cfg.Platforms, source.Deps{
		Servers:    cfg.Servers,
		Translator: translate.New(completer),
		Searcher:   searcher,
		Web:        cfg.Web,
		News:       cfg.News,
		Now:        o.now,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:   cfg,
		store: keyword.NewStore(cfg.Keywords.Dir, keyword.WithClock(o.now)),
		sessions: toolsession.NewManager(o.connector,
			toolsession.WithCloseTimeout(cfg.SessionTimeout),
			toolsession.WithConnectTimeout(cfg.ConnectTimeout),
		),
		adapters:  adapters,
		extractor: extractor.New(completer),
		lookupEnv: o.lookupEnv,
		now:       o.now,
	}

	if cfg.Report.Table.Enabled {
		if cfg.DB.Host == "" {
			logger.Log.Warn("已启用表格镜像但未配置数据库信息，跳过")
		} else if st, err := storage.NewStorage(cfg.DB); err != nil {
			logger.Log.Errorf("无法连接数据库: %v. 将仅生成本地报告。", err)
		} else {
			e.table = st
			logger.Log.Info("已成功连接到数据库")
			switch last, err := st.LatestReportDate(ctx); {
			case errors.Is(err, sql.ErrNoRows):
				logger.Log.Info("数据库中尚无历史报告")
			case err != nil:
				logger.Log.Warnf("查询历史报告失败: %v", err)
			default:
				logger.Log.Infof("数据库中最近的报告日期: %s", last)
			}
		}
	}
	return e, nil
}

// Close 释放工具会话与数据库连接，可重复调用
func (e *Engine) Close() {
	e.sessions.CloseAll()
	if e.table != nil {
		if err := e.table.Close(); err != nil {
			logger.Log.Warnf("关闭数据库连接失败: %v", err)
		}
		e.table = nil
	}
}

// Run 执行一次完整的研究流程
//
// 任何退出路径都会释放工具会话；只有本地持久化失败会返回错误。
func (e *Engine) Run(ctx context.Context) (err error) {
	start := e.now()
	runID := uuid.NewString()
	date := start.Format(time.DateOnly)
	logger.Log.Infof("开始趋势研究 [%s] run=%s", date, runID)

	defer func() {
		e.sessions.CloseAll()
		metrics.CycleDuration.Set(e.now().Sub(start).Seconds())
		if err != nil {
			metrics.LastCycleSuccess.Set(0)
		} else {
			metrics.LastCycleSuccess.Set(1)
		}
		if werr := metrics.WriteTextfile(e.cfg.Metrics.Textfile); werr != nil {
			logger.Log.Warnf("写出指标失败: %v", werr)
		}
	}()

	enabled, skipped := e.cfg.EnabledServers(e.lookupEnv)
	for _, name := range sortedKeys(skipped) {
		logger.Log.Warnf("跳过工具服务 [%s]: %s", name, skipped[name])
	}
	names := config.ServerNames(enabled)
	logger.Log.Infof("连接工具服务: %v", names)
	e.sessions.ConnectAll(ctx, enabled)
	for _, name := range names {
		if !e.sessions.Available(name) {
			logger.Log.Warnf("工具服务 [%s] 不可用，本轮跳过: %v", name, e.sessions.LastError(name))
		}
	}

	keywords, err := e.activeKeywords()
	if err != nil {
		return fmt.Errorf("load active keywords failed: %w", err)
	}
	logger.Log.Infof("本轮关键词 %d 个: %v", len(keywords), keywords)

	results := e.research(ctx, keywords)
	if cerr := ctx.Err(); cerr != nil {
		e.recordFailure(keywords, 0)
		return fmt.Errorf("research interrupted: %w", cerr)
	}

	newKeywords := e.extractor.Extract(ctx, results)
	if err := e.saveKeywords(newKeywords, scorer.Score(newKeywords, results)); err != nil {
		e.recordFailure(keywords, len(newKeywords))
		return fmt.Errorf("save keywords failed: %w", err)
	}
	if err := e.store.MarkUsed(keywords); err != nil {
		e.recordFailure(keywords, len(newKeywords))
		return fmt.Errorf("mark keywords used failed: %w", err)
	}

	rep := report.Assemble(date, results, newKeywords, scorer.Recommend(results, newKeywords))
	pub := e.publisher(runID)
	logger.Log.Infof("发布报告: %v", pub.Sinks())
	if err := pub.Publish(ctx, rep); err != nil {
		e.recordFailure(keywords, len(newKeywords))
		return err
	}

	if err := e.store.RecordExecution(keywords, keyword.StatusCompleted, len(newKeywords)); err != nil {
		return fmt.Errorf("record execution failed: %w", err)
	}
	logger.Log.Infof("✅ 趋势研究完成: %d 个平台, %d 条结果, %d 个新关键词",
		rep.Summary.PlatformsSearched, rep.Summary.TotalResults, rep.Summary.NewKeywordsFound)
	return nil
}

// activeKeywords 活跃集合为空时按分数重建，注册表为空时先写入种子
func (e *Engine) activeKeywords() ([]string, error) {
	active, err := e.store.LoadActive()
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return active, nil
	}

	master, err := e.store.LoadMaster()
	if err != nil {
		return nil, err
	}
	if master.Len() == 0 && len(e.cfg.Keywords.Seeds) > 0 {
		n, err := e.store.Seed(e.cfg.Keywords.Seeds)
		if err != nil {
			return nil, err
		}
		logger.Log.Infof("已写入 %d 个种子关键词", n)
	}
	return e.store.RefreshActive(e.cfg.Keywords.ActiveLimit)
}

// research 检索全部 (关键词, 平台) 组合，结果按组合下标排列
func (e *Engine) research(ctx context.Context, keywords []string) []model.ResearchResult {
	results := make([]model.ResearchResult, len(keywords)*len(e.adapters))

	var g errgroup.Group
	g.SetLimit(max(1, e.cfg.Concurrency.Pairs))
	for ki, kw := range keywords {
		for ai, a := range e.adapters {
			slot := ki*len(e.adapters) + ai
			g.Go(func() error {
				results[slot] = e.researchOne(ctx, a, kw)
				return nil
			})
		}
	}
	_ = g.Wait()
	return results
}

func (e *Engine) researchOne(ctx context.Context, a source.Adapter, kw string) (res model.ResearchResult) {
	defer func() {
		if r := recover(); r != nil {
			res = model.NewResult(a.Platform(), kw, e.now()).Failed(fmt.Sprintf("panic: %v", r))
		}
		status := "ok"
		if res.Error != "" {
			status = "error"
			logger.Log.Errorf("检索失败 [%s/%s]: %s", a.Platform(), kw, res.Error)
		} else {
			logger.Log.Infof("检索完成 [%s/%s]: %d 条", a.Platform(), kw, len(res.Results))
		}
		metrics.ResearchResults.WithLabelValues(string(a.Platform()), status).Inc()
		metrics.ResearchItems.WithLabelValues(string(a.Platform())).Add(float64(len(res.Results)))
	}()

	if err := ctx.Err(); err != nil {
		return model.NewResult(a.Platform(), kw, e.now()).Failed(err.Error())
	}
	return a.Research(ctx, e.sessions, kw)
}

// saveKeywords 新词写入注册表；已有的词只在新分数更高时提升分数
func (e *Engine) saveKeywords(terms []string, scores map[string]int) error {
	master, err := e.store.LoadMaster()
	if err != nil {
		return err
	}

	for _, term := range terms {
		score, ok := scores[term]
		if !ok {
			continue
		}
		added, err := e.store.AddNewKeyword(term, score, keyword.SourceDiscovered, DiscoveredFrom)
		if err != nil {
			return err
		}
		if added {
			metrics.KeywordsDiscovered.Inc()
			logger.Log.Infof("新增关键词: %s (score %d)", term, score)
			continue
		}
		if rec, ok := master.Get(term); ok && score > rec.Score {
			if _, err := e.store.UpdateScore(term, score); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) recordFailure(keywords []string, newCount int) {
	if err := e.store.RecordExecution(keywords, keyword.StatusFailed, newCount); err != nil {
		logger.Log.Errorf("记录执行历史失败: %v", err)
	}
}

// publisher 本地 JSON 为主输出，其余为尽力而为的镜像
func (e *Engine) publisher(runID string) *report.Publisher {
	var mirrors []report.Sink
	if e.cfg.Report.HTML {
		mirrors = append(mirrors, report.NewHTMLSink(e.cfg.Report.Dir))
	}
	if n := e.cfg.Report.Notion; n.Enabled {
		tool := e.cfg.Servers[n.Server].PrimaryTool("create-page")
		mirrors = append(mirrors, report.NewNotionSink(e.sessions, n.Server, tool, n.ParentPageID))
	}
	if e.table != nil {
		mirrors = append(mirrors, report.NewTableSink(e.table, runID))
	}
	return report.NewPublisher(report.NewJSONSink(e.cfg.Report.Dir), mirrors...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
