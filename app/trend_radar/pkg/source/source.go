package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/search"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/toolsession"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/translate"
)

// ErrNoResults 所有策略都没有拿到可用结果
var ErrNoResults = errors.New("no meaningful results found")

// ErrUnusable 超过半数记录缺少标题或只有占位值
var ErrUnusable = errors.New("unusable response: placeholder values in most records")

// Invoker 工具调用入口，由 toolsession.Manager 实现
type Invoker interface {
	Available(source string) bool
	Invoke(ctx context.Context, source, tool string, args map[string]any) (*toolsession.Payload, error)
}

var _ Invoker = (*toolsession.Manager)(nil)

// Adapter 单个平台的检索适配器
//
// Research 不返回 error，失败以 ResearchResult.Error 表示。
type Adapter interface {
	Platform() model.Platform
	Research(ctx context.Context, inv Invoker, keyword string) model.ResearchResult
}

// Deps 适配器依赖
type Deps struct {
	Servers    map[string]config.ServerConfig
	Translator *translate.Translator
	// Searcher 网页来源的直连兜底，可为 nil
	Searcher search.Searcher
	Web      config.WebConfig
	News     config.NewsConfig
	Now      func() time.Time
}

// New 按平台名创建适配器
func New(platform string, deps Deps) (Adapter, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Translator == nil {
		deps.Translator = translate.New(nil)
	}
	b := base{deps: deps}

	switch model.Platform(platform) {
	case model.PlatformWeb:
		b.platform = model.PlatformWeb
		return &WebAdapter{base: b}, nil
	case model.PlatformVideo:
		b.platform = model.PlatformVideo
		return &VideoAdapter{base: b}, nil
	case model.PlatformCode:
		b.platform = model.PlatformCode
		return &CodeAdapter{base: b}, nil
	case model.PlatformArxiv:
		b.platform = model.PlatformArxiv
		return &ArxivAdapter{base: b}, nil
	case model.PlatformNews:
		b.platform = model.PlatformNews
		return &NewsAdapter{base: b}, nil
	default:
		return nil, fmt.Errorf("unknown platform: %s", platform)
	}
}

// NewAll 按顺序创建全部平台的适配器
func NewAll(platforms []string, deps Deps) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(platforms))
	for _, p := range platforms {
		a, err := New(p, deps)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

type base struct {
	platform model.Platform
	deps     Deps
}

func (b base) Platform() model.Platform { return b.platform }

func (b base) source() string { return string(b.platform) }

// tool 返回第 i 个配置的工具名
func (b base) tool(i int, fallback string) string {
	srv, ok := b.deps.Servers[b.source()]
	if !ok || len(srv.Tools) <= i || srv.Tools[i] == "" {
		return fallback
	}
	return srv.Tools[i]
}

func (b base) newResult(keyword string) model.ResearchResult {
	return model.NewResult(b.platform, keyword, b.deps.Now())
}

func (b base) notConnected(keyword string) model.ResearchResult {
	return b.newResult(keyword).Failed(fmt.Sprintf("%s not connected", b.platform))
}

// call 调用工具并按布局解析出记录
func (b base) call(ctx context.Context, inv Invoker, tool string, args map[string]any, layout Layout) ([]Record, error) {
	payload, err := inv.Invoke(ctx, b.source(), tool, args)
	if err != nil {
		return nil, err
	}
	resp := Classify(payload)
	records := layout.Records(resp)
	logger.Log.Debugf("%s.%s 响应形态 %s，解析出 %d 条记录", b.source(), tool, resp.Shape, len(records))
	return records, nil
}
