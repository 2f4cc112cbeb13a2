package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
)

var (
	// ErrNotConfigured 未配置 API Key
	ErrNotConfigured = errors.New("llm not configured")
	// ErrEmptyResponse 模型返回空内容
	ErrEmptyResponse = errors.New("empty llm response")
)

// 支持的提供方
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Completer 文本补全接口: 输入提示词，返回生成文本
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewCompleter 根据配置创建补全客户端
func NewCompleter(ctx context.Context, cfg config.LLMConfig) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderAnthropic:
		return newAnthropicProvider(cfg), nil
	case ProviderOpenAI:
		return newEinoProvider(ctx, cfg)
	case ProviderGemini:
		return newGeminiProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// CleanFence 去掉模型输出外层的 ``` 代码块标记
func CleanFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
