package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
)

// einoProvider 通过 eino 调用 OpenAI 兼容接口
type einoProvider struct {
	chatModel model.ChatModel
}

func newEinoProvider(ctx context.Context, cfg config.LLMConfig) (*einoProvider, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	return &einoProvider{chatModel: chatModel}, nil
}

func (p *einoProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.chatModel.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
