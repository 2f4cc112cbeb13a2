package toolsession

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
)

const clientName = "trend-radar"

// TransportFactory 根据服务配置创建传输层
type TransportFactory func(name string, srv config.ServerConfig) (mcp.Transport, error)

// MCPConnector 通过 MCP 协议连接子进程工具服务
type MCPConnector struct {
	client    *mcp.Client
	transport TransportFactory
}

var _ Connector = (*MCPConnector)(nil)

// NewMCPConnector 创建连接器，transport 为 nil 时启动子进程并通过 stdio 通信
func NewMCPConnector(transport TransportFactory) *MCPConnector {
	if transport == nil {
		transport = CommandTransport
	}
	return &MCPConnector{
		client:    mcp.NewClient(&mcp.Implementation{Name: clientName, Version: "v1.0.0"}, nil),
		transport: transport,
	}
}

// CommandTransport 以子进程方式启动工具服务
//
// 子进程继承当前环境变量，配置中的 env 与 args 里的 ${VAR} 会被展开。
// 不使用 CommandContext，子进程的生命周期由会话关闭控制。
func CommandTransport(name string, srv config.ServerConfig) (mcp.Transport, error) {
	if srv.Command == "" {
		return nil, fmt.Errorf("server %s has no command", name)
	}
	args := make([]string, 0, len(srv.Args))
	for _, a := range srv.Args {
		args = append(args, os.ExpandEnv(a))
	}

	cmd := exec.Command(srv.Command, args...)
	cmd.Env = os.Environ()
	for k, v := range srv.Env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}
	return &mcp.CommandTransport{Command: cmd, TerminateDuration: 2 * time.Second}, nil
}

// Connect 建立会话并列出服务暴露的工具
func (c *MCPConnector) Connect(ctx context.Context, name string, srv config.ServerConfig) (Session, error) {
	transport, err := c.transport(name, srv)
	if err != nil {
		return nil, err
	}

	cs, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s failed: %w", name, err)
	}

	res, err := cs.ListTools(ctx, nil)
	if err != nil {
		_ = cs.Close()
		return nil, fmt.Errorf("list tools of %s failed: %w", name, err)
	}
	tools := make([]string, 0, len(res.Tools))
	for _, t := range res.Tools {
		tools = append(tools, t.Name)
	}
	return &mcpSession{cs: cs, tools: tools}, nil
}

type mcpSession struct {
	cs    *mcp.ClientSession
	tools []string
}

func (s *mcpSession) Tools() []string { return s.tools }

func (s *mcpSession) Close() error { return s.cs.Close() }

func (s *mcpSession) CallTool(ctx context.Context, tool string, args map[string]any) (*Payload, error) {
	res, err := s.cs.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return nil, err
	}

	payload := &Payload{Structured: res.StructuredContent}
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			payload.Texts = append(payload.Texts, tc.Text)
		}
	}
	if res.IsError {
		msg := strings.TrimSpace(strings.Join(payload.Texts, "\n"))
		if msg == "" {
			msg = "tool reported an error"
		}
		return nil, fmt.Errorf("%s: %s", tool, msg)
	}
	return payload, nil
}
