package toolsession

import (
	"context"
	"errors"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
)

var (
	// ErrNotConnected 会话未处于 Connected 状态
	ErrNotConnected = errors.New("not connected")
	// ErrUnknownSource 未登记的来源
	ErrUnknownSource = errors.New("unknown source")
)

// State 会话状态
type State int

// 会话状态机: Disconnected → Connecting → Connected → Closed
const (
	Disconnected State = iota
	Connecting
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Payload 工具调用的原始响应
//
// Structured 为结构化内容，Texts 为按顺序排列的文本内容。
type Payload struct {
	Structured any
	Texts      []string
}

// Empty 响应是否没有任何内容
func (p *Payload) Empty() bool {
	if p == nil {
		return true
	}
	if p.Structured != nil {
		return false
	}
	for _, t := range p.Texts {
		if t != "" {
			return false
		}
	}
	return true
}

// Session 已建立的工具会话
type Session interface {
	CallTool(ctx context.Context, tool string, args map[string]any) (*Payload, error)
	Tools() []string
	Close() error
}

// Connector 负责建立工具会话
type Connector interface {
	Connect(ctx context.Context, name string, srv config.ServerConfig) (Session, error)
}
