package toolsession

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/metrics"
)

const (
	defaultCloseTimeout   = 3 * time.Second
	defaultConnectTimeout = 60 * time.Second
)

type entry struct {
	name    string
	state   State
	session Session
	tools   []string
	err     error
}

// Manager 管理所有来源的工具会话
type Manager struct {
	connector      Connector
	closeTimeout   time.Duration
	connectTimeout time.Duration

	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

// ManagerOption Manager 可选项
type ManagerOption func(*Manager)

// WithCloseTimeout 设置单个会话关闭的最长等待时间
func WithCloseTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.closeTimeout = d
		}
	}
}

// WithConnectTimeout 设置单个会话建立的最长等待时间
func WithConnectTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.connectTimeout = d
		}
	}
}

// NewManager 创建会话管理器
func NewManager(connector Connector, opts ...ManagerOption) *Manager {
	m := &Manager{
		connector:      connector,
		closeTimeout:   defaultCloseTimeout,
		connectTimeout: defaultConnectTimeout,
		entries:        make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConnectAll 逐个连接启用的来源，单个来源失败不影响其他来源
//
// 返回成功连接的来源名。
func (m *Manager) ConnectAll(ctx context.Context, servers map[string]config.ServerConfig) []string {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	var connected []string
	for _, name := range names {
		if ctx.Err() != nil {
			logger.Log.Warnf("连接中断: %v", ctx.Err())
			break
		}
		if m.connect(ctx, name, servers[name]) {
			connected = append(connected, name)
		}
	}
	logger.Log.Infof("工具会话就绪: %d/%d %v", len(connected), len(names), connected)
	return connected
}

func (m *Manager) connect(ctx context.Context, name string, srv config.ServerConfig) bool {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		e = &entry{name: name}
		m.entries[name] = e
		m.order = append(m.order, name)
	}
	if e.state == Connected || e.state == Connecting {
		m.mu.Unlock()
		return e.state == Connected
	}
	e.state = Connecting
	m.mu.Unlock()

	connCtx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	session, err := m.connector.Connect(connCtx, name, srv)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		e.state = Disconnected
		e.err = err
		logger.Log.WithFields(logrus.Fields{"source": name}).Warnf("连接工具服务失败: %v", err)
		return false
	}
	e.state = Connected
	e.session = session
	e.tools = session.Tools()
	e.err = nil
	logger.Log.WithFields(logrus.Fields{"source": name, "tools": len(e.tools)}).Info("工具服务已连接")
	return true
}

// Available 来源是否处于 Connected 状态
func (m *Manager) Available(source string) bool {
	return m.State(source) == Connected
}

// State 返回来源当前状态，未登记的来源视为 Disconnected
func (m *Manager) State(source string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[source]; ok {
		return e.state
	}
	return Disconnected
}

// Tools 返回来源暴露的工具名
func (m *Manager) Tools(source string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[source]; ok {
		return append([]string(nil), e.tools...)
	}
	return nil
}

// LastError 返回来源最近一次连接失败的原因
func (m *Manager) LastError(source string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[source]; ok {
		return e.err
	}
	return nil
}

// Invoke 调用来源上的指定工具，仅在 Connected 状态下有效
func (m *Manager) Invoke(ctx context.Context, source, tool string, args map[string]any) (*Payload, error) {
	m.mu.RLock()
	e, ok := m.entries[source]
	var session Session
	var state State
	if ok {
		session, state = e.session, e.state
	}
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", source, ErrUnknownSource)
	}
	if state != Connected {
		return nil, fmt.Errorf("%s %w", source, ErrNotConnected)
	}

	logger.Log.Debugf("调用工具 %s.%s args=%v", source, tool, args)
	payload, err := session.CallTool(ctx, tool, args)
	metrics.ToolCalls.WithLabelValues(source, tool, metrics.Status(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("call %s.%s failed: %w", source, tool, err)
	}
	return payload, nil
}

// CloseAll 关闭全部会话，可重复调用
//
// 每个会话的关闭最多等待 closeTimeout，超时后放弃该会话继续关闭下一个，
// 关闭错误只记录日志。
func (m *Manager) CloseAll() {
	type closing struct {
		name    string
		session Session
	}

	m.mu.Lock()
	var pending []closing
	for _, name := range m.order {
		e := m.entries[name]
		if e.state == Closed {
			continue
		}
		if e.state == Connected && e.session != nil {
			pending = append(pending, closing{name: name, session: e.session})
		}
		e.state = Closed
		e.session = nil
	}
	m.mu.Unlock()

	for _, c := range pending {
		m.closeOne(c.name, c.session)
	}
}

func (m *Manager) closeOne(name string, session Session) {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic during close: %v", r)
			}
		}()
		done <- session.Close()
	}()

	timer := time.NewTimer(m.closeTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"source": name}).Warnf("关闭工具会话出错: %v", err)
			return
		}
		logger.Log.WithFields(logrus.Fields{"source": name}).Debug("工具会话已关闭")
	case <-timer.C:
		logger.Log.WithFields(logrus.Fields{"source": name}).Warnf("关闭工具会话超时 (%s)，放弃等待", m.closeTimeout)
	}
}
