package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🌐 HTTP 监听器生命周期
// =============================================================================

// 监听器状态机：Idle → Serving → Closed，只允许单向推进。
type managerState int

const (
	stateIdle managerState = iota
	stateServing
	stateClosed
)

// Manager 托管单个 HTTP 监听器的生命周期。
// TeamFlow 同时运行 API 与 metrics 两个监听器，name 用于区分日志来源。
type Manager struct {
	name      string
	server    *http.Server
	listener  net.Listener
	boundAddr string
	errCh     chan error
	config    Config
	logger    *zap.Logger

	mu    sync.Mutex
	state managerState
}

// Config 监听器配置，零值字段在 NewManager 中回填默认值
type Config struct {
	// 监听地址，":0" 表示随机端口
	Addr string `yaml:"addr" json:"addr"`

	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// 空闲连接超时
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// 请求头大小上限
	MaxHeaderBytes int `yaml:"max_header_bytes" json:"max_header_bytes"`

	// 优雅关闭等待上限
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig 返回默认监听器配置
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: 30 * time.Second,
	}
}

// normalize 把未设置的字段回填为默认值，Addr 除外（空串交给 net.Listen 报错）
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = def.MaxHeaderBytes
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	return c
}

// NewManager 创建监听器管理器。name 出现在该监听器的全部日志里
func NewManager(name string, handler http.Handler, config Config, logger *zap.Logger) *Manager {
	config = config.normalize()

	return &Manager{
		name: name,
		server: &http.Server{
			Handler:        handler,
			ReadTimeout:    config.ReadTimeout,
			WriteTimeout:   config.WriteTimeout,
			IdleTimeout:    config.IdleTimeout,
			MaxHeaderBytes: config.MaxHeaderBytes,
		},
		errCh:  make(chan error, 1),
		config: config,
		logger: logger.With(
			zap.String("component", "http_server"),
			zap.String("listener", name),
		),
	}
}

// =============================================================================
// 🎯 生命周期
// =============================================================================

// Start 绑定端口并在后台开始服务。重复调用或关闭后调用返回错误
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case stateServing:
		return fmt.Errorf("listener %s already started", m.name)
	case stateClosed:
		return fmt.Errorf("listener %s is closed", m.name)
	}

	listener, err := net.Listen("tcp", m.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.config.Addr, err)
	}

	m.listener = listener
	m.boundAddr = listener.Addr().String()
	m.state = stateServing
	m.logger.Info("HTTP listener started", zap.String("addr", m.boundAddr))

	go m.serve(listener)

	return nil
}

// serve 在独立 goroutine 中运行，异常退出写入 errCh 供上层观察
func (m *Manager) serve(listener net.Listener) {
	if err := m.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		m.logger.Error("HTTP listener failed", zap.Error(err))
		select {
		case m.errCh <- err:
		default:
		}
	}
}

// Shutdown 优雅关闭，等待在途请求完成，幂等
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == stateClosed {
		return nil
	}
	started := m.state == stateServing
	m.state = stateClosed

	if !started {
		return nil
	}

	m.logger.Info("HTTP listener shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, m.config.ShutdownTimeout)
	defer cancel()

	if err := m.server.Shutdown(shutdownCtx); err != nil {
		m.logger.Error("HTTP listener shutdown failed", zap.Error(err))
		return err
	}

	m.listener = nil

	m.logger.Info("HTTP listener stopped")
	return nil
}

// Errors 返回异步服务错误通道，端口在运行中失效时收到通知
func (m *Manager) Errors() <-chan error {
	return m.errCh
}

// =============================================================================
// 🔧 状态查询
// =============================================================================

// Name 返回监听器标识
func (m *Manager) Name() string {
	return m.name
}

// Addr 返回实际绑定地址。":0" 启动后返回内核分配的端口；未启动时返回配置地址
func (m *Manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.boundAddr != "" {
		return m.boundAddr
	}
	return m.config.Addr
}

// IsRunning 报告监听器是否正在服务
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateServing
}
