package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/teamflow/agent"
	"github.com/BaSui01/teamflow/api/handlers"
	"github.com/BaSui01/teamflow/cache"
	"github.com/BaSui01/teamflow/config"
	"github.com/BaSui01/teamflow/internal/database"
	"github.com/BaSui01/teamflow/internal/metrics"
	"github.com/BaSui01/teamflow/internal/server"
	"github.com/BaSui01/teamflow/internal/telemetry"
	"github.com/BaSui01/teamflow/llm"
	llmfactory "github.com/BaSui01/teamflow/llm/factory"
	"github.com/BaSui01/teamflow/tools"
)

// poolStatsInterval 连接池指标采样周期
const poolStatsInterval = 15 * time.Second

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 TeamFlow 的主服务器，负责组装编排器及其依赖
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 核心组件
	collector    *metrics.Collector
	pool         *database.PoolManager
	cacheManager *cache.Manager
	provider     llm.Provider
	registry     tools.ToolRegistry
	supervisor   *agent.Supervisor
	notesStore   *tools.NotesStore

	// Handlers
	healthHandler *handlers.HealthHandler
	chatHandler   *handlers.ChatHandler
	agentsHandler *handlers.AgentsHandler
	convHandler   *handlers.ConversationsHandler

	// 后台 goroutine 生命周期管理
	rateLimiterCancel context.CancelFunc
	statsCancel       context.CancelFunc
	wg                sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otelProviders,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.collector = metrics.NewCollector("teamflow", s.logger)

	// 2. 初始化数据库（失败则降级运行，会话持久化禁用）
	s.initDatabase()

	// 3. 初始化两级缓存
	s.initCache()

	// 4. 初始化工具注册表
	if err := s.initTools(); err != nil {
		return fmt.Errorf("failed to init tools: %w", err)
	}

	// 5. 初始化 Provider 与编排器
	if err := s.initSupervisor(); err != nil {
		return fmt.Errorf("failed to init supervisor: %w", err)
	}

	// 6. 初始化 Handlers
	s.initHandlers()

	// 7. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 8. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 9. 启动连接池指标采样
	s.startPoolStatsLoop()

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("database_enabled", s.pool != nil),
		zap.Bool("orchestration_enabled", s.supervisor != nil),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initDatabase 打开数据库并初始化连接池。
// 数据库不可用时只降级（会话接口关闭），不阻止启动。
func (s *Server) initDatabase() {
	if s.cfg.Database.Driver == "" {
		s.logger.Info("database driver not configured, conversation persistence disabled")
		return
	}

	db, err := database.Open(s.cfg.Database.Driver, s.cfg.Database.DSN(), s.logger)
	if err != nil {
		s.logger.Warn("database not available, conversation persistence disabled", zap.Error(err))
		return
	}

	if err := database.Migrate(db, s.logger); err != nil {
		s.logger.Warn("database migration failed, conversation persistence disabled", zap.Error(err))
		return
	}

	pool, err := database.NewPoolManager(db, database.PoolConfig{
		MaxOpenConns:    s.cfg.Database.MaxOpenConns,
		MaxIdleConns:    s.cfg.Database.MaxIdleConns,
		ConnMaxLifetime: s.cfg.Database.ConnMaxLifetime,
	}, s.logger)
	if err != nil {
		s.logger.Warn("database pool init failed, conversation persistence disabled", zap.Error(err))
		return
	}

	s.pool = pool
}

// initCache 组装两级缓存：内存层始终启用，Redis 层按配置接入
func (s *Server) initCache() {
	var store cache.Store
	if s.cfg.Redis.Addr != "" {
		redisStore, err := cache.NewRedisStore(cache.RedisConfig{
			Addr:         s.cfg.Redis.Addr,
			Password:     s.cfg.Redis.Password,
			DB:           s.cfg.Redis.DB,
			PoolSize:     s.cfg.Redis.PoolSize,
			MinIdleConns: s.cfg.Redis.MinIdleConns,
			KeyPrefix:    s.cfg.Cache.KeyPrefix,
		}, s.logger)
		if err != nil {
			s.logger.Warn("redis not available, falling back to memory-only cache", zap.Error(err))
		} else {
			store = redisStore
		}
	}

	s.cacheManager = cache.NewManager(cache.Config{
		DefaultTTL:     s.cfg.Cache.DefaultTTL,
		MemoryCapacity: s.cfg.Cache.MemoryCapacity,
		SweepInterval:  s.cfg.Cache.SweepInterval,
	}, store, s.logger)
}

// initTools 注册全部内置工具
func (s *Server) initTools() error {
	registry := tools.NewDefaultRegistry(s.logger)

	// 搜索
	searchCfg := tools.DefaultSearchToolConfig()
	searchCfg.Provider = tools.NewTavilyProvider(tools.TavilyConfig{
		APIKey:  s.cfg.Tools.SearchAPIKey,
		BaseURL: s.cfg.Tools.SearchBaseURL,
	}, s.logger)
	if s.cfg.Tools.SearchMaxResults > 0 {
		searchCfg.DefaultOpts.MaxResults = s.cfg.Tools.SearchMaxResults
	}
	searchFn, searchMeta := tools.NewSearchTool(searchCfg, s.logger)
	if err := registry.Register("web_search", searchFn, searchMeta); err != nil {
		return err
	}

	// 抓取
	scraperCfg := tools.DefaultScraperConfig()
	if s.cfg.Tools.ScrapeTimeout > 0 {
		scraperCfg.Timeout = s.cfg.Tools.ScrapeTimeout
	}
	scrapeFn, scrapeMeta := tools.NewScraperTool(scraperCfg, s.logger)
	if err := registry.Register("web_scraper", scrapeFn, scrapeMeta); err != nil {
		return err
	}

	// 文档落盘
	writeFn, writeMeta := tools.NewDocumentWriterTool(tools.WriterConfig{
		OutputDir: s.cfg.Tools.OutputDir,
	}, s.logger)
	if err := registry.Register("document_writer", writeFn, writeMeta); err != nil {
		return err
	}

	// 笔记
	s.notesStore = tools.NewNotesStore()
	noteFn, noteMeta := tools.NewNoteTakingTool(s.notesStore, s.logger)
	if err := registry.Register("note_taking", noteFn, noteMeta); err != nil {
		return err
	}

	// 图表
	chartFn, chartMeta := tools.NewChartGeneratorTool(s.logger)
	if err := registry.Register("chart_generator", chartFn, chartMeta); err != nil {
		return err
	}

	s.registry = registry
	return nil
}

// initSupervisor 创建 Provider 并组装层级编排器。
// 缺少 API Key 时编排接口关闭，服务仍可提供健康检查与会话查询。
func (s *Server) initSupervisor() error {
	providerName := s.cfg.LLM.DefaultProvider
	providerCfg := s.providerConfig(providerName)
	if providerCfg.APIKey == "" {
		s.logger.Info("LLM API key not configured, orchestration endpoints disabled",
			zap.String("provider", providerName))
		return nil
	}

	provider, err := llmfactory.NewProvider(providerName, llmfactory.ProviderConfig{
		APIKey:  providerCfg.APIKey,
		BaseURL: providerCfg.BaseURL,
		Model:   providerCfg.Model,
		Timeout: s.cfg.LLM.Timeout,
	}, s.logger)
	if err != nil {
		return err
	}
	s.provider = provider

	supervisor, err := agent.NewSupervisor(provider, s.registry, s.cacheManager, agent.Config{
		Model:             providerCfg.Model,
		Temperature:       float32(s.cfg.LLM.Temperature),
		MaxTokens:         s.cfg.LLM.MaxTokens,
		MaxSteps:          s.cfg.Supervisor.MaxSteps,
		TeamMaxSteps:      s.cfg.Supervisor.TeamMaxSteps,
		CacheEnabled:      s.cfg.Supervisor.CacheEnabled,
		CacheTTL:          s.cfg.Supervisor.CacheTTL,
		StreamBufferSize:  s.cfg.Stream.BufferSize,
		StreamPollTimeout: s.cfg.Stream.PollTimeout,
	}, s.logger)
	if err != nil {
		return err
	}
	s.supervisor = supervisor

	s.logger.Info("supervisor initialized",
		zap.String("provider", providerName),
		zap.String("model", providerCfg.Model),
		zap.Bool("cache_enabled", s.cfg.Supervisor.CacheEnabled),
	)
	return nil
}

// providerConfig 按名称取 Provider 接入配置
func (s *Server) providerConfig(name string) config.ProviderConfig {
	switch name {
	case "cohere":
		return s.cfg.LLM.Cohere
	default:
		return s.cfg.LLM.DeepSeek
	}
}

// initHandlers 初始化所有 handlers 并挂接就绪检查
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)

	if s.pool != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("database", s.pool.Ping))
		s.convHandler = handlers.NewConversationsHandler(s.pool, s.logger)
	}
	if s.cacheManager != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("cache", s.cacheManager.Ping))
	}
	if s.supervisor != nil {
		s.healthHandler.RegisterCheck(handlers.NewProviderHealthCheck(s.provider))
		s.chatHandler = handlers.NewChatHandler(s.supervisor, s.pool, s.collector, s.logger)
		s.agentsHandler = handlers.NewAgentsHandler(s.supervisor, s.registry, s.logger)
	}

	s.logger.Info("handlers initialized")
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 注册路由、组装中间件链并启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// 编排 API
	if s.chatHandler != nil {
		mux.HandleFunc("POST /v1/chat", s.chatHandler.HandleTask)
		mux.HandleFunc("POST /v1/chat/stream", s.chatHandler.HandleTaskStream)
		mux.HandleFunc("GET /v1/agents/status", s.agentsHandler.HandleStatus)
		mux.HandleFunc("GET /v1/tools", s.agentsHandler.HandleListTools)
		s.logger.Info("orchestration API routes registered")
	}

	// 会话 API
	if s.convHandler != nil {
		mux.HandleFunc("POST /v1/conversations", s.convHandler.HandleCreate)
		mux.HandleFunc("GET /v1/conversations", s.convHandler.HandleList)
		mux.HandleFunc("GET /v1/conversations/{id}", s.convHandler.HandleGet)
		mux.HandleFunc("DELETE /v1/conversations/{id}", s.convHandler.HandleDelete)
		s.logger.Info("conversation API routes registered")
	}

	// 构建中间件链
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	}
	if s.cfg.Telemetry.Enabled {
		middlewares = append(middlewares, OTelTracing())
	}
	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager("api", handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager("metrics", mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// startPoolStatsLoop 周期性把连接池状态写入指标
func (s *Server) startPoolStatsLoop() {
	if s.pool == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.statsCancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(poolStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := s.pool.GetStats()
				s.collector.RecordDBConnections("teamflow", stats.OpenConnections, stats.Idle)
			}
		}
	}()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 阻塞等待进程信号或任一监听器异常退出，然后优雅关闭。
// metrics 监听器的故障同样触发退出，避免指标静默丢失。
func (s *Server) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-s.httpManager.Errors():
		s.logger.Error("HTTP server exited unexpectedly", zap.Error(err))
	case err := <-s.metricsManager.Errors():
		s.logger.Error("metrics server exited unexpectedly", zap.Error(err))
	}

	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 停止后台 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.statsCancel != nil {
		s.statsCancel()
	}

	// 两个监听器并行排空，共享同一份超时预算
	var g errgroup.Group
	for _, m := range []*server.Manager{s.httpManager, s.metricsManager} {
		if m == nil {
			continue
		}
		g.Go(func() error {
			if err := m.Shutdown(ctx); err != nil {
				return fmt.Errorf("%s listener: %w", m.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("listener shutdown error", zap.Error(err))
	}

	// 关闭缓存与数据库
	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Cache shutdown error", zap.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Error("Database pool shutdown error", zap.Error(err))
		}
	}

	// 冲刷遥测数据
	if err := s.otel.Shutdown(ctx); err != nil {
		s.logger.Error("Telemetry shutdown error", zap.Error(err))
	}

	// 等待所有 goroutine 完成
	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
