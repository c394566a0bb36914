// =============================================================================
// Package quick — One-Line Supervisor Construction
// =============================================================================
// Provides a convenience entry point for creating a hierarchical supervisor
// with minimal boilerplate. Delegates to agent.NewSupervisor and llm/factory
// internally.
//
// The package lives under quick/ (not root) so the root package can re-export
// it without an import cycle.
//
// Usage:
//
//	import "github.com/BaSui01/teamflow/quick"
//
//	s, err := quick.New(quick.WithDeepSeek("deepseek-chat"))
//	s, err := quick.New(quick.WithCohere("command-r"))
//	s, err := quick.New(quick.WithProvider(myProvider), quick.WithModel("custom"))
//
// =============================================================================
package quick

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/agent"
	"github.com/BaSui01/teamflow/cache"
	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/llm/factory"
	"github.com/BaSui01/teamflow/tools"
)

// Option configures the supervisor created by New.
type Option func(*options)

type options struct {
	model    string
	provider llm.Provider
	registry tools.ToolRegistry
	cacheMgr *cache.Manager
	logger   *zap.Logger
	config   agent.Config

	// Provider shortcut fields, used when provider is nil.
	providerName string
	apiKey       string
}

// WithProvider sets a pre-built LLM provider.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithDeepSeek creates a DeepSeek provider using the given model.
// API key is read from DEEPSEEK_API_KEY environment variable.
func WithDeepSeek(model string) Option {
	return func(o *options) {
		o.providerName = "deepseek"
		o.model = model
		if o.apiKey == "" {
			o.apiKey = os.Getenv("DEEPSEEK_API_KEY")
		}
	}
}

// WithCohere creates a Cohere provider using the given model.
// API key is read from COHERE_API_KEY environment variable.
func WithCohere(model string) Option {
	return func(o *options) {
		o.providerName = "cohere"
		o.model = model
		if o.apiKey == "" {
			o.apiKey = os.Getenv("COHERE_API_KEY")
		}
	}
}

// WithModel sets the model name. Overrides the model set by provider shortcuts.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithAPIKey overrides the API key for provider shortcuts (WithDeepSeek, etc.).
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTools sets a custom tool registry. Defaults to the built-in tool set.
func WithTools(registry tools.ToolRegistry) Option {
	return func(o *options) { o.registry = registry }
}

// WithCache sets a cache manager and enables response caching.
func WithCache(mgr *cache.Manager) Option {
	return func(o *options) {
		o.cacheMgr = mgr
		o.config.CacheEnabled = true
	}
}

// WithConfig replaces the supervisor configuration wholesale.
// Model and cache settings from other options still apply on top.
func WithConfig(cfg agent.Config) Option {
	return func(o *options) { o.config = cfg }
}

// New creates a hierarchical supervisor with minimal configuration.
func New(opts ...Option) (*agent.Supervisor, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	// Resolve provider.
	p := o.provider
	if p == nil {
		if o.providerName == "" {
			return nil, fmt.Errorf("provider is required: use WithProvider, WithDeepSeek, or WithCohere")
		}
		if o.apiKey == "" {
			return nil, fmt.Errorf("API key is required for %s: set the environment variable or use WithAPIKey", o.providerName)
		}
		var err error
		p, err = factory.NewProvider(o.providerName, factory.ProviderConfig{
			APIKey: o.apiKey,
			Model:  o.model,
		}, o.logger)
		if err != nil {
			return nil, fmt.Errorf("create %s provider: %w", o.providerName, err)
		}
	}

	// Resolve tool registry.
	registry := o.registry
	if registry == nil {
		var err error
		registry, err = defaultRegistry(o.logger)
		if err != nil {
			return nil, fmt.Errorf("build default tool registry: %w", err)
		}
	}

	if o.model != "" {
		o.config.Model = o.model
	}

	return agent.NewSupervisor(p, registry, o.cacheMgr, o.config, o.logger)
}

// defaultRegistry 注册内置工具集。
// 搜索密钥取自 TAVILY_API_KEY；缺失时工具仍注册，调用期报错并由研究子图降级。
func defaultRegistry(logger *zap.Logger) (tools.ToolRegistry, error) {
	registry := tools.NewDefaultRegistry(logger)

	searchCfg := tools.DefaultSearchToolConfig()
	searchCfg.Provider = tools.NewTavilyProvider(tools.TavilyConfig{
		APIKey: os.Getenv("TAVILY_API_KEY"),
	}, logger)
	searchFn, searchMeta := tools.NewSearchTool(searchCfg, logger)
	if err := registry.Register("web_search", searchFn, searchMeta); err != nil {
		return nil, err
	}

	scrapeFn, scrapeMeta := tools.NewScraperTool(tools.DefaultScraperConfig(), logger)
	if err := registry.Register("web_scraper", scrapeFn, scrapeMeta); err != nil {
		return nil, err
	}

	writeFn, writeMeta := tools.NewDocumentWriterTool(tools.WriterConfig{}, logger)
	if err := registry.Register("document_writer", writeFn, writeMeta); err != nil {
		return nil, err
	}

	noteFn, noteMeta := tools.NewNoteTakingTool(tools.NewNotesStore(), logger)
	if err := registry.Register("note_taking", noteFn, noteMeta); err != nil {
		return nil, err
	}

	chartFn, chartMeta := tools.NewChartGeneratorTool(logger)
	if err := registry.Register("chart_generator", chartFn, chartMeta); err != nil {
		return nil, err
	}

	return registry, nil
}
