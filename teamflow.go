// Package teamflow provides a top-level convenience entry point for creating
// hierarchical supervisors with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/teamflow"
//
//	s, err := teamflow.New(teamflow.WithDeepSeek("deepseek-chat"))
//	s, err := teamflow.New(teamflow.WithCohere("command-r"))
//	s, err := teamflow.New(teamflow.WithProvider(myProvider), teamflow.WithModel("custom"))
//
// This is a thin wrapper around [quick.New]; both produce identical results.
// Use this package when you prefer the shorter import path.
package teamflow

import (
	"github.com/BaSui01/teamflow/agent"
	"github.com/BaSui01/teamflow/quick"
)

// Option configures the supervisor created by [New].
type Option = quick.Option

// New creates an [agent.Supervisor] with minimal configuration.
// At minimum, a provider must be specified via [WithDeepSeek], [WithCohere],
// or [WithProvider].
func New(opts ...Option) (*agent.Supervisor, error) {
	return quick.New(opts...)
}

// Re-export provider shortcuts so callers never need to import quick/.

// WithProvider sets a pre-built LLM provider.
var WithProvider = quick.WithProvider

// WithDeepSeek creates a DeepSeek provider. API key from DEEPSEEK_API_KEY env.
var WithDeepSeek = quick.WithDeepSeek

// WithCohere creates a Cohere provider. API key from COHERE_API_KEY env.
var WithCohere = quick.WithCohere

// WithModel overrides the model name.
var WithModel = quick.WithModel

// WithAPIKey overrides the API key for provider shortcuts.
var WithAPIKey = quick.WithAPIKey

// WithLogger sets a custom zap logger.
var WithLogger = quick.WithLogger

// WithTools sets a custom tool registry.
var WithTools = quick.WithTools

// WithCache sets a cache manager and enables response caching.
var WithCache = quick.WithCache

// WithConfig replaces the supervisor configuration wholesale.
var WithConfig = quick.WithConfig
