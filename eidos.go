// Package eidos provides a top-level convenience entry point for starting
// dialogue sessions with minimal boilerplate.
//
// Usage:
//
//	import "github.com/eidoslabs/eidos"
//
//	session, err := eidos.NewSession(eidos.WithOpenAI(apiKey))
//	out, err := session.HandleTurn(ctx, "I think therefore I am")
//
// This is a thin wrapper around [dialogue.NewSession]; use the dialogue
// package directly when you need full control over the collaborators.
package eidos

import (
	"go.uber.org/zap"

	"github.com/eidoslabs/eidos/config"
	"github.com/eidoslabs/eidos/dialogue"
	"github.com/eidoslabs/eidos/history"
	"github.com/eidoslabs/eidos/llm"
	"github.com/eidoslabs/eidos/retrieval"
	"github.com/eidoslabs/eidos/websearch"
)

type options struct {
	cfg        *config.Config
	configPath string
	deps       dialogue.Deps
	apiKey     string
}

// Option configures the session created by [NewSession].
type Option func(*options)

// WithConfig sets a pre-built configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithConfigFile loads configuration from a YAML file.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithProvider sets a pre-built generation provider.
func WithProvider(provider llm.Provider) Option {
	return func(o *options) { o.deps.Provider = provider }
}

// WithOpenAI creates an OpenAI-compatible provider with the given API key.
func WithOpenAI(apiKey string) Option {
	return func(o *options) { o.apiKey = apiKey }
}

// WithRetriever sets the document retrieval collaborator.
func WithRetriever(retriever retrieval.Retriever) Option {
	return func(o *options) { o.deps.Retriever = retriever }
}

// WithSearcher sets the web-search collaborator used for readings.
func WithSearcher(searcher websearch.Searcher) Option {
	return func(o *options) { o.deps.Searcher = searcher }
}

// WithStore sets the history persistence store.
func WithStore(store history.Store) Option {
	return func(o *options) { o.deps.Store = store }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.deps.Logger = logger }
}

// NewSession creates a dialogue session. Without options it uses the
// default configuration and an OpenAI provider reading credentials from
// the configuration.
func NewSession(opts ...Option) (*dialogue.Session, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.cfg == nil {
		loader := config.NewLoader()
		if o.configPath != "" {
			loader = loader.WithConfigPath(o.configPath)
		}
		cfg, err := loader.Load()
		if err != nil {
			return nil, err
		}
		o.cfg = cfg
	}

	if o.deps.Provider == nil {
		apiKey := o.apiKey
		if apiKey == "" {
			apiKey = o.cfg.LLM.APIKey
		}
		o.deps.Provider = llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:  apiKey,
			BaseURL: o.cfg.LLM.BaseURL,
			Timeout: o.cfg.LLM.Timeout.Std(),
		}, o.deps.Logger)
	}

	return dialogue.NewSession(o.cfg, o.deps)
}
