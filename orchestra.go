// Package orchestra assembles the tool-calling session, intent router and
// persistence layer into one HTTP gateway.
//
// Quick start:
//
//	cfg, _ := config.Load("")
//	app, err := orchestra.Build(cfg, logging.New(logging.Config{}))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer app.Close()
//	http.ListenAndServe(cfg.Addr, app.Handler())
package orchestra

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-orchestra/agents"
	"github.com/hubenschmidt/go-orchestra/cache"
	"github.com/hubenschmidt/go-orchestra/config"
	"github.com/hubenschmidt/go-orchestra/core"
	"github.com/hubenschmidt/go-orchestra/gateway"
	"github.com/hubenschmidt/go-orchestra/llm"
	"github.com/hubenschmidt/go-orchestra/router"
	"github.com/hubenschmidt/go-orchestra/server"
	"github.com/hubenschmidt/go-orchestra/server/store"
	"github.com/hubenschmidt/go-orchestra/session"
	"github.com/hubenschmidt/go-orchestra/tools"
)

// Re-export commonly used types.
type (
	Message    = core.Message
	ToolCall   = core.ToolCall
	ToolSchema = core.ToolSchema
	Intent     = core.Intent
	Tool       = tools.Tool
	Registry   = tools.Registry
	Session    = session.Session
	Router     = router.Router
	Gateway    = gateway.Gateway
	Server     = server.Server
)

// App is a fully wired gateway and the resources it owns.
type App struct {
	Server   *server.Server
	Gateway  *gateway.Gateway
	Registry *tools.Registry
	Store    store.ConversationStore

	closers []func() error
}

// Build wires every component from cfg. Missing API keys do not fail the
// build; the affected features report "not configured" per request.
func Build(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	app := &App{}

	conversations, err := store.New(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	app.Store = conversations
	app.closers = append(app.closers, conversations.Close)

	results := app.resultCache(cfg, logger)
	app.Registry = NewRegistry(cfg, results, logger)

	client := llm.NewOpenAIClientWithConfig(cfg.ClientConfig())
	sessionOpts := []session.Option{
		session.WithCompletionTimeout(cfg.Timeouts.Completion),
		session.WithLogger(logger),
	}
	if cfg.Session.SystemPrompt != "" {
		sessionOpts = append(sessionOpts, session.WithSystemPrompt(cfg.Session.SystemPrompt))
	}
	sess := session.New(client, app.Registry, sessionOpts...)

	smart := agents.NewSmartAgentsClient(cfg.Backends.SmartAgentsURL, cfg.Timeouts.Classification)
	rt := router.New(smart, []router.Attempt{router.NewToolChat(sess)},
		router.WithClassificationTimeout(cfg.Timeouts.Classification),
		router.WithLogger(logger),
	)

	app.Gateway = gateway.New(gateway.Config{
		Router:         rt,
		Chat:           sess,
		Supreme:        agents.NewSupremeClient(cfg.Backends.SupremeURL, cfg.Timeouts.Supreme),
		Recorder:       store.NewRecorder(conversations, cfg.Timeouts.Persistence, logger),
		SupremeTimeout: cfg.Timeouts.Supreme,
		Logger:         logger,
	})

	app.Server = server.New(server.Config{
		Gateway:      app.Gateway,
		Capabilities: smart,
		Registry:     app.Registry,
		Store:        conversations,
		Logger:       logger,
	})
	return app, nil
}

// NewRegistry returns a registry holding the built-in tools.
func NewRegistry(cfg *config.Config, results tools.ResultCache, logger zerolog.Logger) *tools.Registry {
	registry := tools.NewRegistry(
		tools.WithTimeout(cfg.Timeouts.Tool),
		tools.WithMaxParallel(cfg.Session.MaxParallelTools),
		tools.WithLogger(logger),
	)
	registry.MustRegister(tools.NewAgentverseSearch(tools.AgentverseConfig{
		APIKey:  cfg.Agentverse.APIKey,
		BaseURL: cfg.Agentverse.BaseURL,
		Timeout: cfg.Timeouts.Tool,
		Cache:   results,
	}))
	registry.MustRegister(tools.NewRepositoryContext(nil))
	return registry
}

// resultCache prefers Redis when an address is configured and falls back to
// an in-process cache when it is unreachable.
func (a *App) resultCache(cfg *config.Config, logger zerolog.Logger) tools.ResultCache {
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			TTL:      cfg.Cache.TTL,
		}, logger)
		if err == nil {
			a.closers = append(a.closers, rc.Close)
			return rc
		}
		logger.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("redis unavailable, using memory cache")
	}
	return cache.NewMemory(cfg.Cache.Capacity, cfg.Cache.TTL)
}

func (a *App) Handler() http.Handler {
	return a.Server.Handler()
}

// Close releases the store and cache connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
