// Package server wires the agent's components and creates the transports.
//
// This is the composition root: it creates concrete implementations and
// injects them into the router, capabilities, and MCP tools that depend
// on abstractions. No business logic lives here — only wiring.
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/teddyam/collaborator-agent/internal/ai"
	"github.com/teddyam/collaborator-agent/internal/capabilities"
	"github.com/teddyam/collaborator-agent/internal/config"
	"github.com/teddyam/collaborator-agent/internal/mcptools"
	"github.com/teddyam/collaborator-agent/internal/reqctx"
	"github.com/teddyam/collaborator-agent/internal/router"
	"github.com/teddyam/collaborator-agent/internal/search"
	"github.com/teddyam/collaborator-agent/internal/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

// App holds the wired agent: the store, the context registry, the search
// provider, and the router with its capability set.
type App struct {
	Config   *config.Config
	Store    *storage.Store
	Registry *reqctx.Registry
	Provider search.Provider
	Router   *router.Router
}

// NewApp resolves all dependencies from configuration. The returned
// cleanup function closes the store's database connection and must be
// called on shutdown (typically via defer). It is always non-nil.
func NewApp(cfg *config.Config) (*App, func(), error) {
	store, err := storage.New(storage.Config{DataDir: cfg.DataDir})
	if err != nil {
		return nil, noop, fmt.Errorf("creating store: %w", err)
	}
	cleanup := func() { _ = store.Close() }

	registry := reqctx.NewRegistry(cfg.ContextTTL)
	llm := ai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	linker := search.NewLinker(cfg.DeepLinkBaseURL)

	// The keyword provider always exists; the semantic provider layers on
	// top of it when a remote index is configured.
	var provider search.Provider = search.NewKeywordProvider(store, linker)
	if cfg.SemanticSearchURL != "" {
		provider = search.NewSemanticProvider(cfg.SemanticSearchURL, cfg.SemanticSearchKey, linker, provider)
	}

	rt := router.New(registry, llm,
		capabilities.NewSummarizer(store, llm, linker),
		capabilities.NewActionItems(store, llm),
		capabilities.NewSearcher(provider),
	)

	return &App{
		Config:   cfg,
		Store:    store,
		Registry: registry,
		Provider: provider,
		Router:   rt,
	}, cleanup, nil
}

// NewMCPServer creates the operational MCP server with the debug tools
// registered over the app's store and search provider.
func NewMCPServer(app *App) *server.MCPServer {
	s := server.NewMCPServer(
		"collab",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(
			"Operational tools for a collaborator agent's conversation store: "+
				"dump a conversation's stored state, clear a conversation, "+
				"summarize action items, and search stored messages.",
		),
	)

	dumpTool := mcptools.NewDebugDumpTool(app.Store)
	s.AddTool(dumpTool.Definition(), dumpTool.Handle)

	clearTool := mcptools.NewClearConversationTool(app.Store)
	s.AddTool(clearTool.Definition(), clearTool.Handle)

	summaryTool := mcptools.NewActionItemsSummaryTool(app.Store)
	s.AddTool(summaryTool.Definition(), summaryTool.Handle)

	searchTool := mcptools.NewSearchMessagesTool(app.Provider)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	return s
}

// noop is the default cleanup when initialization fails early.
func noop() {}
