package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/bdistudio/internal/config"
	"github.com/hpungsan/bdistudio/internal/contexts"
	"github.com/hpungsan/bdistudio/internal/sessions"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"session_create": {
		def:     sessionCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionCreate },
	},
	"session_get": {
		def:     sessionGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionGet },
	},
	"session_list": {
		def:     sessionListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionList },
	},
	"session_update": {
		def:     sessionUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionUpdate },
	},
	"session_config": {
		def:     sessionConfigToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionConfig },
	},
	"session_archive": {
		def:     sessionArchiveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionArchive },
	},
	"session_chat_history": {
		def:     sessionChatHistoryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionChatHistory },
	},
	"bdi_get": {
		def:     bdiGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBDIGet },
	},
	"bdi_update": {
		def:     bdiUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBDIUpdate },
	},
	"belief_base_get": {
		def:     beliefBaseGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBeliefBaseGet },
	},
	"belief_base_update": {
		def:     beliefBaseUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBeliefBaseUpdate },
	},
	"beliefs_import": {
		def:     beliefsImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBeliefsImport },
	},
	"context_create": {
		def:     contextCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContextCreate },
	},
	"context_list": {
		def:     contextListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContextList },
	},
	"context_get": {
		def:     contextGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContextGet },
	},
	"context_refresh": {
		def:     contextRefreshToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContextRefresh },
	},
	"context_delete": {
		def:     contextDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContextDelete },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the studio tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(store *sessions.Store, registry *contexts.Registry, cfg *config.Config, logger *zap.Logger, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"bdistudio",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(store, registry, cfg, logger)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(store *sessions.Store, registry *contexts.Registry, cfg *config.Config, logger *zap.Logger, version string) error {
	s := NewServer(store, registry, cfg, logger, version)
	return server.ServeStdio(s)
}

