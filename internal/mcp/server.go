package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/deskforge/deskcfg/internal/config"
	"github.com/deskforge/deskcfg/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"desk_configure": {
		def:     configureToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConfigure },
	},
	"desk_edit": {
		def:     editToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEdit },
	},
	"desk_decode": {
		def:     decodeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDecode },
	},
	"desk_encode": {
		def:     encodeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEncode },
	},
	"desk_quote": {
		def:     quoteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQuote },
	},
	"desk_cart": {
		def:     cartToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCart },
	},
	"desk_schema": {
		def:     schemaToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSchema },
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

// NewServer creates a new MCP server with the configurator tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(p *ops.Pipeline, cfg *config.Config, version string, logger *slog.Logger) *server.MCPServer {
	if logger == nil {
		logger = slog.Default()
	}

	s := server.NewMCPServer(
		"deskcfg",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(p)

	disabled := make(map[string]bool)
	if cfg != nil {
		for _, name := range cfg.DisabledTools {
			disabled[name] = true
		}
		if unknown := ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
			logger.Warn("unknown tools in disabled_tools", "tools", unknown)
		}
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
func Run(p *ops.Pipeline, cfg *config.Config, version string, logger *slog.Logger) error {
	s := NewServer(p, cfg, version, logger)
	return server.ServeStdio(s)
}
