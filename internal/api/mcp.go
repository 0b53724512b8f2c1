package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/typedprefs/internal/demo"
	"github.com/kalambet/typedprefs/pkg/prefs"
)

const snapshotURI = "prefs://snapshot"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Handler *prefs.Handler
	Version string
	Logger  *slog.Logger
}

// NewMCPServer creates an MCP server exposing the demo preferences as tools
// and a snapshot resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"prefsdemo",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Typed preferences of the prefsdemo application. Keys are listed by list_preferences."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_preferences",
			mcp.WithDescription("List every preference with its kind, current value and default."),
		),
		mcpListPreferences(deps),
	)

	s.AddTool(
		mcp.NewTool("get_preference",
			mcp.WithDescription("Read one preference. A preference that was never set is initialized with its default."),
			mcp.WithString("key", mcp.Description("Stored key or identifier (e.g. theme)"), mcp.Required()),
		),
		mcpGetPreference(deps),
	)

	s.AddTool(
		mcp.NewTool("set_preference",
			mcp.WithDescription("Update one preference. Complex values are given in the configured codec's text form."),
			mcp.WithString("key", mcp.Description("Stored key or identifier (e.g. theme)"), mcp.Required()),
			mcp.WithString("value", mcp.Description("Value to set"), mcp.Required()),
		),
		mcpSetPreference(deps),
	)

	s.AddTool(
		mcp.NewTool("clear_preference",
			mcp.WithDescription("Remove one preference so its default applies again."),
			mcp.WithString("key", mcp.Description("Stored key or identifier (e.g. theme)"), mcp.Required()),
		),
		mcpClearPreference(deps),
	)

	s.AddTool(
		mcp.NewTool("reset_preferences",
			mcp.WithDescription("Remove every stored preference."),
			mcp.WithBoolean("confirm", mcp.Description("Must be true"), mcp.Required()),
		),
		mcpResetPreferences(deps),
	)

	s.AddResource(
		mcp.NewResource(
			snapshotURI,
			"Preferences Snapshot",
			mcp.WithResourceDescription("All preferences with their current values as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSnapshot(deps),
	)

	return s
}

func mcpListPreferences(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		views, err := demo.DescribeAll(deps.Handler)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list preferences: %v", err)), nil
		}
		b, err := json.Marshal(views)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal preferences: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetPreference(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		e, err := demo.Lookup(deps.Handler, key)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		v, err := deps.Handler.GetAny(e)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to read %s: %v", key, err)), nil
		}
		text, err := deps.Handler.FormatText(e, v)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to format %s: %v", key, err)), nil
		}
		return mcpText(text), nil
	}
}

func mcpSetPreference(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}

		e, err := demo.Lookup(deps.Handler, key)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		v, err := deps.Handler.ParseText(e, value)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if err := deps.Handler.SetAny(e, v); err != nil {
			return mcpError(fmt.Sprintf("failed to set %s: %v", key, err)), nil
		}
		deps.Logger.Info("mcp: preference set", "key", key)
		return mcpText(fmt.Sprintf("Set %s = %s", key, value)), nil
	}
}

func mcpClearPreference(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		e, err := demo.Lookup(deps.Handler, key)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if err := deps.Handler.Clear(e); err != nil {
			return mcpError(fmt.Sprintf("failed to clear %s: %v", key, err)), nil
		}
		deps.Logger.Info("mcp: preference cleared", "key", key)
		return mcpText(fmt.Sprintf("Cleared %s", key)), nil
	}
}

func mcpResetPreferences(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !req.GetBool("confirm", false) {
			return mcpError("confirm must be true"), nil
		}
		if err := deps.Handler.ClearAll(); err != nil {
			return mcpError(fmt.Sprintf("failed to reset preferences: %v", err)), nil
		}
		deps.Logger.Info("mcp: preferences reset")
		return mcpText("All preferences cleared"), nil
	}
}

func mcpResourceSnapshot(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		views, err := demo.DescribeAll(deps.Handler)
		if err != nil {
			return nil, fmt.Errorf("failed to describe preferences: %w", err)
		}

		snapshot := make(map[string]demo.EntryView, len(views))
		for _, v := range views {
			snapshot[v.Key] = v
		}
		b, err := json.Marshal(snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
