package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/docroute/docroute/internal/document"
	"github.com/docroute/docroute/internal/pipeline"
)

const threadURIPrefix = "thread://"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Dispatcher Dispatcher
	Threads    ThreadReader
	Version    string
}

// NewMCPServer creates an MCP server with the docroute tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"docroute",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("docroute classifies pdf, json and email inputs, extracts structured fields and keeps a per-thread record of each run."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("process_document",
			mcp.WithDescription("Classify a document, extract its fields and persist the result under a thread id."),
			mcp.WithString("content", mcp.Description("Raw document text (JSON, email or PDF text)"), mcp.Required()),
			mcp.WithString("thread_id", mcp.Description("Thread id to record under; generated when omitted")),
		),
		mcpProcessDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("get_thread",
			mcp.WithDescription("Return the stored fields of a thread."),
			mcp.WithString("thread_id", mcp.Description("Thread id"), mcp.Required()),
		),
		mcpGetThread(deps),
	)

	s.AddTool(
		mcp.NewTool("get_thread_logs",
			mcp.WithDescription("Return the processing log of a thread in order."),
			mcp.WithString("thread_id", mcp.Description("Thread id"), mcp.Required()),
		),
		mcpGetThreadLogs(deps),
	)

	s.AddTool(
		mcp.NewTool("clear_thread",
			mcp.WithDescription("Delete the fields and log of a thread."),
			mcp.WithString("thread_id", mcp.Description("Thread id"), mcp.Required()),
		),
		mcpClearThread(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"docroute://routing",
			"Routing Policy",
			mcp.WithResourceDescription("Supported formats, intents and the manual review threshold"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRouting(),
	)

	s.AddResourceTemplate(
		mcp.NewResourceTemplate(
			threadURIPrefix+"{id}",
			"Thread",
			mcp.WithTemplateDescription("Stored fields of a thread"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		mcpResourceThread(deps),
	)

	return s
}

func mcpProcessDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil || content == "" {
			return mcpError("content is required"), nil
		}

		out, err := deps.Dispatcher.Dispatch(ctx, req.GetString("thread_id", ""), content)
		if err != nil {
			return mcpError(fmt.Sprintf("processing failed: %v", err)), nil
		}

		b, err := json.Marshal(out.Report())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", err)), nil
		}
		if out.LowConfidence {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.TextContent{Type: "text", Text: string(b)},
					mcp.TextContent{Type: "text", Text: "Low classification confidence: routed to manual review."},
				},
			}, nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetThread(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("thread_id")
		if err != nil {
			return mcpError("thread_id is required"), nil
		}

		fields := deps.Threads.GetAll(ctx, id)
		if len(fields) == 0 {
			return mcpError(fmt.Sprintf("thread %s not found", id)), nil
		}
		b, err := json.Marshal(fields)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal thread: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetThreadLogs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("thread_id")
		if err != nil {
			return mcpError("thread_id is required"), nil
		}

		b, err := json.Marshal(deps.Threads.GetLogs(ctx, id))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal logs: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpClearThread(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("thread_id")
		if err != nil {
			return mcpError("thread_id is required"), nil
		}
		deps.Threads.Clear(ctx, id)
		return mcpText(fmt.Sprintf("Cleared thread %s", id)), nil
	}
}

func mcpResourceRouting() server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(map[string]any{
			"formats":              document.Formats,
			"intents":              document.Intents,
			"confidence_threshold": pipeline.ConfidenceThreshold,
		})
		if err != nil {
			return nil, errors.Wrap(err, "marshal routing policy")
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

func mcpResourceThread(deps MCPDeps) server.ResourceTemplateHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id := strings.TrimPrefix(req.Params.URI, threadURIPrefix)
		if id == "" || id == req.Params.URI {
			return nil, errors.Newf("invalid thread uri %q", req.Params.URI)
		}

		b, err := json.Marshal(deps.Threads.GetAll(ctx, id))
		if err != nil {
			return nil, errors.Wrap(err, "marshal thread")
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
