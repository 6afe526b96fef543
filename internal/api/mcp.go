package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/edumood/internal/feedback"
)

const recentLimit = 10

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Service FeedbackService
	Version string
}

// NewMCPServer creates an MCP server with the EduMood tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"edumood",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("EduMood: classify student feedback by emotion and track the daily Confusion Index of a class."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("submit_feedback",
			mcp.WithDescription("Classify a student comment into one of the EduMood emotions and store it."),
			mcp.WithString("feedback", mcp.Description("The student's free-text comment"), mcp.Required()),
		),
		mcpSubmitFeedback(deps),
	)

	s.AddTool(
		mcp.NewTool("confusion_trend",
			mcp.WithDescription("Return the daily Confusion Index (share of Confused, Frustrated/Stressed and Bored/Drowsy comments) as a JSON array."),
		),
		mcpConfusionTrend(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"feedback://summary",
			"Feedback Summary",
			mcp.WithResourceDescription("Total comments and per-emotion counts as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSummary(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"feedback://recent",
			"Recent Feedback",
			mcp.WithResourceDescription("Last 10 classified comments"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpSubmitFeedback(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("feedback")
		if err != nil {
			return mcpError("feedback is required"), nil
		}

		rec, err := deps.Service.Submit(ctx, text)
		switch {
		case errors.Is(err, feedback.ErrEmptyFeedback):
			return mcpError(msgEmptyFeedback), nil
		case errors.Is(err, feedback.ErrClassifierTimeout), errors.Is(err, feedback.ErrClassifierUnavailable):
			return mcpError(msgUnavailable), nil
		case err != nil:
			return mcpError(fmt.Sprintf("%s (%v)", msgUnexpected, err)), nil
		}

		b, err := json.Marshal(rec)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal record: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpConfusionTrend(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		trend, err := deps.Service.Trend()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to compute trend: %v", err)), nil
		}
		if len(trend) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(trend)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal trend: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceSummary(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		summary, err := deps.Service.Summary()
		if err != nil {
			return nil, fmt.Errorf("failed to get summary: %w", err)
		}

		b, err := json.Marshal(summary)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal summary: %w", err)
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

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := deps.Service.Records()
		if err != nil {
			return nil, fmt.Errorf("failed to get records: %w", err)
		}

		if len(records) > recentLimit {
			records = records[len(records)-recentLimit:]
		}
		recent := make([]feedback.Record, len(records))
		for i, r := range records {
			if utf8.RuneCountInString(r.Feedback) > 200 {
				runes := []rune(r.Feedback)
				r.Feedback = string(runes[:200]) + "..."
			}
			recent[len(records)-1-i] = r
		}

		b, err := json.Marshal(recent)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal records: %w", err)
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
