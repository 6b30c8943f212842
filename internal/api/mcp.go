package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/newsloom/newsloom/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store  *storage.Store
	Runner DetectionRunner
}

// NewMCPServer creates an MCP server with the monitoring tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"newsloom",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("newsloom — narrative threading and monitoring over a news archive: storylines, momentum, and anomaly alerts."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("list_storylines",
			mcp.WithDescription("List storylines, most significant first. Optionally filter by status or minimum momentum."),
			mcp.WithString("status", mcp.Description("Filter by status: active, dormant, or concluded")),
			mcp.WithNumber("min_momentum", mcp.Description("Only storylines with momentum at or above this value")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
		),
		mcpListStorylines(deps),
	)

	s.AddTool(
		mcp.NewTool("storyline_timeline",
			mcp.WithDescription("Return one storyline with its member articles in chronological order."),
			mcp.WithNumber("id", mcp.Description("Storyline id"), mcp.Required()),
		),
		mcpStorylineTimeline(deps),
	)

	s.AddTool(
		mcp.NewTool("list_alerts",
			mcp.WithDescription("List anomaly alerts, most recent first. Optionally filter by kind or severity."),
			mcp.WithString("kind", mcp.Description("Filter by kind: topic_surge, story_reactivation, or new_actor")),
			mcp.WithString("severity", mcp.Description("Filter by severity: low, medium, or high")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 50)")),
		),
		mcpListAlerts(deps),
	)

	s.AddTool(
		mcp.NewTool("acknowledge_alert",
			mcp.WithDescription("Mark an alert as acknowledged so it no longer suppresses future detections."),
			mcp.WithString("id", mcp.Description("Alert id"), mcp.Required()),
		),
		mcpAcknowledgeAlert(deps),
	)

	s.AddTool(
		mcp.NewTool("run_detections",
			mcp.WithDescription("Run the anomaly detection pass now and report per-check counts."),
		),
		mcpRunDetections(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"newsloom://stats",
			"Engine Stats",
			mcp.WithResourceDescription("Storyline and alert counts as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpListStorylines(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var filter storage.StorylineFilter
		filter.Status = req.GetString("status", "")
		if v := req.GetFloat("min_momentum", -1); v >= 0 {
			filter.MinMomentum = v
			filter.HasMinMomentum = true
		}

		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}

		storylines, err := deps.Store.ListStorylines(filter)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list storylines: %v", err)), nil
		}
		if len(storylines) > limit {
			storylines = storylines[:limit]
		}

		out := make([]storylineJSON, len(storylines))
		for i, st := range storylines {
			out[i] = toStorylineJSON(st)
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal storylines: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpStorylineTimeline(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		st, err := deps.Store.GetStoryline(int64(id))
		if err != nil {
			return mcpError(fmt.Sprintf("storyline %d not found", id)), nil
		}
		members, err := deps.Store.ListStorylineMembers(int64(id))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load members: %v", err)), nil
		}

		type memberJSON struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
			Date  string `json:"date"`
			Tier  string `json:"tier"`
		}
		articles := make([]memberJSON, len(members))
		for i, m := range members {
			articles[i] = memberJSON{
				ID:    m.ArticleID,
				Title: m.Title,
				Date:  m.Date.Format(storage.DateLayout),
				Tier:  m.Tier,
			}
		}

		b, err := json.Marshal(map[string]any{
			"storyline": toStorylineJSON(st),
			"articles":  articles,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal timeline: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListAlerts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter := storage.AlertFilter{
			Kind:     req.GetString("kind", ""),
			Severity: req.GetString("severity", ""),
			Limit:    req.GetInt("limit", 0),
		}

		alerts, err := deps.Store.ListAlerts(filter)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list alerts: %v", err)), nil
		}

		out := make([]alertJSON, len(alerts))
		for i, a := range alerts {
			ctxJSON := a.ContextJSON
			if ctxJSON == "" {
				ctxJSON = "{}"
			}
			out[i] = alertJSON{
				ID:           a.ID,
				Kind:         a.Kind,
				Context:      json.RawMessage(ctxJSON),
				TriggeredAt:  a.TriggeredAt.UTC().Format(time.RFC3339),
				Description:  a.Description,
				Severity:     a.Severity,
				Acknowledged: a.Acknowledged,
			}
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal alerts: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAcknowledgeAlert(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		updated, err := deps.Store.AcknowledgeAlert(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to acknowledge alert %s: %v", id, err)), nil
		}
		if updated == 0 {
			return mcpText(fmt.Sprintf("Alert %s was already acknowledged", id)), nil
		}
		return mcpText(fmt.Sprintf("Acknowledged alert %s", id)), nil
	}
}

func mcpRunDetections(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		summary, err := deps.Runner.RunDetections(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("detection run failed: %v", err)), nil
		}

		b, err := json.Marshal(summary)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		statusCounts, err := deps.Store.StorylineStatusCounts()
		if err != nil {
			return nil, fmt.Errorf("failed to count storylines: %w", err)
		}
		alertStats, err := deps.Store.GetAlertStats(time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to count alerts: %w", err)
		}

		total := 0
		for _, n := range statusCounts {
			total += n
		}
		b, err := json.Marshal(map[string]any{
			"storylines": map[string]any{
				"total":     total,
				"by_status": statusCounts,
			},
			"alerts": map[string]any{
				"total":          alertStats.Total,
				"unacknowledged": alertStats.Unacknowledged,
				"recent_24h":     alertStats.Recent24h,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
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
