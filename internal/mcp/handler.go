package mcp

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/pgm9-art/mcmahon-news/internal/logging"
	"github.com/pgm9-art/mcmahon-news/internal/models"
	"github.com/pgm9-art/mcmahon-news/internal/ratelimit"
)

// Feed is the read and refresh surface the tools expose.
type Feed interface {
	ResultSet(category models.Category, limit int) models.ResultSet
	Refresh(ctx context.Context) (models.RefreshCounts, error)
	Health() models.Health
}

// Options mirror the HTTP API's limits and refresh controls.
type Options struct {
	PostsLimit          int
	VideosLimit         int
	EnableManualRefresh bool
	// RefreshGate is shared with the HTTP API so both surfaces observe one
	// cooldown.
	RefreshGate ratelimit.RateLimiter
}

type Handler struct {
	feed   Feed
	opts   Options
	limits map[models.Category]int
	logger *logging.Logger
}

// NewHandler creates the tool handler over feed.
func NewHandler(feed Feed, opts Options, logger *logging.Logger) *Handler {
	return &Handler{
		feed: feed,
		opts: opts,
		limits: map[models.Category]int{
			models.CategoryPosts:  opts.PostsLimit,
			models.CategoryVideos: opts.VideosLimit,
		},
		logger: logger,
	}
}

type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type getItemsParams struct {
	Limit int `json:"limit"`
}

var limitSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"limit": {
			"type": "integer",
			"description": "Maximum number of items to return"
		}
	}
}`)

var emptySchema = json.RawMessage(`{"type": "object", "properties": {}}`)

func (h *Handler) GetTools() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "get_posts",
			Description: "Get the latest ranked text posts from the commentator roster.",
			InputSchema: limitSchema,
		},
		{
			Name:        "get_videos",
			Description: "Get the latest ranked videos from the commentator roster.",
			InputSchema: limitSchema,
		},
		{
			Name:        "refresh_feed",
			Description: "Fetch every source now and publish a new result.",
			InputSchema: emptySchema,
		},
		{
			Name:        "get_feed_health",
			Description: "Get pipeline health: last refresh, active sources and recent errors.",
			InputSchema: emptySchema,
		},
	}
}

func (h *Handler) HandleToolCall(ctx context.Context, name string, arguments json.RawMessage) (interface{}, error) {
	switch name {
	case "get_posts":
		return h.handleGetItems(models.CategoryPosts, arguments)
	case "get_videos":
		return h.handleGetItems(models.CategoryVideos, arguments)
	case "refresh_feed":
		return h.handleRefresh(ctx)
	case "get_feed_health":
		return h.feed.Health(), nil
	default:
		return nil, &ToolError{Message: "Unknown tool: " + name}
	}
}

func (h *Handler) handleGetItems(cat models.Category, arguments json.RawMessage) (interface{}, error) {
	var params getItemsParams
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &params); err != nil {
			return nil, &ToolError{Message: "Invalid arguments: " + err.Error()}
		}
	}

	limit := h.limits[cat]
	if params.Limit > 0 && (limit <= 0 || params.Limit < limit) {
		limit = params.Limit
	}
	return h.feed.ResultSet(cat, limit), nil
}

func (h *Handler) handleRefresh(ctx context.Context) (interface{}, error) {
	if !h.opts.EnableManualRefresh {
		return nil, &ToolError{Message: "manual refresh is disabled"}
	}
	if h.opts.RefreshGate != nil && !h.opts.RefreshGate.Allow(ratelimit.ManualRefreshKey) {
		return nil, &ToolError{Message: "refresh requested too recently"}
	}

	counts, err := h.feed.Refresh(ctx)
	if err != nil {
		return nil, &ToolError{Message: "Failed to refresh: " + err.Error()}
	}
	h.logger.Info("Refresh requested over MCP", logging.WithField("run_id", counts.RunID))
	return map[string]interface{}{
		"status": "success",
		"counts": counts,
	}, nil
}

type ToolError struct {
	Message string
}

func (e *ToolError) Error() string {
	return e.Message
}
