package mcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/pgm9-art/mcmahon-news/internal/logging"
)

const protocolVersion = "2024-11-05"

// Server speaks line-delimited JSON-RPC 2.0 over a reader/writer pair.
type Server struct {
	handler *Handler
	logger  *logging.Logger
}

// NewServer creates a new MCP server for the given handler
func NewServer(handler *Handler, logger *logging.Logger) *Server {
	return &Server{
		handler: handler,
		logger:  logger,
	}
}

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type InitializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ServerInfo `json:"serverInfo"`
	Capabilities    Caps       `json:"capabilities"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Caps struct {
	Tools *ToolsCap `json:"tools,omitempty"`
}

type ToolsCap struct {
	ListChanged bool `json:"listChanged"`
}

type ToolsListResult struct {
	Tools []ToolDefinition `json:"tools"`
}

type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type CallToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Run serves stdin/stdout until EOF or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	s.logger.Info("MCP server started, waiting for requests")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if werr := s.reply(ctx, line, out); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
	}
}

func (s *Server) reply(ctx context.Context, line []byte, out io.Writer) error {
	response := s.handleRequest(ctx, line)
	if response == nil {
		return nil
	}
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("Failed to marshal response", logging.WithError(err))
		return nil
	}
	if _, err := out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return nil
}

func (s *Server) handleRequest(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return &Response{JSONRPC: "2.0", Error: &RPCError{Code: -32700, Message: "Parse error"}}
	}

	s.logger.Debug("Received request", logging.WithFields(map[string]interface{}{
		"method": req.Method,
		"id":     req.ID,
	}))

	switch req.Method {
	case "initialize":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "mcmahon-news", Version: "1.0.0"},
			Capabilities:    Caps{Tools: &ToolsCap{}},
		}}
	case "initialized", "notifications/initialized":
		return nil
	case "tools/list":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: s.handler.GetTools()}}
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{}}
	default:
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: -32601, Message: "Method not found"}}
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req Request) *Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: -32602, Message: "Invalid params: " + err.Error()}}
	}

	result, err := s.handler.HandleToolCall(ctx, params.Name, params.Arguments)
	isError := false
	if err != nil {
		result = map[string]string{"error": err.Error()}
		isError = true
	}

	text, _ := json.MarshalIndent(result, "", "  ")
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: CallToolResult{
		Content: []ContentItem{{Type: "text", Text: string(text)}},
		IsError: isError,
	}}
}
