package app_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/miyamo2/weather-mcp/domain/forecast"
	"github.com/miyamo2/weather-mcp/infrastructure/catalog"
	"github.com/miyamo2/weather-mcp/internal/app"
	"github.com/miyamo2/weather-mcp/internal/mcp"
	"github.com/miyamo2/weather-mcp/internal/mcp/transport"
)

// NewWeatherServer builds the server over the built-in dataset.
func NewWeatherServer(t *testing.T) *mcp.Server {
	t.Helper()
	repo, err := catalog.New(catalog.DefaultCities()...)
	require.NoError(t, err)
	return app.New(repo, forecast.NewGenerator())
}

// JSONRPCRequest represents a JSON-RPC request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewJSONRPCRequest creates a new JSON-RPC request with a random UUID as the ID.
func NewJSONRPCRequest(t *testing.T, method string, params any) JSONRPCRequest {
	t.Helper()
	_uuid, err := uuid.NewRandom()
	require.NoError(t, err, "failed to generate UUID for JSON-RPC request ID")

	req := JSONRPCRequest{
		JSONRPC: mcp.JSONRPCVersion,
		ID:      _uuid.String(),
		Method:  method,
	}
	if params != nil {
		req.Params, err = json.Marshal(params)
		require.NoError(t, err, "failed to marshal JSON-RPC request parameters")
	}
	return req
}

// NewJSONRPCNotification creates a new JSON-RPC notification.
func NewJSONRPCNotification(method string) JSONRPCRequest {
	return JSONRPCRequest{
		JSONRPC: mcp.JSONRPCVersion,
		Method:  method,
	}
}

// JSONRPCResponse represents a JSON-RPC response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSONRPCResponseFromBytes decodes the JSON-RPC response from the given byte slice.
func JSONRPCResponseFromBytes(t *testing.T, bytes []byte) JSONRPCResponse {
	t.Helper()
	var response JSONRPCResponse
	require.NoError(t, json.Unmarshal(bytes, &response))
	return response
}

// SessionIDFromResponse extracts the session ID from the response headers.
func SessionIDFromResponse(t *testing.T, resp *http.Response) string {
	t.Helper()
	sessionID := resp.Header.Get(transport.MCPSessionID)
	require.NotEmpty(t, sessionID)
	return sessionID
}

// InitializeParams are the parameters a well-behaved client sends first.
func InitializeParams() map[string]any {
	return map[string]any{
		"protocolVersion": mcp.LatestProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "test-client",
			"version": "1.0.0",
		},
	}
}

// CallToolParams are the parameters of a tools/call request.
func CallToolParams(name string, arguments map[string]any) map[string]any {
	params := map[string]any{"name": name}
	if arguments != nil {
		params["arguments"] = arguments
	}
	return params
}

// ToolResult is the decoded result of a tools/call request.
type ToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// Text joins the text content of the result.
func (r ToolResult) Text() string {
	var s string
	for _, c := range r.Content {
		s += c.Text
	}
	return s
}

// ResourceResult is the decoded result of a resources/read request.
type ResourceResult struct {
	Contents []struct {
		URI      string `json:"uri"`
		MimeType string `json:"mimeType"`
		Text     string `json:"text"`
	} `json:"contents"`
}
