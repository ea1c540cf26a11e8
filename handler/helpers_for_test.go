package handler

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"golang.org/x/exp/jsonrpc2"

	"github.com/miyamo2/weather-mcp/domain/model"
	"github.com/miyamo2/weather-mcp/infrastructure/catalog"
	"github.com/miyamo2/weather-mcp/internal/mcp"
)

// toolContext is a mcp.ToolContext recording what a handler sends.
type toolContext struct {
	mcp.ToolContext
	ctx     context.Context
	request jsonrpc2.Request
	name    string
	args    json.RawMessage
	result  mcp.CallToolResult
}

func newToolContext(t *testing.T, name string, args string) *toolContext {
	t.Helper()
	c := &toolContext{ctx: t.Context(), name: name}
	if args != "" {
		c.args = json.RawMessage(args)
	}
	return c
}

func (c *toolContext) Context() context.Context { return c.ctx }

func (c *toolContext) JSONRPCRequest() jsonrpc2.Request { return c.request }

func (c *toolContext) Arguments() json.RawMessage { return c.args }

func (c *toolContext) ToolName() string { return c.name }

func (c *toolContext) Bind(i any) error {
	if len(c.args) == 0 {
		return nil
	}
	return json.Unmarshal(c.args, i)
}

func (c *toolContext) String(s string) error {
	c.result.Content = append(c.result.Content, mcp.TextContent{Type: "text", Text: s})
	return nil
}

func (c *toolContext) Error(s string) error {
	c.result.IsError = true
	return c.String(s)
}

func (c *toolContext) Result() mcp.CallToolResult { return c.result }

func (c *toolContext) text(t *testing.T) string {
	t.Helper()
	if len(c.result.Content) != 1 {
		t.Fatalf("expected 1 content, got %d", len(c.result.Content))
	}
	return c.result.Content[0].Text
}

// resourceContext is a mcp.ResourceContext recording what a handler sends.
type resourceContext struct {
	mcp.ResourceContext
	ctx      context.Context
	request  jsonrpc2.Request
	uri      string
	params   map[string]string
	contents []string
}

func (c *resourceContext) Context() context.Context { return c.ctx }

func (c *resourceContext) JSONRPCRequest() jsonrpc2.Request { return c.request }

func (c *resourceContext) ResourceURI() string { return c.uri }

func (c *resourceContext) MimeType() string { return "text/plain" }

func (c *resourceContext) Param(name string) string { return c.params[name] }

func (c *resourceContext) String(s string) error {
	c.contents = append(c.contents, s)
	return nil
}

// resourceListContext is a mcp.ResourceListContext recording what a handler lists.
type resourceListContext struct {
	mcp.ResourceListContext
	static []mcp.Resource
	listed []mcp.Resource
}

func (c *resourceListContext) Resources() []mcp.Resource { return c.static }

func (c *resourceListContext) AddResource(r mcp.Resource) { c.listed = append(c.listed, r) }

// fixedForecaster returns the same temperature offset and condition every day.
type fixedForecaster struct{}

func (fixedForecaster) Forecast(base model.WeatherRecord, days int) []model.ForecastDay {
	forecast := make([]model.ForecastDay, days)
	for i := range forecast {
		forecast[i] = model.ForecastDay{Day: i + 1, Temperature: base.Temperature - 1, Condition: "Clear"}
	}
	return forecast
}

func newHandler(t *testing.T) *Handler {
	t.Helper()
	c, err := catalog.New(catalog.DefaultCities()...)
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	return New(c, fixedForecaster{})
}
