package mcp

import (
	"context"
	"encoding/json"

	"golang.org/x/exp/jsonrpc2"
)

type Context interface {
	// JSONRPCRequest returns the JSONRPC request
	JSONRPCRequest() jsonrpc2.Request
	// Context returns the context
	Context() context.Context
}

var _ Context = (*_context)(nil)

type _context struct {
	ctx            context.Context
	jsonrpcRequest *jsonrpc2.Request
}

func (c *_context) JSONRPCRequest() jsonrpc2.Request {
	if c.jsonrpcRequest == nil {
		return jsonrpc2.Request{}
	}
	return *c.jsonrpcRequest
}

func (c *_context) Context() context.Context {
	return c.ctx
}

func (c *_context) reset() {
	c.jsonrpcRequest = nil
	c.ctx = nil
}

// ToolContext is the context for Tool handlers
type ToolContext interface {
	Context
	// ToolName returns the name of the Tool
	ToolName() string
	// Arguments return the arguments passed to the Tool
	Arguments() json.RawMessage
	// Bind binds the Tool arguments into the provided type `i`.
	Bind(i any) error
	// String sends plain text content
	String(s string) error
	// Error sends plain text content and flags the result as an error.
	Error(s string) error
	// Result returns the content sent so far.
	Result() CallToolResult
}

var (
	_ Context     = (*toolContext)(nil)
	_ ToolContext = (*toolContext)(nil)
)

type toolContext struct {
	_context
	toolName          string
	args              json.RawMessage
	dest              *CallToolResult
	jsonUnmarshalFunc JSONUnmarshalFunc
}

func (c *toolContext) ToolName() string {
	return c.toolName
}

func (c *toolContext) Arguments() json.RawMessage {
	return c.args
}

func (c *toolContext) Bind(i any) error {
	if len(c.args) == 0 {
		return nil
	}
	return c.jsonUnmarshalFunc(c.args, i)
}

func (c *toolContext) String(s string) error {
	c.dest.Content = append(c.dest.Content, TextContent{Type: "text", Text: s})
	return nil
}

func (c *toolContext) Error(s string) error {
	c.dest.IsError = true
	return c.String(s)
}

func (c *toolContext) Result() CallToolResult {
	if c.dest == nil {
		return CallToolResult{}
	}
	return *c.dest
}

// reset resets the Tool context
func (c *toolContext) reset() {
	c._context.reset()
	c.toolName = ""
	c.args = nil
	c.dest = nil
}

// newToolContext creates a new Tool context
func newToolContext(jsonUnmarshalFunc JSONUnmarshalFunc) *toolContext {
	return &toolContext{
		jsonUnmarshalFunc: jsonUnmarshalFunc,
	}
}

// ResourceContext is the context for resource handlers
type ResourceContext interface {
	Context
	// ResourceURI returns the requested uri of the resource
	ResourceURI() string
	// MimeType returns the mime type of the resource
	MimeType() string
	// Param retrieves the URI template variable by name, percent-decoded
	Param(name string) string
	// String sends plain text content
	String(s string) error
}

var _ ResourceContext = (*resourceContext)(nil)

type resourceContext struct {
	_context
	uri      string
	mimeType string
	params   map[string]string
	dest     *readResourceResult
}

func (c *resourceContext) ResourceURI() string {
	return c.uri
}

func (c *resourceContext) MimeType() string {
	return c.mimeType
}

func (c *resourceContext) Param(name string) string {
	return c.params[name]
}

func (c *resourceContext) String(s string) error {
	mimeType := c.mimeType
	if mimeType == "" {
		mimeType = "text/plain"
	}
	c.dest.Contents = append(c.dest.Contents, ResourceContent{
		URI:      c.uri,
		MimeType: mimeType,
		Text:     s,
	})
	return nil
}

func (c *resourceContext) reset() {
	c._context.reset()
	c.uri = ""
	c.mimeType = ""
	c.params = nil
	c.dest = nil
}

// newResourceContext creates a new resource context
func newResourceContext() *resourceContext {
	return &resourceContext{}
}

// ResourceListContext is the context for resource list handlers
type ResourceListContext interface {
	Context

	// Resources return the registered static resources in registration order.
	Resources() []Resource

	// AddResource appends a concrete resource to the listing.
	//
	// must be the actual URI, not a template.
	AddResource(resource Resource)
}

var _ ResourceListContext = (*resourceListContext)(nil)

type resourceListContext struct {
	_context
	resources []Resource
	dest      *[]Resource
}

func (c *resourceListContext) Resources() []Resource {
	return c.resources
}

func (c *resourceListContext) AddResource(resource Resource) {
	*c.dest = append(*c.dest, resource)
}

func (c *resourceListContext) reset() {
	c._context.reset()
	c.resources = nil
	c.dest = nil
}

// newResourceListContext creates a new resource list context
func newResourceListContext() *resourceListContext {
	return &resourceListContext{}
}
