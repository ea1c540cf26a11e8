package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/yosida95/uritemplate/v3"
	"golang.org/x/exp/jsonrpc2"

	"github.com/miyamo2/weather-mcp/internal/mcp/transport"
)

// Server is an MCP server exposing tools and resources over JSON-RPC 2.0.
type Server struct {
	// name of the server
	name string

	// version of the server
	version string

	// instructions describe how to use the server
	instructions string

	// startupMutex is mutex to lock Server instance access during server configuration and startup.
	startupMutex sync.RWMutex

	// jsonUnmarshalFunc is the function to unmarshal JSON data
	jsonUnmarshalFunc JSONUnmarshalFunc

	// toolMiddleware is applied to every Tool handler, outermost first
	toolMiddleware []ToolMiddlewareFunc

	// toolContextPool pools ToolContext
	toolContextPool sync.Pool

	// tools in registration order
	tools []Tool

	// resourceMiddleware is applied to every resource handler, outermost first
	resourceMiddleware []ResourceMiddlewareFunc

	// resourceContextPool pools ResourceContext
	resourceContextPool sync.Pool

	// resources are the static resources in registration order
	resources []staticResource

	// resourceTemplates in registration order
	resourceTemplates []templateResource

	// resourceListHandler is the resource list handler
	resourceListHandler ResourceListHandlerFunc

	// resourceListContextPool pools ResourceListContext
	resourceListContextPool sync.Pool

	// capabilities advertised on initialization
	capabilities ServerCapabilities

	// sessionStore keeps the sessions issued on initialization
	sessionStore SessionStore

	logger *slog.Logger
}

type staticResource struct {
	Resource
	handler ResourceHandlerFunc
}

type templateResource struct {
	ResourceTemplate
	template *uritemplate.Template
	handler  ResourceHandlerFunc
}

// ToolMiddlewareFunc defines a function to process Tool middleware.
type ToolMiddlewareFunc func(next ToolHandlerFunc) ToolHandlerFunc

// ToolHandlerFunc defines a function to serve Tool requests.
type ToolHandlerFunc func(c ToolContext) error

// ResourceHandlerFunc defines a function to serve resource requests.
type ResourceHandlerFunc func(c ResourceContext) error

// ResourceMiddlewareFunc defines a function to process resource middleware.
type ResourceMiddlewareFunc func(next ResourceHandlerFunc) ResourceHandlerFunc

// ResourceListHandlerFunc defines a function to serve resource list requests.
type ResourceListHandlerFunc func(c ResourceListContext) error

// DefaultResourceListHandler lists the static resources.
func DefaultResourceListHandler(c ResourceListContext) error {
	for _, v := range c.Resources() {
		c.AddResource(v)
	}
	return nil
}

// JSONUnmarshalFunc defines a function to unmarshal JSON data.
type JSONUnmarshalFunc func(data []byte, v any) error

// Option configures the Server instance.
type Option func(*Server)

// WithVersion sets the version reported in serverInfo. Defaults to "1.0.0".
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithInstructions sets the instructions returned on initialization.
func WithInstructions(instructions string) Option {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithJSONUnmarshalFunc sets the JSON unmarshal function.
func WithJSONUnmarshalFunc(f JSONUnmarshalFunc) Option {
	return func(s *Server) {
		s.jsonUnmarshalFunc = f
	}
}

// WithSessionStore sets the SessionStore to the Server instance.
func WithSessionStore(store SessionStore) Option {
	return func(s *Server) {
		s.sessionStore = store
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new Server instance.
func New(name string, options ...Option) *Server {
	sessionStore := NewInMemorySessionStore(
		InMemorySessionStoreWithIdleTimeout(DefaultSessionIdleTimeout),
		InMemorySessionStoreWithMaxSessions(DefaultMaxSessions),
	)
	s := &Server{
		name:                name,
		version:             "1.0.0",
		jsonUnmarshalFunc:   json.Unmarshal,
		resourceListHandler: DefaultResourceListHandler,
		sessionStore:        sessionStore,
		logger:              slog.Default(),
	}
	ok := s.startupMutex.TryLock()
	if !ok {
		panic(ErrServerLockingConflicts)
	}
	defer s.startupMutex.Unlock()

	for _, opt := range options {
		opt(s)
	}
	s.toolContextPool = sync.Pool{
		New: func() any {
			return newToolContext(s.jsonUnmarshalFunc)
		},
	}
	s.resourceContextPool = sync.Pool{
		New: func() any {
			return newResourceContext()
		},
	}
	s.resourceListContextPool = sync.Pool{
		New: func() any {
			return newResourceListContext()
		},
	}
	return s
}

type toolOptions struct {
	description string
	annotations *ToolAnnotations
	middlewares []ToolMiddlewareFunc
}

// ToolOption configures the Tool options.
type ToolOption func(*toolOptions)

// ToolWithDescription configures the Tool description.
func ToolWithDescription(description string) ToolOption {
	return func(o *toolOptions) {
		o.description = description
	}
}

// ToolWithAnnotations configures the Tool annotations.
func ToolWithAnnotations(annotations ToolAnnotations) ToolOption {
	return func(o *toolOptions) {
		o.annotations = &annotations
	}
}

// ToolWithMiddleware configures the Tool middleware.
func ToolWithMiddleware(middlewares ...ToolMiddlewareFunc) ToolOption {
	return func(o *toolOptions) {
		o.middlewares = append(o.middlewares, middlewares...)
	}
}

// Tool registers a new Tool. Registering a name twice replaces the earlier Tool in place.
//
//   - name: the name of the Tool
//   - req: the request schema for the Tool
//   - handler: the handler function for the Tool
//   - options: (optional) the options for the Tool
func (s *Server) Tool(name string, req any, handler ToolHandlerFunc, options ...ToolOption) {
	ok := s.startupMutex.TryLock()
	if !ok {
		panic(ErrServerLockingConflicts)
	}
	defer s.startupMutex.Unlock()

	if s.capabilities.Tools == nil {
		s.capabilities.Tools = &ToolCapability{}
	}

	opts := &toolOptions{}
	for _, o := range options {
		o(opts)
	}

	ref := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	schema := ref.Reflect(req)
	schema.Version = ""
	tool := Tool{
		Name:        name,
		Description: opts.description,
		InputSchema: schema,
		Annotations: opts.annotations,
		handler:     chainTool(handler, opts.middlewares),
	}
	if i := slices.IndexFunc(s.tools, func(t Tool) bool { return t.Name == name }); i >= 0 {
		s.tools[i] = tool
		return
	}
	s.tools = append(s.tools, tool)
}

type resourceOptions struct {
	description string
	mimeType    string
	middlewares []ResourceMiddlewareFunc
}

// ResourceOption configures the resource options.
type ResourceOption func(*resourceOptions)

// ResourceWithDescription configures the resource description.
func ResourceWithDescription(description string) ResourceOption {
	return func(o *resourceOptions) {
		o.description = description
	}
}

// ResourceWithMimeType configures the resource MIME type.
func ResourceWithMimeType(mimeType string) ResourceOption {
	return func(o *resourceOptions) {
		o.mimeType = mimeType
	}
}

// ResourceWithMiddleware configures the resource middleware.
func ResourceWithMiddleware(middlewares ...ResourceMiddlewareFunc) ResourceOption {
	return func(o *resourceOptions) {
		o.middlewares = append(o.middlewares, middlewares...)
	}
}

// Resource registers a new resource.
// If the URI is an RFC 6570 template with variables, it will be registered as a resource template.
//
//   - name: the name of the resource
//   - uri: the URI or URI template of the resource
//   - handler: the handler function for the resource
//   - options: (optional) the options for the resource
//
// Panics if uri is not a valid URI template.
func (s *Server) Resource(name, uri string, handler ResourceHandlerFunc, options ...ResourceOption) {
	ok := s.startupMutex.TryLock()
	if !ok {
		panic(ErrServerLockingConflicts)
	}
	defer s.startupMutex.Unlock()

	if s.capabilities.Resources == nil {
		s.capabilities.Resources = &ResourceCapability{}
	}

	opts := &resourceOptions{}
	for _, o := range options {
		o(opts)
	}
	f := chainResource(handler, opts.middlewares)

	tmpl, err := uritemplate.New(uri)
	if err != nil {
		panic(fmt.Errorf("invalid resource uri '%s': %w", uri, err))
	}
	if len(tmpl.Varnames()) == 0 {
		r := staticResource{
			Resource: Resource{
				URI:         uri,
				Name:        name,
				Description: opts.description,
				MimeType:    opts.mimeType,
			},
			handler: f,
		}
		if i := slices.IndexFunc(s.resources, func(v staticResource) bool { return v.URI == uri }); i >= 0 {
			s.resources[i] = r
			return
		}
		s.resources = append(s.resources, r)
		return
	}
	r := templateResource{
		ResourceTemplate: ResourceTemplate{
			URITemplate: uri,
			Name:        name,
			Description: opts.description,
			MimeType:    opts.mimeType,
		},
		template: tmpl,
		handler:  f,
	}
	if i := slices.IndexFunc(s.resourceTemplates, func(v templateResource) bool { return v.URITemplate == uri }); i >= 0 {
		s.resourceTemplates[i] = r
		return
	}
	s.resourceTemplates = append(s.resourceTemplates, r)
}

// ResourceList registers the resource list handler, replacing DefaultResourceListHandler.
func (s *Server) ResourceList(handler ResourceListHandlerFunc) {
	ok := s.startupMutex.TryLock()
	if !ok {
		panic(ErrServerLockingConflicts)
	}
	defer s.startupMutex.Unlock()
	if s.capabilities.Resources == nil {
		s.capabilities.Resources = &ResourceCapability{}
	}
	s.resourceListHandler = handler
}

// UseInTools adds middleware to the Tool handler chain.
func (s *Server) UseInTools(middleware ...ToolMiddlewareFunc) {
	ok := s.startupMutex.TryLock()
	if !ok {
		panic(ErrServerLockingConflicts)
	}
	defer s.startupMutex.Unlock()
	s.toolMiddleware = append(s.toolMiddleware, middleware...)
}

// UseInResources adds middleware to the resource handler chain.
func (s *Server) UseInResources(middleware ...ResourceMiddlewareFunc) {
	ok := s.startupMutex.TryLock()
	if !ok {
		panic(ErrServerLockingConflicts)
	}
	defer s.startupMutex.Unlock()
	s.resourceMiddleware = append(s.resourceMiddleware, middleware...)
}

// TerminateSession ends the session, so that later requests carrying its ID are rejected.
func (s *Server) TerminateSession(ctx context.Context, sessionID string) error {
	if _, err := s.sessionStore.Context(ctx, sessionID); err != nil {
		return err
	}
	return s.sessionStore.Delete(ctx, sessionID)
}

// chainTool wraps h so that the first middleware is the outermost.
func chainTool(h ToolHandlerFunc, middlewares []ToolMiddlewareFunc) ToolHandlerFunc {
	for _, m := range slices.Backward(middlewares) {
		h = m(h)
	}
	return h
}

// chainResource wraps h so that the first middleware is the outermost.
func chainResource(h ResourceHandlerFunc, middlewares []ResourceMiddlewareFunc) ResourceHandlerFunc {
	for _, m := range slices.Backward(middlewares) {
		h = m(h)
	}
	return h
}

type startOptions struct {
	ctx       context.Context
	listener  jsonrpc2.Listener
	framer    jsonrpc2.Framer
	preempter jsonrpc2.Preempter
}

// StartOption configures the startup settings for the Server instance
type StartOption func(*startOptions)

// StartWithContext settings the context. Canceling it shuts the server down.
func StartWithContext(ctx context.Context) StartOption {
	return func(o *startOptions) {
		o.ctx = ctx
	}
}

// StartWithListener settings the jsonrpc2.Listener and its default framer
func StartWithListener[T *transport.Stdio | *transport.Streamable](listener T) StartOption {
	return func(o *startOptions) {
		switch v := any(listener).(type) {
		case *transport.Stdio:
			o.listener = v
			o.framer = transport.DefaultStdioFramer()
		case *transport.Streamable:
			o.listener = v
			o.framer = transport.DefaultStreamableFramer()
		}
	}
}

// StartWithFramer settings the jsonrpc2.Framer
func StartWithFramer(framer jsonrpc2.Framer) StartOption {
	return func(o *startOptions) {
		o.framer = framer
	}
}

// StartWithPreempter settings the jsonrpc2.Preempter
func StartWithPreempter(preempter jsonrpc2.Preempter) StartOption {
	return func(o *startOptions) {
		o.preempter = preempter
	}
}

// Start serves until the listener stops accepting or the context is canceled.
//
// Without StartWithListener it serves over stdin and stdout.
func (s *Server) Start(options ...StartOption) error {
	if !s.startupMutex.TryLock() {
		panic(ErrServerLockingConflicts)
	}
	// Locked until the jsonrpc2 server is shut down.
	defer s.startupMutex.Unlock()

	o := &startOptions{
		ctx:    context.Background(),
		framer: transport.DefaultStdioFramer(),
	}
	for _, opt := range options {
		opt(o)
	}
	ctx, cancel := context.WithCancel(o.ctx)
	defer cancel()
	if o.listener == nil {
		o.listener = transport.NewStdio(ctx)
	}
	context.AfterFunc(ctx, func() {
		if err := o.listener.Close(); err != nil {
			s.logger.Warn("[mcp] failed to close listener", slog.Any("error", err))
		}
	})

	srv, err := jsonrpc2.Serve(ctx, o.listener, newBinder(s, s.routes(), o.preempter, o.framer))
	if err != nil {
		return err
	}
	err = srv.Wait()
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// routeTable is the dispatch table frozen at startup, with the global middleware applied.
type routeTable struct {
	tools     map[string]ToolHandlerFunc
	resources map[string]ResourceHandlerFunc
	templates []ResourceHandlerFunc
}

func (s *Server) routes() *routeTable {
	rt := &routeTable{
		tools:     make(map[string]ToolHandlerFunc, len(s.tools)),
		resources: make(map[string]ResourceHandlerFunc, len(s.resources)),
		templates: make([]ResourceHandlerFunc, len(s.resourceTemplates)),
	}
	for _, t := range s.tools {
		rt.tools[t.Name] = chainTool(t.handler, s.toolMiddleware)
	}
	for _, r := range s.resources {
		rt.resources[r.URI] = chainResource(r.handler, s.resourceMiddleware)
	}
	for i, r := range s.resourceTemplates {
		rt.templates[i] = chainResource(r.handler, s.resourceMiddleware)
	}
	return rt
}

// compatibility check
var _ jsonrpc2.Binder = (*binder)(nil)

type binder struct {
	server    *Server
	routes    *routeTable
	preempter jsonrpc2.Preempter
	framer    jsonrpc2.Framer
}

func (b *binder) Bind(_ context.Context, conn *jsonrpc2.Connection) (jsonrpc2.ConnectionOptions, error) {
	h := &handler{
		server: b.server,
		routes: b.routes,
	}

	rv := reflect.ValueOf(conn).Elem()
	elem := rv.FieldByName("closer")
	wrapped, ok := convertToConn(elem, b.server.logger)
	if !ok {
		return jsonrpc2.ConnectionOptions{}, errors.New("failed to recover the transport connection")
	}
	if holder, ok := wrapped.Inner.(transport.SessionIDHolder); ok {
		h.sessionIDHolder = holder
	}
	if ack, ok := wrapped.Inner.(transport.Acknowledger); ok {
		h.acknowledger = ack
	}

	return jsonrpc2.ConnectionOptions{
		Preempter: b.preempter,
		Framer:    b.framer,
		Handler:   h,
	}, nil
}

func convertToConn(elem reflect.Value, logger *slog.Logger) (_ *transport.Conn, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("[mcp] failed to convert to transport.Conn", slog.Any("recover", rec))
			ok = false
		}
	}()
	rf := reflect.NewAt(elem.Type(), elem.Addr().UnsafePointer()).Elem()
	v, ok := rf.Interface().(*transport.Conn)
	return v, ok
}

func newBinder(s *Server, routes *routeTable, preempter jsonrpc2.Preempter, framer jsonrpc2.Framer) *binder {
	return &binder{
		server:    s,
		routes:    routes,
		preempter: preempter,
		framer:    framer,
	}
}

// codeInvalidParams is the JSON-RPC error code for invalid method parameters.
const codeInvalidParams int64 = -32602

// compatibility check
var _ jsonrpc2.Handler = (*handler)(nil)

// handler serves a single jsonrpc2 connection.
type handler struct {
	server          *Server
	routes          *routeTable
	sessionIDHolder transport.SessionIDHolder
	acknowledger    transport.Acknowledger
}

// Handle See: jsonrpc2.Handler.Handle
func (h *handler) Handle(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	if !req.IsCall() {
		defer h.acknowledge()
		h.server.logger.DebugContext(ctx, "[mcp] notification received", slog.String("method", req.Method))
		return nil, nil
	}
	switch req.Method {
	case MethodInitialize:
		return h.handleInitialize(ctx, req)
	case MethodPing:
		return struct{}{}, nil
	}

	sessionID := h.sessionID()
	if sessionID == "" {
		return nil, errWireSessionNotFound
	}
	sessionCtx, err := h.server.sessionStore.Context(ctx, sessionID)
	if err != nil {
		h.server.logger.WarnContext(ctx, "[mcp] rejected request", slog.String("method", req.Method), slog.Any("error", err))
		return nil, errWireSessionNotFound
	}
	if sessionCtx.Err() != nil {
		return nil, errWireSessionNotFound
	}
	return h.invokeMethod(ctx, req)
}

func (h *handler) sessionID() string {
	if h.sessionIDHolder == nil {
		return ""
	}
	return h.sessionIDHolder.SessionID()
}

func (h *handler) acknowledge() {
	if h.acknowledger != nil {
		h.acknowledger.Acknowledge()
	}
}

// invokeMethod invokes the method specified in the request.
func (h *handler) invokeMethod(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case MethodResourcesList:
		return h.handleResourcesList(ctx, req)
	case MethodResourcesTemplatesList:
		return h.handleResourcesTemplatesList()
	case MethodResourcesRead:
		return h.handleResourcesRead(ctx, req)
	case MethodToolsList:
		return h.handleToolsList()
	case MethodToolsCall:
		return h.handleToolsCall(ctx, req)
	default:
		return nil, jsonrpc2.ErrMethodNotFound
	}
}

// handleInitialize handles the initialization request.
func (h *handler) handleInitialize(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params initializeRequestParams
	if len(req.Params) > 0 {
		if err := h.server.jsonUnmarshalFunc(req.Params, &params); err != nil {
			return nil, jsonrpc2.ErrInvalidParams
		}
	}

	id, err := h.server.sessionStore.Issue(ctx)
	if errors.Is(err, ErrTooManySessions) {
		h.server.logger.WarnContext(ctx, "[mcp] rejected initialization", slog.Any("error", err))
		return nil, errWireTooManySessions
	}
	if err != nil {
		return nil, err
	}
	if h.sessionIDHolder != nil {
		h.sessionIDHolder.SetSessionID(id)
	}

	protocolVersion := params.ProtocolVersion
	if support := SupportedProtocolVersions[protocolVersion]; !support {
		protocolVersion = LatestProtocolVersion
	}
	h.server.logger.InfoContext(ctx, "[mcp] session initialized",
		slog.String("session_id", id),
		slog.String("client", params.ClientInfo.Name),
		slog.String("protocol_version", protocolVersion))

	return &initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    h.server.capabilities,
		ServerInfo: implementation{
			Name:    h.server.name,
			Version: h.server.version,
		},
		Instructions: h.server.instructions,
	}, nil
}

// handleResourcesList handles the request to list resources.
func (h *handler) handleResourcesList(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	dest := make([]Resource, 0, len(h.server.resources))
	c := h.server.resourceListContextPool.Get().(*resourceListContext)
	c.ctx = ctx
	c.jsonrpcRequest = req
	c.dest = &dest
	c.resources = make([]Resource, len(h.server.resources))
	for i, v := range h.server.resources {
		c.resources[i] = v.Resource
	}
	defer func() {
		c.reset()
		h.server.resourceListContextPool.Put(c)
	}()

	if err := h.server.resourceListHandler(c); err != nil {
		return nil, err
	}
	return &listResourcesResult{
		Resources: dest,
	}, nil
}

// handleResourcesTemplatesList handles the request to list resource templates.
func (h *handler) handleResourcesTemplatesList() (any, error) {
	templates := make([]ResourceTemplate, len(h.server.resourceTemplates))
	for i, v := range h.server.resourceTemplates {
		templates[i] = v.ResourceTemplate
	}
	return &listResourceTemplatesResult{
		ResourceTemplates: templates,
	}, nil
}

// handleResourcesRead handles the request to read a resource.
//
// Static resources take precedence over templates; templates are tried in registration order.
func (h *handler) handleResourcesRead(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params readResourceRequestParams
	if err := h.server.jsonUnmarshalFunc(req.Params, &params); err != nil {
		return nil, jsonrpc2.ErrInvalidParams
	}

	route, mimeType, pathParams, found := h.matchResource(params.URI)
	if !found {
		return nil, errWireResourceNotFound
	}

	c := h.server.resourceContextPool.Get().(*resourceContext)
	var dest readResourceResult
	c.ctx = ctx
	c.uri = params.URI
	c.mimeType = mimeType
	c.jsonrpcRequest = req
	c.params = pathParams
	c.dest = &dest

	defer func() {
		c.reset()
		h.server.resourceContextPool.Put(c)
	}()

	if err := route(c); err != nil {
		err = fmt.Errorf(ErrorMessageFailedToHandleResource, params.URI, err)
		h.server.logger.ErrorContext(ctx, "[mcp] resource handler failed", slog.Any("error", err))
		return nil, err
	}
	return &dest, nil
}

func (h *handler) matchResource(uri string) (route ResourceHandlerFunc, mimeType string, params map[string]string, found bool) {
	for _, v := range h.server.resources {
		if v.URI == uri {
			return h.routes.resources[uri], v.MimeType, nil, true
		}
	}
	for i, v := range h.server.resourceTemplates {
		values := v.template.Match(uri)
		if values == nil {
			continue
		}
		params = make(map[string]string, len(values))
		for _, name := range v.template.Varnames() {
			params[name] = values.Get(name).String()
		}
		return h.routes.templates[i], v.MimeType, params, true
	}
	return nil, "", nil, false
}

// handleToolsList handles the request to list tools.
func (h *handler) handleToolsList() (any, error) {
	return &listToolsResult{
		Tools: h.server.tools,
	}, nil
}

// handleToolsCall handles the request to call a tool.
func (h *handler) handleToolsCall(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	var params callToolRequestParams
	if err := h.server.jsonUnmarshalFunc(req.Params, &params); err != nil {
		return nil, jsonrpc2.ErrInvalidParams
	}

	tool, toolAvailable := h.routes.tools[params.Name]
	if !toolAvailable {
		return nil, jsonrpc2.NewError(codeInvalidParams, fmt.Sprintf("unknown tool: %s", params.Name))
	}

	c := h.server.toolContextPool.Get().(*toolContext)
	dest := CallToolResult{Content: []TextContent{}}
	c.toolName = params.Name
	c.ctx = ctx
	c.jsonrpcRequest = req
	c.args = params.Arguments
	c.dest = &dest

	defer func() {
		c.reset()
		h.server.toolContextPool.Put(c)
	}()

	if err := tool(c); err != nil {
		err = fmt.Errorf(ErrorMessageFailedToHandleTool, params.Name, err)
		h.server.logger.ErrorContext(ctx, "[mcp] tool handler failed", slog.Any("error", err))
		return nil, err
	}
	return &dest, nil
}
