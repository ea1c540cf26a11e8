package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/jsonrpc2"
)

// compatibility check
var (
	_ jsonrpc2.Listener = (*Streamable)(nil)
	_ jsonrpc2.Dialer   = (*Streamable)(nil)
)

// Streamable implements the jsonrpc2.Listener for the Streamable HTTP transport.
//
// Every POST to /mcp becomes one connection carrying one JSON-RPC message.
// Server initiated SSE streams are not offered, so GET /mcp answers 405.
// https://modelcontextprotocol.io/specification/2025-03-26/basic/transports#streamable-http
type Streamable struct {
	authorizer       Authorizer
	terminator       SessionTerminator
	netListener      net.Listener
	server           *http.Server
	rwc              chan *StreamableReadWriteCloser
	closed           chan struct{}
	closeOnce        sync.Once
	allowCORSOrigin  string
	allowCORSMethods string
	allowCORSHeaders string
	exchangeTimeout  time.Duration
	maxBodyBytes     int64
	errCh            chan error
}

// SessionTerminator ends a session when the client sends DELETE /mcp.
type SessionTerminator func(ctx context.Context, sessionID string) error

var (
	defaultAccessControlAllowOrigin  = []string{"*"}
	defaultAccessControlAllowMethods = []string{"POST", "GET", "OPTIONS", "DELETE"}
	defaultAccessControlAllowHeaders = []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", MCPSessionID}
)

// Accept See: jsonrpc2.Listener#Accept
func (s *Streamable) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	select {
	case rwc := <-s.rwc:
		return NewConn(rwc), nil
	case <-s.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the HTTP server. See: jsonrpc2.Listener#Close
func (s *Streamable) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		if closeErr := s.server.Close(); closeErr != nil {
			err = closeErr
			return
		}
		if serveErr := <-s.errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			err = serveErr
		}
	})
	return err
}

// Dial See: jsonrpc2.Dialer#Dial
func (s *Streamable) Dial(_ context.Context) (io.ReadWriteCloser, error) {
	return nil, ErrDialNotSupported
}

// Dialer See: jsonrpc2.Listener#Dialer
func (s *Streamable) Dialer() jsonrpc2.Dialer {
	return s
}

// Addr returns the address the transport listens on.
func (s *Streamable) Addr() net.Addr {
	return s.netListener.Addr()
}

// Handler returns the HTTP handler of the transport.
func (s *Streamable) Handler() http.Handler {
	return s.server.Handler
}

func (s *Streamable) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.healthz)
	r.Route("/mcp", func(r chi.Router) {
		r.Use(s.cors)
		r.Options("/", s.preflight)
		r.With(s.authorize).Post("/", s.serveHTTP)
		r.With(s.authorize).Delete("/", s.terminate)
		r.Get("/", s.methodNotAllowed)
	})
	return r
}

func (s *Streamable) serveHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "application/json; charset=utf-8")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		slog.WarnContext(r.Context(), "[mcp] failed to read request body", slog.Any("error", err))
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeErrorResponse(w, http.StatusRequestEntityTooLarge, newErrorResponse(nil, codeInvalidRequest, "Request body too large"))
			return
		}
		writeErrorResponse(w, http.StatusBadRequest, newErrorResponse(nil, codeParseError, "Parse error"))
		return
	}
	if _, resp, err := decodeMessage(body); err != nil {
		slog.WarnContext(r.Context(), "[mcp] rejected request body", slog.Any("error", err))
		writeErrorResponse(w, http.StatusBadRequest, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.exchangeTimeout)
	defer cancel()
	rwc := &StreamableReadWriteCloser{
		w:             w,
		r:             io.NopCloser(bytes.NewReader(body)),
		flusher:       flusher,
		requestHeader: r.Header,
		ctx:           ctx,
		cancel:        cancel,
	}
	select {
	case s.rwc <- rwc:
	case <-s.closed:
		rwc.Close()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	case <-ctx.Done():
		rwc.expire(ctx.Err())
		return
	}
	<-ctx.Done()
	rwc.expire(ctx.Err())
}

func writeErrorResponse(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Streamable) terminate(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(MCPSessionID)
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	if s.terminator == nil {
		http.Error(w, "session termination is not supported", http.StatusMethodNotAllowed)
		return
	}
	if err := s.terminator(r.Context(), sessionID); err != nil {
		slog.WarnContext(r.Context(), "[mcp] failed to terminate session", slog.String("session_id", sessionID), slog.Any("error", err))
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Streamable) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("content-type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Streamable) methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("allow", "POST, DELETE, OPTIONS")
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

func (s *Streamable) preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Streamable) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("access-control-allow-origin", s.allowCORSOrigin)
		w.Header().Set("access-control-allow-methods", s.allowCORSMethods)
		w.Header().Set("access-control-allow-headers", s.allowCORSHeaders)
		w.Header().Set("access-control-expose-headers", MCPSessionID)
		next.ServeHTTP(w, r)
	})
}

func (s *Streamable) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.authorizer.Authorize(r.Header.Get("authorization")); err != nil {
			slog.ErrorContext(r.Context(), "[mcp] authorize failed", slog.Any("error", err))
			w.Header().Set("www-authenticate", "Bearer")
			http.Error(w, "authorize failed", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type streamableOptions struct {
	address                         string
	netListener                     net.Listener
	accessControlAllowOrigin        []string
	accessControlAllowOriginMethods []string
	accessControlAllowOriginHeaders []string
	authorizer                      Authorizer
	terminator                      SessionTerminator
	readHeaderTimeout               time.Duration
	exchangeTimeout                 time.Duration
	maxBodyBytes                    int64
}

// StreamableOption configures the Streamable transport.
type StreamableOption func(*streamableOptions)

// StreamableWithAddress settings the address to listen on.
//
// If not set, it defaults to ":3001".
//
// If a net.Listener is provided, this option is ignored.
func StreamableWithAddress(address string) StreamableOption {
	return func(s *streamableOptions) {
		s.address = address
	}
}

// StreamableWithNetListener settings the net.Listener to use.
func StreamableWithNetListener(listener net.Listener) StreamableOption {
	return func(s *streamableOptions) {
		s.address = listener.Addr().String()
		s.netListener = listener
	}
}

// StreamableWithAccessControlAllowOrigin settings the allowed origins.
func StreamableWithAccessControlAllowOrigin(allowCORSOrigin []string) StreamableOption {
	return func(s *streamableOptions) {
		s.accessControlAllowOrigin = allowCORSOrigin
	}
}

// StreamableWithAccessControlAllowHeaders settings the allowed CORS headers.
func StreamableWithAccessControlAllowHeaders(allowCORSHeaders []string) StreamableOption {
	return func(s *streamableOptions) {
		s.accessControlAllowOriginHeaders = allowCORSHeaders
	}
}

// StreamableWithAuthorizer settings the authorizer for the Streamable transport.
func StreamableWithAuthorizer(authorizer Authorizer) StreamableOption {
	return func(s *streamableOptions) {
		s.authorizer = authorizer
	}
}

// StreamableWithSessionTerminator settings the function that ends sessions on DELETE /mcp.
func StreamableWithSessionTerminator(terminator SessionTerminator) StreamableOption {
	return func(s *streamableOptions) {
		s.terminator = terminator
	}
}

// StreamableWithReadHeaderTimeout settings the read header timeout of the HTTP server. Defaults to 10 seconds.
func StreamableWithReadHeaderTimeout(timeout time.Duration) StreamableOption {
	return func(s *streamableOptions) {
		s.readHeaderTimeout = timeout
	}
}

// StreamableWithExchangeTimeout settings how long a POST waits for its response. Defaults to 30 seconds.
//
// An exchange that runs out of time is answered with 504 Gateway Timeout.
func StreamableWithExchangeTimeout(timeout time.Duration) StreamableOption {
	return func(s *streamableOptions) {
		s.exchangeTimeout = timeout
	}
}

// StreamableWithMaxBodyBytes settings the largest request body accepted. Defaults to 4 MiB.
func StreamableWithMaxBodyBytes(n int64) StreamableOption {
	return func(s *streamableOptions) {
		s.maxBodyBytes = n
	}
}

// NewStreamable creates new Streamable transport and starts serving HTTP.
func NewStreamable(options ...StreamableOption) (*Streamable, error) {
	opts := &streamableOptions{
		address:                         ":3001",
		accessControlAllowOrigin:        defaultAccessControlAllowOrigin,
		accessControlAllowOriginMethods: defaultAccessControlAllowMethods,
		accessControlAllowOriginHeaders: defaultAccessControlAllowHeaders,
		authorizer:                      DefaultAuthorizer(),
		readHeaderTimeout:               10 * time.Second,
		exchangeTimeout:                 30 * time.Second,
		maxBodyBytes:                    4 << 20,
	}
	for _, opt := range options {
		opt(opts)
	}
	if opts.netListener == nil {
		var err error
		opts.netListener, err = net.Listen("tcp", opts.address)
		if err != nil {
			return nil, err
		}
	}

	s := &Streamable{
		netListener:      opts.netListener,
		rwc:              make(chan *StreamableReadWriteCloser),
		closed:           make(chan struct{}),
		allowCORSOrigin:  strings.Join(opts.accessControlAllowOrigin, ","),
		allowCORSMethods: strings.Join(opts.accessControlAllowOriginMethods, ","),
		allowCORSHeaders: strings.Join(opts.accessControlAllowOriginHeaders, ","),
		errCh:            make(chan error, 1),
		authorizer:       opts.authorizer,
		terminator:       opts.terminator,
		exchangeTimeout:  opts.exchangeTimeout,
		maxBodyBytes:     opts.maxBodyBytes,
	}
	s.server = &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: opts.readHeaderTimeout,
	}

	go func() {
		s.errCh <- s.server.Serve(s.netListener)
	}()
	return s, nil
}

// compatibility check
var (
	_ io.ReadWriteCloser = (*StreamableReadWriteCloser)(nil)
	_ SessionIDHolder    = (*StreamableReadWriteCloser)(nil)
	_ Acknowledger       = (*StreamableReadWriteCloser)(nil)
)

// StreamableReadWriteCloser adapts a single HTTP exchange to io.ReadWriteCloser.
//
// The response is written exactly once; the exchange ends with the first Write or Acknowledge.
type StreamableReadWriteCloser struct {
	_             struct{}
	w             http.ResponseWriter
	flusher       http.Flusher
	r             io.ReadCloser
	requestHeader http.Header
	ctx           context.Context
	cancel        context.CancelFunc
	mu            sync.Mutex
	eof           bool
	closed        bool
	responded     bool
}

// Read See: io.ReadWriteCloser#Read
//
// Once the body is drained, Read blocks until the exchange ends, so the connection stays open for the response.
func (s *StreamableReadWriteCloser) Read(p []byte) (n int, err error) {
	if s.eof {
		<-s.ctx.Done()
		return 0, io.EOF
	}
	n, err = s.r.Read(p)
	if !errors.Is(err, io.EOF) {
		return n, err
	}
	s.eof = true
	if n > 0 {
		return n, nil
	}
	<-s.ctx.Done()
	return 0, io.EOF
}

// Write See: io.ReadWriteCloser#Write
func (s *StreamableReadWriteCloser) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.EOF
	}
	defer s.closeLocked()
	s.responded = true
	n, err = s.w.Write(p)
	s.flusher.Flush()
	return n, err
}

// Acknowledge answers 202 Accepted when the request produced no response.
func (s *StreamableReadWriteCloser) Acknowledge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.responded = true
	s.w.WriteHeader(http.StatusAccepted)
	s.closeLocked()
}

// expire ends the exchange once its context is done, answering 504 when it ran out of time unanswered.
// It runs while the handler still owns the http.ResponseWriter.
func (s *StreamableReadWriteCloser) expire(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.responded && errors.Is(cause, context.DeadlineExceeded) {
		s.responded = true
		writeErrorResponse(s.w, http.StatusGatewayTimeout, newErrorResponse(nil, codeInternalError, "Request timed out"))
	}
	s.closeLocked()
}

// Close See: io.ReadWriteCloser#Close
func (s *StreamableReadWriteCloser) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *StreamableReadWriteCloser) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return s.r.Close()
}

// SessionID See: SessionIDHolder#SessionID
func (s *StreamableReadWriteCloser) SessionID() string {
	return s.requestHeader.Get(MCPSessionID)
}

// SetSessionID See: SessionIDHolder#SetSessionID
func (s *StreamableReadWriteCloser) SetSessionID(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.w.Header().Set(MCPSessionID, sessionID)
}

// compatibility check
var _ jsonrpc2.Writer = (*streamableWriter)(nil)

type streamableWriter struct {
	writerFunc func(rw io.Writer) jsonrpc2.Writer
	w          io.Writer
}

// Write See: jsonrpc2.Writer#Write
//
// The message is buffered and handed to the exchange in one call.
func (s *streamableWriter) Write(ctx context.Context, message jsonrpc2.Message) (int64, error) {
	var buf bytes.Buffer
	if _, err := s.writerFunc(&buf).Write(ctx, message); err != nil {
		return 0, err
	}
	n, err := s.w.Write(buf.Bytes())
	return int64(n), err
}

// compatibility check
var _ jsonrpc2.Framer = (*streamableFramer)(nil)

// streamableFramer implements the jsonrpc2.Framer for streamable http transport.
type streamableFramer struct {
	jsonrpc2.Framer
}

// Writer implements the jsonrpc2.Framer#Writer
func (s *streamableFramer) Writer(w io.Writer) jsonrpc2.Writer {
	return &streamableWriter{
		writerFunc: s.Framer.Writer,
		w:          w,
	}
}

// newStreamableFramer returns a new streamable framer.
func newStreamableFramer() jsonrpc2.Framer {
	return &streamableFramer{
		Framer: jsonrpc2.RawFramer(),
	}
}
