package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/jsonrpc2"
)

// compatibility check
var (
	_ jsonrpc2.Listener  = (*Stdio)(nil)
	_ jsonrpc2.Dialer    = (*Stdio)(nil)
	_ io.ReadWriteCloser = (*Stdio)(nil)
	_ SessionIDHolder    = (*Stdio)(nil)
)

// Stdio implements the jsonrpc2.Listener, jsonrpc2.Dialer and io.ReadWriteCloser over a single stream pair.
//
// It accepts exactly one connection and stops listening once the input stream ends.
type Stdio struct {
	in        io.ReadCloser
	out       io.WriteCloser
	ctx       context.Context
	cancel    context.CancelFunc
	accepted  atomic.Bool
	closeOnce sync.Once
	writeMu   sync.Mutex
	sessionMu sync.RWMutex
	sessionID string
}

// Accept implements the jsonrpc2.Listener#Accept
func (s *Stdio) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	if s.accepted.CompareAndSwap(false, true) {
		return NewConn(s), nil
	}
	select {
	case <-s.ctx.Done():
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dial implements the jsonrpc2.Dialer#Dial
func (s *Stdio) Dial(_ context.Context) (io.ReadWriteCloser, error) {
	return s, nil
}

// Dialer implements the jsonrpc2.Listener#Dialer
func (s *Stdio) Dialer() jsonrpc2.Dialer {
	return s
}

// Read implements the io.Reader#Read
func (s *Stdio) Read(p []byte) (n int, err error) {
	n, err = s.in.Read(p)
	if errors.Is(err, io.EOF) {
		// the peer hung up, nothing more will be accepted.
		s.cancel()
	}
	return n, err
}

// Write implements the io.Writer#Write
func (s *Stdio) Write(p []byte) (n int, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.out.Write(p)
}

// Close the input stream, the output stream and the listener.
func (s *Stdio) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = errors.Join(s.in.Close(), s.out.Close())
	})
	return err
}

// SessionID See: SessionIDHolder#SessionID
func (s *Stdio) SessionID() string {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	return s.sessionID
}

// SetSessionID See: SessionIDHolder#SetSessionID
func (s *Stdio) SetSessionID(sessionID string) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	s.sessionID = sessionID
}

// Context returns a context that is canceled once the listener is closed or the input ends.
func (s *Stdio) Context() context.Context {
	return s.ctx
}

type stdioOptions struct {
	in  io.ReadCloser
	out io.WriteCloser
}

// StdioOption options for the Stdio listener.
type StdioOption func(*stdioOptions)

// StdioWithReadCloser sets the input stream. Defaults to os.Stdin.
func StdioWithReadCloser(in io.ReadCloser) StdioOption {
	return func(o *stdioOptions) {
		o.in = in
	}
}

// StdioWithWriteCloser sets the output stream. Defaults to os.Stdout.
func StdioWithWriteCloser(out io.WriteCloser) StdioOption {
	return func(o *stdioOptions) {
		o.out = out
	}
}

// NewStdio returns a new Stdio listener.
func NewStdio(ctx context.Context, options ...StdioOption) *Stdio {
	opts := &stdioOptions{
		in:  os.Stdin,
		out: os.Stdout,
	}
	for _, opt := range options {
		opt(opts)
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Stdio{
		in:     opts.in,
		out:    opts.out,
		ctx:    ctx,
		cancel: cancel,
	}
}

// compatibility check
var _ jsonrpc2.Framer = (*stdioFramer)(nil)

// stdioFramer implements the jsonrpc2.Framer for stdio transport.
type stdioFramer struct {
	jsonrpc2.Framer
}

// Reader implements the jsonrpc2.Framer#Reader
//
// When r is also an io.Writer, lines that are not JSON-RPC messages are answered on it.
func (s stdioFramer) Reader(r io.Reader) jsonrpc2.Reader {
	reader := &stdioReader{in: bufio.NewReader(r)}
	if w, ok := r.(io.Writer); ok {
		reader.out = w
	}
	return reader
}

// Writer implements the jsonrpc2.Framer#Writer
func (s stdioFramer) Writer(w io.Writer) jsonrpc2.Writer {
	return &stdioWriter{
		writerFunc: s.Framer.Writer,
		w:          w,
	}
}

// newStdioFramer returns a new stdio framer.
func newStdioFramer() jsonrpc2.Framer {
	return &stdioFramer{
		Framer: jsonrpc2.RawFramer(),
	}
}

// compatibility check
var _ jsonrpc2.Reader = (*stdioReader)(nil)

// stdioReader reads one newline delimited message at a time.
type stdioReader struct {
	in  *bufio.Reader
	out io.Writer
}

// Read See: jsonrpc2.Reader#Read
//
// Blank lines are skipped. A line that is not a JSON-RPC message is answered with an error response
// and skipped, so the connection survives it.
func (s *stdioReader) Read(ctx context.Context) (jsonrpc2.Message, int64, error) {
	var n int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, n, err
		}
		line, err := s.in.ReadBytes(stdioDelimiter)
		n += int64(len(line))
		if len(bytes.TrimSpace(line)) > 0 {
			msg, resp, decodeErr := decodeMessage(line)
			if decodeErr == nil {
				return msg, n, nil
			}
			s.reject(ctx, resp, decodeErr)
		}
		if err != nil {
			return nil, n, err
		}
	}
}

func (s *stdioReader) reject(ctx context.Context, resp []byte, cause error) {
	slog.WarnContext(ctx, "[mcp] rejected stdio message", slog.Any("error", cause))
	if s.out == nil {
		return
	}
	if _, err := s.out.Write(append(resp, stdioDelimiter)); err != nil {
		slog.WarnContext(ctx, "[mcp] failed to answer rejected message", slog.Any("error", err))
	}
}

// compatibility check
var _ jsonrpc2.Writer = (*stdioWriter)(nil)

// stdioWriter implements the jsonrpc2.Writer for stdio transport.
type stdioWriter struct {
	writerFunc func(rw io.Writer) jsonrpc2.Writer
	w          io.Writer
}

// stdioDelimiter separates messages in stdio transport.
const stdioDelimiter byte = '\n'

// Write See: jsonrpc2.Writer#Write
//
// The message and its delimiter are written in a single call, so concurrent writers never interleave.
func (s *stdioWriter) Write(ctx context.Context, message jsonrpc2.Message) (int64, error) {
	var buf bytes.Buffer
	if _, err := s.writerFunc(&buf).Write(ctx, message); err != nil {
		return 0, err
	}
	buf.WriteByte(stdioDelimiter)
	n, err := s.w.Write(buf.Bytes())
	return int64(n), err
}
