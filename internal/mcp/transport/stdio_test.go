package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"golang.org/x/exp/jsonrpc2"
)

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func TestStdio_Accept(t *testing.T) {
	in, _ := io.Pipe()
	s := NewStdio(t.Context(), StdioWithReadCloser(in), StdioWithWriteCloser(nopWriteCloser{io.Discard}))

	conn, err := s.Accept(t.Context())
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if c, ok := conn.(*Conn); !ok || c.Inner != s {
		t.Fatalf("expected the listener itself wrapped in a Conn, got %T", conn)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Accept(t.Context())
		done <- err
	}()
	select {
	case err := <-done:
		t.Fatalf("expected Accept to block, got %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	if err := s.Close(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := <-done; !errors.Is(err, io.EOF) {
		t.Fatalf("expected %v, got %v", io.EOF, err)
	}
}

func TestStdio_Accept_canceled(t *testing.T) {
	in, _ := io.Pipe()
	s := NewStdio(t.Context(), StdioWithReadCloser(in), StdioWithWriteCloser(nopWriteCloser{io.Discard}))
	if _, err := s.Accept(t.Context()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := s.Accept(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected %v, got %v", context.Canceled, err)
	}
}

func TestStdio_Read_eof(t *testing.T) {
	s := NewStdio(t.Context(),
		StdioWithReadCloser(io.NopCloser(bytes.NewBufferString("{}\n"))),
		StdioWithWriteCloser(nopWriteCloser{io.Discard}))
	b, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if string(b) != "{}\n" {
		t.Fatalf("expected %q, got %q", "{}\n", b)
	}
	select {
	case <-s.Context().Done():
	default:
		t.Fatal("expected the listener to stop once the input ended")
	}
}

func TestStdio_SessionID(t *testing.T) {
	s := NewStdio(t.Context())
	if got := s.SessionID(); got != "" {
		t.Fatalf("expected empty, got %s", got)
	}
	s.SetSessionID("01J0000000000000000000000")
	if got := s.SessionID(); got != "01J0000000000000000000000" {
		t.Fatalf("expected 01J0000000000000000000000, got %s", got)
	}
}

type countingWriter struct {
	bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

func TestDefaultStdioFramer(t *testing.T) {
	msg, err := jsonrpc2.NewCall(jsonrpc2.Int64ID(1), "ping", nil)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	var w countingWriter
	n, err := DefaultStdioFramer().Writer(&w).Write(t.Context(), msg)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if w.writes != 1 {
		t.Fatalf("expected a single write, got %d", w.writes)
	}
	got := w.String()
	if int(n) != len(got) {
		t.Fatalf("expected %d, got %d", len(got), n)
	}
	if !bytes.HasSuffix(w.Bytes(), []byte{'\n'}) || bytes.Count(w.Bytes(), []byte{'\n'}) != 1 {
		t.Fatalf("expected one trailing newline, got %q", got)
	}
	if !bytes.Contains(w.Bytes(), []byte(`"method":"ping"`)) {
		t.Fatalf("expected ping call, got %q", got)
	}
}

func TestDefaultStdioFramer_Reader(t *testing.T) {
	input := "not json\n" +
		"\n" +
		`{"id":3}` + "\n" +
		`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n" +
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`
	var out bytes.Buffer
	s := NewStdio(t.Context(),
		StdioWithReadCloser(io.NopCloser(bytes.NewBufferString(input))),
		StdioWithWriteCloser(nopWriteCloser{&out}))
	r := DefaultStdioFramer().Reader(s)

	var methods []string
	for {
		msg, _, err := r.Read(t.Context())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
		req, ok := msg.(*jsonrpc2.Request)
		if !ok {
			t.Fatalf("expected *jsonrpc2.Request, got %T", msg)
		}
		methods = append(methods, req.Method)
	}
	if want := []string{"ping", "notifications/initialized"}; !slices.Equal(methods, want) {
		t.Fatalf("expected %v, got %v", want, methods)
	}

	want := `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}` + "\n" +
		`{"jsonrpc":"2.0","id":3,"error":{"code":-32600,"message":"Invalid Request"}}` + "\n"
	if got := out.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
