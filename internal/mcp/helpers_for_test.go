package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/miyamo2/weather-mcp/internal/mcp/transport"
)

type wireError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

type wireResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *wireError      `json:"error,omitempty"`
}

// pipeClient talks to a Server started over an in-memory stdio transport.
type pipeClient struct {
	t      *testing.T
	w      io.WriteCloser
	r      *bufio.Reader
	nextID int
}

func startPipeServer(t *testing.T, s *Server) *pipeClient {
	t.Helper()
	serverRead, clientWrite := io.Pipe()
	clientRead, serverWrite := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Start(
			StartWithContext(ctx),
			StartWithListener(transport.NewStdio(ctx,
				transport.StdioWithReadCloser(serverRead),
				transport.StdioWithWriteCloser(serverWrite))))
	}()
	t.Cleanup(func() {
		cancel()
		clientWrite.Close()
		clientRead.Close()
		if err := <-done; err != nil {
			t.Errorf("server stopped with error: %v", err)
		}
	})
	return &pipeClient{t: t, w: clientWrite, r: bufio.NewReader(clientRead)}
}

func (c *pipeClient) send(method string, params any) {
	c.t.Helper()
	c.nextID++
	c.write(map[string]any{"jsonrpc": JSONRPCVersion, "id": c.nextID, "method": method, "params": params})
}

func (c *pipeClient) notify(method string) {
	c.t.Helper()
	c.write(map[string]any{"jsonrpc": JSONRPCVersion, "method": method})
}

func (c *pipeClient) write(v any) {
	c.t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		c.t.Fatalf("failed to marshal request: %v", err)
	}
	if _, err := c.w.Write(append(b, '\n')); err != nil {
		c.t.Fatalf("failed to write request: %v", err)
	}
}

func (c *pipeClient) receive() wireResponse {
	c.t.Helper()
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		c.t.Fatalf("failed to read response: %v", err)
	}
	var resp wireResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		c.t.Fatalf("failed to unmarshal response %q: %v", line, err)
	}
	if got, want := string(resp.ID), fmt.Sprint(c.nextID); got != want {
		c.t.Fatalf("expected id %s, got %s", want, got)
	}
	return resp
}

// call sends a request and decodes its result into dest, failing on a JSON-RPC error.
func (c *pipeClient) call(method string, params any, dest any) {
	c.t.Helper()
	c.send(method, params)
	resp := c.receive()
	if resp.Error != nil {
		c.t.Fatalf("%s: unexpected error %+v", method, *resp.Error)
	}
	if dest == nil {
		return
	}
	if err := json.Unmarshal(resp.Result, dest); err != nil {
		c.t.Fatalf("failed to unmarshal result: %v", err)
	}
}

// callError sends a request and returns its JSON-RPC error, failing on success.
func (c *pipeClient) callError(method string, params any) wireError {
	c.t.Helper()
	c.send(method, params)
	resp := c.receive()
	if resp.Error == nil {
		c.t.Fatalf("%s: expected error, got %s", method, resp.Result)
	}
	return *resp.Error
}

func (c *pipeClient) initialize() initializeResult {
	c.t.Helper()
	var result initializeResult
	c.call(MethodInitialize, map[string]any{
		"protocolVersion": LatestProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test-client", "version": "1.0.0"},
	}, &result)
	c.notify(MethodNotificationInitialized)
	return result
}
