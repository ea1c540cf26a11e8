package transport

import (
	"errors"
	"io"

	"github.com/goccy/go-json"
	"golang.org/x/exp/jsonrpc2"
)

// MCPSessionID is the HTTP header that carries the session ID.
// https://modelcontextprotocol.io/specification/2025-03-26/basic/transports#session-management
const MCPSessionID = "Mcp-Session-Id"

// JSON-RPC error codes the transports answer with before a message reaches the server.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeInternalError  = -32603
)

type errorObject struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   errorObject     `json:"error"`
}

var nullID = json.RawMessage("null")

// newErrorResponse encodes a JSON-RPC error response. A nil id encodes as null.
func newErrorResponse(id json.RawMessage, code int64, message string) []byte {
	if len(id) == 0 {
		id = nullID
	}
	// id is either null or lifted from well-formed JSON, so encoding cannot fail.
	b, _ := json.Marshal(errorResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   errorObject{Code: code, Message: message},
	})
	return b
}

// decodeMessage decodes a single JSON-RPC message.
// When data is not one, the error response to send back is returned alongside the error:
// Parse error for malformed JSON, Invalid Request for well-formed JSON that is not a message.
func decodeMessage(data []byte) (jsonrpc2.Message, []byte, error) {
	msg, err := jsonrpc2.DecodeMessage(data)
	if err == nil {
		return msg, nil, nil
	}
	if !json.Valid(data) {
		return nil, newErrorResponse(nil, codeParseError, "Parse error"), errors.Join(ErrMalformedMessage, err)
	}
	var v struct {
		ID json.RawMessage `json:"id"`
	}
	var id json.RawMessage
	if json.Unmarshal(data, &v) == nil && isWireID(v.ID) {
		id = v.ID
	}
	return nil, newErrorResponse(id, codeInvalidRequest, "Invalid Request"), errors.Join(ErrMalformedMessage, err)
}

// isWireID reports whether raw is a string or number id.
func isWireID(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	switch c := raw[0]; {
	case c == '"', c == '-':
		return true
	default:
		return c >= '0' && c <= '9'
	}
}

// SessionIDHolder holds the session ID of a connection.
type SessionIDHolder interface {
	// SessionID returns the session ID presented by the client, or "" if there is none.
	SessionID() string
	// SetSessionID hands a newly issued session ID to the client.
	SetSessionID(sessionID string)
}

// Acknowledger is implemented by connections that must be answered even when
// the request carried no response, i.e. a notification.
type Acknowledger interface {
	Acknowledge()
}

// Conn wraps every connection a listener hands to jsonrpc2, so that the server can recover the transport behind it.
type Conn struct {
	_     struct{}
	Inner io.ReadWriteCloser
}

func (c *Conn) Read(p []byte) (n int, err error) {
	return c.Inner.Read(p)
}

func (c *Conn) Write(p []byte) (n int, err error) {
	return c.Inner.Write(p)
}

func (c *Conn) Close() error {
	return c.Inner.Close()
}

func NewConn(inner io.ReadWriteCloser) *Conn {
	return &Conn{Inner: inner}
}

// DefaultStdioFramer returns the framer for newline delimited JSON-RPC messages.
func DefaultStdioFramer() jsonrpc2.Framer {
	return newStdioFramer()
}

// DefaultStreamableFramer returns the framer for JSON-RPC messages carried in HTTP bodies.
func DefaultStreamableFramer() jsonrpc2.Framer {
	return newStreamableFramer()
}
