package mcp

import (
	"errors"

	"golang.org/x/exp/jsonrpc2"
)

const (
	ErrorMessageFailedToHandleTool     = "failed to handle Tool (name: %s): %w"
	ErrorMessageFailedToHandleResource = "failed to handle Resource (uri: %s): %w"
)

var (
	ErrServerLockingConflicts = errors.New(
		"server is already running or there is a configuration process conflict",
	)

	// ErrSessionNotFound occurs when a request carries no session or an unknown one.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions occurs when a session is requested while the store is full.
	ErrTooManySessions = errors.New("too many sessions")

	// ErrResourceNotFound occurs when no resource or resource template matches the requested URI.
	ErrResourceNotFound = errors.New("resource not found")
)

var (
	// errWireSessionNotFound is ErrSessionNotFound as sent to the client.
	errWireSessionNotFound = jsonrpc2.NewError(-32001, ErrSessionNotFound.Error())

	// errWireTooManySessions is ErrTooManySessions as sent to the client.
	errWireTooManySessions = jsonrpc2.NewError(-32000, ErrTooManySessions.Error())

	// errWireResourceNotFound is ErrResourceNotFound as sent to the client.
	// https://modelcontextprotocol.io/specification/2025-03-26/server/resources#error-handling
	errWireResourceNotFound = jsonrpc2.NewError(-32002, ErrResourceNotFound.Error())
)
