package transport

import "errors"

var (
	// ErrMissingBearerToken occurs when the authorization header carries no bearer token.
	ErrMissingBearerToken = errors.New("missing bearer token")

	// ErrInvalidToken occurs when a bearer token fails verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMalformedMessage occurs when a transport receives data that is not a JSON-RPC message.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrDialNotSupported occurs when a server side transport is asked to dial.
	ErrDialNotSupported = errors.New("dial is not supported")
)
