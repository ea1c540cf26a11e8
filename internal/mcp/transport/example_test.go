package transport_test

import (
	"context"
	"net"

	"github.com/miyamo2/weather-mcp/internal/mcp"
	"github.com/miyamo2/weather-mcp/internal/mcp/transport"
)

func ExampleNewStdio() {
	ctx := context.Background()
	s := mcp.New("example")
	s.Start(mcp.StartWithContext(ctx), mcp.StartWithListener(transport.NewStdio(ctx)))
}

func ExampleNewStreamable() {
	streamable, err := transport.NewStreamable()
	if err != nil {
		panic(err)
	}
	s := mcp.New("example")
	s.Start(mcp.StartWithListener(streamable))
}

func ExampleNewStreamable_withNetListener() {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	streamable, err := transport.NewStreamable(transport.StreamableWithNetListener(listener))
	if err != nil {
		panic(err)
	}
	s := mcp.New("example")
	s.Start(mcp.StartWithListener(streamable))
}

func ExampleNewStreamable_withAuthorizer() {
	streamable, err := transport.NewStreamable(
		transport.StreamableWithAuthorizer(transport.NewJWTAuthorizer([]byte("secret"),
			transport.JWTAuthorizerWithIssuer("https://auth.example.com"))))
	if err != nil {
		panic(err)
	}
	s := mcp.New("example")
	s.Start(mcp.StartWithListener(streamable))
}

func ExampleNewStreamable_withAccessControlAllowOrigin() {
	streamable, err := transport.NewStreamable(
		transport.StreamableWithAccessControlAllowOrigin(
			[]string{"https://example.com", "https://*.example.com"},
		),
	)
	if err != nil {
		panic(err)
	}
	s := mcp.New("example")
	s.Start(mcp.StartWithListener(streamable))
}
