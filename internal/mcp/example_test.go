package mcp_test

import (
	"strings"

	"github.com/miyamo2/weather-mcp/internal/mcp"
	"github.com/miyamo2/weather-mcp/internal/mcp/transport"
)

type ShoutRequest struct {
	Text string `json:"text" jsonschema:"title=Text"`
}

func Example() {
	s := mcp.New("shout")
	s.Tool("shout", (*ShoutRequest)(nil), func(c mcp.ToolContext) error {
		var req ShoutRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		return c.String(strings.ToUpper(req.Text))
	})
	s.Start() // listen and serve on stdio
}

func Example_streamable() {
	s := mcp.New("shout")

	// add a tool or resource here

	streamable, err := transport.NewStreamable(
		transport.StreamableWithSessionTerminator(s.TerminateSession))
	if err != nil {
		panic(err)
	}
	s.Start(mcp.StartWithListener(streamable))
}

func ExampleServer_Tool() {
	s := mcp.New("shout")
	s.Tool("shout", (*ShoutRequest)(nil), func(c mcp.ToolContext) error {
		var req ShoutRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		if req.Text == "" {
			return c.Error("nothing to shout")
		}
		return c.String(strings.ToUpper(req.Text))
	},
		mcp.ToolWithDescription("upper-cases text"),
		mcp.ToolWithAnnotations(mcp.ToolAnnotations{
			Title:          "Shout",
			ReadOnlyHint:   true,
			IdempotentHint: true,
		}))
}

func ExampleServer_Resource() {
	s := mcp.New("notes")
	s.Resource("Readme", "notes://readme", func(c mcp.ResourceContext) error {
		return c.String("# notes")
	}, mcp.ResourceWithMimeType("text/markdown"))
}

func ExampleServer_Resource_template() {
	s := mcp.New("notes")
	s.Resource("Note", "notes://{name}", func(c mcp.ResourceContext) error {
		return c.String("note " + c.Param("name"))
	}, mcp.ResourceWithDescription("a single note"))
}

func ExampleServer_UseInTools() {
	s := mcp.New("shout")
	s.UseInTools(func(next mcp.ToolHandlerFunc) mcp.ToolHandlerFunc {
		return func(c mcp.ToolContext) error {
			if len(c.Arguments()) > 1<<10 {
				return c.Error("arguments too large")
			}
			return next(c)
		}
	})
}
