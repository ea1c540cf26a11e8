package handler

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/miyamo2/weather-mcp/internal/mcp"
)

// Logging logs every tool call at debug level and failed calls at error level.
func Logging(logger *slog.Logger) mcp.ToolMiddlewareFunc {
	return func(next mcp.ToolHandlerFunc) mcp.ToolHandlerFunc {
		return func(c mcp.ToolContext) error {
			start := time.Now()
			err := next(c)
			attrs := []any{
				slog.String("tool", c.ToolName()),
				slog.Any("request_id", c.JSONRPCRequest().ID.Raw()),
				slog.Int("args_bytes", len(c.Arguments())),
				slog.Duration("elapsed", time.Since(start)),
				slog.Bool("is_error", c.Result().IsError),
			}
			if err != nil {
				logger.ErrorContext(c.Context(), "[weather] tool call failed", append(attrs, slog.Any("error", err))...)
				return err
			}
			logger.DebugContext(c.Context(), "[weather] tool called", attrs...)
			return nil
		}
	}
}

// ResourceLogging logs every resource read at debug level and failed reads at error level.
func ResourceLogging(logger *slog.Logger) mcp.ResourceMiddlewareFunc {
	return func(next mcp.ResourceHandlerFunc) mcp.ResourceHandlerFunc {
		return func(c mcp.ResourceContext) error {
			start := time.Now()
			err := next(c)
			attrs := []any{
				slog.String("uri", c.ResourceURI()),
				slog.String("mime_type", c.MimeType()),
				slog.Any("request_id", c.JSONRPCRequest().ID.Raw()),
				slog.Duration("elapsed", time.Since(start)),
			}
			if err != nil {
				logger.ErrorContext(c.Context(), "[weather] resource read failed", append(attrs, slog.Any("error", err))...)
				return err
			}
			logger.DebugContext(c.Context(), "[weather] resource read", attrs...)
			return nil
		}
	}
}

// RateLimit makes tool calls wait for limiter. A call whose wait cannot be satisfied
// before its context ends gets an error result instead of running.
func RateLimit(limiter *rate.Limiter) mcp.ToolMiddlewareFunc {
	return func(next mcp.ToolHandlerFunc) mcp.ToolHandlerFunc {
		return func(c mcp.ToolContext) error {
			if err := limiter.Wait(c.Context()); err != nil {
				return c.Error("Rate limit exceeded, try again later.")
			}
			return next(c)
		}
	}
}
