// Package cli implements the nodevfs command-line interface.
//
// This package provides commands for installing npm dependency sets into a
// flattened virtual file tree, resolving version specifiers, rendering the
// resolved graph, serving the engine over HTTP, and managing the package
// cache. The CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - install: Resolve, download, and hoist dependencies
//   - resolve: Print the version a specifier selects
//   - graph: Render the resolved dependency forest as DOT or SVG
//   - serve: Run the HTTP API
//   - cache: Manage the durable package cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Installed 42 packages (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// logHooks reports registry and cache events at debug level and tallies
// cache effectiveness for the install summary.
type logHooks struct {
	logger *log.Logger

	hits   atomic.Int64 // served from either tier
	misses atomic.Int64 // missed both tiers
}

func (h *logHooks) OnRequest(ctx context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h *logHooks) OnResponse(ctx context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "path", path, "status", status, "took", d.Round(time.Millisecond))
}

func (h *logHooks) OnError(ctx context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "path", path, "err", err)
}

func (h *logHooks) OnCacheHit(ctx context.Context, tier string) { h.hits.Add(1) }

func (h *logHooks) OnCacheMiss(ctx context.Context, tier string) {
	if tier == "durable" {
		h.misses.Add(1)
	}
}

func (h *logHooks) OnCacheSet(ctx context.Context, tier string, size int) {}

func (h *logHooks) OnCacheError(ctx context.Context, tier string, err error) {
	h.logger.Debug("cache error", "tier", tier, "err", err)
}

func (h *logHooks) OnSessionStart(ctx context.Context, id string, roots int) {
	h.logger.Debug("session started", "id", id, "roots", roots)
}

func (h *logHooks) OnSessionComplete(ctx context.Context, id string, packages int, d time.Duration, err error) {
	h.logger.Debug("session finished", "id", id, "packages", packages, "took", d.Round(time.Millisecond), "err", err)
}

func (h *logHooks) OnPackageFetched(ctx context.Context, name, version string, files int, d time.Duration) {
	h.logger.Debug("fetched", "pkg", name+"@"+version, "files", files, "took", d.Round(time.Millisecond))
}

func (h *logHooks) OnPackageFailed(ctx context.Context, name, specifier string, err error) {}
