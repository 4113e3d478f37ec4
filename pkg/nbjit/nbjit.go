// Package nbjit is the host-facing surface over internal/session, following
// pkg/cache.go's pattern of a thin public type that forwards to an internal
// implementation rather than exposing session's classification bookkeeping
// directly. A notebook host embeds an *Engine the same way examples/basic
// embeds a *cache.Cache: one long-lived value per process, one call per cell
// execution.
package nbjit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nbjit/engine/internal/astmodel"
	"github.com/nbjit/engine/internal/session"
)

// Classification re-exports internal/session's classification enum so
// callers can branch on it (for logging/metrics) without importing an
// internal package.
type Classification = session.Classification

const (
	AliasHit           = session.ClassificationAliasHit
	ContentHit         = session.ClassificationContentHit
	CloneAndPatch      = session.ClassificationCloneAndPatch
	HoleOnlyUpdate     = session.ClassificationHoleOnlyUpdate
	FullRebuild        = session.ClassificationFullRebuild
	PureCellCached     = session.ClassificationPureCellCached
	PureCellRecompiled = session.ClassificationPureCellRecompiled
)

// CellResult reports what RunCell did and its outcome, mirroring
// session.CellResult's field shape.
type CellResult = session.CellResult

// Option configures an Engine at construction time.
type Option func(*session.Config)

// WithLogger plugs an external zap.Logger, forwarded to internal/session.
func WithLogger(l *zap.Logger) Option { return func(c *session.Config) { session.WithLogger(l)(c) } }

// WithMetrics enables Prometheus metrics collection, forwarded to
// internal/session.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *session.Config) { session.WithMetrics(reg)(c) }
}

// WithTempDir sets the directory the engine's temp-directory tree (content
// index and cloned main objects) is created under. Backend compile
// workspaces are always created under the OS temp directory.
func WithTempDir(dir string) Option { return func(c *session.Config) { session.WithTempDir(dir)(c) } }

// WithCC overrides the external compiler backend invokes.
func WithCC(cc string) Option { return func(c *session.Config) { session.WithCC(cc)(c) } }

// WithUnrollLimit overrides the partial evaluator's maximum unrolled range
// length, default 10.
func WithUnrollLimit(n int) Option { return func(c *session.Config) { session.WithUnrollLimit(n)(c) } }

// WithRuntimeLibrary points the engine at libnbjitrt.so (built by
// cmd/nbjit-runtime) so a cell whose IR calls a dict/box runtime function
// links successfully. Without it, such a cell fails at compile time with an
// undefined-symbol link error.
func WithRuntimeLibrary(path string) Option {
	return func(c *session.Config) { session.WithRuntimeLibrary(path)(c) }
}

// Engine is one notebook's compilation session: every cell submitted to it
// shares the same cache, content index, and compiled-artifact generations.
type Engine struct {
	s *session.Session
}

// New constructs an Engine. Each call creates its own temp-directory tree and
// Badger content index; a process embedding multiple independent notebooks
// should construct one Engine per notebook rather than sharing one.
func New(opts ...Option) (*Engine, error) {
	sessOpts := make([]session.Option, 0, len(opts))
	for _, o := range opts {
		o := o
		sessOpts = append(sessOpts, func(c *session.Config) { o(c) })
	}
	s, err := session.New(sessOpts...)
	if err != nil {
		return nil, err
	}
	return &Engine{s: s}, nil
}

// RunCell submits a cell with side-effecting holes for compilation and
// execution, returning the classification the cache assigned it and the
// compiled main's return value.
func (e *Engine) RunCell(ctx context.Context, root *astmodel.Expr, cellID string) (*CellResult, error) {
	return e.s.RunCell(ctx, root, cellID)
}

// RunPureCell submits a cell with no holes: it is partially evaluated to a
// final value without leaving a persistent compiled artifact behind, and
// reuses a prior identical submission's value without recompiling.
func (e *Engine) RunPureCell(ctx context.Context, root *astmodel.Expr, cellID string) (value int64, cached bool, err error) {
	return e.s.RunPureCell(ctx, root, cellID)
}

// CleanupCell forgets one cell id. For an alias only the alias is dropped;
// for a cell with its own record, the record, every alias pointing at it,
// its content-index entry and its loader handles are released. Compiled
// shared objects stay on disk until their generation is reclaimed or the
// Engine is closed.
func (e *Engine) CleanupCell(cellID string) error { return e.s.CleanupCell(cellID) }

// RotateIfDue rotates the active artifact generation and reclaims the
// previous one's on-disk workspaces if the configured rotation interval has
// elapsed since the last rotation. The host is expected to call this
// periodically (e.g. from a ticker); the engine starts no goroutine of its
// own.
func (e *Engine) RotateIfDue() error { return e.s.RotateIfDue() }

// Close releases every resource the Engine holds: compiled artifacts, loader
// handles, the content index, and the engine's temp-directory tree.
func (e *Engine) Close() error { return e.s.CleanupSession() }

// Stats is a point-in-time snapshot of the engine's cache bookkeeping,
// re-exported from internal/session for diagnostics endpoints.
type Stats = session.Stats

// Stats returns a snapshot of the engine's current bookkeeping sizes.
func (e *Engine) Stats() Stats { return e.s.Stats() }
