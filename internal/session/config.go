// Package session implements spec §4.8's cell cache: it classifies each
// incoming cell submission against what is already cached, runs only the
// orchestrator stages the classification requires, and tracks the compiled
// artifacts' lifecycle. It generalizes the teacher's pkg/cache.go shard
// design from a value cache to a compiled-artifact cache.
package session

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// defaultUnrollLimit exposes spec §4.2's "range length <= 10" constant as a
// tunable, per SPEC_FULL.md.
const defaultUnrollLimit = 10

// Config bundles every knob influencing session behavior, following
// pkg/config.go's functional-options config[K,V] shape (this cache has no
// type parameters, so Config is a plain struct rather than generic).
type Config struct {
	logger      *zap.Logger
	registry    *prometheus.Registry
	tempDir     string
	cc          string
	unrollLimit int

	rotationInterval time.Duration
	runtimeLibPath   string
}

// Option configures a Session at construction time.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		logger:           zap.NewNop(),
		unrollLimit:      defaultUnrollLimit,
		rotationInterval: 10 * time.Minute,
	}
}

// WithLogger plugs an external zap.Logger. The session never logs on the
// alias-hit hot path; only slow events (full rebuild, backend failure,
// loader refresh) emit structured fields, following pkg/config.go's
// WithLogger doc comment verbatim.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection for the session.
// Passing nil disables metrics (default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *Config) { c.registry = reg }
}

// WithTempDir sets the directory the session's temp root (content index and
// cloned main objects) is created under; defaults to the OS temp directory
// when unset. Workspaces created by backend.Compile always go under the OS
// temp directory, whatever this is set to.
func WithTempDir(dir string) Option {
	return func(c *Config) { c.tempDir = dir }
}

// WithCC overrides the external compiler binary internal/backend invokes.
func WithCC(cc string) Option {
	return func(c *Config) { c.cc = cc }
}

// WithUnrollLimit overrides the partial evaluator's maximum unrolled range
// length (spec §4.2), default 10.
func WithUnrollLimit(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.unrollLimit = n
		}
	}
}

// WithRuntimeLibrary points the session at libnbjitrt.so, the shared object
// cmd/nbjit-runtime builds around internal/runtimeabi's dict/box exports.
// When set, every backend.Compile call links against it (spec §4.4), so a
// cell's IR can call dict_get/box_int/symbol_from_cstr and resolve; when
// unset, backend.Options.ExtraLinkArgs stays empty and such a cell fails to
// link, the same as before this option existed.
func WithRuntimeLibrary(path string) Option {
	return func(c *Config) { c.runtimeLibPath = path }
}

// runtimeLinkArgs renders the configured runtime library path as the -L/-l
// pair internal/backend.Options.ExtraLinkArgs documents, or nil if none was
// configured.
func (c *Config) runtimeLinkArgs() []string {
	if c.runtimeLibPath == "" {
		return nil
	}
	dir := filepath.Dir(c.runtimeLibPath)
	base := filepath.Base(c.runtimeLibPath)
	name := strings.TrimSuffix(strings.TrimPrefix(base, "lib"), filepath.Ext(base))
	return []string{"-L" + dir, "-l" + name}
}
