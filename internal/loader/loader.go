// Package loader implements spec §4.7's dynamic loader: open, close, and
// refresh shared-object handles, resolve the main entry point, and rebind
// main after a hole's shared object is replaced. It is a thin wrapper over
// the standard library's plugin package — the literal dlopen-with-global-
// visibility mechanism the spec asks for (see DESIGN.md).
package loader

import (
	"plugin"
	"sync"

	"github.com/nbjit/engine/internal/nbjiterr"
)

// EntryPointSymbol is the exported identifier every compiled unit (main or
// hole) must carry for the loader to resolve its entry point.
const EntryPointSymbol = "Entry"

// pluginOpen is a seam for tests: production code always calls plugin.Open,
// but that requires a real Go-plugin-format binary on disk, which this
// package's tests cannot produce without invoking the toolchain.
var pluginOpen = plugin.Open

// Handle wraps one opened shared object. Path is the absolute path it was
// opened from; plugin.Open caches by path internally, so re-opening the
// same path is always a cache hit and never observes a file that changed
// on disk after the first open — this is why RefreshMain requires a fresh
// path rather than reopening an existing one.
type Handle struct {
	Path string
	plug *plugin.Plugin
}

// Lookup resolves a symbol exported by the shared object.
func (h *Handle) Lookup(symbol string) (plugin.Symbol, error) {
	sym, err := h.plug.Lookup(symbol)
	if err != nil {
		return nil, nbjiterr.Wrap(nbjiterr.LoadFailure, "looking up symbol "+symbol+" in "+h.Path, err)
	}
	return sym, nil
}

// Entry resolves this handle's EntryPointSymbol.
func (h *Handle) Entry() (plugin.Symbol, error) {
	return h.Lookup(EntryPointSymbol)
}

// Manager tracks every handle opened for one session, keyed by path, so a
// cell's main and hole handles can be closed together when its generation
// rotates out.
type Manager struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

func NewManager() *Manager {
	return &Manager{handles: make(map[string]*Handle)}
}

// Open loads the shared object at path, or returns the already-open handle
// if this Manager opened the path before and has not closed it since.
func (m *Manager) Open(path string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.handles[path]; ok {
		return h, nil
	}
	p, err := pluginOpen(path)
	if err != nil {
		return nil, nbjiterr.Wrap(nbjiterr.LoadFailure, "opening shared object "+path, err)
	}
	h := &Handle{Path: path, plug: p}
	m.handles[path] = h
	return h, nil
}

// RefreshMain implements the "rebind main after a hole shared object is
// replaced" operation: since plugin.Open never observes a changed file at
// an already-opened path, a caller writes the rebuilt main to a fresh
// unique path (internal/backend names objects under a fresh temp workspace)
// and calls RefreshMain with it — this both opens the new binary and
// forgets the path of the one it superseded so the handle table does not
// grow unbounded across a long-lived session. Nothing in this module calls
// it outside this package's tests.
func (m *Manager) RefreshMain(newPath, oldPath string) (*Handle, error) {
	h, err := m.Open(newPath)
	if err != nil {
		return nil, err
	}
	if oldPath != "" && oldPath != newPath {
		m.forget(oldPath)
	}
	return h, nil
}

// Close removes path from this manager's tracking table. The plugin package
// exposes no unload primitive — once mapped, a shared object's code stays
// resident for the life of the process — so Close only stops this package
// from handing out the stale Handle; actual unmapping is an OS-level
// limitation documented in DESIGN.md.
func (m *Manager) Close(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forget(path)
}

func (m *Manager) forget(path string) {
	delete(m.handles, path)
}

// CloseAll forgets every handle this manager tracks, for cleanup_session
// (spec §6): the plugin package still gives no way to unmap the underlying
// code, so this only drops the manager's own bookkeeping.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles = make(map[string]*Handle)
}

// IsOpen reports whether path has a tracked handle, for orchestrator tests
// and diagnostics.
func (m *Manager) IsOpen(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handles[path]
	return ok
}

// SetPluginOpenForTesting swaps the package-level plugin.Open seam so a
// caller outside this package (internal/orchestrator's tests, which cannot
// produce a real Go-plugin-format binary without invoking the toolchain) can
// exercise Manager against a fake. It returns a restore func the caller must
// defer.
func SetPluginOpenForTesting(fn func(path string) (*plugin.Plugin, error)) (restore func()) {
	orig := pluginOpen
	pluginOpen = fn
	return func() { pluginOpen = orig }
}
