package session

// generations.go generalizes internal/genring: instead of byte-capacity
// triggered rotation of value arenas, it rotates the set of on-disk backend
// workspaces (one per compiled unit) holding shared objects, bulk-removing
// an old generation's directories in one Reclaim call once every cell that referenced
// them has been rebuilt or cleaned up. This directly implements spec §5's
// "on-disk temporary paths ... with unique random suffixes". Mid-build
// rollback on a failed compile (spec §7) is a separate concern handled by
// internal/orchestrator's rollbackHoles: Track is only ever called after a
// compile succeeds, so a hole that fails partway through a Build call never
// reaches this bookkeeping in the first place.

import (
	"os"
	"sync/atomic"
)

// generationDir tracks every backend workspace directory produced while it
// was the active generation. internal/backend names each compile's shared
// object directly inside its own workspace, so the workspace is always
// filepath.Dir(sharedObjectPath); Track records that directory without this
// package needing to know anything about how backend lays it out.
type generationDir struct {
	id    uint32
	paths []string
}

func (g *generationDir) Track(workDir string) {
	g.paths = append(g.paths, workDir)
}

// generationRing holds the active generation plus any retired generations
// still awaiting a safe removal (a retired generation is kept around until
// Reclaim's caller confirms nothing references its artifacts anymore,
// mirroring genring.Ring.Rotate returning the freed generation for the
// caller to finish tearing down).
type generationRing struct {
	idCtr   atomic.Uint32
	current *generationDir
	retired []*generationDir
}

func newGenerationRing() *generationRing {
	r := &generationRing{}
	r.current = r.newGeneration()
	return r
}

func (r *generationRing) newGeneration() *generationDir {
	return &generationDir{id: r.idCtr.Add(1)}
}

// Active returns the generation new compilation output should be tracked
// under.
func (r *generationRing) Active() *generationDir { return r.current }

// Rotate retires the current generation and starts a fresh one. The retired
// generation is returned so the caller can reclaim it once every cell
// referencing artifacts inside it has moved on.
func (r *generationRing) Rotate() *generationDir {
	fresh := r.newGeneration()
	dead := r.current
	r.current = fresh
	r.retired = append(r.retired, dead)
	return dead
}

// Reclaim removes every workspace directory tracked by dead and drops it
// from the retired list.
func (r *generationRing) Reclaim(dead *generationDir) error {
	for i, d := range r.retired {
		if d == dead {
			r.retired = append(r.retired[:i], r.retired[i+1:]...)
			break
		}
	}
	var firstErr error
	for _, p := range dead.paths {
		if err := os.RemoveAll(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close removes every tracked workspace directory, current and retired
// alike — used by cleanup_session (spec §6) to guarantee no backend
// workspace survives.
func (r *generationRing) Close() error {
	var firstErr error
	for _, d := range r.retired {
		for _, p := range d.paths {
			if err := os.RemoveAll(p); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	r.retired = nil
	if r.current != nil {
		for _, p := range r.current.paths {
			if err := os.RemoveAll(p); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		r.current.paths = nil
	}
	return firstErr
}
