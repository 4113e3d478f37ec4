// Package session implements spec §4.8's cell cache on top of
// internal/orchestrator: it classifies each incoming cell submission against
// what is already cached, runs only the compile stages that classification
// requires, and owns the lifecycle of every compiled artifact a submission
// produces. See config.go for construction options, contentindex.go for the
// durable (main, holes) -> canonical-id index, generations.go for on-disk
// workspace rotation, loadergroup.go for cross-id compile coalescing, and
// metrics.go for the Prometheus surface.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nbjit/engine/internal/astmodel"
	"github.com/nbjit/engine/internal/backend"
	"github.com/nbjit/engine/internal/irgen"
	"github.com/nbjit/engine/internal/loader"
	"github.com/nbjit/engine/internal/nbjiterr"
	"github.com/nbjit/engine/internal/orchestrator"
	"github.com/nbjit/engine/internal/partial"
	"github.com/nbjit/engine/internal/rewriter"
)

// Classification tags which row of spec §4.8's table a RunCell/RunPureCell
// call took.
type Classification int

const (
	ClassificationAliasHit Classification = iota
	ClassificationContentHit
	ClassificationCloneAndPatch
	ClassificationHoleOnlyUpdate
	ClassificationFullRebuild
	ClassificationPureCellCached
	ClassificationPureCellRecompiled
)

func (c Classification) String() string {
	switch c {
	case ClassificationAliasHit:
		return "alias_hit"
	case ClassificationContentHit:
		return "content_hit"
	case ClassificationCloneAndPatch:
		return "clone_and_patch"
	case ClassificationHoleOnlyUpdate:
		return "hole_only_update"
	case ClassificationFullRebuild:
		return "full_rebuild"
	case ClassificationPureCellCached:
		return "pure_cell_cached"
	case ClassificationPureCellRecompiled:
		return "pure_cell_recompiled"
	default:
		return "unknown"
	}
}

// CellResult is run_cell's/run_pure_cell's result per spec §6: the cell id,
// the classification that served it, which hole ordinals were recompiled
// (empty on a hit that recompiled nothing), whether main was rebuilt, the
// native invocation's result, and the main/hole shared-object paths that
// produced it (hole path is the last one recompiled, if any; both are
// diagnostic, not load-bearing for correctness).
type CellResult struct {
	CellID          string
	Classification  Classification
	RecompiledHoles []int
	MainRebuilt     bool
	Value           int64
	MainObjectPath  string
	HoleObjectPath  string
}

// cellRecord is the canonical bookkeeping entry for one cell id that has
// actually compiled its own artifacts (as opposed to an id that merely
// aliases another's).
type cellRecord struct {
	cellID       string
	sourceFP     uint64
	mainStructFP uint64
	holeBodyFPs  []uint64
	mainPath     string
	mainHandle   *loader.Handle
	holes        []orchestrator.HoleArtifact
	execCount    uint64
}

type pureRecord struct {
	sourceFP  uint64
	lastValue int64
}

// Session is one independent compilation cache: the unit of isolation spec
// §5 describes, safe for concurrent use by multiple goroutines (run_cell
// submissions for distinct or coincidentally identical content are
// serialized and coalesced respectively; see loadergroup.go).
type Session struct {
	cfg *Config

	mu          sync.Mutex
	records     map[string]*cellRecord
	aliases     map[string]string
	pureRecords map[string]*pureRecord

	contentIdx   *contentIndex
	gens         *generationRing
	loaderMgr    *loader.Manager
	metrics      metricsSink
	loaderGroup  *cellLoaderGroup
	artifactCtr  atomic.Uint32
	lastRotation time.Time

	tempRoot string
}

// New constructs a Session, opening its content index in a fresh temp
// directory (or cfg.tempDir, if set via WithTempDir) and wiring unrollLimit
// into the partial evaluator's package-wide unroll threshold.
func New(opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	partial.MaxUnrollLength = cfg.unrollLimit

	base := cfg.tempDir
	if base == "" {
		base = os.TempDir()
	}
	root, err := os.MkdirTemp(base, "nbjit-session-*")
	if err != nil {
		return nil, nbjiterr.Wrap(nbjiterr.BackendFailure, "creating session temp root", err)
	}

	idx, err := openContentIndex(filepath.Join(root, "contentindex"))
	if err != nil {
		os.RemoveAll(root)
		return nil, err
	}

	s := &Session{
		cfg:          cfg,
		records:      make(map[string]*cellRecord),
		aliases:      make(map[string]string),
		pureRecords:  make(map[string]*pureRecord),
		contentIdx:   idx,
		gens:         newGenerationRing(),
		loaderMgr:    loader.NewManager(),
		metrics:      newMetricsSink(cfg.registry),
		loaderGroup:  newCellLoaderGroup(),
		tempRoot:     root,
		lastRotation: timeNow(),
	}
	return s, nil
}

// timeNow exists so tests that need a deterministic lastRotation can't
// observe wall-clock flake; production always calls time.Now directly.
func timeNow() time.Time { return time.Now() }

func (s *Session) orchOptions() orchestrator.Options {
	return orchestrator.Options{
		Backend: backend.Options{CC: s.cfg.cc, ExtraLinkArgs: s.cfg.runtimeLinkArgs()},
		Loader:  s.loaderMgr,
	}
}

func (s *Session) logger() *zap.Logger { return s.cfg.logger }

// RotateIfDue rotates the compilation-workspace generation if
// cfg.rotationInterval has elapsed since the last rotation, reclaiming the
// retired generation's on-disk workspaces immediately since nothing but the
// loader's already-open handles reference artifacts inside them, and those
// stay valid after the backing file is removed on any POSIX filesystem.
// Hosts that want periodic cleanup call this from their own ticker; Session
// never starts a background goroutine of its own.
func (s *Session) RotateIfDue() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.lastRotation) < s.cfg.rotationInterval {
		return nil
	}
	dead := s.gens.Rotate()
	s.lastRotation = timeNow()
	return s.gens.Reclaim(dead)
}

// RunCell implements run_cell (spec §6) for a cell known to contain at least
// one hole annotation. Cells with no holes are still handled correctly (the
// classification collapses to the pure-cell path) but callers that know in
// advance should prefer RunPureCell, which never persists a shared object.
func (s *Session) RunCell(ctx context.Context, root *astmodel.Expr, cellID string) (*CellResult, error) {
	rootFP := astmodel.Fingerprint(root)
	key := strconv.FormatUint(rootFP, 16)

	res, err, _ := s.loaderGroup.run(ctx, key, func() (*CellResult, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.runCellLocked(ctx, root, cellID, rootFP)
	})
	if err != nil {
		return nil, err
	}
	if res.CellID == cellID {
		return res, nil
	}

	s.mu.Lock()
	adopted, err := s.adoptAlias(res, cellID)
	s.mu.Unlock()
	return adopted, err
}

// RunPureCell implements run_pure_cell (spec §6): compiles a zero-hole cell
// into a throwaway shared object, invokes it once, unloads and removes it,
// and remembers only the source fingerprint and the value it produced so an
// unchanged resubmission can report the cached marker without compiling or
// executing again.
func (s *Session) RunPureCell(ctx context.Context, root *astmodel.Expr, cellID string) (value int64, cached bool, err error) {
	rootFP := astmodel.Fingerprint(root)
	key := "pure:" + strconv.FormatUint(rootFP, 16)

	res, err, _ := s.loaderGroup.run(ctx, key, func() (*CellResult, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		v, c, e := s.runPureCellLocked(ctx, root, cellID, rootFP)
		if e != nil {
			return nil, e
		}
		cls := ClassificationPureCellRecompiled
		if c {
			cls = ClassificationPureCellCached
		}
		return &CellResult{CellID: cellID, Classification: cls, Value: v}, nil
	})
	if err != nil {
		return 0, false, err
	}
	return res.Value, res.Classification == ClassificationPureCellCached, nil
}

func (s *Session) runCellLocked(ctx context.Context, root *astmodel.Expr, cellID string, rootFP uint64) (*CellResult, error) {
	rw, boundBefore, err := orchestrator.Rewrite(root)
	if err != nil {
		return nil, err
	}
	if len(rw.Holes) == 0 {
		v, cached, err := s.runPureCellLocked(ctx, root, cellID, rootFP)
		if err != nil {
			return nil, err
		}
		cls := ClassificationPureCellRecompiled
		if cached {
			cls = ClassificationPureCellCached
		}
		return &CellResult{CellID: cellID, Classification: cls, Value: v}, nil
	}

	mainStructFP := astmodel.Fingerprint(rw.Main)
	holeBodyFPs := make([]uint64, len(rw.Holes))
	for i, hb := range rw.Holes {
		holeBodyFPs[i] = astmodel.Fingerprint(hb.Body)
	}

	canonical := cellID
	if target, ok := s.aliases[cellID]; ok {
		canonical = target
	}
	rec, hasRec := s.records[canonical]

	switch {
	case hasRec && rec.mainStructFP == mainStructFP && fpSliceEqual(rec.holeBodyFPs, holeBodyFPs):
		return s.invokeExisting(rec, cellID, ClassificationAliasHit, nil, false)

	case !hasRec:
		key := contentKey(mainStructFP, holeBodyFPs)
		if otherID, ok := s.contentIdx.lookup(key); ok {
			if other, ok := s.records[otherID]; ok && otherID != cellID {
				s.aliases[cellID] = otherID
				return s.invokeExisting(other, cellID, ClassificationContentHit, nil, false)
			}
		}
		if base := s.findByMainShape(mainStructFP); base != nil {
			return s.cloneAndPatch(ctx, cellID, rootFP, rw, boundBefore, mainStructFP, holeBodyFPs, base)
		}
		return s.fullRebuild(ctx, root, cellID, rootFP)

	case rec.mainStructFP == mainStructFP:
		return s.holeOnlyUpdate(ctx, root, cellID, rootFP, rec, rw, boundBefore, holeBodyFPs)

	default:
		return s.fullRebuild(ctx, root, cellID, rootFP)
	}
}

func fpSliceEqual(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *Session) findByMainShape(mainStructFP uint64) *cellRecord {
	for _, rec := range s.records {
		if rec.mainStructFP == mainStructFP {
			return rec
		}
	}
	return nil
}

func (s *Session) invokeExisting(rec *cellRecord, cellID string, cls Classification, recompiled []int, mainRebuilt bool) (*CellResult, error) {
	value, err := invokeEntry(rec.mainHandle)
	if err != nil {
		return nil, err
	}
	rec.execCount++
	s.metrics.incClassification(cls)
	var holePath string
	if len(recompiled) > 0 {
		holePath = rec.holes[recompiled[len(recompiled)-1]].SharedObject
	}
	return &CellResult{
		CellID:          cellID,
		Classification:  cls,
		RecompiledHoles: recompiled,
		MainRebuilt:     mainRebuilt,
		Value:           value,
		MainObjectPath:  rec.mainPath,
		HoleObjectPath:  holePath,
	}, nil
}

// adoptAlias runs after a singleflight-coalesced compile finished under a
// different cell id (res.CellID): this id shares the same content but was
// never itself submitted, so it becomes an alias of the canonical id and
// still gets its own invocation, matching run_cell's "every caller executes
// its own cell" contract even when compilation was shared.
func (s *Session) adoptAlias(res *CellResult, cellID string) (*CellResult, error) {
	canonical := res.CellID
	if target, ok := s.aliases[canonical]; ok {
		canonical = target
	}
	rec, ok := s.records[canonical]
	if !ok {
		return nil, nbjiterr.New(nbjiterr.CacheInvariantViolation, "coalesced compile left no canonical record for "+canonical)
	}
	s.aliases[cellID] = canonical
	return s.invokeExisting(rec, cellID, ClassificationContentHit, nil, false)
}

func (s *Session) replaceRecord(cellID string, rec *cellRecord) {
	if old, ok := s.records[cellID]; ok {
		s.contentIdx.delete(contentKey(old.mainStructFP, old.holeBodyFPs))
		for alias, target := range s.aliases {
			if target == cellID {
				delete(s.aliases, alias)
			}
		}
	}
	delete(s.aliases, cellID)
	s.records[cellID] = rec
}

func (s *Session) fullRebuild(ctx context.Context, root *astmodel.Expr, cellID string, rootFP uint64) (*CellResult, error) {
	started := time.Now()
	built, err := orchestrator.Build(ctx, root, s.orchOptions())
	if err != nil {
		s.logger().Warn("full rebuild failed", zap.String("cell_id", cellID), zap.Error(err))
		return nil, err
	}
	s.metrics.observeCompileSeconds("main", time.Since(started).Seconds())
	s.gens.Active().Track(filepath.Dir(built.MainSharedObj))
	for _, h := range built.Holes {
		s.gens.Active().Track(filepath.Dir(h.SharedObject))
	}

	rw, _, err := orchestrator.Rewrite(root)
	if err != nil {
		return nil, err
	}
	mainStructFP := astmodel.Fingerprint(rw.Main)
	holeBodyFPs := make([]uint64, len(rw.Holes))
	for i, hb := range rw.Holes {
		holeBodyFPs[i] = astmodel.Fingerprint(hb.Body)
	}

	rec := &cellRecord{
		cellID:       cellID,
		sourceFP:     rootFP,
		mainStructFP: mainStructFP,
		holeBodyFPs:  holeBodyFPs,
		mainPath:     built.MainSharedObj,
		mainHandle:   built.MainHandle,
		holes:        built.Holes,
	}
	s.replaceRecord(cellID, rec)
	if err := s.contentIdx.set(contentKey(mainStructFP, holeBodyFPs), cellID); err != nil {
		return nil, err
	}
	s.metrics.incArtifactsLoaded(1 + len(built.Holes))
	s.logger().Info("full rebuild",
		zap.String("cell_id", cellID),
		zap.Int("holes", len(built.Holes)),
		zap.Duration("compile_time", time.Since(started)),
	)

	ordinals := make([]int, len(built.Holes))
	for i := range built.Holes {
		ordinals[i] = i
	}
	return s.invokeExisting(rec, cellID, ClassificationFullRebuild, ordinals, true)
}

func (s *Session) holeOnlyUpdate(ctx context.Context, root *astmodel.Expr, cellID string, rootFP uint64, rec *cellRecord, rw *rewriter.Result, boundBefore [][]string, newHoleBodyFPs []uint64) (*CellResult, error) {
	newHoles := append([]orchestrator.HoleArtifact{}, rec.holes...)
	var recompiled []int

	for i, hb := range rw.Holes {
		if i < len(rec.holeBodyFPs) && newHoleBodyFPs[i] == rec.holeBodyFPs[i] {
			continue
		}
		args := orchestrator.CallArgsForHole(rw.GuardSyms[i], boundBefore[i])
		target := orchestrator.AssignmentTarget(hb.Body)
		if i < len(rec.holes) && target != rec.holes[i].Target {
			// The hole's shape changed (it now does or no longer does an
			// assignment), which changes main's call site too — this is no
			// longer a hole-only update.
			return s.fullRebuild(ctx, root, cellID, rootFP)
		}

		started := time.Now()
		artifact, err := orchestrator.CompileHole(ctx, i, hb.Body, args, target, s.orchOptions())
		if err != nil {
			return nil, err
		}
		s.metrics.observeCompileSeconds("hole", time.Since(started).Seconds())
		s.gens.Active().Track(filepath.Dir(artifact.SharedObject))
		newHoles[i] = *artifact
		recompiled = append(recompiled, i)
	}

	if len(recompiled) == 0 {
		return s.invokeExisting(rec, cellID, ClassificationAliasHit, nil, false)
	}

	s.loaderMgr.Close(rec.mainPath)
	handle, err := s.loaderMgr.Open(rec.mainPath)
	if err != nil {
		return nil, err
	}

	oldKey := contentKey(rec.mainStructFP, rec.holeBodyFPs)
	rec.holes = newHoles
	rec.holeBodyFPs = newHoleBodyFPs
	rec.mainHandle = handle
	rec.sourceFP = rootFP
	s.contentIdx.delete(oldKey)
	if err := s.contentIdx.set(contentKey(rec.mainStructFP, newHoleBodyFPs), cellID); err != nil {
		return nil, err
	}
	s.metrics.incArtifactsLoaded(len(recompiled))
	s.logger().Info("hole-only update",
		zap.String("cell_id", cellID),
		zap.Ints("recompiled_holes", recompiled),
	)

	return s.invokeExisting(rec, cellID, ClassificationHoleOnlyUpdate, recompiled, false)
}

func (s *Session) cloneAndPatch(ctx context.Context, cellID string, rootFP uint64, rw *rewriter.Result, boundBefore [][]string, mainStructFP uint64, holeBodyFPs []uint64, base *cellRecord) (*CellResult, error) {
	clonedMainPath, err := s.duplicateArtifact(base.mainPath)
	if err != nil {
		return nil, err
	}
	handle, err := s.loaderMgr.Open(clonedMainPath)
	if err != nil {
		return nil, err
	}
	s.gens.Active().Track(filepath.Dir(clonedMainPath))

	newHoles := append([]orchestrator.HoleArtifact{}, base.holes...)
	var recompiled []int
	for i, hb := range rw.Holes {
		if i < len(base.holeBodyFPs) && holeBodyFPs[i] == base.holeBodyFPs[i] {
			continue
		}
		args := orchestrator.CallArgsForHole(rw.GuardSyms[i], boundBefore[i])
		target := orchestrator.AssignmentTarget(hb.Body)

		started := time.Now()
		artifact, err := orchestrator.CompileHole(ctx, i, hb.Body, args, target, s.orchOptions())
		if err != nil {
			return nil, err
		}
		s.metrics.observeCompileSeconds("hole", time.Since(started).Seconds())
		s.gens.Active().Track(filepath.Dir(artifact.SharedObject))
		newHoles[i] = *artifact
		recompiled = append(recompiled, i)
	}

	rec := &cellRecord{
		cellID:       cellID,
		sourceFP:     rootFP,
		mainStructFP: mainStructFP,
		holeBodyFPs:  holeBodyFPs,
		mainPath:     clonedMainPath,
		mainHandle:   handle,
		holes:        newHoles,
	}
	s.replaceRecord(cellID, rec)
	if err := s.contentIdx.set(contentKey(mainStructFP, holeBodyFPs), cellID); err != nil {
		return nil, err
	}
	s.metrics.incArtifactsLoaded(1 + len(recompiled))
	s.logger().Info("clone-and-patch",
		zap.String("cell_id", cellID),
		zap.String("cloned_from", base.cellID),
		zap.Ints("recompiled_holes", recompiled),
	)

	return s.invokeExisting(rec, cellID, ClassificationCloneAndPatch, recompiled, true)
}

// duplicateArtifact copies an already-compiled shared object to a fresh path
// under the active generation so the clone can later be independently
// refreshed (via loaderMgr.Close/Open) without disturbing the record it was
// cloned from.
func (s *Session) duplicateArtifact(srcPath string) (string, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", nbjiterr.Wrap(nbjiterr.BackendFailure, "cloning shared object "+srcPath, err)
	}
	dir, err := os.MkdirTemp(s.tempRoot, "clone-*")
	if err != nil {
		return "", nbjiterr.Wrap(nbjiterr.BackendFailure, "creating clone workspace", err)
	}
	dst := filepath.Join(dir, fmt.Sprintf("main_clone_%d.so", s.artifactCtr.Add(1)))
	if err := os.WriteFile(dst, data, 0o755); err != nil {
		return "", nbjiterr.Wrap(nbjiterr.BackendFailure, "writing cloned shared object", err)
	}
	return dst, nil
}

func (s *Session) runPureCellLocked(ctx context.Context, root *astmodel.Expr, cellID string, rootFP uint64) (int64, bool, error) {
	if rec, ok := s.pureRecords[cellID]; ok && rec.sourceFP == rootFP {
		s.metrics.incClassification(ClassificationPureCellCached)
		return rec.lastValue, true, nil
	}

	env := partial.NewEnv(nil, nil)
	evaled, err := partial.Eval(root, env)
	if err != nil {
		if !nbjiterr.Is(err, nbjiterr.PartialEvalFailure) {
			return 0, false, nbjiterr.Wrap(nbjiterr.PartialEvalFailure, "evaluating pure cell", err)
		}
		// A fold failure must not reach run_pure_cell's caller (spec §7):
		// fall back to lowering the cell's original, unevaluated body.
		evaled = astmodel.DeepCopy(root)
	}
	if evaled == nil {
		evaled = astmodel.Block()
	}

	b := irgen.NewBuilder()
	if _, err := b.BuildFunction(astmodel.Function(orchestrator.EntryFunctionName, nil, evaled)); err != nil {
		return 0, false, err
	}

	soName := fmt.Sprintf("pure_%d.so", s.artifactCtr.Add(1))
	started := time.Now()
	res, err := backend.Compile(ctx, b.Module().String(), soName, backend.Options{CC: s.cfg.cc, ExtraLinkArgs: s.cfg.runtimeLinkArgs()})
	if err != nil {
		return 0, false, err
	}
	s.metrics.observeCompileSeconds("pure_cell", time.Since(started).Seconds())

	handle, err := s.loaderMgr.Open(res.SharedObjectPath)
	if err != nil {
		os.RemoveAll(filepath.Dir(res.SharedObjectPath))
		return 0, false, err
	}
	value, invokeErr := invokeEntry(handle)
	s.loaderMgr.Close(res.SharedObjectPath)
	os.RemoveAll(filepath.Dir(res.SharedObjectPath))
	if invokeErr != nil {
		return 0, false, invokeErr
	}

	s.pureRecords[cellID] = &pureRecord{sourceFP: rootFP, lastValue: value}
	s.metrics.incClassification(ClassificationPureCellRecompiled)
	return value, false, nil
}

func invokeEntry(h *loader.Handle) (int64, error) {
	sym, err := h.Entry()
	if err != nil {
		return 0, err
	}
	fn, ok := sym.(func() int64)
	if !ok {
		return 0, nbjiterr.New(nbjiterr.LoadFailure, "Entry symbol has an unexpected type").
			WithSuggestion("compiled units must export Entry as func() int64")
	}
	return fn(), nil
}

// CleanupCell implements cleanup_cell (spec §6): forgets cellID's record (or
// alias) so future submissions under that id start from a full rebuild, and
// closes its loader handles if it was the last id referencing them. Shared
// objects on disk are left for the active generation to reclaim — another
// alias or a clone may still reference the same bytes.
func (s *Session) CleanupCell(cellID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.aliases[cellID]; ok {
		delete(s.aliases, cellID)
		return nil
	}
	rec, ok := s.records[cellID]
	if !ok {
		delete(s.pureRecords, cellID)
		return nil
	}
	delete(s.records, cellID)
	for alias, target := range s.aliases {
		if target == cellID {
			delete(s.aliases, alias)
		}
	}
	s.contentIdx.delete(contentKey(rec.mainStructFP, rec.holeBodyFPs))
	s.loaderMgr.Close(rec.mainPath)
	for _, h := range rec.holes {
		s.loaderMgr.Close(h.SharedObject)
	}
	return nil
}

// Stats is a point-in-time snapshot of session bookkeeping sizes, for
// diagnostics endpoints such as the one cmd/nbjit-inspect reads. It
// generalizes the teacher's shard.statsSnapshot into cell-cache terms.
type Stats struct {
	Cells       int `json:"cells"`
	Aliases     int `json:"aliases"`
	PureCells   int `json:"pure_cells"`
	Generations int `json:"generations"`
}

// Stats returns a snapshot of the session's current bookkeeping sizes.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Cells:       len(s.records),
		Aliases:     len(s.aliases),
		PureCells:   len(s.pureRecords),
		Generations: 1 + len(s.gens.retired),
	}
}

// CleanupSession implements cleanup_session (spec §6): closes every loader
// handle, closes the content index, and removes every file under this
// session's temp root so nothing survives the process.
func (s *Session) CleanupSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.records {
		delete(s.records, id)
	}
	s.aliases = make(map[string]string)
	s.pureRecords = make(map[string]*pureRecord)
	s.loaderMgr.CloseAll()

	var firstErr error
	if err := s.gens.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.contentIdx.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := os.RemoveAll(s.tempRoot); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
