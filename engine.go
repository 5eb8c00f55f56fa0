package pykythe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/saidctb/pykythe/internal/facts"
	"github.com/saidctb/pykythe/internal/imports"
	"github.com/saidctb/pykythe/internal/modcache"
	"github.com/saidctb/pykythe/internal/pycook"
	"github.com/saidctb/pykythe/internal/resolve"
	"github.com/saidctb/pykythe/internal/stub"
	"github.com/saidctb/pykythe/internal/symtab"
)

// Engine orchestrates resolution: file discovery, the bootstrap table, the
// import locator and record arena, the per-module FQN walk, and the
// version-keyed cache. Workers never communicate directly, only through the
// arena and the cache.
type Engine struct {
	cfg      *Config
	cache    *modcache.Cache
	ownCache bool
	locator  *imports.Locator
	registry *imports.Registry
	boot     *symtab.SymbolTable
	version  string
	log      hclog.Logger
	workers  int
	runID    string

	nextWorker atomic.Int64

	// results accumulates finalized per-module output across one engine's
	// lifetime, keyed by FQN.
	mu      sync.Mutex
	results map[string]*ModuleResult
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. The default discards output.
func WithLogger(log hclog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithWorkers bounds the resolution worker pool. Zero means one worker per
// CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithCache supplies a shared cache instead of the one the configuration
// describes. The caller keeps ownership and must close it.
func WithCache(c *modcache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// New creates an Engine. The bootstrap declaration table is built here;
// a malformed or missing declaration set fails construction, since every
// later resolution depends on that table existing.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	boot, stubHash, err := stub.Bootstrap(context.Background())
	if err != nil {
		return nil, fmt.Errorf("pykythe: bootstrap: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		locator:  imports.NewLocator(cfg.ProjectRoot, cfg.SearchRoots...),
		registry: imports.NewRegistry(),
		boot:     boot,
		version:  computeVersion(stubHash, cfg.VersionSuffix),
		log:      hclog.NewNullLogger(),
		runID:    uuid.NewString(),
		results:  make(map[string]*ModuleResult),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers == 0 {
		e.workers = cfg.Workers
	}
	e.log = e.log.With("run_id", e.runID)

	if e.cache == nil {
		if cfg.CachePath != "" {
			store, err := modcache.NewStore(cfg.CachePath)
			if err != nil {
				return nil, err
			}
			if err := store.Migrate(); err != nil {
				store.Close()
				return nil, err
			}
			e.cache = modcache.NewCache(store)
		} else {
			e.cache = modcache.NewCache(nil)
		}
		e.ownCache = true
	}
	return e, nil
}

// Close releases the engine's cache resources when it owns them.
func (e *Engine) Close() error {
	if !e.ownCache {
		return nil
	}
	return e.cache.Close()
}

// Version returns the engine's cache-key version fingerprint.
func (e *Engine) Version() string {
	return e.version
}

// Cache returns the underlying cache for direct access.
func (e *Engine) Cache() *modcache.Cache {
	return e.cache
}

// ResolveModule resolves a single module by its dotted specification,
// probing the configured search roots.
func (e *Engine) ResolveModule(ctx context.Context, spec string) (*ModuleResult, error) {
	target, ok := e.locator.Locate(spec)
	if !ok {
		return nil, fmt.Errorf("pykythe: module %s not found on any search root", spec)
	}
	worker := e.nextWorker.Add(1)
	if err := e.resolveTarget(ctx, worker, target); err != nil {
		return nil, err
	}
	return e.resultFor(target.FQN), nil
}

// resolveTarget claims the target's record and resolves it, or waits for
// the claimant when another worker got there first.
func (e *Engine) resolveTarget(ctx context.Context, worker int64, target imports.Target) error {
	rec, claimed := e.registry.Claim(target.FQN, target.Path, worker)
	if claimed {
		return e.resolveRecord(ctx, worker, rec)
	}
	if rec.Status() == imports.StatusInProgress {
		if _, err := e.registry.Await(ctx, rec, worker); err != nil {
			return err
		}
	}
	return nil
}

// resolveRecord runs the full resolution of one claimed record: cache
// lookup, cook, walk, fact emission, cache insert, finalize. The returned
// error is reserved for process-fatal faults (cache consistency,
// cancellation); per-module failures land on the record and its result.
func (e *Engine) resolveRecord(ctx context.Context, worker int64, rec *imports.Record) error {
	if entry, hit, err := e.cache.Lookup(rec.FQN, e.version); err != nil {
		rec.Fail(err)
		return err
	} else if hit {
		e.log.Debug("cache hit", "module", rec.FQN)
		rec.Finalize(entry.Exports, entry.Members)
		e.recordResult(&ModuleResult{
			FQN:     rec.FQN,
			Path:    rec.Path,
			Status:  imports.StatusResolved,
			Exports: entry.Exports,
			Facts:   entry.Facts,
		})
		return nil
	}

	mod, err := pycook.CookFile(ctx, rec.Path)
	if err != nil {
		e.failModule(rec, err)
		return nil
	}

	resolver := resolve.New(e.boot, &engineImporter{engine: e, worker: worker}, e.log)
	res, err := resolver.ResolveModule(ctx, rec.FQN, mod, rec)
	if err != nil {
		if isFatal(err) {
			rec.Fail(err)
			return err
		}
		e.failModule(rec, err)
		return nil
	}

	factList := facts.Emit(res)
	entry := &modcache.Entry{
		ModuleFQN: rec.FQN,
		Version:   e.version,
		Exports:   res.Exports,
		Members:   res.Members,
		Facts:     factList,
	}
	if err := e.cache.Insert(entry); err != nil {
		rec.Fail(err)
		return err
	}

	rec.Finalize(res.Exports, res.Members)
	e.recordResult(&ModuleResult{
		FQN:     rec.FQN,
		Path:    rec.Path,
		Status:  imports.StatusResolved,
		Exports: res.Exports,
		Facts:   factList,
	})
	return nil
}

// isFatal separates process-fatal faults from per-module ones. Cache
// divergence and context cancellation abort the run; everything else is
// isolated to the failing module.
func isFatal(err error) bool {
	return errors.Is(err, modcache.ErrDivergent) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// failModule marks a per-module failure: the record transitions to Failed,
// is excluded from the cache, and processing continues for other modules.
func (e *Engine) failModule(rec *imports.Record, err error) {
	e.log.Warn("module failed", "module", rec.FQN, "error", err)
	rec.Fail(err)
	e.recordResult(&ModuleResult{
		FQN:    rec.FQN,
		Path:   rec.Path,
		Status: imports.StatusFailed,
		Err:    err,
	})
}

func (e *Engine) recordResult(r *ModuleResult) {
	e.mu.Lock()
	e.results[r.FQN] = r
	e.mu.Unlock()
}

func (e *Engine) resultFor(fqn string) *ModuleResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.results[fqn]
}

// engineImporter adapts the engine to the resolver's Importer contract for
// one worker: it locates the spec, claims or awaits the target record, and
// hands back a full or partial view.
type engineImporter struct {
	engine *Engine
	worker int64
}

func (im *engineImporter) Resolve(ctx context.Context, spec string) (resolve.ImportView, bool, error) {
	e := im.engine
	target, located := e.locator.Locate(spec)
	if !located {
		return resolve.ImportView{}, false, nil
	}

	rec, claimed := e.registry.Claim(target.FQN, target.Path, im.worker)
	if claimed {
		if err := e.resolveRecord(ctx, im.worker, rec); err != nil {
			return resolve.ImportView{}, false, err
		}
		return viewOf(rec), true, nil
	}

	switch rec.Status() {
	case imports.StatusResolved, imports.StatusFailed:
		return viewOf(rec), true, nil
	default:
		cycle, err := e.registry.Await(ctx, rec, im.worker)
		if err != nil {
			return resolve.ImportView{}, false, err
		}
		if cycle {
			// Partial view: whatever bindings the cycle partner has
			// recorded so far. Missing names degrade to unknown.
			e.log.Debug("import cycle", "module", rec.FQN)
			return resolve.ImportView{
				FQN:     rec.FQN,
				Exports: rec.Exports(),
				Partial: true,
			}, true, nil
		}
		return viewOf(rec), true, nil
	}
}

// viewOf builds the import view for a settled record. Failed records keep
// their FQN but expose no bindings, so names sourced from them degrade to
// unknown without poisoning the importer.
func viewOf(rec *imports.Record) resolve.ImportView {
	if rec.Status() != imports.StatusResolved {
		return resolve.ImportView{FQN: rec.FQN}
	}
	return resolve.ImportView{
		FQN:     rec.FQN,
		Exports: rec.Exports(),
		Members: rec.Members(),
	}
}
