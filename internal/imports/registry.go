package imports

import (
	"context"
	"sync"

	"github.com/saidctb/pykythe/internal/symtab"
)

// Status is the resolution state of a module record. Each record moves
// through NotStarted → InProgress → {Resolved, Failed} exactly once per
// (path, version).
type Status uint8

const (
	StatusNotStarted Status = iota
	StatusInProgress
	StatusResolved
	StatusFailed
)

var statusNames = [...]string{
	StatusNotStarted: "not-started",
	StatusInProgress: "in-progress",
	StatusResolved:   "resolved",
	StatusFailed:     "failed",
}

func (s Status) String() string { return statusNames[s] }

// Record is one entry of the module arena: resolution state plus the
// module's exported top-level symbol table. Records are addressed by FQN,
// never by direct cyclic pointers. While a record is InProgress its owner
// appends exports as the walk encounters top-level bindings; other workers
// may snapshot whatever exists at that instant as a partial view.
type Record struct {
	FQN  string
	Path string

	mu      sync.Mutex
	status  Status
	exports *symtab.SymbolTable
	members map[string]*symtab.SymbolTable
	err     error
	owner   int64
	done    chan struct{}
}

func newRecord(fqn, path string) *Record {
	return &Record{
		FQN:     fqn,
		Path:    path,
		exports: symtab.NewSymbolTable(),
		done:    make(chan struct{}),
	}
}

// Status returns the record's current resolution state.
func (r *Record) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Err returns the failure cause for a Failed record.
func (r *Record) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// AddExport records a top-level binding. Only the owning worker calls this,
// but the lock makes concurrent partial-view snapshots safe.
func (r *Record) AddExport(b symtab.Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports.Insert(b)
}

// Exports snapshots the record's exported table. For a Resolved record this
// is the finalized table; for an InProgress record it is the partial view a
// cycle partner is entitled to — whatever bindings have been recorded so
// far, with missing names degrading to unknown at the importer.
func (r *Record) Exports() *symtab.SymbolTable {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exports.Clone()
}

// Members returns the retained scope tables of the module's definitions,
// keyed by definition FQN. Valid once the record is Resolved.
func (r *Record) Members() map[string]*symtab.SymbolTable {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members
}

// Finalize moves an InProgress record to Resolved with its finalized tables
// and wakes every waiter. The tables are shared read-only from here on.
func (r *Record) Finalize(exports *symtab.SymbolTable, members map[string]*symtab.SymbolTable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusInProgress {
		return
	}
	r.status = StatusResolved
	r.exports = exports
	r.members = members
	close(r.done)
}

// Fail moves an InProgress record to Failed. Failed records are excluded
// from the cache; resolution of unrelated modules continues.
func (r *Record) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusInProgress {
		return
	}
	r.status = StatusFailed
	r.err = err
	close(r.done)
}

// Registry is the module record arena. It is the only shared mutable
// resource besides the cache itself: workers never communicate directly,
// only through record claims and waits.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
	waiting map[int64]*Record // worker id → record it is blocked on
}

func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Record),
		waiting: make(map[int64]*Record),
	}
}

// Claim returns the record for fqn, creating it on first reference. When
// the record is NotStarted it transitions to InProgress owned by worker and
// claimed is true: the caller must resolve the module and Finalize or Fail
// the record. Otherwise claimed is false and the caller observes the record
// through Await or a partial view. Marking InProgress before any recursion
// bounds recursion depth by the distinct-module count.
func (g *Registry) Claim(fqn, path string, worker int64) (rec *Record, claimed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[fqn]
	if !ok {
		rec = newRecord(fqn, path)
		g.records[fqn] = rec
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.status == StatusNotStarted {
		rec.status = StatusInProgress
		rec.owner = worker
		if rec.Path == "" {
			rec.Path = path
		}
		return rec, true
	}
	return rec, false
}

// Lookup returns the record for fqn if one exists.
func (g *Registry) Lookup(fqn string) (*Record, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[fqn]
	return rec, ok
}

// Await blocks worker until rec leaves InProgress, unless doing so would
// close a wait cycle — the record is owned by this worker's own recursion,
// or the chain of owners and their registered waits leads back to this
// worker. In that case cycle is true and the caller must fall back to the
// partial view instead of blocking, which is what guarantees termination
// for cyclic imports that span workers.
func (g *Registry) Await(ctx context.Context, rec *Record, worker int64) (cycle bool, err error) {
	g.mu.Lock()
	if g.wouldDeadlock(rec, worker) {
		g.mu.Unlock()
		return true, nil
	}
	g.waiting[worker] = rec
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.waiting, worker)
		g.mu.Unlock()
	}()

	select {
	case <-rec.done:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// wouldDeadlock walks the owner/waiting chain starting at rec. The walk is
// bounded by the record count, so it terminates even on a malformed chain.
func (g *Registry) wouldDeadlock(rec *Record, worker int64) bool {
	cur := rec
	for i := 0; i < len(g.records)+1; i++ {
		cur.mu.Lock()
		owner := cur.owner
		inProgress := cur.status == StatusInProgress
		cur.mu.Unlock()
		if !inProgress {
			return false
		}
		if owner == worker {
			return true
		}
		next, ok := g.waiting[owner]
		if !ok {
			return false
		}
		cur = next
	}
	return false
}
