package pykythe

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/saidctb/pykythe/internal/imports"
)

// ModuleResult is the finalized output for one module of a batch.
type ModuleResult struct {
	FQN     string
	Path    string
	Status  imports.Status
	Exports *SymbolTable
	Facts   []Fact
	Err     error
}

// ResolveFiles resolves the given files, independent modules in parallel.
// Each worker claims modules through the record arena; imports recurse
// within the claiming worker, so recursion depth is bounded by the
// distinct-module count. Results come back sorted by FQN: final facts are
// independent of submission order and worker count.
//
// Per-module failures are reported in the results, not as the returned
// error, which is reserved for process-fatal faults.
func (e *Engine) ResolveFiles(ctx context.Context, paths []string) ([]*ModuleResult, error) {
	type task struct {
		target imports.Target
	}

	// Deduplicate and map paths to FQNs up front; order stops mattering
	// past this point.
	var tasks []task
	seen := make(map[string]bool)
	for _, path := range paths {
		fqn, err := e.locator.FQNForPath(path)
		if err != nil {
			return nil, err
		}
		if seen[fqn] {
			continue
		}
		seen[fqn] = true
		tasks = append(tasks, task{target: imports.Target{Path: path, FQN: fqn}})
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	numWorkers := e.workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(tasks) {
		numWorkers = len(tasks)
	}

	workCh := make(chan task, len(tasks))
	for _, t := range tasks {
		workCh <- t
	}
	close(workCh)

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		fatal error
	)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range workCh {
				worker := e.nextWorker.Add(1)
				if err := e.resolveTarget(ctx, worker, t.target); err != nil {
					errMu.Lock()
					if fatal == nil {
						fatal = err
					}
					errMu.Unlock()
					return
				}
			}
		}()
	}
	wg.Wait()

	if fatal != nil {
		return nil, fmt.Errorf("pykythe: resolution aborted: %w", fatal)
	}

	results := make([]*ModuleResult, 0, len(tasks))
	e.mu.Lock()
	for _, t := range tasks {
		if r, ok := e.results[t.target.FQN]; ok {
			results = append(results, r)
		}
	}
	e.mu.Unlock()
	sort.Slice(results, func(i, j int) bool { return results[i].FQN < results[j].FQN })
	return results, nil
}

// ResolveDirectory walks root and resolves every Python file not matched by
// the configured exclude patterns. Hidden directories are skipped.
func (e *Engine) ResolveDirectory(ctx context.Context, root string) ([]*ModuleResult, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && d.Name() != "." {
				return filepath.SkipDir
			}
			if e.cfg.Excluded(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".py" && ext != ".pyi" {
			return nil
		}
		if e.cfg.Excluded(rel) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("pykythe: directory %s: %w", root, err)
		}
		return nil, fmt.Errorf("pykythe: walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return e.ResolveFiles(ctx, paths)
}
