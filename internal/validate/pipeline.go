// Package validate implements the parallel validation pipeline: a
// fixed-size worker pool draws files off a shared job queue, each
// worker loads its file into a brand-new private kernel built from the
// same config (nothing loaded in the caller's kernel is copied into it, and
// it shares no mutable state with the caller or with other workers) and
// collects a per-file diagnostic string, and the pool signals completion
// through a barrier. This is the library surface the out-of-scope
// `validate-repository` tool would drive; building that CLI itself is a
// Non-goal, but the pipeline primitives are not.
package validate

import (
	"fmt"
	"strings"
	"sync"

	"oks/config"
	"oks/internal/kernel"
)

// Job is one unit of work: a single repository file (schema or data) to
// load into a fresh kernel and validate in isolation.
type Job struct {
	Path string
}

// Result is one worker's report for a single Job. Diagnostics holds
// everything the private kernel's Logger wrote while loading Path,
// formatted exactly as it would appear on the kernel's own log sink.
type Result struct {
	Path        string
	Diagnostics string
	Bind        kernel.BindStatus
	Err         error
}

// OK reports whether Path loaded and bound without error. A non-empty
// Diagnostics (warnings) does not make a Result failed; only Err does.
func (r Result) OK() bool {
	return r.Err == nil
}

// Run validates every path in paths using a fixed-size pool of concurrency
// workers (at least 1), returning one Result per path in the same order
// paths was given. Each worker builds its own kernel.New from cfg — no
// state is shared between workers or with the caller's own kernel.
func Run(cfg config.Config, paths []string, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 1
	}

	jobs := make(chan indexedJob)
	resultsCh := make(chan indexedResult, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go worker(cfg, jobs, resultsCh, &wg)
	}

	go func() {
		for i, p := range paths {
			jobs <- indexedJob{index: i, job: Job{Path: p}}
		}
		close(jobs)
	}()

	// Barrier: wait for every worker to drain the queue before closing the
	// results channel, so the range below terminates.
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	out := make([]Result, len(paths))
	for ir := range resultsCh {
		out[ir.index] = ir.result
	}
	return out
}

type indexedJob struct {
	index int
	job   Job
}

type indexedResult struct {
	index  int
	result Result
}

func worker(cfg config.Config, jobs <-chan indexedJob, results chan<- indexedResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for ij := range jobs {
		results <- indexedResult{index: ij.index, result: validateOne(cfg, ij.job)}
	}
}

// validateOne loads j.Path into a brand-new, private kernel — no two
// workers or callers ever touch the same kernel instance — and reports what
// happened.
func validateOne(cfg config.Config, j Job) Result {
	var diag strings.Builder
	k := kernel.New(cfg, &diag)

	if _, err := k.Load(j.Path, true); err != nil {
		return Result{Path: j.Path, Diagnostics: diag.String(), Err: fmt.Errorf("validate: %s: %w", j.Path, err)}
	}

	k.Lock()
	status := k.BindObjects()
	k.Unlock()

	return Result{Path: j.Path, Diagnostics: diag.String(), Bind: status}
}

// Summary aggregates a Run over every Result: how many files were
// validated, how many failed, and how many references the bind passes of
// the successful files resolved in total.
type Summary struct {
	Total    int
	Failed   int
	Resolved int
}

// Summarize reduces results into a Summary, the shape a caller prints as
// the pipeline's final one-line report.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if !r.OK() {
			s.Failed++
			continue
		}
		s.Resolved += r.Bind.Resolved
	}
	return s
}

// String renders a one-line human summary.
func (s Summary) String() string {
	return fmt.Sprintf("validate: %d file(s), %d failed, %d reference(s) resolved", s.Total, s.Failed, s.Resolved)
}
