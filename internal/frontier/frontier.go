package frontier

import (
	"log/slog"
	"sync"

	"github.com/IliaW/defacement-crawler/internal/model"
)

// Frontier is the shared crawl work queue plus its completion accounting.
// Every Enqueue increments the pending counter; every successful Dequeue must
// be balanced by exactly one MarkVisited or WaitUntilDrained never unblocks.
//
// Dedup is checked against the set of completed URLs only: a URL discovered
// concurrently from two parents can be queued twice before the first copy is
// marked visited. This keeps the original at-least-once visitation semantics.
type Frontier struct {
	mu           sync.Mutex
	drained      *sync.Cond
	tasks        []*model.Task
	visited      map[string]struct{}
	pending      int
	visitedCount int
	depthLimit   int
	maxPages     int
}

func New(depthLimit, maxPages int) *Frontier {
	f := &Frontier{
		visited:    make(map[string]struct{}),
		depthLimit: depthLimit,
		maxPages:   maxPages,
	}
	f.drained = sync.NewCond(&f.mu)
	return f
}

// Enqueue adds a task unless the depth limit, the page cap, or the visited
// set rejects it. Drops are silent; the caller has already classified the URL.
func (f *Frontier) Enqueue(url, parentURL string, depth int) {
	if depth > f.depthLimit {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visitedCount >= f.maxPages {
		return
	}
	if _, seen := f.visited[url]; seen {
		return
	}
	f.tasks = append(f.tasks, &model.Task{URL: url, ParentURL: parentURL, Depth: depth})
	f.pending++
}

// Dequeue returns the next task, or ok=false when none is available right
// now. Workers poll with a short backoff instead of blocking so Stop stays
// cooperative.
func (f *Frontier) Dequeue() (*model.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tasks) == 0 {
		return nil, false
	}
	task := f.tasks[0]
	f.tasks = f.tasks[1:]
	return task, true
}

// MarkVisited completes one unit of work. Must be called exactly once per
// successful Dequeue, regardless of whether processing succeeded.
func (f *Frontier) MarkVisited(url string, gotTask bool) {
	if !gotTask {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited[url] = struct{}{}
	f.visitedCount++
	f.pending--
	if f.pending < 0 {
		slog.Error("frontier pending counter went negative; MarkVisited called twice?",
			slog.String("url", url))
		f.pending = 0
	}
	if f.pending == 0 {
		f.drained.Broadcast()
	}
}

// WaitUntilDrained blocks until the pending counter reaches zero. This is the
// sole termination signal for a crawl job.
func (f *Frontier) WaitUntilDrained() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.pending > 0 {
		f.drained.Wait()
	}
}

func (f *Frontier) GetStats() model.FrontierStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.FrontierStats{VisitedCount: f.visitedCount}
}
