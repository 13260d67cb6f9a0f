// Package expansion grows a tag tree by issuing one grouping query per node
// and recursing into the results.
//
// Each StartRun begins a new epoch. Work scheduled by an older run keeps
// running until its query returns, then notices the epoch changed and drops
// its result without touching the tree.
package expansion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	tverrors "tagvis/internal/errors"
	"tagvis/internal/slogutil"
	"tagvis/internal/tagquery"
	"tagvis/internal/tree"
)

// Engine owns one tag tree and keeps expanding it.
type Engine struct {
	provider  Provider
	renderers []Renderer
	logger    *slog.Logger
	metrics   Recorder

	mu    sync.Mutex
	opts  Options
	sem   *semaphore.Weighted
	root  *tree.Node
	epoch uint64
	run   *run

	// renders older than lastRendered are dropped
	renderMu     sync.Mutex
	renderSeq    uint64
	lastRendered uint64
}

// run is the state of one StartRun call.
type run struct {
	epoch  uint64
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	dedup  *tree.Deduplicator
	// opts and sem are fixed for the run; Configure affects the next one
	opts Options
	sem  *semaphore.Weighted
	// offset is 1 when the root is a real tag, 0 for the ungrouped root.
	offset int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRenderer adds a renderer. Renderers are called in the order added.
func WithRenderer(r Renderer) Option {
	return func(e *Engine) {
		e.renderers = append(e.renderers, r)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// New creates an engine. A nil provider is an error with code
// PROVIDER_UNAVAILABLE; nothing can be expanded without one.
func New(provider Provider, opts Options, options ...Option) (*Engine, error) {
	if provider == nil {
		return nil, tverrors.New(tverrors.ProviderUnavailable, "no query provider configured", nil)
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	root := tree.NewRoot(opts.InitialTag)
	root.ID = uuid.NewString()

	e := &Engine{
		provider: provider,
		logger:   slogutil.NewDiscardLogger(),
		metrics:  nopRecorder{},
		opts:     opts,
		sem:      semaphore.NewWeighted(int64(opts.MaxInFlight)),
		root:     root,
	}
	for _, o := range options {
		o(e)
	}
	return e, nil
}

// Configure replaces the options. The change applies to the next run.
func (e *Engine) Configure(opts Options) error {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if opts.MaxInFlight != e.opts.MaxInFlight {
		e.sem = semaphore.NewWeighted(int64(opts.MaxInFlight))
	}
	e.opts = opts
	return nil
}

// Options returns a copy of the current options.
func (e *Engine) Options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.withDefaults()
}

// StartRun re-roots the tree at rootTag, or at the configured initial tag
// when rootTag is empty, and starts expanding it in the background. The
// previous run is cancelled. The run lives until ctx is done or the next
// StartRun. It returns the new epoch.
func (e *Engine) StartRun(ctx context.Context, rootTag string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.run != nil {
		e.run.cancel()
	}
	e.epoch++

	if rootTag == "" {
		rootTag = e.opts.InitialTag
	}
	offset := 0
	if rootTag == "" || rootTag == tree.RootName {
		e.root.Name = tree.RootName
	} else {
		e.root.Name = rootTag
		offset = 1
	}
	e.root.TagHistory = []string{}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		epoch:  e.epoch,
		ctx:    runCtx,
		cancel: cancel,
		group:  &errgroup.Group{},
		dedup:  tree.NewDeduplicator(),
		opts:   e.opts.withDefaults(),
		sem:    e.sem,
		offset: offset,
	}
	e.run = r

	e.metrics.RunStarted()
	e.logger.Info("Starting expansion run",
		"epoch", r.epoch,
		"root", e.root.Name,
		"tree", e.root.ID,
		"maxDepth", e.opts.MaxDepth,
	)

	// Spawned before unlocking so Wait never sees an empty group.
	root := e.root
	r.group.Go(func() error {
		e.expand(r, root)
		return nil
	})
	return r.epoch
}

// Epoch returns the current run epoch, 0 before the first run.
func (e *Engine) Epoch() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch
}

// Wait blocks until every expansion of the current run has finished or ctx
// is done.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	r := e.run
	e.mu.Unlock()
	if r == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		_ = r.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels the current run.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != nil {
		e.run.cancel()
	}
}

// RootName returns the name of the current root without copying the tree.
func (e *Engine) RootName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.root.Name
}

// Snapshot returns a copy of the current tree.
func (e *Engine) Snapshot() *tree.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.root.Clone()
}

// Files lists the files carrying every tag of path, up to MaxFiles.
// Unlike expansion, failures are returned to the caller.
func (e *Engine) Files(ctx context.Context, path []string) ([]Row, error) {
	e.mu.Lock()
	opts := e.opts
	sem := e.sem
	e.mu.Unlock()

	q := tagquery.Query{
		RequiredTags:   path,
		IgnoreFileTags: opts.IgnoreFilesWithTags,
		Limit:          opts.MaxFiles,
		Flattened:      false,
	}
	return e.query(ctx, sem, opts.QueryTimeout, q.String())
}

// expand queries the groupings below node and reconciles them into its
// children, then schedules the children that are still within MaxDepth.
func (e *Engine) expand(r *run, node *tree.Node) {
	e.mu.Lock()
	if r.epoch != e.epoch {
		e.mu.Unlock()
		e.metrics.StaleResultDiscarded()
		return
	}
	path := node.Path()
	e.mu.Unlock()
	opts := r.opts

	depth := len(path) + 1 - r.offset
	if depth > opts.MaxDepth {
		e.logger.Debug("Depth limit reached", "path", path, "depth", depth)
		return
	}

	exclude := make([]string, 0, len(path)+len(opts.FilterTags))
	exclude = append(exclude, path...)
	exclude = append(exclude, opts.FilterTags...)
	q := tagquery.Query{
		RequiredTags:       path,
		IgnoreFileTags:     opts.IgnoreFilesWithTags,
		ExcludeGroupLabels: exclude,
		Limit:              opts.MaxChildren,
		Flattened:          true,
	}
	text := q.String()
	e.logger.Debug("Expanding node", "epoch", r.epoch, "path", path, "depth", depth, "query", text)

	rows, err := e.query(r.ctx, r.sem, opts.QueryTimeout, text)

	e.mu.Lock()
	if r.epoch != e.epoch {
		e.mu.Unlock()
		e.metrics.StaleResultDiscarded()
		e.logger.Debug("Discarding stale result", "epoch", r.epoch, "path", path)
		return
	}
	if err != nil && r.ctx.Err() != nil {
		e.mu.Unlock()
		e.logger.Debug("Expansion cancelled", "epoch", r.epoch, "path", path)
		return
	}
	if err != nil {
		e.mu.Unlock()
		e.logger.Warn("Expansion query failed",
			"epoch", r.epoch,
			"path", path,
			"code", tverrors.CodeOf(err),
			"error", err,
		)
		return
	}

	candidates := make([]*tree.Node, 0, len(rows))
	for _, row := range rows {
		key := append(append(make([]string, 0, len(path)+1), path...), row.Label)
		if !r.dedup.IsUnique(key) {
			continue
		}
		candidates = append(candidates, tree.New(row.Label, row.Count, append([]string{}, path...)))
	}

	descend := depth < opts.MaxDepth
	var next []*tree.Node
	schedule := func(n *tree.Node) {
		if descend {
			next = append(next, n)
		} else {
			// below the depth limit for this run: a leaf
			n.Children = []*tree.Node{}
		}
	}
	node.Children = tree.Reconcile(node.Children, candidates, tree.Hooks{
		OnMatched: func(_, existing *tree.Node) { schedule(existing) },
		OnNew:     schedule,
	})

	snapshot := e.root.Clone()
	e.renderSeq++
	seq := e.renderSeq
	e.mu.Unlock()

	e.render(seq, snapshot)

	for _, child := range next {
		child := child
		r.group.Go(func() error {
			e.expand(r, child)
			return nil
		})
	}
}

// query runs text against the provider under the in-flight limit.
func (e *Engine) query(ctx context.Context, sem *semaphore.Weighted, timeout time.Duration, text string) ([]Row, error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, tverrors.New(tverrors.QueryFailed, "query cancelled", err)
	}
	defer sem.Release(1)

	qctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := e.provider.Query(qctx, text)
	elapsed := time.Since(start).Seconds()

	// a cancelled caller is not a provider failure; a query timeout is
	if err != nil && ctx.Err() != nil {
		e.metrics.QueryObserved(OutcomeCancelled, elapsed)
		return nil, tverrors.New(tverrors.QueryFailed, "query cancelled", err)
	}
	if err != nil {
		e.metrics.QueryObserved(OutcomeFailed, elapsed)
		return nil, tverrors.New(tverrors.QueryFailed, "provider query failed", err)
	}
	if res == nil || !res.Successful {
		e.metrics.QueryObserved(OutcomeUnsuccessful, elapsed)
		msg := "provider returned an unsuccessful result"
		if res != nil && res.Error != "" {
			msg = res.Error
		}
		return nil, tverrors.New(tverrors.QueryUnsuccessful, msg, nil)
	}

	e.metrics.QueryObserved(OutcomeOK, elapsed)
	return res.Values, nil
}

// render hands snapshot to every renderer unless a newer one got there first.
func (e *Engine) render(seq uint64, snapshot *tree.Node) {
	e.renderMu.Lock()
	defer e.renderMu.Unlock()
	if seq <= e.lastRendered {
		return
	}
	e.lastRendered = seq

	for _, r := range e.renderers {
		r.Render(snapshot)
	}
	e.metrics.Rendered(snapshot.Count())
}
