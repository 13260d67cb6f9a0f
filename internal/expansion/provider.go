package expansion

import (
	"context"

	"tagvis/internal/tree"
)

// Row is one result row: a tag label (or file name for listings) and its
// file count.
type Row struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Result is the answer of a Provider to one query.
type Result struct {
	Successful bool   `json:"successful"`
	Error      string `json:"error,omitempty"`
	Values     []Row  `json:"values,omitempty"`
}

// Provider executes aggregation query text. It is the engine's only view of
// the document corpus and must be safe for concurrent use.
type Provider interface {
	Query(ctx context.Context, text string) (*Result, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, text string) (*Result, error)

// Query calls f.
func (f ProviderFunc) Query(ctx context.Context, text string) (*Result, error) {
	return f(ctx, text)
}

// Renderer receives a snapshot of the whole tree after each reconciliation.
// A snapshot is a copy shared by all renderers of one engine: keep it, but do
// not modify it. Calls never overlap and an older snapshot is never rendered
// after a newer one.
type Renderer interface {
	Render(root *tree.Node)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(root *tree.Node)

// Render calls f.
func (f RendererFunc) Render(root *tree.Node) {
	f(root)
}

// Recorder receives engine events for metrics.
type Recorder interface {
	RunStarted()
	QueryObserved(outcome string, seconds float64)
	StaleResultDiscarded()
	Rendered(nodes int)
}

// Query outcomes passed to Recorder.QueryObserved.
const (
	OutcomeOK           = "ok"
	OutcomeFailed       = "failed"
	OutcomeUnsuccessful = "unsuccessful"
	OutcomeCancelled    = "cancelled"
)

type nopRecorder struct{}

func (nopRecorder) RunStarted()                    {}
func (nopRecorder) QueryObserved(string, float64) {}
func (nopRecorder) StaleResultDiscarded()          {}
func (nopRecorder) Rendered(int)                   {}
