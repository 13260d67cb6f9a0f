package expansion

import (
	"time"

	tverrors "tagvis/internal/errors"
)

// Options controls what a run expands.
type Options struct {
	// InitialTag is the root used when StartRun gets no tag. Empty means the
	// ungrouped root.
	InitialTag string
	// IgnoreFilesWithTags excludes every file carrying one of these tags.
	IgnoreFilesWithTags []string
	// FilterTags are never shown as groupings.
	FilterTags []string
	// MaxChildren caps the rows of each grouping query.
	MaxChildren int
	// MaxDepth is the number of levels that issue queries, the root being 1.
	MaxDepth int

	// MaxInFlight caps concurrent provider queries across the engine.
	MaxInFlight int
	// QueryTimeout bounds each provider query. Zero means no timeout.
	QueryTimeout time.Duration
	// MaxFiles caps file listings.
	MaxFiles int
}

// DefaultOptions returns the options used for zero fields.
func DefaultOptions() Options {
	return Options{
		IgnoreFilesWithTags: []string{},
		FilterTags:          []string{},
		MaxChildren:         15,
		MaxDepth:            2,
		MaxInFlight:         8,
		MaxFiles:            25,
	}
}

// withDefaults fills zero fields and copies the slices.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxChildren == 0 {
		o.MaxChildren = d.MaxChildren
	}
	if o.MaxDepth == 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = d.MaxInFlight
	}
	if o.MaxFiles <= 0 {
		o.MaxFiles = d.MaxFiles
	}
	o.IgnoreFilesWithTags = append([]string{}, o.IgnoreFilesWithTags...)
	o.FilterTags = append([]string{}, o.FilterTags...)
	return o
}

func (o Options) validate() error {
	switch {
	case o.MaxDepth < 1:
		return tverrors.Newf(tverrors.ConfigInvalid, "maxDepth must be at least 1, got %d", o.MaxDepth)
	case o.MaxChildren < 1:
		return tverrors.Newf(tverrors.ConfigInvalid, "maxChildren must be at least 1, got %d", o.MaxChildren)
	case o.QueryTimeout < 0:
		return tverrors.Newf(tverrors.ConfigInvalid, "query timeout must not be negative")
	}
	return nil
}
