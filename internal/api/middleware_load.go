package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"tagvis/internal/metrics"
)

// LoadSheddingConfig limits how many index-backed requests run at once.
type LoadSheddingConfig struct {
	// MaxConcurrent is the number of requests served in parallel; 0 disables shedding
	MaxConcurrent int
	// QueueSize is how many requests may wait for a slot
	QueueSize int
	// QueueTimeout is how long a queued request waits before it is rejected
	QueueTimeout time.Duration
	// Paths are the path prefixes subject to shedding
	Paths []string
	// RetryAfterSeconds is sent in the Retry-After header
	RetryAfterSeconds int
}

// DefaultLoadSheddingConfig covers the endpoints that query the index.
// Tree endpoints read the latest snapshot and long-poll, so they never hold a slot.
func DefaultLoadSheddingConfig() LoadSheddingConfig {
	return LoadSheddingConfig{
		MaxConcurrent:     8,
		QueueSize:         32,
		QueueTimeout:      2 * time.Second,
		Paths:             []string{"/api/files", "/api/query", "/api/index"},
		RetryAfterSeconds: 2,
	}
}

// LoadShedder hands out request slots.
type LoadShedder struct {
	config LoadSheddingConfig

	inFlight    int64
	queueLength int64
	totalShed   uint64

	semaphore chan struct{}
	queue     chan struct{}
}

// NewLoadShedder creates a shedder for config.
func NewLoadShedder(config LoadSheddingConfig) *LoadShedder {
	return &LoadShedder{
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrent),
		queue:     make(chan struct{}, config.QueueSize),
	}
}

// Acquire reports whether the request may proceed. Paths outside
// config.Paths always may and do not take a slot.
func (ls *LoadShedder) Acquire(path string) bool {
	if !ls.covers(path) {
		return true
	}

	select {
	case ls.semaphore <- struct{}{}:
		atomic.AddInt64(&ls.inFlight, 1)
		return true
	default:
	}

	select {
	case ls.queue <- struct{}{}:
		atomic.AddInt64(&ls.queueLength, 1)
		defer func() {
			<-ls.queue
			atomic.AddInt64(&ls.queueLength, -1)
		}()
	default:
		atomic.AddUint64(&ls.totalShed, 1)
		return false
	}

	timer := time.NewTimer(ls.config.QueueTimeout)
	defer timer.Stop()

	select {
	case ls.semaphore <- struct{}{}:
		atomic.AddInt64(&ls.inFlight, 1)
		return true
	case <-timer.C:
		atomic.AddUint64(&ls.totalShed, 1)
		return false
	}
}

// Release frees the slot taken by a successful Acquire for path.
func (ls *LoadShedder) Release(path string) {
	if !ls.covers(path) {
		return
	}
	select {
	case <-ls.semaphore:
		atomic.AddInt64(&ls.inFlight, -1)
	default:
	}
}

// LoadSheddingStats is a point-in-time view of a shedder.
type LoadSheddingStats struct {
	InFlight    int64  `json:"inFlight"`
	QueueLength int64  `json:"queueLength"`
	TotalShed   uint64 `json:"totalShed"`
}

// Stats returns the current counters.
func (ls *LoadShedder) Stats() LoadSheddingStats {
	return LoadSheddingStats{
		InFlight:    atomic.LoadInt64(&ls.inFlight),
		QueueLength: atomic.LoadInt64(&ls.queueLength),
		TotalShed:   atomic.LoadUint64(&ls.totalShed),
	}
}

func (ls *LoadShedder) covers(path string) bool {
	for _, p := range ls.config.Paths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// LoadSheddingMiddleware rejects covered requests with 503 once the shedder
// is saturated. Each rejection is counted on m.
func LoadSheddingMiddleware(config LoadSheddingConfig, m *metrics.Collector) func(http.Handler) http.Handler {
	if config.MaxConcurrent <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	shedder := NewLoadShedder(config)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !shedder.Acquire(r.URL.Path) {
				m.RequestShed(r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(config.RetryAfterSeconds))
				w.Header().Set("X-Load-Shed", "true")
				http.Error(w, "Service temporarily overloaded. Please retry.", http.StatusServiceUnavailable)
				return
			}
			defer shedder.Release(r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}
