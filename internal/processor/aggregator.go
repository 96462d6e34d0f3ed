package processor

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	procmetrics "forestclient/internal/processor/metrics"
	"forestclient/internal/submission/models"
)

// ReleaseStrategy decides when a correlation group is complete.
type ReleaseStrategy interface {
	CanRelease(group []Envelope[BranchResult]) bool
}

// CountReleaseStrategy releases a group once it holds exactly as many
// messages as the total its members declare. The total is taken from the
// first member carrying a positive value; a group with no total never
// releases and is left to the aggregation timeout.
type CountReleaseStrategy struct{}

func (CountReleaseStrategy) CanRelease(group []Envelope[BranchResult]) bool {
	total := 0
	for _, env := range group {
		if env.Context.Total > 0 {
			total = env.Context.Total
			break
		}
	}
	return total > 0 && len(group) == total
}

// Aggregate is a released group of branch results.
type Aggregate struct {
	Context  EnvelopeContext
	Matches  []MatcherResult
	Problems []models.ValidationError
	Received int
	TimedOut bool
}

type pendingGroup struct {
	items    []Envelope[BranchResult]
	seen     map[int]struct{}
	deadline time.Time
}

// Aggregator joins fan-out branches by correlation id.
type Aggregator struct {
	mu       sync.Mutex
	groups   map[uuid.UUID]*pendingGroup
	released map[uuid.UUID]time.Time
	strategy ReleaseStrategy
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
	metrics  *procmetrics.Metrics
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

func WithReleaseStrategy(strategy ReleaseStrategy) AggregatorOption {
	return func(a *Aggregator) {
		a.strategy = strategy
	}
}

// WithAggregationTimeout bounds how long a group may wait for its siblings.
func WithAggregationTimeout(timeout time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if timeout > 0 {
			a.timeout = timeout
		}
	}
}

func WithAggregatorClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		a.now = now
	}
}

func WithAggregatorLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

func WithAggregatorMetrics(metrics *procmetrics.Metrics) AggregatorOption {
	return func(a *Aggregator) {
		a.metrics = metrics
	}
}

func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		groups:   make(map[uuid.UUID]*pendingGroup),
		released: make(map[uuid.UUID]time.Time),
		strategy: CountReleaseStrategy{},
		timeout:  2 * time.Minute,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Offer adds a branch result to its group. It returns the aggregate and true
// when the offer completes the group, which is then forgotten.
func (a *Aggregator) Offer(env Envelope[BranchResult]) (Aggregate, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := env.Context.CorrelationID
	if _, done := a.released[id]; done {
		a.logger.Warn("dropping late branch result",
			"submission_id", env.Context.SubmissionID,
			"correlation_id", id,
			"index", env.Context.Index,
		)
		a.metrics.IncLateMessage()
		return Aggregate{}, false
	}

	g, ok := a.groups[id]
	if !ok {
		g = &pendingGroup{seen: make(map[int]struct{}), deadline: a.now().Add(a.timeout)}
		a.groups[id] = g
	}
	if _, dup := g.seen[env.Context.Index]; dup {
		a.logger.Warn("dropping duplicate branch result",
			"submission_id", env.Context.SubmissionID,
			"correlation_id", id,
			"index", env.Context.Index,
		)
		return Aggregate{}, false
	}
	g.seen[env.Context.Index] = struct{}{}
	g.items = append(g.items, env)

	if !a.strategy.CanRelease(g.items) {
		return Aggregate{}, false
	}
	return a.release(id, g, false), true
}

// Expire releases every group whose deadline has passed as a timed-out
// partial aggregate, and forgets released ids older than twice the timeout.
func (a *Aggregator) Expire() []Aggregate {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	var out []Aggregate
	for id, g := range a.groups {
		if now.Before(g.deadline) {
			continue
		}
		agg := a.release(id, g, true)
		a.logger.Warn("aggregation timed out",
			"submission_id", agg.Context.SubmissionID,
			"correlation_id", id,
			"received", agg.Received,
			"expected", agg.Context.Total,
		)
		a.metrics.IncAggregationTimeout()
		out = append(out, agg)
	}
	for id, at := range a.released {
		if now.Sub(at) > 2*a.timeout {
			delete(a.released, id)
		}
	}
	return out
}

// Pending returns the number of incomplete groups.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

func (a *Aggregator) release(id uuid.UUID, g *pendingGroup, timedOut bool) Aggregate {
	delete(a.groups, id)
	a.released[id] = a.now()

	// Arrival order is arbitrary; branch order is not.
	slices.SortFunc(g.items, func(x, y Envelope[BranchResult]) int {
		return cmp.Compare(x.Context.Index, y.Context.Index)
	})

	agg := Aggregate{
		Context:  g.items[0].Context,
		Received: len(g.items),
		TimedOut: timedOut,
	}
	for _, env := range g.items {
		if env.Context.Total > 0 && agg.Context.Total == 0 {
			agg.Context.Total = env.Context.Total
		}
		switch env.Payload.Kind {
		case BranchMatch:
			agg.Matches = append(agg.Matches, env.Payload.Match)
		case BranchValidation:
			agg.Problems = append(agg.Problems, env.Payload.Problems...)
		}
	}
	agg.Context.Index = 0
	return agg
}
