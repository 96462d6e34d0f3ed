// Package processor runs submitted client applications through the approval
// pipeline: load, enrich from the registry, fan out matchers and validations,
// aggregate, decide, persist approved clients and notify.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"forestclient/internal/processor/events"
	procmetrics "forestclient/internal/processor/metrics"
	"forestclient/internal/submission/models"
	dErrors "forestclient/pkg/domain-errors"
	"forestclient/pkg/platform/sentinel"
)

// ErrQueueFull is returned by Submit when the intake queue is saturated.
var ErrQueueFull = errors.New("processor queue is full")

const (
	matcherKeyError      = "error"
	matcherKeyValidation = "validation"
)

// Orchestrator owns the stage workers and the per-submission bookkeeping.
type Orchestrator struct {
	ch         Channels
	store      SubmissionStore
	enricher   *Enricher
	matcher    *Matcher
	aggregator *Aggregator
	persister  *Persister
	notifier   *Notifier
	publisher  EventPublisher
	registry   Registry
	locker     Locker
	lockTTL    time.Duration
	workers    int
	enrichers  int
	lookupTTL  time.Duration
	sweep      time.Duration
	now        func() time.Time
	logger     *slog.Logger
	metrics    *procmetrics.Metrics
	tracer     trace.Tracer

	mu sync.Mutex
	// inflight maps each claimed submission to whether its cross-replica lock is held.
	inflight map[models.SubmissionID]bool
	pending  map[uuid.UUID]Work
	branches sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithRegistry(reg Registry) Option {
	return func(o *Orchestrator) {
		o.registry = reg
	}
}

func WithPublisher(publisher EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = publisher
	}
}

// WithLocker adds a cross-replica lock held while a submission is in flight.
func WithLocker(locker Locker, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.locker = locker
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithWorkers sets the number of goroutines per stage.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithEnrichWorkers sets the number of enrichment goroutines. Registry
// lookups may wait on pending documents, so this pool is sized apart from
// the other stages.
func WithEnrichWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.enrichers = n
		}
	}
}

// WithRegistryTimeout bounds each registry lookup.
func WithRegistryTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.lookupTTL = d
		}
	}
}

// WithSweepInterval sets how often expired aggregation groups are released.
func WithSweepInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.sweep = d
		}
	}
}

func WithMatcher(m *Matcher) Option {
	return func(o *Orchestrator) {
		o.matcher = m
	}
}

func WithAggregator(a *Aggregator) Option {
	return func(o *Orchestrator) {
		o.aggregator = a
	}
}

func WithPersister(p *Persister) Option {
	return func(o *Orchestrator) {
		o.persister = p
	}
}

func WithNotifier(n *Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(metrics *procmetrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// New wires an orchestrator over the given channels. Components not supplied
// through options are built from legacy and mailer with defaults.
func New(ch Channels, store SubmissionStore, legacy LegacyStore, mailer Mailer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ch:       ch,
		store:    store,
		lockTTL:  15 * time.Minute,
		workers:  4,
		sweep:    time.Second,
		now:      time.Now,
		logger:   slog.Default(),
		tracer:   otel.Tracer("forestclient/processor"),
		inflight: make(map[models.SubmissionID]bool),
		pending:  make(map[uuid.UUID]Work),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.enrichers == 0 {
		o.enrichers = o.workers
	}
	o.enricher = NewEnricher(o.registry, o.logger, WithLookupTimeout(o.lookupTTL))
	if o.matcher == nil {
		o.matcher = NewMatcher(legacy, WithMatcherLogger(o.logger), WithMatcherMetrics(o.metrics))
	}
	if o.aggregator == nil {
		o.aggregator = NewAggregator(WithAggregatorLogger(o.logger), WithAggregatorMetrics(o.metrics))
	}
	if o.persister == nil {
		o.persister = NewPersister(legacy, WithPersisterLogger(o.logger))
	}
	if o.notifier == nil {
		o.notifier = NewNotifier(mailer, WithNotifierLogger(o.logger), WithNotifierMetrics(o.metrics))
	}
	return o
}

// Notifier exposes the dispatcher so scheduled jobs share its resend queue.
func (o *Orchestrator) Notifier() *Notifier {
	return o.notifier
}

// Submit enqueues a submission without waiting for it to be processed.
// Triggers for a submission already in flight are accepted and ignored.
func (o *Orchestrator) Submit(ctx context.Context, id models.SubmissionID) error {
	if !o.claim(id) {
		o.logger.InfoContext(ctx, "submission already in flight", "submission_id", id)
		return nil
	}

	env := NewEnvelope(id, o.now())
	select {
	case o.ch.Received <- env:
		o.metrics.IncReceived()
		o.logger.InfoContext(ctx, "submission accepted",
			"submission_id", id,
			"correlation_id", env.Context.CorrelationID,
		)
		return nil
	case <-ctx.Done():
		o.unclaim(id)
		return ctx.Err()
	default:
		o.unclaim(id)
		return dErrors.Wrap(ErrQueueFull, dErrors.CodeUnavailable, "submission processor is busy")
	}
}

// Run starts the stage workers and blocks until ctx is cancelled. Work in
// progress is abandoned at the next stage boundary.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for range o.enrichers {
		g.Go(func() error { return consume(ctx, o.ch.Enriching, o.enrich) })
	}
	for range o.workers {
		g.Go(func() error { return consume(ctx, o.ch.Received, o.receive) })
		g.Go(func() error { return consume(ctx, o.ch.Matching, o.match) })
		g.Go(func() error { return consume(ctx, o.ch.Deciding, o.decide) })
		g.Go(func() error { return consume(ctx, o.ch.Persisting, o.persist) })
		g.Go(func() error { return consume(ctx, o.ch.Notifying, o.notify) })
	}
	g.Go(func() error { return o.aggregate(ctx) })

	o.logger.InfoContext(ctx, "submission processor started", "workers", o.workers, "enrich_workers", o.enrichers)
	err := g.Wait()
	o.branches.Wait()
	o.logger.Info("submission processor stopped")
	return err
}

func consume[T any](ctx context.Context, ch <-chan Envelope[T], handle func(context.Context, Envelope[T])) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-ch:
			handle(ctx, env)
		}
	}
}

func send[T any](ctx context.Context, ch chan<- Envelope[T], env Envelope[T]) bool {
	select {
	case ch <- env:
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) startStage(ctx context.Context, stage string, ec EnvelopeContext) (context.Context, func()) {
	ctx, span := o.tracer.Start(ctx, "processor."+stage, trace.WithAttributes(
		attribute.Int64("submission.id", int64(ec.SubmissionID)),
		attribute.String("correlation.id", ec.CorrelationID.String()),
	))
	start := time.Now()
	return ctx, func() {
		o.metrics.ObserveStage(stage, time.Since(start))
		span.End()
	}
}

func (o *Orchestrator) receive(ctx context.Context, env Envelope[models.SubmissionID]) {
	ctx, end := o.startStage(ctx, stageReceived, env.Context)
	defer end()
	id := env.Payload

	if o.locker != nil {
		ok, err := o.locker.TryLock(ctx, lockKey(id), o.lockTTL)
		if err != nil {
			o.halt(ctx, env.Context, stageReceived, fmt.Errorf("acquire submission lock: %w", err))
			return
		}
		if !ok {
			o.logger.InfoContext(ctx, "submission locked by another replica", "submission_id", id)
			o.unclaim(id)
			o.metrics.IncSkipped()
			return
		}
		o.markLocked(id)
	}

	sub, err := o.store.LoadDetail(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		o.logger.WarnContext(ctx, "submission not found", "submission_id", id)
		o.skip(ctx, id)
		return
	}
	if err != nil {
		o.halt(ctx, env.Context, stageReceived, err)
		return
	}
	if !sub.Processable() {
		o.logger.InfoContext(ctx, "submission not processable",
			"submission_id", id,
			"status", sub.Status,
		)
		o.skip(ctx, id)
		return
	}

	send(ctx, o.ch.Enriching, Forward(env, Work{Submission: sub, Info: sub.Information()}))
}

func (o *Orchestrator) enrich(ctx context.Context, env Envelope[Work]) {
	ctx, end := o.startStage(ctx, stageEnriching, env.Context)
	defer end()

	work := env.Payload
	work.Info = o.enricher.Enrich(ctx, work.Info)
	send(ctx, o.ch.Matching, Forward(env, work))
}

// match fans out one branch per matcher field, one for the submission-level
// checks, and one per address and contact. Every branch carries the group
// total so the aggregator can join them.
func (o *Orchestrator) match(ctx context.Context, env Envelope[Work]) {
	ctx, end := o.startStage(ctx, stageMatching, env.Context)
	defer end()

	work := env.Payload
	sub := work.Submission
	fields := o.matcher.Fields(work.Info)
	total := len(fields) + 1 + len(sub.Addresses) + len(sub.Contacts)

	o.mu.Lock()
	o.pending[env.Context.CorrelationID] = work
	o.mu.Unlock()

	index := 0
	for _, field := range fields {
		bc := env.Context.Branch(index, total)
		o.branches.Go(func() {
			result := o.matcher.MatchField(ctx, field, work.Info)
			send(ctx, o.ch.Branches, Envelope[BranchResult]{Payload: BranchResult{Kind: BranchMatch, Match: result}, Context: bc})
		})
		index++
	}
	whole := env.Context.Branch(index, total)
	o.branches.Go(func() {
		problems := sub.ValidateSubmission()
		send(ctx, o.ch.Branches, Envelope[BranchResult]{Payload: BranchResult{Kind: BranchValidation, Problems: problems}, Context: whole})
	})
	index++
	for i := range sub.Addresses {
		bc := env.Context.Branch(index, total)
		o.branches.Go(func() {
			problems := sub.ValidateAddress(i)
			send(ctx, o.ch.Branches, Envelope[BranchResult]{Payload: BranchResult{Kind: BranchValidation, Problems: problems}, Context: bc})
		})
		index++
	}
	for i := range sub.Contacts {
		bc := env.Context.Branch(index, total)
		o.branches.Go(func() {
			problems := sub.ValidateContact(i)
			send(ctx, o.ch.Branches, Envelope[BranchResult]{Payload: BranchResult{Kind: BranchValidation, Problems: problems}, Context: bc})
		})
		index++
	}
}

func (o *Orchestrator) aggregate(ctx context.Context) error {
	ticker := time.NewTicker(o.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-o.ch.Branches:
			if agg, ok := o.aggregator.Offer(env); ok {
				send(ctx, o.ch.Deciding, Envelope[Aggregate]{Payload: agg, Context: agg.Context})
			}
		case <-ticker.C:
			for _, agg := range o.aggregator.Expire() {
				send(ctx, o.ch.Deciding, Envelope[Aggregate]{Payload: agg, Context: agg.Context})
			}
		}
	}
}

func (o *Orchestrator) decide(ctx context.Context, env Envelope[Aggregate]) {
	ctx, end := o.startStage(ctx, stageDeciding, env.Context)
	defer end()

	work, ok := o.takePending(env.Context.CorrelationID)
	if !ok {
		o.logger.WarnContext(ctx, "no pending submission for aggregate",
			"submission_id", env.Context.SubmissionID,
			"correlation_id", env.Context.CorrelationID,
		)
		o.skip(ctx, env.Context.SubmissionID)
		return
	}
	agg := env.Payload

	if AllFailed(agg.Matches) {
		o.halt(ctx, env.Context, stageMatching, ErrAllMatchersFailed)
		return
	}

	work.Decision = Decide(work.Info, agg)
	if detail := matcherDetail(agg); len(detail) > 0 {
		if err := o.store.SaveMatchers(ctx, work.Submission.ID, detail); err != nil {
			o.halt(ctx, env.Context, stageDeciding, err)
			return
		}
	}

	o.logger.InfoContext(ctx, "submission decided",
		"submission_id", work.Submission.ID,
		"correlation_id", env.Context.CorrelationID,
		"outcome", work.Decision.Outcome,
		"reasons", work.Decision.Reasons,
	)

	next := Forward(env, work)
	if work.Decision.Outcome == OutcomeApprove {
		send(ctx, o.ch.Persisting, next)
		return
	}
	if err := o.store.UpdateStatus(ctx, work.Submission.ID, work.Decision.Outcome.Status()); err != nil {
		o.halt(ctx, env.Context, stageDeciding, err)
		return
	}
	send(ctx, o.ch.Notifying, next)
}

func (o *Orchestrator) persist(ctx context.Context, env Envelope[Work]) {
	ctx, end := o.startStage(ctx, stagePersisting, env.Context)
	defer end()

	work := env.Payload
	number, err := o.persister.Persist(ctx, work.Submission, work.Info)
	if err != nil {
		o.halt(ctx, env.Context, stagePersisting, err)
		return
	}
	work.ClientNumber = number

	if err := o.store.UpdateStatus(ctx, work.Submission.ID, models.StatusApproved); err != nil {
		o.halt(ctx, env.Context, stagePersisting, fmt.Errorf("client %s created: %w", number, err))
		return
	}
	send(ctx, o.ch.Notifying, Forward(env, work))
}

func (o *Orchestrator) notify(ctx context.Context, env Envelope[Work]) {
	ctx, end := o.startStage(ctx, stageNotifying, env.Context)
	defer end()

	work := env.Payload
	correlationID := env.Context.CorrelationID.String()
	// Failures are queued for resend inside the notifier.
	_, _ = o.notifier.Notify(ctx, work.Decision.Outcome, work.Submission, work.ClientNumber, correlationID)

	if o.publisher != nil {
		event := events.Event{
			Kind:          eventKind(work.Decision.Outcome),
			SubmissionID:  work.Submission.ID,
			CorrelationID: correlationID,
			ClientNumber:  string(work.ClientNumber),
			Reasons:       work.Decision.Reasons,
			Information:   work.Info,
			OccurredAt:    o.now(),
		}
		if err := o.publisher.Publish(ctx, event); err != nil {
			o.logger.ErrorContext(ctx, "terminal event not published",
				"submission_id", work.Submission.ID,
				"kind", event.Kind,
				"error", err,
			)
		}
	}

	o.metrics.IncCompleted(string(work.Decision.Outcome))
	o.logger.InfoContext(ctx, "submission processed",
		"submission_id", work.Submission.ID,
		"correlation_id", correlationID,
		"outcome", work.Decision.Outcome,
		"client_number", work.ClientNumber,
		"elapsed", o.now().Sub(env.Context.ReceivedAt),
	)
	o.release(ctx, work.Submission.ID)
}

// halt stops one submission after a structural failure. The submission is
// left in progress with the error recorded for operators; no event is emitted.
func (o *Orchestrator) halt(ctx context.Context, ec EnvelopeContext, stage string, cause error) {
	o.logger.ErrorContext(ctx, "submission halted",
		"submission_id", ec.SubmissionID,
		"correlation_id", ec.CorrelationID,
		"stage", stage,
		"error", cause,
	)
	o.takePending(ec.CorrelationID)

	// The halt must be recorded even when the stage context is being cancelled.
	recordCtx := context.WithoutCancel(ctx)
	if err := o.store.UpdateStatus(recordCtx, ec.SubmissionID, models.StatusInProgress); err != nil {
		o.logger.ErrorContext(ctx, "failed to record halted status", "submission_id", ec.SubmissionID, "error", err)
	}
	detail := map[string]string{matcherKeyError: fmt.Sprintf("%s: %v", stage, cause)}
	if err := o.store.SaveMatchers(recordCtx, ec.SubmissionID, detail); err != nil {
		o.logger.ErrorContext(ctx, "failed to record halt reason", "submission_id", ec.SubmissionID, "error", err)
	}

	o.metrics.IncHalted(stage)
	o.release(ctx, ec.SubmissionID)
}

func (o *Orchestrator) skip(ctx context.Context, id models.SubmissionID) {
	o.metrics.IncSkipped()
	o.release(ctx, id)
}

func (o *Orchestrator) claim(id models.SubmissionID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[id]; busy {
		return false
	}
	o.inflight[id] = false
	return true
}

func (o *Orchestrator) markLocked(id models.SubmissionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.inflight[id]; ok {
		o.inflight[id] = true
	}
}

func (o *Orchestrator) unclaim(id models.SubmissionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, id)
}

// release drops the claim on id, unlocking it only if this replica took the lock.
func (o *Orchestrator) release(ctx context.Context, id models.SubmissionID) {
	o.mu.Lock()
	locked := o.inflight[id]
	delete(o.inflight, id)
	o.mu.Unlock()

	if locked && o.locker != nil {
		if err := o.locker.Unlock(context.WithoutCancel(ctx), lockKey(id)); err != nil {
			o.logger.WarnContext(ctx, "failed to release submission lock", "submission_id", id, "error", err)
		}
	}
}

func (o *Orchestrator) takePending(id uuid.UUID) (Work, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	work, ok := o.pending[id]
	delete(o.pending, id)
	return work, ok
}

func lockKey(id models.SubmissionID) string {
	return "forestclient:processor:submission:" + id.String()
}

func eventKind(outcome Outcome) events.Kind {
	switch outcome {
	case OutcomeApprove:
		return events.KindApproved
	case OutcomeReject:
		return events.KindRejected
	default:
		return events.KindReview
	}
}

// matcherDetail flattens matches and validation problems into the
// submission's matching detail.
func matcherDetail(agg Aggregate) map[string]string {
	detail := make(map[string]string)
	for _, m := range agg.Matches {
		if m.HasMatch() {
			detail[m.Field] = strings.Join(m.Values, ",")
		}
	}
	if len(agg.Problems) > 0 {
		msgs := make([]string, len(agg.Problems))
		for i, p := range agg.Problems {
			msgs[i] = p.Error()
		}
		detail[matcherKeyValidation] = strings.Join(msgs, "; ")
	}
	return detail
}
