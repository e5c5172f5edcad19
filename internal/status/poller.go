package status

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/musher-dev/claudewatch/internal/observability"
	"github.com/musher-dev/claudewatch/internal/probe"
)

const tracerName = "claudewatch.status"

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides DefaultInterval. Intended for tests and embedders.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock sets the time source used for checked_at and attempt times.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the logger used for refresh outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithCommitPolicy selects how overlapping refreshes are resolved.
func WithCommitPolicy(policy CommitPolicy) Option {
	return func(p *Poller) {
		p.policy = policy
	}
}

// WithMeter sets the meter for refresh metrics. The default is the global
// meter provider.
func WithMeter(meter metric.Meter) Option {
	return func(p *Poller) {
		if meter != nil {
			p.meter = meter
		}
	}
}

type observer struct {
	id int
	fn func(Snapshot)
}

// Poller owns the current status record and the checking flag. It refreshes
// once when started, then every interval, plus whenever Trigger or Refresh is
// called. Overlapping refreshes are allowed and resolved by the commit policy.
//
// After Stop, in-flight probes run to completion but their results are
// dropped: nothing observable changes once a poller is stopped.
type Poller struct {
	client   probe.Client
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	policy   CommitPolicy
	meter    metric.Meter
	metrics  refreshMetrics

	// notifyMu serializes state transitions with their notifications so that
	// observers see snapshots in commit order.
	notifyMu sync.Mutex

	mu            sync.Mutex
	checking      bool
	record        *Record
	lastAttemptAt time.Time
	generation    uint64
	started       bool
	stopped       bool
	cancel        context.CancelFunc
	observers     []observer
	nextObserver  int
}

// NewPoller creates a poller for client. It does not start polling.
func NewPoller(client probe.Client, opts ...Option) *Poller {
	p := &Poller{
		client:   client,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   slog.Default(),
		policy:   CommitLastCompleted,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.meter == nil {
		p.meter = observability.Meter(tracerName)
	}

	m, err := newRefreshMetrics(p.meter)
	if err != nil {
		p.logger.Debug("refresh metrics disabled", slog.String("error", err.Error()))
	}

	p.metrics = m

	return p
}

// Interval returns the period between scheduled refreshes.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Snapshot returns the current state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.snapshotLocked()
}

func (p *Poller) snapshotLocked() Snapshot {
	return Snapshot{
		Checking:      p.checking,
		Record:        p.record,
		LastAttemptAt: p.lastAttemptAt,
	}
}

// Subscribe registers fn to be called with the new snapshot after every state
// change. fn runs on the goroutine that made the change and must not call
// Refresh synchronously. The returned func unsubscribes.
func (p *Poller) Subscribe(fn func(Snapshot)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextObserver++
	id := p.nextObserver
	p.observers = append(p.observers, observer{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		for i, o := range p.observers {
			if o.id == id {
				p.observers = append(p.observers[:i:i], p.observers[i+1:]...)
				return
			}
		}
	}
}

func (p *Poller) observersLocked() []func(Snapshot) {
	fns := make([]func(Snapshot), len(p.observers))
	for i, o := range p.observers {
		fns[i] = o.fn
	}

	return fns
}

// Start refreshes immediately and then on every interval until ctx is done or
// Stop is called. Scheduled refreshes do not wait for earlier ones to finish.
// Calling Start more than once, or after Stop, has no effect.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.started = true
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	go p.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go p.Refresh(ctx)
		}
	}
}

// Trigger starts an out-of-cycle refresh without waiting for it.
func (p *Poller) Trigger(ctx context.Context) {
	go p.Refresh(ctx)
}

// Stop cancels the periodic timer and detaches all observers. Results of
// refreshes still in flight are discarded. Stop waits for a notification
// already being delivered, so no observer runs after it returns. Observers
// must not call Stop. Stop is idempotent.
func (p *Poller) Stop() {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}

	p.stopped = true
	p.observers = nil
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Refresh runs both probes concurrently, waits for both to settle and commits
// the merged record, or the fallback record if either probe failed. Probe
// failures are logged, never returned. The probes are not cancelled when ctx
// is. Refresh returns the snapshot observed right after its commit.
func (p *Poller) Refresh(ctx context.Context) Snapshot {
	refreshID := uuid.NewString()
	logger := p.logger.With(slog.String("refresh.id", refreshID))

	ctx, span := observability.Tracer(tracerName).Start(ctx, "status.refresh",
		trace.WithAttributes(
			attribute.String("refresh.id", refreshID),
			attribute.String("status.commit_policy", p.policy.String()),
		),
	)

	generation, ok := p.begin()
	if !ok {
		span.SetAttributes(attribute.Bool("status.stopped", true))
		observability.EndSpan(span, nil)

		return p.Snapshot()
	}

	start := time.Now()
	record, err := p.runProbes(context.WithoutCancel(ctx), logger)
	elapsed := time.Since(start)

	if err != nil {
		logger.WarnContext(ctx, "status refresh failed, committing fallback record",
			slog.String("error", err.Error()),
			slog.Duration("duration", elapsed),
		)
	}

	snap, outcome := p.commit(generation, record)
	span.SetAttributes(attribute.String("status.commit", outcome))
	p.metrics.record(ctx, outcome, err != nil, Derive(false, record).State, elapsed)
	observability.EndSpan(span, err)

	logger.DebugContext(ctx, "status refresh settled",
		slog.String("commit", outcome),
		slog.Bool("version.installed", record.Version.IsInstalled),
		slog.Bool("auth.authenticated", record.Auth.IsAuthenticated),
		slog.Duration("duration", elapsed),
	)

	return snap
}

// begin marks a refresh as in progress and returns its generation.
func (p *Poller) begin() (uint64, bool) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return 0, false
	}

	p.generation++
	generation := p.generation
	p.checking = true
	p.lastAttemptAt = p.now()
	snap := p.snapshotLocked()
	observers := p.observersLocked()
	p.mu.Unlock()

	notify(observers, snap)

	return generation, true
}

// Commit outcomes, recorded on spans and logs.
const (
	outcomeCommitted  = "committed"
	outcomeSuperseded = "superseded"
	outcomeStopped    = "dropped-after-stop"
)

func (p *Poller) commit(generation uint64, record *Record) (Snapshot, string) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()

	if p.stopped {
		snap := p.snapshotLocked()
		p.mu.Unlock()

		return snap, outcomeStopped
	}

	if p.policy == CommitLatestInitiated && generation != p.generation {
		snap := p.snapshotLocked()
		p.mu.Unlock()

		return snap, outcomeSuperseded
	}

	p.record = record
	p.checking = false
	snap := p.snapshotLocked()
	observers := p.observersLocked()
	p.mu.Unlock()

	notify(observers, snap)

	return snap, outcomeCommitted
}

// runProbes is the barrier: both probes always run to completion before it
// returns. The returned record is never nil.
func (p *Poller) runProbes(ctx context.Context, logger *slog.Logger) (*Record, error) {
	var (
		version probe.VersionStatus
		auth    probe.AuthStatus
		g       errgroup.Group
	)

	g.Go(func() (err error) {
		return p.runProbe(ctx, logger, probe.NameVersion, func(ctx context.Context) error {
			version, err = p.client.CheckVersion(ctx)
			return err
		})
	})

	g.Go(func() (err error) {
		return p.runProbe(ctx, logger, probe.NameAuth, func(ctx context.Context) error {
			auth, err = p.client.CheckAuth(ctx)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		return FallbackRecord(p.now()), err
	}

	return &Record{Version: version, Auth: auth, CheckedAt: p.now()}, nil
}

func (p *Poller) runProbe(ctx context.Context, logger *slog.Logger, name string, call func(context.Context) error) (err error) {
	ctx, span := observability.Tracer(tracerName).Start(ctx, "probe."+name)

	defer func() {
		if r := recover(); r != nil {
			err = &probe.Error{Probe: name, Op: "call", Err: fmt.Errorf("panic: %v", r)}
		}

		if err != nil {
			logger.WarnContext(ctx, "probe failed", slog.String("probe", name), slog.String("error", err.Error()))
		}

		observability.EndSpan(span, err)
	}()

	return call(ctx)
}

func notify(observers []func(Snapshot), snap Snapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}
