package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/speedwagon-io/sensorwatch/internal/config"
	"github.com/speedwagon-io/sensorwatch/internal/lib/logger/sl"
	"github.com/speedwagon-io/sensorwatch/internal/model"
	"github.com/speedwagon-io/sensorwatch/internal/state"
	"github.com/speedwagon-io/sensorwatch/internal/upstream"
)

type Fetcher interface {
	FetchReadings(ctx context.Context) ([]model.Reading, error)
	FetchSummary(ctx context.Context) ([]model.SummaryEntry, error)
	FetchPrediction(ctx context.Context) (*model.Prediction, error)
}

// Recorder persists applied values. Optional.
type Recorder interface {
	StoreReadings(ctx context.Context, readings []model.Reading) error
	StorePrediction(ctx context.Context, p model.Prediction) error
	Cleanup(ctx context.Context, maxAge time.Duration) error
}

// Poller drives the three upstream streams into the state store.
//
// Every tick spawns its fetches without waiting for earlier ones, so fetches
// of one stream may overlap; the store resolves ordering by sequence number.
type Poller struct {
	log      *slog.Logger
	polling  config.PollingConfig
	history  config.HistoryConfig
	fetcher  Fetcher
	store    *state.Store
	recorder Recorder

	started  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	exited   chan struct{}
	wg       sync.WaitGroup
}

func New(
	log *slog.Logger,
	cfg *config.Config,
	fetcher Fetcher,
	store *state.Store,
	recorder Recorder,
) *Poller {
	return &Poller{
		log:      log,
		polling:  cfg.Polling,
		history:  cfg.History,
		fetcher:  fetcher,
		store:    store,
		recorder: recorder,
		stopCh:   make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// Start fetches all streams immediately and then on their intervals. It
// blocks until ctx is done or Stop is called, and returns only after every
// fetch it spawned has finished. Start must be called at most once.
func (p *Poller) Start(ctx context.Context) {
	p.started.Store(true)
	defer close(p.exited)

	select {
	case <-p.stopCh:
		return
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		p.wg.Wait()
	}()

	p.log.Info("starting poller",
		slog.Duration("fast_interval", p.polling.FastInterval),
		slog.Duration("summary_interval", p.polling.SummaryInterval),
		slog.String("failure_policy", string(p.store.Policy())),
	)

	fast := time.NewTicker(p.polling.FastInterval)
	defer fast.Stop()

	summary := time.NewTicker(p.polling.SummaryInterval)
	defer summary.Stop()

	var cleanupC <-chan time.Time
	if p.recorder != nil && p.history.CleanupInterval > 0 {
		cleanup := time.NewTicker(p.history.CleanupInterval)
		defer cleanup.Stop()
		cleanupC = cleanup.C
	}

	p.pollReadings(ctx)
	p.pollSummary(ctx)
	p.pollPrediction(ctx)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("context cancelled, stopping poller")
			return
		case <-p.stopCh:
			p.log.Info("stop signal received, stopping poller")
			return
		case <-fast.C:
			p.pollReadings(ctx)
			p.pollPrediction(ctx)
		case <-summary.C:
			p.pollSummary(ctx)
		case <-cleanupC:
			p.cleanupHistory(ctx)
		}
	}
}

// Stop cancels timers and in-flight fetches and waits for them. No fetch is
// issued after Stop returns. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	if p.started.Load() {
		<-p.exited
	}
}

func (p *Poller) spawn(ctx context.Context, fn func(ctx context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		fetchCtx, cancel := context.WithTimeout(ctx, p.polling.Timeout)
		defer cancel()

		fn(fetchCtx)
	}()
}

func (p *Poller) pollReadings(ctx context.Context) {
	seq := p.store.Begin(state.StreamReadings)
	p.spawn(ctx, func(fetchCtx context.Context) {
		readings, err := p.fetcher.FetchReadings(fetchCtx)
		if !p.complete(ctx, state.StreamReadings, seq, err) {
			return
		}
		if !p.store.ApplyReadings(seq, readings) {
			p.log.Debug("dropped stale readings", slog.Uint64("seq", seq))
			return
		}
		p.log.Debug("readings updated", slog.Int("count", len(readings)))

		if p.recorder != nil {
			if err := p.recorder.StoreReadings(ctx, readings); err != nil {
				p.log.Error("failed to record readings", sl.Err(err))
			}
		}
	})
}

func (p *Poller) pollSummary(ctx context.Context) {
	seq := p.store.Begin(state.StreamSummary)
	p.spawn(ctx, func(fetchCtx context.Context) {
		entries, err := p.fetcher.FetchSummary(fetchCtx)
		if !p.complete(ctx, state.StreamSummary, seq, err) {
			return
		}
		if p.store.ApplySummary(seq, entries) {
			p.log.Debug("summary updated", slog.Int("count", len(entries)))
		}
	})
}

func (p *Poller) pollPrediction(ctx context.Context) {
	seq := p.store.Begin(state.StreamPrediction)
	p.spawn(ctx, func(fetchCtx context.Context) {
		prediction, err := p.fetcher.FetchPrediction(fetchCtx)
		if !p.complete(ctx, state.StreamPrediction, seq, err) {
			return
		}
		if !p.store.ApplyPrediction(seq, prediction) {
			return
		}
		p.log.Debug("prediction updated")

		if p.recorder != nil && prediction != nil {
			if err := p.recorder.StorePrediction(ctx, *prediction); err != nil {
				p.log.Error("failed to record prediction", sl.Err(err))
			}
		}
	})
}

// complete handles the error side of a fetch. It reports whether the caller
// should go on to apply the fetched value.
func (p *Poller) complete(ctx context.Context, stream state.Stream, seq uint64, err error) bool {
	switch {
	case err == nil:
		return true
	case ctx.Err() != nil:
		// shutting down; not a fetch failure
		return false
	case errors.Is(err, upstream.ErrNoData):
		p.store.NoData(stream, seq)
		p.log.Debug("no new data", slog.String("stream", string(stream)))
		return false
	default:
		p.store.Fail(stream, seq, err)
		p.log.Error("failed to fetch",
			slog.String("stream", string(stream)),
			slog.String("policy", string(p.store.Policy())),
			sl.Err(err),
		)
		return false
	}
}

func (p *Poller) cleanupHistory(ctx context.Context) {
	if err := p.recorder.Cleanup(ctx, p.history.MaxAge); err != nil {
		p.log.Error("failed to cleanup history", sl.Err(err))
	}
}
