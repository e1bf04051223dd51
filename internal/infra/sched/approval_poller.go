package sched

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"tg2fa-relay/internal/config"
	"tg2fa-relay/internal/domain/model"
	"tg2fa-relay/internal/domain/ports/adapter"
	"tg2fa-relay/internal/infra/logging"
	"tg2fa-relay/internal/infra/metrics"
	"tg2fa-relay/internal/usecase"
)

// CycleStats summarises one poll cycle.
type CycleStats struct {
	Pulled     int
	Sent       int
	Failed     int
	Skipped    int
	Duplicates int
}

// ApprovalPoller pulls pending approvals on a fixed cadence and hands each
// one to delivery. At most one cycle runs at a time; ticks that fire during a
// cycle are dropped, not queued.
type ApprovalPoller struct {
	interval     time.Duration
	batchSize    int
	cycleTimeout time.Duration
	backend      adapter.BackendClient
	delivery     usecase.DeliveryUseCase
	log          *zerolog.Logger

	busy atomic.Bool
	wg   sync.WaitGroup
}

func NewApprovalPoller(cfg config.PollerConfig, backend adapter.BackendClient, delivery usecase.DeliveryUseCase, logger *zerolog.Logger) *ApprovalPoller {
	compLog := logger.With().Str("component", "ApprovalPoller").Logger()
	p := &ApprovalPoller{
		interval:     cfg.Interval,
		batchSize:    cfg.BatchSize,
		cycleTimeout: cfg.CycleTimeout,
		backend:      backend,
		delivery:     delivery,
		log:          &compLog,
	}
	if p.interval <= 0 {
		p.interval = config.DefaultPollInterval
	}
	if p.batchSize <= 0 {
		p.batchSize = config.DefaultBatchSize
	}
	if p.cycleTimeout <= 0 {
		p.cycleTimeout = time.Minute
	}
	return p
}

func (p *ApprovalPoller) Run(ctx context.Context) error {
	p.log.Info().Dur("interval", p.interval).Int("batch_size", p.batchSize).Msg("Starting approval poller")
	// Run once on startup, then on every tick
	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			p.log.Info().Msg("Stopping approval poller")
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick starts a cycle in the background unless one is still running.
func (p *ApprovalPoller) tick(ctx context.Context) bool {
	if !p.busy.CompareAndSwap(false, true) {
		metrics.IncPollCycle("skipped")
		p.log.Debug().Msg("previous cycle still running, tick skipped")
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runCycle(ctx)
	}()
	return true
}

// RunOnce runs a cycle on the caller's goroutine. It returns false without
// doing anything when another cycle is in progress.
func (p *ApprovalPoller) RunOnce(ctx context.Context) (CycleStats, bool) {
	if !p.busy.CompareAndSwap(false, true) {
		metrics.IncPollCycle("skipped")
		return CycleStats{}, false
	}
	return p.runCycle(ctx), true
}

// runCycle must only be entered with busy set; it clears it on every exit path.
func (p *ApprovalPoller) runCycle(parent context.Context) (stats CycleStats) {
	defer p.busy.Store(false)

	start := time.Now()
	ctx := logging.WithCycleID(parent, ulid.Make().String())
	ctx, cancel := context.WithTimeout(ctx, p.cycleTimeout)
	defer cancel()
	log := logging.With(ctx, p.log)

	defer func() {
		if r := recover(); r != nil {
			metrics.IncPollCycle("panicked")
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("poll cycle panicked")
		}
	}()

	items, err := p.backend.Pull(ctx, p.batchSize)
	if err != nil {
		metrics.IncPollCycle("failed")
		log.Warn().Err(err).Msg("pull failed, will retry on next tick")
		return stats
	}
	stats.Pulled = len(items)
	metrics.AddItemsPulled(len(items))

	seen := make(map[model.FlexString]struct{}, len(items))
	for i, item := range items {
		if ctx.Err() != nil {
			log.Warn().Int("remaining", len(items)-i).Msg("cycle deadline reached, leaving rest for the next cycle")
			break
		}
		if item.ID == "" {
			stats.Skipped++
			metrics.IncDelivery("skipped")
			log.Warn().Str("session_id", item.SessionID).Msg("queue item without id skipped")
			continue
		}
		if _, dup := seen[item.ID]; dup {
			stats.Duplicates++
			metrics.IncDelivery("duplicate")
			log.Warn().Str("queue_id", item.ID.String()).Msg("duplicate queue item in batch dropped")
			continue
		}
		seen[item.ID] = struct{}{}

		res, err := p.delivery.Deliver(ctx, item)
		switch {
		case err != nil:
			stats.Skipped++
			log.Warn().Err(err).Str("queue_id", item.ID.String()).Msg("item not delivered")
		case res.Status == model.DeliverySent:
			stats.Sent++
		default:
			stats.Failed++
		}
	}

	metrics.IncPollCycle("ok")
	metrics.ObservePollCycle(time.Since(start).Seconds())
	if stats.Pulled > 0 {
		log.Info().
			Int("pulled", stats.Pulled).
			Int("sent", stats.Sent).
			Int("failed", stats.Failed).
			Int("skipped", stats.Skipped).
			Int("duplicates", stats.Duplicates).
			Dur("duration", time.Since(start)).
			Msg("poll cycle finished")
	}
	return stats
}
