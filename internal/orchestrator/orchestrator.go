// Package orchestrator runs the background daemon that watches for briefs
// ready to enter the pipeline and for pending revision requests, and
// dispatches each to a guarded pipeline execution.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adaptiveedge/forge/internal/models"
	"github.com/adaptiveedge/forge/internal/pipeline"
	"github.com/adaptiveedge/forge/internal/store"
)

// Runner is the pipeline surface the orchestrator drives.
type Runner interface {
	Advance(ctx context.Context, briefID string) error
	Resume(ctx context.Context, briefID string) error
	Revise(ctx context.Context, briefID, feedback string, revisionNumber int) error
}

// Options tunes the orchestrator loop.
type Options struct {
	// PollInterval is how often the orchestrator scans for work.
	PollInterval time.Duration
	// ShutdownTimeout bounds how long Stop waits for in-flight pipelines.
	ShutdownTimeout time.Duration
}

// Orchestrator polls the store and dispatches pipeline work. Each brief gets
// at most one concurrent execution, enforced by the in-flight set.
type Orchestrator struct {
	store    store.Store
	runner   Runner
	inflight *pipeline.InflightSet
	logger   *slog.Logger
	opts     Options

	cancel context.CancelFunc
	wg     sync.WaitGroup
	stop   sync.Once
}

// New creates an orchestrator.
func New(s store.Store, r Runner, logger *slog.Logger, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:    s,
		runner:   r,
		inflight: pipeline.NewInflightSet(),
		logger:   logger,
		opts:     opts,
	}
}

// Run starts the poll loop and blocks until ctx is cancelled or Stop is
// called. An immediate catch-up scan runs before the first tick so briefs
// queued while the daemon was down are picked up right away.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.logger.Info("orchestrator starting", "poll_interval", o.opts.PollInterval)

	o.scan(ctx)

	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopping")
			o.drain()
			return nil
		case <-ticker.C:
			o.scan(ctx)
		}
	}
}

// Stop initiates graceful shutdown. Safe to call more than once.
func (o *Orchestrator) Stop() {
	o.stop.Do(func() {
		if o.cancel != nil {
			o.cancel()
		}
	})
}

// Scan runs a single dispatch pass. Exposed for one-shot invocations.
func (o *Orchestrator) Scan(ctx context.Context) {
	o.scan(ctx)
}

// InFlight reports the number of pipeline executions currently running.
func (o *Orchestrator) InFlight() int {
	return o.inflight.Len()
}

func (o *Orchestrator) scan(ctx context.Context) {
	o.dispatchEvaluating(ctx)
	o.dispatchApproved(ctx)
	o.dispatchRevisions(ctx)
}

// dispatchEvaluating starts a pipeline for every brief waiting in the
// evaluating status that is not already in flight.
func (o *Orchestrator) dispatchEvaluating(ctx context.Context) {
	briefs, err := o.store.ListBriefs(ctx, store.BriefListFilter{Status: models.BriefStatusEvaluating})
	if err != nil {
		o.logger.Error("list evaluating briefs", "error", err)
		return
	}

	for _, b := range briefs {
		if !o.inflight.TryAcquire(b.ID) {
			continue
		}
		o.logger.Info("dispatching brief", "brief_id", b.ID, "title", b.Title)

		o.wg.Add(1)
		go func(id string) {
			defer o.wg.Done()
			defer o.inflight.Release(id)
			defer o.recover(id)

			if err := o.runner.Advance(ctx, id); err != nil {
				o.logger.Error("pipeline failed", "brief_id", id, "error", err)
			}
		}(b.ID)
	}
}

// dispatchApproved resumes briefs whose plan was approved while the
// pipeline was paused at the approval gate.
func (o *Orchestrator) dispatchApproved(ctx context.Context) {
	briefs, err := o.store.ListBriefs(ctx, store.BriefListFilter{Status: models.BriefStatusBuilding})
	if err != nil {
		o.logger.Error("list building briefs", "error", err)
		return
	}

	for _, b := range briefs {
		if b.Stage != models.StagePlanApproved {
			continue
		}
		if !o.inflight.TryAcquire(b.ID) {
			continue
		}
		o.logger.Info("resuming brief", "brief_id", b.ID, "title", b.Title)

		o.wg.Add(1)
		go func(id string) {
			defer o.wg.Done()
			defer o.inflight.Release(id)
			defer o.recover(id)

			if err := o.runner.Resume(ctx, id); err != nil {
				o.logger.Error("resume failed", "brief_id", id, "error", err)
			}
		}(b.ID)
	}
}

// dispatchRevisions walks the pending revision queue, oldest first. A
// revision for a brief already in flight waits for the next scan; that
// also serializes multiple revisions of the same brief.
func (o *Orchestrator) dispatchRevisions(ctx context.Context) {
	pending, err := o.store.ListPendingRevisions(ctx)
	if err != nil {
		o.logger.Error("list pending revisions", "error", err)
		return
	}

	for _, req := range pending {
		if !o.inflight.TryAcquire(req.BriefID) {
			continue
		}

		req.Status = models.RevisionStatusInProgress
		if err := o.store.UpdateRevisionRequest(ctx, req); err != nil {
			o.inflight.Release(req.BriefID)
			o.logger.Error("claim revision request", "revision_id", req.ID, "error", err)
			continue
		}

		o.logger.Info("dispatching revision", "brief_id", req.BriefID, "revision", req.RevisionNumber)

		o.wg.Add(1)
		go func(req *models.RevisionRequest) {
			defer o.wg.Done()
			defer o.inflight.Release(req.BriefID)
			defer o.recover(req.BriefID)

			if err := o.runner.Revise(ctx, req.BriefID, req.Feedback, req.RevisionNumber); err != nil {
				o.logger.Error("revision pipeline failed", "brief_id", req.BriefID, "error", err)
			}

			req.Status = models.RevisionStatusCompleted
			if err := o.store.UpdateRevisionRequest(ctx, req); err != nil {
				o.logger.Error("complete revision request", "revision_id", req.ID, "error", err)
			}
		}(req)
	}
}

// recover keeps a panicking pipeline goroutine from killing the daemon.
func (o *Orchestrator) recover(briefID string) {
	if r := recover(); r != nil {
		o.logger.Error("pipeline panicked", "brief_id", briefID, "panic", fmt.Sprint(r))
	}
}

// drain waits for in-flight pipelines, bounded by the shutdown timeout.
func (o *Orchestrator) drain() {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("all pipelines drained")
	case <-time.After(o.opts.ShutdownTimeout):
		o.logger.Warn("shutdown timeout reached, abandoning in-flight pipelines", "in_flight", o.inflight.Len())
	}
}
