// Package scheduler drives the four periodic task classes against the
// node inventory and the once-daily P3 digest job. Grounded in
// gpu-node-checker.py's main(): one schedule.every(...).do(...) per task
// class plus a fixed daily digest time, and run_inspection_cycle's
// bounded worker pool (there: multiprocessing.Pool(MAX_WORKERS), here:
// golang.org/x/sync/errgroup with SetLimit). Concurrency happens across
// nodes within one cycle; within one node, probes run sequentially over a
// single SSH session (see internal/executor).
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ttone18/gpu-inspector/internal/alertengine"
	"github.com/ttone18/gpu-inspector/internal/executor"
	"github.com/ttone18/gpu-inspector/internal/metrics"
	"github.com/ttone18/gpu-inspector/internal/models"
	"github.com/ttone18/gpu-inspector/internal/probes"
	"github.com/ttone18/gpu-inspector/internal/profile"
	"github.com/ttone18/gpu-inspector/internal/sinks"
	"github.com/ttone18/gpu-inspector/internal/sshsession"
	"github.com/ttone18/gpu-inspector/internal/statestore"
)

// Config controls cadence and concurrency.
type Config struct {
	MaxWorkers int
	Intervals  map[models.TaskClass]time.Duration

	// DigestTime is "HH:MM" in DigestTimezone (an IANA zone name, or ""
	// for UTC), matching schedule.every().day.at("09:00").
	DigestTime     string
	DigestTimezone string
}

// Scheduler owns the inspection cycle's dependencies and run loop.
type Scheduler struct {
	cfg Config

	nodes      []models.NodeSpec
	profiles   map[string]models.Profile
	thresholds models.Thresholds
	registry   *probes.Registry

	hostKeys  *sshsession.KnownHostsManager
	sshPolicy sshsession.Policy

	engine   *alertengine.Engine
	fanout   *sinks.Fanout
	store    *statestore.Store
	metadata map[string]models.AlertMeta
	metrics  *metrics.Metrics

	// busy guards each task class against overlap: if a cycle is still in
	// flight when the next tick fires, that tick is skipped rather than
	// queued, matching `schedule`'s own skip-if-busy behavior under a
	// single-threaded run_pending() loop.
	mu   sync.Mutex
	busy map[models.TaskClass]bool
}

// New builds a Scheduler.
func New(
	cfg Config,
	nodes []models.NodeSpec,
	profiles map[string]models.Profile,
	thresholds models.Thresholds,
	registry *probes.Registry,
	hostKeys *sshsession.KnownHostsManager,
	sshPolicy sshsession.Policy,
	engine *alertengine.Engine,
	fanout *sinks.Fanout,
	store *statestore.Store,
	metadata map[string]models.AlertMeta,
	metricsRecorder *metrics.Metrics,
) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		nodes:      nodes,
		profiles:   profiles,
		thresholds: thresholds,
		registry:   registry,
		hostKeys:   hostKeys,
		sshPolicy:  sshPolicy,
		engine:     engine,
		fanout:     fanout,
		store:      store,
		metadata:   metadata,
		metrics:    metricsRecorder,
		busy:       make(map[models.TaskClass]bool),
	}
}

// Run blocks until ctx is cancelled. It runs one cycle of every task class
// immediately (matching the original's "启动，立即执行一次全量检查"), then
// drives each class on its own ticker plus the daily digest job.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, class := range models.AllTaskClasses {
		class := class
		s.runCycleGuarded(ctx, class)
	}

	for _, class := range models.AllTaskClasses {
		class := class
		interval := s.cfg.Intervals[class]
		if interval <= 0 {
			interval = time.Minute
		}
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					s.runCycleGuarded(ctx, class)
				}
			}
		})
	}

	g.Go(func() error {
		return s.runDigestLoop(ctx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func (s *Scheduler) runCycleGuarded(ctx context.Context, class models.TaskClass) {
	s.mu.Lock()
	if s.busy[class] {
		s.mu.Unlock()
		log.Warn().Str("class", string(class)).Msg("previous cycle still running, skipping this tick")
		return
	}
	s.busy[class] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy[class] = false
		s.mu.Unlock()
	}()

	s.RunCycle(ctx, class)
}

// RunCycle fans out node processing for one task class across a bounded
// worker pool. A panic in one node's processing is recovered and logged,
// never aborting the cycle for the rest of the fleet.
func (s *Scheduler) RunCycle(ctx context.Context, class models.TaskClass) {
	if len(s.nodes) == 0 {
		log.Warn().Msg("node inventory is empty, skipping this cycle")
		return
	}

	log.Info().Str("class", string(class)).Int("nodes", len(s.nodes)).Msg("starting inspection cycle")
	s.metrics.RecordCycle(string(class))

	g, cctx := errgroup.WithContext(ctx)
	workers := s.cfg.MaxWorkers
	if workers <= 0 {
		workers = 5
	}
	g.SetLimit(workers)

	for _, node := range s.nodes {
		node := node
		g.Go(func() error {
			s.processNodeSafely(cctx, class, node)
			return nil
		})
	}
	_ = g.Wait()

	if count, err := s.store.ActiveCount(ctx); err == nil {
		s.metrics.SetActiveIssues(count)
	}

	log.Info().Str("class", string(class)).Msg("inspection cycle complete")
}

func (s *Scheduler) processNodeSafely(ctx context.Context, class models.TaskClass, node models.NodeSpec) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("host", node.DisplayHost()).Interface("panic", r).Msg("unhandled panic while processing node")
		}
	}()
	s.processNode(ctx, class, node)
}

func (s *Scheduler) processNode(ctx context.Context, class models.TaskClass, node models.NodeSpec) {
	host := node.DisplayHost()
	log.Info().Str("host", host).Str("class", string(class)).Msg("processing node")

	sess, err := sshsession.Dial(ctx, node, s.hostKeys, s.sshPolicy)
	if err != nil {
		log.Error().Str("host", host).Err(err).Msg("ssh connection failed")
		s.metrics.RecordSSHDialFailure(classifyForMetrics(err))
		s.metrics.RecordNodeOutcome(string(class), "connect_failed")
		s.reportConnectionFailure(ctx, node, err)
		return
	}
	defer sess.Close()

	s.reportConnectionRecovered(ctx, node)

	profileName := profile.Resolve(ctx, sess, node)
	prof, ok := s.profiles[profileName]
	if !ok {
		log.Warn().Str("host", host).Str("profile", profileName).Msg("no profile configuration found")
		s.metrics.RecordNodeOutcome(string(class), "no_profile")
		return
	}

	checkNames := prof.ProbeNamesFor(class)
	if len(checkNames) == 0 {
		log.Debug().Str("host", host).Str("profile", profileName).Str("class", string(class)).Msg("no checks configured for this profile and class, skipping")
		s.metrics.RecordNodeOutcome(string(class), "no_checks")
		return
	}

	results := executor.RunChecks(ctx, sess, s.registry, node, s.thresholds, checkNames, s.metrics)
	for _, result := range results {
		dispatch, err := s.engine.Process(ctx, node, result)
		if err != nil {
			log.Error().Str("host", host).Str("check", result.ProbeName).Err(err).Msg("alert engine processing failed")
			continue
		}
		if dispatch != nil {
			s.metrics.RecordDispatch(string(dispatch.Meta.Priority), string(dispatch.Transition))
			s.fanout.Deliver(ctx, *dispatch)
		} else if !result.Finding.Success {
			s.metrics.RecordSuppressed("persisting_or_p3_deferred")
		}
	}
	s.metrics.RecordNodeOutcome(string(class), "processed")
}

// classifyForMetrics reduces a dial error to a short label by matching on
// sshsession's sentinel errors.
func classifyForMetrics(err error) string {
	switch {
	case errors.Is(err, sshsession.ErrAuth):
		return "auth"
	case errors.Is(err, sshsession.ErrTimeout):
		return "timeout"
	case errors.Is(err, sshsession.ErrNoValidConnection):
		return "no_valid_connection"
	case errors.Is(err, sshsession.ErrSSHInternal):
		return "ssh_internal"
	default:
		return "unknown"
	}
}

func (s *Scheduler) reportConnectionFailure(ctx context.Context, node models.NodeSpec, dialErr error) {
	dispatch, err := s.engine.ProcessConnectionFailure(ctx, node, dialErr.Error())
	if err != nil {
		log.Error().Str("host", node.DisplayHost()).Err(err).Msg("failed to record ssh connection failure")
		return
	}
	if dispatch != nil {
		s.fanout.Deliver(ctx, *dispatch)
	}
}

func (s *Scheduler) reportConnectionRecovered(ctx context.Context, node models.NodeSpec) {
	dispatch, err := s.engine.ProcessConnectionRecovered(ctx, node)
	if err != nil {
		log.Error().Str("host", node.DisplayHost()).Err(err).Msg("failed to clear ssh connection issue")
		return
	}
	if dispatch != nil {
		s.fanout.Deliver(ctx, *dispatch)
	}
}
