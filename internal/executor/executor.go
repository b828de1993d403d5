// Package executor runs a node's configured probe list over one open
// session and normalizes each result into a Finding. Grounded in
// core/runners.py's run_specific_checks: one command per probe, sequential
// per node (concurrency lives one level up, across nodes, in the
// scheduler's worker pool) — batching probes into a single remote
// round-trip was considered and rejected; see DESIGN.md.
package executor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ttone18/gpu-inspector/internal/models"
	"github.com/ttone18/gpu-inspector/internal/probes"
)

// Session is the subset of sshsession.Session the executor depends on.
type Session interface {
	Run(ctx context.Context, command string) models.RawPayload
}

// Result pairs a probe name with the Finding its command produced.
type Result struct {
	ProbeName string
	Finding   models.Finding
}

// Recorder receives one probe's outcome. Implemented by *metrics.Metrics;
// kept as a narrow interface here so executor never imports the metrics
// package directly.
type Recorder interface {
	RecordProbe(probe string, success bool, duration time.Duration)
}

// RunChecks executes every named probe against node in order, skipping
// names absent from the registry (logged, not fatal — mirrors the
// original's "not in CHECK_REGISTRY, skipping" behavior). recorder may be
// nil.
func RunChecks(ctx context.Context, sess Session, registry *probes.Registry, node models.NodeSpec, thresholds models.Thresholds, checkNames []string, recorder Recorder) []Result {
	results := make([]Result, 0, len(checkNames))
	host := node.DisplayHost()

	for _, name := range checkNames {
		probe, ok := registry.Lookup(name)
		if !ok {
			log.Warn().Str("host", host).Str("check", name).Msg("check not defined in registry, skipping")
			continue
		}

		command := probe.Command(thresholds)
		log.Debug().Str("host", host).Str("check", name).Msg("executing check")

		start := time.Now()
		payload := sess.Run(ctx, command)
		duration := time.Since(start)

		finding := probes.SafeParse(probe, payload, node, thresholds)
		log.Debug().Str("host", host).Str("check", name).Dur("duration", duration).Bool("success", finding.Success).Msg("check complete")
		if recorder != nil {
			recorder.RecordProbe(name, finding.Success, duration)
		}

		results = append(results, Result{ProbeName: name, Finding: finding})
	}

	return results
}
