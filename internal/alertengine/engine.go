// Package alertengine turns executor.Results into durable issue-record
// transitions and decides when those transitions are worth dispatching.
// Grounded in core/reporter.py's process_results, handle_failed_issue and
// handle_resolved_issue. A failure finding passes a debounce pre-check
// (host:type against a 60s window) before any state-store access: a key
// already inside the window is a duplicate burst and gets a low-cost
// duplicate notice only, touching neither the record nor the event log.
// Past the pre-check, PERSISTING (identical extra on an already-reported
// record) is silent — no dispatch, no event log append, no state-store
// write — the quiet steady-state branch, distinct from the debounce
// mechanism above it.
package alertengine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ttone18/gpu-inspector/internal/executor"
	"github.com/ttone18/gpu-inspector/internal/models"
	"github.com/ttone18/gpu-inspector/internal/statestore"
)

// Transition classifies how a Finding relates to the prior durable record.
type Transition string

const (
	TransitionNew        Transition = "new"
	TransitionChanged    Transition = "changed"
	TransitionPersisting Transition = "persisting"
	TransitionResolved   Transition = "resolved"
	TransitionDuplicate  Transition = "duplicate"
	TransitionNone       Transition = "none"
)

// Dispatch is one unit of outbound work the engine decides is worth
// notifying about. Sinks consume these; the engine never calls a sink
// directly so it stays testable without network dependencies.
type Dispatch struct {
	Transition Transition
	Record     models.IssueRecord
	Meta       models.AlertMeta
}

// Engine owns the alert-metadata table, the debounce cache, and the
// per-node-and-type classification logic. It reads and writes the state
// store directly; it does not own a sink.
type Engine struct {
	store    *statestore.Store
	metadata map[string]models.AlertMeta
	debounce *debounceCache
}

// New builds an Engine. metadata is typically models.DefaultAlertMetadata.
func New(store *statestore.Store, metadata map[string]models.AlertMeta) *Engine {
	return &Engine{
		store:    store,
		metadata: metadata,
		debounce: newDebounceCache(60 * time.Second),
	}
}

func (e *Engine) lookup(issueType string) models.AlertMeta {
	return models.Lookup(e.metadata, issueType)
}

// Process folds one executor.Result into the durable state and returns a
// Dispatch if the transition is worth notifying about (nil otherwise).
func (e *Engine) Process(ctx context.Context, node models.NodeSpec, result executor.Result) (*Dispatch, error) {
	finding := result.Finding

	if finding.Success {
		return e.processSuccess(ctx, node, finding)
	}
	return e.processFailure(ctx, node, finding)
}

func (e *Engine) processFailure(ctx context.Context, node models.NodeSpec, finding models.Finding) (*Dispatch, error) {
	host := node.DisplayHost()
	meta := e.lookup(finding.IssueType)
	key := fmt.Sprintf("%s|%s", node.Host, finding.IssueType)

	// Debounce pre-check happens before any state-store or event-log
	// access: a key already inside the window is a duplicate burst, and
	// gets only a low-cost duplicate notice (none at all for P3). Neither
	// the record nor the event log is touched.
	if e.debounce.peek(key) {
		log.Debug().Str("host", host).Str("type", finding.IssueType).Msg("duplicate failure suppressed within debounce window")
		if meta.Priority == models.PriorityP3 {
			// P3 issues never produce an immediate notice, duplicate or not.
			return nil, nil
		}
		rec := models.IssueRecord{
			Host:     node.Host,
			Hostname: host,
			Type:     finding.IssueType,
			Extra:    finding.Extra,
			Priority: meta.Priority,
		}
		return &Dispatch{Transition: TransitionDuplicate, Record: rec, Meta: meta}, nil
	}

	existing, found, err := e.store.Get(ctx, node.Host, finding.IssueType)
	if err != nil {
		return nil, fmt.Errorf("alertengine: load existing record for %s/%s: %w", host, finding.IssueType, err)
	}

	rec := models.IssueRecord{
		Host:     node.Host,
		Hostname: host,
		Type:     finding.IssueType,
		Extra:    finding.Extra,
		Status:   models.StatusReported,
		Priority: meta.Priority,
	}
	if found {
		rec.FirstSeen = existing.FirstSeen
	}

	transition := classify(existing, found, finding)

	switch transition {
	case TransitionPersisting:
		// No sink dispatch, no event log append, no state-store write:
		// the quiet steady-state branch.
		log.Debug().Str("host", host).Str("type", finding.IssueType).Msg("issue persisting, suppressed")
		return nil, nil
	case TransitionNew, TransitionChanged:
		if err := e.store.Upsert(ctx, rec); err != nil {
			return nil, fmt.Errorf("alertengine: persist %s/%s: %w", host, finding.IssueType, err)
		}
		e.debounce.set(key)
		if meta.Priority == models.PriorityP3 {
			// P3 issues are never paged immediately; the record just
			// persisted above is enough for the daily digest job to
			// pick up via statestore.ActiveByTypes.
			log.Debug().Str("host", host).Str("type", finding.IssueType).Msg("P3 issue recorded, deferred to daily digest")
			return nil, nil
		}
		log.Warn().Str("host", host).Str("type", finding.IssueType).Str("priority", string(meta.Priority)).Msg("issue opened or changed")
		return &Dispatch{Transition: transition, Record: rec, Meta: meta}, nil
	default:
		return nil, nil
	}
}

func (e *Engine) processSuccess(ctx context.Context, node models.NodeSpec, finding models.Finding) (*Dispatch, error) {
	host := node.DisplayHost()
	// A success finding may clear multiple issue-types in one probe run
	// (e.g. a successful GPU-count probe clears both gpu.count and
	// gpu.smi_cmd_error).
	var firstDispatch *Dispatch
	for _, issueType := range finding.ClearedTypes {
		existing, found, err := e.store.Get(ctx, node.Host, issueType)
		if err != nil {
			return nil, fmt.Errorf("alertengine: load existing record for %s/%s: %w", host, issueType, err)
		}
		if !found || existing.Status == models.StatusResolved {
			continue
		}

		if err := e.store.MarkResolved(ctx, node.Host, issueType); err != nil {
			return nil, fmt.Errorf("alertengine: mark resolved %s/%s: %w", host, issueType, err)
		}

		meta := e.lookup(issueType)
		rec := existing
		rec.Status = models.StatusResolved
		rec.LastUpdate = time.Now().UTC()

		key := fmt.Sprintf("%s|%s|resolved", host, issueType)
		if !e.debounce.allow(key) {
			continue
		}
		log.Info().Str("host", host).Str("type", issueType).Msg("issue resolved")
		if firstDispatch == nil {
			firstDispatch = &Dispatch{Transition: TransitionResolved, Record: rec, Meta: meta}
		}
	}
	return firstDispatch, nil
}

// classify determines the transition for a failure finding given the prior
// record. A missing or previously-resolved record is NEW. An existing
// reported record with identical Extra is PERSISTING (silent). An existing
// reported record with different Extra is CHANGED (re-notify).
func classify(existing models.IssueRecord, found bool, finding models.Finding) Transition {
	if !found || existing.Status == models.StatusResolved {
		return TransitionNew
	}
	if existing.Extra != finding.Extra {
		return TransitionChanged
	}
	return TransitionPersisting
}

// ProcessConnectionFailure records an SSH connectivity failure as a
// system.ssh issue. The original's process_connection_failure only logs;
// spec.md requires this to flow through the same issue lifecycle as any
// other probe failure so it is dispatched, tracked, and eventually
// resolved like everything else.
func (e *Engine) ProcessConnectionFailure(ctx context.Context, node models.NodeSpec, reason string) (*Dispatch, error) {
	finding := models.NewFailure(models.TypeSSH, reason)
	return e.processFailure(ctx, node, finding)
}

// ProcessConnectionRecovered clears a previously-reported system.ssh issue.
func (e *Engine) ProcessConnectionRecovered(ctx context.Context, node models.NodeSpec) (*Dispatch, error) {
	finding := models.NewSuccess(models.TypeSSH)
	return e.processSuccess(ctx, node, finding)
}
