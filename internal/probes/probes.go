// Package probes holds the probe registry: the command-producer/parser pairs
// keyed by probe name, plus the panic-safe dispatch used by the executor.
package probes

import (
	"fmt"

	"github.com/ttone18/gpu-inspector/internal/models"
)

// CommandFunc produces the shell command a probe runs on the remote node.
// Most probes take no arguments; a few need thresholds to size the command
// (e.g. the GPFS mount path baked into the shell test).
type CommandFunc func(thresholds models.Thresholds) string

// ParseFunc turns one command's raw payload into a Finding.
type ParseFunc func(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding

// Probe is one registry entry.
type Probe struct {
	Name    string
	Command CommandFunc
	Parse   ParseFunc
}

// Registry is an immutable name -> Probe map built at startup.
type Registry struct {
	probes map[string]Probe
}

// NewRegistry builds a registry from the given probes. Duplicate names
// overwrite earlier entries, last write wins.
func NewRegistry(entries ...Probe) *Registry {
	r := &Registry{probes: make(map[string]Probe, len(entries))}
	for _, p := range entries {
		r.probes[p.Name] = p
	}
	return r
}

// Lookup returns the probe for name and whether it was found.
func (r *Registry) Lookup(name string) (Probe, bool) {
	p, ok := r.probes[name]
	return p, ok
}

// Names returns every registered probe name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.probes))
	for n := range r.probes {
		names = append(names, n)
	}
	return names
}

// constCommand wraps a command string with no threshold dependency.
func constCommand(cmd string) CommandFunc {
	return func(models.Thresholds) string { return cmd }
}

// SafeParse runs a probe's parser, recovering from any panic and converting
// it to an "unknown" failure Finding. This is the one place a panic crossing
// a probe boundary is expected and handled, per the normalizer's contract.
func SafeParse(p Probe, payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) (finding models.Finding) {
	defer func() {
		if r := recover(); r != nil {
			finding = models.NewFailure(models.TypeUnknown, fmt.Sprintf("[%s] parser panicked: %v", p.Name, r))
		}
	}()
	return p.Parse(payload, node, thresholds)
}
