// Package profile identifies which hardware profile a node belongs to by
// probing for vendor tooling over an already-open session.
package profile

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ttone18/gpu-inspector/internal/models"
)

// CommandRunner runs a single command on a remote node and returns trimmed
// stdout, ignoring any non-zero exit or transport error (mirrors the
// original resolver's _execute_simple_command, which swallows failures).
type CommandRunner interface {
	RunQuiet(ctx context.Context, command string) string
}

// Resolve runs the vendor-detection probes in priority order — Muxi, then
// NVIDIA (further split by 4090 vs datacenter card), falling back to the
// unknown profile — and returns the profile label SPEC_FULL.md documents.
func Resolve(ctx context.Context, runner CommandRunner, node models.NodeSpec) string {
	host := node.DisplayHost()

	if out := runner.RunQuiet(ctx, "which mxgpu-smi"); strings.Contains(out, "/bin/mxgpu-smi") {
		log.Info().Str("host", host).Str("profile", models.ProfileMuxiC100).Msg("discovered Muxi GPU")
		return models.ProfileMuxiC100
	}

	if out := runner.RunQuiet(ctx, "nvidia-smi -L"); out != "" {
		if strings.Contains(out, "GeForce RTX 4090") {
			log.Info().Str("host", host).Str("profile", models.ProfileNvidia4090).Msg("discovered NVIDIA 4090 GPU")
			return models.ProfileNvidia4090
		}
		log.Info().Str("host", host).Str("profile", models.ProfileNvidiaDatacenter).Msg("discovered NVIDIA datacenter GPU")
		return models.ProfileNvidiaDatacenter
	}

	log.Warn().Str("host", host).Msg("could not identify GPU type, assigning unknown profile")
	return models.ProfileUnknown
}
