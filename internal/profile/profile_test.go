package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttone18/gpu-inspector/internal/models"
)

type fakeRunner struct {
	responses map[string]string
}

func (f *fakeRunner) RunQuiet(ctx context.Context, command string) string {
	return f.responses[command]
}

func TestResolveDetectsMuxiFirst(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		"which mxgpu-smi": "/usr/bin/mxgpu-smi",
		"nvidia-smi -L":   "GPU 0: GeForce RTX 4090",
	}}
	require.Equal(t, models.ProfileMuxiC100, Resolve(context.Background(), runner, models.NodeSpec{}))
}

func TestResolveDetectsNvidia4090(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		"nvidia-smi -L": "GPU 0: GeForce RTX 4090 (UUID: ...)",
	}}
	require.Equal(t, models.ProfileNvidia4090, Resolve(context.Background(), runner, models.NodeSpec{}))
}

func TestResolveDetectsNvidiaDatacenterByDefault(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		"nvidia-smi -L": "GPU 0: NVIDIA H100 80GB HBM3",
	}}
	require.Equal(t, models.ProfileNvidiaDatacenter, Resolve(context.Background(), runner, models.NodeSpec{}))
}

func TestResolveFallsBackToUnknown(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{}}
	require.Equal(t, models.ProfileUnknown, Resolve(context.Background(), runner, models.NodeSpec{Host: "10.0.0.9"}))
}
