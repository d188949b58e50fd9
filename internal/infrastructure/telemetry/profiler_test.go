package telemetry_test

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/telemetry"
	"go.uber.org/zap/zaptest"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_RequiresAddressAndName(t *testing.T) {
	_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: true, ApplicationName: "school-billing"}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "server address")

	_, err = telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: true, ServerAddress: "http://pyroscope:4040"}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "application name")
}

func TestParseProfileTypes(t *testing.T) {
	types, err := telemetry.ParseProfileTypes(nil)
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{
		pyroscope.ProfileCPU, pyroscope.ProfileInuseObjects, pyroscope.ProfileInuseSpace,
	}, types)

	types, err = telemetry.ParseProfileTypes([]string{" CPU ", "mutex"})
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{
		pyroscope.ProfileCPU, pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration,
	}, types)

	_, err = telemetry.ParseProfileTypes([]string{"heap"})
	assert.ErrorContains(t, err, `"heap"`)
}

func TestProfileLedgerOperation(t *testing.T) {
	called := false
	telemetry.ProfileLedgerOperation(context.Background(), "refund.process", strings.Repeat("t", 200), func(ctx context.Context) {
		called = true
		op, ok := pprof.Label(ctx, "operation")
		assert.True(t, ok)
		assert.Equal(t, "refund.process", op)
		tenant, _ := pprof.Label(ctx, "tenant_id")
		assert.Len(t, tenant, 128)
	})
	assert.True(t, called)

	telemetry.ProfileLedgerOperation(context.Background(), "", "", func(ctx context.Context) {
		_, ok := pprof.Label(ctx, "operation")
		assert.False(t, ok)
	})
}
