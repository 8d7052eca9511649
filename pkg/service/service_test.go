package service

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/quorum-rescue/pkg/command/commandtest"
	"github.com/cuemby/quorum-rescue/pkg/config"
	"github.com/cuemby/quorum-rescue/pkg/errdefs"
	"github.com/cuemby/quorum-rescue/pkg/retry"
	"github.com/cuemby/quorum-rescue/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGate struct {
	err    error
	calls  int
	policy retry.Policy
}

func (g *fakeGate) CheckWritable(ctx context.Context, path string, policy retry.Policy) error {
	g.calls++
	g.policy = policy
	return g.err
}

func newTestController(runner *commandtest.Fake, gate *fakeGate) (*Controller, *[]time.Duration) {
	c := NewController(runner, gate, config.Default().Services, retry.DefaultPoll)
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	return c, &slept
}

func TestFullLifecycle(t *testing.T) {
	runner := commandtest.NewFake()
	gate := &fakeGate{}
	c, slept := newTestController(runner, gate)
	ctx := context.Background()

	assert.Equal(t, types.ServiceStateNormal, c.State())

	require.NoError(t, c.Stop(ctx))
	assert.Equal(t, types.ServiceStateStopped, c.State())

	require.NoError(t, c.StartLocal(ctx, "/etc/pve/corosync.conf"))
	assert.Equal(t, types.ServiceStateLocalAuthoritative, c.State())
	assert.Equal(t, 1, gate.calls)
	assert.Equal(t, retry.DefaultPoll, gate.policy)

	require.NoError(t, c.ResumeNormal(ctx))
	assert.Equal(t, types.ServiceStateNormal, c.State())

	assert.Equal(t, []string{
		"systemctl stop corosync",
		"systemctl stop pve-cluster",
		"pmxcfs -l",
		"killall -9 pmxcfs",
		"systemctl start pve-cluster",
		"systemctl start corosync",
	}, runner.Calls())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestStop_ToleratesFailures(t *testing.T) {
	runner := commandtest.NewFake().
		Fail("systemctl stop corosync", 5, "Unit corosync.service not loaded.").
		Fail("systemctl stop pve-cluster", 5, "")
	c, _ := newTestController(runner, &fakeGate{})

	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, types.ServiceStateStopped, c.State())
}

func TestStartLocal_TimeoutStaysLocal(t *testing.T) {
	runner := commandtest.NewFake()
	gate := &fakeGate{err: errdefs.New(errdefs.KindWriteTimeout, "not writable", "")}
	c, _ := newTestController(runner, gate)
	ctx := context.Background()

	require.NoError(t, c.Stop(ctx))
	err := c.StartLocal(ctx, "/etc/pve/corosync.conf")
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindWriteTimeout))
	assert.Equal(t, types.ServiceStateLocalAuthoritative, c.State())
	assert.False(t, runner.Called("killall -9 pmxcfs"))
	assert.False(t, runner.Called("systemctl start pve-cluster"))
}

func TestStartLocal_StartExitStatusIgnored(t *testing.T) {
	runner := commandtest.NewFake().Fail("pmxcfs -l", 255, "already running")
	c, _ := newTestController(runner, &fakeGate{})
	ctx := context.Background()

	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.StartLocal(ctx, "/etc/pve/corosync.conf"))
	assert.Equal(t, types.ServiceStateLocalAuthoritative, c.State())
}

func TestResumeNormal_StartFailure(t *testing.T) {
	runner := commandtest.NewFake().Fail("systemctl start corosync", 1, "Job for corosync.service failed")
	c, _ := newTestController(runner, &fakeGate{})
	ctx := context.Background()

	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.StartLocal(ctx, "/etc/pve/corosync.conf"))

	err := c.ResumeNormal(ctx)
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindServiceTransitionFailed))
	assert.Contains(t, errdefs.HintOf(err), "journalctl -u corosync")
	assert.NotEqual(t, types.ServiceStateNormal, c.State())
}

func TestIllegalTransitions(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(commandtest.NewFake(), &fakeGate{})

	assert.True(t, errdefs.IsKind(c.StartLocal(ctx, "/x"), errdefs.KindServiceTransitionFailed))
	assert.True(t, errdefs.IsKind(c.ResumeNormal(ctx), errdefs.KindServiceTransitionFailed))

	require.NoError(t, c.Stop(ctx))
	assert.True(t, errdefs.IsKind(c.Stop(ctx), errdefs.KindServiceTransitionFailed))
	assert.True(t, errdefs.IsKind(c.RestartMembership(ctx), errdefs.KindServiceTransitionFailed))
}

func TestRestartMembership(t *testing.T) {
	runner := commandtest.NewFake()
	c, _ := newTestController(runner, &fakeGate{})

	require.NoError(t, c.RestartMembership(context.Background()))
	assert.Equal(t, []string{"systemctl restart corosync"}, runner.Calls())
}

func TestRestartMembership_Failure(t *testing.T) {
	runner := commandtest.NewFake().Fail("systemctl restart corosync", 1, "failed")
	c, _ := newTestController(runner, &fakeGate{})

	err := c.RestartMembership(context.Background())
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindServiceTransitionFailed))
	assert.Contains(t, errdefs.HintOf(err), "journalctl -u corosync")
}
