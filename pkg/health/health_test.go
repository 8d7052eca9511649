package health

import (
	"bytes"
	"context"
	"testing"

	"github.com/cuemby/quorum-rescue/pkg/command"
	"github.com/cuemby/quorum-rescue/pkg/command/commandtest"
	"github.com/cuemby/quorum-rescue/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pvecmQuorate = `Cluster information
-------------------
Name:             lab
Config Version:   4
Transport:        knet
Secure auth:      on

Quorum information
------------------
Date:             Mon Oct 19 09:00:00 2026
Quorum provider:  corosync_votequorum
Nodes:            1
Node ID:          0x00000001
Ring ID:          1.5
Quorate:          Yes
`

func TestParseQuorate(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		wantQuorate bool
		wantFound   bool
	}{
		{"quorate", pvecmQuorate, true, true},
		{"not quorate", "Quorate:          No\n", false, true},
		{"activity blocked", "Quorate: No\nActivity blocked\n", false, true},
		{"no line", "Cannot initialize CMAP service\n", false, false},
		{"empty", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quorate, found := ParseQuorate(tt.output)
			assert.Equal(t, tt.wantQuorate, quorate)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}

func TestExecChecker(t *testing.T) {
	runner := commandtest.NewFake().
		Stdout("corosync-quorumtool -s", "Quorate: Yes\n").
		Fail("false", 1, "nope")
	ctx := context.Background()

	ok := NewExecChecker(runner, []string{"corosync-quorumtool", "-s"}).Check(ctx)
	assert.True(t, ok.Healthy)
	assert.Equal(t, "corosync-quorumtool -s", ok.Name)
	assert.Equal(t, "Quorate: Yes", ok.Output)

	bad := NewExecChecker(runner, []string{"false"}).Check(ctx)
	assert.False(t, bad.Healthy)
	assert.Contains(t, bad.Message, "exit status 1")
	assert.Contains(t, bad.Message, "nope")

	empty := NewExecChecker(runner, nil).Check(ctx)
	assert.False(t, empty.Healthy)
	assert.Contains(t, empty.Message, "no command specified")
}

func TestQuorateChecker(t *testing.T) {
	ctx := context.Background()

	runner := commandtest.NewFake().Stdout("pvecm status", pvecmQuorate)
	assert.True(t, NewQuorateChecker(runner, []string{"pvecm", "status"}).Check(ctx).Healthy)

	runner = commandtest.NewFake().Stdout("pvecm status", "Quorate: No\n")
	res := NewQuorateChecker(runner, []string{"pvecm", "status"}).Check(ctx)
	assert.False(t, res.Healthy)
	assert.Equal(t, "node is not quorate", res.Message)

	runner = commandtest.NewFake().Fail("pvecm status", 2, "cannot connect")
	assert.False(t, NewQuorateChecker(runner, []string{"pvecm", "status"}).Check(ctx).Healthy)
}

func TestUnitsChecker(t *testing.T) {
	ctx := context.Background()

	runner := commandtest.NewFake().Stdout("systemctl is-active corosync pve-cluster", "active\nactive\n")
	res := NewUnitsChecker(runner, []string{"systemctl"}, "corosync", "pve-cluster").Check(ctx)
	assert.True(t, res.Healthy)

	runner = commandtest.NewFake().On("systemctl is-active corosync pve-cluster",
		command.Result{ExitCode: 3, Stdout: "failed\nactive\n"})
	res = NewUnitsChecker(runner, []string{"systemctl"}, "corosync", "pve-cluster").Check(ctx)
	assert.False(t, res.Healthy)
	assert.Equal(t, "not active: corosync=failed", res.Message)
}

func TestVerifier_AllHealthy(t *testing.T) {
	runner := commandtest.NewFake().
		Stdout("corosync-quorumtool -s", "Quorate: Yes\n").
		Stdout("pvecm status", pvecmQuorate).
		Stdout("systemctl is-active corosync pve-cluster", "active\nactive\n")

	var out bytes.Buffer
	report := NewVerifier(&out, DefaultCheckers(runner, config.Default())...).Verify(context.Background())

	require.True(t, report.Healthy())
	assert.Len(t, report.Results, 3)
	assert.Contains(t, out.String(), "✓ pvecm status: quorate")
	assert.Contains(t, out.String(), "    Quorate:          Yes")
}

func TestVerifier_AggregatesFailures(t *testing.T) {
	runner := commandtest.NewFake().
		Fail("corosync-quorumtool -s", 1, "Cannot initialize QUORUM service").
		Stdout("pvecm status", "Quorate: No\n").
		Stdout("systemctl is-active corosync pve-cluster", "active\nactive\n")

	var out bytes.Buffer
	report := NewVerifier(&out, DefaultCheckers(runner, config.Default())...).Verify(context.Background())

	require.False(t, report.Healthy())
	assert.Len(t, report.Results, 3, "every check runs even after a failure")
	assert.Contains(t, report.Err.Error(), "corosync-quorumtool -s")
	assert.Contains(t, report.Err.Error(), "pvecm status: node is not quorate")
	assert.Contains(t, out.String(), "2 problem(s)")
}

func TestDefaultCheckers_SkipsEmptyCommands(t *testing.T) {
	cfg := config.Default()
	cfg.Verify.QuorumStatus = nil
	cfg.Verify.ClusterStatus = nil

	checkers := DefaultCheckers(commandtest.NewFake(), cfg)
	require.Len(t, checkers, 1)
	assert.Equal(t, CheckTypeUnits, checkers[0].Type())
}
