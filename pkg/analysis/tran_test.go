package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhaledAleikish/andes/pkg/analysis"
	"github.com/KhaledAleikish/andes/pkg/system"
)

func newMachineWithGovernor(t *testing.T) *system.System {
	t.Helper()
	sys := system.New()
	require.NoError(t, sys.Add("Synchronous", "g1", map[string]any{"M": 6.0, "p0": 1.0}))
	require.NoError(t, sys.Add("TG2", "gov1", map[string]any{
		"gen": "g1", "R": 0.05, "T1": 0.2, "T2": 2.0, "pmax": 1.2,
	}))
	require.NoError(t, sys.Setup())
	return sys
}

func TestOperatingPointConfirmsInitialization(t *testing.T) {
	sys := newMachineWithGovernor(t)

	op := analysis.NewOP()
	require.NoError(t, op.Setup(sys))
	require.NoError(t, op.Execute())

	// a consistent initialization converges without any Newton update
	assert.Equal(t, 0, op.Iterations)

	results := op.GetResults()
	require.Len(t, results["TIME"], 1)
	assert.InDelta(t, 1.0, results["Synchronous.g1.omega"][0], 1e-12)
}

func TestTransientHoldsSteadyStateWithoutEvents(t *testing.T) {
	sys := newMachineWithGovernor(t)

	tr := analysis.NewTransient(2.0, 0.05)
	require.NoError(t, tr.Setup(sys))
	require.NoError(t, tr.Execute())

	omega := tr.GetResults()["Synchronous.g1.omega"]
	require.NotEmpty(t, omega)
	for _, w := range omega {
		assert.InDelta(t, 1.0, w, 1e-6)
	}
}

func TestLoadStepFollowsDroop(t *testing.T) {
	sys := newMachineWithGovernor(t)

	tr := analysis.NewTransient(30.0, 0.05)
	tr.SetEvents([]analysis.Event{
		{Time: 1.0, Model: "Synchronous", Idx: "g1", Field: "pe0", Value: 1.1},
	})
	require.NoError(t, tr.Setup(sys))
	require.NoError(t, tr.Execute())

	results := tr.GetResults()
	omega := results["Synchronous.g1.omega"]
	pout := results["TG2.gov1.pout"]
	require.NotEmpty(t, omega)
	require.NotEmpty(t, pout)

	minOmega := omega[0]
	for _, w := range omega {
		if w < minOmega {
			minOmega = w
		}
	}
	assert.Less(t, minOmega, 0.9999, "frequency must dip after the load step")

	// droop equilibrium: pout = pe0, omega = wref0 - R*(pout - pm0)
	last := len(omega) - 1
	assert.InDelta(t, 0.995, omega[last], 1e-3)
	assert.InDelta(t, 1.1, pout[last], 1e-2)
}
