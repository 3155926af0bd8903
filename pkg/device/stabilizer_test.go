package device_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhaledAleikish/andes/pkg/system"
)

func addPSSChain(t *testing.T, sys *system.System, pssFields map[string]any) {
	t.Helper()
	require.NoError(t, sys.Add("Synchronous", "g1", map[string]any{"M": 6.0, "p0": 1.0}))
	require.NoError(t, sys.Add("AVR1", "a1", map[string]any{"gen": "g1"}))

	fields := map[string]any{"syn": "g1", "avr": "a1"}
	for k, v := range pssFields {
		fields[k] = v
	}
	require.NoError(t, sys.Add("STAB2A", "s1", fields))
}

func TestSTAB2AInitializesWithZeroOutput(t *testing.T) {
	sys := system.New()
	addPSSChain(t, sys, map[string]any{"T2": 2.0, "K2": 1.0})
	require.NoError(t, sys.Setup())

	snap := sys.Snapshot()
	// washout output is zero at steady state, so the whole chain rests at zero
	assert.InDelta(t, 0.0, snap["STAB2A.s1.WO_y"], 1e-12)
	assert.InDelta(t, 0.0, snap["STAB2A.s1.V1"], 1e-12)
	assert.InDelta(t, 0.0, snap["STAB2A.s1.vsout"], 1e-12)
	assert.InDelta(t, 0.0, snap["AVR1.a1.xe"], 1e-12)

	sys.EvalFG()
	assert.Less(t, maxResidual(sys), 1e-8)
}

func TestSTAB2ARejectsZeroWashoutTimeConstant(t *testing.T) {
	sys := system.New()
	addPSSChain(t, sys, map[string]any{"T2": 0.0})

	err := sys.Setup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "time constant is zero")
}

func TestSTAB2AZeroLagStagesPassThrough(t *testing.T) {
	sys := system.New()
	addPSSChain(t, sys, map[string]any{"T2": 2.0, "T3": 0.0, "T5": 0.0})
	require.NoError(t, sys.Setup())

	snap := sys.Snapshot()
	assert.InDelta(t, 0.0, snap["STAB2A.s1.vsout"], 1e-12)

	sys.EvalFG()
	assert.Less(t, maxResidual(sys), 1e-8)
}
