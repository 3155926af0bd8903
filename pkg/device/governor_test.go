package device_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhaledAleikish/andes/pkg/device"
	"github.com/KhaledAleikish/andes/pkg/system"
)

func maxResidual(sys *system.System) float64 {
	worst := 0.0
	for _, v := range sys.DAE.F {
		if math.Abs(v) > worst {
			worst = math.Abs(v)
		}
	}
	for _, v := range sys.DAE.G {
		if math.Abs(v) > worst {
			worst = math.Abs(v)
		}
	}
	return worst
}

func TestTG1InitializesConsistently(t *testing.T) {
	sys := system.New()
	require.NoError(t, sys.Add("Synchronous", "g1", map[string]any{"M": 6.0, "p0": 1.0}))
	require.NoError(t, sys.Add("TG1", "gov1", map[string]any{
		"gen": "g1", "R": 0.05,
		"Ts": 0.1, "Tc": 0.56, "T3": 0.0, "T4": 12.0, "T5": 50.0,
	}))
	require.NoError(t, sys.Setup())

	snap := sys.Snapshot()
	assert.InDelta(t, 1.0, snap["TG1.gov1.xg1"], 1e-12)
	assert.InDelta(t, 1.0, snap["TG1.gov1.xg2"], 1e-12) // k2 = 1 - T3/Tc = 1
	assert.InDelta(t, 0.76, snap["TG1.gov1.xg3"], 1e-12)
	assert.InDelta(t, 1.0, snap["TG1.gov1.pout"], 1e-12)

	sys.EvalFG()
	assert.Less(t, maxResidual(sys), 1e-8, "initialization must satisfy all equations")
}

func TestTG2ClampsInitialPowerAboveLimit(t *testing.T) {
	sys := system.New()
	require.NoError(t, sys.Add("Synchronous", "g1", map[string]any{"M": 6.0, "p0": 1.05}))
	require.NoError(t, sys.Add("TG2", "gov1", map[string]any{
		"gen": "g1", "R": 0.05, "T2": 10.0, "pmax": 1.0,
	}))
	require.NoError(t, sys.Setup())

	snap := sys.Snapshot()
	assert.InDelta(t, 1.0, snap["TG2.gov1.pout"], 1e-12)

	sys.EvalFG()
	assert.Less(t, maxResidual(sys), 1e-8)
}

func TestZeroDroopIsFatal(t *testing.T) {
	sys := system.New()
	require.NoError(t, sys.Add("Synchronous", "g1", map[string]any{"M": 6.0, "p0": 1.0}))
	require.NoError(t, sys.Add("TG2", "gov1", map[string]any{
		"gen": "g1", "R": 0.0, "T2": 10.0,
	}))

	err := sys.Setup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be nonzero")

	var serr *device.SetupError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "R", serr.Field)
}

func TestEvalFGIsRepeatable(t *testing.T) {
	sys := system.New()
	require.NoError(t, sys.Add("Synchronous", "g1", map[string]any{"M": 6.0, "p0": 1.0}))
	require.NoError(t, sys.Add("TG2", "gov1", map[string]any{
		"gen": "g1", "R": 0.05, "T2": 10.0,
	}))
	require.NoError(t, sys.Setup())

	sys.EvalFG()
	first := append([]float64(nil), sys.DAE.G...)
	sys.EvalFG()
	assert.Equal(t, first, sys.DAE.G, "accumulators must be cleared before each pass")
}

func TestDisturbanceUnbalancesMachineEquation(t *testing.T) {
	sys := system.New()
	require.NoError(t, sys.Add("Synchronous", "g1", map[string]any{"M": 6.0, "p0": 1.0}))
	require.NoError(t, sys.Setup())

	sys.EvalFG()
	require.Less(t, maxResidual(sys), 1e-8)

	require.NoError(t, sys.ApplyDisturbance("Synchronous", "g1", "pe0", 1.1))
	sys.EvalFG()
	assert.Greater(t, maxResidual(sys), 1e-3, "load step must show up in the residuals")
}
