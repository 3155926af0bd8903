package device_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhaledAleikish/andes/pkg/device"
	"github.com/KhaledAleikish/andes/pkg/system"
)

func TestAddInstanceRejectsUnknownField(t *testing.T) {
	sys := system.New()
	err := sys.Add("Synchronous", "g1", map[string]any{"bogus": 1.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestAddInstanceRejectsDuplicateIndex(t *testing.T) {
	sys := system.New()
	require.NoError(t, sys.Add("Synchronous", "g1", map[string]any{"M": 6.0, "p0": 1.0}))
	err := sys.Add("Synchronous", "g1", map[string]any{"M": 6.0, "p0": 1.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate device index")
}

func TestAddInstanceAssignsAutoIndex(t *testing.T) {
	sys := system.New()
	require.NoError(t, sys.Add("Synchronous", "", map[string]any{"M": 6.0, "p0": 1.0}))

	m, ok := sys.Model("Synchronous")
	require.True(t, ok)
	_, found := m.RowOf("Synchronous_1")
	assert.True(t, found)
}

func TestSetupFailsOnMissingMandatoryParam(t *testing.T) {
	sys := system.New()
	// M is mandatory and never bound
	require.NoError(t, sys.Add("Synchronous", "g1", map[string]any{"p0": 1.0}))

	err := sys.Setup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing mandatory parameter")

	var serr *device.SetupError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "Synchronous", serr.Model)
	assert.Equal(t, "M", serr.Field)
}

func TestSetupFailsOnMissingMandatoryReference(t *testing.T) {
	sys := system.New()
	require.NoError(t, sys.Add("Synchronous", "g1", map[string]any{"M": 6.0, "p0": 1.0}))
	require.NoError(t, sys.Add("TG1", "gov1", map[string]any{
		"R": 0.05, "Ts": 0.1, "Tc": 0.56, "T5": 50.0,
	}))

	err := sys.Setup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing mandatory device reference")
}

func TestOutOfRangeParamClampedWithWarning(t *testing.T) {
	sys := system.New()
	require.NoError(t, sys.Add("Synchronous", "g1", map[string]any{"M": 6.0, "p0": 1.0}))
	require.NoError(t, sys.Add("AVR1", "a1", map[string]any{"gen": "g1"}))
	require.NoError(t, sys.Add("STAB2A", "s1", map[string]any{
		"syn": "g1", "avr": "a1", "T2": 50.0,
	}))

	require.NoError(t, sys.Setup())

	m, ok := sys.Model("STAB2A")
	require.True(t, ok)
	for _, p := range m.Params() {
		if p.Name == "T2" {
			assert.Equal(t, 10.0, p.V[0])
			return
		}
	}
	t.Fatal("no T2 parameter declared")
}
