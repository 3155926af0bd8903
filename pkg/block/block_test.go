package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhaledAleikish/andes/pkg/dae"
)

func newState(d *dae.DAE, name string) *dae.Var {
	base := d.AllocState(1)
	return &dae.Var{Name: name, Domain: dae.StateVar, Addr: []int{base}}
}

func newAlgeb(d *dae.DAE, name string) *dae.Var {
	base := d.AllocAlgeb(1)
	return &dae.Var{Name: name, Domain: dae.AlgebVar, Addr: []int{base}}
}

var ones = []float64{1.0}

func TestGainInitResidualZero(t *testing.T) {
	d := dae.New()
	in := newAlgeb(d, "in")
	y := newAlgeb(d, "y")

	b := NewGain("g", in, y)
	b.Setup([]float64{2.5}, ones)

	in.Set(d, 0, 0.4)
	b.SetIC(d)
	assert.InDelta(t, 1.0, y.Val(d, 0), 1e-12)

	b.GCall(d)
	assert.InDelta(t, 0.0, d.G[y.At(0)], 1e-12)
}

func TestLagZeroTimeConstantRejected(t *testing.T) {
	d := dae.New()
	in := newAlgeb(d, "in")
	x := newState(d, "x")

	b := NewLag("lag", in, x, false)
	err := b.Setup(d, ones, []float64{0}, ones)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "time constant is zero")
}

func TestLagZeroTimeConstantPassThrough(t *testing.T) {
	d := dae.New()
	in := newAlgeb(d, "in")
	x := newState(d, "x")

	b := NewLag("lag", in, x, true)
	require.NoError(t, b.Setup(d, []float64{3.0}, []float64{0}, ones))

	// degenerate row is enforced algebraically
	assert.Equal(t, 0.0, d.Tf[x.At(0)])

	in.Set(d, 0, 0.5)
	b.SetIC(d)
	assert.InDelta(t, 1.5, x.Val(d, 0), 1e-12)

	b.FCall(d)
	assert.InDelta(t, 0.0, d.F[x.At(0)], 1e-12)
}

func TestLagInitResidualZero(t *testing.T) {
	d := dae.New()
	in := newAlgeb(d, "in")
	x := newState(d, "x")

	b := NewLag("lag", in, x, false)
	require.NoError(t, b.Setup(d, []float64{2.0}, []float64{0.3}, ones))
	assert.Equal(t, 1.0, d.Tf[x.At(0)])

	in.Set(d, 0, 0.7)
	b.SetIC(d)
	assert.InDelta(t, 1.4, x.Val(d, 0), 1e-12)

	b.FCall(d)
	assert.InDelta(t, 0.0, d.F[x.At(0)], 1e-12)
}

func TestWashoutInitialOutputIsZero(t *testing.T) {
	d := dae.New()
	in := newAlgeb(d, "in")
	x := newState(d, "x")
	y := newAlgeb(d, "y")

	b := NewWashout("wo", in, x, y, false)
	require.NoError(t, b.Setup(d, []float64{1.5}, []float64{2.0}, ones))

	in.Set(d, 0, 0.8)
	b.SetIC(d)
	assert.InDelta(t, 1.2, x.Val(d, 0), 1e-12)
	assert.InDelta(t, 0.0, y.Val(d, 0), 1e-12)

	b.FCall(d)
	b.GCall(d)
	assert.InDelta(t, 0.0, d.F[x.At(0)], 1e-12)
	assert.InDelta(t, 0.0, d.G[y.At(0)], 1e-12)
}

func TestWashoutZeroTimeConstantPassThrough(t *testing.T) {
	d := dae.New()
	in := newAlgeb(d, "in")
	x := newState(d, "x")
	y := newAlgeb(d, "y")

	b := NewWashout("wo", in, x, y, true)
	require.NoError(t, b.Setup(d, []float64{1.5}, []float64{0}, ones))
	assert.Equal(t, 0.0, d.Tf[x.At(0)])

	in.Set(d, 0, 0.8)
	b.SetIC(d)
	assert.InDelta(t, 0.0, x.Val(d, 0), 1e-12)
	assert.InDelta(t, 1.2, y.Val(d, 0), 1e-12)

	b.FCall(d)
	b.GCall(d)
	assert.InDelta(t, 0.0, d.F[x.At(0)], 1e-12)
	assert.InDelta(t, 0.0, d.G[y.At(0)], 1e-12)
}

func TestLimiterBoundsValidated(t *testing.T) {
	d := dae.New()
	in := newAlgeb(d, "in")

	b := NewLimiter("lim", in)
	err := b.Setup([]float64{1.0}, []float64{0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lower bound")
}

func TestLimiterFlagsExclusiveAndExhaustive(t *testing.T) {
	d := dae.New()
	in := newAlgeb(d, "in")

	b := NewLimiter("lim", in)
	require.NoError(t, b.Setup([]float64{-0.3}, []float64{0.3}))

	cases := []struct {
		v    float64
		want float64
	}{
		{0.1, 0.1},   // within
		{0.5, 0.3},   // above
		{-0.5, -0.3}, // below
		{0.3, 0.3},   // at the bound counts as within
	}
	for _, tc := range cases {
		in.Set(d, 0, tc.v)
		b.Check(d)
		assert.Equal(t, 1.0, b.Zi[0]+b.Zu[0]+b.Zl[0], "flags must sum to one at v=%g", tc.v)
		assert.InDelta(t, tc.want, b.Val(d, 0), 1e-12, "selected value at v=%g", tc.v)
	}
}
