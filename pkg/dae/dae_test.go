package dae

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocOffsetsAreContiguous(t *testing.T) {
	d := New()

	s1 := d.AllocState(3)
	s2 := d.AllocState(2)
	a1 := d.AllocAlgeb(4)

	assert.Equal(t, 0, s1)
	assert.Equal(t, 3, s2)
	assert.Equal(t, 0, a1)
	assert.Equal(t, 5, d.NX)
	assert.Equal(t, 4, d.NY)
	assert.Len(t, d.X, 5)
	assert.Len(t, d.F, 5)
	assert.Len(t, d.Tf, 5)
	assert.Len(t, d.Y, 4)
	assert.Len(t, d.G, 4)
}

func TestKindSelectsJacobianBlock(t *testing.T) {
	assert.Equal(t, Fx, Kind(StateVar, StateVar))
	assert.Equal(t, Fy, Kind(StateVar, AlgebVar))
	assert.Equal(t, Gx, Kind(AlgebVar, StateVar))
	assert.Equal(t, Gy, Kind(AlgebVar, AlgebVar))
}

func TestVarAccessByDomain(t *testing.T) {
	d := New()
	d.AllocState(2)
	d.AllocAlgeb(2)

	x := &Var{Name: "x", Domain: StateVar, Addr: []int{0, 1}}
	y := &Var{Name: "y", Domain: AlgebVar, Addr: []int{0, 1}}

	x.Set(d, 1, 3.5)
	y.Set(d, 0, -2.0)
	assert.Equal(t, 3.5, x.Val(d, 1))
	assert.Equal(t, -2.0, y.Val(d, 0))
	assert.Equal(t, 3.5, d.X[1])
	assert.Equal(t, -2.0, d.Y[0])

	x.AddEq(d, 1, 1.0)
	x.AddEq(d, 1, 0.5)
	y.AddEq(d, 0, -1.0)
	assert.Equal(t, 1.5, d.F[1])
	assert.Equal(t, -1.0, d.G[0])
}

func TestClearJacKeepsConstantTriples(t *testing.T) {
	d := New()
	d.AllocState(1)
	d.AllocAlgeb(1)

	d.AddJac0(Fx, 2.0, 0, 0)
	d.AddJac(Gy, -1.0, 0, 0)

	require.Len(t, d.ConstTriples(Fx), 1)
	require.Len(t, d.IterTriples(Gy), 1)

	d.ClearJac()
	assert.Len(t, d.ConstTriples(Fx), 1)
	assert.Empty(t, d.IterTriples(Gy))
}

func TestSetTfMarksDegenerateRow(t *testing.T) {
	d := New()
	d.AllocState(2)

	assert.Equal(t, 1.0, d.Tf[0])
	d.SetTf(1, 0)
	assert.Equal(t, 0.0, d.Tf[1])
}

func TestMatrixSolvesSmallSystem(t *testing.T) {
	// 2x2: [2 0; 0 4] * x = [2; 8]
	m, err := NewMatrix(2)
	require.NoError(t, err)
	defer m.Destroy()

	m.AddElement(1, 1, 2.0)
	m.AddElement(2, 2, 4.0)
	m.AddRHS(1, 2.0)
	m.AddRHS(2, 8.0)

	require.NoError(t, m.Solve())
	sol := m.Solution()
	assert.InDelta(t, 1.0, sol[1], 1e-12)
	assert.InDelta(t, 2.0, sol[2], 1e-12)
}

func TestMatrixIgnoresOutOfRangeStamps(t *testing.T) {
	m, err := NewMatrix(2)
	require.NoError(t, err)
	defer m.Destroy()

	m.AddElement(0, 1, 1.0)
	m.AddElement(3, 1, 1.0)
	m.AddRHS(0, 1.0)
	m.AddRHS(3, 1.0)

	m.AddElement(1, 1, 1.0)
	m.AddElement(2, 2, 1.0)
	require.NoError(t, m.Solve())
	sol := m.Solution()
	assert.InDelta(t, 0.0, sol[1], 1e-12)
	assert.InDelta(t, 0.0, sol[2], 1e-12)
}
