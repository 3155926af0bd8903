// Package block provides the reusable transfer-function primitives composite
// device models are assembled from. A block does not own global slots: the
// owning model registers the block's state/output variables as its own and
// hands the handles over, so block variables get arena addresses exactly like
// any other declaration.
package block

import (
	"fmt"
	"math"

	"github.com/KhaledAleikish/andes/pkg/dae"
)

// Time constants below this are treated as zero.
const zeroTol = 1e-8

// Gain is the pure algebraic block y = K*u.
type Gain struct {
	Name string
	In   *dae.Var
	Y    *dae.Var

	K []float64
	u []float64
}

func NewGain(name string, in, y *dae.Var) *Gain {
	return &Gain{Name: name, In: in, Y: y}
}

func (b *Gain) Setup(k, u []float64) {
	b.K = k
	b.u = u
}

func (b *Gain) SetIC(d *dae.DAE) {
	for i := range b.K {
		b.Y.Set(d, i, b.u[i]*b.K[i]*b.In.Val(d, i))
	}
}

func (b *Gain) GCall(d *dae.DAE) {
	for i := range b.K {
		b.Y.AddEq(d, i, b.u[i]*b.K[i]*b.In.Val(d, i)-b.Y.Val(d, i))
	}
}

func (b *Gain) Jac0(d *dae.DAE) {
	for i := range b.K {
		d.AddJac0(dae.Gy, -1.0, b.Y.At(i), b.Y.At(i))
		d.AddJac0(dae.Kind(dae.AlgebVar, b.In.Domain), b.u[i]*b.K[i], b.Y.At(i), b.In.At(i))
	}
}

func (b *Gain) Out() *dae.Var { return b.Y }

// Lag is the first-order low-pass block T*dx/dt = K*u - x with output x.
// With zeroOut enabled, a zero time constant degenerates the state row into
// the algebraic constraint x = K*u (instantaneous pass-through). With zeroOut
// disabled a zero time constant is a setup error.
type Lag struct {
	Name    string
	In      *dae.Var
	X       *dae.Var
	zeroOut bool

	K, T  []float64
	u     []float64
	iT    []float64
	zeroT []bool
}

func NewLag(name string, in, x *dae.Var, zeroOut bool) *Lag {
	return &Lag{Name: name, In: in, X: x, zeroOut: zeroOut}
}

func (b *Lag) Setup(d *dae.DAE, k, t, u []float64) error {
	b.K, b.T, b.u = k, t, u
	b.iT = make([]float64, len(t))
	b.zeroT = make([]bool, len(t))

	for i := range t {
		if math.Abs(t[i]) < zeroTol {
			if !b.zeroOut {
				return fmt.Errorf("block %s: time constant is zero on instance %d", b.Name, i)
			}
			b.zeroT[i] = true
			d.SetTf(b.X.At(i), 0)
			continue
		}
		b.iT[i] = 1.0 / t[i]
	}
	return nil
}

func (b *Lag) SetIC(d *dae.DAE) {
	for i := range b.K {
		b.X.Set(d, i, b.u[i]*b.K[i]*b.In.Val(d, i))
	}
}

func (b *Lag) FCall(d *dae.DAE) {
	for i := range b.K {
		if b.zeroT[i] {
			d.F[b.X.At(i)] += b.u[i]*b.K[i]*b.In.Val(d, i) - b.X.Val(d, i)
			continue
		}
		d.F[b.X.At(i)] += b.u[i] * (b.K[i]*b.In.Val(d, i) - b.X.Val(d, i)) * b.iT[i]
	}
}

func (b *Lag) Jac0(d *dae.DAE) {
	inKind := dae.Kind(dae.StateVar, b.In.Domain)
	for i := range b.K {
		if b.zeroT[i] {
			d.AddJac0(dae.Fx, -1.0, b.X.At(i), b.X.At(i))
			d.AddJac0(inKind, b.u[i]*b.K[i], b.X.At(i), b.In.At(i))
			continue
		}
		d.AddJac0(dae.Fx, -b.u[i]*b.iT[i], b.X.At(i), b.X.At(i))
		d.AddJac0(inKind, b.u[i]*b.K[i]*b.iT[i], b.X.At(i), b.In.At(i))
	}
}

func (b *Lag) Out() *dae.Var { return b.X }

// Washout is the first-order high-pass block: same state equation as Lag but
// tapped at y = K*u - x. A zero time constant under zeroOut forces the state
// to zero, so the output passes K*u through instantaneously.
type Washout struct {
	Name    string
	In      *dae.Var
	X       *dae.Var
	Y       *dae.Var
	zeroOut bool

	K, T  []float64
	u     []float64
	iT    []float64
	zeroT []bool
}

func NewWashout(name string, in, x, y *dae.Var, zeroOut bool) *Washout {
	return &Washout{Name: name, In: in, X: x, Y: y, zeroOut: zeroOut}
}

func (b *Washout) Setup(d *dae.DAE, k, t, u []float64) error {
	b.K, b.T, b.u = k, t, u
	b.iT = make([]float64, len(t))
	b.zeroT = make([]bool, len(t))

	for i := range t {
		if math.Abs(t[i]) < zeroTol {
			if !b.zeroOut {
				return fmt.Errorf("block %s: time constant is zero on instance %d", b.Name, i)
			}
			b.zeroT[i] = true
			d.SetTf(b.X.At(i), 0)
			continue
		}
		b.iT[i] = 1.0 / t[i]
	}
	return nil
}

func (b *Washout) SetIC(d *dae.DAE) {
	for i := range b.K {
		if b.zeroT[i] {
			b.X.Set(d, i, 0)
		} else {
			b.X.Set(d, i, b.u[i]*b.K[i]*b.In.Val(d, i))
		}
		b.Y.Set(d, i, b.u[i]*b.K[i]*b.In.Val(d, i)-b.X.Val(d, i))
	}
}

func (b *Washout) FCall(d *dae.DAE) {
	for i := range b.K {
		if b.zeroT[i] {
			d.F[b.X.At(i)] += -b.X.Val(d, i)
			continue
		}
		d.F[b.X.At(i)] += b.u[i] * (b.K[i]*b.In.Val(d, i) - b.X.Val(d, i)) * b.iT[i]
	}
}

func (b *Washout) GCall(d *dae.DAE) {
	for i := range b.K {
		b.Y.AddEq(d, i, b.u[i]*b.K[i]*b.In.Val(d, i)-b.X.Val(d, i)-b.Y.Val(d, i))
	}
}

func (b *Washout) Jac0(d *dae.DAE) {
	fKind := dae.Kind(dae.StateVar, b.In.Domain)
	gKind := dae.Kind(dae.AlgebVar, b.In.Domain)
	for i := range b.K {
		if b.zeroT[i] {
			d.AddJac0(dae.Fx, -1.0, b.X.At(i), b.X.At(i))
		} else {
			d.AddJac0(dae.Fx, -b.u[i]*b.iT[i], b.X.At(i), b.X.At(i))
			d.AddJac0(fKind, b.u[i]*b.K[i]*b.iT[i], b.X.At(i), b.In.At(i))
		}
		d.AddJac0(dae.Gy, -1.0, b.Y.At(i), b.Y.At(i))
		d.AddJac0(dae.Gx, -1.0, b.Y.At(i), b.X.At(i))
		d.AddJac0(gKind, b.u[i]*b.K[i], b.Y.At(i), b.In.At(i))
	}
}

func (b *Washout) Out() *dae.Var { return b.Y }

// Limiter is the three-way algebraic classifier. Exactly one of the
// zero-indicator flags zi/zu/zl is active per instance; downstream equations
// select among {input, upper, lower} with the flags so no hard branch appears
// in the equations themselves.
type Limiter struct {
	Name string
	In   *dae.Var

	Lower, Upper []float64
	Zi, Zu, Zl   []float64
}

func NewLimiter(name string, in *dae.Var) *Limiter {
	return &Limiter{Name: name, In: in}
}

func (b *Limiter) Setup(lower, upper []float64) error {
	for i := range lower {
		if lower[i] > upper[i] {
			return fmt.Errorf("block %s: lower bound %g above upper bound %g on instance %d",
				b.Name, lower[i], upper[i], i)
		}
	}
	b.Lower, b.Upper = lower, upper
	n := len(lower)
	b.Zi = make([]float64, n)
	b.Zu = make([]float64, n)
	b.Zl = make([]float64, n)
	for i := range b.Zi {
		b.Zi[i] = 1
	}
	return nil
}

// Check reclassifies every instance against its bounds. Called at the start
// of each evaluation pass so the flags stay consistent within one iteration.
func (b *Limiter) Check(d *dae.DAE) {
	for i := range b.Zi {
		v := b.In.Val(d, i)
		b.Zi[i], b.Zu[i], b.Zl[i] = 0, 0, 0
		switch {
		case v > b.Upper[i]:
			b.Zu[i] = 1
		case v < b.Lower[i]:
			b.Zl[i] = 1
		default:
			b.Zi[i] = 1
		}
	}
}

// Val returns the flag-selected value for one instance.
func (b *Limiter) Val(d *dae.DAE, i int) float64 {
	return b.Zi[i]*b.In.Val(d, i) + b.Zu[i]*b.Upper[i] + b.Zl[i]*b.Lower[i]
}
