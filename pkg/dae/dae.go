package dae

// Domain tells whether a variable lives in the state vector (differential)
// or the algebraic vector.
type Domain int

const (
	StateVar Domain = iota
	AlgebVar
)

// MatKind names the four Jacobian blocks of the DAE:
// Fx = df/dx, Fy = df/dy, Gx = dg/dx, Gy = dg/dy.
type MatKind int

const (
	Fx MatKind = iota
	Fy
	Gx
	Gy
	numMats
)

// Kind selects the Jacobian block holding d(eq)/d(v) for an equation owned
// by a variable in domain eq and a variable in domain v.
func Kind(eq, v Domain) MatKind {
	switch {
	case eq == StateVar && v == StateVar:
		return Fx
	case eq == StateVar && v == AlgebVar:
		return Fy
	case eq == AlgebVar && v == StateVar:
		return Gx
	default:
		return Gy
	}
}

// Triple is one sparse Jacobian entry (equation row, variable column, value).
type Triple struct {
	Row, Col int
	V        float64
}

// Var is a handle into the shared vectors: a named variable with one arena
// address per device instance. Addresses are assigned once at setup and are
// stable for the lifetime of the simulation.
type Var struct {
	Name   string
	Domain Domain
	Addr   []int
}

func (v *Var) At(i int) int { return v.Addr[i] }

func (v *Var) Val(d *DAE, i int) float64 {
	if v.Domain == StateVar {
		return d.X[v.Addr[i]]
	}
	return d.Y[v.Addr[i]]
}

func (v *Var) Set(d *DAE, i int, val float64) {
	if v.Domain == StateVar {
		d.X[v.Addr[i]] = val
	} else {
		d.Y[v.Addr[i]] = val
	}
}

// AddEq adds into the residual accumulator of this variable's own equation
// row. Contributions are always additive so that evaluation order across
// models does not matter.
func (v *Var) AddEq(d *DAE, i int, val float64) {
	if v.Domain == StateVar {
		d.F[v.Addr[i]] += val
	} else {
		d.G[v.Addr[i]] += val
	}
}

// DAE is the shared arena: state and algebraic value vectors, the residual
// accumulators models write into, and the Jacobian triple stores. It owns
// offset allocation; models hold Var handles into it.
type DAE struct {
	NX, NY int

	X []float64 // state values
	Y []float64 // algebraic values
	F []float64 // differential residuals (dx/dt expressions)
	G []float64 // algebraic residuals

	// Tf is the leading coefficient of each state row. 1 is a normal
	// differential row. 0 marks a degenerate zero-time-constant row whose
	// residual is enforced algebraically by the integrator.
	Tf []float64

	jac0 [numMats][]Triple // constant entries, registered once after init
	jac  [numMats][]Triple // value-dependent entries, rebuilt every iteration
}

func New() *DAE {
	return &DAE{}
}

// AllocState reserves n consecutive state slots and returns the base offset.
func (d *DAE) AllocState(n int) int {
	base := d.NX
	d.NX += n
	d.X = append(d.X, make([]float64, n)...)
	d.F = append(d.F, make([]float64, n)...)
	for i := 0; i < n; i++ {
		d.Tf = append(d.Tf, 1.0)
	}
	return base
}

// AllocAlgeb reserves n consecutive algebraic slots and returns the base offset.
func (d *DAE) AllocAlgeb(n int) int {
	base := d.NY
	d.NY += n
	d.Y = append(d.Y, make([]float64, n)...)
	d.G = append(d.G, make([]float64, n)...)
	return base
}

// SetTf marks the leading coefficient of one state row.
func (d *DAE) SetTf(addr int, v float64) {
	d.Tf[addr] = v
}

// ClearFG zeroes both residual accumulators before an evaluation pass.
func (d *DAE) ClearFG() {
	for i := range d.F {
		d.F[i] = 0
	}
	for i := range d.G {
		d.G[i] = 0
	}
}

// ClearJac drops the value-dependent triples. Constant triples persist.
func (d *DAE) ClearJac() {
	for k := range d.jac {
		d.jac[k] = d.jac[k][:0]
	}
}

// AddJac0 registers a constant Jacobian entry. Called once per model from Jac0.
func (d *DAE) AddJac0(k MatKind, v float64, row, col int) {
	d.jac0[k] = append(d.jac0[k], Triple{Row: row, Col: col, V: v})
}

// AddJac registers a value-dependent Jacobian entry for the current iteration.
func (d *DAE) AddJac(k MatKind, v float64, row, col int) {
	d.jac[k] = append(d.jac[k], Triple{Row: row, Col: col, V: v})
}

// ConstTriples returns the constant triples of one Jacobian block.
func (d *DAE) ConstTriples(k MatKind) []Triple {
	return d.jac0[k]
}

// IterTriples returns the value-dependent triples of one Jacobian block.
func (d *DAE) IterTriples(k MatKind) []Triple {
	return d.jac[k]
}
