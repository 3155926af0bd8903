package analysis

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/KhaledAleikish/andes/pkg/dae"
	"github.com/KhaledAleikish/andes/pkg/system"
)

// stateDiagGmin is a small conductance loaded onto the state-block diagonal
// so that free modes (a machine angle with no network coupling) do not make
// the steady-state Jacobian singular.
const stateDiagGmin = 1e-6

// OperatingPoint solves f(x, y) = 0, g(x, y) = 0 by full Newton iteration,
// confirming (and if needed refining) the initialization produced by Setup.
type OperatingPoint struct {
	BaseAnalysis
	Iterations int
}

func NewOP() *OperatingPoint {
	return &OperatingPoint{BaseAnalysis: *NewBaseAnalysis()}
}

func (op *OperatingPoint) Setup(sys *system.System) error {
	op.System = sys
	return nil
}

func (op *OperatingPoint) Execute() error {
	sys := op.System
	if sys == nil {
		return fmt.Errorf("system not set")
	}
	d := sys.DAE

	mat, err := dae.NewMatrix(d.NX + d.NY)
	if err != nil {
		return err
	}
	defer mat.Destroy()

	for iter := 0; iter < op.convergence.maxIter; iter++ {
		sys.EvalFG()
		mis := maxMismatch(d)
		logrus.Debugf("operating point iteration %d: mismatch %.3e", iter, mis)
		if mis < op.convergence.tol {
			op.Iterations = iter
			op.StoreTimeResult(0, sys.Snapshot())
			return nil
		}

		sys.EvalJac()
		mat.Clear()

		for _, t := range d.ConstTriples(dae.Fx) {
			mat.AddElement(1+t.Row, 1+t.Col, t.V)
		}
		for _, t := range d.IterTriples(dae.Fx) {
			mat.AddElement(1+t.Row, 1+t.Col, t.V)
		}
		for _, t := range d.ConstTriples(dae.Fy) {
			mat.AddElement(1+t.Row, 1+d.NX+t.Col, t.V)
		}
		for _, t := range d.IterTriples(dae.Fy) {
			mat.AddElement(1+t.Row, 1+d.NX+t.Col, t.V)
		}
		loadAlgeb(mat, d)

		for i := 0; i < d.NX; i++ {
			mat.AddElement(1+i, 1+i, -stateDiagGmin)
		}

		for i := 0; i < d.NX; i++ {
			mat.AddRHS(1+i, -d.F[i])
		}
		for i := 0; i < d.NY; i++ {
			mat.AddRHS(1+d.NX+i, -d.G[i])
		}

		if err := mat.Solve(); err != nil {
			return fmt.Errorf("operating point solve: %v", err)
		}
		applyUpdate(d, mat.Solution())
	}

	return fmt.Errorf("operating point failed to converge in %d iterations",
		op.convergence.maxIter)
}
