// Package analysis hosts the numerical drivers: the operating-point Newton
// solve that confirms a consistent initialization, and the implicit
// trapezoidal time-domain integration. The drivers own the iteration loops;
// the models only contribute residuals and Jacobian entries.
package analysis

import (
	"math"

	"github.com/KhaledAleikish/andes/pkg/dae"
	"github.com/KhaledAleikish/andes/pkg/system"
)

type Analysis interface {
	Setup(sys *system.System) error
	Execute() error
	GetResults() map[string][]float64
}

type BaseAnalysis struct {
	System  *system.System
	results map[string][]float64 // key: qualified variable name, value: series

	convergence struct {
		maxIter int
		tol     float64
	}
}

func NewBaseAnalysis() *BaseAnalysis {
	ba := &BaseAnalysis{results: make(map[string][]float64)}
	ba.convergence.maxIter = 50
	ba.convergence.tol = 1e-8
	return ba
}

func (a *BaseAnalysis) StoreTimeResult(time float64, snapshot map[string]float64) {
	a.results["TIME"] = append(a.results["TIME"], time)
	for name, value := range snapshot {
		a.results[name] = append(a.results[name], value)
	}
}

func (a *BaseAnalysis) GetResults() map[string][]float64 {
	return a.results
}

// maxMismatch is the infinity norm over both residual accumulators.
func maxMismatch(d *dae.DAE) float64 {
	worst := 0.0
	for _, v := range d.F {
		if math.Abs(v) > worst {
			worst = math.Abs(v)
		}
	}
	for _, v := range d.G {
		if math.Abs(v) > worst {
			worst = math.Abs(v)
		}
	}
	return worst
}

// loadAlgeb stamps the algebraic-equation block rows (Gx, Gy) into the
// augmented matrix. Rows and columns are 1-based; algebraic rows and columns
// sit after the NX state rows/columns.
func loadAlgeb(mat *dae.Matrix, d *dae.DAE) {
	for _, t := range d.ConstTriples(dae.Gx) {
		mat.AddElement(1+d.NX+t.Row, 1+t.Col, t.V)
	}
	for _, t := range d.IterTriples(dae.Gx) {
		mat.AddElement(1+d.NX+t.Row, 1+t.Col, t.V)
	}
	for _, t := range d.ConstTriples(dae.Gy) {
		mat.AddElement(1+d.NX+t.Row, 1+d.NX+t.Col, t.V)
	}
	for _, t := range d.IterTriples(dae.Gy) {
		mat.AddElement(1+d.NX+t.Row, 1+d.NX+t.Col, t.V)
	}
}

// applyUpdate adds the Newton increment into the shared vectors.
func applyUpdate(d *dae.DAE, sol []float64) {
	for i := 0; i < d.NX; i++ {
		d.X[i] += sol[1+i]
	}
	for i := 0; i < d.NY; i++ {
		d.Y[i] += sol[1+d.NX+i]
	}
}
