package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/KhaledAleikish/andes/pkg/dae"
	"github.com/KhaledAleikish/andes/pkg/system"
)

// Event is a timed step change applied to one model service during a run.
type Event struct {
	Time  float64
	Model string
	Idx   string
	Field string
	Value float64
}

// Transient integrates the DAE with the implicit trapezoidal method, one
// Newton solve per step, halving the step on non-convergence down to a
// minimum step.
type Transient struct {
	BaseAnalysis
	op *OperatingPoint

	time     float64
	stopTime float64
	timeStep float64
	maxStep  float64
	minStep  float64

	events []Event
	xprev  []float64
	yprev  []float64
	fprev  []float64
}

func NewTransient(tStop, tStep float64) *Transient {
	return &Transient{
		BaseAnalysis: *NewBaseAnalysis(),
		op:           NewOP(),
		stopTime:     tStop,
		timeStep:     tStep,
		maxStep:      tStep,
		minStep:      tStep / 50.0,
	}
}

func (tr *Transient) SetEvents(events []Event) {
	tr.events = append([]Event(nil), events...)
	sort.Slice(tr.events, func(i, j int) bool { return tr.events[i].Time < tr.events[j].Time })
}

func (tr *Transient) Setup(sys *system.System) error {
	tr.System = sys

	if err := tr.op.Setup(sys); err != nil {
		return err
	}
	if err := tr.op.Execute(); err != nil {
		return fmt.Errorf("operating point analysis error: %v", err)
	}
	return nil
}

func (tr *Transient) Execute() error {
	sys := tr.System
	if sys == nil {
		return fmt.Errorf("system not set")
	}
	d := sys.DAE

	mat, err := dae.NewMatrix(d.NX + d.NY)
	if err != nil {
		return err
	}
	defer mat.Destroy()

	tr.StoreTimeResult(0, sys.Snapshot())
	tr.rotateHistory(d)

	h := tr.timeStep
	nextEvent := 0

	for tr.time < tr.stopTime {
		if nextEvent < len(tr.events) && tr.events[nextEvent].Time <= tr.time+h {
			ev := tr.events[nextEvent]
			if err := sys.ApplyDisturbance(ev.Model, ev.Idx, ev.Field, ev.Value); err != nil {
				return fmt.Errorf("applying event at t=%g: %v", ev.Time, err)
			}
			// re-evaluate the step history under the new condition
			tr.rotateHistory(d)
			nextEvent++
		}

		nextTime := tr.time + h
		if nextTime > tr.stopTime {
			nextTime = tr.stopTime
			h = nextTime - tr.time
		}

		for {
			err := tr.doNRiter(mat, d, h)
			if err == nil {
				break
			}
			if h > tr.minStep {
				tr.restoreState(d)
				h /= 2
				nextTime = tr.time + h
				logrus.Debugf("step rejected at t=%g, retrying with h=%g", tr.time, h)
				continue
			}
			return fmt.Errorf("failed to converge at t=%g: %v", tr.time, err)
		}

		tr.time = nextTime
		tr.rotateHistory(d)
		tr.StoreTimeResult(tr.time, sys.Snapshot())

		if h < tr.maxStep {
			h *= 1.2
			if h > tr.maxStep {
				h = tr.maxStep
			}
		}
	}

	return nil
}

// doNRiter performs the Newton iteration for one trapezoidal step of size h.
func (tr *Transient) doNRiter(mat *dae.Matrix, d *dae.DAE, h float64) error {
	sys := tr.System

	for iter := 0; iter < tr.convergence.maxIter; iter++ {
		sys.EvalFG()

		worst := 0.0
		q := make([]float64, d.NX)
		for i := 0; i < d.NX; i++ {
			if d.Tf[i] == 0 {
				q[i] = d.F[i]
			} else {
				q[i] = d.Tf[i]*(d.X[i]-tr.xprev[i]) - 0.5*h*(d.F[i]+tr.fprev[i])
			}
			if math.Abs(q[i]) > worst {
				worst = math.Abs(q[i])
			}
		}
		for i := 0; i < d.NY; i++ {
			if math.Abs(d.G[i]) > worst {
				worst = math.Abs(d.G[i])
			}
		}
		if worst < tr.convergence.tol {
			return nil
		}

		sys.EvalJac()
		mat.Clear()

		// state rows: Tf*I - h/2*[Fx Fy], degenerate rows stamped plain
		for i := 0; i < d.NX; i++ {
			if d.Tf[i] != 0 {
				mat.AddElement(1+i, 1+i, d.Tf[i])
			}
		}
		stampF := func(t dae.Triple, colOffset int) {
			coef := t.V
			if d.Tf[t.Row] != 0 {
				coef = -0.5 * h * t.V
			}
			mat.AddElement(1+t.Row, 1+colOffset+t.Col, coef)
		}
		for _, t := range d.ConstTriples(dae.Fx) {
			stampF(t, 0)
		}
		for _, t := range d.IterTriples(dae.Fx) {
			stampF(t, 0)
		}
		for _, t := range d.ConstTriples(dae.Fy) {
			stampF(t, d.NX)
		}
		for _, t := range d.IterTriples(dae.Fy) {
			stampF(t, d.NX)
		}
		loadAlgeb(mat, d)

		for i := 0; i < d.NX; i++ {
			mat.AddRHS(1+i, -q[i])
		}
		for i := 0; i < d.NY; i++ {
			mat.AddRHS(1+d.NX+i, -d.G[i])
		}

		if err := mat.Solve(); err != nil {
			return fmt.Errorf("matrix solve error: %v", err)
		}
		applyUpdate(d, mat.Solution())
	}

	return fmt.Errorf("failed to converge in %d iterations", tr.convergence.maxIter)
}

// rotateHistory captures the accepted state and its derivatives as the
// previous-step terms of the next trapezoidal residual.
func (tr *Transient) rotateHistory(d *dae.DAE) {
	if tr.xprev == nil {
		tr.xprev = make([]float64, d.NX)
		tr.yprev = make([]float64, d.NY)
		tr.fprev = make([]float64, d.NX)
	}
	copy(tr.xprev, d.X)
	copy(tr.yprev, d.Y)
	tr.System.EvalFG()
	copy(tr.fprev, d.F)
}

// restoreState rewinds the shared vectors to the last accepted step after a
// rejected Newton solve.
func (tr *Transient) restoreState(d *dae.DAE) {
	copy(d.X, tr.xprev)
	copy(d.Y, tr.yprev)
}
