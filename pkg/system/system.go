// Package system aggregates device models into one shared DAE: it owns the
// model registry, the add/setup lifecycle, the cross-model lookup service,
// and the batched evaluation drivers the solvers call.
package system

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/KhaledAleikish/andes/pkg/dae"
	"github.com/KhaledAleikish/andes/pkg/device"
)

type varLookup interface {
	VarByName(name string) (*dae.Var, bool)
}

type fieldLookup interface {
	FieldByName(name string) ([]float64, bool)
}

type serviceLookup interface {
	ServiceByName(name string) (*device.Service, bool)
}

type System struct {
	DAE *dae.DAE

	models    map[string]device.Model
	order     []string
	initOrder []device.Model
	setupDone bool
}

// New creates a system with the built-in model table registered.
func New() *System {
	s := &System{
		DAE:    dae.New(),
		models: make(map[string]device.Model),
	}
	s.Register(device.NewSynchronous())
	s.Register(device.NewTG1())
	s.Register(device.NewTG2())
	s.Register(device.NewAVR1())
	s.Register(device.NewSTAB2A())
	return s
}

func (s *System) Register(m device.Model) {
	s.models[m.Name()] = m
	s.order = append(s.order, m.Name())
}

func (s *System) Model(name string) (device.Model, bool) {
	m, ok := s.models[name]
	return m, ok
}

// Add creates one device instance of the named model type. Validation is
// deferred to Setup.
func (s *System) Add(model, idx string, fields map[string]any) error {
	m, ok := s.models[model]
	if !ok {
		return fmt.Errorf("unknown model type %q", model)
	}
	if s.setupDone {
		return fmt.Errorf("cannot add %s <%s>: system already set up", model, idx)
	}
	return m.AddInstance(idx, fields)
}

// RowOf implements device.Context.
func (s *System) RowOf(model, idx string) (int, error) {
	m, ok := s.models[model]
	if !ok {
		return 0, fmt.Errorf("unknown model type %q", model)
	}
	row, ok := m.RowOf(idx)
	if !ok {
		return 0, fmt.Errorf("model %s has no instance %q", model, idx)
	}
	return row, nil
}

// VarOf implements device.Context.
func (s *System) VarOf(model, field string) (*dae.Var, error) {
	m, ok := s.models[model]
	if !ok {
		return nil, fmt.Errorf("unknown model type %q", model)
	}
	vl, ok := m.(varLookup)
	if !ok {
		return nil, fmt.Errorf("model %s exposes no variables", model)
	}
	v, ok := vl.VarByName(field)
	if !ok {
		return nil, fmt.Errorf("model %s has no variable %q", model, field)
	}
	return v, nil
}

// FieldOf implements device.Context.
func (s *System) FieldOf(model, field string) ([]float64, error) {
	m, ok := s.models[model]
	if !ok {
		return nil, fmt.Errorf("unknown model type %q", model)
	}
	fl, ok := m.(fieldLookup)
	if !ok {
		return nil, fmt.Errorf("model %s exposes no fields", model)
	}
	v, ok := fl.FieldByName(field)
	if !ok {
		return nil, fmt.Errorf("model %s has no field %q", model, field)
	}
	return v, nil
}

// Setup finalizes slot allocation, validates every model, initializes them in
// dependency order and registers the constant Jacobian entries. Any failure
// aborts before equation evaluation.
func (s *System) Setup() error {
	if s.setupDone {
		return fmt.Errorf("setup already run")
	}

	for _, name := range s.order {
		s.models[name].Allocate(s.DAE)
	}
	for _, name := range s.order {
		if err := s.models[name].Finalize(s); err != nil {
			return err
		}
	}

	var err error
	s.initOrder, err = s.dependencyOrder()
	if err != nil {
		return err
	}

	for _, m := range s.initOrder {
		if m.N() == 0 {
			continue
		}
		if ini, ok := m.(device.Initializer); ok {
			if err := ini.Init1(s.DAE); err != nil {
				return fmt.Errorf("initializing model %s: %w", m.Name(), err)
			}
		}
		logrus.Debugf("initialized %s (%d instances)", m.Name(), m.N())
	}

	for _, m := range s.initOrder {
		if m.N() == 0 {
			continue
		}
		if cj, ok := m.(device.ConstJacobian); ok {
			cj.Jac0(s.DAE)
		}
	}

	s.setupDone = true
	logrus.Infof("system setup complete: %d states, %d algebraic variables",
		s.DAE.NX, s.DAE.NY)
	return nil
}

// dependencyOrder topologically sorts models so that every model initializes
// after the models it references.
func (s *System) dependencyOrder() ([]device.Model, error) {
	done := make(map[string]bool)
	var out []device.Model

	for len(out) < len(s.order) {
		progress := false
		for _, name := range s.order {
			if done[name] {
				continue
			}
			m := s.models[name]
			ready := true
			for _, ref := range m.RefModels() {
				if ref == name {
					continue
				}
				if _, known := s.models[ref]; known && !done[ref] {
					ready = false
					break
				}
			}
			if ready {
				done[name] = true
				out = append(out, m)
				progress = true
			}
		}
		if !progress {
			return nil, fmt.Errorf("circular model dependency among remaining models")
		}
	}
	return out, nil
}

// EvalFG runs one full residual evaluation pass: clear the accumulators,
// then every model's differential and algebraic contributions. The additive
// discipline makes the order across models irrelevant.
func (s *System) EvalFG() {
	s.DAE.ClearFG()
	for _, m := range s.initOrder {
		if m.N() == 0 {
			continue
		}
		if fc, ok := m.(device.DiffContributor); ok {
			fc.FCall(s.DAE)
		}
	}
	for _, m := range s.initOrder {
		if m.N() == 0 {
			continue
		}
		if gc, ok := m.(device.AlgebContributor); ok {
			gc.GCall(s.DAE)
		}
	}
}

// EvalJac rebuilds the value-dependent Jacobian entries.
func (s *System) EvalJac() {
	s.DAE.ClearJac()
	for _, m := range s.initOrder {
		if m.N() == 0 {
			continue
		}
		if vj, ok := m.(device.VarJacobian); ok {
			vj.JacCall(s.DAE)
		}
	}
}

// ApplyDisturbance overrides one service value on a running system, the entry
// point for timed events such as load steps.
func (s *System) ApplyDisturbance(model, idx, field string, value float64) error {
	m, ok := s.models[model]
	if !ok {
		return fmt.Errorf("unknown model type %q", model)
	}
	row, ok := m.RowOf(idx)
	if !ok {
		return fmt.Errorf("model %s has no instance %q", model, idx)
	}
	sl, ok := m.(serviceLookup)
	if !ok {
		return fmt.Errorf("model %s exposes no services", model)
	}
	svc, ok := sl.ServiceByName(field)
	if !ok {
		return fmt.Errorf("model %s has no service %q", model, field)
	}
	logrus.Infof("disturbance: %s <%s> %s: %g -> %g", model, idx, field, svc.V[row], value)
	svc.V[row] = value
	return nil
}

// Snapshot captures every variable value keyed by its qualified name,
// "Model.idx.var".
func (s *System) Snapshot() map[string]float64 {
	out := make(map[string]float64)
	for _, name := range s.order {
		m := s.models[name]
		for _, v := range m.Vars() {
			for i, idx := range m.Idx() {
				out[fmt.Sprintf("%s.%s.%s", name, idx, v.Name)] = v.Val(s.DAE, i)
			}
		}
	}
	return out
}

// VarName returns the qualified name of one instance variable.
func (s *System) VarName(model, idx, field string) string {
	return fmt.Sprintf("%s.%s.%s", model, idx, field)
}
