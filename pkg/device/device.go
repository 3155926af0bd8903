// Package device defines the model contract every device type implements and
// the shared bookkeeping (parameter, variable and reference registries) that
// lets heterogeneous model types be driven identically by the system driver.
//
// Each model type is vectorized over its instances: one registry entry holds
// one value slice across all instances, and every lifecycle callback operates
// on the whole batch.
package device

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/KhaledAleikish/andes/pkg/dae"
)

// Range is a closed parameter validity interval. Out-of-range values are
// clamped to the nearest bound with a warning, not rejected.
type Range struct {
	Lo, Hi float64
}

// Param is a named per-instance numeric value, declared once at model
// definition, bound when instances are added, immutable after setup.
type Param struct {
	Name      string
	Default   float64
	Unit      string
	Info      string
	Mandatory bool
	NonZero   bool
	VRange    *Range

	V []float64 // bound values, one per instance
}

// Service is a derived per-instance quantity computed at initialization from
// parameters or cross-referenced data. Not user-settable.
type Service struct {
	Name string
	V    []float64
}

// IdxRef is a reference by external index from each instance of this model
// to exactly one instance of another model. Resolved once at setup into row
// indices in the target model; a dangling key is a fatal setup error.
type IdxRef struct {
	Name      string
	Model     string
	Mandatory bool

	Keys []string
	Rows []int
}

// ExtVar is a cross-referenced variable resolved at setup into direct arena
// addresses, so evaluation never goes through string dispatch.
type ExtVar struct {
	dae.Var
	Model, Src string
	Ref        *IdxRef
}

// ExtService snapshots a value from a referenced model into a local service
// slice at initialization. The snapshot does not track later changes to the
// source.
type ExtService struct {
	Name       string
	Model, Src string
	Ref        *IdxRef
	V          []float64
}

// Context is the narrow cross-model lookup service the system grants models
// during setup and initialization.
type Context interface {
	RowOf(model, idx string) (int, error)
	VarOf(model, field string) (*dae.Var, error)
	FieldOf(model, field string) ([]float64, error)
}

// Capability interfaces. A model implements only the callbacks it needs; the
// system discovers them by type assertion.
type Initializer interface {
	Init1(d *dae.DAE) error
}

type DiffContributor interface {
	FCall(d *dae.DAE)
}

type AlgebContributor interface {
	GCall(d *dae.DAE)
}

type ConstJacobian interface {
	Jac0(d *dae.DAE)
}

type VarJacobian interface {
	JacCall(d *dae.DAE)
}

// Model is the uniform lifecycle contract.
type Model interface {
	Name() string
	Group() string
	N() int
	Idx() []string
	RowOf(idx string) (int, bool)
	RefModels() []string

	AddInstance(idx string, fields map[string]any) error
	Allocate(d *dae.DAE)
	Finalize(ctx Context) error

	Params() []*Param
	Vars() []*dae.Var
	Services() []*Service
}

// Base carries the shared registries and implements the generic parts of the
// Model contract. Concrete models embed it and declare their schema in their
// constructor.
type Base struct {
	name  string
	group string
	n     int

	idx    []string
	idxMap map[string]int

	U *Param // connection status, 1 = online

	params   []*Param
	paramMap map[string]*Param

	refs   []*IdxRef
	refMap map[string]*IdxRef

	states []*dae.Var
	algebs []*dae.Var
	varMap map[string]*dae.Var

	services   []*Service
	serviceMap map[string]*Service

	extVars     []*ExtVar
	extServices []*ExtService

	ctx Context
}

func NewBase(name, group string) *Base {
	b := &Base{
		name:       name,
		group:      group,
		idxMap:     make(map[string]int),
		paramMap:   make(map[string]*Param),
		refMap:     make(map[string]*IdxRef),
		varMap:     make(map[string]*dae.Var),
		serviceMap: make(map[string]*Service),
	}
	b.U = b.NumParam("u", 1.0, "bool", "connection status")
	return b
}

func (b *Base) Name() string  { return b.name }
func (b *Base) Group() string { return b.group }
func (b *Base) N() int        { return b.n }
func (b *Base) Idx() []string { return b.idx }

func (b *Base) RowOf(idx string) (int, bool) {
	row, ok := b.idxMap[idx]
	return row, ok
}

// NumParam declares an optional numeric parameter with a default.
func (b *Base) NumParam(name string, def float64, unit, info string) *Param {
	p := &Param{Name: name, Default: def, Unit: unit, Info: info}
	b.params = append(b.params, p)
	b.paramMap[name] = p
	return p
}

// MandatoryParam declares a parameter the case must supply. The default is
// advisory only; an unbound value fails setup.
func (b *Base) MandatoryParam(name string, def float64, unit, info string) *Param {
	p := b.NumParam(name, def, unit, info)
	p.Mandatory = true
	return p
}

// State declares a differential variable.
func (b *Base) State(name string) *dae.Var {
	v := &dae.Var{Name: name, Domain: dae.StateVar}
	b.states = append(b.states, v)
	b.varMap[name] = v
	return v
}

// Algeb declares an algebraic variable.
func (b *Base) Algeb(name string) *dae.Var {
	v := &dae.Var{Name: name, Domain: dae.AlgebVar}
	b.algebs = append(b.algebs, v)
	b.varMap[name] = v
	return v
}

// Service declares a derived per-instance quantity.
func (b *Base) Service(name string) *Service {
	s := &Service{Name: name}
	b.services = append(b.services, s)
	b.serviceMap[name] = s
	return s
}

// RefParam declares a mandatory indexed reference to another model.
func (b *Base) RefParam(name, model string) *IdxRef {
	r := &IdxRef{Name: name, Model: model, Mandatory: true}
	b.refs = append(b.refs, r)
	b.refMap[name] = r
	return r
}

// ExtVar declares a cross-referenced variable, resolved at setup.
func (b *Base) ExtVar(model, src string, ref *IdxRef) *ExtVar {
	e := &ExtVar{Model: model, Src: src, Ref: ref}
	e.Var.Name = src
	b.extVars = append(b.extVars, e)
	return e
}

// ExtService declares a snapshot of a referenced model's field.
func (b *Base) ExtService(name, model, src string, ref *IdxRef) *ExtService {
	e := &ExtService{Name: name, Model: model, Src: src, Ref: ref}
	b.extServices = append(b.extServices, e)
	return e
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

// AddInstance creates one device instance. Numeric fields bind parameters,
// string fields bind references. Validation is deferred to Finalize.
func (b *Base) AddInstance(idx string, fields map[string]any) error {
	if idx == "" {
		idx = fmt.Sprintf("%s_%d", b.name, b.n+1)
	}
	if _, dup := b.idxMap[idx]; dup {
		return &SetupError{Model: b.name, Idx: idx, Field: "idx", Reason: "duplicate device index"}
	}

	for _, p := range b.params {
		if p.Mandatory {
			p.V = append(p.V, math.NaN())
		} else {
			p.V = append(p.V, p.Default)
		}
	}
	for _, r := range b.refs {
		r.Keys = append(r.Keys, "")
	}

	row := b.n
	for name, raw := range fields {
		if p, ok := b.paramMap[name]; ok {
			v, numeric := toFloat(raw)
			if !numeric {
				return &SetupError{Model: b.name, Idx: idx, Field: name,
					Reason: fmt.Sprintf("non-numeric parameter value %v", raw)}
			}
			p.V[row] = v
			continue
		}
		if r, ok := b.refMap[name]; ok {
			key, isStr := raw.(string)
			if !isStr {
				return &SetupError{Model: b.name, Idx: idx, Field: name,
					Reason: fmt.Sprintf("reference value %v is not a device index", raw)}
			}
			r.Keys[row] = key
			continue
		}
		return &SetupError{Model: b.name, Idx: idx, Field: name, Reason: "unknown field"}
	}

	b.idx = append(b.idx, idx)
	b.idxMap[idx] = row
	b.n++
	return nil
}

// Allocate assigns global arena offsets to every declared variable.
func (b *Base) Allocate(d *dae.DAE) {
	for _, v := range b.states {
		base := d.AllocState(b.n)
		v.Addr = make([]int, b.n)
		for i := range v.Addr {
			v.Addr[i] = base + i
		}
	}
	for _, v := range b.algebs {
		base := d.AllocAlgeb(b.n)
		v.Addr = make([]int, b.n)
		for i := range v.Addr {
			v.Addr[i] = base + i
		}
	}
}

// Finalize validates bound parameters against the schema and resolves every
// cross-reference. Runs after all models have allocated, before any Init1.
func (b *Base) Finalize(ctx Context) error {
	b.ctx = ctx

	for _, p := range b.params {
		for i, v := range p.V {
			if p.Mandatory && math.IsNaN(v) {
				return errMissingParam(b.name, b.idx[i], p.Name)
			}
			if p.NonZero && v == 0 {
				return errZeroParam(b.name, b.idx[i], p.Name)
			}
			if p.VRange != nil && !math.IsNaN(v) && (v < p.VRange.Lo || v > p.VRange.Hi) {
				clamped := math.Min(math.Max(v, p.VRange.Lo), p.VRange.Hi)
				logrus.Warnf("%s <%s> %s: value %g out of range [%g, %g], clamped to %g",
					b.name, b.idx[i], p.Name, v, p.VRange.Lo, p.VRange.Hi, clamped)
				p.V[i] = clamped
			}
		}
	}

	for _, r := range b.refs {
		r.Rows = make([]int, b.n)
		for i, key := range r.Keys {
			if key == "" {
				if r.Mandatory {
					return errMissingRef(b.name, b.idx[i], r.Name)
				}
				r.Rows[i] = -1
				continue
			}
			row, err := ctx.RowOf(r.Model, key)
			if err != nil {
				return errDanglingRef(b.name, b.idx[i], r.Name, r.Model, key)
			}
			r.Rows[i] = row
		}
	}

	for _, e := range b.extVars {
		src, err := ctx.VarOf(e.Model, e.Src)
		if err != nil {
			return &SetupError{Model: b.name, Idx: "*", Field: e.Src,
				Reason: fmt.Sprintf("no variable %s.%s: %v", e.Model, e.Src, err)}
		}
		e.Domain = src.Domain
		e.Addr = make([]int, b.n)
		for i := range e.Addr {
			e.Addr[i] = src.Addr[e.Ref.Rows[i]]
		}
	}

	for _, s := range b.services {
		s.V = make([]float64, b.n)
	}
	for _, e := range b.extServices {
		e.V = make([]float64, b.n)
	}
	return nil
}

// SnapshotExt copies the current values of every external service. Called
// from Init1, after the referenced models have initialized.
func (b *Base) SnapshotExt() error {
	for _, e := range b.extServices {
		vals, err := b.ctx.FieldOf(e.Model, e.Src)
		if err != nil {
			return &SetupError{Model: b.name, Idx: "*", Field: e.Name,
				Reason: fmt.Sprintf("no field %s.%s: %v", e.Model, e.Src, err)}
		}
		for i := range e.V {
			e.V[i] = vals[e.Ref.Rows[i]]
		}
	}
	return nil
}

// LimitCheck clamps a computed per-instance vector into [lo, hi], warning on
// every correction. Used for recoverable range violations at initialization.
func (b *Base) LimitCheck(field string, v, lo, hi []float64) {
	for i := range v {
		if v[i] > hi[i] {
			logrus.Warnf("%s <%s> %s: initial value %g above limit %g, clamped",
				b.name, b.idx[i], field, v[i], hi[i])
			v[i] = hi[i]
		} else if v[i] < lo[i] {
			logrus.Warnf("%s <%s> %s: initial value %g below limit %g, clamped",
				b.name, b.idx[i], field, v[i], lo[i])
			v[i] = lo[i]
		}
	}
}

func (b *Base) Params() []*Param { return b.params }

func (b *Base) Vars() []*dae.Var {
	out := make([]*dae.Var, 0, len(b.states)+len(b.algebs))
	out = append(out, b.states...)
	return append(out, b.algebs...)
}

func (b *Base) Services() []*Service { return b.services }

// RefModels lists the model types this model references, for dependency
// ordering of initialization.
func (b *Base) RefModels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range b.refs {
		if !seen[r.Model] {
			seen[r.Model] = true
			out = append(out, r.Model)
		}
	}
	return out
}

// VarByName exposes a declared variable for cross-model resolution.
func (b *Base) VarByName(name string) (*dae.Var, bool) {
	v, ok := b.varMap[name]
	return v, ok
}

// FieldByName exposes a service or parameter value slice for snapshotting.
func (b *Base) FieldByName(name string) ([]float64, bool) {
	if s, ok := b.serviceMap[name]; ok {
		return s.V, true
	}
	if p, ok := b.paramMap[name]; ok {
		return p.V, true
	}
	return nil, false
}

// ServiceByName exposes a service slice for disturbance overrides.
func (b *Base) ServiceByName(name string) (*Service, bool) {
	s, ok := b.serviceMap[name]
	return s, ok
}
