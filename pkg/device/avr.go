package device

import (
	"github.com/KhaledAleikish/andes/pkg/block"
	"github.com/KhaledAleikish/andes/pkg/dae"
)

// AVR1 is a single-lag excitation model. Its input row vi is the additive
// injection point for stabilizer output; its lag state shifts the machine's
// field voltage row in deviation form.
type AVR1 struct {
	Base

	Gen *IdxRef

	Ka *Param
	Ta *Param

	Vi *dae.Var
	Xe *dae.Var

	LG *block.Lag

	Vref0 *Service
	V0    *ExtService

	Vt *ExtVar
	Vf *ExtVar
}

func NewAVR1() *AVR1 {
	a := &AVR1{Base: *NewBase("AVR1", "Exciter")}

	a.Gen = a.RefParam("gen", "Synchronous")
	a.Ka = a.NumParam("Ka", 20.0, "pu", "regulator gain")
	a.Ta = a.NumParam("Ta", 0.2, "s", "regulator time constant")

	a.Vi = a.Algeb("vi")
	a.Xe = a.State("xe")

	a.LG = block.NewLag("regulator lag", a.Vi, a.Xe, true)

	a.Vref0 = a.Service("vref0")
	a.V0 = a.ExtService("v0", "Synchronous", "v0", a.Gen)

	a.Vt = a.ExtVar("Synchronous", "v", a.Gen)
	a.Vf = a.ExtVar("Synchronous", "vf", a.Gen)

	return a
}

func (a *AVR1) Init1(d *dae.DAE) error {
	if err := a.SnapshotExt(); err != nil {
		return err
	}
	if err := a.LG.Setup(d, a.Ka.V, a.Ta.V, a.U.V); err != nil {
		return err
	}
	for i := 0; i < a.N(); i++ {
		a.Vref0.V[i] = a.V0.V[i]
		a.Vi.Set(d, i, 0)
	}
	a.LG.SetIC(d)
	return nil
}

func (a *AVR1) FCall(d *dae.DAE) {
	a.LG.FCall(d)
}

func (a *AVR1) GCall(d *dae.DAE) {
	u := a.U.V
	for i := 0; i < a.N(); i++ {
		a.Vi.AddEq(d, i, a.Vref0.V[i]-a.Vt.Val(d, i)-a.Vi.Val(d, i))
		// shift the machine field voltage row
		d.G[a.Vf.At(i)] += -u[i] * a.Xe.Val(d, i)
	}
}

func (a *AVR1) Jac0(d *dae.DAE) {
	a.LG.Jac0(d)
	u := a.U.V
	vtKind := dae.Kind(dae.AlgebVar, a.Vt.Domain)
	for i := 0; i < a.N(); i++ {
		d.AddJac0(dae.Gy, -1.0, a.Vi.At(i), a.Vi.At(i))
		d.AddJac0(vtKind, -1.0, a.Vi.At(i), a.Vt.At(i))
		d.AddJac0(dae.Gx, -u[i], a.Vf.At(i), a.Xe.At(i))
	}
}
