package device

import (
	"github.com/KhaledAleikish/andes/pkg/block"
	"github.com/KhaledAleikish/andes/pkg/dae"
)

// govBase carries what every turbine governor shares: the droop schema, the
// wref and pout algebraic variables, the limited reference power pin, and the
// additive contribution into the referenced machine's mechanical power row.
type govBase struct {
	Base

	Gen *IdxRef

	Pmax  *Param
	Pmin  *Param
	R     *Param
	Wref0 *Param

	Wref *dae.Var
	Pout *dae.Var
	Pref *dae.Var
	Pin  *dae.Var

	Plim *block.Limiter

	Gain *Service
	Pm0  *ExtService
	Sn   *ExtService

	Omega *ExtVar
	Pm    *ExtVar
}

func newGovBase(name string) *govBase {
	g := &govBase{Base: *NewBase(name, "Governor")}

	g.Gen = g.RefParam("gen", "Synchronous")
	g.Pmax = g.NumParam("pmax", 1.0, "pu", "maximum turbine output")
	g.Pmin = g.NumParam("pmin", 0.0, "pu", "minimum turbine output")
	g.R = g.MandatoryParam("R", 0.05, "pu", "speed regulation droop")
	g.R.NonZero = true
	g.Wref0 = g.NumParam("wref0", 1.0, "pu", "initial reference speed")

	g.Wref = g.Algeb("wref")
	g.Pout = g.Algeb("pout")
	g.Pref = g.Algeb("pref")
	g.Pin = g.Algeb("pin")

	g.Plim = block.NewLimiter("pin limiter", g.Pref)

	g.Gain = g.Service("gain")
	g.Pm0 = g.ExtService("pm0", "Synchronous", "pm0", g.Gen)
	g.Sn = g.ExtService("Sn", "Synchronous", "Sn", g.Gen)

	g.Omega = g.ExtVar("Synchronous", "omega", g.Gen)
	g.Pm = g.ExtVar("Synchronous", "pm", g.Gen)

	return g
}

// initBase computes droop gain and the limited reference, clamps the copied
// initial power into [pmin, pmax], and writes consistent initial values.
func (g *govBase) initBase(d *dae.DAE) error {
	if err := g.SnapshotExt(); err != nil {
		return err
	}
	for i := 0; i < g.N(); i++ {
		g.Gain.V[i] = 1.0 / g.R.V[i]
	}

	g.LimitCheck("pm0", g.Pm0.V, g.Pmin.V, g.Pmax.V)

	if err := g.Plim.Setup(g.Pmin.V, g.Pmax.V); err != nil {
		return err
	}

	for i := 0; i < g.N(); i++ {
		g.Wref.Set(d, i, g.Wref0.V[i])
		g.Pout.Set(d, i, g.Pm0.V[i])
		g.Pref.Set(d, i, g.Pm0.V[i])
	}
	g.Plim.Check(d)
	for i := 0; i < g.N(); i++ {
		g.Pin.Set(d, i, g.Plim.Val(d, i))
	}
	return nil
}

func (g *govBase) gcallBase(d *dae.DAE) {
	g.Plim.Check(d)
	u := g.U.V
	for i := 0; i < g.N(); i++ {
		// re-drive the machine's mechanical power equation
		d.G[g.Pm.At(i)] += g.Pm0.V[i] - u[i]*g.Pout.Val(d, i)

		g.Wref.AddEq(d, i, g.Wref.Val(d, i)-g.Wref0.V[i])
		g.Pref.AddEq(d, i,
			g.Pm0.V[i]+g.Gain.V[i]*(g.Wref0.V[i]-g.Omega.Val(d, i))-g.Pref.Val(d, i))
		g.Pin.AddEq(d, i, g.Plim.Val(d, i)-g.Pin.Val(d, i))
	}
}

func (g *govBase) jac0Base(d *dae.DAE) {
	u := g.U.V
	omegaKind := dae.Kind(dae.AlgebVar, g.Omega.Domain)
	for i := 0; i < g.N(); i++ {
		d.AddJac0(dae.Gy, -u[i], g.Pm.At(i), g.Pout.At(i))
		d.AddJac0(dae.Gy, 1.0, g.Wref.At(i), g.Wref.At(i))

		d.AddJac0(dae.Gy, -1.0, g.Pref.At(i), g.Pref.At(i))
		d.AddJac0(omegaKind, -u[i]*g.Gain.V[i], g.Pref.At(i), g.Omega.At(i))

		d.AddJac0(dae.Gy, -1.0, g.Pin.At(i), g.Pin.At(i))
	}
}

// JacCall registers the limiter-dependent entries of the pin equation.
func (g *govBase) JacCall(d *dae.DAE) {
	for i := 0; i < g.N(); i++ {
		d.AddJac(dae.Gy, g.Plim.Zi[i], g.Pin.At(i), g.Pref.At(i))
	}
}

// TG1 is the steam-turbine governor: three cascaded first-order states with
// proportional splits k1..k4 derived from T3/Tc and T4/T5.
type TG1 struct {
	govBase

	T3 *Param
	T4 *Param
	T5 *Param
	Tc *Param
	Ts *Param

	Xg1 *dae.Var
	Xg2 *dae.Var
	Xg3 *dae.Var

	ITs *Service
	ITc *Service
	IT5 *Service
	K1  *Service
	K2  *Service
	K3  *Service
	K4  *Service
}

func NewTG1() *TG1 {
	g := &TG1{govBase: *newGovBase("TG1")}

	g.T3 = g.NumParam("T3", 0.0, "s", "transient gain time constant")
	g.T4 = g.NumParam("T4", 12.0, "s", "power fraction time constant")
	g.T5 = g.MandatoryParam("T5", 50.0, "s", "reheat time constant")
	g.T5.NonZero = true
	g.Tc = g.MandatoryParam("Tc", 0.56, "s", "servo time constant")
	g.Tc.NonZero = true
	g.Ts = g.MandatoryParam("Ts", 0.1, "s", "governor time constant")
	g.Ts.NonZero = true

	g.Xg1 = g.State("xg1")
	g.Xg2 = g.State("xg2")
	g.Xg3 = g.State("xg3")

	g.ITs = g.Service("iTs")
	g.ITc = g.Service("iTc")
	g.IT5 = g.Service("iT5")
	g.K1 = g.Service("k1")
	g.K2 = g.Service("k2")
	g.K3 = g.Service("k3")
	g.K4 = g.Service("k4")

	return g
}

func (g *TG1) Init1(d *dae.DAE) error {
	if err := g.initBase(d); err != nil {
		return err
	}
	u := g.U.V
	for i := 0; i < g.N(); i++ {
		g.ITs.V[i] = 1.0 / g.Ts.V[i]
		g.ITc.V[i] = 1.0 / g.Tc.V[i]
		g.IT5.V[i] = 1.0 / g.T5.V[i]
		g.K1.V[i] = g.T3.V[i] * g.ITc.V[i]
		g.K2.V[i] = 1.0 - g.K1.V[i]
		g.K3.V[i] = g.T4.V[i] * g.IT5.V[i]
		g.K4.V[i] = 1.0 - g.K3.V[i]

		g.Xg1.Set(d, i, u[i]*g.Pm0.V[i])
		g.Xg2.Set(d, i, u[i]*g.K2.V[i]*g.Pm0.V[i])
		g.Xg3.Set(d, i, u[i]*g.K4.V[i]*g.Pm0.V[i])
	}
	return nil
}

func (g *TG1) FCall(d *dae.DAE) {
	u := g.U.V
	for i := 0; i < g.N(); i++ {
		xg1 := g.Xg1.Val(d, i)
		xg2 := g.Xg2.Val(d, i)
		xg3 := g.Xg3.Val(d, i)

		d.F[g.Xg1.At(i)] += u[i] * (g.Pin.Val(d, i) - xg1) * g.ITs.V[i]
		d.F[g.Xg2.At(i)] += u[i] * (g.K2.V[i]*xg1 - xg2) * g.ITc.V[i]
		d.F[g.Xg3.At(i)] += u[i] * (g.K4.V[i]*(xg2+g.K1.V[i]*xg1) - xg3) * g.IT5.V[i]
	}
}

func (g *TG1) GCall(d *dae.DAE) {
	g.gcallBase(d)
	for i := 0; i < g.N(); i++ {
		g.Pout.AddEq(d, i,
			g.Xg3.Val(d, i)+
				g.K3.V[i]*(g.Xg2.Val(d, i)+g.K1.V[i]*g.Xg1.Val(d, i))-
				g.Pout.Val(d, i))
	}
}

func (g *TG1) Jac0(d *dae.DAE) {
	g.jac0Base(d)
	u := g.U.V
	for i := 0; i < g.N(); i++ {
		d.AddJac0(dae.Fx, -u[i]*g.ITs.V[i], g.Xg1.At(i), g.Xg1.At(i))
		d.AddJac0(dae.Fy, u[i]*g.ITs.V[i], g.Xg1.At(i), g.Pin.At(i))

		d.AddJac0(dae.Fx, u[i]*g.K2.V[i]*g.ITc.V[i], g.Xg2.At(i), g.Xg1.At(i))
		d.AddJac0(dae.Fx, -u[i]*g.ITc.V[i], g.Xg2.At(i), g.Xg2.At(i))

		d.AddJac0(dae.Fx, u[i]*g.K4.V[i]*g.K1.V[i]*g.IT5.V[i], g.Xg3.At(i), g.Xg1.At(i))
		d.AddJac0(dae.Fx, u[i]*g.K4.V[i]*g.IT5.V[i], g.Xg3.At(i), g.Xg2.At(i))
		d.AddJac0(dae.Fx, -u[i]*g.IT5.V[i], g.Xg3.At(i), g.Xg3.At(i))

		d.AddJac0(dae.Gx, g.K3.V[i]*g.K1.V[i], g.Pout.At(i), g.Xg1.At(i))
		d.AddJac0(dae.Gx, g.K3.V[i], g.Pout.At(i), g.Xg2.At(i))
		d.AddJac0(dae.Gx, 1.0, g.Pout.At(i), g.Xg3.At(i))
		d.AddJac0(dae.Gy, -1.0, g.Pout.At(i), g.Pout.At(i))
	}
}

// TG2 is the simplified governor: one first-order state plus a direct
// proportional feed-through, with the turbine output passed through the same
// limiter policy as the base's pin.
type TG2 struct {
	govBase

	T1 *Param
	T2 *Param

	Xg  *dae.Var
	Pnl *dae.Var

	Olim *block.Limiter

	T12 *Service
	IT2 *Service
}

func NewTG2() *TG2 {
	g := &TG2{govBase: *newGovBase("TG2")}

	g.T1 = g.NumParam("T1", 0.2, "s", "transient gain time constant")
	g.T2 = g.MandatoryParam("T2", 10.0, "s", "governor time constant")
	g.T2.NonZero = true

	g.Xg = g.State("xg")
	g.Pnl = g.Algeb("pnl")

	g.Olim = block.NewLimiter("pout limiter", g.Pnl)

	g.T12 = g.Service("T12")
	g.IT2 = g.Service("iT2")

	return g
}

func (g *TG2) Init1(d *dae.DAE) error {
	if err := g.initBase(d); err != nil {
		return err
	}
	if err := g.Olim.Setup(g.Pmin.V, g.Pmax.V); err != nil {
		return err
	}
	for i := 0; i < g.N(); i++ {
		g.T12.V[i] = g.T1.V[i] / g.T2.V[i]
		g.IT2.V[i] = 1.0 / g.T2.V[i]

		g.Xg.Set(d, i, 0)
		g.Pnl.Set(d, i, g.Pm0.V[i])
	}
	g.Olim.Check(d)
	return nil
}

func (g *TG2) FCall(d *dae.DAE) {
	u := g.U.V
	for i := 0; i < g.N(); i++ {
		dw := g.Wref0.V[i] - g.Omega.Val(d, i)
		d.F[g.Xg.At(i)] += u[i] * g.IT2.V[i] *
			(g.Gain.V[i]*(1.0-g.T12.V[i])*dw - g.Xg.Val(d, i))
	}
}

func (g *TG2) GCall(d *dae.DAE) {
	g.gcallBase(d)
	g.Olim.Check(d)
	for i := 0; i < g.N(); i++ {
		dw := g.Wref0.V[i] - g.Omega.Val(d, i)
		g.Pnl.AddEq(d, i,
			g.Xg.Val(d, i)+g.Pm0.V[i]+g.Gain.V[i]*g.T12.V[i]*dw-g.Pnl.Val(d, i))
		g.Pout.AddEq(d, i, g.Olim.Val(d, i)-g.Pout.Val(d, i))
	}
}

func (g *TG2) Jac0(d *dae.DAE) {
	g.jac0Base(d)
	u := g.U.V
	omegaFKind := dae.Kind(dae.StateVar, g.Omega.Domain)
	omegaGKind := dae.Kind(dae.AlgebVar, g.Omega.Domain)
	for i := 0; i < g.N(); i++ {
		d.AddJac0(dae.Fx, -u[i]*g.IT2.V[i], g.Xg.At(i), g.Xg.At(i))
		d.AddJac0(omegaFKind, -u[i]*g.IT2.V[i]*g.Gain.V[i]*(1.0-g.T12.V[i]),
			g.Xg.At(i), g.Omega.At(i))

		d.AddJac0(dae.Gy, -1.0, g.Pnl.At(i), g.Pnl.At(i))
		d.AddJac0(dae.Gx, 1.0, g.Pnl.At(i), g.Xg.At(i))
		d.AddJac0(omegaGKind, -g.Gain.V[i]*g.T12.V[i], g.Pnl.At(i), g.Omega.At(i))

		d.AddJac0(dae.Gy, -1.0, g.Pout.At(i), g.Pout.At(i))
	}
}

func (g *TG2) JacCall(d *dae.DAE) {
	g.govBase.JacCall(d)
	for i := 0; i < g.N(); i++ {
		d.AddJac(dae.Gy, g.Olim.Zi[i], g.Pout.At(i), g.Pnl.At(i))
	}
}
