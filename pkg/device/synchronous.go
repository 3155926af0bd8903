package device

import (
	"github.com/KhaledAleikish/andes/internal/consts"
	"github.com/KhaledAleikish/andes/pkg/dae"
)

// Synchronous is a classical swing-equation machine. It owns the equation
// rows the control models re-drive: each row is pinned to its steady value
// additively, so a governor or exciter contributing into the same row shifts
// the constraint without overwriting it.
type Synchronous struct {
	Base

	Sn  *Param
	Vn  *Param
	M   *Param
	D   *Param
	P0  *Param
	V0  *Param
	Vf0 *Param

	Delta *dae.Var
	Omega *dae.Var
	Pm    *dae.Var
	Pe    *dae.Var
	Vf    *dae.Var
	Vt    *dae.Var

	Pm0 *Service
	Pe0 *Service
	IM  *Service
}

func NewSynchronous() *Synchronous {
	s := &Synchronous{Base: *NewBase("Synchronous", "SynGen")}

	s.Sn = s.NumParam("Sn", consts.Sb, "MVA", "machine power rating")
	s.Vn = s.NumParam("Vn", 110.0, "kV", "machine voltage rating")
	s.M = s.MandatoryParam("M", 6.0, "MWs/MVA", "machine starting time (2H)")
	s.M.NonZero = true
	s.D = s.NumParam("D", 0.0, "pu", "damping coefficient")
	s.P0 = s.MandatoryParam("p0", 1.0, "pu", "initial mechanical power")
	s.V0 = s.NumParam("v0", 1.0, "pu", "initial terminal voltage")
	s.Vf0 = s.NumParam("vf0", 1.0, "pu", "initial field voltage")

	s.Delta = s.State("delta")
	s.Omega = s.State("omega")
	s.Pm = s.Algeb("pm")
	s.Pe = s.Algeb("pe")
	s.Vf = s.Algeb("vf")
	s.Vt = s.Algeb("v")

	s.Pm0 = s.Service("pm0")
	s.Pe0 = s.Service("pe0")
	s.IM = s.Service("iM")

	return s
}

func (s *Synchronous) Init1(d *dae.DAE) error {
	for i := 0; i < s.N(); i++ {
		s.IM.V[i] = 1.0 / s.M.V[i]
		s.Pm0.V[i] = s.P0.V[i]
		s.Pe0.V[i] = s.P0.V[i]

		s.Delta.Set(d, i, 0)
		s.Omega.Set(d, i, 1.0)
		s.Pm.Set(d, i, s.P0.V[i])
		s.Pe.Set(d, i, s.P0.V[i])
		s.Vf.Set(d, i, s.Vf0.V[i])
		s.Vt.Set(d, i, s.V0.V[i])
	}
	return nil
}

func (s *Synchronous) FCall(d *dae.DAE) {
	u := s.U.V
	for i := 0; i < s.N(); i++ {
		dw := s.Omega.Val(d, i) - 1.0
		d.F[s.Delta.At(i)] += u[i] * consts.Wb * dw
		d.F[s.Omega.At(i)] += u[i] * s.IM.V[i] *
			(s.Pm.Val(d, i) - s.Pe.Val(d, i) - s.D.V[i]*dw)
	}
}

func (s *Synchronous) GCall(d *dae.DAE) {
	for i := 0; i < s.N(); i++ {
		s.Pm.AddEq(d, i, s.Pm.Val(d, i)-s.Pm0.V[i])
		s.Pe.AddEq(d, i, s.Pe.Val(d, i)-s.Pe0.V[i])
		s.Vf.AddEq(d, i, s.Vf.Val(d, i)-s.Vf0.V[i])
		s.Vt.AddEq(d, i, s.Vt.Val(d, i)-s.V0.V[i])
	}
}

func (s *Synchronous) Jac0(d *dae.DAE) {
	u := s.U.V
	for i := 0; i < s.N(); i++ {
		d.AddJac0(dae.Fx, u[i]*consts.Wb, s.Delta.At(i), s.Omega.At(i))
		d.AddJac0(dae.Fx, -u[i]*s.D.V[i]*s.IM.V[i], s.Omega.At(i), s.Omega.At(i))
		d.AddJac0(dae.Fy, u[i]*s.IM.V[i], s.Omega.At(i), s.Pm.At(i))
		d.AddJac0(dae.Fy, -u[i]*s.IM.V[i], s.Omega.At(i), s.Pe.At(i))

		d.AddJac0(dae.Gy, 1.0, s.Pm.At(i), s.Pm.At(i))
		d.AddJac0(dae.Gy, 1.0, s.Pe.At(i), s.Pe.At(i))
		d.AddJac0(dae.Gy, 1.0, s.Vf.At(i), s.Vf.At(i))
		d.AddJac0(dae.Gy, 1.0, s.Vt.At(i), s.Vt.At(i))
	}
}
