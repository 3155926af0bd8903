package device

import (
	"github.com/KhaledAleikish/andes/internal/consts"
	"github.com/KhaledAleikish/andes/pkg/block"
	"github.com/KhaledAleikish/andes/pkg/dae"
)

// pssBase is the common stabilizer scaffolding: the machine and exciter
// references, the machine-base-to-system-base power factor, and the vsout
// output injected additively into the paired exciter's input row.
type pssBase struct {
	Base

	Syn *IdxRef
	Avr *IdxRef

	Vsout *dae.Var

	SnSb  *Service
	SnExt *ExtService
	Tm0   *ExtService

	Te    *ExtVar
	AvrVi *ExtVar
}

func newPSSBase(name string) *pssBase {
	p := &pssBase{Base: *NewBase(name, "PSS")}

	p.Syn = p.RefParam("syn", "Synchronous")
	p.Avr = p.RefParam("avr", "AVR1")

	p.Vsout = p.Algeb("vsout")

	p.SnSb = p.Service("SnSb")
	p.SnExt = p.ExtService("Sn", "Synchronous", "Sn", p.Syn)
	p.Tm0 = p.ExtService("tm0", "Synchronous", "pm0", p.Syn)

	p.Te = p.ExtVar("Synchronous", "pe", p.Syn)
	p.AvrVi = p.ExtVar("AVR1", "vi", p.Avr)

	return p
}

func (p *pssBase) initPSS() error {
	if err := p.SnapshotExt(); err != nil {
		return err
	}
	for i := 0; i < p.N(); i++ {
		p.SnSb.V[i] = p.SnExt.V[i] / consts.Sb
	}
	return nil
}

func (p *pssBase) gcallPSS(d *dae.DAE) {
	u := p.U.V
	for i := 0; i < p.N(); i++ {
		// stabilizing signal into the exciter input row
		d.G[p.AvrVi.At(i)] += u[i] * p.Vsout.Val(d, i)
	}
}

func (p *pssBase) jac0PSS(d *dae.DAE) {
	u := p.U.V
	for i := 0; i < p.N(); i++ {
		d.AddJac0(dae.Gy, u[i], p.AvrVi.At(i), p.Vsout.At(i))
	}
}

// STAB2A implements the STAB2A stabilizer topology: electrical power
// transducer signal, gain, washout, cubic shaping combined with a first-order
// lag, a second lag, a square, and a hard output limiter.
type STAB2A struct {
	pssBase

	T2 *Param
	T3 *Param
	T5 *Param
	K2 *Param
	K3 *Param
	K4 *Param
	K5 *Param

	HlimMax *Param
	HlimMin *Param

	Sig *dae.Var
	V1  *dae.Var
	V3  *dae.Var
	V4  *dae.Var

	PK2 *block.Gain
	WO  *block.Washout
	PK4 *block.Gain
	V2  *block.Lag
	L1  *block.Lag

	HLIM *block.Limiter
}

func NewSTAB2A() *STAB2A {
	s := &STAB2A{pssBase: *newPSSBase("STAB2A")}

	s.T2 = s.NumParam("T2", 1.0, "s", "washout time constant")
	s.T2.VRange = &Range{Lo: 0, Hi: 10}
	s.T3 = s.NumParam("T3", 1.0, "s", "2nd stage low-pass time constant")
	s.T3.VRange = &Range{Lo: 0, Hi: 10}
	s.T5 = s.NumParam("T5", 1.0, "s", "3rd stage low-pass time constant")
	s.T5.VRange = &Range{Lo: 0, Hi: 10}

	s.K2 = s.NumParam("K2", 1.0, "pu", "gain before washout")
	s.K3 = s.NumParam("K3", 1.0, "pu", "2nd stage low-pass gain")
	s.K4 = s.NumParam("K4", 1.0, "pu", "2nd stage gain")
	s.K5 = s.NumParam("K5", 1.0, "pu", "3rd stage low-pass gain")

	s.HlimMax = s.NumParam("HLIM_MAX", 0.3, "pu", "maximum output limit")
	s.HlimMax.VRange = &Range{Lo: 0, Hi: 0.3}
	s.HlimMin = s.NumParam("HLIM_MIN", -0.3, "pu", "minimum output limit")
	s.HlimMin.VRange = &Range{Lo: -0.3, Hi: 0}

	s.Sig = s.Algeb("sig")
	pk2y := s.Algeb("PK2_y")
	wox := s.State("WO_x")
	woy := s.Algeb("WO_y")
	s.V1 = s.Algeb("V1")
	pk4y := s.Algeb("PK4_y")
	v2x := s.State("V2_x")
	s.V3 = s.Algeb("V3")
	l1x := s.State("L1_x")
	s.V4 = s.Algeb("V4")

	s.PK2 = block.NewGain("PK2", s.Sig, pk2y)
	// the washout derivative gain equals its own time constant
	s.WO = block.NewWashout("WO", pk2y, wox, woy, false)
	s.PK4 = block.NewGain("PK4", s.V1, pk4y)
	s.V2 = block.NewLag("V2", s.V1, v2x, true)
	s.L1 = block.NewLag("L1", s.V3, l1x, true)

	s.HLIM = block.NewLimiter("HLIM", s.V4)

	return s
}

func (s *STAB2A) Init1(d *dae.DAE) error {
	if err := s.initPSS(); err != nil {
		return err
	}

	s.PK2.Setup(s.K2.V, s.U.V)
	if err := s.WO.Setup(d, s.T2.V, s.T2.V, s.U.V); err != nil {
		return err
	}
	s.PK4.Setup(s.K4.V, s.U.V)
	if err := s.V2.Setup(d, s.K3.V, s.T3.V, s.U.V); err != nil {
		return err
	}
	if err := s.L1.Setup(d, s.K5.V, s.T5.V, s.U.V); err != nil {
		return err
	}
	if err := s.HLIM.Setup(s.HlimMin.V, s.HlimMax.V); err != nil {
		return err
	}

	for i := 0; i < s.N(); i++ {
		s.Sig.Set(d, i, s.Tm0.V[i]/s.SnSb.V[i])
	}
	s.PK2.SetIC(d)
	s.WO.SetIC(d)
	for i := 0; i < s.N(); i++ {
		woy := s.WO.Out().Val(d, i)
		s.V1.Set(d, i, woy*woy*woy)
	}
	s.PK4.SetIC(d)
	s.V2.SetIC(d)
	for i := 0; i < s.N(); i++ {
		s.V3.Set(d, i, s.PK4.Out().Val(d, i)+s.V2.Out().Val(d, i))
	}
	s.L1.SetIC(d)
	for i := 0; i < s.N(); i++ {
		l1 := s.L1.Out().Val(d, i)
		s.V4.Set(d, i, l1*l1)
	}
	s.HLIM.Check(d)
	for i := 0; i < s.N(); i++ {
		s.Vsout.Set(d, i, s.HLIM.Val(d, i))
	}
	return nil
}

func (s *STAB2A) FCall(d *dae.DAE) {
	s.WO.FCall(d)
	s.V2.FCall(d)
	s.L1.FCall(d)
}

func (s *STAB2A) GCall(d *dae.DAE) {
	s.HLIM.Check(d)

	for i := 0; i < s.N(); i++ {
		s.Sig.AddEq(d, i, s.Te.Val(d, i)/s.SnSb.V[i]-s.Sig.Val(d, i))
	}
	s.PK2.GCall(d)
	s.WO.GCall(d)
	s.PK4.GCall(d)

	for i := 0; i < s.N(); i++ {
		woy := s.WO.Out().Val(d, i)
		s.V1.AddEq(d, i, woy*woy*woy-s.V1.Val(d, i))

		s.V3.AddEq(d, i, s.PK4.Out().Val(d, i)+s.V2.Out().Val(d, i)-s.V3.Val(d, i))

		l1 := s.L1.Out().Val(d, i)
		s.V4.AddEq(d, i, l1*l1-s.V4.Val(d, i))

		s.Vsout.AddEq(d, i,
			s.HLIM.Zi[i]*s.V4.Val(d, i)+
				s.HLIM.Zu[i]*s.HlimMax.V[i]+
				s.HLIM.Zl[i]*s.HlimMin.V[i]-
				s.Vsout.Val(d, i))
	}
	s.gcallPSS(d)
}

func (s *STAB2A) Jac0(d *dae.DAE) {
	s.PK2.Jac0(d)
	s.WO.Jac0(d)
	s.PK4.Jac0(d)
	s.V2.Jac0(d)
	s.L1.Jac0(d)

	teKind := dae.Kind(dae.AlgebVar, s.Te.Domain)
	for i := 0; i < s.N(); i++ {
		d.AddJac0(dae.Gy, -1.0, s.Sig.At(i), s.Sig.At(i))
		d.AddJac0(teKind, 1.0/s.SnSb.V[i], s.Sig.At(i), s.Te.At(i))

		d.AddJac0(dae.Gy, -1.0, s.V1.At(i), s.V1.At(i))

		d.AddJac0(dae.Gy, -1.0, s.V3.At(i), s.V3.At(i))
		d.AddJac0(dae.Gy, 1.0, s.V3.At(i), s.PK4.Out().At(i))
		d.AddJac0(dae.Gx, 1.0, s.V3.At(i), s.V2.Out().At(i))

		d.AddJac0(dae.Gy, -1.0, s.V4.At(i), s.V4.At(i))

		d.AddJac0(dae.Gy, -1.0, s.Vsout.At(i), s.Vsout.At(i))
	}
	s.jac0PSS(d)
}

func (s *STAB2A) JacCall(d *dae.DAE) {
	for i := 0; i < s.N(); i++ {
		woy := s.WO.Out().Val(d, i)
		d.AddJac(dae.Gy, 3*woy*woy, s.V1.At(i), s.WO.Out().At(i))

		l1 := s.L1.Out().Val(d, i)
		d.AddJac(dae.Gx, 2*l1, s.V4.At(i), s.L1.Out().At(i))

		d.AddJac(dae.Gy, s.HLIM.Zi[i], s.Vsout.At(i), s.V4.At(i))
	}
}
