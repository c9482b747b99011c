// Package lip models the planar Center-of-Mass dynamics of the Linear
// Inverted Pendulum driven by a Divergent-Component-of-Motion reference.
//
// The model is the linear time-invariant system
//
//	| xd  |   | -w  0  0  0 |   | x  |   | +w  0  0  0 |   | DCMx  |
//	| yd  | = |  0 -w  0  0 | * | y  | + |  0 +w  0  0 | * | DCMy  |
//	| xdd |   |  0  0 -w  0 |   | xd |   |  0  0 +w  0 |   | DCMxd |
//	| ydd |   |  0  0  0 -w |   | yd |   |  0  0  0 +w |   | DCMyd |
//
// with w = sqrt(g / comHeight). The state is advanced by a fixed-step
// fourth-order Runge-Kutta integrator with the control held constant over
// each step (zero-order hold). Integration is fully deterministic.
package lip

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// StateSize is the dimension of both the state (x, y, xd, yd) and the
// control (DCMx, DCMy, DCMxd, DCMyd).
const StateSize = 4

// System is the CoM planar LTI model xdot = A x + B u.
type System struct {
	a *mat.Dense
	b *mat.Dense

	state   *mat.VecDense
	control *mat.VecDense
}

// NewSystem builds the LTI model for the given pendulum angular frequency.
// A = -omega * I4 and B = -A.
func NewSystem(omega float64) (*System, error) {
	if omega <= 0 {
		return nil, fmt.Errorf("pendulum frequency must be positive, got %v", omega)
	}

	a := mat.NewDense(StateSize, StateSize, nil)
	b := mat.NewDense(StateSize, StateSize, nil)
	for i := 0; i < StateSize; i++ {
		a.Set(i, i, -omega)
		b.Set(i, i, omega)
	}

	return &System{
		a:       a,
		b:       b,
		state:   mat.NewVecDense(StateSize, nil),
		control: mat.NewVecDense(StateSize, nil),
	}, nil
}

// SetState overwrites the current state (x, y, xd, yd).
func (s *System) SetState(x0, y0, xd0, yd0 float64) {
	s.state.SetVec(0, x0)
	s.state.SetVec(1, y0)
	s.state.SetVec(2, xd0)
	s.state.SetVec(3, yd0)
}

// SetControl overwrites the control input (DCM position and velocity).
func (s *System) SetControl(dcmX, dcmY, dcmXd, dcmYd float64) {
	s.control.SetVec(0, dcmX)
	s.control.SetVec(1, dcmY)
	s.control.SetVec(2, dcmXd)
	s.control.SetVec(3, dcmYd)
}

// State returns a copy of the current state vector.
func (s *System) State() []float64 {
	out := make([]float64, StateSize)
	copy(out, s.state.RawVector().Data)
	return out
}

// Derivative evaluates xdot = A x + B u at the given state with the stored
// control and writes the result into dst.
func (s *System) Derivative(dst, x *mat.VecDense) {
	dst.MulVec(s.a, x)
	var bu mat.VecDense
	bu.MulVec(s.b, s.control)
	dst.AddVec(dst, &bu)
}

// DerivativeAtState is a convenience wrapper evaluating the derivative at
// the stored state. The returned slice is (xd, yd, xdd, ydd): the first two
// entries are the planar velocity sample, the last two the acceleration.
func (s *System) DerivativeAtState() []float64 {
	dst := mat.NewVecDense(StateSize, nil)
	s.Derivative(dst, s.state)
	out := make([]float64, StateSize)
	copy(out, dst.RawVector().Data)
	return out
}

// RK4 is a fixed-step explicit fourth-order Runge-Kutta integrator bound to
// a System. There is no adaptive step control.
type RK4 struct {
	sys *System
	dt  float64

	// stage buffers, reused across steps
	k1, k2, k3, k4, tmp *mat.VecDense
}

// NewRK4 binds an integrator to sys with a fixed integration step.
func NewRK4(sys *System, dt time.Duration) (*RK4, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("integration step must be positive, got %v", dt)
	}
	return &RK4{
		sys: sys,
		dt:  dt.Seconds(),
		k1:  mat.NewVecDense(StateSize, nil),
		k2:  mat.NewVecDense(StateSize, nil),
		k3:  mat.NewVecDense(StateSize, nil),
		k4:  mat.NewVecDense(StateSize, nil),
		tmp: mat.NewVecDense(StateSize, nil),
	}, nil
}

// Step advances the bound system's state by one integration step.
func (r *RK4) Step() {
	s := r.sys
	h := r.dt

	r.sys.Derivative(r.k1, s.state)

	r.tmp.AddScaledVec(s.state, h/2, r.k1)
	s.Derivative(r.k2, r.tmp)

	r.tmp.AddScaledVec(s.state, h/2, r.k2)
	s.Derivative(r.k3, r.tmp)

	r.tmp.AddScaledVec(s.state, h, r.k3)
	s.Derivative(r.k4, r.tmp)

	// x += h/6 (k1 + 2 k2 + 2 k3 + k4)
	s.state.AddScaledVec(s.state, h/6, r.k1)
	s.state.AddScaledVec(s.state, h/3, r.k2)
	s.state.AddScaledVec(s.state, h/3, r.k3)
	s.state.AddScaledVec(s.state, h/6, r.k4)
}
