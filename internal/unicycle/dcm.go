package unicycle

import (
	"math"
	"time"

	"github.com/golang/geo/r2"
)

// buildDCM fills the DCM position and velocity buffers with n samples.
//
// Within each step cycle the DCM follows the divergent pendulum dynamics
//
//	xi(t) = zmp + e^{w (t - t0)} (xi0 - zmp),  xid = w (xi - zmp)
//
// with the per-cycle boundary values obtained by backward recursion from
// the final stance: the recursion guarantees the trajectory lands on the
// final DCM target instead of diverging. The very first segment is replaced
// by a quintic from the caller-provided DCM initial state (fifth-order
// first-trajectory mode), which absorbs the measured state mismatch.
func (g *Generator) buildDCM(initTime, dt time.Duration, n int, T time.Duration,
	cycles []cycle, initialMid, finalMid r2.Point) {

	g.dcmPos = resizePoints(g.dcmPos, n)
	g.dcmVel = resizePoints(g.dcmVel, n)

	omega := g.cfg.Omega

	xi0, xid0 := g.dcmInitPos, g.dcmInitVel
	if !g.dcmInitSet {
		xi0, xid0 = initialMid, r2.Point{}
	}

	if len(cycles) == 0 {
		g.buildStandingDCM(initTime, dt, n, T, xi0, xid0, finalMid)
		return
	}

	// Final DCM target: between the last stance ZMP and the mid-feet
	// point, at the configured offset percentage.
	last := cycles[len(cycles)-1]
	xiFinal := lerp(last.ZMP, finalMid, g.cfg.LastStepDCMOffset)

	// Backward recursion for the DCM value at the start of every cycle.
	xiAtStart := make([]r2.Point, len(cycles))
	xiNext := xiFinal
	for k := len(cycles) - 1; k >= 0; k-- {
		c := cycles[k]
		e := math.Exp(-omega * (c.End - c.Start).Seconds())
		xiAtStart[k] = c.ZMP.Add(xiNext.Sub(c.ZMP).Mul(e))
		xiNext = xiAtStart[k]
	}

	// End-of-first-cycle boundary for the quintic segment.
	xiEnd0 := xiFinal
	if len(cycles) > 1 {
		xiEnd0 = xiAtStart[1]
	}
	first := cycles[0]
	d0 := (first.End - first.Start).Seconds()
	velEnd0 := xiEnd0.Sub(first.ZMP).Mul(omega)
	qx := newQuintic(xi0.X, xid0.X, omega*xid0.X, xiEnd0.X, velEnd0.X, omega*velEnd0.X, d0)
	qy := newQuintic(xi0.Y, xid0.Y, omega*xid0.Y, xiEnd0.Y, velEnd0.Y, omega*velEnd0.Y, d0)

	ci := 0
	for i := 0; i < n; i++ {
		t := initTime + time.Duration(i)*dt
		for ci < len(cycles) && t >= cycles[ci].End {
			ci++
		}

		switch {
		case ci >= len(cycles):
			// Past the last impact: hold the final DCM target.
			g.dcmPos[i] = xiFinal
			g.dcmVel[i] = r2.Point{}

		case ci == 0:
			tau := (t - cycles[0].Start).Seconds()
			px, vx := qx.Eval(tau)
			py, vy := qy.Eval(tau)
			g.dcmPos[i] = r2.Point{X: px, Y: py}
			g.dcmVel[i] = r2.Point{X: vx, Y: vy}

		default:
			c := cycles[ci]
			e := math.Exp(omega * (t - c.Start).Seconds())
			xi := c.ZMP.Add(xiAtStart[ci].Sub(c.ZMP).Mul(e))
			g.dcmPos[i] = xi
			g.dcmVel[i] = xi.Sub(c.ZMP).Mul(omega)
		}
	}
}

// buildStandingDCM settles the DCM from the measured initial state onto the
// mid-feet point with a quintic over one nominal step duration, then holds.
func (g *Generator) buildStandingDCM(initTime, dt time.Duration, n int, T time.Duration,
	xi0, xid0 r2.Point, target r2.Point) {

	settle := T
	horizon := time.Duration(n-1) * dt
	if settle > horizon {
		settle = horizon
	}
	d := settle.Seconds()

	qx := newQuintic(xi0.X, xid0.X, 0, target.X, 0, 0, d)
	qy := newQuintic(xi0.Y, xid0.Y, 0, target.Y, 0, 0, d)

	for i := 0; i < n; i++ {
		t := time.Duration(i) * dt
		if t >= settle {
			g.dcmPos[i] = target
			g.dcmVel[i] = r2.Point{}
			continue
		}
		tau := t.Seconds()
		px, vx := qx.Eval(tau)
		py, vy := qy.Eval(tau)
		g.dcmPos[i] = r2.Point{X: px, Y: py}
		g.dcmVel[i] = r2.Point{X: vx, Y: vy}
	}
}

// quintic is a fifth-order polynomial with prescribed position, velocity
// and acceleration at both ends of a segment of duration d.
type quintic struct {
	a [6]float64
}

func newQuintic(p0, v0, a0, p1, v1, a1, d float64) quintic {
	if d <= 0 {
		// Degenerate segment: constant at the end point.
		return quintic{a: [6]float64{p1}}
	}

	dp := p1 - p0
	d2 := d * d
	d3 := d2 * d

	var q quintic
	q.a[0] = p0
	q.a[1] = v0
	q.a[2] = a0 / 2
	q.a[3] = (20*dp - (8*v1+12*v0)*d - (3*a0-a1)*d2) / (2 * d3)
	q.a[4] = (-30*dp + (14*v1+16*v0)*d + (3*a0-2*a1)*d2) / (2 * d3 * d)
	q.a[5] = (12*dp - 6*(v1+v0)*d + (a1-a0)*d2) / (2 * d3 * d2)
	return q
}

// Eval returns position and velocity at time t within the segment.
func (q quintic) Eval(t float64) (pos, vel float64) {
	t2 := t * t
	t3 := t2 * t
	t4 := t3 * t
	t5 := t4 * t
	pos = q.a[0] + q.a[1]*t + q.a[2]*t2 + q.a[3]*t3 + q.a[4]*t4 + q.a[5]*t5
	vel = q.a[1] + 2*q.a[2]*t + 3*q.a[3]*t2 + 4*q.a[4]*t3 + 5*q.a[5]*t4
	return pos, vel
}

func lerp(a, b r2.Point, s float64) r2.Point {
	return a.Add(b.Sub(a).Mul(s))
}

func resizePoints(buf []r2.Point, n int) []r2.Point {
	if cap(buf) < n {
		return make([]r2.Point, n)
	}
	return buf[:n]
}
