package unicycle

import (
	"math"
	"time"
)

// buildHeight fills the CoM height buffers with n samples. During every
// step cycle the height follows a raised-sine bump of comHeightDelta that
// returns to comHeight exactly at each impact; outside step cycles the
// height is constant.
func (g *Generator) buildHeight(initTime, dt time.Duration, n int, cycles []cycle) {
	g.heightPos = resizeFloats(g.heightPos, n)
	g.heightVel = resizeFloats(g.heightVel, n)
	g.heightAcc = resizeFloats(g.heightAcc, n)

	h := g.cfg.CoMHeight
	delta := g.cfg.CoMHeightDelta

	ci := 0
	for i := 0; i < n; i++ {
		t := initTime + time.Duration(i)*dt
		for ci < len(cycles) && t >= cycles[ci].End {
			ci++
		}

		if ci >= len(cycles) || t < cycles[ci].Start {
			g.heightPos[i] = h
			g.heightVel[i] = 0
			g.heightAcc[i] = 0
			continue
		}

		c := cycles[ci]
		d := (c.End - c.Start).Seconds()
		s := (t - c.Start).Seconds() / d

		// z = h + delta sin^2(pi s)
		g.heightPos[i] = h + delta*math.Pow(math.Sin(math.Pi*s), 2)
		g.heightVel[i] = delta * math.Pi / d * math.Sin(2*math.Pi*s)
		g.heightAcc[i] = delta * 2 * math.Pi * math.Pi / (d * d) * math.Cos(2*math.Pi*s)
	}
}

func resizeFloats(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	return buf[:n]
}
