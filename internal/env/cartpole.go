package env

import (
	"math"
	"math/rand"
)

const (
	gravity        = 9.81
	massCart       = 1.0
	massPole       = 0.1
	poleHalfLength = 0.5
	totalMass      = massCart + massPole
	poleMassLength = massPole * poleHalfLength
	forceMag       = 10.0
	tau            = 0.02

	xThreshold     = 2.4
	thetaThreshold = 12.0 * math.Pi / 180.0

	// CartPoleMaxSteps truncates an episode
	CartPoleMaxSteps = 500
)

// cartPole is a single pole-balancing environment
type cartPole struct {
	x, xDot, theta, thetaDot float64
	steps                    int
	rng                      *rand.Rand
}

func (c *cartPole) reset() {
	c.x = c.rng.Float64()*0.1 - 0.05
	c.xDot = c.rng.Float64()*0.1 - 0.05
	c.theta = c.rng.Float64()*0.1 - 0.05
	c.thetaDot = c.rng.Float64()*0.1 - 0.05
	c.steps = 0
}

func (c *cartPole) observe(dst []float64) {
	dst[0], dst[1], dst[2], dst[3] = c.x, c.xDot, c.theta, c.thetaDot
}

// step pushes the cart left (0) or right (1) for one tick
func (c *cartPole) step(action int) (float64, bool) {
	force := forceMag
	if action == 0 {
		force = -forceMag
	}

	cosTheta := math.Cos(c.theta)
	sinTheta := math.Sin(c.theta)

	temp := (force + poleMassLength*c.thetaDot*c.thetaDot*sinTheta) / totalMass
	thetaAcc := (gravity*sinTheta - cosTheta*temp) /
		(poleHalfLength * (4.0/3.0 - massPole*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thetaAcc*cosTheta/totalMass

	c.x += tau * c.xDot
	c.xDot += tau * xAcc
	c.theta += tau * c.thetaDot
	c.thetaDot += tau * thetaAcc
	c.steps++

	fell := c.x < -xThreshold || c.x > xThreshold || c.theta < -thetaThreshold || c.theta > thetaThreshold
	if fell {
		return 0, true
	}
	return 1, c.steps >= CartPoleMaxSteps
}
