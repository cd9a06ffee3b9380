package kinematics

import (
	"fmt"
	"math"
)

// Actuator converts a physical drive position (microstep count for a stepper
// drive) into a joint rotation angle in radians, and back. Both directions
// must round-trip within numeric precision; the alignment loop relies on it.
type Actuator interface {
	AngleFromPosition(position float64) float64
	PositionFromAngle(angle float64) float64
}

// IdealActuator maps position to angle one-to-one. Useful for tests and for
// simulated heliostats without a physical drive model.
type IdealActuator struct{}

func (IdealActuator) AngleFromPosition(position float64) float64 { return position }
func (IdealActuator) PositionFromAngle(angle float64) float64    { return angle }

// LinearActuator models a stepper-driven joint: the joint angle grows
// linearly with the microstep count. The steps-per-radian factor derives
// from the motor's full steps per revolution and the driver microstepping,
// like an A4988 driven NEMA17.
type LinearActuator struct {
	stepsPerRad float64
	offset      float64 // microstep count at angle zero
	dir         float64 // +1, or -1 for clockwise-positive drives
}

// NewLinearActuator creates a linear actuator model.
// offsetSteps is the microstep count corresponding to joint angle zero.
func NewLinearActuator(stepsPerRev, microstepping int, offsetSteps float64, clockwise bool) (*LinearActuator, error) {
	if stepsPerRev <= 0 {
		return nil, fmt.Errorf("steps_per_rev must be > 0, got %d", stepsPerRev)
	}
	if microstepping <= 0 {
		return nil, fmt.Errorf("microstepping must be > 0, got %d", microstepping)
	}
	dir := 1.0
	if clockwise {
		dir = -1.0
	}
	return &LinearActuator{
		stepsPerRad: float64(stepsPerRev*microstepping) / (2 * math.Pi),
		offset:      offsetSteps,
		dir:         dir,
	}, nil
}

// AngleFromPosition converts a microstep count to the joint angle in radians.
func (a *LinearActuator) AngleFromPosition(position float64) float64 {
	return a.dir * (position - a.offset) / a.stepsPerRad
}

// PositionFromAngle converts a joint angle in radians to a microstep count.
func (a *LinearActuator) PositionFromAngle(angle float64) float64 {
	return a.offset + a.dir*angle*a.stepsPerRad
}
