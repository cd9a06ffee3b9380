package motion

import (
	"math"

	"github.com/cjeanneret/HelioGo/internal/debug"
	"github.com/cjeanneret/HelioGo/internal/hw/stepper"
)

// Controller orchestrates the two joint drives. It is the intermediate layer
// between the kinematic solver (which produces absolute actuator positions)
// and the low-level stepper/GPIO code, and it tracks where each drive
// currently is so moves can be issued as deltas.
//
// Both joints are assumed to start at actuator position zero (homed).
type Controller struct {
	joint1 *stepper.Stepper
	joint2 *stepper.Stepper
	pos1   float64 // current joint 1 actuator position, microsteps
	pos2   float64 // current joint 2 actuator position, microsteps
}

func NewController(joint1, joint2 *stepper.Stepper) *Controller {
	return &Controller{
		joint1: joint1,
		joint2: joint2,
	}
}

// Positions returns the current (joint 1, joint 2) actuator positions.
func (c *Controller) Positions() [2]float64 {
	return [2]float64{c.pos1, c.pos2}
}

// MoveJoint1 moves the first joint by a relative number of microsteps.
func (c *Controller) MoveJoint1(steps int) error {
	if err := c.joint1.MoveSteps(steps); err != nil {
		return err
	}
	c.pos1 += float64(steps)
	return nil
}

// MoveJoint2 moves the second joint by a relative number of microsteps.
func (c *Controller) MoveJoint2(steps int) error {
	if err := c.joint2.MoveSteps(steps); err != nil {
		return err
	}
	c.pos2 += float64(steps)
	return nil
}

// MoveTo drives both joints to the given absolute actuator positions
// (sequential for now; the axes could be synchronized later). Deltas are
// rounded to whole microsteps, so each joint lands within half a microstep
// of the requested position.
func (c *Controller) MoveTo(positions [2]float64) error {
	steps1 := int(math.Round(positions[0] - c.pos1))
	steps2 := int(math.Round(positions[1] - c.pos2))

	if steps1 != 0 {
		debug.Move("joint1", steps1, directionName(steps1))
		if err := c.MoveJoint1(steps1); err != nil {
			return err
		}
	}
	if steps2 != 0 {
		debug.Move("joint2", steps2, directionName(steps2))
		if err := c.MoveJoint2(steps2); err != nil {
			return err
		}
	}
	return nil
}

// EnableMotors powers both joint drivers (holding torque on).
func (c *Controller) EnableMotors() error {
	if err := c.joint1.Enable(); err != nil {
		return err
	}
	return c.joint2.Enable()
}

// DisableMotors releases both joint drivers (freewheel, no holding torque).
func (c *Controller) DisableMotors() error {
	if err := c.joint1.Disable(); err != nil {
		return err
	}
	return c.joint2.Disable()
}

func directionName(steps int) string {
	if steps > 0 {
		return "forward"
	}
	return "backward"
}
