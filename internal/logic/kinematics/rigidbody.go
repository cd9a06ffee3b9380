package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Config holds everything a rigid body kinematic needs at construction.
// Position and AimPoint are ENU world coordinates; Actuators must contain
// exactly two entries, ordered (joint 1, joint 2).
type Config struct {
	Position   r3.Vec
	AimPoint   r3.Vec
	Actuators  []Actuator
	Offsets    OrientationOffsets
	Deviations DeviationParameters
}

// RigidBody solves the two-joint mount kinematics of a heliostat: which
// joint angles, and hence which rigid transform, make the mirror reflect an
// incoming ray onto the fixed aim point. All fields are immutable after
// construction; every Align call is an independent, reentrant solve.
type RigidBody struct {
	position   r3.Vec
	aimPoint   r3.Vec
	joint1     Actuator
	joint2     Actuator
	offsets    OrientationOffsets
	deviations DeviationParameters
}

// NewRigidBody creates the kinematic. It fails unless exactly two actuators
// are configured.
func NewRigidBody(cfg Config) (*RigidBody, error) {
	if len(cfg.Actuators) != 2 {
		return nil, fmt.Errorf("rigid body kinematic requires exactly two actuators, got %d", len(cfg.Actuators))
	}
	return &RigidBody{
		position:   cfg.Position,
		aimPoint:   cfg.AimPoint,
		joint1:     cfg.Actuators[0],
		joint2:     cfg.Actuators[1],
		offsets:    cfg.Offsets,
		deviations: cfg.Deviations,
	}, nil
}

// Position returns the mount position in ENU coordinates.
func (k *RigidBody) Position() r3.Vec { return k.position }

// AimPoint returns the fixed target the mirror reflects toward.
func (k *RigidBody) AimPoint() r3.Vec { return k.aimPoint }

// Deviations returns a copy of the deviation parameters.
func (k *RigidBody) Deviations() DeviationParameters { return k.deviations }

// AlignParams bounds the fixed-point iteration of Align.
// Zero values select the defaults.
type AlignParams struct {
	MaxIterations int     // default 2
	MinEps        float64 // default 1e-4
}

func (p AlignParams) withDefaults() AlignParams {
	if p.MaxIterations <= 0 {
		p.MaxIterations = 2
	}
	if p.MinEps <= 0 {
		p.MinEps = 1e-4
	}
	return p
}

// Result is the outcome of one alignment solve for a single incident ray.
type Result struct {
	Orientation       Orientation
	JointAngles       [2]float64 // radians
	ActuatorPositions [2]float64 // actuator units (microsteps for linear drives)
	Loss              r3.Vec     // elementwise |desired - implied| normal residual
	Iterations        int
}

// buildChain composes the forward transform from world frame to mirror frame
// for the given joint angles: mount position, then the joint 1 stage (tilt
// deviations, translation deviations, rotation about E), then the joint 2
// stage (tilt deviations, translation deviations, rotation about U), then the
// concentrator translation deviations.
func (k *RigidBody) buildChain(joint1Angle, joint2Angle float64) Orientation {
	d := k.deviations
	return Orientation{m: compose(
		TranslateENU(k.position.X, k.position.Y, k.position.Z),
		RotateN(d.FirstJointTiltN),
		RotateU(d.FirstJointTiltU),
		TranslateENU(d.FirstJointTranslationE, d.FirstJointTranslationN, d.FirstJointTranslationU),
		RotateE(joint1Angle),
		RotateE(d.SecondJointTiltE),
		RotateN(d.SecondJointTiltN),
		TranslateENU(d.SecondJointTranslationE, d.SecondJointTranslationN, d.SecondJointTranslationU),
		RotateU(joint2Angle),
		TranslateENU(d.ConcentratorTranslationE, d.ConcentratorTranslationN, d.ConcentratorTranslationU),
	)}
}

// desiredNormal computes the law-of-reflection half vector for a unit
// incident ray (direction of light travel, sun toward heliostat) and the
// current mirror origin: the normal bisects the reversed incident direction
// and the direction toward the aim point.
func (k *RigidBody) desiredNormal(ray, origin r3.Vec) r3.Vec {
	reflect := r3.Unit(r3.Sub(k.aimPoint, origin))
	return r3.Unit(r3.Sub(reflect, ray))
}

// solveJointAngles inverts the rotational part of the forward chain in
// closed form for a desired world-frame normal. The division by
// cos(SecondJointTranslationN) and the trig cross terms in a and b couple
// the second joint's translation deviations into the angle solution; this
// is intentional in the physical model.
func (k *RigidBody) solveJointAngles(m r3.Vec) (joint1, joint2 float64) {
	d := k.deviations
	joint2 = -math.Asin(-m.X / math.Cos(d.SecondJointTranslationN))

	a := -math.Cos(d.SecondJointTranslationE)*math.Cos(joint2) +
		math.Sin(d.SecondJointTranslationE)*math.Sin(d.SecondJointTranslationN)*math.Sin(joint2)
	b := -math.Sin(d.SecondJointTranslationE)*math.Cos(joint2) -
		math.Cos(d.SecondJointTranslationE)*math.Sin(d.SecondJointTranslationN)*math.Sin(joint2)

	joint1 = math.Atan2(a*-m.Z-b*-m.Y, a*-m.Y+b*-m.Z) - math.Pi
	return joint1, joint2
}

// AlignFull runs the bounded fixed-point iteration for a batch of incident
// rays and reports the full per-element solver state. Incident rays are the
// direction of light travel (sun toward heliostat); they are normalized into
// a copy, the caller's slice is never mutated.
//
// Each round converts actuator positions to joint angles, builds the forward
// chain, compares its implied normal against the geometrically desired one,
// and re-solves the joint angles analytically. From the second round on the
// loop exits early as soon as the loss change of ANY batch element's ANY
// normal component is <= MinEps. Exhausting MaxIterations is not an error:
// the best orientation reached is returned with its residual loss.
//
// Degenerate geometry (zero-length rays, aim point at the mirror origin,
// cos(SecondJointTranslationN) near zero) is not checked; non-finite values
// propagate into the result. Callers must ensure well-posed inputs.
func (k *RigidBody) AlignFull(incidentRays []r3.Vec, params AlignParams) ([]Result, error) {
	if len(incidentRays) == 0 {
		return nil, fmt.Errorf("at least one incident ray is required")
	}
	p := params.withDefaults()

	n := len(incidentRays)
	rays := make([]r3.Vec, n)
	for i, r := range incidentRays {
		rays[i] = r3.Unit(r)
	}

	results := make([]Result, n)
	positions := make([][2]float64, n) // both joints start at actuator position zero
	desired := make([]r3.Vec, n)
	var lastLoss []r3.Vec

	iterations := 0
	for iter := 0; iter < p.MaxIterations; iter++ {
		iterations = iter + 1
		loss := make([]r3.Vec, n)
		for i := range rays {
			theta1 := k.joint1.AngleFromPosition(positions[i][0])
			theta2 := k.joint2.AngleFromPosition(positions[i][1])
			orientation := k.buildChain(theta1, theta2)

			desired[i] = k.desiredNormal(rays[i], orientation.Origin())
			implied := orientation.Normal()
			loss[i] = r3.Vec{
				X: math.Abs(desired[i].X - implied.X),
				Y: math.Abs(desired[i].Y - implied.Y),
				Z: math.Abs(desired[i].Z - implied.Z),
			}

			results[i].Orientation = orientation
			results[i].JointAngles = [2]float64{theta1, theta2}
			results[i].ActuatorPositions = positions[i]
			results[i].Loss = loss[i]
		}

		// No previous loss on the first round; afterwards, stop before
		// re-solving so the returned orientation matches the stable loss.
		if lastLoss != nil && anyWithinEps(lastLoss, loss, p.MinEps) {
			break
		}
		lastLoss = loss

		for i := range rays {
			theta1, theta2 := k.solveJointAngles(desired[i])
			positions[i] = [2]float64{
				k.joint1.PositionFromAngle(theta1),
				k.joint2.PositionFromAngle(theta2),
			}
		}
	}

	// Fixed angular correction, applied once outside the loop.
	offset := compose(RotateE(k.offsets.E), RotateN(k.offsets.N), RotateU(k.offsets.U))
	for i := range results {
		corrected := mat.NewDense(4, 4, nil)
		corrected.Mul(results[i].Orientation.m, offset)
		results[i].Orientation = Orientation{m: corrected}
		results[i].Iterations = iterations
	}
	return results, nil
}

// anyWithinEps reports whether any element's any component changed by at
// most eps between the two loss snapshots.
func anyWithinEps(last, cur []r3.Vec, eps float64) bool {
	for i := range cur {
		if math.Abs(last[i].X-cur[i].X) <= eps ||
			math.Abs(last[i].Y-cur[i].Y) <= eps ||
			math.Abs(last[i].Z-cur[i].Z) <= eps {
			return true
		}
	}
	return false
}

// Align computes the orientation transform for each incident ray in the
// batch. See AlignFull for the iteration and error semantics.
func (k *RigidBody) Align(incidentRays []r3.Vec, params AlignParams) ([]Orientation, error) {
	results, err := k.AlignFull(incidentRays, params)
	if err != nil {
		return nil, err
	}
	orientations := make([]Orientation, len(results))
	for i, r := range results {
		orientations[i] = r.Orientation
	}
	return orientations, nil
}

// AlignSurface aligns a discretized mirror surface for a single incident
// ray: one Align solve, then the same 4x4 transform applied to every surface
// point (w=1) and surface normal (w=0).
func (k *RigidBody) AlignSurface(incidentRay r3.Vec, points, normals []r3.Vec, params AlignParams) ([]r3.Vec, []r3.Vec, error) {
	if len(points) != len(normals) {
		return nil, nil, fmt.Errorf("surface points and normals must have the same length, got %d and %d", len(points), len(normals))
	}
	orientations, err := k.Align([]r3.Vec{incidentRay}, params)
	if err != nil {
		return nil, nil, err
	}
	orientation := orientations[0]

	alignedPoints := make([]r3.Vec, len(points))
	alignedNormals := make([]r3.Vec, len(normals))
	for i := range points {
		alignedPoints[i] = orientation.ApplyPoint(points[i])
		alignedNormals[i] = orientation.ApplyDirection(normals[i])
	}
	return alignedPoints, alignedNormals, nil
}
