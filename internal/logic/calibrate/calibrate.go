// Package calibrate fits mount deviation parameters from measured mirror
// normals. A calibrated parameter set lets the kinematic solver reproduce the
// real mount instead of its idealized design.
package calibrate

import (
	"fmt"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cjeanneret/HelioGo/internal/debug"
	"github.com/cjeanneret/HelioGo/internal/logic/kinematics"
)

// Observation pairs an incident ray direction (light travel, sun toward
// mirror) with the mirror normal measured after the mount aligned itself.
type Observation struct {
	IncidentRay r3.Vec
	Normal      r3.Vec
}

// Params selects what to fit and how.
type Params struct {
	// Names of the deviation parameters to fit, in snake_case
	// (see kinematics.DeviationNames). At least one is required.
	Fit []string

	Align kinematics.AlignParams

	// GradientStep is the finite-difference step; 0 selects the fd default.
	GradientStep float64
}

// Fit adjusts the selected deviation parameters of base so that the solved
// mirror normals match the observations in the least-squares sense. The
// returned parameter set is base's with the fitted fields replaced; base
// itself is not modified.
//
// The objective is evaluated through the full alignment solve, so the fitted
// parameters absorb exactly the effect they have on real alignments. Needs
// at least as many observations as fitted parameters to be well posed.
func Fit(base kinematics.Config, obs []Observation, p Params) (kinematics.DeviationParameters, error) {
	if len(p.Fit) == 0 {
		return base.Deviations, fmt.Errorf("no deviation parameters selected for fitting")
	}
	if len(obs) == 0 {
		return base.Deviations, fmt.Errorf("at least one observation is required")
	}
	// Validate names up front
	probe := base.Deviations
	x0 := make([]float64, len(p.Fit))
	for i, name := range p.Fit {
		field, err := probe.Field(name)
		if err != nil {
			return base.Deviations, err
		}
		x0[i] = *field
	}

	objective := func(x []float64) float64 {
		cost, err := residual(base, p, x, obs)
		if err != nil {
			// Degenerate candidate (should not happen for finite x);
			// steer the optimizer away.
			return 1e12
		}
		return cost
	}

	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, x []float64) {
			settings := &fd.Settings{Step: p.GradientStep}
			if p.GradientStep == 0 {
				settings = nil
			}
			fd.Gradient(grad, objective, x, settings)
		},
	}

	result, err := optimize.Minimize(problem, x0, nil, &optimize.BFGS{})
	if err != nil {
		return base.Deviations, fmt.Errorf("deviation fit failed: %w", err)
	}
	debug.Info("Calibration converged: cost=%.3e after %d evaluations", result.F, result.FuncEvaluations)

	fitted := base.Deviations
	for i, name := range p.Fit {
		field, _ := fitted.Field(name)
		*field = result.X[i]
	}
	return fitted, nil
}

// residual builds a kinematic with the candidate parameter values and sums
// the squared normal mismatch over all observations.
func residual(base kinematics.Config, p Params, x []float64, obs []Observation) (float64, error) {
	deviations := base.Deviations
	for i, name := range p.Fit {
		field, err := deviations.Field(name)
		if err != nil {
			return 0, err
		}
		*field = x[i]
	}

	cfg := base
	cfg.Deviations = deviations
	kin, err := kinematics.NewRigidBody(cfg)
	if err != nil {
		return 0, err
	}

	rays := make([]r3.Vec, len(obs))
	for i, o := range obs {
		rays[i] = o.IncidentRay
	}
	orientations, err := kin.Align(rays, p.Align)
	if err != nil {
		return 0, err
	}

	var cost float64
	for i, o := range orientations {
		d := r3.Sub(o.Normal(), obs[i].Normal)
		cost += r3.Dot(d, d)
	}
	return cost, nil
}
