package tracking

import (
	"context"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cjeanneret/HelioGo/internal/debug"
	"github.com/cjeanneret/HelioGo/internal/logic/kinematics"
	"github.com/cjeanneret/HelioGo/internal/logic/motion"
	"github.com/cjeanneret/HelioGo/internal/logic/sun"
)

// Tracker contains the high-level sun-tracking logic: at each tick it
// computes the current incident ray, solves the mount kinematics and drives
// both joints to the solved actuator positions.
type Tracker struct {
	kinematic *kinematics.RigidBody
	motion    *motion.Controller
}

func NewTracker(k *kinematics.RigidBody, m *motion.Controller) *Tracker {
	return &Tracker{
		kinematic: k,
		motion:    m,
	}
}

// Update reports one completed tracking tick. On a sun-down tick only the
// sun position fields are meaningful.
type Update struct {
	Tick              int // 1-based
	Ticks             int
	AzimuthDeg        float64
	ElevationDeg      float64
	SunUp             bool
	JointAngles       [2]float64
	ActuatorPositions [2]float64
	Iterations        int
	Loss              r3.Vec
}

// Params defines the parameters for one tracking run.
type Params struct {
	LatitudeDeg  float64
	LongitudeDeg float64

	Ticks    int           // number of alignment updates
	Interval time.Duration // delay between updates

	Align kinematics.AlignParams

	// OnUpdate, if non-nil, is called after every tick with the tick's
	// solved state. Called from the Run goroutine.
	OnUpdate func(Update)

	// Now supplies the current time; nil means time.Now. Injectable for tests.
	Now func() time.Time
}

// Run performs a tracking run: Ticks alignment updates, Interval apart.
// While the sun is below the horizon the mount holds its position. The run
// stops early when ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, p Params) error {
	now := p.Now
	if now == nil {
		now = time.Now
	}

	// Ensure motors are enabled before any movement
	_ = t.motion.EnableMotors()

	for tick := 0; tick < p.Ticks; tick++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		at := now()
		azDeg, elDeg := sun.Position(at, p.LatitudeDeg, p.LongitudeDeg)
		debug.Tick(tick+1, p.Ticks, azDeg, elDeg)

		update := Update{
			Tick:         tick + 1,
			Ticks:        p.Ticks,
			AzimuthDeg:   azDeg,
			ElevationDeg: elDeg,
			SunUp:        elDeg > 0,
		}

		if !update.SunUp {
			debug.Live("Sun below horizon, holding position")
		} else {
			ray := sun.IncidentRay(at, p.LatitudeDeg, p.LongitudeDeg)

			results, err := t.kinematic.AlignFull([]r3.Vec{ray}, p.Align)
			if err != nil {
				return err
			}
			r := results[0]
			debug.Joint("1", r.JointAngles[0], r.ActuatorPositions[0])
			debug.Joint("2", r.JointAngles[1], r.ActuatorPositions[1])
			debug.Verbose("Residual loss after %d iterations: (%.2e, %.2e, %.2e)",
				r.Iterations, r.Loss.X, r.Loss.Y, r.Loss.Z)

			if err := t.motion.MoveTo(r.ActuatorPositions); err != nil {
				return err
			}

			update.JointAngles = r.JointAngles
			update.ActuatorPositions = r.ActuatorPositions
			update.Iterations = r.Iterations
			update.Loss = r.Loss
		}

		if p.OnUpdate != nil {
			p.OnUpdate(update)
		}

		// No delay after the last tick
		if tick < p.Ticks-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Interval):
			}
		}
	}

	return nil
}
