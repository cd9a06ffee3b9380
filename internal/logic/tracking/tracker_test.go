package tracking

import (
	"context"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cjeanneret/HelioGo/internal/hw/gpio"
	"github.com/cjeanneret/HelioGo/internal/hw/stepper"
	"github.com/cjeanneret/HelioGo/internal/logic/kinematics"
	"github.com/cjeanneret/HelioGo/internal/logic/motion"
	"github.com/cjeanneret/HelioGo/internal/logic/sun"
)

// PSA in Almeria, Spain
const (
	testLatDeg = 37.09
	testLonDeg = -2.36
)

// Summer noon and local midnight at the test site.
var (
	daytime   = time.Date(2026, 6, 21, 12, 0, 0, 0, time.UTC)
	nighttime = time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
)

func newTestKinematic(t *testing.T) *kinematics.RigidBody {
	t.Helper()
	k, err := kinematics.NewRigidBody(kinematics.Config{
		AimPoint:  r3.Vec{Y: 100, Z: 30},
		Actuators: []kinematics.Actuator{kinematics.IdealActuator{}, kinematics.IdealActuator{}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func newTestMotion() *motion.Controller {
	drv := &gpio.MockDriver{}
	cfg := stepper.Config{StepPin: 1, DirPin: 2, StepDelay: 1 * time.Microsecond}
	return motion.NewController(stepper.NewStepper(drv, cfg), stepper.NewStepper(drv, stepper.Config{
		StepPin: 3, DirPin: 4, StepDelay: 1 * time.Microsecond,
	}))
}

func TestRun_MovesToSolvedPositions(t *testing.T) {
	k := newTestKinematic(t)
	ctrl := newTestMotion()
	tracker := NewTracker(k, ctrl)

	err := tracker.Run(context.Background(), Params{
		LatitudeDeg:  testLatDeg,
		LongitudeDeg: testLonDeg,
		Ticks:        1,
		Now:          func() time.Time { return daytime },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The controller must land on the same solution the kinematic produces
	// directly, rounded to whole microsteps.
	if _, elDeg := sun.Position(daytime, testLatDeg, testLonDeg); elDeg <= 0 {
		t.Fatal("test premise broken: sun must be up at summer noon")
	}
	ray := sun.IncidentRay(daytime, testLatDeg, testLonDeg)
	results, err := k.AlignFull([]r3.Vec{ray}, kinematics.AlignParams{})
	if err != nil {
		t.Fatal(err)
	}
	want := [2]float64{
		math.Round(results[0].ActuatorPositions[0]),
		math.Round(results[0].ActuatorPositions[1]),
	}
	if got := ctrl.Positions(); got != want {
		t.Errorf("positions = %v, want %v", got, want)
	}
}

func TestRun_ReportsUpdates(t *testing.T) {
	k := newTestKinematic(t)
	ctrl := newTestMotion()
	tracker := NewTracker(k, ctrl)

	var updates []Update
	err := tracker.Run(context.Background(), Params{
		LatitudeDeg:  testLatDeg,
		LongitudeDeg: testLonDeg,
		Ticks:        2,
		Interval:     time.Millisecond,
		OnUpdate:     func(u Update) { updates = append(updates, u) },
		Now:          func() time.Time { return daytime },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(updates))
	}
	for i, u := range updates {
		if u.Tick != i+1 || u.Ticks != 2 {
			t.Errorf("update %d: tick = %d/%d, want %d/2", i, u.Tick, u.Ticks, i+1)
		}
		if !u.SunUp {
			t.Errorf("update %d: sun must be up at summer noon", i)
		}
		if u.ElevationDeg <= 0 {
			t.Errorf("update %d: elevation = %v, want > 0", i, u.ElevationDeg)
		}
	}

	// The reported actuator positions are the solver's; the motors land on
	// them rounded to whole microsteps.
	last := updates[len(updates)-1]
	want := [2]float64{
		math.Round(last.ActuatorPositions[0]),
		math.Round(last.ActuatorPositions[1]),
	}
	if got := ctrl.Positions(); got != want {
		t.Errorf("positions = %v, want %v", got, want)
	}
	if last.Iterations < 1 {
		t.Errorf("iterations = %d, want >= 1", last.Iterations)
	}
}

func TestRun_ReportsSunDownUpdate(t *testing.T) {
	tracker := NewTracker(newTestKinematic(t), newTestMotion())

	var updates []Update
	err := tracker.Run(context.Background(), Params{
		LatitudeDeg:  testLatDeg,
		LongitudeDeg: testLonDeg,
		Ticks:        1,
		OnUpdate:     func(u Update) { updates = append(updates, u) },
		Now:          func() time.Time { return nighttime },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	u := updates[0]
	if u.SunUp {
		t.Error("sun must be down at local midnight")
	}
	if u.ActuatorPositions != [2]float64{0, 0} {
		t.Errorf("actuator positions = %v, want zero on a held tick", u.ActuatorPositions)
	}
}

func TestRun_HoldsPositionAtNight(t *testing.T) {
	ctrl := newTestMotion()
	tracker := NewTracker(newTestKinematic(t), ctrl)

	err := tracker.Run(context.Background(), Params{
		LatitudeDeg:  testLatDeg,
		LongitudeDeg: testLonDeg,
		Ticks:        2,
		Now:          func() time.Time { return nighttime },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := ctrl.Positions(); got != [2]float64{0, 0} {
		t.Errorf("positions = %v, want [0 0] (no movement at night)", got)
	}
}

func TestRun_ZeroTicks(t *testing.T) {
	tracker := NewTracker(newTestKinematic(t), newTestMotion())
	if err := tracker.Run(context.Background(), Params{Ticks: 0}); err != nil {
		t.Errorf("Run with zero ticks: %v", err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	tracker := NewTracker(newTestKinematic(t), newTestMotion())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tracker.Run(ctx, Params{
		LatitudeDeg:  testLatDeg,
		LongitudeDeg: testLonDeg,
		Ticks:        5,
		Interval:     time.Hour,
		Now:          func() time.Time { return daytime },
	})
	if err != context.Canceled {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestRun_CancelDuringInterval(t *testing.T) {
	ctrl := newTestMotion()
	tracker := NewTracker(newTestKinematic(t), ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tracker.Run(ctx, Params{
			LatitudeDeg:  testLatDeg,
			LongitudeDeg: testLonDeg,
			Ticks:        100,
			Interval:     time.Hour,
			Now:          func() time.Time { return daytime },
		})
	}()

	// Let the first tick complete, then cancel during the interval wait.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestRun_MultipleTicksConverge(t *testing.T) {
	ctrl := newTestMotion()
	tracker := NewTracker(newTestKinematic(t), ctrl)

	err := tracker.Run(context.Background(), Params{
		LatitudeDeg:  testLatDeg,
		LongitudeDeg: testLonDeg,
		Ticks:        3,
		Interval:     time.Millisecond,
		Now:          func() time.Time { return daytime },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Same time on every tick: after the first move the deltas are zero and
	// the position stays put.
	first := ctrl.Positions()
	if first == [2]float64{0, 0} {
		t.Error("expected movement on the first tick")
	}
}
