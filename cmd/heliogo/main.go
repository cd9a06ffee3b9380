package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cjeanneret/HelioGo/internal/config"
	"github.com/cjeanneret/HelioGo/internal/debug"
	"github.com/cjeanneret/HelioGo/internal/hw/gpio"
	"github.com/cjeanneret/HelioGo/internal/hw/stepper"
	"github.com/cjeanneret/HelioGo/internal/logic/calibrate"
	"github.com/cjeanneret/HelioGo/internal/logic/kinematics"
	"github.com/cjeanneret/HelioGo/internal/logic/motion"
	"github.com/cjeanneret/HelioGo/internal/logic/sun"
	"github.com/cjeanneret/HelioGo/internal/logic/surface"
	"github.com/cjeanneret/HelioGo/internal/logic/tracking"
	"github.com/cjeanneret/HelioGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	maxIterations := flag.Int("max_iterations", 0, "override alignment iteration cap (1-50)")
	trackTicks := flag.Int("track_ticks", 0, "override number of tracking updates (1-100000)")
	trackIntervalS := flag.Int("track_interval_s", 0, "override seconds between tracking updates (1-3600)")
	surfaceMode := flag.Bool("surface", false, "print the aligned facet grid pose for the current sun position, then exit")
	calibratePath := flag.String("calibrate", "", "fit deviation parameters from a calibration file in configs/, then exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (only non-zero values are applied; zero means "use config default")
	if err := validateCLIOverrides(*maxIterations, *trackTicks, *trackIntervalS); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, web.Overrides{
		MaxIterations:  *maxIterations,
		TrackTicks:     *trackTicks,
		TrackIntervalS: *trackIntervalS,
	})

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	// Build the kinematic solver
	kin, err := newKinematicFromConfig(cfg)
	if err != nil {
		log.Fatalf("init kinematic failed: %v", err)
	}
	debug.Value("Position", cfg.Heliostat.Position)
	debug.Value("Aim point", cfg.Heliostat.AimPoint)
	debug.Value("Max iterations", cfg.Defaults.MaxIterations)
	debug.Value("Min eps", cfg.Defaults.MinEps)

	// One-shot modes that need no motors
	if *calibratePath != "" {
		if err := runCalibration(cfg, *calibratePath); err != nil {
			log.Fatalf("calibration failed: %v", err)
		}
		return
	}
	if *surfaceMode {
		if err := printSurfaceReport(os.Stdout, cfg, kin, time.Now()); err != nil {
			log.Fatalf("surface report failed: %v", err)
		}
		return
	}

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Initialize joint drive motors
	debug.Step(2, "Initializing joint drive motors")
	stepDelay := cfg.MoveSpeed() / 2
	joint1Motor := stepper.NewStepper(gpioDriver, stepper.Config{
		StepPin:   cfg.Joint1Stepper.StepPin,
		DirPin:    cfg.Joint1Stepper.DirPin,
		EnablePin: cfg.Joint1Stepper.EnablePin,
		StepDelay: stepDelay,
	})
	debug.PrintStruct("Joint 1 stepper config", cfg.Joint1Stepper)
	joint2Motor := stepper.NewStepper(gpioDriver, stepper.Config{
		StepPin:   cfg.Joint2Stepper.StepPin,
		DirPin:    cfg.Joint2Stepper.DirPin,
		EnablePin: cfg.Joint2Stepper.EnablePin,
		StepDelay: stepDelay,
	})
	debug.PrintStruct("Joint 2 stepper config", cfg.Joint2Stepper)

	motionCtrl := motion.NewController(joint1Motor, joint2Motor)

	// With the web server on, tracking ticks are mirrored to SSE clients.
	var broadcaster *web.StatusBroadcaster
	var onUpdate func(tracking.Update)
	if webPort.port() > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		onUpdate = func(u tracking.Update) {
			broadcaster.BroadcastTrack(web.TrackState{
				Tick:         u.Tick,
				Ticks:        u.Ticks,
				AzimuthDeg:   u.AzimuthDeg,
				ElevationDeg: u.ElevationDeg,
				SunUp:        u.SunUp,
				Joint1Rad:    u.JointAngles[0],
				Joint2Rad:    u.JointAngles[1],
				Actuator1:    u.ActuatorPositions[0],
				Actuator2:    u.ActuatorPositions[1],
			})
		}
	}

	// Build runTrack closure over hardware and base config
	runTrack := func(ctx context.Context, overrides web.Overrides) error {
		return executeTracking(ctx, cfg, motionCtrl, overrides, onUpdate)
	}

	if broadcaster != nil {
		webAddr := fmt.Sprintf(":%d", webPort.port())
		formDefaults := web.FormConfig{
			AimPointE:      cfg.Heliostat.AimPoint.E,
			AimPointN:      cfg.Heliostat.AimPoint.N,
			AimPointU:      cfg.Heliostat.AimPoint.U,
			MaxIterations:  cfg.Defaults.MaxIterations,
			TrackTicks:     cfg.Defaults.TrackTicks,
			TrackIntervalS: cfg.Defaults.TrackIntervalS,
		}
		srv := web.NewServer(webAddr, broadcaster, runTrack, formDefaults)
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	{
		// Run one tracking sequence with current config (already has CLI overrides applied)
		if err := runTrack(ctx, web.Overrides{}); err != nil {
			log.Fatalf("tracking failed: %v", err)
		}
	}
}

// executeTracking runs the sun-tracking sequence with the given config and
// overrides. The kinematic is rebuilt per run so an aim point override takes
// effect for that run only.
func executeTracking(
	ctx context.Context,
	baseCfg *config.Config,
	motionCtrl *motion.Controller,
	overrides web.Overrides,
	onUpdate func(tracking.Update),
) error {
	cfg := applyOverridesToCopy(baseCfg, overrides)
	kin, err := newKinematicFromConfig(cfg)
	if err != nil {
		return err
	}

	debug.Section("Starting Tracking Sequence")
	debug.Value("Ticks", cfg.Defaults.TrackTicks)
	debug.Value("Interval", cfg.TrackInterval())
	debug.Value("Aim point", cfg.Heliostat.AimPoint)

	tracker := tracking.NewTracker(kin, motionCtrl)
	err = tracker.Run(ctx, tracking.Params{
		LatitudeDeg:  cfg.Location.LatitudeDeg,
		LongitudeDeg: cfg.Location.LongitudeDeg,
		Ticks:        cfg.Defaults.TrackTicks,
		Interval:     cfg.TrackInterval(),
		Align: kinematics.AlignParams{
			MaxIterations: cfg.Defaults.MaxIterations,
			MinEps:        cfg.Defaults.MinEps,
		},
		OnUpdate: onUpdate,
	})
	if err != nil {
		return err
	}

	debug.Section("Sequence Complete")
	return nil
}

// surfaceSummary is the result of one facet grid alignment.
type surfaceSummary struct {
	ElevationDeg float64
	Normal       r3.Vec
	Center       r3.Vec
	Points       int
}

// surfaceReport aligns the configured facet grid for the sun position at the
// given time. Fails while the sun is below the horizon.
func surfaceReport(cfg *config.Config, kin *kinematics.RigidBody, at time.Time) (surfaceSummary, error) {
	lat, lon := cfg.Location.LatitudeDeg, cfg.Location.LongitudeDeg
	elDeg := sun.Elevation(at, lat, lon)
	if elDeg <= 0 {
		return surfaceSummary{}, fmt.Errorf("sun below horizon (elevation %.2f°), nothing to align", elDeg)
	}

	facet := surface.Facet{
		WidthM:  cfg.Mirror.WidthM,
		HeightM: cfg.Mirror.HeightM,
		Cols:    cfg.Mirror.Cols,
		Rows:    cfg.Mirror.Rows,
	}
	points, normals, err := facet.Grid()
	if err != nil {
		return surfaceSummary{}, err
	}

	ray := sun.IncidentRay(at, lat, lon)
	alignedPoints, alignedNormals, err := kin.AlignSurface(ray, points, normals, kinematics.AlignParams{
		MaxIterations: cfg.Defaults.MaxIterations,
		MinEps:        cfg.Defaults.MinEps,
	})
	if err != nil {
		return surfaceSummary{}, err
	}

	var center r3.Vec
	for _, p := range alignedPoints {
		center = r3.Add(center, p)
	}
	center = r3.Scale(1/float64(len(alignedPoints)), center)

	return surfaceSummary{
		ElevationDeg: elDeg,
		Normal:       alignedNormals[0],
		Center:       center,
		Points:       len(alignedPoints),
	}, nil
}

// printSurfaceReport writes a human-readable facet pose report.
func printSurfaceReport(w io.Writer, cfg *config.Config, kin *kinematics.RigidBody, at time.Time) error {
	s, err := surfaceReport(cfg, kin, at)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Facet %g x %g m, %d x %d grid (%d points), sun elevation %.2f°\n",
		cfg.Mirror.WidthM, cfg.Mirror.HeightM, cfg.Mirror.Cols, cfg.Mirror.Rows, s.Points, s.ElevationDeg)
	fmt.Fprintf(w, "Mirror normal:  (%.6f, %.6f, %.6f)\n", s.Normal.X, s.Normal.Y, s.Normal.Z)
	fmt.Fprintf(w, "Surface center: (%.4f, %.4f, %.4f)\n", s.Center.X, s.Center.Y, s.Center.Z)
	return nil
}

// runCalibration fits the deviation parameters named in the calibration file
// and prints the fitted values in config YAML form, ready to paste into the
// deviations block.
func runCalibration(cfg *config.Config, calPath string) error {
	if err := config.ValidateConfigPath(calPath); err != nil {
		return fmt.Errorf("invalid calibration path: %w", err)
	}
	cal, err := config.LoadCalibration(calPath)
	if err != nil {
		return err
	}

	base, err := kinematicConfigFromConfig(cfg)
	if err != nil {
		return err
	}
	fitted, err := calibrate.Fit(base, observationsFromConfig(cal), calibrate.Params{
		Fit: cal.Fit,
		Align: kinematics.AlignParams{
			MaxIterations: cfg.Defaults.MaxIterations,
			MinEps:        cfg.Defaults.MinEps,
		},
	})
	if err != nil {
		return err
	}

	fmt.Println("Fitted deviation parameters:")
	for _, name := range cal.Fit {
		field, err := fitted.Field(name)
		if err != nil {
			return err
		}
		fmt.Printf("    %s: %.9g\n", name, *field)
	}
	return nil
}

// observationsFromConfig converts calibration file entries to solver
// observations.
func observationsFromConfig(cal *config.CalibrationConfig) []calibrate.Observation {
	obs := make([]calibrate.Observation, len(cal.Observations))
	for i, o := range cal.Observations {
		obs[i] = calibrate.Observation{
			IncidentRay: r3.Vec{X: o.IncidentRay.E, Y: o.IncidentRay.N, Z: o.IncidentRay.U},
			Normal:      r3.Vec{X: o.Normal.E, Y: o.Normal.N, Z: o.Normal.U},
		}
	}
	return obs
}

// kinematicConfigFromConfig maps the YAML configuration onto the solver's
// construction parameters.
func kinematicConfigFromConfig(cfg *config.Config) (kinematics.Config, error) {
	actuators := make([]kinematics.Actuator, 0, len(cfg.Actuators))
	for i, a := range cfg.Actuators {
		act, err := newActuatorFromConfig(a)
		if err != nil {
			return kinematics.Config{}, fmt.Errorf("actuator %d: %w", i+1, err)
		}
		actuators = append(actuators, act)
	}

	dev := cfg.Heliostat.Deviations
	return kinematics.Config{
		Position:  r3.Vec{X: cfg.Heliostat.Position.E, Y: cfg.Heliostat.Position.N, Z: cfg.Heliostat.Position.U},
		AimPoint:  r3.Vec{X: cfg.Heliostat.AimPoint.E, Y: cfg.Heliostat.AimPoint.N, Z: cfg.Heliostat.AimPoint.U},
		Actuators: actuators,
		Offsets: kinematics.OrientationOffsets{
			E: cfg.Heliostat.OrientationOffsets.OffsetE,
			N: cfg.Heliostat.OrientationOffsets.OffsetN,
			U: cfg.Heliostat.OrientationOffsets.OffsetU,
		},
		Deviations: kinematics.DeviationParameters{
			FirstJointTranslationE:   dev.FirstJointTranslationE,
			FirstJointTranslationN:   dev.FirstJointTranslationN,
			FirstJointTranslationU:   dev.FirstJointTranslationU,
			FirstJointTiltE:          dev.FirstJointTiltE,
			FirstJointTiltN:          dev.FirstJointTiltN,
			FirstJointTiltU:          dev.FirstJointTiltU,
			SecondJointTranslationE:  dev.SecondJointTranslationE,
			SecondJointTranslationN:  dev.SecondJointTranslationN,
			SecondJointTranslationU:  dev.SecondJointTranslationU,
			SecondJointTiltE:         dev.SecondJointTiltE,
			SecondJointTiltN:         dev.SecondJointTiltN,
			SecondJointTiltU:         dev.SecondJointTiltU,
			ConcentratorTranslationE: dev.ConcentratorTranslationE,
			ConcentratorTranslationN: dev.ConcentratorTranslationN,
			ConcentratorTranslationU: dev.ConcentratorTranslationU,
			ConcentratorTiltE:        dev.ConcentratorTiltE,
			ConcentratorTiltN:        dev.ConcentratorTiltN,
			ConcentratorTiltU:        dev.ConcentratorTiltU,
		},
	}, nil
}

// newKinematicFromConfig builds the rigid body kinematic from configuration.
func newKinematicFromConfig(cfg *config.Config) (*kinematics.RigidBody, error) {
	kc, err := kinematicConfigFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return kinematics.NewRigidBody(kc)
}

// newActuatorFromConfig selects an actuator model based on configuration.
func newActuatorFromConfig(a config.ActuatorConfig) (kinematics.Actuator, error) {
	switch a.Type {
	case "ideal":
		return kinematics.IdealActuator{}, nil
	case "linear":
		return kinematics.NewLinearActuator(a.StepsPerRev, a.Microstepping, a.OffsetSteps, a.Clockwise)
	default:
		return nil, fmt.Errorf("unsupported actuator type: %s", a.Type)
	}
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(maxIterations, trackTicks, trackIntervalS int) error {
	if maxIterations != 0 && (maxIterations < 1 || maxIterations > 50) {
		return fmt.Errorf("max_iterations must be between 1 and 50, got %d", maxIterations)
	}
	if trackTicks != 0 && (trackTicks < 1 || trackTicks > 100000) {
		return fmt.Errorf("track_ticks must be between 1 and 100000, got %d", trackTicks)
	}
	if trackIntervalS != 0 && (trackIntervalS < 1 || trackIntervalS > 3600) {
		return fmt.Errorf("track_interval_s must be between 1 and 3600, got %d", trackIntervalS)
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero (non-nil for the
// aim point) override values are applied.
func applyOverrides(cfg *config.Config, overrides web.Overrides) {
	if overrides.MaxIterations > 0 {
		cfg.Defaults.MaxIterations = overrides.MaxIterations
	}
	if overrides.TrackTicks > 0 {
		cfg.Defaults.TrackTicks = overrides.TrackTicks
	}
	if overrides.TrackIntervalS > 0 {
		cfg.Defaults.TrackIntervalS = overrides.TrackIntervalS
	}
	if overrides.AimPoint != nil {
		cfg.Heliostat.AimPoint = config.Vec3{
			E: overrides.AimPoint.E,
			N: overrides.AimPoint.N,
			U: overrides.AimPoint.U,
		}
	}
}

// applyOverridesToCopy returns a new config with overrides applied.
// Zero values in overrides mean "use base config".
func applyOverridesToCopy(baseCfg *config.Config, overrides web.Overrides) *config.Config {
	cfg := *baseCfg
	applyOverrides(&cfg, overrides)
	return &cfg
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
