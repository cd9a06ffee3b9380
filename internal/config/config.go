package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a config file Load will read.
const MaxConfigFileBytes = 1 << 20

// Vec3 is an ENU triple used for positions and aim points.
type Vec3 struct {
	E float64 `yaml:"e"`
	N float64 `yaml:"n"`
	U float64 `yaml:"u"`
}

// ActuatorConfig describes one joint drive's angle/position model.
// Type selects a concrete implementation ("ideal" or "linear").
type ActuatorConfig struct {
	Type          string  `yaml:"type"`           // "ideal" or "linear"
	StepsPerRev   int     `yaml:"steps_per_rev"`  // motor full steps per revolution (linear)
	Microstepping int     `yaml:"microstepping"`  // driver microstepping factor (linear)
	OffsetSteps   float64 `yaml:"offset_steps"`   // microstep count at joint angle zero
	Clockwise     bool    `yaml:"clockwise"`      // positive angle turns the drive clockwise
}

// StepperConfig holds the pin assignment for one joint drive motor.
type StepperConfig struct {
	StepPin   int `yaml:"step_pin"`
	DirPin    int `yaml:"dir_pin"`
	EnablePin int `yaml:"enable_pin"` // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
}

// DeviationConfig carries the 18 geometric imperfection parameters of the
// mount. Translations in meters, tilts in radians. All default to zero.
type DeviationConfig struct {
	FirstJointTranslationE float64 `yaml:"first_joint_translation_e"`
	FirstJointTranslationN float64 `yaml:"first_joint_translation_n"`
	FirstJointTranslationU float64 `yaml:"first_joint_translation_u"`
	FirstJointTiltE        float64 `yaml:"first_joint_tilt_e"`
	FirstJointTiltN        float64 `yaml:"first_joint_tilt_n"`
	FirstJointTiltU        float64 `yaml:"first_joint_tilt_u"`

	SecondJointTranslationE float64 `yaml:"second_joint_translation_e"`
	SecondJointTranslationN float64 `yaml:"second_joint_translation_n"`
	SecondJointTranslationU float64 `yaml:"second_joint_translation_u"`
	SecondJointTiltE        float64 `yaml:"second_joint_tilt_e"`
	SecondJointTiltN        float64 `yaml:"second_joint_tilt_n"`
	SecondJointTiltU        float64 `yaml:"second_joint_tilt_u"`

	ConcentratorTranslationE float64 `yaml:"concentrator_translation_e"`
	ConcentratorTranslationN float64 `yaml:"concentrator_translation_n"`
	ConcentratorTranslationU float64 `yaml:"concentrator_translation_u"`
	ConcentratorTiltE        float64 `yaml:"concentrator_tilt_e"`
	ConcentratorTiltN        float64 `yaml:"concentrator_tilt_n"`
	ConcentratorTiltU        float64 `yaml:"concentrator_tilt_u"`
}

// OffsetsConfig carries the initial orientation offset angles (radians).
type OffsetsConfig struct {
	OffsetE float64 `yaml:"offset_e"`
	OffsetN float64 `yaml:"offset_n"`
	OffsetU float64 `yaml:"offset_u"`
}

// HeliostatConfig describes the mount pose and its imperfection parameters.
type HeliostatConfig struct {
	Position           Vec3            `yaml:"position_enu"`
	AimPoint           Vec3            `yaml:"aim_point_enu"`
	Deviations         DeviationConfig `yaml:"deviations"`
	OrientationOffsets OffsetsConfig   `yaml:"orientation_offsets"`
}

// MirrorConfig describes the reflective facet used for surface alignment.
type MirrorConfig struct {
	WidthM  float64 `yaml:"width_m"`
	HeightM float64 `yaml:"height_m"`
	Cols    int     `yaml:"cols"`
	Rows    int     `yaml:"rows"`
}

// LocationConfig is the site used for the solar ephemeris.
type LocationConfig struct {
	LatitudeDeg  float64 `yaml:"latitude_deg"`
	LongitudeDeg float64 `yaml:"longitude_deg"`
}

// DefaultsConfig contains generic parameters (solver bounds, speed, etc.).
type DefaultsConfig struct {
	MaxIterations  int     `yaml:"max_iterations"`   // alignment fixed-point iteration cap
	MinEps         float64 `yaml:"min_eps"`          // alignment convergence criterion
	MoveSpeedMs    int     `yaml:"move_speed_ms"`    // delay between motor steps
	TrackIntervalS int     `yaml:"track_interval_s"` // seconds between tracking updates
	TrackTicks     int     `yaml:"track_ticks"`      // number of tracking updates per run
	DebugLevel     int     `yaml:"debug_level"`      // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO       bool    `yaml:"mock_gpio"`        // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Heliostat     HeliostatConfig  `yaml:"heliostat"`
	Actuators     []ActuatorConfig `yaml:"actuators"` // exactly two: (joint 1, joint 2)
	Joint1Stepper StepperConfig    `yaml:"joint1_stepper"`
	Joint2Stepper StepperConfig    `yaml:"joint2_stepper"`
	Mirror        MirrorConfig     `yaml:"mirror"`
	Location      LocationConfig   `yaml:"location"`
	Defaults      DefaultsConfig   `yaml:"defaults"`
}

// ValidateConfigPath checks that a user-supplied config path points at a
// .yaml file inside a configs/ directory. It rejects traversal attempts and
// anything else before the file is ever opened.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config file must have a .yaml extension, got %q", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must live in a configs/ directory, got %q", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if len(cfg.Actuators) != 2 {
		return nil, fmt.Errorf("exactly two actuators are required (joint 1, joint 2), got %d", len(cfg.Actuators))
	}
	for i, a := range cfg.Actuators {
		switch a.Type {
		case "ideal":
		case "linear":
			if a.StepsPerRev <= 0 {
				return nil, fmt.Errorf("actuator %d: steps_per_rev must be > 0, got %d", i+1, a.StepsPerRev)
			}
			if a.Microstepping <= 0 {
				return nil, fmt.Errorf("actuator %d: microstepping must be > 0, got %d", i+1, a.Microstepping)
			}
		case "":
			return nil, fmt.Errorf("actuator %d: type is required", i+1)
		default:
			return nil, fmt.Errorf("actuator %d: unsupported type: %s", i+1, a.Type)
		}
	}
	if cfg.Location.LatitudeDeg < -90 || cfg.Location.LatitudeDeg > 90 {
		return nil, fmt.Errorf("latitude_deg must be between -90 and 90, got %.4f", cfg.Location.LatitudeDeg)
	}
	if cfg.Location.LongitudeDeg < -180 || cfg.Location.LongitudeDeg > 180 {
		return nil, fmt.Errorf("longitude_deg must be between -180 and 180, got %.4f", cfg.Location.LongitudeDeg)
	}
	// The inverse solve divides by cos(second_joint_translation_n); reject
	// configurations that would make it blow up at load time.
	if c := math.Cos(cfg.Heliostat.Deviations.SecondJointTranslationN); math.Abs(c) < 1e-9 {
		return nil, fmt.Errorf("second_joint_translation_n makes cos() vanish, the analytic solve would be degenerate")
	}

	// Defaults
	if cfg.Defaults.MaxIterations <= 0 {
		cfg.Defaults.MaxIterations = 2 // matches the solver default
	}
	if cfg.Defaults.MinEps <= 0 {
		cfg.Defaults.MinEps = 1e-4
	}
	if cfg.Defaults.MoveSpeedMs <= 0 {
		cfg.Defaults.MoveSpeedMs = 2 // reasonable default
	}
	if cfg.Defaults.TrackIntervalS <= 0 {
		cfg.Defaults.TrackIntervalS = 10
	}
	if cfg.Defaults.TrackTicks <= 0 {
		cfg.Defaults.TrackTicks = 1 // single alignment by default
	}
	if cfg.Mirror.WidthM <= 0 {
		cfg.Mirror.WidthM = 2.0
	}
	if cfg.Mirror.HeightM <= 0 {
		cfg.Mirror.HeightM = 2.0
	}
	if cfg.Mirror.Cols <= 0 {
		cfg.Mirror.Cols = 8
	}
	if cfg.Mirror.Rows <= 0 {
		cfg.Mirror.Rows = 8
	}

	return &cfg, nil
}

// MoveSpeed returns the duration between two motor steps.
func (c *Config) MoveSpeed() time.Duration {
	return time.Duration(c.Defaults.MoveSpeedMs) * time.Millisecond
}

// TrackInterval returns the duration between two tracking updates.
func (c *Config) TrackInterval() time.Duration {
	return time.Duration(c.Defaults.TrackIntervalS) * time.Second
}
