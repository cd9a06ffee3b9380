package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ObservationConfig pairs a measured incident ray (direction of light
// travel, ENU) with the mirror normal observed after the mount aligned
// itself for that ray.
type ObservationConfig struct {
	IncidentRay Vec3 `yaml:"incident_ray_enu"`
	Normal      Vec3 `yaml:"normal_enu"`
}

// CalibrationConfig is a calibration job: which deviation parameters to fit,
// from which observations.
type CalibrationConfig struct {
	Fit          []string            `yaml:"fit"`
	Observations []ObservationConfig `yaml:"observations"`
}

// LoadCalibration reads a calibration YAML file. The fit must name at least
// one parameter and carry at least as many observations as fitted parameters,
// otherwise the least-squares problem is underdetermined.
func LoadCalibration(path string) (*CalibrationConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat calibration file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("calibration file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	var cal CalibrationConfig
	if err := yaml.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if len(cal.Fit) == 0 {
		return nil, fmt.Errorf("calibration must name at least one parameter under fit:")
	}
	if len(cal.Observations) < len(cal.Fit) {
		return nil, fmt.Errorf("need at least %d observations to fit %d parameters, got %d",
			len(cal.Fit), len(cal.Fit), len(cal.Observations))
	}
	for i, o := range cal.Observations {
		if (o.IncidentRay == Vec3{}) {
			return nil, fmt.Errorf("observation %d: incident_ray_enu must be non-zero", i+1)
		}
		if (o.Normal == Vec3{}) {
			return nil, fmt.Errorf("observation %d: normal_enu must be non-zero", i+1)
		}
	}
	return &cal, nil
}
