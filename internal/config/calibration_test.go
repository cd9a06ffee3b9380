package config

import (
	"strings"
	"testing"
)

const validCalibrationYAML = `
fit:
  - second_joint_translation_e
  - second_joint_translation_n
observations:
  - incident_ray_enu: {e: 0.1, n: -0.3, u: -0.95}
    normal_enu: {e: 0.05, n: 0.9, u: 0.43}
  - incident_ray_enu: {e: -0.2, n: -0.4, u: -0.89}
    normal_enu: {e: -0.1, n: 0.92, u: 0.38}
  - incident_ray_enu: {e: 0.0, n: -0.5, u: -0.87}
    normal_enu: {e: 0.0, n: 0.95, u: 0.31}
`

func TestLoadCalibration_Valid(t *testing.T) {
	path := writeConfig(t, validCalibrationYAML)

	cal, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("LoadCalibration: %v", err)
	}
	if len(cal.Fit) != 2 {
		t.Errorf("fit parameters = %d, want 2", len(cal.Fit))
	}
	if cal.Fit[0] != "second_joint_translation_e" {
		t.Errorf("fit[0] = %q", cal.Fit[0])
	}
	if len(cal.Observations) != 3 {
		t.Fatalf("observations = %d, want 3", len(cal.Observations))
	}
	if got := cal.Observations[0].IncidentRay; got != (Vec3{E: 0.1, N: -0.3, U: -0.95}) {
		t.Errorf("observation 1 ray = %+v", got)
	}
	if got := cal.Observations[2].Normal; got != (Vec3{N: 0.95, U: 0.31}) {
		t.Errorf("observation 3 normal = %+v", got)
	}
}

func TestLoadCalibration_NoFitParameters(t *testing.T) {
	path := writeConfig(t, `
observations:
  - incident_ray_enu: {n: -1}
    normal_enu: {n: 1}
`)
	if _, err := LoadCalibration(path); err == nil {
		t.Error("expected error for empty fit list, got nil")
	}
}

func TestLoadCalibration_TooFewObservations(t *testing.T) {
	path := writeConfig(t, `
fit:
  - second_joint_translation_e
  - second_joint_translation_n
observations:
  - incident_ray_enu: {n: -1}
    normal_enu: {n: 1}
`)
	if _, err := LoadCalibration(path); err == nil {
		t.Error("expected error for underdetermined fit, got nil")
	}
}

func TestLoadCalibration_ZeroVectors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero_ray", `
fit: [second_joint_translation_e]
observations:
  - incident_ray_enu: {}
    normal_enu: {n: 1}
`},
		{"zero_normal", `
fit: [second_joint_translation_e]
observations:
  - incident_ray_enu: {n: -1}
    normal_enu: {}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			if _, err := LoadCalibration(path); err == nil {
				t.Error("expected error for zero vector, got nil")
			}
		})
	}
}

func TestLoadCalibration_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "fit: [unclosed")
	if _, err := LoadCalibration(path); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoadCalibration_FileTooLarge(t *testing.T) {
	path := writeConfig(t, strings.Repeat("#", MaxConfigFileBytes+1))
	if _, err := LoadCalibration(path); err == nil {
		t.Error("expected error for oversized file, got nil")
	}
}

func TestLoadCalibration_FileNotFound(t *testing.T) {
	if _, err := LoadCalibration("configs/does-not-exist.yaml"); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}
