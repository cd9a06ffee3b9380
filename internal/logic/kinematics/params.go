package kinematics

import "fmt"

// DeviationParameters describes the geometric imperfections of a real mount:
// per joint and for the mirror mount ("concentrator"), a translation and a
// tilt along/about each ENU axis. Translations share the length unit of the
// heliostat position, tilts are radians. The zero value models a perfect mount.
//
// The concentrator tilts are carried for configuration compatibility but are
// not applied to the forward chain.
type DeviationParameters struct {
	FirstJointTranslationE float64
	FirstJointTranslationN float64
	FirstJointTranslationU float64
	FirstJointTiltE        float64
	FirstJointTiltN        float64
	FirstJointTiltU        float64

	SecondJointTranslationE float64
	SecondJointTranslationN float64
	SecondJointTranslationU float64
	SecondJointTiltE        float64
	SecondJointTiltN        float64
	SecondJointTiltU        float64

	ConcentratorTranslationE float64
	ConcentratorTranslationN float64
	ConcentratorTranslationU float64
	ConcentratorTiltE        float64
	ConcentratorTiltN        float64
	ConcentratorTiltU        float64
}

// DeviationNames lists the parameter names accepted by Field, in a stable order.
var DeviationNames = []string{
	"first_joint_translation_e",
	"first_joint_translation_n",
	"first_joint_translation_u",
	"first_joint_tilt_e",
	"first_joint_tilt_n",
	"first_joint_tilt_u",
	"second_joint_translation_e",
	"second_joint_translation_n",
	"second_joint_translation_u",
	"second_joint_tilt_e",
	"second_joint_tilt_n",
	"second_joint_tilt_u",
	"concentrator_translation_e",
	"concentrator_translation_n",
	"concentrator_translation_u",
	"concentrator_tilt_e",
	"concentrator_tilt_n",
	"concentrator_tilt_u",
}

// Field returns a pointer to the parameter with the given snake_case name.
// Used by calibration to select which parameters to fit.
func (d *DeviationParameters) Field(name string) (*float64, error) {
	switch name {
	case "first_joint_translation_e":
		return &d.FirstJointTranslationE, nil
	case "first_joint_translation_n":
		return &d.FirstJointTranslationN, nil
	case "first_joint_translation_u":
		return &d.FirstJointTranslationU, nil
	case "first_joint_tilt_e":
		return &d.FirstJointTiltE, nil
	case "first_joint_tilt_n":
		return &d.FirstJointTiltN, nil
	case "first_joint_tilt_u":
		return &d.FirstJointTiltU, nil
	case "second_joint_translation_e":
		return &d.SecondJointTranslationE, nil
	case "second_joint_translation_n":
		return &d.SecondJointTranslationN, nil
	case "second_joint_translation_u":
		return &d.SecondJointTranslationU, nil
	case "second_joint_tilt_e":
		return &d.SecondJointTiltE, nil
	case "second_joint_tilt_n":
		return &d.SecondJointTiltN, nil
	case "second_joint_tilt_u":
		return &d.SecondJointTiltU, nil
	case "concentrator_translation_e":
		return &d.ConcentratorTranslationE, nil
	case "concentrator_translation_n":
		return &d.ConcentratorTranslationN, nil
	case "concentrator_translation_u":
		return &d.ConcentratorTranslationU, nil
	case "concentrator_tilt_e":
		return &d.ConcentratorTiltE, nil
	case "concentrator_tilt_n":
		return &d.ConcentratorTiltN, nil
	case "concentrator_tilt_u":
		return &d.ConcentratorTiltU, nil
	default:
		return nil, fmt.Errorf("unknown deviation parameter: %s", name)
	}
}

// OrientationOffsets is a fixed angular correction (radians, about E/N/U)
// applied once after the kinematic solve. Zero value means no correction.
type OrientationOffsets struct {
	E float64
	N float64
	U float64
}
