package registration

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/registration/logging"
)

// EstimationConfig selects and configures a TransformationEstimation.
type EstimationConfig struct {
	Method              string `json:"method"`
	WithScaling         bool   `json:"with_scaling,omitempty"`
	MinimumNormFallback bool   `json:"minimum_norm_fallback,omitempty"`
}

// LoadEstimationConfig reads an EstimationConfig from a json file.
func LoadEstimationConfig(path string) (*EstimationConfig, error) {
	var config EstimationConfig
	configFile, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(configFile.Close)
	jsonParser := json.NewDecoder(configFile)
	jsonParser.DisallowUnknownFields()
	if err := jsonParser.Decode(&config); err != nil {
		return nil, errors.Wrapf(err, "decoding estimation config %q", path)
	}
	return &config, nil
}

// Validate ensures all parts of the config are valid.
func (config *EstimationConfig) Validate(path string) error {
	if config.Method == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "method")
	}
	method, err := ParseEstimationType(config.Method)
	if err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if config.WithScaling && method != TypePointToPoint {
		return utils.NewConfigValidationError(path,
			errors.Errorf("with_scaling only applies to %q", TypePointToPoint))
	}
	if config.MinimumNormFallback && method != TypePointToPlane {
		return utils.NewConfigValidationError(path,
			errors.Errorf("minimum_norm_fallback only applies to %q", TypePointToPlane))
	}
	return nil
}

// NewEstimation validates config and returns the estimator it describes. The logger is only
// used by estimators that log.
func NewEstimation(config *EstimationConfig, logger logging.Logger) (TransformationEstimation, error) {
	if config == nil {
		return nil, errors.New("estimation config is nil")
	}
	if err := config.Validate("estimation"); err != nil {
		return nil, err
	}
	method, err := ParseEstimationType(config.Method)
	if err != nil {
		return nil, err
	}
	switch method {
	case TypePointToPoint:
		return &PointToPoint{WithScaling: config.WithScaling}, nil
	case TypePointToPlane:
		return &PointToPlane{MinimumNormFallback: config.MinimumNormFallback, Logger: logger}, nil
	case TypeUnspecified:
	}
	return nil, errors.Errorf("no estimator for %s", method)
}
