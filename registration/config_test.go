package registration

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/registration/logging"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "estimation.json")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestLoadEstimationConfig(t *testing.T) {
	path := writeConfig(t, `{"method": "point_to_plane", "minimum_norm_fallback": true}`)
	cfg, err := LoadEstimationConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, &EstimationConfig{Method: "point_to_plane", MinimumNormFallback: true})
	test.That(t, cfg.Validate("estimation"), test.ShouldBeNil)

	_, err = LoadEstimationConfig(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)

	_, err = LoadEstimationConfig(writeConfig(t, `{"method": "point_to_point", "scale": true}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "scale")

	_, err = LoadEstimationConfig(writeConfig(t, `{"method": `))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "decoding estimation config")
}

func TestEstimationConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		config   EstimationConfig
		contains string
	}{
		{EstimationConfig{}, "method"},
		{EstimationConfig{Method: "icp"}, "unknown estimation method"},
		{EstimationConfig{Method: "point_to_plane", WithScaling: true}, "with_scaling"},
		{EstimationConfig{Method: "point_to_point", MinimumNormFallback: true}, "minimum_norm_fallback"},
	} {
		err := tc.config.Validate("estimation")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, tc.contains)
	}

	valid := EstimationConfig{Method: "point_to_point", WithScaling: true}
	test.That(t, valid.Validate("estimation"), test.ShouldBeNil)
}

func TestNewEstimation(t *testing.T) {
	logger := logging.NewTestLogger(t)

	est, err := NewEstimation(&EstimationConfig{Method: "point_to_point", WithScaling: true}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.Type(), test.ShouldEqual, TypePointToPoint)
	test.That(t, est, test.ShouldResemble, &PointToPoint{WithScaling: true})

	est, err = NewEstimation(&EstimationConfig{Method: "point_to_plane", MinimumNormFallback: true}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.Type(), test.ShouldEqual, TypePointToPlane)
	plane, ok := est.(*PointToPlane)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, plane.MinimumNormFallback, test.ShouldBeTrue)
	test.That(t, plane.Logger, test.ShouldEqual, logger)

	_, err = NewEstimation(&EstimationConfig{}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewEstimation(nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
