// Package main runs a single transformation estimation step between two point cloud files.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/registration/logging"
	"go.viam.com/registration/pointcloud"
	"go.viam.com/registration/registration"
	"go.viam.com/registration/spatialmath"
)

const (
	// Flags.
	flagSource              = "source"
	flagTarget              = "target"
	flagCorrespondences     = "correspondences"
	flagMethod              = "method"
	flagWithScaling         = "with-scaling"
	flagMinimumNormFallback = "minimum-norm-fallback"
	flagConfig              = "config"
	flagOutput              = "output"
	flagDebug               = "debug"
	flagLogLevel            = "log-level"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	var logger logging.Logger
	return &cli.App{
		Name:      "estimate",
		Usage:     "estimate the transform aligning a source point cloud onto a target point cloud",
		UsageText: fmt.Sprintf("estimate --%s <source.pcd> --%s <target.pcd> [other options]", flagSource, flagTarget),
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:     flagSource,
				Aliases:  []string{"s"},
				Required: true,
				Usage:    "source point cloud `FILE` (.pcd or .las)",
			},
			&cli.PathFlag{
				Name:     flagTarget,
				Aliases:  []string{"t"},
				Required: true,
				Usage:    "target point cloud `FILE` (.pcd or .las)",
			},
			&cli.PathFlag{
				Name:  flagCorrespondences,
				Usage: "`FILE` with one \"source target\" index pair per line. Defaults to pairing equal indices",
			},
			&cli.StringFlag{
				Name:  flagMethod,
				Value: registration.TypePointToPoint.String(),
				Usage: fmt.Sprintf("error metric, %q or %q", registration.TypePointToPoint, registration.TypePointToPlane),
			},
			&cli.BoolFlag{
				Name:  flagWithScaling,
				Usage: "also estimate a uniform scale (point_to_point only)",
			},
			&cli.BoolFlag{
				Name:  flagMinimumNormFallback,
				Usage: "solve degenerate systems with the minimum norm solution (point_to_plane only)",
			},
			&cli.PathFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load estimation configuration from `FILE`, flags override it",
			},
			&cli.PathFlag{
				Name:    flagOutput,
				Aliases: []string{"o"},
				Usage:   "write the transformed source cloud to `FILE` (binary .pcd or .las)",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging, same as --log-level debug",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Value: logging.INFO.String(),
				Usage: "minimum level to log, one of debug, info, warn or error",
			},
		},
		Before: func(c *cli.Context) error {
			level, err := logging.LevelFromString(c.String(flagLogLevel))
			if err != nil {
				return err
			}
			if c.Bool(flagDebug) {
				level = logging.DEBUG
			}
			logger = logging.NewLogger("estimate")
			logger.SetLevel(level)
			logging.ReplaceGlobal(logger)
			return nil
		},
		Action: func(c *cli.Context) error {
			return estimateAction(c, logger)
		},
	}
}

func estimateAction(c *cli.Context, logger logging.Logger) error {
	config, err := estimationConfigFromFlags(c)
	if err != nil {
		return err
	}
	est, err := registration.NewEstimation(config, logger.Sublogger(config.Method))
	if err != nil {
		return err
	}

	source, err := pointcloud.NewFromFile(c.Path(flagSource), logger)
	if err != nil {
		return errors.Wrap(err, "error loading source")
	}
	target, err := pointcloud.NewFromFile(c.Path(flagTarget), logger)
	if err != nil {
		return errors.Wrap(err, "error loading target")
	}
	if est.Type() == registration.TypePointToPlane && !target.HasNormals() {
		logger.Warnf("target %q has no normals, %s will return the identity", c.Path(flagTarget), est.Type())
	}

	corres, err := loadCorrespondences(c.Path(flagCorrespondences), source, target)
	if err != nil {
		return err
	}
	logger.Debugw("estimating", "method", est.Type().String(), "correspondences", len(corres),
		"source points", source.Size(), "target points", target.Size(),
		"source centroid", pointcloud.CloudCentroid(source), "target centroid", pointcloud.CloudCentroid(target))

	before := est.ComputeRMSE(source, target, corres)
	tf, err := est.ComputeTransformation(source, target, corres)
	if err != nil {
		return errors.Wrap(err, "error estimating transformation")
	}
	aligned := pointcloud.ApplyTransform(source, tf)
	after := est.ComputeRMSE(aligned, target, corres)

	printTransform(c.App.Writer, est.Type(), len(corres), tf, before, after)

	if out := c.Path(flagOutput); out != "" {
		if err := writeCloud(aligned, out); err != nil {
			return errors.Wrap(err, "error writing transformed source")
		}
		logger.Infof("wrote transformed source to %q", out)
	}
	return nil
}

func writeCloud(cloud pointcloud.PointCloud, fn string) error {
	switch filepath.Ext(fn) {
	case ".pcd":
		return pointcloud.WriteToPCDFile(cloud, fn, pointcloud.PCDBinary)
	case ".las":
		return pointcloud.WriteToLASFile(cloud, fn)
	default:
		return errors.Errorf("do not know how to write file %q", fn)
	}
}

func estimationConfigFromFlags(c *cli.Context) (*registration.EstimationConfig, error) {
	config := &registration.EstimationConfig{Method: c.String(flagMethod)}
	if path := c.Path(flagConfig); path != "" {
		loaded, err := registration.LoadEstimationConfig(path)
		if err != nil {
			return nil, errors.Wrap(err, "error loading config")
		}
		config = loaded
		// a file without a method keeps the flag's default
		if c.IsSet(flagMethod) || config.Method == "" {
			config.Method = c.String(flagMethod)
		}
	}
	if c.IsSet(flagWithScaling) {
		config.WithScaling = c.Bool(flagWithScaling)
	}
	if c.IsSet(flagMinimumNormFallback) {
		config.MinimumNormFallback = c.Bool(flagMinimumNormFallback)
	}
	return config, nil
}

func loadCorrespondences(path string, source, target pointcloud.PointCloud) (registration.CorrespondenceSet, error) {
	if path == "" {
		if source.Size() != target.Size() {
			return nil, errors.Errorf("source has %d points and target has %d, pass --%s to pair them",
				source.Size(), target.Size(), flagCorrespondences)
		}
		return registration.IdentityCorrespondences(source.Size()), nil
	}
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	corres, err := registration.ReadCorrespondences(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %q", path)
	}
	if err := corres.Validate(source, target); err != nil {
		return nil, err
	}
	return corres, nil
}

func printTransform(
	w io.Writer,
	method registration.EstimationType,
	numCorres int,
	tf *spatialmath.Transform,
	before, after float64,
) {
	rot := tf.Rotation()
	q := rot.Quaternion()
	aa := spatialmath.QuatToR4AA(q)
	euler := spatialmath.EulerAnglesFromRotationMatrix(rot)
	tra := tf.Translation()

	fmt.Fprintf(w, "transform:\n%v\n", tf)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Method", method.String()},
		{"Correspondences", fmt.Sprintf("%d", numCorres)},
		{"Translation", fmt.Sprintf("X:%g, Y:%g, Z:%g", tra.X, tra.Y, tra.Z)},
		{"Scale", fmt.Sprintf("%g", tf.Scale())},
		{"Quaternion", fmt.Sprintf("W:%g, X:%g, Y:%g, Z:%g", q.Real, q.Imag, q.Jmag, q.Kmag)},
		{"Axis angle", fmt.Sprintf("Theta:%g, RX:%g, RY:%g, RZ:%g", aa.Theta, aa.RX, aa.RY, aa.RZ)},
		{"Euler ZYX", fmt.Sprintf("Roll:%g, Pitch:%g, Yaw:%g", euler.Roll, euler.Pitch, euler.Yaw)},
		{"RMSE before", fmt.Sprintf("%g", before)},
		{"RMSE after", fmt.Sprintf("%g", after)},
	})
	t.Render()
}
