package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"adisub/pkg/config"
	"adisub/pkg/cube"
	"adisub/pkg/greeds"
	"adisub/pkg/pipeline"
	"adisub/pkg/psfsub"
	"adisub/pkg/refsel"
)

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.LoadConfig(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Processing.Verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	c, err := loadCube(cmd.String("input"))
	if err != nil {
		return fmt.Errorf("failed to load frames: %w", err)
	}
	angles, err := loadAngles(cmd.String("angles"))
	if err != nil {
		return fmt.Errorf("failed to load angles: %w", err)
	}
	slog.Info("cube loaded",
		slog.Int("frames", c.Frames),
		slog.Int("height", c.Height),
		slog.Int("width", c.Width))

	start := time.Now()
	residual, err := reduce(cfg, c, angles)
	if err != nil {
		return fmt.Errorf("reduction failed: %w", err)
	}
	slog.Info("reduction complete",
		slog.String("algorithm", cfg.Algorithm.Kind),
		slog.String("mode", cfg.Processing.Mode),
		slog.Duration("elapsed", time.Since(start)))

	output := cmd.String("output")
	if err := saveFrame(output, residual, c.Height, c.Width); err != nil {
		return fmt.Errorf("failed to save residual: %w", err)
	}
	slog.Info("residual frame written", slog.String("path", output))
	return nil
}

// reduce dispatches on the configured algorithm and processing mode.
func reduce(cfg *config.Config, c *cube.Cube, angles []float64) ([]float64, error) {
	opts := pipelineOptions(cfg)

	if cfg.Algorithm.Kind == config.AlgorithmGreeDS {
		inner := psfsub.PCA{
			Rank:           cfg.Algorithm.Rank,
			Policy:         psfsub.RankPolicy(cfg.Algorithm.RankPolicy),
			VarianceTarget: cfg.Algorithm.VarianceTarget,
			NoiseTolerance: cfg.Algorithm.NoiseTolerance,
		}
		g, err := greeds.New(inner,
			greeds.WithClipFloor(cfg.Algorithm.ClipFloor),
			greeds.WithCollapse(opts.Collapse),
			greeds.WithWorkers(opts.Workers),
			greeds.WithProgress(func(rank, maxRank int) {
				slog.Info("greeds pass", slog.Int("rank", rank), slog.Int("maxRank", maxRank))
			}))
		if err != nil {
			return nil, err
		}
		estimate, _, err := g.Process(c, angles)
		return estimate, err
	}

	alg, err := buildAlgorithm(cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.Processing.Mode {
	case "framewise":
		return pipeline.RunFramewise(alg, c, angles, opts)
	case "local":
		return pipeline.RunLocal(alg, c, angles, opts)
	default:
		return pipeline.Run(alg, c, angles, opts)
	}
}

func buildAlgorithm(cfg *config.Config) (psfsub.Algorithm, error) {
	switch cfg.Algorithm.Kind {
	case config.AlgorithmPCA:
		return psfsub.PCA{
			Rank:           cfg.Algorithm.Rank,
			Policy:         psfsub.RankPolicy(cfg.Algorithm.RankPolicy),
			VarianceTarget: cfg.Algorithm.VarianceTarget,
			NoiseTolerance: cfg.Algorithm.NoiseTolerance,
		}, nil
	case config.AlgorithmNMF:
		return psfsub.NMF{
			Rank:    cfg.Algorithm.Rank,
			MaxIter: cfg.Algorithm.NMFIterations,
		}, nil
	case config.AlgorithmClassic:
		return psfsub.Classic{Method: psfsub.StatMethod(cfg.Algorithm.Statistic)}, nil
	default:
		return nil, fmt.Errorf("unknown algorithm kind %q", cfg.Algorithm.Kind)
	}
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Geometry:           pipeline.GeometryKind(cfg.Geometry.Kind),
		InnerRadius:        cfg.Geometry.InnerRadius,
		OuterRadius:        cfg.Geometry.OuterRadius,
		Width:              cfg.Geometry.Width,
		Radii:              cfg.Geometry.Radii,
		Collapse:           cube.CollapseMethod(cfg.Processing.Collapse),
		Fwhm:               cfg.Selection.Fwhm,
		DeltaRot:           cfg.Selection.DeltaRot,
		Limit:              cfg.Selection.Limit,
		DistanceMetric:     refsel.Metric(cfg.Selection.DistanceMetric),
		DistancePercentile: cfg.Selection.DistancePercentile,
		Workers:            cfg.Processing.Workers,
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "adisub",
		Usage:  "Estimate and subtract quasi-static speckles from an angular differential imaging cube",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config/config.yaml",
				Sources: cli.EnvVars("ADISUB_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Directory of grayscale frames (PNG or JPEG), in numeric filename order",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "angles",
				Aliases:  []string{"a"},
				Usage:    "YAML file with the parallactic angle list, in degrees",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output path for the residual frame (PNG)",
				Value:   "residual.png",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("adisub error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
