package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/zclconf/go-cty/cty"

	"github.com/embedml/remodel/internal/config"
	"github.com/embedml/remodel/internal/ctxlog"
	"github.com/embedml/remodel/internal/model"
	"github.com/embedml/remodel/internal/nodes"
	"github.com/embedml/remodel/internal/passes"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *Config
	file   *config.File
	target *config.Target
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and loaded
// configuration.
func NewApp(outW io.Writer, appConfig *Config) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	file, err := config.LoadPath(ctx, appConfig.ConfigPath)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}

	target := config.DefaultTarget()
	if appConfig.TargetName != "" {
		t, ok := file.Target(appConfig.TargetName)
		if !ok {
			panic(fmt.Errorf("target %q is not defined in %s", appConfig.TargetName, appConfig.ConfigPath))
		}
		target = t
	} else if len(file.Targets) > 0 {
		target = file.Targets[0]
	}
	logger.Debug("Target selected.", "target", target.Name)

	return &App{outW: outW, logger: logger, cfg: appConfig, file: file, target: target}
}

// Run builds the pipeline model described by the configuration, refines it
// to compilable form, applies the standard passes, and prints a summary of
// the resulting graph.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if a.file.Data == nil {
		return fmt.Errorf("configuration has no data block; nothing to build")
	}

	src, err := buildPipeline(a.file.Data)
	if err != nil {
		return fmt.Errorf("building pipeline model: %w", err)
	}
	a.logger.Info("pipeline model built",
		"nodes", src.Len(), "dimension", a.file.Data.Dimension, "input", a.file.Data.InputPath)

	tctx := model.NewTransformContext()
	rt := model.NewTransformer()
	refined, err := rt.RefineModel(ctx, src, tctx, a.cfg.MaxRefineIterations)
	if err != nil {
		return fmt.Errorf("refining model: %w", err)
	}
	a.logger.Info("model refined",
		"iterations", rt.Iterations(), "nodes", refined.Len(), "compilable", rt.IsModelCompilable())

	optimized, err := passes.Standard(a.target).Run(ctx, refined, tctx)
	if err != nil {
		return fmt.Errorf("optimizing model: %w", err)
	}
	if err := optimized.Validate(); err != nil {
		return fmt.Errorf("optimized model failed validation: %w", err)
	}

	a.printSummary(src, optimized, rt.IsModelCompilable())
	return nil
}

func (a *App) printSummary(src, out *model.Model, compilable bool) {
	fmt.Fprintf(a.outW, "target: %s\n", a.target.Name)
	fmt.Fprintf(a.outW, "nodes: %d -> %d\n", src.Len(), out.Len())
	for _, n := range out.Nodes() {
		switch v := n.(type) {
		case *nodes.Affine:
			fmt.Fprintf(a.outW, "  %3d %-12s scale=%g bias=%g\n", n.ID(), n.Kind(), v.Scale(), v.Bias())
		case *nodes.Convolution:
			fmt.Fprintf(a.outW, "  %3d %-12s method=%s\n", n.ID(), n.Kind(), v.Method())
		default:
			fmt.Fprintf(a.outW, "  %3d %-12s\n", n.ID(), n.Kind())
		}
	}
	fmt.Fprintf(a.outW, "compilable: %t\n", compilable)
}

// buildPipeline assembles the demo preprocessing model: an entry point of
// the configured dimension, standardization, and the configured
// post-processing scale. Refinement lowers the normalization to an affine
// node and the fusion pass collapses the resulting chain.
func buildPipeline(data *config.DataArguments) (*model.Model, error) {
	m := model.New()

	in := model.NewInputNode("data", cty.Number, data.Dimension)
	if err := m.Add(in); err != nil {
		return nil, err
	}
	norm, err := nodes.NewNormalize(model.Elements(in.Output()), 0, 1)
	if err != nil {
		return nil, err
	}
	if err := m.Add(norm); err != nil {
		return nil, err
	}
	scale, err := nodes.NewAffine(model.Elements(norm.Output()), data.Scale, 0)
	if err != nil {
		return nil, err
	}
	if err := m.Add(scale); err != nil {
		return nil, err
	}
	out, err := model.NewOutputNode("scaled", model.Elements(scale.Output()))
	if err != nil {
		return nil, err
	}
	if err := m.Add(out); err != nil {
		return nil, err
	}
	return m, nil
}
