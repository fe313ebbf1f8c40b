package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spherical/pdf2md/internal/config"
	"github.com/spherical/pdf2md/internal/convert"
	"github.com/spherical/pdf2md/internal/domain"
	"github.com/spherical/pdf2md/internal/llm"
	"github.com/spherical/pdf2md/internal/observability"
	"github.com/spherical/pdf2md/internal/output"
	"github.com/spherical/pdf2md/internal/pdf"
	"github.com/spherical/pdf2md/internal/ui"
)

func runConvert(cmd *cobra.Command, path string, opts *rootOptions) error {
	ctx := cmd.Context()
	startTime := time.Now()

	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(opts.overrides(cmd))
	cfg.ResolveAPIKey(".env")
	if err := cfg.Validate(); err != nil {
		return err
	}

	console := ui.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.noColor, opts.verbose)

	// Progress UI replaces info logs on a terminal.
	level := cfg.Observability.LogLevel
	if console.Interactive && !opts.verbose && observability.ParseLevel(level) < observability.ParseLevel("warn") {
		level = "warn"
	}
	runID := uuid.NewString()
	logger := observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      cfg.Observability.LogFormat,
		Output:      cmd.ErrOrStderr(),
		ServiceName: "pdf2md",
		NoColor:     opts.noColor,
	}).WithRun(runID)
	observability.SetDefault(logger)

	generator := llm.FromConfig(cfg.LLM)
	model := generator.Model()

	renderer := pdf.NewRenderer(cfg.Processing.JPEGQuality)
	writer, err := output.NewWriter(cfg.Output.Dir, nil)
	if err != nil {
		return err
	}

	svc := convert.NewService(renderer, generator, writer,
		convert.WithBudget(cfg.Processing.MaxTokensPerSection),
		convert.WithDPI(cfg.Processing.ImageDPI),
		convert.WithProbeDPI(cfg.Processing.ProbeDPI),
		convert.WithConcurrency(cfg.Processing.Concurrency),
		convert.WithCallTimeout(cfg.LLM.Timeout),
		convert.WithLogger(logger),
	)

	console.Info("Converting %s with %s", path, model)
	console.Detail("run %s, budget %d, %g DPI (probe %g DPI), concurrency %d",
		runID, cfg.Processing.MaxTokensPerSection, cfg.Processing.ImageDPI,
		cfg.Processing.ProbeDPI, cfg.Processing.Concurrency)

	type outcome struct {
		res *convert.Result
		err error
	}
	events := make(chan domain.StreamEvent, 64)
	done := make(chan outcome, 1)
	go func() {
		res, err := svc.Process(ctx, path, events)
		close(events)
		done <- outcome{res: res, err: err}
	}()

	showProgress(console, events)
	out := <-done
	if out.err != nil {
		return out.err
	}
	res := out.res

	if len(res.Files) == 0 {
		console.Info("Document has no pages, nothing written")
		return nil
	}

	for _, f := range res.Files {
		console.Result(f)
	}

	if cfg.Output.Manifest {
		manifestPath, err := writer.WriteManifest(ctx, buildManifest(runID, path, model, cfg, res))
		if err != nil {
			return err
		}
		console.Detail("manifest: %s", manifestPath)
	}

	console.Success("Wrote %d file(s) to %s in %s", len(res.Files), writer.Dir(), ui.FormatDuration(time.Since(startTime)))
	return nil
}

// showProgress renders events until the channel closes.
func showProgress(c *ui.Console, events <-chan domain.StreamEvent) {
	spin := c.Spinner("Rendering pages")
	if spin != nil {
		spin.Start()
	}
	stopSpin := func() {
		if spin != nil {
			spin.Stop()
			spin = nil
		}
	}
	defer stopSpin()

	var (
		bar       *ui.ProgressBar
		total     int
		completed int
	)

	for ev := range events {
		switch ev.Type {
		case domain.EventPlan:
			stopSpin()
			plan, ok := ev.Payload.(*domain.Plan)
			if !ok {
				continue
			}
			total = len(plan.Sections)
			describePlan(c, plan)
			bar = c.ProgressBar(total, "Generating")

		case domain.EventSectionProcessing:
			if bar == nil {
				c.Detail("%v", ev.Payload)
			}

		case domain.EventSectionComplete:
			completed++
			if bar != nil {
				bar.Add(1)
			} else {
				c.Detail("%v", ev.Payload)
			}

		case domain.EventError:
			stopSpin()
		}
	}

	// Leave the line of an unfinished bar before the error is printed.
	if bar != nil && completed < total {
		fmt.Fprintln(c.Err)
	}
}

func describePlan(c *ui.Console, plan *domain.Plan) {
	if plan.PageCount == 0 {
		return
	}
	if plan.Split {
		c.Info("%d pages, estimated cost %d over budget %d: %d sections",
			plan.PageCount, plan.ProbeCost, plan.Budget, len(plan.Sections))
	} else {
		c.Info("%d pages, estimated cost %d within budget %d: one section",
			plan.PageCount, plan.ProbeCost, plan.Budget)
	}

	if !c.Verbose {
		return
	}
	rows := make([][]string, len(plan.Sections))
	for i, s := range plan.Sections {
		rows[i] = []string{strconv.Itoa(i + 1), s.String(), strconv.Itoa(s.Cost)}
	}
	c.Table([]string{"#", "Range", "Cost"}, rows)
}

func buildManifest(runID, path, model string, cfg *config.Config, res *convert.Result) output.Manifest {
	m := output.Manifest{
		RunID:       runID,
		Document:    path,
		Model:       model,
		GeneratedAt: time.Now().UTC(),
		DPI:         cfg.Processing.ImageDPI,
		ProbeDPI:    cfg.Processing.ProbeDPI,
		Budget:      res.Plan.Budget,
		ProbeCost:   res.Plan.ProbeCost,
		Split:       res.Plan.Split,
		PageCount:   res.Plan.PageCount,
		Sections:    make([]output.ManifestSection, 0, len(res.Plan.Sections)),
	}
	for i, s := range res.Plan.Sections {
		m.Sections = append(m.Sections, output.NewManifestSection(s, res.Files[i]))
	}
	return m
}
