// Package commands implements the pdf2md command line.
package commands

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf2md/internal/config"
	"github.com/spherical/pdf2md/internal/ui"
)

// version is set at build time with -ldflags "-X .../commands.version=..."
var version = "1.0.0"

type rootOptions struct {
	cfgFile     string
	outputDir   string
	maxTokens   int
	dpi         float64
	probeDPI    float64
	concurrency int
	timeout     time.Duration
	provider    string
	model       string
	manifest    bool
	verbose     bool
	noColor     bool
}

// NewRootCommand builds the pdf2md command writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "pdf2md [flags] <pdf-file>",
		Short: "Convert a PDF document to Markdown with a vision model",
		Long: `pdf2md renders every page of a PDF, groups consecutive pages into sections
that fit a cost budget, sends each section to a vision model and writes one
Markdown file per section to the output directory.

Configuration comes from .env, an optional YAML file (--config), environment
variables and finally the flags below.`,
		Args:          cobra.ExactArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0], opts)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVarP(&opts.cfgFile, "config", "c", "", "config file path (YAML)")
	flags.StringVarP(&opts.outputDir, "output-dir", "o", defaults.Output.Dir, "directory for the Markdown files")
	flags.IntVar(&opts.maxTokens, "max-tokens", defaults.Processing.MaxTokensPerSection, "maximum estimated cost of one section")
	flags.Float64Var(&opts.dpi, "dpi", defaults.Processing.ImageDPI, "resolution of the pages sent to the model")
	flags.Float64Var(&opts.probeDPI, "probe-dpi", defaults.Processing.ProbeDPI, "resolution of the pass that decides whether to split")
	flags.IntVar(&opts.concurrency, "concurrency", defaults.Processing.Concurrency, "sections generated in parallel")
	flags.DurationVar(&opts.timeout, "timeout", defaults.LLM.Timeout, "timeout for one model call")
	flags.StringVar(&opts.provider, "provider", defaults.LLM.Provider, "model provider: openrouter or gemini")
	flags.StringVar(&opts.model, "model", "", "model name (provider default when empty)")
	flags.BoolVar(&opts.manifest, "manifest", false, "also write {name}.manifest.yaml describing the run")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	return cmd
}

// overrides returns the flags the user actually set.
func (o *rootOptions) overrides(cmd *cobra.Command) config.Overrides {
	var ov config.Overrides
	changed := cmd.Flags().Changed

	if changed("output-dir") {
		ov.OutputDir = &o.outputDir
	}
	if changed("max-tokens") {
		ov.MaxTokens = &o.maxTokens
	}
	if changed("dpi") {
		ov.DPI = &o.dpi
	}
	if changed("probe-dpi") {
		ov.ProbeDPI = &o.probeDPI
	}
	if changed("concurrency") {
		ov.Concurrency = &o.concurrency
	}
	if changed("timeout") {
		ov.Timeout = &o.timeout
	}
	if changed("provider") {
		ov.Provider = &o.provider
	}
	if changed("model") {
		ov.Model = &o.model
	}
	if changed("manifest") {
		ov.Manifest = &o.manifest
	}
	if o.verbose {
		level := "debug"
		ov.LogLevel = &level
	}
	return ov
}

// Execute runs the command and returns the process exit code. Errors are
// reported as a single "Error: ..." line on stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		noColor, _ := cmd.Flags().GetBool("no-color")
		ui.NewConsole(stdout, stderr, noColor, false).Error(err)
		return 1
	}
	return 0
}
