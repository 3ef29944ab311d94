package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/generator"
)

type generateOptions struct {
	mode   string
	resume bool
	step   bool
	cancel bool
}

func newGenerateCommand() *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sitemaps",
		Long: `Starts a new generation run, discarding any run in progress. By default the run
loops batch slices until every sitemap is published.

  --resume continues the in-flight run until it finishes.
  --step advances the in-flight run by one batch slice.
  --cancel discards the in-flight run; published sitemaps are kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", string(domain.ModeCommandLine),
		"generation mode (interactive, scheduled, commandLine, runToCompletion)")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "continue the in-flight run")
	cmd.Flags().BoolVar(&opts.step, "step", false, "advance the in-flight run by one batch slice")
	cmd.Flags().BoolVar(&opts.cancel, "cancel", false, "discard the in-flight run")
	cmd.MarkFlagsMutuallyExclusive("resume", "step", "cancel")

	return cmd
}

func runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	mode, modeErr := domain.ParseMode(opts.mode)
	if modeErr != nil {
		return modeErr
	}

	ctx := cmd.Context()
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(app)

	out := cmd.OutOrStdout()
	gen := app.Generator

	var progress *generator.Progress
	switch {
	case opts.cancel:
		if cancelErr := gen.Cancel(ctx); cancelErr != nil {
			return cancelErr
		}
		fmt.Fprintln(out, "Sitemap generation cancelled.")
		return nil
	case opts.resume:
		progress, err = gen.Resume(ctx)
	case opts.step:
		progress, err = gen.Step(ctx)
	default:
		progress, err = gen.StartGeneration(ctx, mode)
	}

	if progress != nil {
		printProgress(out, progress)
	}
	if errors.Is(err, generator.ErrNoRun) {
		return errors.New("no generation run in progress; start one with 'sitemap generate'")
	}
	return err
}

func printProgress(out io.Writer, p *generator.Progress) {
	fmt.Fprintf(out, "%s [%s] %.0f%% %s\n", p.RunID, p.Phase, p.Fraction*100, p.Message)
	fmt.Fprintf(out, "emitted=%d rejected=%d failed=%d\n", p.Emitted, p.Rejected, p.Failed)
}
