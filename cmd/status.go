package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/sitemap/internal/generator"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the in-flight run and published sitemaps",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(app)

			out := cmd.OutOrStdout()

			progress, progressErr := app.Generator.Progress(ctx)
			switch {
			case errors.Is(progressErr, generator.ErrNoRun):
				fmt.Fprintln(out, "No generation run in progress.")
			case progressErr != nil:
				return progressErr
			default:
				renderProgress(out, progress)
			}

			s, loadErr := app.Settings.Load(ctx)
			if loadErr != nil {
				return fmt.Errorf("load settings: %w", loadErr)
			}

			t := newTable(out)
			t.AppendHeader(table.Row{"Context", "URL", "Generated"})
			for _, name := range s.Contexts {
				ago, agoErr := app.Generator.GetGeneratedAgo(ctx, name)
				generated := "never"
				switch {
				case errors.Is(agoErr, generator.ErrSitemapNotFound):
				case agoErr != nil:
					return agoErr
				default:
					generated = ago.Truncate(time.Second).String() + " ago"
				}
				t.AppendRow(table.Row{name, s.BaseURL + generator.SitemapsPath + "/" + name + ".xml", generated})
			}
			t.Render()
			return nil
		},
	}
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	return t
}

func renderProgress(out io.Writer, p *generator.Progress) {
	t := newTable(out)
	t.SetTitle("Run " + p.RunID)
	t.AppendRows([]table.Row{
		{"Mode", p.Mode},
		{"Phase", p.Phase},
		{"Operation", fmt.Sprintf("%d of %d", p.Operation, p.Operations)},
		{"Items", fmt.Sprintf("%d of %d", p.Processed, p.Total)},
		{"Progress", fmt.Sprintf("%.1f%%", p.Fraction*100)},
		{"Emitted", p.Emitted},
		{"Rejected", p.Rejected},
		{"Failed", p.Failed},
		{"Started", p.StartedAt.Format(time.RFC3339)},
	})
	t.AppendFooter(table.Row{"", p.Message})
	t.Render()
}
