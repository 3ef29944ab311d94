package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/sitemap/internal/bootstrap"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve sitemaps and the admin API",
		Long: `Starts the HTTP server that serves published sitemaps and the admin API.
When the scheduler is enabled it also starts and advances scheduled runs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(app)

			return bootstrap.Serve(cmd.Context(), app)
		},
	}
}
