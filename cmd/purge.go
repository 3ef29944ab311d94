package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	infralogger "github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
)

func newPurgeCommand() *cobra.Command {
	var contexts []string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete the published and staged sitemaps of contexts",
		Long: `Removes every stored delta of the given contexts. Use it after dropping a
context from the settings; the sitemap of a purged context is gone until the
next run publishes it again.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(app)

			for _, name := range contexts {
				n, deleteErr := app.Stores.Deltas.DeleteContext(ctx, name)
				if deleteErr != nil {
					return deleteErr
				}
				app.Logger.Info("Sitemap context purged",
					infralogger.SitemapContext(name),
					infralogger.Int64("deltas", n),
				)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: removed %d deltas\n", name, n)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&contexts, "context", nil, "context to purge (repeatable)")
	_ = cmd.MarkFlagRequired("context")

	return cmd
}
