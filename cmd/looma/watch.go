package main

import (
	"github.com/spf13/cobra"
)

func (c *cli) watchCmd() *cobra.Command {
	var f sourceFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a page and stream index updates to the configured sinks",
		Long: `Runs a session over a saved page (reloaded when the file changes) or a
live Chrome tab. Updates and theme events go to the sinks in the config file;
by default that is JSON lines on stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pg, err := c.open(ctx, f, true)
			if err != nil {
				return err
			}
			defer pg.close()

			s, err := c.session(pg.doc, false)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Start(ctx); err != nil {
				return err
			}
			c.logger.Info("looma: watching", "url", pg.doc.URL())
			<-ctx.Done()
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
