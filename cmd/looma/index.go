package main

import (
	"github.com/spf13/cobra"

	"github.com/hazyhaar/looma/indexer"
)

func (c *cli) indexCmd() *cobra.Command {
	var f sourceFlags
	var search string
	var limit int
	cmd := &cobra.Command{
		Use:   "index [file.html]",
		Short: "Scan a page once and print its user queries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.file = args[0]
			}
			ctx := cmd.Context()
			pg, err := c.open(ctx, f, false)
			if err != nil {
				return err
			}
			defer pg.close()

			s, err := c.session(pg.doc, true)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Start(ctx); err != nil {
				return err
			}
			records, err := s.Queries()
			if err != nil {
				return err
			}
			p, _ := s.Profile()
			return writeJSON(cmd, struct {
				Platform string           `json:"platform"`
				Total    int              `json:"total"`
				Queries  []indexer.Record `json:"queries"`
			}{p.Name, len(records), indexer.Filter(records, search, limit)})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&search, "search", "", "keep queries containing this text")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum queries to print (0: all)")
	return cmd
}
