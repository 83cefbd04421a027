package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/looma/locator"
)

func (c *cli) resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <host-or-url>",
		Short: "Print the platform profile for a host or URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := strings.TrimSpace(args[0])
			var p locator.Profile
			if strings.Contains(arg, "://") {
				var err error
				if p, err = locator.ResolveURL(arg); err != nil {
					return err
				}
			} else {
				p = locator.Resolve(arg)
			}
			return writeJSON(cmd, struct {
				locator.Profile
				Supported bool `json:"supported"`
			}{p, p.Supported()})
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
