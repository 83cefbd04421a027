package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/looma/locator"
	"github.com/hazyhaar/looma/palette"
)

func (c *cli) paletteCmd() *cobra.Command {
	var f sourceFlags
	var noSwatch bool
	cmd := &cobra.Command{
		Use:   "palette [file.html]",
		Short: "Extract the page's color palette",
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

			prof, err := locator.ResolveURL(pg.doc.URL())
			if err != nil {
				prof = locator.Generic()
			}
			prof = prof.WithUIVersion(locator.DetectUIVersion(ctx, pg.doc, prof.Name))
			pal := palette.NewExtractor(palette.WithLogger(c.logger)).Extract(ctx, pg.doc, prof)
			if err := writeJSON(cmd, struct {
				Platform string          `json:"platform"`
				Palette  palette.Palette `json:"palette"`
				Dark     bool            `json:"dark"`
			}{prof.Name, pal, palette.IsDark(pal.Surface)}); err != nil {
				return err
			}
			if !noSwatch {
				fmt.Fprintln(cmd.OutOrStdout(), swatches(pal))
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&noSwatch, "no-swatch", false, "print JSON only")
	return cmd
}

// swatches renders one colored block per slot, labelled in a readable
// color.
func swatches(p palette.Palette) string {
	blocks := make([]string, 0, len(palette.Slots))
	for _, slot := range palette.Slots {
		hex := p.Get(slot)
		fg := "#000000"
		if palette.IsDark(hex) {
			fg = "#ffffff"
		}
		style := lipgloss.NewStyle().
			Background(lipgloss.Color(hex)).
			Foreground(lipgloss.Color(fg)).
			Padding(0, 1)
		blocks = append(blocks, style.Render(fmt.Sprintf("%s %s", slot, hex)))
	}
	return strings.Join(blocks, " ")
}
