package main

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/looma/looma"
)

func (c *cli) serveCmd() *cobra.Command {
	var f sourceFlags
	var addr string
	var withMCP bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the control API and websocket update stream for a page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			pg, err := c.open(ctx, f, true)
			if err != nil {
				return err
			}
			defer pg.close()

			s, err := c.session(pg.doc, withMCP)
			if err != nil {
				return err
			}
			defer s.Close()
			srv := looma.NewServer(s, c.logger)

			// A page that is not ready yet can still be driven through
			// POST /navigate.
			if err := s.Start(ctx); err != nil {
				c.logger.Warn("looma: session not started", "error", err)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.ListenAndServe(gctx, addr) })
			if withMCP {
				g.Go(func() error { return runMCP(gctx, s) })
			}
			return g.Wait()
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr from config)")
	cmd.Flags().BoolVar(&withMCP, "mcp", false, "also serve MCP tools on stdio")
	return cmd
}

func (c *cli) mcpCmd() *cobra.Command {
	var f sourceFlags
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Expose a page's session as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pg, err := c.open(ctx, f, true)
			if err != nil {
				return err
			}
			defer pg.close()

			// stdout carries the protocol.
			s, err := c.session(pg.doc, true)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Start(ctx); err != nil {
				c.logger.Warn("looma: session not started", "error", err)
			}
			return runMCP(ctx, s)
		},
	}
	f.register(cmd)
	return cmd
}

func runMCP(ctx context.Context, s *looma.Session) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: "looma", Version: version}, nil)
	s.RegisterMCP(srv)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
