// Command looma indexes the user queries of an AI chat page and extracts
// its color theme.
//
// Usage:
//
//	looma resolve chatgpt.com                      # platform profile
//	looma index saved.html --host claude.ai        # one-shot scan of a snapshot
//	looma palette saved.html                       # palette + terminal swatches
//	looma watch --url https://chatgpt.com/c/...    # stream updates to sinks
//	looma serve --file saved.html                  # control API + websocket
//	looma mcp --url https://gemini.google.com/app  # MCP tools over stdio
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/looma/looma"
)

const version = "0.1.0"

// cli carries what every command shares once flags are parsed.
type cli struct {
	configPath string
	logLevel   string

	cfg    *looma.Config
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "looma:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "looma",
		Short:         "Conversation query index and adaptive theme for AI chat pages",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to looma.yaml")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		c.resolveCmd(),
		c.indexCmd(),
		c.paletteCmd(),
		c.watchCmd(),
		c.serveCmd(),
		c.mcpCmd(),
	)
	return root
}

// setup loads the configuration and builds the stderr JSON logger.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := looma.LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	level, err := looma.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(c.logger)
	return nil
}
