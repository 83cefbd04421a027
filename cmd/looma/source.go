package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/looma"
)

// sourceFlags select the page a command runs against.
type sourceFlags struct {
	file string
	url  string
	host string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "file", "", "saved HTML page")
	cmd.Flags().StringVar(&f.url, "url", "", "live page to open in Chrome")
	cmd.Flags().StringVar(&f.host, "host", "", "platform host for a saved page (default: its canonical link)")
}

// page is an open document and its release function.
type page struct {
	doc   dom.Document
	close func()
}

// open loads the selected source. A file is followed on disk when follow
// is set; a URL launches (or connects to) Chrome.
func (c *cli) open(ctx context.Context, f sourceFlags, follow bool) (*page, error) {
	switch {
	case f.file != "" && f.url != "":
		return nil, errors.New("--file and --url are exclusive")
	case f.file != "":
		src, err := looma.OpenFile(ctx, f.file, hostURL(f.host), c.logger)
		if err != nil {
			return nil, err
		}
		if follow {
			if err := src.Watch(ctx); err != nil {
				return nil, err
			}
		}
		return &page{doc: src.Document(), close: func() { src.Close() }}, nil
	case f.url != "":
		b, err := looma.NewBrowser(ctx, c.cfg.Browser, c.logger)
		if err != nil {
			return nil, err
		}
		p, err := looma.OpenPage(ctx, b, f.url)
		if err != nil {
			b.Close()
			return nil, err
		}
		return &page{doc: p, close: func() {
			p.Close()
			b.Close()
		}}, nil
	}
	return nil, errors.New("one of --file or --url is required")
}

// hostURL turns a --host value into a URL the resolver accepts.
func hostURL(host string) string {
	switch {
	case host == "":
		return ""
	case strings.Contains(host, "://"):
		return host
	}
	return fmt.Sprintf("https://%s/", host)
}

// session builds a Session over doc from the configuration. stdout sinks
// are dropped when quiet is set.
func (c *cli) session(doc dom.Document, quiet bool) (*looma.Session, error) {
	cfg := *c.cfg
	if quiet {
		cfg.Sinks = withoutStdout(cfg.Sinks)
	}
	opts, err := looma.OptionsFromConfig(&cfg, c.logger)
	if err != nil {
		return nil, err
	}
	return looma.New(doc, opts), nil
}

func withoutStdout(sinks []looma.SinkConfig) []looma.SinkConfig {
	out := make([]looma.SinkConfig, 0, len(sinks))
	for _, s := range sinks {
		if s.Type != "stdout" {
			out = append(out, s)
		}
	}
	return out
}
