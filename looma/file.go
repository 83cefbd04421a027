package looma

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/looma/looma/internal/filesource"
)

// FileSource is a saved page followed on disk.
type FileSource = filesource.Source

// OpenFile parses the HTML file at path. url overrides the page's
// canonical link when set. Call Watch on the result to follow edits.
func OpenFile(ctx context.Context, path, url string, logger *slog.Logger) (*FileSource, error) {
	return filesource.Open(ctx, filesource.Config{Path: path, URL: url, Logger: logger})
}
