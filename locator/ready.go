package locator

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/looma/dom"
)

// PollInterval is how often WaitUntilReady re-checks the document.
const PollInterval = 500 * time.Millisecond

// ErrPlatformTimeout is returned when the conversation container never
// appeared within the deadline. Cause holds the last query error, if any.
type ErrPlatformTimeout struct {
	Platform string
	Timeout  time.Duration
	Cause    error
}

func (e *ErrPlatformTimeout) Error() string {
	msg := fmt.Sprintf("locator: %s not ready after %s", e.Platform, e.Timeout)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ErrPlatformTimeout) Unwrap() error { return e.Cause }

type marker struct {
	selector string
	version  string
}

// markers identify known UI revisions. The first present marker wins.
var markers = map[string][]marker{
	ChatGPT: {
		{`[data-testid="conversation-turn"]`, "new-ui"},
		{`.chat-message`, "legacy"},
	},
	Gemini: {
		{`[data-message-author]`, "gemini"},
		{`.conversation-container`, "bard-legacy"},
	},
}

// DetectUIVersion inspects marker selectors for the named platform.
// Query errors count as absence.
func DetectUIVersion(ctx context.Context, doc dom.Document, name string) string {
	for _, m := range markers[name] {
		if el, err := doc.Query(ctx, m.selector); err == nil && el != nil {
			return m.version
		}
	}
	return VersionUnknown
}

// WaitUntilReady polls doc until p's conversation container is present,
// then returns p stamped with the detected UI version. Transient query
// errors keep the poll going; the last one is reported on timeout.
func WaitUntilReady(ctx context.Context, doc dom.Document, p Profile, timeout time.Duration) (Profile, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		el, err := doc.Query(ctx, p.ConversationContainer)
		if err == nil && el != nil {
			return p.WithUIVersion(DetectUIVersion(ctx, doc, p.Name)), nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return p, ctx.Err()
		case <-deadline.C:
			return p, &ErrPlatformTimeout{Platform: p.Name, Timeout: timeout, Cause: lastErr}
		case <-ticker.C:
		}
	}
}
