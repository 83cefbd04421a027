// Package locator maps a chat host to the selectors that find its
// conversation structure, and waits for that structure to appear.
package locator

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/hazyhaar/looma/dom"
)

// Platform names.
const (
	ChatGPT    = "chatgpt"
	Gemini     = "gemini"
	Perplexity = "perplexity"
	DeepSeek   = "deepseek"
	Grok       = "grok"
	Claude     = "claude"
	Unknown    = "unknown"
)

// VersionUnknown is the UI version when no marker matched.
const VersionUnknown = "unknown"

// Profile is the set of selectors for one platform. Profiles are values:
// nothing in this package or its callers mutates one in place.
type Profile struct {
	Name                   string `json:"name" yaml:"name"`
	DisplayName            string `json:"display_name" yaml:"display_name"`
	UIVersion              string `json:"ui_version" yaml:"ui_version"`
	UserMessage            string `json:"user_message" yaml:"user_message"`
	FallbackUserMessage    string `json:"fallback_user_message" yaml:"fallback_user_message"`
	MessageContent         string `json:"message_content" yaml:"message_content"`
	FallbackMessageContent string `json:"fallback_message_content" yaml:"fallback_message_content"`
	ConversationContainer  string `json:"conversation_container" yaml:"conversation_container"`
	AssistantMessage       string `json:"assistant_message" yaml:"assistant_message"`
}

// WithUIVersion returns a copy of p stamped with version v.
func (p Profile) WithUIVersion(v string) Profile {
	p.UIVersion = v
	return p
}

// Supported reports whether p is a known platform rather than the generic
// fallback.
func (p Profile) Supported() bool { return Supported(p.Name) }

// Supported reports whether name is a known platform.
func Supported(name string) bool {
	_, ok := profiles[name]
	return ok && name != Unknown
}

// UserMessageLocators returns the primary and fallback user-message
// selectors, skipping empty ones.
func (p Profile) UserMessageLocators() []string {
	return nonEmpty(p.UserMessage, p.FallbackUserMessage)
}

// ContentLocators returns the primary and fallback content selectors,
// skipping empty ones.
func (p Profile) ContentLocators() []string {
	return nonEmpty(p.MessageContent, p.FallbackMessageContent)
}

func nonEmpty(ss ...string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that the profile has a name, a user-message selector and
// a container selector, and that every non-empty selector compiles.
func (p Profile) Validate() error {
	if p.Name == "" {
		return errors.New("locator: profile has no name")
	}
	if p.UserMessage == "" {
		return fmt.Errorf("locator: %s: empty user message selector", p.Name)
	}
	if p.ConversationContainer == "" {
		return fmt.Errorf("locator: %s: empty conversation container selector", p.Name)
	}
	for field, sel := range map[string]string{
		"user_message":             p.UserMessage,
		"fallback_user_message":    p.FallbackUserMessage,
		"message_content":          p.MessageContent,
		"fallback_message_content": p.FallbackMessageContent,
		"conversation_container":   p.ConversationContainer,
		"assistant_message":        p.AssistantMessage,
	} {
		if sel == "" {
			continue
		}
		if _, err := dom.Compile(sel); err != nil {
			return fmt.Errorf("locator: %s: %s: %w", p.Name, field, err)
		}
	}
	return nil
}

type rule struct {
	pattern *regexp.Regexp
	name    string
}

// rules are tried in order; the first match wins.
var rules = []rule{
	{regexp.MustCompile(`chat\.openai\.com|chatgpt\.com`), ChatGPT},
	{regexp.MustCompile(`gemini\.google\.com|bard\.google\.com`), Gemini},
	{regexp.MustCompile(`perplexity\.ai`), Perplexity},
	{regexp.MustCompile(`chat\.deepseek\.com|deepseek\.com`), DeepSeek},
	{regexp.MustCompile(`grok\.x\.ai|x\.ai/grok`), Grok},
	{regexp.MustCompile(`claude\.ai`), Claude},
}

var profiles = map[string]Profile{
	ChatGPT: {
		Name:                   ChatGPT,
		DisplayName:            "ChatGPT",
		UserMessage:            `[data-message-author-role="user"]`,
		AssistantMessage:       `[data-message-author-role="assistant"]`,
		MessageContent:         `.whitespace-pre-wrap`,
		ConversationContainer:  `[data-testid^="conversation-turn"]`,
		FallbackUserMessage:    `.group.w-full:has([data-message-author-role="user"]), div[class*="user"], .message[data-role="user"]`,
		FallbackMessageContent: `div[data-message-id] div.whitespace-pre-wrap, .message-text, .text-base`,
	},
	Gemini: {
		Name:                   Gemini,
		DisplayName:            "Gemini",
		UserMessage:            `[data-message-author="user"]`,
		AssistantMessage:       `[data-message-author="assistant"]`,
		MessageContent:         `.message-content`,
		ConversationContainer:  `.conversation-container`,
		FallbackUserMessage:    `.user-message, div[class*="user"], .query-wrapper`,
		FallbackMessageContent: `.message-text, .user-text, .query-text`,
	},
	Perplexity: {
		Name:                   Perplexity,
		DisplayName:            "Perplexity",
		UserMessage:            `.user-input-container`,
		AssistantMessage:       `.answer-container`,
		MessageContent:         `.prose`,
		ConversationContainer:  `.thread-container`,
		FallbackUserMessage:    `[data-testid="user-message"], .user-query, div[class*="user"]`,
		FallbackMessageContent: `.message-content, .user-text, .query-text`,
	},
	DeepSeek: {
		Name:                   DeepSeek,
		DisplayName:            "DeepSeek",
		UserMessage:            `.user-message`,
		AssistantMessage:       `.assistant-message`,
		MessageContent:         `.message-content`,
		ConversationContainer:  `.chat-container`,
		FallbackUserMessage:    `div[class*="user"], .human-message, [data-role="user"]`,
		FallbackMessageContent: `.user-text, .message-text, .content`,
	},
	Grok: {
		Name:                   Grok,
		DisplayName:            "Grok",
		UserMessage:            `.user-message`,
		AssistantMessage:       `.assistant-message`,
		MessageContent:         `.message-content`,
		ConversationContainer:  `.chat-interface`,
		FallbackUserMessage:    `div[class*="user"], .human-message, [data-role="user"]`,
		FallbackMessageContent: `.user-text, .message-text, .content`,
	},
	Claude: {
		Name:                   Claude,
		DisplayName:            "Claude",
		UserMessage:            `.user-message`,
		AssistantMessage:       `.assistant-message`,
		MessageContent:         `.message-content`,
		ConversationContainer:  `.chat-container`,
		FallbackUserMessage:    `div[class*="user"], .human-message, [data-role="user"]`,
		FallbackMessageContent: `.user-text, .message-text, .content`,
	},
	Unknown: {
		Name:                   Unknown,
		DisplayName:            "Unknown Platform",
		UserMessage:            `.user-message, .human-message, [role="user"]`,
		AssistantMessage:       `.assistant-message, .ai-message, [role="assistant"]`,
		MessageContent:         `.message-content, .content, .text`,
		ConversationContainer:  `.conversation, .chat, .messages`,
		FallbackUserMessage:    `.message:has(.user)`,
		FallbackMessageContent: `.content`,
	},
}

// Resolve maps a host identity to a profile. host may be a bare hostname
// ("chatgpt.com") or a URL; for URLs the rules see host and path, so
// path-scoped rules like x.ai/grok can match. Unmatched hosts get Generic.
func Resolve(host string) Profile {
	target := strings.ToLower(strings.TrimSpace(host))
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		target = u.Host + u.Path
	}
	for _, r := range rules {
		if r.pattern.MatchString(target) {
			return profiles[r.name].WithUIVersion(VersionUnknown)
		}
	}
	return Generic()
}

// ResolveURL is Resolve for a URL that must parse and carry a host.
func ResolveURL(raw string) (Profile, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Profile{}, fmt.Errorf("locator: parse url: %w", err)
	}
	if u.Host == "" {
		return Profile{}, fmt.Errorf("locator: url %q has no host", raw)
	}
	return Resolve(u.Host + u.Path), nil
}

// Generic is the best-effort profile for unrecognised hosts.
func Generic() Profile {
	return profiles[Unknown].WithUIVersion(VersionUnknown)
}

// Lookup returns the built-in profile for name.
func Lookup(name string) (Profile, bool) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, false
	}
	return p.WithUIVersion(VersionUnknown), true
}

// Names lists the known platforms in rule order.
func Names() []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.name)
	}
	return out
}
