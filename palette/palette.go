// Package palette samples a chat page's theme colors into a five-slot
// palette, with per-platform probe chains, defaults and a contrast guard
// between accent and surface.
package palette

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/locator"
)

// MinContrast is the lowest accent/surface contrast ratio accepted.
const MinContrast = 3.0

// Palette holds normalized colors: #rrggbb, or rgba(r, g, b, a) when
// translucent.
type Palette struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Accent    string `json:"accent"`
	Surface   string `json:"surface"`
	Border    string `json:"border"`
}

// Get returns the value of a slot.
func (p Palette) Get(s Slot) string {
	switch s {
	case SlotPrimary:
		return p.Primary
	case SlotSecondary:
		return p.Secondary
	case SlotAccent:
		return p.Accent
	case SlotSurface:
		return p.Surface
	case SlotBorder:
		return p.Border
	}
	return ""
}

// With returns a copy of p with slot s set to v.
func (p Palette) With(s Slot, v string) Palette {
	switch s {
	case SlotPrimary:
		p.Primary = v
	case SlotSecondary:
		p.Secondary = v
	case SlotAccent:
		p.Accent = v
	case SlotSurface:
		p.Surface = v
	case SlotBorder:
		p.Border = v
	}
	return p
}

// Validate normalizes every slot, replacing unparseable ones with the
// Fallback value, then forces the accent to white or black (whichever
// contrasts more with the surface) when accent/surface contrast is below
// MinContrast.
func Validate(p Palette) Palette {
	for _, s := range Slots {
		v, ok := Normalize(p.Get(s))
		if !ok {
			v = Fallback.Get(s)
		}
		p = p.With(s, v)
	}
	if Contrast(p.Accent, p.Surface) < MinContrast {
		if Contrast("#ffffff", p.Surface) >= Contrast("#000000", p.Surface) {
			p.Accent = "#ffffff"
		} else {
			p.Accent = "#000000"
		}
	}
	return p
}

// Extractor samples and caches palettes per (platform, UI version).
// Safe for concurrent use; concurrent first requests for one key sample
// the document once.
type Extractor struct {
	logger        *slog.Logger
	dominantLimit int

	mu    sync.RWMutex
	cache map[cacheKey]Palette
	group singleflight.Group
}

type cacheKey struct {
	platform, version string
}

func (k cacheKey) String() string { return k.platform + "|" + k.version }

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger for probe diagnostics.
func WithLogger(l *slog.Logger) Option { return func(x *Extractor) { x.logger = l } }

// WithDominantLimit bounds the elements inspected by Dominant probes that
// do not set their own limit.
func WithDominantLimit(n int) Option { return func(x *Extractor) { x.dominantLimit = n } }

// NewExtractor creates an Extractor with an empty cache.
func NewExtractor(opts ...Option) *Extractor {
	x := &Extractor{
		logger:        slog.Default(),
		dominantLimit: DefaultDominantLimit,
		cache:         make(map[cacheKey]Palette),
	}
	for _, o := range opts {
		o(x)
	}
	return x
}

// Extract returns the cached palette for the profile's (Name, UIVersion),
// sampling doc on a miss. It never fails: probe errors fall through to
// defaults.
func (x *Extractor) Extract(ctx context.Context, doc dom.Document, p locator.Profile) Palette {
	key := cacheKey{p.Name, p.UIVersion}
	if pal, ok := x.Cached(p); ok {
		return pal
	}
	v, _, _ := x.group.Do(key.String(), func() (any, error) {
		if pal, ok := x.Cached(p); ok {
			return pal, nil
		}
		pal := x.sample(ctx, doc, p.Name)
		x.store(key, pal)
		return pal, nil
	})
	return v.(Palette)
}

// ThemeChanged re-samples doc and replaces the cached palette for the
// profile's key.
func (x *Extractor) ThemeChanged(ctx context.Context, doc dom.Document, p locator.Profile) Palette {
	key := cacheKey{p.Name, p.UIVersion}
	v, _, _ := x.group.Do("theme|"+key.String(), func() (any, error) {
		pal := x.sample(ctx, doc, p.Name)
		x.store(key, pal)
		return pal, nil
	})
	return v.(Palette)
}

// Cached returns the palette stored for the profile's key, if any.
func (x *Extractor) Cached(p locator.Profile) (Palette, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	pal, ok := x.cache[cacheKey{p.Name, p.UIVersion}]
	return pal, ok
}

// Forget drops every cached palette.
func (x *Extractor) Forget() {
	x.mu.Lock()
	x.cache = make(map[cacheKey]Palette)
	x.mu.Unlock()
}

func (x *Extractor) store(k cacheKey, pal Palette) {
	x.mu.Lock()
	x.cache[k] = pal
	x.mu.Unlock()
}

func (x *Extractor) sample(ctx context.Context, doc dom.Document, platform string) Palette {
	strategy := StrategyFor(platform)
	var raw Palette
	for _, slot := range Slots {
		v := x.probe(ctx, doc, strategy, slot)
		if v == "" {
			v = strategy.Defaults.Get(slot)
		}
		raw = raw.With(slot, v)
	}
	pal := Validate(raw)
	x.logger.Debug("palette: sampled", "platform", platform,
		"primary", pal.Primary, "accent", pal.Accent, "surface", pal.Surface)
	return pal
}

// probe runs the slot's chain and returns the first value that parses and
// is not fully transparent.
func (x *Extractor) probe(ctx context.Context, doc dom.Document, s Strategy, slot Slot) string {
	for _, pr := range s.Probes[slot] {
		if d, ok := pr.(Dominant); ok && d.Limit <= 0 {
			pr = Dominant{Limit: x.dominantLimit}
		}
		v, err := pr.Sample(ctx, doc)
		if err != nil {
			x.logger.Debug("palette: probe failed", "slot", slot, "probe", pr.String(), "error", err)
			continue
		}
		c, ok := parse(v)
		if !ok || c.a == 0 {
			continue
		}
		return c.format()
	}
	return ""
}
