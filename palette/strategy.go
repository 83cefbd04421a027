package palette

import "github.com/hazyhaar/looma/locator"

// Slot names a palette entry.
type Slot string

const (
	SlotPrimary   Slot = "primary"
	SlotSecondary Slot = "secondary"
	SlotAccent    Slot = "accent"
	SlotSurface   Slot = "surface"
	SlotBorder    Slot = "border"
)

// Slots lists every slot in palette order.
var Slots = []Slot{SlotPrimary, SlotSecondary, SlotAccent, SlotSurface, SlotBorder}

// Strategy is the probe chain per slot for one platform, with the value to
// use when every probe comes back empty.
type Strategy struct {
	Name     string
	Probes   map[Slot][]Probe
	Defaults Palette
}

// Fallback is the engine default palette, used for unknown platforms and
// for any slot that fails validation.
var Fallback = Palette{
	Primary:   "#1a1a1a",
	Secondary: "#0066cc",
	Accent:    "#ffffff",
	Surface:   "#2a2a2a",
	Border:    "rgba(255, 255, 255, 0.1)",
}

var strategies = map[string]Strategy{
	locator.ChatGPT: {
		Name: locator.ChatGPT,
		Probes: map[Slot][]Probe{
			SlotPrimary: {
				Computed{"body", "background-color"},
				Computed{`.dark\:bg-gray-800`, "background-color"},
				Computed{`[class*="bg-"]`, "background-color"},
			},
			SlotSecondary: {Computed{`[data-testid="send-button"]`, "background-color"}},
			SlotAccent:    {Computed{`[data-message-author-role="user"]`, "color"}},
			SlotSurface:   {Computed{"nav", "background-color"}},
			SlotBorder:    {Var{"--border-light"}},
		},
		Defaults: Palette{
			Primary:   "#212121",
			Secondary: "#10a37f",
			Accent:    "#ececf1",
			Surface:   "#171717",
			Border:    "rgba(255, 255, 255, 0.1)",
		},
	},
	locator.Gemini: {
		Name: locator.Gemini,
		Probes: map[Slot][]Probe{
			SlotPrimary:   {Var{"--surface-container"}, Computed{"body", "background-color"}},
			SlotSecondary: {Var{"--primary"}, Computed{`[data-mdc-dialog-action="ok"]`, "background-color"}},
			SlotAccent:    {Var{"--on-surface"}, Computed{`[data-message-author="user"]`, "color"}},
			SlotSurface:   {Var{"--surface-container-high"}, Computed{".conversation-container", "background-color"}},
			SlotBorder:    {Var{"--outline-variant"}},
		},
		Defaults: Palette{
			Primary:   "#1e1e1e",
			Secondary: "#1a73e8",
			Accent:    "#e8eaed",
			Surface:   "#2d2d30",
			Border:    "rgba(255, 255, 255, 0.12)",
		},
	},
	locator.Perplexity: {
		Name: locator.Perplexity,
		Probes: map[Slot][]Probe{
			SlotPrimary:   {Dominant{}, Computed{"body", "background-color"}},
			SlotSecondary: {Computed{`button[type="submit"]`, "background-color"}, Computed{".btn-primary", "background-color"}},
			SlotAccent:    {Computed{".user-input-container", "color"}, Computed{"h1", "color"}},
			SlotSurface:   {Computed{".thread-container", "background-color"}, Computed{"main", "background-color"}},
			SlotBorder:    {Computed{"hr", "border-color"}},
		},
		Defaults: Palette{
			Primary:   "#202222",
			Secondary: "#20808d",
			Accent:    "#ffffff",
			Surface:   "#2c2d30",
			Border:    "rgba(255, 255, 255, 0.1)",
		},
	},
}

// StrategyFor returns the strategy for a platform name. Platforms without
// one get a strategy with no probes and the Fallback defaults.
func StrategyFor(name string) Strategy {
	if s, ok := strategies[name]; ok {
		return s
	}
	return Strategy{Name: name, Defaults: Fallback}
}
