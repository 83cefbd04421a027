package palette

import (
	"math"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// rgba is a parsed color with straight alpha in [0, 1].
type rgba struct {
	c colorful.Color
	a float64
}

var keywords = map[string]rgba{
	"transparent": {colorful.Color{}, 0},
	"black":       {colorful.Color{R: 0, G: 0, B: 0}, 1},
	"white":       {colorful.Color{R: 1, G: 1, B: 1}, 1},
	"red":         {colorful.Color{R: 1, G: 0, B: 0}, 1},
	"green":       {colorful.Color{R: 0, G: 128.0 / 255, B: 0}, 1},
	"blue":        {colorful.Color{R: 0, G: 0, B: 1}, 1},
	"gray":        {colorful.Color{R: 128.0 / 255, G: 128.0 / 255, B: 128.0 / 255}, 1},
	"grey":        {colorful.Color{R: 128.0 / 255, G: 128.0 / 255, B: 128.0 / 255}, 1},
	"silver":      {colorful.Color{R: 192.0 / 255, G: 192.0 / 255, B: 192.0 / 255}, 1},
	"yellow":      {colorful.Color{R: 1, G: 1, B: 0}, 1},
	"orange":      {colorful.Color{R: 1, G: 165.0 / 255, B: 0}, 1},
	"purple":      {colorful.Color{R: 128.0 / 255, G: 0, B: 128.0 / 255}, 1},
	"navy":        {colorful.Color{R: 0, G: 0, B: 128.0 / 255}, 1},
}

// parse understands #rgb, #rgba, #rrggbb, #rrggbbaa, rgb()/rgba() in comma
// or space syntax, hsl()/hsla(), and a handful of keywords.
func parse(s string) (rgba, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return rgba{}, false
	}
	if k, ok := keywords[s]; ok {
		return k, true
	}
	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}
	name, args, ok := splitFunc(s)
	if !ok {
		return rgba{}, false
	}
	switch name {
	case "rgb", "rgba":
		return parseRGB(args)
	case "hsl", "hsla":
		return parseHSL(args)
	}
	return rgba{}, false
}

func parseHex(h string) (rgba, bool) {
	switch len(h) {
	case 3, 4:
		var b strings.Builder
		for _, r := range h {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		h = b.String()
	case 6, 8:
	default:
		return rgba{}, false
	}
	v, err := strconv.ParseUint(h, 16, 64)
	if err != nil {
		return rgba{}, false
	}
	a := 1.0
	if len(h) == 8 {
		a = float64(v&0xff) / 255
		v >>= 8
	}
	c := colorful.Color{
		R: float64((v>>16)&0xff) / 255,
		G: float64((v>>8)&0xff) / 255,
		B: float64(v&0xff) / 255,
	}
	return rgba{c, a}, true
}

// splitFunc splits "name(a, b, c / d)" into name and its arguments.
func splitFunc(s string) (string, []string, bool) {
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return "", nil, false
	}
	inner := strings.NewReplacer(",", " ", "/", " ").Replace(s[open+1 : len(s)-1])
	return strings.TrimSpace(s[:open]), strings.Fields(inner), true
}

func parseRGB(args []string) (rgba, bool) {
	if len(args) != 3 && len(args) != 4 {
		return rgba{}, false
	}
	var ch [3]float64
	for i := 0; i < 3; i++ {
		v, ok := component(args[i], 255)
		if !ok {
			return rgba{}, false
		}
		ch[i] = clamp01(v / 255)
	}
	a := 1.0
	if len(args) == 4 {
		v, ok := component(args[3], 1)
		if !ok {
			return rgba{}, false
		}
		a = clamp01(v)
	}
	return rgba{colorful.Color{R: ch[0], G: ch[1], B: ch[2]}, a}, true
}

func parseHSL(args []string) (rgba, bool) {
	if len(args) != 3 && len(args) != 4 {
		return rgba{}, false
	}
	h, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "deg"), 64)
	if err != nil {
		return rgba{}, false
	}
	s, ok1 := component(args[1], 1)
	l, ok2 := component(args[2], 1)
	if !ok1 || !ok2 || !strings.HasSuffix(args[1], "%") || !strings.HasSuffix(args[2], "%") {
		return rgba{}, false
	}
	a := 1.0
	if len(args) == 4 {
		v, ok := component(args[3], 1)
		if !ok {
			return rgba{}, false
		}
		a = clamp01(v)
	}
	h = math.Mod(math.Mod(h, 360)+360, 360)
	return rgba{colorful.Hsl(h, clamp01(s), clamp01(l)), a}, true
}

// component parses a number or a percentage of full.
func component(s string, full float64) (float64, bool) {
	if p, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, false
		}
		return v / 100 * full, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// format renders an opaque color as #rrggbb and a translucent one as
// rgba(r, g, b, a) with alpha rounded to three decimals.
func (c rgba) format() string {
	if c.a >= 1 {
		return c.c.Clamped().Hex()
	}
	r, g, b := c.c.Clamped().RGB255()
	a := math.Round(c.a*1000) / 1000
	return "rgba(" + strconv.Itoa(int(r)) + ", " + strconv.Itoa(int(g)) + ", " +
		strconv.Itoa(int(b)) + ", " + strconv.FormatFloat(a, 'f', -1, 64) + ")"
}

// Normalize parses a CSS color and returns its canonical form. Fully
// transparent colors are valid and come back as rgba(r, g, b, 0).
func Normalize(s string) (string, bool) {
	c, ok := parse(s)
	if !ok {
		return "", false
	}
	return c.format(), true
}

// Opaque returns the #rrggbb form of s with alpha dropped.
func Opaque(s string) (string, bool) {
	c, ok := parse(s)
	if !ok {
		return "", false
	}
	return c.c.Clamped().Hex(), true
}

// Luminance is the WCAG relative luminance of s, ignoring alpha. Values
// that do not parse count as mid-grey (0.5).
func Luminance(s string) float64 {
	c, ok := parse(s)
	if !ok {
		return 0.5
	}
	r, g, b := c.c.Clamped().LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// Contrast is the WCAG contrast ratio between two colors, in [1, 21].
func Contrast(a, b string) float64 {
	l1, l2 := Luminance(a), Luminance(b)
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	return (l1 + 0.05) / (l2 + 0.05)
}

// IsDark reports whether s has luminance below 0.5.
func IsDark(s string) bool {
	return Luminance(s) < 0.5
}
