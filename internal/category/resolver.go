package category

import (
	"sort"
	"strings"
	"unicode"
)

// Canonical category names. Anything else must go through Resolve before it
// is stored or displayed.
const (
	Tablets    = "TABLETS"
	Capsules   = "CAPSULES"
	Syrups     = "SYRUPS"
	Injections = "INJECTIONS"
	Topicals   = "TOPICALS"
	Drops      = "DROPS"
	Powders    = "POWDERS"
	Mouthwash  = "MOUTHWASH"
	Inhalers   = "INHALERS"
	Devices    = "DEVICES"
	Scrubs     = "SCRUBS"
	Solutions  = "SOLUTIONS"
	None       = "NO CATEGORY"
)

var canonical = []string{
	Capsules, Devices, Drops, Inhalers, Injections, Mouthwash,
	None, Powders, Scrubs, Solutions, Syrups, Tablets, Topicals,
}

// rawToCanonical maps normalized source-file labels and free-text category
// strings onto the controlled vocabulary. Keys must already be normalized.
var rawToCanonical = map[string]string{
	"TAB":          Tablets,
	"TABS":         Tablets,
	"TABLET":       Tablets,
	"TABLETS":      Tablets,
	"CAPLET":       Tablets,
	"CAP":          Capsules,
	"CAPS":         Capsules,
	"CAPSULE":      Capsules,
	"CAPSULES":     Capsules,
	"SOFTGEL":      Capsules,
	"SYP":          Syrups,
	"SYRUP":        Syrups,
	"SYRUPS":       Syrups,
	"SUSPENSION":   Syrups,
	"ELIXIR":       Syrups,
	"TONIC":        Syrups,
	"INJ":          Injections,
	"INJECTION":    Injections,
	"INJECTIONS":   Injections,
	"VIAL":         Injections,
	"AMPOULE":      Injections,
	"INFUSION":     Injections,
	"TOPICAL":      Topicals,
	"TOPICALS":     Topicals,
	"CREAM":        Topicals,
	"OINTMENT":     Topicals,
	"GEL":          Topicals,
	"LOTION":       Topicals,
	"DROP":         Drops,
	"DROPS":        Drops,
	"EYE DROPS":    Drops,
	"EAR DROPS":    Drops,
	"NASAL DROPS":  Drops,
	"POWDER":       Powders,
	"POWDERS":      Powders,
	"SACHET":       Powders,
	"GRANULES":     Powders,
	"MOUTHWASH":    Mouthwash,
	"MOUTH WASH":   Mouthwash,
	"GARGLE":       Mouthwash,
	"INHALER":      Inhalers,
	"INHALERS":     Inhalers,
	"ROTACAP":      Inhalers,
	"RESPULES":     Inhalers,
	"DEVICE":       Devices,
	"DEVICES":      Devices,
	"SURGICAL":     Devices,
	"EQUIPMENT":    Devices,
	"SCRUB":        Scrubs,
	"SCRUBS":       Scrubs,
	"HAND WASH":    Scrubs,
	"SOAP":         Scrubs,
	"SOLUTION":     Solutions,
	"SOLUTIONS":    Solutions,
	"LIQUID":       Solutions,
	"ANTISEPTIC":   Solutions,

	"NO CATEGORY":   None,
	"UNCATEGORIZED": None,
}

// Normalize trims and uppercases s and collapses every run of underscores,
// hyphens and whitespace into a single space.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range strings.TrimSpace(s) {
		if r == '_' || r == '-' || unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// Resolve maps a source-file token and a free-text category token onto a
// canonical category name. The source token wins when both are known.
// It never fails: unknown input resolves to None.
func Resolve(sourceToken, categoryToken string) string {
	src := Normalize(sourceToken)
	cat := Normalize(categoryToken)

	for _, key := range []string{src, cat, singular(src), singular(cat)} {
		if key == "" {
			continue
		}
		if name, ok := rawToCanonical[key]; ok {
			return name
		}
	}
	return None
}

// RawTokensFor returns every raw token that resolves to name, sorted. The
// canonical name itself is always part of the result.
func RawTokensFor(name string) []string {
	name = Normalize(name)
	seen := map[string]bool{name: true}
	for raw, target := range rawToCanonical {
		if target != name {
			continue
		}
		seen[raw] = true
		// plural forms reach the same entry through the singular retry
		if strings.HasSuffix(raw, "S") {
			continue
		}
		if plural := raw + "S"; Resolve(plural, "") == name {
			seen[plural] = true
		}
	}

	tokens := make([]string, 0, len(seen))
	for raw := range seen {
		tokens = append(tokens, raw)
	}
	sort.Strings(tokens)
	return tokens
}

// Canonical returns the controlled vocabulary in alphabetical order.
func Canonical() []string {
	out := make([]string, len(canonical))
	copy(out, canonical)
	return out
}

// IsCanonical reports whether name is exactly one of the canonical names.
func IsCanonical(name string) bool {
	for _, c := range canonical {
		if c == name {
			return true
		}
	}
	return false
}

func singular(s string) string {
	if len(s) > 1 && strings.HasSuffix(s, "S") {
		return s[:len(s)-1]
	}
	return ""
}
