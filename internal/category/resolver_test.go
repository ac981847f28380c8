package category

import (
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  tablets ", "TABLETS"},
		{"eye_drops", "EYE DROPS"},
		{"Mouth--Wash", "MOUTH WASH"},
		{"hand \t_- wash", "HAND WASH"},
		{"__no_category__", "NO CATEGORY"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		category string
		want     string
	}{
		{"source token wins", "tablets", "syrup", Tablets},
		{"source abbreviation", "INJ", "", Injections},
		{"falls back to category token", "inventory_2024", "Eye-Drops", Drops},
		{"singularized source", "ointments", "", Topicals},
		{"singularized category", "", "vials", Injections},
		{"unknown everywhere", "misc", "stuff", None},
		{"empty input", "", "", None},
		{"canonical name as category", "", "NO CATEGORY", None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.source, tt.category); got != tt.want {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.source, tt.category, got, tt.want)
			}
		})
	}
}

func TestResolveMappedTokens(t *testing.T) {
	for raw, want := range rawToCanonical {
		if got := Resolve(raw, ""); got != want {
			t.Errorf("Resolve(%q, \"\") = %q, want %q", raw, got, want)
		}
		if got := Resolve("", raw); got != want {
			t.Errorf("Resolve(\"\", %q) = %q, want %q", raw, got, want)
		}
	}
}

func TestProperty_ResolveAlwaysReturnsCanonicalName(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("output is always in the canonical set", prop.ForAll(
		func(source, cat string) bool {
			return IsCanonical(Resolve(source, cat))
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("resolving an output again is a no-op", prop.ForAll(
		func(source, cat string) bool {
			out := Resolve(source, cat)
			return Resolve("", out) == out && Resolve(out, "") == out
		},
		gen.OneConstOf("tab", "syp", "cream", "vial", "hand_wash", "gargle", "misc", ""),
		gen.AlphaString(),
	))

	properties.Property("tokens absent from the table resolve to NO CATEGORY", prop.ForAll(
		func(token string) bool {
			return Resolve(token, token) == None
		},
		gen.RegexMatch(`Z[0-9]{3,8}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRawTokensFor(t *testing.T) {
	tokens := RawTokensFor(Drops)
	if !sort.StringsAreSorted(tokens) {
		t.Fatalf("tokens not sorted: %v", tokens)
	}

	want := []string{"DROP", "DROPS", "EAR DROPS", "EYE DROPS", "NASAL DROPS"}
	for _, w := range want {
		if !contains(tokens, w) {
			t.Errorf("RawTokensFor(DROPS) missing %q: %v", w, tokens)
		}
	}

	for _, tok := range tokens {
		if got := Resolve(tok, ""); got != Drops {
			t.Errorf("token %q resolves to %q, want %q", tok, got, Drops)
		}
	}
}

func TestRawTokensForAlwaysIncludesCanonicalName(t *testing.T) {
	for _, name := range Canonical() {
		if !contains(RawTokensFor(name), name) {
			t.Errorf("RawTokensFor(%q) does not include the canonical name", name)
		}
	}
}

func TestCanonicalIsSortedAndComplete(t *testing.T) {
	names := Canonical()
	if len(names) != 13 {
		t.Fatalf("expected 13 canonical names, got %d", len(names))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("canonical names not alphabetical: %v", names)
	}
	if IsCanonical("tablets") {
		t.Error("IsCanonical must be exact")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
