package refresh

import (
	"testing"

	"github.com/geotherm/geopress/pkg/pub"
)

func TestNormalizeQuery(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"  Ессентуки  №17 ", `ессентуки no 17`},
		{"Ессентуки No 17", `ессентуки no 17`},
		{"«минерализация»", `"минерализация"`},
		{"“mineral water”", `"mineral water"`},
		{"long – dash — test", "long - dash - test"},
		{"ТЁПЛЫЙ источник", "теплый источник"},
		{"chem* AND (pH OR дебит)", `chem* and ph or дебит`},
		{"a,b;c.d", "a b c d"},
		{"радоновые,воды", "радоновые воды"},
		{"o’brien", "o'brien"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizeQuery(tc.in); got != tc.want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExternalIDQueryVariantsCollapse(t *testing.T) {
	t.Parallel()

	a := &pub.Publication{
		Prov: pub.Provenance{Site: "cyberleninka", Query: "Ессентуки №17"},
	}
	b := &pub.Publication{
		Prov: pub.Provenance{Site: "cyberleninka", Query: "  ессентуки   No 17"},
	}

	if ExternalID("kmv", a) != ExternalID("kmv", b) {
		t.Fatal("cosmetic query variants must share an identity")
	}

	// Punctuation between words separates them like whitespace does.
	c := &pub.Publication{
		Prov: pub.Provenance{Site: "cyberleninka", Query: "радоновые,воды"},
	}
	d := &pub.Publication{
		Prov: pub.Provenance{Site: "cyberleninka", Query: "радоновые воды"},
	}
	if ExternalID("kmv", c) != ExternalID("kmv", d) {
		t.Fatal("comma-separated variant must share the whitespace identity")
	}
}

func TestExternalIDDistinguishesRegionAndSite(t *testing.T) {
	t.Parallel()

	p := &pub.Publication{
		Prov: pub.Provenance{Site: "cyberleninka", Query: "нарзан"},
	}

	if ExternalID("kmv", p) == ExternalID("altai", p) {
		t.Fatal("same query in different regions must differ")
	}

	other := &pub.Publication{
		Prov: pub.Provenance{Site: "elibrary", Query: "нарзан"},
	}
	if ExternalID("kmv", p) == ExternalID("kmv", other) {
		t.Fatal("same query on different sites must differ")
	}
}

func TestExternalIDFallback(t *testing.T) {
	t.Parallel()

	a := &pub.Publication{
		Source:   "rss:geonews",
		URL:      "https://example.org/a",
		Abstract: "thermal spring survey",
	}
	b := &pub.Publication{
		Source:   "rss:geonews",
		URL:      "https://example.org/b",
		Abstract: "thermal spring survey",
	}

	if ExternalID("kmv", a) == ExternalID("kmv", b) {
		t.Fatal("different URLs must yield different identities")
	}
	if ExternalID("kmv", a) != ExternalID("kmv", a) {
		t.Fatal("identity must be stable")
	}
}
