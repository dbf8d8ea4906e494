package dex

import (
	"strings"

	"github.com/dpleshakov/dexgen/internal/pokeapi"
)

// CleanFlavorText turns form feeds into spaces, collapses whitespace runs
// into a single space and trims the result.
func CleanFlavorText(s string) string {
	s = strings.ReplaceAll(s, "\f", " ")
	return strings.Join(strings.Fields(s), " ")
}

// flavorTexts keeps the first entry per known version, cleaned, and returns
// the versions present in chronological order. Entries whose version is not
// in Versions are handed to unknown and left out.
func flavorTexts(entries []pokeapi.FlavorText, unknown func(version string)) ([]string, map[string]string) {
	texts := map[string]string{}
	for _, ft := range entries {
		if VersionPosition(ft.Version) < 0 {
			unknown(ft.Version)
			continue
		}
		if _, dup := texts[ft.Version]; dup {
			continue
		}
		texts[ft.Version] = CleanFlavorText(ft.Text)
	}

	order := make([]string, 0, len(texts))
	for _, v := range Versions {
		if _, ok := texts[v]; ok {
			order = append(order, v)
		}
	}
	return order, texts
}
