// Package pokeapi knows the PokéAPI URL layout and turns its raw records
// into typed values. Field access is best-effort: a missing field yields a
// zero value, never an error.
package pokeapi

import (
	"fmt"
	"strings"
)

// Endpoints holds the base URLs of the data API and the image sources.
type Endpoints struct {
	APIBaseURL      string // e.g. https://pokeapi.co/api/v2
	SpriteBaseURL   string // directory of <id>.png sprites
	TypeIconBaseURL string // directory of <type>.svg icons
}

// IndexURL lists the first limit species.
func (e Endpoints) IndexURL(limit int) string {
	return fmt.Sprintf("%s/pokemon?limit=%d", trim(e.APIBaseURL), limit)
}

// PokemonURL is the form record of the default variety of a species, or of
// any form by name.
func (e Endpoints) PokemonURL(id string) string {
	return fmt.Sprintf("%s/pokemon/%s/", trim(e.APIBaseURL), id)
}

// SpriteURL is the last-resort image for a form.
func (e Endpoints) SpriteURL(id string) string {
	return fmt.Sprintf("%s/%s.png", trim(e.SpriteBaseURL), id)
}

// TypeIconURL is the vector icon of an element type.
func (e Endpoints) TypeIconURL(slug string) string {
	return fmt.Sprintf("%s/%s.svg", trim(e.TypeIconBaseURL), slug)
}

func trim(base string) string {
	return strings.TrimRight(base, "/")
}
