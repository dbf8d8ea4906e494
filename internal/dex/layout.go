package dex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Layout maps resources to their cache files under Dir.
type Layout struct {
	Dir string
}

// Index is the cached species index.
func (l Layout) Index() string {
	return filepath.Join(l.Dir, "pokedex.json")
}

// Form is the cached form record of key.
func (l Layout) Form(key string) string {
	return filepath.Join(l.Dir, "pokemon", key+".json")
}

// Species is the cached taxonomy record of key.
func (l Layout) Species(key string) string {
	return filepath.Join(l.Dir, "pokemon-species", key+".json")
}

// Sprite is the representative image of key.
func (l Layout) Sprite(key string) string {
	return filepath.Join(l.Dir, "sprites", key+".png")
}

// TypeIcon is the icon of an element type.
func (l Layout) TypeIcon(slug string) string {
	return filepath.Join(l.Dir, "sprites", slug+".svg")
}

// Output is the aggregate document.
func (l Layout) Output() string {
	return filepath.Join(l.Dir, "pokemon.json")
}

// safeKey reports whether a remote-supplied name can be used as a file name.
func safeKey(s string) bool {
	return s != "" && !strings.ContainsAny(s, `/\`) && !strings.Contains(s, "..")
}

// Clean removes every cached resource and the output under Dir, leaving
// anything else in the directory alone. Missing paths are not an error.
func (l Layout) Clean() error {
	for _, p := range []string{
		l.Index(),
		filepath.Join(l.Dir, "pokemon"),
		filepath.Join(l.Dir, "pokemon-species"),
		filepath.Join(l.Dir, "sprites"),
		l.Output(),
		l.Output() + ".gz",
	} {
		// RemoveAll returns nil for non-existent paths.
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}
