package dex

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/dpleshakov/dexgen/internal/fetch"
	"github.com/dpleshakov/dexgen/internal/pokeapi"
)

// lang is the language names, categories and flavor texts are taken in.
const lang = "en"

// Fetcher is the subset of *fetch.Fetcher the dex package needs.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (gjson.Result, error)
}

// Compile-time assertion: *fetch.Fetcher implements Fetcher.
var _ Fetcher = (*fetch.Fetcher)(nil)

// Builder turns a WorkItem into a DexEntry by fetching the form record, the
// taxonomy record and the representative image.
type Builder struct {
	fetcher   Fetcher
	endpoints pokeapi.Endpoints
	layout    Layout
	log       *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(f Fetcher, endpoints pokeapi.Endpoints, layout Layout, logger *slog.Logger) *Builder {
	return &Builder{
		fetcher:   f,
		endpoints: endpoints,
		layout:    layout,
		log:       logger.With("component", "builder"),
	}
}

// Build fetches and normalizes one entry and adds its types to run.
// The form and taxonomy records are required; the image is not, and a
// failed image leaves SpritePath pointing at a file that does not exist.
// Build never recurses into varieties; it only lists them.
func (b *Builder) Build(ctx context.Context, run *Run, item WorkItem) (DexEntry, error) {
	key := item.ID.String()

	entryURL := item.URL
	if entryURL == "" {
		entryURL = b.endpoints.PokemonURL(key)
	}

	formDoc, err := b.fetcher.Fetch(ctx, fetch.Request{
		URLs: []string{entryURL},
		Path: b.layout.Form(key),
		Kind: fetch.KindJSON,
	})
	if err != nil {
		return DexEntry{}, fmt.Errorf("form record %s: %w", key, err)
	}
	form := pokeapi.ParseForm(formDoc)
	if form.SpeciesURL == "" {
		return DexEntry{}, fmt.Errorf("form record %s has no species link", key)
	}

	speciesDoc, err := b.fetcher.Fetch(ctx, fetch.Request{
		URLs: []string{form.SpeciesURL},
		Path: b.layout.Species(key),
		Kind: fetch.KindJSON,
	})
	if err != nil {
		return DexEntry{}, fmt.Errorf("taxonomy record %s: %w", key, err)
	}
	species := pokeapi.ParseSpecies(speciesDoc)

	// Sprite files upstream are keyed by the numeric form id, which for
	// varieties differs from the entry key.
	fallbackID := key
	if form.ID > 0 {
		fallbackID = strconv.FormatInt(form.ID, 10)
	}
	spritePath := b.layout.Sprite(key)
	if _, err := b.fetcher.Fetch(ctx, fetch.Request{
		URLs:         form.SpriteCandidates(b.endpoints.SpriteURL(fallbackID)),
		Path:         spritePath,
		Kind:         fetch.KindBinary,
		AllowFailure: true,
	}); err != nil {
		return DexEntry{}, fmt.Errorf("sprite %s: %w", key, err)
	}

	name, ok := species.LocalizedName(lang)
	if !ok {
		name = form.Name
	}
	category, _ := species.Genus(lang)

	versionOrder, texts := flavorTexts(species.FlavorTextsIn(lang), func(version string) {
		if run.firstUnknownVersion(version) {
			b.log.WarnContext(ctx, "skipping flavor text of unknown version",
				slog.String("version", version), slog.String("entry", key))
		}
	})

	entry := DexEntry{
		ID:            item.ID,
		DexID:         item.DexID,
		IsDefaultForm: form.IsDefault,
		Name:          name,
		SpritePath:    filepath.ToSlash(spritePath),
		Types:         append([]string{}, form.Types...),
		Stats:         make([]Stat, 0, len(form.Stats)),
		Height:        float64(form.Height) / 10,
		Weight:        float64(form.Weight) / 10,
		Category:      category,
		VersionOrder:  versionOrder,
		FlavorTexts:   texts,
		Varieties:     make([]VarietyRef, 0, len(species.Varieties)),
	}
	for _, s := range form.Stats {
		entry.Stats = append(entry.Stats, Stat{Name: s.Name, Base: s.Base})
	}
	for _, v := range species.Varieties {
		id := VarietyID(v.Name)
		if v.IsDefault {
			id = SpeciesID(item.DexID)
		}
		entry.Varieties = append(entry.Varieties, VarietyRef{
			ID:        id,
			Name:      v.Name,
			IsDefault: v.IsDefault,
			URL:       v.URL,
		})
	}

	run.AddTypes(entry.Types...)

	b.log.DebugContext(ctx, "built entry",
		slog.String("entry", key),
		slog.String("name", entry.Name),
		slog.Int("varieties", len(entry.Varieties)),
	)
	return entry, nil
}
