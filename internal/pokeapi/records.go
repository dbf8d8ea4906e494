package pokeapi

import (
	"github.com/tidwall/gjson"
)

// IndexEntry is one row of the paginated species index.
type IndexEntry struct {
	Name string
	URL  string
}

// ParseIndex reads the "results" array of GET /pokemon?limit=N.
func ParseIndex(doc gjson.Result) []IndexEntry {
	var out []IndexEntry
	doc.Get("results").ForEach(func(_, v gjson.Result) bool {
		out = append(out, IndexEntry{
			Name: v.Get("name").String(),
			URL:  v.Get("url").String(),
		})
		return true
	})
	return out
}

// Stat is a base stat of a form.
type Stat struct {
	Name string
	Base int
}

// Sprites holds the image URLs of a form. Empty strings mean absent.
type Sprites struct {
	ArtworkDefault     string
	ArtworkFemale      string
	ArtworkShiny       string
	ArtworkShinyFemale string
	FrontDefault       string
	FrontFemale        string
	FrontShiny         string
	FrontShinyFemale   string
}

// Form is the per-variety record from GET /pokemon/{id}.
type Form struct {
	ID         int64 // 0 when absent
	Name       string
	IsDefault  bool
	Types      []string // slot order
	Stats      []Stat
	Height     int64 // decimetres
	Weight     int64 // hectograms
	SpeciesURL string
	Sprites    Sprites
}

// ParseForm reads a form record.
func ParseForm(doc gjson.Result) Form {
	f := Form{
		ID:         doc.Get("id").Int(),
		Name:       doc.Get("name").String(),
		IsDefault:  doc.Get("is_default").Bool(),
		Height:     doc.Get("height").Int(),
		Weight:     doc.Get("weight").Int(),
		SpeciesURL: doc.Get("species.url").String(),
		Sprites: Sprites{
			ArtworkDefault:     doc.Get(`sprites.other.official-artwork.front_default`).String(),
			ArtworkFemale:      doc.Get(`sprites.other.official-artwork.front_female`).String(),
			ArtworkShiny:       doc.Get(`sprites.other.official-artwork.front_shiny`).String(),
			ArtworkShinyFemale: doc.Get(`sprites.other.official-artwork.front_shiny_female`).String(),
			FrontDefault:       doc.Get("sprites.front_default").String(),
			FrontFemale:        doc.Get("sprites.front_female").String(),
			FrontShiny:         doc.Get("sprites.front_shiny").String(),
			FrontShinyFemale:   doc.Get("sprites.front_shiny_female").String(),
		},
	}

	doc.Get("types").ForEach(func(_, v gjson.Result) bool {
		if name := v.Get("type.name").String(); name != "" {
			f.Types = append(f.Types, name)
		}
		return true
	})
	doc.Get("stats").ForEach(func(_, v gjson.Result) bool {
		f.Stats = append(f.Stats, Stat{
			Name: v.Get("stat.name").String(),
			Base: int(v.Get("base_stat").Int()),
		})
		return true
	})
	return f
}

// SpriteCandidates returns the image URLs in priority order: official
// artwork (default, female, shiny, shiny-female), then standard sprites in
// the same order, then fallback. Absent sources are dropped.
func (f Form) SpriteCandidates(fallback string) []string {
	all := []string{
		f.Sprites.ArtworkDefault,
		f.Sprites.ArtworkFemale,
		f.Sprites.ArtworkShiny,
		f.Sprites.ArtworkShinyFemale,
		f.Sprites.FrontDefault,
		f.Sprites.FrontFemale,
		f.Sprites.FrontShiny,
		f.Sprites.FrontShinyFemale,
		fallback,
	}
	out := make([]string, 0, len(all))
	for _, u := range all {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// FlavorText is one localized description tagged with a release version.
type FlavorText struct {
	Text     string
	Language string
	Version  string
}

// Variety is a sibling form listed on a species record.
type Variety struct {
	Name      string
	URL       string
	IsDefault bool
}

// Species is the taxonomy record from GET /pokemon-species/{id}.
type Species struct {
	Name        string
	names       map[string]string // language -> name, first entry wins
	genera      map[string]string // language -> genus, first entry wins
	FlavorTexts []FlavorText      // API order
	Varieties   []Variety
}

// ParseSpecies reads a taxonomy record.
func ParseSpecies(doc gjson.Result) Species {
	s := Species{
		Name:   doc.Get("name").String(),
		names:  map[string]string{},
		genera: map[string]string{},
	}

	doc.Get("names").ForEach(func(_, v gjson.Result) bool {
		addFirst(s.names, v.Get("language.name").String(), v.Get("name").String())
		return true
	})
	doc.Get("genera").ForEach(func(_, v gjson.Result) bool {
		addFirst(s.genera, v.Get("language.name").String(), v.Get("genus").String())
		return true
	})
	doc.Get("flavor_text_entries").ForEach(func(_, v gjson.Result) bool {
		s.FlavorTexts = append(s.FlavorTexts, FlavorText{
			Text:     v.Get("flavor_text").String(),
			Language: v.Get("language.name").String(),
			Version:  v.Get("version.name").String(),
		})
		return true
	})
	doc.Get("varieties").ForEach(func(_, v gjson.Result) bool {
		s.Varieties = append(s.Varieties, Variety{
			Name:      v.Get("pokemon.name").String(),
			URL:       v.Get("pokemon.url").String(),
			IsDefault: v.Get("is_default").Bool(),
		})
		return true
	})
	return s
}

// LocalizedName returns the name in lang and whether one exists.
func (s Species) LocalizedName(lang string) (string, bool) {
	n, ok := s.names[lang]
	return n, ok
}

// Genus returns the category text in lang and whether one exists.
func (s Species) Genus(lang string) (string, bool) {
	g, ok := s.genera[lang]
	return g, ok
}

// FlavorTextsIn returns the flavor texts in lang, keeping API order.
func (s Species) FlavorTextsIn(lang string) []FlavorText {
	var out []FlavorText
	for _, ft := range s.FlavorTexts {
		if ft.Language == lang {
			out = append(out, ft)
		}
	}
	return out
}

func addFirst(m map[string]string, key, value string) {
	if key == "" {
		return
	}
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}
