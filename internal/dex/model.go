package dex

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"
)

// EntryID keys an entry: a national dex number for default forms, a
// variety name for every other form.
type EntryID struct {
	num  int
	name string
}

// SpeciesID is the key of the default form of species n.
func SpeciesID(n int) EntryID { return EntryID{num: n} }

// VarietyID is the key of a non-default form.
func VarietyID(name string) EntryID { return EntryID{name: name} }

// IsSpecies reports whether id is a numeric species key.
func (id EntryID) IsSpecies() bool { return id.name == "" }

// Number is the dex number of a species key, 0 for variety keys.
func (id EntryID) Number() int { return id.num }

// String is the key as used in cache file names and the entries object.
func (id EntryID) String() string {
	if id.IsSpecies() {
		return strconv.Itoa(id.num)
	}
	return id.name
}

// MarshalJSON encodes species keys as numbers and variety keys as strings.
func (id EntryID) MarshalJSON() ([]byte, error) {
	if id.IsSpecies() {
		return []byte(strconv.Itoa(id.num)), nil
	}
	return marshalNoEscape(id.name)
}

// Stat is a base stat.
type Stat struct {
	Name string `json:"name"`
	Base int    `json:"base"`
}

// VarietyRef describes a sibling form of an entry.
type VarietyRef struct {
	ID        EntryID `json:"id"`
	Name      string  `json:"name"`
	IsDefault bool    `json:"is_default"`
	URL       string  `json:"url"`
}

// DexEntry is the normalized record of one species or variety form.
type DexEntry struct {
	ID            EntryID           `json:"id"`
	DexID         int               `json:"dex_id"`
	IsDefaultForm bool              `json:"is_default_form"`
	Name          string            `json:"name"`
	SpritePath    string            `json:"sprite"`
	Types         []string          `json:"types"`
	Stats         []Stat            `json:"stats"`
	Height        float64           `json:"height"`
	Weight        float64           `json:"weight"`
	Category      string            `json:"category"`
	VersionOrder  []string          `json:"version_order"`
	FlavorTexts   map[string]string `json:"flavor_texts"`
	Varieties     []VarietyRef      `json:"varieties"`
}

// DexListItem is the summary of a default-form entry.
type DexListItem struct {
	ID         EntryID  `json:"id"`
	Name       string   `json:"name"`
	SpritePath string   `json:"sprite"`
	Types      []string `json:"types"`
}

// Entries is an insertion-ordered set of entries. It encodes species keys
// in ascending order first, then variety keys in insertion order.
type Entries struct {
	keys  []EntryID
	items map[EntryID]DexEntry
}

func newEntries() Entries {
	return Entries{items: map[EntryID]DexEntry{}}
}

// Len returns the number of entries.
func (e Entries) Len() int { return len(e.keys) }

// Get returns the entry under id.
func (e Entries) Get(id EntryID) (DexEntry, bool) {
	entry, ok := e.items[id]
	return entry, ok
}

// Has reports whether id is present.
func (e Entries) Has(id EntryID) bool {
	_, ok := e.items[id]
	return ok
}

// Keys returns the keys in encoding order.
func (e Entries) Keys() []EntryID {
	keys := slices.Clone(e.keys)
	slices.SortStableFunc(keys, func(a, b EntryID) int {
		switch {
		case a.IsSpecies() && b.IsSpecies():
			return a.Number() - b.Number()
		case a.IsSpecies():
			return -1
		case b.IsSpecies():
			return 1
		default:
			return 0
		}
	})
	return keys
}

func (e *Entries) add(entry DexEntry) {
	if e.items == nil {
		e.items = map[EntryID]DexEntry{}
	}
	if _, ok := e.items[entry.ID]; !ok {
		e.keys = append(e.keys, entry.ID)
	}
	e.items[entry.ID] = entry
}

// MarshalJSON encodes the entries as one object keyed by EntryID.String().
func (e Entries) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range e.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalNoEscape(id.String())
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		entry, _ := e.Get(id)
		v, err := marshalNoEscape(entry)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Document is the aggregate written at the end of a run.
type Document struct {
	Entries Entries       `json:"entries"`
	DexList []DexListItem `json:"dexList"`
}

func newDocument() *Document {
	return &Document{Entries: newEntries(), DexList: []DexListItem{}}
}

// buildDexList projects the species-keyed entries, ascending.
func (d *Document) buildDexList() {
	d.DexList = []DexListItem{}
	for _, id := range d.Entries.Keys() {
		if !id.IsSpecies() {
			continue
		}
		e, _ := d.Entries.Get(id)
		d.DexList = append(d.DexList, DexListItem{
			ID:         e.ID,
			Name:       e.Name,
			SpritePath: e.SpritePath,
			Types:      e.Types,
		})
	}
}

// Encode renders the document as two-space indented JSON.
func (d *Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
