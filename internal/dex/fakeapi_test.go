package dex

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dpleshakov/dexgen/internal/fetch"
	"github.com/dpleshakov/dexgen/internal/pokeapi"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeRoute struct {
	status int
	body   []byte
}

// fakeAPI serves canned PokéAPI records, sprites and icons by path and
// counts requests per path. Unknown paths are 404.
type fakeAPI struct {
	srv    *httptest.Server
	mu     sync.Mutex
	routes map[string]fakeRoute
	hits   map[string]int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{routes: map[string]fakeRoute{}, hits: map[string]int{}}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		rt, ok := f.routes[r.URL.Path]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(rt.status)
		w.Write(rt.body)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) set(path string, status int, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = fakeRoute{status: status, body: body}
}

func (f *fakeAPI) setJSON(path string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.set(path, http.StatusOK, data)
}

func (f *fakeAPI) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// snapshot copies the hit counters.
func (f *fakeAPI) snapshot() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.hits))
	for k, v := range f.hits {
		out[k] = v
	}
	return out
}

func (f *fakeAPI) endpoints() pokeapi.Endpoints {
	return pokeapi.Endpoints{
		APIBaseURL:      f.srv.URL + "/api/v2",
		SpriteBaseURL:   f.srv.URL + "/sprites",
		TypeIconBaseURL: f.srv.URL + "/icons",
	}
}

func (f *fakeAPI) fetcher() *fetch.Fetcher {
	return fetch.New(f.srv.Client(), discardLogger(), nil)
}

// formSpec describes a form record to serve.
type formSpec struct {
	id        int
	name      string
	isDefault bool
	speciesID int
	types     []string
	height    int
	weight    int
	artwork   bool // serve an official artwork image
}

// addForm serves the form record at /api/v2/pokemon/<id>/ and, when
// requested, its artwork at /art/<id>.png.
func (f *fakeAPI) addForm(fs formSpec) {
	types := make([]map[string]any, 0, len(fs.types))
	for i, t := range fs.types {
		types = append(types, map[string]any{"slot": i + 1, "type": map[string]any{"name": t}})
	}

	artwork := map[string]any{"front_default": nil}
	if fs.artwork {
		artPath := fmt.Sprintf("/art/%d.png", fs.id)
		artwork["front_default"] = f.srv.URL + artPath
		f.set(artPath, http.StatusOK, []byte(fmt.Sprintf("PNG-%d", fs.id)))
	}

	f.setJSON(fmt.Sprintf("/api/v2/pokemon/%d/", fs.id), map[string]any{
		"id":         fs.id,
		"name":       fs.name,
		"is_default": fs.isDefault,
		"height":     fs.height,
		"weight":     fs.weight,
		"species": map[string]any{
			"name": fs.name,
			"url":  fmt.Sprintf("%s/api/v2/pokemon-species/%d/", f.srv.URL, fs.speciesID),
		},
		"types": types,
		"stats": []map[string]any{
			{"base_stat": 45, "stat": map[string]any{"name": "hp"}},
			{"base_stat": 49, "stat": map[string]any{"name": "attack"}},
		},
		"sprites": map[string]any{
			"front_default": nil,
			"other":         map[string]any{"official-artwork": artwork},
		},
	})
}

type flavorSpec struct {
	lang, version, text string
}

type varietySpec struct {
	name      string
	formID    int
	isDefault bool
}

type speciesSpec struct {
	id        int
	name      string
	enName    string // "" = no English name
	genus     string // "" = no English genus
	flavors   []flavorSpec
	varieties []varietySpec
}

func (f *fakeAPI) addSpecies(ss speciesSpec) {
	names := []map[string]any{{"language": map[string]any{"name": "ja"}, "name": "ja-" + ss.name}}
	if ss.enName != "" {
		names = append(names, map[string]any{"language": map[string]any{"name": "en"}, "name": ss.enName})
	}
	genera := []map[string]any{}
	if ss.genus != "" {
		genera = append(genera, map[string]any{"language": map[string]any{"name": "en"}, "genus": ss.genus})
	}
	flavors := []map[string]any{}
	for _, fl := range ss.flavors {
		flavors = append(flavors, map[string]any{
			"flavor_text": fl.text,
			"language":    map[string]any{"name": fl.lang},
			"version":     map[string]any{"name": fl.version},
		})
	}
	varieties := []map[string]any{}
	for _, v := range ss.varieties {
		varieties = append(varieties, map[string]any{
			"is_default": v.isDefault,
			"pokemon": map[string]any{
				"name": v.name,
				"url":  fmt.Sprintf("%s/api/v2/pokemon/%d/", f.srv.URL, v.formID),
			},
		})
	}

	f.setJSON(fmt.Sprintf("/api/v2/pokemon-species/%d/", ss.id), map[string]any{
		"name":                ss.name,
		"names":               names,
		"genera":              genera,
		"flavor_text_entries": flavors,
		"varieties":           varieties,
	})
}

// addIndex serves the species index with the given names.
func (f *fakeAPI) addIndex(names ...string) {
	results := make([]map[string]any, 0, len(names))
	for i, n := range names {
		results = append(results, map[string]any{
			"name": n,
			"url":  fmt.Sprintf("%s/api/v2/pokemon/%d/", f.srv.URL, i+1),
		})
	}
	f.setJSON("/api/v2/pokemon", map[string]any{"count": len(names), "results": results})
}
