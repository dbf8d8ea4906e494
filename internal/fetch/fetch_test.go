package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// recorderStub collects attempts.
type recorderStub struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (r *recorderStub) Record(_ context.Context, a Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
}

// routeServer serves fixed status/body pairs per path and counts hits per path.
type routeServer struct {
	*httptest.Server
	hits sync.Map // path -> *atomic.Int32
}

type route struct {
	status int
	body   string
}

func newRouteServer(t *testing.T, routes map[string]route) *routeServer {
	t.Helper()
	rs := &routeServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := rs.hits.LoadOrStore(r.URL.Path, new(atomic.Int32))
		c.(*atomic.Int32).Add(1)

		rt, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(rt.status)
		w.Write([]byte(rt.body))
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *routeServer) count(path string) int32 {
	c, ok := rs.hits.Load(path)
	if !ok {
		return 0
	}
	return c.(*atomic.Int32).Load()
}

func (rs *routeServer) total() int32 {
	var n int32
	rs.hits.Range(func(_, v any) bool {
		n += v.(*atomic.Int32).Load()
		return true
	})
	return n
}

func TestFetch_NothingToDo(t *testing.T) {
	t.Parallel()

	srv := newRouteServer(t, nil)
	f := New(srv.Client(), discardLogger(), nil)

	_, err := f.Fetch(context.Background(), Request{URLs: []string{srv.URL + "/x.png"}, Kind: KindBinary})
	require.ErrorIs(t, err, ErrNothingToDo)
	assert.Zero(t, srv.total(), "no network I/O expected")
}

func TestFetch_NoCandidates(t *testing.T) {
	t.Parallel()

	f := New(nil, discardLogger(), nil)
	_, err := f.Fetch(context.Background(), Request{Path: filepath.Join(t.TempDir(), "a.json")})
	require.Error(t, err)
}

func TestFetch_JSONMissPersistsPrettyAndReturnsParsed(t *testing.T) {
	t.Parallel()

	srv := newRouteServer(t, map[string]route{
		"/pokemon/1/": {http.StatusOK, `{"name":"bulbasaur","height":7,"types":[{"slot":1}]}`},
	})
	f := New(srv.Client(), discardLogger(), nil)
	path := filepath.Join(t.TempDir(), "pokemon", "1.json")

	res, err := f.Fetch(context.Background(), Request{URLs: []string{srv.URL + "/pokemon/1/"}, Path: path, Kind: KindJSON})
	require.NoError(t, err)
	assert.Equal(t, "bulbasaur", res.Get("name").String())
	assert.Equal(t, int64(7), res.Get("height").Int())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"name\": \"bulbasaur\"", "stored JSON must be pretty-printed")
	assert.True(t, strings.Index(string(data), "name") < strings.Index(string(data), "height"), "key order must be preserved")
}

func TestFetch_CacheIdempotence(t *testing.T) {
	t.Parallel()

	srv := newRouteServer(t, nil)
	f := New(srv.Client(), discardLogger(), nil)
	path := filepath.Join(t.TempDir(), "pokedex.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"results":[{"name":"bulbasaur"}]}`), 0o644))

	req := Request{URLs: []string{srv.URL + "/pokemon"}, Path: path, Kind: KindJSON}
	first, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Raw, second.Raw)
	assert.Equal(t, "bulbasaur", first.Get("results.0.name").String())
	assert.Zero(t, srv.total(), "cache hit must not touch the network")
}

func TestFetch_CacheHitBinaryReturnsNothing(t *testing.T) {
	t.Parallel()

	srv := newRouteServer(t, nil)
	f := New(srv.Client(), discardLogger(), nil)
	path := filepath.Join(t.TempDir(), "fire.svg")
	require.NoError(t, os.WriteFile(path, []byte("<svg/>"), 0o644))

	res, err := f.Fetch(context.Background(), Request{URLs: []string{srv.URL + "/fire.svg"}, Path: path, Kind: KindBinary})
	require.NoError(t, err)
	assert.False(t, res.Exists())
	assert.Zero(t, srv.total())
}

func TestFetch_CorruptCacheIsDownloadedAgain(t *testing.T) {
	t.Parallel()

	srv := newRouteServer(t, map[string]route{
		"/pokemon/1/": {http.StatusOK, `{"name":"bulbasaur","id":1}`},
	})
	f := New(srv.Client(), discardLogger(), nil)
	path := filepath.Join(t.TempDir(), "pokemon", "1.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"bulb`), 0o644))

	res, err := f.Fetch(context.Background(), Request{URLs: []string{srv.URL + "/pokemon/1/"}, Path: path, Kind: KindJSON})
	require.NoError(t, err)
	assert.Equal(t, "bulbasaur", res.Get("name").String())
	assert.EqualValues(t, 1, srv.count("/pokemon/1/"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, gjson.ValidBytes(data), "cache file must be overwritten with the fresh document")
	assert.Equal(t, "bulbasaur", gjson.GetBytes(data, "name").String())

	// The repaired file is now a regular cache hit.
	_, err = f.Fetch(context.Background(), Request{URLs: []string{srv.URL + "/pokemon/1/"}, Path: path, Kind: KindJSON})
	require.NoError(t, err)
	assert.EqualValues(t, 1, srv.count("/pokemon/1/"))
}

func TestFetch_CorruptCacheAndNoCandidateSucceeds(t *testing.T) {
	t.Parallel()

	srv := newRouteServer(t, nil)
	f := New(srv.Client(), discardLogger(), nil)
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"truncated":`), 0o644))

	_, err := f.Fetch(context.Background(), Request{URLs: []string{srv.URL + "/x"}, Path: path, Kind: KindJSON})
	require.ErrorIs(t, err, ErrExhausted)
	assert.EqualValues(t, 1, srv.count("/x"))
}

func TestFetch_FallbackOrdering(t *testing.T) {
	t.Parallel()

	srv := newRouteServer(t, map[string]route{
		"/a.png": {http.StatusNotFound, "nope"},
		"/b.png": {http.StatusInternalServerError, "boom"},
		"/c.png": {http.StatusOK, "\x89PNG-c"},
		"/d.png": {http.StatusOK, "\x89PNG-d"},
	})
	rec := &recorderStub{}
	f := New(srv.Client(), discardLogger(), rec)
	path := filepath.Join(t.TempDir(), "sprites", "1.png")

	res, err := f.Fetch(context.Background(), Request{
		URLs: []string{srv.URL + "/a.png", srv.URL + "/b.png", srv.URL + "/c.png", srv.URL + "/d.png"},
		Path: path,
		Kind: KindBinary,
	})
	require.NoError(t, err)
	assert.False(t, res.Exists())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG-c", string(data), "binary content must be stored raw")

	assert.EqualValues(t, 1, srv.count("/a.png"))
	assert.EqualValues(t, 1, srv.count("/b.png"))
	assert.EqualValues(t, 1, srv.count("/c.png"))
	assert.Zero(t, srv.count("/d.png"), "no request after the first success")

	require.Len(t, rec.attempts, 3)
	assert.Equal(t, http.StatusNotFound, rec.attempts[0].Status)
	assert.False(t, rec.attempts[0].OK)
	assert.Equal(t, http.StatusInternalServerError, rec.attempts[1].Status)
	assert.True(t, rec.attempts[2].OK)
	assert.EqualValues(t, len("\x89PNG-c"), rec.attempts[2].Bytes)
}

func TestFetch_InvalidJSONFallsThrough(t *testing.T) {
	t.Parallel()

	srv := newRouteServer(t, map[string]route{
		"/html": {http.StatusOK, "<html>maintenance</html>"},
		"/json": {http.StatusOK, `{"ok":true}`},
	})
	f := New(srv.Client(), discardLogger(), nil)

	res, err := f.Fetch(context.Background(), Request{
		URLs: []string{srv.URL + "/html", srv.URL + "/json"},
		Kind: KindJSON,
	})
	require.NoError(t, err)
	assert.True(t, res.Get("ok").Bool())
}

func TestFetch_ExhaustedRequired(t *testing.T) {
	t.Parallel()

	srv := newRouteServer(t, map[string]route{
		"/a": {http.StatusNotFound, ""},
		"/b": {http.StatusBadGateway, ""},
	})
	f := New(srv.Client(), discardLogger(), nil)
	path := filepath.Join(t.TempDir(), "pokemon-species", "1.json")

	_, err := f.Fetch(context.Background(), Request{
		URLs: []string{srv.URL + "/a", srv.URL + "/b"},
		Path: path,
		Kind: KindJSON,
	})
	require.ErrorIs(t, err, ErrExhausted)

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "no file may be written on failure")
}

func TestFetch_ExhaustedTolerated(t *testing.T) {
	t.Parallel()

	srv := newRouteServer(t, nil)
	f := New(srv.Client(), discardLogger(), nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "sprites", "foo-mega.png")

	res, err := f.Fetch(context.Background(), Request{
		URLs:         []string{srv.URL + "/missing-1.png", srv.URL + "/missing-2.png"},
		Path:         path,
		Kind:         KindBinary,
		AllowFailure: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Exists())
	assert.EqualValues(t, 2, srv.total())

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))

	entries, err := os.ReadDir(filepath.Join(dir, "sprites"))
	require.NoError(t, err, "destination directory is still created")
	assert.Empty(t, entries, "no temp files left behind")
}

func TestFetch_TransportErrorFallsThrough(t *testing.T) {
	t.Parallel()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	srv := newRouteServer(t, map[string]route{"/ok": {http.StatusOK, `[1,2,3]`}})
	rec := &recorderStub{}
	f := New(srv.Client(), discardLogger(), rec)

	res, err := f.Fetch(context.Background(), Request{URLs: []string{deadURL + "/x", srv.URL + "/ok"}, Kind: KindJSON})
	require.NoError(t, err)
	assert.Len(t, res.Array(), 3)

	require.Len(t, rec.attempts, 2)
	assert.Zero(t, rec.attempts[0].Status)
	assert.Error(t, rec.attempts[0].Err)
}

func TestFetch_SendsUserAgent(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := New(srv.Client(), discardLogger(), nil)
	_, err := f.Fetch(context.Background(), Request{URLs: []string{srv.URL}, Kind: KindJSON})
	require.NoError(t, err)
	assert.Equal(t, userAgent, gotUA)
}

func TestFetch_CancelledContext(t *testing.T) {
	t.Parallel()

	srv := newRouteServer(t, map[string]route{"/ok": {http.StatusOK, `{}`}})
	f := New(srv.Client(), discardLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, Request{URLs: []string{srv.URL + "/ok"}, Kind: KindJSON, AllowFailure: true})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, srv.total())
}

func TestWriteFileAtomic_Overwrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pokemon.json")
	require.NoError(t, WriteFileAtomic(path, []byte("old")))
	require.NoError(t, WriteFileAtomic(path, []byte("new")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileAtomic_MissingDirectory(t *testing.T) {
	t.Parallel()

	err := WriteFileAtomic(filepath.Join(t.TempDir(), "absent", "x.json"), []byte("{}"))
	require.Error(t, err)
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "json", KindJSON.String())
	assert.Equal(t, "binary", KindBinary.String())
	assert.Equal(t, "kind(7)", Kind(7).String())
}
