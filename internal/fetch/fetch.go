// Package fetch downloads remote resources through a disk cache keyed by path.
//
// A Request names an ordered list of candidate URLs, an optional cache path
// and the kind of content expected. When the cache path already holds usable
// content no network I/O happens. Otherwise candidates are tried in order
// until one succeeds; the winning body is persisted atomically and, for JSON
// content, returned parsed. Responses are never partially written.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Kind declares how a response body is treated.
type Kind int

const (
	// KindJSON bodies must parse as JSON; they are stored pretty-printed and returned.
	KindJSON Kind = iota
	// KindBinary bodies are stored byte-for-byte and never returned.
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindBinary:
		return "binary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrNothingToDo is returned for a request whose result would be discarded:
	// binary content with no cache path.
	ErrNothingToDo = errors.New("fetch: request has no cache path and no JSON result")

	// ErrExhausted is returned when every candidate URL of a required request failed.
	ErrExhausted = errors.New("fetch: all candidate URLs failed")

	errBadStatus = errors.New("unexpected status")
	errBadJSON   = errors.New("response is not valid JSON")
)

const (
	userAgent = "dexgen/1.0 (+https://github.com/dpleshakov/dexgen)"

	// bodyExcerptLimit caps how much of a failed response body is logged.
	bodyExcerptLimit = 256
)

// prettyOptions mirrors a two-space indented re-serialization with keys kept
// in source order.
var prettyOptions = &pretty.Options{Indent: "  ", SortKeys: false}

// Request describes one cached resource.
type Request struct {
	URLs         []string // candidates, tried in order
	Path         string   // cache destination; may be empty for JSON requests
	Kind         Kind
	AllowFailure bool // exhausting all candidates yields an empty result instead of ErrExhausted
}

// Attempt describes one network request made while serving a Request.
type Attempt struct {
	URL    string
	Path   string
	Status int // 0 when no response was received
	Bytes  int64
	OK     bool
	Err    error
	At     time.Time
}

// Recorder observes network attempts. Implementations must be safe for
// concurrent use and must not fail the fetch.
type Recorder interface {
	Record(ctx context.Context, a Attempt)
}

// Fetcher serves Requests. It is safe for concurrent use as long as
// concurrent requests target different paths.
type Fetcher struct {
	httpClient *http.Client
	log        *slog.Logger
	recorder   Recorder         // optional
	now        func() time.Time // injectable for testing
}

// New creates a Fetcher. rec may be nil.
func New(httpClient *http.Client, logger *slog.Logger, rec Recorder) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{
		httpClient: httpClient,
		log:        logger.With("component", "fetch"),
		recorder:   rec,
		now:        time.Now,
	}
}

// Fetch serves req. For KindJSON it returns the parsed document; for
// KindBinary, cache hits and tolerated failures it returns the zero Result.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (gjson.Result, error) {
	if req.Path == "" && req.Kind != KindJSON {
		return gjson.Result{}, ErrNothingToDo
	}
	if len(req.URLs) == 0 {
		return gjson.Result{}, fmt.Errorf("fetch: no candidate URLs for %q", req.Path)
	}

	if req.Path != "" {
		if res, hit := f.fromCache(ctx, req); hit {
			return res, nil
		}
		if err := os.MkdirAll(filepath.Dir(req.Path), 0o755); err != nil {
			// Not fatal here; the write below reports the real failure.
			f.log.WarnContext(ctx, "creating cache directory", slog.String("path", req.Path), slog.String("error", err.Error()))
		}
	}

	for _, u := range req.URLs {
		if err := ctx.Err(); err != nil {
			return gjson.Result{}, err
		}

		f.log.InfoContext(ctx, "downloading missing data",
			slog.String("path", req.Path), slog.String("url", u))

		body, err := f.download(ctx, u, req)
		if err != nil {
			continue
		}

		if req.Path != "" {
			if err := f.persist(req, body); err != nil {
				if req.AllowFailure {
					f.log.WarnContext(ctx, "writing cache file", slog.String("path", req.Path), slog.String("error", err.Error()))
					return gjson.Result{}, nil
				}
				return gjson.Result{}, fmt.Errorf("fetch: writing %s: %w", req.Path, err)
			}
		}

		if req.Kind == KindJSON {
			return gjson.ParseBytes(body), nil
		}
		return gjson.Result{}, nil
	}

	if req.AllowFailure {
		f.log.WarnContext(ctx, "no candidate succeeded, continuing without it",
			slog.String("path", req.Path), slog.Int("candidates", len(req.URLs)))
		return gjson.Result{}, nil
	}
	return gjson.Result{}, fmt.Errorf("%w: %s (%d candidates, first %s)",
		ErrExhausted, req.describe(), len(req.URLs), req.URLs[0])
}

// fromCache reports hit=true when req.Path exists and, for JSON requests,
// holds a valid document. An unreadable or corrupt JSON cache file counts as
// a miss and is overwritten by the next successful download.
func (f *Fetcher) fromCache(ctx context.Context, req Request) (gjson.Result, bool) {
	if _, err := os.Stat(req.Path); err != nil {
		return gjson.Result{}, false
	}
	if req.Kind != KindJSON {
		return gjson.Result{}, true
	}

	data, err := os.ReadFile(req.Path)
	if err != nil {
		f.log.WarnContext(ctx, "cache file unreadable, downloading again",
			slog.String("path", req.Path), slog.String("error", err.Error()))
		return gjson.Result{}, false
	}
	if !gjson.ValidBytes(data) {
		f.log.WarnContext(ctx, "cache file is not valid JSON, downloading again",
			slog.String("path", req.Path), slog.String("size", humanize.Bytes(uint64(len(data)))))
		return gjson.Result{}, false
	}
	f.log.DebugContext(ctx, "reusing cached data", slog.String("path", req.Path))
	return gjson.ParseBytes(data), true
}

// download performs one GET. Any failure is logged and recorded; the caller
// only needs to know whether to move on to the next candidate.
func (f *Fetcher) download(ctx context.Context, rawURL string, req Request) ([]byte, error) {
	attempt := Attempt{URL: rawURL, Path: req.Path, At: f.now()}
	defer func() { f.record(ctx, attempt) }()

	fail := func(err error, attrs ...any) ([]byte, error) {
		attempt.Err = err
		attrs = append(attrs, slog.String("url", rawURL), slog.String("error", err.Error()))
		f.log.WarnContext(ctx, "download failed", attrs...)
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fail(fmt.Errorf("creating request: %w", err))
	}
	httpReq.Header.Set("User-Agent", userAgent)
	if req.Kind == KindJSON {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	attempt.Status = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	attempt.Bytes = int64(len(body))
	if err != nil {
		return fail(fmt.Errorf("reading body: %w", err), slog.Int("status", resp.StatusCode))
	}

	f.log.DebugContext(ctx, "response",
		slog.String("url", rawURL),
		slog.Int("status", resp.StatusCode),
		slog.String("size", humanize.Bytes(uint64(len(body)))),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(fmt.Errorf("%w %d", errBadStatus, resp.StatusCode),
			slog.Int("status", resp.StatusCode), slog.String("body", excerpt(body)))
	}
	if req.Kind == KindJSON && !gjson.ValidBytes(body) {
		return fail(errBadJSON, slog.Int("status", resp.StatusCode))
	}

	attempt.OK = true
	return body, nil
}

func (f *Fetcher) persist(req Request, body []byte) error {
	if req.Kind == KindJSON {
		body = pretty.PrettyOptions(body, prettyOptions)
	}
	return WriteFileAtomic(req.Path, body)
}

func (f *Fetcher) record(ctx context.Context, a Attempt) {
	if f.recorder == nil {
		return
	}
	f.recorder.Record(ctx, a)
}

func (r Request) describe() string {
	if r.Path != "" {
		return r.Path
	}
	return r.Kind.String() + " request"
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > bodyExcerptLimit {
		return s[:bodyExcerptLimit] + "…"
	}
	return s
}
