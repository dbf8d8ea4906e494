package dex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"github.com/dpleshakov/dexgen/internal/fetch"
	"github.com/dpleshakov/dexgen/internal/pokeapi"
)

// Options tune an Assembler.
type Options struct {
	Limit           int  // species to request from the index
	IconConcurrency int  // 0 = one goroutine per icon
	Gzip            bool // also write pokemon.json.gz
}

// Assembler drives a full run: species index, entries, type icons, output.
type Assembler struct {
	fetcher   Fetcher
	builder   *Builder
	endpoints pokeapi.Endpoints
	layout    Layout
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

// NewAssembler creates an Assembler.
func NewAssembler(f Fetcher, endpoints pokeapi.Endpoints, layout Layout, opts Options, logger *slog.Logger) *Assembler {
	return &Assembler{
		fetcher:   f,
		builder:   NewBuilder(f, endpoints, layout, logger),
		endpoints: endpoints,
		layout:    layout,
		opts:      opts,
		log:       logger.With("component", "assembler"),
		now:       time.Now,
	}
}

// Run builds every entry, downloads the type icons and writes the
// aggregate document. Nothing is written if any required fetch fails.
func (a *Assembler) Run(ctx context.Context) (*Document, Stats, error) {
	start := a.now()
	run := NewRun()

	indexDoc, err := a.fetcher.Fetch(ctx, fetch.Request{
		URLs: []string{a.endpoints.IndexURL(a.opts.Limit)},
		Path: a.layout.Index(),
		Kind: fetch.KindJSON,
	})
	if err != nil {
		return nil, Stats{}, fmt.Errorf("species index: %w", err)
	}
	index := pokeapi.ParseIndex(indexDoc)
	if len(index) > a.opts.Limit {
		index = index[:a.opts.Limit]
	}
	if len(index) == 0 {
		a.log.WarnContext(ctx, "species index is empty", slog.String("path", a.layout.Index()))
	}

	doc, err := a.buildAll(ctx, run, len(index))
	if err != nil {
		return nil, Stats{}, err
	}

	if err := a.downloadIcons(ctx, run); err != nil {
		return nil, Stats{}, err
	}

	if err := a.write(ctx, doc); err != nil {
		return nil, Stats{}, err
	}

	run.stats.Types = len(run.types)
	run.stats.Duration = a.now().Sub(start)
	return doc, run.stats, nil
}

// buildAll consumes the worklist sequentially. Each species is followed by
// its non-default varieties, so insertion order is ascending by species.
func (a *Assembler) buildAll(ctx context.Context, run *Run, n int) (*Document, error) {
	doc := newDocument()
	wl := newSpeciesWorklist(n)

	for {
		item, ok := wl.pop()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if doc.Entries.Has(item.ID) {
			a.log.WarnContext(ctx, "duplicate entry key, skipping", slog.String("entry", item.ID.String()))
			run.stats.SkippedVarieties++
			continue
		}

		entry, err := a.builder.Build(ctx, run, item)
		if err != nil {
			return nil, fmt.Errorf("building entry %s: %w", item.ID, err)
		}
		doc.Entries.add(entry)

		if item.ID.IsSpecies() {
			run.stats.Species++
			wl.pushFront(a.varietyItems(ctx, run, entry)...)
			if run.stats.Species%100 == 0 {
				a.log.InfoContext(ctx, "progress",
					slog.Int("species", run.stats.Species), slog.Int("of", n), slog.Int("queued", wl.len()))
			}
		} else {
			run.stats.Varieties++
		}
	}

	doc.buildDexList()
	return doc, nil
}

// varietyItems lists the non-default varieties of a species entry as work.
func (a *Assembler) varietyItems(ctx context.Context, run *Run, entry DexEntry) []WorkItem {
	var items []WorkItem
	for _, v := range entry.Varieties {
		if v.IsDefault {
			continue
		}
		if !safeKey(v.Name) {
			a.log.WarnContext(ctx, "skipping variety with unusable name",
				slog.String("variety", v.Name), slog.Int("species", entry.DexID))
			run.stats.SkippedVarieties++
			continue
		}
		items = append(items, WorkItem{ID: VarietyID(v.Name), URL: v.URL, DexID: entry.DexID})
	}
	return items
}

// downloadIcons fetches every type icon concurrently. Individual failures
// are tolerated; only cancellation aborts the run.
func (a *Assembler) downloadIcons(ctx context.Context, run *Run) error {
	g, gctx := errgroup.WithContext(ctx)
	if a.opts.IconConcurrency > 0 {
		g.SetLimit(a.opts.IconConcurrency)
	}

	for _, slug := range run.Types() {
		if !safeKey(slug) {
			a.log.WarnContext(ctx, "skipping type with unusable name", slog.String("type", slug))
			continue
		}
		g.Go(func() error {
			_, err := a.fetcher.Fetch(gctx, fetch.Request{
				URLs:         []string{a.endpoints.TypeIconURL(slug)},
				Path:         a.layout.TypeIcon(slug),
				Kind:         fetch.KindBinary,
				AllowFailure: true,
			})
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if err != nil {
				a.log.WarnContext(gctx, "type icon", slog.String("type", slug), slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("type icons: %w", err)
	}
	return nil
}

// write persists the document, and its gzip copy when enabled.
func (a *Assembler) write(ctx context.Context, doc *Document) error {
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	out := a.layout.Output()
	if err := os.MkdirAll(a.layout.Dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", a.layout.Dir, err)
	}
	if err := fetch.WriteFileAtomic(out, data); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	a.log.InfoContext(ctx, "wrote document",
		slog.String("path", out),
		slog.Int("entries", doc.Entries.Len()),
		slog.String("size", humanize.Bytes(uint64(len(data)))),
	)

	if !a.opts.Gzip {
		return nil
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("compressing document: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compressing document: %w", err)
	}
	if err := fetch.WriteFileAtomic(out+".gz", buf.Bytes()); err != nil {
		return fmt.Errorf("writing %s.gz: %w", out, err)
	}
	a.log.InfoContext(ctx, "wrote compressed document",
		slog.String("path", out+".gz"),
		slog.String("size", humanize.Bytes(uint64(buf.Len()))),
	)
	return nil
}
