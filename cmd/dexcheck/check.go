package main

import (
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/dpleshakov/dexgen/internal/dex"
)

// check returns every invariant violation found in an aggregate document.
// An empty result means the document is consistent.
func check(data []byte) []string {
	if !gjson.ValidBytes(data) {
		return []string{"document is not valid JSON"}
	}
	doc := gjson.ParseBytes(data)

	entries := doc.Get("entries")
	if !entries.IsObject() {
		return []string{`"entries" is missing or not an object`}
	}
	dexList := doc.Get("dexList")
	if !dexList.IsArray() {
		return []string{`"dexList" is missing or not an array`}
	}

	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	species := map[int64]bool{}
	entries.ForEach(func(k, v gjson.Result) bool {
		if n, err := strconv.ParseInt(k.String(), 10, 64); err == nil {
			species[n] = true
		}
		return true
	})

	entries.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		id := v.Get("id")
		dexID := v.Get("dex_id")

		if n, err := strconv.ParseInt(key, 10, 64); err == nil {
			if id.Type != gjson.Number || id.Int() != n {
				report("entry %s: id %s does not match its key", key, id.Raw)
			}
			if dexID.Int() != n {
				report("entry %s: dex_id %s, want %d", key, dexID.Raw, n)
			}
		} else {
			if id.Type != gjson.String || id.String() != key {
				report("entry %s: id %s does not match its key", key, id.Raw)
			}
			if !species[dexID.Int()] {
				report("entry %s: dex_id %s has no species entry", key, dexID.Raw)
			}
		}

		checkVersions(key, v, report)
		return true
	})

	var (
		prev  int64
		count int
	)
	dexList.ForEach(func(_, item gjson.Result) bool {
		id := item.Get("id")
		if id.Type != gjson.Number {
			report("dexList: id %s is not a species number", id.Raw)
			return true
		}
		n := id.Int()
		if count > 0 && n <= prev {
			report("dexList: id %d out of order after %d", n, prev)
		}
		if !species[n] {
			report("dexList: id %d has no entry", n)
		}
		prev = n
		count++
		return true
	})
	if count != len(species) {
		report("dexList has %d items, entries has %d species", count, len(species))
	}

	return problems
}

// checkVersions verifies that version_order lists known versions in
// chronological order and that each has a flavor text.
func checkVersions(key string, entry gjson.Result, report func(string, ...any)) {
	texts := entry.Get("flavor_texts")
	last := -1
	entry.Get("version_order").ForEach(func(_, v gjson.Result) bool {
		version := v.String()
		pos := dex.VersionPosition(version)
		switch {
		case pos < 0:
			report("entry %s: unknown version %q", key, version)
		case pos <= last:
			report("entry %s: version %q out of order", key, version)
		default:
			last = pos
		}
		if !texts.Get(gjson.Escape(version)).Exists() {
			report("entry %s: version %q has no flavor text", key, version)
		}
		return true
	})
}
