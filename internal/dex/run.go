package dex

import (
	"slices"
	"time"
)

// Stats summarizes a finished run.
type Stats struct {
	Species          int
	Varieties        int
	SkippedVarieties int
	Types            int
	Duration         time.Duration
}

// Run carries the state accumulated while building one document: the
// element-type set and the versions already reported as unknown. It is
// touched only by the sequential build loop.
type Run struct {
	types           []string
	seenTypes       map[string]struct{}
	unknownVersions map[string]struct{}
	stats           Stats
}

// NewRun returns an empty Run.
func NewRun() *Run {
	return &Run{
		seenTypes:       map[string]struct{}{},
		unknownVersions: map[string]struct{}{},
	}
}

// AddTypes adds slugs to the type set, keeping first-seen order.
func (r *Run) AddTypes(slugs ...string) {
	for _, s := range slugs {
		if _, ok := r.seenTypes[s]; ok {
			continue
		}
		r.seenTypes[s] = struct{}{}
		r.types = append(r.types, s)
	}
}

// Types returns the type set in first-seen order.
func (r *Run) Types() []string {
	return slices.Clone(r.types)
}

// firstUnknownVersion reports true the first time version is seen.
func (r *Run) firstUnknownVersion(version string) bool {
	if _, ok := r.unknownVersions[version]; ok {
		return false
	}
	r.unknownVersions[version] = struct{}{}
	return true
}
