package dex

// WorkItem is one entry to build. URL is empty for default forms, whose
// record URL is derived from ID.
type WorkItem struct {
	ID    EntryID
	URL   string
	DexID int
}

// worklist is a FIFO of WorkItems that also accepts items at the front, so
// the varieties of a species are built right after it.
type worklist struct {
	items []WorkItem
}

// newSpeciesWorklist seeds species 1..n.
func newSpeciesWorklist(n int) *worklist {
	w := &worklist{items: make([]WorkItem, 0, n)}
	for i := 1; i <= n; i++ {
		w.items = append(w.items, WorkItem{ID: SpeciesID(i), DexID: i})
	}
	return w
}

func (w *worklist) pop() (WorkItem, bool) {
	if len(w.items) == 0 {
		return WorkItem{}, false
	}
	item := w.items[0]
	w.items = w.items[1:]
	return item, true
}

func (w *worklist) pushFront(items ...WorkItem) {
	if len(items) == 0 {
		return
	}
	w.items = append(append(make([]WorkItem, 0, len(items)+len(w.items)), items...), w.items...)
}

func (w *worklist) len() int { return len(w.items) }
