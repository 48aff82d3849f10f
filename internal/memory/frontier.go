package memory

// Entry is a pending URL with the depth it was discovered at. The crawler
// assigns the visit depth when it pops the entry.
type Entry struct {
	URL   string
	Depth int
}

// frontier is a LIFO stack of pending URLs with O(1) membership checks.
// It is not safe for concurrent use on its own; SiteGraph guards it.
type frontier struct {
	items   []Entry
	pending map[string]bool
}

func newFrontier() *frontier {
	return &frontier{
		items:   make([]Entry, 0),
		pending: make(map[string]bool),
	}
}

// push adds an entry unless its URL is already pending
func (f *frontier) push(entry Entry) bool {
	if f.pending[entry.URL] {
		return false
	}
	f.pending[entry.URL] = true
	f.items = append(f.items, entry)
	return true
}

// pop removes and returns the most recently pushed entry
func (f *frontier) pop() (Entry, bool) {
	if len(f.items) == 0 {
		return Entry{}, false
	}
	last := len(f.items) - 1
	entry := f.items[last]
	f.items = f.items[:last]
	delete(f.pending, entry.URL)
	return entry, true
}

func (f *frontier) contains(url string) bool {
	return f.pending[url]
}

func (f *frontier) size() int {
	return len(f.items)
}

// entries returns a copy of the stack, bottom first
func (f *frontier) entries() []Entry {
	out := make([]Entry, len(f.items))
	copy(out, f.items)
	return out
}
