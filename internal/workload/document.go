package workload

import (
	"hash/fnv"
	"sync"
)

// Document is the mutable page state the demo workloads act on. Appends are
// cheap and deferred; Layout walks every node, the way a forced reflow
// settles pending DOM work.
type Document struct {
	mu       sync.Mutex
	nodes    []string
	dirty    int
	passes   int
	checksum uint64
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{}
}

// Append adds a paragraph node.
func (d *Document) Append(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes = append(d.nodes, text)
	d.dirty++
}

// Clear drops every node.
func (d *Document) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes = d.nodes[:0]
	d.dirty++
}

// Layout settles pending mutations. It is the suite barrier.
func (d *Document) Layout() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dirty == 0 {
		return
	}
	h := fnv.New64a()
	for _, n := range d.nodes {
		_, _ = h.Write([]byte(n))
	}
	d.checksum = h.Sum64()
	d.dirty = 0
	d.passes++
}

// Len returns the number of nodes.
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.nodes)
}

// LayoutPasses counts layouts that had pending work.
func (d *Document) LayoutPasses() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.passes
}
