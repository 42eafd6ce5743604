package vfs

import (
	"sort"
	"sync"
)

// HandleID identifies an open context. Zero is never allocated.
type HandleID uint64

type lifecycle uint8

const (
	stateActive lifecycle = iota
	stateCleanupRequested
	stateClosed
)

var lifecycleNames = [...]string{"active", "cleanupRequested", "closed"}

func (s lifecycle) String() string {
	if int(s) < len(lifecycleNames) {
		return lifecycleNames[s]
	}
	return "unknown"
}

// openContext is the state of an open handle.
//
// mx guards the lifecycle state and the write buffer. The path is guarded by
// its own lock since a Move may rebase it while the handle is in use.
type openContext struct {
	id         HandleID
	node       *node
	access     Access
	appendOnly bool

	mx            sync.RWMutex
	state         lifecycle
	buf           []byte
	materialized  bool
	dirty         bool
	deletePending bool

	pathMx sync.Mutex
	path   string
}

func (c *openContext) getPath() string {
	c.pathMx.Lock()
	defer c.pathMx.Unlock()
	return c.path
}

func (c *openContext) rebase(oldDir, newDir string) {
	c.pathMx.Lock()
	defer c.pathMx.Unlock()
	if isWithin(c.path, oldDir) {
		c.path = rebase(c.path, oldDir, newDir)
	}
}

// size of the file as seen by this handle. Requires c.mx.
func (c *openContext) sizeLocked() int64 {
	if c.materialized {
		return int64(len(c.buf))
	}
	return c.node.size()
}

// handleTable tracks open contexts
type handleTable struct {
	mx   sync.RWMutex
	last HandleID
	open map[HandleID]*openContext
}

func newHandleTable() *handleTable {
	return &handleTable{open: make(map[HandleID]*openContext)}
}

func (t *handleTable) add(c *openContext) HandleID {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.last++
	c.id = t.last
	t.open[c.id] = c
	return c.id
}

func (t *handleTable) get(h HandleID) (*openContext, bool) {
	t.mx.RLock()
	defer t.mx.RUnlock()
	c, ok := t.open[h]
	return c, ok
}

func (t *handleTable) remove(h HandleID) {
	t.mx.Lock()
	defer t.mx.Unlock()
	delete(t.open, h)
}

func (t *handleTable) len() int {
	t.mx.RLock()
	defer t.mx.RUnlock()
	return len(t.open)
}

// snapshot of the open contexts, by ascending handle
func (t *handleTable) snapshot() []*openContext {
	t.mx.RLock()
	res := make([]*openContext, 0, len(t.open))
	for _, c := range t.open {
		res = append(res, c)
	}
	t.mx.RUnlock()
	sort.Slice(res, func(i, j int) bool { return res[i].id < res[j].id })
	return res
}
