package vfs

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/paninifs/panini/pkg/blob"
	"github.com/paninifs/panini/pkg/model"
)

// node is a logical file or directory.
//
// The committed content is swapped atomically on flush: readers never see a
// partially committed file. Attributes, times and locks are guarded by mx,
// which is never held while acquiring another lock.
type node struct {
	kind      model.Kind
	committed atomic.Pointer[blob.Ref]

	mx       sync.Mutex
	attrs    model.Attributes
	created  time.Time
	accessed time.Time
	written  time.Time
	locks    []byteRange
}

func newNode(kind model.Kind, attrs model.Attributes, now time.Time) *node {
	return &node{
		kind:     kind,
		attrs:    attrs & model.AttrSettable,
		created:  now,
		accessed: now,
		written:  now,
	}
}

func nodeFromEntry(e model.Entry) *node {
	n := &node{
		kind:     e.Kind,
		attrs:    e.Attributes & model.AttrSettable,
		created:  e.Created,
		accessed: e.Accessed,
		written:  e.Written,
	}
	if !e.Ref.IsZero() {
		ref := e.Ref
		n.committed.Store(&ref)
	}
	return n
}

func (n *node) isDir() bool {
	return n.kind == model.KindDir
}

// ref returns the committed content, or a zero Ref when nothing was ever committed
func (n *node) ref() blob.Ref {
	if r := n.committed.Load(); r != nil {
		return *r
	}
	return blob.Ref{}
}

func (n *node) size() int64 {
	return n.ref().Size
}

func (n *node) commit(ref blob.Ref, at time.Time) {
	n.committed.Store(&ref)
	n.mx.Lock()
	n.written = at
	n.attrs |= model.AttrArchive
	n.mx.Unlock()
}

func (n *node) touch(at time.Time) {
	n.mx.Lock()
	n.accessed = at
	n.mx.Unlock()
}

func (n *node) readOnly() bool {
	n.mx.Lock()
	defer n.mx.Unlock()
	return n.attrs.Has(model.AttrReadOnly)
}

// attributes as reported to hosts
func (n *node) attributes() model.Attributes {
	n.mx.Lock()
	attrs := n.attrs
	n.mx.Unlock()
	switch {
	case n.isDir():
		return attrs | model.AttrDirectory
	case attrs == 0:
		return model.AttrNormal
	default:
		return attrs
	}
}

func (n *node) setAttributes(attrs model.Attributes) {
	n.mx.Lock()
	n.attrs = attrs & model.AttrSettable
	n.mx.Unlock()
}

// setTimes updates the times which are not zero
func (n *node) setTimes(created, accessed, written time.Time) {
	n.mx.Lock()
	defer n.mx.Unlock()
	if !created.IsZero() {
		n.created = created
	}
	if !accessed.IsZero() {
		n.accessed = accessed
	}
	if !written.IsZero() {
		n.written = written
	}
}

func (n *node) entry(pth string) model.Entry {
	n.mx.Lock()
	defer n.mx.Unlock()
	return model.Entry{
		Path:       pth,
		Kind:       n.kind,
		Ref:        n.ref(),
		Attributes: n.attrs,
		Created:    n.created,
		Accessed:   n.accessed,
		Written:    n.written,
	}
}

func (n *node) info(pth string) FileInfo {
	attrs := n.attributes()
	ref := n.ref()

	n.mx.Lock()
	defer n.mx.Unlock()
	return FileInfo{
		Name:       baseOf(pth),
		Path:       pth,
		IsDir:      n.isDir(),
		Size:       ref.Size,
		Attributes: attrs,
		Created:    n.created,
		Accessed:   n.accessed,
		Written:    n.written,
		Ref:        ref,
	}
}
