package fuse

import (
	"strings"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/jacobsa/fuse/fuseops"
)

type iNodeGenerator struct {
	lock         sync.Mutex
	highestInode fuseops.InodeID
	freeInodes   []fuseops.InodeID
}

func (g *iNodeGenerator) allocINode() fuseops.InodeID {
	g.lock.Lock()
	defer g.lock.Unlock()
	if n := len(g.freeInodes); n > 0 {
		id := g.freeInodes[n-1]
		g.freeInodes = g.freeInodes[:n-1]
		return id
	}
	g.highestInode++
	return g.highestInode
}

func (g *iNodeGenerator) freeINode(iNode fuseops.InodeID) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.highestInode == iNode {
		g.highestInode--
		return
	}
	g.freeInodes = append(g.freeInodes, iNode)
}

// nodeEntry is an inode known to the kernel.
//
// An empty path marks an inode whose entry was removed while the kernel still references it.
type nodeEntry struct {
	path     string
	refCount uint64
}

// inodeTable maps inodes to paths in the file system, and back.
//
// Both trees are immutable: readers work on the references returned by atomicGetReferences.
type inodeTable struct {
	lock  sync.Mutex
	nodes *iradix.Tree // formKey(inode) -> nodeEntry
	paths *iradix.Tree // path -> fuseops.InodeID

	iNodeGenerator iNodeGenerator
}

func newInodeTable() *inodeTable {
	t := &inodeTable{
		nodes: iradix.New(),
		paths: iradix.New(),
		iNodeGenerator: iNodeGenerator{
			highestInode: firstINode,
			freeInodes:   make([]fuseops.InodeID, 0, 1024),
		},
	}
	t.nodes, _, _ = t.nodes.Insert(formKey(fuseops.RootInodeID), nodeEntry{path: rootPath, refCount: 1})
	t.paths, _, _ = t.paths.Insert([]byte(rootPath), fuseops.RootInodeID)
	return t
}

func (t *inodeTable) atomicGetReferences() (nodes *iradix.Tree, paths *iradix.Tree) {
	t.lock.Lock()
	nodes = t.nodes
	paths = t.paths
	t.lock.Unlock()
	return
}

func getNode(nodes *iradix.Tree, iNode fuseops.InodeID) (nodeEntry, bool) {
	v, found := nodes.Get(formKey(iNode))
	if !found {
		return nodeEntry{}, false
	}
	return v.(nodeEntry), true
}

// pathOf resolves a linked inode to its path
func (t *inodeTable) pathOf(iNode fuseops.InodeID) (string, bool) {
	nodes, _ := t.atomicGetReferences()
	n, found := getNode(nodes, iNode)
	if !found || n.path == "" {
		return "", false
	}
	return n.path, true
}

// inodeOf returns the inode of a path, if the kernel knows it
func (t *inodeTable) inodeOf(pth string) (fuseops.InodeID, bool) {
	_, paths := t.atomicGetReferences()
	v, found := paths.Get([]byte(pth))
	if !found {
		return 0, false
	}
	return v.(fuseops.InodeID), true
}

// ref returns the inode for a path, allocating one if needed, and adds lookups to its reference count
func (t *inodeTable) ref(pth string, lookups uint64) fuseops.InodeID {
	t.lock.Lock()
	defer t.lock.Unlock()

	if v, found := t.paths.Get([]byte(pth)); found {
		iNode := v.(fuseops.InodeID)
		n, _ := getNode(t.nodes, iNode)
		n.refCount += lookups
		t.nodes, _, _ = t.nodes.Insert(formKey(iNode), n)
		return iNode
	}

	iNode := t.iNodeGenerator.allocINode()
	t.nodes, _, _ = t.nodes.Insert(formKey(iNode), nodeEntry{path: pth, refCount: lookups})
	t.paths, _, _ = t.paths.Insert([]byte(pth), iNode)
	return iNode
}

// forget removes lookups from the reference count of an inode, and releases it when it drops to zero
func (t *inodeTable) forget(iNode fuseops.InodeID, lookups uint64) {
	if iNode == fuseops.RootInodeID {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()

	n, found := getNode(t.nodes, iNode)
	if !found {
		return
	}
	if lookups > n.refCount {
		lookups = n.refCount
	}
	n.refCount -= lookups
	if n.refCount > 0 {
		t.nodes, _, _ = t.nodes.Insert(formKey(iNode), n)
		return
	}
	t.releaseLocked(iNode, n)
}

// release drops an inode nobody has looked up
func (t *inodeTable) release(iNode fuseops.InodeID) {
	t.lock.Lock()
	defer t.lock.Unlock()
	n, found := getNode(t.nodes, iNode)
	if !found || n.refCount > 0 || iNode == fuseops.RootInodeID {
		return
	}
	t.releaseLocked(iNode, n)
}

func (t *inodeTable) releaseLocked(iNode fuseops.InodeID, n nodeEntry) {
	t.nodes, _, _ = t.nodes.Delete(formKey(iNode))
	if n.path != "" {
		if v, found := t.paths.Get([]byte(n.path)); found && v.(fuseops.InodeID) == iNode {
			t.paths, _, _ = t.paths.Delete([]byte(n.path))
		}
	}
	t.iNodeGenerator.freeINode(iNode)
}

// unlink detaches the inode of a removed path
func (t *inodeTable) unlink(pth string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	nodes := t.nodes.Txn()
	paths := t.paths.Txn()
	t.unlinkLocked(nodes, paths, pth)
	t.nodes = nodes.Commit()
	t.paths = paths.Commit()
}

func (t *inodeTable) unlinkLocked(nodes, paths *iradix.Txn, pth string) {
	v, found := paths.Get([]byte(pth))
	if !found {
		return
	}
	iNode := v.(fuseops.InodeID)
	paths.Delete([]byte(pth))

	nv, found := nodes.Get(formKey(iNode))
	if !found {
		return
	}
	n := nv.(nodeEntry)
	if n.refCount == 0 {
		nodes.Delete(formKey(iNode))
		t.iNodeGenerator.freeINode(iNode)
		return
	}
	n.path = ""
	nodes.Insert(formKey(iNode), n)
}

// move rebases the inodes of a renamed subtree. Inodes previously at the destination are unlinked.
func (t *inodeTable) move(oldPath, newPath string) {
	t.lock.Lock()
	defer t.lock.Unlock()

	nodes := t.nodes.Txn()
	paths := t.paths.Txn()

	for _, p := range within(t.paths, newPath) {
		t.unlinkLocked(nodes, paths, p)
	}

	for _, p := range within(t.paths, oldPath) {
		v, _ := paths.Get([]byte(p))
		iNode := v.(fuseops.InodeID)
		moved := newPath + strings.TrimPrefix(p, oldPath)

		paths.Delete([]byte(p))
		paths.Insert([]byte(moved), iNode)
		if nv, found := nodes.Get(formKey(iNode)); found {
			n := nv.(nodeEntry)
			n.path = moved
			nodes.Insert(formKey(iNode), n)
		}
	}

	t.nodes = nodes.Commit()
	t.paths = paths.Commit()
}

// within lists the known paths at or below dir
func within(paths *iradix.Tree, dir string) []string {
	var res []string
	paths.Root().WalkPrefix([]byte(dir), func(k []byte, _ interface{}) bool {
		p := string(k)
		if p == dir || strings.HasPrefix(p, dir+"/") {
			res = append(res, p)
		}
		return false
	})
	return res
}

func (t *inodeTable) len() int {
	nodes, _ := t.atomicGetReferences()
	return nodes.Len()
}
