package vfs

import (
	"sort"
	"strings"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"
)

// namespace maps cleaned paths to nodes.
//
// The tree is immutable: writers build a new version under mx and swap it in,
// readers work on a snapshot without holding any lock.
type namespace struct {
	mx   sync.Mutex
	tree *iradix.Tree
}

type child struct {
	path string
	node *node
}

func newNamespace(root *node) *namespace {
	tree, _, _ := iradix.New().Insert([]byte(rootPath), root)
	return &namespace{tree: tree}
}

// snapshot returns the current version of the tree
func (ns *namespace) snapshot() *iradix.Tree {
	ns.mx.Lock()
	// Keep a reference to the current version, so that concurrent updates do not
	// require to hold the lock for the duration of a lookup.
	tree := ns.tree
	ns.mx.Unlock()
	return tree
}

func (ns *namespace) get(pth string) (*node, bool) {
	return lookupNode(ns.snapshot(), pth)
}

// lookupNode against the tree that is referenced
func lookupNode(tree *iradix.Tree, pth string) (*node, bool) {
	v, found := tree.Get([]byte(pth))
	if !found {
		return nil, false
	}
	return v.(*node), true
}

// lookupDir resolves a directory, reporting whether it exists at all
func lookupDir(tree *iradix.Tree, pth string) (n *node, isDir bool) {
	n, found := lookupNode(tree, pth)
	if !found {
		return nil, false
	}
	return n, n.isDir()
}

// children of a directory, sorted by name
func children(tree *iradix.Tree, dir string) []child {
	prefix := childPrefix(dir)
	var res []child
	tree.Root().WalkPrefix([]byte(prefix), func(k []byte, v interface{}) bool {
		rest := string(k[len(prefix):])
		if rest == "" || strings.IndexByte(rest, '/') >= 0 {
			return false
		}
		res = append(res, child{path: string(k), node: v.(*node)})
		return false
	})
	sort.Slice(res, func(i, j int) bool { return res[i].path < res[j].path })
	return res
}

func hasChildren(tree *iradix.Tree, dir string) bool {
	prefix := childPrefix(dir)
	found := false
	tree.Root().WalkPrefix([]byte(prefix), func(k []byte, _ interface{}) bool {
		if len(k) > len(prefix) {
			found = true
		}
		return found
	})
	return found
}

// subtree walks a directory and all its descendants, the directory first
func subtree(tree *iradix.Tree, dir string) []child {
	n, found := lookupNode(tree, dir)
	if !found {
		return nil
	}
	res := []child{{path: dir, node: n}}
	if !n.isDir() {
		return res
	}
	prefix := childPrefix(dir)
	tree.Root().WalkPrefix([]byte(prefix), func(k []byte, v interface{}) bool {
		if len(k) > len(prefix) {
			res = append(res, child{path: string(k), node: v.(*node)})
		}
		return false
	})
	return res
}

// walk every entry of the tree
func walk(tree *iradix.Tree, fn func(string, *node)) {
	tree.Root().Walk(func(k []byte, v interface{}) bool {
		fn(string(k), v.(*node))
		return false
	})
}
