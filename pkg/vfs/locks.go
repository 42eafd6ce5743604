package vfs

import (
	"github.com/paninifs/panini/pkg/vfs/status"
)

// byteRange is an exclusive lock held by a handle on a range of a file
type byteRange struct {
	owner  HandleID
	offset int64
	length int64
}

func (r byteRange) overlaps(offset, length int64) bool {
	if r.length == 0 || length == 0 {
		return false
	}
	return offset < r.offset+r.length && r.offset < offset+length
}

func validRange(offset, length int64) error {
	if offset < 0 || length < 0 || offset > MaxFileSize || length > MaxFileSize {
		return status.ErrInvalidParameter.WrapMessage("range [%d,+%d)", offset, length)
	}
	return nil
}

func (n *node) lockRange(owner HandleID, offset, length int64) error {
	n.mx.Lock()
	defer n.mx.Unlock()
	for _, r := range n.locks {
		if r.overlaps(offset, length) {
			return status.ErrLockConflict.WrapMessage("range [%d,+%d) is held by handle %d", r.offset, r.length, r.owner)
		}
	}
	n.locks = append(n.locks, byteRange{owner: owner, offset: offset, length: length})
	return nil
}

func (n *node) unlockRange(owner HandleID, offset, length int64) error {
	n.mx.Lock()
	defer n.mx.Unlock()
	for i, r := range n.locks {
		if r.owner == owner && r.offset == offset && r.length == length {
			n.locks = append(n.locks[:i], n.locks[i+1:]...)
			return nil
		}
	}
	return status.ErrNotLocked.WrapMessage("range [%d,+%d)", offset, length)
}

// checkRange fails when another handle holds a lock overlapping the range
func (n *node) checkRange(owner HandleID, offset, length int64) error {
	n.mx.Lock()
	defer n.mx.Unlock()
	for _, r := range n.locks {
		if r.owner != owner && r.overlaps(offset, length) {
			return status.ErrLockConflict.WrapMessage("range [%d,+%d) is held by handle %d", r.offset, r.length, r.owner)
		}
	}
	return nil
}

func (n *node) releaseLocks(owner HandleID) {
	n.mx.Lock()
	defer n.mx.Unlock()
	kept := n.locks[:0]
	for _, r := range n.locks {
		if r.owner != owner {
			kept = append(kept, r)
		}
	}
	n.locks = kept
}
