//go:build !windows

package vfs

import (
	"golang.org/x/sys/unix"
)

func diskSpace(root string) (Space, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return Space{}, err
	}
	bsize := uint64(st.Bsize)
	return Space{
		FreeBytesAvailable: uint64(st.Bavail) * bsize,
		TotalBytes:         uint64(st.Blocks) * bsize,
		TotalFreeBytes:     uint64(st.Bfree) * bsize,
	}, nil
}
