//go:build windows

package vfs

import (
	"golang.org/x/sys/windows"
)

func diskSpace(root string) (Space, error) {
	dir, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return Space{}, err
	}
	var space Space
	if err := windows.GetDiskFreeSpaceEx(dir, &space.FreeBytesAvailable, &space.TotalBytes, &space.TotalFreeBytes); err != nil {
		return Space{}, err
	}
	return space, nil
}
