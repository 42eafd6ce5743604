package driver

import (
	"fmt"

	"github.com/paninifs/panini/pkg/errors"
	"github.com/paninifs/panini/pkg/vfs/status"
)

// NtStatus is the status code returned to the host for every operation
type NtStatus uint32

// Status codes returned by the driver
const (
	StatusSuccess             NtStatus = 0x00000000
	StatusNotImplemented      NtStatus = 0xC0000002
	StatusInvalidHandle       NtStatus = 0xC0000008
	StatusInvalidParameter    NtStatus = 0xC000000D
	StatusAccessDenied        NtStatus = 0xC0000022
	StatusObjectNameNotFound  NtStatus = 0xC0000034
	StatusObjectNameCollision NtStatus = 0xC0000035
	StatusObjectPathNotFound  NtStatus = 0xC000003A
	StatusLockNotGranted      NtStatus = 0xC0000055
	StatusRangeNotLocked      NtStatus = 0xC000007E
	StatusFileIsADirectory    NtStatus = 0xC00000BA
	StatusDirectoryNotEmpty   NtStatus = 0xC0000101
	StatusNotADirectory       NtStatus = 0xC0000103
	StatusIoDeviceError       NtStatus = 0xC0000185

	// StatusAlreadyExists is returned when opening an existing entry with a disposition which may create it
	StatusAlreadyExists = StatusObjectNameCollision
)

var statusNames = map[NtStatus]string{
	StatusSuccess:             "Success",
	StatusNotImplemented:      "NotImplemented",
	StatusInvalidHandle:       "InvalidHandle",
	StatusInvalidParameter:    "InvalidParameter",
	StatusAccessDenied:        "AccessDenied",
	StatusObjectNameNotFound:  "ObjectNameNotFound",
	StatusObjectNameCollision: "ObjectNameCollision",
	StatusObjectPathNotFound:  "ObjectPathNotFound",
	StatusLockNotGranted:      "LockNotGranted",
	StatusRangeNotLocked:      "RangeNotLocked",
	StatusFileIsADirectory:    "FileIsADirectory",
	StatusDirectoryNotEmpty:   "DirectoryNotEmpty",
	StatusNotADirectory:       "NotADirectory",
	StatusIoDeviceError:       "IoDeviceError",
}

func (s NtStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("NtStatus(0x%08X)", uint32(s))
}

// IsSuccess tells if the status reports a success
func (s NtStatus) IsSuccess() bool {
	return s == StatusSuccess
}

var statusMap = []struct {
	err    *errors.Error
	status NtStatus
}{
	{err: status.ErrNotFound, status: StatusObjectNameNotFound},
	{err: status.ErrInvalidName, status: StatusObjectNameNotFound},
	{err: status.ErrPathNotFound, status: StatusObjectPathNotFound},
	{err: status.ErrExists, status: StatusObjectNameCollision},
	{err: status.ErrAccessDenied, status: StatusAccessDenied},
	{err: status.ErrNotADirectory, status: StatusNotADirectory},
	{err: status.ErrIsADirectory, status: StatusFileIsADirectory},
	{err: status.ErrDirectoryNotEmpty, status: StatusDirectoryNotEmpty},
	{err: status.ErrNotImplemented, status: StatusNotImplemented},
	{err: status.ErrInvalidHandle, status: StatusInvalidHandle},
	{err: status.ErrOutOfOrder, status: StatusInvalidHandle},
	{err: status.ErrInvalidParameter, status: StatusInvalidParameter},
	{err: status.ErrLockConflict, status: StatusLockNotGranted},
	{err: status.ErrNotLocked, status: StatusRangeNotLocked},
	{err: status.ErrIO, status: StatusIoDeviceError},
}

// ToNtStatus maps an error returned by the file system to a host status code.
//
// Errors which are not known to the file system are reported as device errors.
func ToNtStatus(err error) NtStatus {
	if err == nil {
		return StatusSuccess
	}
	for _, m := range statusMap {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return StatusIoDeviceError
}
