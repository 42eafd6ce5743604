package vfs

import (
	"context"

	"go.uber.org/multierr"
)

// release runs the end of the lifecycle of a handle
func (fs *FS) release(ctx context.Context, h HandleID) error {
	err := fs.Cleanup(ctx, h)
	return multierr.Append(err, fs.Close(ctx, h))
}

// Mkdir creates a directory
func (fs *FS) Mkdir(ctx context.Context, pth string) error {
	h, _, err := fs.Open(ctx, OpenRequest{Path: pth, Disposition: CreateNew, Directory: true})
	if err != nil {
		return err
	}
	return fs.release(ctx, h)
}

// Remove deletes a file or an empty directory
func (fs *FS) Remove(ctx context.Context, pth string) error {
	h, _, err := fs.Open(ctx, OpenRequest{Path: pth, Access: AccessDelete, Disposition: Open})
	if err != nil {
		return err
	}
	if err = fs.Delete(ctx, h, true); err != nil {
		return multierr.Append(err, fs.release(ctx, h))
	}
	return fs.release(ctx, h)
}

// Truncate changes the size of a file
func (fs *FS) Truncate(ctx context.Context, pth string, size int64) error {
	h, _, err := fs.Open(ctx, OpenRequest{Path: pth, Access: AccessWrite, Disposition: Open, NonDirectory: true})
	if err != nil {
		return err
	}
	if err = fs.SetEndOfFile(ctx, h, size); err != nil {
		return multierr.Append(err, fs.release(ctx, h))
	}
	return fs.release(ctx, h)
}

// ReadFile returns the committed content of a file
func (fs *FS) ReadFile(ctx context.Context, pth string) ([]byte, error) {
	h, _, err := fs.Open(ctx, OpenRequest{Path: pth, Access: AccessRead, Disposition: Open, NonDirectory: true})
	if err != nil {
		return nil, err
	}
	data, err := fs.readAll(ctx, h)
	if err != nil {
		return nil, multierr.Append(err, fs.release(ctx, h))
	}
	return data, fs.release(ctx, h)
}

func (fs *FS) readAll(ctx context.Context, h HandleID) ([]byte, error) {
	info, err := fs.StatHandle(ctx, h)
	if err != nil {
		return nil, err
	}
	data := make([]byte, info.Size)
	var offset int64
	for offset < info.Size {
		n, err := fs.Read(ctx, h, data[offset:], offset)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		offset += int64(n)
	}
	return data[:offset], nil
}

// WriteFile creates or overwrites a file with some content
func (fs *FS) WriteFile(ctx context.Context, pth string, data []byte) error {
	h, _, err := fs.Open(ctx, OpenRequest{Path: pth, Access: AccessWrite, Disposition: Create, NonDirectory: true})
	if err != nil {
		return err
	}
	if _, err = fs.Write(ctx, h, data, 0); err != nil {
		return multierr.Append(err, fs.release(ctx, h))
	}
	return fs.release(ctx, h)
}
