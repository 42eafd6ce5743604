// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"
)

const (
	// NoOverWrite asks Put to fail with status.ErrExists when the key is already present
	NoOverWrite = true

	// OverWrite lets Put replace an existing object
	OverWrite = false
)

// Entry describes a stored object
type Entry struct {
	Key  string
	Size int64
}

// Store implementations know how to write entries to a K/V model.
//
// Typically this is something file system-like.
// Implementations of this interface are assumed to be fairly simple.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Stat(context.Context, string) (Entry, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader, bool) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	List(context.Context, string) ([]Entry, error)
	Clear(context.Context) error
}
