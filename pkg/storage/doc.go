// Copyright © 2018 One Concern

// Package storage provides interface to handle backend storage objects.
//
// Keys are slash separated relative paths. The blob store lays its blobs
// out as "<bucket>/<address>" keys on top of this interface.
//
// This package supports the following backends:
//   - local file system (plain or with atomic publication of puts)
package storage
