// Package blob implements the content-addressable blob store.
//
// Blobs are immutable byte sequences stored under "<bucket>/<address>", where the
// address is the text form of the content hash and the bucket is the size class of
// the blob. Identical content is stored once.
//
// Blobs are never deleted individually: Sweep reclaims every blob the caller does
// not report as live.
package blob
