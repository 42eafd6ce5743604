// Package cafs provides the content addressing scheme of the panini blob store.
//
// Every blob is identified by the BLAKE2b-512 hash of its exact bytes.
//
// The textual form of a key is used as a file name inside the blob store, so it
// must be stable and safe as a path component on every host: keys are rendered
// with the unpadded URL-safe base64 alphabet (A-Z a-z 0-9 - _), which is disjoint
// from path syntax. No escaping is ever needed and the fixed length of 86
// characters can never collide with a reserved device name such as CON or NUL.
//
// Embedding a blob inside a human readable document is a different concern,
// handled by the escape-based codec of the inline subpackage.
package cafs
