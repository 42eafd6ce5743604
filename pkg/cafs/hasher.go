package cafs

import (
	"hash"
	"io"

	blake2b "github.com/minio/blake2b-simd"
)

// NewHasher returns a streaming hasher which produces the same keys as Sum
func NewHasher() hash.Hash {
	return blake2b.New512()
}

// Sum computes the content address of a byte sequence
func Sum(data []byte) Key {
	hasher := NewHasher()
	// a hash.Hash never fails on Write
	_, _ = hasher.Write(data)
	return MustNewKey(hasher.Sum(nil))
}

// SumReader computes the content address of a stream, returning the number of bytes read
func SumReader(rdr io.Reader) (Key, int64, error) {
	hasher := NewHasher()
	n, err := io.Copy(hasher, rdr)
	if err != nil {
		return Key{}, n, err
	}
	return MustNewKey(hasher.Sum(nil)), n, nil
}

// KeyFromHasher extracts the key from a hasher built with NewHasher
func KeyFromHasher(hasher hash.Hash) Key {
	return MustNewKey(hasher.Sum(nil))
}
