package blob

import (
	"path"
	"strings"

	"github.com/paninifs/panini/pkg/cafs"
)

// Ref is a committed content reference: the address of a blob and the bucket it was put in
type Ref struct {
	Key    cafs.Key `json:"key" yaml:"key"`
	Bucket string   `json:"bucket" yaml:"bucket"`
	Size   int64    `json:"size" yaml:"size"`
}

// IsZero tells if this reference designates no blob
func (r Ref) IsZero() bool {
	return r.Key.IsZero()
}

// Path is the storage key of the blob, relative to the blob root
func (r Ref) Path() string {
	return PathFor(r.Bucket, r.Key)
}

func (r Ref) String() string {
	return r.Path()
}

// PathFor builds the storage key of a blob
func PathFor(bucket string, key cafs.Key) string {
	return path.Join(bucket, key.String())
}

// ParsePath is the inverse of PathFor
func ParsePath(pth string) (string, cafs.Key, error) {
	bucket, name := path.Split(pth)
	bucket = strings.TrimSuffix(bucket, "/")
	if bucket == "" || strings.Contains(bucket, "/") {
		return "", cafs.Key{}, ErrInvalidRef.WrapMessage("unexpected blob path %q", pth)
	}
	key, err := cafs.ParseKey(name)
	if err != nil {
		return "", cafs.Key{}, ErrInvalidRef.Wrap(err)
	}
	return bucket, key, nil
}
