// Package bucket groups blobs in size classes.
//
// Each blob is stored in the directory of the first bucket whose limit is strictly
// greater than its length. Blobs larger than every limit go to the Oversize bucket.
//
// Buckets carry no addressing information: they keep directory fan-out bounded and
// let an operator see at a glance whether a store is made of many small blobs or of
// a few large ones.
package bucket

import (
	"fmt"
	"math/bits"
	"sort"
	"strconv"
	"strings"

	units "github.com/docker/go-units"

	"github.com/paninifs/panini/pkg/errors"
)

// OversizeName is the name of the catch-all bucket
const OversizeName = "Oversize"

// ErrInvalidLadder is returned when bucket limits are not usable
var ErrInvalidLadder = errors.New("invalid bucket ladder")

// Bucket is a size class. The Oversize bucket has a zero Limit.
type Bucket struct {
	Name  string
	Limit uint64
}

// IsOversize tells if this is the catch-all bucket
func (b Bucket) IsOversize() bool {
	return b.Limit == 0
}

func (b Bucket) String() string {
	return b.Name
}

var oversize = Bucket{Name: OversizeName}

// Ladder is an ordered set of buckets. The zero value only knows about Oversize.
type Ladder struct {
	buckets []Bucket
}

// DefaultLimits is the default ladder of the blob store
var DefaultLimits = []uint64{
	1 << 10, 1 << 11, 1 << 12, 1 << 13, 1 << 14, 1 << 15, 1 << 16,
	1 << 18, 1 << 20, 1 << 22, 1 << 24, 1 << 28, 1 << 32,
}

// Default returns the default ladder
func Default() Ladder {
	l, err := NewLadder(DefaultLimits...)
	if err != nil {
		panic(err)
	}
	return l
}

// NewLadder builds a ladder from strictly ascending, non-zero limits
func NewLadder(limits ...uint64) (Ladder, error) {
	if len(limits) == 0 {
		return Ladder{}, ErrInvalidLadder.WrapMessage("at least one limit is required")
	}
	buckets := make([]Bucket, 0, len(limits))
	for i, limit := range limits {
		if limit == 0 {
			return Ladder{}, ErrInvalidLadder.WrapMessage("limit #%d is zero", i)
		}
		if i > 0 && limit <= limits[i-1] {
			return Ladder{}, ErrInvalidLadder.WrapMessage("limits must be strictly ascending: %d follows %d", limit, limits[i-1])
		}
		buckets = append(buckets, Bucket{Name: nameFor(limit), Limit: limit})
	}
	return Ladder{buckets: buckets}, nil
}

// Parse builds a ladder from textual limits, such as "2^10", "64KiB" or "4096".
//
// Limits may be given in any order.
func Parse(values []string) (Ladder, error) {
	limits := make([]uint64, 0, len(values))
	for _, value := range values {
		limit, err := parseLimit(strings.TrimSpace(value))
		if err != nil {
			return Ladder{}, ErrInvalidLadder.Wrap(err)
		}
		limits = append(limits, limit)
	}
	sort.Slice(limits, func(i, j int) bool { return limits[i] < limits[j] })
	return NewLadder(limits...)
}

func parseLimit(value string) (uint64, error) {
	if exp := strings.TrimPrefix(value, "2^"); exp != value {
		e, err := strconv.ParseUint(exp, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid exponent in %q: %v", value, err)
		}
		if e > 63 {
			return 0, fmt.Errorf("exponent too large in %q", value)
		}
		return 1 << e, nil
	}
	n, err := units.RAMInBytes(value)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("limit must be positive: %q", value)
	}
	return uint64(n), nil
}

func nameFor(limit uint64) string {
	if limit&(limit-1) == 0 {
		return "2^" + strconv.Itoa(bits.TrailingZeros64(limit))
	}
	return strconv.FormatUint(limit, 10)
}

// For returns the bucket of a blob of the given length.
//
// A length equal to a limit belongs to the next bucket up.
func (l Ladder) For(length uint64) Bucket {
	for _, b := range l.buckets {
		if length < b.Limit {
			return b
		}
	}
	return oversize
}

// Buckets returns all buckets in ascending order, Oversize last
func (l Ladder) Buckets() []Bucket {
	all := make([]Bucket, 0, len(l.buckets)+1)
	all = append(all, l.buckets...)
	return append(all, oversize)
}

// Names returns the names of all buckets in ascending order, Oversize last
func (l Ladder) Names() []string {
	names := make([]string, 0, len(l.buckets)+1)
	for _, b := range l.Buckets() {
		names = append(names, b.Name)
	}
	return names
}

// Contains tells if a bucket name belongs to this ladder
func (l Ladder) Contains(name string) bool {
	for _, b := range l.Buckets() {
		if b.Name == name {
			return true
		}
	}
	return false
}

// Limits returns the limits of the ladder
func (l Ladder) Limits() []uint64 {
	limits := make([]uint64, 0, len(l.buckets))
	for _, b := range l.buckets {
		limits = append(limits, b.Limit)
	}
	return limits
}

func (l Ladder) String() string {
	return strings.Join(l.Names(), ",")
}
