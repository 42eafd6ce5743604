package model

import (
	"strings"
	"time"

	"github.com/paninifs/panini/pkg/blob"
	"github.com/paninifs/panini/pkg/errors"
)

// ErrUnknownKind is returned when decoding an unknown entry kind
var ErrUnknownKind = errors.New("unknown entry kind")

// Kind of a namespace entry
type Kind uint8

// Known kinds
const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "file":
		*k = KindFile
	case "dir":
		*k = KindDir
	default:
		return ErrUnknownKind.WrapMessage("%q", string(text))
	}
	return nil
}

// Attributes are file attribute flags, with the same values as the host flags
type Attributes uint32

// Attribute flags
const (
	AttrReadOnly  Attributes = 0x1
	AttrHidden    Attributes = 0x2
	AttrSystem    Attributes = 0x4
	AttrDirectory Attributes = 0x10
	AttrArchive   Attributes = 0x20
	AttrNormal    Attributes = 0x80

	// AttrSettable is the set of flags callers may change
	AttrSettable = AttrReadOnly | AttrHidden | AttrSystem | AttrArchive
)

// Has tells if all flags in mask are set
func (a Attributes) Has(mask Attributes) bool {
	return a&mask == mask
}

// Entry is the persistent record of a logical file or directory
type Entry struct {
	Path       string     `json:"path" yaml:"path"`
	Kind       Kind       `json:"kind" yaml:"kind"`
	Ref        blob.Ref   `json:"ref,omitempty" yaml:"ref,omitempty"`
	Attributes Attributes `json:"attributes" yaml:"attributes"`
	Created    time.Time  `json:"created" yaml:"created"`
	Accessed   time.Time  `json:"accessed" yaml:"accessed"`
	Written    time.Time  `json:"written" yaml:"written"`
	_          struct{}
}

// IsDir tells if this entry is a directory
func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

// Entries represent a collection of entries
type Entries []Entry

// Paths of all entries
func (entries Entries) Paths() []string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths
}
