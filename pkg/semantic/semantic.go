// Package semantic describes the metadata side-table attached to files.
//
// The side-table records subject-predicate-object assertions, each with a
// provenance tier. Subjects are file paths. The history of a subject is kept:
// assertions are only ever appended.
package semantic

import (
	"context"
	"strings"
	"time"

	"github.com/paninifs/panini/pkg/errors"
)

// Predicates recorded by the filesystem itself
const (
	PredicateKind      = "panini:kind"
	PredicateContent   = "panini:content"
	PredicateMovedFrom = "panini:movedFrom"
	PredicateDeleted   = "panini:deleted"
)

var (
	// ErrInvalidAssertion is returned when an assertion misses its subject or predicate
	ErrInvalidAssertion = errors.New("invalid assertion")

	// ErrUnknownTier is returned when parsing an unknown tier name
	ErrUnknownTier = errors.New("unknown provenance tier")
)

// Tier is the provenance tier of an assertion. Tiers are ordered from the most to the
// least widely shared.
type Tier uint8

// Known tiers
const (
	TierPublic Tier = iota
	TierShared
	TierPrivate
	TierTransactional

	// TierSystem marks assertions made by the filesystem itself
	TierSystem
)

var tierNames = [...]string{"public", "shared", "private", "transactional", "system"}

func (t Tier) String() string {
	if int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "unknown"
}

// ParseTier resolves a tier from its name
func ParseTier(name string) (Tier, error) {
	for i, n := range tierNames {
		if strings.EqualFold(n, name) {
			return Tier(i), nil
		}
	}
	return 0, ErrUnknownTier.WrapMessage("%q", name)
}

// MarshalText implements encoding.TextMarshaler
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Assertion is a subject-predicate-object statement with its provenance
type Assertion struct {
	ID        string    `json:"id" yaml:"id"`
	Subject   string    `json:"subject" yaml:"subject"`
	Predicate string    `json:"predicate" yaml:"predicate"`
	Object    string    `json:"object" yaml:"object"`
	Tier      Tier      `json:"tier" yaml:"tier"`
	At        time.Time `json:"at" yaml:"at"`
}

// Validate an assertion before recording it
func (a Assertion) Validate() error {
	if a.Subject == "" {
		return ErrInvalidAssertion.WrapMessage("subject is required")
	}
	if a.Predicate == "" {
		return ErrInvalidAssertion.WrapMessage("predicate is required")
	}
	if a.Tier > TierSystem {
		return ErrInvalidAssertion.WrapMessage("tier %d is out of range", a.Tier)
	}
	return nil
}

// SideTable records and queries assertions about files
type SideTable interface {
	RecordAssertion(context.Context, Assertion) error
	QueryAssertions(context.Context, string) ([]Assertion, error)
}

// Discard is a side-table which records nothing
var Discard SideTable = discard{}

type discard struct{}

func (discard) RecordAssertion(context.Context, Assertion) error { return nil }

func (discard) QueryAssertions(context.Context, string) ([]Assertion, error) { return nil, nil }
