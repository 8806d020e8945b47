package entity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Tuple lengths accepted by ParseDescriptor.
const (
	tupleLen         = 2
	tupleLenRevision = 3
)

// ErrInvalidDescriptor indicates an item tuple that cannot be turned into a Descriptor.
var ErrInvalidDescriptor = errors.New("invalid item descriptor")

// Descriptor identifies one item of a finite source list.
type Descriptor struct {
	PrimaryID string `json:"id"                    yaml:"id"`
	Langcode  string `json:"langcode,omitempty"    yaml:"langcode,omitempty"`
	// RevisionID pins a specific revision; zero selects the current one.
	RevisionID int64 `json:"revision_id,omitempty" yaml:"revision_id,omitempty"`
}

// HasRevision reports whether a specific revision was requested.
func (d Descriptor) HasRevision() bool {
	return d.RevisionID > 0
}

// String renders the descriptor as langcode/id[@revision].
func (d Descriptor) String() string {
	s := d.Langcode + "/" + d.PrimaryID
	if d.HasRevision() {
		s += "@" + strconv.FormatInt(d.RevisionID, 10)
	}
	return s
}

// ParseDescriptor converts a positional item tuple into a Descriptor.
// Accepted shapes are [langcode, id] and [langcode, id, revision].
func ParseDescriptor(tuple []string) (Descriptor, error) {
	var d Descriptor

	switch len(tuple) {
	case tupleLen:
	case tupleLenRevision:
		rev, err := strconv.ParseInt(strings.TrimSpace(tuple[2]), 10, 64)
		if err != nil || rev <= 0 {
			return d, fmt.Errorf("%w: revision %q is not a positive integer", ErrInvalidDescriptor, tuple[2])
		}
		d.RevisionID = rev
	default:
		return d, fmt.Errorf("%w: expected 2 or 3 elements, got %d", ErrInvalidDescriptor, len(tuple))
	}

	d.PrimaryID = strings.TrimSpace(tuple[1])
	if d.PrimaryID == "" {
		return d, fmt.Errorf("%w: empty id", ErrInvalidDescriptor)
	}

	code, err := CanonicalLangcode(tuple[0])
	if err != nil {
		return d, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	d.Langcode = code

	return d, nil
}

// ParseDescriptors converts every tuple, stopping at the first invalid one.
func ParseDescriptors(tuples [][]string) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(tuples))
	for i, tuple := range tuples {
		d, err := ParseDescriptor(tuple)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// CanonicalLangcode normalizes a BCP 47 language code. Empty and "und"
// both map to the empty string, meaning "default language".
func CanonicalLangcode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, "und") {
		return "", nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("parsing langcode %q: %w", code, err)
	}
	return tag.String(), nil
}
