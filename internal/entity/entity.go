// Package entity defines the addressable records processed by bulk operations
// and the descriptors that identify them at the source boundary.
package entity

import (
	"errors"
	"fmt"
	"sort"
)

// Publication states understood by the built-in operations.
const (
	StatusPublished   = "published"
	StatusUnpublished = "unpublished"
)

// ErrTranslationNotFound is returned when a record has no variant for the requested language.
var ErrTranslationNotFound = errors.New("translation not found")

// Entity is a single addressable domain object selected for bulk processing.
type Entity interface {
	EntityType() string
	EntityID() string
	Revision() int64
	Language() string
	Label() string
}

// Translatable is implemented by entities that may carry several language variants.
type Translatable interface {
	Entity

	// IsTranslatable reports whether the entity actually has more than one variant.
	IsTranslatable() bool

	// Translation projects the entity into the given language variant.
	Translation(langcode string) (Entity, error)

	// Languages lists the available variants in stable order.
	Languages() []string
}

// Translation holds the language-dependent values of a record.
type Translation struct {
	Langcode string            `json:"langcode"         yaml:"langcode"`
	Label    string            `json:"label"            yaml:"label"`
	Status   string            `json:"status,omitempty" yaml:"status,omitempty"`
	Fields   map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Record is the concrete entity stored by the storage backends.
// A Record returned from Translation shares its translations with the
// original, so edits through either value are visible to both.
type Record struct {
	Type            string                  `json:"type"             yaml:"type"`
	ID              string                  `json:"id"               yaml:"id"`
	RevisionID      int64                   `json:"revision_id"      yaml:"revision_id"`
	UUID            string                  `json:"uuid,omitempty"   yaml:"uuid,omitempty"`
	Bundle          string                  `json:"bundle,omitempty" yaml:"bundle,omitempty"`
	DefaultLangcode string                  `json:"default_langcode" yaml:"default_langcode"`
	Translations    map[string]*Translation `json:"translations"     yaml:"translations"`

	// active is the projected language; empty means the default language.
	active string
}

var _ Translatable = (*Record)(nil)

// NewRecord creates a record with a single default-language translation.
func NewRecord(recordType, id, langcode, label string) (*Record, error) {
	code, err := CanonicalLangcode(langcode)
	if err != nil {
		return nil, err
	}
	r := &Record{
		Type:            recordType,
		ID:              id,
		DefaultLangcode: code,
		Translations:    make(map[string]*Translation),
	}
	r.Translations[code] = &Translation{Langcode: code, Label: label, Status: StatusPublished}
	return r, nil
}

// AddTranslation adds or replaces a language variant. The langcode is canonicalized.
func (r *Record) AddTranslation(t Translation) error {
	code, err := CanonicalLangcode(t.Langcode)
	if err != nil {
		return err
	}
	if code == "" {
		code = r.DefaultLangcode
	}
	t.Langcode = code
	if r.Translations == nil {
		r.Translations = make(map[string]*Translation)
	}
	r.Translations[code] = &t
	if r.DefaultLangcode == "" {
		r.DefaultLangcode = code
	}
	return nil
}

// EntityType returns the record type identifier.
func (r *Record) EntityType() string { return r.Type }

// EntityID returns the primary identifier.
func (r *Record) EntityID() string { return r.ID }

// Revision returns the revision this value was loaded from.
func (r *Record) Revision() int64 { return r.RevisionID }

// Language returns the language this value is projected into.
func (r *Record) Language() string {
	if r.active != "" {
		return r.active
	}
	return r.DefaultLangcode
}

// Label returns the label of the active translation.
func (r *Record) Label() string {
	if t := r.current(); t != nil {
		return t.Label
	}
	return ""
}

// Status returns the publication status of the active translation.
func (r *Record) Status() string {
	if t := r.current(); t != nil {
		return t.Status
	}
	return ""
}

// SetLabel updates the label of the active translation.
func (r *Record) SetLabel(label string) {
	if t := r.current(); t != nil {
		t.Label = label
	}
}

// SetStatus updates the publication status of the active translation.
func (r *Record) SetStatus(status string) {
	if t := r.current(); t != nil {
		t.Status = status
	}
}

// Field returns a value of the active translation. The keys "label",
// "status", "langcode" and "bundle" are always available.
func (r *Record) Field(name string) (string, bool) {
	t := r.current()
	switch name {
	case "bundle":
		return r.Bundle, true
	case "langcode":
		return r.Language(), true
	case "label":
		if t == nil {
			return "", false
		}
		return t.Label, true
	case "status":
		if t == nil {
			return "", false
		}
		return t.Status, true
	}
	if t == nil {
		return "", false
	}
	v, ok := t.Fields[name]
	return v, ok
}

// IsTranslatable reports whether the record has more than one language variant.
func (r *Record) IsTranslatable() bool {
	return len(r.Translations) > 1
}

// Translation projects the record into langcode. An empty or "und" langcode
// selects the default language.
func (r *Record) Translation(langcode string) (Entity, error) {
	code, err := CanonicalLangcode(langcode)
	if err != nil {
		return nil, err
	}
	if code == "" {
		code = r.DefaultLangcode
	}
	if _, ok := r.Translations[code]; !ok {
		return nil, fmt.Errorf("%w: %s %s has no %q variant", ErrTranslationNotFound, r.Type, r.ID, code)
	}
	projected := *r
	projected.active = code
	return &projected, nil
}

// Languages returns the available langcodes sorted alphabetically.
func (r *Record) Languages() []string {
	codes := make([]string, 0, len(r.Translations))
	for code := range r.Translations {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Clone returns a deep copy that shares nothing with r, projected into the
// default language.
func (r *Record) Clone() *Record {
	c := *r
	c.active = ""
	c.Translations = make(map[string]*Translation, len(r.Translations))
	for code, t := range r.Translations {
		tc := *t
		if t.Fields != nil {
			tc.Fields = make(map[string]string, len(t.Fields))
			for k, v := range t.Fields {
				tc.Fields[k] = v
			}
		}
		c.Translations[code] = &tc
	}
	return &c
}

func (r *Record) current() *Translation {
	return r.Translations[r.Language()]
}
