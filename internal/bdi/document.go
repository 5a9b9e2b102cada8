// Package bdi holds the canonical Belief-Desire-Intention document and the
// pure functions that reconcile legacy document shapes into it.
package bdi

import (
	"maps"
	"slices"
)

// Canonical top-level keys. No other key is ever written back.
const (
	KeyDomainSummary = "domain_summary"
	KeyBeneficiario  = "beneficiario"
	KeyDesires       = "desires"
	KeyBeliefs       = "beliefs"
	KeyIntentions    = "intentions"

	// legacyPersonaKey is the pre-beneficiary name of the persona mapping.
	legacyPersonaKey = "persona"
)

// Keys lists the canonical keys in document order.
var Keys = []string{KeyDomainSummary, KeyBeneficiario, KeyDesires, KeyBeliefs, KeyIntentions}

// Document is the canonical single-beneficiary BDI document of a session.
// Sequence entries are kept as decoded JSON values: their shape is not
// validated and malformed entries are persisted as-is.
type Document struct {
	DomainSummary string         `json:"domain_summary"`
	Beneficiario  map[string]any `json:"beneficiario"`
	Desires       []any          `json:"desires"`
	Beliefs       []any          `json:"beliefs"`
	Intentions    []any          `json:"intentions"`
}

// Empty returns the all-empty skeleton a new session starts with.
func Empty() Document {
	return Document{
		DomainSummary: "",
		Beneficiario:  map[string]any{},
		Desires:       []any{},
		Beliefs:       []any{},
		Intentions:    []any{},
	}
}

// Update carries a partial BDI update. A nil field means "no update
// requested"; a non-nil field (including an empty sequence) replaces the
// stored value in full.
type Update struct {
	DomainSummary *string
	Beneficiario  *map[string]any
	Desires       *[]any
	Beliefs       *[]any
	Intentions    *[]any
}

// IsEmpty reports whether no field is supplied.
func (u Update) IsEmpty() bool {
	return u.DomainSummary == nil && u.Beneficiario == nil && u.Desires == nil &&
		u.Beliefs == nil && u.Intentions == nil
}

// NormalizeBeneficiary extracts the beneficiary mapping from a decoded
// document, reading the canonical "beneficiario" key or the legacy "persona"
// key. A canonical mapping wins whenever present, even when empty; "persona"
// is read only when the canonical key is missing or not a mapping. Returns an
// empty mapping when neither holds a mapping.
func NormalizeBeneficiary(raw map[string]any) map[string]any {
	if canonical, ok := raw[KeyBeneficiario].(map[string]any); ok && canonical != nil {
		return maps.Clone(canonical)
	}
	if persona, ok := raw[legacyPersonaKey].(map[string]any); ok && persona != nil {
		return maps.Clone(persona)
	}
	return map[string]any{}
}

// FromRaw seeds a canonical document from any decoded JSON object. Unknown
// top-level keys are dropped, and missing or mistyped fields take their
// empty form. raw may be nil.
func FromRaw(raw map[string]any) Document {
	doc := Empty()
	if raw == nil {
		return doc
	}
	if s, ok := raw[KeyDomainSummary].(string); ok {
		doc.DomainSummary = s
	}
	doc.Beneficiario = NormalizeBeneficiary(raw)
	doc.Desires = sequence(raw[KeyDesires])
	doc.Beliefs = sequence(raw[KeyBeliefs])
	doc.Intentions = sequence(raw[KeyIntentions])
	return doc
}

// Merge applies u on top of the canonical fields of existing and returns a
// new five-key document. Supplied fields replace verbatim; element-wise
// merging is the caller's job (read, concatenate, pass the result).
// Neither input is modified and the result shares no top-level slice or map
// with them.
func Merge(existing map[string]any, u Update) Document {
	return Apply(FromRaw(existing), u)
}

// Apply is Merge for a document that is already canonical.
func Apply(doc Document, u Update) Document {
	result := doc.Clone()
	if u.DomainSummary != nil {
		result.DomainSummary = *u.DomainSummary
	}
	if u.Beneficiario != nil {
		result.Beneficiario = cloneMap(*u.Beneficiario)
	}
	if u.Desires != nil {
		result.Desires = cloneSeq(*u.Desires)
	}
	if u.Beliefs != nil {
		result.Beliefs = cloneSeq(*u.Beliefs)
	}
	if u.Intentions != nil {
		result.Intentions = cloneSeq(*u.Intentions)
	}
	return result
}

// Clone returns a copy whose top-level slices and map are not shared.
func (d Document) Clone() Document {
	return Document{
		DomainSummary: d.DomainSummary,
		Beneficiario:  cloneMap(d.Beneficiario),
		Desires:       cloneSeq(d.Desires),
		Beliefs:       cloneSeq(d.Beliefs),
		Intentions:    cloneSeq(d.Intentions),
	}
}

// Map returns the document as a generic JSON object with exactly the
// canonical keys.
func (d Document) Map() map[string]any {
	c := d.Clone()
	return map[string]any{
		KeyDomainSummary: c.DomainSummary,
		KeyBeneficiario:  c.Beneficiario,
		KeyDesires:       c.Desires,
		KeyBeliefs:       c.Beliefs,
		KeyIntentions:    c.Intentions,
	}
}

func sequence(v any) []any {
	if seq, ok := v.([]any); ok {
		return cloneSeq(seq)
	}
	return []any{}
}

func cloneSeq(s []any) []any {
	if s == nil {
		return []any{}
	}
	return slices.Clone(s)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return maps.Clone(m)
}
