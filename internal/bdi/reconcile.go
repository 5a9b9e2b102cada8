package bdi

import (
	"fmt"
	"strings"
)

// Desire is a read-side view of a desire entry.
type Desire struct {
	ID             string
	Statement      string
	Priority       string
	SuccessMetrics []string
	Motivation     string
}

// Belief is a read-side view of a belief entry.
type Belief struct {
	Subject        string
	Statement      string
	Confidence     string
	RelatedDesires []string
	Evidence       string
}

// DesireID returns the identifier of a desire entry ("desire_id", or the
// legacy "id").
func DesireID(entry any) string {
	return firstString(entry, "desire_id", "id")
}

// BeliefSubject returns the subject of a belief entry ("subject", or "id").
func BeliefSubject(entry any) string {
	return firstString(entry, "subject", "id")
}

// BeliefStatement returns the statement of a belief entry ("statement", or
// the legacy "definition").
func BeliefStatement(entry any) string {
	return firstString(entry, "statement", "definition")
}

// RelatedDesireIDs returns the desire identifiers a belief refers to.
// related_desires may be a flat list of ids, a list of objects carrying
// desire_id/id, a single id, or a legacy object wrapping such a list.
func RelatedDesireIDs(entry any) []string {
	m, ok := entry.(map[string]any)
	if !ok {
		return nil
	}
	return extractIDs(m["related_desires"])
}

func extractIDs(v any) []string {
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	case []any:
		var ids []string
		for _, item := range val {
			ids = append(ids, extractIDs(item)...)
		}
		return ids
	case map[string]any:
		for _, key := range []string{"desire_ids", "desires", "ids", "items"} {
			if nested, ok := val[key]; ok {
				return extractIDs(nested)
			}
		}
		if id := DesireID(val); id != "" {
			return []string{id}
		}
	}
	return nil
}

// DesireViews returns the read-side views of the document's desire entries.
// Entries that are not objects are skipped.
func (d Document) DesireViews() []Desire {
	views := make([]Desire, 0, len(d.Desires))
	for _, entry := range d.Desires {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		views = append(views, Desire{
			ID:             DesireID(m),
			Statement:      firstString(m, "desire_statement", "statement", "description"),
			Priority:       firstString(m, "priority"),
			SuccessMetrics: stringList(m["success_metrics"]),
			Motivation:     firstString(m, "motivation"),
		})
	}
	return views
}

// BeliefViews returns the read-side views of the document's belief entries.
// Entries that are not objects are skipped.
func (d Document) BeliefViews() []Belief {
	views := make([]Belief, 0, len(d.Beliefs))
	for _, entry := range d.Beliefs {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		views = append(views, Belief{
			Subject:        BeliefSubject(m),
			Statement:      BeliefStatement(m),
			Confidence:     scalar(m["confidence"]),
			RelatedDesires: RelatedDesireIDs(m),
			Evidence:       firstString(m, "evidence", "source"),
		})
	}
	return views
}

func firstString(entry any, keys ...string) string {
	m, ok := entry.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range keys {
		if s := scalar(m[key]); s != "" {
			return s
		}
	}
	return ""
}

// scalar renders strings and numbers; anything else is "".
func scalar(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64, int, int64, bool:
		return fmt.Sprint(val)
	}
	return ""
}

func stringList(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := scalar(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	}
	return nil
}
