package bdi

import (
	"fmt"
	"slices"
	"strings"
)

// Markdown renders the document as a human-readable report. title is used
// as the top-level heading.
func Markdown(title string, doc Document) string {
	var b strings.Builder

	if title == "" {
		title = "BDI document"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("## Domain summary\n\n")
	if s := strings.TrimSpace(doc.DomainSummary); s != "" {
		b.WriteString(s + "\n\n")
	} else {
		b.WriteString("_Not set._\n\n")
	}

	b.WriteString("## Beneficiary\n\n")
	if len(doc.Beneficiario) == 0 {
		b.WriteString("_Not set._\n\n")
	} else {
		keys := make([]string, 0, len(doc.Beneficiario))
		for k := range doc.Beneficiario {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- **%s**: %s\n", k, inline(doc.Beneficiario[k]))
		}
		b.WriteString("\n")
	}

	desires := doc.DesireViews()
	fmt.Fprintf(&b, "## Desires (%d)\n\n", len(desires))
	for _, d := range desires {
		fmt.Fprintf(&b, "### %s\n\n", headingOr(d.ID, "Desire"))
		if d.Statement != "" {
			b.WriteString(d.Statement + "\n\n")
		}
		if d.Priority != "" {
			fmt.Fprintf(&b, "- Priority: %s\n", d.Priority)
		}
		if d.Motivation != "" {
			fmt.Fprintf(&b, "- Motivation: %s\n", d.Motivation)
		}
		for _, m := range d.SuccessMetrics {
			fmt.Fprintf(&b, "- Success metric: %s\n", m)
		}
		b.WriteString("\n")
	}

	beliefs := doc.BeliefViews()
	fmt.Fprintf(&b, "## Beliefs (%d)\n\n", len(beliefs))
	for _, bl := range beliefs {
		fmt.Fprintf(&b, "### %s\n\n", headingOr(bl.Subject, "Belief"))
		if bl.Statement != "" {
			b.WriteString(bl.Statement + "\n\n")
		}
		if bl.Confidence != "" {
			fmt.Fprintf(&b, "- Confidence: %s\n", bl.Confidence)
		}
		if len(bl.RelatedDesires) > 0 {
			fmt.Fprintf(&b, "- Related desires: %s\n", strings.Join(bl.RelatedDesires, ", "))
		}
		if bl.Evidence != "" {
			fmt.Fprintf(&b, "- Evidence: %s\n", bl.Evidence)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Intentions (%d)\n\n", len(doc.Intentions))
	for i, intention := range doc.Intentions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, inline(intention))
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func headingOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// inline renders a JSON value on one line. Objects prefer a title-like field.
func inline(v any) string {
	switch val := v.(type) {
	case map[string]any:
		if s := firstString(val, "intention", "title", "name", "description", "statement"); s != "" {
			return s
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, inline(val[k])))
		}
		return strings.Join(parts, "; ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, inline(item))
		}
		return strings.Join(parts, ", ")
	case nil:
		return ""
	default:
		if s := scalar(val); s != "" {
			return s
		}
		return fmt.Sprint(val)
	}
}
