// Package decoder turns an opaque scanned string into structured reference
// fields. Decoding is pure and total: it never fails, it degrades to a plain
// text record when no rule recognizes the payload.
package decoder

import (
	"regexp"
	"strings"

	"github.com/packstation/station-server-go/internal/model"
)

var (
	// Order references look like two letters, a dash, digits: "AB-12345".
	orderRefPattern = regexp.MustCompile(`\b[A-Za-z]{2}-\d+\b`)
	// Package references are the first run of at least ten digits.
	packageRefPattern = regexp.MustCompile(`\d{10,}`)
)

// Labels recognized in free-text payloads. A labeled value runs until the
// next label or line break.
const (
	labelCustomer = "KUNDENNAME:"
	labelOrder    = "Referenz:"
	labelPackage  = "Tracking:"
)

var knownLabels = []string{labelCustomer, labelOrder, labelPackage}

// rule is one step of the decode cascade. It either claims its fields on the
// payload and reports true, or abstains. The first claiming rule wins; a
// field is never populated by two different rules.
type rule struct {
	name  string
	kind  model.FormatKind
	apply func(raw string, p *model.DecodedPayload) bool
}

var rules = []rule{
	{name: "caret_separated", kind: model.FormatCaretSeparated, apply: applyCaretSeparated},
	{name: "pattern_matching", kind: model.FormatPatternMatching, apply: applyPatternMatching},
}

// Decode extracts structured fields from a raw scanned payload. Same input
// always yields the same output. Empty input yields an empty record tagged
// FormatUnknown; input no rule recognizes yields FormatText.
func Decode(raw string) model.DecodedPayload {
	p := model.DecodedPayload{Raw: raw, FormatKind: model.FormatUnknown}
	if raw == "" {
		return p
	}

	p.FormatKind = model.FormatText
	for _, r := range rules {
		if r.apply(raw, &p) {
			p.FormatKind = r.kind
			break
		}
	}
	return p
}

// applyCaretSeparated handles reader firmware that emits caret-delimited
// frames: field 1 is the order reference, field 3 the package reference, and
// a non-empty field 2 names the customer.
func applyCaretSeparated(raw string, p *model.DecodedPayload) bool {
	fields := strings.Split(raw, "^")
	if len(fields) < 4 {
		return false
	}

	p.OrderRef = strings.TrimSpace(fields[1])
	p.PackageRef = strings.TrimSpace(fields[3])
	if customer := strings.TrimSpace(fields[2]); customer != "" {
		p.CustomerRef = "Kunde: " + customer
	}
	return true
}

// applyPatternMatching scrapes free-text payloads: an order reference by
// shape (falling back to the Referenz: label), a package reference as a long
// digit run (falling back to the Tracking: label), and a KUNDENNAME: labeled
// customer segment.
func applyPatternMatching(raw string, p *model.DecodedPayload) bool {
	orderRef := orderRefPattern.FindString(raw)
	if orderRef == "" {
		orderRef = labeledValue(raw, labelOrder)
	}

	packageRef := packageRefPattern.FindString(raw)
	if packageRef == "" {
		packageRef = labeledValue(raw, labelPackage)
	}

	customerRef := labeledValue(raw, labelCustomer)

	if orderRef == "" && packageRef == "" && customerRef == "" {
		return false
	}

	p.OrderRef = orderRef
	p.PackageRef = packageRef
	p.CustomerRef = customerRef
	return true
}

// labeledValue extracts the text following a label, trimmed at the next
// recognized label or line break.
func labeledValue(raw, label string) string {
	idx := strings.Index(raw, label)
	if idx < 0 {
		return ""
	}

	rest := raw[idx+len(label):]
	end := len(rest)

	if nl := strings.IndexAny(rest, "\r\n"); nl >= 0 && nl < end {
		end = nl
	}
	for _, other := range knownLabels {
		if other == label {
			continue
		}
		if li := strings.Index(rest, other); li >= 0 && li < end {
			end = li
		}
	}

	return strings.TrimSpace(rest[:end])
}
