// internal/format/protect.go
package format

import (
	"fmt"
	"strings"
)

// Regions splits rendered text into protected and unprotected spans.
type Regions struct {
	Protected   []string
	Unprotected []string
}

// HasProtectedBullets reports whether the text carries macro content the
// polish pass must preserve, by marker or by the bullet labels themselves.
func HasProtectedBullets(text string) bool {
	return strings.Contains(text, ProtectStart) ||
		strings.Contains(text, "• Calories") ||
		strings.Contains(text, "Totals")
}

// ExtractProtectedRegions walks the text and collects every marker-delimited
// span (markers included) plus the unprotected remainder.
func ExtractProtectedRegions(text string) Regions {
	var regions Regions
	rest := text

	for {
		start := strings.Index(rest, ProtectStart)
		if start < 0 {
			break
		}
		endRel := strings.Index(rest[start:], ProtectEnd)
		if endRel < 0 {
			// Unterminated marker: treat the remainder as protected rather
			// than exposing locked numbers to the polish pass.
			regions.addUnprotected(rest[:start])
			regions.Protected = append(regions.Protected, rest[start:])
			return regions
		}
		end := start + endRel + len(ProtectEnd)

		regions.addUnprotected(rest[:start])
		regions.Protected = append(regions.Protected, rest[start:end])
		rest = rest[end:]
	}

	regions.addUnprotected(rest)
	return regions
}

func (r *Regions) addUnprotected(s string) {
	if strings.TrimSpace(s) != "" {
		r.Unprotected = append(r.Unprotected, s)
	}
}

// AuditProtected verifies that a rewritten message preserved every protected
// region of the original byte-for-byte and in order. This is the sentinel
// check run after the external polish pass.
func AuditProtected(original, rewritten string) error {
	want := ExtractProtectedRegions(original).Protected
	got := ExtractProtectedRegions(rewritten).Protected

	if len(got) != len(want) {
		return fmt.Errorf("protected region count changed: had %d, now %d", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("protected region %d was altered", i+1)
		}
	}
	return nil
}
