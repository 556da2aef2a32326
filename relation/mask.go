package relation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tsawler/veil/detect"
)

// ErrInvalidSpan is returned when a span's offsets are empty, inverted,
// or out of the text's bounds.
var ErrInvalidSpan = errors.New("invalid span")

// replacement is one planned splice into the original text.
type replacement struct {
	start int
	end   int
	text  string
}

// MaskDigits replaces every digit of s with '*' and returns only the
// asterisks, one per digit. Useful for rendering phone numbers as a
// length-preserving digit mask.
func MaskDigits(s string) string {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return strings.Repeat("*", n)
}

// Placeholders builds the type-level operator map used by plain
// anonymization: each entity type present in spans maps to "<TYPE>".
func Placeholders(spans []detect.Span) map[string]string {
	ops := make(map[string]string)
	for _, s := range spans {
		if _, ok := ops[s.EntityType]; !ok {
			ops[s.EntityType] = "<" + s.EntityType + ">"
		}
	}
	return ops
}

// Anonymize replaces each span with its type placeholder ("<TYPE>"), or
// with the caller's operator value when operators maps the type.
// Replacements are spliced from the highest start offset down so earlier
// offsets stay valid.
func Anonymize(text string, spans []detect.Span, operators map[string]string) (string, error) {
	repls := make([]replacement, 0, len(spans))
	for _, s := range spans {
		if err := checkSpan(text, s); err != nil {
			return "", err
		}
		rep, ok := operators[s.EntityType]
		if !ok {
			rep = "<" + s.EntityType + ">"
		}
		repls = append(repls, replacement{start: s.Start, end: s.End, text: rep})
	}
	return splice(text, repls), nil
}

// Mask produces relationship-aware masked text:
//
//   - a PERSON span that is itself an owner renders as PERSON_<id>
//     (no angle brackets); any other PERSON span renders <PERSON>
//   - a non-PERSON span attributed to owner N renders <TYPE_PERSON_N>
//   - an unowned non-PERSON span renders <TYPE>
//
// PHONE_NUMBER spans additionally have a digit mask computed from the
// original value; the relationship placeholder still wins, keeping the
// masked output free of raw digit counts.
func Mask(text string, spans []detect.Span) (string, error) {
	for _, s := range spans {
		if err := checkSpan(text, s); err != nil {
			return "", err
		}
	}

	owners, assignments := Assign(text, spans)

	personLabels := make(map[int]string, len(owners))
	for _, o := range owners {
		personLabels[o.ID] = fmt.Sprintf("PERSON_%d", o.ID)
	}

	repls := make([]replacement, 0, len(assignments))

	for _, a := range assignments {
		s := a.Span
		original := text[s.Start:s.End]

		if s.EntityType == "PERSON" {
			rep := "<PERSON>"
			for _, o := range owners {
				if o.Start == s.Start && o.End == s.End {
					rep = personLabels[o.ID]
					break
				}
			}
			repls = append(repls, replacement{start: s.Start, end: s.End, text: rep})
			continue
		}

		var rep string
		if a.OwnerID != 0 {
			rep = fmt.Sprintf("<%s_PERSON_%d>", s.EntityType, a.OwnerID)
		} else {
			rep = "<" + s.EntityType + ">"
		}

		if s.EntityType == "PHONE_NUMBER" {
			// Length-preserving digit mask is available, but the
			// relationship placeholder takes precedence.
			_ = MaskDigits(original)
		}

		repls = append(repls, replacement{start: s.Start, end: s.End, text: rep})
	}

	return splice(text, repls), nil
}

// checkSpan validates one span against the text.
func checkSpan(text string, s detect.Span) error {
	if s.End <= s.Start || s.Start < 0 || s.End > len(text) {
		return fmt.Errorf("%w: %s [%d,%d) in text of length %d",
			ErrInvalidSpan, s.EntityType, s.Start, s.End, len(text))
	}
	return nil
}

// splice applies replacements sorted by start descending, so each splice
// leaves all earlier offsets untouched.
func splice(text string, repls []replacement) string {
	sort.Slice(repls, func(i, j int) bool {
		return repls[i].start > repls[j].start
	})

	masked := text
	for _, r := range repls {
		masked = masked[:r.start] + r.text + masked[r.end:]
	}
	return masked
}
