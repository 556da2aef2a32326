// Package relation links detected PII spans to the people they belong to
// and produces relationship-aware masked text. A PERSON span becomes an
// owner; every other span is attributed to an owner by a series of
// heuristics, so that "j.smith@example.com" masks as
// <EMAIL_ADDRESS_PERSON_1> rather than an anonymous <EMAIL_ADDRESS>.
package relation

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tsawler/veil/detect"
)

// Owner is a PERSON span promoted to an identity that other spans can be
// attributed to. IDs are assigned 1..N in span order.
type Owner struct {
	ID    int
	Start int
	End   int
	Name  string
}

// Assignment attributes one detected span to an owner. OwnerID 0 means
// unowned; PERSON spans are always unowned (they are the owners).
type Assignment struct {
	Span    detect.Span
	OwnerID int
}

// line is a segment of the text including its terminator, so line spans
// tile the whole text.
type line struct {
	start int
	end   int
}

// splitLines splits text on '\n' keeping the terminator with each line.
// A text with no newline is a single line covering everything.
func splitLines(text string) []line {
	var lines []line
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, line{start: start, end: i + 1})
			start = i + 1
		}
	}
	if start < len(text) || len(lines) == 0 {
		lines = append(lines, line{start: start, end: len(text)})
	}
	return lines
}

// foldASCII lowercases s and strips diacritics and every non-alphanumeric
// rune, for fuzzy comparison of names against email local parts.
func foldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var sb strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// nameTokens splits a person name on non-alphanumeric runes.
func nameTokens(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// localPartMatches reports whether any name token of length >= 3 occurs
// inside the normalized email local part.
func localPartMatches(localPart string, tokens []string) bool {
	lp := foldASCII(localPart)
	for _, t := range tokens {
		if len(t) >= 3 && strings.Contains(lp, foldASCII(t)) {
			return true
		}
	}
	return false
}

// nearestOwner returns the ID of the owner whose start offset is closest
// to position, or 0 when owners is empty. Ties keep the earlier owner.
func nearestOwner(owners []Owner, position int) int {
	bestID := 0
	bestDist := -1
	for _, o := range owners {
		d := o.Start - position
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			bestDist = d
			bestID = o.ID
		}
	}
	return bestID
}

// Assign collects PERSON spans as owners and attributes every other span
// to an owner. For each non-PERSON span the first matching rule wins:
//
//  1. Same-line proximity: if a person's span lies entirely on the same
//     line as the span, pick the person nearest by start offset. Only
//     the first line containing the span is consulted.
//  2. Email local-part match (EMAIL_ADDRESS only): a person whose name
//     contains a token of length >= 3 found in the address's local part.
//  3. Nearest person anywhere in the document by start-offset distance.
//
// With no owners at all, every assignment is unowned.
func Assign(text string, spans []detect.Span) ([]Owner, []Assignment) {
	var owners []Owner
	for _, s := range spans {
		if s.EntityType != "PERSON" {
			continue
		}
		owners = append(owners, Owner{
			ID:    len(owners) + 1,
			Start: s.Start,
			End:   s.End,
			Name:  text[s.Start:s.End],
		})
	}

	lines := splitLines(text)

	tokensByOwner := make(map[int][]string, len(owners))
	for _, o := range owners {
		tokensByOwner[o.ID] = nameTokens(o.Name)
	}

	assignments := make([]Assignment, 0, len(spans))

	for _, s := range spans {
		if s.EntityType == "PERSON" {
			assignments = append(assignments, Assignment{Span: s})
			continue
		}

		ownerID := 0

		// Rule 1: a person on the same line.
		for _, ln := range lines {
			if s.Start >= ln.start && s.End <= ln.end {
				bestDist := -1
				for _, o := range owners {
					if o.Start < ln.start || o.End > ln.end {
						continue
					}
					d := o.Start - s.Start
					if d < 0 {
						d = -d
					}
					if bestDist < 0 || d < bestDist {
						bestDist = d
						ownerID = o.ID
					}
				}
				break
			}
		}

		// Rule 2: email local part carries the person's name.
		if ownerID == 0 && s.EntityType == "EMAIL_ADDRESS" {
			value := text[s.Start:s.End]
			if at := strings.Index(value, "@"); at >= 0 {
				localPart := value[:at]
				for _, o := range owners {
					if localPartMatches(localPart, tokensByOwner[o.ID]) {
						ownerID = o.ID
						break
					}
				}
			}
		}

		// Rule 3: nearest person overall.
		if ownerID == 0 {
			ownerID = nearestOwner(owners, s.Start)
		}

		assignments = append(assignments, Assignment{Span: s, OwnerID: ownerID})
	}

	return owners, assignments
}
