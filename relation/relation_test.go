package relation

import (
	"errors"
	"testing"

	"github.com/tsawler/veil/detect"
)

func span(entity string, start, end int) detect.Span {
	return detect.Span{EntityType: entity, Start: start, End: end, Score: 0.9}
}

// findSpan locates text in the document, failing the test if absent.
func findSpan(t *testing.T, text, value, entity string) detect.Span {
	t.Helper()
	for i := 0; i+len(value) <= len(text); i++ {
		if text[i:i+len(value)] == value {
			return span(entity, i, i+len(value))
		}
	}
	t.Fatalf("value %q not found in text", value)
	return detect.Span{}
}

func TestAssign_SameLineWins(t *testing.T) {
	text := "John Smith 0412 345 678\nJane Doe lives elsewhere"
	spans := []detect.Span{
		findSpan(t, text, "John Smith", "PERSON"),
		findSpan(t, text, "Jane Doe", "PERSON"),
		findSpan(t, text, "0412 345 678", "PHONE_NUMBER"),
	}

	owners, assignments := Assign(text, spans)
	if len(owners) != 2 {
		t.Fatalf("expected 2 owners, got %d", len(owners))
	}
	if owners[0].Name != "John Smith" || owners[0].ID != 1 {
		t.Errorf("owner 1 = %+v, want John Smith with ID 1", owners[0])
	}

	phone := assignmentFor(t, assignments, "PHONE_NUMBER")
	if phone.OwnerID != 1 {
		t.Errorf("phone attributed to owner %d, want 1 (same line)", phone.OwnerID)
	}
}

func TestAssign_SameLineBeatsEmailMatch(t *testing.T) {
	// The email names Jane, but John shares its line; the line rule is
	// consulted first.
	text := "John Smith jane.doe@example.com\nJane Doe"
	spans := []detect.Span{
		findSpan(t, text, "John Smith", "PERSON"),
		findSpan(t, text, "Jane Doe", "PERSON"),
		findSpan(t, text, "jane.doe@example.com", "EMAIL_ADDRESS"),
	}

	_, assignments := Assign(text, spans)
	email := assignmentFor(t, assignments, "EMAIL_ADDRESS")
	if email.OwnerID != 1 {
		t.Errorf("email attributed to owner %d, want 1", email.OwnerID)
	}
}

func TestAssign_EmailLocalPartMatch(t *testing.T) {
	// No person shares the email's line; the local part picks Jane over
	// the nearer John.
	text := "John Smith\nContact: jane.doe@example.com\nJane Doe"
	spans := []detect.Span{
		findSpan(t, text, "John Smith", "PERSON"),
		findSpan(t, text, "Jane Doe", "PERSON"),
		findSpan(t, text, "jane.doe@example.com", "EMAIL_ADDRESS"),
	}

	_, assignments := Assign(text, spans)
	email := assignmentFor(t, assignments, "EMAIL_ADDRESS")
	if email.OwnerID != 2 {
		t.Errorf("email attributed to owner %d, want 2 (local-part match)", email.OwnerID)
	}
}

func TestAssign_EmailShortTokensIgnored(t *testing.T) {
	// "Al Bo" has no token of length >= 3, so the local part cannot match
	// and the nearest rule takes over.
	text := "Al Bo\n\n\nxx al@example.com"
	spans := []detect.Span{
		findSpan(t, text, "Al Bo", "PERSON"),
		findSpan(t, text, "al@example.com", "EMAIL_ADDRESS"),
	}

	_, assignments := Assign(text, spans)
	email := assignmentFor(t, assignments, "EMAIL_ADDRESS")
	// Nearest (and only) owner still wins via rule 3.
	if email.OwnerID != 1 {
		t.Errorf("email attributed to owner %d, want 1 (nearest)", email.OwnerID)
	}
}

func TestAssign_NearestOwnerFallback(t *testing.T) {
	text := "John Smith\n\n123 456 782 filler\n\nlots of padding on this line\nJane Doe"
	spans := []detect.Span{
		findSpan(t, text, "John Smith", "PERSON"),
		findSpan(t, text, "Jane Doe", "PERSON"),
		findSpan(t, text, "123 456 782", "AU_TFN"),
	}

	_, assignments := Assign(text, spans)
	tfn := assignmentFor(t, assignments, "AU_TFN")
	if tfn.OwnerID != 1 {
		t.Errorf("TFN attributed to owner %d, want 1 (nearest start)", tfn.OwnerID)
	}
}

func TestAssign_NoOwners(t *testing.T) {
	text := "reach me at 0412 345 678"
	spans := []detect.Span{findSpan(t, text, "0412 345 678", "PHONE_NUMBER")}

	owners, assignments := Assign(text, spans)
	if len(owners) != 0 {
		t.Fatalf("expected no owners, got %d", len(owners))
	}
	if assignments[0].OwnerID != 0 {
		t.Errorf("OwnerID = %d, want 0 for unowned span", assignments[0].OwnerID)
	}
}

func TestAssign_PersonSpansNeverOwned(t *testing.T) {
	text := "John Smith and Jane Doe"
	spans := []detect.Span{
		findSpan(t, text, "John Smith", "PERSON"),
		findSpan(t, text, "Jane Doe", "PERSON"),
	}

	_, assignments := Assign(text, spans)
	for _, a := range assignments {
		if a.OwnerID != 0 {
			t.Errorf("PERSON span %q has OwnerID %d, want 0",
				text[a.Span.Start:a.Span.End], a.OwnerID)
		}
	}
}

func TestFoldASCII(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"José", "jose"},
		{"O'Brien", "obrien"},
		{"MÜLLER", "muller"},
		{"smith2", "smith2"},
		{"--", ""},
	}
	for _, tt := range tests {
		if got := foldASCII(tt.in); got != tt.want {
			t.Errorf("foldASCII(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitLines(t *testing.T) {
	lines := splitLines("ab\ncd\n")
	want := []line{{0, 3}, {3, 6}}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, lines[i], want[i])
		}
	}

	if got := splitLines("no newline"); len(got) != 1 || got[0].end != 10 {
		t.Errorf("single line split = %+v", got)
	}
}

func assignmentFor(t *testing.T, assignments []Assignment, entity string) Assignment {
	t.Helper()
	for _, a := range assignments {
		if a.Span.EntityType == entity {
			return a
		}
	}
	t.Fatalf("no assignment for %s", entity)
	return Assignment{}
}

func TestMask_RelationshipPlaceholders(t *testing.T) {
	text := "John Smith john.smith@example.com"
	spans := []detect.Span{
		findSpan(t, text, "John Smith", "PERSON"),
		findSpan(t, text, "john.smith@example.com", "EMAIL_ADDRESS"),
	}

	masked, err := Mask(text, spans)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	want := "PERSON_1 <EMAIL_ADDRESS_PERSON_1>"
	if masked != want {
		t.Errorf("Mask() = %q, want %q", masked, want)
	}
}

func TestMask_UnownedSpan(t *testing.T) {
	text := "call 0412 345 678 today"
	spans := []detect.Span{findSpan(t, text, "0412 345 678", "PHONE_NUMBER")}

	masked, err := Mask(text, spans)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	want := "call <PHONE_NUMBER> today"
	if masked != want {
		t.Errorf("Mask() = %q, want %q", masked, want)
	}
}

func TestMask_MultipleOwners(t *testing.T) {
	text := "John Smith 0412 345 678\nJane Doe jane.doe@example.com"
	spans := []detect.Span{
		findSpan(t, text, "John Smith", "PERSON"),
		findSpan(t, text, "0412 345 678", "PHONE_NUMBER"),
		findSpan(t, text, "Jane Doe", "PERSON"),
		findSpan(t, text, "jane.doe@example.com", "EMAIL_ADDRESS"),
	}

	masked, err := Mask(text, spans)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	want := "PERSON_1 <PHONE_NUMBER_PERSON_1>\nPERSON_2 <EMAIL_ADDRESS_PERSON_2>"
	if masked != want {
		t.Errorf("Mask() = %q, want %q", masked, want)
	}
}

func TestMask_InvalidSpan(t *testing.T) {
	_, err := Mask("short", []detect.Span{span("PERSON", 2, 99)})
	if !errors.Is(err, ErrInvalidSpan) {
		t.Errorf("got %v, want ErrInvalidSpan", err)
	}
	_, err = Mask("short", []detect.Span{span("PERSON", 3, 3)})
	if !errors.Is(err, ErrInvalidSpan) {
		t.Errorf("empty span: got %v, want ErrInvalidSpan", err)
	}
}

func TestAnonymize(t *testing.T) {
	text := "John Smith john.smith@example.com"
	spans := []detect.Span{
		findSpan(t, text, "John Smith", "PERSON"),
		findSpan(t, text, "john.smith@example.com", "EMAIL_ADDRESS"),
	}

	out, err := Anonymize(text, spans, nil)
	if err != nil {
		t.Fatalf("Anonymize() error: %v", err)
	}
	want := "<PERSON> <EMAIL_ADDRESS>"
	if out != want {
		t.Errorf("Anonymize() = %q, want %q", out, want)
	}
}

func TestAnonymize_CustomOperators(t *testing.T) {
	text := "ring 0412 345 678"
	spans := []detect.Span{findSpan(t, text, "0412 345 678", "PHONE_NUMBER")}

	out, err := Anonymize(text, spans, map[string]string{"PHONE_NUMBER": "[redacted]"})
	if err != nil {
		t.Fatalf("Anonymize() error: %v", err)
	}
	if out != "ring [redacted]" {
		t.Errorf("Anonymize() = %q", out)
	}
}

func TestMaskDigits(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0412 345 678", "**********"},
		{"+61 2 9999 0000", "***********"},
		{"no digits", ""},
	}
	for _, tt := range tests {
		if got := MaskDigits(tt.in); got != tt.want {
			t.Errorf("MaskDigits(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	ops := Placeholders([]detect.Span{
		span("PERSON", 0, 1),
		span("PERSON", 2, 3),
		span("AU_TFN", 4, 5),
	})
	if len(ops) != 2 {
		t.Fatalf("expected 2 operators, got %d", len(ops))
	}
	if ops["AU_TFN"] != "<AU_TFN>" {
		t.Errorf("operator = %q, want <AU_TFN>", ops["AU_TFN"])
	}
}
