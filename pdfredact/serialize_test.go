package pdfredact

import (
	"bytes"
	"testing"

	"github.com/tsawler/tabula/core"
)

func serialize(t *testing.T, obj core.Object) string {
	t.Helper()
	var buf bytes.Buffer
	if err := serializeObject(&buf, obj); err != nil {
		t.Fatalf("serializeObject(%v) error: %v", obj, err)
	}
	return buf.String()
}

func TestSerializeObject(t *testing.T) {
	tests := []struct {
		name string
		obj  core.Object
		want string
	}{
		{"null", core.Null{}, "null"},
		{"bool true", core.Bool(true), "true"},
		{"bool false", core.Bool(false), "false"},
		{"int", core.Int(42), "42"},
		{"negative int", core.Int(-7), "-7"},
		{"real", core.Real(1.5), "1.5"},
		{"whole real", core.Real(2), "2"},
		{"string", core.String("hello"), "(hello)"},
		{"string escaped", core.String(`a(b)\c`), `(a\(b\)\\c)`},
		{"name", core.Name("Type"), "/Type"},
		{"ref", core.IndirectRef{Number: 4}, "4 0 R"},
		{"ref with generation", core.IndirectRef{Number: 9, Generation: 2}, "9 2 R"},
		{
			"array",
			core.Array{core.Int(1), core.Name("N"), core.IndirectRef{Number: 3}},
			"[1 /N 3 0 R]",
		},
		{"empty array", core.Array{}, "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serialize(t, tt.obj); got != tt.want {
				t.Errorf("serializeObject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSerializeDict_SortedKeys(t *testing.T) {
	d := core.Dict{
		"Zebra": core.Int(1),
		"Alpha": core.Name("x"),
		"Mid":   core.String("s"),
	}
	want := "<< /Alpha /x /Mid (s) /Zebra 1 >>"
	if got := serialize(t, d); got != want {
		t.Errorf("dict = %q, want %q", got, want)
	}
}

func TestSerializeDict_Nested(t *testing.T) {
	d := core.Dict{
		"Outer": core.Dict{"Inner": core.Int(5)},
	}
	want := "<< /Outer << /Inner 5 >> >>"
	if got := serialize(t, d); got != want {
		t.Errorf("nested dict = %q, want %q", got, want)
	}
}

func TestSerializeStream(t *testing.T) {
	s := &core.Stream{
		Dict: core.Dict{"Length": core.Int(4)},
		Data: []byte("abcd"),
	}
	want := "<< /Length 4 >>\nstream\nabcd\nendstream"
	if got := serialize(t, s); got != want {
		t.Errorf("stream = %q, want %q", got, want)
	}
}

func TestNameLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"F1", "/F1"},
		{"Type", "/Type"},
		{"A B", "/A#20B"},
		{"a#b", "/a#23b"},
		{"paren(", "/paren#28"},
		{"sl/ash", "/sl#2Fash"},
		{"", "/"},
	}
	for _, tt := range tests {
		if got := nameLiteral(tt.in); got != tt.want {
			t.Errorf("nameLiteral(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type bogusObject struct{}

func (bogusObject) Type() core.ObjectType { return core.ObjNull }
func (bogusObject) String() string        { return "bogus" }

func TestSerializeObject_UnsupportedType(t *testing.T) {
	var buf bytes.Buffer
	if err := serializeObject(&buf, bogusObject{}); err == nil {
		t.Error("expected error for unsupported object type")
	}
}
