package pdfredact

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/tsawler/tabula/core"
)

// serializeObject writes the PDF file representation of an object.
// Dict keys are emitted in sorted order so output is deterministic.
func serializeObject(buf *bytes.Buffer, obj core.Object) error {
	switch v := obj.(type) {
	case nil, core.Null:
		buf.WriteString("null")

	case core.Bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}

	case core.Int:
		buf.WriteString(strconv.FormatInt(int64(v), 10))

	case core.Real:
		buf.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 64))

	case core.String:
		buf.WriteByte('(')
		buf.WriteString(EscapeText(string(v)))
		buf.WriteByte(')')

	case core.Name:
		buf.WriteString(nameLiteral(string(v)))

	case core.Array:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := serializeObject(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')

	case core.Dict:
		if err := serializeDict(buf, v); err != nil {
			return err
		}

	case *core.Stream:
		if err := serializeDict(buf, v.Dict); err != nil {
			return err
		}
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")

	case core.IndirectRef:
		fmt.Fprintf(buf, "%d %d R", v.Number, v.Generation)

	default:
		return fmt.Errorf("cannot serialize object type %T", obj)
	}
	return nil
}

// serializeDict writes a dictionary with sorted keys.
func serializeDict(buf *bytes.Buffer, d core.Dict) error {
	keys := d.Keys()
	sort.Strings(keys)

	buf.WriteString("<<")
	for _, k := range keys {
		buf.WriteString(" " + nameLiteral(k) + " ")
		if err := serializeObject(buf, d[k]); err != nil {
			return err
		}
	}
	buf.WriteString(" >>")
	return nil
}

// nameLiteral renders a PDF name, escaping delimiters and non-regular
// characters as #xx.
func nameLiteral(name string) string {
	var out bytes.Buffer
	out.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= 0x20 || c >= 0x7f || bytes.IndexByte([]byte("()<>[]{}/%#"), c) >= 0 {
			fmt.Fprintf(&out, "#%02X", c)
		} else {
			out.WriteByte(c)
		}
	}
	return out.String()
}
