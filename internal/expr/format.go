package expr

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Format renders e in the fluent form used by diagnostics and snapshots:
//
//	p.Age > 30                 (p.Age > 30)
//	new {a = a, b = b}         new {a = a, b = b}
//	Source.Where(p => ...)     Source.Where(p => (p.Age > 30))
func Format(e Expression) string {
	var b strings.Builder
	format(&b, e)
	return b.String()
}

func format(b *strings.Builder, e Expression) {
	switch n := e.(type) {
	case nil:
		b.WriteString("<nil>")
	case *Constant:
		b.WriteString(FormatValue(n.Value))
	case *Parameter:
		b.WriteString(n.Name)
	case *Member:
		format(b, n.Target)
		b.WriteByte('.')
		b.WriteString(n.Name)
	case *Record:
		b.WriteString("new ")
		if n.T != nil && n.T.Name != "" {
			b.WriteString(n.T.Name)
			b.WriteByte(' ')
		}
		b.WriteByte('{')
		for i, m := range n.Members {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(m.Name)
			b.WriteString(" = ")
			format(b, m.Value)
		}
		b.WriteByte('}')
	case *ArrayInit:
		b.WriteByte('[')
		formatList(b, n.Elems)
		b.WriteByte(']')
	case *Lambda:
		if len(n.Params) == 1 {
			b.WriteString(n.Params[0].Name)
		} else {
			b.WriteByte('(')
			for i, p := range n.Params {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(p.Name)
			}
			b.WriteByte(')')
		}
		b.WriteString(" => ")
		format(b, n.Body)
	case *Call:
		name := "<nil>"
		if n.Method != nil {
			name = n.Method.Name
		}
		switch {
		case n.Object != nil:
			format(b, n.Object)
			b.WriteByte('.')
			b.WriteString(name)
			b.WriteByte('(')
			formatList(b, n.Args)
		case n.Method != nil && n.Method.Static && len(n.Args) > 0:
			format(b, n.Args[0])
			b.WriteByte('.')
			b.WriteString(name)
			b.WriteByte('(')
			formatList(b, n.Args[1:])
		default:
			b.WriteString(name)
			b.WriteByte('(')
			formatList(b, n.Args)
		}
		b.WriteByte(')')
	case *Binary:
		b.WriteByte('(')
		format(b, n.Left)
		b.WriteString(" " + n.Op.Symbol() + " ")
		format(b, n.Right)
		b.WriteByte(')')
	case *Unary:
		switch n.Op {
		case OpNot:
			b.WriteByte('!')
			format(b, n.Operand)
		case OpNegate:
			b.WriteByte('-')
			format(b, n.Operand)
		default:
			b.WriteString("Convert(")
			format(b, n.Operand)
			b.WriteString(", " + n.T.String() + ")")
		}
	case *Conditional:
		b.WriteString("IIF(")
		formatList(b, []Expression{n.Test, n.Then, n.Else})
		b.WriteByte(')')
	case fmt.Stringer:
		b.WriteString(n.String())
	default:
		fmt.Fprintf(b, "%T", e)
	}
}

func formatList(b *strings.Builder, list []Expression) {
	for i, e := range list {
		if i > 0 {
			b.WriteString(", ")
		}
		format(b, e)
	}
}

// FormatValue renders a constant value. Primitives and slices are printed
// literally; other values render as value(<go type>).
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = FormatValue(rv.Index(i).Interface())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprintf("value(%T)", v)
}
