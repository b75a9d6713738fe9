package expr

import (
	"github.com/roach88/relinq/internal/meta"
)

// BinaryOp is a binary operator.
type BinaryOp int

const (
	OpEq BinaryOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
)

var binarySymbols = [...]string{
	OpEq:  "==",
	OpNe:  "!=",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpMod: "%",
	OpAnd: "&&",
	OpOr:  "||",
}

// Symbol returns the operator's source form.
func (op BinaryOp) Symbol() string { return binarySymbols[op] }

// IsComparison reports whether op yields a boolean from two operands of the
// same type.
func (op BinaryOp) IsComparison() bool { return op <= OpGe }

// IsLogical reports whether op is && or ||.
func (op BinaryOp) IsLogical() bool { return op == OpAnd || op == OpOr }

// BinaryOpFromSymbol maps a source symbol to its operator.
func BinaryOpFromSymbol(sym string) (BinaryOp, bool) {
	for op, s := range binarySymbols {
		if s == sym {
			return BinaryOp(op), true
		}
	}
	return 0, false
}

// UnaryOp is a unary operator.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNegate
	OpConvert
)

// NewConstant creates a constant. A nil type is inferred from the value.
func NewConstant(v any, t *meta.Type) *Constant {
	if t == nil {
		t = InferType(v)
	}
	return &Constant{Value: v, T: t}
}

// NewParameter creates a parameter.
func NewParameter(name string, t *meta.Type) *Parameter {
	return &Parameter{Name: name, T: t}
}

// NewMember creates a member access; its type is taken from the target's
// field declaration when known.
func NewMember(target Expression, name string) *Member {
	t, ok := meta.FieldType(target.Type(), name)
	if !ok {
		t = meta.Any
	}
	return &Member{Target: target, Name: name, T: t}
}

// NewRecord constructs an anonymous record.
func NewRecord(members ...MemberInit) *Record {
	fields := make([]meta.Field, len(members))
	for i, m := range members {
		fields[i] = meta.F(m.Name, m.Value.Type())
	}
	return &Record{Members: members, T: meta.NewRecord("", fields...)}
}

// NewNamedRecord constructs a record of a declared record type.
func NewNamedRecord(t *meta.Type, members ...MemberInit) *Record {
	return &Record{Members: members, T: t}
}

// Init is a shorthand for MemberInit.
func Init(name string, value Expression) MemberInit {
	return MemberInit{Name: name, Value: value}
}

// NewArrayInit builds a literal collection of elem-typed values.
func NewArrayInit(elem *meta.Type, elems ...Expression) *ArrayInit {
	if elem == nil {
		elem = meta.Any
		if len(elems) > 0 {
			elem = elems[0].Type()
		}
	}
	return &ArrayInit{Elems: elems, T: meta.SeqOf(elem)}
}

// NewLambda creates a lambda.
func NewLambda(body Expression, params ...*Parameter) *Lambda {
	return &Lambda{Params: params, Body: body}
}

// NewCall invokes a static method.
func NewCall(m *meta.Method, args ...Expression) *Call {
	return &Call{Method: m, Args: args}
}

// NewMethodCall invokes an instance method on obj.
func NewMethodCall(obj Expression, m *meta.Method, args ...Expression) *Call {
	return &Call{Method: m, Object: obj, Args: args}
}

// NewBinary applies op; the result type is bool for comparisons and logical
// operators and the operand type otherwise (float wins over int).
func NewBinary(op BinaryOp, left, right Expression) *Binary {
	var t *meta.Type
	switch {
	case op.IsComparison() || op.IsLogical():
		t = meta.Bool
	case left.Type() == meta.Float || right.Type() == meta.Float:
		t = meta.Float
	case op == OpAdd && (left.Type() == meta.String || right.Type() == meta.String):
		t = meta.String
	default:
		t = left.Type()
	}
	return &Binary{Op: op, Left: left, Right: right, T: t}
}

// NewNot negates a boolean.
func NewNot(operand Expression) *Unary {
	return &Unary{Op: OpNot, Operand: operand, T: meta.Bool}
}

// NewNegate negates a number.
func NewNegate(operand Expression) *Unary {
	return &Unary{Op: OpNegate, Operand: operand, T: operand.Type()}
}

// NewConvert converts operand to t.
func NewConvert(operand Expression, t *meta.Type) *Unary {
	return &Unary{Op: OpConvert, Operand: operand, T: t}
}

// NewConditional creates IIF(test, then, else).
func NewConditional(test, then, els Expression) *Conditional {
	return &Conditional{Test: test, Then: then, Else: els}
}

// InferType maps a Go value to a basic type.
func InferType(v any) *meta.Type {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return meta.Int
	case float32, float64:
		return meta.Float
	case string:
		return meta.String
	case bool:
		return meta.Bool
	case []any:
		return meta.SeqOf(meta.Any)
	case []int:
		return meta.SeqOf(meta.Int)
	case []int64:
		return meta.SeqOf(meta.Int)
	case []string:
		return meta.SeqOf(meta.String)
	case []float64:
		return meta.SeqOf(meta.Float)
	default:
		return meta.Any
	}
}
