package expr

import (
	"fmt"

	"github.com/roach88/relinq/internal/meta"
)

// Kind identifies an expression variant.
type Kind int

const (
	KindCall Kind = iota
	KindConstant
	KindParameter
	KindMember
	KindRecord
	KindArrayInit
	KindLambda
	KindBinary
	KindUnary
	KindConditional
	KindExtension
)

var kindNames = [...]string{
	KindCall:        "Call",
	KindConstant:    "Constant",
	KindParameter:   "Parameter",
	KindMember:      "Member",
	KindRecord:      "Record",
	KindArrayInit:   "ArrayInit",
	KindLambda:      "Lambda",
	KindBinary:      "Binary",
	KindUnary:       "Unary",
	KindConditional: "Conditional",
	KindExtension:   "Extension",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Expression is a node of the call-chain AST.
type Expression interface {
	Kind() Kind
	Type() *meta.Type
	String() string
}

// Extension is implemented by expression nodes declared outside this
// package. VisitChildren must rebuild the node when fn changes a child and
// return the receiver unchanged otherwise.
type Extension interface {
	Expression
	VisitChildren(fn func(Expression) (Expression, error)) (Expression, error)
}

// Pos is an optional front-end source position.
type Pos struct {
	Line   int
	Column int
}

// IsValid reports whether the position was set.
func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Constant is a literal value.
type Constant struct {
	Value any
	T     *meta.Type
}

// Parameter references a lambda parameter or a free variable. Parameters
// are compared by identity.
type Parameter struct {
	Name string
	T    *meta.Type
}

// Member reads a named member of Target.
type Member struct {
	Target Expression
	Name   string
	T      *meta.Type
}

// MemberInit is one named member of a Record construction.
type MemberInit struct {
	Name  string
	Value Expression
}

// Record constructs a record from named members.
type Record struct {
	Members []MemberInit
	T       *meta.Type
}

// ArrayInit builds a literal collection.
type ArrayInit struct {
	Elems []Expression
	T     *meta.Type
}

// Lambda is an anonymous function.
type Lambda struct {
	Params []*Parameter
	Body   Expression
}

// Call invokes a method. Static operators carry their source in Args[0];
// instance methods carry their receiver in Object.
type Call struct {
	Method *meta.Method
	Object Expression
	Args   []Expression
	Pos    Pos
}

// Binary applies a binary operator.
type Binary struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
	T     *meta.Type
}

// Unary applies a unary operator. T is the target type for OpConvert.
type Unary struct {
	Op      UnaryOp
	Operand Expression
	T       *meta.Type
}

// Conditional selects Then or Else depending on Test.
type Conditional struct {
	Test Expression
	Then Expression
	Else Expression
}

func (*Constant) Kind() Kind    { return KindConstant }
func (*Parameter) Kind() Kind   { return KindParameter }
func (*Member) Kind() Kind      { return KindMember }
func (*Record) Kind() Kind      { return KindRecord }
func (*ArrayInit) Kind() Kind   { return KindArrayInit }
func (*Lambda) Kind() Kind      { return KindLambda }
func (*Call) Kind() Kind        { return KindCall }
func (*Binary) Kind() Kind      { return KindBinary }
func (*Unary) Kind() Kind       { return KindUnary }
func (*Conditional) Kind() Kind { return KindConditional }

func (e *Constant) Type() *meta.Type  { return orAny(e.T) }
func (e *Parameter) Type() *meta.Type { return orAny(e.T) }
func (e *Member) Type() *meta.Type    { return orAny(e.T) }
func (e *Record) Type() *meta.Type    { return orAny(e.T) }
func (e *ArrayInit) Type() *meta.Type { return orAny(e.T) }
func (e *Binary) Type() *meta.Type    { return orAny(e.T) }
func (e *Unary) Type() *meta.Type     { return orAny(e.T) }

func (e *Lambda) Type() *meta.Type {
	in := make([]*meta.Type, len(e.Params))
	for i, p := range e.Params {
		in[i] = p.Type()
	}
	return meta.Func(in, e.Body.Type())
}

func (e *Call) Type() *meta.Type {
	if e.Method == nil {
		return meta.Any
	}
	return orAny(e.Method.Result)
}

func (e *Conditional) Type() *meta.Type { return e.Then.Type() }

func (e *Constant) String() string    { return Format(e) }
func (e *Parameter) String() string   { return Format(e) }
func (e *Member) String() string      { return Format(e) }
func (e *Record) String() string      { return Format(e) }
func (e *ArrayInit) String() string   { return Format(e) }
func (e *Lambda) String() string      { return Format(e) }
func (e *Call) String() string        { return Format(e) }
func (e *Binary) String() string      { return Format(e) }
func (e *Unary) String() string       { return Format(e) }
func (e *Conditional) String() string { return Format(e) }

func orAny(t *meta.Type) *meta.Type {
	if t == nil {
		return meta.Any
	}
	return t
}
