package meta

import (
	"fmt"
	"strings"
)

// TypeKind classifies a Type.
type TypeKind int

const (
	KindBasic TypeKind = iota
	KindRecord
	KindStatic
	KindGeneric
	KindInstance
	KindParam
)

// String returns the kind name.
func (k TypeKind) String() string {
	switch k {
	case KindBasic:
		return "basic"
	case KindRecord:
		return "record"
	case KindStatic:
		return "static"
	case KindGeneric:
		return "generic"
	case KindInstance:
		return "instance"
	case KindParam:
		return "param"
	default:
		return fmt.Sprintf("TypeKind(%d)", int(k))
	}
}

// Type describes the static type of an expression.
//
// Type parameters are compared by identity: two KindParam types are equal
// only if they are the same pointer.
type Type struct {
	Name string
	Kind TypeKind

	// TypeParams holds the open parameters of a KindGeneric definition.
	TypeParams []*Type

	// TypeArgs and Definition describe a KindInstance.
	TypeArgs   []*Type
	Definition *Type

	// Position is the index of a KindParam within its owner's parameter list.
	Position int

	// Fields of a record (or of a generic definition such as Grouping.Key).
	Fields []Field

	// Methods declared on the type. For an instance these are substituted
	// copies whose DeclaringType is the instance itself.
	Methods []*Method
}

// Field is a named member of a record type.
type Field struct {
	Name string
	Type *Type
}

// Builtin basic types.
var (
	Any    = &Type{Name: "any", Kind: KindBasic}
	Int    = &Type{Name: "int", Kind: KindBasic}
	Float  = &Type{Name: "float", Kind: KindBasic}
	String = &Type{Name: "string", Kind: KindBasic}
	Bool   = &Type{Name: "bool", Kind: KindBasic}
)

// Seq is the generic sequence definition Seq<T>.
var Seq = NewGeneric("Seq", "T")

// List is the generic collection definition List<T>. Its members are
// declared by the operator catalog.
var List = NewGeneric("List", "T")

// Grouping is the generic definition Grouping<K, E>: a keyed sequence of E.
var Grouping = func() *Type {
	g := NewGeneric("Grouping", "K", "E")
	g.Fields = []Field{{Name: "Key", Type: g.TypeParams[0]}}
	return g
}()

const maxFuncArity = 4

// funcDefs holds Func`N definitions indexed by input arity.
var funcDefs = func() [maxFuncArity + 1]*Type {
	var defs [maxFuncArity + 1]*Type
	for n := 0; n <= maxFuncArity; n++ {
		names := make([]string, 0, n+1)
		for i := 0; i < n; i++ {
			names = append(names, fmt.Sprintf("T%d", i+1))
		}
		names = append(names, "R")
		defs[n] = NewGeneric(fmt.Sprintf("Func`%d", n), names...)
	}
	return defs
}()

// NewGeneric creates an open generic type definition with the given
// parameter names.
func NewGeneric(name string, params ...string) *Type {
	t := &Type{Name: name, Kind: KindGeneric}
	for i, p := range params {
		t.TypeParams = append(t.TypeParams, &Type{Name: p, Kind: KindParam, Position: i})
	}
	return t
}

// NewParam creates a standalone type parameter (used for generic methods).
func NewParam(name string, position int) *Type {
	return &Type{Name: name, Kind: KindParam, Position: position}
}

// NewRecord creates a named record type. An empty name denotes an
// anonymous record.
func NewRecord(name string, fields ...Field) *Type {
	return &Type{Name: name, Kind: KindRecord, Fields: fields}
}

// NewStatic creates a holder type for receiver-less methods.
func NewStatic(name string) *Type {
	return &Type{Name: name, Kind: KindStatic}
}

// F is a shorthand for Field.
func F(name string, t *Type) Field {
	return Field{Name: name, Type: t}
}

// SeqOf returns Seq<elem>.
func SeqOf(elem *Type) *Type {
	return Instantiate(Seq, elem)
}

// GroupingOf returns Grouping<key, elem>.
func GroupingOf(key, elem *Type) *Type {
	return Instantiate(Grouping, key, elem)
}

// Func returns Func`N<in..., out>.
// Panics if the arity exceeds the supported maximum.
func Func(in []*Type, out *Type) *Type {
	if len(in) > maxFuncArity {
		panic(fmt.Sprintf("meta: func arity %d exceeds %d", len(in), maxFuncArity))
	}
	args := make([]*Type, 0, len(in)+1)
	args = append(args, in...)
	args = append(args, out)
	return Instantiate(funcDefs[len(in)], args...)
}

// FuncDef returns the Func`N generic definition for an input arity.
func FuncDef(arity int) *Type {
	return funcDefs[arity]
}

// Instantiate closes a generic definition over the given type arguments.
// Methods of the definition are copied onto the instance with their
// parameter and result types substituted. The copies are not linked back to
// their definitions; Normalize recovers the link structurally.
func Instantiate(def *Type, args ...*Type) *Type {
	if def == nil || def.Kind != KindGeneric {
		panic(fmt.Sprintf("meta: cannot instantiate non-generic type %v", def))
	}
	if len(args) != len(def.TypeParams) {
		panic(fmt.Sprintf("meta: %s expects %d type arguments, got %d", def.Name, len(def.TypeParams), len(args)))
	}

	inst := &Type{
		Name:       def.Name,
		Kind:       KindInstance,
		TypeArgs:   args,
		Definition: def,
	}

	subst := make(map[*Type]*Type, len(args))
	for i, p := range def.TypeParams {
		subst[p] = args[i]
	}
	for _, m := range def.Methods {
		inst.Methods = append(inst.Methods, m.substitute(inst, subst))
	}
	return inst
}

// Substitute replaces type parameters in t according to subst.
// Types without parameters are returned unchanged.
func Substitute(t *Type, subst map[*Type]*Type) *Type {
	if t == nil || len(subst) == 0 {
		return t
	}
	switch t.Kind {
	case KindParam:
		if r, ok := subst[t]; ok {
			return r
		}
		return t
	case KindInstance:
		changed := false
		args := make([]*Type, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			args[i] = Substitute(a, subst)
			if args[i] != a {
				changed = true
			}
		}
		if !changed {
			return t
		}
		return Instantiate(t.Definition, args...)
	case KindRecord:
		if t.Name != "" {
			return t
		}
		changed := false
		fields := make([]Field, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = Field{Name: f.Name, Type: Substitute(f.Type, subst)}
			if fields[i].Type != f.Type {
				changed = true
			}
		}
		if !changed {
			return t
		}
		return NewRecord("", fields...)
	default:
		return t
	}
}

// Equal reports whether two types are identical.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInstance:
		if a.Definition != b.Definition || len(a.TypeArgs) != len(b.TypeArgs) {
			return false
		}
		for i := range a.TypeArgs {
			if !Equal(a.TypeArgs[i], b.TypeArgs[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		if a.Name != "" || b.Name != "" {
			return false
		}
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !Equal(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ContainsParams reports whether t mentions any type parameter.
func ContainsParams(t *Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindParam:
		return true
	case KindInstance:
		for _, a := range t.TypeArgs {
			if ContainsParams(a) {
				return true
			}
		}
	case KindRecord:
		if t.Name == "" {
			for _, f := range t.Fields {
				if ContainsParams(f.Type) {
					return true
				}
			}
		}
	}
	return false
}

// ElementType returns the item type of a sequence type.
// Seq<T> and List<T> yield T, Grouping<K, E> yields E.
func ElementType(t *Type) (*Type, bool) {
	if t == nil || t.Kind != KindInstance {
		return nil, false
	}
	switch t.Definition {
	case Seq, List:
		return t.TypeArgs[0], true
	case Grouping:
		return t.TypeArgs[1], true
	}
	return nil, false
}

// IsSequence reports whether t is a sequence type.
func IsSequence(t *Type) bool {
	_, ok := ElementType(t)
	return ok
}

// FuncSignature splits a Func`N instance into input and output types.
func FuncSignature(t *Type) ([]*Type, *Type, bool) {
	if t == nil || t.Kind != KindInstance {
		return nil, nil, false
	}
	for n, def := range funcDefs {
		if t.Definition == def {
			return t.TypeArgs[:n], t.TypeArgs[n], true
		}
	}
	return nil, nil, false
}

// FieldType returns the type of a named field. Fields of instances are
// looked up on the definition and substituted.
func FieldType(t *Type, name string) (*Type, bool) {
	if t == nil {
		return nil, false
	}
	if t.Kind == KindInstance {
		ft, ok := FieldType(t.Definition, name)
		if !ok {
			return nil, false
		}
		subst := make(map[*Type]*Type, len(t.TypeArgs))
		for i, p := range t.Definition.TypeParams {
			subst[p] = t.TypeArgs[i]
		}
		return Substitute(ft, subst), true
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return nil, false
}

// MethodsNamed returns the methods of t with the given name, in
// declaration order.
func (t *Type) MethodsNamed(name string) []*Method {
	var out []*Method
	for _, m := range t.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// String renders the type, e.g. "Seq<int>" or "{a: int, b: string}".
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindGeneric:
		return t.Name + "<" + joinTypes(t.TypeParams) + ">"
	case KindInstance:
		name := t.Definition.Name
		if i := strings.IndexByte(name, '`'); i >= 0 {
			name = name[:i]
		}
		return name + "<" + joinTypes(t.TypeArgs) + ">"
	case KindRecord:
		if t.Name != "" {
			return t.Name
		}
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Name + ": " + f.Type.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return t.Name
	}
}

func joinTypes(ts []*Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
