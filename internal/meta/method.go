package meta

import (
	"fmt"
	"strings"
)

// Method describes one operator or helper overload.
type Method struct {
	Name          string
	DeclaringType *Type

	// TypeParams holds the open parameters of a generic method definition.
	TypeParams []*Type

	// TypeArgs and Definition describe a closed generic method.
	TypeArgs   []*Type
	Definition *Method

	Params []Param
	Result *Type

	// Static marks receiver-less methods (operators take their source as
	// the first parameter).
	Static bool

	// Func computes the method for partial evaluation. The receiver, when
	// present, is passed as args[0]. Methods without Func are never folded.
	Func func(args []any) (any, error)

	// Volatile marks non-deterministic or side-effecting methods. They are
	// never folded, even when all arguments are constant.
	Volatile bool
}

// Param is a named, typed method parameter.
type Param struct {
	Name string
	Type *Type
}

// P is a shorthand for Param.
func P(name string, t *Type) Param {
	return Param{Name: name, Type: t}
}

// IsGenericDefinition reports whether m is an open generic method.
func (m *Method) IsGenericDefinition() bool {
	return len(m.TypeParams) > 0 && m.Definition == nil
}

// Instantiate closes a generic method definition over the given type
// arguments. The result links back to m through Definition.
func (m *Method) Instantiate(args ...*Type) *Method {
	if !m.IsGenericDefinition() {
		panic(fmt.Sprintf("meta: %s is not a generic method definition", m.Name))
	}
	if len(args) != len(m.TypeParams) {
		panic(fmt.Sprintf("meta: %s expects %d type arguments, got %d", m.Name, len(m.TypeParams), len(args)))
	}
	subst := make(map[*Type]*Type, len(args))
	for i, p := range m.TypeParams {
		subst[p] = args[i]
	}
	closed := &Method{
		Name:          m.Name,
		DeclaringType: m.DeclaringType,
		TypeArgs:      args,
		Definition:    m,
		Result:        Substitute(m.Result, subst),
		Static:        m.Static,
		Func:          m.Func,
		Volatile:      m.Volatile,
	}
	for _, p := range m.Params {
		closed.Params = append(closed.Params, Param{Name: p.Name, Type: Substitute(p.Type, subst)})
	}
	return closed
}

// substitute copies m onto an instantiated declaring type.
func (m *Method) substitute(decl *Type, subst map[*Type]*Type) *Method {
	cp := *m
	cp.DeclaringType = decl
	cp.Result = Substitute(m.Result, subst)
	cp.Params = make([]Param, len(m.Params))
	for i, p := range m.Params {
		cp.Params[i] = Param{Name: p.Name, Type: Substitute(p.Type, subst)}
	}
	return &cp
}

// Declare adds a method definition to a type and returns it.
func (t *Type) Declare(m *Method) *Method {
	m.DeclaringType = t
	t.Methods = append(t.Methods, m)
	return m
}

// String renders the method signature, e.g. "Queryable.Where<T>(source: Seq<T>, predicate: Func<T, bool>)".
func (m *Method) String() string {
	var b strings.Builder
	if m.DeclaringType != nil {
		b.WriteString(m.DeclaringType.String())
		b.WriteByte('.')
	}
	b.WriteString(m.Name)
	switch {
	case len(m.TypeArgs) > 0:
		b.WriteString("<" + joinTypes(m.TypeArgs) + ">")
	case len(m.TypeParams) > 0:
		b.WriteString("<" + joinTypes(m.TypeParams) + ">")
	}
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name + ": " + p.Type.String())
	}
	b.WriteByte(')')
	return b.String()
}

// MethodKey is the comparable identity of one operator overload, derived
// from its normalized generic definition.
type MethodKey struct {
	Type   string
	Name   string
	Arity  int
	Params string
}

// String renders the key.
func (k MethodKey) String() string {
	return fmt.Sprintf("%s.%s`%d(%s)", k.Type, k.Name, k.Arity, k.Params)
}

// KeyOf computes the identity of an already normalized method.
func KeyOf(def *Method) MethodKey {
	params := make([]string, len(def.Params))
	for i, p := range def.Params {
		params[i] = p.Type.String()
	}
	key := MethodKey{
		Name:   def.Name,
		Arity:  len(def.TypeParams),
		Params: strings.Join(params, ", "),
	}
	if def.DeclaringType != nil {
		key.Type = def.DeclaringType.String()
	}
	return key
}

// AmbiguousBindingError reports that a closed call site could not be
// reduced to exactly one generic definition.
type AmbiguousBindingError struct {
	Method     string
	Candidates int
}

func (e *AmbiguousBindingError) Error() string {
	if e.Candidates == 0 {
		return fmt.Sprintf("ambiguous generic binding for %s: no matching definition", e.Method)
	}
	return fmt.Sprintf("ambiguous generic binding for %s: %d matching definitions", e.Method, e.Candidates)
}

// Normalize reduces a call-site method to its generic definition.
//
// A closed generic method is first replaced by its Definition. If the
// declaring type is an instantiated generic type, the unique member of the
// generic type definition with the same name, generic arity, parameter
// count, parameter names and compatible parameter types is returned.
func Normalize(m *Method) (*Method, error) {
	if m == nil {
		return nil, fmt.Errorf("normalize: nil method")
	}
	def := m
	if def.Definition != nil {
		def = def.Definition
	}
	if def.DeclaringType == nil || def.DeclaringType.Kind != KindInstance {
		return def, nil
	}

	typeDef := def.DeclaringType.Definition
	var found []*Method
	for _, cand := range typeDef.Methods {
		if matchesDefinition(cand, def) {
			found = append(found, cand)
		}
	}
	if len(found) != 1 {
		return nil, &AmbiguousBindingError{Method: m.String(), Candidates: len(found)}
	}
	return found[0], nil
}

// matchesDefinition compares a candidate declared on a generic type
// definition with a member copied onto one of its instances.
func matchesDefinition(cand, member *Method) bool {
	if cand.Name != member.Name ||
		len(cand.TypeParams) != len(member.TypeParams) ||
		len(cand.Params) != len(member.Params) {
		return false
	}
	for i := range cand.Params {
		if cand.Params[i].Name != member.Params[i].Name {
			return false
		}
		if !compatible(cand.Params[i].Type, member.Params[i].Type) {
			return false
		}
	}
	return true
}

// compatible reports whether a definition-side type accepts a closed type.
// Open type parameter positions accept anything.
func compatible(def, closed *Type) bool {
	if def == nil || closed == nil {
		return def == closed
	}
	if def.Kind == KindParam {
		return true
	}
	if def.Kind == KindInstance && closed.Kind == KindInstance {
		if def.Definition != closed.Definition || len(def.TypeArgs) != len(closed.TypeArgs) {
			return false
		}
		for i := range def.TypeArgs {
			if !compatible(def.TypeArgs[i], closed.TypeArgs[i]) {
				return false
			}
		}
		return true
	}
	return Equal(def, closed)
}
