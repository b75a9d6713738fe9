package expr

import "fmt"

// VisitChildren applies fn to each direct child of e and rebuilds e when a
// child changed. Unchanged nodes are returned as-is.
func VisitChildren(e Expression, fn func(Expression) (Expression, error)) (Expression, error) {
	switch n := e.(type) {
	case *Constant, *Parameter:
		return e, nil

	case *Member:
		t, err := fn(n.Target)
		if err != nil {
			return nil, err
		}
		if t == n.Target {
			return n, nil
		}
		return &Member{Target: t, Name: n.Name, T: n.T}, nil

	case *Record:
		members, changed, err := visitMembers(n.Members, fn)
		if err != nil || !changed {
			return n, err
		}
		return &Record{Members: members, T: n.T}, nil

	case *ArrayInit:
		elems, changed, err := visitList(n.Elems, fn)
		if err != nil || !changed {
			return n, err
		}
		return &ArrayInit{Elems: elems, T: n.T}, nil

	case *Lambda:
		body, err := fn(n.Body)
		if err != nil {
			return nil, err
		}
		if body == n.Body {
			return n, nil
		}
		return &Lambda{Params: n.Params, Body: body}, nil

	case *Call:
		var obj Expression
		objChanged := false
		if n.Object != nil {
			o, err := fn(n.Object)
			if err != nil {
				return nil, err
			}
			obj, objChanged = o, o != n.Object
		}
		args, argsChanged, err := visitList(n.Args, fn)
		if err != nil {
			return nil, err
		}
		if !objChanged && !argsChanged {
			return n, nil
		}
		if !objChanged {
			obj = n.Object
		}
		return &Call{Method: n.Method, Object: obj, Args: args, Pos: n.Pos}, nil

	case *Binary:
		l, err := fn(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := fn(n.Right)
		if err != nil {
			return nil, err
		}
		if l == n.Left && r == n.Right {
			return n, nil
		}
		return &Binary{Op: n.Op, Left: l, Right: r, T: n.T}, nil

	case *Unary:
		o, err := fn(n.Operand)
		if err != nil {
			return nil, err
		}
		if o == n.Operand {
			return n, nil
		}
		return &Unary{Op: n.Op, Operand: o, T: n.T}, nil

	case *Conditional:
		list, changed, err := visitList([]Expression{n.Test, n.Then, n.Else}, fn)
		if err != nil || !changed {
			return n, err
		}
		return &Conditional{Test: list[0], Then: list[1], Else: list[2]}, nil

	case Extension:
		return n.VisitChildren(fn)

	default:
		return nil, fmt.Errorf("visit: unsupported expression %T", e)
	}
}

func visitList(list []Expression, fn func(Expression) (Expression, error)) ([]Expression, bool, error) {
	var out []Expression
	for i, e := range list {
		r, err := fn(e)
		if err != nil {
			return nil, false, err
		}
		if r != e && out == nil {
			out = make([]Expression, len(list))
			copy(out, list[:i])
		}
		if out != nil {
			out[i] = r
		}
	}
	if out == nil {
		return list, false, nil
	}
	return out, true, nil
}

func visitMembers(list []MemberInit, fn func(Expression) (Expression, error)) ([]MemberInit, bool, error) {
	var out []MemberInit
	for i, m := range list {
		r, err := fn(m.Value)
		if err != nil {
			return nil, false, err
		}
		if r != m.Value && out == nil {
			out = make([]MemberInit, len(list))
			copy(out, list[:i])
		}
		if out != nil {
			out[i] = MemberInit{Name: m.Name, Value: r}
		}
	}
	if out == nil {
		return list, false, nil
	}
	return out, true, nil
}

// Transform rewrites e bottom-up: children are transformed first, then fn
// is applied to the rebuilt node.
func Transform(e Expression, fn func(Expression) (Expression, error)) (Expression, error) {
	var visit func(Expression) (Expression, error)
	visit = func(n Expression) (Expression, error) {
		rebuilt, err := VisitChildren(n, visit)
		if err != nil {
			return nil, err
		}
		return fn(rebuilt)
	}
	return visit(e)
}

// Children returns the direct children of e.
func Children(e Expression) []Expression {
	var out []Expression
	_, _ = VisitChildren(e, func(c Expression) (Expression, error) {
		out = append(out, c)
		return c, nil
	})
	return out
}

// Inspect walks e in pre-order. Children are skipped when f returns false.
func Inspect(e Expression, f func(Expression) bool) {
	if e == nil || !f(e) {
		return
	}
	for _, c := range Children(e) {
		Inspect(c, f)
	}
}

// References reports whether p occurs in e (outside extension nodes that
// hide their contents).
func References(e Expression, p *Parameter) bool {
	found := false
	Inspect(e, func(n Expression) bool {
		if found {
			return false
		}
		if n == Expression(p) {
			found = true
		}
		return true
	})
	return found
}
