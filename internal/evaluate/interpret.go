package evaluate

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
)

// EvaluationError reports that an independent subtree could not be
// computed. It means the value cannot be determined statically.
type EvaluationError struct {
	// Expr is the printed subtree that failed.
	Expr string

	// Err is the underlying failure.
	Err error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %s: %v", e.Expr, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// errNotEvaluatable is returned for nodes that have no static value.
var errNotEvaluatable = errors.New("expression has no static value")

// Interpret computes the value of e. Numbers are normalized to int64 and
// float64, records to map[string]any and arrays to []any.
func Interpret(e expr.Expression, env Env) (any, error) {
	v, err := interpret(e, env)
	if err != nil {
		var ee *EvaluationError
		if errors.As(err, &ee) {
			return nil, err
		}
		return nil, &EvaluationError{Expr: expr.Format(e), Err: err}
	}
	return v, nil
}

func interpret(e expr.Expression, env Env) (any, error) {
	switch n := e.(type) {
	case *expr.Constant:
		return normalize(n.Value), nil

	case *expr.Parameter:
		v, ok := env[n.Name]
		if !ok {
			return nil, fmt.Errorf("no value for variable %q", n.Name)
		}
		return normalize(v), nil

	case *expr.Member:
		target, err := interpret(n.Target, env)
		if err != nil {
			return nil, err
		}
		return memberValue(target, n.Name)

	case *expr.Record:
		out := make(map[string]any, len(n.Members))
		for _, m := range n.Members {
			v, err := interpret(m.Value, env)
			if err != nil {
				return nil, err
			}
			out[m.Name] = v
		}
		return out, nil

	case *expr.ArrayInit:
		out := make([]any, len(n.Elems))
		for i, el := range n.Elems {
			v, err := interpret(el, env)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case *expr.Call:
		return call(n, env)

	case *expr.Binary:
		return binary(n, env)

	case *expr.Unary:
		v, err := interpret(n.Operand, env)
		if err != nil {
			return nil, err
		}
		return unary(n.Op, v, n.T)

	case *expr.Conditional:
		test, err := interpret(n.Test, env)
		if err != nil {
			return nil, err
		}
		b, ok := test.(bool)
		if !ok {
			return nil, fmt.Errorf("condition is %T, not bool", test)
		}
		if b {
			return interpret(n.Then, env)
		}
		return interpret(n.Else, env)

	default:
		return nil, errNotEvaluatable
	}
}

func call(n *expr.Call, env Env) (result any, err error) {
	if n.Method == nil || n.Method.Func == nil {
		return nil, errNotEvaluatable
	}
	args := make([]any, 0, len(n.Args)+1)
	if n.Object != nil {
		obj, err := interpret(n.Object, env)
		if err != nil {
			return nil, err
		}
		args = append(args, obj)
	}
	for _, a := range n.Args {
		v, err := interpret(a, env)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%s panicked: %v", n.Method.Name, r)
		}
	}()
	v, err := n.Method.Func(args)
	if err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// memberValue reads a field from a map or struct value.
func memberValue(target any, name string) (any, error) {
	if m, ok := target.(map[string]any); ok {
		v, ok := m[name]
		if !ok {
			return nil, fmt.Errorf("no member %q", name)
		}
		return normalize(v), nil
	}

	rv := reflect.ValueOf(target)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("member %q of nil value", name)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		f := rv.FieldByName(name)
		if !f.IsValid() || !f.CanInterface() {
			return nil, fmt.Errorf("no exported member %q on %s", name, rv.Type())
		}
		return normalize(f.Interface()), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, fmt.Errorf("no member %q", name)
		}
		return normalize(v.Interface()), nil
	}
	return nil, fmt.Errorf("cannot read member %q of %T", name, target)
}

// normalize widens numeric values so arithmetic sees two representations.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

func binary(n *expr.Binary, env Env) (any, error) {
	l, err := interpret(n.Left, env)
	if err != nil {
		return nil, err
	}

	if n.Op.IsLogical() {
		lb, ok := l.(bool)
		if !ok {
			return nil, fmt.Errorf("%s operand is %T, not bool", n.Op.Symbol(), l)
		}
		if (n.Op == expr.OpAnd && !lb) || (n.Op == expr.OpOr && lb) {
			return lb, nil
		}
		r, err := interpret(n.Right, env)
		if err != nil {
			return nil, err
		}
		rb, ok := r.(bool)
		if !ok {
			return nil, fmt.Errorf("%s operand is %T, not bool", n.Op.Symbol(), r)
		}
		return rb, nil
	}

	r, err := interpret(n.Right, env)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case expr.OpEq:
		return equal(l, r), nil
	case expr.OpNe:
		return !equal(l, r), nil
	}

	if ls, ok := l.(string); ok {
		rs, ok := r.(string)
		if !ok {
			if n.Op == expr.OpAdd {
				return ls + fmt.Sprint(r), nil
			}
			return nil, fmt.Errorf("cannot apply %s to string and %T", n.Op.Symbol(), r)
		}
		return stringOp(n.Op, ls, rs)
	}
	if rs, ok := r.(string); ok && n.Op == expr.OpAdd {
		return fmt.Sprint(l) + rs, nil
	}

	li, lInt := l.(int64)
	ri, rInt := r.(int64)
	if lInt && rInt {
		return intOp(n.Op, li, ri)
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("cannot apply %s to %T and %T", n.Op.Symbol(), l, r)
	}
	return floatOp(n.Op, lf, rf)
}

func equal(l, r any) bool {
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if lok && rok {
		return lf == rf
	}
	return reflect.DeepEqual(l, r)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func intOp(op expr.BinaryOp, l, r int64) (any, error) {
	switch op {
	case expr.OpLt:
		return l < r, nil
	case expr.OpLe:
		return l <= r, nil
	case expr.OpGt:
		return l > r, nil
	case expr.OpGe:
		return l >= r, nil
	case expr.OpAdd:
		return l + r, nil
	case expr.OpSub:
		return l - r, nil
	case expr.OpMul:
		return l * r, nil
	case expr.OpDiv, expr.OpMod:
		if r == 0 {
			return nil, errors.New("integer division by zero")
		}
		if op == expr.OpDiv {
			return l / r, nil
		}
		return l % r, nil
	}
	return nil, fmt.Errorf("unsupported operator %s", op.Symbol())
}

func floatOp(op expr.BinaryOp, l, r float64) (any, error) {
	switch op {
	case expr.OpLt:
		return l < r, nil
	case expr.OpLe:
		return l <= r, nil
	case expr.OpGt:
		return l > r, nil
	case expr.OpGe:
		return l >= r, nil
	case expr.OpAdd:
		return l + r, nil
	case expr.OpSub:
		return l - r, nil
	case expr.OpMul:
		return l * r, nil
	case expr.OpDiv:
		return l / r, nil
	}
	return nil, fmt.Errorf("unsupported operator %s on float", op.Symbol())
}

func stringOp(op expr.BinaryOp, l, r string) (any, error) {
	switch op {
	case expr.OpLt:
		return l < r, nil
	case expr.OpLe:
		return l <= r, nil
	case expr.OpGt:
		return l > r, nil
	case expr.OpGe:
		return l >= r, nil
	case expr.OpAdd:
		return l + r, nil
	}
	return nil, fmt.Errorf("unsupported operator %s on string", op.Symbol())
}

func unary(op expr.UnaryOp, v any, target *meta.Type) (any, error) {
	switch op {
	case expr.OpNot:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("! operand is %T, not bool", v)
		}
		return !b, nil
	case expr.OpNegate:
		switch x := v.(type) {
		case int64:
			return -x, nil
		case float64:
			return -x, nil
		}
		return nil, fmt.Errorf("- operand is %T, not a number", v)
	default:
		return convert(v, target)
	}
}

func convert(v any, target *meta.Type) (any, error) {
	switch target {
	case meta.Int:
		switch x := v.(type) {
		case int64:
			return x, nil
		case float64:
			return int64(x), nil
		case string:
			return strconv.ParseInt(x, 10, 64)
		}
	case meta.Float:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
		if s, ok := v.(string); ok {
			return strconv.ParseFloat(s, 64)
		}
	case meta.String:
		return fmt.Sprint(v), nil
	case meta.Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		if s, ok := v.(string); ok {
			return strconv.ParseBool(s)
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, target)
}
