package ops

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/relinq/internal/meta"
)

// Strings holds string helpers callable inside lambdas. They are
// deterministic and carry implementations, so the partial evaluator folds
// them when their arguments are independent of query variables.
var Strings = meta.NewStatic("Strings")

// Clock holds non-deterministic helpers. They are never folded.
var Clock = meta.NewStatic("Clock")

func stringHelper(name string, result *meta.Type, impl func(args []string) any, params ...string) *meta.Method {
	ps := make([]meta.Param, len(params))
	for i, n := range params {
		ps[i] = p(n, meta.String)
	}
	return Strings.Declare(&meta.Method{
		Name:   name,
		Params: ps,
		Result: result,
		Static: true,
		Func: func(args []any) (any, error) {
			strs := make([]string, len(args))
			for i, a := range args {
				s, ok := a.(string)
				if !ok {
					return nil, fmt.Errorf("%s: argument %d is %T, not string", name, i, a)
				}
				strs[i] = s
			}
			return impl(strs), nil
		},
	})
}

var (
	StartsWith = stringHelper("StartsWith", meta.Bool, func(a []string) any { return strings.HasPrefix(a[0], a[1]) }, "s", "prefix")
	EndsWith   = stringHelper("EndsWith", meta.Bool, func(a []string) any { return strings.HasSuffix(a[0], a[1]) }, "s", "suffix")
	HasSubstr  = stringHelper("Contains", meta.Bool, func(a []string) any { return strings.Contains(a[0], a[1]) }, "s", "substr")
	ToUpper    = stringHelper("ToUpper", meta.String, func(a []string) any { return strings.ToUpper(a[0]) }, "s")
	ToLower    = stringHelper("ToLower", meta.String, func(a []string) any { return strings.ToLower(a[0]) }, "s")
	Length     = stringHelper("Length", meta.Int, func(a []string) any { return int64(len(a[0])) }, "s")
)

var (
	Now = Clock.Declare(&meta.Method{
		Name:     "Now",
		Result:   meta.Int,
		Static:   true,
		Volatile: true,
		Func: func([]any) (any, error) {
			return time.Now().UnixNano(), nil
		},
	})

	Random = Clock.Declare(&meta.Method{
		Name:     "Random",
		Result:   meta.Int,
		Static:   true,
		Volatile: true,
		Func: func([]any) (any, error) {
			return rand.Int64(), nil
		},
	})

	NewID = Clock.Declare(&meta.Method{
		Name:     "NewID",
		Result:   meta.String,
		Static:   true,
		Volatile: true,
		Func: func([]any) (any, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return nil, err
			}
			return id.String(), nil
		},
	})
)

// Helpers returns the scalar helpers by name, for front ends that resolve
// method names textually.
func Helpers() map[string]*meta.Method {
	out := make(map[string]*meta.Method)
	for _, t := range []*meta.Type{Strings, Clock} {
		for _, m := range t.Methods {
			out[m.Name] = m
		}
	}
	return out
}
