package ops

import (
	"fmt"
	"sync"

	"github.com/roach88/relinq/internal/meta"
)

// Extensions holds operators declared at run time under custom names, each
// a renamed copy of a Queryable operator.
var Extensions = meta.NewStatic("Extensions")

var aliasMu sync.Mutex

// DeclareAlias declares name on Extensions with every overload of the
// Queryable operator target, and returns the copies. Declaring the same
// alias again returns the existing copies when the target matches.
func DeclareAlias(name, target string) ([]*meta.Method, error) {
	aliasMu.Lock()
	defer aliasMu.Unlock()

	overloads := Queryable.MethodsNamed(target)
	if len(overloads) == 0 {
		return nil, fmt.Errorf("alias %q: unknown operator %q", name, target)
	}
	if len(Queryable.MethodsNamed(name)) > 0 {
		return nil, fmt.Errorf("alias %q: shadows a built-in operator", name)
	}
	if existing := Extensions.MethodsNamed(name); len(existing) > 0 {
		if aliasTargets[name] != target {
			return nil, fmt.Errorf("alias %q: already bound to %q", name, aliasTargets[name])
		}
		return existing, nil
	}

	out := make([]*meta.Method, len(overloads))
	for i, def := range overloads {
		cp := *def
		cp.Name = name
		out[i] = Extensions.Declare(&cp)
	}
	aliasTargets[name] = target
	return out, nil
}

var aliasTargets = map[string]string{}

// AliasTarget returns the Queryable operator an alias was declared for.
func AliasTarget(name string) (string, bool) {
	aliasMu.Lock()
	defer aliasMu.Unlock()
	t, ok := aliasTargets[name]
	return t, ok
}
