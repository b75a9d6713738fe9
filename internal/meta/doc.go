// Package meta provides type and method descriptors for call-chain ASTs.
//
// A front end describes every operator overload it calls with a *Method.
// Generic operators are declared once as generic definitions and referenced
// from call sites as closed instantiations. The registry never keys on a
// closed method: it first reduces it to its generic definition with
// Normalize and then derives a comparable MethodKey.
//
// KINDS:
//
//	KindBasic     int, float, string, bool, any
//	KindRecord    named or anonymous record with fields
//	KindStatic    holder of receiver-less operator methods (e.g. Queryable)
//	KindGeneric   open generic type definition (Seq<T>, Grouping<K, E>)
//	KindInstance  closed instantiation of a generic definition (Seq<int>)
//	KindParam     type parameter of a generic type or generic method
//
// NORMALIZATION:
//
// A call against an instantiated generic type (e.g. List<int>.Contains)
// carries a method copy whose DeclaringType is the instance. Normalize
// locates the unique member on the generic definition with the same name,
// parameter count, parameter names and per-position compatible types.
// An open type parameter position is always compatible. Zero or several
// candidates produce an AmbiguousBindingError; the binding is never guessed.
package meta
