// Package beantree converts Go object graphs into a format-neutral canonical
// tree and binds such trees back into typed values.
//
// The engine has four parts:
//
// - a BeanMeta cache describing each struct type once (Registry)
// - swaps from the codec package for types that should not be introspected
// - the traversal engine (Session.Serialize) with trim policies, subset
//   filters and recursion detection
// - the binder (Session.Parse, Bind)
//
// Design policy:
// - A Context is built once with a Builder and is immutable afterwards.
// - A Session serves one call and is discarded.
// - Wire formats live under format/ and only ever see *Node values.
//
// Typical usage:
//
//	ctx, err := beantree.NewBuilder().TrimNullProperties(true).Build()
//	tree, err := ctx.Serialize(order)
//	data, err := json.New(format.Options{}).Marshal(tree)
//
//	tree, err = json.New(format.Options{}).Unmarshal(data)
//	back, err := beantree.Bind[Order](ctx, tree)
package beantree
