// Package query is the OKS predicate and path query engine. It evaluates a tree of attribute comparators and
// relationship-traversal predicates against the object store, consulting
// objstore's optional attribute indices where the expression shape allows
// it, and separately computes path queries between a start and a goal
// object over named relationships.
//
// Package query does not lock: like package schema and package objstore, it
// relies on its caller (the kernel) holding at least the shared reader lock
// for the duration of Run/FindPath.
package query

import (
	"oks/internal/objstore"
	"oks/internal/schema"
	"oks/internal/value"
)

// Quantifier selects how a relationship-traversal predicate combines across
// a multi-valued relationship's targets.
type Quantifier int

const (
	QuantifierSome Quantifier = iota
	QuantifierAll
)

// Op is an attribute comparator operator.
type Op int

const (
	OpEqual Op = iota
	OpNotEqual
	OpRegex
	OpLessEqual
	OpGreaterEqual
	OpLess
	OpGreater
)

func (op Op) String() string {
	switch op {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpRegex:
		return "~"
	case OpLessEqual:
		return "<="
	case OpGreaterEqual:
		return ">="
	case OpLess:
		return "<"
	case OpGreater:
		return ">"
	default:
		return "?"
	}
}

// Expr is one node of a predicate query tree: an
// attribute comparator, a relationship-traversal predicate, or a
// NOT/AND/OR combination of sub-expressions. Exactly one constructor below
// should be used to build a well-formed Expr; the zero Expr is an
// attribute comparator on the empty name, so evaluating it against an
// object fails with objstore.ErrNoSuchMember.
type Expr struct {
	kind exprKind

	// attribute comparator fields
	attrName string
	op       Op
	rhs      value.Value
	rng      *value.Range // compiled-regex cache for OpRegex

	// relationship-traversal fields
	relName    string
	quantifier Quantifier
	sub        *Expr // predicate evaluated against each traversed object

	// logical combinator fields
	children []*Expr
}

type exprKind int

const (
	exprAttr exprKind = iota
	exprRelationship
	exprNot
	exprAnd
	exprOr
)

// Attr builds an attribute comparator node: attrName op rhs.
func Attr(attrName string, op Op, rhs value.Value) *Expr {
	return &Expr{kind: exprAttr, attrName: attrName, op: op, rhs: rhs}
}

// AttrRegex builds an attribute comparator node using a pre-built range as
// the compiled-pattern holder, letting the regex cache persist across
// repeated Run calls on the same Expr.
func AttrRegex(attrName string, rng *value.Range) *Expr {
	return &Expr{kind: exprAttr, attrName: attrName, op: OpRegex, rng: rng}
}

// Relationship builds a relationship-traversal predicate: quantifier over
// relName's targets must satisfy sub.
func Relationship(relName string, q Quantifier, sub *Expr) *Expr {
	return &Expr{kind: exprRelationship, relName: relName, quantifier: q, sub: sub}
}

// Not negates e.
func Not(e *Expr) *Expr { return &Expr{kind: exprNot, children: []*Expr{e}} }

// And conjoins es.
func And(es ...*Expr) *Expr { return &Expr{kind: exprAnd, children: es} }

// Or disjoins es.
func Or(es ...*Expr) *Expr { return &Expr{kind: exprOr, children: es} }

// Query is one predicate-query invocation: a root Expr evaluated against a
// class, optionally extended to every subclass.
type Query struct {
	ClassName       string
	IncludeSubclass bool
	Root            *Expr
}

// Run evaluates q against the store, returning every matching object. It
// first checks whether the root expression (or a top-level AND/OR of two
// attribute comparators on the same indexed attribute) can be served by
// objstore's sorted index; otherwise it scans the class's (and subclasses',
// if requested) object tables.
func Run(s *objstore.Store, g *schema.Graph, q Query) ([]*objstore.Object, error) {
	c, ok := g.FindClass(q.ClassName)
	if !ok {
		return nil, errNoSuchClass(q.ClassName)
	}

	if objs, ok, err := tryIndexed(s, c, q); ok {
		return objs, err
	}

	names := []string{c.Name}
	if q.IncludeSubclass {
		for _, sub := range c.Subclasses() {
			names = append(names, sub.Name)
		}
	}

	var out []*objstore.Object
	for _, name := range names {
		for _, o := range s.Objects(name) {
			match, err := eval(s, q.Root, o)
			if err != nil {
				return nil, err
			}
			if match {
				out = append(out, o)
			}
		}
	}
	return out, nil
}

// tryIndexed attempts to serve q.Root via objstore.Store.Lookup when it is
// a single attribute comparator, or an AND/OR of exactly two comparators on
// the same indexed attribute. The second return value is
// false when the expression shape does not qualify, signaling Run to fall
// back to a full scan.
func tryIndexed(s *objstore.Store, c *schema.Class, q Query) ([]*objstore.Object, bool, error) {
	if q.Root == nil {
		return nil, false, nil
	}
	switch q.Root.kind {
	case exprAttr:
		objs, ok := indexLookup(s, c.Name, q.Root)
		if !ok {
			return nil, false, nil
		}
		return filterBySubclass(objs, c, q.IncludeSubclass), true, nil
	case exprAnd, exprOr:
		if len(q.Root.children) != 2 {
			return nil, false, nil
		}
		a, b := q.Root.children[0], q.Root.children[1]
		if a.kind != exprAttr || b.kind != exprAttr || a.attrName != b.attrName {
			return nil, false, nil
		}
		left, ok := indexLookup(s, c.Name, a)
		if !ok {
			return nil, false, nil
		}
		right, ok := indexLookup(s, c.Name, b)
		if !ok {
			return nil, false, nil
		}
		var combined []*objstore.Object
		if q.Root.kind == exprAnd {
			combined = intersect(left, right)
		} else {
			combined = union(left, right)
		}
		return filterBySubclass(combined, c, q.IncludeSubclass), true, nil
	default:
		return nil, false, nil
	}
}

func indexLookup(s *objstore.Store, className string, e *Expr) ([]*objstore.Object, bool) {
	op := indexOp(e.op)
	if op == "" {
		return nil, false
	}
	return s.Lookup(className, e.attrName, op, e.rhs)
}

func indexOp(op Op) string {
	switch op {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	default:
		return ""
	}
}

func filterBySubclass(objs []*objstore.Object, c *schema.Class, includeSubclass bool) []*objstore.Object {
	out := objs[:0:0]
	for _, o := range objs {
		if o.Class() == c || (includeSubclass && o.Class().IsSubclassOf(c.Name)) {
			out = append(out, o)
		}
	}
	return out
}

func intersect(a, b []*objstore.Object) []*objstore.Object {
	set := make(map[*objstore.Object]bool, len(b))
	for _, o := range b {
		set[o] = true
	}
	var out []*objstore.Object
	for _, o := range a {
		if set[o] {
			out = append(out, o)
		}
	}
	return out
}

func union(a, b []*objstore.Object) []*objstore.Object {
	seen := make(map[*objstore.Object]bool, len(a)+len(b))
	var out []*objstore.Object
	for _, o := range append(append([]*objstore.Object(nil), a...), b...) {
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	return out
}

// eval evaluates e against o, recursing into relationship predicates.
func eval(s *objstore.Store, e *Expr, o *objstore.Object) (bool, error) {
	if e == nil {
		return true, nil
	}
	switch e.kind {
	case exprAttr:
		return evalAttr(e, o)
	case exprRelationship:
		return evalRelationship(s, e, o)
	case exprNot:
		m, err := eval(s, e.children[0], o)
		if err != nil {
			return false, err
		}
		return !m, nil
	case exprAnd:
		for _, c := range e.children {
			m, err := eval(s, c, o)
			if err != nil {
				return false, err
			}
			if !m {
				return false, nil
			}
		}
		return true, nil
	case exprOr:
		for _, c := range e.children {
			m, err := eval(s, c, o)
			if err != nil {
				return false, err
			}
			if m {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nil
	}
}

func evalAttr(e *Expr, o *objstore.Object) (bool, error) {
	v, err := o.Get(e.attrName)
	if err != nil {
		return false, err
	}
	if e.op == OpRegex {
		rng := e.rng
		if rng == nil {
			rng = value.EmptyRange(value.KindString)
		}
		return value.Match(v, rng)
	}
	cmp, err := value.TryCompare(v, e.rhs)
	if err != nil {
		return false, err
	}
	switch e.op {
	case OpEqual:
		return cmp == 0, nil
	case OpNotEqual:
		return cmp != 0, nil
	case OpLess:
		return cmp < 0, nil
	case OpLessEqual:
		return cmp <= 0, nil
	case OpGreater:
		return cmp > 0, nil
	case OpGreaterEqual:
		return cmp >= 0, nil
	default:
		return false, nil
	}
}

func evalRelationship(s *objstore.Store, e *Expr, o *objstore.Object) (bool, error) {
	v, err := o.Get(e.relName)
	if err != nil {
		return false, err
	}
	targets, err := relationshipTargets(v)
	if err != nil {
		return false, err
	}
	if len(targets) == 0 {
		// An empty relationship satisfies "all" vacuously and fails "some".
		return e.quantifier == QuantifierAll, nil
	}
	switch e.quantifier {
	case QuantifierSome:
		for _, t := range targets {
			m, err := eval(s, e.sub, t)
			if err != nil {
				return false, err
			}
			if m {
				return true, nil
			}
		}
		return false, nil
	default: // QuantifierAll
		for _, t := range targets {
			m, err := eval(s, e.sub, t)
			if err != nil {
				return false, err
			}
			if !m {
				return false, nil
			}
		}
		return true, nil
	}
}

// relationshipTargets normalizes a single- or multi-valued relationship
// value into the *objstore.Object slice it resolves to, failing with
// ErrUnresolvedDuringQuery if any element is still a deferred uid: an
// unresolved reference encountered during recursion aborts the query.
func relationshipTargets(v value.Value) ([]*objstore.Object, error) {
	switch v.Kind {
	case value.KindInvalid:
		return nil, nil
	case value.KindObject:
		o, ok := v.Object.(*objstore.Object)
		if !ok {
			return nil, nil
		}
		return []*objstore.Object{o}, nil
	case value.KindUID:
		return nil, ErrUnresolvedDuringQuery
	case value.KindList:
		out := make([]*objstore.Object, 0, len(v.List))
		for _, elem := range v.List {
			targets, err := relationshipTargets(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, targets...)
		}
		return out, nil
	default:
		return nil, nil
	}
}
