package metadata

import "comfymeta/graphapi"

// ValueKind discriminates resolution outcomes.
type ValueKind int

const (
	// ValueUnresolved means the reference chain never reached a literal;
	// cycle termination lands here too.
	ValueUnresolved ValueKind = iota
	// ValueScalar is a concrete literal.
	ValueScalar
	// ValueBroken means a reference named a node id absent from the graph.
	// Kept distinct from unresolved so it can surface as a visible marker.
	ValueBroken
	// ValueList is a resolved heterogeneous list (LoRA stacks).
	ValueList
)

// Value is the outcome of resolving one input slot.
type Value struct {
	Kind   ValueKind
	Scalar interface{}
	Broken graphapi.NodeID
	Items  []Value
}

func unresolved() Value { return Value{Kind: ValueUnresolved} }

func scalarOf(v interface{}) Value { return Value{Kind: ValueScalar, Scalar: v} }

func brokenOf(id graphapi.NodeID) Value { return Value{Kind: ValueBroken, Broken: id} }

// StringValue returns the scalar as a non-empty string if it is one.
func (v Value) StringValue() (string, bool) {
	if v.Kind != ValueScalar {
		return "", false
	}
	s, ok := v.Scalar.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Float64 returns the scalar as a float64 if it is numeric.
func (v Value) Float64() (float64, bool) {
	if v.Kind != ValueScalar {
		return 0, false
	}
	switch n := v.Scalar.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// fields a constant-like source node exposes its single value under
var constantFields = []string{"value", "number", "float", "int", "seed", "string"}

// resolver performs one resolution pass over a workflow.  It is allocated per
// resolve call and never shared; visited sets are created fresh per top-level
// slot so the same sub-graph can be resolved again without tripping the cycle
// guard across unrelated lookups.
type resolver struct {
	graph   *graphapi.Workflow
	budget  int // maximum nodes visited across the whole pass, 0 = unbounded
	visited int
}

// charge counts one node visit against the budget.
func (r *resolver) charge() bool {
	r.visited++
	return r.budget == 0 || r.visited <= r.budget
}

// resolve resolves a slot with a fresh visited set.
func (r *resolver) resolve(slot graphapi.InputSlot) Value {
	return r.resolveSlot(slot, make(map[graphapi.NodeID]bool))
}

// resolveSlot walks a slot down to a concrete value, a broken-reference
// marker, or an unresolved result.  Cycles terminate through the visited set,
// never by raising.
func (r *resolver) resolveSlot(slot graphapi.InputSlot, visited map[graphapi.NodeID]bool) Value {
	switch slot.Kind {
	case graphapi.SlotLiteral:
		return scalarOf(slot.Value)

	case graphapi.SlotReference:
		node := r.graph.NodeByID(slot.Target)
		if node == nil {
			return brokenOf(slot.Target)
		}
		if visited[slot.Target] {
			return unresolved()
		}
		visited[slot.Target] = true
		if !r.charge() {
			return unresolved()
		}

		for _, field := range constantFields {
			if s, ok := node.Input(field); ok {
				return r.resolveSlot(s, visited)
			}
		}
		// a schema-less node holding exactly one positional widget value is
		// treated as a constant source (PrimitiveNode variants, reroutes)
		if len(node.Widgets) == 1 {
			return scalarOf(node.Widgets[0])
		}
		return unresolved()

	case graphapi.SlotList:
		items := make([]Value, 0, len(slot.Elems))
		scalars := 0
		var lone Value
		for _, e := range slot.Elems {
			v := r.resolveSlot(e, visited)
			items = append(items, v)
			if v.Kind == ValueScalar && v.Scalar != nil {
				scalars++
				lone = v
			}
		}
		if scalars == 1 {
			return lone
		}
		return Value{Kind: ValueList, Items: items}
	}
	return unresolved()
}

// resolveField resolves the first of the given field names present on the
// node.  Missing fields are skipped; the first present one decides.
func (r *resolver) resolveField(node *graphapi.Node, names ...string) Value {
	for _, name := range names {
		if slot, ok := node.Input(name); ok {
			return r.resolve(slot)
		}
	}
	return unresolved()
}
