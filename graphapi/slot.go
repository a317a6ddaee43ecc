package graphapi

import "encoding/json"

// SlotKind discriminates the three shapes an input slot can take.
type SlotKind int

const (
	// SlotLiteral holds a concrete scalar (string, float64, bool, nil, or an
	// opaque map for structured widget values).
	SlotLiteral SlotKind = iota
	// SlotReference points at another node's output.
	SlotReference
	// SlotList is a heterogeneous array mixing literals and references, used
	// by stacked-LoRA inputs among others.
	SlotList
)

// InputSlot is one input of a node: a literal value, a reference to another
// node's output, or a list of slots.
type InputSlot struct {
	Kind   SlotKind
	Value  interface{} // literal value when Kind == SlotLiteral
	Target NodeID      // referenced node when Kind == SlotReference
	Output int         // output index on the referenced node
	Elems  []InputSlot // elements when Kind == SlotList
}

// Literal wraps a scalar value in an InputSlot.
func Literal(v interface{}) InputSlot {
	return InputSlot{Kind: SlotLiteral, Value: v}
}

// Reference builds a slot pointing at output idx of the node with the given id.
func Reference(id NodeID, idx int) InputSlot {
	return InputSlot{Kind: SlotReference, Target: id, Output: idx}
}

// List wraps a slice of slots in a single list slot.
func List(elems []InputSlot) InputSlot {
	return InputSlot{Kind: SlotList, Elems: elems}
}

// slotFromAPIValue decodes one raw input value from the execution encoding.
// A two element array of [string, number] is a node reference; any other
// array becomes a list; everything else is a literal.
func slotFromAPIValue(raw json.RawMessage) InputSlot {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return Literal(nil)
	}
	return slotFromValue(v)
}

func slotFromValue(v interface{}) InputSlot {
	arr, ok := v.([]interface{})
	if !ok {
		return Literal(v)
	}

	if len(arr) == 2 {
		if id, ok := arr[0].(string); ok {
			if idx, ok := arr[1].(float64); ok {
				return Reference(NodeID(id), int(idx))
			}
		}
	}

	elems := make([]InputSlot, 0, len(arr))
	for _, e := range arr {
		elems = append(elems, slotFromValue(e))
	}
	return List(elems)
}
