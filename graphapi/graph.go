package graphapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// apiNode is the wire shape of one node in the execution encoding: a flat
// mapping from node id to class_type plus named inputs, where each input is
// either a literal or a [node_id, output_index] pair.
type apiNode struct {
	ClassType string                     `json:"class_type"`
	Inputs    map[string]json.RawMessage `json:"inputs"`
	Meta      struct {
		Title string `json:"title"`
	} `json:"_meta"`
}

// NewWorkflowFromAPIFormat builds a Workflow from the execution encoding.
// A malformed node is included with an empty input map rather than dropped,
// so downstream heuristics can still scan its siblings.
func NewWorkflowFromAPIFormat(data []byte) (*Workflow, error) {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(sanitizeJSON(data), &raw); err != nil {
		return nil, err
	}

	w := &Workflow{Nodes: make(map[NodeID]*Node)}
	for id, nraw := range raw {
		node := &Node{ID: NodeID(id), Inputs: make(map[string]InputSlot)}
		var an apiNode
		if err := json.Unmarshal(nraw, &an); err != nil {
			slog.Warn("malformed node in execution graph", "id", id)
			w.Nodes[node.ID] = node
			continue
		}
		node.Type = an.ClassType
		node.Title = an.Meta.Title
		for field, v := range an.Inputs {
			node.Inputs[field] = slotFromAPIValue(v)
		}
		w.Nodes[node.ID] = node
	}
	return w, nil
}

// uiLink is one entry of the UI encoding's links array.  Top-level links are
// six element tuples; subgraph links use an object form.  Both are accepted.
type uiLink struct {
	ID         int
	OriginID   int
	OriginSlot int
	TargetID   int
	TargetSlot int
}

func (l *uiLink) UnmarshalJSON(b []byte) error {
	var tmp []interface{}
	if err := json.Unmarshal(b, &tmp); err == nil {
		if len(tmp) < 5 {
			return errors.New("wrong number of fields in link tuple")
		}
		nums := make([]int, 5)
		for i := 0; i < 5; i++ {
			f, ok := tmp[i].(float64)
			if !ok {
				return errors.New("non-numeric field in link tuple")
			}
			nums[i] = int(f)
		}
		l.ID, l.OriginID, l.OriginSlot, l.TargetID, l.TargetSlot = nums[0], nums[1], nums[2], nums[3], nums[4]
		return nil
	}

	var obj struct {
		ID         int `json:"id"`
		OriginID   int `json:"origin_id"`
		OriginSlot int `json:"origin_slot"`
		TargetID   int `json:"target_id"`
		TargetSlot int `json:"target_slot"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	l.ID = obj.ID
	l.OriginID = obj.OriginID
	l.OriginSlot = obj.OriginSlot
	l.TargetID = obj.TargetID
	l.TargetSlot = obj.TargetSlot
	return nil
}

type uiSlot struct {
	Name string `json:"name"`
	Link *int   `json:"link"`
}

type uiNode struct {
	ID           int             `json:"id"`
	Type         string          `json:"type"`
	Title        string          `json:"title"`
	WidgetValues json.RawMessage `json:"widgets_values"`
	Inputs       []uiSlot        `json:"inputs"`
}

type uiGraph struct {
	Nodes []*uiNode `json:"nodes"`
	Links []*uiLink `json:"links"`
}

// NewWorkflowFromUIFormat builds a Workflow from the UI encoding.  Linked
// inputs become Reference slots by consulting the links table; positional
// widgets_values are mapped to named fields through the per-type schema
// table, or kept positional when the type has no known schema.
func NewWorkflowFromUIFormat(data []byte) (*Workflow, error) {
	var g uiGraph
	if err := json.Unmarshal(sanitizeJSON(data), &g); err != nil {
		return nil, err
	}

	linksByID := make(map[int]*uiLink)
	for _, l := range g.Links {
		if l != nil {
			linksByID[l.ID] = l
		}
	}

	w := &Workflow{Nodes: make(map[NodeID]*Node)}
	for _, un := range g.Nodes {
		if un == nil {
			continue
		}
		node := &Node{
			ID:     NodeID(strconv.Itoa(un.ID)),
			Type:   un.Type,
			Title:  un.Title,
			Inputs: make(map[string]InputSlot),
		}

		for _, s := range un.Inputs {
			if s.Link == nil || s.Name == "" {
				continue
			}
			l, ok := linksByID[*s.Link]
			if !ok {
				continue
			}
			node.Inputs[s.Name] = Reference(NodeID(strconv.Itoa(l.OriginID)), l.OriginSlot)
		}

		applyWidgetValues(node, un.WidgetValues)
		w.Nodes[node.ID] = node
	}
	return w, nil
}

// applyWidgetValues folds a node's widgets_values into named input slots.
// Most nodes serialize widgets as a positional array whose order is given by
// the type's schema; some custom nodes serialize a name-to-value map instead.
func applyWidgetValues(node *Node, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}

	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err == nil {
		for k, v := range asMap {
			if _, taken := node.Inputs[k]; !taken {
				node.Inputs[k] = slotFromValue(v)
			}
		}
		return
	}

	var asList []interface{}
	if err := json.Unmarshal(raw, &asList); err != nil {
		slog.Warn("unreadable widgets_values", "id", node.ID, "type", node.Type)
		return
	}

	fields := WidgetSchema(node.Type)
	if fields == nil {
		node.Widgets = asList
		return
	}
	for i, v := range asList {
		if i >= len(fields) {
			// more widget values than the schema names, keep the rest positional
			node.Widgets = append(node.Widgets, asList[i:]...)
			break
		}
		if _, taken := node.Inputs[fields[i]]; !taken {
			node.Inputs[fields[i]] = slotFromValue(v)
		}
	}
}

// NewWorkflowFromJSON sniffs which of the two encodings the payload uses and
// dispatches to the matching loader.  A payload whose top level carries a
// "nodes" array is the UI encoding; anything else is treated as the flat
// execution encoding.
func NewWorkflowFromJSON(data []byte) (*Workflow, error) {
	probe := struct {
		Nodes json.RawMessage `json:"nodes"`
	}{}
	if err := json.Unmarshal(sanitizeJSON(data), &probe); err == nil {
		trimmed := strings.TrimSpace(string(probe.Nodes))
		if strings.HasPrefix(trimmed, "[") {
			return NewWorkflowFromUIFormat(data)
		}
	}
	return NewWorkflowFromAPIFormat(data)
}

// NewWorkflowFromJSONReader loads a workflow from an io.Reader.
func NewWorkflowFromJSONReader(r io.Reader) (*Workflow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return NewWorkflowFromJSON(data)
}

// NewWorkflowFromJSONFile loads a workflow from a JSON file on disk.
func NewWorkflowFromJSONFile(path string) (*Workflow, error) {
	freader, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer freader.Close()
	return NewWorkflowFromJSONReader(freader)
}
