package metadata

import (
	"fmt"
	"sort"
	"strings"

	"comfymeta/graphapi"
)

// textFragmentSeparator joins text gathered from multiple inputs of one node.
const textFragmentSeparator = ", "

// brokenMarker renders the visible marker for a reference to a node id that
// does not exist in the graph.  UIs surface this as a diagnostic instead of
// silently showing blank text.
func brokenMarker(id graphapi.NodeID) string {
	return fmt.Sprintf("[broken reference: %s]", id)
}

// channels that never carry prompt text; recursing into them would drag
// model-chain noise into the aggregate
var nonTextChannels = []string{"clip", "model", "unet", "vae", "latent", "image", "pixels", "mask"}

func isNonTextChannel(field string) bool {
	lower := strings.ToLower(field)
	for _, c := range nonTextChannels {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

// collectText resolves all human-readable text reachable from a conditioning
// input.  A broken reference at the top level yields an explicit marker;
// deeper failures (cycles, missing nodes, no text) yield an empty string.
func (r *resolver) collectText(slot graphapi.InputSlot) string {
	if slot.Kind == graphapi.SlotReference && r.graph.NodeByID(slot.Target) == nil {
		return brokenMarker(slot.Target)
	}
	return r.gatherText(slot, make(map[graphapi.NodeID]bool))
}

func (r *resolver) gatherText(slot graphapi.InputSlot, visited map[graphapi.NodeID]bool) string {
	switch slot.Kind {
	case graphapi.SlotLiteral:
		if s, ok := slot.Value.(string); ok {
			return s
		}
		return ""

	case graphapi.SlotList:
		parts := make([]string, 0, len(slot.Elems))
		for _, e := range slot.Elems {
			if t := r.gatherText(e, visited); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, textFragmentSeparator)

	case graphapi.SlotReference:
		node := r.graph.NodeByID(slot.Target)
		if node == nil || visited[slot.Target] {
			return ""
		}
		visited[slot.Target] = true
		if !r.charge() {
			return ""
		}
		return r.nodeText(node, slot.Output, visited)
	}
	return ""
}

// nodeText extracts text from one node, dispatching on its role.
func (r *resolver) nodeText(node *graphapi.Node, output int, visited map[graphapi.NodeID]bool) string {
	switch Classify(node.Type) {
	case RolePromptManager:
		// the manager exposes dedicated positive/negative outputs; the
		// referenced output index selects which text to read
		if output == 1 {
			return r.promptManagerText(node, "negative", 1, visited)
		}
		return r.promptManagerText(node, "positive", 0, visited)

	case RoleTextSource:
		for _, field := range []string{"text", "prompt", "string", "value"} {
			if s, ok := node.Input(field); ok {
				return r.gatherText(s, visited)
			}
		}
		for _, w := range node.Widgets {
			if s, ok := w.(string); ok && s != "" {
				return s
			}
		}
		return ""
	}

	// not a recognized text source: aggregate from every input except the
	// model-chain channels, in stable field order
	fields := make([]string, 0, len(node.Inputs))
	for name := range node.Inputs {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, name := range fields {
		if isNonTextChannel(name) {
			continue
		}
		if t := r.gatherText(node.Inputs[name], visited); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, textFragmentSeparator)
}

// promptManagerText reads the designated positive or negative text of a
// prompt-manager node, preferring dedicated fields over positional widgets.
func (r *resolver) promptManagerText(node *graphapi.Node, polarity string, widgetIndex int, visited map[graphapi.NodeID]bool) string {
	aliases := []string{polarity, polarity + "_text", "text_" + polarity, polarity + "_prompt"}
	for _, field := range aliases {
		if s, ok := node.Input(field); ok {
			return r.gatherText(s, visited)
		}
	}
	if widgetIndex < len(node.Widgets) {
		if s, ok := node.Widgets[widgetIndex].(string); ok {
			return s
		}
	}
	return ""
}

// keywords that mark a generic text-encode node as the negative prompt
var negativeKeywords = []string{
	"bad anatomy",
	"unfinished",
	"censored",
	"weird anatomy",
	"negative",
	"embedding:",
}

func containsNegativeKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range negativeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
