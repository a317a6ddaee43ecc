package metadata

import (
	"fmt"
	"sort"

	"comfymeta/graphapi"
)

// LoraEntry is one LoRA applied on top of the checkpoint.  Order within the
// summary is significant: entries appear as discovered walking backward from
// the sampler, closest first, since stacking order affects generation.
type LoraEntry struct {
	Name          string   `json:"name"`
	StrengthModel *float64 `json:"strengthModel,omitempty"`
	StrengthClip  *float64 `json:"strengthClip,omitempty"`
}

// field names that link a node to its upstream model/clip producer
var chainEdgeFields = []string{
	"model", "model_in", "model1", "model2",
	"clip", "clip_in", "clip1", "clip2",
	"unet", "unet_in",
}

// field aliases for the checkpoint name, first match wins
var checkpointFields = []string{"ckpt_name", "model_name", "checkpoint", "checkpoint_name", "filename"}

// field aliases for the clip-skip layer depth
var clipSkipFields = []string{"clip_skip", "clipSkip", "skip", "clip_layers", "stop_at_clip_layer"}

type chainResult struct {
	model    string
	loras    []LoraEntry
	clipSkip Value
}

// walkModelChain walks backward from the sampler's model/clip inputs,
// collecting the first checkpoint name, every LoRA in discovery order, and
// the first clip-skip value.  The traversal is iterative with an explicit
// stack so adversarially deep chains cannot exhaust the call stack; cycles
// terminate through the visited set.
func (r *resolver) walkModelChain(seeds []graphapi.InputSlot) chainResult {
	res := chainResult{loras: make([]LoraEntry, 0), clipSkip: unresolved()}

	stack := make([]graphapi.NodeID, 0, len(seeds))
	visited := make(map[graphapi.NodeID]bool)
	// push in reverse so the first seed is walked first
	for i := len(seeds) - 1; i >= 0; i-- {
		if seeds[i].Kind == graphapi.SlotReference && !visited[seeds[i].Target] {
			visited[seeds[i].Target] = true
			stack = append(stack, seeds[i].Target)
		}
	}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := r.graph.NodeByID(id)
		if node == nil {
			continue
		}
		if !r.charge() {
			break
		}

		if res.model == "" {
			if s, ok := r.resolveField(node, checkpointFields...).StringValue(); ok {
				res.model = s
			}
		}
		if res.clipSkip.Kind != ValueScalar {
			if v := r.resolveField(node, clipSkipFields...); v.Kind == ValueScalar {
				if _, ok := v.Float64(); ok {
					res.clipSkip = v
				}
			}
		}

		switch Classify(node.Type) {
		case RoleLoraLoader:
			res.loras = append(res.loras, r.flatLoraEntries(node)...)
		case RoleLoraStacker:
			res.loras = append(res.loras, r.stackedLoraEntries(node)...)
		}

		// push upstream edges in reverse so the first-listed edge pops first
		for i := len(chainEdgeFields) - 1; i >= 0; i-- {
			slot, ok := node.Input(chainEdgeFields[i])
			if !ok || slot.Kind != graphapi.SlotReference || visited[slot.Target] {
				continue
			}
			visited[slot.Target] = true
			stack = append(stack, slot.Target)
		}
	}
	return res
}

// flatLoraEntries reads a plain LoRA loader: one name plus scalar strengths.
func (r *resolver) flatLoraEntries(node *graphapi.Node) []LoraEntry {
	name, ok := r.resolveField(node, "lora_name", "lora", "name").StringValue()
	if !ok {
		return nil
	}
	entry := LoraEntry{Name: name}
	if f, ok := r.resolveField(node, "strength_model", "strength").Float64(); ok {
		entry.StrengthModel = &f
	}
	if f, ok := r.resolveField(node, "strength_clip").Float64(); ok {
		entry.StrengthClip = &f
	}
	return []LoraEntry{entry}
}

// stackedLoraEntries reads a stack-based loader.  Two wire shapes exist:
// a list input of structured entries, and numbered flat fields
// (lora_name_1, model_weight_1, ...).  Entry order is preserved and entries
// explicitly switched off are skipped.
func (r *resolver) stackedLoraEntries(node *graphapi.Node) []LoraEntry {
	entries := make([]LoraEntry, 0)

	fields := make([]string, 0, len(node.Inputs))
	for name := range node.Inputs {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	for _, field := range fields {
		slot := node.Inputs[field]
		if slot.Kind != graphapi.SlotList {
			continue
		}
		v := r.resolve(slot)
		items := v.Items
		if v.Kind == ValueScalar {
			// a single-entry stack collapses to one scalar
			items = []Value{v}
		}
		for _, item := range items {
			if e, ok := loraEntryFromValue(item); ok {
				entries = append(entries, e)
			}
		}
	}
	if len(entries) > 0 {
		return entries
	}

	// numbered flat fields
	for i := 1; i <= maxStackedLoras; i++ {
		nameField := fmt.Sprintf("lora_name_%d", i)
		name, ok := r.resolveField(node, nameField).StringValue()
		if !ok {
			break
		}
		if sw, ok := r.resolveField(node, fmt.Sprintf("switch_%d", i)).StringValue(); ok && sw == "Off" {
			continue
		}
		if name == "None" {
			continue
		}
		entry := LoraEntry{Name: name}
		if f, ok := r.resolveField(node, fmt.Sprintf("model_weight_%d", i), fmt.Sprintf("lora_wt_%d", i)).Float64(); ok {
			entry.StrengthModel = &f
		}
		if f, ok := r.resolveField(node, fmt.Sprintf("clip_weight_%d", i)).Float64(); ok {
			entry.StrengthClip = &f
		}
		entries = append(entries, entry)
	}
	return entries
}

const maxStackedLoras = 64

// loraEntryFromValue decodes one structured stack entry.  Entries marked
// inactive contribute nothing.
func loraEntryFromValue(v Value) (LoraEntry, bool) {
	if v.Kind != ValueScalar {
		return LoraEntry{}, false
	}
	m, ok := v.Scalar.(map[string]interface{})
	if !ok {
		return LoraEntry{}, false
	}

	if on, ok := m["on"].(bool); ok && !on {
		return LoraEntry{}, false
	}
	if enabled, ok := m["enabled"].(bool); ok && !enabled {
		return LoraEntry{}, false
	}
	if sw, ok := m["switch"].(string); ok && sw == "Off" {
		return LoraEntry{}, false
	}

	var name string
	for _, key := range []string{"name", "lora", "lora_name"} {
		if s, ok := m[key].(string); ok && s != "" {
			name = s
			break
		}
	}
	if name == "" || name == "None" {
		return LoraEntry{}, false
	}

	entry := LoraEntry{Name: name}
	for _, key := range []string{"strength_model", "strength", "model_weight", "weight"} {
		if f, ok := m[key].(float64); ok {
			entry.StrengthModel = &f
			break
		}
	}
	for _, key := range []string{"strength_clip", "clip_weight"} {
		if f, ok := m[key].(float64); ok {
			entry.StrengthClip = &f
			break
		}
	}
	return entry, true
}
