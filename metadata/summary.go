package metadata

import (
	"math"
	"sort"
	"strconv"

	"comfymeta/graphapi"
)

// Sentinels standing in for data the graph did not yield.  Every summary
// field is always present; a missing value becomes its sentinel, never an
// absent field, so rendering code downstream stays branch-free.
const (
	SentinelUnknown  = "Unknown"
	SentinelNotFound = "Not found"
)

// Dimensions is the latent image size, when a size source node exists.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ResolvedSummary is the flat generation-parameter record reconstructed from
// one workflow graph.  Scalar-or-sentinel fields are interface{} because a
// field carries either its genuine typed value, a broken-reference marker
// string, or the "Unknown" sentinel.
type ResolvedSummary struct {
	PositivePrompt string      `json:"positivePrompt"`
	NegativePrompt string      `json:"negativePrompt"`
	Model          string      `json:"model"`
	Loras          []LoraEntry `json:"loras"`
	Steps          interface{} `json:"steps"`
	CfgScale       interface{} `json:"cfgScale"`
	Seed           interface{} `json:"seed"`
	ClipSkip       interface{} `json:"clipSkip"`
	Sampler        string      `json:"sampler"`
	Size           *Dimensions `json:"size"`
}

func emptySummary() ResolvedSummary {
	return ResolvedSummary{
		PositivePrompt: SentinelNotFound,
		NegativePrompt: SentinelNotFound,
		Model:          SentinelUnknown,
		Loras:          make([]LoraEntry, 0),
		Steps:          SentinelUnknown,
		CfgScale:       SentinelUnknown,
		Seed:           SentinelUnknown,
		ClipSkip:       SentinelUnknown,
		Sampler:        SentinelUnknown,
	}
}

// Engine resolves workflow graphs into summaries.  It holds configuration
// only; every Resolve call allocates its own traversal state, so one Engine
// may serve concurrent resolutions.
type Engine struct {
	nodeBudget int
}

// Option configures an Engine.
type Option func(*Engine)

// WithNodeBudget caps the number of nodes visited during one resolution.
// Zero means unbounded.  Callers batching untrusted graphs set this.
func WithNodeBudget(n int) Option {
	return func(e *Engine) { e.nodeBudget = n }
}

// NewEngine builds an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve runs one resolution pass with a default Engine.
func Resolve(w *graphapi.Workflow) ResolvedSummary {
	return NewEngine().Resolve(w)
}

// Resolve reconstructs the generation summary for one workflow graph.  It
// never fails: malformed input degrades to sentinels, broken references
// surface as marker strings, cycles terminate through visited sets.
func (e *Engine) Resolve(w *graphapi.Workflow) ResolvedSummary {
	sum := emptySummary()
	if w == nil || len(w.Nodes) == 0 {
		return sum
	}

	r := &resolver{graph: w, budget: e.nodeBudget}

	sampler := findSampler(w)
	if sampler == nil {
		// an uninformative graph, not an error
		return sum
	}

	pos, neg := r.derivePrompts(sampler)
	if pos != "" {
		sum.PositivePrompt = pos
	}
	if neg != "" {
		sum.NegativePrompt = neg
	}

	sum.Steps = scalarOrSentinel(r.resolveField(sampler, "steps"))
	sum.CfgScale = scalarOrSentinel(r.resolveField(sampler, "cfg", "cfg_scale", "cfgScale"))
	sum.Seed = scalarOrSentinel(r.resolveField(sampler, "seed", "noise_seed"))
	sum.Sampler = r.samplerName(sampler)

	chain := r.walkModelChain(chainSeeds(sampler))
	if chain.model != "" {
		sum.Model = chain.model
	} else if id, broken := brokenChainSeed(w, sampler); broken {
		sum.Model = brokenMarker(id)
	}
	sum.Loras = chain.loras
	if v := scalarOrSentinel(chain.clipSkip); v != SentinelUnknown {
		sum.ClipSkip = v
	}

	sum.Size = r.deriveSize()

	r.applyFallbacks(&sum)
	return sum
}

// findSampler locates the canonical sampler: the first sampler-classified
// node carrying a conditioning input, falling back to the first sampler of
// any shape.  Node order is the workflow's stable id order.
func findSampler(w *graphapi.Workflow) *graphapi.Node {
	var first *graphapi.Node
	for _, id := range w.OrderedIDs() {
		n := w.Nodes[id]
		if Classify(n.Type) != RoleSampler {
			continue
		}
		if first == nil {
			first = n
		}
		_, hasPos := n.Input("positive")
		_, hasNeg := n.Input("negative")
		if hasPos || hasNeg {
			return n
		}
	}
	return first
}

// derivePrompts applies the positive/negative policy in priority order:
// a prompt-manager node is authoritative when present; otherwise the
// sampler's labeled conditioning inputs; otherwise generic text-encode nodes
// disambiguated by negative keywords, then by encounter order (best-effort,
// a documented ambiguity of the source data).
func (r *resolver) derivePrompts(sampler *graphapi.Node) (pos, neg string) {
	for _, id := range r.graph.OrderedIDs() {
		node := r.graph.Nodes[id]
		if Classify(node.Type) != RolePromptManager {
			continue
		}
		pos = r.promptManagerText(node, "positive", 0, map[graphapi.NodeID]bool{id: true})
		neg = r.promptManagerText(node, "negative", 1, map[graphapi.NodeID]bool{id: true})
		return pos, neg
	}

	if slot, ok := sampler.Input("positive"); ok {
		pos = r.collectText(slot)
	}
	if slot, ok := sampler.Input("negative"); ok {
		neg = r.collectText(slot)
	}
	if pos != "" || neg != "" {
		return pos, neg
	}

	type sourceText struct {
		id   graphapi.NodeID
		text string
	}
	texts := make([]sourceText, 0)
	for _, id := range r.graph.OrderedIDs() {
		node := r.graph.Nodes[id]
		if Classify(node.Type) != RoleTextSource {
			continue
		}
		t := r.nodeText(node, 0, map[graphapi.NodeID]bool{id: true})
		if t != "" {
			texts = append(texts, sourceText{id: id, text: t})
		}
	}

	negIdx := -1
	for i, t := range texts {
		if containsNegativeKeyword(t.text) {
			neg = t.text
			negIdx = i
			break
		}
	}
	posIdx := -1
	for i, t := range texts {
		if i != negIdx {
			pos = t.text
			posIdx = i
			break
		}
	}
	if negIdx == -1 {
		for i, t := range texts {
			if i != posIdx {
				neg = t.text
				break
			}
		}
	}
	return pos, neg
}

// samplerName resolves the sampler algorithm name.  SamplerCustom graphs
// reference a selector node that holds the name, so an unresolved reference
// gets a second look at the target's sampler_name field.
func (r *resolver) samplerName(sampler *graphapi.Node) string {
	v := r.resolveField(sampler, "sampler_name", "sampler")
	if s, ok := v.StringValue(); ok {
		return s
	}
	if v.Kind == ValueBroken {
		return brokenMarker(v.Broken)
	}
	for _, field := range []string{"sampler", "sampler_name"} {
		slot, ok := sampler.Input(field)
		if !ok || slot.Kind != graphapi.SlotReference {
			continue
		}
		target := r.graph.NodeByID(slot.Target)
		if target == nil {
			continue
		}
		if s, ok := r.resolveField(target, "sampler_name").StringValue(); ok {
			return s
		}
	}
	return SentinelUnknown
}

// chainSeeds collects the sampler inputs that start the model chain walk, in
// the fixed chain-edge order.
func chainSeeds(sampler *graphapi.Node) []graphapi.InputSlot {
	seeds := make([]graphapi.InputSlot, 0, 2)
	for _, field := range chainEdgeFields {
		if slot, ok := sampler.Input(field); ok {
			seeds = append(seeds, slot)
		}
	}
	return seeds
}

// brokenChainSeed reports whether the sampler's model chain starts at a
// reference to a node absent from the graph.
func brokenChainSeed(w *graphapi.Workflow, sampler *graphapi.Node) (graphapi.NodeID, bool) {
	for _, field := range chainEdgeFields {
		slot, ok := sampler.Input(field)
		if ok && slot.Kind == graphapi.SlotReference && w.NodeByID(slot.Target) == nil {
			return slot.Target, true
		}
	}
	return "", false
}

// deriveSize reads width/height from the first latent size source in the
// graph.  Best effort: the node does not have to be wired to the sampler.
func (r *resolver) deriveSize() *Dimensions {
	for _, id := range r.graph.OrderedIDs() {
		node := r.graph.Nodes[id]
		if Classify(node.Type) != RoleLatentSize {
			continue
		}
		wv, wok := r.resolveField(node, "width").Float64()
		hv, hok := r.resolveField(node, "height").Float64()
		if wok && hok && wv > 0 && hv > 0 {
			return &Dimensions{Width: int(wv), Height: int(hv)}
		}
	}
	return nil
}

// scalarOrSentinel converts a resolution outcome to a summary field value:
// the scalar itself, a visible broken-reference marker, or the sentinel.
func scalarOrSentinel(v Value) interface{} {
	switch v.Kind {
	case ValueScalar:
		if f, ok := v.Float64(); ok {
			return numericValue(f)
		}
		if s, ok := v.StringValue(); ok {
			return s
		}
	case ValueBroken:
		return brokenMarker(v.Broken)
	}
	return SentinelUnknown
}

// numericValue renders integral floats as integers so seeds and step counts
// round-trip through JSON without a fractional part.
func numericValue(f float64) interface{} {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// sampler algorithm names recognized by the last-resort scan
var knownSamplerNames = map[string]bool{
	"euler": true, "euler_ancestral": true, "euler_a": true,
	"heun": true, "heunpp2": true,
	"dpm_2": true, "dpm_2_ancestral": true,
	"lms": true, "dpm_fast": true, "dpm_adaptive": true,
	"dpmpp_2s_ancestral": true, "dpmpp_sde": true, "dpmpp_sde_gpu": true,
	"dpmpp_2m": true, "dpmpp_2m_sde": true, "dpmpp_2m_sde_gpu": true,
	"dpmpp_3m_sde": true, "dpmpp_3m_sde_gpu": true,
	"ddpm": true, "ddim": true, "uni_pc": true, "uni_pc_bh2": true,
	"lcm": true, "restart": true,
}

// applyFallbacks is the documented last-resort tier: when structured
// extraction yielded nothing for steps, CFG or the sampler name, scan every
// literal scalar in the graph for plausible values.  These are low-confidence
// guesses preserved from the legacy behavior; they never override a value
// obtained structurally, and seeds are never guessed (any integer would
// qualify).
func (r *resolver) applyFallbacks(sum *ResolvedSummary) {
	needSteps := sum.Steps == SentinelUnknown
	needCfg := sum.CfgScale == SentinelUnknown
	needSampler := sum.Sampler == SentinelUnknown
	if !needSteps && !needCfg && !needSampler {
		return
	}

	type fieldRef struct {
		id    graphapi.NodeID
		field string
	}
	var stepsSource *fieldRef

	for _, id := range r.graph.OrderedIDs() {
		node := r.graph.Nodes[id]

		fields := make([]string, 0, len(node.Inputs))
		for name := range node.Inputs {
			fields = append(fields, name)
		}
		sort.Strings(fields)

		consider := func(field string, value interface{}) {
			switch v := value.(type) {
			case float64:
				if needSteps && v == math.Trunc(v) && v >= 10 && v <= 150 {
					sum.Steps = numericValue(v)
					stepsSource = &fieldRef{id: id, field: field}
					needSteps = false
					return
				}
				if needCfg && v >= 1 && v <= 30 {
					if stepsSource != nil && stepsSource.id == id && stepsSource.field == field {
						return
					}
					sum.CfgScale = numericValue(v)
					needCfg = false
				}
			case string:
				if needSampler && knownSamplerNames[v] {
					sum.Sampler = v
					needSampler = false
				}
			}
		}

		for _, field := range fields {
			slot := node.Inputs[field]
			if slot.Kind == graphapi.SlotLiteral {
				consider(field, slot.Value)
			}
		}
		for i, w := range node.Widgets {
			consider("#"+strconv.Itoa(i), w)
		}
		if !needSteps && !needCfg && !needSampler {
			return
		}
	}
}
