package metadata

import (
	"reflect"
	"testing"

	"comfymeta/graphapi"
)

func mustWorkflow(t *testing.T, data string) *graphapi.Workflow {
	t.Helper()
	w, err := graphapi.NewWorkflowFromAPIFormat([]byte(data))
	if err != nil {
		t.Fatalf("Failed to load test graph: %v", err)
	}
	return w
}

func TestMinimalGraph(t *testing.T) {
	w := mustWorkflow(t, `{
		"1": {"class_type": "KSampler", "inputs": {"seed": 42, "steps": 20, "cfg": 7, "sampler_name": "euler"}}
	}`)
	sum := Resolve(w)

	if sum.Model != SentinelUnknown {
		t.Errorf("Expected model Unknown, got %v", sum.Model)
	}
	if sum.PositivePrompt != SentinelNotFound {
		t.Errorf("Expected positive prompt Not found, got %v", sum.PositivePrompt)
	}
	if sum.Steps != int64(20) {
		t.Errorf("Expected steps 20, got %v", sum.Steps)
	}
	if sum.CfgScale != int64(7) {
		t.Errorf("Expected cfg 7, got %v", sum.CfgScale)
	}
	if sum.Seed != int64(42) {
		t.Errorf("Expected seed 42, got %v", sum.Seed)
	}
	if sum.Sampler != "euler" {
		t.Errorf("Expected sampler euler, got %v", sum.Sampler)
	}
}

const fullChainGraph = `{
	"3": {"class_type": "KSampler", "inputs": {"seed": 1, "steps": 30, "cfg": 6.5, "sampler_name": "dpmpp_2m", "model": ["10", 0], "positive": ["6", 0], "negative": ["7", 0]}},
	"6": {"class_type": "CLIPTextEncode", "inputs": {"text": "a cat", "clip": ["4", 1]}},
	"7": {"class_type": "CLIPTextEncode", "inputs": {"text": "bad anatomy", "clip": ["4", 1]}},
	"10": {"class_type": "LoraLoader", "inputs": {"lora_name": "styleA", "strength_model": 0.8, "strength_clip": 0.7, "model": ["4", 0], "clip": ["4", 1]}},
	"4": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "base.safetensors"}},
	"5": {"class_type": "EmptyLatentImage", "inputs": {"width": 512, "height": 768, "batch_size": 1}}
}`

func TestFullChain(t *testing.T) {
	sum := Resolve(mustWorkflow(t, fullChainGraph))

	if sum.PositivePrompt != "a cat" {
		t.Errorf("Expected positive prompt 'a cat', got %q", sum.PositivePrompt)
	}
	if sum.NegativePrompt != "bad anatomy" {
		t.Errorf("Expected negative prompt 'bad anatomy', got %q", sum.NegativePrompt)
	}
	if sum.Model != "base.safetensors" {
		t.Errorf("Expected model base.safetensors, got %v", sum.Model)
	}
	if len(sum.Loras) != 1 || sum.Loras[0].Name != "styleA" {
		t.Fatalf("Expected single lora styleA, got %v", sum.Loras)
	}
	if sum.Loras[0].StrengthModel == nil || *sum.Loras[0].StrengthModel != 0.8 {
		t.Errorf("Expected lora model strength 0.8, got %v", sum.Loras[0].StrengthModel)
	}
	if sum.Size == nil || sum.Size.Width != 512 || sum.Size.Height != 768 {
		t.Errorf("Expected size 512x768, got %v", sum.Size)
	}
}

func TestEmptyGraph(t *testing.T) {
	sum := Resolve(mustWorkflow(t, `{}`))

	if sum.PositivePrompt != SentinelNotFound || sum.NegativePrompt != SentinelNotFound {
		t.Error("Expected prompt sentinels on empty graph")
	}
	if sum.Model != SentinelUnknown || sum.Sampler != SentinelUnknown {
		t.Error("Expected Unknown sentinels on empty graph")
	}
	if sum.Steps != SentinelUnknown || sum.CfgScale != SentinelUnknown || sum.Seed != SentinelUnknown || sum.ClipSkip != SentinelUnknown {
		t.Error("Expected Unknown scalar sentinels on empty graph")
	}
	if sum.Loras == nil || len(sum.Loras) != 0 {
		t.Error("Expected empty, non-nil lora list on empty graph")
	}
}

func TestNilGraph(t *testing.T) {
	sum := Resolve(nil)
	if sum.Model != SentinelUnknown {
		t.Error("Expected nil graph to resolve to sentinels")
	}
}

func TestDeterminism(t *testing.T) {
	w := mustWorkflow(t, fullChainGraph)
	first := Resolve(w)
	second := Resolve(w)
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical summaries from repeated resolution")
	}
}

func TestCycleTermination(t *testing.T) {
	sum := Resolve(mustWorkflow(t, `{
		"1": {"class_type": "KSampler", "inputs": {"steps": ["2", 0], "model": ["4", 0]}},
		"2": {"class_type": "IntPassthrough", "inputs": {"value": ["3", 0]}},
		"3": {"class_type": "IntPassthrough", "inputs": {"value": ["2", 0]}},
		"4": {"class_type": "ModelPassthrough", "inputs": {"model": ["5", 0]}},
		"5": {"class_type": "ModelPassthrough", "inputs": {"model": ["4", 0]}}
	}`))

	if sum.Steps != SentinelUnknown {
		t.Errorf("Expected cyclic steps chain to resolve Unknown, got %v", sum.Steps)
	}
	if sum.Model != SentinelUnknown {
		t.Errorf("Expected cyclic model chain to resolve Unknown, got %v", sum.Model)
	}
}

func TestBrokenReferenceVisible(t *testing.T) {
	sum := Resolve(mustWorkflow(t, `{
		"1": {"class_type": "KSampler", "inputs": {"steps": ["99", 0], "cfg": 7, "model": ["98", 0]}}
	}`))

	if sum.Steps != "[broken reference: 99]" {
		t.Errorf("Expected broken reference marker for steps, got %v", sum.Steps)
	}
	if sum.Steps == SentinelUnknown {
		t.Error("A broken reference must be distinguishable from Unknown")
	}
	if sum.Model != "[broken reference: 98]" {
		t.Errorf("Expected broken reference marker for model, got %v", sum.Model)
	}
}

func TestRolePriority(t *testing.T) {
	sum := Resolve(mustWorkflow(t, `{
		"1": {"class_type": "KSampler", "inputs": {"steps": 20}},
		"2": {"class_type": "CLIPTextEncode", "inputs": {"text": "bad anatomy, censored"}},
		"5": {"class_type": "PromptManager", "inputs": {"positive": "a majestic castle", "negative": "blurry"}}
	}`))

	if sum.PositivePrompt != "a majestic castle" {
		t.Errorf("Expected prompt manager positive to win, got %q", sum.PositivePrompt)
	}
	if sum.NegativePrompt != "blurry" {
		t.Errorf("Expected prompt manager negative to win, got %q", sum.NegativePrompt)
	}
}

func TestLoraOrdering(t *testing.T) {
	sum := Resolve(mustWorkflow(t, `{
		"1": {"class_type": "KSampler", "inputs": {"model": ["10", 0], "steps": 20}},
		"10": {"class_type": "Lora Stacker", "inputs": {
			"loras": [{"name": "A", "strength_model": 1.0, "on": true}, {"name": "B", "strength_model": 0.5, "on": true}],
			"model": ["11", 0]
		}},
		"11": {"class_type": "LoraLoader", "inputs": {"lora_name": "C", "strength_model": 0.8, "model": ["12", 0]}},
		"12": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "base.safetensors"}}
	}`))

	if len(sum.Loras) != 3 {
		t.Fatalf("Expected 3 loras, got %d: %v", len(sum.Loras), sum.Loras)
	}
	for i, want := range []string{"A", "B", "C"} {
		if sum.Loras[i].Name != want {
			t.Errorf("Expected lora %d to be %s, got %s", i, want, sum.Loras[i].Name)
		}
	}
	if sum.Model != "base.safetensors" {
		t.Errorf("Expected checkpoint at chain end, got %v", sum.Model)
	}
}

func TestKeywordDisambiguation(t *testing.T) {
	// no prompt manager and no labeled conditioning: the keyword set decides
	sum := Resolve(mustWorkflow(t, `{
		"1": {"class_type": "KSampler", "inputs": {"steps": 20}},
		"2": {"class_type": "CLIPTextEncode", "inputs": {"text": "unfinished, censored"}},
		"3": {"class_type": "CLIPTextEncode", "inputs": {"text": "a sunny meadow"}}
	}`))

	if sum.NegativePrompt != "unfinished, censored" {
		t.Errorf("Expected keyword match as negative, got %q", sum.NegativePrompt)
	}
	if sum.PositivePrompt != "a sunny meadow" {
		t.Errorf("Expected remaining node as positive, got %q", sum.PositivePrompt)
	}
}

func TestOrderDisambiguation(t *testing.T) {
	// no keywords match: first text node is positive, next distinct negative
	sum := Resolve(mustWorkflow(t, `{
		"1": {"class_type": "KSampler", "inputs": {"steps": 20}},
		"2": {"class_type": "CLIPTextEncode", "inputs": {"text": "first text"}},
		"3": {"class_type": "CLIPTextEncode", "inputs": {"text": "second text"}}
	}`))

	if sum.PositivePrompt != "first text" {
		t.Errorf("Expected first node as positive, got %q", sum.PositivePrompt)
	}
	if sum.NegativePrompt != "second text" {
		t.Errorf("Expected second node as negative, got %q", sum.NegativePrompt)
	}
}

func TestClipSkipFromChain(t *testing.T) {
	sum := Resolve(mustWorkflow(t, `{
		"1": {"class_type": "KSampler", "inputs": {"model": ["10", 0], "steps": 20}},
		"10": {"class_type": "LoraLoader", "inputs": {"lora_name": "x", "model": ["4", 0], "clip": ["11", 0]}},
		"11": {"class_type": "CLIPSetLastLayer", "inputs": {"stop_at_clip_layer": -2, "clip": ["4", 1]}},
		"4": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "base.safetensors"}}
	}`))

	if sum.ClipSkip != int64(-2) {
		t.Errorf("Expected clip skip -2, got %v", sum.ClipSkip)
	}
	if sum.Model != "base.safetensors" {
		t.Errorf("Expected checkpoint through the clip chain, got %v", sum.Model)
	}
}

func TestFallbackGuessing(t *testing.T) {
	// sampler present but uninformative: the last-resort scan may guess
	sum := Resolve(mustWorkflow(t, `{
		"1": {"class_type": "SamplerCustom", "inputs": {}},
		"2": {"class_type": "MysteryConfig", "inputs": {"algo": "euler", "quality": 25, "strength": 7.5}}
	}`))

	if sum.Steps != int64(25) {
		t.Errorf("Expected guessed steps 25, got %v", sum.Steps)
	}
	if sum.CfgScale != 7.5 {
		t.Errorf("Expected guessed cfg 7.5, got %v", sum.CfgScale)
	}
	if sum.Sampler != "euler" {
		t.Errorf("Expected guessed sampler euler, got %v", sum.Sampler)
	}
}

func TestFallbackNeverOverrides(t *testing.T) {
	sum := Resolve(mustWorkflow(t, `{
		"1": {"class_type": "KSampler", "inputs": {"steps": 20, "cfg": 7, "sampler_name": "ddim"}},
		"2": {"class_type": "MysteryConfig", "inputs": {"quality": 99, "algo": "euler"}}
	}`))

	if sum.Steps != int64(20) || sum.CfgScale != int64(7) || sum.Sampler != "ddim" {
		t.Errorf("Fallback guesses must not override structured values, got steps=%v cfg=%v sampler=%v",
			sum.Steps, sum.CfgScale, sum.Sampler)
	}
}

func TestNoSamplerGraph(t *testing.T) {
	sum := Resolve(mustWorkflow(t, `{
		"2": {"class_type": "CLIPTextEncode", "inputs": {"text": "orphaned text"}},
		"4": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "base.safetensors"}}
	}`))

	if sum.PositivePrompt != SentinelNotFound || sum.Model != SentinelUnknown {
		t.Error("A graph without a sampler resolves entirely to sentinels")
	}
}

func TestNodeBudget(t *testing.T) {
	engine := NewEngine(WithNodeBudget(1))
	sum := engine.Resolve(mustWorkflow(t, fullChainGraph))

	// the budget bounds the walk but resolution still completes
	if sum.Steps != int64(30) {
		t.Errorf("Literal sampler fields resolve regardless of budget, got %v", sum.Steps)
	}
}

func TestSamplerSelectorReference(t *testing.T) {
	sum := Resolve(mustWorkflow(t, `{
		"1": {"class_type": "SamplerCustom", "inputs": {"cfg": 5, "noise_seed": 77, "sampler": ["2", 0]}},
		"2": {"class_type": "KSamplerSelect", "inputs": {"sampler_name": "dpmpp_sde"}}
	}`))

	if sum.Sampler != "dpmpp_sde" {
		t.Errorf("Expected sampler name through selector node, got %v", sum.Sampler)
	}
	if sum.Seed != int64(77) {
		t.Errorf("Expected noise_seed alias, got %v", sum.Seed)
	}
}
