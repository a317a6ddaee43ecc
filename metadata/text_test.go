package metadata

import (
	"strings"
	"testing"

	"comfymeta/graphapi"
)

func TestCollectTextFromEncoder(t *testing.T) {
	w := mustWorkflow(t, `{
		"6": {"class_type": "CLIPTextEncode", "inputs": {"text": "a cat", "clip": ["4", 1]}}
	}`)
	got := testResolver(w).collectText(graphapi.Reference("6", 0))
	if got != "a cat" {
		t.Errorf("Expected 'a cat', got %q", got)
	}
}

func TestCollectTextFollowsTextReference(t *testing.T) {
	// the encoder's text field itself points at a note node
	w := mustWorkflow(t, `{
		"6": {"class_type": "CLIPTextEncode", "inputs": {"text": ["8", 0], "clip": ["4", 1]}},
		"8": {"class_type": "Note", "inputs": {"text": "from a note"}}
	}`)
	got := testResolver(w).collectText(graphapi.Reference("6", 0))
	if got != "from a note" {
		t.Errorf("Expected note text, got %q", got)
	}
}

func TestCollectTextSkipsModelChannels(t *testing.T) {
	// an unrecognized conditioning combiner: aggregate its text inputs but
	// never descend through clip/model channels
	w := mustWorkflow(t, `{
		"5": {"class_type": "ConditioningCombine", "inputs": {
			"conditioning_1": ["6", 0],
			"conditioning_2": ["7", 0],
			"clip": ["9", 0]
		}},
		"6": {"class_type": "CLIPTextEncode", "inputs": {"text": "castle"}},
		"7": {"class_type": "CLIPTextEncode", "inputs": {"text": "sunset"}},
		"9": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "should-not-appear.safetensors"}}
	}`)
	got := testResolver(w).collectText(graphapi.Reference("5", 0))
	if got != "castle, sunset" {
		t.Errorf("Expected aggregated text, got %q", got)
	}
	if strings.Contains(got, "safetensors") {
		t.Error("Model channel content leaked into prompt text")
	}
}

func TestCollectTextBrokenTopLevel(t *testing.T) {
	w := mustWorkflow(t, `{}`)
	got := testResolver(w).collectText(graphapi.Reference("42", 0))
	if got != "[broken reference: 42]" {
		t.Errorf("Expected broken reference marker, got %q", got)
	}
}

func TestCollectTextCycleYieldsEmpty(t *testing.T) {
	w := mustWorkflow(t, `{
		"1": {"class_type": "ConditioningCombine", "inputs": {"conditioning": ["2", 0]}},
		"2": {"class_type": "ConditioningCombine", "inputs": {"conditioning": ["1", 0]}}
	}`)
	got := testResolver(w).collectText(graphapi.Reference("1", 0))
	if got != "" {
		t.Errorf("Expected empty text on cycle, got %q", got)
	}
}

func TestPromptManagerOutputSelection(t *testing.T) {
	w := mustWorkflow(t, `{
		"5": {"class_type": "PromptManager", "inputs": {"positive": "good things", "negative": "bad things"}}
	}`)
	r := testResolver(w)
	if got := r.collectText(graphapi.Reference("5", 0)); got != "good things" {
		t.Errorf("Expected output 0 to read positive, got %q", got)
	}
	if got := r.collectText(graphapi.Reference("5", 1)); got != "bad things" {
		t.Errorf("Expected output 1 to read negative, got %q", got)
	}
}

func TestNegativeKeywords(t *testing.T) {
	positives := []string{"a cat on a mat", "masterpiece, best quality"}
	negatives := []string{"bad anatomy, extra fingers", "embedding:easynegative", "WEIRD ANATOMY"}

	for _, s := range positives {
		if containsNegativeKeyword(s) {
			t.Errorf("%q wrongly flagged negative", s)
		}
	}
	for _, s := range negatives {
		if !containsNegativeKeyword(s) {
			t.Errorf("%q not flagged negative", s)
		}
	}
}
