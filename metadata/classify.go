package metadata

import "strings"

// Role is the semantic role a node type plays in a generation pipeline.
// Classification is a pure lookup over the declared type string; field names
// alone are too ambiguous ("text", "seed" mean different things per type).
type Role int

const (
	RoleUnknown Role = iota
	RoleSampler
	RoleTextSource
	RolePromptManager
	RoleCheckpointLoader
	RoleLoraLoader
	RoleLoraStacker
	RoleLatentSize
)

// plain utility nodes that hold human-readable text
var textUtilityTypes = map[string]bool{
	"Note":                    true,
	"String":                  true,
	"Text":                    true,
	"Text Multiline":          true,
	"StringConstant":          true,
	"ShowText|pysssss":        true,
	"Text box":                true,
	"CR Text":                 true,
	"ttN text":                true,
	"easy string":             true,
	"SimpleText":              true,
	"String Literal":          true,
	"Text Concatenate":        true,
	"CR Prompt Text":          true,
	"ImpactWildcardProcessor": true,
}

// Classify maps a node type string to its semantic role.  The prompt-manager
// family outranks generic text encoders; stack-based LoRA loaders are split
// from flat ones because their strengths arrive as structured entries.
func Classify(typeName string) Role {
	if typeName == "" {
		return RoleUnknown
	}
	lower := strings.ToLower(typeName)
	compact := strings.ReplaceAll(strings.ReplaceAll(lower, " ", ""), "_", "")

	switch {
	case strings.Contains(compact, "promptmanager"):
		return RolePromptManager
	case strings.Contains(lower, "ksampler"), strings.Contains(lower, "sampler"):
		return RoleSampler
	case strings.Contains(lower, "checkpoint"), strings.Contains(lower, "unetloader"):
		return RoleCheckpointLoader
	case strings.Contains(lower, "lora"):
		if strings.Contains(lower, "stack") {
			return RoleLoraStacker
		}
		return RoleLoraLoader
	case strings.Contains(compact, "emptylatent"), strings.Contains(compact, "emptysd3latent"):
		return RoleLatentSize
	case strings.Contains(compact, "textencode"):
		return RoleTextSource
	case textUtilityTypes[typeName]:
		return RoleTextSource
	}
	return RoleUnknown
}
