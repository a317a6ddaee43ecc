package graphapi

// widgetSchemas gives the field order of widgets_values for node types whose
// layout is known.  The UI encoding serializes widget values positionally;
// without the order they are only addressable by index.  Seed widgets carry a
// trailing control_after_generate combo that is serialized with them, so it
// appears in the order even though it is not a generation parameter.
var widgetSchemas = map[string][]string{
	"KSampler": {"seed", "control_after_generate", "steps", "cfg", "sampler_name", "scheduler", "denoise"},
	"KSamplerAdvanced": {
		"add_noise", "noise_seed", "control_after_generate", "steps", "cfg",
		"sampler_name", "scheduler", "start_at_step", "end_at_step", "return_with_leftover_noise",
	},
	"SamplerCustom":          {"add_noise", "noise_seed", "control_after_generate", "cfg"},
	"KSamplerSelect":         {"sampler_name"},
	"CheckpointLoaderSimple": {"ckpt_name"},
	"CheckpointLoader":       {"config_name", "ckpt_name"},
	"UNETLoader":             {"unet_name", "weight_dtype"},
	"LoraLoader":             {"lora_name", "strength_model", "strength_clip"},
	"LoraLoaderModelOnly":    {"lora_name", "strength_model"},
	"CLIPTextEncode":         {"text"},
	"CLIPSetLastLayer":       {"stop_at_clip_layer"},
	"EmptyLatentImage":       {"width", "height", "batch_size"},
	"EmptySD3LatentImage":    {"width", "height", "batch_size"},
	"LatentUpscale":          {"upscale_method", "width", "height", "crop"},
	"VAELoader":              {"vae_name"},
	"PrimitiveNode":          {"value", "control_after_generate"},
	"Note":                   {"text"},
	"String":                 {"value"},
	"Text":                   {"text"},
	"SaveImage":              {"filename_prefix"},
}

// WidgetSchema returns the widget field order for a node type, or nil when
// the type is unknown and values must stay positional.
func WidgetSchema(nodeType string) []string {
	fields, ok := widgetSchemas[nodeType]
	if !ok {
		return nil
	}
	return fields
}
