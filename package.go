// Comfymeta reconstructs the generation parameters behind a ComfyUI image from
// the serialized workflow graph that produced it.  Given either of the two
// graph encodings ComfyUI emits (the execution prompt or the UI workflow), it
// resolves prompt text, checkpoint, sampler settings and the ordered LoRA
// stack into a single flat summary record, degrading gracefully when a graph
// is malformed, cyclic or missing data.
package comfymeta
