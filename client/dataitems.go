package client

import "comfymeta/graphapi"

// DataOutput describes one output artifact (usually an image) of a node.
type DataOutput struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type SystemStats struct {
	System  System `json:"system"`
	Devices []GPU  `json:"devices"`
}

type System struct {
	OS             string `json:"os"`
	PythonVersion  string `json:"python_version"`
	EmbeddedPython bool   `json:"embedded_python"`
}

type GPU struct {
	Name             string `json:"name"`
	Type             string `json:"type"`
	Index            int    `json:"index"`
	VRAM_Total       int64  `json:"vram_total"`
	VRAM_Free        int64  `json:"vram_free"`
	Torch_VRAM_Total int64  `json:"torch_vram_total"`
	Torch_VRAM_Free  int64  `json:"torch_vram_free"`
}

// PromptHistoryItem is one finished generation from the server's history:
// the workflow that produced it, normalized for resolution, plus the output
// artifacts keyed by the id of the node that produced them.
type PromptHistoryItem struct {
	PromptID string
	Index    int
	Workflow *graphapi.Workflow
	Outputs  map[graphapi.NodeID][]DataOutput
}
