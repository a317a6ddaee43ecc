package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"comfymeta/graphapi"
)

/*
read-only routes this client consumes:

@routes.get("/system_stats")
@routes.get("/object_info")
@routes.get("/history")
@routes.get("/history/{prompt_id}")
@routes.get("/view")
*/

func (c *ComfyClient) GetSystemStats() (*SystemStats, error) {
	resp, err := http.Get(fmt.Sprintf("http://%s/system_stats", c.serverBaseAddress))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	retv := &SystemStats{}
	err = json.Unmarshal(body, &retv)
	if err != nil {
		return nil, err
	}
	return retv, nil
}

// GetNodeTypes retrieves the node type names registered on the server.
func (c *ComfyClient) GetNodeTypes() ([]string, error) {
	resp, err := http.Get(fmt.Sprintf("http://%s/object_info", c.serverBaseAddress))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	objects := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &objects); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(objects))
	for name := range objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetPromptHistoryByIndex returns the server's generation history ordered by
// execution index.  ComfyUI does not recalculate history indices, so they
// are not always contiguous; only their relative order is meaningful.
func (c *ComfyClient) GetPromptHistoryByIndex() ([]PromptHistoryItem, error) {
	history, err := c.GetPromptHistoryByID()
	if err != nil {
		return nil, err
	}

	retv := make([]PromptHistoryItem, 0, len(history))
	for _, h := range history {
		retv = append(retv, h)
	}
	sort.Slice(retv, func(i, j int) bool {
		return retv[i].Index < retv[j].Index
	})
	return retv, nil
}

// GetPromptHistoryByID fetches /history and reconstructs each entry into a
// PromptHistoryItem keyed by prompt id.  The server stores each prompt as a
// positional array:
//
//	[0] index      int
//	[1] promptID   string
//	[2] prompt     map of node id to execution node
//	[3] extra_data (the UI workflow hides in extra_pnginfo)
//	[4] outputs    array of node ids with outputs
//
// The execution prompt at [2] is the primary source for the workflow; the
// embedded UI workflow at [3] is the fallback when [2] is unusable.
func (c *ComfyClient) GetPromptHistoryByID() (map[string]PromptHistoryItem, error) {
	resp, err := http.Get(fmt.Sprintf("http://%s/history", c.serverBaseAddress))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	type internalOutputs struct {
		Images *[]DataOutput `json:"images"`
	}
	type internalHistoryItem struct {
		Prompt  []json.RawMessage          `json:"prompt"`
		Outputs map[string]internalOutputs `json:"outputs"`
	}

	body, _ := io.ReadAll(resp.Body)
	history := make(map[string]internalHistoryItem)
	if err := json.Unmarshal(body, &history); err != nil {
		return nil, err
	}

	ret := make(map[string]PromptHistoryItem)
	for k, ph := range history {
		if len(ph.Prompt) < 3 {
			continue
		}

		var index float64
		_ = json.Unmarshal(ph.Prompt[0], &index)

		workflow, err := graphapi.NewWorkflowFromAPIFormat(ph.Prompt[2])
		if err != nil || len(workflow.Nodes) == 0 {
			workflow = workflowFromExtraData(ph.Prompt)
		}
		if workflow == nil {
			continue
		}

		item := PromptHistoryItem{
			PromptID: k,
			Index:    int(index),
			Workflow: workflow,
			Outputs:  make(map[graphapi.NodeID][]DataOutput),
		}
		for nid, o := range ph.Outputs {
			if o.Images != nil {
				item.Outputs[graphapi.NodeID(nid)] = *o.Images
			}
		}
		ret[k] = item
	}
	return ret, nil
}

// workflowFromExtraData digs the UI workflow out of extra_pnginfo.
func workflowFromExtraData(prompt []json.RawMessage) *graphapi.Workflow {
	if len(prompt) < 4 {
		return nil
	}
	var extra struct {
		PngInfo struct {
			Workflow json.RawMessage `json:"workflow"`
		} `json:"extra_pnginfo"`
	}
	if err := json.Unmarshal(prompt[3], &extra); err != nil {
		return nil
	}
	if len(extra.PngInfo.Workflow) == 0 {
		return nil
	}
	w, err := graphapi.NewWorkflowFromUIFormat(extra.PngInfo.Workflow)
	if err != nil {
		return nil
	}
	return w
}

// GetImage fetches the bytes of one output image through /view.
func (c *ComfyClient) GetImage(image_data DataOutput) ([]byte, error) {
	params := url.Values{}
	params.Add("filename", image_data.Filename)
	params.Add("subfolder", image_data.Subfolder)
	params.Add("type", image_data.Type)
	resp, err := http.Get(fmt.Sprintf("http://%s/view?%s", c.serverBaseAddress, params.Encode()))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
