package client

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

var pngSignature = []byte{137, 80, 78, 71, 13, 10, 26, 10}

// GetPngMetadata reads the tEXt chunks of a PNG stream into a keyword to
// content map.  ComfyUI stores the execution prompt under "prompt" and the
// UI workflow under "workflow" when it renders an image.
func GetPngMetadata(r io.Reader) (map[string]string, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	if !bytes.Equal(header, pngSignature) {
		return nil, errors.New("not a valid PNG file")
	}

	txtChunks := make(map[string]string)
	for {
		var length uint32
		err := binary.Read(r, binary.BigEndian, &length)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		chunkType := make([]byte, 4)
		if _, err := io.ReadFull(r, chunkType); err != nil {
			return nil, err
		}

		if string(chunkType) == "tEXt" {
			chunkData := make([]byte, length)
			if _, err := io.ReadFull(r, chunkData); err != nil {
				return nil, err
			}

			keywordEnd := bytes.IndexByte(chunkData, 0)
			if keywordEnd == -1 {
				return nil, errors.New("malformed tEXt chunk")
			}
			txtChunks[string(chunkData[:keywordEnd])] = string(chunkData[keywordEnd+1:])
		} else {
			if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
				return nil, err
			}
		}

		// Skip the CRC
		if _, err := io.CopyN(io.Discard, r, 4); err != nil {
			return nil, err
		}
	}
	return txtChunks, nil
}

// ExtractWorkflowJSON pulls the embedded workflow JSON out of a rendered
// PNG, preferring the execution prompt over the UI workflow since it is the
// form the server actually executed.
func ExtractWorkflowJSON(r io.Reader) ([]byte, error) {
	metadata, err := GetPngMetadata(r)
	if err != nil {
		return nil, err
	}
	if prompt, ok := metadata["prompt"]; ok {
		return []byte(prompt), nil
	}
	if workflow, ok := metadata["workflow"]; ok {
		return []byte(workflow), nil
	}
	return nil, errors.New("png does not contain workflow metadata")
}
