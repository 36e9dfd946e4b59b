package api

import (
	"github.com/samcharles93/loupe/internal/gguf"
)

// MetadataResponse carries the decoded container header and every metadata
// entry in file order. Duplicate keys are reported as-is.
type MetadataResponse struct {
	Object       string          `json:"object"`
	ID           string          `json:"id"`
	FileSize     int64           `json:"file_size"`
	Version      uint32          `json:"version"`
	TensorCount  uint64          `json:"tensor_count"`
	MetadataSize uint64          `json:"metadata_kv_count"`
	Entries      []MetadataEntry `json:"entries"`
}

type MetadataEntry struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

func entriesJSON(entries []gguf.Entry) []MetadataEntry {
	out := make([]MetadataEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, MetadataEntry{
			Key:   e.Key,
			Type:  e.Value.Type.String(),
			Value: valueJSON(e.Value.Value),
		})
	}
	return out
}

// valueJSON flattens decoded values into plain JSON shapes. Arrays become
// {"elem_type": ..., "values": [...]} so heterogeneously nested payloads
// stay self-describing.
func valueJSON(v any) any {
	av, ok := v.(gguf.ArrayValue)
	if !ok {
		return v
	}
	vals := make([]any, 0, len(av.Values))
	for _, el := range av.Values {
		vals = append(vals, valueJSON(el))
	}
	return map[string]any{
		"elem_type": av.ElemType.String(),
		"values":    vals,
	}
}
