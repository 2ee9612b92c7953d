package contract

import (
	"encoding/json"

	"docsim/pkg/similarity"
)

// FileID: 逻辑文档ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// 提取结果的编码标记。
const (
	EncodingUTF8    = "utf-8"
	EncodingError   = "error"
	EncodingUnknown = "application/octet-stream"
)

// FileMetadata: 单个文件的处理结果。
// 提取失败时 TextContent 为 "Error: <msg>"，Encoding 为 "error"；
// 无可用提取器时 TextContent 为空，Encoding 为 "application/octet-stream"。
type FileMetadata struct {
	Name             string  `json:"name"`
	Size             float64 `json:"size"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
	Encoding         string  `json:"encoding"`
	TextContent      string  `json:"text_content"`
	MimeType         string  `json:"mime_type"`
	// SimilarityMatches: 未配置参考语料时为 nil（JSON 中省略）；
	// 配置了参考语料时非 nil，无命中即为空列表 []。
	SimilarityMatches []similarity.Match `json:"similarity_matches,omitempty"`
}

type fileMetadataJSON FileMetadata

// MarshalJSON: nil 省略 similarity_matches，非 nil（含空切片）始终输出该键。
func (m FileMetadata) MarshalJSON() ([]byte, error) {
	if m.SimilarityMatches == nil {
		return json.Marshal(fileMetadataJSON(m))
	}
	return json.Marshal(struct {
		fileMetadataJSON
		SimilarityMatches []similarity.Match `json:"similarity_matches"`
	}{fileMetadataJSON(m), m.SimilarityMatches})
}

// GroupedFiles: 同一 MIME 类型的文件集合（文件按名称排序）。
type GroupedFiles struct {
	MimeType string         `json:"mime_type"`
	Files    []FileMetadata `json:"files"`
}

// Report: 一次运行的完整结果。
type Report struct {
	RunID          string         `json:"run_id"`
	Method         string         `json:"method"`
	Threshold      float64        `json:"threshold"`
	ReferenceCount int            `json:"reference_count"`
	References     []string       `json:"references,omitempty"`
	Groups         []GroupedFiles `json:"groups"`
}

// FileCount 返回报告中的文件总数。
func (r Report) FileCount() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Files)
	}
	return n
}
