package extract

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// 扩展名优先于内容嗅探：OOXML 与纯文本变体仅凭内容难以区分。
var extMIME = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
	".pdf":  "application/pdf",
	".br":   "application/x-brotli",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".json": "application/json",
	".xml":  "application/xml",
	".html": "text/html",
	".htm":  "text/html",
	".js":   "application/javascript",
	".ts":   "application/typescript",
	".srt":  "text/plain",
	".log":  "text/plain",
}

// DetectMIME 返回不含参数的 MIME 类型。
// 已知扩展名直接映射；否则按内容嗅探（github.com/gabriel-vasile/mimetype）。
func DetectMIME(filename string, content []byte) string {
	if m, ok := extMIME[strings.ToLower(path.Ext(filename))]; ok {
		return m
	}
	m := mimetype.Detect(content).String()
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(m)
}
