package docx

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"docsim/internal/ooxml"
	"docsim/pkg/contract"
)

const documentPart = "word/document.xml"

// Options: docx 提取器选项。
type Options struct {
	// HeadersFooters: 是否在正文之后追加页眉/页脚文本。
	HeadersFooters bool `json:"headers_footers,omitempty"`
}

// Extractor 从 Word 文档（OOXML）中抽取段落文本：每段一行，w:tab 转为制表符。
type Extractor struct {
	headersFooters bool
}

func New(opts *Options) *Extractor {
	e := &Extractor{}
	if opts != nil {
		e.headersFooters = opts.HeadersFooters
	}
	return e
}

var _ contract.Extractor = (*Extractor)(nil)

func (e *Extractor) Supports(mime string) bool {
	switch strings.ToLower(mime) {
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/docx":
		return true
	}
	return false
}

func (e *Extractor) Extract(ctx context.Context, content []byte, _, _ string) (string, error) {
	pkg, err := ooxml.Open(content)
	if err != nil {
		return "", fmt.Errorf("failed to read docx: %v: %w", err, contract.ErrExtractFailed)
	}
	if !pkg.Has(documentPart) {
		return "", fmt.Errorf("failed to read docx: missing %s: %w", documentPart, contract.ErrExtractFailed)
	}
	parts := []string{documentPart}
	if e.headersFooters {
		parts = append(parts, pkg.Names("word/header")...)
		parts = append(parts, pkg.Names("word/footer")...)
	}
	var b strings.Builder
	for _, part := range parts {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := e.part(pkg, part, &b); err != nil {
			return "", fmt.Errorf("failed to read docx: %s: %v: %w", part, err, contract.ErrExtractFailed)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func (e *Extractor) part(pkg *ooxml.Package, name string, out *strings.Builder) error {
	dec, closeFn, err := pkg.Decoder(name)
	if err != nil {
		return err
	}
	defer closeFn()

	var para strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !isWordML(t.Name.Space) {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			if !isWordML(t.Name.Space) {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteString(para.String())
				out.WriteByte('\n')
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	// 没有闭合段落的残留文本
	if para.Len() > 0 {
		out.WriteString(para.String())
		out.WriteByte('\n')
	}
	return nil
}

// isWordML: 过渡版与严格版 WordprocessingML 命名空间。
func isWordML(space string) bool {
	return strings.HasSuffix(space, "wordprocessingml/2006/main") || strings.HasSuffix(space, "wordprocessingml/main")
}
