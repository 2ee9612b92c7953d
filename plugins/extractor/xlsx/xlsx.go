package xlsx

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"docsim/internal/ooxml"
	"docsim/pkg/contract"
)

const workbookPart = "xl/workbook.xml"

// Extractor 从 Excel 工作簿（OOXML）中抽取单元格文本。
// 输出格式：每个工作表以 "Sheet: <name>" 开头，每行非空单元格以制表符连接，
// 工作表之间空一行。
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

var _ contract.Extractor = (*Extractor)(nil)

func (e *Extractor) Supports(mime string) bool {
	switch strings.ToLower(mime) {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel",
		"application/xlsx":
		return true
	}
	return false
}

type sheetRef struct {
	Name string `xml:"name,attr"`
	RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
}

func (e *Extractor) Extract(ctx context.Context, content []byte, _, _ string) (string, error) {
	pkg, err := ooxml.Open(content)
	if err != nil {
		return "", fmt.Errorf("failed to open excel file: %v: %w", err, contract.ErrExtractFailed)
	}
	sheets, err := readWorkbook(pkg)
	if err != nil {
		return "", fmt.Errorf("failed to open excel file: %v: %w", err, contract.ErrExtractFailed)
	}
	rels, err := pkg.Relationships(workbookPart)
	if err != nil {
		return "", fmt.Errorf("failed to open excel file: %v: %w", err, contract.ErrExtractFailed)
	}
	shared, err := readSharedStrings(pkg)
	if err != nil {
		return "", fmt.Errorf("failed to open excel file: %v: %w", err, contract.ErrExtractFailed)
	}

	var b strings.Builder
	for i, s := range sheets {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		part, ok := rels[s.RID]
		if !ok {
			// 兼容缺少关系文件的简化包
			part = fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1)
		}
		if !pkg.Has(part) {
			continue
		}
		rows, err := readSheet(pkg, part, shared)
		if err != nil {
			// 单表解析失败时跳过该表
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Sheet: ")
		b.WriteString(s.Name)
		b.WriteByte('\n')
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func readWorkbook(pkg *ooxml.Package) ([]sheetRef, error) {
	rc, err := pkg.Open(workbookPart)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var wb struct {
		Sheets []sheetRef `xml:"sheets>sheet"`
	}
	if err := xml.NewDecoder(rc).Decode(&wb); err != nil {
		return nil, err
	}
	return wb.Sheets, nil
}

// readSharedStrings 读取共享字符串表；富文本 <r><t> 片段拼接为一个字符串。
func readSharedStrings(pkg *ooxml.Package) ([]string, error) {
	const part = "xl/sharedStrings.xml"
	if !pkg.Has(part) {
		return nil, nil
	}
	dec, closeFn, err := pkg.Decoder(part)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var (
		out    []string
		cur    strings.Builder
		inSI   bool
		inText bool
		inPh   bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				inSI = true
				cur.Reset()
			case "rPh":
				// 注音（拼音/假名）不计入文本
				inPh = true
			case "t":
				inText = inSI && !inPh
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "si":
				inSI = false
				out = append(out, cur.String())
			case "rPh":
				inPh = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
}

type cell struct {
	Type   string   `xml:"t,attr"`
	Value  string   `xml:"v"`
	Inline string   `xml:"is>t"`
	Runs   []string `xml:"is>r>t"`
}

// readSheet 按行返回非空单元格文本。
func readSheet(pkg *ooxml.Package, part string, shared []string) ([][]string, error) {
	dec, closeFn, err := pkg.Decoder(part)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var (
		rows [][]string
		row  []string
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				row = row[:0:0]
			case "c":
				var c cell
				if err := dec.DecodeElement(&c, &t); err != nil {
					return nil, err
				}
				if s := c.text(shared); s != "" {
					row = append(row, s)
				}
			}
		case xml.EndElement:
			if t.Name.Local == "row" && len(row) > 0 {
				rows = append(rows, row)
			}
		}
	}
}

func (c cell) text(shared []string) string {
	switch c.Type {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(c.Value))
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		if c.Inline != "" {
			return c.Inline
		}
		return strings.Join(c.Runs, "")
	case "b":
		if strings.TrimSpace(c.Value) == "1" {
			return "true"
		}
		return "false"
	default:
		// n / str / e / d：按原文输出
		return strings.TrimSpace(c.Value)
	}
}
