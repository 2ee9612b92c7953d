package pdf

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"docsim/pkg/contract"
)

// Options: pdf 提取器选项。
type Options struct {
	// MaxStreamBytes: 单个内容流解压后的上限，<=0 使用 64MiB。
	MaxStreamBytes int64 `json:"max_stream_bytes,omitempty"`
}

// Extractor 扫描 PDF 内容流中 BT/ET 之间的文本显示操作符（Tj、TJ、'、"）。
// 仅支持单字节与 UTF-16BE（FE FF）字符串；CID 字体的字形编码不做映射。
type Extractor struct {
	maxStream int64
}

func New(opts *Options) *Extractor {
	e := &Extractor{maxStream: 64 << 20}
	if opts != nil && opts.MaxStreamBytes > 0 {
		e.maxStream = opts.MaxStreamBytes
	}
	return e
}

var _ contract.Extractor = (*Extractor)(nil)

func (e *Extractor) Supports(mime string) bool { return strings.EqualFold(mime, "application/pdf") }

var (
	errHeader    = errors.New("invalid header")
	errEncrypted = errors.New("encrypted document")
	errNoText    = errors.New("no text content")
)

func (e *Extractor) Extract(ctx context.Context, content []byte, _, _ string) (string, error) {
	head := content
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, []byte("%PDF-")) {
		return "", fail(errHeader)
	}
	if bytes.Contains(content, []byte("/Encrypt")) {
		return "", fail(errEncrypted)
	}

	var raw strings.Builder
	streams := 0
	for _, s := range findStreams(content) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		data, ok := e.decode(s)
		if !ok {
			continue
		}
		streams++
		showText(data, &raw)
	}
	if streams == 0 {
		return "", fail(errNoText)
	}
	return cleanLines(raw.String()), nil
}

func fail(err error) error {
	return fmt.Errorf("pdf extraction failed: %v: %w", err, contract.ErrExtractFailed)
}

// cleanLines: 逐行去首尾空白，丢弃空行。
func cleanLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, ln := range lines {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}

type stream struct {
	dict []byte
	data []byte
}

// findStreams 定位所有 "stream ... endstream" 片段及其所属对象字典。
func findStreams(b []byte) []stream {
	var out []stream
	pos := 0
	for {
		i := bytes.Index(b[pos:], []byte("stream"))
		if i < 0 {
			return out
		}
		i += pos
		// 排除 "endstream"
		if i >= 3 && bytes.Equal(b[i-3:i], []byte("end")) {
			pos = i + len("stream")
			continue
		}
		start := i + len("stream")
		if start < len(b) && b[start] == '\r' {
			start++
		}
		if start < len(b) && b[start] == '\n' {
			start++
		}
		end := bytes.Index(b[start:], []byte("endstream"))
		if end < 0 {
			return out
		}
		end += start
		dictStart := bytes.LastIndex(b[:i], []byte("obj"))
		if dictStart < 0 {
			dictStart = 0
		}
		out = append(out, stream{dict: b[dictStart:i], data: bytes.TrimRight(b[start:end], "\r\n")})
		pos = end + len("endstream")
	}
}

// skipDict: 不含文本操作符的流类型。
var skipDict = [][]byte{
	[]byte("/Subtype/Image"),
	[]byte("/Type/XRef"),
	[]byte("/Type/ObjStm"),
	[]byte("/Type/Metadata"),
	[]byte("/Length1"),
	[]byte("/Length2"),
}

func (e *Extractor) decode(s stream) ([]byte, bool) {
	dict := compact(s.dict)
	for _, k := range skipDict {
		if bytes.Contains(dict, k) {
			return nil, false
		}
	}
	if !bytes.Contains(dict, []byte("/Filter")) {
		return s.data, true
	}
	// 仅支持单一 FlateDecode
	if !bytes.Contains(dict, []byte("/Filter/FlateDecode")) && !bytes.Contains(dict, []byte("/Filter[/FlateDecode]")) {
		return nil, false
	}
	zr, err := zlib.NewReader(bytes.NewReader(s.data))
	if err != nil {
		return nil, false
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, e.maxStream))
	if err != nil && len(out) == 0 {
		return nil, false
	}
	// 截断的流保留已解出的部分
	return out, true
}

func compact(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if !isSpace(c) {
			out = append(out, c)
		}
	}
	return out
}

// showText 解释内容流并把文本写入 out；换行位置由文本定位操作符决定。
func showText(data []byte, out *strings.Builder) {
	l := &lexer{b: data}
	var ops []token
	inBT := false
	for {
		t := l.next()
		if t.kind == kEOF {
			return
		}
		if t.kind != kOperator {
			ops = append(ops, t)
			continue
		}
		switch string(t.text) {
		case "BT":
			inBT = true
		case "ET":
			inBT = false
			out.WriteByte('\n')
		case "ID":
			l.skipInlineImage()
		case "Tj":
			if inBT {
				writeOperand(out, last(ops))
			}
		case "'", "\"":
			if inBT {
				out.WriteByte('\n')
				writeOperand(out, last(ops))
			}
		case "TJ":
			if inBT {
				arr := last(ops)
				for _, el := range arr.elems {
					switch el.kind {
					case kString:
						out.WriteString(decodeString(el.text))
					case kNumber:
						// 大幅负向字距视为词间空格
						if el.num < -200 {
							out.WriteByte(' ')
						}
					}
				}
			}
		case "T*":
			out.WriteByte('\n')
		case "Td", "TD":
			if len(ops) >= 2 && ops[len(ops)-1].num != 0 {
				out.WriteByte('\n')
			} else {
				out.WriteByte(' ')
			}
		case "Tm":
			out.WriteByte('\n')
		}
		ops = ops[:0]
	}
}

func last(ops []token) token {
	if len(ops) == 0 {
		return token{}
	}
	return ops[len(ops)-1]
}

func writeOperand(out *strings.Builder, t token) {
	if t.kind == kString {
		out.WriteString(decodeString(t.text))
	}
}

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

// decodeString: FE FF 前缀按 UTF-16BE，否则按单字节（Latin-1）映射。
func decodeString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		if s, err := utf16be.NewDecoder().Bytes(b); err == nil {
			return string(s)
		}
	}
	rs := make([]rune, len(b))
	for i, c := range b {
		rs[i] = rune(c)
	}
	return string(rs)
}
