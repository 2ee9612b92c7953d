package text

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"docsim/pkg/contract"
)

// Options: 文本提取器选项。
type Options struct {
	// Encoding: 强制字符集（WHATWG 标签，如 "gbk"、"shift_jis"）；为空时自动检测。
	Encoding string `json:"encoding,omitempty"`
	// ExtraMIMEs: 额外视为文本的 MIME 类型。
	ExtraMIMEs []string `json:"extra_mimes,omitempty"`
}

// Extractor 处理 text/* 与文本类 application 类型。
type Extractor struct {
	forced encoding.Encoding
	extra  map[string]struct{}
}

var textLike = map[string]struct{}{
	"application/json":          {},
	"application/xml":           {},
	"application/javascript":    {},
	"application/typescript":    {},
	"application/x-javascript":  {},
	"application/xhtml+xml":     {},
	"application/ld+json":       {},
	"text/csv":                  {},
	"text/tsv":                  {},
	"text/tab-separated-values": {},
}

func New(opts *Options) (*Extractor, error) {
	e := &Extractor{extra: map[string]struct{}{}}
	if opts == nil {
		return e, nil
	}
	if lbl := strings.TrimSpace(opts.Encoding); lbl != "" {
		enc, err := htmlindex.Get(lbl)
		if err != nil {
			return nil, fmt.Errorf("text: unknown encoding %q: %w", lbl, contract.ErrInvalidInput)
		}
		e.forced = enc
	}
	for _, m := range opts.ExtraMIMEs {
		e.extra[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return e, nil
}

var _ contract.Extractor = (*Extractor)(nil)

func (e *Extractor) Supports(mime string) bool {
	mime = strings.ToLower(mime)
	if strings.HasPrefix(mime, "text/") {
		return true
	}
	if _, ok := textLike[mime]; ok {
		return true
	}
	_, ok := e.extra[mime]
	return ok
}

func (e *Extractor) Extract(ctx context.Context, content []byte, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := Decode(content, e.forced)
	if err != nil {
		return "", fmt.Errorf("failed to decode text content: %w", contract.ErrExtractFailed)
	}
	return s, nil
}

// Decode 将字节解码为 UTF-8 文本。
// forced 非 nil 时直接使用；否则依次：BOM（UTF-8/UTF-16LE/UTF-16BE）→ 合法 UTF-8 → Windows-1252。
// 非 UTF-16 内容中出现 NUL 视为二进制，返回错误；解码产生替换字符同样视为失败。
func Decode(content []byte, forced encoding.Encoding) (string, error) {
	if len(content) == 0 {
		return "", nil
	}
	if forced != nil {
		return decodeWith(forced, content)
	}
	switch {
	case bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}):
		content = content[3:]
		if !utf8.Valid(content) {
			return "", errDecode
		}
		return string(content), nil
	case bytes.HasPrefix(content, []byte{0xFF, 0xFE}):
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), content)
	case bytes.HasPrefix(content, []byte{0xFE, 0xFF}):
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), content)
	}
	if bytes.IndexByte(content, 0) >= 0 {
		return "", errDecode
	}
	if utf8.Valid(content) {
		return string(content), nil
	}
	return decodeWith(charmap.Windows1252, content)
}

var errDecode = errors.New("undecodable content")

func decodeWith(enc encoding.Encoding, content []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return "", err
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", errDecode
	}
	return string(out), nil
}
