package pdf

import (
	"bytes"
	"strconv"
)

type kind int

const (
	kEOF kind = iota
	kNumber
	kName
	kString
	kArray
	kDictStart
	kDictEnd
	kOperator
)

type token struct {
	kind  kind
	text  []byte
	num   float64
	elems []token
}

// lexer: PDF 内容流词法分析（仅覆盖提取文本所需的子集）。
type lexer struct {
	b   []byte
	pos int
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.b) {
		c := l.b[l.pos]
		if isSpace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.b) && l.b[l.pos] != '\n' && l.b[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *lexer) regular() []byte {
	start := l.pos
	for l.pos < len(l.b) && !isSpace(l.b[l.pos]) && !isDelim(l.b[l.pos]) {
		l.pos++
	}
	return l.b[start:l.pos]
}

// next 返回下一个词法单元；数组整体作为一个 kArray 单元返回。
func (l *lexer) next() token {
	for {
		l.skipSpace()
		if l.pos >= len(l.b) {
			return token{kind: kEOF}
		}
		c := l.b[l.pos]
		switch c {
		case '(':
			l.pos++
			return token{kind: kString, text: l.literal()}
		case '<':
			if l.pos+1 < len(l.b) && l.b[l.pos+1] == '<' {
				l.pos += 2
				return token{kind: kDictStart}
			}
			l.pos++
			return token{kind: kString, text: l.hex()}
		case '>':
			if l.pos+1 < len(l.b) && l.b[l.pos+1] == '>' {
				l.pos += 2
				return token{kind: kDictEnd}
			}
			l.pos++
			continue
		case '[':
			l.pos++
			return l.array()
		case ']', '{', '}', ')':
			// 不成对的分隔符直接跳过
			l.pos++
			continue
		case '/':
			l.pos++
			return token{kind: kName, text: l.regular()}
		}
		word := l.regular()
		if len(word) == 0 {
			l.pos++
			continue
		}
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			if f, err := strconv.ParseFloat(string(word), 64); err == nil {
				return token{kind: kNumber, num: f}
			}
		}
		return token{kind: kOperator, text: word}
	}
}

func (l *lexer) array() token {
	arr := token{kind: kArray}
	for {
		l.skipSpace()
		if l.pos >= len(l.b) {
			return arr
		}
		if l.b[l.pos] == ']' {
			l.pos++
			return arr
		}
		t := l.next()
		if t.kind == kEOF {
			return arr
		}
		arr.elems = append(arr.elems, t)
	}
}

// literal 解析 (...) 字符串：支持嵌套括号、转义与八进制。
func (l *lexer) literal() []byte {
	var out []byte
	depth := 1
	for l.pos < len(l.b) {
		c := l.b[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return out
			}
		case '\\':
			if l.pos >= len(l.b) {
				return out
			}
			e := l.b[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				// 续行
				if l.pos < len(l.b) && l.b[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.b) && l.b[l.pos] >= '0' && l.b[l.pos] <= '7'; i++ {
						v = v*8 + int(l.b[l.pos]-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

func (l *lexer) hex() []byte {
	end := bytes.IndexByte(l.b[l.pos:], '>')
	var raw []byte
	if end < 0 {
		raw = l.b[l.pos:]
		l.pos = len(l.b)
	} else {
		raw = l.b[l.pos : l.pos+end]
		l.pos += end + 1
	}
	var out []byte
	var hi byte
	half := false
	for _, c := range raw {
		v, ok := hexVal(c)
		if !ok {
			continue
		}
		if !half {
			hi, half = v, true
			continue
		}
		out = append(out, hi<<4|v)
		half = false
	}
	if half {
		out = append(out, hi<<4)
	}
	return out
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// skipInlineImage 跳过 ID 与 EI 之间的二进制数据。
func (l *lexer) skipInlineImage() {
	for l.pos+2 < len(l.b) {
		if isSpace(l.b[l.pos]) && l.b[l.pos+1] == 'E' && l.b[l.pos+2] == 'I' &&
			(l.pos+3 == len(l.b) || isSpace(l.b[l.pos+3])) {
			l.pos += 3
			return
		}
		l.pos++
	}
	l.pos = len(l.b)
}
