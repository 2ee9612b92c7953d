// Package ooxml 提供 Office Open XML（docx/xlsx）容器的最小读取工具。
package ooxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"docsim/pkg/contract"
)

// MaxMemberBytes: 单个 zip 成员解压后的上限（防 zip 炸弹）。
const MaxMemberBytes = 256 << 20

// Package: 已打开的 OOXML 包。
type Package struct {
	files map[string]*zip.File
}

// Open 从内存字节打开 OOXML 包。
func Open(content []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}
	p := &Package{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		p.files[strings.TrimPrefix(f.Name, "/")] = f
	}
	return p, nil
}

// Has 报告成员是否存在。
func (p *Package) Has(name string) bool {
	_, ok := p.files[name]
	return ok
}

// Names 返回指定前缀下的成员名（字典序）。
func (p *Package) Names(prefix string) []string {
	var out []string
	for name := range p.files {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Open 打开成员流；调用方负责 Close。
func (p *Package) Open(name string) (io.ReadCloser, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("ooxml: missing part %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	return &limitedCloser{Reader: io.LimitReader(rc, MaxMemberBytes+1), c: rc, name: name}, nil
}

// Decoder 返回成员的 XML 解码器与关闭函数。
func (p *Package) Decoder(name string) (*xml.Decoder, func() error, error) {
	rc, err := p.Open(name)
	if err != nil {
		return nil, nil, err
	}
	dec := xml.NewDecoder(rc)
	// 非 UTF-8 声明的部件按原字节透传
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }
	return dec, rc.Close, nil
}

// Relationships 解析 _rels 文件，返回 Id → 解析后的包内路径。
func (p *Package) Relationships(owner string) (map[string]string, error) {
	dir, file := path.Split(owner)
	relsName := path.Join(dir, "_rels", file+".rels")
	out := map[string]string{}
	if !p.Has(relsName) {
		return out, nil
	}
	rc, err := p.Open(relsName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var doc struct {
		Rels []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return nil, err
	}
	for _, r := range doc.Rels {
		t := r.Target
		if strings.HasPrefix(t, "/") {
			t = strings.TrimPrefix(t, "/")
		} else {
			t = path.Join(dir, t)
		}
		out[r.ID] = t
	}
	return out, nil
}

type limitedCloser struct {
	io.Reader
	c    io.Closer
	name string
	n    int64
}

func (l *limitedCloser) Read(p []byte) (int, error) {
	n, err := l.Reader.Read(p)
	l.n += int64(n)
	if l.n > MaxMemberBytes {
		return n, fmt.Errorf("ooxml: part %s: %w", l.name, contract.ErrTooLarge)
	}
	return n, err
}

func (l *limitedCloser) Close() error { return l.c.Close() }
