package ooxml

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// build 按给定成员构造 zip 包。
func build(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestOpenAndRelationships(t *testing.T) {
	data := build(t, map[string]string{
		"xl/workbook.xml": `<workbook/>`,
		"xl/_rels/workbook.xml.rels": `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Target="worksheets/sheet1.xml"/>
<Relationship Id="rId2" Target="/xl/worksheets/sheet2.xml"/>
</Relationships>`,
		"xl/worksheets/sheet1.xml": `<worksheet/>`,
		"xl/worksheets/sheet2.xml": `<worksheet/>`,
	})
	p, err := Open(data)
	require.NoError(t, err)
	assert.True(t, p.Has("xl/workbook.xml"))
	assert.Equal(t, []string{"xl/worksheets/sheet1.xml", "xl/worksheets/sheet2.xml"}, p.Names("xl/worksheets/"))

	rels, err := p.Relationships("xl/workbook.xml")
	require.NoError(t, err)
	assert.Equal(t, "xl/worksheets/sheet1.xml", rels["rId1"])
	assert.Equal(t, "xl/worksheets/sheet2.xml", rels["rId2"])

	none, err := p.Relationships("xl/worksheets/sheet1.xml")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = p.Open("missing.xml")
	assert.Error(t, err)
}

func TestOpenNotZip(t *testing.T) {
	_, err := Open([]byte("not a zip"))
	assert.Error(t, err)
}
