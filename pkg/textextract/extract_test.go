package textextract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>Patient reports headaches.</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Blood pressure </w:t></w:r><w:r><w:t>normal.</w:t></w:r></w:p>
    <w:tbl><w:tr><w:tc><w:p><w:r><w:t>table cell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
    <w:p/>
    <w:p><w:r><w:t>Dose</w:t><w:tab/><w:t>5mg</w:t></w:r></w:p>
  </w:body>
</w:document>`

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestTextDOCX(t *testing.T) {
	data := buildDOCX(t, documentXML)

	text, err := Text(data, MimeDOCX)
	require.NoError(t, err)
	assert.Equal(t, "Patient reports headaches.\nBlood pressure normal.\n\nDose\t5mg\n", text)
	assert.Equal(t, 4, PageCount(data, MimeDOCX))
	assert.NoError(t, Validate(data, MimeDOCX))
}

func TestExtractChunksDOCX(t *testing.T) {
	data := buildDOCX(t, documentXML)

	chunks, err := Extract(data, MimeDOCX, 10)
	require.NoError(t, err)

	text, _ := Text(data, MimeDOCX)
	assert.Equal(t, text, strings.Join(chunks, ""))
	assert.Equal(t, "Patient re", chunks[0])
}

func TestUnsupportedType(t *testing.T) {
	chunks, err := Extract([]byte("plain words"), "text/plain", 500)
	assert.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Equal(t, 0, PageCount([]byte("x"), "image/png"))
	assert.NoError(t, Validate([]byte("x"), "image/png"))
	assert.False(t, Supported("text/plain"))
	assert.True(t, Supported(MimePDF))
}

func TestCorruptInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		mime string
	}{
		{"pdf garbage", []byte("this is not a pdf"), MimePDF},
		{"pdf empty", nil, MimePDF},
		{"docx garbage", []byte("PK not really a zip"), MimeDOCX},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Validate(tt.data, tt.mime))
			_, err := Extract(tt.data, tt.mime, 500)
			assert.Error(t, err)
			assert.Equal(t, 0, PageCount(tt.data, tt.mime))
		})
	}
}

func TestDOCXWithoutDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	err = Validate(buf.Bytes(), MimeDOCX)
	assert.ErrorIs(t, err, errNoDocumentXML)
}
