package document

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/garyjia/legal-docgen/internal/domain/tag"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func wordPart(paragraphs ...string) string {
	var sb bytes.Buffer
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:document ` + wordNS + `><w:body>`)
	for _, p := range paragraphs {
		sb.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	sb.WriteString(`</w:body></w:document>`)
	return sb.String()
}

// buildDocx assembles a minimal archive from part name to XML
func buildDocx(t *testing.T, parts map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"[Content_Types].xml", "word/document.xml", "word/header1.xml", "word/footer1.xml", "word/styles.xml"} {
		data, ok := parts[name]
		if !ok {
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func readDocxPart(t *testing.T, content []byte, name string) string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name == name {
			data, err := readZipFile(f)
			require.NoError(t, err)
			return string(data)
		}
	}
	t.Fatalf("part %s not found", name)
	return ""
}

// buildXlsx creates a workbook with the given cells on Sheet1
func buildXlsx(t *testing.T, cells map[string]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for cell, value := range cells {
		require.NoError(t, f.SetCellValue("Sheet1", cell, value))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func textValues(kv ...string) tag.Values {
	values := make(tag.Values, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		values[kv[i]] = tag.TextValue{Text: kv[i+1]}
	}
	return values
}
