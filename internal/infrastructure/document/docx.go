package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/garyjia/legal-docgen/internal/domain/tag"
)

const docxMainPart = "word/document.xml"

// isTextPart reports whether a DOCX part carries document text
func isTextPart(name string) bool {
	if path.Dir(name) != "word" || path.Ext(name) != ".xml" {
		return false
	}
	base := path.Base(name)
	return base == "document.xml" ||
		base == "footnotes.xml" ||
		base == "endnotes.xml" ||
		strings.HasPrefix(base, "header") ||
		strings.HasPrefix(base, "footer")
}

// docxText returns the body text followed by headers and footers
func docxText(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx archive: %w", err)
	}

	var parts []*zip.File
	hasMain := false
	for _, f := range zr.File {
		if isTextPart(f.Name) {
			parts = append(parts, f)
			hasMain = hasMain || f.Name == docxMainPart
		}
	}
	if !hasMain {
		return "", fmt.Errorf("docx archive has no %s", docxMainPart)
	}

	// body first, then the other parts by name
	sort.SliceStable(parts, func(i, j int) bool {
		if parts[i].Name == docxMainPart || parts[j].Name == docxMainPart {
			return parts[i].Name == docxMainPart
		}
		return parts[i].Name < parts[j].Name
	})

	var sb strings.Builder
	for _, f := range parts {
		data, err := readZipFile(f)
		if err != nil {
			return "", err
		}
		if err := wordprocessingText(&sb, data); err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", f.Name, err)
		}
	}
	return sb.String(), nil
}

// wordprocessingText appends the w:t runs of a WordprocessingML part, one paragraph per line
func wordprocessingText(sb *strings.Builder, data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
}

// mergeDocx substitutes tags in every text part of a DOCX archive
func mergeDocx(content []byte, lookup func(string) (string, bool)) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx archive: %w", err)
	}

	escaped := func(name string) (string, bool) {
		v, ok := lookup(name)
		if !ok {
			return "", false
		}
		var buf bytes.Buffer
		if err := xml.EscapeText(&buf, []byte(v)); err != nil {
			return "", false
		}
		return buf.String(), true
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)

	for _, f := range zr.File {
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		if isTextPart(f.Name) {
			data = []byte(tag.Replace(string(data), escaped))
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   f.Method,
			Modified: f.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish docx archive: %w", err)
	}
	return out.Bytes(), nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	return data, nil
}
