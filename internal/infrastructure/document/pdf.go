package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

var pdfMagic = []byte("%PDF-")

// openPDF refuses anything that is not a PDF; MuPDF would otherwise open plain text too
func openPDF(content []byte) (*fitz.Document, error) {
	if !bytes.HasPrefix(content, pdfMagic) {
		return nil, fmt.Errorf("not a PDF document")
	}
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return doc, nil
}

// pdfText returns the text of every page, pages separated by form feeds
func pdfText(content []byte) (string, error) {
	doc, err := openPDF(content)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i+1, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\f"), nil
}

// PDFPageCount returns the number of pages of a PDF document
func PDFPageCount(content []byte) (int, error) {
	doc, err := openPDF(content)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.NumPage(), nil
}
