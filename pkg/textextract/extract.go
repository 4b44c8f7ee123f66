package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/nikhilbhutani/docchat/pkg/chunker"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var errNoDocumentXML = errors.New("word/document.xml not found")

func Supported(mimeType string) bool {
	return mimeType == MimePDF || mimeType == MimeDOCX
}

// Validate checks that the declared parser can open data. Unsupported types
// pass; callers decide what to do with them.
func Validate(data []byte, mimeType string) error {
	switch mimeType {
	case MimePDF:
		_, err := openPDF(data)
		return err
	case MimeDOCX:
		_, err := docxParagraphs(data)
		return err
	default:
		return nil
	}
}

// Extract returns the document text cut into positional chunks of chunkSize
// runes. Unsupported types yield no chunks and no error.
func Extract(data []byte, mimeType string, chunkSize int) ([]string, error) {
	text, err := Text(data, mimeType)
	if err != nil {
		return nil, err
	}
	return chunker.Split(text, chunkSize), nil
}

// Text returns the plain text of a PDF (pages concatenated) or a DOCX (one
// line per body paragraph).
func Text(data []byte, mimeType string) (string, error) {
	switch mimeType {
	case MimePDF:
		return extractPDF(data)
	case MimeDOCX:
		paras, err := docxParagraphs(data)
		if err != nil {
			return "", err
		}
		var buf strings.Builder
		for _, p := range paras {
			buf.WriteString(p)
			buf.WriteString("\n")
		}
		return buf.String(), nil
	default:
		return "", nil
	}
}

// PageCount is the PDF page count or the DOCX paragraph count, 0 for other
// types or unreadable input.
func PageCount(data []byte, mimeType string) int {
	switch mimeType {
	case MimePDF:
		r, err := openPDF(data)
		if err != nil {
			return 0
		}
		return r.NumPage()
	case MimeDOCX:
		paras, err := docxParagraphs(data)
		if err != nil {
			return 0
		}
		return len(paras)
	default:
		return 0
	}
}

func openPDF(data []byte) (r *pdf.Reader, err error) {
	// The parser panics on some malformed xref tables.
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("open PDF: %v", p)
		}
	}()
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	return r, nil
}

func extractPDF(data []byte) (text string, err error) {
	reader, err := openPDF(data)
	if err != nil {
		return "", err
	}
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("read PDF: %v", p)
		}
	}()

	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(pageText)
	}
	return buf.String(), nil
}

// docxParagraphs returns the text of each top-level body paragraph.
// Paragraphs nested in tables are not part of the body flow and are skipped.
func docxParagraphs(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("open DOCX: %w", errNoDocumentXML)
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	return parseParagraphs(rc)
}

func parseParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paras    []string
		current  strings.Builder
		inPara   bool
		inRun    bool
		inText   bool
		tblDepth int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
			case "p":
				if tblDepth == 0 {
					inPara = true
					current.Reset()
				}
			case "r":
				inRun = inPara
			case "t":
				inText = inRun
			case "tab":
				// Tab stops in paragraph properties share this name.
				if inRun {
					current.WriteString("\t")
				}
			case "br", "cr":
				if inRun {
					current.WriteString("\n")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth--
			case "p":
				if inPara && tblDepth == 0 {
					paras = append(paras, current.String())
					inPara = false
				}
			case "r":
				inRun = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paras, nil
}
