// Package ingest turns submitted documents into checkable plain text.
package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/ppiankov/plagiscan/internal/text"
)

// ErrUnsupportedFormat reports a file type we cannot read
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrTooShort reports input below the minimum checkable length
var ErrTooShort = errors.New("text too short to check")

// DefaultMinChars is the minimum normalized input length
const DefaultMinChars = 20

// Document is a parsed submission
type Document struct {
	Name   string
	Path   string
	Format string // txt, docx, pdf
	Text   string
}

// ParseFile reads path and extracts its text based on the extension
func ParseFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	doc, err := Parse(filepath.Base(path), raw)
	if err != nil {
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// Parse extracts text from raw bytes. name supplies the extension; a name
// without one is read as plain text.
func Parse(name string, raw []byte) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(name))

	var (
		body   string
		format string
		err    error
	)
	switch ext {
	case ".txt", ".text", ".md", "":
		format = "txt"
		body = decodeText(raw)
	case ".docx":
		format = "docx"
		body, err = parseDOCX(raw)
	case ".pdf":
		format = "pdf"
		body, err = parsePDF(raw)
	case ".doc":
		return nil, fmt.Errorf("%w: legacy .doc files are not supported, save as .docx", ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	return &Document{
		Name:   strings.TrimSuffix(name, filepath.Ext(name)),
		Format: format,
		Text:   body,
	}, nil
}

// Prepare normalizes text and rejects input shorter than minChars runes.
// minChars <= 0 uses DefaultMinChars.
func Prepare(raw string, minChars int) (string, error) {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	normalized := text.Normalize(raw)
	if n := utf8.RuneCountInString(normalized); n < minChars {
		return "", fmt.Errorf("%w: %d characters, need at least %d", ErrTooShort, n, minChars)
	}
	return normalized, nil
}

// decodeText strips a UTF-8 BOM and decodes non-UTF-8 input as Windows-1252
func decodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "")
	}
	return string(decoded)
}

func parseDOCX(raw []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open docx zip: %w", err)
	}

	var xmlData []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, openErr := f.Open()
		if openErr != nil {
			return "", fmt.Errorf("open document.xml: %w", openErr)
		}
		xmlData, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}
		break
	}
	if len(xmlData) == 0 {
		return "", fmt.Errorf("word/document.xml not found")
	}

	decoder := xml.NewDecoder(bytes.NewReader(xmlData))
	var b strings.Builder
	inText := false
	for {
		tok, tokenErr := decoder.Token()
		if tokenErr == io.EOF {
			break
		}
		if tokenErr != nil {
			return "", fmt.Errorf("decode document.xml: %w", tokenErr)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "p":
				if b.Len() > 0 {
					b.WriteString("\n")
				}
			case "tab":
				b.WriteString(" ")
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

func parsePDF(raw []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, pageErr := p.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("no extractable text found in pdf")
	}
	return b.String(), nil
}
