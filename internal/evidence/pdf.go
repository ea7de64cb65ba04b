package evidence

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var errNoText = errors.New("no extractable text (scanned pages are not supported)")

func extractPDF(f File) (frag Fragment, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			frag, err = nil, &FormatError{Name: f.Name, Kind: SourcePDF, Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	text, err := pdfText(f.Data)
	if err != nil {
		return nil, &FormatError{Name: f.Name, Kind: SourcePDF, Err: err}
	}
	return ExtractedText{Kind: SourcePDF, Name: f.Name, Text: text}, nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		sb.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			sb.WriteByte('\n')
		}
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", errNoText
	}
	return sb.String(), nil
}
