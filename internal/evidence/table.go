package evidence

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/japanese"
)

var (
	errEmptyTable = errors.New("no rows")
	utf8BOM       = []byte{0xEF, 0xBB, 0xBF}
)

func extractCSV(f File) (Fragment, error) {
	rows, err := parseCSV(f.Data)
	if err != nil {
		return nil, &FormatError{Name: f.Name, Kind: SourceSpreadsheet, Err: err}
	}
	return ExtractedText{Kind: SourceSpreadsheet, Name: f.Name, Text: renderTable(rows)}, nil
}

func parseCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		// Excel on Japanese Windows exports CSV as Shift_JIS.
		decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode shift_jis: %w", err)
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	// Hand-typed logs often leave trailing cells out; renderTable pads them.
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, errEmptyTable
	}
	return rows, nil
}

func extractWorkbook(f File) (Fragment, error) {
	text, err := workbookText(f.Data)
	if err != nil {
		return nil, &FormatError{Name: f.Name, Kind: SourceSpreadsheet, Err: err}
	}
	return ExtractedText{Kind: SourceSpreadsheet, Name: f.Name, Text: text}, nil
}

func workbookText(data []byte) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	var sections []string
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("sheet %q: %w", sheet, err)
		}
		rows = trimEmptyRows(rows)
		if len(rows) == 0 {
			continue
		}
		sections = append(sections, fmt.Sprintf("Sheet: %s\n%s", sheet, renderTable(rows)))
	}
	if len(sections) == 0 {
		return "", errEmptyTable
	}
	return strings.Join(sections, "\n\n"), nil
}

func trimEmptyRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// renderTable draws rows as a bordered plain-text table; the first row is the header.
func renderTable(rows [][]string) string {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	padded := make([][]string, len(rows))
	for i, row := range rows {
		padded[i] = make([]string, width)
		copy(padded[i], row)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(padded[0]...).
		Rows(padded[1:]...)
	return t.Render()
}
