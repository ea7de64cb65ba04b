// Package evidence turns uploaded files into fragments the model can consume.
package evidence

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/HitoniYori/ijime-support-ai/internal/logger"
)

// ErrUnsupportedType is returned for a file whose type matches no extractor.
var ErrUnsupportedType = errors.New("unsupported evidence type")

// FormatError reports a file that matched an extractor but could not be read.
type FormatError struct {
	Name string
	Kind SourceKind
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Result is the outcome for one file: a fragment or an error, never both.
type Result struct {
	File     File
	Fragment Fragment
	Err      error
}

// Warning renders the error as a message for the person who uploaded the file.
func (r Result) Warning() string {
	if r.Err == nil {
		return ""
	}
	var fe *FormatError
	switch {
	case errors.As(r.Err, &fe):
		return fmt.Sprintf("Could not read %s file %q, so it was left out: %v", fe.Kind, fe.Name, fe.Err)
	case errors.Is(r.Err, ErrUnsupportedType):
		return fmt.Sprintf("%q has an unsupported type (%s) and was not sent.", r.File.Name, r.File.MIMEType)
	default:
		return fmt.Sprintf("%q was not sent: %v", r.File.Name, r.Err)
	}
}

// Normalize dispatches on the declared type; the first matching rule wins.
func Normalize(f File) Result {
	mimeType := strings.ToLower(f.MIMEType)
	if mimeType == "" {
		mimeType = strings.ToLower(DetectType(f.Name, f.Data))
		f.MIMEType = mimeType
	}

	var (
		frag Fragment
		err  error
	)
	switch {
	case strings.Contains(mimeType, "pdf"):
		frag, err = extractPDF(f)
	case strings.Contains(mimeType, "image"):
		frag, err = decodeImage(f)
	case strings.Contains(mimeType, "audio"):
		frag = InlineAudio{Name: f.Name, MIMEType: f.MIMEType, Data: f.Data}
	case strings.Contains(mimeType, "csv"), isSheetType(mimeType) && strings.EqualFold(filepath.Ext(f.Name), ".csv"):
		frag, err = extractCSV(f)
	case isSheetType(mimeType):
		frag, err = extractWorkbook(f)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedType, f.MIMEType)
	}

	if err != nil {
		logger.L.Warn("evidence file skipped", "file", f.Name, "type", f.MIMEType, "error", err)
		return Result{File: f, Err: err}
	}
	logger.L.Debug("evidence file normalized", "file", f.Name, "type", f.MIMEType)
	return Result{File: f, Fragment: frag}
}

// Windows browsers declare .csv uploads as application/vnd.ms-excel.
func isSheetType(mimeType string) bool {
	return strings.Contains(mimeType, "spreadsheet") || strings.Contains(mimeType, "excel")
}

// Report aggregates the per-file results of one turn.
type Report struct {
	Results []Result
}

// NormalizeAll normalizes every file in upload order. A failing file never
// stops the others.
func NormalizeAll(files []File) Report {
	rep := Report{Results: make([]Result, 0, len(files))}
	for _, f := range files {
		rep.Results = append(rep.Results, Normalize(f))
	}
	return rep
}

// Fragments returns the successful fragments in upload order.
func (r Report) Fragments() []Fragment {
	var out []Fragment
	for _, res := range r.Results {
		if res.Fragment != nil {
			out = append(out, res.Fragment)
		}
	}
	return out
}

// Warnings returns one message per file that was left out.
func (r Report) Warnings() []string {
	var out []string
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res.Warning())
		}
	}
	return out
}

// Provided reports whether any file was supplied at all, readable or not.
func (r Report) Provided() bool { return len(r.Results) > 0 }
