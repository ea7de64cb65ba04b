package evidence

import "time"

// SourceKind says which extractor produced a text fragment.
type SourceKind string

const (
	SourcePDF         SourceKind = "pdf"
	SourceSpreadsheet SourceKind = "spreadsheet"
	SourceImage       SourceKind = "image"
	SourceAudio       SourceKind = "audio"
)

// Fragment is the model-ready form of one file, built fresh for a single request.
// It is one of ExtractedText, InlineImage or InlineAudio.
type Fragment interface {
	SourceName() string
	fragment()
}

// ExtractedText is text pulled out of a document or table.
type ExtractedText struct {
	Kind SourceKind
	Name string
	Text string
}

// InlineImage is a decoded, validated image sent as-is.
type InlineImage struct {
	Name     string
	MIMEType string
	Data     []byte
	Width    int
	Height   int
	TakenAt  time.Time // zero when the image carries no EXIF timestamp
}

// InlineAudio is a recording forwarded verbatim under its declared type.
type InlineAudio struct {
	Name     string
	MIMEType string
	Data     []byte
}

func (f ExtractedText) SourceName() string { return f.Name }
func (f InlineImage) SourceName() string   { return f.Name }
func (f InlineAudio) SourceName() string   { return f.Name }

func (ExtractedText) fragment() {}
func (InlineImage) fragment()   {}
func (InlineAudio) fragment()   {}
