package llm

import "strings"

// Role is a wire-level speaker in backend history.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Blob is raw typed binary content forwarded to the model untouched.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Part is one element of a turn's content: either text or inline binary data.
type Part struct {
	Text       string
	InlineData *Blob
}

// TextPart returns a text-only part.
func TextPart(text string) Part { return Part{Text: text} }

// InlinePart returns a binary part carrying data of the given MIME type.
func InlinePart(mimeType string, data []byte) Part {
	return Part{InlineData: &Blob{MIMEType: mimeType, Data: data}}
}

// IsInline reports whether the part carries binary data.
func (p Part) IsInline() bool { return p.InlineData != nil }

// HistoryEntry is the backend's view of one earlier turn.
type HistoryEntry struct {
	Role  Role
	Parts []string
}

// Response is a successful backend reply.
type Response struct {
	Text         string
	FinishReason string
}

// HarmCategory names a content-safety category the backend filters on.
type HarmCategory string

const (
	HarmHarassment       HarmCategory = "HARM_CATEGORY_HARASSMENT"
	HarmHateSpeech       HarmCategory = "HARM_CATEGORY_HATE_SPEECH"
	HarmSexuallyExplicit HarmCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmDangerousContent HarmCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
)

// BlockThreshold is how aggressively a category is filtered.
type BlockThreshold string

const (
	BlockNone           BlockThreshold = "BLOCK_NONE"
	BlockOnlyHigh       BlockThreshold = "BLOCK_ONLY_HIGH"
	BlockMediumAndAbove BlockThreshold = "BLOCK_MEDIUM_AND_ABOVE"
)

// SafetySetting pairs a harm category with its threshold.
type SafetySetting struct {
	Category  HarmCategory
	Threshold BlockThreshold
}

// Params are the generation parameters sent with every turn.
type Params struct {
	Temperature float64
	Safety      []SafetySetting
}

// HarmCategories lists the categories the permissive safety profile covers.
var HarmCategories = []HarmCategory{
	HarmHarassment,
	HarmHateSpeech,
	HarmSexuallyExplicit,
	HarmDangerousContent,
}

// DefaultParams returns temperature 0 with filtering disabled for every harm category.
// Abuse documentation routinely trips default filters.
func DefaultParams() Params {
	safety := make([]SafetySetting, 0, len(HarmCategories))
	for _, c := range HarmCategories {
		safety = append(safety, SafetySetting{Category: c, Threshold: BlockNone})
	}
	return Params{Temperature: 0, Safety: safety}
}

// JoinText concatenates the text of all text parts, separated by blank lines.
func JoinText(parts []Part) string {
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if !p.IsInline() && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}
