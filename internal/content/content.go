// Package content assembles the ordered parts of one outgoing user turn.
package content

import (
	"fmt"

	"github.com/HitoniYori/ijime-support-ai/internal/evidence"
	"github.com/HitoniYori/ijime-support-ai/internal/llm"
)

// Options holds the optional instructions placed after extracted text.
// Empty strings add nothing.
type Options struct {
	DocumentInstruction string
	TableInstruction    string
}

// Assemble puts the user text first, even when empty, then one part per
// fragment in upload order.
func Assemble(userText string, fragments []evidence.Fragment, opts Options) []llm.Part {
	parts := make([]llm.Part, 0, 1+len(fragments))
	parts = append(parts, llm.TextPart(userText))

	for _, frag := range fragments {
		switch f := frag.(type) {
		case evidence.ExtractedText:
			parts = append(parts, llm.TextPart(label(f)+"\n"+f.Text))
			if instr := opts.instruction(f.Kind); instr != "" {
				parts = append(parts, llm.TextPart(instr))
			}
		case evidence.InlineImage:
			parts = append(parts, llm.InlinePart(f.MIMEType, f.Data))
		case evidence.InlineAudio:
			parts = append(parts, llm.InlinePart(f.MIMEType, f.Data))
		}
	}
	return parts
}

func label(f evidence.ExtractedText) string {
	if f.Kind == evidence.SourcePDF {
		return fmt.Sprintf("[Reference document (PDF): %s]", f.Name)
	}
	return fmt.Sprintf("[Reference data: %s]", f.Name)
}

func (o Options) instruction(kind evidence.SourceKind) string {
	if kind == evidence.SourcePDF {
		return o.DocumentInstruction
	}
	return o.TableInstruction
}
