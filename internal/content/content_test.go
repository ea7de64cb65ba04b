package content

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HitoniYori/ijime-support-ai/internal/evidence"
	"github.com/HitoniYori/ijime-support-ai/internal/llm"
)

func TestAssembleTextOnly(t *testing.T) {
	parts := Assemble("school won't investigate", nil, Options{})
	require.Equal(t, []llm.Part{llm.TextPart("school won't investigate")}, parts)
}

func TestAssembleKeepsEmptyTextFirst(t *testing.T) {
	parts := Assemble("", []evidence.Fragment{
		evidence.InlineAudio{Name: "call.m4a", MIMEType: "audio/mp4", Data: []byte("a")},
	}, Options{})
	require.Len(t, parts, 2)
	require.Equal(t, "", parts[0].Text)
	require.False(t, parts[0].IsInline())
	require.True(t, parts[1].IsInline())
	require.Equal(t, "audio/mp4", parts[1].InlineData.MIMEType)
}

func TestAssembleOrderAndInstructions(t *testing.T) {
	frags := []evidence.Fragment{
		evidence.ExtractedText{Kind: evidence.SourcePDF, Name: "guideline.pdf", Text: "Article 28"},
		evidence.InlineImage{Name: "note.png", MIMEType: "image/png", Data: []byte{1}},
		evidence.ExtractedText{Kind: evidence.SourceSpreadsheet, Name: "log.csv", Text: "table"},
	}

	parts := Assemble("check this", frags, Options{TableInstruction: "Look for timeline gaps."})
	require.Len(t, parts, 5)
	require.Equal(t, "check this", parts[0].Text)
	require.Equal(t, "[Reference document (PDF): guideline.pdf]\nArticle 28", parts[1].Text)
	require.Equal(t, "image/png", parts[2].InlineData.MIMEType)
	require.Equal(t, "[Reference data: log.csv]\ntable", parts[3].Text)
	require.Equal(t, "Look for timeline gaps.", parts[4].Text)

	withDoc := Assemble("check this", frags, Options{DocumentInstruction: "Cite page numbers."})
	require.Len(t, withDoc, 5)
	require.Equal(t, "Cite page numbers.", withDoc[2].Text)
}
