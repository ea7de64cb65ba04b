package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HitoniYori/ijime-support-ai/internal/content"
	"github.com/HitoniYori/ijime-support-ai/internal/evidence"
	"github.com/HitoniYori/ijime-support-ai/internal/history"
	"github.com/HitoniYori/ijime-support-ai/internal/llm"
)

type sendCall struct {
	history []llm.HistoryEntry
	content []llm.Part
	params  llm.Params
}

// mockBackend returns scripted replies and records every call.
type mockBackend struct {
	replies []string
	err     error
	calls   []sendCall
	onSend  func()
}

func (m *mockBackend) Send(ctx context.Context, hist []llm.HistoryEntry, parts []llm.Part, params llm.Params) (llm.Response, error) {
	m.calls = append(m.calls, sendCall{history: hist, content: parts, params: params})
	if m.onSend != nil {
		m.onSend()
	}
	if m.err != nil {
		return llm.Response{}, m.err
	}
	if len(m.replies) == 0 {
		panic("mockBackend: no more replies configured")
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return llm.Response{Text: r}, nil
}

func newTestController(b llm.Backend) (*Controller, *history.Store) {
	store := history.NewStore("hello")
	return NewController(b, store, content.Options{}), store
}

func TestSubmitSuccessAppendsUserThenAssistant(t *testing.T) {
	b := &mockBackend{replies: []string{"Article 23 requires an investigation."}}
	c, store := newTestController(b)

	out, err := c.Submit(context.Background(), "school won't investigate", nil)
	require.NoError(t, err)
	require.Nil(t, out.Failure)
	require.Equal(t, "Article 23 requires an investigation.", out.Reply)
	require.Equal(t, 3, store.Len())
	require.Equal(t, []history.Turn{
		{Role: history.RoleAssistant, Content: "hello"},
		{Role: history.RoleUser, Content: "school won't investigate"},
		{Role: history.RoleAssistant, Content: "Article 23 requires an investigation."},
	}, store.All())
	require.Equal(t, StateIdle, c.State())

	require.Len(t, b.calls, 1)
	require.Equal(t, llm.DefaultParams(), b.calls[0].params)
	require.Zero(t, b.calls[0].params.Temperature)
}

func TestSubmitFailureAppendsOnlyUserTurn(t *testing.T) {
	b := &mockBackend{err: llm.ErrRateLimited}
	c, store := newTestController(b)

	out, err := c.Submit(context.Background(), "are they allowed to do this?", nil)
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	require.Equal(t, llm.KindRateLimited, out.Failure.Kind)
	require.Empty(t, out.Reply)
	require.Equal(t, 2, store.Len())
	require.Equal(t, history.RoleUser, store.All()[1].Role)
	require.Equal(t, StateIdle, c.State())
}

func TestSubmitEmptyReplyIsFailure(t *testing.T) {
	b := &mockBackend{replies: []string{"  \n"}}
	c, store := newTestController(b)

	out, err := c.Submit(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	require.Equal(t, llm.KindEmptyResponse, out.Failure.Kind)
	require.Equal(t, 2, store.Len())
}

func TestSubmitCorruptPDFScenario(t *testing.T) {
	b := &mockBackend{replies: []string{"ok"}}
	c, _ := newTestController(b)

	out, err := c.Submit(context.Background(), "school won't investigate", []evidence.File{
		{Name: "report.pdf", MIMEType: "application/pdf", Data: []byte("not a pdf")},
	})
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	require.Contains(t, out.Warnings[0], "report.pdf")
	require.Empty(t, out.Fragments)

	require.Len(t, b.calls, 1)
	require.Equal(t, []llm.Part{llm.TextPart("school won't investigate")}, b.calls[0].content)
	require.Equal(t, []llm.HistoryEntry{{Role: llm.RoleModel, Parts: []string{"hello"}}}, b.calls[0].history)
}

func TestSubmitNothingToSend(t *testing.T) {
	b := &mockBackend{}
	c, store := newTestController(b)

	out, err := c.Submit(context.Background(), "   ", []evidence.File{
		{Name: "bad.csv", MIMEType: "text/csv"},
	})
	require.ErrorIs(t, err, ErrNothingToSend)
	require.Len(t, out.Warnings, 1)
	require.Empty(t, b.calls)
	require.Equal(t, 1, store.Len())
	require.Equal(t, StateIdle, c.State())
}

func TestSubmitEvidenceOnly(t *testing.T) {
	b := &mockBackend{replies: []string{"I listened to the recording."}}
	c, store := newTestController(b)

	out, err := c.Submit(context.Background(), "", []evidence.File{
		{Name: "call.mp3", MIMEType: "audio/mpeg", Data: []byte("ID3")},
	})
	require.NoError(t, err)
	require.Len(t, out.Fragments, 1)
	require.Len(t, b.calls[0].content, 2)
	require.Equal(t, "", b.calls[0].content[0].Text)
	require.True(t, b.calls[0].content[1].IsInline())
	require.Equal(t, 3, store.Len())
	require.Equal(t, "", store.All()[1].Content)
}

func TestHistoryGrowsAcrossTurnsWithoutEvidence(t *testing.T) {
	b := &mockBackend{replies: []string{"first answer", "second answer"}}
	c, _ := newTestController(b)

	_, err := c.Submit(context.Background(), "see the log", []evidence.File{
		{Name: "log.csv", MIMEType: "text/csv", Data: []byte("day,event\n1,kicked\n")},
	})
	require.NoError(t, err)
	require.Len(t, b.calls[0].content, 2)

	_, err = c.Submit(context.Background(), "what next?", nil)
	require.NoError(t, err)
	require.Equal(t, []llm.Part{llm.TextPart("what next?")}, b.calls[1].content)
	require.Equal(t, []llm.HistoryEntry{
		{Role: llm.RoleModel, Parts: []string{"hello"}},
		{Role: llm.RoleUser, Parts: []string{"see the log"}},
		{Role: llm.RoleModel, Parts: []string{"first answer"}},
	}, b.calls[1].history)
	for _, e := range b.calls[1].history {
		require.NotContains(t, e.Parts[0], "kicked")
	}
}

func TestSubmitWhileInFlight(t *testing.T) {
	b := &mockBackend{replies: []string{"done"}}
	c, store := newTestController(b)

	var nestedErr error
	b.onSend = func() {
		require.True(t, c.Busy())
		_, nestedErr = c.Submit(context.Background(), "again", nil)
	}

	_, err := c.Submit(context.Background(), "first", nil)
	require.NoError(t, err)
	require.ErrorIs(t, nestedErr, ErrTurnInFlight)
	require.Equal(t, 3, store.Len())
	require.False(t, c.Busy())
}

func TestFailureIsNotRetried(t *testing.T) {
	b := &mockBackend{err: errors.New("500 internal error")}
	c, _ := newTestController(b)

	out, err := c.Submit(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.Equal(t, llm.KindServerTransient, out.Failure.Kind)
	require.Len(t, b.calls, 1)
}
