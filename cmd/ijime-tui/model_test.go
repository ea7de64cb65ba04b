package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/HitoniYori/ijime-support-ai/internal/llm"
	"github.com/HitoniYori/ijime-support-ai/internal/session"
)

type cannedBackend struct{}

func (cannedBackend) Send(ctx context.Context, hist []llm.HistoryEntry, parts []llm.Part, params llm.Params) (llm.Response, error) {
	return llm.Response{Text: "canned answer"}, nil
}

func newTestModel(t *testing.T) model {
	t.Helper()
	sess := session.New(cannedBackend{}, session.Options{Greeting: "hello"})
	m := newModel(sess, nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(model)
}

func typeLine(m model, line string) (model, tea.Cmd) {
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(model), cmd
}

func TestParseCommand(t *testing.T) {
	name, args := parseCommand("/Attach a.pdf b.csv")
	require.Equal(t, "attach", name)
	require.Equal(t, []string{"a.pdf", "b.csv"}, args)

	name, args = parseCommand("/")
	require.Empty(t, name)
	require.Nil(t, args)
}

func TestSubmitRoundTrip(t *testing.T) {
	m := newTestModel(t)
	m, cmd := typeLine(m, "they ignored my report")
	require.True(t, m.busy)
	require.NotNil(t, cmd)

	msg := m.submitCmd("they ignored my report")()
	done, ok := msg.(turnDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	require.Equal(t, "canned answer", done.out.Reply)

	next, _ := m.Update(done)
	m = next.(model)
	require.False(t, m.busy)
	require.Equal(t, "ready", m.status)
	require.Contains(t, m.chat.View(), "canned answer")
}

func TestAttachAndClear(t *testing.T) {
	m := newTestModel(t)
	path := filepath.Join(t.TempDir(), "log.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o600))

	m, _ = typeLine(m, "/attach "+path)
	require.False(t, m.statusErr, m.status)
	require.Equal(t, 1, m.uploads)

	m, _ = typeLine(m, "/attach /does/not/exist")
	require.True(t, m.statusErr)
	require.Equal(t, 1, m.uploads)

	m, _ = typeLine(m, "/clear")
	require.Zero(t, m.uploads)
	require.Empty(t, m.sess.Uploads())
}

func TestExportImportCommands(t *testing.T) {
	m := newTestModel(t)
	path := filepath.Join(t.TempDir(), "chat.json")

	m, _ = typeLine(m, "/export "+path)
	require.False(t, m.statusErr, m.status)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `[{"role":"assistant","content":"hello"}]`, string(data))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{}"), 0o600))
	m, _ = typeLine(m, "/import "+bad)
	require.True(t, m.statusErr)

	m, _ = typeLine(m, "/import "+path)
	require.False(t, m.statusErr, m.status)
}

func TestSnapshotCommandsWithoutArchive(t *testing.T) {
	m := newTestModel(t)
	m, _ = typeLine(m, "/save")
	require.True(t, m.statusErr)
	m, _ = typeLine(m, "/snapshots")
	require.True(t, m.statusErr)
	m, _ = typeLine(m, "/restore x")
	require.True(t, m.statusErr)
}

func TestUnknownCommandAndQuit(t *testing.T) {
	m := newTestModel(t)
	m, _ = typeLine(m, "/dance")
	require.True(t, m.statusErr)

	_, cmd := typeLine(m, "/quit")
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	require.True(t, isQuit)
}
