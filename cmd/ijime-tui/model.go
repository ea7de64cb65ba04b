package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/HitoniYori/ijime-support-ai/internal/agent"
	"github.com/HitoniYori/ijime-support-ai/internal/history"
	"github.com/HitoniYori/ijime-support-ai/internal/session"
)

type turnDoneMsg struct {
	out agent.Outcome
	err error
}

type theme struct {
	header    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	notice    lipgloss.Style
	status    lipgloss.Style
	errStatus lipgloss.Style
	input     lipgloss.Style
}

func newTheme() theme {
	mint := lipgloss.Color("#05ffa1")
	blue := lipgloss.Color("#01cdfe")
	pink := lipgloss.Color("#ff71ce")
	muted := lipgloss.Color("#9ca3d8")
	return theme{
		header:    lipgloss.NewStyle().Bold(true).Foreground(blue).Padding(0, 1),
		user:      lipgloss.NewStyle().Foreground(mint).Bold(true),
		assistant: lipgloss.NewStyle().Foreground(blue).Bold(true),
		notice:    lipgloss.NewStyle().Foreground(muted).Italic(true),
		status:    lipgloss.NewStyle().Foreground(blue),
		errStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		input: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted),
	}
}

type model struct {
	sess    *session.Session
	archive *history.Archive

	input   textinput.Model
	chat    viewport.Model
	spinner spinner.Model
	theme   theme

	notices   []string
	uploads   int
	status    string
	statusErr bool
	busy      bool
	ready     bool
	width     int
}

func newModel(sess *session.Session, archive *history.Archive) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 8000
	input.Placeholder = "Describe what happened, or /help for commands"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	chat := viewport.New(0, 0)
	chat.MouseWheelEnabled = true
	// Letter keys belong to the input line.
	chat.KeyMap = viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Down:         key.NewBinding(key.WithKeys("down")),
		Up:           key.NewBinding(key.WithKeys("up")),
	}

	return model{
		sess:    sess,
		archive: archive,
		input:   input,
		chat:    chat,
		spinner: sp,
		theme:   newTheme(),
		status:  "ready",
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m model) submitCmd(text string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		out, err := sess.Submit(context.Background(), text)
		return turnDoneMsg{out: out, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.chat.Width = msg.Width
		m.chat.Height = max(msg.Height-6, 3)
		m.input.Width = max(msg.Width-6, 10)
		m.ready = true
		if !m.busy {
			m.refresh()
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				m.setStatus("waiting for the previous answer", true)
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if strings.HasPrefix(line, "/") {
				return m.runCommand(line)
			}
			m.notices = nil
			m.busy = true
			m.setStatus("sending...", false)
			m.refreshPending(line)
			return m, m.submitCmd(line)
		}

	case turnDoneMsg:
		m.busy = false
		m.notices = append(m.notices, msg.out.Warnings...)
		switch {
		case msg.err != nil:
			m.setStatus(msg.err.Error(), true)
		case msg.out.Failure != nil:
			m.notices = append(m.notices, msg.out.Failure.Error())
			m.setStatus(string(msg.out.Failure.Kind), true)
		default:
			m.setStatus("ready", false)
		}
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.chat, cmd = m.chat.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m *model) renderTurns(pending string) string {
	wrap := lipgloss.NewStyle().Width(max(m.width-2, 20))
	var sb strings.Builder
	for _, t := range m.sess.History() {
		if t.Role == history.RoleUser {
			sb.WriteString(m.theme.user.Render("You") + "\n")
		} else {
			sb.WriteString(m.theme.assistant.Render("Assistant") + "\n")
		}
		sb.WriteString(wrap.Render(t.Content) + "\n\n")
	}
	if pending != "" {
		sb.WriteString(m.theme.user.Render("You") + "\n" + wrap.Render(pending) + "\n\n")
	}
	for _, n := range m.notices {
		sb.WriteString(m.theme.notice.Render(wrap.Render("! "+n)) + "\n")
	}
	return sb.String()
}

func (m *model) refresh() {
	m.chat.SetContent(m.renderTurns(""))
	m.chat.GotoBottom()
}

// refreshPending shows the typed text while the turn runs. Commands stay off
// while busy because reset, import and restore wait for the turn to settle.
func (m *model) refreshPending(text string) {
	m.chat.SetContent(m.renderTurns(text))
	m.chat.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}
	header := m.theme.header.Render(fmt.Sprintf("いじめ相談 assistant · %d file(s) attached", m.uploads))

	status := m.theme.status.Render(m.status)
	if m.statusErr {
		status = m.theme.errStatus.Render(m.status)
	}
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.chat.View(),
		m.theme.input.Render(m.input.View()),
		status,
	)
}
