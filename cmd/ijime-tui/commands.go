package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HitoniYori/ijime-support-ai/internal/evidence"
)

const defaultExportPath = "chat_history.json"

const helpText = `/attach <path>...  attach evidence files (kept until /clear)
/uploads           list attached files
/clear             remove attached files
/reset             start the conversation over
/export [path]     save the conversation as JSON (default chat_history.json)
/import <path>     load a conversation saved with /export
/save [label]      store a snapshot in the archive
/snapshots         list archived snapshots
/restore <id>      load an archived snapshot
/quit              exit`

// parseCommand splits "/name arg..." into the lower-cased name and its arguments.
func parseCommand(line string) (string, []string) {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

func (m model) runCommand(line string) (tea.Model, tea.Cmd) {
	name, args := parseCommand(line)
	ctx := context.Background()

	switch name {
	case "quit", "exit":
		return m, tea.Quit

	case "help":
		m.notices = strings.Split(helpText, "\n")
		m.setStatus("ready", false)

	case "attach":
		if len(args) == 0 {
			m.setStatus("usage: /attach <path>...", true)
			return m, nil
		}
		files := make([]evidence.File, 0, len(args))
		for _, p := range args {
			f, err := evidence.FromPath(p, "")
			if err != nil {
				m.setStatus(err.Error(), true)
				return m, nil
			}
			files = append(files, f)
		}
		m.sess.Stage(files...)
		m.uploads = len(m.sess.Uploads())
		m.setStatus(fmt.Sprintf("attached %d file(s)", len(files)), false)

	case "uploads":
		m.notices = nil
		for _, f := range m.sess.Uploads() {
			m.notices = append(m.notices, fmt.Sprintf("%s (%s, %d bytes)", f.Name, f.MIMEType, len(f.Data)))
		}
		if len(m.notices) == 0 {
			m.notices = []string{"no files attached"}
		}

	case "clear":
		m.sess.ClearUploads()
		m.uploads = 0
		m.setStatus("attachments cleared", false)

	case "reset":
		m.sess.Reset()
		m.notices = nil
		m.setStatus("conversation reset", false)

	case "export":
		path := defaultExportPath
		if len(args) > 0 {
			path = args[0]
		}
		data, err := m.sess.Export()
		if err == nil {
			err = os.WriteFile(path, data, 0o600)
		}
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.setStatus("saved "+path, false)

	case "import":
		if len(args) != 1 {
			m.setStatus("usage: /import <path>", true)
			return m, nil
		}
		data, err := os.ReadFile(args[0])
		if err == nil {
			err = m.sess.Import(data)
		}
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.notices = nil
		m.setStatus("loaded "+args[0], false)

	case "save":
		snap, err := m.sess.SaveSnapshot(ctx, strings.Join(args, " "))
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("snapshot #%d %q saved", snap.ID, snap.Label), false)

	case "snapshots":
		if m.archive == nil {
			m.setStatus("snapshot archive is not configured", true)
			return m, nil
		}
		snaps, err := m.archive.List(ctx)
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.notices = nil
		for _, s := range snaps {
			m.notices = append(m.notices, fmt.Sprintf("#%d  %s  %s  (%d turns)", s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Label, s.Turns))
		}
		if len(m.notices) == 0 {
			m.notices = []string{"no snapshots yet"}
		}

	case "restore":
		if len(args) != 1 {
			m.setStatus("usage: /restore <id>", true)
			return m, nil
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
		if err == nil {
			err = m.sess.RestoreSnapshot(ctx, id)
		}
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.notices = nil
		m.setStatus(fmt.Sprintf("snapshot #%d restored", id), false)

	default:
		m.setStatus(fmt.Sprintf("unknown command %q, try /help", "/"+name), true)
		return m, nil
	}

	m.refresh()
	return m, nil
}
