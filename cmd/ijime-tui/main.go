package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HitoniYori/ijime-support-ai/internal/app"
	"github.com/HitoniYori/ijime-support-ai/internal/logger"
	"github.com/HitoniYori/ijime-support-ai/internal/session"
)

func main() {
	// The terminal belongs to the UI; logs go to a file.
	logPath := os.Getenv("IJIME_TUI_LOG")
	if logPath == "" {
		logPath = "ijime-tui.log"
	}
	logFile, err := tea.LogToFile(logPath, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, "open log file:", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger.SetOutput(logFile)

	a, err := app.Bootstrap()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer a.Close()

	sess := session.New(a.Backend, a.SessionOptions())
	defer sess.Close()

	p := tea.NewProgram(newModel(sess, a.Archive), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		logger.L.Error("terminal UI failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
