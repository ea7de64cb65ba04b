package main

import (
	"os"

	"github.com/HitoniYori/ijime-support-ai/internal/app"
	"github.com/HitoniYori/ijime-support-ai/internal/logger"
	"github.com/HitoniYori/ijime-support-ai/internal/mcpserver"
	"github.com/HitoniYori/ijime-support-ai/internal/session"
)

func main() {
	// stdout carries the MCP protocol.
	logger.SetOutput(os.Stderr)

	a, err := app.Bootstrap()
	if err != nil {
		logger.L.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	sess := session.New(a.Backend, a.SessionOptions())
	defer sess.Close()

	if err := mcpserver.New(sess).ServeStdio(); err != nil {
		logger.L.Error("MCP server stopped", "error", err)
		os.Exit(1)
	}
}
