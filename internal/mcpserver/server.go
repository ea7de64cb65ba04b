// Package mcpserver exposes one conversation as MCP tools over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HitoniYori/ijime-support-ai/internal/evidence"
	"github.com/HitoniYori/ijime-support-ai/internal/logger"
	"github.com/HitoniYori/ijime-support-ai/internal/session"
)

const (
	serverName    = "ijime-support-ai"
	serverVersion = "0.1.0"
)

// Server binds the MCP tools to a single session; a stdio client is one user.
type Server struct {
	session *session.Session
	mcp     *server.MCPServer
}

// New registers the tools for sess.
func New(sess *session.Session) *Server {
	s := &Server{
		session: sess,
		mcp:     server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("consult",
		mcp.WithDescription("Ask about the school's handling of a bullying case. Earlier questions and answers are remembered; attached files are only read for this question."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The question or account of events")),
		mcp.WithArray("files", mcp.Description("Paths of evidence files (PDF, image, audio, CSV, Excel) to attach")),
	), s.consult)

	s.mcp.AddTool(mcp.NewTool("reset_history",
		mcp.WithDescription("Forget the conversation and start again from the greeting."),
	), s.resetHistory)

	s.mcp.AddTool(mcp.NewTool("export_history",
		mcp.WithDescription("Return the conversation as a JSON array of {role, content}."),
	), s.exportHistory)

	s.mcp.AddTool(mcp.NewTool("import_history",
		mcp.WithDescription("Replace the conversation with a previously exported JSON array."),
		mcp.WithString("history", mcp.Required(), mcp.Description("JSON produced by export_history")),
	), s.importHistory)

	return s
}

// ServeStdio serves until stdin closes.
func (s *Server) ServeStdio() error {
	logger.L.Info("MCP server listening on stdio", "session", s.session.ID)
	return server.ServeStdio(s.mcp)
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

func stringsArg(args map[string]any, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%q must be an array of strings", key)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		str, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("%q must be an array of strings", key)
		}
		out = append(out, str)
	}
	return out, nil
}

func (s *Server) consult(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	text, _ := stringArg(args, "text")
	paths, err := stringsArg(args, "files")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	files := make([]evidence.File, 0, len(paths))
	for _, p := range paths {
		f, err := evidence.FromPath(p, "")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		files = append(files, f)
	}

	s.session.ClearUploads()
	s.session.Stage(files...)
	defer s.session.ClearUploads()

	out, err := s.session.Submit(ctx, text)
	if err != nil {
		msg := err.Error()
		if len(out.Warnings) > 0 {
			msg += "\n" + strings.Join(out.Warnings, "\n")
		}
		return mcp.NewToolResultError(msg), nil
	}
	if out.Failure != nil {
		return mcp.NewToolResultError(out.Failure.Error()), nil
	}

	var sb strings.Builder
	sb.WriteString(out.Reply)
	if len(out.Warnings) > 0 {
		sb.WriteString("\n\nWarnings:")
		for _, w := range out.Warnings {
			sb.WriteString("\n- " + w)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) resetHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.session.Reset()
	return mcp.NewToolResultText("History cleared."), nil
}

func (s *Server) exportHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := s.session.Export()
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) importHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload, ok := stringArg(req.GetArguments(), "history")
	if !ok {
		return mcp.NewToolResultError(`"history" must be a string`), nil
	}
	if err := s.session.Import([]byte(payload)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Imported %d turns.", len(s.session.History()))), nil
}
