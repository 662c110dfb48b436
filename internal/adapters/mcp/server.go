// Package mcpadapter exposes the chat pipeline as an MCP tool.
package mcpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/core/ports"
)

const AskToolName = "ask_medical_question"

type Server struct {
	chat ports.ChatService
	mcp  *server.MCPServer
}

func New(chat ports.ChatService, version string) *Server {
	s := &Server{
		chat: chat,
		mcp:  server.NewMCPServer("medical-rag-assistant", version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(
		mcp.NewTool(AskToolName,
			mcp.WithDescription("Answer a general medical question from the indexed medical reference. "+
				"Answers are educational and end with a disclaimer to consult a professional."),
			mcp.WithString("question",
				mcp.Required(),
				mcp.Description("The medical question, at most 1000 characters."),
			),
		),
		s.ask,
	)
	return s
}

// Handler serves the MCP streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}

func (s *Server) ask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := s.chat.Ask(ctx, question)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		slog.Error("mcp_ask_failed", "error", err)
		return mcp.NewToolResultError("the medical assistant could not answer, please try again"), nil
	}

	return mcp.NewToolResultText(renderAnswer(answer)), nil
}

// renderAnswer appends the consulted sources so the calling agent can cite them.
func renderAnswer(answer *domain.Answer) string {
	if len(answer.Sources) == 0 {
		return answer.Text
	}

	var b strings.Builder
	b.WriteString(answer.Text)
	b.WriteString("\n\nSources:")
	for i, source := range answer.Sources {
		fmt.Fprintf(&b, "\n[%d] %s (score %.3f)", i+1, source.Chunk.Source, source.Score)
	}
	return b.String()
}
