package handlers

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
)

// A streamed assistant message travels to the browser as a rendered partial over SSE. AppendData
// splits multi-line payloads into one data field per line and EventSource rejoins them, so the
// markup must keep its line breaks: collapsing them would merge every line of a code block.
func TestRenderMessageKeepsCodeBlockLines(t *testing.T) {
	m, err := NewMain(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewMain failed: %v", err)
	}

	out, err := m.renderMessage(models.Message{
		ID:        "m1",
		Role:      models.RoleAssistant,
		Content:   "```\nline1\nline2\n```",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("renderMessage failed: %v", err)
	}

	if strings.Contains(out, "line1line2") {
		t.Error("code block lines merged in rendered partial")
	}
	i1 := strings.Index(out, "line1")
	i2 := strings.Index(out, "line2")
	if i1 < 0 || i2 < 0 {
		t.Fatalf("rendered partial missing code block lines:\n%s", out)
	}
	if !strings.Contains(out[i1:i2], "\n") {
		t.Errorf("no line break between code block lines:\n%s", out)
	}
}
