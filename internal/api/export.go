package api

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
)

// HandleExport serves POST /api/export/pdf. It renders the posted transcript into a standalone,
// print-ready HTML document and returns it as an attachment. Converting that document to PDF is
// delegated to the caller's print pipeline; no PDF bytes are produced here.
func (h Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	var req models.ExportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "messages are required")
		return
	}

	title := req.Title
	if title == "" {
		title = "Chat Transcript"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(title))
	sb.WriteString("<style>body{font-family:sans-serif;max-width:48rem;margin:2rem auto}" +
		".msg{margin:1rem 0;padding:1rem;border-radius:.5rem}" +
		".user{background:#eef}.assistant{background:#f5f5f5}" +
		".meta{color:#777;font-size:.8rem}</style>\n</head>\n<body>\n")
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", html.EscapeString(title))

	for _, msg := range req.Messages {
		fmt.Fprintf(&sb, "<div class=\"msg %s\">\n", html.EscapeString(string(msg.Role)))
		fmt.Fprintf(&sb, "<div class=\"meta\">%s · %s</div>\n",
			html.EscapeString(string(msg.Role)),
			msg.Timestamp.Format(time.RFC1123))
		if msg.Role == models.RoleAssistant {
			sb.WriteString(models.RenderMarkdown(msg.Content))
		} else {
			fmt.Fprintf(&sb, "<p>%s</p>\n", html.EscapeString(msg.Content))
		}
		sb.WriteString("</div>\n")
	}
	sb.WriteString("</body>\n</html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(title)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sb.String()))
}

func exportFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, title)
	if name == "" {
		name = "transcript"
	}
	return name + ".html"
}
