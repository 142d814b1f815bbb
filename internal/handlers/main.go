package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	duochatui "github.com/MegaGrindStone/duo-chat-ui"
	"github.com/MegaGrindStone/duo-chat-ui/internal/chat"
	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
	"github.com/tmaxmax/go-sse"
)

// API is the backend surface the web layer needs beyond the chat turn itself: session persistence
// and transcript export. The HTTP client satisfies it, and tests swap in a double.
type API interface {
	Health(ctx context.Context) error
	SaveSession(ctx context.Context, session models.Session) (string, error)
	Session(ctx context.Context, id string) (models.Session, error)
	ExportPDF(ctx context.Context, export models.ExportRequest) ([]byte, string, error)
}

// Main handles the core functionality of the dual-panel chat page, managing server-sent events,
// HTML templates, and the interaction between the browser and the chat store. Panel updates flow
// one way: the store notifies Main, and Main publishes rendered message partials to the panel's
// SSE topic.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	chat *chat.Store
	api  API

	logger *slog.Logger
}

const errLoggerKey = "err"

// SSE event types pushed to the browser.
var (
	messageSSEType = sse.Type("message")
	clearSSEType   = sse.Type("clear")
)

// NewMain creates a new Main instance around the given transport and backend API client. It parses
// the embedded HTML templates and configures the SSE server so each browser connection subscribes
// to exactly one panel's topic, chosen by the "panel" query parameter.
func NewMain(transport chat.Transport, api API, logger *slog.Logger) (*Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		duochatui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	m := &Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				topics := []string{sse.DefaultTopic}

				// Each connection follows a single panel; a page opens one connection per column.
				switch s.Req.URL.Query().Get("panel") {
				case string(chat.PanelBasic):
					topics = append(topics, panelTopic(chat.PanelBasic))
				case string(chat.PanelAdvanced):
					topics = append(topics, panelTopic(chat.PanelAdvanced))
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      topics,
				}, true
			},
		},
		templates: tmpl,
		api:       api,
		logger:    logger.With(slog.String("module", "web")),
	}
	m.chat = chat.NewStore(transport, m, logger)

	return m, nil
}

func panelTopic(panel chat.Panel) string {
	return fmt.Sprintf("panel-%s", panel)
}

// PanelUpdated publishes the affected message as a rendered partial on the panel's topic. The
// browser upserts it into the panel by element ID, so appends and in-place updates share one path.
func (m *Main) PanelUpdated(panel chat.Panel, msg models.Message) {
	div, err := m.renderMessage(msg)
	if err != nil {
		m.logger.Error("Failed to render message partial",
			slog.String("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	e := &sse.Message{Type: messageSSEType}
	e.AppendData(div)

	if err := m.sseSrv.Publish(e, panelTopic(panel)); err != nil {
		m.logger.Error("Failed to publish message",
			slog.String("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
	}
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close message to all connected
// clients and waits up to 5 seconds for connections to terminate before forcing them closed.
func (m *Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
