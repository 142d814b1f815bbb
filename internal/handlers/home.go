package handlers

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/MegaGrindStone/duo-chat-ui/internal/chat"
	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
)

// messageView is the template-facing shape of a message. Content is pre-rendered HTML: markdown
// for assistant messages, escaped text for user messages.
type messageView struct {
	ID        string
	Role      string
	Content   template.HTML
	Timestamp time.Time

	Method          string
	TokensPerSecond float64
	Loading         bool
}

type methodView struct {
	Value    string
	Label    string
	Selected bool
}

type homePageData struct {
	Methods       []methodView
	CurrentMethod string
	SamplePrompts []string
	HealthError   string

	Basic    []messageView
	Advanced []messageView
}

var methodLabels = []struct {
	value models.Method
	label string
}{
	{models.MethodTuning, "Fine-tuning"},
	{models.MethodRAG, "RAG"},
	{models.MethodWebSearch, "Web Search"},
}

var samplePrompts = []string{
	"Summarize the key ideas of transformer attention in three sentences.",
	"What are the trade-offs between fine-tuning and retrieval augmentation?",
	"Write a short Go function that reverses a slice in place.",
}

// HandleHome renders the dual-panel page with the current contents of both panels. Reloading the
// page mid-turn shows the panels as they stand; the SSE connections pick up further updates. An
// unreachable backend turns into a banner rather than a failed page load.
func (m *Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	current := m.chat.Method()

	var healthErr string
	if err := m.api.Health(r.Context()); err != nil {
		healthErr = err.Error()
	}

	methods := make([]methodView, len(methodLabels))
	for i, ml := range methodLabels {
		methods[i] = methodView{
			Value:    string(ml.value),
			Label:    ml.label,
			Selected: ml.value == current,
		}
	}

	data := homePageData{
		Methods:       methods,
		CurrentMethod: string(current),
		SamplePrompts: samplePrompts,
		HealthError:   healthErr,
		Basic:         m.messageViews(chat.PanelBasic),
		Advanced:      m.messageViews(chat.PanelAdvanced),
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m *Main) messageViews(panel chat.Panel) []messageView {
	msgs := m.chat.Messages(panel)
	views := make([]messageView, len(msgs))
	for i, msg := range msgs {
		views[i] = messageView{
			ID:              msg.ID,
			Role:            string(msg.Role),
			Content:         renderContent(msg),
			Timestamp:       msg.Timestamp,
			Method:          string(msg.Method),
			TokensPerSecond: msg.TokensPerSecond,
			Loading:         msg.IsLoading,
		}
	}
	return views
}

func renderContent(msg models.Message) template.HTML {
	if msg.Role == models.RoleAssistant {
		return template.HTML(models.RenderMarkdown(msg.Content))
	}
	return template.HTML(template.HTMLEscapeString(msg.Content))
}

// renderMessage executes the message partial into a string for SSE delivery. The markup may
// span multiple lines; AppendData splits it into one data field per line and EventSource
// joins them back together on the client.
func (m *Main) renderMessage(msg models.Message) (string, error) {
	var sb strings.Builder
	view := messageView{
		ID:              msg.ID,
		Role:            string(msg.Role),
		Content:         renderContent(msg),
		Timestamp:       msg.Timestamp,
		Method:          string(msg.Method),
		TokensPerSecond: msg.TokensPerSecond,
		Loading:         msg.IsLoading,
	}
	if err := m.templates.ExecuteTemplate(&sb, "message", view); err != nil {
		return "", fmt.Errorf("failed to execute message template: %w", err)
	}
	return sb.String(), nil
}
