package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
	"github.com/MegaGrindStone/duo-chat-ui/internal/services"
)

func collect(t *testing.T, m services.Mock, messages []models.ChatMessage) ([]string, error) {
	t.Helper()
	var chunks []string
	for chunk, err := range m.Chat(context.Background(), messages, models.ChatOptions{}) {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func TestMockEchoesLastUserMessage(t *testing.T) {
	chunks, err := collect(t, services.Mock{ChunkSize: 4}, []models.ChatMessage{
		{Role: models.RoleUser, Content: "first"},
		{Role: models.RoleUser, Content: "second"},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	got := strings.Join(chunks, "")
	if got != "You said: second" {
		t.Errorf("response = %q, want %q", got, "You said: second")
	}
	for _, chunk := range chunks[:len(chunks)-1] {
		if len(chunk) != 4 {
			t.Errorf("chunk %q has length %d, want 4", chunk, len(chunk))
		}
	}
}

func TestMockIncludesSystemPrompt(t *testing.T) {
	chunks, err := collect(t, services.Mock{}, []models.ChatMessage{
		{Role: models.RoleSystem, Content: "You are a RAG-enabled assistant with access to additional context."},
		{Role: models.RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	got := strings.Join(chunks, "")
	if !strings.Contains(got, "RAG-enabled") {
		t.Errorf("response = %q, want system prompt echoed", got)
	}
}

func TestMockError(t *testing.T) {
	wantErr := errors.New("mock down")
	_, err := collect(t, services.Mock{Err: wantErr}, []models.ChatMessage{
		{Role: models.RoleUser, Content: "hello"},
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Chat() error = %v, want %v", err, wantErr)
	}
}
