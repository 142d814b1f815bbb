package services

import (
	"context"
	"iter"
	"strings"

	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
)

// Mock is a deterministic provider used when no inference backend is running. It echoes the last
// user message back in small chunks so the streaming path behaves like a real model without any
// network dependency. Selected through configuration, not a build flag, so a deployment can flip
// between mock and real providers without recompiling.
type Mock struct {
	// ChunkSize controls how many characters each streamed fragment carries. Defaults to 8.
	ChunkSize int

	// Err, when set, makes every call fail. Useful for exercising error paths.
	Err error
}

// Chat yields a canned response derived from the last user message, split into fixed-size chunks.
func (m Mock) Chat(
	_ context.Context,
	messages []models.ChatMessage,
	_ models.ChatOptions,
) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if m.Err != nil {
			yield("", m.Err)
			return
		}

		response := m.respond(messages)

		size := m.ChunkSize
		if size <= 0 {
			size = 8
		}
		for len(response) > 0 {
			n := min(size, len(response))
			if !yield(response[:n], nil) {
				return
			}
			response = response[n:]
		}
	}
}

// Models reports a single placeholder model.
func (m Mock) Models(context.Context) ([]models.ModelInfo, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return []models.ModelInfo{
		{ID: "mock-model", Name: "mock-model", Description: "Deterministic mock provider"},
	}, nil
}

func (m Mock) respond(messages []models.ChatMessage) string {
	var prompt, system string
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleUser:
			prompt = msg.Content
		case models.RoleSystem:
			system = msg.Content
		}
	}

	var sb strings.Builder
	sb.WriteString("You said: ")
	sb.WriteString(prompt)
	if system != "" {
		sb.WriteString("\n\n")
		sb.WriteString("(answered as: ")
		sb.WriteString(system)
		sb.WriteString(")")
	}
	return sb.String()
}
