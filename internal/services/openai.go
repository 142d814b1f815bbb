package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI provides chat completions through any OpenAI-compatible server. It is primarily pointed at
// a vLLM instance serving the /v1 API, but works against the hosted API as well when no base URL is
// configured.
type OpenAI struct {
	model     string
	maxTokens int

	client *goopenai.Client

	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI instance. When baseURL is non-empty the client targets
// baseURL/v1 instead of the hosted endpoint, which is how a local vLLM server is reached.
func NewOpenAI(apiKey, baseURL, model string, maxTokens int, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	}

	return OpenAI{
		model:     model,
		maxTokens: maxTokens,
		client:    goopenai.NewClientWithConfig(cfg),
		logger:    logger.With(slog.String("module", "openai")),
	}
}

func openAIMessages(messages []models.ChatMessage) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = goopenai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return msgs
}

// Chat streams completion chunks for the given conversation. The returned iterator yields content
// fragments in arrival order; a non-nil error ends the stream.
func (o OpenAI) Chat(
	ctx context.Context,
	messages []models.ChatMessage,
	opts models.ChatOptions,
) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		model := opts.Model
		if model == "" {
			model = o.model
		}
		if model == "" {
			m, err := o.defaultModel(ctx)
			if err != nil {
				yield("", err)
				return
			}
			model = m
		}

		req := goopenai.ChatCompletionRequest{
			Model:     model,
			Messages:  openAIMessages(messages),
			Stream:    true,
			MaxTokens: o.maxTokens,
		}
		if opts.MaxTokens > 0 {
			req.MaxTokens = opts.MaxTokens
		}
		if opts.Temperature != nil {
			req.Temperature = float32(*opts.Temperature)
		}

		o.logger.Debug("Sending streaming request",
			slog.String("model", model),
			slog.Int("messages", len(messages)))

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		str, err := o.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer str.Close()

		for {
			response, err := str.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			if content := response.Choices[0].Delta.Content; content != "" {
				if !yield(content, nil) {
					return
				}
			}
		}
	}
}

// Models lists the models advertised by the upstream server.
func (o OpenAI) Models(ctx context.Context) ([]models.ModelInfo, error) {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	infos := make([]models.ModelInfo, len(list.Models))
	for i, m := range list.Models {
		infos[i] = models.ModelInfo{
			ID:   m.ID,
			Name: m.ID,
		}
	}
	return infos, nil
}

func (o OpenAI) defaultModel(ctx context.Context) (string, error) {
	infos, err := o.Models(ctx)
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return "", errors.New("no models available")
	}
	return infos[0].ID, nil
}
