package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama provides chat completions through a local Ollama server. It is the offline-friendly
// alternative to the OpenAI-compatible provider.
type Ollama struct {
	host  string
	model string

	client *api.Client
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. The host
// parameter should be a valid URL pointing to an Ollama server. If the provided host URL is
// invalid, the function will panic.
func NewOllama(host, model string) Ollama {
	u, err := url.Parse(host)
	if err != nil {
		panic(err)
	}

	return Ollama{
		host:   host,
		model:  model,
		client: api.NewClient(u, &http.Client{}),
	}
}

// Chat streams responses from the Ollama model. The returned iterator yields content fragments as
// they arrive and stops early when the consumer does.
func (o Ollama) Chat(
	ctx context.Context,
	messages []models.ChatMessage,
	opts models.ChatOptions,
) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs := make([]api.Message, len(messages))
		for i, msg := range messages {
			msgs[i] = api.Message{
				Role:    string(msg.Role),
				Content: msg.Content,
			}
		}

		model := opts.Model
		if model == "" {
			model = o.model
		}

		options := make(map[string]any)
		if opts.MaxTokens > 0 {
			options["num_predict"] = opts.MaxTokens
		}
		if opts.Temperature != nil {
			options["temperature"] = *opts.Temperature
		}

		t := true
		req := api.ChatRequest{
			Model:    model,
			Messages: msgs,
			Stream:   &t,
			Options:  options,
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			if res.Message.Content == "" {
				return nil
			}
			if !yield(res.Message.Content, nil) {
				cancel()
			}
			return nil
		}); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
		}
	}
}

// Models lists the models installed on the Ollama server.
func (o Ollama) Models(ctx context.Context) ([]models.ModelInfo, error) {
	list, err := o.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	infos := make([]models.ModelInfo, len(list.Models))
	for i, m := range list.Models {
		infos[i] = models.ModelInfo{
			ID:   m.Model,
			Name: m.Name,
		}
	}
	return infos, nil
}
