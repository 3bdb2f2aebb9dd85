package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fable/internal/config"
)

// ErrEmptyQuery is returned when a query carries no roll results.
var ErrEmptyQuery = errors.New("oracle query has no roll results")

// Completer submits one system/user prompt pair and returns the
// completion text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Oracle narrates roll outcomes through a Completer.
type Oracle struct {
	completer Completer
	logger    *zap.Logger
}

// New creates an Oracle.
//
// Precondition: completer and logger must be non-nil.
func New(completer Completer, logger *zap.Logger) *Oracle {
	if completer == nil || logger == nil {
		panic("oracle: New requires non-nil completer and logger")
	}
	return &Oracle{completer: completer, logger: logger}
}

// Ask builds the prompt for q and returns the completion.
func (o *Oracle) Ask(ctx context.Context, q Query) (string, error) {
	if len(q.Results) == 0 {
		return "", ErrEmptyQuery
	}
	system, user := BuildPrompt(q)
	o.logger.Debug("oracle query",
		zap.String("story", q.StoryID),
		zap.Int("results", len(q.Results)),
	)
	text, err := o.completer.Complete(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("oracle completion: %w", err)
	}
	return text, nil
}

// anthropicCompleter is the API-backed Completer. The client reads its
// key from the environment; only model and token budget come from
// configuration.
type anthropicCompleter struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewCompleter creates the API-backed Completer from cfg.
//
// Precondition: cfg.Enabled must be true; cfg.Model must be non-empty;
// cfg.MaxTokens must be >= 1.
func NewCompleter(cfg config.OracleConfig) Completer {
	if !cfg.Enabled || cfg.Model == "" || cfg.MaxTokens < 1 {
		panic("oracle: NewCompleter requires an enabled, fully-specified oracle config")
	}
	return &anthropicCompleter{
		client:    anthropic.NewClient(),
		model:     anthropic.Model(cfg.Model),
		maxTokens: int64(cfg.MaxTokens),
	}
}

func (c *anthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", err
	}
	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}
