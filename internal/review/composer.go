// Package review turns a reader's journal into an end-of-year summary written by a
// text-completion model.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AnshRaj112/bookjournal-backend/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	Preamble = "You are a literary reviewer writing an end of year summary of the books you've read throughout the year. " +
		"I will provide you with the list of books you've read along with when you read them and a rating out of 5 for how good you thought they were, with 1 being low and 5 being high.  " +
		"Only include the books I've read below in the review.  Create a new paragraph for each book in the review. " +
		"Here is the list of books you've read:\n\n"
	Closing = "\n\nHere is the end of year summary:\n\n"

	// Generation parameters.
	MaxTokens   = 1500
	Temperature = 1.0
	TopP        = 0.5

	DefaultModel         = "davinci"
	DefaultContextTokens = 2049
	DefaultTimeout       = 60 * time.Second

	charsPerToken = 4
)

var (
	// ErrUpstream wraps any failure of the completion service.
	ErrUpstream = errors.New("completion service failed")
	// ErrPromptTooLarge means the fixed prompt text alone exceeds the input budget.
	ErrPromptTooLarge = errors.New("review prompt exceeds token budget")
)

// Completer is the slice of the completion API the composer needs. *openai.Client satisfies it.
type Completer interface {
	CreateCompletion(ctx context.Context, req openai.CompletionRequest) (openai.CompletionResponse, error)
}

type Config struct {
	Model         string
	ContextTokens int
	Timeout       time.Duration
}

type Composer struct {
	client        Completer
	model         string
	contextTokens int
	timeout       time.Duration
	logger        *zap.SugaredLogger
}

func NewComposer(client Completer, cfg Config, logger *zap.SugaredLogger) *Composer {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ContextTokens <= 0 {
		cfg.ContextTokens = DefaultContextTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Composer{
		client:        client,
		model:         cfg.Model,
		contextTokens: cfg.ContextTokens,
		timeout:       cfg.Timeout,
		logger:        logger,
	}
}

// Line renders one entry as it appears in the prompt.
func Line(e models.Entry) string {
	return e.Title + " by " + e.Author + ", rated " + e.Rating + "/5"
}

// BuildPrompt renders the full prompt for entries in the order given.
func BuildPrompt(entries []models.Entry) string {
	var b strings.Builder
	b.WriteString(Preamble)
	for _, e := range entries {
		b.WriteString(Line(e))
		b.WriteString("\n\n")
	}
	b.WriteString(Closing)
	return b.String()
}

// EstimateTokens is a rough count for English text.
func EstimateTokens(s string) int {
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// BoundedPrompt renders as many entries as fit in budget tokens, keeping the head of
// the slice. Callers pass List output, so the entries dropped are the oldest reads.
func BoundedPrompt(entries []models.Entry, budget int) (string, int, error) {
	used := EstimateTokens(Preamble) + EstimateTokens(Closing)
	if used > budget {
		return "", 0, fmt.Errorf("%w: fixed text needs %d of %d tokens", ErrPromptTooLarge, used, budget)
	}

	kept := 0
	for _, e := range entries {
		n := EstimateTokens(Line(e) + "\n\n")
		if used+n > budget {
			break
		}
		used += n
		kept++
	}
	return BuildPrompt(entries[:kept]), kept, nil
}

// Compose asks the completion service for a review of entries and returns its text unmodified.
func (c *Composer) Compose(ctx context.Context, entries []models.Entry) (string, error) {
	prompt, kept, err := BoundedPrompt(entries, c.contextTokens-MaxTokens)
	if err != nil {
		return "", err
	}
	if kept < len(entries) {
		c.logger.Warnw("review prompt truncated", "entries", len(entries), "kept", kept)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateCompletion(ctx, Request(c.model, prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrUpstream)
	}
	c.logger.Infow("review composed", "entries", kept, "duration_ms", time.Since(start).Milliseconds())
	return resp.Choices[0].Text, nil
}

// Request builds the completion call with the fixed generation parameters.
func Request(model, prompt string) openai.CompletionRequest {
	return openai.CompletionRequest{
		Model:            model,
		Prompt:           prompt,
		Temperature:      Temperature,
		MaxTokens:        MaxTokens,
		TopP:             TopP,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
		BestOf:           1,
		N:                1,
	}
}

// FilterYear keeps the entries whose dateRead begins with the given four-digit year.
// An empty year keeps everything.
func FilterYear(entries []models.Entry, year string) []models.Entry {
	if year == "" {
		return entries
	}
	out := make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		if !strings.HasPrefix(e.DateRead, year) {
			continue
		}
		if rest := e.DateRead[len(year):]; rest != "" && rest[0] >= '0' && rest[0] <= '9' {
			continue
		}
		out = append(out, e)
	}
	return out
}
