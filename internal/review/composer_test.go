package review

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AnshRaj112/bookjournal-backend/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	req  openai.CompletionRequest
	resp openai.CompletionResponse
	err  error
}

func (f *fakeCompleter) CreateCompletion(_ context.Context, req openai.CompletionRequest) (openai.CompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

var books = []models.Entry{
	{Title: "Dune", Author: "Herbert", Rating: "5", DateRead: "2023/9/1"},
	{Title: "Foundation", Author: "Asimov", Rating: "4", DateRead: "2023/10/1"},
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(books)

	want := Preamble + "Dune by Herbert, rated 5/5\n\n" + "Foundation by Asimov, rated 4/5\n\n" + Closing
	assert.Equal(t, want, prompt)
	assert.Less(t, strings.Index(prompt, "Dune by Herbert"), strings.Index(prompt, "Foundation by Asimov"))
}

func TestBuildPrompt_Empty(t *testing.T) {
	assert.Equal(t, Preamble+Closing, BuildPrompt(nil))
}

func TestBoundedPrompt_DropsTail(t *testing.T) {
	fixed := EstimateTokens(Preamble) + EstimateTokens(Closing)
	first := EstimateTokens(Line(books[0]) + "\n\n")

	prompt, kept, err := BoundedPrompt(books, fixed+first)
	require.NoError(t, err)
	assert.Equal(t, 1, kept)
	assert.Contains(t, prompt, "Dune by Herbert, rated 5/5")
	assert.NotContains(t, prompt, "Foundation")
}

func TestBoundedPrompt_TooSmall(t *testing.T) {
	_, _, err := BoundedPrompt(books, 10)
	assert.True(t, errors.Is(err, ErrPromptTooLarge))
}

func TestCompose(t *testing.T) {
	fc := &fakeCompleter{resp: openai.CompletionResponse{Choices: []openai.CompletionChoice{{Text: "A fine year.\nDune..."}}}}
	c := NewComposer(fc, Config{}, nil)

	got, err := c.Compose(context.Background(), books)
	require.NoError(t, err)
	assert.Equal(t, "A fine year.\nDune...", got)

	assert.Equal(t, DefaultModel, fc.req.Model)
	assert.Equal(t, BuildPrompt(books), fc.req.Prompt)
	assert.Equal(t, float32(1), fc.req.Temperature)
	assert.Equal(t, 1500, fc.req.MaxTokens)
	assert.Equal(t, float32(0.5), fc.req.TopP)
	assert.Zero(t, fc.req.FrequencyPenalty)
	assert.Zero(t, fc.req.PresencePenalty)
	assert.Nil(t, fc.req.Stop)
	assert.Equal(t, 1, fc.req.BestOf)
	assert.Equal(t, 1, fc.req.N)
}

func TestCompose_UpstreamError(t *testing.T) {
	c := NewComposer(&fakeCompleter{err: errors.New("503")}, Config{}, nil)

	_, err := c.Compose(context.Background(), books)
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestCompose_NoChoices(t *testing.T) {
	c := NewComposer(&fakeCompleter{}, Config{}, nil)

	_, err := c.Compose(context.Background(), books)
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestCompose_TruncatesToContext(t *testing.T) {
	fc := &fakeCompleter{resp: openai.CompletionResponse{Choices: []openai.CompletionChoice{{Text: "ok"}}}}
	budget := EstimateTokens(Preamble) + EstimateTokens(Closing) + EstimateTokens(Line(books[0])+"\n\n")
	c := NewComposer(fc, Config{ContextTokens: MaxTokens + budget}, nil)

	_, err := c.Compose(context.Background(), books)
	require.NoError(t, err)
	assert.Equal(t, BuildPrompt(books[:1]), fc.req.Prompt)
}

func TestFilterYear(t *testing.T) {
	entries := []models.Entry{
		{Title: "a", DateRead: "2023/1/5"},
		{Title: "b", DateRead: "2022/12/31"},
		{Title: "c", DateRead: "20231/1/1"},
		{Title: "d", DateRead: "2023"},
	}

	got := FilterYear(entries, "2023")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Title)
	assert.Equal(t, "d", got[1].Title)
	assert.Len(t, FilterYear(entries, ""), 4)
}

func TestNewClient_OpenAI(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cmpl-1","object":"text_completion","model":"davinci","choices":[{"text":"Review text","index":0}]}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{APIType: "openai", BaseURL: srv.URL + "/v1/", APIKey: "sk-test"})
	got, err := NewComposer(client, Config{}, nil).Compose(context.Background(), books)

	require.NoError(t, err)
	assert.Equal(t, "Review text", got)
	assert.Equal(t, "davinci", body["model"])
	assert.Equal(t, 1500.0, body["max_tokens"])
	assert.Equal(t, 0.5, body["top_p"])
}

func TestNewClient_Azure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/books-davinci/completions", r.URL.Path)
		assert.Equal(t, "2022-12-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "azure-key", r.Header.Get("api-key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cmpl-1","object":"text_completion","choices":[{"text":"Azure review","index":0}]}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{
		APIType:    "azure",
		BaseURL:    srv.URL,
		APIVersion: "2022-12-01",
		APIKey:     "azure-key",
		Deployment: "books-davinci",
	})
	got, err := NewComposer(client, Config{}, nil).Compose(context.Background(), books)

	require.NoError(t, err)
	assert.Equal(t, "Azure review", got)
}
