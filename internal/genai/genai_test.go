package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"

	"github.com/aura-dev/aura/internal/models"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func reply(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGeneratePrompt_Success(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: reply("Hello World")}, model: "test-model"}
	out, err := client.GeneratePrompt("system prompt", "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
}

func TestGeneratePrompt_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.GeneratePrompt("sys", "usr")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGeneratePrompt_NoChoices(t *testing.T) {
	mockResp := openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{}}
	client := &Client{chat: &mockChatService{resp: mockResp}}
	_, err := client.GeneratePrompt("sys", "usr")
	if err != ErrNoChoicesReturned {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestConverseReplaysHistory(t *testing.T) {
	mock := &mockChatService{resp: reply("Claro!")}
	client := &Client{chat: mock, model: "default-model", temperature: 0.2, maxTokens: 64}
	history := []models.ConversationMessage{
		{Role: models.RoleUser, Content: "oi"},
		{Role: models.RoleAssistant, Content: "olá"},
		{Role: models.RoleUser, Content: "me ajuda?"},
	}
	out, err := client.Converse(context.Background(), "", "Você é um vendedor.", history)
	if err != nil || out != "Claro!" {
		t.Fatalf("Converse = %q, %v", out, err)
	}
	if len(mock.params.Messages) != 4 {
		t.Errorf("expected system + 3 messages, got %d", len(mock.params.Messages))
	}
	if string(mock.params.Model) != "default-model" {
		t.Errorf("model = %q", mock.params.Model)
	}

	client.Converse(context.Background(), "override", "", history)
	if string(mock.params.Model) != "override" || len(mock.params.Messages) != 3 {
		t.Errorf("override call: model %q, %d messages", mock.params.Model, len(mock.params.Messages))
	}
}

func TestNewClient_NoKey(t *testing.T) {
	_, err := NewClient()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil || cli.Model() != "gpt-4o" {
		t.Errorf("unexpected client: %+v", cli)
	}
}
