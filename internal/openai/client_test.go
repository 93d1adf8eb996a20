package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/TheScouser/chatbox-sub000/internal/domain"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingAPI mocks the embedding backend
type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// MockChatAPI mocks the chat completion backend
type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func testClient(embeddings EmbeddingAPI, chat ChatAPI) *Client {
	return &Client{
		embeddings: embeddings,
		chat:       chat,
		dimensions: DefaultEmbeddingDimensions,
	}
}

func embeddings(n, dims int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dims)
	}
	return out
}

func TestGenerateEmbeddings_Batch(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := testClient(mockAPI, nil)

	ctx := context.Background()
	texts := []string{"first", "second", "third"}
	mockAPI.On("CreateEmbeddings", ctx, texts).Return(embeddings(3, DefaultEmbeddingDimensions), nil)

	vectors, err := client.GenerateEmbeddings(ctx, texts)

	require.NoError(t, err)
	assert.Len(t, vectors, 3)
	mockAPI.AssertExpectations(t)
}

func TestGenerateEmbeddings_EmptyInputSkipsAPI(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := testClient(mockAPI, nil)

	vectors, err := client.GenerateEmbeddings(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, vectors)
	mockAPI.AssertNotCalled(t, "CreateEmbeddings")
}

func TestGenerateEmbeddings_RejectsEmptyText(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := testClient(mockAPI, nil)

	_, err := client.GenerateEmbeddings(context.Background(), []string{"ok", ""})

	assert.ErrorIs(t, err, ErrEmptyText)
	mockAPI.AssertNotCalled(t, "CreateEmbeddings")
}

func TestGenerateEmbeddings_WrongDimensions(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := testClient(mockAPI, nil)

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, mock.Anything).Return(embeddings(1, 512), nil)

	_, err := client.GenerateEmbeddings(ctx, []string{"text"})

	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestGenerateEmbeddings_APIError(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := testClient(mockAPI, nil)

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, mock.Anything).Return(nil, errors.New("rate limited"))

	_, err := client.GenerateEmbeddings(ctx, []string{"text"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create embeddings")
}

func TestGenerateEmbedding_Single(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := testClient(mockAPI, nil)

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, []string{"query"}).
		Return(embeddings(1, DefaultEmbeddingDimensions), nil)

	vector, err := client.GenerateEmbedding(ctx, "query")

	require.NoError(t, err)
	assert.Len(t, vector, DefaultEmbeddingDimensions)
}

func TestComplete_Success(t *testing.T) {
	mockChat := new(MockChatAPI)
	client := testClient(nil, mockChat)

	ctx := context.Background()
	messages := []domain.PromptMessage{
		{Role: domain.PromptRoleSystem, Content: "You are a helpful assistant."},
		{Role: domain.PromptRoleUser, Content: "Hello"},
	}
	opts := domain.CompletionOptions{Model: "gpt-4o-mini", Temperature: 0.7, MaxTokens: 500}

	mockChat.On("CreateChatCompletion", ctx, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == "gpt-4o-mini" &&
			len(req.Messages) == 2 &&
			req.Messages[0].Role == "system" &&
			!req.Stream
	})).Return(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "Hi there!"}},
		},
		Usage: openai.Usage{PromptTokens: 20, CompletionTokens: 4},
	}, nil)

	result, err := client.Complete(ctx, messages, opts)

	require.NoError(t, err)
	assert.Equal(t, "Hi there!", result.Content)
	assert.Equal(t, "gpt-4o-mini", result.Model)
	assert.Equal(t, 20, result.PromptTokens)
	assert.Equal(t, 4, result.CompletionTokens)
}

func TestComplete_DefaultsModel(t *testing.T) {
	mockChat := new(MockChatAPI)
	client := testClient(nil, mockChat)

	ctx := context.Background()
	mockChat.On("CreateChatCompletion", ctx, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == DefaultChatModel
	})).Return(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "ok"}},
		},
	}, nil)

	result, err := client.Complete(ctx, []domain.PromptMessage{{Role: "user", Content: "hi"}}, domain.CompletionOptions{})

	require.NoError(t, err)
	assert.Equal(t, DefaultChatModel, result.Model)
}

func TestComplete_NoChoices(t *testing.T) {
	mockChat := new(MockChatAPI)
	client := testClient(nil, mockChat)

	ctx := context.Background()
	mockChat.On("CreateChatCompletion", ctx, mock.Anything).
		Return(openai.ChatCompletionResponse{}, nil)

	_, err := client.Complete(ctx, []domain.PromptMessage{{Role: "user", Content: "hi"}}, domain.CompletionOptions{})

	assert.ErrorIs(t, err, domain.ErrMalformedCompletion)
}

func TestComplete_EmptyContent(t *testing.T) {
	mockChat := new(MockChatAPI)
	client := testClient(nil, mockChat)

	ctx := context.Background()
	mockChat.On("CreateChatCompletion", ctx, mock.Anything).
		Return(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: ""}},
			},
		}, nil)

	_, err := client.Complete(ctx, []domain.PromptMessage{{Role: "user", Content: "hi"}}, domain.CompletionOptions{})

	assert.ErrorIs(t, err, domain.ErrMalformedCompletion)
}

func TestComplete_APIError(t *testing.T) {
	mockChat := new(MockChatAPI)
	client := testClient(nil, mockChat)

	ctx := context.Background()
	mockChat.On("CreateChatCompletion", ctx, mock.Anything).
		Return(openai.ChatCompletionResponse{}, errors.New("upstream timeout"))

	_, err := client.Complete(ctx, []domain.PromptMessage{{Role: "user", Content: "hi"}}, domain.CompletionOptions{})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create chat completion")
}

func TestNewClientFromEnv_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewClientFromEnv()

	assert.ErrorIs(t, err, ErrNoAPIKey)
}
