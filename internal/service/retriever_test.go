package service

import (
	"context"
	"errors"
	"testing"

	"github.com/TheScouser/chatbox-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockQueryEmbedder mocks the query embedding client
type MockQueryEmbedder struct {
	mock.Mock
}

func (m *MockQueryEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockChunkSearchRepo mocks the retrieval repository
type MockChunkSearchRepo struct {
	mock.Mock
}

func (m *MockChunkSearchRepo) NearestNeighbors(ctx context.Context, embedding []float32, limit int) ([]ChunkMatch, error) {
	args := m.Called(ctx, embedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ChunkMatch), args.Error(1)
}

func (m *MockChunkSearchRepo) GetByID(ctx context.Context, id string) (*domain.KnowledgeChunk, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeChunk), args.Error(1)
}

func (m *MockChunkSearchRepo) SearchText(ctx context.Context, agentID, query string, limit int) ([]*domain.KnowledgeChunk, error) {
	args := m.Called(ctx, agentID, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeChunk), args.Error(1)
}

func queryVector() []float32 {
	return make([]float32, domain.EmbeddingDimensions)
}

func TestRetriever_Retrieve_VectorPath(t *testing.T) {
	mockEmbedder := new(MockQueryEmbedder)
	mockRepo := new(MockChunkSearchRepo)
	retriever := NewRetriever(mockEmbedder, mockRepo)

	ctx := context.Background()
	embedding := queryVector()

	mockEmbedder.On("GenerateEmbedding", ctx, "refund policy").Return(embedding, nil)
	mockRepo.On("NearestNeighbors", ctx, embedding, 20).Return([]ChunkMatch{
		{ID: "c1", Score: 0.92},
		{ID: "c2", Score: 0.81},
	}, nil)
	mockRepo.On("GetByID", ctx, "c1").Return(&domain.KnowledgeChunk{ID: "c1", AgentID: "agent-1"}, nil)
	mockRepo.On("GetByID", ctx, "c2").Return(&domain.KnowledgeChunk{ID: "c2", AgentID: "agent-1"}, nil)

	results, err := retriever.Retrieve(ctx, "agent-1", "refund policy", 5)

	assert.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.Equal(t, float32(0.92), results[0].Score)
	mockRepo.AssertNotCalled(t, "SearchText")
}

func TestRetriever_Retrieve_FiltersForeignAgents(t *testing.T) {
	mockEmbedder := new(MockQueryEmbedder)
	mockRepo := new(MockChunkSearchRepo)
	retriever := NewRetriever(mockEmbedder, mockRepo)

	ctx := context.Background()
	embedding := queryVector()

	mockEmbedder.On("GenerateEmbedding", ctx, mock.Anything).Return(embedding, nil)
	mockRepo.On("NearestNeighbors", ctx, embedding, 20).Return([]ChunkMatch{
		{ID: "own", Score: 0.9},
		{ID: "other", Score: 0.88},
	}, nil)
	mockRepo.On("GetByID", ctx, "own").Return(&domain.KnowledgeChunk{ID: "own", AgentID: "agent-1"}, nil)
	mockRepo.On("GetByID", ctx, "other").Return(&domain.KnowledgeChunk{ID: "other", AgentID: "agent-2"}, nil)

	results, err := retriever.Retrieve(ctx, "agent-1", "q", 5)

	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "own", results[0].Chunk.ID)
}

func TestRetriever_Retrieve_SkipsDeletedChunks(t *testing.T) {
	mockEmbedder := new(MockQueryEmbedder)
	mockRepo := new(MockChunkSearchRepo)
	retriever := NewRetriever(mockEmbedder, mockRepo)

	ctx := context.Background()
	embedding := queryVector()

	mockEmbedder.On("GenerateEmbedding", ctx, mock.Anything).Return(embedding, nil)
	mockRepo.On("NearestNeighbors", ctx, embedding, 20).Return([]ChunkMatch{
		{ID: "gone", Score: 0.95},
		{ID: "c1", Score: 0.7},
	}, nil)
	mockRepo.On("GetByID", ctx, "gone").Return(nil, domain.ErrChunkNotFound)
	mockRepo.On("GetByID", ctx, "c1").Return(&domain.KnowledgeChunk{ID: "c1", AgentID: "agent-1"}, nil)

	results, err := retriever.Retrieve(ctx, "agent-1", "q", 5)

	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Chunk.ID)
}

func TestRetriever_Retrieve_CapsAtLimit(t *testing.T) {
	mockEmbedder := new(MockQueryEmbedder)
	mockRepo := new(MockChunkSearchRepo)
	retriever := NewRetriever(mockEmbedder, mockRepo)

	ctx := context.Background()
	embedding := queryVector()

	matches := make([]ChunkMatch, 10)
	for i := range matches {
		matches[i] = ChunkMatch{ID: string(rune('a' + i)), Score: float32(10-i) * 0.05}
	}

	mockEmbedder.On("GenerateEmbedding", ctx, mock.Anything).Return(embedding, nil)
	mockRepo.On("NearestNeighbors", ctx, embedding, 20).Return(matches, nil)
	mockRepo.On("GetByID", ctx, mock.Anything).Return(&domain.KnowledgeChunk{AgentID: "agent-1"}, nil)

	results, err := retriever.Retrieve(ctx, "agent-1", "q", 2)

	assert.NoError(t, err)
	assert.Len(t, results, 2)
	mockRepo.AssertNumberOfCalls(t, "GetByID", 2)
}

func TestRetriever_Retrieve_FallsBackOnEmbedError(t *testing.T) {
	mockEmbedder := new(MockQueryEmbedder)
	mockRepo := new(MockChunkSearchRepo)
	retriever := NewRetriever(mockEmbedder, mockRepo)

	ctx := context.Background()

	mockEmbedder.On("GenerateEmbedding", ctx, "pricing").Return(nil, errors.New("openai unavailable"))
	mockRepo.On("SearchText", ctx, "agent-1", "pricing", 5).Return([]*domain.KnowledgeChunk{
		{ID: "c1", AgentID: "agent-1", Content: "Pricing starts at $10."},
	}, nil)

	results, err := retriever.Retrieve(ctx, "agent-1", "pricing", 5)

	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, float32(0), results[0].Score)
	mockRepo.AssertNotCalled(t, "NearestNeighbors")
}

func TestRetriever_Retrieve_FallsBackOnEmptyVectorResults(t *testing.T) {
	mockEmbedder := new(MockQueryEmbedder)
	mockRepo := new(MockChunkSearchRepo)
	retriever := NewRetriever(mockEmbedder, mockRepo)

	ctx := context.Background()
	embedding := queryVector()

	mockEmbedder.On("GenerateEmbedding", ctx, mock.Anything).Return(embedding, nil)
	mockRepo.On("NearestNeighbors", ctx, embedding, 20).Return([]ChunkMatch{}, nil)
	mockRepo.On("SearchText", ctx, "agent-1", "q", 5).Return([]*domain.KnowledgeChunk{
		{ID: "c1", AgentID: "agent-1"},
	}, nil)

	results, err := retriever.Retrieve(ctx, "agent-1", "q", 5)

	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, float32(0), results[0].Score)
}

func TestRetriever_Retrieve_BothPathsFail(t *testing.T) {
	mockEmbedder := new(MockQueryEmbedder)
	mockRepo := new(MockChunkSearchRepo)
	retriever := NewRetriever(mockEmbedder, mockRepo)

	ctx := context.Background()

	mockEmbedder.On("GenerateEmbedding", ctx, mock.Anything).Return(nil, errors.New("down"))
	mockRepo.On("SearchText", ctx, "agent-1", "q", 5).Return(nil, errors.New("also down"))

	_, err := retriever.Retrieve(ctx, "agent-1", "q", 5)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "text search failed")
}

func TestRetriever_Retrieve_DefaultsLimit(t *testing.T) {
	mockEmbedder := new(MockQueryEmbedder)
	mockRepo := new(MockChunkSearchRepo)
	retriever := NewRetriever(mockEmbedder, mockRepo)

	ctx := context.Background()
	embedding := queryVector()

	mockEmbedder.On("GenerateEmbedding", ctx, mock.Anything).Return(embedding, nil)
	mockRepo.On("NearestNeighbors", ctx, embedding, DefaultRetrievalLimit*candidateMultiplier).
		Return([]ChunkMatch{{ID: "c1", Score: 0.5}}, nil)
	mockRepo.On("GetByID", ctx, "c1").Return(&domain.KnowledgeChunk{ID: "c1", AgentID: "agent-1"}, nil)

	results, err := retriever.Retrieve(ctx, "agent-1", "q", 0)

	assert.NoError(t, err)
	assert.Len(t, results, 1)
}
