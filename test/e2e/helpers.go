//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/TheScouser/chatbox-sub000/internal/api/handlers"
	"github.com/TheScouser/chatbox-sub000/internal/domain"
	"github.com/TheScouser/chatbox-sub000/internal/repository"
	"github.com/TheScouser/chatbox-sub000/internal/server"
	"github.com/TheScouser/chatbox-sub000/internal/service"
	"github.com/TheScouser/chatbox-sub000/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const testOrgCreditLimit = 100

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client

	// Batcher lets tests run an embedding pass synchronously instead of
	// waiting for the background worker
	Batcher *service.EmbeddingBatcher
}

// SetupE2EEnv creates a full E2E test environment with a postgres container
// and an in-process server. Embedding and completion backends are local
// deterministic stubs.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser, batcher := startServer(t, pool, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		Batcher:      batcher,
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// SeedAgent creates an agent with a usage counter for its organization.
func (e *E2ETestEnv) SeedAgent(locale string) *domain.Agent {
	e.T.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	agent := &domain.Agent{
		ID:          uuid.NewString(),
		OrgID:       uuid.NewString(),
		Name:        "E2E Support Bot",
		Description: "Answers store policy questions.",
		Locale:      locale,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	convRepo := repository.NewConversationRepository(e.Pool)
	if err := convRepo.CreateAgent(e.Ctx, agent); err != nil {
		e.T.Fatalf("failed to seed agent: %v", err)
	}

	usageRepo := repository.NewUsageRepository(e.Pool)
	if err := usageRepo.EnsureUsage(e.Ctx, agent.OrgID, testOrgCreditLimit); err != nil {
		e.T.Fatalf("failed to seed usage: %v", err)
	}

	return agent
}

// SeedConversation creates a conversation for the given agent.
func (e *E2ETestEnv) SeedConversation(agentID string) *domain.Conversation {
	e.T.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		VisitorID: "e2e-visitor",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := repository.NewConversationRepository(e.Pool).CreateConversation(e.Ctx, conv); err != nil {
		e.T.Fatalf("failed to seed conversation: %v", err)
	}
	return conv
}

// MessageCount returns the number of stored messages in a conversation.
func (e *E2ETestEnv) MessageCount(conversationID string) int {
	e.T.Helper()

	var count int
	err := e.Pool.QueryRow(e.Ctx,
		"SELECT COUNT(*) FROM messages WHERE conversation_id = $1", conversationID,
	).Scan(&count)
	if err != nil {
		e.T.Fatalf("failed to count messages: %v", err)
	}
	return count
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// Put performs a PUT request
func (e *E2ETestEnv) Put(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("PUT", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// startServer starts the HTTP server with stubbed AI backends
func startServer(t *testing.T, pool *pgxpool.Pool, port int) (string, func(), *service.EmbeddingBatcher) {
	chunkRepo := repository.NewKnowledgeChunkRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	usageRepo := repository.NewUsageRepository(pool)

	ai := &stubAIBackend{}

	knowledgeSvc := service.NewKnowledgeService(chunkRepo, &stubDocuments{})
	knowledgeHandler := handlers.NewKnowledgeHandler(knowledgeSvc, chunkRepo)

	batcher := service.NewEmbeddingBatcherWithConfig(ai, chunkRepo, service.BatchConfig{
		BatchSize: 10,
		PageLimit: 100,
	})

	retriever := service.NewRetriever(ai, chunkRepo)
	chatSvc := service.NewChatService(convRepo, retriever, ai, service.NewCreditQuota(usageRepo))
	chatHandler := handlers.NewChatHandler(chatSvc, retriever)

	router := server.NewRouter(server.RouterConfig{
		KnowledgeHandler: knowledgeHandler,
		ChatHandler:      chatHandler,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, batcher
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

const stubReply = "Based on the knowledge provided, here is your answer."

// stubAIBackend provides deterministic embeddings and completions so E2E
// tests exercise the full pipeline without a real model endpoint. Texts
// about the same topic map to the same axis, so vector search ranks
// same-topic chunks first.
type stubAIBackend struct{}

func topicVector(text string) []float32 {
	v := make([]float32, domain.EmbeddingDimensions)
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "refund"):
		v[0] = 1
	case strings.Contains(lower, "ship"):
		v[1] = 1
	default:
		v[2] = 1
	}
	return v
}

func (s *stubAIBackend) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return topicVector(text), nil
}

func (s *stubAIBackend) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = topicVector(text)
	}
	return vectors, nil
}

func (s *stubAIBackend) Complete(ctx context.Context, messages []domain.PromptMessage, opts domain.CompletionOptions) (*domain.CompletionResult, error) {
	return &domain.CompletionResult{
		Content:          stubReply,
		Model:            opts.Model,
		PromptTokens:     42,
		CompletionTokens: 12,
	}, nil
}

// stubDocuments serves canned extracted text for document ingestion
type stubDocuments struct{}

func (s *stubDocuments) GetObjectText(ctx context.Context, key string) (string, error) {
	return "Extracted document text for " + key + ".", nil
}
