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
	"testing"
	"time"

	"github.com/chirp-labs/chirp/internal/api/handlers"
	"github.com/chirp-labs/chirp/internal/repository"
	"github.com/chirp-labs/chirp/internal/scrape"
	"github.com/chirp-labs/chirp/internal/server"
	"github.com/chirp-labs/chirp/internal/service"
	"github.com/chirp-labs/chirp/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	adminUsername = "admin"
	adminPassword = "e2e-password"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	AuthToken    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with a Postgres container
// and an HTTP server backed by stubbed embedding and generation clients.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
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

// Login authenticates the admin account and stores the session token.
func (e *E2ETestEnv) Login() {
	resp, err := e.Post("/api/admin/login", map[string]string{
		"username": adminUsername,
		"password": adminPassword,
	}, "")
	if err != nil {
		e.T.Fatalf("failed to login: %v", err)
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		e.T.Fatalf("failed to parse login response: %v", err)
	}
	e.AuthToken = data.Token
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Put performs a PUT request
func (e *E2ETestEnv) Put(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("PUT", path, body, authToken)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
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

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
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

// ChatSSE posts a chat message and returns the raw SSE body and status code.
func (e *E2ETestEnv) ChatSSE(body interface{}) (int, string, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return 0, "", err
	}

	resp, err := e.HTTPClient.Post(e.ServerURL+"/api/chat", "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(raw), nil
}

// stubEmbedder returns the same unit vector for every input, so any stored
// chunk matches any query with similarity 1.0.
type stubEmbedder struct{}

func fixedVector() []float32 {
	v := make([]float32, 1536)
	v[0] = 1
	return v
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = fixedVector()
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return fixedVector(), nil
}

// stubGenerator streams a canned answer regardless of the prompt.
type stubGenerator struct{}

func (g *stubGenerator) Stream(ctx context.Context, messages []service.ChatMessage, onDelta func(string) error) error {
	for _, delta := range []string{"We open ", "at 9am."} {
		if err := onDelta(delta); err != nil {
			return err
		}
	}
	return nil
}

// startServer starts the HTTP server with all handlers
func startServer(t *testing.T, pool *pgxpool.Pool, port int) (string, func()) {
	botRepo := repository.NewBotRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	sessionRepo := repository.NewAdminSessionRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	authSvc, err := service.NewAuthService(sessionRepo, botRepo, adminUsername, adminPassword)
	if err != nil {
		t.Fatalf("failed to create auth service: %v", err)
	}

	embedder := &stubEmbedder{}
	botSvc := service.NewBotService(botRepo, &service.DefaultUUIDGenerator{}, 0)
	ingestionSvc := service.NewIngestionService(botRepo, scrape.New(scrape.Config{}), embedder, txRunner, chunkRepo)
	retriever := service.NewRetriever(embedder, chunkRepo)
	limiter := service.NewRateLimiter(time.Minute, 10)
	chatSvc := service.NewChatService(
		authSvc,
		botRepo,
		conversationRepo,
		limiter,
		retriever,
		service.NewPromptBuilder(),
		&stubGenerator{},
	)

	cfg := server.RouterConfig{
		SessionValidator: authSvc,
		CORSOrigins:      []string{"*"},
		AuthHandler:      handlers.NewAuthHandler(authSvc),
		BotHandler:       handlers.NewBotHandler(botSvc, ingestionSvc),
		ChatHandler:      handlers.NewChatHandler(chatSvc),
		PublicHandler:    handlers.NewPublicHandler(botSvc),
	}

	router := server.NewRouter(cfg)
	addr := fmt.Sprintf(":%d", port)

	srv := &http.Server{
		Addr:    addr,
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
	}
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
