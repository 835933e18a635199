package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/zialiel/agora/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal in-memory config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:                "0",
		Env:                 "development",
		LogLevel:            "error",
		RegistrationFee:     10,
		SpecialtyMatchBonus: 20,
		FailedJobPolicy:     config.PolicyTreasury,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := do(s, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := do(s, "GET", "/health/live", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	// Server hasn't called Run() so ready is false
	w := do(s, "GET", "/health/ready", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/health/live",
		"GET:/health/ready",
		"GET:/metrics",
		"GET:/ws",
		"POST:/api/v1/agents",
		"PATCH:/api/v1/agents",
		"GET:/api/v1/agents/:id",
		"GET:/api/v1/agents",
		"POST:/api/v1/jobs",
		"GET:/api/v1/jobs/:id",
		"POST:/api/v1/jobs/:id/complete",
		"POST:/api/v1/jobs/:id/fail",
		"POST:/api/v1/gratitude",
		"GET:/api/v1/match",
		"GET:/api/v1/ledger/pools",
		"GET:/api/v1/feed",
		"GET:/api/v1/stats",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// End-to-end flow through the assembled router
// ---------------------------------------------------------------------------

func TestMarketplaceFlow(t *testing.T) {
	s := newTestServer(t)

	agentAddr := "0xaaaa000000000000000000000000000000000001"
	requesterAddr := "0xbbbb000000000000000000000000000000000002"

	// Register an agent
	w := do(s, "POST", "/api/v1/agents",
		`{"callerAddress":"`+agentAddr+`","specialty":"translation","description":"fast","rate":100,"feePaid":10}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Match against its specialty
	w = do(s, "GET", "/api/v1/match?description=need+a+translation+of+my+paper", "")
	if w.Code != http.StatusOK {
		t.Fatalf("match: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var match struct {
		AgentID int64 `json:"agentId"`
		Score   int   `json:"score"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &match); err != nil {
		t.Fatalf("parse match: %v", err)
	}
	if match.AgentID != 1 || match.Score != 70 {
		t.Errorf("expected agent 1 at score 70, got %+v", match)
	}

	// Create and complete a job
	w = do(s, "POST", "/api/v1/jobs",
		`{"callerAddress":"`+requesterAddr+`","agentId":1,"description":"translate","payment":100}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create job: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	w = do(s, "POST", "/api/v1/jobs/1/complete",
		`{"callerAddress":"`+agentAddr+`","resultRef":"ipfs://done"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("complete job: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Agent's payout balance is visible through the ledger API
	w = do(s, "GET", "/api/v1/ledger/balances/"+agentAddr, "")
	if w.Code != http.StatusOK {
		t.Fatalf("balance: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var bal struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &bal); err != nil {
		t.Fatalf("parse balance: %v", err)
	}
	if bal.Balance != 100 {
		t.Errorf("expected balance 100, got %d", bal.Balance)
	}

	// Stats reflect the activity
	w = do(s, "GET", "/api/v1/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", w.Code)
	}
	var stats map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("parse stats: %v", err)
	}
	if stats["agents"].(float64) != 1 || stats["jobs"].(float64) != 1 {
		t.Errorf("expected 1 agent and 1 job, got %v", stats)
	}

	// The audit feed recorded the activity
	w = do(s, "GET", "/api/v1/feed", "")
	if w.Code != http.StatusOK {
		t.Fatalf("feed: expected 200, got %d", w.Code)
	}
	var feed struct {
		Events []map[string]any `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &feed); err != nil {
		t.Fatalf("parse feed: %v", err)
	}
	if len(feed.Events) == 0 {
		t.Error("expected audit events in the feed")
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := do(s, "GET", "/api/v1/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
