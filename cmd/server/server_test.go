//go:build integration

package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hriskit/formulas/formula"
)

// setupTestDB creates a PostgreSQL testcontainer and runs migrations
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	migrationSQL, err := os.ReadFile("../../migrations/000001_initial_schema.up.sql")
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgres.Terminate(ctx)
	}

	return db, cleanup
}

func startTestServer(t *testing.T, db *sql.DB) *httptest.Server {
	t.Helper()

	store := formula.NewPostgresFormulaStore(db)
	server, err := NewServerWithStore(store, slog.Default())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)
	return ts
}

// TestEndToEnd_FormulaLifecycle walks the full workflow: create a
// formula, list it, evaluate it, update it, and delete it.
func TestEndToEnd_FormulaLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ts := startTestServer(t, db)
	baseURL := ts.URL + "/api/payroll-formulas"

	// Step 1: Create formula
	t.Log("Step 1: Creating formula...")
	createReq := map[string]interface{}{
		"formula_key":        "monthlyRate",
		"formula_expression": "Math.floor(parseFloat(record.rateNbc584 || 0))",
		"description":        "Base monthly rate, rounded down",
	}
	created := makeRequest(t, "POST", baseURL, createReq)
	if created["formula_key"].(string) != "monthlyRate" {
		t.Errorf("Expected key monthlyRate, got %v", created["formula_key"])
	}
	if created["id"].(string) == "" {
		t.Error("Expected server-assigned id")
	}

	// Step 2: List formulas
	t.Log("Step 2: Listing formulas...")
	var list []map[string]interface{}
	makeRequestInto(t, "GET", baseURL, nil, &list)
	if len(list) != 1 || list[0]["formula_key"].(string) != "monthlyRate" {
		t.Fatalf("Expected one formula monthlyRate, got %v", list)
	}

	// Step 3: Evaluate it
	t.Log("Step 3: Evaluating formula...")
	evalReq := map[string]interface{}{
		"inputs": map[string]float64{"rateNbc584": 27049.75},
	}
	evalResp := makeRequest(t, "POST", baseURL+"/monthlyRate/evaluate", evalReq)
	results := evalResp["results"].([]interface{})
	if len(results) != 1 {
		t.Fatalf("Expected one result, got %v", evalResp)
	}
	if value := results[0].(map[string]interface{})["value"].(float64); value != 27049 {
		t.Errorf("Expected 27049, got %v", value)
	}

	// Step 4: Update the expression
	t.Log("Step 4: Updating formula...")
	updateReq := map[string]interface{}{
		"formula_expression": "parseFloat(record.rateNbc584 || 0) * 0.09",
		"description":        "GSIS personal share",
	}
	makeRequest(t, "PUT", baseURL+"/monthlyRate", updateReq)

	evalResp = makeRequest(t, "POST", baseURL+"/monthlyRate/evaluate", evalReq)
	results = evalResp["results"].([]interface{})
	if value := results[0].(map[string]interface{})["value"].(float64); value != 27049.75*0.09 {
		t.Errorf("Expected updated expression result, got %v", value)
	}

	// Step 5: Delete
	t.Log("Step 5: Deleting formula...")
	resp, err := makeHTTPRequest("DELETE", baseURL+"/monthlyRate", nil)
	if err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}

	resp, err = makeHTTPRequest("GET", baseURL+"/monthlyRate", nil)
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}
}

// TestEndToEnd_DuplicateKeyConflict verifies the unique key constraint
// surfaces as 409 and leaves the stored formula untouched.
func TestEndToEnd_DuplicateKeyConflict(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ts := startTestServer(t, db)
	baseURL := ts.URL + "/api/payroll-formulas"

	createReq := map[string]interface{}{
		"formula_key":        "testBonus",
		"formula_expression": "parseFloat(record.pera || 0) * 0.1",
		"description":        "10% of PERA",
	}
	makeRequest(t, "POST", baseURL, createReq)

	resp, err := makeHTTPRequest("POST", baseURL, createReq)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 Conflict, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	t.Logf("Conflict response: %s", string(body))

	var list []map[string]interface{}
	makeRequestInto(t, "GET", baseURL, nil, &list)
	if len(list) != 1 {
		t.Errorf("Expected 1 formula after rejected duplicate, got %d", len(list))
	}
}

// TestEndToEnd_MalformedExpressionRejected verifies compile-on-write:
// an expression that does not parse is never persisted.
func TestEndToEnd_MalformedExpressionRejected(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ts := startTestServer(t, db)
	baseURL := ts.URL + "/api/payroll-formulas"

	createReq := map[string]interface{}{
		"formula_key":        "broken",
		"formula_expression": "rateNbc584 + ",
		"description":        "dangling operator",
	}
	resp, err := makeHTTPRequest("POST", baseURL, createReq)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}

	var list []map[string]interface{}
	makeRequestInto(t, "GET", baseURL, nil, &list)
	if len(list) != 0 {
		t.Errorf("Rejected formula must not be persisted, got %v", list)
	}
}

// Helper function to make HTTP requests with JSON body
func makeRequest(t *testing.T, method, url string, body interface{}) map[string]interface{} {
	var result map[string]interface{}
	makeRequestInto(t, method, url, body, &result)
	return result
}

func makeRequestInto(t *testing.T, method, url string, body, out interface{}) {
	resp, err := makeHTTPRequest(method, url, body)
	if err != nil {
		t.Fatalf("Failed to make %s request to %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// Helper function to make raw HTTP requests
func makeHTTPRequest(method, url string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer test-token")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	return client.Do(req)
}
