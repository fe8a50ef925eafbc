//go:build integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/excedencia/internal/app"
	"github.com/liamcoop/excedencia/internal/config"
	"github.com/liamcoop/excedencia/rules"
)

// setupTestDB creates a PostgreSQL testcontainer, runs migrations and returns its DSN
func setupTestDB(t *testing.T) (string, func()) {
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

	dsn := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())

	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		t.Fatalf("Failed to create migration instance: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	m.Close()

	cleanup := func() {
		postgres.Terminate(ctx)
	}

	return dsn, cleanup
}

// TestEndToEnd_PublishAndEvaluate tests the complete workflow:
// 1. Publish the bundled ruleset to postgres
// 2. Start the server with the SQL source
// 3. Evaluate scenarios over HTTP
func TestEndToEnd_PublishAndEvaluate(t *testing.T) {
	dsn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	// Step 1: Publish
	t.Log("Step 1: Publishing ruleset...")
	publisher, err := rules.OpenSQLSource(ctx, rules.DriverPostgres, dsn, rules.BundledRulesetName, "")
	if err != nil {
		t.Fatalf("Failed to open SQL source: %v", err)
	}
	rs, err := publisher.Publish(ctx, rules.BundledRuleset())
	if err != nil {
		t.Fatalf("Failed to publish ruleset: %v", err)
	}
	publisher.Close()
	t.Logf("Published %s@%s", rs.Name, rs.Version)

	// Step 2: Start server
	t.Log("Step 2: Starting server...")
	cfg := config.Default()
	cfg.Ruleset.Source = config.SourceSQL
	cfg.Ruleset.Driver = rules.DriverPostgres
	cfg.Ruleset.DSN = dsn

	a, err := app.New(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	defer a.Close()

	srv := httptest.NewServer(NewServer(a))
	defer srv.Close()

	health := makeRequest(t, http.MethodGet, srv.URL+"/api/v1/health", nil, http.StatusOK)
	if health["rulesetVersion"] != rs.Version {
		t.Errorf("Expected ruleset version %s, got %v", rs.Version, health["rulesetVersion"])
	}

	// Step 3: Evaluate
	t.Log("Step 3: Evaluating scenarios...")
	resp := makeRequest(t, http.MethodPost, srv.URL+"/api/v1/evaluate", map[string]any{
		"parentesco":           "madre",
		"situacion":            "enfermedad",
		"familia_monoparental": false,
	}, http.StatusOK)

	output := resp["output"].(map[string]any)
	if output["supuesto"] != "A" || output["importe_mensual"] != 725.0 {
		t.Errorf("Expected supuesto A with 725, got %v", output)
	}

	resp = makeRequest(t, http.MethodPost, srv.URL+"/api/v1/evaluate", map[string]any{
		"parentesco":           "hermano",
		"situacion":            "parto",
		"familia_monoparental": false,
		"numero_hijos":         1,
	}, http.StatusUnprocessableEntity)

	issues, ok := resp["issues"].([]any)
	if !ok || len(issues) != 1 {
		t.Fatalf("Expected one validation issue, got %v", resp)
	}
	if path := issues[0].(map[string]any)["path"]; path != "/input/parentesco" {
		t.Errorf("Expected issue at /input/parentesco, got %v", path)
	}
}

func makeRequest(t *testing.T, method, url string, body any, wantStatus int) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("Expected status %d, got %d", wantStatus, resp.StatusCode)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return result
}
