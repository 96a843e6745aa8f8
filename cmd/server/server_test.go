//go:build integration

package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/autodiscounts/catalog"
	"github.com/liamcoop/autodiscounts/discount"
	"github.com/liamcoop/autodiscounts/settings"
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

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	// Run migrations
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

func newTestServer(t *testing.T, db *sql.DB) *httptest.Server {
	t.Helper()

	store, err := settings.NewStore(context.Background(), settings.NewPostgresOptions(db))
	if err != nil {
		t.Fatalf("Failed to create settings store: %v", err)
	}
	cache := settings.NewCache(store, settings.DefaultCacheConfig())
	engine := discount.New(catalog.NewPostgresCatalog(db), cache)

	ts := httptest.NewServer(newServer(db, engine, store, cache))
	t.Cleanup(ts.Close)
	return ts
}

func insertProduct(t *testing.T, db *sql.DB, name string, ageDays int) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(`
		INSERT INTO products (name, status, stock_status, created_at)
		VALUES ($1, 'publish', 'instock', $2)
		RETURNING id
	`, name, time.Now().AddDate(0, 0, -ageDays)).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to insert product: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO product_meta (product_id, meta_key, meta_value)
		VALUES ($1, '_regular_price', '100.00')
	`, id); err != nil {
		t.Fatalf("Failed to insert regular price: %v", err)
	}
	return id
}

func productMeta(t *testing.T, db *sql.DB, id int64, key string) (string, bool) {
	t.Helper()

	var value string
	err := db.QueryRow(`
		SELECT meta_value FROM product_meta WHERE product_id = $1 AND meta_key = $2
	`, id, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		t.Fatalf("Failed to read meta: %v", err)
	}
	return value, true
}

// makeRequest sends a JSON request and decodes the JSON response
func makeRequest(t *testing.T, method, url string, body interface{}) map[string]interface{} {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("Request %s %s failed with status %d: %s", method, url, resp.StatusCode, data)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return result
}

// TestEndToEnd_ConfigureRulesAndRunPass tests the complete workflow:
// 1. Save a rule set
// 2. Run a pass
// 3. Verify prices and stats
// 4. Exclude a product and verify the discount is cleared
func TestEndToEnd_ConfigureRulesAndRunPass(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ts := newTestServer(t, db)
	baseURL := ts.URL + "/api/v1"

	oldProduct := insertProduct(t, db, "Vintage Widget", 120)
	newProduct := insertProduct(t, db, "Fresh Widget", 3)

	// Step 1: Save a rule set
	t.Log("Step 1: Saving rules...")
	saveResp := makeRequest(t, "PUT", baseURL+"/rules", map[string]interface{}{
		"rules": []map[string]interface{}{
			{"priority": 1, "min_age": 90, "discount": 30, "active": true},
			{"priority": 2, "min_age": 30, "discount": 15, "active": true},
		},
	})
	if saveResp["rules"] == nil {
		t.Fatalf("Expected saved rules in response, got %v", saveResp)
	}

	// Step 2: Run a pass explicitly (the save also triggers one in the
	// background; the pass is idempotent so running it again is safe)
	t.Log("Step 2: Running a pass...")
	var report map[string]interface{}
	for i := 0; i < 20; i++ {
		resp, err := http.Post(baseURL+"/passes", "application/json", nil)
		if err != nil {
			t.Fatalf("Pass request failed: %v", err)
		}
		if resp.StatusCode == http.StatusConflict {
			resp.Body.Close()
			time.Sleep(200 * time.Millisecond)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			t.Fatalf("Pass failed with status %d: %s", resp.StatusCode, data)
		}
		if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
			t.Fatalf("Failed to decode pass report: %v", err)
		}
		resp.Body.Close()
		break
	}
	if report == nil {
		t.Fatal("Pass never completed")
	}

	// Step 3: Verify prices
	t.Log("Step 3: Verifying prices...")
	sale, ok := productMeta(t, db, oldProduct, "_sale_price")
	if !ok || sale != "70.00" {
		t.Errorf("Expected old product sale price 70.00, got %q (present=%v)", sale, ok)
	}
	if _, ok := productMeta(t, db, newProduct, "_sale_price"); ok {
		t.Error("Expected no sale price on the fresh product")
	}
	if _, ok := productMeta(t, db, oldProduct, "_wcad_applied_discount_rule"); !ok {
		t.Error("Expected a provenance marker on the discounted product")
	}

	statsResp := makeRequest(t, "GET", baseURL+"/stats", nil)
	if got := statsResp["discounted_products"].(float64); got != 1 {
		t.Errorf("Expected 1 discounted product in stats, got %v", got)
	}

	// Step 4: Preview a candidate threshold
	t.Log("Step 4: Previewing...")
	previewResp := makeRequest(t, "POST", baseURL+"/preview", map[string]interface{}{
		"min_age":        1,
		"respect_manual": false,
	})
	if got := previewResp["count"].(float64); got != 2 {
		t.Errorf("Expected preview count 2, got %v", got)
	}

	// Step 5: Exclude the discounted product
	t.Log("Step 5: Excluding the discounted product...")
	makeRequest(t, "PUT", fmt.Sprintf("%s/products/%d/exclusion", baseURL, oldProduct), map[string]interface{}{
		"excluded": true,
	})
	if _, ok := productMeta(t, db, oldProduct, "_sale_price"); ok {
		t.Error("Expected the discount cleared immediately on exclusion")
	}
	flag, _ := productMeta(t, db, oldProduct, "_wcad_exclude_from_discounts")
	if flag != "yes" {
		t.Errorf("Expected exclusion flag yes, got %q", flag)
	}

	// Step 6: Health
	healthResp := makeRequest(t, "GET", baseURL+"/health", nil)
	if healthResp["status"] != "healthy" {
		t.Errorf("Expected healthy, got %v", healthResp["status"])
	}

	t.Log("End-to-end test completed successfully!")
}

func TestEndToEnd_ExcludedCategories(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ts := newTestServer(t, db)
	baseURL := ts.URL + "/api/v1"

	id := insertProduct(t, db, "Categorized Widget", 120)
	if _, err := db.Exec(`INSERT INTO product_categories (product_id, category_id) VALUES ($1, 7)`, id); err != nil {
		t.Fatalf("Failed to assign category: %v", err)
	}

	makeRequest(t, "PUT", baseURL+"/rules", map[string]interface{}{
		"rules": []map[string]interface{}{
			{"priority": 1, "min_age": 30, "discount": 15, "active": true},
		},
	})
	makeRequest(t, "PUT", baseURL+"/exclusions", map[string]interface{}{
		"excluded_categories": []int64{7},
	})

	// Wait for the background passes to settle, then verify nothing was
	// applied to the excluded category.
	time.Sleep(time.Second)
	if _, ok := productMeta(t, db, id, "_sale_price"); ok {
		t.Error("Expected no discount on a product in an excluded category")
	}

	exclResp := makeRequest(t, "GET", baseURL+"/exclusions", nil)
	cats, ok := exclResp["excluded_categories"].([]interface{})
	if !ok || len(cats) != 1 {
		t.Errorf("Expected 1 excluded category, got %v", exclResp)
	}
}

func TestEndToEnd_InvalidRulesRejected(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ts := newTestServer(t, db)

	body, _ := json.Marshal(map[string]interface{}{
		"rules": []map[string]interface{}{
			{"priority": 1, "min_age": 30, "discount": 150, "active": true},
		},
	})
	req, _ := http.NewRequest("PUT", ts.URL+"/api/v1/rules", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for an invalid rule set, got %d", resp.StatusCode)
	}
}
