//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/shopspring/decimal"

	httpserver "tripquote/internal/adapters/http_server"
	redisad "tripquote/internal/adapters/redis"
	"tripquote/internal/app"
	"tripquote/internal/domain"
	"tripquote/internal/pricing"
	mysqlrepo "tripquote/internal/storage/mysql"
)

// ---------- helpers ----------

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	res, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return res
}

func decodeQuote(t *testing.T, res *http.Response) domain.Quote {
	t.Helper()
	defer res.Body.Close()
	var q domain.Quote
	if err := json.NewDecoder(res.Body).Decode(&q); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	return q
}

// ---------- the test ----------

func TestHTTP_EndToEnd_QuoteLifecycle(t *testing.T) {
	// Start isolated MySQL container
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=tripquote",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "tripquote")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	// Apply the real migrations
	applyMigrations(t, db)

	repo := mysqlrepo.New(db)
	ctx := context.Background()

	// Seed catalog + agent
	if err := repo.UpsertItem(ctx, domain.CatalogItem{
		ID:        700,
		Kind:      domain.KindRoom,
		Name:      "Garden Suite",
		BasePrice: 10000,
		Unit:      domain.PerNight,
		Capacity:  3,
	}); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO agents (id, tier, discount_kind, discount_rate, commission_rate) VALUES (?,?,?,?,?)`,
		42, string(domain.TierGold), string(domain.DiscountPercentage), "10", "7"); err != nil {
		t.Fatalf("seed agent: %v", err)
	}

	// Full service wiring, redis included
	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	policy := pricing.MarkupPolicy{CeilingPct: decimal.RequireFromString("50")}
	quotes := app.NewQuoteService(repo, repo, repo, cache, time.Minute, policy)
	prices := app.NewPricingService(repo, repo, policy)

	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{Quotes: quotes, Pricing: prices, Catalog: repo})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// Create a draft with a 15% markup
	res := postJSON(t, ts.URL+"/v1/quotes", map[string]any{
		"agent_id": 42,
		"markup":   map[string]string{"type": "PERCENTAGE", "value": "15"},
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create quote: status %d", res.StatusCode)
	}
	q := decodeQuote(t, res)
	if q.ID == 0 || q.Status != domain.StatusDraft || q.Version != 1 {
		t.Fatalf("unexpected draft: %+v", q)
	}
	base := fmt.Sprintf("%s/v1/quotes/%d", ts.URL, q.ID)

	// Add a 3-night line: 30000 gross, 10% tier discount, 15% markup,
	// 7% commission off the rounded total.
	res = postJSON(t, base+"/items", map[string]any{
		"item_id": 700, "start": "2026-10-01", "end": "2026-10-04",
		"quantity": 1, "pax": 2,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("add item: status %d", res.StatusCode)
	}
	q = decodeQuote(t, res)
	want := domain.QuoteTotals{Subtotal: 30000, TierDiscount: 3000, Markup: 4050, Total: 31050, Commission: 2174}
	if q.Totals != want {
		t.Fatalf("totals mismatch:\n got  %+v\n want %+v", q.Totals, want)
	}
	if q.Version != 2 || len(q.Items) != 1 || q.Items[0].Nights != 3 {
		t.Fatalf("unexpected quote after add: version=%d items=%+v", q.Version, q.Items)
	}

	// GET with conditional revalidation
	res1, err := http.Get(base)
	if err != nil {
		t.Fatalf("GET quote: %v", err)
	}
	etag := res1.Header.Get("ETag")
	res1.Body.Close()
	if etag == "" {
		t.Fatalf("GET quote: missing ETag")
	}
	req, _ := http.NewRequest(http.MethodGet, base, nil)
	req.Header.Set("If-None-Match", etag)
	res2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional GET: %v", err)
	}
	res2.Body.Close()
	if res2.StatusCode != http.StatusNotModified {
		t.Fatalf("conditional GET: want 304, got %d", res2.StatusCode)
	}

	// Freeze against a stale version is rejected
	res = postJSON(t, base+"/freeze", map[string]any{"expected_version": 1})
	res.Body.Close()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("stale freeze: want 409, got %d", res.StatusCode)
	}

	// Freeze with the observed version succeeds and is idempotent
	res = postJSON(t, base+"/freeze", map[string]any{"expected_version": 2})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("freeze: status %d", res.StatusCode)
	}
	frozen := decodeQuote(t, res)
	if frozen.Status != domain.StatusSent || frozen.Totals != want {
		t.Fatalf("unexpected frozen quote: %+v", frozen)
	}
	res = postJSON(t, base+"/freeze", map[string]any{"expected_version": 2})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("re-freeze: status %d", res.StatusCode)
	}
	refrozen := decodeQuote(t, res)
	if refrozen.Totals != frozen.Totals {
		t.Fatalf("re-freeze changed totals: %+v vs %+v", refrozen.Totals, frozen.Totals)
	}

	// Edits after freeze are rejected
	res = postJSON(t, base+"/items", map[string]any{
		"item_id": 700, "start": "2026-10-01", "end": "2026-10-02",
		"quantity": 1, "pax": 1,
	})
	res.Body.Close()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("add after freeze: want 409, got %d", res.StatusCode)
	}

	// Conclude the lifecycle
	res = postJSON(t, base+"/accept", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept: status %d", res.StatusCode)
	}
	accepted := decodeQuote(t, res)
	if accepted.Status != domain.StatusAccepted {
		t.Fatalf("want ACCEPTED, got %s", accepted.Status)
	}
	res = postJSON(t, base+"/accept", nil)
	res.Body.Close()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("accept twice: want 409, got %d", res.StatusCode)
	}
}
