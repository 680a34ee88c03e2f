// README: Bench cases covering the catalog, order lifecycle, tracking, real-time events and throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fooddash/internal/infra"
)

const (
	StatusPass    = "PASS"
	StatusFail    = "FAIL"
	StatusPending = "PENDING"
	StatusSkip    = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
	mongo *mongo.Client

	adminToken    string
	customerToken string
	otherToken    string

	// Filled in as the cases run; later cases depend on earlier ones.
	foodItemID string
	unitPrice  float64
	orderID    string
}

type Result struct {
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}
	if r.cfg.MongoURI != "" {
		if mc, err := mongo.Connect(ctx, options.Client().ApplyURI(r.cfg.MongoURI)); err == nil {
			r.mongo = mc
		}
	}
	if r.cfg.JWTSecret != "" {
		r.adminToken, _ = infra.SignJWT(r.cfg.JWTSecret, "bench-admin", "admin", time.Hour)
		r.customerToken, _ = infra.SignJWT(r.cfg.JWTSecret, "bench-customer", "customer", time.Hour)
		r.otherToken, _ = infra.SignJWT(r.cfg.JWTSecret, "bench-other", "customer", time.Hour)
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if r.mongo != nil {
		_ = r.mongo.Disconnect(context.Background())
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{"Env: Postgres connect", func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: StatusFail, Note: "db not configured"}
			}
			return pingResult(ctx, r.db.Ping)
		}},
		{"Env: Redis connect", func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return Result{Status: StatusFail, Note: "redis not configured"}
			}
			return pingResult(ctx, func(ctx context.Context) error { return r.redis.Ping(ctx).Err() })
		}},
		{"Env: MongoDB connect", func(ctx context.Context, r *Runner) Result {
			if r.mongo == nil {
				return Result{Status: StatusFail, Note: "mongo not configured"}
			}
			return pingResult(ctx, func(ctx context.Context) error { return r.mongo.Ping(ctx, nil) })
		}},
		{"Migration: apply (optional)", applyMigration},
		{"Migration: tables exist", tablesExist},
		{"API: health", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/health", "", nil, nil, http.StatusOK)
		}},
		{"API: restaurant location", func(ctx context.Context, r *Runner) Result {
			res := r.expect(ctx, http.MethodGet, "/api/restaurant/location", "", nil, nil, http.StatusOK)
			return pendingOnUpstream(res)
		}},

		{"Catalog: admin creates food item", createFoodItem},
		r.authed("Catalog: customer cannot create food item", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/food-items", r.customerToken, map[string]any{"name": "x"}, nil, http.StatusForbidden)
		}),

		r.needsItem("Order: create", createOrder),
		r.authed("Order: empty items -> 400", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/orders", r.customerToken, map[string]any{
				"items":           []any{},
				"deliveryAddress": "1 Bench St",
			}, nil, http.StatusBadRequest)
		}),
		r.authed("Order: unknown food item -> 400", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/orders", r.customerToken, map[string]any{
				"items":           []map[string]any{{"foodItem": "00000000-0000-0000-0000-000000000000", "quantity": 1}},
				"deliveryAddress": "1 Bench St",
			}, nil, http.StatusBadRequest)
		}),
		r.needsOrder("Order: other customer cannot read", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/api/orders/"+r.orderID, r.otherToken, nil, nil, http.StatusForbidden)
		}),
		r.needsOrder("Order: customer cannot advance status", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPatch, "/api/orders/"+r.orderID+"/status", r.customerToken,
				map[string]string{"status": "preparing"}, nil, http.StatusForbidden)
		}),
		r.needsOrder("Concurrency: parallel pending -> preparing", concurrentTransition),
		r.needsOrder("Realtime: status event over websocket", statusEventOverWS),
		r.needsOrder("Tracking: admin location update", func(ctx context.Context, r *Runner) Result {
			res := r.expect(ctx, http.MethodPatch, "/api/tracking/"+r.orderID, r.adminToken, map[string]any{
				"lat": 40.7306, "lng": -73.9866, "address": "Union Sq",
			}, nil, http.StatusOK)
			return pendingOnUpstream(res)
		}),
		r.needsOrder("Tracking: customer cannot update location", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPatch, "/api/tracking/"+r.orderID, r.customerToken,
				map[string]any{"lat": 1, "lng": 1}, nil, http.StatusForbidden)
		}),
		r.needsOrder("Tracking: arrived completes delivery", markArrived),
		r.needsOrder("Order: delivered cannot transition", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPatch, "/api/orders/"+r.orderID+"/status", r.adminToken,
				map[string]string{"status": "cancelled"}, nil, http.StatusConflict)
		}),
		r.authed("Order: list with pagination", listOrders),
		r.authed("Order: stats", func(ctx context.Context, r *Runner) Result {
			var body struct {
				TotalOrders int64 `json:"totalOrders"`
			}
			res := r.expect(ctx, http.MethodGet, "/api/orders/stats", r.customerToken, nil, &body, http.StatusOK)
			if res.Status == StatusPass && r.orderID != "" && body.TotalOrders < 1 {
				return Result{Status: StatusFail, Note: "stats do not include the bench order"}
			}
			return res
		}),

		r.authed("Perf: list orders throughput", func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, http.MethodGet, "/api/orders?limit=20", r.customerToken, nil)
		}),
		r.needsItem("Perf: create order throughput", func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, http.MethodPost, "/api/orders", r.customerToken, map[string]any{
				"items":           []map[string]any{{"foodItem": r.foodItemID, "quantity": 1}},
				"deliveryAddress": "1 Bench St",
			})
		}),
	}
}

func (r *Runner) authed(name string, run func(context.Context, *Runner) Result) TestCase {
	return TestCase{Name: name, Run: func(ctx context.Context, r *Runner) Result {
		if r.adminToken == "" {
			return Result{Status: StatusSkip, Note: "no jwt secret"}
		}
		return run(ctx, r)
	}}
}

func (r *Runner) needsItem(name string, run func(context.Context, *Runner) Result) TestCase {
	return r.authed(name, func(ctx context.Context, r *Runner) Result {
		if r.foodItemID == "" {
			return Result{Status: StatusSkip, Note: "no food item"}
		}
		return run(ctx, r)
	})
}

func (r *Runner) needsOrder(name string, run func(context.Context, *Runner) Result) TestCase {
	return r.authed(name, func(ctx context.Context, r *Runner) Result {
		if r.orderID == "" {
			return Result{Status: StatusSkip, Note: "no order"}
		}
		return run(ctx, r)
	})
}

// do sends one JSON request. out, when non-nil, receives a 2xx body.
func (r *Runner) do(ctx context.Context, method, path, token string, body, out any) (int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	latency := time.Since(start)
	if out != nil && resp.StatusCode/100 == 2 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, fmt.Errorf("decode: %w", err)
		}
		return resp.StatusCode, latency, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, latency, nil
}

func (r *Runner) expect(ctx context.Context, method, path, token string, body, out any, want int) Result {
	status, latency, err := r.do(ctx, method, path, token, body, out)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	note := fmt.Sprintf("status=%d", status)
	if status != want {
		return Result{Status: StatusFail, Latency: latency, Note: note}
	}
	return Result{Status: StatusPass, Latency: latency, Note: note}
}

// pendingOnUpstream downgrades a 502/504 to PENDING: the maps provider is
// not reachable from every bench environment.
func pendingOnUpstream(res Result) Result {
	if res.Status == StatusFail && (res.Note == "status=502" || res.Note == "status=504") {
		res.Status = StatusPending
		res.Note += " (maps provider unavailable)"
	}
	return res
}

func pingResult(ctx context.Context, ping func(context.Context) error) Result {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	start := time.Now()
	if err := ping(ctx); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	return Result{Status: StatusPass, Latency: time.Since(start)}
}

func createFoodItem(ctx context.Context, r *Runner) Result {
	if r.adminToken == "" {
		return Result{Status: StatusSkip, Note: "no jwt secret"}
	}
	var item struct {
		ID    string  `json:"id"`
		Price float64 `json:"price"`
	}
	res := r.expect(ctx, http.MethodPost, "/api/food-items", r.adminToken, map[string]any{
		"name":                   fmt.Sprintf("Bench Pizza %d", time.Now().UnixNano()),
		"description":            "Created by fooddash-bench",
		"price":                  12.5,
		"category":               "Pizza",
		"imageUrl":               "https://example.com/pizza.png",
		"preparationTimeMinutes": 15,
	}, &item, http.StatusCreated)
	if res.Status == StatusPass {
		r.foodItemID, r.unitPrice = item.ID, item.Price
	}
	return res
}

func createOrder(ctx context.Context, r *Runner) Result {
	var o struct {
		ID          string  `json:"id"`
		Status      string  `json:"status"`
		TotalAmount float64 `json:"totalAmount"`
	}
	res := r.expect(ctx, http.MethodPost, "/api/orders", r.customerToken, map[string]any{
		"items":           []map[string]any{{"foodItem": r.foodItemID, "quantity": 2}},
		"deliveryAddress": "1 Bench St",
	}, &o, http.StatusCreated)
	if res.Status != StatusPass {
		return res
	}
	if o.Status != "pending" {
		return Result{Status: StatusFail, Note: "new order status " + o.Status}
	}
	if o.TotalAmount != 2*r.unitPrice {
		return Result{Status: StatusFail, Note: fmt.Sprintf("total %.2f, want %.2f", o.TotalAmount, 2*r.unitPrice)}
	}
	r.orderID = o.ID
	return res
}

// concurrentTransition fires the same pending -> preparing edge in parallel;
// exactly one request may win.
func concurrentTransition(ctx context.Context, r *Runner) Result {
	var ok, conflict, other int64
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, err := r.do(ctx, http.MethodPatch, "/api/orders/"+r.orderID+"/status", r.adminToken,
				map[string]string{"status": "preparing"}, nil)
			switch {
			case err != nil:
				atomic.AddInt64(&other, 1)
			case status == http.StatusOK:
				atomic.AddInt64(&ok, 1)
			case status == http.StatusConflict:
				atomic.AddInt64(&conflict, 1)
			default:
				atomic.AddInt64(&other, 1)
			}
		}()
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d conflict=%d other=%d", ok, conflict, other)
	if ok != 1 || other != 0 {
		return Result{Status: StatusFail, Note: note}
	}
	return Result{Status: StatusPass, Note: note}
}

// statusEventOverWS subscribes, moves the order to ready and waits for the
// matching status event.
func statusEventOverWS(ctx context.Context, r *Runner) Result {
	wsURL := "ws" + strings.TrimPrefix(r.cfg.BaseURL, "http") + "/ws?token=" + r.customerToken
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	defer conn.Close()

	start := time.Now()
	res := r.expect(ctx, http.MethodPatch, "/api/orders/"+r.orderID+"/status", r.adminToken,
		map[string]string{"status": "ready"}, nil, http.StatusOK)
	if res.Status != StatusPass {
		return res
	}

	want := "order:" + r.orderID + ":status"
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var env struct {
			Event string `json:"event"`
			Data  struct {
				Status string `json:"status"`
			} `json:"data"`
		}
		if err := conn.ReadJSON(&env); err != nil {
			return Result{Status: StatusFail, Note: "no status event: " + err.Error()}
		}
		if env.Event == want && env.Data.Status == "ready" {
			return Result{Status: StatusPass, Latency: time.Since(start)}
		}
	}
}

func markArrived(ctx context.Context, r *Runner) Result {
	res := r.expect(ctx, http.MethodPost, "/api/tracking/"+r.orderID+"/arrived", r.adminToken, nil, nil, http.StatusOK)
	if res.Status != StatusPass {
		// Arrival needs tracking, which needs the maps provider.
		if res.Note == "status=404" {
			res.Status, res.Note = StatusPending, "no tracking recorded"
		}
		return res
	}
	var o struct {
		Status string `json:"status"`
	}
	if got := r.expect(ctx, http.MethodGet, "/api/orders/"+r.orderID, r.customerToken, nil, &o, http.StatusOK); got.Status != StatusPass {
		return got
	}
	if o.Status != "delivered" {
		return Result{Status: StatusFail, Note: "order status " + o.Status}
	}
	return res
}

func listOrders(ctx context.Context, r *Runner) Result {
	var body struct {
		Orders     []json.RawMessage `json:"orders"`
		Pagination struct {
			Total       int64 `json:"total"`
			CurrentPage int   `json:"currentPage"`
			Limit       int   `json:"limit"`
		} `json:"pagination"`
	}
	res := r.expect(ctx, http.MethodGet, "/api/orders?page=1&limit=5&sortBy=createdAt&sortOrder=desc", r.customerToken, nil, &body, http.StatusOK)
	if res.Status != StatusPass {
		return res
	}
	if body.Pagination.CurrentPage != 1 || body.Pagination.Limit != 5 || len(body.Orders) > 5 {
		return Result{Status: StatusFail, Note: fmt.Sprintf("pagination %+v with %d orders", body.Pagination, len(body.Orders))}
	}
	res.Note = fmt.Sprintf("total=%d", body.Pagination.Total)
	return res
}

func perfLoad(ctx context.Context, r *Runner, method, path, token string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount, limited int64
	var mu sync.Mutex
	latencies := make([]time.Duration, 0, 1024)
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, latency, err := r.do(ctx, method, path, token, payload, nil)
				if status == http.StatusTooManyRequests {
					atomic.AddInt64(&limited, 1)
					continue
				}
				if err != nil || status/100 != 2 {
					atomic.AddInt64(&errCount, 1)
					continue
				}
				atomic.AddInt64(&count, 1)
				mu.Lock()
				latencies = append(latencies, latency)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		if limited > 0 && errCount == 0 {
			return Result{Status: StatusPending, Note: "rate limited; raise FOODDASH_RATE_LIMIT_MAX on the API"}
		}
		return Result{Status: StatusFail, Note: fmt.Sprintf("no requests completed, errors=%d", errCount)}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: StatusPass, Note: fmt.Sprintf("rps=%.1f p95=%s errors=%d rate_limited=%d",
		rps, percentile(latencies, 0.95), errCount, limited)}
}

func percentile(ds []time.Duration, p float64) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), ds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[int(p*float64(len(sorted)-1))]
}

func applyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: StatusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: StatusFail, Note: "db not configured"}
	}
	sql, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	for _, s := range splitSQL(string(sql)) {
		if _, err := r.db.Exec(ctx, s); err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
	}
	return Result{Status: StatusPass}
}

func tablesExist(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: StatusFail, Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: StatusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: StatusPass, Note: fmt.Sprintf("%d tables", len(tables))}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
