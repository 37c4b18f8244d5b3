// README: Smoke/bench cases for the chat API; HTTP flow, persistence, lock hygiene, and throughput checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"wayfarer/internal/infra"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// set by the create case, read by the cases after it
	sessionID string
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
		httpc: &http.Client{Timeout: 45 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := infra.NewDB(ctx, r.cfg.DSN); err == nil {
			r.db = db
		} else {
			fmt.Printf("db: %v\n", err)
		}
	}
	if r.cfg.RedisAddr != "" {
		if rdb, err := infra.NewRedis(ctx, r.cfg.RedisAddr); err == nil {
			r.redis = rdb
		} else {
			fmt.Printf("redis: %v\n", err)
		}
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
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
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{"Env: Postgres connect", func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: statusSkip, Note: "db not configured"}
			}
			return Result{Status: statusPass}
		}},
		{"Env: Redis connect", func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return Result{Status: statusSkip, Note: "redis not configured"}
			}
			return Result{Status: statusPass}
		}},
		{"Migration: apply (optional)", func(ctx context.Context, r *Runner) Result {
			if !r.cfg.ApplyMigration {
				return Result{Status: statusSkip, Note: "apply-migration=false"}
			}
			if r.db == nil {
				return Result{Status: statusFail, Note: "db not configured"}
			}
			if err := infra.ApplyMigrations(ctx, r.db, r.cfg.MigrationsDir); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			return Result{Status: statusPass}
		}},
		{"Migration: tables exist", checkTables},

		{"API: health", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/health", nil, r.cfg.UID, http.StatusOK, nil)
		}},
		{"API: suggestions", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/api/suggestions", nil, r.cfg.UID, http.StatusOK, nil)
		}},

		{"Session: create", func(ctx context.Context, r *Runner) Result {
			var body struct {
				SessionID string `json:"session_id"`
			}
			res := r.expect(ctx, http.MethodPost, "/api/sessions", nil, r.cfg.UID, http.StatusCreated, &body)
			r.sessionID = body.SessionID
			return res
		}},
		{"Session: create without caller -> 401", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/sessions", nil, "", http.StatusUnauthorized, nil)
		}},
		r.sessionCase("Session: get", http.MethodGet, "", nil, "", http.StatusOK),
		r.sessionCase("Session: other owner -> 403", http.MethodGet, "", nil, "bench-intruder", http.StatusForbidden),
		{"Session: unknown -> 404", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/api/sessions/00000000000000000000000000000000", nil, r.cfg.UID, http.StatusNotFound, nil)
		}},

		r.sessionCase("Message: blank -> 400", http.MethodPost, "/messages", map[string]string{"message": "   "}, "", http.StatusBadRequest),
		r.liveCase("Message: send", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/sessions/"+r.sessionID+"/messages",
				map[string]string{"message": "Plan a 3-day trip to Lisbon for $1200"}, r.cfg.UID, http.StatusOK, nil)
		}),
		r.liveCase("Concurrency: parallel sends -> one 200, rest 409", concurrentSend),

		r.sessionCase("Plan: get", http.MethodGet, "/plan", nil, "", http.StatusOK),
		r.sessionCase("Plan: clear", http.MethodDelete, "/plan", nil, "", http.StatusNoContent),

		{"Consistency: persisted turns are dense", checkTurns},
		{"Redis: no lock left behind", checkLock},

		{"Perf: session create throughput", func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, "/api/sessions")
		}},
	}
}

// sessionCase targets /api/sessions/{id}{suffix}. An empty uid means the configured caller.
func (r *Runner) sessionCase(name, method, suffix string, body any, uid string, want int) TestCase {
	return TestCase{Name: name, Run: func(ctx context.Context, r *Runner) Result {
		if r.sessionID == "" {
			return Result{Status: statusSkip, Note: "no session"}
		}
		caller := uid
		if caller == "" {
			caller = r.cfg.UID
		}
		return r.expect(ctx, method, "/api/sessions/"+r.sessionID+suffix, body, caller, want, nil)
	}}
}

func (r *Runner) liveCase(name string, run func(ctx context.Context, r *Runner) Result) TestCase {
	return TestCase{Name: name, Run: func(ctx context.Context, r *Runner) Result {
		if !r.cfg.LiveLLM {
			return Result{Status: statusSkip, Note: "live-llm=false"}
		}
		if r.sessionID == "" {
			return Result{Status: statusSkip, Note: "no session"}
		}
		return run(ctx, r)
	}}
}

func (r *Runner) do(ctx context.Context, method, path string, body any, uid string) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	return resp, payload, err
}

func (r *Runner) expect(ctx context.Context, method, path string, body any, uid string, want int, out any) Result {
	start := time.Now()
	resp, payload, err := r.do(ctx, method, path, body, uid)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	latency := time.Since(start)
	if resp.StatusCode != want {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d body=%s", resp.StatusCode, truncate(payload))}
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return Result{Status: statusFail, Latency: latency, Note: err.Error()}
		}
	}
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
}

func concurrentSend(ctx context.Context, r *Runner) Result {
	path := "/api/sessions/" + r.sessionID + "/messages"
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		busy int
		errs int
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, _, err := r.do(ctx, http.MethodPost, path, map[string]string{"message": fmt.Sprintf("Add day %d", i+1)}, r.cfg.UID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs++
			case resp.StatusCode == http.StatusOK:
				ok++
			case resp.StatusCode == http.StatusConflict:
				busy++
			default:
				errs++
			}
		}(i)
	}
	wg.Wait()

	note := fmt.Sprintf("ok=%d busy=%d other=%d", ok, busy, errs)
	if ok >= 1 && errs == 0 {
		return Result{Status: statusPass, Note: note}
	}
	return Result{Status: statusFail, Note: note}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationsDir)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass, Note: strings.Join(tables, ",")}
}

func checkTurns(ctx context.Context, r *Runner) Result {
	if r.db == nil || r.sessionID == "" {
		return Result{Status: statusSkip, Note: "needs db and a session"}
	}
	var n, maxSeq int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*), COALESCE(MAX(seq), -1) FROM chat_turns WHERE session_id = $1",
		r.sessionID,
	).Scan(&n, &maxSeq)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if n == 0 || maxSeq != n-1 {
		return Result{Status: statusFail, Note: fmt.Sprintf("turns=%d max_seq=%d", n, maxSeq)}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("turns=%d", n)}
}

func checkLock(ctx context.Context, r *Runner) Result {
	if r.redis == nil || r.sessionID == "" {
		return Result{Status: statusSkip, Note: "needs redis and a session"}
	}
	n, err := r.redis.Exists(ctx, "wayfarer:session:"+r.sessionID+":lock").Result()
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if n != 0 {
		return Result{Status: statusFail, Note: "lock key still present"}
	}
	return Result{Status: statusPass}
}

func perfLoad(ctx context.Context, r *Runner, path string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		count, errCount int64
		mu              sync.Mutex
		wg              sync.WaitGroup
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				resp, _, err := r.do(ctx, http.MethodPost, path, nil, r.cfg.UID)
				mu.Lock()
				if err != nil || resp.StatusCode != http.StatusCreated {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

func extractTables(dir string) ([]string, error) {
	files, err := infra.MigrationFiles(dir)
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, path := range files {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		for _, m := range createTableRe.FindAllStringSubmatch(string(b), -1) {
			tables = append(tables, m[1])
		}
	}
	return tables, nil
}

func truncate(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return strings.TrimSpace(string(b))
}
