// README: End-to-end test against a running wayfarer-api (live provider, Postgres-backed quota and turns).
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestChatTurnPersistsAndQuotaGuards needs WAYFARER_API_BASE_URL (a server started with
// WAYFARER_DB_DSN and no Firebase project) and WAYFARER_TEST_DSN pointing at the same database.
func TestChatTurnPersistsAndQuotaGuards(t *testing.T) {
	baseURL := strings.TrimRight(os.Getenv("WAYFARER_API_BASE_URL"), "/")
	dsn := strings.TrimSpace(os.Getenv("WAYFARER_TEST_DSN"))
	if baseURL == "" || dsn == "" {
		t.Skip("WAYFARER_API_BASE_URL / WAYFARER_TEST_DSN not set; skipping end-to-end test")
	}

	client := &http.Client{Timeout: 60 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	uid := fmt.Sprintf("it%d", time.Now().UnixNano())
	month := time.Now().UTC().Format("2006-01")
	if _, err := db.Exec(ctx, `
		INSERT INTO ai_usage (uid, tokens_remaining, last_reset_month)
		VALUES ($1, 1, $2)
		ON CONFLICT (uid) DO UPDATE SET
			tokens_remaining = EXCLUDED.tokens_remaining,
			last_reset_month = EXCLUDED.last_reset_month
	`, uid, month); err != nil {
		t.Fatalf("seed ai_usage: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()
		_, _ = db.Exec(cleanupCtx, "DELETE FROM ai_usage WHERE uid = $1", uid)
		_, _ = db.Exec(cleanupCtx, "DELETE FROM chat_sessions WHERE owner_uid = $1", uid)
	})

	waitForAPIReady(t, client, baseURL)

	status, body := call(t, client, http.MethodPost, baseURL+"/api/sessions", uid, nil)
	if status != http.StatusCreated {
		t.Fatalf("create session: %d %s", status, body)
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.SessionID == "" {
		t.Fatalf("create session body: %s", body)
	}
	messages := baseURL + "/api/sessions/" + created.SessionID + "/messages"

	status, body = call(t, client, http.MethodPost, messages, uid, map[string]string{
		"message": "Plan a 3-day trip to Lisbon for $1200",
	})
	if status != http.StatusOK {
		t.Fatalf("first message: %d %s", status, body)
	}
	var reply struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(body, &reply); err != nil || strings.TrimSpace(reply.Reply) == "" {
		t.Fatalf("first message body: %s", body)
	}
	if strings.Contains(reply.Reply, "TRAVEL_PLAN_JSON") {
		t.Errorf("display text still contains the plan marker: %q", reply.Reply)
	}
	t.Logf("assistant: %s", reply.Reply)

	status, body = call(t, client, http.MethodPost, messages, uid, map[string]string{"message": "One more day please"})
	if status != http.StatusTooManyRequests {
		t.Fatalf("second message: expected 429, got %d %s", status, body)
	}

	var turns int
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM chat_turns WHERE session_id = $1", created.SessionID).Scan(&turns); err != nil {
		t.Fatalf("count turns: %v", err)
	}
	if turns != 3 {
		t.Fatalf("persisted turns = %d, want greeting + user + assistant", turns)
	}
}

func call(t *testing.T, client *http.Client, method, url, uid string, payload any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", uid)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp.StatusCode, body
}

func waitForAPIReady(t *testing.T, client *http.Client, baseURL string) {
	t.Helper()

	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("api not ready: GET %s/health did not return 200 in time", baseURL)
}
