package bootstrap

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"triage_server/adapter/out/messaging"
	"triage_server/config"
	"triage_server/infra/middleware"
)

const premiumStuck = "mobil saya land cruiser, pas panas jadi gak bisa jalan"

func testConfig() *config.Config {
	return &config.Config{
		Port:                 "0",
		Environment:          "test",
		AdminJWTSecret:       "secret",
		AdminWhatsApp:        []string{"+62800"},
		ReplyStyle:           "formal",
		WorkshopName:         "Matic Center",
		HistoryLimit:         12,
		HandoffCooldown:      30 * time.Minute,
		AutoClaimMinScore:    70,
		FollowUpEnabled:      true,
		FollowUpStage1Delay:  time.Hour,
		FollowUpStage2Delay:  24 * time.Hour,
		FollowUpScanInterval: time.Minute,
		FollowUpWorkers:      2,
		WorkerID:             "test-worker",
	}
}

func postInbound(t *testing.T, deps *Dependencies, body string) string {
	t.Helper()
	app := NewAPI(deps)
	form := url.Values{"From": {"whatsapp:+62811"}, "Body": {body}, "MessageSid": {"SM1"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook status = %d", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	return string(raw)
}

func TestMemoryDependencies(t *testing.T) {
	deps, cleanup, err := NewDependencies(context.Background(), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	info := deps.BackendInfo()
	want := map[string]string{"store": "memory", "tickets": "memory", "transcripts": "memory", "outbound": "inline", "polisher": "off"}
	for k, v := range want {
		if info[k] != v {
			t.Errorf("%s = %q, want %q", k, info[k], v)
		}
	}

	if body := postInbound(t, deps, premiumStuck); !strings.Contains(body, "<Message>") {
		t.Errorf("reply = %q", body)
	}

	app := NewAPI(deps)
	token, _ := middleware.IssueAdminToken("secret", "budi", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), `"dispatch"`) || !strings.Contains(string(raw), `"breakers"`) {
		t.Errorf("stats = %d %s", resp.StatusCode, raw)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready = %d", resp.StatusCode)
	}
}

func TestRedisDependenciesQueueOperatorNotifications(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	deps, cleanup, err := NewDependencies(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	if info := deps.BackendInfo(); info["store"] != "redis" || info["outbound"] != "stream" {
		t.Fatalf("backends = %v", info)
	}

	postInbound(t, deps, premiumStuck)

	n, err := deps.Redis.XLen(context.Background(), messaging.StreamOutbound).Result()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("queued outbound = %d, want 1 operator notification", n)
	}
	if users := deps.Store.GetUsers(context.Background()); len(users) != 1 || users[0] != "+62811" {
		t.Errorf("users = %v", users)
	}
}

func TestUnreachableRedisFallsBackToMemory(t *testing.T) {
	cfg := testConfig()
	cfg.RedisURL = "redis://127.0.0.1:1/0"

	deps, cleanup, err := NewDependencies(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	if deps.Redis != nil || deps.BackendInfo()["store"] != "memory" {
		t.Errorf("backends = %v", deps.BackendInfo())
	}
}

func TestWorkerStartStop(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	cfg.ConsumerBlockMS = 50

	deps, cleanup, err := NewDependencies(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	w := NewWorker(deps)
	done := make(chan struct{})
	go func() {
		w.Start()
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	w.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
