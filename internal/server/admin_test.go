package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/msgslot/internal/slot"
	"github.com/danmuck/msgslot/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

func adminGet(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAdminRoutes(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	svc, err := NewService(testServiceConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h, err := svc.Registry().Open(1, slot.ModeWrite)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, ch := range []slot.ChannelID{4, 2} {
		if err := h.SelectChannel(ch); err != nil {
			t.Fatalf("select: %v", err)
		}
		if _, err := h.Write([]byte("abc")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	r := svc.AdminRouter()

	if rec := adminGet(t, r, "/health"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"component":"slotd"`) {
		t.Fatalf("health: code=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := adminGet(t, r, "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready before serve: expected 503, got %d", rec.Code)
	}
	svc.ready.Store(true)
	if rec := adminGet(t, r, "/ready"); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200, got %d", rec.Code)
	}

	rec := adminGet(t, r, "/slots")
	if rec.Code != http.StatusOK {
		t.Fatalf("slots: code=%d", rec.Code)
	}
	var list struct {
		Slots         []slot.SlotStats `json:"slots"`
		MaxMessageLen int              `json:"max_message_len"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	if len(list.Slots) != 2 || list.MaxMessageLen != slot.DefaultMaxMessageLen {
		t.Fatalf("unexpected slots body: %+v", list)
	}
	if list.Slots[1].ID != 1 || list.Slots[1].Channels != 2 || list.Slots[1].Bytes != 6 {
		t.Fatalf("unexpected slot 1 stats: %+v", list.Slots[1])
	}

	rec = adminGet(t, r, "/slots/1")
	var one struct {
		Slot     slot.SlotStats   `json:"slot"`
		Channels []slot.ChannelID `json:"channels"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &one); err != nil {
		t.Fatalf("decode slot: %v", err)
	}
	if len(one.Channels) != 2 || one.Channels[0] != 2 || one.Channels[1] != 4 {
		t.Fatalf("unexpected channels: %v", one.Channels)
	}

	if rec := adminGet(t, r, "/slots/abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad slot id: expected 400, got %d", rec.Code)
	}
	if rec := adminGet(t, r, "/slots/99"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing slot: expected 404, got %d", rec.Code)
	}
	if rec := adminGet(t, r, "/metrics"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "msgslot_http_requests_total") {
		t.Fatalf("metrics: code=%d", rec.Code)
	}
}

func TestAdminSlotsRequireToken(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	cfg := testServiceConfig()
	cfg.AdminToken = "s3cret"
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	r := svc.AdminRouter()

	if rec := adminGet(t, r, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("health should stay open, got %d", rec.Code)
	}
	if rec := adminGet(t, r, "/slots"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("slots without token: expected 401, got %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/slots/0", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("slots with wrong token: expected 401, got %d", rec.Code)
	}
	req = httptest.NewRequest(http.MethodGet, "/slots/0", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("slots with token: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
}
